package store

import (
	"context"
	"testing"
)

func TestListFeedOrdering(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	touched := seedItem(t, db, "Touched", "Food", true)
	untouched := seedItem(t, db, "Untouched", "Food", true)

	upsert(t, db, &Feedback{
		UserID: "u1", ItemID: touched.ID,
		InteractionWeight: 20, ReminderCountdownHours: 5, LastInteractionType: "like",
	}, 1)

	rows, err := db.ListFeed(ctx, "u1", "Food", 10)
	if err != nil {
		t.Fatalf("ListFeed: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("len = %d, want 2", len(rows))
	}
	if rows[0].Item.ID != untouched.ID {
		t.Errorf("first = %q, want Untouched", rows[0].Item.Title)
	}
	if rows[0].Feedback != nil {
		t.Error("untouched row should have nil feedback")
	}
	if rows[1].Item.ID != touched.ID || rows[1].Feedback == nil {
		t.Fatalf("second = %+v, want Touched with feedback", rows[1])
	}
	if rows[1].Feedback.ReminderCountdownHours != 5 {
		t.Errorf("countdown = %v, want 5", rows[1].Feedback.ReminderCountdownHours)
	}
}

func TestListFeedTieBreakOnOverallWeight(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	low := seedItem(t, db, "Low", "Food", true)
	high := seedItem(t, db, "High", "Food", true)

	db.InTx(ctx, func(tx *Tx) error {
		tx.AddOverallWeight(ctx, low.ID, 1)
		_, err := tx.AddOverallWeight(ctx, high.ID, 7)
		return err
	})

	rows, err := db.ListFeed(ctx, "u1", "Food", 10)
	if err != nil {
		t.Fatalf("ListFeed: %v", err)
	}
	if len(rows) != 2 || rows[0].Item.ID != high.ID || rows[1].Item.ID != low.ID {
		t.Errorf("order = %v, want High then Low", titles(rows))
	}
}

func TestListFeedFilters(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	visible := seedItem(t, db, "Visible", "Food", true)
	seedItem(t, db, "Private", "Food", false)
	seedItem(t, db, "OtherCategory", "Travel", true)
	fav := seedItem(t, db, "Fav", "Food", true)
	disliked := seedItem(t, db, "Disliked", "Food", true)
	reported := seedItem(t, db, "Reported", "Food", true)
	meh := seedItem(t, db, "Meh", "Food", true)

	upsert(t, db, &Feedback{UserID: "u1", ItemID: fav.ID, InteractionWeight: 10, ReminderCountdownHours: 1440, LastInteractionType: "favorite"}, 1)
	upsert(t, db, &Feedback{UserID: "u1", ItemID: disliked.ID, InteractionWeight: -100, ReminderCountdownHours: 87600, LastInteractionType: "dislike"}, 1)
	upsert(t, db, &Feedback{UserID: "u1", ItemID: reported.ID, InteractionWeight: -100, ReminderCountdownHours: 87600, LastInteractionType: "report"}, 1)
	upsert(t, db, &Feedback{UserID: "u1", ItemID: meh.ID, InteractionWeight: -0.25, ReminderCountdownHours: 48, LastInteractionType: "indifferent"}, 1)
	// Another user's dislike must not hide the item from u1.
	upsert(t, db, &Feedback{UserID: "u2", ItemID: visible.ID, InteractionWeight: -100, ReminderCountdownHours: 87600, LastInteractionType: "dislike"}, 1)

	rows, err := db.ListFeed(ctx, "u1", "Food", 10)
	if err != nil {
		t.Fatalf("ListFeed: %v", err)
	}
	got := titles(rows)
	if len(got) != 2 || got[0] != "Visible" || got[1] != "Meh" {
		t.Errorf("feed = %v, want [Visible Meh]", got)
	}
}

func TestListFeedLimit(t *testing.T) {
	db := testDB(t)
	for _, title := range []string{"a", "b", "c"} {
		seedItem(t, db, title, "Food", true)
	}
	rows, err := db.ListFeed(context.Background(), "u1", "Food", 2)
	if err != nil {
		t.Fatalf("ListFeed: %v", err)
	}
	if len(rows) != 2 {
		t.Errorf("len = %d, want 2", len(rows))
	}
}

func TestListFavorites(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	b := seedItem(t, db, "Bravo", "Food", true)
	a := seedItem(t, db, "Alpha", "Food", true)
	c := seedItem(t, db, "Charlie", "Travel", true)
	liked := seedItem(t, db, "Liked", "Food", true)

	upsert(t, db, &Feedback{UserID: "u1", ItemID: b.ID, InteractionWeight: 20, LastInteractionType: "favorite"}, 1)
	upsert(t, db, &Feedback{UserID: "u1", ItemID: a.ID, InteractionWeight: 20, LastInteractionType: "favorite"}, 1)
	upsert(t, db, &Feedback{UserID: "u1", ItemID: c.ID, InteractionWeight: 40, LastInteractionType: "favorite"}, 1)
	upsert(t, db, &Feedback{UserID: "u1", ItemID: liked.ID, InteractionWeight: 60, LastInteractionType: "like"}, 1)

	rows, err := db.ListFavorites(ctx, "u1", "")
	if err != nil {
		t.Fatalf("ListFavorites: %v", err)
	}
	got := titles(rows)
	want := []string{"Charlie", "Alpha", "Bravo"}
	if len(got) != len(want) {
		t.Fatalf("favorites = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("favorites[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	food, err := db.ListFavorites(ctx, "u1", "Food")
	if err != nil {
		t.Fatalf("ListFavorites: %v", err)
	}
	if len(food) != 2 {
		t.Errorf("food favorites = %v, want 2 entries", titles(food))
	}
}

func titles(rows []FeedRow) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.Item.Title
	}
	return out
}
