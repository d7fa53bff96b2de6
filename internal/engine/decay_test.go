package engine

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/lazypower/discover/internal/store"
)

func entryAt(weight, countdown float64, kind string, recalc time.Time) store.Feedback {
	return store.Feedback{
		InteractionWeight:      weight,
		ReminderCountdownHours: countdown,
		LastInteractionType:    kind,
		LastRecalculatedAt:     recalc.UnixMilli(),
	}
}

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestDecayEntryLike(t *testing.T) {
	f := entryAt(1, 1440, "like", t0)
	got := decayEntry(f, t0.Add(24*time.Hour).UnixMilli(), fixedRandom(0.5))

	wantCountdown := 1440 - 24*math.Pow(2, 0.1)
	if !approx(got.Countdown, wantCountdown) {
		t.Errorf("countdown = %v, want %v", got.Countdown, wantCountdown)
	}
	// rate 0.1 * (0.25 + 0.5) per day, one day elapsed
	if !approx(got.Weight, 1-0.075) {
		t.Errorf("weight = %v, want 0.925", got.Weight)
	}
}

func TestDecayEntryRateBounds(t *testing.T) {
	f := entryAt(50, 0, "like", t0)
	now := t0.Add(24 * time.Hour).UnixMilli()

	low := decayEntry(f, now, fixedRandom(0))
	if !approx(low.Weight, 50-0.025) {
		t.Errorf("U=0 weight = %v, want 49.975", low.Weight)
	}
	high := decayEntry(f, now, fixedRandom(0.9999999))
	if high.Weight > 50-0.1249 || high.Weight < 50-0.125 {
		t.Errorf("U~1 weight = %v, want just above 49.875", high.Weight)
	}
}

func TestDecayEntryNegativeWeightMovesUp(t *testing.T) {
	f := entryAt(-20, 100, "indifferent", t0)
	got := decayEntry(f, t0.Add(48*time.Hour).UnixMilli(), fixedRandom(0.5))
	if !approx(got.Weight, -20+0.15) {
		t.Errorf("weight = %v, want -19.85", got.Weight)
	}
}

func TestDecayEntrySnapsAtZero(t *testing.T) {
	tests := []struct {
		name   string
		weight float64
		kind   string
		hours  time.Duration
	}{
		{"positive overshoot", 0.01, "like", 48 * time.Hour},
		{"negative overshoot", -0.25, "indifferent", 240 * time.Hour},
		{"huge elapsed", 3, "like", 10000 * time.Hour},
	}
	for _, tt := range tests {
		f := entryAt(tt.weight, 10, tt.kind, t0)
		got := decayEntry(f, t0.Add(tt.hours).UnixMilli(), fixedRandom(0.99))
		if got.Weight != 0 || math.Signbit(got.Weight) {
			t.Errorf("%s: weight = %v, want exactly 0", tt.name, got.Weight)
		}
	}
}

func TestDecayEntryExemptWeights(t *testing.T) {
	for _, kind := range []string{"favorite", "dislike", "report"} {
		f := entryAt(15, 1440, kind, t0)
		if kind != "favorite" {
			f.InteractionWeight = -100
		}
		got := decayEntry(f, t0.Add(100*time.Hour).UnixMilli(), fixedRandom(0.5))
		if got.Weight != f.InteractionWeight {
			t.Errorf("%s: weight = %v, want unchanged %v", kind, got.Weight, f.InteractionWeight)
		}
		if got.Countdown >= f.ReminderCountdownHours {
			t.Errorf("%s: countdown %v did not decrease", kind, got.Countdown)
		}
	}
}

func TestDecayEntrySuppressedCountdown(t *testing.T) {
	f := entryAt(-100, 87600, "dislike", t0)
	// 2^(-10) = 1/1024, so 1024 hours burn exactly one hour of countdown.
	got := decayEntry(f, t0.Add(1024*time.Hour).UnixMilli(), fixedRandom(0.5))
	if got.Countdown != 87599 {
		t.Errorf("countdown = %v, want 87599", got.Countdown)
	}
}

func TestDecayEntryCountdownFloor(t *testing.T) {
	f := entryAt(100, 5, "like", t0)
	got := decayEntry(f, t0.Add(time.Hour).UnixMilli(), fixedRandom(0.5))
	if got.Countdown != 0 {
		t.Errorf("countdown = %v, want 0", got.Countdown)
	}
}

func TestDecayEntryZeroElapsedIsNoop(t *testing.T) {
	f := entryAt(7.3, 1234.5678, "like", t0)
	got := decayEntry(f, t0.UnixMilli(), fixedRandom(0.5))
	if got.Weight != 7.3 || got.Countdown != 1234.5678 {
		t.Errorf("got (%v, %v), want exactly (7.3, 1234.5678)", got.Weight, got.Countdown)
	}
}

func TestDecayEntryClockSkewIsNoop(t *testing.T) {
	f := entryAt(7.3, 100, "like", t0)
	got := decayEntry(f, t0.Add(-5*time.Hour).UnixMilli(), fixedRandom(0.5))
	if got.Weight != 7.3 || got.Countdown != 100 {
		t.Errorf("got (%v, %v), want unchanged", got.Weight, got.Countdown)
	}
}

func TestDecayEntryInvariants(t *testing.T) {
	rnd := NewSeededRandom(1)
	starts := []store.Feedback{
		entryAt(100, 1440, "like", t0),
		entryAt(-100, 87600, "indifferent", t0),
		entryAt(0.3, 48, "indifferent", t0),
		entryAt(-0.3, 48, "", t0),
		entryAt(42, 4320, "favorite", t0),
	}
	for _, f := range starts {
		now := t0
		for step := 0; step < 200; step++ {
			now = now.Add(time.Duration(1+step%37) * time.Hour)
			next := decayEntry(f, now.UnixMilli(), rnd)

			if next.Countdown > f.ReminderCountdownHours || next.Countdown < 0 {
				t.Fatalf("countdown %v -> %v not monotonic non-negative", f.ReminderCountdownHours, next.Countdown)
			}
			if next.Weight < MinWeight || next.Weight > MaxWeight {
				t.Fatalf("weight %v out of bounds", next.Weight)
			}
			if f.InteractionWeight > 0 && next.Weight < 0 || f.InteractionWeight < 0 && next.Weight > 0 {
				t.Fatalf("weight crossed zero: %v -> %v", f.InteractionWeight, next.Weight)
			}
			if math.Abs(next.Weight) > math.Abs(f.InteractionWeight) {
				t.Fatalf("weight moved away from zero: %v -> %v", f.InteractionWeight, next.Weight)
			}

			f.InteractionWeight = next.Weight
			f.ReminderCountdownHours = next.Countdown
			f.LastRecalculatedAt = now.UnixMilli()
		}
	}
}

func TestRecalculateFeedCountdown(t *testing.T) {
	e, clock := testEngine(t)
	ctx := context.Background()
	tacos := seedItem(t, e, "Tacos", "Food")
	ramen := seedItem(t, e, "Ramen", "Food")

	if _, err := e.HandleFeedback(ctx, user("u1"), FeedbackInput{ItemID: tacos.ID, InteractionType: "like"}); err != nil {
		t.Fatal(err)
	}
	if _, err := e.HandleFeedback(ctx, user("u1"), FeedbackInput{ItemID: ramen.ID, InteractionType: "favorite"}); err != nil {
		t.Fatal(err)
	}
	if _, err := e.HandleFeedback(ctx, user("u2"), FeedbackInput{ItemID: tacos.ID, InteractionType: "like"}); err != nil {
		t.Fatal(err)
	}
	before := overallWeight(t, e, tacos.ID)

	clock.Advance(24 * time.Hour)
	n, err := e.RecalculateFeedCountdown(ctx, user("u1"))
	if err != nil {
		t.Fatalf("RecalculateFeedCountdown: %v", err)
	}
	if n != 2 {
		t.Errorf("updated = %d, want 2", n)
	}

	like, _ := e.DB.GetFeedback(ctx, "u1", tacos.ID)
	if !approx(like.InteractionWeight, 0.925) {
		t.Errorf("like weight = %v, want 0.925", like.InteractionWeight)
	}
	if !approx(like.ReminderCountdownHours, 1440-24*math.Pow(2, 0.1)) {
		t.Errorf("like countdown = %v", like.ReminderCountdownHours)
	}
	if like.LastRecalculatedAt != clock.Now().UnixMilli() {
		t.Errorf("LastRecalculatedAt = %d, want %d", like.LastRecalculatedAt, clock.Now().UnixMilli())
	}
	if like.UpdatedAt != t0.UnixMilli() {
		t.Errorf("UpdatedAt = %d, want ingestion time %d", like.UpdatedAt, t0.UnixMilli())
	}

	fav, _ := e.DB.GetFeedback(ctx, "u1", ramen.ID)
	if fav.InteractionWeight != 10 {
		t.Errorf("favorite weight = %v, want 10 (exempt)", fav.InteractionWeight)
	}

	other, _ := e.DB.GetFeedback(ctx, "u2", tacos.ID)
	if other.InteractionWeight != 1 || other.ReminderCountdownHours != 1440 {
		t.Errorf("u2 entry changed by u1's pass: %+v", other)
	}

	if got := overallWeight(t, e, tacos.ID); got != before {
		t.Errorf("overall_weight = %v, want unchanged %v", got, before)
	}
}

func TestRecalculateTwiceIsNoop(t *testing.T) {
	e, clock := testEngine(t)
	ctx := context.Background()
	item := seedItem(t, e, "Tacos", "Food")
	e.HandleFeedback(ctx, user("u1"), FeedbackInput{ItemID: item.ID, InteractionType: "like"})

	clock.Advance(36 * time.Hour)
	if _, err := e.RecalculateFeedCountdown(ctx, user("u1")); err != nil {
		t.Fatal(err)
	}
	first, _ := e.DB.GetFeedback(ctx, "u1", item.ID)

	if _, err := e.RecalculateFeedCountdown(ctx, user("u1")); err != nil {
		t.Fatal(err)
	}
	second, _ := e.DB.GetFeedback(ctx, "u1", item.ID)

	if first.InteractionWeight != second.InteractionWeight || first.ReminderCountdownHours != second.ReminderCountdownHours {
		t.Errorf("second pass changed state: %+v -> %+v", first, second)
	}
}

func TestRecalculateClockSkewKeepsTimestamp(t *testing.T) {
	e, clock := testEngine(t)
	ctx := context.Background()
	item := seedItem(t, e, "Tacos", "Food")
	e.HandleFeedback(ctx, user("u1"), FeedbackInput{ItemID: item.ID, InteractionType: "like"})

	clock.Advance(-2 * time.Hour)
	if _, err := e.RecalculateFeedCountdown(ctx, user("u1")); err != nil {
		t.Fatal(err)
	}
	got, _ := e.DB.GetFeedback(ctx, "u1", item.ID)
	if got.LastRecalculatedAt != t0.UnixMilli() {
		t.Errorf("LastRecalculatedAt moved backwards to %d", got.LastRecalculatedAt)
	}
	if got.InteractionWeight != 1 || got.ReminderCountdownHours != 1440 {
		t.Errorf("state changed under clock skew: %+v", got)
	}
}

func TestRecalculateNoEntries(t *testing.T) {
	e, _ := testEngine(t)
	n, err := e.RecalculateFeedCountdown(context.Background(), user("nobody"))
	if err != nil {
		t.Fatalf("RecalculateFeedCountdown: %v", err)
	}
	if n != 0 {
		t.Errorf("updated = %d, want 0", n)
	}
}

func TestRecalculateErrors(t *testing.T) {
	e, _ := testEngine(t)
	if _, err := e.RecalculateFeedCountdown(context.Background(), nil); !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("nil identity: err = %v, want ErrUnauthenticated", err)
	}

	e.DB.Close()
	if _, err := e.RecalculateFeedCountdown(context.Background(), user("u1")); !errors.Is(err, ErrStorage) {
		t.Errorf("closed db: err = %v, want ErrStorage", err)
	}
}

func TestSweepAll(t *testing.T) {
	e, clock := testEngine(t)
	ctx := context.Background()
	item := seedItem(t, e, "Tacos", "Food")
	for _, u := range []string{"u1", "u2", "u3"} {
		e.HandleFeedback(ctx, user(u), FeedbackInput{ItemID: item.ID, InteractionType: "like"})
	}

	clock.Advance(12 * time.Hour)
	n, err := e.SweepAll(ctx)
	if err != nil {
		t.Fatalf("SweepAll: %v", err)
	}
	if n != 3 {
		t.Errorf("updated = %d, want 3", n)
	}
	for _, u := range []string{"u1", "u2", "u3"} {
		f, _ := e.DB.GetFeedback(ctx, u, item.ID)
		if f.LastRecalculatedAt != clock.Now().UnixMilli() {
			t.Errorf("%s not swept", u)
		}
	}
}

// ingestDuringPass commits a dislike from inside the decay pass, after the
// entries have been loaded and before the results are written.
type ingestDuringPass struct {
	t      *testing.T
	e      *Engine
	itemID int64
	done   bool
}

func (r *ingestDuringPass) Float64() float64 {
	if !r.done {
		r.done = true
		if _, err := r.e.HandleFeedback(context.Background(), user("u1"), FeedbackInput{ItemID: r.itemID, InteractionType: "dislike"}); err != nil {
			r.t.Errorf("HandleFeedback during pass: %v", err)
		}
	}
	return 0.5
}

func TestRecalculateKeepsIngestionCommittedMidPass(t *testing.T) {
	r := &ingestDuringPass{t: t}
	e, clock := testEngine(t, WithRandom(r))
	ctx := context.Background()
	item := seedItem(t, e, "Tacos", "Food")
	r.e, r.itemID = e, item.ID

	if _, err := e.HandleFeedback(ctx, user("u1"), FeedbackInput{ItemID: item.ID, InteractionType: "like"}); err != nil {
		t.Fatal(err)
	}
	clock.Advance(48 * time.Hour)

	n, err := e.RecalculateFeedCountdown(ctx, user("u1"))
	if err != nil {
		t.Fatalf("RecalculateFeedCountdown: %v", err)
	}
	if !r.done {
		t.Fatal("expected the pass to draw a random value")
	}
	if n != 0 {
		t.Errorf("updated = %d, want 0 for a row written mid-pass", n)
	}

	got, _ := e.DB.GetFeedback(ctx, "u1", item.ID)
	if got.LastInteractionType != "dislike" || got.InteractionWeight != -100 || got.ReminderCountdownHours != 87600 {
		t.Errorf("entry = %s %v/%v, want dislike -100/87600", got.LastInteractionType, got.InteractionWeight, got.ReminderCountdownHours)
	}
	if w := overallWeight(t, e, item.ID); w != got.InteractionWeight {
		t.Errorf("overall weight = %v, want %v", w, got.InteractionWeight)
	}
}
