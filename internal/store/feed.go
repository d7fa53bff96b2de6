package store

import (
	"context"
	"database/sql"
	"fmt"
)

// FeedRow is a catalog item joined with the requesting user's feedback.
// Feedback is nil when the user has never interacted with the item.
type FeedRow struct {
	Item     Item
	Feedback *Feedback
}

// Interaction types that remove an item from fresh discovery.
const suppressedTypes = `'favorite', 'dislike', 'report'`

const feedSelect = `
	SELECT i.id, i.title, i.description, i.category, i.image_urls, i.is_public, i.owner_id,
		i.overall_weight, i.created_at, i.updated_at,
		f.id, f.user_id, f.item_id, f.interaction_weight, f.reminder_countdown_hours,
		f.last_interaction_type, f.last_recalculated_at, f.comment, f.created_at, f.updated_at
	FROM items i
	LEFT JOIN feedback f ON f.item_id = i.id AND f.user_id = ?`

// ListFeed returns public items in category that userID has not favorited or
// suppressed, ordered by countdown ascending (no feedback counts as zero),
// then aggregate weight descending.
func (db *DB) ListFeed(ctx context.Context, userID, category string, limit int) ([]FeedRow, error) {
	rows, err := db.QueryContext(ctx, feedSelect+`
		WHERE i.category = ? AND i.is_public = 1
			AND (f.last_interaction_type IS NULL OR f.last_interaction_type NOT IN (`+suppressedTypes+`))
		ORDER BY COALESCE(f.reminder_countdown_hours, 0) ASC, i.overall_weight DESC, i.id ASC
		LIMIT ?
	`, userID, category, limit)
	if err != nil {
		return nil, fmt.Errorf("list feed: %w", err)
	}
	defer rows.Close()
	return scanFeedRows(rows)
}

// ListFavorites returns items userID has favorited, optionally restricted to
// one category, ordered by weight descending then title ascending. Expiry
// windows are applied by the caller.
func (db *DB) ListFavorites(ctx context.Context, userID, category string) ([]FeedRow, error) {
	rows, err := db.QueryContext(ctx, feedSelect+`
		WHERE f.last_interaction_type = 'favorite'
			AND (? = '' OR i.category = ?)
		ORDER BY f.interaction_weight DESC, i.title ASC, i.id ASC
	`, userID, category, category)
	if err != nil {
		return nil, fmt.Errorf("list favorites: %w", err)
	}
	defer rows.Close()
	return scanFeedRows(rows)
}

func scanFeedRows(rows *sql.Rows) ([]FeedRow, error) {
	var out []FeedRow
	for rows.Next() {
		var r FeedRow
		var description sql.NullString
		var images string
		var public int

		var fID, fItemID, fRecalc, fCreated, fUpdated sql.NullInt64
		var fUser, fKind, fComment sql.NullString
		var fWeight, fCountdown sql.NullFloat64

		if err := rows.Scan(&r.Item.ID, &r.Item.Title, &description, &r.Item.Category, &images, &public,
			&r.Item.OwnerID, &r.Item.OverallWeight, &r.Item.CreatedAt, &r.Item.UpdatedAt,
			&fID, &fUser, &fItemID, &fWeight, &fCountdown,
			&fKind, &fRecalc, &fComment, &fCreated, &fUpdated); err != nil {
			return nil, fmt.Errorf("scan feed row: %w", err)
		}
		r.Item.Description = description.String
		r.Item.IsPublic = public != 0
		if err := decodeImages(images, &r.Item.ImageURLs); err != nil {
			return nil, err
		}

		if fID.Valid {
			r.Feedback = &Feedback{
				ID:                     fID.Int64,
				UserID:                 fUser.String,
				ItemID:                 fItemID.Int64,
				InteractionWeight:      fWeight.Float64,
				ReminderCountdownHours: fCountdown.Float64,
				LastInteractionType:    fKind.String,
				LastRecalculatedAt:     fRecalc.Int64,
				Comment:                fComment.String,
				CreatedAt:              fCreated.Int64,
				UpdatedAt:              fUpdated.Int64,
			}
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
