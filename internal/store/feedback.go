package store

import (
	"context"
	"database/sql"
	"fmt"
)

// Feedback is one user's scoring state for one item.
type Feedback struct {
	ID                     int64
	UserID                 string
	ItemID                 int64
	InteractionWeight      float64
	ReminderCountdownHours float64
	LastInteractionType    string // empty when no interaction has been recorded
	LastRecalculatedAt     int64
	Comment                string
	CreatedAt              int64
	UpdatedAt              int64
}

// DecayUpdate is the output of one decay pass for a single feedback row.
// Loaded holds the row as the pass read it; the write is skipped if the row
// has changed since.
type DecayUpdate struct {
	ID                     int64
	InteractionWeight      float64
	ReminderCountdownHours float64
	RecalculatedAt         int64
	Loaded                 Feedback
}

const feedbackColumns = `id, user_id, item_id, interaction_weight, reminder_countdown_hours,
	last_interaction_type, last_recalculated_at, comment, created_at, updated_at`

// GetFeedback returns the entry for (userID, itemID) within the transaction,
// or nil if the user has never interacted with the item.
func (t *Tx) GetFeedback(ctx context.Context, userID string, itemID int64) (*Feedback, error) {
	return getFeedback(ctx, t.tx, userID, itemID)
}

// GetFeedback returns the entry for (userID, itemID), or nil if none exists.
func (db *DB) GetFeedback(ctx context.Context, userID string, itemID int64) (*Feedback, error) {
	return getFeedback(ctx, db, userID, itemID)
}

// UpsertFeedback inserts or overwrites the entry keyed by (UserID, ItemID).
// An empty Comment keeps whatever comment was stored before. The stored row
// is read back into f.
func (t *Tx) UpsertFeedback(ctx context.Context, f *Feedback, now int64) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO feedback (user_id, item_id, interaction_weight, reminder_countdown_hours,
			last_interaction_type, last_recalculated_at, comment, created_at, updated_at)
		VALUES (?, ?, ?, ?, NULLIF(?, ''), ?, NULLIF(?, ''), ?, ?)
		ON CONFLICT (user_id, item_id) DO UPDATE SET
			interaction_weight       = excluded.interaction_weight,
			reminder_countdown_hours = excluded.reminder_countdown_hours,
			last_interaction_type    = excluded.last_interaction_type,
			last_recalculated_at     = MAX(feedback.last_recalculated_at, excluded.last_recalculated_at),
			comment                  = COALESCE(excluded.comment, feedback.comment),
			updated_at               = excluded.updated_at
	`, f.UserID, f.ItemID, f.InteractionWeight, f.ReminderCountdownHours,
		f.LastInteractionType, now, f.Comment, now, now)
	if err != nil {
		return fmt.Errorf("upsert feedback: %w", err)
	}

	stored, err := getFeedback(ctx, t.tx, f.UserID, f.ItemID)
	if err != nil {
		return err
	}
	if stored == nil {
		return fmt.Errorf("upsert feedback: row for (%s, %d) missing after write", f.UserID, f.ItemID)
	}
	*f = *stored
	return nil
}

// ListFeedbackByUser returns every feedback entry owned by userID.
func (db *DB) ListFeedbackByUser(ctx context.Context, userID string) ([]Feedback, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+feedbackColumns+`
		FROM feedback WHERE user_id = ?
		ORDER BY item_id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list feedback: %w", err)
	}
	defer rows.Close()
	return scanFeedbackRows(rows)
}

// ListFeedbackUsers returns the distinct users that own at least one entry.
func (db *DB) ListFeedbackUsers(ctx context.Context) ([]string, error) {
	rows, err := db.QueryContext(ctx, `SELECT DISTINCT user_id FROM feedback ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("list feedback users: %w", err)
	}
	defer rows.Close()

	var users []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, fmt.Errorf("scan feedback user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// ApplyDecay writes a batch of decay results and returns how many rows were
// written. Rows are independent; the batch shares one transaction only to
// avoid a commit per row. A row that an ingestion or another pass wrote after
// it was loaded no longer matches Loaded and is left as is. The
// recalculation timestamp never moves backwards.
func (db *DB) ApplyDecay(ctx context.Context, updates []DecayUpdate) (int, error) {
	if len(updates) == 0 {
		return 0, nil
	}

	updated := 0
	err := db.InTx(ctx, func(tx *Tx) error {
		stmt, err := tx.tx.PrepareContext(ctx, `
			UPDATE feedback SET
				interaction_weight       = ?,
				reminder_countdown_hours = ?,
				last_recalculated_at     = MAX(last_recalculated_at, ?)
			WHERE id = ?
				AND updated_at = ?
				AND last_recalculated_at = ?
				AND interaction_weight = ?
				AND reminder_countdown_hours = ?
		`)
		if err != nil {
			return fmt.Errorf("prepare decay update: %w", err)
		}
		defer stmt.Close()

		for _, u := range updates {
			res, err := stmt.ExecContext(ctx, u.InteractionWeight, u.ReminderCountdownHours, u.RecalculatedAt, u.ID,
				u.Loaded.UpdatedAt, u.Loaded.LastRecalculatedAt, u.Loaded.InteractionWeight, u.Loaded.ReminderCountdownHours)
			if err != nil {
				return fmt.Errorf("update decay for feedback %d: %w", u.ID, err)
			}
			if n, _ := res.RowsAffected(); n > 0 {
				updated++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return updated, nil
}

func getFeedback(ctx context.Context, q querier, userID string, itemID int64) (*Feedback, error) {
	row := q.QueryRowContext(ctx, `
		SELECT `+feedbackColumns+`
		FROM feedback WHERE user_id = ? AND item_id = ?
	`, userID, itemID)
	f, err := scanFeedback(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get feedback: %w", err)
	}
	return f, nil
}

func scanFeedback(s rowScanner) (*Feedback, error) {
	var f Feedback
	var kind, comment sql.NullString
	if err := s.Scan(&f.ID, &f.UserID, &f.ItemID, &f.InteractionWeight, &f.ReminderCountdownHours,
		&kind, &f.LastRecalculatedAt, &comment, &f.CreatedAt, &f.UpdatedAt); err != nil {
		return nil, err
	}
	f.LastInteractionType = kind.String
	f.Comment = comment.String
	return &f, nil
}

func scanFeedbackRows(rows *sql.Rows) ([]Feedback, error) {
	var out []Feedback
	for rows.Next() {
		f, err := scanFeedback(rows)
		if err != nil {
			return nil, fmt.Errorf("scan feedback: %w", err)
		}
		out = append(out, *f)
	}
	return out, rows.Err()
}
