package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/lazypower/discover/internal/auth"
	"github.com/lazypower/discover/internal/store"
)

// FeedbackInput is one interaction event from a user about an item.
type FeedbackInput struct {
	ItemID          int64
	InteractionType string
	Comment         string
}

// FeedbackResult is the committed outcome of an interaction.
type FeedbackResult struct {
	Entry         store.Feedback
	Delta         float64
	OverallWeight float64
}

// HandleFeedback applies one interaction to the caller's entry for the item
// and adds the resulting weight delta to the item's aggregate. Both writes
// commit together or not at all.
//
// Re-sending the same event is not idempotent: each call re-applies the
// scoring table to the current state. A double-submitted "like" therefore
// counts twice; concurrent submissions from one user race the same way.
func (e *Engine) HandleFeedback(ctx context.Context, id *auth.Identity, in FeedbackInput) (*FeedbackResult, error) {
	if id == nil || id.UserID == "" {
		return nil, ErrUnauthenticated
	}
	kind, comment, err := validateFeedback(in)
	if err != nil {
		return nil, err
	}

	log := e.logFor(ctx)
	now := e.now().UnixMilli()

	var result FeedbackResult
	err = e.DB.InTx(ctx, func(tx *store.Tx) error {
		item, err := tx.GetItem(ctx, in.ItemID)
		if err != nil {
			return err
		}
		if item == nil {
			return fmt.Errorf("%w: item %d", ErrNotFound, in.ItemID)
		}

		existing, err := tx.GetFeedback(ctx, id.UserID, in.ItemID)
		if err != nil {
			return err
		}

		var prev *scoreState
		oldWeight := 0.0
		if existing != nil {
			prev = &scoreState{Weight: existing.InteractionWeight, Countdown: existing.ReminderCountdownHours}
			oldWeight = existing.InteractionWeight
		}
		next := applyInteraction(prev, kind)
		delta := next.Weight - oldWeight

		entry := &store.Feedback{
			UserID:                 id.UserID,
			ItemID:                 in.ItemID,
			InteractionWeight:      next.Weight,
			ReminderCountdownHours: next.Countdown,
			LastInteractionType:    string(kind),
			Comment:                comment,
		}
		if err := tx.UpsertFeedback(ctx, entry, now); err != nil {
			return err
		}

		total, err := tx.AddOverallWeight(ctx, in.ItemID, delta)
		if err != nil {
			return err
		}

		result = FeedbackResult{Entry: *entry, Delta: delta, OverallWeight: total}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		log.Warn("feedback rolled back", "item_id", in.ItemID, "type", kind, "error", err)
		return nil, storageErr("handle feedback", err)
	}

	log.Info("feedback applied",
		"item_id", in.ItemID,
		"type", kind,
		"weight", result.Entry.InteractionWeight,
		"countdown_hours", result.Entry.ReminderCountdownHours,
		"delta", result.Delta,
	)

	if kind == Report && e.reportHook != nil {
		e.reportHook.ItemReported(ctx, id.UserID, in.ItemID, comment)
	}
	return &result, nil
}
