// Decay algorithm, applied per feedback entry on each pass:
//   - hours = now - lastRecalculatedAt, never negative
//   - countdown burns down at 2^(weight/10) hours per hour, floor 0;
//     strongly liked items exhaust their window faster
//   - weight of decaying types moves toward zero by U[0.025, 0.125)
//     per elapsed day; a pass that would cross zero snaps to exactly 0
//   - favorite, dislike and report weights never decay
//   - a pass with zero elapsed time changes nothing
package engine

import (
	"context"
	"math"

	"github.com/lazypower/discover/internal/auth"
	"github.com/lazypower/discover/internal/store"
)

const msPerHour = float64(60 * 60 * 1000)

// decayEntry computes the post-pass weight and countdown for one entry.
func decayEntry(f store.Feedback, nowMs int64, rnd RandomSource) scoreState {
	cur := scoreState{Weight: f.InteractionWeight, Countdown: f.ReminderCountdownHours}

	hours := float64(nowMs-f.LastRecalculatedAt) / msPerHour
	if hours <= 0 {
		return cur
	}

	multiplier := math.Pow(2, cur.Weight/10)
	countdown := math.Max(0, cur.Countdown-hours*multiplier)

	weight := cur.Weight
	if InteractionType(f.LastInteractionType).Decays() && weight != 0 {
		dailyRate := 0.1 * (0.25 + rnd.Float64())
		amount := dailyRate * hours / 24
		sign := math.Copysign(1, weight)
		weight -= sign * amount
		if math.Copysign(1, weight) != sign {
			weight = 0
		}
	}

	return scoreState{Weight: clampWeight(weight), Countdown: countdown}
}

// RecalculateFeedCountdown runs one decay pass over every entry the caller
// owns and returns how many entries were written. Safe to call redundantly:
// a second call immediately after the first sees no elapsed time.
func (e *Engine) RecalculateFeedCountdown(ctx context.Context, id *auth.Identity) (int, error) {
	if id == nil || id.UserID == "" {
		return 0, ErrUnauthenticated
	}
	return e.recalculateUser(ctx, id.UserID)
}

func (e *Engine) recalculateUser(ctx context.Context, userID string) (int, error) {
	entries, err := e.DB.ListFeedbackByUser(ctx, userID)
	if err != nil {
		return 0, storageErr("recalculate: load entries", err)
	}
	if len(entries) == 0 {
		return 0, nil
	}

	now := e.now().UnixMilli()
	updates := make([]store.DecayUpdate, 0, len(entries))
	for _, f := range entries {
		next := decayEntry(f, now, e.random)
		updates = append(updates, store.DecayUpdate{
			ID:                     f.ID,
			InteractionWeight:      next.Weight,
			ReminderCountdownHours: next.Countdown,
			RecalculatedAt:         now,
			Loaded:                 f,
		})
	}

	updated, err := e.DB.ApplyDecay(ctx, updates)
	if err != nil {
		return 0, storageErr("recalculate: apply", err)
	}

	e.logFor(ctx).Debug("decay pass", "user_id", userID, "entries", len(entries), "updated", updated)
	return updated, nil
}

// SweepAll runs a decay pass for every user that owns feedback. A failing
// user is logged and skipped; the returned error is the last failure seen.
func (e *Engine) SweepAll(ctx context.Context) (int, error) {
	users, err := e.DB.ListFeedbackUsers(ctx)
	if err != nil {
		return 0, storageErr("sweep: list users", err)
	}

	total := 0
	var lastErr error
	for _, u := range users {
		if ctx.Err() != nil {
			return total, storageErr("sweep", ctx.Err())
		}
		n, err := e.recalculateUser(ctx, u)
		if err != nil {
			e.logFor(ctx).Warn("sweep: user failed", "user_id", u, "error", err)
			lastErr = err
			continue
		}
		total += n
	}
	return total, lastErr
}
