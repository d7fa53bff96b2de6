package engine

import (
	"context"
	"strings"
	"time"

	"github.com/lazypower/discover/internal/auth"
	"github.com/lazypower/discover/internal/store"
)

// PersonalizedFeed returns up to limit public items in category that the
// caller has not favorited, disliked or reported. Items closest to
// resurfacing come first (never-rated items count as due now), then the
// most community-validated. limit <= 0 selects the default page size.
func (e *Engine) PersonalizedFeed(ctx context.Context, id *auth.Identity, category string, limit int) ([]store.FeedRow, error) {
	if id == nil || id.UserID == "" {
		return nil, ErrUnauthenticated
	}
	category, err := validateCategory(category)
	if err != nil {
		return nil, err
	}
	limit = e.clampLimit(limit)

	rows, err := e.DB.ListFeed(ctx, id.UserID, category, limit)
	if err != nil {
		return nil, storageErr("personalized feed", err)
	}
	e.logFor(ctx).Debug("feed served", "category", category, "limit", limit, "count", len(rows))
	return rows, nil
}

func (e *Engine) clampLimit(limit int) int {
	if limit <= 0 {
		return e.defaultLimit
	}
	if limit > e.maxLimit {
		return e.maxLimit
	}
	return limit
}

// FavoriteItem is a favorited item still inside its expiry window.
type FavoriteItem struct {
	store.FeedRow
	ExpiresAt time.Time
}

const day = 24 * time.Hour

// favoriteTiers maps a minimum weight to how long a favorite stays listed
// after its last interaction. Ordered from the highest tier down.
var favoriteTiers = []struct {
	minWeight float64
	window    time.Duration
}{
	{50, 30 * day},
	{45, 20 * day},
	{40, 15 * day},
	{35, 10 * day},
	{30, 7 * day},
	{25, 5 * day},
	{20, 3 * day},
	{15, 2 * day},
	{10, 1 * day},
}

// tierWindow returns the listing window for a favorite of weight w. Zero
// means already expired.
func tierWindow(w float64) time.Duration {
	for _, t := range favoriteTiers {
		if w >= t.minWeight {
			return t.window
		}
	}
	return 0
}

// Favorites returns the caller's favorites whose window has not elapsed,
// ordered by weight descending then title. An empty category means all.
func (e *Engine) Favorites(ctx context.Context, id *auth.Identity, category string) ([]FavoriteItem, error) {
	if id == nil || id.UserID == "" {
		return nil, ErrUnauthenticated
	}

	category = strings.TrimSpace(category)
	rows, err := e.DB.ListFavorites(ctx, id.UserID, category)
	if err != nil {
		return nil, storageErr("favorites", err)
	}

	now := e.now()
	out := make([]FavoriteItem, 0, len(rows))
	for _, r := range rows {
		if r.Feedback == nil {
			continue
		}
		window := tierWindow(r.Feedback.InteractionWeight)
		if window == 0 {
			continue
		}
		expires := time.UnixMilli(r.Feedback.UpdatedAt).Add(window)
		if !expires.After(now) {
			continue
		}
		out = append(out, FavoriteItem{FeedRow: r, ExpiresAt: expires})
	}

	e.logFor(ctx).Debug("favorites served", "category", category, "candidates", len(rows), "count", len(out))
	return out, nil
}
