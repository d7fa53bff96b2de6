package server

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/lazypower/discover/internal/auth"
	"github.com/lazypower/discover/internal/engine"
	"github.com/lazypower/discover/internal/store"
)

const maxBodyBytes = 64 << 10

type itemJSON struct {
	ID            int64    `json:"id"`
	Title         string   `json:"title"`
	Description   string   `json:"description,omitempty"`
	Category      string   `json:"category"`
	ImageURLs     []string `json:"imageUrls"`
	IsPublic      bool     `json:"isPublic"`
	OwnerID       string   `json:"ownerId"`
	OverallWeight float64  `json:"overallWeight"`
}

type feedbackJSON struct {
	ItemID                 int64     `json:"itemId"`
	InteractionWeight      float64   `json:"interactionWeight"`
	ReminderCountdownHours float64   `json:"reminderCountdownHours"`
	LastInteractionType    string    `json:"lastInteractionType,omitempty"`
	LastRecalculatedAt     time.Time `json:"lastRecalculatedAt"`
	Comment                string    `json:"comment,omitempty"`
	UpdatedAt              time.Time `json:"updatedAt"`
}

type feedItemJSON struct {
	itemJSON
	Feedback *feedbackJSON `json:"feedback"`
}

type favoriteJSON struct {
	itemJSON
	Feedback  feedbackJSON `json:"feedback"`
	ExpiresAt time.Time    `json:"expiresAt"`
}

func toItemJSON(it store.Item) itemJSON {
	images := it.ImageURLs
	if images == nil {
		images = []string{}
	}
	return itemJSON{
		ID:            it.ID,
		Title:         it.Title,
		Description:   it.Description,
		Category:      it.Category,
		ImageURLs:     images,
		IsPublic:      it.IsPublic,
		OwnerID:       it.OwnerID,
		OverallWeight: it.OverallWeight,
	}
}

func toFeedbackJSON(f store.Feedback) feedbackJSON {
	return feedbackJSON{
		ItemID:                 f.ItemID,
		InteractionWeight:      f.InteractionWeight,
		ReminderCountdownHours: f.ReminderCountdownHours,
		LastInteractionType:    f.LastInteractionType,
		LastRecalculatedAt:     time.UnixMilli(f.LastRecalculatedAt).UTC(),
		Comment:                f.Comment,
		UpdatedAt:              time.UnixMilli(f.UpdatedAt).UTC(),
	}
}

func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ItemID          int64  `json:"itemId"`
		InteractionType string `json:"interactionType"`
		Comment         string `json:"comment"`
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, r, s.log, badRequest("read body failed"))
		return
	}
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, r, s.log, badRequest("invalid json"))
		return
	}

	res, err := s.engine.HandleFeedback(r.Context(), auth.FromContext(r.Context()), engine.FeedbackInput{
		ItemID:          req.ItemID,
		InteractionType: req.InteractionType,
		Comment:         req.Comment,
	})
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"feedback":      toFeedbackJSON(res.Entry),
		"delta":         res.Delta,
		"overallWeight": res.OverallWeight,
	})
}

func (s *Server) handleRecalculate(w http.ResponseWriter, r *http.Request) {
	n, err := s.engine.RecalculateFeedCountdown(r.Context(), auth.FromContext(r.Context()))
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"updated": n})
}

func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	id := auth.FromContext(r.Context())
	category := r.URL.Query().Get("category")

	limit := 0
	if l := r.URL.Query().Get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n < 0 {
			writeError(w, r, s.log, badRequest("limit must be a non-negative integer"))
			return
		}
		limit = n
	}

	if s.recalculateOnFeed && category != "" {
		if _, err := s.engine.RecalculateFeedCountdown(r.Context(), id); err != nil {
			writeError(w, r, s.log, err)
			return
		}
	}

	rows, err := s.engine.PersonalizedFeed(r.Context(), id, category, limit)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}

	out := make([]feedItemJSON, len(rows))
	for i, row := range rows {
		out[i] = feedItemJSON{itemJSON: toItemJSON(row.Item)}
		if row.Feedback != nil {
			fb := toFeedbackJSON(*row.Feedback)
			out[i].Feedback = &fb
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"category": category,
		"count":    len(out),
		"items":    out,
	})
}

func (s *Server) handleFavorites(w http.ResponseWriter, r *http.Request) {
	category := r.URL.Query().Get("category")

	favs, err := s.engine.Favorites(r.Context(), auth.FromContext(r.Context()), category)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}

	out := make([]favoriteJSON, len(favs))
	for i, f := range favs {
		out[i] = favoriteJSON{
			itemJSON:  toItemJSON(f.Item),
			Feedback:  toFeedbackJSON(*f.Feedback),
			ExpiresAt: f.ExpiresAt.UTC(),
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"count": len(out),
		"items": out,
	})
}
