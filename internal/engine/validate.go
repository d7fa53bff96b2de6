package engine

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// InteractionType is the categorical signal a user gives about an item.
type InteractionType string

const (
	Favorite    InteractionType = "favorite"
	Like        InteractionType = "like"
	Indifferent InteractionType = "indifferent"
	Dislike     InteractionType = "dislike"
	Report      InteractionType = "report"
)

var validInteractions = map[InteractionType]bool{
	Favorite:    true,
	Like:        true,
	Indifferent: true,
	Dislike:     true,
	Report:      true,
}

// Interactions whose weight is permanent until a new interaction replaces it.
var nonDecaying = map[InteractionType]bool{
	Favorite: true,
	Dislike:  true,
	Report:   true,
}

// maxCommentChars bounds the free-text comment stored with feedback, in runes.
const maxCommentChars = 2000

// ParseInteractionType validates raw against the interaction enum.
// Matching is exact after trimming whitespace.
func ParseInteractionType(raw string) (InteractionType, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("%w: interactionType is required", ErrValidation)
	}
	t := InteractionType(raw)
	if !validInteractions[t] {
		return "", fmt.Errorf("%w: invalid interactionType %q", ErrValidation, raw)
	}
	return t, nil
}

// Decays reports whether weight for this last interaction is pulled toward
// zero by decay passes. An empty type (no interaction yet) decays.
func (t InteractionType) Decays() bool {
	return !nonDecaying[t]
}

// validateFeedback checks and normalizes ingestion input.
func validateFeedback(in FeedbackInput) (InteractionType, string, error) {
	if in.ItemID <= 0 {
		return "", "", fmt.Errorf("%w: itemId is required", ErrValidation)
	}
	kind, err := ParseInteractionType(in.InteractionType)
	if err != nil {
		return "", "", err
	}
	return kind, truncateClean(strings.TrimSpace(in.Comment), maxCommentChars), nil
}

func validateCategory(category string) (string, error) {
	category = strings.TrimSpace(category)
	if category == "" {
		return "", fmt.Errorf("%w: category is required", ErrValidation)
	}
	return category, nil
}

// truncateClean truncates a string to maxLen runes, cutting at the last word
// boundary to avoid mid-word breaks. The result is always valid UTF-8 when
// the input is.
func truncateClean(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}

	runes := []rune(s)[:maxLen]
	// Back up to last space
	for i := len(runes) - 1; i > maxLen-200 && i > 0; i-- {
		if unicode.IsSpace(runes[i]) {
			runes = runes[:i]
			break
		}
	}
	return strings.TrimSpace(string(runes))
}
