package engine

import "math"

// Weight bounds for a single user's preference on a single item.
const (
	MinWeight = -100.0
	MaxWeight = 100.0
)

// Reminder countdowns, in hours.
const (
	resurfaceCountdown   = 1440.0  // 60 days
	indifferentSeed      = 48.0    // first-time "indifferent"
	indifferentCap       = 4320.0  // 180 days
	suppressionCountdown = 87600.0 // ~10 years
)

const (
	favoriteFloor     = 10.0
	favoriteStep      = 5.0
	likeStep          = 1.0
	indifferentStep   = 0.25
	suppressionWeight = MinWeight
)

// scoreState is the part of a feedback entry an interaction rewrites.
type scoreState struct {
	Weight    float64
	Countdown float64
}

// applyInteraction returns the post-interaction state. prev is nil when the
// user has no entry for the item yet. The result is already clamped.
//
// Interactions reinforce: applying "like" twice adds 2, it does not set 1.
func applyInteraction(prev *scoreState, kind InteractionType) scoreState {
	old := scoreState{}
	if prev != nil {
		old = *prev
	}

	var next scoreState
	switch kind {
	case Favorite:
		next = scoreState{Weight: math.Max(favoriteFloor, old.Weight+favoriteStep), Countdown: resurfaceCountdown}
	case Like:
		next = scoreState{Weight: old.Weight + likeStep, Countdown: resurfaceCountdown}
	case Indifferent:
		countdown := indifferentSeed
		if prev != nil {
			countdown = math.Min(old.Countdown*2, indifferentCap)
		}
		next = scoreState{Weight: old.Weight - indifferentStep, Countdown: countdown}
	case Dislike, Report:
		next = scoreState{Weight: suppressionWeight, Countdown: suppressionCountdown}
	default:
		return old
	}

	next.Weight = clampWeight(next.Weight)
	if next.Countdown < 0 {
		next.Countdown = 0
	}
	return next
}

func clampWeight(w float64) float64 {
	switch {
	case math.IsNaN(w):
		return 0
	case w < MinWeight:
		return MinWeight
	case w > MaxWeight:
		return MaxWeight
	}
	return w
}
