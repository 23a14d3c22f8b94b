// Package interval computes spaced-repetition review dates from an extended fixed-interval
// table, scaled by item difficulty and the user's tracking intensity.
package interval

import (
	"math"
	"time"

	types "github.com/yungbote/neurobridge-mastery/internal/domain/mastery"
)

// BaseIntervalsDays is indexed by review step.
var BaseIntervalsDays = [...]int{1, 3, 7, 21, 60, 180}

const (
	DefaultDifficultyRating = 3
	minDifficultyRating     = 1
	maxDifficultyRating     = 5

	minDifficultyMultiplier = 0.5
	maxDifficultyMultiplier = 2.0
)

// Result is the outcome of scheduling one review. NewReviewCount is the step index to pass
// on the next attempt.
type Result struct {
	NextReviewAt   time.Time
	NewReviewCount int
	IntervalDays   int
}

// ComputeNextReview schedules the next review after an attempt at step reviewCount.
//
// A correct answer uses the interval for the current step and advances one step. An
// incorrect answer drops back one step (never below 0) and uses that step's interval.
// A rating of 0 means "not rated" and is treated as 3.
func ComputeNextReview(now time.Time, reviewCount int, isCorrect bool, difficultyRating int, intensity types.TrackingIntensity) Result {
	if reviewCount < 0 {
		reviewCount = 0
	}
	step := reviewCount
	next := reviewCount + 1
	if !isCorrect {
		step = reviewCount - 1
		if step < 0 {
			step = 0
		}
		next = step
	}
	days := IntervalDays(step, difficultyRating, intensity)
	return Result{
		NextReviewAt:   now.AddDate(0, 0, days),
		NewReviewCount: next,
		IntervalDays:   days,
	}
}

// IntervalDays returns max(1, round(base[step] * difficulty * intensity)).
func IntervalDays(step int, difficultyRating int, intensity types.TrackingIntensity) int {
	base := float64(BaseIntervalsDays[stepIndex(step)])
	days := int(math.Round(base * DifficultyMultiplier(difficultyRating) * IntensityMultiplier(intensity)))
	if days < 1 {
		return 1
	}
	return days
}

// DifficultyMultiplier maps a 1-5 rating to clamp(1 + (rating-3)*0.1, 0.5, 2.0).
func DifficultyMultiplier(rating int) float64 {
	if rating == 0 {
		rating = DefaultDifficultyRating
	}
	if rating < minDifficultyRating {
		rating = minDifficultyRating
	}
	if rating > maxDifficultyRating {
		rating = maxDifficultyRating
	}
	m := 1 + float64(rating-3)*0.1
	return math.Max(minDifficultyMultiplier, math.Min(maxDifficultyMultiplier, m))
}

func IntensityMultiplier(intensity types.TrackingIntensity) float64 {
	switch types.ParseTrackingIntensity(string(intensity)) {
	case types.IntensityDense:
		return 0.7
	case types.IntensitySparse:
		return 1.5
	default:
		return 1.0
	}
}

func stepIndex(step int) int {
	if step < 0 {
		return 0
	}
	if last := len(BaseIntervalsDays) - 1; step > last {
		return last
	}
	return step
}
