// Package score turns the five emotion ratings of a day into one composite score.
package score

import (
	"math"

	"github.com/moodlog/emotion-diary/internal/models"
)

// Calibration constants of the composite score.
const (
	offset  = 50.0
	divisor = 8.5
)

// TotalScore computes the composite score of a day:
//
//	raw   = 2*joy + 1.5*calmness - 2*sadness - 1.5*anxiety - 1.5*anger + 50
//	total = round(raw/8.5, 2)
//
// Rounding is half away from zero at the second decimal. Ratings are not validated or
// clamped; keeping them in [0,10] is the caller's job.
func TotalScore(r models.EmotionRatings) float64 {
	raw := 2*float64(r.Joy) + 1.5*float64(r.Calmness) -
		2*float64(r.Sadness) - 1.5*float64(r.Anxiety) - 1.5*float64(r.Anger) + offset
	return Round2(raw / divisor)
}

// Round2 rounds to two decimals, half away from zero.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Tier is the display bucket of a score
type Tier string

const (
	TierBest    Tier = "best"
	TierGood    Tier = "good"
	TierNeutral Tier = "neutral"
	TierLow     Tier = "low"
)

// TierFor buckets a score: >=8 best, >=6 good, >=4 neutral, else low.
func TierFor(total float64) Tier {
	switch {
	case total >= 8:
		return TierBest
	case total >= 6:
		return TierGood
	case total >= 4:
		return TierNeutral
	default:
		return TierLow
	}
}

// Emoji returns the face shown next to a tier
func (t Tier) Emoji() string {
	switch t {
	case TierBest:
		return "😄"
	case TierGood:
		return "😊"
	case TierNeutral:
		return "😐"
	default:
		return "😢"
	}
}
