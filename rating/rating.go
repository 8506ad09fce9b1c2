// Package rating implements the ladder's ELO variant: a logistic
// expected-score model with a dampening weight that shrinks the effective
// K-factor as a player's rating grows, bounding inflation at the top.
package rating

import "math"

const (
	// KFactor — базовый коэффициент изменения рейтинга.
	KFactor = 40
	// Sensitivity — чувствительность логистической кривой.
	Sensitivity = 400
	// MaxRating bounds the dampening weight: weight = MaxRating/(MaxRating+r).
	MaxRating = 4000
)

// Outcome of a match from player A's point of view.
const (
	OutcomeWin  = 1.0
	OutcomeLoss = 0.0
	OutcomeDraw = 0.5
)

// Rate computes new ratings for both players given the outcome for A.
// Pure and total for ratings >= 0; results are rounded to the nearest
// integer.
func Rate(ratingA, ratingB int, outcome float64) (int, int) {
	a := float64(ratingA)
	b := float64(ratingB)

	expectedA := 1 / (1 + math.Pow(10, (b-a)/Sensitivity))
	expectedB := 1 - expectedA

	weightA := MaxRating / (MaxRating + a)
	weightB := MaxRating / (MaxRating + b)

	newA := a + KFactor*(outcome-expectedA)*weightA
	newB := b + KFactor*((1-outcome)-expectedB)*weightB

	return int(math.Round(newA)), int(math.Round(newB))
}

// Aggregate recomputes the summary rating from the three mode ratings.
// Callers must persist it whenever any mode rating changes.
func Aggregate(station5f, mots, twelveMin int) int {
	return station5f + mots + twelveMin
}
