package rating

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateEqualRatingsWin(t *testing.T) {
	newA, newB := Rate(1000, 1000, OutcomeWin)

	// Equal ratings: expected score 0.5, delta = 40*0.5*weight, weight = 4000/5000.
	assert.Equal(t, 1016, newA)
	assert.Equal(t, 984, newB)
}

func TestRateDeterministic(t *testing.T) {
	a1, b1 := Rate(1234, 987, OutcomeWin)
	a2, b2 := Rate(1234, 987, OutcomeWin)
	assert.Equal(t, a1, a2)
	assert.Equal(t, b1, b2)
}

func TestRateWinIncreasesWinnerDecreasesLoser(t *testing.T) {
	cases := [][2]int{
		{1000, 1000},
		{800, 1500},
		{2500, 900},
		{1, 1},
		{4000, 4000},
	}
	for _, c := range cases {
		newA, newB := Rate(c[0], c[1], OutcomeWin)
		assert.Greater(t, newA, c[0], "winner %d vs %d", c[0], c[1])
		assert.Less(t, newB, c[1], "loser %d vs %d", c[0], c[1])
	}
}

func TestRateLossMirrorsWin(t *testing.T) {
	winA, winB := Rate(1100, 900, OutcomeWin)
	lossB, lossA := Rate(900, 1100, OutcomeLoss)
	assert.Equal(t, winA, lossA)
	assert.Equal(t, winB, lossB)
}

func TestRateDrawFavorsUnderdog(t *testing.T) {
	newA, newB := Rate(1500, 1000, OutcomeDraw)
	assert.Less(t, newA, 1500, "favorite loses rating on a draw")
	assert.Greater(t, newB, 1000, "underdog gains rating on a draw")
}

func TestRateDampeningShrinksDelta(t *testing.T) {
	// Same expected score in both pairings (equal ratings), but the
	// higher-rated pair moves less because of the dampening weight.
	lowA, _ := Rate(500, 500, OutcomeWin)
	highA, _ := Rate(3500, 3500, OutcomeWin)

	lowDelta := lowA - 500
	highDelta := highA - 3500
	require.Greater(t, lowDelta, 0)
	require.Greater(t, highDelta, 0)
	assert.Greater(t, lowDelta, highDelta)
}

func TestAggregate(t *testing.T) {
	assert.Equal(t, 3000, Aggregate(1000, 1000, 1000))
	assert.Equal(t, 3579, Aggregate(1200, 1379, 1000))
}
