package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elobot/ladder-system/models"
)

func TestSweepClosesExpiredMatchesAsDraw(t *testing.T) {
	players := newFakePlayerRepo()
	matches := newFakeMatchRepo()
	draft := &fakeDraft{}
	notifier := newFakeNotifier()
	svc := NewSweeperService(players, matches, draft, notifier, testLogger(), time.Hour)
	ctx := context.Background()

	players.addPlayer("slow1", map[models.Mode]int{models.ModeMotS: 1200})
	players.addPlayer("slow2", map[models.Mode]int{models.ModeMotS: 1000})
	players.addPlayer("fresh1", nil)
	players.addPlayer("fresh2", nil)

	stale := &models.Match{
		Mode:      models.ModeMotS,
		Player1:   "slow1",
		Player2:   "slow2",
		Status:    models.MatchStatusInProgress,
		Type:      models.MatchTypeLadder,
		StartTime: time.Now().Add(-2 * time.Hour),
	}
	require.NoError(t, matches.Create(ctx, stale))

	recent := &models.Match{
		Mode:      models.ModeStation5F,
		Player1:   "fresh1",
		Player2:   "fresh2",
		Status:    models.MatchStatusInProgress,
		Type:      models.MatchTypeLadder,
		StartTime: time.Now(),
	}
	require.NoError(t, matches.Create(ctx, recent))

	closed, err := svc.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, closed)

	// Просроченный матч закрыт ничьёй 0-0, черкание снято.
	stored, err := matches.GetByID(ctx, stale.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MatchStatusVerified, stored.Status)
	assert.Equal(t, 0, *stored.Player1Score)
	assert.Equal(t, 0, *stored.Player2Score)
	assert.Contains(t, draft.cancelled, stale.ID)

	// Ничья применяется с полным пересчётом: фаворит теряет очки.
	p1, _ := players.GetByNickname(ctx, "slow1")
	p2, _ := players.GetByNickname(ctx, "slow2")
	assert.Less(t, p1.EloMotS, 1200)
	assert.Greater(t, p2.EloMotS, 1000)
	assert.Equal(t, 1, p1.Ties)
	assert.Equal(t, 1, p1.TiesMotS)
	assert.Equal(t, 1, p2.Ties)

	assert.Contains(t, notifier.playerEvents("slow1"), EventMatchExpired)
	assert.Contains(t, notifier.playerEvents("slow2"), EventMatchExpired)

	// Свежий матч не тронут.
	stored, err = matches.GetByID(ctx, recent.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MatchStatusInProgress, stored.Status)

	// Повторный проход ничего не закрывает.
	closed, err = svc.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, closed)
}
