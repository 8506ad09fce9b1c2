package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elobot/ladder-system/models"
)

func newDraftForTest(t *testing.T, turnTimeout time.Duration) (DraftCoordinator, *fakeMatchRepo, *fakeNotifier) {
	t.Helper()
	matches := newFakeMatchRepo()
	notifier := newFakeNotifier()
	coord := NewDraftCoordinator(matches, notifier, testLogger(), turnTimeout)
	return coord, matches, notifier
}

func startDraftMatch(t *testing.T, coord DraftCoordinator, matches *fakeMatchRepo) *models.Match {
	t.Helper()
	match := &models.Match{
		Mode:      models.ModeMotS,
		Player1:   "alice",
		Player2:   "bob",
		Status:    models.MatchStatusInProgress,
		Type:      models.MatchTypeLadder,
		StartTime: time.Now(),
	}
	require.NoError(t, matches.Create(context.Background(), match))
	require.NoError(t, coord.Start(context.Background(), match))
	return match
}

func TestDraftAlternatesTurnsAndResolves(t *testing.T) {
	coord, matches, notifier := newDraftForTest(t, time.Minute)
	match := startDraftMatch(t, coord, matches)
	ctx := context.Background()

	sess, ok := coord.Session(match.ID)
	require.True(t, ok)
	require.Len(t, sess.RemainingMaps, len(models.MapPool))
	assert.Equal(t, "alice", sess.CurrentPlayer)

	// Игроки поочерёдно вычеркивают карты, пока не останется одна.
	current := "alice"
	for len(sess.RemainingMaps) > 1 {
		struck := sess.RemainingMaps[0]
		sess, _ = coord.Strike(ctx, match.ID, current, struck)
		require.NotNil(t, sess)
		if current == "alice" {
			current = "bob"
		} else {
			current = "alice"
		}
	}

	// Всего ходов N-1; после завершения сессии нет.
	_, ok = coord.Session(match.ID)
	assert.False(t, ok)

	// Выбранная карта записана в матч.
	stored, err := matches.GetByID(ctx, match.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.Map)
	assert.Equal(t, sess.RemainingMaps[0], *stored.Map)

	assert.Contains(t, notifier.playerEvents("alice"), EventDraftResolved)
	assert.Contains(t, notifier.playerEvents("bob"), EventDraftResolved)

	// Каждому игроку в уведомлении о завершении назван его соперник.
	alicePayload, isMap := notifier.lastPlayerPayload("alice").(map[string]interface{})
	require.True(t, isMap)
	assert.Equal(t, "bob", alicePayload["opponent"])
	bobPayload, isMap := notifier.lastPlayerPayload("bob").(map[string]interface{})
	require.True(t, isMap)
	assert.Equal(t, "alice", bobPayload["opponent"])
}

func TestDraftRejectsWrongActor(t *testing.T) {
	coord, matches, _ := newDraftForTest(t, time.Minute)
	match := startDraftMatch(t, coord, matches)
	ctx := context.Background()

	_, err := coord.Strike(ctx, match.ID, "stranger", models.MapPool[0])
	assert.ErrorIs(t, err, ErrNotAParticipant)

	// Ход первого игрока, второй ждёт.
	_, err = coord.Strike(ctx, match.ID, "bob", models.MapPool[0])
	assert.ErrorIs(t, err, ErrNotYourTurn)

	_, err = coord.Strike(ctx, match.ID, "alice", "нет такой карты")
	assert.ErrorIs(t, err, ErrMapNotInPool)

	_, err = coord.Strike(ctx, 9999, "alice", models.MapPool[0])
	assert.ErrorIs(t, err, ErrNoActiveDraft)
}

func TestDraftTimeoutStrikesAutomatically(t *testing.T) {
	coord, matches, _ := newDraftForTest(t, 20*time.Millisecond)
	match := startDraftMatch(t, coord, matches)

	// Никто не ходит: таймауты вычеркивают карты до конца черкания.
	require.Eventually(t, func() bool {
		_, ok := coord.Session(match.ID)
		return !ok
	}, 2*time.Second, 10*time.Millisecond)

	stored, err := matches.GetByID(context.Background(), match.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.Map)
	assert.Contains(t, models.MapPool, *stored.Map)
}

func TestDraftCancelStopsSession(t *testing.T) {
	coord, matches, _ := newDraftForTest(t, time.Minute)
	match := startDraftMatch(t, coord, matches)

	coord.Cancel(match.ID)
	_, ok := coord.Session(match.ID)
	assert.False(t, ok)

	// Отмена несуществующей сессии не паникует.
	coord.Cancel(match.ID)

	stored, err := matches.GetByID(context.Background(), match.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.Map)
}
