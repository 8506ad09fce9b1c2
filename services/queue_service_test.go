package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elobot/ladder-system/models"
)

func newQueueForTest(t *testing.T) (QueueService, *fakePlayerRepo, *fakeMatchRepo, *fakeDraft, *fakeNotifier) {
	t.Helper()
	players := newFakePlayerRepo()
	matches := newFakeMatchRepo()
	draft := &fakeDraft{}
	notifier := newFakeNotifier()
	svc := NewQueueService(players, matches, draft, notifier, testLogger())
	return svc, players, matches, draft, notifier
}

func TestEnqueueUnknownPlayer(t *testing.T) {
	svc, _, _, _, _ := newQueueForTest(t)

	err := svc.Enqueue(context.Background(), "ghost", models.ModeStation5F, "")
	assert.ErrorIs(t, err, ErrPlayerNotFound)
}

func TestEnqueueBannedAndBlacklisted(t *testing.T) {
	svc, players, _, _, _ := newQueueForTest(t)
	ctx := context.Background()

	players.addPlayer("banned", nil)
	require.NoError(t, players.SetBanned(ctx, "banned", true))
	assert.ErrorIs(t, svc.Enqueue(ctx, "banned", models.ModeStation5F, ""), ErrPlayerBanned)

	players.addPlayer("listed", nil)
	require.NoError(t, players.SetBlacklisted(ctx, "listed", true))
	assert.ErrorIs(t, svc.Enqueue(ctx, "listed", models.ModeStation5F, ""), ErrPlayerBlacklisted)
}

func TestEnqueueTwiceRejected(t *testing.T) {
	svc, players, _, _, _ := newQueueForTest(t)
	ctx := context.Background()

	players.addPlayer("solo", nil)
	require.NoError(t, svc.Enqueue(ctx, "solo", models.ModeStation5F, ""))
	// Повторный вход в любую очередь запрещён, пока игрок уже стоит.
	assert.ErrorIs(t, svc.Enqueue(ctx, "solo", models.ModeMotS, ""), ErrAlreadyQueued)
}

func TestEnqueueWithActiveMatchRejected(t *testing.T) {
	svc, players, matches, _, _ := newQueueForTest(t)
	ctx := context.Background()

	players.addPlayer("busy", nil)
	require.NoError(t, matches.Create(ctx, &models.Match{
		Mode:      models.ModeStation5F,
		Player1:   "busy",
		Player2:   "other",
		Status:    models.MatchStatusInProgress,
		Type:      models.MatchTypeLadder,
		StartTime: time.Now(),
	}))

	assert.ErrorIs(t, svc.Enqueue(ctx, "busy", models.ModeStation5F, ""), ErrActiveMatchExists)
}

func TestDequeueIsIdempotent(t *testing.T) {
	svc, players, _, _, _ := newQueueForTest(t)
	ctx := context.Background()

	players.addPlayer("inout", nil)
	require.NoError(t, svc.Enqueue(ctx, "inout", models.ModeStation5F, ""))
	require.NoError(t, svc.Dequeue(ctx, "inout"))
	require.NoError(t, svc.Dequeue(ctx, "inout"))

	depths := svc.Depths()
	assert.Equal(t, 0, depths[models.ModeStation5F])

	// После выхода из очереди можно встать снова.
	assert.NoError(t, svc.Enqueue(ctx, "inout", models.ModeStation5F, ""))
}

func TestPairingPicksClosestRating(t *testing.T) {
	svc, players, _, _, notifier := newQueueForTest(t)
	ctx := context.Background()

	players.addPlayer("first", map[models.Mode]int{models.ModeStation5F: 1000})
	players.addPlayer("far", map[models.Mode]int{models.ModeStation5F: 1400})
	players.addPlayer("near", map[models.Mode]int{models.ModeStation5F: 1050})

	require.NoError(t, svc.Enqueue(ctx, "first", models.ModeStation5F, ""))
	require.NoError(t, svc.Enqueue(ctx, "far", models.ModeStation5F, ""))
	require.NoError(t, svc.Enqueue(ctx, "near", models.ModeStation5F, ""))

	created, err := svc.RunPairingPass(ctx)
	require.NoError(t, err)
	require.Len(t, created, 1)

	match := created[0]
	assert.Equal(t, "first", match.Player1)
	assert.Equal(t, "near", match.Player2)
	assert.Equal(t, models.ModeStation5F, match.Mode)
	assert.Contains(t, notifier.playerEvents("first"), EventMatchCreated)
	assert.Contains(t, notifier.playerEvents("near"), EventMatchCreated)

	// Третий остался ждать следующего прохода.
	assert.Equal(t, 1, svc.Depths()[models.ModeStation5F])
}

func TestPairingOnePairPerModePerPass(t *testing.T) {
	svc, players, _, _, _ := newQueueForTest(t)
	ctx := context.Background()

	for _, nickname := range []string{"a", "b", "c", "d"} {
		players.addPlayer(nickname, nil)
		require.NoError(t, svc.Enqueue(ctx, nickname, models.ModeStation5F, ""))
	}

	created, err := svc.RunPairingPass(ctx)
	require.NoError(t, err)
	assert.Len(t, created, 1)

	created, err = svc.RunPairingPass(ctx)
	require.NoError(t, err)
	assert.Len(t, created, 1)
	assert.Equal(t, 0, svc.Depths()[models.ModeStation5F])
}

func TestAnyQueueBridgesIntoConcreteMode(t *testing.T) {
	svc, players, _, draft, _ := newQueueForTest(t)
	ctx := context.Background()

	players.addPlayer("flex", nil)
	players.addPlayer("mots-main", nil)

	require.NoError(t, svc.Enqueue(ctx, "flex", models.ModeAny, ""))
	require.NoError(t, svc.Enqueue(ctx, "mots-main", models.ModeMotS, ""))

	created, err := svc.RunPairingPass(ctx)
	require.NoError(t, err)
	require.Len(t, created, 1)

	// Матч принимает режим конкретной очереди партнёра.
	match := created[0]
	assert.Equal(t, models.ModeMotS, match.Mode)
	assert.ElementsMatch(t, []string{"flex", "mots-main"}, []string{match.Player1, match.Player2})

	// MotS требует черкания карт.
	assert.Contains(t, draft.startedMatches(), match.ID)
}

func TestAnyQueuePairsWithinItself(t *testing.T) {
	svc, players, _, _, _ := newQueueForTest(t)
	ctx := context.Background()

	players.addPlayer("any1", nil)
	players.addPlayer("any2", nil)

	require.NoError(t, svc.Enqueue(ctx, "any1", models.ModeAny, ""))
	require.NoError(t, svc.Enqueue(ctx, "any2", models.ModeAny, ""))

	created, err := svc.RunPairingPass(ctx)
	require.NoError(t, err)
	require.Len(t, created, 1)

	// Режим назначается случайно, но всегда конкретный.
	assert.Contains(t, models.ConcreteModes, created[0].Mode)
	assert.Equal(t, 0, svc.Depths()[models.ModeAny])
}

func TestPairingSkipsPlayersWithUnresolvedMatch(t *testing.T) {
	svc, players, matches, _, _ := newQueueForTest(t)
	ctx := context.Background()

	players.addPlayer("stuck", nil)
	players.addPlayer("free", nil)

	require.NoError(t, svc.Enqueue(ctx, "stuck", models.ModeStation5F, ""))
	require.NoError(t, svc.Enqueue(ctx, "free", models.ModeStation5F, ""))

	// Матч появился уже после входа в очередь (например, турнирный пайплайн
	// и ладдер пересеклись) — пара в этом проходе не должна составиться.
	require.NoError(t, matches.Create(ctx, &models.Match{
		Mode:      models.ModeStation5F,
		Player1:   "stuck",
		Player2:   "elsewhere",
		Status:    models.MatchStatusAwaitingConfirmation,
		Type:      models.MatchTypeLadder,
		StartTime: time.Now(),
	}))

	created, err := svc.RunPairingPass(ctx)
	require.NoError(t, err)
	assert.Empty(t, created)
}
