package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elobot/ladder-system/models"
)

func newTournamentForTest(t *testing.T) (TournamentService, *fakeTournamentRepo, *fakeMatchRepo, *fakeNotifier) {
	t.Helper()
	tournaments := newFakeTournamentRepo()
	matches := newFakeMatchRepo()
	notifier := newFakeNotifier()
	svc := NewTournamentService(tournaments, matches, &fakeDraft{}, notifier, testLogger())
	return svc, tournaments, matches, notifier
}

func registerPlayers(t *testing.T, svc TournamentService, tournamentID, count int) {
	t.Helper()
	for i := 1; i <= count; i++ {
		nickname := fmt.Sprintf("player%d", i)
		require.NoError(t, svc.Register(context.Background(), tournamentID, i, nickname))
	}
}

// finishRound отмечает победителем первого игрока каждого незавершённого
// матча текущего раунда.
func finishRound(t *testing.T, svc TournamentService, tournamentID int) {
	t.Helper()
	state, ok := svc.BracketState(tournamentID)
	require.True(t, ok)
	for _, rm := range state.Matches {
		if rm.Finished {
			continue
		}
		require.NoError(t, svc.SetMatchWinner(context.Background(), tournamentID, rm.MatchID, rm.Player1.Nickname))
	}
}

func TestCreateTournamentValidation(t *testing.T) {
	svc, _, _, _ := newTournamentForTest(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, "", 8)
	assert.ErrorIs(t, err, ErrValidationFailed)

	for _, slots := range []int{0, 1, 3, 6, 128} {
		_, err := svc.Create(ctx, "cup", slots)
		assert.ErrorIs(t, err, ErrInvalidSlotCount, "slots=%d", slots)
	}

	first, err := svc.Create(ctx, "cup", 8)
	require.NoError(t, err)
	assert.Equal(t, 8, first.Slots)

	_, err = svc.Create(ctx, "cup", 8)
	assert.ErrorIs(t, err, ErrTournamentNameConflict)
}

func TestRegistrationRules(t *testing.T) {
	svc, _, _, _ := newTournamentForTest(t)
	ctx := context.Background()

	tournament, err := svc.Create(ctx, "cup", 2)
	require.NoError(t, err)

	require.NoError(t, svc.Register(ctx, tournament.ID, 1, "player1"))
	assert.ErrorIs(t, svc.Register(ctx, tournament.ID, 1, "player1"), ErrAlreadyRegistered)

	require.NoError(t, svc.Ban(ctx, tournament.ID, 7))
	assert.ErrorIs(t, svc.Register(ctx, tournament.ID, 7, "banned"), ErrTournamentBanned)

	require.NoError(t, svc.Register(ctx, tournament.ID, 2, "player2"))
	assert.ErrorIs(t, svc.Register(ctx, tournament.ID, 3, "player3"), ErrTournamentFull)

	require.NoError(t, svc.Start(ctx, tournament.ID))
	assert.ErrorIs(t, svc.Register(ctx, tournament.ID, 4, "late"), ErrTournamentStarted)
	assert.ErrorIs(t, svc.Unregister(ctx, tournament.ID, 1), ErrTournamentStarted)
	assert.ErrorIs(t, svc.Start(ctx, tournament.ID), ErrTournamentStarted)
}

func TestStartFiveInEightBracket(t *testing.T) {
	svc, tournaments, matches, _ := newTournamentForTest(t)
	ctx := context.Background()

	tournament, err := svc.Create(ctx, "cup", 8)
	require.NoError(t, err)
	registerPlayers(t, svc, tournament.ID, 5)

	require.NoError(t, svc.Start(ctx, tournament.ID))

	state, ok := svc.BracketState(tournament.ID)
	require.True(t, ok)
	assert.Equal(t, 1, state.CurrentRound)

	// 5 реальных игроков на 8 слотов: две играемые пары и один walkover,
	// без автопрохода и без матч-записей для walkover-а.
	assert.Len(t, state.Matches, 2)
	assert.Len(t, state.Winners, 1)
	created, err := matches.ListByTournament(ctx, tournament.ID)
	require.NoError(t, err)
	assert.Len(t, created, 2)
	for _, m := range created {
		assert.Equal(t, models.MatchTypeTournament, m.Type)
		assert.Equal(t, models.ModeStation5F, m.Mode)
		require.NotNil(t, m.Round)
		assert.Equal(t, 1, *m.Round)
	}

	// Состояние сериализовано для восстановления.
	_, err = tournaments.LoadBracketState(ctx, tournament.ID)
	assert.NoError(t, err)
}

func TestBracketRunsToChampion(t *testing.T) {
	svc, tournaments, _, notifier := newTournamentForTest(t)
	ctx := context.Background()

	tournament, err := svc.Create(ctx, "cup", 8)
	require.NoError(t, err)
	registerPlayers(t, svc, tournament.ID, 5)
	require.NoError(t, svc.Start(ctx, tournament.ID))

	// Раунды завершаются вручную, пока не останется один победитель.
	for round := 0; round < 4; round++ {
		if _, ok := svc.BracketState(tournament.ID); !ok {
			break
		}
		finishRound(t, svc, tournament.ID)
	}

	_, ok := svc.BracketState(tournament.ID)
	assert.False(t, ok, "tournament should be finished")

	// Сетка удалена из хранилища, чемпион объявлен в комнате турнира.
	_, err = tournaments.LoadBracketState(ctx, tournament.ID)
	assert.Error(t, err)
	assert.Contains(t, notifier.tournament[tournament.ID], EventTournamentWinner)
}

func TestSetMatchWinnerValidation(t *testing.T) {
	svc, _, _, _ := newTournamentForTest(t)
	ctx := context.Background()

	tournament, err := svc.Create(ctx, "cup", 2)
	require.NoError(t, err)

	assert.ErrorIs(t, svc.SetMatchWinner(ctx, tournament.ID, 1, "player1"), ErrTournamentNotStarted)

	registerPlayers(t, svc, tournament.ID, 2)
	require.NoError(t, svc.Start(ctx, tournament.ID))

	state, ok := svc.BracketState(tournament.ID)
	require.True(t, ok)
	require.Len(t, state.Matches, 1)
	matchID := state.Matches[0].MatchID

	assert.ErrorIs(t, svc.SetMatchWinner(ctx, tournament.ID, 9999, "player1"), ErrNotTournamentMatch)
	assert.ErrorIs(t, svc.SetMatchWinner(ctx, tournament.ID, matchID, "stranger"), ErrWinnerNotParticipant)

	require.NoError(t, svc.SetMatchWinner(ctx, tournament.ID, matchID, "player1"))

	// Турнир на двоих завершился одним матчем.
	_, ok = svc.BracketState(tournament.ID)
	assert.False(t, ok)
}

func TestOnMatchVerifiedAdvancesBracket(t *testing.T) {
	svc, _, matches, _ := newTournamentForTest(t)
	ctx := context.Background()

	tournament, err := svc.Create(ctx, "cup", 4)
	require.NoError(t, err)
	registerPlayers(t, svc, tournament.ID, 4)
	require.NoError(t, svc.Start(ctx, tournament.ID))

	state, ok := svc.BracketState(tournament.ID)
	require.True(t, ok)
	require.Len(t, state.Matches, 2)

	// Первый матч верифицирован машиной результатов.
	first := state.Matches[0]
	score1, score2 := 2, 0
	require.NoError(t, matches.SetResult(ctx, first.MatchID, score1, score2, 0, 0, models.MatchStatusVerified))
	verified, err := matches.GetByID(ctx, first.MatchID)
	require.NoError(t, err)
	svc.OnMatchVerified(ctx, verified)

	state, ok = svc.BracketState(tournament.ID)
	require.True(t, ok)
	assert.True(t, state.Matches[0].Finished)
	require.NotNil(t, state.Matches[0].Winner)
	assert.Equal(t, first.Player1.Nickname, state.Matches[0].Winner.Nickname)
	assert.False(t, state.Matches[1].Finished)
}

func TestBanDuringBracketClosesMatchAsWalkover(t *testing.T) {
	svc, _, matches, _ := newTournamentForTest(t)
	ctx := context.Background()

	var dropped []int
	svc.SetResultInvalidator(func(matchID int) { dropped = append(dropped, matchID) })

	tournament, err := svc.Create(ctx, "cup", 2)
	require.NoError(t, err)
	registerPlayers(t, svc, tournament.ID, 2)
	require.NoError(t, svc.Start(ctx, tournament.ID))

	state, ok := svc.BracketState(tournament.ID)
	require.True(t, ok)
	require.Len(t, state.Matches, 1)
	banned := state.Matches[0].Player1

	require.NoError(t, svc.Ban(ctx, tournament.ID, banned.PlayerID))

	// Единственный матч закрыт в пользу соперника, турнир завершён.
	stored, err := matches.GetByID(ctx, state.Matches[0].MatchID)
	require.NoError(t, err)
	assert.Equal(t, models.MatchStatusVerified, stored.Status)
	assert.Equal(t, 0, *stored.Player1Score)
	assert.Equal(t, 1, *stored.Player2Score)

	// Неподтверждённый результат закрытого матча сброшен.
	assert.Equal(t, []int{state.Matches[0].MatchID}, dropped)

	_, ok = svc.BracketState(tournament.ID)
	assert.False(t, ok)
}

func TestRecoverReloadsBracketStates(t *testing.T) {
	tournaments := newFakeTournamentRepo()
	matches := newFakeMatchRepo()
	notifier := newFakeNotifier()
	ctx := context.Background()

	saved := &models.BracketState{
		TournamentID: 42,
		CurrentRound: 2,
		Participants: []models.Participant{{PlayerID: 1, Nickname: "p1"}, {PlayerID: 2, Nickname: "p2"}},
	}
	require.NoError(t, tournaments.SaveBracketState(ctx, saved))

	svc := NewTournamentService(tournaments, matches, &fakeDraft{}, notifier, testLogger())
	require.NoError(t, svc.Recover(ctx))

	state, ok := svc.BracketState(42)
	require.True(t, ok)
	assert.Equal(t, 2, state.CurrentRound)
	assert.Len(t, state.Participants, 2)
}

func TestFailedMatchCreationKeepsPairInRound(t *testing.T) {
	svc, _, matches, _ := newTournamentForTest(t)
	ctx := context.Background()

	tournament, err := svc.Create(ctx, "cup", 2)
	require.NoError(t, err)
	registerPlayers(t, svc, tournament.ID, 2)

	matches.failCreates(errors.New("storage down"))
	require.NoError(t, svc.Start(ctx, tournament.ID))

	// Пара без записи матча остаётся в раунде, раунд не завершается.
	state, ok := svc.BracketState(tournament.ID)
	require.True(t, ok)
	require.Len(t, state.Matches, 1)
	assert.Zero(t, state.Matches[0].MatchID)
	assert.False(t, state.Matches[0].Finished)

	// После восстановления хранилища периодическая проверка досоздаёт
	// запись матча.
	matches.failCreates(nil)
	require.NoError(t, svc.CheckRoundCompletion(ctx))

	state, ok = svc.BracketState(tournament.ID)
	require.True(t, ok)
	require.NotZero(t, state.Matches[0].MatchID)
	assert.False(t, state.Matches[0].Finished)

	require.NoError(t, svc.SetMatchWinner(ctx, tournament.ID, state.Matches[0].MatchID, state.Matches[0].Player1.Nickname))
	_, ok = svc.BracketState(tournament.ID)
	assert.False(t, ok)
}

func TestManualWinnerDropsPendingResult(t *testing.T) {
	svc, _, _, _ := newTournamentForTest(t)
	ctx := context.Background()

	var dropped []int
	svc.SetResultInvalidator(func(matchID int) { dropped = append(dropped, matchID) })

	tournament, err := svc.Create(ctx, "cup", 2)
	require.NoError(t, err)
	registerPlayers(t, svc, tournament.ID, 2)
	require.NoError(t, svc.Start(ctx, tournament.ID))

	state, ok := svc.BracketState(tournament.ID)
	require.True(t, ok)
	matchID := state.Matches[0].MatchID

	require.NoError(t, svc.SetMatchWinner(ctx, tournament.ID, matchID, state.Matches[0].Player1.Nickname))
	assert.Equal(t, []int{matchID}, dropped)
}
