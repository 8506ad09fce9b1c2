package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/elobot/ladder-system/brackets"
	"github.com/elobot/ladder-system/models"
	"github.com/elobot/ladder-system/repositories"
)

// Турнирные матчи играются в режиме станции: черкание карт для них не
// требуется, а ладдерный рейтинг не меняется.
const tournamentMode = models.ModeStation5F

const (
	minTournamentSlots = 2
	maxTournamentSlots = 64
)

// TournamentService ведёт турниры на выбывание: регистрацию, посев,
// раунды, продвижение победителей и финал. Состояние активных сеток
// держится в памяти и сериализуется в базу после каждой мутации.
type TournamentService interface {
	Create(ctx context.Context, name string, slots int) (*models.Tournament, error)
	Get(ctx context.Context, tournamentID int) (*models.Tournament, []models.Participant, error)
	Register(ctx context.Context, tournamentID, playerID int, nickname string) error
	Unregister(ctx context.Context, tournamentID, playerID int) error
	Ban(ctx context.Context, tournamentID, playerID int) error
	Start(ctx context.Context, tournamentID int) error

	// SetMatchWinner — ручное решение модератора, эквивалент
	// верифицированного результата для продвижения по сетке.
	SetMatchWinner(ctx context.Context, tournamentID, matchID int, winnerNickname string) error

	// SetResultInvalidator регистрирует сброс неподтверждённого
	// результата для матчей, верифицируемых в обход машины результатов
	// (ручной победитель, walkover при бане).
	SetResultInvalidator(drop func(matchID int))

	// OnMatchVerified вызывается из машины результатов, когда турнирный
	// матч верифицирован.
	OnMatchVerified(ctx context.Context, match *models.Match)

	// CheckRoundCompletion прогоняет проверку завершения раунда для всех
	// активных турниров. Вызывается периодическим тикером.
	CheckRoundCompletion(ctx context.Context) error

	BracketState(tournamentID int) (*models.BracketState, bool)

	// Recover поднимает сериализованные сетки активных турниров после
	// рестарта процесса.
	Recover(ctx context.Context) error
}

type tournamentService struct {
	tournamentRepo repositories.TournamentRepository
	matchRepo      repositories.MatchRepository
	draft          DraftCoordinator
	notifier       Notifier
	logger         *slog.Logger

	mu          sync.Mutex
	active      map[int]*models.BracketState
	rng         *rand.Rand
	dropPending func(matchID int)
}

func NewTournamentService(
	tournamentRepo repositories.TournamentRepository,
	matchRepo repositories.MatchRepository,
	draft DraftCoordinator,
	notifier Notifier,
	logger *slog.Logger,
) TournamentService {
	return &tournamentService{
		tournamentRepo: tournamentRepo,
		matchRepo:      matchRepo,
		draft:          draft,
		notifier:       notifier,
		logger:         logger,
		active:         make(map[int]*models.BracketState),
		rng:            rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (s *tournamentService) Create(ctx context.Context, name string, slots int) (*models.Tournament, error) {
	if name == "" {
		return nil, ErrValidationFailed
	}
	if !brackets.IsPowerOfTwo(slots) || slots < minTournamentSlots || slots > maxTournamentSlots {
		return nil, ErrInvalidSlotCount
	}

	tournament := &models.Tournament{
		Name:      name,
		Slots:     slots,
		CreatedAt: time.Now(),
	}
	if err := s.tournamentRepo.Create(ctx, tournament); err != nil {
		if errors.Is(err, repositories.ErrTournamentNameConflict) {
			return nil, ErrTournamentNameConflict
		}
		return nil, fmt.Errorf("failed to create tournament: %w", err)
	}

	s.logger.Info("tournament created",
		slog.Int("tournament_id", tournament.ID),
		slog.String("name", name),
		slog.Int("slots", slots))
	return tournament, nil
}

// Get загружает турнир и его участников. Запросы независимы, поэтому
// выполняются параллельно.
func (s *tournamentService) Get(ctx context.Context, tournamentID int) (*models.Tournament, []models.Participant, error) {
	var (
		tournament   *models.Tournament
		participants []models.Participant
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		tournament, err = s.getTournament(gctx, tournamentID)
		return err
	})
	g.Go(func() error {
		var err error
		participants, err = s.tournamentRepo.ListParticipants(gctx, tournamentID)
		if err != nil {
			return fmt.Errorf("failed to list participants: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return tournament, participants, nil
}

func (s *tournamentService) Register(ctx context.Context, tournamentID, playerID int, nickname string) error {
	tournament, err := s.getTournament(ctx, tournamentID)
	if err != nil {
		return err
	}
	if tournament.Started {
		return ErrTournamentStarted
	}

	banned, err := s.tournamentRepo.IsBanned(ctx, tournamentID, playerID)
	if err != nil {
		return fmt.Errorf("failed to check tournament ban: %w", err)
	}
	if banned {
		return ErrTournamentBanned
	}

	participants, err := s.tournamentRepo.ListParticipants(ctx, tournamentID)
	if err != nil {
		return fmt.Errorf("failed to list participants: %w", err)
	}
	for _, p := range participants {
		if p.PlayerID == playerID {
			return ErrAlreadyRegistered
		}
	}
	if len(participants) >= tournament.Slots {
		return ErrTournamentFull
	}

	if err := s.tournamentRepo.AddParticipant(ctx, tournamentID, playerID, nickname); err != nil {
		return fmt.Errorf("failed to add participant: %w", err)
	}

	s.logger.Info("player registered for tournament",
		slog.Int("tournament_id", tournamentID),
		slog.String("player", nickname))
	return nil
}

func (s *tournamentService) Unregister(ctx context.Context, tournamentID, playerID int) error {
	tournament, err := s.getTournament(ctx, tournamentID)
	if err != nil {
		return err
	}
	if tournament.Started {
		return ErrTournamentStarted
	}
	if err := s.tournamentRepo.RemoveParticipant(ctx, tournamentID, playerID); err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return ErrNotRegistered
		}
		return fmt.Errorf("failed to remove participant: %w", err)
	}
	return nil
}

// Ban закрывает игроку участие в турнире и снимает его регистрацию,
// если она была. Незавершённый матч забаненного в активной сетке
// закрывается walkover-ом в пользу соперника.
func (s *tournamentService) Ban(ctx context.Context, tournamentID, playerID int) error {
	if _, err := s.getTournament(ctx, tournamentID); err != nil {
		return err
	}
	if err := s.tournamentRepo.AddBan(ctx, tournamentID, playerID); err != nil {
		return fmt.Errorf("failed to ban player from tournament: %w", err)
	}
	if err := s.tournamentRepo.RemoveParticipant(ctx, tournamentID, playerID); err != nil &&
		!errors.Is(err, repositories.ErrTournamentNotFound) {
		return fmt.Errorf("failed to remove banned participant: %w", err)
	}

	closedMatchID, err := s.closeBannedMatch(ctx, tournamentID, playerID)
	if err != nil {
		return err
	}
	if closedMatchID != 0 {
		if drop := s.resultDropper(); drop != nil {
			drop(closedMatchID)
		}
	}
	return nil
}

// closeBannedMatch закрывает незавершённый матч забаненного walkover-ом
// в пользу соперника и возвращает идентификатор закрытого матча.
func (s *tournamentService) closeBannedMatch(ctx context.Context, tournamentID, playerID int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.active[tournamentID]
	if !ok {
		return 0, nil
	}
	for i := range state.Matches {
		rm := &state.Matches[i]
		if rm.Finished || (rm.Player1.PlayerID != playerID && rm.Player2.PlayerID != playerID) {
			continue
		}
		winner := rm.Player1
		score1, score2 := 1, 0
		if rm.Player1.PlayerID == playerID {
			winner = rm.Player2
			score1, score2 = 0, 1
		}
		// Пара без записи матча (создание ещё не удалось) закрывается
		// только в состоянии сетки.
		if rm.MatchID != 0 {
			if err := s.matchRepo.SetResult(ctx, rm.MatchID, score1, score2, 0, 0, models.MatchStatusVerified); err != nil {
				return 0, fmt.Errorf("failed to close match of banned player: %w", err)
			}
		}
		rm.Winner = &winner
		rm.Finished = true
		state.Winners = append(state.Winners, winner)
		s.saveStateLocked(ctx, state)

		s.logger.Info("banned participant's match closed as walkover",
			slog.Int("tournament_id", tournamentID),
			slog.Int("match_id", rm.MatchID),
			slog.String("winner", winner.Nickname))

		s.checkCompletionLocked(ctx, state)
		return rm.MatchID, nil
	}
	return 0, nil
}

func (s *tournamentService) Start(ctx context.Context, tournamentID int) error {
	tournament, err := s.getTournament(ctx, tournamentID)
	if err != nil {
		return err
	}
	if tournament.Started {
		return ErrTournamentStarted
	}

	participants, err := s.tournamentRepo.ListParticipants(ctx, tournamentID)
	if err != nil {
		return fmt.Errorf("failed to list participants: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	seeded, err := brackets.Seed(participants, tournament.Slots, s.rng)
	if err != nil {
		return err
	}

	state := &models.BracketState{
		TournamentID: tournamentID,
		CurrentRound: 1,
		Participants: seeded,
	}
	s.active[tournamentID] = state

	if err := s.tournamentRepo.SetStarted(ctx, tournamentID, true); err != nil {
		delete(s.active, tournamentID)
		return fmt.Errorf("failed to mark tournament started: %w", err)
	}

	s.startRoundLocked(ctx, state)
	return nil
}

func (s *tournamentService) SetResultInvalidator(drop func(matchID int)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dropPending = drop
}

func (s *tournamentService) resultDropper() func(matchID int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropPending
}

func (s *tournamentService) SetMatchWinner(ctx context.Context, tournamentID, matchID int, winnerNickname string) error {
	if err := s.applyManualWinner(ctx, tournamentID, matchID, winnerNickname); err != nil {
		return err
	}
	// Сброс неподтверждённого результата вызывается вне s.mu, чтобы не
	// пересекаться с блокировкой машины результатов.
	if drop := s.resultDropper(); drop != nil {
		drop(matchID)
	}
	return nil
}

func (s *tournamentService) applyManualWinner(ctx context.Context, tournamentID, matchID int, winnerNickname string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.active[tournamentID]
	if !ok {
		return ErrTournamentNotStarted
	}

	var roundMatch *models.RoundMatch
	for i := range state.Matches {
		if state.Matches[i].MatchID == matchID {
			roundMatch = &state.Matches[i]
			break
		}
	}
	if roundMatch == nil {
		return ErrNotTournamentMatch
	}
	if roundMatch.Finished {
		return ErrRoundMatchFinished
	}

	var winner models.Participant
	switch winnerNickname {
	case roundMatch.Player1.Nickname:
		winner = roundMatch.Player1
	case roundMatch.Player2.Nickname:
		winner = roundMatch.Player2
	default:
		return ErrWinnerNotParticipant
	}

	score1, score2 := 1, 0
	if winner.PlayerID == roundMatch.Player2.PlayerID {
		score1, score2 = 0, 1
	}
	if err := s.matchRepo.SetResult(ctx, matchID, score1, score2, 0, 0, models.MatchStatusVerified); err != nil {
		return fmt.Errorf("failed to store manual winner: %w", err)
	}

	roundMatch.Winner = &winner
	roundMatch.Finished = true
	state.Winners = append(state.Winners, winner)
	s.saveStateLocked(ctx, state)

	s.logger.Info("tournament match winner set manually",
		slog.Int("tournament_id", tournamentID),
		slog.Int("match_id", matchID),
		slog.String("winner", winner.Nickname))

	s.checkCompletionLocked(ctx, state)
	return nil
}

func (s *tournamentService) OnMatchVerified(ctx context.Context, match *models.Match) {
	if match.TournamentID == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.active[*match.TournamentID]
	if !ok {
		return
	}
	for i := range state.Matches {
		rm := &state.Matches[i]
		if rm.MatchID != match.ID || rm.Finished {
			continue
		}
		winnerName := match.Winner()
		var winner models.Participant
		switch winnerName {
		case rm.Player1.Nickname:
			winner = rm.Player1
		case rm.Player2.Nickname:
			winner = rm.Player2
		default:
			return
		}
		rm.Winner = &winner
		rm.Finished = true
		state.Winners = append(state.Winners, winner)
		s.saveStateLocked(ctx, state)
		s.checkCompletionLocked(ctx, state)
		return
	}
}

func (s *tournamentService) CheckRoundCompletion(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, state := range s.active {
		if err := s.refreshRoundLocked(ctx, state); err != nil {
			s.logger.Error("failed to refresh tournament round",
				slog.Int("tournament_id", state.TournamentID),
				slog.Any("error", err))
			continue
		}
		s.checkCompletionLocked(ctx, state)
	}
	return nil
}

func (s *tournamentService) BracketState(tournamentID int) (*models.BracketState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.active[tournamentID]
	if !ok {
		return nil, false
	}
	copied := *state
	copied.Participants = append([]models.Participant(nil), state.Participants...)
	copied.Winners = append([]models.Participant(nil), state.Winners...)
	copied.Matches = append([]models.RoundMatch(nil), state.Matches...)
	return &copied, true
}

func (s *tournamentService) Recover(ctx context.Context) error {
	states, err := s.tournamentRepo.ListBracketStates(ctx)
	if err != nil {
		return fmt.Errorf("failed to load bracket states: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, state := range states {
		s.active[state.TournamentID] = state
		s.logger.Info("tournament bracket recovered",
			slog.Int("tournament_id", state.TournamentID),
			slog.Int("round", state.CurrentRound))
	}
	return nil
}

// startRoundLocked составляет пары раунда. Walkover-пары (реальный
// игрок против пустого слота) не порождают играбельный матч: игрок
// сразу попадает в победители раунда.
func (s *tournamentService) startRoundLocked(ctx context.Context, state *models.BracketState) {
	if state.CurrentRound > 1 {
		state.Participants = state.Winners
		state.Winners = nil
	}
	state.Matches = nil

	pairs, advanced := brackets.PairRound(state.Participants, s.rng)

	for _, p := range advanced {
		state.Winners = append(state.Winners, p)
		s.notifier.NotifyPlayer(p.Nickname, EventTournamentRound, map[string]interface{}{
			"tournament_id": state.TournamentID,
			"round":         state.CurrentRound,
			"auto_advance":  true,
		})
	}

	for _, pair := range pairs {
		if pair.Walkover() {
			winner := pair.WalkoverWinner()
			state.Winners = append(state.Winners, winner)
			s.notifier.NotifyPlayer(winner.Nickname, EventTournamentRound, map[string]interface{}{
				"tournament_id": state.TournamentID,
				"round":         state.CurrentRound,
				"walkover":      true,
			})
			continue
		}

		// Пара при неудачном создании записи остаётся в раунде с нулевым
		// идентификатором и пересоздаётся периодической проверкой,
		// чтобы сбой хранилища не выбросил обоих игроков из сетки.
		matchID, err := s.createRoundMatch(ctx, state, pair.Player1, pair.Player2)
		if err != nil {
			s.logger.Error("failed to create tournament match",
				slog.Int("tournament_id", state.TournamentID),
				slog.String("player1", pair.Player1.Nickname),
				slog.String("player2", pair.Player2.Nickname),
				slog.Any("error", err))
		}

		state.Matches = append(state.Matches, models.RoundMatch{
			MatchID: matchID,
			Player1: pair.Player1,
			Player2: pair.Player2,
		})
	}

	s.notifier.NotifyTournament(state.TournamentID, EventTournamentRound, map[string]interface{}{
		"tournament_id": state.TournamentID,
		"round":         state.CurrentRound,
		"matches":       append([]models.RoundMatch(nil), state.Matches...),
	})
	s.logger.Info("tournament round started",
		slog.Int("tournament_id", state.TournamentID),
		slog.Int("round", state.CurrentRound),
		slog.Int("matches", len(state.Matches)))

	s.saveStateLocked(ctx, state)

	// Раунд может завершиться мгновенно, если все пары оказались
	// walkover-ами.
	s.checkCompletionLocked(ctx, state)
}

// createRoundMatch создаёт запись матча для пары и уведомляет игроков.
func (s *tournamentService) createRoundMatch(ctx context.Context, state *models.BracketState, p1, p2 models.Participant) (int, error) {
	match := &models.Match{
		Mode:         tournamentMode,
		Player1:      p1.Nickname,
		Player2:      p2.Nickname,
		Status:       models.MatchStatusInProgress,
		Type:         models.MatchTypeTournament,
		StartTime:    time.Now(),
		TournamentID: intPtr(state.TournamentID),
		Round:        intPtr(state.CurrentRound),
	}
	if err := s.matchRepo.Create(ctx, match); err != nil {
		return 0, err
	}

	s.notifier.NotifyPlayer(p1.Nickname, EventMatchCreated, matchFoundPayload(match, p2.Nickname))
	s.notifier.NotifyPlayer(p2.Nickname, EventMatchCreated, matchFoundPayload(match, p1.Nickname))

	if match.Mode.RequiresMapDraft() {
		if err := s.draft.Start(ctx, match); err != nil {
			s.logger.Error("failed to start map draft", slog.Int("match_id", match.ID), slog.Any("error", err))
		}
	}
	return match.ID, nil
}

// refreshRoundLocked подтягивает из базы результаты матчей, завершённых
// мимо хука (например, до рестарта процесса), и досоздаёт записи для
// пар, у которых создание матча ранее не удалось.
func (s *tournamentService) refreshRoundLocked(ctx context.Context, state *models.BracketState) error {
	for i := range state.Matches {
		rm := &state.Matches[i]
		if rm.Finished {
			continue
		}
		if rm.MatchID == 0 {
			matchID, err := s.createRoundMatch(ctx, state, rm.Player1, rm.Player2)
			if err != nil {
				return fmt.Errorf("failed to recreate match %s vs %s: %w", rm.Player1.Nickname, rm.Player2.Nickname, err)
			}
			rm.MatchID = matchID
			s.saveStateLocked(ctx, state)
			continue
		}
		match, err := s.matchRepo.GetByID(ctx, rm.MatchID)
		if err != nil {
			return fmt.Errorf("failed to load match %d: %w", rm.MatchID, err)
		}
		if match.Status != models.MatchStatusVerified {
			continue
		}
		winnerName := match.Winner()
		var winner models.Participant
		switch winnerName {
		case rm.Player1.Nickname:
			winner = rm.Player1
		case rm.Player2.Nickname:
			winner = rm.Player2
		default:
			continue
		}
		rm.Winner = &winner
		rm.Finished = true
		state.Winners = append(state.Winners, winner)
		s.saveStateLocked(ctx, state)
	}
	return nil
}

func (s *tournamentService) checkCompletionLocked(ctx context.Context, state *models.BracketState) {
	for _, rm := range state.Matches {
		if !rm.Finished {
			return
		}
	}

	if len(state.Winners) == 1 {
		s.finishLocked(ctx, state)
		return
	}
	if len(state.Winners) == 0 {
		// Сетка выродилась (все слоты пустые) — закрываем без чемпиона.
		s.finishLocked(ctx, state)
		return
	}

	state.CurrentRound++
	s.startRoundLocked(ctx, state)
}

func (s *tournamentService) finishLocked(ctx context.Context, state *models.BracketState) {
	delete(s.active, state.TournamentID)
	if err := s.tournamentRepo.DeleteBracketState(ctx, state.TournamentID); err != nil {
		s.logger.Error("failed to delete bracket state",
			slog.Int("tournament_id", state.TournamentID),
			slog.Any("error", err))
	}

	var champion string
	if len(state.Winners) > 0 {
		champion = state.Winners[0].Nickname
		s.notifier.NotifyPlayer(champion, EventTournamentWinner, map[string]interface{}{
			"tournament_id": state.TournamentID,
		})
	}
	s.notifier.NotifyTournament(state.TournamentID, EventTournamentWinner, map[string]interface{}{
		"tournament_id": state.TournamentID,
		"champion":      champion,
	})

	s.logger.Info("tournament finished",
		slog.Int("tournament_id", state.TournamentID),
		slog.String("champion", champion))
}

func (s *tournamentService) saveStateLocked(ctx context.Context, state *models.BracketState) {
	if err := s.tournamentRepo.SaveBracketState(ctx, state); err != nil {
		s.logger.Error("failed to save bracket state",
			slog.Int("tournament_id", state.TournamentID),
			slog.Any("error", err))
	}
}

func (s *tournamentService) getTournament(ctx context.Context, tournamentID int) (*models.Tournament, error) {
	tournament, err := s.tournamentRepo.GetByID(ctx, tournamentID)
	if err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, ErrTournamentNotFound
		}
		return nil, fmt.Errorf("failed to load tournament %d: %w", tournamentID, err)
	}
	return tournament, nil
}
