package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/elobot/ladder-system/models"
	"github.com/elobot/ladder-system/rating"
	"github.com/elobot/ladder-system/repositories"
)

// MatchVerifiedHook вызывается после верификации матча. Координатор
// турниров подписывается на него, чтобы сразу отметить победителя в
// сетке, не дожидаясь периодической проверки.
type MatchVerifiedHook func(ctx context.Context, match *models.Match)

// ResultService ведёт результат матча от отправки до верификации:
// подтверждение соперником, спор, эскалация модератору по таймауту,
// репорты и технические поражения.
type ResultService interface {
	Submit(ctx context.Context, matchID int, submitter string, ownScore, opponentScore int, evidenceURL string) error
	Confirm(ctx context.Context, matchID int, confirmer string) error
	Dispute(ctx context.Context, matchID int, disputer string) error

	ModeratorConfirm(ctx context.Context, matchID int) error
	ModeratorReject(ctx context.Context, matchID int) error
	ApplyTechnicalLoss(ctx context.Context, matchID int, offender string) error

	FileReport(ctx context.Context, matchID int, reporter, reason string) error
	ResolveReport(ctx context.Context, matchID int, accept bool) error

	PendingResults() []models.PendingResult
	PendingReports() []models.PendingReport

	// SetVerifiedHook регистрирует обратный вызов для турнирной сетки.
	SetVerifiedHook(hook MatchVerifiedHook)

	// DropPending снимает неподтверждённый результат матча,
	// верифицированного в обход машины результатов.
	DropPending(matchID int)

	// RecoverInFlight возвращает матчи, ждавшие подтверждения или
	// замороженные репортом на момент рестарта, в состояние ожидания
	// результата: таймеры, ожидающие подтверждения и репорты живут
	// только в памяти и не переживают перезапуск.
	RecoverInFlight(ctx context.Context) error
}

type pendingRun struct {
	result *models.PendingResult
	timer  *time.Timer
}

type resultService struct {
	playerRepo repositories.PlayerRepository
	matchRepo  repositories.MatchRepository
	notifier   Notifier
	logger     *slog.Logger
	window     time.Duration

	mu      sync.Mutex
	pending map[int]*pendingRun
	reports map[int]*models.PendingReport
	hook    MatchVerifiedHook
}

func NewResultService(
	playerRepo repositories.PlayerRepository,
	matchRepo repositories.MatchRepository,
	notifier Notifier,
	logger *slog.Logger,
	confirmationWindow time.Duration,
) ResultService {
	return &resultService{
		playerRepo: playerRepo,
		matchRepo:  matchRepo,
		notifier:   notifier,
		logger:     logger,
		window:     confirmationWindow,
		pending:    make(map[int]*pendingRun),
		reports:    make(map[int]*models.PendingReport),
	}
}

func (s *resultService) SetVerifiedHook(hook MatchVerifiedHook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hook = hook
}

func (s *resultService) DropPending(matchID int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dropPendingLocked(matchID)
}

func (s *resultService) Submit(ctx context.Context, matchID int, submitter string, ownScore, opponentScore int, evidenceURL string) error {
	match, err := s.getMatch(ctx, matchID)
	if err != nil {
		return err
	}
	if !match.HasParticipant(submitter) {
		return ErrNotAParticipant
	}
	if ownScore < 0 || opponentScore < 0 {
		return ErrNegativeScore
	}
	if ownScore == opponentScore {
		return ErrScoresEqual
	}
	// Скриншот обязателен только для ладдерных матчей.
	if evidenceURL == "" && match.Type == models.MatchTypeLadder {
		return ErrNoEvidence
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.reports[matchID]; ok {
		return ErrReportPending
	}
	if _, ok := s.pending[matchID]; ok {
		return ErrResultPending
	}
	switch match.Status {
	case models.MatchStatusFrozen:
		return ErrMatchFrozen
	case models.MatchStatusVerified:
		return ErrMatchFinished
	case models.MatchStatusAwaitingConfirmation:
		return ErrResultPending
	}

	// Счёт хранится в ориентации player1/player2 матча.
	score1, score2 := ownScore, opponentScore
	if submitter == match.Player2 {
		score1, score2 = opponentScore, ownScore
	}

	if err := s.matchRepo.UpdateStatus(ctx, matchID, models.MatchStatusAwaitingConfirmation); err != nil {
		return fmt.Errorf("failed to mark match awaiting confirmation: %w", err)
	}

	run := &pendingRun{
		result: &models.PendingResult{
			MatchID:     matchID,
			Submitter:   submitter,
			Opponent:    match.Opponent(submitter),
			Score1:      score1,
			Score2:      score2,
			EvidenceURL: evidenceURL,
			SubmittedAt: time.Now(),
		},
	}
	s.pending[matchID] = run
	run.timer = time.AfterFunc(s.window, func() {
		s.escalateOnTimeout(matchID)
	})

	s.notifier.NotifyPlayer(run.result.Opponent, EventResultSubmitted, map[string]interface{}{
		"match_id":  matchID,
		"submitter": submitter,
		"score":     fmt.Sprintf("%d-%d", ownScore, opponentScore),
		"evidence":  evidenceURL,
	})

	s.logger.Info("result submitted",
		slog.Int("match_id", matchID),
		slog.String("submitter", submitter),
		slog.Int("score1", score1),
		slog.Int("score2", score2))
	return nil
}

func (s *resultService) Confirm(ctx context.Context, matchID int, confirmer string) error {
	match, err := s.getMatch(ctx, matchID)
	if err != nil {
		return err
	}
	// Матч мог быть верифицирован в обход машины результатов
	// (ручной победитель, walkover при бане).
	if match.Status == models.MatchStatusVerified {
		return ErrMatchFinished
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	run, ok := s.pending[matchID]
	if !ok {
		return ErrNoPendingResult
	}
	if !match.HasParticipant(confirmer) {
		return ErrNotAParticipant
	}
	if confirmer != run.result.Opponent {
		return ErrNotOpponent
	}
	if run.result.Escalated {
		return ErrForbiddenOperation
	}

	if err := s.applyVerifiedLocked(ctx, match, run.result.Score1, run.result.Score2); err != nil {
		return err
	}
	s.dropPendingLocked(matchID)
	return nil
}

func (s *resultService) Dispute(ctx context.Context, matchID int, disputer string) error {
	match, err := s.getMatch(ctx, matchID)
	if err != nil {
		return err
	}
	if match.Status == models.MatchStatusVerified {
		return ErrMatchFinished
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	run, ok := s.pending[matchID]
	if !ok {
		return ErrNoPendingResult
	}
	if !match.HasParticipant(disputer) {
		return ErrNotAParticipant
	}
	if disputer != run.result.Opponent {
		return ErrNotOpponent
	}
	if run.result.Escalated {
		return ErrForbiddenOperation
	}

	s.escalateLocked(run, "disputed by opponent")
	return nil
}

func (s *resultService) ModeratorConfirm(ctx context.Context, matchID int) error {
	match, err := s.getMatch(ctx, matchID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	run, ok := s.pending[matchID]
	if !ok {
		return ErrNoPendingResult
	}
	if err := s.applyVerifiedLocked(ctx, match, run.result.Score1, run.result.Score2); err != nil {
		return err
	}
	s.dropPendingLocked(matchID)
	return nil
}

func (s *resultService) ModeratorReject(ctx context.Context, matchID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	run, ok := s.pending[matchID]
	if !ok {
		return ErrNoPendingResult
	}
	if err := s.matchRepo.UpdateStatus(ctx, matchID, models.MatchStatusInProgress); err != nil {
		return fmt.Errorf("failed to reopen match %d: %w", matchID, err)
	}
	submitter := run.result.Submitter
	s.dropPendingLocked(matchID)

	s.notifier.NotifyPlayer(submitter, EventResultRejected, map[string]interface{}{"match_id": matchID})
	s.logger.Info("result rejected by moderator", slog.Int("match_id", matchID))
	return nil
}

// ApplyTechnicalLoss закрывает матч техническим поражением провинившегося.
// Если матч уже был верифицирован, сначала полностью откатываются ранее
// применённые рейтинги и счётчики, так что итог совпадает с техническим
// поражением, назначенным с самого начала.
func (s *resultService) ApplyTechnicalLoss(ctx context.Context, matchID int, offender string) error {
	match, err := s.getMatch(ctx, matchID)
	if err != nil {
		return err
	}
	if !match.HasParticipant(offender) {
		return ErrNotAParticipant
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.applyTechnicalLossLocked(ctx, match, offender)
}

func (s *resultService) applyTechnicalLossLocked(ctx context.Context, match *models.Match, offender string) error {
	if match.Status == models.MatchStatusVerified {
		if err := s.rollbackVerified(ctx, match); err != nil {
			return err
		}
	}
	s.dropPendingLocked(match.ID)

	winner := match.Opponent(offender)
	score1, score2 := 1, 0
	if winner == match.Player2 {
		score1, score2 = 0, 1
	}
	if err := s.applyVerifiedLocked(ctx, match, score1, score2); err != nil {
		return err
	}

	s.logger.Info("technical loss applied",
		slog.Int("match_id", match.ID),
		slog.String("winner", winner),
		slog.String("offender", offender))
	return nil
}

func (s *resultService) FileReport(ctx context.Context, matchID int, reporter, reason string) error {
	match, err := s.getMatch(ctx, matchID)
	if err != nil {
		return err
	}
	if !match.HasParticipant(reporter) {
		return ErrNotAParticipant
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.reports[matchID]; ok {
		return ErrReportPending
	}

	// Репорт замораживает матч и вытесняет неподтверждённый результат.
	s.dropPendingLocked(matchID)
	if match.Status != models.MatchStatusVerified {
		if err := s.matchRepo.UpdateStatus(ctx, matchID, models.MatchStatusFrozen); err != nil {
			return fmt.Errorf("failed to freeze match %d: %w", matchID, err)
		}
	}

	report := &models.PendingReport{
		MatchID:  matchID,
		Reporter: reporter,
		Violator: match.Opponent(reporter),
		Reason:   reason,
		FiledAt:  time.Now(),
	}
	s.reports[matchID] = report

	s.notifier.NotifyModerators(EventReportFiled, map[string]interface{}{
		"match_id": matchID,
		"reporter": reporter,
		"violator": report.Violator,
		"reason":   reason,
	})
	s.logger.Info("report filed", slog.Int("match_id", matchID), slog.String("reporter", reporter))
	return nil
}

func (s *resultService) ResolveReport(ctx context.Context, matchID int, accept bool) error {
	match, err := s.getMatch(ctx, matchID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	report, ok := s.reports[matchID]
	if !ok {
		return ErrNoPendingReport
	}

	if accept {
		if err := s.applyTechnicalLossLocked(ctx, match, report.Violator); err != nil {
			return err
		}
	} else {
		if match.Status != models.MatchStatusVerified {
			if err := s.matchRepo.UpdateStatus(ctx, matchID, models.MatchStatusInProgress); err != nil {
				return fmt.Errorf("failed to unfreeze match %d: %w", matchID, err)
			}
		}
	}
	delete(s.reports, matchID)

	s.notifier.NotifyPlayer(report.Reporter, EventReportResolved, map[string]interface{}{
		"match_id": matchID,
		"accepted": accept,
	})
	s.logger.Info("report resolved", slog.Int("match_id", matchID), slog.Bool("accepted", accept))
	return nil
}

func (s *resultService) PendingResults() []models.PendingResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.PendingResult, 0, len(s.pending))
	for _, run := range s.pending {
		out = append(out, *run.result)
	}
	return out
}

func (s *resultService) PendingReports() []models.PendingReport {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.PendingReport, 0, len(s.reports))
	for _, r := range s.reports {
		out = append(out, *r)
	}
	return out
}

func (s *resultService) RecoverInFlight(ctx context.Context) error {
	stuck, err := s.matchRepo.ListByStatus(ctx, models.MatchStatusAwaitingConfirmation)
	if err != nil {
		return fmt.Errorf("failed to list matches awaiting confirmation: %w", err)
	}
	for _, match := range stuck {
		if err := s.matchRepo.UpdateStatus(ctx, match.ID, models.MatchStatusInProgress); err != nil {
			return fmt.Errorf("failed to reopen match %d after restart: %w", match.ID, err)
		}
		payload := map[string]interface{}{"match_id": match.ID, "reason": "resubmit_after_restart"}
		s.notifier.NotifyPlayer(match.Player1, EventResultRejected, payload)
		s.notifier.NotifyPlayer(match.Player2, EventResultRejected, payload)
		s.logger.Warn("reopened match with lost pending result", slog.Int("match_id", match.ID))
	}

	// Замороженный матч без репорта в памяти иначе не разблокировать:
	// репорт потерян вместе с процессом, матч возвращается в игру, а
	// репорт при необходимости подаётся заново.
	frozen, err := s.matchRepo.ListByStatus(ctx, models.MatchStatusFrozen)
	if err != nil {
		return fmt.Errorf("failed to list frozen matches: %w", err)
	}
	for _, match := range frozen {
		s.mu.Lock()
		_, hasReport := s.reports[match.ID]
		s.mu.Unlock()
		if hasReport {
			continue
		}
		if err := s.matchRepo.UpdateStatus(ctx, match.ID, models.MatchStatusInProgress); err != nil {
			return fmt.Errorf("failed to unfreeze match %d after restart: %w", match.ID, err)
		}
		payload := map[string]interface{}{"match_id": match.ID, "reason": "refile_report_after_restart"}
		s.notifier.NotifyPlayer(match.Player1, EventReportResolved, payload)
		s.notifier.NotifyPlayer(match.Player2, EventReportResolved, payload)
		s.logger.Warn("unfroze match with lost report", slog.Int("match_id", match.ID))
	}
	return nil
}

// escalateOnTimeout срабатывает по истечении окна подтверждения.
// Если результат к этому моменту уже разрешён или эскалирован,
// таймер ничего не делает.
func (s *resultService) escalateOnTimeout(matchID int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	run, ok := s.pending[matchID]
	if !ok || run.result.Escalated {
		return
	}
	s.escalateLocked(run, "confirmation window lapsed")

	s.notifier.NotifyPlayer(run.result.Submitter, EventResultEscalated, map[string]interface{}{
		"match_id": matchID,
		"reason":   "confirmation_window_lapsed",
	})
	s.notifier.NotifyPlayer(run.result.Opponent, EventResultEscalated, map[string]interface{}{
		"match_id": matchID,
		"reason":   "confirmation_window_lapsed",
	})
}

func (s *resultService) escalateLocked(run *pendingRun, reason string) {
	if run.timer != nil {
		run.timer.Stop()
	}
	run.result.Escalated = true

	s.notifier.NotifyModerators(EventResultEscalated, map[string]interface{}{
		"match_id":  run.result.MatchID,
		"submitter": run.result.Submitter,
		"opponent":  run.result.Opponent,
		"score":     fmt.Sprintf("%d-%d", run.result.Score1, run.result.Score2),
		"evidence":  run.result.EvidenceURL,
		"reason":    reason,
	})
	s.logger.Info("result escalated to moderators",
		slog.Int("match_id", run.result.MatchID),
		slog.String("reason", reason))
}

// applyVerifiedLocked — единственная точка применения результата:
// рейтинги (только для ладдерных матчей), счётчики побед/поражений,
// запись счёта и перевод матча в verified.
func (s *resultService) applyVerifiedLocked(ctx context.Context, match *models.Match, score1, score2 int) error {
	winner, loser := match.Player1, match.Player2
	if score2 > score1 {
		winner, loser = match.Player2, match.Player1
	}

	var winnerDelta, loserDelta int
	if match.Type == models.MatchTypeLadder {
		winnerPlayer, err := s.playerRepo.GetByNickname(ctx, winner)
		if err != nil {
			return fmt.Errorf("failed to load winner %s: %w", winner, err)
		}
		loserPlayer, err := s.playerRepo.GetByNickname(ctx, loser)
		if err != nil {
			return fmt.Errorf("failed to load loser %s: %w", loser, err)
		}

		oldWinner := winnerPlayer.ModeRating(match.Mode)
		oldLoser := loserPlayer.ModeRating(match.Mode)
		newWinner, newLoser := rating.Rate(oldWinner, oldLoser, rating.OutcomeWin)

		if err := s.playerRepo.UpdateModeRating(ctx, winner, match.Mode, newWinner); err != nil {
			return fmt.Errorf("failed to update rating of %s: %w", winner, err)
		}
		if err := s.playerRepo.UpdateModeRating(ctx, loser, match.Mode, newLoser); err != nil {
			return fmt.Errorf("failed to update rating of %s: %w", loser, err)
		}
		winnerDelta = newWinner - oldWinner
		loserDelta = newLoser - oldLoser
	}

	if err := s.playerRepo.AdjustRecord(ctx, winner, match.Mode, 1, 0, 0); err != nil {
		return fmt.Errorf("failed to update record of %s: %w", winner, err)
	}
	if err := s.playerRepo.AdjustRecord(ctx, loser, match.Mode, 0, 1, 0); err != nil {
		return fmt.Errorf("failed to update record of %s: %w", loser, err)
	}

	delta1, delta2 := winnerDelta, loserDelta
	if winner == match.Player2 {
		delta1, delta2 = loserDelta, winnerDelta
	}
	if err := s.matchRepo.SetResult(ctx, match.ID, score1, score2, delta1, delta2, models.MatchStatusVerified); err != nil {
		return fmt.Errorf("failed to store verified result: %w", err)
	}

	match.Player1Score, match.Player2Score = intPtr(score1), intPtr(score2)
	match.RatingDelta1, match.RatingDelta2 = intPtr(delta1), intPtr(delta2)
	match.Status = models.MatchStatusVerified

	payload := map[string]interface{}{
		"match_id": match.ID,
		"score":    fmt.Sprintf("%d-%d", score1, score2),
		"winner":   winner,
	}
	s.notifier.NotifyPlayer(match.Player1, EventResultConfirmed, payload)
	s.notifier.NotifyPlayer(match.Player2, EventResultConfirmed, payload)

	s.logger.Info("match verified",
		slog.Int("match_id", match.ID),
		slog.String("winner", winner),
		slog.Int("winner_delta", winnerDelta),
		slog.Int("loser_delta", loserDelta))

	if match.Type == models.MatchTypeTournament && s.hook != nil {
		s.hook(ctx, match)
	}
	return nil
}

// rollbackVerified снимает ранее применённый результат: счётчики и
// рейтинги возвращаются к значениям до верификации по сохранённым
// дельтам матча.
func (s *resultService) rollbackVerified(ctx context.Context, match *models.Match) error {
	score1, score2 := derefInt(match.Player1Score), derefInt(match.Player2Score)

	switch {
	case score1 > score2:
		if err := s.playerRepo.AdjustRecord(ctx, match.Player1, match.Mode, -1, 0, 0); err != nil {
			return fmt.Errorf("failed to roll back record of %s: %w", match.Player1, err)
		}
		if err := s.playerRepo.AdjustRecord(ctx, match.Player2, match.Mode, 0, -1, 0); err != nil {
			return fmt.Errorf("failed to roll back record of %s: %w", match.Player2, err)
		}
	case score2 > score1:
		if err := s.playerRepo.AdjustRecord(ctx, match.Player2, match.Mode, -1, 0, 0); err != nil {
			return fmt.Errorf("failed to roll back record of %s: %w", match.Player2, err)
		}
		if err := s.playerRepo.AdjustRecord(ctx, match.Player1, match.Mode, 0, -1, 0); err != nil {
			return fmt.Errorf("failed to roll back record of %s: %w", match.Player1, err)
		}
	default:
		// Ничья (закрытие по таймауту): у обоих снимается ничья.
		if err := s.playerRepo.AdjustRecord(ctx, match.Player1, match.Mode, 0, 0, -1); err != nil {
			return fmt.Errorf("failed to roll back record of %s: %w", match.Player1, err)
		}
		if err := s.playerRepo.AdjustRecord(ctx, match.Player2, match.Mode, 0, 0, -1); err != nil {
			return fmt.Errorf("failed to roll back record of %s: %w", match.Player2, err)
		}
	}

	for _, side := range []struct {
		nickname string
		delta    int
	}{
		{match.Player1, derefInt(match.RatingDelta1)},
		{match.Player2, derefInt(match.RatingDelta2)},
	} {
		if side.delta == 0 {
			continue
		}
		player, err := s.playerRepo.GetByNickname(ctx, side.nickname)
		if err != nil {
			return fmt.Errorf("failed to load %s for rating rollback: %w", side.nickname, err)
		}
		restored := player.ModeRating(match.Mode) - side.delta
		if err := s.playerRepo.UpdateModeRating(ctx, side.nickname, match.Mode, restored); err != nil {
			return fmt.Errorf("failed to roll back rating of %s: %w", side.nickname, err)
		}
	}

	match.Status = models.MatchStatusFrozen
	match.Player1Score, match.Player2Score = nil, nil
	match.RatingDelta1, match.RatingDelta2 = nil, nil

	s.logger.Info("verified result rolled back", slog.Int("match_id", match.ID))
	return nil
}

func (s *resultService) dropPendingLocked(matchID int) {
	if run, ok := s.pending[matchID]; ok {
		if run.timer != nil {
			run.timer.Stop()
		}
		delete(s.pending, matchID)
	}
}

func (s *resultService) getMatch(ctx context.Context, matchID int) (*models.Match, error) {
	match, err := s.matchRepo.GetByID(ctx, matchID)
	if err != nil {
		if errors.Is(err, repositories.ErrMatchNotFound) {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("failed to load match %d: %w", matchID, err)
	}
	return match, nil
}
