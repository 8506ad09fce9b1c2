package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/elobot/ladder-system/models"
	"github.com/elobot/ladder-system/rating"
	"github.com/elobot/ladder-system/repositories"
)

// SweeperService периодически закрывает зависшие ладдерные матчи:
// матч без отправленного результата старше порога засчитывается обоим
// как ничья с полным применением рейтинга.
type SweeperService interface {
	Sweep(ctx context.Context) (int, error)
}

type sweeperService struct {
	playerRepo repositories.PlayerRepository
	matchRepo  repositories.MatchRepository
	draft      DraftCoordinator
	notifier   Notifier
	logger     *slog.Logger
	expiry     time.Duration
}

func NewSweeperService(
	playerRepo repositories.PlayerRepository,
	matchRepo repositories.MatchRepository,
	draft DraftCoordinator,
	notifier Notifier,
	logger *slog.Logger,
	matchExpiry time.Duration,
) SweeperService {
	return &sweeperService{
		playerRepo: playerRepo,
		matchRepo:  matchRepo,
		draft:      draft,
		notifier:   notifier,
		logger:     logger,
		expiry:     matchExpiry,
	}
}

// Sweep закрывает все просроченные матчи и возвращает их количество.
// Ошибка по одному матчу не прерывает проход.
func (s *sweeperService) Sweep(ctx context.Context) (int, error) {
	cutoff := time.Now().Add(-s.expiry)
	expired, err := s.matchRepo.ListExpiredLadder(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to list expired matches: %w", err)
	}

	closed := 0
	for _, match := range expired {
		if err := s.closeAsDraw(ctx, match); err != nil {
			s.logger.Error("failed to close expired match",
				slog.Int("match_id", match.ID),
				slog.Any("error", err))
			continue
		}
		closed++
	}
	if closed > 0 {
		s.logger.Info("expiry sweep finished", slog.Int("closed", closed))
	}
	return closed, nil
}

func (s *sweeperService) closeAsDraw(ctx context.Context, match *models.Match) error {
	s.draft.Cancel(match.ID)

	p1, err := s.playerRepo.GetByNickname(ctx, match.Player1)
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", match.Player1, err)
	}
	p2, err := s.playerRepo.GetByNickname(ctx, match.Player2)
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", match.Player2, err)
	}

	old1 := p1.ModeRating(match.Mode)
	old2 := p2.ModeRating(match.Mode)
	new1, new2 := rating.Rate(old1, old2, rating.OutcomeDraw)

	if err := s.playerRepo.UpdateModeRating(ctx, match.Player1, match.Mode, new1); err != nil {
		return fmt.Errorf("failed to update rating of %s: %w", match.Player1, err)
	}
	if err := s.playerRepo.UpdateModeRating(ctx, match.Player2, match.Mode, new2); err != nil {
		return fmt.Errorf("failed to update rating of %s: %w", match.Player2, err)
	}
	if err := s.playerRepo.AdjustRecord(ctx, match.Player1, match.Mode, 0, 0, 1); err != nil {
		return fmt.Errorf("failed to update record of %s: %w", match.Player1, err)
	}
	if err := s.playerRepo.AdjustRecord(ctx, match.Player2, match.Mode, 0, 0, 1); err != nil {
		return fmt.Errorf("failed to update record of %s: %w", match.Player2, err)
	}

	if err := s.matchRepo.SetResult(ctx, match.ID, 0, 0, new1-old1, new2-old2, models.MatchStatusVerified); err != nil {
		return fmt.Errorf("failed to close match as draw: %w", err)
	}

	payload := map[string]interface{}{"match_id": match.ID, "outcome": "draw"}
	s.notifier.NotifyPlayer(match.Player1, EventMatchExpired, payload)
	s.notifier.NotifyPlayer(match.Player2, EventMatchExpired, payload)

	s.logger.Info("expired match closed as draw",
		slog.Int("match_id", match.ID),
		slog.String("player1", match.Player1),
		slog.String("player2", match.Player2))
	return nil
}
