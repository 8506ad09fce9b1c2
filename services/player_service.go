package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/elobot/ladder-system/models"
	"github.com/elobot/ladder-system/repositories"
)

// PlayerService — реестр игроков. Игрок создаётся при верификации и
// удаляется только явной командой модератора, вместе с историей матчей.
type PlayerService interface {
	Verify(ctx context.Context, externalID, nickname string) (*models.Player, error)
	GetByNickname(ctx context.Context, nickname string) (*models.Player, error)
	Leaderboard(ctx context.Context, mode models.Mode, limit int) ([]*models.Player, error)
	SetBanned(ctx context.Context, nickname string, banned bool) error
	SetBlacklisted(ctx context.Context, nickname string, blacklisted bool) error

	// Purge удаляет игрока и всю его историю матчей в одной транзакции.
	Purge(ctx context.Context, nickname string) error

	// ClearQueueFlags сбрасывает флаги in_queue при старте процесса:
	// очереди живут в памяти и не переживают рестарт.
	ClearQueueFlags(ctx context.Context) error
}

type playerService struct {
	db         *sql.DB
	playerRepo repositories.PlayerRepository
	matchRepo  repositories.MatchRepository
	logger     *slog.Logger
}

func NewPlayerService(
	db *sql.DB,
	playerRepo repositories.PlayerRepository,
	matchRepo repositories.MatchRepository,
	logger *slog.Logger,
) PlayerService {
	return &playerService{
		db:         db,
		playerRepo: playerRepo,
		matchRepo:  matchRepo,
		logger:     logger,
	}
}

func (s *playerService) Verify(ctx context.Context, externalID, nickname string) (*models.Player, error) {
	if externalID == "" || nickname == "" {
		return nil, ErrValidationFailed
	}

	player := &models.Player{
		ExternalID:   externalID,
		Nickname:     nickname,
		EloStation5F: models.DefaultRating,
		EloMotS:      models.DefaultRating,
		Elo12Min:     models.DefaultRating,
	}
	player.CurrentElo = player.EloStation5F + player.EloMotS + player.Elo12Min

	if err := s.playerRepo.Create(ctx, player); err != nil {
		switch {
		case errors.Is(err, repositories.ErrPlayerNicknameConflict):
			return nil, ErrNicknameConflict
		case errors.Is(err, repositories.ErrPlayerExternalIDConflict):
			return nil, ErrExternalIDConflict
		}
		return nil, fmt.Errorf("failed to create player: %w", err)
	}

	s.logger.Info("player verified", slog.String("nickname", nickname))
	return player, nil
}

func (s *playerService) GetByNickname(ctx context.Context, nickname string) (*models.Player, error) {
	player, err := s.playerRepo.GetByNickname(ctx, nickname)
	if err != nil {
		if errors.Is(err, repositories.ErrPlayerNotFound) {
			return nil, ErrPlayerNotFound
		}
		return nil, fmt.Errorf("failed to load player %s: %w", nickname, err)
	}
	return player, nil
}

func (s *playerService) Leaderboard(ctx context.Context, mode models.Mode, limit int) ([]*models.Player, error) {
	if !mode.Valid() {
		return nil, ErrInvalidMode
	}
	if limit <= 0 {
		limit = 10
	}
	players, err := s.playerRepo.Leaderboard(ctx, mode, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load leaderboard: %w", err)
	}
	return players, nil
}

func (s *playerService) SetBanned(ctx context.Context, nickname string, banned bool) error {
	if err := s.playerRepo.SetBanned(ctx, nickname, banned); err != nil {
		if errors.Is(err, repositories.ErrPlayerNotFound) {
			return ErrPlayerNotFound
		}
		return fmt.Errorf("failed to update ban flag: %w", err)
	}
	return nil
}

func (s *playerService) SetBlacklisted(ctx context.Context, nickname string, blacklisted bool) error {
	if err := s.playerRepo.SetBlacklisted(ctx, nickname, blacklisted); err != nil {
		if errors.Is(err, repositories.ErrPlayerNotFound) {
			return ErrPlayerNotFound
		}
		return fmt.Errorf("failed to update blacklist flag: %w", err)
	}
	return nil
}

func (s *playerService) Purge(ctx context.Context, nickname string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin purge transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.matchRepo.DeleteByPlayer(ctx, tx, nickname); err != nil {
		return err
	}
	if err := s.playerRepo.Delete(ctx, tx, nickname); err != nil {
		if errors.Is(err, repositories.ErrPlayerNotFound) {
			return ErrPlayerNotFound
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit purge transaction: %w", err)
	}

	s.logger.Info("player purged", slog.String("nickname", nickname))
	return nil
}

func (s *playerService) ClearQueueFlags(ctx context.Context) error {
	if err := s.playerRepo.ClearAllInQueue(ctx); err != nil {
		return fmt.Errorf("failed to clear queue flags: %w", err)
	}
	return nil
}
