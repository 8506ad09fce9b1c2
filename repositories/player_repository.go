package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/elobot/ladder-system/models"
	"github.com/lib/pq"
)

var (
	ErrPlayerNotFound           = errors.New("player not found")
	ErrPlayerNicknameConflict   = errors.New("player nickname conflict")
	ErrPlayerExternalIDConflict = errors.New("player external id conflict")
)

const playerColumns = `
	id, nickname, external_id,
	current_elo, elo_station5f, elo_mots, elo_12min,
	wins, losses, ties,
	wins_station5f, losses_station5f, ties_station5f,
	wins_mots, losses_mots, ties_mots,
	wins_12min, losses_12min, ties_12min,
	in_queue, is_banned, is_blacklisted, created_at`

type PlayerRepository interface {
	Create(ctx context.Context, player *models.Player) error
	GetByNickname(ctx context.Context, nickname string) (*models.Player, error)
	GetByExternalID(ctx context.Context, externalID string) (*models.Player, error)
	// UpdateModeRating sets the rating for one mode and recomputes the
	// aggregate in the same statement.
	UpdateModeRating(ctx context.Context, nickname string, mode models.Mode, newRating int) error
	// AdjustRecord applies win/loss/tie deltas to the global and
	// per-mode counters. Deltas may be negative (result rollback).
	AdjustRecord(ctx context.Context, nickname string, mode models.Mode, wins, losses, ties int) error
	SetInQueue(ctx context.Context, nickname string, inQueue bool) error
	ClearAllInQueue(ctx context.Context) error
	SetBanned(ctx context.Context, nickname string, banned bool) error
	SetBlacklisted(ctx context.Context, nickname string, blacklisted bool) error
	Delete(ctx context.Context, exec SQLExecutor, nickname string) error
	Leaderboard(ctx context.Context, mode models.Mode, limit int) ([]*models.Player, error)
}

type postgresPlayerRepository struct {
	db *sql.DB
}

func NewPostgresPlayerRepository(db *sql.DB) PlayerRepository {
	return &postgresPlayerRepository{db: db}
}

func (r *postgresPlayerRepository) Create(ctx context.Context, player *models.Player) error {
	query := `
		INSERT INTO players (nickname, external_id, current_elo, elo_station5f, elo_mots, elo_12min)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query,
		player.Nickname,
		player.ExternalID,
		player.CurrentElo,
		player.EloStation5F,
		player.EloMotS,
		player.Elo12Min,
	).Scan(&player.ID, &player.CreatedAt)

	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			switch pqErr.Constraint {
			case "players_nickname_key":
				return ErrPlayerNicknameConflict
			case "players_external_id_key":
				return ErrPlayerExternalIDConflict
			}
		}
		return fmt.Errorf("failed to insert player: %w", err)
	}
	return nil
}

func (r *postgresPlayerRepository) GetByNickname(ctx context.Context, nickname string) (*models.Player, error) {
	query := `SELECT ` + playerColumns + ` FROM players WHERE nickname = $1`
	return r.scanPlayer(r.db.QueryRowContext(ctx, query, nickname))
}

func (r *postgresPlayerRepository) GetByExternalID(ctx context.Context, externalID string) (*models.Player, error) {
	query := `SELECT ` + playerColumns + ` FROM players WHERE external_id = $1`
	return r.scanPlayer(r.db.QueryRowContext(ctx, query, externalID))
}

// ratingColumn мапит режим на колонку рейтинга.
func ratingColumn(mode models.Mode) (string, error) {
	switch mode {
	case models.ModeStation5F:
		return "elo_station5f", nil
	case models.ModeMotS:
		return "elo_mots", nil
	case models.Mode12Min:
		return "elo_12min", nil
	default:
		return "", fmt.Errorf("mode %d has no rating column", mode)
	}
}

func recordColumns(mode models.Mode) (wins, losses, ties string, err error) {
	switch mode {
	case models.ModeStation5F:
		return "wins_station5f", "losses_station5f", "ties_station5f", nil
	case models.ModeMotS:
		return "wins_mots", "losses_mots", "ties_mots", nil
	case models.Mode12Min:
		return "wins_12min", "losses_12min", "ties_12min", nil
	default:
		return "", "", "", fmt.Errorf("mode %d has no record columns", mode)
	}
}

func (r *postgresPlayerRepository) UpdateModeRating(ctx context.Context, nickname string, mode models.Mode, newRating int) error {
	column, err := ratingColumn(mode)
	if err != nil {
		return err
	}

	// Агрегат пересчитывается в том же запросе, чтобы не разъезжался
	// с режимными рейтингами.
	query := fmt.Sprintf(`
		UPDATE players
		SET %[1]s = $1,
		    current_elo = elo_station5f + elo_mots + elo_12min - %[1]s + $1
		WHERE nickname = $2`, column)

	result, err := r.db.ExecContext(ctx, query, newRating, nickname)
	if err != nil {
		return fmt.Errorf("failed to update %s for %s: %w", column, nickname, err)
	}
	return checkAffectedRows(result, ErrPlayerNotFound)
}

func (r *postgresPlayerRepository) AdjustRecord(ctx context.Context, nickname string, mode models.Mode, wins, losses, ties int) error {
	winsCol, lossesCol, tiesCol, err := recordColumns(mode)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`
		UPDATE players
		SET wins = wins + $1, losses = losses + $2, ties = ties + $3,
		    %s = %s + $1, %s = %s + $2, %s = %s + $3
		WHERE nickname = $4`,
		winsCol, winsCol, lossesCol, lossesCol, tiesCol, tiesCol)

	result, err := r.db.ExecContext(ctx, query, wins, losses, ties, nickname)
	if err != nil {
		return fmt.Errorf("failed to adjust record for %s: %w", nickname, err)
	}
	return checkAffectedRows(result, ErrPlayerNotFound)
}

func (r *postgresPlayerRepository) SetInQueue(ctx context.Context, nickname string, inQueue bool) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE players SET in_queue = $1 WHERE nickname = $2`, inQueue, nickname)
	if err != nil {
		return fmt.Errorf("failed to set in_queue for %s: %w", nickname, err)
	}
	return checkAffectedRows(result, ErrPlayerNotFound)
}

func (r *postgresPlayerRepository) ClearAllInQueue(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE players SET in_queue = FALSE WHERE in_queue`); err != nil {
		return fmt.Errorf("failed to clear in_queue flags: %w", err)
	}
	return nil
}

func (r *postgresPlayerRepository) SetBanned(ctx context.Context, nickname string, banned bool) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE players SET is_banned = $1 WHERE nickname = $2`, banned, nickname)
	if err != nil {
		return fmt.Errorf("failed to set is_banned for %s: %w", nickname, err)
	}
	return checkAffectedRows(result, ErrPlayerNotFound)
}

func (r *postgresPlayerRepository) SetBlacklisted(ctx context.Context, nickname string, blacklisted bool) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE players SET is_blacklisted = $1 WHERE nickname = $2`, blacklisted, nickname)
	if err != nil {
		return fmt.Errorf("failed to set is_blacklisted for %s: %w", nickname, err)
	}
	return checkAffectedRows(result, ErrPlayerNotFound)
}

func (r *postgresPlayerRepository) Delete(ctx context.Context, exec SQLExecutor, nickname string) error {
	result, err := exec.ExecContext(ctx, `DELETE FROM players WHERE nickname = $1`, nickname)
	if err != nil {
		return fmt.Errorf("failed to delete player %s: %w", nickname, err)
	}
	return checkAffectedRows(result, ErrPlayerNotFound)
}

func (r *postgresPlayerRepository) Leaderboard(ctx context.Context, mode models.Mode, limit int) ([]*models.Player, error) {
	orderColumn := "current_elo"
	if mode != models.ModeAny {
		column, err := ratingColumn(mode)
		if err != nil {
			return nil, err
		}
		orderColumn = column
	}

	query := fmt.Sprintf(`SELECT %s FROM players ORDER BY %s DESC, nickname ASC LIMIT $1`,
		playerColumns, orderColumn)

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query leaderboard: %w", err)
	}
	defer rows.Close()

	players := make([]*models.Player, 0)
	for rows.Next() {
		player, scanErr := r.scanPlayerRow(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		players = append(players, player)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during leaderboard rows iteration: %w", err)
	}
	return players, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (r *postgresPlayerRepository) scanPlayer(row *sql.Row) (*models.Player, error) {
	player, err := scanPlayerFields(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPlayerNotFound
		}
		return nil, fmt.Errorf("failed to scan player: %w", err)
	}
	return player, nil
}

func (r *postgresPlayerRepository) scanPlayerRow(rows *sql.Rows) (*models.Player, error) {
	player, err := scanPlayerFields(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to scan player row: %w", err)
	}
	return player, nil
}

func scanPlayerFields(s rowScanner) (*models.Player, error) {
	player := &models.Player{}
	err := s.Scan(
		&player.ID,
		&player.Nickname,
		&player.ExternalID,
		&player.CurrentElo,
		&player.EloStation5F,
		&player.EloMotS,
		&player.Elo12Min,
		&player.Wins,
		&player.Losses,
		&player.Ties,
		&player.WinsStation5F,
		&player.LossesStation5F,
		&player.TiesStation5F,
		&player.WinsMotS,
		&player.LossesMotS,
		&player.TiesMotS,
		&player.Wins12Min,
		&player.Losses12Min,
		&player.Ties12Min,
		&player.InQueue,
		&player.IsBanned,
		&player.IsBlacklisted,
		&player.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return player, nil
}
