package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/elobot/ladder-system/models"
)

var ErrMatchNotFound = errors.New("match not found")

const matchColumns = `
	id, mode, player1, player2, status, player1_score, player2_score,
	map, rating_delta1, rating_delta2, start_time, match_type, tournament_id, round`

type MatchRepository interface {
	Create(ctx context.Context, match *models.Match) error
	GetByID(ctx context.Context, id int) (*models.Match, error)
	UpdateStatus(ctx context.Context, id int, status models.MatchStatus) error
	// SetResult writes both scores, the applied rating deltas and the new
	// status in one statement.
	SetResult(ctx context.Context, id int, score1, score2, delta1, delta2 int, status models.MatchStatus) error
	SetMap(ctx context.Context, id int, mapName string) error
	// ListUnresolvedByType returns matches that still block their
	// participants, for the given concurrency domain (ladder/tournament).
	ListUnresolvedByType(ctx context.Context, matchType models.MatchType) ([]*models.Match, error)
	// ListExpiredLadder returns ladder matches still awaiting a first
	// submission whose start time is older than the cutoff.
	ListExpiredLadder(ctx context.Context, before time.Time) ([]*models.Match, error)
	ListByStatus(ctx context.Context, status models.MatchStatus) ([]*models.Match, error)
	ListByTournament(ctx context.Context, tournamentID int) ([]*models.Match, error)
	HasUnresolvedLadderMatch(ctx context.Context, nickname string) (bool, error)
	// DeleteByPlayer removes a purged player's match history.
	DeleteByPlayer(ctx context.Context, exec SQLExecutor, nickname string) error
}

type postgresMatchRepository struct {
	db *sql.DB
}

func NewPostgresMatchRepository(db *sql.DB) MatchRepository {
	return &postgresMatchRepository{db: db}
}

func (r *postgresMatchRepository) Create(ctx context.Context, match *models.Match) error {
	query := `
		INSERT INTO matches (mode, player1, player2, status, map, start_time, match_type, tournament_id, round)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`

	err := r.db.QueryRowContext(ctx, query,
		match.Mode,
		match.Player1,
		match.Player2,
		match.Status,
		match.Map,
		match.StartTime,
		match.Type,
		match.TournamentID,
		match.Round,
	).Scan(&match.ID)
	if err != nil {
		return fmt.Errorf("failed to insert match: %w", err)
	}
	return nil
}

func (r *postgresMatchRepository) GetByID(ctx context.Context, id int) (*models.Match, error) {
	query := `SELECT ` + matchColumns + ` FROM matches WHERE id = $1`

	match, err := scanMatchFields(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("failed to scan match %d: %w", id, err)
	}
	return match, nil
}

func (r *postgresMatchRepository) UpdateStatus(ctx context.Context, id int, status models.MatchStatus) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE matches SET status = $1 WHERE id = $2`, status, id)
	if err != nil {
		return fmt.Errorf("failed to update status of match %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

func (r *postgresMatchRepository) SetResult(ctx context.Context, id int, score1, score2, delta1, delta2 int, status models.MatchStatus) error {
	query := `
		UPDATE matches
		SET player1_score = $1, player2_score = $2, rating_delta1 = $3, rating_delta2 = $4, status = $5
		WHERE id = $6`

	result, err := r.db.ExecContext(ctx, query, score1, score2, delta1, delta2, status, id)
	if err != nil {
		return fmt.Errorf("failed to set result of match %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

func (r *postgresMatchRepository) SetMap(ctx context.Context, id int, mapName string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE matches SET map = $1 WHERE id = $2`, mapName, id)
	if err != nil {
		return fmt.Errorf("failed to set map of match %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

func (r *postgresMatchRepository) ListUnresolvedByType(ctx context.Context, matchType models.MatchType) ([]*models.Match, error) {
	query := `SELECT ` + matchColumns + ` FROM matches WHERE status <> $1 AND match_type = $2`
	return r.queryMatches(ctx, query, models.MatchStatusVerified, matchType)
}

func (r *postgresMatchRepository) ListExpiredLadder(ctx context.Context, before time.Time) ([]*models.Match, error) {
	query := `SELECT ` + matchColumns + ` FROM matches
		WHERE status = $1 AND match_type = $2 AND start_time < $3`
	return r.queryMatches(ctx, query, models.MatchStatusInProgress, models.MatchTypeLadder, before)
}

func (r *postgresMatchRepository) ListByStatus(ctx context.Context, status models.MatchStatus) ([]*models.Match, error) {
	query := `SELECT ` + matchColumns + ` FROM matches WHERE status = $1`
	return r.queryMatches(ctx, query, status)
}

func (r *postgresMatchRepository) ListByTournament(ctx context.Context, tournamentID int) ([]*models.Match, error) {
	query := `SELECT ` + matchColumns + ` FROM matches WHERE tournament_id = $1 ORDER BY round ASC, id ASC`
	return r.queryMatches(ctx, query, tournamentID)
}

func (r *postgresMatchRepository) HasUnresolvedLadderMatch(ctx context.Context, nickname string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM matches
			WHERE status <> $1 AND match_type = $2 AND (player1 = $3 OR player2 = $3)
		)`

	var exists bool
	err := r.db.QueryRowContext(ctx, query,
		models.MatchStatusVerified, models.MatchTypeLadder, nickname).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check unresolved ladder match for %s: %w", nickname, err)
	}
	return exists, nil
}

func (r *postgresMatchRepository) DeleteByPlayer(ctx context.Context, exec SQLExecutor, nickname string) error {
	_, err := exec.ExecContext(ctx,
		`DELETE FROM matches WHERE player1 = $1 OR player2 = $1`, nickname)
	if err != nil {
		return fmt.Errorf("failed to delete matches of player %s: %w", nickname, err)
	}
	return nil
}

func (r *postgresMatchRepository) queryMatches(ctx context.Context, query string, args ...interface{}) ([]*models.Match, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query matches: %w", err)
	}
	defer rows.Close()

	matches := make([]*models.Match, 0)
	for rows.Next() {
		match, scanErr := scanMatchFields(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan match row: %w", scanErr)
		}
		matches = append(matches, match)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during match rows iteration: %w", err)
	}
	return matches, nil
}

func scanMatchFields(s rowScanner) (*models.Match, error) {
	match := &models.Match{}
	err := s.Scan(
		&match.ID,
		&match.Mode,
		&match.Player1,
		&match.Player2,
		&match.Status,
		&match.Player1Score,
		&match.Player2Score,
		&match.Map,
		&match.RatingDelta1,
		&match.RatingDelta2,
		&match.StartTime,
		&match.Type,
		&match.TournamentID,
		&match.Round,
	)
	if err != nil {
		return nil, err
	}
	return match, nil
}
