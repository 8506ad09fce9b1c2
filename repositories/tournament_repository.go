package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/elobot/ladder-system/models"
	"github.com/lib/pq"
)

var (
	ErrTournamentNotFound     = errors.New("tournament not found")
	ErrTournamentNameConflict = errors.New("tournament name conflict")
	ErrBracketStateNotFound   = errors.New("bracket state not found")
)

type TournamentRepository interface {
	Create(ctx context.Context, tournament *models.Tournament) error
	GetByID(ctx context.Context, id int) (*models.Tournament, error)
	GetByName(ctx context.Context, name string) (*models.Tournament, error)
	SetStarted(ctx context.Context, id int, started bool) error

	AddParticipant(ctx context.Context, tournamentID, playerID int, nickname string) error
	RemoveParticipant(ctx context.Context, tournamentID, playerID int) error
	ListParticipants(ctx context.Context, tournamentID int) ([]models.Participant, error)

	AddBan(ctx context.Context, tournamentID, playerID int) error
	IsBanned(ctx context.Context, tournamentID, playerID int) (bool, error)

	// Bracket state is serialized as JSON so an in-flight bracket can be
	// resumed after a process restart.
	SaveBracketState(ctx context.Context, state *models.BracketState) error
	LoadBracketState(ctx context.Context, tournamentID int) (*models.BracketState, error)
	ListBracketStates(ctx context.Context) ([]*models.BracketState, error)
	DeleteBracketState(ctx context.Context, tournamentID int) error
}

type postgresTournamentRepository struct {
	db *sql.DB
}

func NewPostgresTournamentRepository(db *sql.DB) TournamentRepository {
	return &postgresTournamentRepository{db: db}
}

func (r *postgresTournamentRepository) Create(ctx context.Context, tournament *models.Tournament) error {
	query := `
		INSERT INTO tournaments (name, slots, started)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query,
		tournament.Name, tournament.Slots, tournament.Started,
	).Scan(&tournament.ID, &tournament.CreatedAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return ErrTournamentNameConflict
		}
		return fmt.Errorf("failed to insert tournament: %w", err)
	}
	return nil
}

func (r *postgresTournamentRepository) GetByID(ctx context.Context, id int) (*models.Tournament, error) {
	query := `SELECT id, name, slots, started, created_at FROM tournaments WHERE id = $1`
	return r.scanTournament(r.db.QueryRowContext(ctx, query, id))
}

func (r *postgresTournamentRepository) GetByName(ctx context.Context, name string) (*models.Tournament, error) {
	query := `SELECT id, name, slots, started, created_at FROM tournaments WHERE name = $1`
	return r.scanTournament(r.db.QueryRowContext(ctx, query, name))
}

func (r *postgresTournamentRepository) scanTournament(row *sql.Row) (*models.Tournament, error) {
	tournament := &models.Tournament{}
	err := row.Scan(
		&tournament.ID,
		&tournament.Name,
		&tournament.Slots,
		&tournament.Started,
		&tournament.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTournamentNotFound
		}
		return nil, fmt.Errorf("failed to scan tournament: %w", err)
	}
	return tournament, nil
}

func (r *postgresTournamentRepository) SetStarted(ctx context.Context, id int, started bool) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE tournaments SET started = $1 WHERE id = $2`, started, id)
	if err != nil {
		return fmt.Errorf("failed to set started for tournament %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}

func (r *postgresTournamentRepository) AddParticipant(ctx context.Context, tournamentID, playerID int, nickname string) error {
	query := `
		INSERT INTO tournament_participants (tournament_id, player_id, nickname)
		VALUES ($1, $2, $3)
		ON CONFLICT (tournament_id, player_id) DO NOTHING`

	if _, err := r.db.ExecContext(ctx, query, tournamentID, playerID, nickname); err != nil {
		return fmt.Errorf("failed to add participant %d to tournament %d: %w", playerID, tournamentID, err)
	}
	return nil
}

func (r *postgresTournamentRepository) RemoveParticipant(ctx context.Context, tournamentID, playerID int) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM tournament_participants WHERE tournament_id = $1 AND player_id = $2`,
		tournamentID, playerID)
	if err != nil {
		return fmt.Errorf("failed to remove participant %d from tournament %d: %w", playerID, tournamentID, err)
	}
	return nil
}

func (r *postgresTournamentRepository) ListParticipants(ctx context.Context, tournamentID int) ([]models.Participant, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT player_id, nickname FROM tournament_participants WHERE tournament_id = $1 ORDER BY id ASC`,
		tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query participants of tournament %d: %w", tournamentID, err)
	}
	defer rows.Close()

	participants := make([]models.Participant, 0)
	for rows.Next() {
		var p models.Participant
		if scanErr := rows.Scan(&p.PlayerID, &p.Nickname); scanErr != nil {
			return nil, fmt.Errorf("failed to scan participant row: %w", scanErr)
		}
		participants = append(participants, p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during participant rows iteration: %w", err)
	}
	return participants, nil
}

func (r *postgresTournamentRepository) AddBan(ctx context.Context, tournamentID, playerID int) error {
	query := `
		INSERT INTO tournament_bans (tournament_id, player_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING`

	if _, err := r.db.ExecContext(ctx, query, tournamentID, playerID); err != nil {
		return fmt.Errorf("failed to ban player %d in tournament %d: %w", playerID, tournamentID, err)
	}
	return nil
}

func (r *postgresTournamentRepository) IsBanned(ctx context.Context, tournamentID, playerID int) (bool, error) {
	var banned bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM tournament_bans WHERE tournament_id = $1 AND player_id = $2)`,
		tournamentID, playerID).Scan(&banned)
	if err != nil {
		return false, fmt.Errorf("failed to check tournament ban: %w", err)
	}
	return banned, nil
}

func (r *postgresTournamentRepository) SaveBracketState(ctx context.Context, state *models.BracketState) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal bracket state: %w", err)
	}

	query := `
		INSERT INTO bracket_states (tournament_id, state)
		VALUES ($1, $2)
		ON CONFLICT (tournament_id) DO UPDATE SET state = EXCLUDED.state, updated_at = NOW()`

	if _, err := r.db.ExecContext(ctx, query, state.TournamentID, payload); err != nil {
		return fmt.Errorf("failed to save bracket state for tournament %d: %w", state.TournamentID, err)
	}
	return nil
}

func (r *postgresTournamentRepository) LoadBracketState(ctx context.Context, tournamentID int) (*models.BracketState, error) {
	var payload []byte
	err := r.db.QueryRowContext(ctx,
		`SELECT state FROM bracket_states WHERE tournament_id = $1`, tournamentID).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBracketStateNotFound
		}
		return nil, fmt.Errorf("failed to load bracket state for tournament %d: %w", tournamentID, err)
	}

	state := &models.BracketState{}
	if err := json.Unmarshal(payload, state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal bracket state for tournament %d: %w", tournamentID, err)
	}
	return state, nil
}

func (r *postgresTournamentRepository) ListBracketStates(ctx context.Context) ([]*models.BracketState, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT state FROM bracket_states`)
	if err != nil {
		return nil, fmt.Errorf("failed to query bracket states: %w", err)
	}
	defer rows.Close()

	states := make([]*models.BracketState, 0)
	for rows.Next() {
		var payload []byte
		if scanErr := rows.Scan(&payload); scanErr != nil {
			return nil, fmt.Errorf("failed to scan bracket state row: %w", scanErr)
		}
		state := &models.BracketState{}
		if err := json.Unmarshal(payload, state); err != nil {
			return nil, fmt.Errorf("failed to unmarshal bracket state: %w", err)
		}
		states = append(states, state)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during bracket state rows iteration: %w", err)
	}
	return states, nil
}

func (r *postgresTournamentRepository) DeleteBracketState(ctx context.Context, tournamentID int) error {
	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM bracket_states WHERE tournament_id = $1`, tournamentID); err != nil {
		return fmt.Errorf("failed to delete bracket state for tournament %d: %w", tournamentID, err)
	}
	return nil
}
