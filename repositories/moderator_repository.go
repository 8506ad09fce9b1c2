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
	ErrModeratorNotFound         = errors.New("moderator not found")
	ErrModeratorUsernameConflict = errors.New("moderator username conflict")
)

type ModeratorRepository interface {
	Create(ctx context.Context, moderator *models.Moderator) error
	GetByUsername(ctx context.Context, username string) (*models.Moderator, error)
}

type postgresModeratorRepository struct {
	db *sql.DB
}

func NewPostgresModeratorRepository(db *sql.DB) ModeratorRepository {
	return &postgresModeratorRepository{db: db}
}

func (r *postgresModeratorRepository) Create(ctx context.Context, moderator *models.Moderator) error {
	query := `
		INSERT INTO moderators (username, password_hash)
		VALUES ($1, $2)
		RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query,
		moderator.Username, moderator.PasswordHash,
	).Scan(&moderator.ID, &moderator.CreatedAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return ErrModeratorUsernameConflict
		}
		return fmt.Errorf("failed to insert moderator: %w", err)
	}
	return nil
}

func (r *postgresModeratorRepository) GetByUsername(ctx context.Context, username string) (*models.Moderator, error) {
	query := `SELECT id, username, password_hash, created_at FROM moderators WHERE username = $1`

	moderator := &models.Moderator{}
	err := r.db.QueryRowContext(ctx, query, username).Scan(
		&moderator.ID,
		&moderator.Username,
		&moderator.PasswordHash,
		&moderator.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrModeratorNotFound
		}
		return nil, fmt.Errorf("failed to scan moderator: %w", err)
	}
	return moderator, nil
}
