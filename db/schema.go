package db

import (
	"context"
	"database/sql"
	"fmt"
)

// Схема создаётся при старте, если таблиц ещё нет.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS players (
		id SERIAL PRIMARY KEY,
		nickname TEXT NOT NULL UNIQUE,
		external_id TEXT NOT NULL UNIQUE,
		current_elo INTEGER NOT NULL DEFAULT 3000,
		elo_station5f INTEGER NOT NULL DEFAULT 1000,
		elo_mots INTEGER NOT NULL DEFAULT 1000,
		elo_12min INTEGER NOT NULL DEFAULT 1000,
		wins INTEGER NOT NULL DEFAULT 0,
		losses INTEGER NOT NULL DEFAULT 0,
		ties INTEGER NOT NULL DEFAULT 0,
		wins_station5f INTEGER NOT NULL DEFAULT 0,
		losses_station5f INTEGER NOT NULL DEFAULT 0,
		ties_station5f INTEGER NOT NULL DEFAULT 0,
		wins_mots INTEGER NOT NULL DEFAULT 0,
		losses_mots INTEGER NOT NULL DEFAULT 0,
		ties_mots INTEGER NOT NULL DEFAULT 0,
		wins_12min INTEGER NOT NULL DEFAULT 0,
		losses_12min INTEGER NOT NULL DEFAULT 0,
		ties_12min INTEGER NOT NULL DEFAULT 0,
		in_queue BOOLEAN NOT NULL DEFAULT FALSE,
		is_banned BOOLEAN NOT NULL DEFAULT FALSE,
		is_blacklisted BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS matches (
		id SERIAL PRIMARY KEY,
		mode INTEGER NOT NULL,
		player1 TEXT NOT NULL,
		player2 TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'in_progress',
		player1_score INTEGER,
		player2_score INTEGER,
		map TEXT,
		rating_delta1 INTEGER,
		rating_delta2 INTEGER,
		start_time TIMESTAMPTZ NOT NULL,
		match_type INTEGER NOT NULL DEFAULT 1,
		tournament_id INTEGER,
		round INTEGER
	)`,
	`CREATE INDEX IF NOT EXISTS idx_matches_status_type ON matches (status, match_type)`,
	`CREATE INDEX IF NOT EXISTS idx_matches_tournament ON matches (tournament_id)`,
	`CREATE TABLE IF NOT EXISTS tournaments (
		id SERIAL PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		slots INTEGER NOT NULL,
		started BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS tournament_participants (
		id SERIAL PRIMARY KEY,
		tournament_id INTEGER NOT NULL REFERENCES tournaments(id),
		player_id INTEGER NOT NULL,
		nickname TEXT NOT NULL,
		UNIQUE (tournament_id, player_id)
	)`,
	`CREATE TABLE IF NOT EXISTS tournament_bans (
		tournament_id INTEGER NOT NULL REFERENCES tournaments(id),
		player_id INTEGER NOT NULL,
		PRIMARY KEY (tournament_id, player_id)
	)`,
	`CREATE TABLE IF NOT EXISTS bracket_states (
		tournament_id INTEGER PRIMARY KEY REFERENCES tournaments(id),
		state JSONB NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS moderators (
		id SERIAL PRIMARY KEY,
		username TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
}

// InitSchema creates the tables if they do not exist yet.
func InitSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema statement: %w", err)
		}
	}
	return nil
}
