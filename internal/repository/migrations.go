package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// migrations are executed in order on startup. Statements are idempotent so
// the whole list runs on every boot.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS games (
		id BIGSERIAL PRIMARY KEY,
		space_id TEXT NOT NULL,
		channel_id TEXT NOT NULL,
		state TEXT NOT NULL DEFAULT 'ACTIVE',
		target_word TEXT NOT NULL,
		winner_user_id TEXT,
		game_number BIGINT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		won_at TIMESTAMPTZ
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_games_one_active
		ON games(space_id, channel_id) WHERE state = 'ACTIVE';
	CREATE INDEX IF NOT EXISTS idx_games_channel
		ON games(space_id, channel_id, game_number DESC);`,

	`CREATE TABLE IF NOT EXISTS game_counters (
		space_id TEXT NOT NULL,
		channel_id TEXT NOT NULL,
		last_number BIGINT NOT NULL DEFAULT 0,
		PRIMARY KEY (space_id, channel_id)
	);`,

	`CREATE TABLE IF NOT EXISTS guesses (
		id UUID PRIMARY KEY,
		game_id BIGINT NOT NULL REFERENCES games(id) ON DELETE CASCADE,
		user_id TEXT NOT NULL,
		guess TEXT NOT NULL,
		feedback TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
	CREATE INDEX IF NOT EXISTS idx_guesses_game ON guesses(game_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_guesses_game_user ON guesses(game_id, user_id);`,

	`CREATE TABLE IF NOT EXISTS pools (
		game_id BIGINT NOT NULL REFERENCES games(id) ON DELETE CASCADE,
		token TEXT NOT NULL,
		balance NUMERIC(78,0) NOT NULL DEFAULT 0 CHECK (balance >= 0),
		last_updated TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (game_id, token)
	);`,

	`CREATE TABLE IF NOT EXISTS deposits (
		id UUID PRIMARY KEY,
		game_id BIGINT NOT NULL REFERENCES games(id) ON DELETE CASCADE,
		sender TEXT NOT NULL,
		token TEXT NOT NULL,
		amount NUMERIC(78,0) NOT NULL CHECK (amount >= 0),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
	CREATE INDEX IF NOT EXISTS idx_deposits_game ON deposits(game_id);`,

	`CREATE TABLE IF NOT EXISTS payouts (
		id UUID PRIMARY KEY,
		game_id BIGINT NOT NULL REFERENCES games(id) ON DELETE CASCADE,
		token TEXT NOT NULL,
		amount NUMERIC(78,0) NOT NULL CHECK (amount >= 0),
		tx_hash TEXT NOT NULL,
		status TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
	CREATE INDEX IF NOT EXISTS idx_payouts_game ON payouts(game_id);`,

	`CREATE TABLE IF NOT EXISTS eligible_players (
		game_id BIGINT NOT NULL REFERENCES games(id) ON DELETE CASCADE,
		identifier TEXT NOT NULL,
		PRIMARY KEY (game_id, identifier)
	);`,

	`CREATE TABLE IF NOT EXISTS wallets (
		user_id TEXT PRIMARY KEY,
		address TEXT NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
}

// Migrate creates the database schema.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for i, stmt := range migrations {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	return nil
}
