// Package repository provides data access layer implementations.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"telegram-wordle-bot/internal/model"
)

// Common errors for repository operations.
var (
	ErrGameNotFound = errors.New("game not found")
)

const gameColumns = `id, space_id, channel_id, state, target_word, winner_user_id, game_number, created_at, won_at`

// GameRepository handles game persistence, including the per-channel game
// number counter and the atomic win-lock.
type GameRepository struct {
	pool *pgxpool.Pool
}

// NewGameRepository creates a new GameRepository instance.
func NewGameRepository(pool *pgxpool.Pool) *GameRepository {
	return &GameRepository{pool: pool}
}

func scanGame(row pgx.Row) (*model.Game, error) {
	var g model.Game
	err := row.Scan(
		&g.ID,
		&g.SpaceID,
		&g.ChannelID,
		&g.State,
		&g.TargetWord,
		&g.WinnerUserID,
		&g.GameNumber,
		&g.CreatedAt,
		&g.WonAt,
	)
	if err != nil {
		return nil, err
	}
	return &g, nil
}

// Create creates a new ACTIVE game for a channel with the next game number.
// The number comes from a dedicated counter row so the sequence stays
// strictly increasing even if old games are pruned. The partial unique index
// on ACTIVE games rejects a second concurrent create for the same channel.
func (r *GameRepository) Create(ctx context.Context, spaceID, channelID, targetWord string) (*model.Game, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	const counterQuery = `
		INSERT INTO game_counters (space_id, channel_id, last_number)
		VALUES ($1, $2, 1)
		ON CONFLICT (space_id, channel_id)
		DO UPDATE SET last_number = game_counters.last_number + 1
		RETURNING last_number
	`

	var gameNumber int64
	if err := tx.QueryRow(ctx, counterQuery, spaceID, channelID).Scan(&gameNumber); err != nil {
		return nil, fmt.Errorf("failed to allocate game number: %w", err)
	}

	const insertQuery = `
		INSERT INTO games (space_id, channel_id, state, target_word, game_number, created_at)
		VALUES ($1, $2, 'ACTIVE', $3, $4, NOW())
		RETURNING ` + gameColumns

	game, err := scanGame(tx.QueryRow(ctx, insertQuery, spaceID, channelID, targetWord, gameNumber))
	if err != nil {
		return nil, fmt.Errorf("failed to create game: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit game creation: %w", err)
	}

	return game, nil
}

// GetCurrent returns the unique ACTIVE game for a channel, or
// ErrGameNotFound when the channel has none.
func (r *GameRepository) GetCurrent(ctx context.Context, spaceID, channelID string) (*model.Game, error) {
	const query = `
		SELECT ` + gameColumns + `
		FROM games
		WHERE space_id = $1 AND channel_id = $2 AND state = 'ACTIVE'
	`

	game, err := scanGame(r.pool.QueryRow(ctx, query, spaceID, channelID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrGameNotFound
		}
		return nil, fmt.Errorf("failed to get current game: %w", err)
	}
	return game, nil
}

// GetByID retrieves a game by its ID.
func (r *GameRepository) GetByID(ctx context.Context, gameID int64) (*model.Game, error) {
	const query = `SELECT ` + gameColumns + ` FROM games WHERE id = $1`

	game, err := scanGame(r.pool.QueryRow(ctx, query, gameID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrGameNotFound
		}
		return nil, fmt.Errorf("failed to get game: %w", err)
	}
	return game, nil
}

// TryWinLock atomically transitions a game from ACTIVE to PAYOUT_PENDING,
// recording the winner. The guarded UPDATE is the compare-and-swap that
// guarantees at most one winner per game: under concurrent correct guesses
// exactly one caller sees true, everyone else sees false.
func (r *GameRepository) TryWinLock(ctx context.Context, gameID int64, winnerUserID string) (bool, error) {
	const query = `
		UPDATE games
		SET state = 'PAYOUT_PENDING', winner_user_id = $2, won_at = NOW()
		WHERE id = $1 AND state = 'ACTIVE'
	`

	tag, err := r.pool.Exec(ctx, query, gameID, winnerUserID)
	if err != nil {
		return false, fmt.Errorf("failed to acquire win lock: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// TryEndWithoutWinner transitions a game from ACTIVE to PAYOUT_PENDING with
// no winner recorded. Used by admin rollover. Same CAS semantics as
// TryWinLock.
func (r *GameRepository) TryEndWithoutWinner(ctx context.Context, gameID int64) (bool, error) {
	const query = `
		UPDATE games
		SET state = 'PAYOUT_PENDING'
		WHERE id = $1 AND state = 'ACTIVE'
	`

	tag, err := r.pool.Exec(ctx, query, gameID)
	if err != nil {
		return false, fmt.Errorf("failed to end game: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// Leaderboard aggregates winners across all decided games in a space:
// number of wins, the winner's own guess count in those games, and the sum
// of successfully paid out amounts. Sorted by wins, then winnings.
func (r *GameRepository) Leaderboard(ctx context.Context, spaceID string, limit int) ([]*model.LeaderboardEntry, error) {
	const query = `
		SELECT g.winner_user_id,
		       COUNT(*) AS wins,
		       COALESCE(SUM(gu.cnt), 0) AS total_guesses,
		       COALESCE(SUM(pa.total), 0)::text AS total_winnings
		FROM games g
		LEFT JOIN LATERAL (
			SELECT COUNT(*) AS cnt
			FROM guesses q
			WHERE q.game_id = g.id AND q.user_id = g.winner_user_id
		) gu ON TRUE
		LEFT JOIN LATERAL (
			SELECT SUM(p.amount) AS total
			FROM payouts p
			WHERE p.game_id = g.id AND p.status = 'success'
		) pa ON TRUE
		WHERE g.space_id = $1 AND g.winner_user_id IS NOT NULL
		GROUP BY g.winner_user_id
		ORDER BY wins DESC, COALESCE(SUM(pa.total), 0) DESC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, spaceID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query leaderboard: %w", err)
	}
	defer rows.Close()

	var entries []*model.LeaderboardEntry
	for rows.Next() {
		var e model.LeaderboardEntry
		var winnings string
		if err := rows.Scan(&e.UserID, &e.Wins, &e.TotalGuesses, &winnings); err != nil {
			return nil, fmt.Errorf("failed to scan leaderboard entry: %w", err)
		}
		e.TotalWinnings, err = parseAmount(winnings)
		if err != nil {
			return nil, fmt.Errorf("failed to parse winnings: %w", err)
		}
		entries = append(entries, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating leaderboard: %w", err)
	}

	return entries, nil
}
