package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"telegram-wordle-bot/internal/model"
)

const guessColumns = `id, game_id, user_id, guess, feedback, created_at`

// GuessRepository handles the append-only guess log.
type GuessRepository struct {
	pool *pgxpool.Pool
}

// NewGuessRepository creates a new GuessRepository instance.
func NewGuessRepository(pool *pgxpool.Pool) *GuessRepository {
	return &GuessRepository{pool: pool}
}

// Create appends one guess. Duplicate submissions of the same word get their
// own rows; there is no per-user cap.
func (r *GuessRepository) Create(ctx context.Context, gameID int64, userID, guess, feedback string) (*model.Guess, error) {
	const query = `
		INSERT INTO guesses (id, game_id, user_id, guess, feedback, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		RETURNING ` + guessColumns

	row := r.pool.QueryRow(ctx, query, uuid.NewString(), gameID, userID, guess, feedback)
	g, err := scanGuess(row)
	if err != nil {
		return nil, fmt.Errorf("failed to create guess: %w", err)
	}
	return g, nil
}

// ListByGame returns all guesses for a game in submission order.
func (r *GuessRepository) ListByGame(ctx context.Context, gameID int64) ([]*model.Guess, error) {
	const query = `
		SELECT ` + guessColumns + `
		FROM guesses
		WHERE game_id = $1
		ORDER BY created_at
	`
	return r.list(ctx, query, gameID)
}

// ListByGameAndUser returns one user's guesses for a game in submission order.
func (r *GuessRepository) ListByGameAndUser(ctx context.Context, gameID int64, userID string) ([]*model.Guess, error) {
	const query = `
		SELECT ` + guessColumns + `
		FROM guesses
		WHERE game_id = $1 AND user_id = $2
		ORDER BY created_at
	`
	return r.list(ctx, query, gameID, userID)
}

func (r *GuessRepository) list(ctx context.Context, query string, args ...any) ([]*model.Guess, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query guesses: %w", err)
	}
	defer rows.Close()

	var guesses []*model.Guess
	for rows.Next() {
		g, err := scanGuess(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan guess: %w", err)
		}
		guesses = append(guesses, g)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating guesses: %w", err)
	}

	return guesses, nil
}

func scanGuess(row pgx.Row) (*model.Guess, error) {
	var g model.Guess
	err := row.Scan(
		&g.ID,
		&g.GameID,
		&g.UserID,
		&g.Guess,
		&g.Feedback,
		&g.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &g, nil
}
