package repository

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"telegram-wordle-bot/internal/model"
)

// Pool errors.
var (
	ErrNonPositiveAmount = errors.New("amount must be positive")
)

// PoolRepository handles the per-game token ledger, deposits and the
// eligibility set.
type PoolRepository struct {
	pool *pgxpool.Pool
}

// NewPoolRepository creates a new PoolRepository instance.
func NewPoolRepository(pool *pgxpool.Pool) *PoolRepository {
	return &PoolRepository{pool: pool}
}

const creditQuery = `
	INSERT INTO pools (game_id, token, balance, last_updated)
	VALUES ($1, $2, $3::numeric, NOW())
	ON CONFLICT (game_id, token)
	DO UPDATE SET balance = pools.balance + EXCLUDED.balance, last_updated = NOW()
`

// Credit adds amount to a game's tracked balance for a token, creating the
// row when absent. The ledger is additive only; the core never debits it.
func (r *PoolRepository) Credit(ctx context.Context, gameID int64, token string, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrNonPositiveAmount
	}

	if _, err := r.pool.Exec(ctx, creditQuery, gameID, token, amountArg(amount)); err != nil {
		return fmt.Errorf("failed to credit pool: %w", err)
	}
	return nil
}

// Balance returns the tracked balance for (game, token), zero when no row
// exists.
func (r *PoolRepository) Balance(ctx context.Context, gameID int64, token string) (*big.Int, error) {
	const query = `SELECT balance::text FROM pools WHERE game_id = $1 AND token = $2`

	var s string
	err := r.pool.QueryRow(ctx, query, gameID, token).Scan(&s)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return big.NewInt(0), nil
		}
		return nil, fmt.Errorf("failed to get pool balance: %w", err)
	}
	return parseAmount(s)
}

// Tokens lists the tokens tracked for a game.
func (r *PoolRepository) Tokens(ctx context.Context, gameID int64) ([]string, error) {
	const query = `SELECT token FROM pools WHERE game_id = $1 ORDER BY token`

	rows, err := r.pool.Query(ctx, query, gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to list pool tokens: %w", err)
	}
	defer rows.Close()

	var tokens []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("failed to scan token: %w", err)
		}
		tokens = append(tokens, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tokens: %w", err)
	}

	return tokens, nil
}

// Balances returns every tracked (token, balance) pair for a game.
func (r *PoolRepository) Balances(ctx context.Context, gameID int64) ([]*model.Pool, error) {
	const query = `
		SELECT game_id, token, balance::text, last_updated
		FROM pools
		WHERE game_id = $1
		ORDER BY token
	`

	rows, err := r.pool.Query(ctx, query, gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to list pool balances: %w", err)
	}
	defer rows.Close()

	var pools []*model.Pool
	for rows.Next() {
		var p model.Pool
		var s string
		if err := rows.Scan(&p.GameID, &p.Token, &s, &p.LastUpdated); err != nil {
			return nil, fmt.Errorf("failed to scan pool: %w", err)
		}
		if p.Balance, err = parseAmount(s); err != nil {
			return nil, fmt.Errorf("failed to parse balance: %w", err)
		}
		pools = append(pools, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating pools: %w", err)
	}

	return pools, nil
}

// RecordDeposit appends a deposit and credits the pool in one transaction.
// A deposit row is never written without its pool credit.
func (r *PoolRepository) RecordDeposit(ctx context.Context, gameID int64, sender, token string, amount *big.Int) (*model.Deposit, error) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrNonPositiveAmount
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	const depositQuery = `
		INSERT INTO deposits (id, game_id, sender, token, amount, created_at)
		VALUES ($1, $2, $3, $4, $5::numeric, NOW())
		RETURNING id, game_id, sender, token, amount::text, created_at
	`

	var d model.Deposit
	var s string
	err = tx.QueryRow(ctx, depositQuery, uuid.NewString(), gameID, sender, token, amountArg(amount)).Scan(
		&d.ID,
		&d.GameID,
		&d.Sender,
		&d.Token,
		&s,
		&d.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to record deposit: %w", err)
	}
	if d.Amount, err = parseAmount(s); err != nil {
		return nil, fmt.Errorf("failed to parse deposit amount: %w", err)
	}

	if _, err := tx.Exec(ctx, creditQuery, gameID, token, amountArg(amount)); err != nil {
		return nil, fmt.Errorf("failed to credit pool for deposit: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit deposit: %w", err)
	}

	return &d, nil
}

// ListDeposits returns all deposits for a game in arrival order.
func (r *PoolRepository) ListDeposits(ctx context.Context, gameID int64) ([]*model.Deposit, error) {
	const query = `
		SELECT id, game_id, sender, token, amount::text, created_at
		FROM deposits
		WHERE game_id = $1
		ORDER BY created_at
	`

	rows, err := r.pool.Query(ctx, query, gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to list deposits: %w", err)
	}
	defer rows.Close()

	var deposits []*model.Deposit
	for rows.Next() {
		var d model.Deposit
		var s string
		if err := rows.Scan(&d.ID, &d.GameID, &d.Sender, &d.Token, &s, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan deposit: %w", err)
		}
		if d.Amount, err = parseAmount(s); err != nil {
			return nil, fmt.Errorf("failed to parse deposit amount: %w", err)
		}
		deposits = append(deposits, &d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating deposits: %w", err)
	}

	return deposits, nil
}

// MarkEligible adds a normalized identifier to a game's eligible set.
// Idempotent: marking the same identifier twice leaves one entry.
func (r *PoolRepository) MarkEligible(ctx context.Context, gameID int64, identifier string) error {
	const query = `
		INSERT INTO eligible_players (game_id, identifier)
		VALUES ($1, $2)
		ON CONFLICT (game_id, identifier) DO NOTHING
	`

	id := model.NormalizeIdentifier(identifier)
	if id == "" {
		return nil
	}
	if _, err := r.pool.Exec(ctx, query, gameID, id); err != nil {
		return fmt.Errorf("failed to mark eligible: %w", err)
	}
	return nil
}

// IsEligible reports whether an identifier may submit scoring guesses for a
// game: either it was marked eligible, or it case-insensitively matches the
// sender of any recorded deposit. The fallback covers tippers known only by
// one identifier form at tip time.
func (r *PoolRepository) IsEligible(ctx context.Context, gameID int64, identifier string) (bool, error) {
	const query = `
		SELECT EXISTS(
			SELECT 1 FROM eligible_players WHERE game_id = $1 AND identifier = $2
		) OR EXISTS(
			SELECT 1 FROM deposits WHERE game_id = $1 AND LOWER(sender) = $2
		)
	`

	var eligible bool
	err := r.pool.QueryRow(ctx, query, gameID, model.NormalizeIdentifier(identifier)).Scan(&eligible)
	if err != nil {
		return false, fmt.Errorf("failed to check eligibility: %w", err)
	}
	return eligible, nil
}
