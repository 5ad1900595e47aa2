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

// Wallet errors.
var (
	ErrWalletNotFound = errors.New("wallet not found")
)

// PayoutRepository handles payout records.
type PayoutRepository struct {
	pool *pgxpool.Pool
}

// NewPayoutRepository creates a new PayoutRepository instance.
func NewPayoutRepository(pool *pgxpool.Pool) *PayoutRepository {
	return &PayoutRepository{pool: pool}
}

// Create appends one payout record.
func (r *PayoutRepository) Create(ctx context.Context, gameID int64, token string, amount *big.Int, txHash, status string) (*model.Payout, error) {
	const query = `
		INSERT INTO payouts (id, game_id, token, amount, tx_hash, status, created_at)
		VALUES ($1, $2, $3, $4::numeric, $5, $6, NOW())
		RETURNING id, game_id, token, amount::text, tx_hash, status, created_at
	`

	var p model.Payout
	var s string
	err := r.pool.QueryRow(ctx, query, uuid.NewString(), gameID, token, amountArg(amount), txHash, status).Scan(
		&p.ID,
		&p.GameID,
		&p.Token,
		&s,
		&p.TxHash,
		&p.Status,
		&p.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to record payout: %w", err)
	}
	if p.Amount, err = parseAmount(s); err != nil {
		return nil, fmt.Errorf("failed to parse payout amount: %w", err)
	}
	return &p, nil
}

// ListByGame returns all payouts recorded for a game.
func (r *PayoutRepository) ListByGame(ctx context.Context, gameID int64) ([]*model.Payout, error) {
	const query = `
		SELECT id, game_id, token, amount::text, tx_hash, status, created_at
		FROM payouts
		WHERE game_id = $1
		ORDER BY created_at
	`

	rows, err := r.pool.Query(ctx, query, gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to list payouts: %w", err)
	}
	defer rows.Close()

	var payouts []*model.Payout
	for rows.Next() {
		var p model.Payout
		var s string
		if err := rows.Scan(&p.ID, &p.GameID, &p.Token, &s, &p.TxHash, &p.Status, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan payout: %w", err)
		}
		if p.Amount, err = parseAmount(s); err != nil {
			return nil, fmt.Errorf("failed to parse payout amount: %w", err)
		}
		payouts = append(payouts, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating payouts: %w", err)
	}

	return payouts, nil
}

// WalletRepository maps chat users to payout addresses.
type WalletRepository struct {
	pool *pgxpool.Pool
}

// NewWalletRepository creates a new WalletRepository instance.
func NewWalletRepository(pool *pgxpool.Pool) *WalletRepository {
	return &WalletRepository{pool: pool}
}

// Upsert registers or replaces a user's payout address. Both identifier
// forms are stored normalized so lookups and deposit-sender comparisons stay
// case-insensitive.
func (r *WalletRepository) Upsert(ctx context.Context, userID, address string) error {
	const query = `
		INSERT INTO wallets (user_id, address, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (user_id)
		DO UPDATE SET address = EXCLUDED.address, updated_at = NOW()
	`

	if _, err := r.pool.Exec(ctx, query, model.NormalizeIdentifier(userID), model.NormalizeIdentifier(address)); err != nil {
		return fmt.Errorf("failed to upsert wallet: %w", err)
	}
	return nil
}

// GetAddress resolves a user's payout address. Returns ErrWalletNotFound
// when the user never registered one.
func (r *WalletRepository) GetAddress(ctx context.Context, userID string) (string, error) {
	const query = `SELECT address FROM wallets WHERE user_id = $1`

	var address string
	err := r.pool.QueryRow(ctx, query, model.NormalizeIdentifier(userID)).Scan(&address)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrWalletNotFound
		}
		return "", fmt.Errorf("failed to get wallet: %w", err)
	}
	return address, nil
}
