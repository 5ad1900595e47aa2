package service

import (
	"context"
	"math/big"

	"github.com/rs/zerolog/log"

	"telegram-wordle-bot/internal/model"
)

// Tip is one observed tip event. Handle is the tipper's chat identity;
// FromAddress is the technical sender on chain. Either may be empty when
// the transport only exposes one form.
type Tip struct {
	Handle      string
	FromAddress string
	Token       string
	Amount      *big.Int
}

// PoolStore is the slice of the pool repository the tip flow needs.
type PoolStore interface {
	RecordDeposit(ctx context.Context, gameID int64, sender, token string, amount *big.Int) (*model.Deposit, error)
	MarkEligible(ctx context.Context, gameID int64, identifier string) error
}

// TipService turns tip events into deposits, pool credits and eligibility.
type TipService struct {
	games *GameService
	pools PoolStore
}

// NewTipService creates a new TipService instance.
func NewTipService(games *GameService, pools PoolStore) *TipService {
	return &TipService{games: games, pools: pools}
}

// RecordTip credits the channel's current game with a tip and marks the
// tipper eligible under both identifier forms. The deposit and its pool
// credit are atomic; eligibility marks are idempotent set-adds, and even a
// missed mark is recoverable through the deposit-sender fallback.
func (s *TipService) RecordTip(ctx context.Context, channelID string, tip Tip) (*model.Deposit, error) {
	game, err := s.games.CurrentGame(ctx, channelID)
	if err != nil {
		return nil, err
	}

	sender := tip.FromAddress
	if sender == "" {
		sender = tip.Handle
	}

	deposit, err := s.pools.RecordDeposit(ctx, game.ID, sender, tip.Token, tip.Amount)
	if err != nil {
		return nil, err
	}

	for _, id := range []string{tip.Handle, tip.FromAddress} {
		if id == "" {
			continue
		}
		if err := s.pools.MarkEligible(ctx, game.ID, id); err != nil {
			log.Warn().Err(err).Int64("game_id", game.ID).Str("identifier", id).Msg("Failed to mark eligible")
		}
	}

	log.Info().
		Int64("game_id", game.ID).
		Str("sender", sender).
		Str("token", tip.Token).
		Str("amount", tip.Amount.String()).
		Msg("Tip recorded")

	return deposit, nil
}
