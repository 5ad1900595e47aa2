// Package service provides business logic implementations.
package service

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/rs/zerolog/log"

	"telegram-wordle-bot/internal/chain"
	"telegram-wordle-bot/internal/model"
	"telegram-wordle-bot/internal/repository"
	"telegram-wordle-bot/internal/words"
)

// Settlement errors.
var (
	ErrNothingToPay     = errors.New("payout plan is empty")
	ErrWinnerUnresolved = errors.New("winner has no payable address")
	ErrNoWinner         = errors.New("game has no recorded winner")
)

// GameStore is the game persistence surface the services need. The game
// repository satisfies it.
type GameStore interface {
	Create(ctx context.Context, spaceID, channelID, targetWord string) (*model.Game, error)
	GetCurrent(ctx context.Context, spaceID, channelID string) (*model.Game, error)
	GetByID(ctx context.Context, gameID int64) (*model.Game, error)
	TryWinLock(ctx context.Context, gameID int64, winnerUserID string) (bool, error)
	TryEndWithoutWinner(ctx context.Context, gameID int64) (bool, error)
	Leaderboard(ctx context.Context, spaceID string, limit int) ([]*model.LeaderboardEntry, error)
}

// PoolLedger is the pool bookkeeping surface the services need.
type PoolLedger interface {
	Balances(ctx context.Context, gameID int64) ([]*model.Pool, error)
	Credit(ctx context.Context, gameID int64, token string, amount *big.Int) error
	IsEligible(ctx context.Context, gameID int64, identifier string) (bool, error)
}

// PayoutRecorder persists settled payout legs.
type PayoutRecorder interface {
	Create(ctx context.Context, gameID int64, token string, amount *big.Int, txHash, status string) (*model.Payout, error)
}

// IdentityResolver maps a chat user to a payable address. The wallet
// repository satisfies it.
type IdentityResolver interface {
	GetAddress(ctx context.Context, userID string) (string, error)
}

// Messenger announces state changes to a channel. Fire-and-forget: a failed
// announcement never rolls back a settlement.
type Messenger interface {
	Announce(channelID, text string)
}

// PlanEntry is one asset leg of a payout plan.
type PlanEntry struct {
	Token  string
	Amount *big.Int
}

// SettlementService coordinates the win sequence and round transitions:
// payout planning, transfer execution, payout recording, new-game creation
// and balance rollover.
type SettlementService struct {
	gameRepo   GameStore
	poolRepo   PoolLedger
	payoutRepo PayoutRecorder
	words      *words.Source
	client     chain.Client
	resolver   IdentityResolver
	messenger  Messenger
}

// NewSettlementService creates a new SettlementService instance.
func NewSettlementService(
	gameRepo GameStore,
	poolRepo PoolLedger,
	payoutRepo PayoutRecorder,
	wordSource *words.Source,
	client chain.Client,
	resolver IdentityResolver,
	messenger Messenger,
) *SettlementService {
	return &SettlementService{
		gameRepo:   gameRepo,
		poolRepo:   poolRepo,
		payoutRepo: payoutRepo,
		words:      wordSource,
		client:     client,
		resolver:   resolver,
		messenger:  messenger,
	}
}

// SetMessenger installs the announcement sink. The bot is constructed after
// the services it depends on, so this is wired late during startup.
func (s *SettlementService) SetMessenger(m Messenger) {
	s.messenger = m
}

// BuildPayoutPlan computes what a winner receives: for every token tracked
// in the game's pool, min(tracked, actual on-chain balance), if positive.
// The tracked ledger and the chain are reconciled only here; the minimum
// both caps payouts at real holdings and stops one game from paying out
// another game's funds. Tokens whose real balance cannot be read are
// skipped so the remaining assets still pay.
func (s *SettlementService) BuildPayoutPlan(ctx context.Context, game *model.Game) ([]PlanEntry, error) {
	pools, err := s.poolRepo.Balances(ctx, game.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to read pool: %w", err)
	}

	var plan []PlanEntry
	for _, p := range pools {
		if p.Balance.Sign() <= 0 {
			continue
		}

		actual, err := s.client.Balance(ctx, p.Token)
		if err != nil {
			log.Warn().
				Err(err).
				Int64("game_id", game.ID).
				Str("token", p.Token).
				Msg("Skipping token: balance query failed")
			continue
		}

		amount := new(big.Int).Set(p.Balance)
		if actual.Cmp(amount) < 0 {
			amount.Set(actual)
		}
		if amount.Sign() > 0 {
			plan = append(plan, PlanEntry{Token: p.Token, Amount: amount})
		}
	}

	return plan, nil
}

// ExecutePayout resolves the winner's address, transfers every plan entry
// and records one success payout row per transferred asset. An empty plan
// is a hard error: a won game with nothing to pay means the books or the
// transport are broken, and silently skipping would strand the winner.
//
// Any transfer or confirmation failure returns before payout rows are
// written, leaving the game PAYOUT_PENDING with no rows. That stuck state
// is deliberate: retrying a financial transfer without an idempotency
// guarantee risks double payment, so recovery is a manual admin rollover.
func (s *SettlementService) ExecutePayout(ctx context.Context, game *model.Game) ([]*model.Payout, error) {
	if game.WinnerUserID == nil {
		return nil, ErrNoWinner
	}

	address, err := s.resolver.GetAddress(ctx, *game.WinnerUserID)
	if err != nil {
		if errors.Is(err, repository.ErrWalletNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrWinnerUnresolved, *game.WinnerUserID)
		}
		return nil, fmt.Errorf("failed to resolve winner address: %w", err)
	}

	plan, err := s.BuildPayoutPlan(ctx, game)
	if err != nil {
		return nil, err
	}
	if len(plan) == 0 {
		return nil, ErrNothingToPay
	}

	transfers := make([]chain.Transfer, 0, len(plan))
	for _, entry := range plan {
		transfers = append(transfers, chain.Transfer{
			To:     address,
			Token:  entry.Token,
			Amount: entry.Amount,
		})
	}

	txRef, err := s.client.Send(ctx, transfers)
	if err != nil {
		return nil, fmt.Errorf("failed to send payout: %w", err)
	}

	if err := s.client.AwaitConfirmation(ctx, txRef); err != nil {
		return nil, fmt.Errorf("payout confirmation failed: %w", err)
	}

	payouts := make([]*model.Payout, 0, len(plan))
	for _, entry := range plan {
		p, err := s.payoutRepo.Create(ctx, game.ID, entry.Token, entry.Amount, txRef, model.PayoutStatusSuccess)
		if err != nil {
			return payouts, fmt.Errorf("failed to record payout: %w", err)
		}
		payouts = append(payouts, p)
	}

	log.Info().
		Int64("game_id", game.ID).
		Str("winner", *game.WinnerUserID).
		Str("tx", txRef).
		Int("assets", len(payouts)).
		Msg("Payout settled")

	return payouts, nil
}

// StartNewGame creates a fresh ACTIVE game for a channel and announces it.
// If another caller created one concurrently, that game is returned instead.
func (s *SettlementService) StartNewGame(ctx context.Context, spaceID, channelID string) (*model.Game, error) {
	target, err := s.words.RandomSolution()
	if err != nil {
		return nil, fmt.Errorf("failed to draw target word: %w", err)
	}

	game, err := s.gameRepo.Create(ctx, spaceID, channelID, target)
	if err != nil {
		// The partial unique index rejects a second ACTIVE game; whoever
		// won that race has the game we want.
		if existing, getErr := s.gameRepo.GetCurrent(ctx, spaceID, channelID); getErr == nil {
			return existing, nil
		}
		return nil, fmt.Errorf("failed to start new game: %w", err)
	}

	if s.messenger != nil {
		s.messenger.Announce(channelID, fmt.Sprintf(
			"🎲 Round %d is live! Tip the pot to play, then guess with /wordle <word>.", game.GameNumber))
	}

	return game, nil
}

// SettleWin runs the post-win-lock sequence: pay the winner, start the next
// round, and roll any leftover tracked balances (tracked minus paid) into
// it. Returns the recorded payouts and the new game.
func (s *SettlementService) SettleWin(ctx context.Context, game *model.Game) ([]*model.Payout, *model.Game, error) {
	payouts, err := s.ExecutePayout(ctx, game)
	if err != nil {
		return nil, nil, err
	}

	next, err := s.StartNewGame(ctx, game.SpaceID, game.ChannelID)
	if err != nil {
		return payouts, nil, err
	}

	paid := make(map[string]*big.Int, len(payouts))
	for _, p := range payouts {
		paid[p.Token] = p.Amount
	}
	if err := s.carryLeftovers(ctx, game.ID, next.ID, paid); err != nil {
		// The new round is live and the winner is paid; a failed carry is
		// an accounting gap for the operator, not a settlement failure.
		log.Error().Err(err).Int64("from", game.ID).Int64("to", next.ID).Msg("Failed to carry leftover balances")
	}

	return payouts, next, nil
}

// Rollover force-ends a channel's current game without a winner, starts a
// new round, and credits every positive tracked balance of the old game to
// the new one. Ledger bookkeeping only: funds stay at the custody address,
// so no chain transaction is involved.
func (s *SettlementService) Rollover(ctx context.Context, spaceID, channelID string) (*model.Game, []PlanEntry, error) {
	var old *model.Game
	current, err := s.gameRepo.GetCurrent(ctx, spaceID, channelID)
	switch {
	case err == nil:
		ended, endErr := s.gameRepo.TryEndWithoutWinner(ctx, current.ID)
		if endErr != nil {
			return nil, nil, endErr
		}
		if ended {
			old = current
		}
		// A lost CAS means a winning guess just ended this game; the new
		// round below still gets created, but nothing is carried.
	case errors.Is(err, repository.ErrGameNotFound):
		// No active round; rollover degenerates to starting one.
	default:
		return nil, nil, err
	}

	next, err := s.StartNewGame(ctx, spaceID, channelID)
	if err != nil {
		return nil, nil, err
	}

	var rolled []PlanEntry
	if old != nil {
		pools, err := s.poolRepo.Balances(ctx, old.ID)
		if err != nil {
			return next, nil, fmt.Errorf("failed to read old pool: %w", err)
		}
		for _, p := range pools {
			if p.Balance.Sign() <= 0 {
				continue
			}
			if err := s.poolRepo.Credit(ctx, next.ID, p.Token, p.Balance); err != nil {
				return next, rolled, fmt.Errorf("failed to roll balance: %w", err)
			}
			rolled = append(rolled, PlanEntry{Token: p.Token, Amount: p.Balance})
		}

		log.Info().
			Int64("from", old.ID).
			Int64("to", next.ID).
			Int("tokens", len(rolled)).
			Msg("Rolled over unclaimed pool")
	}

	return next, rolled, nil
}

func (s *SettlementService) carryLeftovers(ctx context.Context, fromID, toID int64, paid map[string]*big.Int) error {
	pools, err := s.poolRepo.Balances(ctx, fromID)
	if err != nil {
		return err
	}
	for _, p := range pools {
		leftover := new(big.Int).Set(p.Balance)
		if amt, ok := paid[p.Token]; ok {
			leftover.Sub(leftover, amt)
		}
		if leftover.Sign() <= 0 {
			continue
		}
		if err := s.poolRepo.Credit(ctx, toID, p.Token, leftover); err != nil {
			return err
		}
	}
	return nil
}
