package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"telegram-wordle-bot/internal/feedback"
	"telegram-wordle-bot/internal/model"
	"telegram-wordle-bot/internal/pkg/lock"
	"telegram-wordle-bot/internal/repository"
	"telegram-wordle-bot/internal/words"
)

// Guess flow errors.
var (
	ErrNotEligible = errors.New("player has not tipped this round")
	ErrNotAWord    = errors.New("word is not in the dictionary")
	ErrTooLate     = errors.New("someone else already won this round")
)

// GuessResult carries everything the router needs to respond to one guess.
type GuessResult struct {
	Game    *model.Game
	Guess   *model.Guess
	Marks   []feedback.Mark
	Correct bool
	// Won is true only for the guess that acquired the win lock.
	Won bool
	// Payouts and NextGame are set when settlement completed.
	Payouts  []*model.Payout
	NextGame *model.Game
	// SettleErr is set when the win lock was acquired but settlement
	// failed; the game stays PAYOUT_PENDING for operator recovery.
	SettleErr error
}

// GuessStore is the guess persistence surface the guess flow needs.
type GuessStore interface {
	Create(ctx context.Context, gameID int64, userID, guess, feedback string) (*model.Guess, error)
	ListByGameAndUser(ctx context.Context, gameID int64, userID string) ([]*model.Guess, error)
}

// GameService runs the guess flow for a channel: eligibility, validation,
// scoring, recording, and the single-winner transition.
type GameService struct {
	spaceID    string
	gameRepo   GameStore
	guessRepo  GuessStore
	poolRepo   PoolLedger
	words      *words.Source
	settlement *SettlementService
	channels   *lock.ChannelLock
}

// NewGameService creates a new GameService instance.
func NewGameService(
	spaceID string,
	gameRepo GameStore,
	guessRepo GuessStore,
	poolRepo PoolLedger,
	wordSource *words.Source,
	settlement *SettlementService,
	channels *lock.ChannelLock,
) *GameService {
	return &GameService{
		spaceID:    spaceID,
		gameRepo:   gameRepo,
		guessRepo:  guessRepo,
		poolRepo:   poolRepo,
		words:      wordSource,
		settlement: settlement,
		channels:   channels,
	}
}

func (s *GameService) channelKey(channelID string) string {
	return s.spaceID + ":" + channelID
}

// CurrentGame returns the channel's ACTIVE game, creating the first round
// on first access.
func (s *GameService) CurrentGame(ctx context.Context, channelID string) (*model.Game, error) {
	game, err := s.gameRepo.GetCurrent(ctx, s.spaceID, channelID)
	if err == nil {
		return game, nil
	}
	if !errors.Is(err, repository.ErrGameNotFound) {
		return nil, err
	}
	return s.settlement.StartNewGame(ctx, s.spaceID, channelID)
}

// SubmitGuess handles one guess end to end.
//
// Validation and the win-lock transition run under the channel lock, which
// keeps guess handling sequential within a channel. Settlement, the slow
// chain I/O, runs after the lock is released: the database CAS has already
// fixed the winner, so nothing else needs exclusivity.
func (s *GameService) SubmitGuess(ctx context.Context, channelID, userID, word string) (*GuessResult, error) {
	var result *GuessResult

	err := s.channels.WithLock(s.channelKey(channelID), func() error {
		var err error
		result, err = s.scoreAndLock(ctx, channelID, userID, word)
		return err
	})
	if err != nil {
		return nil, err
	}

	if result.Won {
		payouts, next, settleErr := s.settlement.SettleWin(ctx, result.Game)
		result.Payouts = payouts
		result.NextGame = next
		result.SettleErr = settleErr
		if settleErr != nil {
			log.Error().
				Err(settleErr).
				Int64("game_id", result.Game.ID).
				Str("winner", userID).
				Msg("Settlement failed; game left PAYOUT_PENDING")
		}
	}

	return result, nil
}

func (s *GameService) scoreAndLock(ctx context.Context, channelID, userID, word string) (*GuessResult, error) {
	game, err := s.CurrentGame(ctx, channelID)
	if err != nil {
		return nil, err
	}

	normalized, err := feedback.Normalize(word)
	if err != nil {
		return nil, err
	}
	if !s.words.IsAllowed(normalized) {
		return nil, ErrNotAWord
	}

	eligible, err := s.poolRepo.IsEligible(ctx, game.ID, userID)
	if err != nil {
		return nil, err
	}
	if !eligible {
		return nil, ErrNotEligible
	}

	marks, err := feedback.Score(normalized, game.TargetWord)
	if err != nil {
		return nil, fmt.Errorf("failed to score guess: %w", err)
	}

	guess, err := s.guessRepo.Create(ctx, game.ID, userID, normalized, feedback.Encode(marks))
	if err != nil {
		return nil, err
	}

	result := &GuessResult{
		Game:    game,
		Guess:   guess,
		Marks:   marks,
		Correct: feedback.IsCorrect(marks),
	}
	if !result.Correct {
		return result, nil
	}

	won, err := s.gameRepo.TryWinLock(ctx, game.ID, userID)
	if err != nil {
		return nil, err
	}
	if !won {
		// Correct, but another winner committed first. Expected branch,
		// no state to undo: the guess row stands, the game is theirs.
		return nil, ErrTooLate
	}

	result.Won = true
	// Re-read so the result carries the winner fields the CAS just set.
	if updated, err := s.gameRepo.GetByID(ctx, game.ID); err == nil {
		result.Game = updated
	}

	return result, nil
}

// Guesses returns one user's attempts in the given game.
func (s *GameService) Guesses(ctx context.Context, gameID int64, userID string) ([]*model.Guess, error) {
	return s.guessRepo.ListByGameAndUser(ctx, gameID, userID)
}

// Pot returns the tracked pool balances for the channel's current game.
func (s *GameService) Pot(ctx context.Context, channelID string) (*model.Game, []*model.Pool, error) {
	game, err := s.CurrentGame(ctx, channelID)
	if err != nil {
		return nil, nil, err
	}
	pools, err := s.poolRepo.Balances(ctx, game.ID)
	if err != nil {
		return nil, nil, err
	}
	return game, pools, nil
}

// Leaderboard returns the space's winner standings.
func (s *GameService) Leaderboard(ctx context.Context, limit int) ([]*model.LeaderboardEntry, error) {
	return s.gameRepo.Leaderboard(ctx, s.spaceID, limit)
}
