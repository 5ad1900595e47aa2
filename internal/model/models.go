// Package model defines the data models for the Telegram Wordle bot.
package model

import (
	"math/big"
	"regexp"
	"strings"
	"time"
)

// Game states. A game is created ACTIVE and transitions to PAYOUT_PENDING
// exactly once, either through a winning guess or an admin rollover.
const (
	GameStateActive        = "ACTIVE"
	GameStatePayoutPending = "PAYOUT_PENDING"
)

// NativeToken is the canonical marker for the chain's native asset in pool
// and deposit rows. Every other token value is a contract address.
const NativeToken = "NATIVE"

var contractTokenRe = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// IsContractToken reports whether a token identifier refers to a
// contract-backed asset rather than the native asset.
func IsContractToken(token string) bool {
	return token != NativeToken && contractTokenRe.MatchString(token)
}

// NormalizeIdentifier lowercases a player identifier for eligibility
// comparisons. Chat handles and funding addresses are both stored this way.
func NormalizeIdentifier(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

// Game represents one round of Wordle in a channel.
type Game struct {
	ID           int64      `db:"id"`
	SpaceID      string     `db:"space_id"`
	ChannelID    string     `db:"channel_id"`
	State        string     `db:"state"`
	TargetWord   string     `db:"target_word"`
	WinnerUserID *string    `db:"winner_user_id"`
	GameNumber   int64      `db:"game_number"`
	CreatedAt    time.Time  `db:"created_at"`
	WonAt        *time.Time `db:"won_at"`
}

// Active reports whether the game still accepts guesses.
func (g *Game) Active() bool {
	return g.State == GameStateActive
}

// Guess is one submitted attempt. Rows are append-only and never mutated;
// resubmitting the same word creates a new row.
type Guess struct {
	ID        string    `db:"id"`
	GameID    int64     `db:"game_id"`
	UserID    string    `db:"user_id"`
	Guess     string    `db:"guess"`
	Feedback  string    `db:"feedback"`
	CreatedAt time.Time `db:"created_at"`
}

// Pool is the bot's internal ledger of funds attributable to a game, one row
// per (game, token). It is only ever credited; settlement reads the actual
// on-chain balance as the other source of truth.
type Pool struct {
	GameID      int64     `db:"game_id"`
	Token       string    `db:"token"`
	Balance     *big.Int  `db:"balance"`
	LastUpdated time.Time `db:"last_updated"`
}

// Deposit records one observed tip. Every deposit carries a matching pool
// credit; the two are written in a single transaction.
type Deposit struct {
	ID        string    `db:"id"`
	GameID    int64     `db:"game_id"`
	Sender    string    `db:"sender"`
	Token     string    `db:"token"`
	Amount    *big.Int  `db:"amount"`
	CreatedAt time.Time `db:"created_at"`
}

// Payout statuses.
const (
	PayoutStatusPending = "pending"
	PayoutStatusSuccess = "success"
	PayoutStatusFailed  = "failed"
)

// Payout records one asset transfer to a winner.
type Payout struct {
	ID        string    `db:"id"`
	GameID    int64     `db:"game_id"`
	Token     string    `db:"token"`
	Amount    *big.Int  `db:"amount"`
	TxHash    string    `db:"tx_hash"`
	Status    string    `db:"status"`
	CreatedAt time.Time `db:"created_at"`
}

// Wallet maps a chat user to their registered payout address.
type Wallet struct {
	UserID    string    `db:"user_id"`
	Address   string    `db:"address"`
	UpdatedAt time.Time `db:"updated_at"`
}

// LeaderboardEntry aggregates a winner's record across a space.
type LeaderboardEntry struct {
	UserID        string   `db:"user_id"`
	Wins          int64    `db:"wins"`
	TotalGuesses  int64    `db:"total_guesses"`
	TotalWinnings *big.Int `db:"total_winnings"`
}
