// Package handler provides Telegram bot command handlers.
package handler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"telegram-wordle-bot/internal/dictionary"
	"telegram-wordle-bot/internal/feedback"
	"telegram-wordle-bot/internal/model"
	"telegram-wordle-bot/internal/service"
)

// channelID formats a Telegram chat as the channel identifier used across
// the persistence layer.
func channelID(chat *tele.Chat) string {
	return strconv.FormatInt(chat.ID, 10)
}

// userIdent is the chat-handle identifier for a sender: the lowercased
// username when present, otherwise a stable numeric form.
func userIdent(sender *tele.User) string {
	if sender.Username != "" {
		return model.NormalizeIdentifier(sender.Username)
	}
	return "id:" + strconv.FormatInt(sender.ID, 10)
}

// WordleHandler handles the game commands.
type WordleHandler struct {
	gameService *service.GameService
	definitions dictionary.Lookup
}

// NewWordleHandler creates a new WordleHandler.
func NewWordleHandler(gameService *service.GameService, definitions dictionary.Lookup) *WordleHandler {
	return &WordleHandler{
		gameService: gameService,
		definitions: definitions,
	}
}

// HandleStart handles the /start command.
func (h *WordleHandler) HandleStart(c tele.Context) error {
	return c.Reply(
		"🟩 Tip-funded Wordle!\n\n" +
			"Tip the pot to join the round, then guess the 5-letter word.\n" +
			"First correct guess wins the whole pot.\n\n" +
			"Commands:\n" +
			"/wordle <word> - submit a guess\n" +
			"/guesses - your attempts this round\n" +
			"/pot - current prize pool\n" +
			"/board - winner standings\n" +
			"/wallet <address> - register your payout address")
}

// HandleGuess handles the /wordle <word> command: the full guess flow,
// including the win path.
func (h *WordleHandler) HandleGuess(c tele.Context) error {
	ctx := context.Background()
	sender := c.Sender()
	if sender == nil || c.Chat() == nil {
		return nil
	}

	args := c.Args()
	if len(args) != 1 {
		return c.Reply("Usage: /wordle <word>")
	}

	result, err := h.gameService.SubmitGuess(ctx, channelID(c.Chat()), userIdent(sender), args[0])
	if err != nil {
		return c.Reply(guessErrorMessage(err))
	}

	if !result.Correct {
		return c.Reply(fmt.Sprintf("%s\n%s", strings.ToUpper(result.Guess.Guess), feedback.Tiles(result.Marks)))
	}

	return c.Reply(h.winMessage(ctx, sender, result))
}

// guessErrorMessage maps the guess-flow error taxonomy to user-facing text.
// The four cases are semantically distinct and must stay distinguishable.
func guessErrorMessage(err error) string {
	switch {
	case errors.Is(err, feedback.ErrBadLength), errors.Is(err, feedback.ErrBadLetter):
		return "❌ Guesses must be exactly 5 letters (a-z)."
	case errors.Is(err, service.ErrNotAWord):
		return "❌ That's not in the word list."
	case errors.Is(err, service.ErrNotEligible):
		return "🎁 You haven't tipped this round yet - tip the pot to play."
	case errors.Is(err, service.ErrTooLate):
		return "🏁 Correct - but someone else got there first. New round incoming!"
	default:
		return "⚠️ Something went wrong, please try again."
	}
}

func (h *WordleHandler) winMessage(ctx context.Context, sender *tele.User, result *service.GuessResult) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "🏆 @%s wins round %d! The word was %s.\n",
		sender.Username, result.Game.GameNumber, strings.ToUpper(result.Game.TargetWord))

	if board, err := h.gameService.Guesses(ctx, result.Game.ID, userIdent(sender)); err == nil {
		for _, g := range board {
			sb.WriteString(feedback.Tiles(feedback.Decode(g.Feedback)))
			sb.WriteByte('\n')
		}
	}

	if h.definitions != nil {
		if def, err := h.definitions.Define(ctx, result.Game.TargetWord); err == nil {
			fmt.Fprintf(&sb, "📖 %s\n", def)
		}
	}

	if result.SettleErr != nil {
		switch {
		case errors.Is(result.SettleErr, service.ErrWinnerUnresolved):
			sb.WriteString("\n⚠️ Payment pending: register a payout address with /wallet and contact an admin.")
		default:
			sb.WriteString("\n⚠️ Payment failed - an admin has been notified. Your win is recorded.")
		}
		return sb.String()
	}

	for _, p := range result.Payouts {
		fmt.Fprintf(&sb, "💸 Paid %s %s (tx %s)\n", p.Amount.String(), displayToken(p.Token), shortHash(p.TxHash))
	}
	if result.NextGame != nil {
		fmt.Fprintf(&sb, "\n🎲 Round %d has begun!", result.NextGame.GameNumber)
	}
	return sb.String()
}

// HandleGuesses handles the /guesses command: the sender's board so far.
func (h *WordleHandler) HandleGuesses(c tele.Context) error {
	ctx := context.Background()
	sender := c.Sender()
	if sender == nil || c.Chat() == nil {
		return nil
	}

	game, err := h.gameService.CurrentGame(ctx, channelID(c.Chat()))
	if err != nil {
		return c.Reply("⚠️ Couldn't load the current round.")
	}

	guesses, err := h.gameService.Guesses(ctx, game.ID, userIdent(sender))
	if err != nil {
		log.Error().Err(err).Int64("game_id", game.ID).Msg("Failed to list guesses")
		return c.Reply("⚠️ Couldn't load your guesses.")
	}
	if len(guesses) == 0 {
		return c.Reply(fmt.Sprintf("No guesses yet in round %d.", game.GameNumber))
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Round %d - your board:\n", game.GameNumber)
	for _, g := range guesses {
		fmt.Fprintf(&sb, "%s %s\n", feedback.Tiles(feedback.Decode(g.Feedback)), strings.ToUpper(g.Guess))
	}
	return c.Reply(sb.String())
}

// HandlePot handles the /pot command: tracked balances of the current round.
func (h *WordleHandler) HandlePot(c tele.Context) error {
	ctx := context.Background()
	if c.Chat() == nil {
		return nil
	}

	game, pools, err := h.gameService.Pot(ctx, channelID(c.Chat()))
	if err != nil {
		return c.Reply("⚠️ Couldn't load the pot.")
	}

	if len(pools) == 0 {
		return c.Reply(fmt.Sprintf("Round %d pot is empty - be the first to tip!", game.GameNumber))
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "💰 Round %d pot:\n", game.GameNumber)
	for _, p := range pools {
		fmt.Fprintf(&sb, "• %s %s\n", p.Balance.String(), displayToken(p.Token))
	}
	return c.Reply(sb.String())
}

// HandleBoard handles the /board command: winner standings for the space.
func (h *WordleHandler) HandleBoard(c tele.Context) error {
	ctx := context.Background()

	entries, err := h.gameService.Leaderboard(ctx, 10)
	if err != nil {
		log.Error().Err(err).Msg("Failed to load leaderboard")
		return c.Reply("⚠️ Couldn't load the leaderboard.")
	}
	if len(entries) == 0 {
		return c.Reply("No winners yet - the first pot is up for grabs!")
	}

	var sb strings.Builder
	sb.WriteString("🏆 Hall of fame:\n")
	for i, e := range entries {
		fmt.Fprintf(&sb, "%d. %s - %d wins, %d guesses, %s won\n",
			i+1, e.UserID, e.Wins, e.TotalGuesses, e.TotalWinnings.String())
	}
	return c.Reply(sb.String())
}

func displayToken(token string) string {
	if token == model.NativeToken {
		return "ETH (wei)"
	}
	return shortHash(token)
}

func shortHash(s string) string {
	if len(s) <= 12 {
		return s
	}
	return s[:8] + "…" + s[len(s)-4:]
}
