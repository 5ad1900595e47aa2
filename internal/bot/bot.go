// Package bot provides the Telegram bot initialization and handler registration.
package bot

import (
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"telegram-wordle-bot/internal/config"
	"telegram-wordle-bot/internal/dictionary"
	"telegram-wordle-bot/internal/handler"
	"telegram-wordle-bot/internal/repository"
	"telegram-wordle-bot/internal/service"
)

// Bot wraps the telebot instance with application dependencies.
type Bot struct {
	bot *tele.Bot
	cfg *config.Config

	wordleHandler *handler.WordleHandler
	tipHandler    *handler.TipHandler
	adminHandler  *handler.AdminHandler
}

// Dependencies holds all the dependencies needed by the bot handlers.
type Dependencies struct {
	Config            *config.Config
	GameService       *service.GameService
	TipService        *service.TipService
	SettlementService *service.SettlementService
	Wallets           *repository.WalletRepository
	Definitions       dictionary.Lookup
}

// New creates a new Bot instance with the given dependencies.
func New(deps *Dependencies) (*Bot, error) {
	if deps.Config.Bot.Token == "" {
		return nil, fmt.Errorf("bot token is required")
	}

	pref := tele.Settings{
		Token:  deps.Config.Bot.Token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	}

	teleBot, err := tele.NewBot(pref)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	b := &Bot{
		bot: teleBot,
		cfg: deps.Config,
	}

	b.wordleHandler = handler.NewWordleHandler(deps.GameService, deps.Definitions)
	b.tipHandler = handler.NewTipHandler(deps.TipService, deps.Wallets, deps.Config.Tips.BotUsernames)
	b.adminHandler = handler.NewAdminHandler(deps.Config, deps.SettlementService)

	b.registerMiddleware()
	b.registerHandlers()

	return b, nil
}

// registerMiddleware registers all middleware.
func (b *Bot) registerMiddleware() {
	b.bot.Use(RecoveryMiddleware())

	// Whitelist middleware - check if chat is allowed
	b.bot.Use(WhitelistMiddleware(b.cfg))

	// Logging middleware
	b.bot.Use(LoggingMiddleware())
}

// registerHandlers registers all command handlers.
func (b *Bot) registerHandlers() {
	b.bot.Handle("/start", b.wordleHandler.HandleStart)
	b.bot.Handle("/wordle", b.wordleHandler.HandleGuess)
	b.bot.Handle("/guesses", b.wordleHandler.HandleGuesses)
	b.bot.Handle("/pot", b.wordleHandler.HandlePot)
	b.bot.Handle("/board", b.wordleHandler.HandleBoard)

	b.bot.Handle("/wallet", b.tipHandler.HandleWallet)

	// Admin round management
	b.bot.Handle("/rollover", b.adminHandler.HandleRollover)
	b.bot.Handle("/newgame", b.adminHandler.HandleNewGame)

	// Tip-bot notifications arrive as plain text messages
	b.bot.Handle(tele.OnText, b.tipHandler.HandleText)
}

// Announce sends a message to the chat identified by channelID. It
// satisfies the announcement interface used by round settlement.
func (b *Bot) Announce(channelID, text string) {
	chatID, err := strconv.ParseInt(channelID, 10, 64)
	if err != nil {
		log.Error().Str("channel_id", channelID).Msg("Announce: bad channel identifier")
		return
	}
	if _, err := b.bot.Send(&tele.Chat{ID: chatID}, text); err != nil {
		log.Error().Err(err).Str("channel_id", channelID).Msg("Announce failed")
	}
}

// Start starts the bot polling.
func (b *Bot) Start() {
	log.Info().Msg("Starting bot...")
	b.bot.Start()
}

// Stop stops the bot gracefully.
func (b *Bot) Stop() {
	log.Info().Msg("Stopping bot...")
	b.bot.Stop()
}
