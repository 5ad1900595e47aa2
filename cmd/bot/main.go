// Package main is the entry point for the tip-funded Wordle bot.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"telegram-wordle-bot/internal/bot"
	"telegram-wordle-bot/internal/chain"
	"telegram-wordle-bot/internal/config"
	"telegram-wordle-bot/internal/dictionary"
	"telegram-wordle-bot/internal/pkg/db"
	"telegram-wordle-bot/internal/pkg/lock"
	"telegram-wordle-bot/internal/repository"
	"telegram-wordle-bot/internal/service"
	"telegram-wordle-bot/internal/words"
)

func main() {
	// Configure zerolog
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	// .env is optional; real deployments use environment variables
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.Load("config")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log.Info().Str("space_id", cfg.Bot.SpaceID).Msg("Configuration loaded successfully")

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database connection pool
	dbPool, err := db.NewPool(ctx, &cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer dbPool.Close()

	// Run database migrations
	if err := repository.Migrate(ctx, dbPool.Pool); err != nil {
		log.Fatal().Err(err).Msg("Failed to run database migrations")
	}

	// Load word lists (embedded defaults unless overridden)
	wordSource, err := words.NewSource(cfg.Words.SolutionsFile, cfg.Words.AllowedFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load word lists")
	}
	solutions, allowed := wordSource.Counts()
	log.Info().Int("solutions", solutions).Int("allowed", allowed).Msg("Word lists loaded")

	// Connect to the chain custody wallet
	chainClient, err := chain.NewEthClient(ctx, &cfg.Chain)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to chain RPC")
	}

	// Initialize repositories
	gameRepo := repository.NewGameRepository(dbPool.Pool)
	guessRepo := repository.NewGuessRepository(dbPool.Pool)
	poolRepo := repository.NewPoolRepository(dbPool.Pool)
	payoutRepo := repository.NewPayoutRepository(dbPool.Pool)
	walletRepo := repository.NewWalletRepository(dbPool.Pool)

	// Initialize services
	settlementService := service.NewSettlementService(
		gameRepo,
		poolRepo,
		payoutRepo,
		wordSource,
		chainClient,
		walletRepo,
		nil, // announcements wired once the bot exists
	)

	channelLock := lock.NewChannelLock()
	gameService := service.NewGameService(
		cfg.Bot.SpaceID,
		gameRepo,
		guessRepo,
		poolRepo,
		wordSource,
		settlementService,
		channelLock,
	)
	tipService := service.NewTipService(gameService, poolRepo)

	var definitions dictionary.Lookup
	if cfg.Tips.DefinitionLookup {
		definitions = dictionary.NewHTTPLookup()
	}

	// Initialize bot
	telegramBot, err := bot.New(&bot.Dependencies{
		Config:            cfg,
		GameService:       gameService,
		TipService:        tipService,
		SettlementService: settlementService,
		Wallets:           walletRepo,
		Definitions:       definitions,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create bot")
	}
	settlementService.SetMessenger(telegramBot)

	// Setup graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Start bot in a goroutine
	go func() {
		log.Info().Msg("Bot is starting...")
		telegramBot.Start()
	}()

	// Wait for shutdown signal
	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")

	// Graceful shutdown
	telegramBot.Stop()
	log.Info().Msg("Bot stopped gracefully")
}
