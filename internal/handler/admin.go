package handler

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"telegram-wordle-bot/internal/config"
	"telegram-wordle-bot/internal/service"
)

// AdminHandler handles admin-only round management commands.
type AdminHandler struct {
	cfg        *config.Config
	settlement *service.SettlementService
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(cfg *config.Config, settlement *service.SettlementService) *AdminHandler {
	return &AdminHandler{
		cfg:        cfg,
		settlement: settlement,
	}
}

// requireAdmin replies with a rejection and returns false when the sender
// is not a configured admin.
func (h *AdminHandler) requireAdmin(c tele.Context) bool {
	sender := c.Sender()
	if sender == nil {
		return false
	}
	if !h.cfg.IsAdmin(sender.ID) {
		_ = c.Reply("❌ Admins only.")
		return false
	}
	return true
}

// HandleRollover handles the /rollover command: ends the current round
// without a winner and carries the whole pot into the next one.
func (h *AdminHandler) HandleRollover(c tele.Context) error {
	ctx := context.Background()
	if c.Chat() == nil || !h.requireAdmin(c) {
		return nil
	}

	next, carried, err := h.settlement.Rollover(ctx, h.cfg.Bot.SpaceID, channelID(c.Chat()))
	if err != nil {
		log.Error().Err(err).Str("channel_id", channelID(c.Chat())).Msg("Rollover failed")
		return c.Reply("⚠️ Rollover failed, see logs.")
	}

	log.Info().
		Int64("admin_id", c.Sender().ID).
		Int64("next_game_id", next.ID).
		Int("carried_tokens", len(carried)).
		Msg("Round rolled over")

	var sb strings.Builder
	fmt.Fprintf(&sb, "🔄 Round rolled over. Round %d is live", next.GameNumber)
	if len(carried) == 0 {
		sb.WriteString(" with a fresh pot.")
		return c.Reply(sb.String())
	}
	sb.WriteString(" with the carried pot:\n")
	for _, entry := range carried {
		fmt.Fprintf(&sb, "• %s %s\n", entry.Amount.String(), displayToken(entry.Token))
	}
	return c.Reply(sb.String())
}

// HandleNewGame handles the /newgame command: starts a round in a channel
// that doesn't have one yet. A no-op when a round is already active.
func (h *AdminHandler) HandleNewGame(c tele.Context) error {
	ctx := context.Background()
	if c.Chat() == nil || !h.requireAdmin(c) {
		return nil
	}

	game, err := h.settlement.StartNewGame(ctx, h.cfg.Bot.SpaceID, channelID(c.Chat()))
	if err != nil {
		log.Error().Err(err).Str("channel_id", channelID(c.Chat())).Msg("Failed to start round")
		return c.Reply("⚠️ Couldn't start a round, see logs.")
	}

	return c.Reply(fmt.Sprintf("🎲 Round %d is live - tip the pot and start guessing!", game.GameNumber))
}
