package handler

import (
	"context"
	"fmt"
	"math/big"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"telegram-wordle-bot/internal/model"
	"telegram-wordle-bot/internal/repository"
	"telegram-wordle-bot/internal/service"
)

// tipPattern matches the notification format posted by the configured tip
// bots, e.g. "@alice tipped 250000 NATIVE" or
// "@bob tipped 5000 0xAbC... from 0xDeF...".
var tipPattern = regexp.MustCompile(`(?i)@(\w+)\s+tipped\s+(\d+)\s+(\S+)(?:\s+from\s+(0x[0-9a-fA-F]{40}))?`)

// TipHandler turns trusted tip notifications into pool deposits and
// handles payout wallet registration.
type TipHandler struct {
	tipService *service.TipService
	wallets    *repository.WalletRepository
	tipBots    map[string]bool
}

// NewTipHandler creates a new TipHandler. tipBotUsernames are the only
// senders whose messages are parsed as tips.
func NewTipHandler(tipService *service.TipService, wallets *repository.WalletRepository, tipBotUsernames []string) *TipHandler {
	bots := make(map[string]bool, len(tipBotUsernames))
	for _, name := range tipBotUsernames {
		bots[model.NormalizeIdentifier(strings.TrimPrefix(name, "@"))] = true
	}
	return &TipHandler{
		tipService: tipService,
		wallets:    wallets,
		tipBots:    bots,
	}
}

// HandleText inspects free-form chat messages for tip notifications from
// the configured tip bots. Messages from anyone else are ignored.
func (h *TipHandler) HandleText(c tele.Context) error {
	sender := c.Sender()
	if sender == nil || c.Chat() == nil {
		return nil
	}
	if !h.tipBots[model.NormalizeIdentifier(sender.Username)] {
		return nil
	}

	tip, ok := parseTip(c.Text())
	if !ok {
		return nil
	}

	ctx := context.Background()
	deposit, err := h.tipService.RecordTip(ctx, channelID(c.Chat()), *tip)
	if err != nil {
		log.Error().Err(err).
			Str("handle", tip.Handle).
			Str("token", tip.Token).
			Msg("Failed to record tip")
		return nil
	}

	log.Info().
		Str("handle", tip.Handle).
		Str("token", deposit.Token).
		Str("amount", deposit.Amount.String()).
		Int64("game_id", deposit.GameID).
		Msg("Tip credited to pot")
	return nil
}

func parseTip(text string) (*service.Tip, bool) {
	m := tipPattern.FindStringSubmatch(text)
	if m == nil {
		return nil, false
	}
	amount, ok := new(big.Int).SetString(m[2], 10)
	if !ok || amount.Sign() <= 0 {
		return nil, false
	}

	// Only the native marker and contract addresses are creditable; any
	// other symbol would land in the wrong pot.
	token := m[3]
	switch {
	case model.IsContractToken(token):
	case strings.EqualFold(token, model.NativeToken):
		token = model.NativeToken
	default:
		return nil, false
	}

	return &service.Tip{
		Handle:      m[1],
		FromAddress: m[4],
		Token:       token,
		Amount:      amount,
	}, true
}

// HandleWallet handles the /wallet <address> command: registers the
// sender's payout address.
func (h *TipHandler) HandleWallet(c tele.Context) error {
	ctx := context.Background()
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	args := c.Args()
	if len(args) != 1 {
		return c.Reply("Usage: /wallet <0x-address>")
	}
	address := args[0]
	if !model.IsContractToken(address) {
		return c.Reply("❌ That doesn't look like a valid address.")
	}

	if err := h.wallets.Upsert(ctx, userIdent(sender), address); err != nil {
		log.Error().Err(err).Str("user_id", userIdent(sender)).Msg("Failed to register wallet")
		return c.Reply("⚠️ Couldn't save your address, please try again.")
	}

	return c.Reply(fmt.Sprintf("✅ Payout address registered: %s", shortHash(model.NormalizeIdentifier(address))))
}
