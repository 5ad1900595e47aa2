package handler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"telegram-wordle-bot/internal/feedback"
	"telegram-wordle-bot/internal/model"
	"telegram-wordle-bot/internal/service"
)

func TestParseTip(t *testing.T) {
	tests := []struct {
		name        string
		text        string
		wantOK      bool
		wantHandle  string
		wantToken   string
		wantAmount  string
		wantAddress string
	}{
		{
			name:       "native tip",
			text:       "@alice tipped 250000 NATIVE",
			wantOK:     true,
			wantHandle: "alice",
			wantToken:  model.NativeToken,
			wantAmount: "250000",
		},
		{
			name:        "token tip with sender address",
			text:        "🎁 @bob tipped 5000 0x1111111111111111111111111111111111111111 from 0x2222222222222222222222222222222222222222",
			wantOK:      true,
			wantHandle:  "bob",
			wantToken:   "0x1111111111111111111111111111111111111111",
			wantAmount:  "5000",
			wantAddress: "0x2222222222222222222222222222222222222222",
		},
		{
			name:       "native marker is case-insensitive",
			text:       "@carol tipped 77 native",
			wantOK:     true,
			wantHandle: "carol",
			wantToken:  model.NativeToken,
			wantAmount: "77",
		},
		{
			name:   "unknown token symbol ignored",
			text:   "@carol tipped 77 DOGE",
			wantOK: false,
		},
		{
			name:   "zero amount rejected",
			text:   "@dave tipped 0 NATIVE",
			wantOK: false,
		},
		{
			name:   "ordinary chatter ignored",
			text:   "good morning everyone",
			wantOK: false,
		},
		{
			name:   "fractional amounts not matched",
			text:   "@erin tipped 1.5 NATIVE",
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tip, ok := parseTip(tt.text)
			if !tt.wantOK {
				assert.False(t, ok)
				return
			}
			require.True(t, ok)
			assert.Equal(t, tt.wantHandle, tip.Handle)
			assert.Equal(t, tt.wantToken, tip.Token)
			assert.Equal(t, tt.wantAmount, tip.Amount.String())
			assert.Equal(t, tt.wantAddress, tip.FromAddress)
		})
	}
}

func TestGuessErrorMessagesAreDistinct(t *testing.T) {
	// Each failure class must read differently to the player
	seen := map[string]bool{}
	for _, err := range []error{
		feedback.ErrBadLength,
		service.ErrNotAWord,
		service.ErrNotEligible,
		service.ErrTooLate,
	} {
		msg := guessErrorMessage(err)
		assert.False(t, seen[msg], "duplicate message: %s", msg)
		seen[msg] = true
	}
}
