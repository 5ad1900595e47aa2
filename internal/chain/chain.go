// Package chain provides the asset-transport capability: balance queries,
// payout transfers and confirmation tracking against the custody account.
package chain

import (
	"context"
	"errors"
	"math/big"
)

// Transfer is one payout leg: send Amount of Token to the To address.
// Token is model.NativeToken or an ERC-20 contract address.
type Transfer struct {
	To     string
	Token  string
	Amount *big.Int
}

// Client is the transport the settlement layer depends on. Implementations
// hold the custody account; amounts are non-negative integers in the asset's
// minor unit.
type Client interface {
	// Balance returns the custody account's actual on-chain balance for a
	// token.
	Balance(ctx context.Context, token string) (*big.Int, error)
	// Send submits every transfer in the batch and returns a single
	// reference for the batch (the last transaction hash; earlier
	// transactions from the same account confirm first by nonce order).
	Send(ctx context.Context, transfers []Transfer) (string, error)
	// AwaitConfirmation blocks until the referenced transaction is mined
	// successfully or the context/timeout expires.
	AwaitConfirmation(ctx context.Context, txRef string) error
}

// ErrTransferReverted is returned when a mined payout transaction reverted.
var ErrTransferReverted = errors.New("transfer transaction reverted")
