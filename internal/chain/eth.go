package chain

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog/log"

	"telegram-wordle-bot/internal/config"
	"telegram-wordle-bot/internal/model"
)

// ERC-20 function selectors.
var (
	selBalanceOf = crypto.Keccak256([]byte("balanceOf(address)"))[:4]
	selTransfer  = crypto.Keccak256([]byte("transfer(address,uint256)"))[:4]
)

const (
	gasLimitNative = 21_000
	gasLimitERC20  = 100_000

	receiptPollInterval = 2 * time.Second
)

// EthClient implements Client against an Ethereum JSON-RPC endpoint using
// the custody account from configuration.
type EthClient struct {
	rpc            *ethclient.Client
	key            *ecdsa.PrivateKey
	custody        common.Address
	chainID        *big.Int
	confirmTimeout time.Duration
}

// NewEthClient dials the RPC endpoint and derives the custody address from
// the configured private key.
func NewEthClient(ctx context.Context, cfg *config.ChainConfig) (*EthClient, error) {
	rpc, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("failed to dial chain RPC: %w", err)
	}

	key, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.CustodyKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse custody key: %w", err)
	}

	chainID, err := rpc.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query chain ID: %w", err)
	}

	custody := crypto.PubkeyToAddress(key.PublicKey)
	log.Info().
		Str("custody", custody.Hex()).
		Str("chain_id", chainID.String()).
		Msg("Chain client ready")

	return &EthClient{
		rpc:            rpc,
		key:            key,
		custody:        custody,
		chainID:        chainID,
		confirmTimeout: cfg.ConfirmTimeout,
	}, nil
}

// Custody returns the custody account address tips should be sent to.
func (c *EthClient) Custody() string {
	return c.custody.Hex()
}

// Balance returns the custody account's on-chain balance for a token.
func (c *EthClient) Balance(ctx context.Context, token string) (*big.Int, error) {
	if token == model.NativeToken {
		bal, err := c.rpc.BalanceAt(ctx, c.custody, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to query native balance: %w", err)
		}
		return bal, nil
	}

	if !model.IsContractToken(token) {
		return nil, fmt.Errorf("unknown token %q", token)
	}

	contract := common.HexToAddress(token)
	data := append(append([]byte{}, selBalanceOf...), common.LeftPadBytes(c.custody.Bytes(), 32)...)
	out, err := c.rpc.CallContract(ctx, ethereum.CallMsg{To: &contract, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query token balance: %w", err)
	}
	return new(big.Int).SetBytes(out), nil
}

// Send signs and submits one transaction per transfer, nonce-ordered from
// the custody account, and returns the last transaction hash as the batch
// reference.
func (c *EthClient) Send(ctx context.Context, transfers []Transfer) (string, error) {
	if len(transfers) == 0 {
		return "", fmt.Errorf("empty transfer batch")
	}

	nonce, err := c.rpc.PendingNonceAt(ctx, c.custody)
	if err != nil {
		return "", fmt.Errorf("failed to query nonce: %w", err)
	}

	head, err := c.rpc.HeaderByNumber(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to query chain head: %w", err)
	}

	// A head without a base fee means the chain predates EIP-1559; fall
	// back to legacy gas-priced transactions.
	var tipCap, feeCap, gasPrice *big.Int
	if head.BaseFee != nil {
		tipCap, err = c.rpc.SuggestGasTipCap(ctx)
		if err != nil {
			return "", fmt.Errorf("failed to suggest gas tip: %w", err)
		}
		// feeCap = 2*baseFee + tip leaves headroom for base fee movement.
		feeCap = new(big.Int).Add(new(big.Int).Mul(head.BaseFee, big.NewInt(2)), tipCap)
	} else {
		gasPrice, err = c.rpc.SuggestGasPrice(ctx)
		if err != nil {
			return "", fmt.Errorf("failed to suggest gas price: %w", err)
		}
	}

	signer := types.LatestSignerForChainID(c.chainID)

	var lastHash common.Hash
	for _, tr := range transfers {
		txData, err := c.buildTransfer(tr, nonce, tipCap, feeCap, gasPrice)
		if err != nil {
			return "", err
		}

		tx, err := types.SignNewTx(c.key, signer, txData)
		if err != nil {
			return "", fmt.Errorf("failed to sign transfer: %w", err)
		}
		if err := c.rpc.SendTransaction(ctx, tx); err != nil {
			return "", fmt.Errorf("failed to send transfer: %w", err)
		}

		log.Info().
			Str("tx", tx.Hash().Hex()).
			Str("token", tr.Token).
			Str("amount", tr.Amount.String()).
			Str("to", tr.To).
			Msg("Payout transaction submitted")

		lastHash = tx.Hash()
		nonce++
	}

	return lastHash.Hex(), nil
}

// buildTransfer assembles the transaction payload for one payout leg. A
// non-nil gasPrice selects the legacy format for pre-EIP-1559 chains.
func (c *EthClient) buildTransfer(tr Transfer, nonce uint64, tipCap, feeCap, gasPrice *big.Int) (types.TxData, error) {
	var (
		to    common.Address
		value *big.Int
		gas   uint64
		data  []byte
	)

	switch {
	case tr.Token == model.NativeToken:
		to = common.HexToAddress(tr.To)
		value = tr.Amount
		gas = gasLimitNative
	case model.IsContractToken(tr.Token):
		recipient := common.HexToAddress(tr.To)
		to = common.HexToAddress(tr.Token)
		gas = gasLimitERC20
		data = append(append([]byte{}, selTransfer...), common.LeftPadBytes(recipient.Bytes(), 32)...)
		data = append(data, common.LeftPadBytes(tr.Amount.Bytes(), 32)...)
	default:
		return nil, fmt.Errorf("unknown token %q", tr.Token)
	}

	if gasPrice != nil {
		return &types.LegacyTx{
			Nonce:    nonce,
			GasPrice: gasPrice,
			Gas:      gas,
			To:       &to,
			Value:    value,
			Data:     data,
		}, nil
	}

	return &types.DynamicFeeTx{
		ChainID:   c.chainID,
		Nonce:     nonce,
		GasTipCap: tipCap,
		GasFeeCap: feeCap,
		Gas:       gas,
		To:        &to,
		Value:     value,
		Data:      data,
	}, nil
}

// AwaitConfirmation polls for the batch reference's receipt. A reverted
// receipt is a confirmation failure, not a timeout.
func (c *EthClient) AwaitConfirmation(ctx context.Context, txRef string) error {
	hash := common.HexToHash(txRef)

	waitCtx := ctx
	if c.confirmTimeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, c.confirmTimeout)
		defer cancel()
	}

	ticker := time.NewTicker(receiptPollInterval)
	defer ticker.Stop()

	for {
		receipt, err := c.rpc.TransactionReceipt(waitCtx, hash)
		if err == nil {
			if receipt.Status != types.ReceiptStatusSuccessful {
				return ErrTransferReverted
			}
			return nil
		}

		select {
		case <-waitCtx.Done():
			return fmt.Errorf("confirmation timed out for %s: %w", txRef, waitCtx.Err())
		case <-ticker.C:
		}
	}
}
