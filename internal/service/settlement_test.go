package service

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"telegram-wordle-bot/internal/chain"
	"telegram-wordle-bot/internal/model"
	"telegram-wordle-bot/internal/repository"
	"telegram-wordle-bot/internal/words"
)

// fakeGameStore is an in-memory GameStore with the same CAS semantics as
// the Postgres repository.
type fakeGameStore struct {
	nextID   int64
	counters map[string]int64
	games    map[int64]*model.Game
	denyWin  bool
}

func newFakeGameStore() *fakeGameStore {
	return &fakeGameStore{
		counters: make(map[string]int64),
		games:    make(map[int64]*model.Game),
	}
}

func (f *fakeGameStore) Create(_ context.Context, spaceID, channelID, targetWord string) (*model.Game, error) {
	for _, g := range f.games {
		if g.SpaceID == spaceID && g.ChannelID == channelID && g.State == model.GameStateActive {
			return nil, errors.New("duplicate active game")
		}
	}
	f.nextID++
	key := spaceID + ":" + channelID
	f.counters[key]++
	g := &model.Game{
		ID:         f.nextID,
		SpaceID:    spaceID,
		ChannelID:  channelID,
		State:      model.GameStateActive,
		TargetWord: targetWord,
		GameNumber: f.counters[key],
		CreatedAt:  time.Now(),
	}
	f.games[g.ID] = g
	return g, nil
}

func (f *fakeGameStore) GetCurrent(_ context.Context, spaceID, channelID string) (*model.Game, error) {
	for _, g := range f.games {
		if g.SpaceID == spaceID && g.ChannelID == channelID && g.State == model.GameStateActive {
			return g, nil
		}
	}
	return nil, repository.ErrGameNotFound
}

func (f *fakeGameStore) GetByID(_ context.Context, gameID int64) (*model.Game, error) {
	g, ok := f.games[gameID]
	if !ok {
		return nil, repository.ErrGameNotFound
	}
	return g, nil
}

func (f *fakeGameStore) TryWinLock(_ context.Context, gameID int64, winnerUserID string) (bool, error) {
	g, ok := f.games[gameID]
	if !ok || g.State != model.GameStateActive || f.denyWin {
		return false, nil
	}
	now := time.Now()
	g.State = model.GameStatePayoutPending
	g.WinnerUserID = &winnerUserID
	g.WonAt = &now
	return true, nil
}

func (f *fakeGameStore) TryEndWithoutWinner(_ context.Context, gameID int64) (bool, error) {
	g, ok := f.games[gameID]
	if !ok || g.State != model.GameStateActive {
		return false, nil
	}
	g.State = model.GameStatePayoutPending
	return true, nil
}

func (f *fakeGameStore) Leaderboard(context.Context, string, int) ([]*model.LeaderboardEntry, error) {
	return nil, nil
}

// fakePoolLedger tracks balances per game with deterministic token order.
type fakePoolLedger struct {
	order    map[int64][]string
	balances map[int64]map[string]*big.Int
	eligible map[int64]map[string]bool
}

func newFakePoolLedger() *fakePoolLedger {
	return &fakePoolLedger{
		order:    make(map[int64][]string),
		balances: make(map[int64]map[string]*big.Int),
		eligible: make(map[int64]map[string]bool),
	}
}

func (f *fakePoolLedger) Credit(_ context.Context, gameID int64, token string, amount *big.Int) error {
	if f.balances[gameID] == nil {
		f.balances[gameID] = make(map[string]*big.Int)
	}
	if _, ok := f.balances[gameID][token]; !ok {
		f.balances[gameID][token] = big.NewInt(0)
		f.order[gameID] = append(f.order[gameID], token)
	}
	f.balances[gameID][token].Add(f.balances[gameID][token], amount)
	return nil
}

func (f *fakePoolLedger) Balances(_ context.Context, gameID int64) ([]*model.Pool, error) {
	var pools []*model.Pool
	for _, token := range f.order[gameID] {
		pools = append(pools, &model.Pool{
			GameID:  gameID,
			Token:   token,
			Balance: new(big.Int).Set(f.balances[gameID][token]),
		})
	}
	return pools, nil
}

func (f *fakePoolLedger) IsEligible(_ context.Context, gameID int64, identifier string) (bool, error) {
	return f.eligible[gameID][identifier], nil
}

func (f *fakePoolLedger) markEligible(gameID int64, identifier string) {
	if f.eligible[gameID] == nil {
		f.eligible[gameID] = make(map[string]bool)
	}
	f.eligible[gameID][identifier] = true
}

// fakePayoutRecorder collects payout rows.
type fakePayoutRecorder struct {
	rows []*model.Payout
}

func (f *fakePayoutRecorder) Create(_ context.Context, gameID int64, token string, amount *big.Int, txHash, status string) (*model.Payout, error) {
	p := &model.Payout{
		GameID: gameID,
		Token:  token,
		Amount: new(big.Int).Set(amount),
		TxHash: txHash,
		Status: status,
	}
	f.rows = append(f.rows, p)
	return p, nil
}

// fakeChainClient answers balance queries from a map and records sends.
type fakeChainClient struct {
	balances  map[string]*big.Int
	failRead  map[string]bool
	sent      [][]chain.Transfer
	sendErr   error
	awaitErr  error
	txCounter int
}

func newFakeChainClient() *fakeChainClient {
	return &fakeChainClient{
		balances: make(map[string]*big.Int),
		failRead: make(map[string]bool),
	}
}

func (f *fakeChainClient) Balance(_ context.Context, token string) (*big.Int, error) {
	if f.failRead[token] {
		return nil, errors.New("rpc unavailable")
	}
	b, ok := f.balances[token]
	if !ok {
		return big.NewInt(0), nil
	}
	return new(big.Int).Set(b), nil
}

func (f *fakeChainClient) Send(_ context.Context, transfers []chain.Transfer) (string, error) {
	if f.sendErr != nil {
		return "", f.sendErr
	}
	f.sent = append(f.sent, transfers)
	f.txCounter++
	return fmt.Sprintf("0xtx%d", f.txCounter), nil
}

func (f *fakeChainClient) AwaitConfirmation(context.Context, string) error {
	return f.awaitErr
}

// fakeResolver maps user IDs to addresses.
type fakeResolver struct {
	addresses map[string]string
}

func (f *fakeResolver) GetAddress(_ context.Context, userID string) (string, error) {
	addr, ok := f.addresses[userID]
	if !ok {
		return "", repository.ErrWalletNotFound
	}
	return addr, nil
}

type settlementFixture struct {
	games    *fakeGameStore
	pools    *fakePoolLedger
	payouts  *fakePayoutRecorder
	client   *fakeChainClient
	resolver *fakeResolver
	svc      *SettlementService
}

func newSettlementFixture(t *testing.T) *settlementFixture {
	t.Helper()
	wordSource, err := words.NewSource("", "")
	require.NoError(t, err)

	f := &settlementFixture{
		games:    newFakeGameStore(),
		pools:    newFakePoolLedger(),
		payouts:  &fakePayoutRecorder{},
		client:   newFakeChainClient(),
		resolver: &fakeResolver{addresses: map[string]string{}},
	}
	f.svc = NewSettlementService(f.games, f.pools, f.payouts, wordSource, f.client, f.resolver, nil)
	return f
}

func (f *settlementFixture) wonGame(t *testing.T, winner string) *model.Game {
	t.Helper()
	ctx := context.Background()
	game, err := f.games.Create(ctx, "space", "chan", "speed")
	require.NoError(t, err)
	ok, err := f.games.TryWinLock(ctx, game.ID, winner)
	require.NoError(t, err)
	require.True(t, ok)
	return game
}

const testToken = "0x1111111111111111111111111111111111111111"

func TestBuildPayoutPlan_CapsAtOnChainBalance(t *testing.T) {
	f := newSettlementFixture(t)
	ctx := context.Background()

	game := f.wonGame(t, "alice")
	require.NoError(t, f.pools.Credit(ctx, game.ID, model.NativeToken, big.NewInt(1000)))
	f.client.balances[model.NativeToken] = big.NewInt(400)

	plan, err := f.svc.BuildPayoutPlan(ctx, game)
	require.NoError(t, err)
	require.Len(t, plan, 1)
	assert.Equal(t, "400", plan[0].Amount.String())
}

func TestBuildPayoutPlan_SkipsUnreadableToken(t *testing.T) {
	f := newSettlementFixture(t)
	ctx := context.Background()

	game := f.wonGame(t, "alice")
	require.NoError(t, f.pools.Credit(ctx, game.ID, model.NativeToken, big.NewInt(500)))
	require.NoError(t, f.pools.Credit(ctx, game.ID, testToken, big.NewInt(200)))
	f.client.balances[model.NativeToken] = big.NewInt(500)
	f.client.failRead[testToken] = true

	plan, err := f.svc.BuildPayoutPlan(ctx, game)
	require.NoError(t, err)
	require.Len(t, plan, 1)
	assert.Equal(t, model.NativeToken, plan[0].Token)
	assert.Equal(t, "500", plan[0].Amount.String())
}

func TestBuildPayoutPlan_DropsDrainedToken(t *testing.T) {
	f := newSettlementFixture(t)
	ctx := context.Background()

	game := f.wonGame(t, "alice")
	require.NoError(t, f.pools.Credit(ctx, game.ID, model.NativeToken, big.NewInt(500)))
	// On-chain balance is zero: tracked funds are gone, nothing payable.
	f.client.balances[model.NativeToken] = big.NewInt(0)

	plan, err := f.svc.BuildPayoutPlan(ctx, game)
	require.NoError(t, err)
	assert.Empty(t, plan)
}

func TestExecutePayout_RecordsSuccessRows(t *testing.T) {
	f := newSettlementFixture(t)
	ctx := context.Background()

	game := f.wonGame(t, "alice")
	f.resolver.addresses["alice"] = "0xaaa0000000000000000000000000000000000001"
	require.NoError(t, f.pools.Credit(ctx, game.ID, model.NativeToken, big.NewInt(300)))
	require.NoError(t, f.pools.Credit(ctx, game.ID, testToken, big.NewInt(70)))
	f.client.balances[model.NativeToken] = big.NewInt(300)
	f.client.balances[testToken] = big.NewInt(70)

	payouts, err := f.svc.ExecutePayout(ctx, game)
	require.NoError(t, err)
	require.Len(t, payouts, 2)

	// One batch send, all rows share its reference and are success
	require.Len(t, f.client.sent, 1)
	assert.Len(t, f.client.sent[0], 2)
	for _, p := range payouts {
		assert.Equal(t, "0xtx1", p.TxHash)
		assert.Equal(t, model.PayoutStatusSuccess, p.Status)
	}
}

func TestExecutePayout_NothingToPay(t *testing.T) {
	f := newSettlementFixture(t)
	ctx := context.Background()

	game := f.wonGame(t, "alice")
	f.resolver.addresses["alice"] = "0xaaa0000000000000000000000000000000000001"

	_, err := f.svc.ExecutePayout(ctx, game)
	assert.ErrorIs(t, err, ErrNothingToPay)
}

func TestExecutePayout_WinnerUnresolved(t *testing.T) {
	f := newSettlementFixture(t)
	ctx := context.Background()

	game := f.wonGame(t, "alice")

	_, err := f.svc.ExecutePayout(ctx, game)
	assert.ErrorIs(t, err, ErrWinnerUnresolved)
	assert.Empty(t, f.payouts.rows)
}

func TestExecutePayout_NoWinner(t *testing.T) {
	f := newSettlementFixture(t)
	ctx := context.Background()

	game, err := f.games.Create(ctx, "space", "chan", "speed")
	require.NoError(t, err)

	_, err = f.svc.ExecutePayout(ctx, game)
	assert.ErrorIs(t, err, ErrNoWinner)
}

func TestExecutePayout_FailedSendLeavesNoRows(t *testing.T) {
	f := newSettlementFixture(t)
	ctx := context.Background()

	game := f.wonGame(t, "alice")
	f.resolver.addresses["alice"] = "0xaaa0000000000000000000000000000000000001"
	require.NoError(t, f.pools.Credit(ctx, game.ID, model.NativeToken, big.NewInt(300)))
	f.client.balances[model.NativeToken] = big.NewInt(300)
	f.client.sendErr = errors.New("nonce too low")

	_, err := f.svc.ExecutePayout(ctx, game)
	require.Error(t, err)
	assert.Empty(t, f.payouts.rows)

	// Game stays PAYOUT_PENDING for operator recovery
	locked, err := f.games.GetByID(ctx, game.ID)
	require.NoError(t, err)
	assert.Equal(t, model.GameStatePayoutPending, locked.State)
}

func TestSettleWin_CarriesLeftoverIntoNextRound(t *testing.T) {
	f := newSettlementFixture(t)
	ctx := context.Background()

	game := f.wonGame(t, "alice")
	f.resolver.addresses["alice"] = "0xaaa0000000000000000000000000000000000001"
	require.NoError(t, f.pools.Credit(ctx, game.ID, model.NativeToken, big.NewInt(1000)))
	// Only 600 actually on chain: 600 paid, 400 tracked leftover
	f.client.balances[model.NativeToken] = big.NewInt(600)

	payouts, next, err := f.svc.SettleWin(ctx, game)
	require.NoError(t, err)
	require.Len(t, payouts, 1)
	assert.Equal(t, "600", payouts[0].Amount.String())

	require.NotNil(t, next)
	assert.Equal(t, model.GameStateActive, next.State)
	assert.Equal(t, game.GameNumber+1, next.GameNumber)

	leftover := f.pools.balances[next.ID][model.NativeToken]
	require.NotNil(t, leftover)
	assert.Equal(t, "400", leftover.String())
}

func TestRollover_CarriesWholePot(t *testing.T) {
	f := newSettlementFixture(t)
	ctx := context.Background()

	game, err := f.games.Create(ctx, "space", "chan", "speed")
	require.NoError(t, err)
	require.NoError(t, f.pools.Credit(ctx, game.ID, model.NativeToken, big.NewInt(500)))
	require.NoError(t, f.pools.Credit(ctx, game.ID, testToken, big.NewInt(42)))

	next, rolled, err := f.svc.Rollover(ctx, "space", "chan")
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Len(t, rolled, 2)

	ended, err := f.games.GetByID(ctx, game.ID)
	require.NoError(t, err)
	assert.Equal(t, model.GameStatePayoutPending, ended.State)
	assert.Nil(t, ended.WinnerUserID)

	assert.Equal(t, "500", f.pools.balances[next.ID][model.NativeToken].String())
	assert.Equal(t, "42", f.pools.balances[next.ID][testToken].String())

	// No chain movement for a ledger-only rollover
	assert.Empty(t, f.client.sent)
}

func TestRollover_NoActiveGameStartsOne(t *testing.T) {
	f := newSettlementFixture(t)
	ctx := context.Background()

	next, rolled, err := f.svc.Rollover(ctx, "space", "chan")
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, int64(1), next.GameNumber)
	assert.Empty(t, rolled)
}
