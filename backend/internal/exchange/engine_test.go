package exchange

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/darkpool/backend/internal/models"
	"github.com/user/darkpool/backend/internal/sealed"
	"github.com/user/darkpool/backend/internal/settlement"
)

type captureSink struct {
	trades  []models.Trade
	reveals []models.RevealResult
}

func (c *captureSink) TradeExecuted(trade models.Trade) { c.trades = append(c.trades, trade) }

func (c *captureSink) RevealCompleted(r models.RevealResult) { c.reveals = append(c.reveals, r) }

func newTestEngine(t *testing.T) (*Engine, *sealed.PlainService, *settlement.Memory, *captureSink) {
	t.Helper()
	svc := sealed.NewPlain()
	transfers := settlement.NewMemory()
	e := New(svc, transfers, zerolog.Nop())
	sink := &captureSink{}
	e.Events = sink
	return e, svc, transfers, sink
}

// fund credits a ledger balance directly, bypassing the deposit flows.
func fund(t *testing.T, e *Engine, svc *sealed.PlainService, account uuid.UUID, asset models.Asset, amount uint64) {
	t.Helper()
	require.NoError(t, e.Ledger().Deposit(models.BalanceKey{Account: account, Asset: asset}, mustSeal(t, svc, amount)))
}

func balanceOf(t *testing.T, e *Engine, svc *sealed.PlainService, account uuid.UUID, asset models.Asset) uint64 {
	t.Helper()
	return plaintext(t, svc, e.Ledger().Balance(models.BalanceKey{Account: account, Asset: asset}))
}

func newPair(t *testing.T, e *Engine) uint64 {
	t.Helper()
	id, err := e.CreatePair("BTC", "USD", 8)
	require.NoError(t, err)
	return id
}

func place(t *testing.T, e *Engine, account uuid.UUID, pairID uint64, side models.Side, amount, price uint64) uint64 {
	t.Helper()
	amtCt, amtProof := sealed.ClientSeal(amount)
	priceCt, priceProof := sealed.ClientSeal(price)
	id, err := e.PlaceOrder(context.Background(), account, pairID, side, amtCt, amtProof, priceCt, priceProof)
	require.NoError(t, err)
	return id
}

// answerOracle resolves the single pending decrypt request with a
// correctly signed callback and returns the revealed value.
func answerOracle(t *testing.T, e *Engine, svc *sealed.PlainService) uint64 {
	t.Helper()
	pending := svc.PendingDecrypts()
	require.Len(t, pending, 1)
	req := pending[0]
	require.NoError(t, e.RevealCallback(context.Background(), req.ID, req.Plain, svc.SignResult(req.ID, req.Plain)))
	return req.Plain
}

func TestDepositNativeMatchesTransferLeg(t *testing.T) {
	e, svc, _, _ := newTestEngine(t)
	account := uuid.New()

	ct, proof := sealed.ClientSeal(100)
	require.NoError(t, e.Deposit(context.Background(), account, models.NativeAsset, ct, proof, 100))
	assert.Equal(t, uint64(100), balanceOf(t, e, svc, account, models.NativeAsset))

	// Claimed sealed amount disagrees with the observable transfer leg.
	ct, proof = sealed.ClientSeal(100)
	err := e.Deposit(context.Background(), account, models.NativeAsset, ct, proof, 90)
	assert.ErrorIs(t, err, ErrInvalidProof)
	assert.Equal(t, uint64(100), balanceOf(t, e, svc, account, models.NativeAsset))
}

func TestDepositNonNativeCompletesViaOracle(t *testing.T) {
	e, svc, transfers, _ := newTestEngine(t)
	account := uuid.New()
	transfers.Fund(account, "USD", 500)

	ct, proof := sealed.ClientSeal(500)
	require.NoError(t, e.Deposit(context.Background(), account, "USD", ct, proof, 0))

	// Nothing is credited until the oracle answers.
	assert.Equal(t, uint64(0), balanceOf(t, e, svc, account, "USD"))
	assert.Equal(t, 1, e.Oracle().PendingCount())

	revealed := answerOracle(t, e, svc)
	assert.Equal(t, uint64(500), revealed)
	assert.Equal(t, uint64(500), balanceOf(t, e, svc, account, "USD"))
	assert.Equal(t, uint64(0), transfers.Holdings(account, "USD"))
	assert.Equal(t, 0, e.Oracle().PendingCount())
}

func TestDepositPullFailureDoesNotCredit(t *testing.T) {
	e, svc, _, _ := newTestEngine(t)
	account := uuid.New()

	ct, proof := sealed.ClientSeal(500)
	require.NoError(t, e.Deposit(context.Background(), account, "USD", ct, proof, 0))

	pending := svc.PendingDecrypts()
	require.Len(t, pending, 1)
	req := pending[0]
	err := e.RevealCallback(context.Background(), req.ID, req.Plain, svc.SignResult(req.ID, req.Plain))
	require.Error(t, err)

	assert.Equal(t, uint64(0), balanceOf(t, e, svc, account, "USD"))
	// The follow-up ran once; the request is retired even though it failed.
	assert.Equal(t, 0, e.Oracle().PendingCount())
}

func TestWithdrawRoundTrip(t *testing.T) {
	e, svc, transfers, _ := newTestEngine(t)
	account := uuid.New()

	ct, proof := sealed.ClientSeal(100)
	require.NoError(t, e.Deposit(context.Background(), account, models.NativeAsset, ct, proof, 100))

	ct, proof = sealed.ClientSeal(100)
	require.NoError(t, e.Withdraw(context.Background(), account, models.NativeAsset, ct, proof))
	assert.Equal(t, uint64(0), balanceOf(t, e, svc, account, models.NativeAsset))

	revealed := answerOracle(t, e, svc)
	assert.Equal(t, uint64(100), revealed)

	credits := transfers.Credits()
	require.Len(t, credits, 1)
	assert.Equal(t, settlement.Transfer{Account: account, Asset: models.NativeAsset, Amount: 100}, credits[0])
}

func TestWithdrawInsufficient(t *testing.T) {
	e, svc, _, _ := newTestEngine(t)
	account := uuid.New()
	fund(t, e, svc, account, "USD", 10)

	ct, proof := sealed.ClientSeal(11)
	err := e.Withdraw(context.Background(), account, "USD", ct, proof)
	assert.ErrorIs(t, err, ErrInsufficientBalance)
	assert.Equal(t, uint64(10), balanceOf(t, e, svc, account, "USD"))
	assert.Equal(t, 0, e.Oracle().PendingCount())
}

func TestPlaceOrderReservesFunds(t *testing.T) {
	e, svc, _, _ := newTestEngine(t)
	pairID := newPair(t, e)
	buyer := uuid.New()
	fund(t, e, svc, buyer, "USD", 1000)

	id := place(t, e, buyer, pairID, models.SideBuy, 600, 10)
	assert.Equal(t, uint64(1), id)
	// Buy orders reserve the quote asset.
	assert.Equal(t, uint64(400), balanceOf(t, e, svc, buyer, "USD"))

	order, err := e.Order(id)
	require.NoError(t, err)
	assert.Equal(t, models.OrderActive, order.Status)
	assert.Equal(t, uint64(0), plaintext(t, svc, order.Filled))
}

func TestPlaceOrderSellReservesBase(t *testing.T) {
	e, svc, _, _ := newTestEngine(t)
	pairID := newPair(t, e)
	seller := uuid.New()
	fund(t, e, svc, seller, "BTC", 5)

	place(t, e, seller, pairID, models.SideSell, 3, 10)
	assert.Equal(t, uint64(2), balanceOf(t, e, svc, seller, "BTC"))
}

func TestPlaceOrderInsufficientBalance(t *testing.T) {
	e, svc, _, _ := newTestEngine(t)
	pairID := newPair(t, e)
	buyer := uuid.New()
	fund(t, e, svc, buyer, "USD", 100)

	amtCt, amtProof := sealed.ClientSeal(101)
	priceCt, priceProof := sealed.ClientSeal(10)
	_, err := e.PlaceOrder(context.Background(), buyer, pairID, models.SideBuy, amtCt, amtProof, priceCt, priceProof)
	assert.ErrorIs(t, err, ErrInsufficientBalance)

	assert.Equal(t, uint64(100), balanceOf(t, e, svc, buyer, "USD"))
	assert.Empty(t, e.OrdersByAccount(buyer))
}

func TestPlaceOrderInvalidPair(t *testing.T) {
	e, _, _, _ := newTestEngine(t)
	pairID := newPair(t, e)

	amtCt, amtProof := sealed.ClientSeal(1)
	priceCt, priceProof := sealed.ClientSeal(1)

	_, err := e.PlaceOrder(context.Background(), uuid.New(), 99, models.SideBuy, amtCt, amtProof, priceCt, priceProof)
	assert.ErrorIs(t, err, ErrInvalidPair)

	_, err = e.TogglePair(pairID)
	require.NoError(t, err)
	_, err = e.PlaceOrder(context.Background(), uuid.New(), pairID, models.SideBuy, amtCt, amtProof, priceCt, priceProof)
	assert.ErrorIs(t, err, ErrInvalidPair)
}

func TestPlaceOrderBadProof(t *testing.T) {
	e, svc, _, _ := newTestEngine(t)
	pairID := newPair(t, e)
	buyer := uuid.New()
	fund(t, e, svc, buyer, "USD", 100)

	amtCt, amtProof := sealed.ClientSeal(50)
	amtCt[0] ^= 0xff
	priceCt, priceProof := sealed.ClientSeal(10)
	_, err := e.PlaceOrder(context.Background(), buyer, pairID, models.SideBuy, amtCt, amtProof, priceCt, priceProof)
	assert.ErrorIs(t, err, ErrInvalidProof)
	assert.Equal(t, uint64(100), balanceOf(t, e, svc, buyer, "USD"))
}

func TestCancelRefundsReservation(t *testing.T) {
	e, svc, _, _ := newTestEngine(t)
	pairID := newPair(t, e)
	buyer := uuid.New()
	fund(t, e, svc, buyer, "USD", 1000)

	id := place(t, e, buyer, pairID, models.SideBuy, 600, 10)
	require.Equal(t, uint64(400), balanceOf(t, e, svc, buyer, "USD"))

	require.NoError(t, e.CancelOrder(buyer, id))
	// Nothing was filled, so the full reservation comes back.
	assert.Equal(t, uint64(1000), balanceOf(t, e, svc, buyer, "USD"))

	order, err := e.Order(id)
	require.NoError(t, err)
	assert.Equal(t, models.OrderCancelled, order.Status)
}

func TestCancelGuards(t *testing.T) {
	e, svc, _, _ := newTestEngine(t)
	pairID := newPair(t, e)
	buyer := uuid.New()
	fund(t, e, svc, buyer, "USD", 1000)
	id := place(t, e, buyer, pairID, models.SideBuy, 600, 10)

	assert.ErrorIs(t, e.CancelOrder(buyer, 42), ErrInvalidOrder)
	assert.ErrorIs(t, e.CancelOrder(uuid.New(), id), ErrNotOwner)

	require.NoError(t, e.CancelOrder(buyer, id))
	assert.ErrorIs(t, e.CancelOrder(buyer, id), ErrOrderNotActive)
	// The double cancel released nothing extra.
	assert.Equal(t, uint64(1000), balanceOf(t, e, svc, buyer, "USD"))
}

func TestMatchingDeterminism(t *testing.T) {
	e, svc, _, sink := newTestEngine(t)
	pairID := newPair(t, e)
	alice := uuid.New()
	bob := uuid.New()
	fund(t, e, svc, alice, "USD", 1000)
	fund(t, e, svc, bob, "BTC", 1000)

	// First order on the pair: no opposite side yet, no match.
	o1 := place(t, e, alice, pairID, models.SideBuy, 100, 10)
	assert.Empty(t, sink.trades)

	// O2 is opposite-side: matches O1, the first active candidate.
	o2 := place(t, e, bob, pairID, models.SideSell, 100, 10)
	require.Len(t, sink.trades, 1)
	assert.Equal(t, o2, sink.trades[0].TakerOrderID)
	assert.Equal(t, o1, sink.trades[0].MakerOrderID)
	// The reference settlement is vacuous: zero quantity, no mutation.
	assert.Equal(t, uint64(0), plaintext(t, svc, sink.trades[0].Amount))

	for _, id := range []uint64{o1, o2} {
		order, err := e.Order(id)
		require.NoError(t, err)
		assert.Equal(t, models.OrderActive, order.Status)
		assert.Equal(t, uint64(0), plaintext(t, svc, order.Filled))
	}

	// O1 is still active, so a third order matches it again by
	// ascending insertion order.
	o3 := place(t, e, bob, pairID, models.SideSell, 50, 9)
	require.Len(t, sink.trades, 2)
	assert.Equal(t, o3, sink.trades[1].TakerOrderID)
	assert.Equal(t, o1, sink.trades[1].MakerOrderID)

	// Once O1 is cancelled there is no active opposite order left for a
	// new sell.
	require.NoError(t, e.CancelOrder(alice, o1))
	place(t, e, bob, pairID, models.SideSell, 50, 9)
	assert.Len(t, sink.trades, 2)
}

func TestBalanceRevealAuthenticity(t *testing.T) {
	e, svc, _, sink := newTestEngine(t)
	account := uuid.New()
	fund(t, e, svc, account, "USD", 250)

	require.NoError(t, e.RequestBalanceReveal(account, "USD"))
	pending := svc.PendingDecrypts()
	require.Len(t, pending, 1)
	req := pending[0]

	// Tampered value: rejected, context retained, no state change.
	err := e.RevealCallback(context.Background(), req.ID, 9999, svc.SignResult(req.ID, 250))
	assert.Error(t, err)
	assert.Empty(t, sink.reveals)
	assert.Equal(t, 1, e.Oracle().PendingCount())

	// Authentic callback resolves the inspection.
	require.NoError(t, e.RevealCallback(context.Background(), req.ID, 250, svc.SignResult(req.ID, 250)))
	require.Len(t, sink.reveals, 1)
	assert.Equal(t, account, sink.reveals[0].Account)
	assert.Equal(t, uint64(250), sink.reveals[0].Value)

	// Replay after retirement is rejected.
	err = e.RevealCallback(context.Background(), req.ID, 250, svc.SignResult(req.ID, 250))
	assert.Error(t, err)
	assert.Len(t, sink.reveals, 1)
}

func TestPairAdministration(t *testing.T) {
	e, _, _, _ := newTestEngine(t)

	_, err := e.CreatePair("BTC", "BTC", 8)
	assert.ErrorIs(t, err, ErrInvalidConfiguration)
	_, err = e.CreatePair("", "", 8)
	assert.ErrorIs(t, err, ErrInvalidConfiguration)
	_, err = e.CreatePair("BTC", "USD", 0)
	assert.ErrorIs(t, err, ErrInvalidConfiguration)
	_, err = e.CreatePair("BTC", "USD", 19)
	assert.ErrorIs(t, err, ErrInvalidConfiguration)

	id, err := e.CreatePair("BTC", "USD", 8)
	require.NoError(t, err)
	pair, err := e.Pair(id)
	require.NoError(t, err)
	assert.True(t, pair.Active)
	assert.Equal(t, []uint64{id}, e.ActivePairIDs())

	active, err := e.TogglePair(id)
	require.NoError(t, err)
	assert.False(t, active)
	assert.Empty(t, e.ActivePairIDs())

	_, err = e.TogglePair(42)
	assert.ErrorIs(t, err, ErrInvalidPair)
}

func TestFeeConfiguration(t *testing.T) {
	e, _, _, _ := newTestEngine(t)

	require.NoError(t, e.SetFeeRate(1000))
	assert.Equal(t, uint16(1000), e.FeeRate())
	assert.ErrorIs(t, e.SetFeeRate(1001), ErrInvalidConfiguration)

	assert.ErrorIs(t, e.SetFeeCollector(uuid.Nil), ErrInvalidConfiguration)
	collector := uuid.New()
	require.NoError(t, e.SetFeeCollector(collector))
	assert.Equal(t, collector, e.FeeCollector())
}
