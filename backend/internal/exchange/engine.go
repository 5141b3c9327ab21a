// Package exchange is the confidential matching core: a reservation
// ledger over sealed balances, the order lifecycle state machine, the
// first-match scan and the reveal follow-up actions. State-changing
// operations are serialized by a single engine mutex, reproducing the
// sequential-executor model of the host substrate.
package exchange

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/user/darkpool/backend/internal/models"
	"github.com/user/darkpool/backend/internal/oracle"
	"github.com/user/darkpool/backend/internal/sealed"
	"github.com/user/darkpool/backend/internal/settlement"
)

// MaxFeeRateBps caps the taker fee at 10%.
const MaxFeeRateBps = 1000

// MaxPriceDecimals bounds pair price precision.
const MaxPriceDecimals = 18

// Recorder journals completed movements for audit. Implementations must
// tolerate being called once per event; the engine never retries.
type Recorder interface {
	RecordDeposit(ctx context.Context, account uuid.UUID, asset models.Asset, amount uint64) error
	RecordWithdrawal(ctx context.Context, account uuid.UUID, asset models.Asset, amount uint64) error
	RecordTrade(ctx context.Context, trade models.Trade) error
	RecordReveal(ctx context.Context, result models.RevealResult) error
}

// EventSink receives engine events for live delivery (websocket feed).
type EventSink interface {
	TradeExecuted(trade models.Trade)
	RevealCompleted(result models.RevealResult)
}

// Engine ties the ledger, the order store, the matching scan and the
// oracle client together. Every ledger mutation is paired with an order
// state transition inside one engine operation; privileged reads of
// sealed values only ever go through the oracle.
type Engine struct {
	mu sync.Mutex // global sequential executor

	svc       sealed.Service
	ledger    *Ledger
	store     *Store
	oracle    *oracle.Client
	transfers settlement.Adapter
	settler   Settler
	log       zerolog.Logger

	// Recorder and Events may be nil; set them before serving traffic.
	Recorder Recorder
	Events   EventSink

	feeRateBps   uint16
	feeCollector uuid.UUID
}

// New creates an engine over the given value service and settlement
// adapter, with the reference no-op settler installed.
func New(svc sealed.Service, transfers settlement.Adapter, log zerolog.Logger) *Engine {
	return &Engine{
		svc:       svc,
		ledger:    NewLedger(svc),
		store:     NewStore(),
		oracle:    oracle.NewClient(svc, log),
		transfers: transfers,
		settler:   NoopSettler{Svc: svc},
		log:       log.With().Str("component", "engine").Logger(),
	}
}

// SetSettler swaps the fill-sizing extension point.
func (e *Engine) SetSettler(s Settler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.settler = s
}

// Ledger exposes the balance ledger for inspection helpers.
func (e *Engine) Ledger() *Ledger { return e.ledger }

// Oracle exposes the oracle client (pending-request accounting).
func (e *Engine) Oracle() *oracle.Client { return e.oracle }

// --- pair and fee administration ---

// CreatePair registers a market. Identical assets, a doubly-zero asset
// pair and price decimals outside (0,18] are rejected.
func (e *Engine) CreatePair(base, quote models.Asset, priceDecimals uint8) (uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if base == quote {
		return 0, fmt.Errorf("%w: identical base and quote", ErrInvalidConfiguration)
	}
	if base == "" && quote == "" {
		return 0, fmt.Errorf("%w: empty asset pair", ErrInvalidConfiguration)
	}
	if priceDecimals == 0 || priceDecimals > MaxPriceDecimals {
		return 0, fmt.Errorf("%w: price decimals %d outside (0,%d]", ErrInvalidConfiguration, priceDecimals, MaxPriceDecimals)
	}
	id := e.store.InsertPair(&models.TradingPair{
		BaseAsset:     base,
		QuoteAsset:    quote,
		PriceDecimals: priceDecimals,
		Active:        true,
		CreatedAt:     time.Now(),
	})
	e.log.Info().Uint64("pair_id", id).Str("base", string(base)).Str("quote", string(quote)).Msg("pair created")
	return id, nil
}

// TogglePair flips a pair's active flag and returns the new state.
func (e *Engine) TogglePair(id uint64) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	active, err := e.store.TogglePair(id)
	if err != nil {
		return false, err
	}
	e.log.Info().Uint64("pair_id", id).Bool("active", active).Msg("pair toggled")
	return active, nil
}

// SetFeeRate sets the fee in basis points, capped at MaxFeeRateBps.
func (e *Engine) SetFeeRate(bps uint16) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if bps > MaxFeeRateBps {
		return fmt.Errorf("%w: fee rate %d exceeds %d bps", ErrInvalidConfiguration, bps, MaxFeeRateBps)
	}
	e.feeRateBps = bps
	return nil
}

// SetFeeCollector sets the fee destination account.
func (e *Engine) SetFeeCollector(account uuid.UUID) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if account == uuid.Nil {
		return fmt.Errorf("%w: zero fee collector", ErrInvalidConfiguration)
	}
	e.feeCollector = account
	return nil
}

// FeeRate returns the configured fee in basis points.
func (e *Engine) FeeRate() uint16 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.feeRateBps
}

// FeeCollector returns the configured fee destination.
func (e *Engine) FeeCollector() uuid.UUID {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.feeCollector
}

// --- funds ---

// Deposit credits an account. For the native asset the observable
// transfer leg must equal the claimed sealed amount; the credit is
// immediate. For other assets the claimed amount is sent to the oracle
// and the credit happens in the callback, after the plain quantity has
// been pulled from the account's external holdings.
func (e *Engine) Deposit(ctx context.Context, account uuid.UUID, asset models.Asset, ciphertext, proof []byte, transferred uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	amount, err := e.svc.Import(ciphertext, proof)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidProof, err)
	}

	if asset == models.NativeAsset {
		claimed, err := e.svc.Seal(transferred)
		if err != nil {
			return fmt.Errorf("seal transfer leg: %w", err)
		}
		same, err := e.svc.Eq(amount, claimed)
		if err != nil {
			return fmt.Errorf("compare transfer leg: %w", err)
		}
		match, err := e.svc.Decide(same)
		if err != nil {
			return fmt.Errorf("decide transfer leg: %w", err)
		}
		if !match {
			return fmt.Errorf("%w: claimed amount does not equal transferred quantity", ErrInvalidProof)
		}
		if err := e.ledger.Deposit(models.BalanceKey{Account: account, Asset: asset}, amount); err != nil {
			return err
		}
		// Only the transfer leg is observable, never the balance.
		e.recordDeposit(ctx, account, asset, transferred)
		return nil
	}

	_, err = e.oracle.Request(amount, oracle.Purpose{
		Kind:    oracle.KindDepositPull,
		Account: account,
		Asset:   asset,
		Value:   amount,
	})
	return err
}

// Withdraw debits the sealed amount after an encrypted balance check.
// The actual payout needs the plain quantity, so it is driven by the
// oracle callback.
func (e *Engine) Withdraw(ctx context.Context, account uuid.UUID, asset models.Asset, ciphertext, proof []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	amount, err := e.svc.Import(ciphertext, proof)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidProof, err)
	}
	if err := e.ledger.Debit(models.BalanceKey{Account: account, Asset: asset}, amount); err != nil {
		return err
	}
	_, err = e.oracle.Request(amount, oracle.Purpose{
		Kind:    oracle.KindWithdrawPayout,
		Account: account,
		Asset:   asset,
		Value:   amount,
	})
	return err
}

// RequestBalanceReveal starts a balance inspection for the account. The
// result arrives through the oracle callback and is delivered on the
// event feed; nothing is returned here.
func (e *Engine) RequestBalanceReveal(account uuid.UUID, asset models.Asset) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	bal := e.ledger.Balance(models.BalanceKey{Account: account, Asset: asset})
	_, err := e.oracle.Request(bal, oracle.Purpose{
		Kind:    oracle.KindBalanceInspect,
		Account: account,
		Asset:   asset,
		Value:   bal,
	})
	return err
}

// --- orders ---

// PlaceOrder validates the pair, imports the sealed amount and price,
// reserves the side-appropriate asset (quote for buy, base for sell),
// creates the order and triggers exactly one match attempt.
func (e *Engine) PlaceOrder(ctx context.Context, account uuid.UUID, pairID uint64, side models.Side, amountCt, amountProof, priceCt, priceProof []byte) (uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	pair, ok := e.store.Pair(pairID)
	if !ok || !pair.Active {
		return 0, ErrInvalidPair
	}
	if side != models.SideBuy && side != models.SideSell {
		return 0, fmt.Errorf("%w: side %q", ErrInvalidOrder, side)
	}

	amount, err := e.svc.Import(amountCt, amountProof)
	if err != nil {
		return 0, fmt.Errorf("%w: amount: %v", ErrInvalidProof, err)
	}
	price, err := e.svc.Import(priceCt, priceProof)
	if err != nil {
		return 0, fmt.Errorf("%w: price: %v", ErrInvalidProof, err)
	}

	reserveAsset := pair.BaseAsset
	if side == models.SideBuy {
		reserveAsset = pair.QuoteAsset
	}
	if err := e.ledger.Reserve(models.BalanceKey{Account: account, Asset: reserveAsset}, amount); err != nil {
		return 0, err
	}

	order := &models.Order{
		Account:   account,
		PairID:    pairID,
		Side:      side,
		Amount:    amount,
		Price:     price,
		Filled:    e.svc.Zero(),
		Status:    models.OrderActive,
		CreatedAt: time.Now(),
	}
	id := e.store.InsertOrder(order)
	e.log.Info().Uint64("order_id", id).Uint64("pair_id", pairID).
		Stringer("account", account).Str("side", string(side)).Msg("order placed")

	trade, err := e.attemptMatch(pair, *order)
	if err != nil {
		return 0, err
	}
	if trade != nil {
		e.recordTrade(ctx, *trade)
	}
	return id, nil
}

// CancelOrder releases the unfilled remainder back to the ledger and
// transitions the order to cancelled. Only the owner may cancel, and
// only while the order is active.
func (e *Engine) CancelOrder(caller uuid.UUID, orderID uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	order, ok := e.store.Order(orderID)
	if !ok {
		return ErrInvalidOrder
	}
	if order.Account != caller {
		return ErrNotOwner
	}
	if order.Status != models.OrderActive {
		return ErrOrderNotActive
	}

	unfilled, err := e.svc.Sub(order.Amount, order.Filled)
	if err != nil {
		return fmt.Errorf("unfilled remainder: %w", err)
	}
	pair, ok := e.store.Pair(order.PairID)
	if !ok {
		return ErrInvalidPair
	}
	releaseAsset := pair.BaseAsset
	if order.Side == models.SideBuy {
		releaseAsset = pair.QuoteAsset
	}
	if err := e.ledger.Release(models.BalanceKey{Account: order.Account, Asset: releaseAsset}, unfilled); err != nil {
		return err
	}
	if err := e.store.SetOrderStatus(orderID, models.OrderCancelled); err != nil {
		return err
	}
	e.log.Info().Uint64("order_id", orderID).Stringer("account", caller).Msg("order cancelled")
	return nil
}

// --- oracle callback ---

// RevealCallback resolves a decrypt callback: verifies the proofs, looks
// up the retained purpose and performs its follow-up exactly once. A
// failed verification discards the callback and leaves the context
// retained. Ledger preconditions are re-checked here, not assumed from
// request time.
func (e *Engine) RevealCallback(ctx context.Context, requestID uuid.UUID, result uint64, proofs [][]byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, err := e.oracle.Resolve(requestID, result, proofs)
	if err != nil {
		return err
	}

	switch p.Kind {
	case oracle.KindDepositPull:
		// The external pull is the precondition for crediting; it is
		// checked now, not at request time.
		if err := e.transfers.Pull(ctx, p.Account, p.Asset, result); err != nil {
			e.log.Warn().Err(err).Stringer("request_id", requestID).Msg("deposit pull failed, not crediting")
			return err
		}
		if err := e.ledger.Deposit(models.BalanceKey{Account: p.Account, Asset: p.Asset}, p.Value); err != nil {
			return err
		}
		e.recordDeposit(ctx, p.Account, p.Asset, result)

	case oracle.KindWithdrawPayout:
		// The ledger was debited when the withdrawal was accepted; this
		// leg only moves the revealed quantity out.
		if err := e.transfers.Credit(ctx, p.Account, p.Asset, result); err != nil {
			e.log.Error().Err(err).Stringer("request_id", requestID).Msg("withdraw payout failed")
			return err
		}
		if e.Recorder != nil {
			if err := e.Recorder.RecordWithdrawal(ctx, p.Account, p.Asset, result); err != nil {
				e.log.Warn().Err(err).Msg("journal withdrawal")
			}
		}

	case oracle.KindBalanceInspect:
		res := models.RevealResult{
			RequestID: requestID,
			Account:   p.Account,
			Asset:     p.Asset,
			Value:     result,
			Timestamp: time.Now(),
		}
		if e.Recorder != nil {
			if err := e.Recorder.RecordReveal(ctx, res); err != nil {
				e.log.Warn().Err(err).Msg("journal reveal")
			}
		}
		if e.Events != nil {
			e.Events.RevealCompleted(res)
		}

	default:
		return fmt.Errorf("%w: purpose kind %q", oracle.ErrUnknownRequest, p.Kind)
	}
	return nil
}

// --- accessors ---

// Pair returns the pair with the given id.
func (e *Engine) Pair(id uint64) (models.TradingPair, error) {
	p, ok := e.store.Pair(id)
	if !ok {
		return models.TradingPair{}, ErrInvalidPair
	}
	return p, nil
}

// ActivePairIDs lists ids of active pairs in ascending order.
func (e *Engine) ActivePairIDs() []uint64 { return e.store.ActivePairIDs() }

// Order returns the order with the given id.
func (e *Engine) Order(id uint64) (models.Order, error) {
	o, ok := e.store.Order(id)
	if !ok {
		return models.Order{}, ErrInvalidOrder
	}
	return o, nil
}

// OrdersByAccount lists the account's orders in placement order.
func (e *Engine) OrdersByAccount(account uuid.UUID) []models.Order {
	return e.store.OrdersByAccount(account)
}

// OrdersByPair lists the pair's orders in placement order.
func (e *Engine) OrdersByPair(pairID uint64) []models.Order {
	return e.store.OrdersByPair(pairID)
}

func (e *Engine) recordDeposit(ctx context.Context, account uuid.UUID, asset models.Asset, amount uint64) {
	if e.Recorder == nil {
		return
	}
	if err := e.Recorder.RecordDeposit(ctx, account, asset, amount); err != nil {
		e.log.Warn().Err(err).Msg("journal deposit")
	}
}

func (e *Engine) recordTrade(ctx context.Context, trade models.Trade) {
	e.log.Info().Uint64("taker", trade.TakerOrderID).Uint64("maker", trade.MakerOrderID).
		Uint64("pair_id", trade.PairID).Msg("match recorded")
	if e.Recorder != nil {
		if err := e.Recorder.RecordTrade(ctx, trade); err != nil {
			e.log.Warn().Err(err).Msg("journal trade")
		}
	}
	if e.Events != nil {
		e.Events.TradeExecuted(trade)
	}
}
