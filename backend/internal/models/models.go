package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/user/darkpool/backend/internal/sealed"
)

// Asset identifies a tradeable asset (native coin or token code).
// It is pure identity; quantities live elsewhere as sealed values.
type Asset string

// NativeAsset is the host chain's own coin. Deposits of it carry an
// observable transfer leg that must equal the claimed sealed amount.
const NativeAsset Asset = "NATIVE"

// User represents a trader account
type User struct {
	ID        uuid.UUID `json:"id"`
	Username  string    `json:"username"`
	Password  string    `json:"-"` // Store hash, exclude from JSON responses
	CreatedAt time.Time `json:"created_at"`
}

// Side is the direction of an order.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// OrderStatus is the lifecycle state of an order.
// Forward path: active -> partially_filled -> filled.
// Cancellation is terminal and only reachable from active.
type OrderStatus string

const (
	OrderActive          OrderStatus = "active"
	OrderPartiallyFilled OrderStatus = "partially_filled"
	OrderFilled          OrderStatus = "filled"
	OrderCancelled       OrderStatus = "cancelled"
)

// TradingPair is an admin-created market. Identity (assets) is immutable
// once created; only the active flag and trade statistics change.
type TradingPair struct {
	ID            uint64    `json:"id"`
	BaseAsset     Asset     `json:"base_asset"`
	QuoteAsset    Asset     `json:"quote_asset"`
	PriceDecimals uint8     `json:"price_decimals"`
	Active        bool      `json:"active"`
	Volume        uint64    `json:"volume"`
	LastPrice     uint64    `json:"last_price"`
	CreatedAt     time.Time `json:"created_at"`
}

// Order is a resting or completed order. Amount, price and filled are
// sealed: the engine can combine and compare them but never read them.
// Orders are never deleted; cancelled and filled orders remain for audit.
type Order struct {
	ID        uint64       `json:"id"`
	Account   uuid.UUID    `json:"account"`
	PairID    uint64       `json:"pair_id"`
	Side      Side         `json:"side"`
	Amount    sealed.Value `json:"-"`
	Price     sealed.Value `json:"-"`
	Filled    sealed.Value `json:"-"`
	Status    OrderStatus  `json:"status"`
	CreatedAt time.Time    `json:"created_at"`
}

// Trade is a match record emitted by the matching engine. Amount and
// price are sealed like the orders they came from.
type Trade struct {
	TakerOrderID uint64       `json:"taker_order_id"`
	MakerOrderID uint64       `json:"maker_order_id"`
	PairID       uint64       `json:"pair_id"`
	Amount       sealed.Value `json:"-"`
	Price        sealed.Value `json:"-"`
	Timestamp    time.Time    `json:"timestamp"`
}

// BalanceKey addresses one ledger entry.
type BalanceKey struct {
	Account uuid.UUID
	Asset   Asset
}

// RevealResult is the outcome of a balance inspection, delivered over the
// event feed once the oracle answers.
type RevealResult struct {
	RequestID uuid.UUID `json:"request_id"`
	Account   uuid.UUID `json:"account"`
	Asset     Asset     `json:"asset"`
	Value     uint64    `json:"value"`
	Timestamp time.Time `json:"timestamp"`
}
