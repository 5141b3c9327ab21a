// Package settlement carries the external transfer leg of deposits and
// withdrawals: moving actual assets between the engine's custody and an
// account's outside holdings. Concrete drivers (chain clients, bank
// rails) implement Adapter; Memory is the in-process stand-in.
package settlement

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/user/darkpool/backend/internal/models"
)

// Adapter moves plain asset quantities in and out of engine custody.
type Adapter interface {
	// Credit pays amount of asset out to the account's external holdings.
	Credit(ctx context.Context, account uuid.UUID, asset models.Asset, amount uint64) error
	// Pull draws amount of asset from the account's external holdings
	// into custody. Fails if the holdings cannot cover it.
	Pull(ctx context.Context, account uuid.UUID, asset models.Asset, amount uint64) error
}

// Transfer is one executed leg, kept for inspection.
type Transfer struct {
	Account uuid.UUID
	Asset   models.Asset
	Amount  uint64
}

// Memory is an in-memory Adapter for tests and the dev backend. External
// holdings are seeded with Fund; every executed leg is recorded.
type Memory struct {
	mu       sync.Mutex
	holdings map[models.BalanceKey]uint64
	credits  []Transfer
	pulls    []Transfer
}

// NewMemory creates an empty in-memory settlement adapter.
func NewMemory() *Memory {
	return &Memory{holdings: make(map[models.BalanceKey]uint64)}
}

// Fund seeds an account's external holdings.
func (m *Memory) Fund(account uuid.UUID, asset models.Asset, amount uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.holdings[models.BalanceKey{Account: account, Asset: asset}] += amount
}

func (m *Memory) Credit(_ context.Context, account uuid.UUID, asset models.Asset, amount uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.holdings[models.BalanceKey{Account: account, Asset: asset}] += amount
	m.credits = append(m.credits, Transfer{Account: account, Asset: asset, Amount: amount})
	return nil
}

func (m *Memory) Pull(_ context.Context, account uuid.UUID, asset models.Asset, amount uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := models.BalanceKey{Account: account, Asset: asset}
	if m.holdings[key] < amount {
		return fmt.Errorf("settlement: account %s holds %d %s, cannot pull %d",
			account, m.holdings[key], asset, amount)
	}
	m.holdings[key] -= amount
	m.pulls = append(m.pulls, Transfer{Account: account, Asset: asset, Amount: amount})
	return nil
}

// Credits returns the executed payouts.
func (m *Memory) Credits() []Transfer {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Transfer(nil), m.credits...)
}

// Pulls returns the executed draws.
func (m *Memory) Pulls() []Transfer {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Transfer(nil), m.pulls...)
}

// Holdings returns an account's current external holdings of asset.
func (m *Memory) Holdings(account uuid.UUID, asset models.Asset) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.holdings[models.BalanceKey{Account: account, Asset: asset}]
}
