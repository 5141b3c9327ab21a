package exchange

import (
	"fmt"
	"sync"

	"github.com/user/darkpool/backend/internal/models"
	"github.com/user/darkpool/backend/internal/sealed"
)

// Ledger maps (account, asset) to a sealed balance. Every mutation is a
// single homomorphic add or subtract; the ledger never learns a balance,
// only the boolean outcome of "balance >= amount" checks. Entries are
// created implicitly on first credit and never deleted.
type Ledger struct {
	mu       sync.RWMutex
	svc      sealed.Service
	balances map[models.BalanceKey]sealed.Value
}

// NewLedger creates an empty ledger over the given value service.
func NewLedger(svc sealed.Service) *Ledger {
	return &Ledger{
		svc:      svc,
		balances: make(map[models.BalanceKey]sealed.Value),
	}
}

// Balance returns the sealed balance for key, a sealed zero if none.
func (l *Ledger) Balance(key models.BalanceKey) sealed.Value {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if b, ok := l.balances[key]; ok {
		return b
	}
	return l.svc.Zero()
}

// Deposit credits amount to key's balance.
func (l *Ledger) Deposit(key models.BalanceKey, amount sealed.Value) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.credit(key, amount)
}

// Release returns a previously reserved amount to key's balance. It
// always succeeds; the caller is accountable for releasing no more than
// it reserved.
func (l *Ledger) Release(key models.BalanceKey, amount sealed.Value) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.credit(key, amount)
}

// Reserve debits amount from key's balance to back an open order. Fails
// with ErrInsufficientBalance when the sealed "balance >= amount" check
// decides false.
func (l *Ledger) Reserve(key models.BalanceKey, amount sealed.Value) error {
	return l.debitChecked(key, amount)
}

// Debit removes amount from key's balance for withdrawal. Same failure
// mode as Reserve.
func (l *Ledger) Debit(key models.BalanceKey, amount sealed.Value) error {
	return l.debitChecked(key, amount)
}

func (l *Ledger) credit(key models.BalanceKey, amount sealed.Value) error {
	cur, ok := l.balances[key]
	if !ok {
		cur = l.svc.Zero()
	}
	next, err := l.svc.Add(cur, amount)
	if err != nil {
		return fmt.Errorf("ledger credit: %w", err)
	}
	l.balances[key] = next
	return nil
}

func (l *Ledger) debitChecked(key models.BalanceKey, amount sealed.Value) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	cur, ok := l.balances[key]
	if !ok {
		cur = l.svc.Zero()
	}
	// Only the boolean leaves the comparison, never the operands.
	enough, err := l.svc.Ge(cur, amount)
	if err != nil {
		return fmt.Errorf("ledger compare: %w", err)
	}
	covered, err := l.svc.Decide(enough)
	if err != nil {
		return fmt.Errorf("ledger decide: %w", err)
	}
	if !covered {
		return ErrInsufficientBalance
	}
	next, err := l.svc.Sub(cur, amount)
	if err != nil {
		return fmt.Errorf("ledger debit: %w", err)
	}
	l.balances[key] = next
	return nil
}
