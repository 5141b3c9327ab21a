package exchange

import (
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/user/darkpool/backend/internal/models"
	"github.com/user/darkpool/backend/internal/sealed"
)

// Store owns the pair and order tables. Ids are assigned monotonically
// starting at 1; per-account and per-pair index lists are appended in
// placement order and never reordered. All mutation goes through Store
// methods.
type Store struct {
	mu          sync.RWMutex
	pairs       map[uint64]*models.TradingPair
	orders      map[uint64]*models.Order
	nextPairID  uint64
	nextOrderID uint64
	byAccount   map[uuid.UUID][]uint64
	byPair      map[uint64][]uint64
}

// NewStore creates empty pair and order tables.
func NewStore() *Store {
	return &Store{
		pairs:     make(map[uint64]*models.TradingPair),
		orders:    make(map[uint64]*models.Order),
		byAccount: make(map[uuid.UUID][]uint64),
		byPair:    make(map[uint64][]uint64),
	}
}

// InsertPair assigns the next pair id and stores the pair.
func (s *Store) InsertPair(p *models.TradingPair) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextPairID++
	p.ID = s.nextPairID
	s.pairs[p.ID] = p
	return p.ID
}

// Pair returns a snapshot of the pair with the given id.
func (s *Store) Pair(id uint64) (models.TradingPair, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.pairs[id]
	if !ok {
		return models.TradingPair{}, false
	}
	return *p, true
}

// TogglePair flips the pair's active flag and returns the new state.
func (s *Store) TogglePair(id uint64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pairs[id]
	if !ok {
		return false, ErrInvalidPair
	}
	p.Active = !p.Active
	return p.Active, nil
}

// ActivePairIDs lists ids of active pairs in ascending order.
func (s *Store) ActivePairIDs() []uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]uint64, 0, len(s.pairs))
	for id, p := range s.pairs {
		if p.Active {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// InsertOrder assigns the next order id, stores the order and appends it
// to its account and pair indexes.
func (s *Store) InsertOrder(o *models.Order) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextOrderID++
	o.ID = s.nextOrderID
	s.orders[o.ID] = o
	s.byAccount[o.Account] = append(s.byAccount[o.Account], o.ID)
	s.byPair[o.PairID] = append(s.byPair[o.PairID], o.ID)
	return o.ID
}

// Order returns a snapshot of the order with the given id.
func (s *Store) Order(id uint64) (models.Order, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[id]
	if !ok {
		return models.Order{}, false
	}
	return *o, true
}

// SetOrderStatus transitions an order's lifecycle state.
func (s *Store) SetOrderStatus(id uint64, status models.OrderStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return ErrInvalidOrder
	}
	o.Status = status
	return nil
}

// SetOrderFilled updates an order's sealed filled-so-far amount. The
// first-match settler never calls this; it is the hook a real fill
// settler uses.
func (s *Store) SetOrderFilled(id uint64, filled sealed.Value) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return ErrInvalidOrder
	}
	o.Filled = filled
	return nil
}

// PairOrderIDs returns the pair's order ids in placement order.
func (s *Store) PairOrderIDs(pairID uint64) []uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]uint64(nil), s.byPair[pairID]...)
}

// OrdersByAccount returns snapshots of the account's orders in
// placement order.
func (s *Store) OrdersByAccount(account uuid.UUID) []models.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Order, 0, len(s.byAccount[account]))
	for _, id := range s.byAccount[account] {
		out = append(out, *s.orders[id])
	}
	return out
}

// OrdersByPair returns snapshots of the pair's orders in placement order.
func (s *Store) OrdersByPair(pairID uint64) []models.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Order, 0, len(s.byPair[pairID]))
	for _, id := range s.byPair[pairID] {
		out = append(out, *s.orders[id])
	}
	return out
}
