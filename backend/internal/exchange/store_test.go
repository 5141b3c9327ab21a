package exchange

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/darkpool/backend/internal/models"
	"github.com/user/darkpool/backend/internal/sealed"
)

func TestStoreIDsStartAtOne(t *testing.T) {
	s := NewStore()

	p1 := s.InsertPair(&models.TradingPair{BaseAsset: "BTC", QuoteAsset: "USD", Active: true})
	p2 := s.InsertPair(&models.TradingPair{BaseAsset: "ETH", QuoteAsset: "USD", Active: true})
	assert.Equal(t, uint64(1), p1)
	assert.Equal(t, uint64(2), p2)

	o1 := s.InsertOrder(&models.Order{Account: uuid.New(), PairID: p1, Side: models.SideBuy, Status: models.OrderActive})
	o2 := s.InsertOrder(&models.Order{Account: uuid.New(), PairID: p1, Side: models.SideSell, Status: models.OrderActive})
	assert.Equal(t, uint64(1), o1)
	assert.Equal(t, uint64(2), o2)
}

func TestStoreIndexesFollowPlacementOrder(t *testing.T) {
	s := NewStore()
	pairID := s.InsertPair(&models.TradingPair{BaseAsset: "BTC", QuoteAsset: "USD", Active: true})
	account := uuid.New()

	var want []uint64
	for i := 0; i < 5; i++ {
		id := s.InsertOrder(&models.Order{Account: account, PairID: pairID, Side: models.SideBuy, Status: models.OrderActive})
		want = append(want, id)
	}

	assert.Equal(t, want, s.PairOrderIDs(pairID))

	orders := s.OrdersByAccount(account)
	require.Len(t, orders, 5)
	for i, o := range orders {
		assert.Equal(t, want[i], o.ID)
	}
}

func TestStoreTogglePair(t *testing.T) {
	s := NewStore()
	id := s.InsertPair(&models.TradingPair{BaseAsset: "BTC", QuoteAsset: "USD", Active: true})

	active, err := s.TogglePair(id)
	require.NoError(t, err)
	assert.False(t, active)
	assert.Empty(t, s.ActivePairIDs())

	active, err = s.TogglePair(id)
	require.NoError(t, err)
	assert.True(t, active)
	assert.Equal(t, []uint64{id}, s.ActivePairIDs())

	_, err = s.TogglePair(99)
	assert.ErrorIs(t, err, ErrInvalidPair)
}

func TestStoreOrderStatusTransitions(t *testing.T) {
	s := NewStore()
	pairID := s.InsertPair(&models.TradingPair{BaseAsset: "BTC", QuoteAsset: "USD", Active: true})
	id := s.InsertOrder(&models.Order{Account: uuid.New(), PairID: pairID, Side: models.SideSell, Status: models.OrderActive})

	require.NoError(t, s.SetOrderStatus(id, models.OrderCancelled))
	o, ok := s.Order(id)
	require.True(t, ok)
	assert.Equal(t, models.OrderCancelled, o.Status)

	assert.ErrorIs(t, s.SetOrderStatus(42, models.OrderFilled), ErrInvalidOrder)
}

func TestStoreSetOrderFilled(t *testing.T) {
	svc := sealed.NewPlain()
	s := NewStore()
	pairID := s.InsertPair(&models.TradingPair{BaseAsset: "BTC", QuoteAsset: "USD", Active: true})
	id := s.InsertOrder(&models.Order{Account: uuid.New(), PairID: pairID, Side: models.SideSell, Status: models.OrderActive, Filled: svc.Zero()})

	filled := mustSeal(t, svc, 25)
	require.NoError(t, s.SetOrderFilled(id, filled))
	o, ok := s.Order(id)
	require.True(t, ok)
	x, _ := svc.Plaintext(o.Filled)
	assert.Equal(t, uint64(25), x)

	assert.ErrorIs(t, s.SetOrderFilled(42, filled), ErrInvalidOrder)
}
