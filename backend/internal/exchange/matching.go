package exchange

import (
	"time"

	"github.com/user/darkpool/backend/internal/models"
	"github.com/user/darkpool/backend/internal/sealed"
)

// Settler sizes and applies the fill once the scan has selected a
// counter-order. Selection policy lives in attemptMatch and does not
// change with the settler; a real implementation would compare the
// sealed prices and quantities, adjust both orders' filled amounts,
// advance their statuses and update the pair's volume and last price.
type Settler interface {
	Settle(taker, maker models.Order, pair models.TradingPair) (models.Trade, error)
}

// NoopSettler reports a zero-quantity match at the counter-order's
// sealed price and mutates neither order. This reproduces the reference
// behavior: a match is detected and recorded but never sized.
type NoopSettler struct {
	Svc sealed.Service
}

func (s NoopSettler) Settle(taker, maker models.Order, pair models.TradingPair) (models.Trade, error) {
	return models.Trade{
		TakerOrderID: taker.ID,
		MakerOrderID: maker.ID,
		PairID:       pair.ID,
		Amount:       s.Svc.Zero(),
		Price:        maker.Price,
		Timestamp:    time.Now(),
	}, nil
}

// attemptMatch scans the pair's orders in placement order and settles
// against the first active opposite-side order that is not the new order
// itself. At most one settle per placement; no candidate means no trade.
func (e *Engine) attemptMatch(pair models.TradingPair, taker models.Order) (*models.Trade, error) {
	for _, id := range e.store.PairOrderIDs(pair.ID) {
		if id == taker.ID {
			continue
		}
		maker, ok := e.store.Order(id)
		if !ok || maker.Side == taker.Side || maker.Status != models.OrderActive {
			continue
		}
		trade, err := e.settler.Settle(taker, maker, pair)
		if err != nil {
			return nil, err
		}
		return &trade, nil
	}
	return nil, nil
}
