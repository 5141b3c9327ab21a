package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/user/darkpool/backend/internal/models"
)

// Journal persists the engine's observable events: transfer legs of
// deposits and withdrawals, match records and completed reveals. It
// implements exchange.Recorder over the shared pool.
type Journal struct{}

// NewJournal returns a journal backed by the global pool.
func NewJournal() *Journal { return &Journal{} }

func (j *Journal) RecordDeposit(ctx context.Context, account uuid.UUID, asset models.Asset, amount uint64) error {
	query := `INSERT INTO deposit_events (account, asset, amount) VALUES ($1, $2, $3)`
	if _, err := DB.Exec(ctx, query, account, string(asset), int64(amount)); err != nil {
		return fmt.Errorf("journal deposit for account %s asset %s: %w", account, asset, err)
	}
	return nil
}

func (j *Journal) RecordWithdrawal(ctx context.Context, account uuid.UUID, asset models.Asset, amount uint64) error {
	query := `INSERT INTO withdrawal_events (account, asset, amount) VALUES ($1, $2, $3)`
	if _, err := DB.Exec(ctx, query, account, string(asset), int64(amount)); err != nil {
		return fmt.Errorf("journal withdrawal for account %s asset %s: %w", account, asset, err)
	}
	return nil
}

func (j *Journal) RecordTrade(ctx context.Context, trade models.Trade) error {
	query := `INSERT INTO trade_events (taker_order_id, maker_order_id, pair_id) VALUES ($1, $2, $3)`
	if _, err := DB.Exec(ctx, query, int64(trade.TakerOrderID), int64(trade.MakerOrderID), int64(trade.PairID)); err != nil {
		return fmt.Errorf("journal trade %d/%d: %w", trade.TakerOrderID, trade.MakerOrderID, err)
	}
	return nil
}

func (j *Journal) RecordReveal(ctx context.Context, result models.RevealResult) error {
	query := `INSERT INTO reveal_events (request_id, account, asset, value) VALUES ($1, $2, $3, $4)`
	if _, err := DB.Exec(ctx, query, result.RequestID, result.Account, string(result.Asset), int64(result.Value)); err != nil {
		return fmt.Errorf("journal reveal %s: %w", result.RequestID, err)
	}
	return nil
}
