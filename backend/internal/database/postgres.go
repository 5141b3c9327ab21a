package database

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

var DB *pgxpool.Pool

// InitDB initializes the database connection pool and makes sure the
// schema exists.
func InitDB(ctx context.Context, url string) error {
	var err error
	DB, err = pgxpool.New(ctx, url)
	if err != nil {
		return err
	}
	if err := DB.Ping(ctx); err != nil {
		return err
	}
	if err := ensureSchema(ctx); err != nil {
		return err
	}
	log.Info().Msg("connected to database")
	return nil
}

// CloseDB closes the database connection pool.
func CloseDB() {
	if DB != nil {
		DB.Close()
		log.Info().Msg("database connection closed")
	}
}

// ensureSchema creates the account and journal tables. The journal is
// append-only: sealed balances never touch the database, only the
// observable transfer legs and match metadata do.
func ensureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id            UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			username      TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS deposit_events (
			id         BIGSERIAL PRIMARY KEY,
			account    UUID NOT NULL,
			asset      TEXT NOT NULL,
			amount     BIGINT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS withdrawal_events (
			id         BIGSERIAL PRIMARY KEY,
			account    UUID NOT NULL,
			asset      TEXT NOT NULL,
			amount     BIGINT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS trade_events (
			id             BIGSERIAL PRIMARY KEY,
			taker_order_id BIGINT NOT NULL,
			maker_order_id BIGINT NOT NULL,
			pair_id        BIGINT NOT NULL,
			created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS reveal_events (
			id         BIGSERIAL PRIMARY KEY,
			request_id UUID NOT NULL,
			account    UUID NOT NULL,
			asset      TEXT NOT NULL,
			value      BIGINT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
	}
	for _, stmt := range stmts {
		if _, err := DB.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
