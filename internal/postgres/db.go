package postgres

import (
	"context"
	"fmt"
	"github.com/jackc/pgx/v5/pgxpool"
	"time"
)

func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	cfg.MaxConns = 8
	cfg.MinConns = 1
	cfg.HealthCheckPeriod = 30 * time.Second
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

// schema dijalankan saat startup; semua statement idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS product_refs (
		id         TEXT PRIMARY KEY,
		price      NUMERIC NOT NULL DEFAULT 0,
		is_active  BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`ALTER TABLE product_refs ALTER COLUMN price TYPE NUMERIC`,
	`CREATE TABLE IF NOT EXISTS products (
		id         TEXT PRIMARY KEY,
		name       TEXT NOT NULL,
		stock      BIGINT NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS stock_ledger (
		entry_key  TEXT PRIMARY KEY,
		order_id   TEXT NOT NULL,
		product_id TEXT NOT NULL,
		delta      BIGINT NOT NULL,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS stock_ledger_order_idx ON stock_ledger (order_id)`,
}

// Migrate creates the tables used by the orders and inventory services.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for i, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate step %d: %w", i+1, err)
		}
	}
	return nil
}
