package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrProductNotFound = errors.New("product not found")

// Outcome of applying one ledger entry.
type Outcome string

const (
	Applied   Outcome = "applied"
	Duplicate Outcome = "duplicate"
	NoProduct Outcome = "no_product"
)

// LedgerEntry is one stock movement. Key makes the movement idempotent:
// a key that was already applied is never applied again.
type LedgerEntry struct {
	Key       string
	OrderID   string
	ProductID string
	Delta     int64
}

type StockLedger interface {
	Apply(ctx context.Context, e LedgerEntry) (Outcome, error)
	// Mark records a key that moves no stock.
	Mark(ctx context.Context, key, orderID string) (Outcome, error)
	Has(ctx context.Context, key string) (bool, error)
}

type Product struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Stock     int64     `json:"stock"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type StockRepo struct{ DB *pgxpool.Pool }

// Apply records the entry key and moves the counter in one transaction. The
// event path is not clamped, so stock may go negative.
func (r *StockRepo) Apply(ctx context.Context, e LedgerEntry) (Outcome, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return "", err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ct, err := tx.Exec(ctx, `
		INSERT INTO stock_ledger (entry_key, order_id, product_id, delta)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (entry_key) DO NOTHING
	`, e.Key, e.OrderID, e.ProductID, e.Delta)
	if err != nil {
		return "", fmt.Errorf("ledger %s: %w", e.Key, err)
	}
	if ct.RowsAffected() == 0 {
		return Duplicate, nil
	}

	ct, err = tx.Exec(ctx, `UPDATE products SET stock = stock + $2, updated_at = NOW() WHERE id = $1`, e.ProductID, e.Delta)
	if err != nil {
		return "", fmt.Errorf("stock %s: %w", e.ProductID, err)
	}
	if ct.RowsAffected() == 0 {
		// rollback juga membuang entry ledger
		return NoProduct, nil
	}
	if err := tx.Commit(ctx); err != nil {
		return "", err
	}
	return Applied, nil
}

func (r *StockRepo) Mark(ctx context.Context, key, orderID string) (Outcome, error) {
	ct, err := r.DB.Exec(ctx, `
		INSERT INTO stock_ledger (entry_key, order_id, product_id, delta)
		VALUES ($1, $2, '', 0)
		ON CONFLICT (entry_key) DO NOTHING
	`, key, orderID)
	if err != nil {
		return "", fmt.Errorf("ledger %s: %w", key, err)
	}
	if ct.RowsAffected() == 0 {
		return Duplicate, nil
	}
	return Applied, nil
}

func (r *StockRepo) Has(ctx context.Context, key string) (bool, error) {
	var ok bool
	err := r.DB.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM stock_ledger WHERE entry_key = $1)`, key).Scan(&ok)
	return ok, err
}

// Adjust is the manual correction path. It clamps at zero and returns the
// new level.
func (r *StockRepo) Adjust(ctx context.Context, id string, delta int64) (int64, error) {
	var stock int64
	err := r.DB.QueryRow(ctx, `
		UPDATE products SET stock = GREATEST(stock + $2, 0), updated_at = NOW()
		WHERE id = $1 RETURNING stock
	`, id, delta).Scan(&stock)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrProductNotFound
	}
	return stock, err
}

func (r *StockRepo) Get(ctx context.Context, id string) (Product, error) {
	var p Product
	err := r.DB.QueryRow(ctx, `SELECT id, name, stock, updated_at FROM products WHERE id = $1`, id).
		Scan(&p.ID, &p.Name, &p.Stock, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, ErrProductNotFound
	}
	return p, err
}

// Upsert sets name and stock of a product row. Used by the seeder.
func (r *StockRepo) Upsert(ctx context.Context, p Product) error {
	_, err := r.DB.Exec(ctx, `
		INSERT INTO products (id, name, stock) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, stock = EXCLUDED.stock, updated_at = NOW()
	`, p.ID, p.Name, p.Stock)
	return err
}
