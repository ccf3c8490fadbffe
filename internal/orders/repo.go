package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/ariefcatur/go-catalog-sync/internal/events"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

var ErrNotFound = errors.New("product ref not found")

// RefStore persists ProductRef records.
type RefStore interface {
	// Upsert writes price and active flag. A nil IsActive means true for a
	// new record and leaves the stored flag alone for an existing one.
	Upsert(ctx context.Context, ref events.RefProduct) error
	// Deactivate sets is_active=false, creating a placeholder with price 0
	// when the id was never seen.
	Deactivate(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (ProductRef, error)
}

type RefRepo struct{ DB *pgxpool.Pool }

func (r *RefRepo) Upsert(ctx context.Context, ref events.RefProduct) error {
	_, err := r.DB.Exec(ctx, `
		INSERT INTO product_refs (id, price, is_active)
		VALUES ($1, $2::numeric, COALESCE($3::boolean, TRUE))
		ON CONFLICT (id) DO UPDATE
		SET price = EXCLUDED.price,
		    is_active = COALESCE($3::boolean, product_refs.is_active),
		    updated_at = NOW()
	`, ref.ID, ref.Price.String(), ref.IsActive)
	if err != nil {
		return fmt.Errorf("upsert product ref %s: %w", ref.ID, err)
	}
	return nil
}

func (r *RefRepo) Deactivate(ctx context.Context, id string) error {
	_, err := r.DB.Exec(ctx, `
		INSERT INTO product_refs (id, price, is_active)
		VALUES ($1, 0, FALSE)
		ON CONFLICT (id) DO UPDATE
		SET is_active = FALSE, updated_at = NOW()
	`, id)
	if err != nil {
		return fmt.Errorf("deactivate product ref %s: %w", id, err)
	}
	return nil
}

func (r *RefRepo) Get(ctx context.Context, id string) (ProductRef, error) {
	var (
		ref   ProductRef
		price string
	)
	err := r.DB.QueryRow(ctx, `
		SELECT id, price::text, is_active, updated_at FROM product_refs WHERE id = $1
	`, id).Scan(&ref.ID, &price, &ref.IsActive, &ref.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ProductRef{}, ErrNotFound
	}
	if err != nil {
		return ProductRef{}, fmt.Errorf("get product ref %s: %w", id, err)
	}
	if ref.Price, err = decimal.NewFromString(price); err != nil {
		return ProductRef{}, fmt.Errorf("product ref %s price %q: %w", id, price, err)
	}
	return ref, nil
}
