package inventory

import (
	"context"
	"os"
	"testing"

	"github.com/ariefcatur/go-catalog-sync/internal/postgres"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()
	pool, err := postgres.Connect(ctx, dsn)
	if err != nil {
		t.Skipf("skipping: could not connect to postgres: %v", err)
	}
	require.NoError(t, postgres.Migrate(ctx, pool))
	t.Cleanup(pool.Close)
	return pool
}

func TestStockRepoLedger(t *testing.T) {
	repo := &StockRepo{DB: setupTestDB(t)}
	ctx := context.Background()
	pid, oid := uuid.NewString(), uuid.NewString()
	require.NoError(t, repo.Upsert(ctx, Product{ID: pid, Name: "Laptop", Stock: 10}))

	e := LedgerEntry{Key: oid + ":ORDER_CREATED:0", OrderID: oid, ProductID: pid, Delta: -3}
	out, err := repo.Apply(ctx, e)
	require.NoError(t, err)
	assert.Equal(t, Applied, out)

	out, err = repo.Apply(ctx, e)
	require.NoError(t, err)
	assert.Equal(t, Duplicate, out)

	p, err := repo.Get(ctx, pid)
	require.NoError(t, err)
	assert.Equal(t, int64(7), p.Stock)

	out, err = repo.Apply(ctx, LedgerEntry{Key: oid + ":ORDER_CREATED:1", OrderID: oid, ProductID: uuid.NewString(), Delta: -1})
	require.NoError(t, err)
	assert.Equal(t, NoProduct, out)
}

func TestStockRepoMarkAndHas(t *testing.T) {
	repo := &StockRepo{DB: setupTestDB(t)}
	ctx := context.Background()
	oid := uuid.NewString()
	key := oid + ":ORDER_CREATED:compensated"

	ok, err := repo.Has(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	out, err := repo.Mark(ctx, key, oid)
	require.NoError(t, err)
	assert.Equal(t, Applied, out)
	out, err = repo.Mark(ctx, key, oid)
	require.NoError(t, err)
	assert.Equal(t, Duplicate, out)

	ok, err = repo.Has(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestStockRepoAdjustClamps(t *testing.T) {
	repo := &StockRepo{DB: setupTestDB(t)}
	ctx := context.Background()
	pid := uuid.NewString()
	require.NoError(t, repo.Upsert(ctx, Product{ID: pid, Name: "Headphones", Stock: 2}))

	n, err := repo.Adjust(ctx, pid, -5)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	_, err = repo.Adjust(ctx, uuid.NewString(), 1)
	assert.ErrorIs(t, err, ErrProductNotFound)
}
