package search

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/ariefcatur/go-catalog-sync/internal/events"
	"github.com/ariefcatur/go-catalog-sync/internal/obs"
	"github.com/ariefcatur/go-catalog-sync/internal/redisx"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func setup(t *testing.T) (*miniredis.Miniredis, *Indexer, *Reader) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	ix := NewIndexer(rdb, obs.Discard())
	ix.now = func() time.Time { return t0 }
	return mr, ix, NewReader(rdb, 20)
}

func laptop() events.SearchProduct {
	return events.SearchProduct{
		ID:          "p1",
		Name:        "Laptop",
		Description: "14 inch ultrabook",
		Price:       decimal.RequireFromString("999.99"),
		Stock:       10,
		Category:    "Electronics",
		Images:      []string{"laptop.jpg"},
		SellerID:    "s1",
		CreatedAt:   t0,
	}
}

func TestIndexProductWritesAllStructures(t *testing.T) {
	mr, ix, rd := setup(t)
	ctx := context.Background()
	require.NoError(t, ix.IndexProduct(ctx, laptop()))

	assert.Equal(t, "Laptop", mr.HGet("product:p1", "name"))
	assert.Equal(t, "999.99", mr.HGet("product:p1", "price"))
	assert.Equal(t, "true", mr.HGet("product:p1", "isActive"))
	assert.Equal(t, `["laptop.jpg"]`, mr.HGet("product:p1", "images"))

	score, err := mr.ZScore(redisx.KeyProductsAll, "p1")
	require.NoError(t, err)
	assert.Equal(t, float64(t0.UnixMilli()), score)

	ok, err := mr.SIsMember("products:category:electronics", "p1")
	require.NoError(t, err)
	assert.True(t, ok)

	members, err := mr.ZMembers(redisx.KeyAutocomplete)
	require.NoError(t, err)
	for _, prefix := range []string{"la", "lap", "lapt", "lapto", "laptop"} {
		assert.Contains(t, members, prefix+"\x00p1\x00laptop")
	}
	assert.Len(t, members, 5)

	for _, q := range []string{"la", "LAP", "laptop"} {
		got, err := rd.Suggest(ctx, q)
		require.NoError(t, err)
		assert.Equal(t, []string{"Laptop"}, got, q)
	}
	got, err := rd.Suggest(ctx, "l")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestIndexProductIsIdempotent(t *testing.T) {
	mr, ix, _ := setup(t)
	ctx := context.Background()
	require.NoError(t, ix.IndexProduct(ctx, laptop()))
	snapshot := dump(t, mr)

	require.NoError(t, ix.IndexProduct(ctx, laptop()))
	require.NoError(t, ix.IndexProduct(ctx, laptop()))
	assert.Equal(t, snapshot, dump(t, mr))
}

func TestIndexReplayProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		name := rapid.StringMatching(`[A-Za-zÇçŞşİı ]{1,12}`).Draw(rt, "name")
		category := rapid.SampledFrom([]string{"", "Books", "Electronics", "HOME"}).Draw(rt, "category")
		replays := rapid.IntRange(2, 5).Draw(rt, "replays")

		mr, ix, _ := setup(t)
		p := laptop()
		p.Name, p.Category = name, category
		if err := ix.IndexProduct(context.Background(), p); err != nil {
			rt.Fatal(err)
		}
		once := dump(t, mr)
		for i := 1; i < replays; i++ {
			if err := ix.IndexProduct(context.Background(), p); err != nil {
				rt.Fatal(err)
			}
		}
		if again := dump(t, mr); fmt.Sprint(again) != fmt.Sprint(once) {
			rt.Fatalf("replay changed the index:\n%v\n%v", once, again)
		}
	})
}

func TestCategoryChangeMovesMembership(t *testing.T) {
	mr, ix, rd := setup(t)
	ctx := context.Background()
	require.NoError(t, ix.IndexProduct(ctx, laptop()))

	p := laptop()
	p.Category = "Books"
	require.NoError(t, ix.IndexProduct(ctx, p))

	assert.False(t, mr.Exists("products:category:electronics"))
	ok, _ := mr.SIsMember("products:category:books", "p1")
	assert.True(t, ok)

	page, err := rd.List(ctx, Filter{Category: "electronics"})
	require.NoError(t, err)
	assert.Empty(t, page.Products)
	page, err = rd.List(ctx, Filter{Category: "BOOKS"})
	require.NoError(t, err)
	require.Len(t, page.Products, 1)
}

func TestRenameDropsStalePrefixes(t *testing.T) {
	mr, ix, rd := setup(t)
	ctx := context.Background()
	require.NoError(t, ix.IndexProduct(ctx, laptop()))

	p := laptop()
	p.Name = "Notebook"
	require.NoError(t, ix.IndexProduct(ctx, p))

	members, _ := mr.ZMembers(redisx.KeyAutocomplete)
	for _, m := range ladder("p1", "laptop") {
		assert.NotContains(t, members, m)
	}
	assert.Len(t, members, len("notebook")-1)

	got, _ := rd.Suggest(ctx, "lap")
	assert.Empty(t, got)
	got, _ = rd.Suggest(ctx, "note")
	assert.Equal(t, []string{"Notebook"}, got)
}

func TestUpdateKeepsCreatedAtWhenMissing(t *testing.T) {
	mr, ix, rd := setup(t)
	ctx := context.Background()
	require.NoError(t, ix.IndexProduct(ctx, laptop()))

	ix.now = func() time.Time { return t0.Add(time.Hour) }
	p := laptop()
	p.CreatedAt = time.Time{}
	p.Price = decimal.NewFromInt(899)
	require.NoError(t, ix.IndexProduct(ctx, p))

	score, _ := mr.ZScore(redisx.KeyProductsAll, "p1")
	assert.Equal(t, float64(t0.UnixMilli()), score)
	got, err := rd.Get(ctx, "p1")
	require.NoError(t, err)
	assert.True(t, got.CreatedAt.Equal(t0))
	assert.True(t, got.Price.Equal(decimal.NewFromInt(899)))
}

func TestRemoveProduct(t *testing.T) {
	mr, ix, rd := setup(t)
	ctx := context.Background()
	require.NoError(t, ix.IndexProduct(ctx, laptop()))
	require.NoError(t, ix.RemoveProduct(ctx, "p1"))

	assert.False(t, mr.Exists("product:p1"))
	assert.False(t, mr.Exists(redisx.KeyProductsAll))
	assert.False(t, mr.Exists("products:category:electronics"))
	assert.False(t, mr.Exists(redisx.KeyAutocomplete))

	got, err := rd.Suggest(ctx, "la")
	require.NoError(t, err)
	assert.Empty(t, got)
	_, err = rd.Get(ctx, "p1")
	assert.ErrorIs(t, err, ErrNotFound)

	// removing again, or removing something never indexed, changes nothing
	require.NoError(t, ix.RemoveProduct(ctx, "p1"))
	require.NoError(t, ix.RemoveProduct(ctx, "ghost"))
	assert.Empty(t, mr.Keys())
}

func TestHandleDispatches(t *testing.T) {
	mr, ix, _ := setup(t)
	ctx := context.Background()
	body, _ := json.Marshal(events.Outgoing{Type: events.ProductCreated, Data: laptop()})

	require.NoError(t, ix.Handle(ctx, kafka.Message{Value: body}))
	assert.True(t, mr.Exists("product:p1"))

	require.NoError(t, ix.Handle(ctx, kafka.Message{Value: []byte(`{"type":"ORDER_CREATED","data":{}}`)}))

	require.NoError(t, ix.Handle(ctx, kafka.Message{Value: []byte(`{"type":"PRODUCT_DELETED","data":{"id":"p1"}}`)}))
	assert.False(t, mr.Exists("product:p1"))

	err := ix.Handle(ctx, kafka.Message{Value: []byte(`{"type":"PRODUCT_UPDATED","data":{"name":"no id"}}`)})
	assert.ErrorIs(t, err, events.ErrInvalidEvent)
}

func TestListPagination(t *testing.T) {
	_, ix, rd := setup(t)
	ctx := context.Background()
	for i := 0; i < 15; i++ {
		p := laptop()
		p.ID = fmt.Sprintf("p%02d", i)
		p.Name = fmt.Sprintf("Item %d", i)
		p.CreatedAt = t0.Add(time.Duration(i%5) * time.Minute) // ties on purpose
		require.NoError(t, ix.IndexProduct(ctx, p))
	}

	first, err := rd.List(ctx, Filter{Page: 1, Limit: 10})
	require.NoError(t, err)
	second, err := rd.List(ctx, Filter{Page: 2, Limit: 10})
	require.NoError(t, err)

	assert.Len(t, first.Products, 10)
	assert.Len(t, second.Products, 5)
	assert.Equal(t, Pagination{Page: 2, Limit: 10, Total: 15, Pages: 2}, second.Pagination)

	seen := map[string]bool{}
	all := append(append([]Product{}, first.Products...), second.Products...)
	for i, p := range all {
		assert.False(t, seen[p.ID], "duplicate %s", p.ID)
		seen[p.ID] = true
		if i > 0 {
			assert.False(t, p.CreatedAt.After(all[i-1].CreatedAt), "not newest first")
		}
	}

	empty, err := rd.List(ctx, Filter{Page: 3, Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, empty.Products)
	assert.Equal(t, 15, empty.Pagination.Total)
}

func TestListHugePageIsEmpty(t *testing.T) {
	_, ix, rd := setup(t)
	ctx := context.Background()
	require.NoError(t, ix.IndexProduct(ctx, laptop()))

	page, err := rd.List(ctx, Filter{Page: math.MaxInt64, Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, page.Products)
	assert.Equal(t, Pagination{Page: math.MaxInt64, Limit: 10, Total: 1, Pages: 1}, page.Pagination)
}

func TestListDefaultsAndLimitCap(t *testing.T) {
	_, _, rd := setup(t)
	page, err := rd.List(context.Background(), Filter{Limit: 500})
	require.NoError(t, err)
	assert.Equal(t, Pagination{Page: 1, Limit: MaxLimit}, page.Pagination)
	assert.NotNil(t, page.Products)

	page, _ = rd.List(context.Background(), Filter{})
	assert.Equal(t, DefaultLimit, page.Pagination.Limit)
}

func TestListFilters(t *testing.T) {
	_, ix, rd := setup(t)
	ctx := context.Background()
	inactive := false
	fixtures := []events.SearchProduct{
		{ID: "a", Name: "Laptop", Description: "fast", Price: decimal.NewFromInt(1000), Category: "Electronics", CreatedAt: t0},
		{ID: "b", Name: "Smartphone", Description: "with LAPTOP sync", Price: decimal.NewFromInt(500), Category: "Electronics", CreatedAt: t0.Add(time.Minute)},
		{ID: "c", Name: "Headphones", Description: "wireless", Price: decimal.NewFromInt(100), Category: "Audio", CreatedAt: t0.Add(2 * time.Minute)},
		{ID: "d", Name: "Old laptop", Price: decimal.NewFromInt(50), Category: "Electronics", IsActive: &inactive, CreatedAt: t0.Add(3 * time.Minute)},
	}
	for _, p := range fixtures {
		require.NoError(t, ix.IndexProduct(ctx, p))
	}
	ids := func(f Filter) []string {
		page, err := rd.List(ctx, f)
		require.NoError(t, err)
		var out []string
		for _, p := range page.Products {
			out = append(out, p.ID)
		}
		return out
	}
	lo, hi := decimal.NewFromInt(100), decimal.NewFromInt(500)

	assert.Equal(t, []string{"c", "b", "a"}, ids(Filter{}))
	assert.Equal(t, []string{"b", "a"}, ids(Filter{Q: "laptop"}))
	assert.Equal(t, []string{"b", "a"}, ids(Filter{Category: "electronics"}))
	assert.Equal(t, []string{"c", "b"}, ids(Filter{MinPrice: &lo, MaxPrice: &hi}))
	assert.Equal(t, []string{"c"}, ids(Filter{Q: "WIRE", Category: "Audio"}))
}

func TestSuggestDistinctAndCapped(t *testing.T) {
	_, ix, rd := setup(t)
	ctx := context.Background()
	names := []string{"Lamp", "Lamp", "Lantern", "Laser", "Latch", "Lathe", "Lava lamp"}
	for i, n := range names {
		p := laptop()
		p.ID = fmt.Sprintf("s%d", i)
		p.Name = n
		require.NoError(t, ix.IndexProduct(ctx, p))
	}

	got, err := rd.Suggest(ctx, "la")
	require.NoError(t, err)
	assert.Len(t, got, MaxSuggestions)
	seen := map[string]bool{}
	for _, s := range got {
		assert.False(t, seen[s], "duplicate %q", s)
		seen[s] = true
	}

	got, err = rd.Suggest(ctx, "lam")
	require.NoError(t, err)
	assert.Equal(t, []string{"Lamp"}, got)
}

// dump captures the full keyspace for comparisons.
func dump(t *testing.T, mr *miniredis.Miniredis) map[string]string {
	t.Helper()
	out := map[string]string{}
	for _, k := range mr.Keys() {
		switch mr.Type(k) {
		case "hash":
			fields, _ := mr.HKeys(k)
			m := map[string]string{}
			for _, f := range fields {
				m[f] = mr.HGet(k, f)
			}
			out[k] = fmt.Sprint(m)
		case "zset":
			ms, _ := mr.ZMembers(k)
			out[k] = fmt.Sprint(ms)
		case "set":
			ms, _ := mr.Members(k)
			out[k] = fmt.Sprint(ms)
		}
	}
	return out
}
