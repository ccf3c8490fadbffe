package orders

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ariefcatur/go-catalog-sync/internal/events"
	"github.com/ariefcatur/go-catalog-sync/internal/obs"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// memStore mirrors the RefRepo upsert rules in memory.
type memStore struct {
	mu   sync.Mutex
	refs map[string]ProductRef
}

func newMemStore() *memStore { return &memStore{refs: map[string]ProductRef{}} }

func (s *memStore) Upsert(_ context.Context, r events.RefProduct) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.refs[r.ID]
	active := true
	if ok {
		active = cur.IsActive
	}
	if r.IsActive != nil {
		active = *r.IsActive
	}
	s.refs[r.ID] = ProductRef{ID: r.ID, Price: r.Price, IsActive: active, UpdatedAt: time.Now()}
	return nil
}

func (s *memStore) Deactivate(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.refs[id]
	if !ok {
		cur = ProductRef{ID: id, Price: decimal.Zero}
	}
	cur.IsActive = false
	cur.UpdatedAt = time.Now()
	s.refs[id] = cur
	return nil
}

func (s *memStore) Get(_ context.Context, id string) (ProductRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.refs[id]
	if !ok {
		return ProductRef{}, ErrNotFound
	}
	return r, nil
}

func message(body string) kafka.Message {
	return kafka.Message{Topic: events.QueueOrderRefSync, Value: []byte(body)}
}

func TestProjectorUpsertIsIdempotent(t *testing.T) {
	store := newMemStore()
	p := &Projector{Store: store, Log: obs.Discard()}
	body := `{"type":"PRODUCT_CREATED","data":{"id":"p1","price":999.99,"isActive":true}}`

	for i := 0; i < 3; i++ {
		require.NoError(t, p.Handle(context.Background(), message(body)))
	}

	require.Len(t, store.refs, 1)
	ref, err := store.Get(context.Background(), "p1")
	require.NoError(t, err)
	assert.True(t, ref.Price.Equal(decimal.RequireFromString("999.99")))
	assert.True(t, ref.IsActive)
}

func TestProjectorReplayProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		price := rapid.Int64Range(0, 1_000_000).Draw(t, "cents")
		active := rapid.Bool().Draw(t, "active")
		replays := rapid.IntRange(1, 8).Draw(t, "replays")
		ev := events.OrderRefSyncEvent{
			Type: events.ProductUpdated,
			Ref:  &events.RefProduct{ID: "p1", Price: decimal.New(price, -2), IsActive: &active},
		}

		once, many := newMemStore(), newMemStore()
		pOnce := &Projector{Store: once, Log: obs.Discard()}
		pMany := &Projector{Store: many, Log: obs.Discard()}
		if err := pOnce.Apply(context.Background(), ev); err != nil {
			t.Fatal(err)
		}
		for i := 0; i < replays; i++ {
			if err := pMany.Apply(context.Background(), ev); err != nil {
				t.Fatal(err)
			}
		}
		a, b := once.refs["p1"], many.refs["p1"]
		if !a.Price.Equal(b.Price) || a.IsActive != b.IsActive {
			t.Fatalf("replay diverged: once=%+v many=%+v", a, b)
		}
	})
}

func TestProjectorSoftDelete(t *testing.T) {
	store := newMemStore()
	p := &Projector{Store: store, Log: obs.Discard()}
	ctx := context.Background()

	require.NoError(t, p.Handle(ctx, message(`{"type":"PRODUCT_CREATED","data":{"id":"p1","price":50,"isActive":true}}`)))
	require.NoError(t, p.Handle(ctx, message(`{"type":"PRODUCT_DELETED","data":{"id":"p1","isActive":false}}`)))

	ref, err := store.Get(ctx, "p1")
	require.NoError(t, err)
	assert.False(t, ref.IsActive)
	assert.True(t, ref.Price.Equal(decimal.NewFromInt(50)), "price survives soft delete")

	// a later update flips the record back to active
	require.NoError(t, p.Handle(ctx, message(`{"type":"PRODUCT_UPDATED","data":{"id":"p1","price":55,"isActive":true}}`)))
	ref, _ = store.Get(ctx, "p1")
	assert.True(t, ref.IsActive)
}

func TestProjectorDeleteUnseenCreatesPlaceholder(t *testing.T) {
	store := newMemStore()
	p := &Projector{Store: store, Log: obs.Discard()}

	require.NoError(t, p.Handle(context.Background(), message(`{"type":"PRODUCT_DELETED","data":{"id":"ghost"}}`)))

	ref, err := store.Get(context.Background(), "ghost")
	require.NoError(t, err)
	assert.False(t, ref.IsActive)
	assert.True(t, ref.Price.IsZero())
}

func TestProjectorMissingFlagKeepsStoredValue(t *testing.T) {
	store := newMemStore()
	p := &Projector{Store: store, Log: obs.Discard()}
	ctx := context.Background()

	require.NoError(t, p.Handle(ctx, message(`{"type":"PRODUCT_CREATED","data":{"id":"p1","price":10}}`)))
	ref, _ := store.Get(ctx, "p1")
	assert.True(t, ref.IsActive)

	require.NoError(t, p.Handle(ctx, message(`{"type":"PRODUCT_UPDATED","data":{"id":"p1","price":10,"isActive":false}}`)))
	require.NoError(t, p.Handle(ctx, message(`{"type":"PRODUCT_UPDATED","data":{"id":"p1","price":12}}`)))
	ref, _ = store.Get(ctx, "p1")
	assert.False(t, ref.IsActive)
	assert.True(t, ref.Price.Equal(decimal.NewFromInt(12)))
}

func TestProjectorIgnoresOtherKindsAndRejectsGarbage(t *testing.T) {
	store := newMemStore()
	p := &Projector{Store: store, Log: obs.Discard()}

	require.NoError(t, p.Handle(context.Background(), message(`{"type":"USER_CREATED","data":{"userId":"u1"}}`)))
	assert.Empty(t, store.refs)

	err := p.Handle(context.Background(), message(`not json`))
	assert.ErrorIs(t, err, events.ErrInvalidEvent)
}
