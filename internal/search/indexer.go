package search

import (
	"context"
	"log/slog"
	"time"

	"github.com/ariefcatur/go-catalog-sync/internal/events"
	"github.com/ariefcatur/go-catalog-sync/internal/obs"
	"github.com/ariefcatur/go-catalog-sync/internal/redisx"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Indexer writes the four index structures for a product. Every mutation
// reads the prior record first and then applies all changes in one
// MULTI/EXEC, so readers never see a half-indexed product.
type Indexer struct {
	rdb    *redis.Client
	log    *slog.Logger
	tracer trace.Tracer
	now    func() time.Time
}

func NewIndexer(rdb *redis.Client, log *slog.Logger) *Indexer {
	return &Indexer{rdb: rdb, log: log, tracer: obs.Tracer("search"), now: time.Now}
}

// Handle is the consumer handler for events.QueueSearchIndex.
func (ix *Indexer) Handle(ctx context.Context, m kafka.Message) error {
	ev, err := events.DecodeSearchIndex(m.Value)
	if err != nil {
		return err
	}
	switch {
	case ev.Product != nil:
		return ix.IndexProduct(ctx, *ev.Product)
	case ev.Deleted != nil:
		return ix.RemoveProduct(ctx, ev.Deleted.ID)
	default:
		ix.log.Info("unknown event type", "type", ev.Type)
		return nil
	}
}

func (ix *Indexer) IndexProduct(ctx context.Context, in events.SearchProduct) (err error) {
	ctx, span := ix.tracer.Start(ctx, "search.index", trace.WithAttributes(attribute.String("product.id", in.ID)))
	defer func() { endSpan(span, err) }()

	prior, err := ix.rdb.HGetAll(ctx, productKey(in.ID)).Result()
	if err != nil {
		return err
	}
	old, hadPrior := fromHash(prior)

	p := Product{
		ID:          in.ID,
		Name:        in.Name,
		Description: in.Description,
		Price:       in.Price,
		Stock:       in.Stock,
		Category:    in.Category,
		IsActive:    in.Active(),
		Images:      in.Images,
		SellerID:    in.SellerID,
		CreatedAt:   in.CreatedAt,
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = ix.now()
		if hadPrior && !old.CreatedAt.IsZero() {
			p.CreatedAt = old.CreatedAt
		}
	}

	newCat, oldCat := fold(p.Category), fold(old.Category)
	newName, oldName := fold(p.Name), fold(old.Name)

	_, err = ix.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		key := productKey(p.ID)
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, toHash(p))
		pipe.ZAdd(ctx, redisx.KeyProductsAll, redis.Z{Score: float64(p.CreatedAt.UnixMilli()), Member: p.ID})

		if oldCat != "" && oldCat != newCat {
			pipe.SRem(ctx, categoryKey(oldCat), p.ID)
		}
		if newCat != "" {
			pipe.SAdd(ctx, categoryKey(newCat), p.ID)
		}

		if oldName != newName {
			if stale := ladder(p.ID, oldName); len(stale) > 0 {
				pipe.ZRem(ctx, redisx.KeyAutocomplete, toAny(stale)...)
			}
		}
		if rungs := ladder(p.ID, newName); len(rungs) > 0 {
			zs := make([]redis.Z, len(rungs))
			for i, r := range rungs {
				zs[i] = redis.Z{Score: 0, Member: r}
			}
			pipe.ZAdd(ctx, redisx.KeyAutocomplete, zs...)
		}
		return nil
	})
	if err != nil {
		return err
	}
	obs.IndexOps.WithLabelValues("index").Inc()
	ix.log.Info("product indexed", "id", p.ID, "name", p.Name)
	return nil
}

// RemoveProduct deletes every trace of a product. An id that is not indexed
// is a no-op.
func (ix *Indexer) RemoveProduct(ctx context.Context, id string) (err error) {
	ctx, span := ix.tracer.Start(ctx, "search.remove", trace.WithAttributes(attribute.String("product.id", id)))
	defer func() { endSpan(span, err) }()

	prior, err := ix.rdb.HGetAll(ctx, productKey(id)).Result()
	if err != nil {
		return err
	}
	old, ok := fromHash(prior)
	if !ok {
		ix.log.Debug("product not indexed, nothing to remove", "id", id)
		return nil
	}

	_, err = ix.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if stale := ladder(id, fold(old.Name)); len(stale) > 0 {
			pipe.ZRem(ctx, redisx.KeyAutocomplete, toAny(stale)...)
		}
		if cat := fold(old.Category); cat != "" {
			pipe.SRem(ctx, categoryKey(cat), id)
		}
		pipe.Del(ctx, productKey(id))
		pipe.ZRem(ctx, redisx.KeyProductsAll, id)
		return nil
	})
	if err != nil {
		return err
	}
	obs.IndexOps.WithLabelValues("remove").Inc()
	ix.log.Info("product removed from index", "id", id)
	return nil
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
