package orders

import (
	"context"
	"log/slog"

	"github.com/ariefcatur/go-catalog-sync/internal/events"
	"github.com/segmentio/kafka-go"
)

// Projector keeps product_refs in step with the product lifecycle queue.
type Projector struct {
	Store RefStore
	Log   *slog.Logger
}

// Handle is the consumer handler for events.QueueOrderRefSync.
func (p *Projector) Handle(ctx context.Context, m kafka.Message) error {
	ev, err := events.DecodeOrderRefSync(m.Value)
	if err != nil {
		return err
	}
	return p.Apply(ctx, ev)
}

func (p *Projector) Apply(ctx context.Context, ev events.OrderRefSyncEvent) error {
	if ev.Ref == nil {
		p.Log.Debug("ignoring event", "type", ev.Type)
		return nil
	}
	switch ev.Type {
	case events.ProductCreated, events.ProductUpdated:
		if err := p.Store.Upsert(ctx, *ev.Ref); err != nil {
			return err
		}
		p.Log.Info("product ref synced", "type", ev.Type, "id", ev.Ref.ID, "price", ev.Ref.Price.String())
	case events.ProductDeleted:
		// soft delete: order history may still point at the product
		if err := p.Store.Deactivate(ctx, ev.Ref.ID); err != nil {
			return err
		}
		p.Log.Info("product ref deactivated", "id", ev.Ref.ID)
	}
	return nil
}
