package inventory

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ariefcatur/go-catalog-sync/internal/events"
	"github.com/ariefcatur/go-catalog-sync/internal/obs"
	kafkago "github.com/segmentio/kafka-go"
)

// Service reconciles stock counters with order lifecycle events.
type Service struct {
	Ledger StockLedger
	Out    events.Publisher
	Log    *slog.Logger
}

// HandleOrderEvent: dipasang sebagai handler consumer untuk order_events.
func (s *Service) HandleOrderEvent(ctx context.Context, m kafkago.Message) error {
	ev, err := events.DecodeOrderLifecycle(m.Value)
	if err != nil {
		return err
	}
	return s.Reconcile(ctx, ev)
}

type itemResult int

const (
	itemLanded itemResult = iota
	itemSkipped
	itemFailed
)

// Reconcile applies one ledger entry per item. Items are independent: a
// failing item is logged and the rest still run. When anything failed, the
// order is marked compensated and the items that did land are reversed
// through a STOCK_COMPENSATION event. A compensated order is never applied
// again. Errors come only from reading or writing that marker.
func (s *Service) Reconcile(ctx context.Context, ev events.OrderLifecycleEvent) error {
	if ev.Order == nil {
		s.Log.Debug("ignoring event", "type", ev.Type)
		return nil
	}
	orderID := ev.Order.OrderID
	done, err := s.compensated(ctx, orderID, ev.Type)
	if err != nil {
		return err
	}
	if done {
		s.Log.Info("order already compensated, skipping", "order_id", orderID, "type", ev.Type)
		return nil
	}

	sign := int64(-1)
	if ev.Type == events.OrderCancelled {
		sign = 1
	}
	var (
		landed []events.CompensationEntry
		failed int
	)
	for i, it := range ev.Order.Items {
		e := LedgerEntry{
			Key:       itemKey(orderID, ev.Type, i),
			OrderID:   orderID,
			ProductID: it.ProductID,
			Delta:     sign * it.Quantity,
		}
		switch s.apply(ctx, e) {
		case itemLanded:
			landed = append(landed, events.CompensationEntry{Key: e.Key, ProductID: it.ProductID, Delta: -e.Delta})
		case itemFailed:
			failed++
		}
	}

	if failed == 0 {
		return nil
	}
	if len(landed) == 0 {
		s.Log.Warn("no item applied, nothing to compensate", "order_id", orderID, "type", ev.Type)
		return nil
	}
	if _, err := s.Ledger.Mark(ctx, compensatedKey(orderID, ev.Type), orderID); err != nil {
		return fmt.Errorf("mark %s compensated: %w", orderID, err)
	}
	s.Out.Publish(events.QueueStockCompensation, orderID, events.Outgoing{
		Type: events.StockCompensation,
		Data: events.StockCompensationPayload{OrderID: orderID, Origin: ev.Type, Entries: landed},
	})
	s.Log.Warn("stock compensation requested", "order_id", orderID, "type", ev.Type,
		"failed_items", failed, "compensated_items", len(landed))
	return nil
}

// compensated reports whether the event was already rolled back. A
// cancellation of a compensated creation has nothing left to restore.
func (s *Service) compensated(ctx context.Context, orderID string, kind events.Kind) (bool, error) {
	kinds := []events.Kind{kind}
	if kind == events.OrderCancelled {
		kinds = append(kinds, events.OrderCreated)
	}
	for _, k := range kinds {
		ok, err := s.Ledger.Has(ctx, compensatedKey(orderID, k))
		if err != nil {
			return false, fmt.Errorf("check %s compensated: %w", orderID, err)
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// apply classifies one entry: landed when its movement is in the counters,
// now or from an earlier delivery; skipped for a missing product.
func (s *Service) apply(ctx context.Context, e LedgerEntry) itemResult {
	out, err := s.Ledger.Apply(ctx, e)
	if err != nil {
		obs.StockAdjustments.WithLabelValues("failed").Inc()
		s.Log.Error("stock update failed", "order_id", e.OrderID, "product_id", e.ProductID, "delta", e.Delta, "error", err)
		return itemFailed
	}
	obs.StockAdjustments.WithLabelValues(string(out)).Inc()
	switch out {
	case NoProduct:
		s.Log.Warn("product not found, stock unchanged", "order_id", e.OrderID, "product_id", e.ProductID)
		return itemSkipped
	case Duplicate:
		s.Log.Info("stock entry already applied", "key", e.Key)
	default:
		s.Log.Info("stock updated", "order_id", e.OrderID, "product_id", e.ProductID, "delta", e.Delta)
	}
	return itemLanded
}

// HandleCompensation reverses entries published by Reconcile. Each reversal
// is keyed by the entry it undoes, so it lands at most once however many
// compensation events name it. Any failure is returned so the whole event
// is redelivered.
func (s *Service) HandleCompensation(ctx context.Context, m kafkago.Message) error {
	ev, err := events.DecodeCompensation(m.Value)
	if err != nil {
		return err
	}
	if ev.Compensation == nil {
		s.Log.Debug("ignoring event", "type", ev.Type)
		return nil
	}
	c := ev.Compensation
	for _, en := range c.Entries {
		e := LedgerEntry{
			Key:       en.Key + ":compensate",
			OrderID:   c.OrderID,
			ProductID: en.ProductID,
			Delta:     en.Delta,
		}
		out, err := s.Ledger.Apply(ctx, e)
		if err != nil {
			obs.StockAdjustments.WithLabelValues("failed").Inc()
			return fmt.Errorf("compensate %s: %w", e.Key, err)
		}
		obs.StockAdjustments.WithLabelValues(string(out)).Inc()
		s.Log.Info("stock compensated", "key", e.Key, "product_id", e.ProductID, "delta", e.Delta, "outcome", out)
	}
	return nil
}

func itemKey(orderID string, kind events.Kind, idx int) string {
	return fmt.Sprintf("%s:%s:%d", orderID, kind, idx)
}

func compensatedKey(orderID string, kind events.Kind) string {
	return fmt.Sprintf("%s:%s:compensated", orderID, kind)
}
