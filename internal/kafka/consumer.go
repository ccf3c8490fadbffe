package kafka

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ariefcatur/go-catalog-sync/internal/obs"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Handler harus return nil hanya jika proses sukses & boleh commit offset.
// A non-nil error (or a panic) leaves the message uncommitted and it is
// delivered again.
type Handler func(ctx context.Context, m kafka.Message) error

// consumer handles one message at a time; the next fetch waits until the
// current message is committed or dead-lettered.
type consumer struct {
	queue         string
	r             messageReader
	dlq           messageWriter
	h             Handler
	maxDeliveries int
	retryDelay    time.Duration
	timeout       time.Duration
	log           *slog.Logger
	tracer        trace.Tracer
}

func (c *consumer) run(ctx context.Context) error {
	defer c.r.Close()
	c.log.Info("consumer started", "max_deliveries", c.maxDeliveries)

	for {
		m, err := c.r.FetchMessage(ctx)
		if err != nil {
			// kecilkan noise saat shutdown
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("fetch %s: %w", c.queue, err)
		}
		if err := c.deliver(ctx, m); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
}

func (c *consumer) deliver(ctx context.Context, m kafka.Message) error {
	for attempt := 1; ; attempt++ {
		herr := c.invoke(ctx, m, attempt)
		if herr == nil {
			obs.Deliveries.WithLabelValues(c.queue, "acked").Inc()
			return c.commit(ctx, m)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.log.Error("handler failed", "offset", m.Offset, "attempt", attempt, "error", herr)

		if c.maxDeliveries > 0 && attempt >= c.maxDeliveries {
			if err := c.deadLetter(ctx, m, attempt, herr); err != nil {
				return err
			}
			obs.Deliveries.WithLabelValues(c.queue, "dead_lettered").Inc()
			return c.commit(ctx, m)
		}
		obs.Deliveries.WithLabelValues(c.queue, "retried").Inc()
		if err := sleep(ctx, c.retryDelay); err != nil {
			return err
		}
	}
}

func (c *consumer) invoke(ctx context.Context, m kafka.Message, attempt int) (err error) {
	ctx, span := c.tracer.Start(ctx, "broker.deliver", trace.WithAttributes(
		attribute.String("messaging.destination", c.queue),
		attribute.Int64("messaging.offset", m.Offset),
		attribute.Int("delivery.attempt", attempt),
	))
	defer span.End()

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()
	return c.h(ctx, m)
}

func (c *consumer) commit(ctx context.Context, m kafka.Message) error {
	if err := c.r.CommitMessages(ctx, m); err != nil {
		return fmt.Errorf("commit %s@%d: %w", c.queue, m.Offset, err)
	}
	return nil
}

func (c *consumer) deadLetter(ctx context.Context, m kafka.Message, attempts int, cause error) error {
	dl := deadLetterMessage(c.queue, m, attempts, cause)
	if err := c.dlq.WriteMessages(ctx, dl); err != nil {
		return fmt.Errorf("dead-letter %s@%d: %w", c.queue, m.Offset, err)
	}
	c.log.Warn("message dead-lettered", "offset", m.Offset, "attempts", attempts, "dlq", dl.Topic)
	return nil
}
