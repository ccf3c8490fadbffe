// Package kafka is the broker client: connection lifecycle, durable queue
// declaration, publishing and acknowledged consumption.
package kafka

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ariefcatur/go-catalog-sync/internal/config"
	"github.com/ariefcatur/go-catalog-sync/internal/obs"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/trace"
)

var ErrBrokerUnavailable = errors.New("broker unavailable")

type adminConn interface {
	CreateTopics(topics ...kafka.TopicConfig) error
	Close() error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Options struct {
	Brokers         []string
	ConnectAttempts int
	ConnectDelay    time.Duration
	RetryDelay      time.Duration
	MaxDeliveries   int
	HandlerTimeout  time.Duration
	Replication     int
}

func OptionsFrom(cfg config.Config) Options {
	return Options{
		Brokers:         cfg.KafkaBrokers,
		ConnectAttempts: cfg.Broker.ConnectAttempts,
		ConnectDelay:    cfg.Broker.ConnectDelay,
		RetryDelay:      cfg.Broker.RetryDelay,
		MaxDeliveries:   cfg.Broker.MaxDeliveries,
		HandlerTimeout:  cfg.Broker.HandlerTimeout,
		Replication:     cfg.Broker.Replication,
	}
}

// Client is the process-wide broker handle. It is built once in main and
// passed to every producer and consumer.
type Client struct {
	opts   Options
	log    *slog.Logger
	tracer trace.Tracer

	dial      func(ctx context.Context) (adminConn, error)
	newReader func(queue, group string) messageReader
	writer    messageWriter

	mu        sync.Mutex
	admin     adminConn
	declared  map[string]bool
	connected atomic.Bool
}

func NewClient(opts Options, log *slog.Logger) *Client {
	dialer := &kafka.Dialer{Timeout: 10 * time.Second, DualStack: true}
	w := &kafka.Writer{
		Addr:         kafka.TCP(opts.Brokers...),
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: 10 * time.Millisecond,
	}
	newReader := func(queue, group string) messageReader {
		return kafka.NewReader(kafka.ReaderConfig{
			Brokers:        opts.Brokers,
			GroupID:        group,
			Topic:          queue,
			MinBytes:       1,
			MaxBytes:       10e6,
			CommitInterval: 0, // manual commit
			StartOffset:    kafka.FirstOffset,
			Dialer:         dialer,
		})
	}
	return newClient(opts, log, dialController(dialer, opts.Brokers), newReader, w)
}

func newClient(opts Options, log *slog.Logger, dial func(context.Context) (adminConn, error), newReader func(string, string) messageReader, w messageWriter) *Client {
	if opts.ConnectAttempts <= 0 {
		opts.ConnectAttempts = 1
	}
	if opts.Replication <= 0 {
		opts.Replication = 1
	}
	return &Client{
		opts:      opts,
		log:       log,
		tracer:    obs.Tracer("kafka"),
		dial:      dial,
		newReader: newReader,
		writer:    w,
		declared:  map[string]bool{},
	}
}

// Connect dials the cluster controller, retrying a fixed number of times with
// a fixed delay. The returned error wraps ErrBrokerUnavailable and is meant
// to abort process startup.
func (c *Client) Connect(ctx context.Context) error {
	var lastErr error
	for i := 1; i <= c.opts.ConnectAttempts; i++ {
		conn, err := c.dial(ctx)
		if err == nil {
			c.mu.Lock()
			c.admin = conn
			c.mu.Unlock()
			c.connected.Store(true)
			c.log.Info("broker connected", "brokers", c.opts.Brokers, "attempt", i)
			return nil
		}
		lastErr = err
		c.log.Warn("broker connect attempt failed",
			"attempt", i, "attempts", c.opts.ConnectAttempts, "retry_in", c.opts.ConnectDelay, "error", err)
		if i == c.opts.ConnectAttempts {
			break
		}
		if err := sleep(ctx, c.opts.ConnectDelay); err != nil {
			return fmt.Errorf("%w: %v", ErrBrokerUnavailable, err)
		}
	}
	return fmt.Errorf("%w after %d attempts: %v", ErrBrokerUnavailable, c.opts.ConnectAttempts, lastErr)
}

func (c *Client) Connected() bool { return c.connected.Load() }

// EnsureQueue declares a durable queue: a single-partition topic so that the
// queue has one total delivery order.
func (c *Client) EnsureQueue(ctx context.Context, name string) error {
	if !c.Connected() {
		return ErrBrokerUnavailable
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.declared[name] {
		return nil
	}
	topic := kafka.TopicConfig{Topic: name, NumPartitions: 1, ReplicationFactor: c.opts.Replication}
	err := c.admin.CreateTopics(topic)
	if err != nil && !errors.Is(err, kafka.TopicAlreadyExists) {
		// the controller may have dropped an idle connection; redial once
		conn, derr := c.dial(ctx)
		if derr != nil {
			return fmt.Errorf("declare queue %s: %w", name, err)
		}
		_ = c.admin.Close()
		c.admin = conn
		err = c.admin.CreateTopics(topic)
		if err != nil && !errors.Is(err, kafka.TopicAlreadyExists) {
			return fmt.Errorf("declare queue %s: %w", name, err)
		}
	}
	c.declared[name] = true
	return nil
}

// Subscribe declares the queue (and its dead-letter queue when deliveries
// are bounded) and runs the consume loop until ctx is done.
func (c *Client) Subscribe(ctx context.Context, queue, group string, h Handler) error {
	if err := c.EnsureQueue(ctx, queue); err != nil {
		return err
	}
	if c.opts.MaxDeliveries > 0 {
		if err := c.EnsureQueue(ctx, DeadLetterQueue(queue)); err != nil {
			return err
		}
	}
	cons := &consumer{
		queue:         queue,
		r:             c.newReader(queue, group),
		dlq:           c.writer,
		h:             h,
		maxDeliveries: c.opts.MaxDeliveries,
		retryDelay:    c.opts.RetryDelay,
		timeout:       c.opts.HandlerTimeout,
		log:           c.log.With("queue", queue, "group", group),
		tracer:        c.tracer,
	}
	return cons.run(ctx)
}

// Close marks the client disconnected. Producers must be closed first so
// their buffered messages are flushed.
func (c *Client) Close() error {
	c.connected.Store(false)
	c.mu.Lock()
	defer c.mu.Unlock()
	var errs []error
	if c.admin != nil {
		errs = append(errs, c.admin.Close())
		c.admin = nil
	}
	if c.writer != nil {
		errs = append(errs, c.writer.Close())
	}
	return errors.Join(errs...)
}

// dialController finds the controller through any reachable bootstrap broker.
// Topic creation must go to the controller.
func dialController(d *kafka.Dialer, brokers []string) func(context.Context) (adminConn, error) {
	return func(ctx context.Context) (adminConn, error) {
		lastErr := errors.New("no brokers configured")
		for _, addr := range brokers {
			conn, err := d.DialContext(ctx, "tcp", addr)
			if err != nil {
				lastErr = err
				continue
			}
			ctrl, err := conn.Controller()
			_ = conn.Close()
			if err != nil {
				lastErr = err
				continue
			}
			cc, err := d.DialContext(ctx, "tcp", net.JoinHostPort(ctrl.Host, strconv.Itoa(ctrl.Port)))
			if err != nil {
				lastErr = err
				continue
			}
			return cc, nil
		}
		return nil, lastErr
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
