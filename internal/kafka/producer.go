package kafka

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/ariefcatur/go-catalog-sync/internal/obs"
	"github.com/segmentio/kafka-go"
)

const writeTimeout = 10 * time.Second

// Producer publishes through an in-memory inbox drained by one goroutine, so
// Publish never blocks the caller's request path.
type Producer struct {
	client  *Client
	w       messageWriter
	log     *slog.Logger
	inbox   chan kafka.Message
	closeCh chan struct{}

	mu     sync.RWMutex
	closed bool
}

func NewProducer(c *Client, buf int) *Producer {
	if buf <= 0 {
		buf = 1
	}
	return &Producer{
		client:  c,
		w:       c.writer,
		log:     c.log.With("component", "producer"),
		inbox:   make(chan kafka.Message, buf),
		closeCh: make(chan struct{}),
	}
}

func (p *Producer) Start(ctx context.Context) {
	go func() {
		<-ctx.Done()
		p.Close()
	}()
	go func() {
		defer close(p.closeCh)
		for m := range p.inbox {
			p.write(m)
		}
	}()
}

// Publish enqueues v as JSON onto queue. While the broker is not connected
// the event is logged and dropped: publishing is at-most-once and callers
// get no delivery guarantee.
func (p *Producer) Publish(queue, key string, v any) {
	if !p.client.Connected() {
		p.drop(queue, key, "broker not connected")
		return
	}
	b, err := json.Marshal(v)
	if err != nil {
		obs.Published.WithLabelValues(queue, "failed").Inc()
		p.log.Error("encode event", "queue", queue, "key", key, "error", err)
		return
	}
	m := kafka.Message{Topic: queue, Key: []byte(key), Value: b, Time: time.Now()}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		p.drop(queue, key, "producer closed")
		return
	}
	select {
	case p.inbox <- m:
	default:
		p.drop(queue, key, "publish buffer full")
	}
}

func (p *Producer) write(m kafka.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := p.w.WriteMessages(ctx, m); err != nil {
		obs.Published.WithLabelValues(m.Topic, "failed").Inc()
		p.log.Error("publish failed", "queue", m.Topic, "key", string(m.Key), "error", err)
		return
	}
	obs.Published.WithLabelValues(m.Topic, "sent").Inc()
}

func (p *Producer) drop(queue, key, reason string) {
	obs.Published.WithLabelValues(queue, "dropped").Inc()
	p.log.Warn("event dropped", "queue", queue, "key", key, "reason", reason)
}

// Close stops intake; the goroutine flushes what is buffered and exits.
func (p *Producer) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.closed = true
		close(p.inbox)
	}
}

// WaitClosed blocks until the buffered messages are written.
func (p *Producer) WaitClosed() { <-p.closeCh }
