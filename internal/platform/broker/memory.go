package broker

import (
	"context"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Memory is an in-process broker with durable-queue semantics: messages wait
// until a subscriber acknowledges them, and a handler error puts the message
// back at the end of its topic queue. Subscribers of the same topic compete
// for messages.
type Memory struct {
	mu      sync.Mutex
	queues  map[string][]*Message
	wake    chan struct{}
	closed  bool
	backoff time.Duration
	limit   int
	logger  *slog.Logger
}

// MemoryOption configures a Memory broker.
type MemoryOption func(*Memory)

// WithRedeliveryBackoff sets the pause after a round with failed deliveries.
func WithRedeliveryBackoff(d time.Duration) MemoryOption {
	return func(m *Memory) { m.backoff = d }
}

// WithConcurrency bounds how many messages a subscription handles at once.
func WithConcurrency(n int) MemoryOption {
	return func(m *Memory) {
		if n > 0 {
			m.limit = n
		}
	}
}

// WithMemoryLogger sets the logger.
func WithMemoryLogger(logger *slog.Logger) MemoryOption {
	return func(m *Memory) { m.logger = logger }
}

func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		queues:  make(map[string][]*Message),
		wake:    make(chan struct{}),
		backoff: 100 * time.Millisecond,
		limit:   1,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Publish enqueues a copy of msg.
func (m *Memory) Publish(ctx context.Context, msg *Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.queues[msg.Topic] = append(m.queues[msg.Topic], cloneMessage(msg))
	m.signalLocked()
	return nil
}

// Subscribe delivers messages on topics to h until ctx is cancelled.
func (m *Memory) Subscribe(ctx context.Context, topics []string, h Handler) error {
	for {
		m.mu.Lock()
		wake := m.wake
		closed := m.closed
		m.mu.Unlock()
		if closed {
			return ErrClosed
		}

		delivered, failed := m.deliver(ctx, topics, h)
		if err := ctx.Err(); err != nil {
			return err
		}

		var wait <-chan time.Time
		switch {
		case failed > 0:
			wait = time.After(m.backoff)
			wake = nil
		case delivered > 0:
			continue
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-wake:
		case <-wait:
		}
	}
}

// DeliverPending runs one synchronous delivery round over everything currently
// queued on topics. Failed messages are requeued. It returns how many
// messages were acknowledged.
func (m *Memory) DeliverPending(ctx context.Context, topics []string, h Handler) int {
	acked, _ := m.deliver(ctx, topics, h)
	return acked
}

// Pending reports how many messages wait on topic.
func (m *Memory) Pending(topic string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queues[topic])
}

// Close stops subscriptions and rejects further publishes.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		m.signalLocked()
	}
	return nil
}

func (m *Memory) deliver(ctx context.Context, topics []string, h Handler) (acked, failed int) {
	batch := m.take(topics)
	if len(batch) == 0 {
		return 0, 0
	}

	var (
		mu     sync.Mutex
		retry  []*Message
		g      errgroup.Group
		okSeen int
	)
	g.SetLimit(m.limit)
	for _, msg := range batch {
		g.Go(func() error {
			if err := h.Handle(ctx, msg); err != nil {
				m.logger.Debug("memory broker redelivering message",
					"topic", msg.Topic,
					"attempt", msg.Attempt,
					"error", err,
				)
				mu.Lock()
				retry = append(retry, msg)
				mu.Unlock()
				return nil
			}
			mu.Lock()
			okSeen++
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	if len(retry) > 0 {
		m.requeue(retry)
	}
	return okSeen, len(retry)
}

func (m *Memory) take(topics []string) []*Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	var batch []*Message
	for _, topic := range topics {
		for _, msg := range m.queues[topic] {
			msg.Attempt++
			batch = append(batch, msg)
		}
		delete(m.queues, topic)
	}
	return batch
}

func (m *Memory) requeue(msgs []*Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, msg := range msgs {
		m.queues[msg.Topic] = append(m.queues[msg.Topic], msg)
	}
}

func (m *Memory) signalLocked() {
	close(m.wake)
	m.wake = make(chan struct{})
}

func cloneMessage(msg *Message) *Message {
	return &Message{
		Topic:   msg.Topic,
		Key:     slices.Clone(msg.Key),
		Value:   slices.Clone(msg.Value),
		Headers: maps.Clone(msg.Headers),
	}
}
