// Package rabbitmq implements broker.Broker on a durable topic exchange. Every
// subscribed topic gets a durable queue named after the consumer group, so
// facts published while a service is down wait for it.
package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"golang.org/x/sync/errgroup"

	"personsync/internal/platform/broker"
)

const (
	DefaultExchange = "personsync.facts"
	headerKey       = "message_key"
)

// Config holds connection settings.
type Config struct {
	URL           string
	Exchange      string
	ConsumerGroup string
	Concurrency   int
	// DialAttempts bounds connection retries at startup.
	DialAttempts int
	DialBackoff  time.Duration
}

// Broker publishes with publisher confirms and consumes with manual acks.
type Broker struct {
	cfg    Config
	conn   *amqp.Connection
	logger *slog.Logger

	pubMu sync.Mutex
	pubCh *amqp.Channel
}

// Option configures a Broker.
type Option func(*Broker)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Broker) { b.logger = logger }
}

// Dial connects with retries, declares the exchange and opens a confirming
// publish channel.
func Dial(ctx context.Context, cfg Config, opts ...Option) (*Broker, error) {
	if cfg.Exchange == "" {
		cfg.Exchange = DefaultExchange
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.DialAttempts < 1 {
		cfg.DialAttempts = 30
	}
	if cfg.DialBackoff <= 0 {
		cfg.DialBackoff = 2 * time.Second
	}
	b := &Broker{cfg: cfg, logger: slog.Default()}
	for _, opt := range opts {
		opt(b)
	}

	conn, err := b.dial(ctx)
	if err != nil {
		return nil, err
	}
	b.conn = conn

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq: open channel: %w", err)
	}
	if err := declareExchange(ch, cfg.Exchange); err != nil {
		_ = conn.Close()
		return nil, err
	}
	if err := ch.Confirm(false); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq: enable confirms: %w", err)
	}
	b.pubCh = ch
	return b, nil
}

func (b *Broker) dial(ctx context.Context) (*amqp.Connection, error) {
	var lastErr error
	for attempt := 1; attempt <= b.cfg.DialAttempts; attempt++ {
		conn, err := amqp.Dial(b.cfg.URL)
		if err == nil {
			b.logger.Info("connected to rabbitmq", "attempt", attempt)
			return conn, nil
		}
		lastErr = err
		b.logger.Warn("rabbitmq connection failed, retrying", "attempt", attempt, "error", err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(b.cfg.DialBackoff):
		}
	}
	return nil, fmt.Errorf("rabbitmq: could not connect after %d attempts: %w", b.cfg.DialAttempts, lastErr)
}

func declareExchange(ch *amqp.Channel, name string) error {
	err := ch.ExchangeDeclare(
		name,
		"topic",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("rabbitmq: declare exchange %s: %w", name, err)
	}
	return nil
}

// Publish routes msg by topic and waits for the broker confirm.
func (b *Broker) Publish(ctx context.Context, msg *broker.Message) error {
	b.pubMu.Lock()
	dc, err := b.pubCh.PublishWithDeferredConfirmWithContext(ctx,
		b.cfg.Exchange,
		msg.Topic,
		false, // mandatory
		false, // immediate
		toPublishing(msg),
	)
	b.pubMu.Unlock()
	if err != nil {
		return fmt.Errorf("rabbitmq: publish to %s: %w", msg.Topic, err)
	}
	acked, err := dc.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("rabbitmq: await confirm for %s: %w", msg.Topic, err)
	}
	if !acked {
		return fmt.Errorf("rabbitmq: broker nacked message on %s", msg.Topic)
	}
	return nil
}

// QueueName is the durable queue a consumer group reads topic from.
func QueueName(group, topic string) string {
	return group + "." + topic
}

// Subscribe declares and binds one durable queue per topic and consumes them
// until ctx ends.
func (b *Broker) Subscribe(ctx context.Context, topics []string, h broker.Handler) error {
	if b.cfg.ConsumerGroup == "" {
		return errors.New("rabbitmq: consumer group is required to subscribe")
	}
	ch, err := b.conn.Channel()
	if err != nil {
		return fmt.Errorf("rabbitmq: open consumer channel: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(b.cfg.Concurrency*len(topics), 0, false); err != nil {
		return fmt.Errorf("rabbitmq: set prefetch: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, topic := range topics {
		deliveries, err := b.consume(ch, topic)
		if err != nil {
			return err
		}
		g.Go(func() error {
			return b.drain(gctx, topic, deliveries, h)
		})
	}
	b.logger.Info("rabbitmq consumer started", "topics", topics, "group", b.cfg.ConsumerGroup)
	return g.Wait()
}

func (b *Broker) consume(ch *amqp.Channel, topic string) (<-chan amqp.Delivery, error) {
	queue := QueueName(b.cfg.ConsumerGroup, topic)
	if _, err := ch.QueueDeclare(
		queue,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		nil,
	); err != nil {
		return nil, fmt.Errorf("rabbitmq: declare queue %s: %w", queue, err)
	}
	if err := ch.QueueBind(queue, topic, b.cfg.Exchange, false, nil); err != nil {
		return nil, fmt.Errorf("rabbitmq: bind queue %s: %w", queue, err)
	}
	deliveries, err := ch.Consume(
		queue,
		"",    // server-generated consumer tag
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq: consume %s: %w", queue, err)
	}
	return deliveries, nil
}

func (b *Broker) drain(ctx context.Context, topic string, deliveries <-chan amqp.Delivery, h broker.Handler) error {
	var g errgroup.Group
	g.SetLimit(b.cfg.Concurrency)
	defer func() { _ = g.Wait() }()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("rabbitmq: delivery channel for %s closed: %w", topic, broker.ErrClosed)
			}
			g.Go(func() error {
				b.handleDelivery(ctx, d, h)
				return nil
			})
		}
	}
}

// handleDelivery acks on success and nacks with requeue otherwise.
func (b *Broker) handleDelivery(ctx context.Context, d amqp.Delivery, h broker.Handler) {
	msg := fromDelivery(d)
	if err := h.Handle(ctx, msg); err != nil {
		b.logger.Warn("fact handling failed, requeueing",
			"topic", msg.Topic,
			"key", string(msg.Key),
			"redelivered", d.Redelivered,
			"error", err,
		)
		if nackErr := d.Nack(false, true); nackErr != nil {
			b.logger.Error("rabbitmq nack failed", "topic", msg.Topic, "error", nackErr)
		}
		return
	}
	if err := d.Ack(false); err != nil {
		b.logger.Error("rabbitmq ack failed", "topic", msg.Topic, "error", err)
	}
}

// Close closes the publish channel and the connection.
func (b *Broker) Close() error {
	if b.pubCh != nil {
		_ = b.pubCh.Close()
	}
	if b.conn != nil {
		return b.conn.Close()
	}
	return nil
}

func toPublishing(msg *broker.Message) amqp.Publishing {
	headers := amqp.Table{headerKey: string(msg.Key)}
	for k, v := range msg.Headers {
		headers[k] = v
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Headers:      headers,
		Body:         msg.Value,
	}
}

func fromDelivery(d amqp.Delivery) *broker.Message {
	msg := &broker.Message{Topic: d.RoutingKey, Value: d.Body, Attempt: 1}
	if d.Redelivered {
		msg.Attempt = 2
	}
	for k, v := range d.Headers {
		s, ok := v.(string)
		if !ok {
			continue
		}
		if k == headerKey {
			msg.Key = []byte(s)
			continue
		}
		if msg.Headers == nil {
			msg.Headers = make(map[string]string, len(d.Headers))
		}
		msg.Headers[k] = s
	}
	return msg
}
