// Package kafka implements broker.Broker on franz-go. Each Subscribe call owns
// a consumer-group client with manual commits: offsets are committed only after
// every record of a poll was handled, and a failing record is retried in place
// until it succeeds or the context ends.
package kafka

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
	"golang.org/x/sync/errgroup"

	"personsync/internal/platform/broker"
)

// Config holds connection settings.
type Config struct {
	Brokers       []string
	ConsumerGroup string
	ClientID      string
	Concurrency   int
	// RetryBackoff is the initial pause before retrying a failed record.
	RetryBackoff time.Duration
	// MaxRetryBackoff caps the exponential retry pause.
	MaxRetryBackoff time.Duration
}

// Broker is a franz-go backed broker.Broker.
type Broker struct {
	cfg      Config
	producer *kgo.Client
	logger   *slog.Logger
}

// Option configures a Broker.
type Option func(*Broker)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Broker) { b.logger = logger }
}

// New connects the producer client.
func New(cfg Config, opts ...Option) (*Broker, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka: no seed brokers configured")
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 200 * time.Millisecond
	}
	if cfg.MaxRetryBackoff <= 0 {
		cfg.MaxRetryBackoff = 10 * time.Second
	}

	b := &Broker{cfg: cfg, logger: slog.Default()}
	for _, opt := range opts {
		opt(b)
	}

	producer, err := kgo.NewClient(append(b.baseOpts(),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.ProducerLinger(5*time.Millisecond),
	)...)
	if err != nil {
		return nil, fmt.Errorf("kafka: create producer: %w", err)
	}
	b.producer = producer
	return b, nil
}

func (b *Broker) baseOpts() []kgo.Opt {
	opts := []kgo.Opt{kgo.SeedBrokers(b.cfg.Brokers...)}
	if b.cfg.ClientID != "" {
		opts = append(opts, kgo.ClientID(b.cfg.ClientID))
	}
	return opts
}

// Publish produces msg synchronously. The message key (the person id) keeps
// facts about one person on one partition.
func (b *Broker) Publish(ctx context.Context, msg *broker.Message) error {
	if err := b.producer.ProduceSync(ctx, toRecord(msg)).FirstErr(); err != nil {
		return fmt.Errorf("kafka: produce to %s: %w", msg.Topic, err)
	}
	return nil
}

// Subscribe joins the consumer group for topics and blocks until ctx ends.
func (b *Broker) Subscribe(ctx context.Context, topics []string, h broker.Handler) error {
	if b.cfg.ConsumerGroup == "" {
		return errors.New("kafka: consumer group is required to subscribe")
	}
	cl, err := kgo.NewClient(append(b.baseOpts(),
		kgo.ConsumerGroup(b.cfg.ConsumerGroup),
		kgo.ConsumeTopics(topics...),
		kgo.DisableAutoCommit(),
		kgo.BlockRebalanceOnPoll(),
	)...)
	if err != nil {
		return fmt.Errorf("kafka: create consumer: %w", err)
	}
	defer cl.Close()

	b.logger.Info("kafka consumer started", "topics", topics, "group", b.cfg.ConsumerGroup)

	for {
		fetches := cl.PollFetches(ctx)
		if err := ctx.Err(); err != nil {
			cl.AllowRebalance()
			return err
		}
		if fetches.IsClientClosed() {
			return broker.ErrClosed
		}
		fetches.EachError(func(topic string, partition int32, err error) {
			b.logger.Warn("kafka fetch error", "topic", topic, "partition", partition, "error", err)
		})

		records := fetches.Records()
		if len(records) > 0 {
			if err := b.handleBatch(ctx, records, h); err != nil {
				cl.AllowRebalance()
				return err
			}
			if err := cl.CommitRecords(ctx, records...); err != nil {
				b.logger.Warn("kafka commit failed, records may be redelivered", "error", err)
			}
		}
		cl.AllowRebalance()
	}
}

func (b *Broker) handleBatch(ctx context.Context, records []*kgo.Record, h broker.Handler) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.cfg.Concurrency)
	for _, rec := range records {
		g.Go(func() error {
			return b.handleWithRetry(gctx, fromRecord(rec), h)
		})
	}
	return g.Wait()
}

// handleWithRetry only returns when the handler acknowledged msg or ctx ended.
func (b *Broker) handleWithRetry(ctx context.Context, msg *broker.Message, h broker.Handler) error {
	backoff := b.cfg.RetryBackoff
	for attempt := 1; ; attempt++ {
		msg.Attempt = attempt
		err := h.Handle(ctx, msg)
		if err == nil {
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		b.logger.Warn("fact handling failed, retrying",
			"topic", msg.Topic,
			"key", string(msg.Key),
			"attempt", attempt,
			"error", err,
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, b.cfg.MaxRetryBackoff)
	}
}

// EnsureTopics creates topics that do not exist yet.
func (b *Broker) EnsureTopics(ctx context.Context, partitions int32, replicationFactor int16, topics ...string) error {
	adm := kadm.NewClient(b.producer)
	resp, err := adm.CreateTopics(ctx, partitions, replicationFactor, nil, topics...)
	if err != nil {
		return fmt.Errorf("kafka: create topics: %w", err)
	}
	for _, r := range resp.Sorted() {
		if r.Err != nil && !errors.Is(r.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("kafka: create topic %s: %w", r.Topic, r.Err)
		}
	}
	return nil
}

// Close flushes pending produces and closes the producer client.
func (b *Broker) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := b.producer.Flush(ctx)
	b.producer.Close()
	return err
}

func toRecord(msg *broker.Message) *kgo.Record {
	rec := &kgo.Record{Topic: msg.Topic, Key: msg.Key, Value: msg.Value}
	for k, v := range msg.Headers {
		rec.Headers = append(rec.Headers, kgo.RecordHeader{Key: k, Value: []byte(v)})
	}
	return rec
}

func fromRecord(rec *kgo.Record) *broker.Message {
	msg := &broker.Message{Topic: rec.Topic, Key: rec.Key, Value: rec.Value, Attempt: 1}
	if len(rec.Headers) > 0 {
		msg.Headers = make(map[string]string, len(rec.Headers))
		for _, h := range rec.Headers {
			msg.Headers[h.Key] = string(h.Value)
		}
	}
	return msg
}
