// Package replication connects person command handlers to the broker: it
// turns committed mutations into published facts and delivered facts back
// into commands.
package replication

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"personsync/internal/platform/broker"
	"personsync/internal/platform/metrics"
	"personsync/internal/platform/outbox"
	dErrors "personsync/pkg/domain-errors"
	"personsync/pkg/personfact"
	"personsync/pkg/platform/circuit"
)

const aggregatePerson = "person"

var tracer = otel.Tracer("personsync/internal/replication")

// Publisher routes facts to the kind-specific topics of one producing service.
// Facts are first written to the outbox inside the caller's transaction
// (Enqueue) and handed to the broker after commit (Flush). A nil broker
// disables publication; entries then stay in the outbox.
type Publisher struct {
	origin  string
	topics  personfact.Topics
	outbox  outbox.Store
	broker  broker.Publisher
	breaker *circuit.Breaker
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// Option configures a Publisher.
type Option func(*Publisher)

func WithBroker(b broker.Publisher) Option {
	return func(p *Publisher) { p.broker = b }
}

func WithBreaker(b *circuit.Breaker) Option {
	return func(p *Publisher) { p.breaker = b }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Publisher) { p.metrics = m }
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) { p.logger = logger }
}

// NewPublisher creates a publisher for facts produced by origin.
func NewPublisher(origin string, topics personfact.Topics, store outbox.Store, opts ...Option) *Publisher {
	p := &Publisher{
		origin: origin,
		topics: topics,
		outbox: store,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Enabled reports whether facts are handed to a broker.
func (p *Publisher) Enabled() bool { return p.broker != nil }

// Enqueue validates and encodes fact and adds it to the outbox. Call it with
// the transaction context of the mutation.
func (p *Publisher) Enqueue(ctx context.Context, fact personfact.Fact) (outbox.Entry, error) {
	entry, err := p.entryFor(fact)
	if err != nil {
		return outbox.Entry{}, err
	}
	if err := p.outbox.Add(ctx, entry); err != nil {
		return outbox.Entry{}, dErrors.Wrap(err, dErrors.CodeInternal, "enqueue person fact")
	}
	return entry, nil
}

// Flush publishes an enqueued entry after its transaction committed. It
// reports whether the broker accepted it. A broker failure is returned as
// CodeUnavailable and leaves the entry for the relay.
func (p *Publisher) Flush(ctx context.Context, entry outbox.Entry) (bool, error) {
	if p.broker == nil {
		return false, nil
	}
	ctx, span := tracer.Start(ctx, "replication.publish", trace.WithSpanKind(trace.SpanKindProducer))
	defer span.End()
	span.SetAttributes(
		attribute.String("messaging.destination", entry.Topic),
		attribute.String("person.id", entry.AggregateID),
	)

	if p.breaker != nil && p.breaker.IsOpen() {
		p.metrics.IncPublished(entry.Topic, "deferred")
		return false, dErrors.New(dErrors.CodeUnavailable, "broker circuit open, fact deferred to outbox relay")
	}

	if err := p.broker.Publish(ctx, entry.Message()); err != nil {
		span.RecordError(err)
		p.metrics.IncPublished(entry.Topic, "failed")
		if p.breaker != nil {
			if _, change := p.breaker.RecordFailure(); change.Opened {
				p.logger.Warn("publish circuit opened", "breaker", p.breaker.Name())
			}
		}
		if markErr := p.outbox.MarkFailed(ctx, entry.ID, err); markErr != nil {
			p.logger.Error("outbox mark failed", "entry_id", entry.ID, "error", markErr)
		}
		return false, dErrors.Wrap(err, dErrors.CodeUnavailable, "publish person fact")
	}

	p.metrics.IncPublished(entry.Topic, "ok")
	if p.breaker != nil {
		p.breaker.RecordSuccess()
	}
	if err := p.outbox.MarkProcessed(ctx, entry.ID); err != nil {
		p.logger.Error("outbox mark processed failed", "entry_id", entry.ID, "error", err)
	}
	return true, nil
}

// Publish enqueues and flushes fact outside any caller transaction.
func (p *Publisher) Publish(ctx context.Context, fact personfact.Fact) error {
	entry, err := p.Enqueue(ctx, fact)
	if err != nil {
		return err
	}
	_, err = p.Flush(ctx, entry)
	return err
}

func (p *Publisher) entryFor(fact personfact.Fact) (outbox.Entry, error) {
	topic, err := p.topics.For(fact.Kind)
	if err != nil {
		return outbox.Entry{}, dErrors.Wrap(err, dErrors.CodeInvariantViolation, "route person fact")
	}
	payload, err := personfact.Encode(fact)
	if err != nil {
		return outbox.Entry{}, err
	}
	eventID := uuid.New()
	return outbox.Entry{
		ID:            eventID,
		AggregateType: aggregatePerson,
		AggregateID:   fact.ID.String(),
		EventType:     fact.Kind.String(),
		Topic:         topic,
		Payload:       payload,
		Headers: map[string]string{
			personfact.HeaderEventID: eventID.String(),
			personfact.HeaderKind:    fact.Kind.String(),
			personfact.HeaderOrigin:  p.origin,
		},
		CreatedAt: time.Now().UTC(),
	}, nil
}
