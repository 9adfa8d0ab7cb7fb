package replication

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"personsync/internal/platform/broker"
	"personsync/internal/platform/metrics"
	dErrors "personsync/pkg/domain-errors"
	"personsync/pkg/personfact"
)

// ApplyFunc applies one decoded fact through a service's command handler.
type ApplyFunc func(ctx context.Context, fact personfact.Fact) (personfact.Outcome, error)

// FactHandler decodes facts of one kind and applies them. It decides what the
// broker does with the message:
//
//   - malformed or invalid facts can never succeed: logged, counted, acked;
//   - facts echoed back from this service are acked without applying;
//   - any other failure is returned so the broker redelivers.
type FactHandler struct {
	kind    personfact.Kind
	origin  string
	apply   ApplyFunc
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// HandlerOption configures a FactHandler.
type HandlerOption func(*FactHandler)

// IgnoreOrigin drops facts carrying this origin header.
func IgnoreOrigin(origin string) HandlerOption {
	return func(h *FactHandler) { h.origin = origin }
}

func WithHandlerMetrics(m *metrics.Metrics) HandlerOption {
	return func(h *FactHandler) { h.metrics = m }
}

func WithHandlerLogger(logger *slog.Logger) HandlerOption {
	return func(h *FactHandler) { h.logger = logger }
}

func NewFactHandler(kind personfact.Kind, apply ApplyFunc, opts ...HandlerOption) *FactHandler {
	h := &FactHandler{kind: kind, apply: apply, logger: slog.Default()}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *FactHandler) Handle(ctx context.Context, msg *broker.Message) error {
	start := time.Now()
	defer func() { h.metrics.ObserveConsume(msg.Topic, time.Since(start).Seconds()) }()

	ctx, span := tracer.Start(ctx, "replication.consume", trace.WithSpanKind(trace.SpanKindConsumer))
	defer span.End()
	span.SetAttributes(
		attribute.String("messaging.destination", msg.Topic),
		attribute.String("fact.kind", h.kind.String()),
		attribute.Int("messaging.attempt", msg.Attempt),
	)

	origin := msg.Header(personfact.HeaderOrigin)
	if h.origin != "" && origin == h.origin {
		h.metrics.IncConsumed(msg.Topic, "echo")
		h.logger.Debug("skipping fact published by this service", "topic", msg.Topic, "origin", origin)
		return nil
	}

	fact, err := personfact.Decode(h.kind, msg.Value)
	if err != nil {
		h.metrics.IncConsumed(msg.Topic, "malformed")
		span.SetStatus(codes.Error, "malformed fact")
		h.logger.Error("dropping malformed person fact",
			"topic", msg.Topic,
			"key", string(msg.Key),
			"event_id", msg.Header(personfact.HeaderEventID),
			"error", err,
		)
		return nil
	}
	span.SetAttributes(attribute.String("person.id", fact.ID.String()))

	outcome, err := h.apply(ctx, fact)
	if err != nil {
		if IsPermanent(err) {
			h.metrics.IncConsumed(msg.Topic, "rejected")
			span.SetStatus(codes.Error, "fact rejected")
			h.logger.Error("dropping person fact that fails validation",
				"topic", msg.Topic,
				"person_id", fact.ID.String(),
				"field", dErrors.FieldOf(err),
				"error", err,
			)
			return nil
		}
		h.metrics.IncConsumed(msg.Topic, "retry")
		span.RecordError(err)
		span.SetStatus(codes.Error, "apply failed")
		h.logger.Warn("person fact apply failed, leaving for redelivery",
			"topic", msg.Topic,
			"person_id", fact.ID.String(),
			"attempt", msg.Attempt,
			"error", err,
		)
		return err
	}

	h.metrics.IncConsumed(msg.Topic, outcome.String())
	h.logger.Debug("person fact applied",
		"topic", msg.Topic,
		"person_id", fact.ID.String(),
		"kind", h.kind.String(),
		"outcome", outcome.String(),
	)
	return nil
}

// IsPermanent reports whether a failed apply can never succeed on redelivery.
// Context errors are never permanent.
func IsPermanent(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return dErrors.HasCode(err, dErrors.CodeValidation) ||
		dErrors.HasCode(err, dErrors.CodeInvalidInput) ||
		dErrors.HasCode(err, dErrors.CodeBadRequest)
}
