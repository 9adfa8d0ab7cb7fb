package outbox

import (
	"context"
	"log/slog"
	"time"

	"personsync/internal/platform/broker"
	"personsync/internal/platform/metrics"
	"personsync/pkg/platform/circuit"
)

// Notifier wakes the relay before its next poll.
type Notifier interface {
	Notifications() <-chan struct{}
}

// Relay republishes entries that were not marked processed after commit.
type Relay struct {
	store           Store
	publisher       broker.Publisher
	notifier        Notifier
	breaker         *circuit.Breaker
	metrics         *metrics.Metrics
	logger          *slog.Logger
	interval        time.Duration
	batchSize       int
	retention       time.Duration
	cleanupInterval time.Duration
}

// RelayOption configures a Relay.
type RelayOption func(*Relay)

func WithNotifier(n Notifier) RelayOption {
	return func(r *Relay) { r.notifier = n }
}

// WithBreaker shares the circuit breaker used by the direct publish path, so
// relay successes close it again.
func WithBreaker(b *circuit.Breaker) RelayOption {
	return func(r *Relay) { r.breaker = b }
}

func WithMetrics(m *metrics.Metrics) RelayOption {
	return func(r *Relay) { r.metrics = m }
}

func WithLogger(logger *slog.Logger) RelayOption {
	return func(r *Relay) { r.logger = logger }
}

func WithInterval(d time.Duration) RelayOption {
	return func(r *Relay) {
		if d > 0 {
			r.interval = d
		}
	}
}

func WithBatchSize(n int) RelayOption {
	return func(r *Relay) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

// WithRetention enables periodic cleanup of processed entries.
func WithRetention(retention, every time.Duration) RelayOption {
	return func(r *Relay) {
		r.retention = retention
		r.cleanupInterval = every
	}
}

func NewRelay(store Store, publisher broker.Publisher, opts ...RelayOption) *Relay {
	r := &Relay{
		store:     store,
		publisher: publisher,
		logger:    slog.Default(),
		interval:  2 * time.Second,
		batchSize: 100,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run polls until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	var cleanup <-chan time.Time
	if r.retention > 0 && r.cleanupInterval > 0 {
		t := time.NewTicker(r.cleanupInterval)
		defer t.Stop()
		cleanup = t.C
	}

	var wake <-chan struct{}
	if r.notifier != nil {
		wake = r.notifier.Notifications()
	}

	for {
		if _, err := r.RelayOnce(ctx); err != nil && ctx.Err() == nil {
			r.logger.Warn("outbox poll failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		case <-wake:
		case <-cleanup:
			if n, err := r.store.Cleanup(ctx, r.retention); err != nil {
				r.logger.Warn("outbox cleanup failed", "error", err)
			} else if n > 0 {
				r.logger.Info("outbox cleanup removed processed entries", "count", n)
			}
		}
	}
}

// RelayOnce publishes one batch and returns how many entries were published.
func (r *Relay) RelayOnce(ctx context.Context) (int, error) {
	entries, err := r.store.Poll(ctx, r.batchSize)
	if err != nil {
		return 0, err
	}
	r.metrics.SetBacklog(len(entries))

	published := 0
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return published, err
		}
		if err := r.publisher.Publish(ctx, e.Message()); err != nil {
			r.recordFailure()
			r.metrics.IncRelayed("failed")
			r.logger.Warn("outbox relay publish failed",
				"entry_id", e.ID,
				"topic", e.Topic,
				"retry_count", e.RetryCount+1,
				"error", err,
			)
			if markErr := r.store.MarkFailed(ctx, e.ID, err); markErr != nil {
				r.logger.Error("outbox mark failed", "entry_id", e.ID, "error", markErr)
			}
			continue
		}
		r.recordSuccess()
		r.metrics.IncRelayed("published")
		if err := r.store.MarkProcessed(ctx, e.ID); err != nil {
			// The message is out; a duplicate on the next poll is harmless.
			r.logger.Error("outbox mark processed failed", "entry_id", e.ID, "error", err)
			continue
		}
		published++
	}
	return published, nil
}

func (r *Relay) recordFailure() {
	if r.breaker == nil {
		return
	}
	if _, change := r.breaker.RecordFailure(); change.Opened {
		r.logger.Warn("publish circuit opened", "breaker", r.breaker.Name())
	}
}

func (r *Relay) recordSuccess() {
	if r.breaker == nil {
		return
	}
	if _, change := r.breaker.RecordSuccess(); change.Closed {
		r.logger.Info("publish circuit closed", "breaker", r.breaker.Name())
	}
}
