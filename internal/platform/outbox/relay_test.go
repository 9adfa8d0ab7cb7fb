package outbox

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"personsync/internal/platform/broker"
	"personsync/pkg/platform/circuit"
)

type flakyPublisher struct {
	mu   sync.Mutex
	fail bool
	sent []*broker.Message
}

func (p *flakyPublisher) Publish(_ context.Context, msg *broker.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return errors.New("broker unavailable")
	}
	p.sent = append(p.sent, msg)
	return nil
}

func (p *flakyPublisher) setFail(v bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fail = v
}

func (p *flakyPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.sent)
}

func newEntry(topic string) Entry {
	return Entry{
		ID:            uuid.New(),
		AggregateType: "person",
		AggregateID:   uuid.NewString(),
		EventType:     "created",
		Topic:         topic,
		Payload:       []byte(`{}`),
		Headers:       map[string]string{"origin": "person"},
	}
}

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestRelayOnce(t *testing.T) {
	ctx := context.Background()

	t.Run("publishes pending entries oldest first and marks them processed", func(t *testing.T) {
		store := NewMemoryStore()
		pub := &flakyPublisher{}
		first, second := newEntry("create-person"), newEntry("update-person")
		require.NoError(t, store.Add(ctx, first))
		require.NoError(t, store.Add(ctx, second))

		n, err := NewRelay(store, pub, WithLogger(quietLogger())).RelayOnce(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, n)
		require.Len(t, pub.sent, 2)
		assert.Equal(t, "create-person", pub.sent[0].Topic)
		assert.Equal(t, []byte(first.AggregateID), pub.sent[0].Key)
		assert.Equal(t, "person", pub.sent[0].Header("origin"))

		count, err := store.Count(ctx)
		require.NoError(t, err)
		assert.Zero(t, count)
	})

	t.Run("failed publishes stay pending with retry metadata", func(t *testing.T) {
		store := NewMemoryStore()
		pub := &flakyPublisher{fail: true}
		e := newEntry("delete-person")
		require.NoError(t, store.Add(ctx, e))

		relay := NewRelay(store, pub, WithLogger(quietLogger()))
		n, err := relay.RelayOnce(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)

		got, ok := store.Get(e.ID)
		require.True(t, ok)
		assert.Equal(t, 1, got.RetryCount)
		assert.Equal(t, "broker unavailable", got.LastError)
		assert.Nil(t, got.ProcessedAt)

		pub.setFail(false)
		n, err = relay.RelayOnce(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})

	t.Run("shares the breaker with the direct publish path", func(t *testing.T) {
		store := NewMemoryStore()
		pub := &flakyPublisher{fail: true}
		breaker := circuit.New("publish", circuit.WithFailureThreshold(1), circuit.WithSuccessThreshold(1))
		require.NoError(t, store.Add(ctx, newEntry("create-person")))

		relay := NewRelay(store, pub, WithBreaker(breaker), WithLogger(quietLogger()))
		_, _ = relay.RelayOnce(ctx)
		assert.True(t, breaker.IsOpen())

		pub.setFail(false)
		_, _ = relay.RelayOnce(ctx)
		assert.False(t, breaker.IsOpen())
	})
}

func TestRelayRunWakesOnNotification(t *testing.T) {
	store := NewMemoryStore()
	pub := &flakyPublisher{}
	relay := NewRelay(store, pub,
		WithNotifier(store),
		WithInterval(time.Hour),
		WithLogger(quietLogger()),
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- relay.Run(ctx) }()

	require.NoError(t, store.Add(ctx, newEntry("create-person")))
	require.Eventually(t, func() bool { return pub.count() == 1 }, time.Second, 5*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestMemoryStoreCleanup(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	old, pending := newEntry("a"), newEntry("b")
	require.NoError(t, store.Add(ctx, old))
	require.NoError(t, store.Add(ctx, pending))
	require.NoError(t, store.MarkProcessed(ctx, old.ID))

	now = now.Add(2 * time.Hour)
	removed, err := store.Cleanup(ctx, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	_, ok := store.Get(old.ID)
	assert.False(t, ok)
	entries, err := store.Poll(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, pending.ID, entries[0].ID)

	assert.Error(t, store.MarkProcessed(ctx, uuid.New()))
}
