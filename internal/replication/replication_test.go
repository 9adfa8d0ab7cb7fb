package replication

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"personsync/internal/platform/broker"
	"personsync/internal/platform/outbox"
	id "personsync/pkg/domain"
	dErrors "personsync/pkg/domain-errors"
	"personsync/pkg/personfact"
	"personsync/pkg/platform/circuit"
)

var (
	occurred = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	anthony  = personfact.Attributes{FirstName: "Anthony", LastName: "Piccirilli", Title: "Mr."}
)

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

type failingBroker struct{ err error }

func (b failingBroker) Publish(context.Context, *broker.Message) error { return b.err }

func TestPublisher(t *testing.T) {
	ctx := context.Background()
	topics := personfact.DefaultTopics("")

	t.Run("routes each kind to its topic with origin headers", func(t *testing.T) {
		mem := broker.NewMemory()
		store := outbox.NewMemoryStore()
		p := NewPublisher("person", topics, store, WithBroker(mem), WithLogger(quiet()))
		personID := id.NewPersonID()

		require.NoError(t, p.Publish(ctx, personfact.Created(personID, anthony, occurred)))
		require.NoError(t, p.Publish(ctx, personfact.Updated(personID, anthony, occurred)))
		require.NoError(t, p.Publish(ctx, personfact.Deleted(personID, occurred)))

		for _, k := range personfact.Kinds {
			topic, _ := topics.For(k)
			assert.Equal(t, 1, mem.Pending(topic), "topic %s", topic)
			mem.DeliverPending(ctx, []string{topic}, broker.HandlerFunc(func(_ context.Context, msg *broker.Message) error {
				assert.Equal(t, "person", msg.Header(personfact.HeaderOrigin))
				assert.Equal(t, k.String(), msg.Header(personfact.HeaderKind))
				assert.Equal(t, personID.String(), string(msg.Key))
				return nil
			}))
		}

		pending, err := store.Count(ctx)
		require.NoError(t, err)
		assert.Zero(t, pending)
	})

	t.Run("rejects facts missing attributes before touching the outbox", func(t *testing.T) {
		store := outbox.NewMemoryStore()
		p := NewPublisher("person", topics, store, WithBroker(broker.NewMemory()))
		err := p.Publish(ctx, personfact.Fact{ID: id.NewPersonID(), Kind: personfact.KindCreated, OccurredAt: occurred})
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
		pending, _ := store.Count(ctx)
		assert.Zero(t, pending)
	})

	t.Run("broker failure is unavailable and leaves the entry for the relay", func(t *testing.T) {
		store := outbox.NewMemoryStore()
		p := NewPublisher("person", topics, store, WithBroker(failingBroker{errors.New("down")}), WithLogger(quiet()))

		entry, err := p.Enqueue(ctx, personfact.Created(id.NewPersonID(), anthony, occurred))
		require.NoError(t, err)
		published, err := p.Flush(ctx, entry)
		assert.False(t, published)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnavailable))

		got, ok := store.Get(entry.ID)
		require.True(t, ok)
		assert.Nil(t, got.ProcessedAt)
		assert.Equal(t, 1, got.RetryCount)
	})

	t.Run("open breaker defers without calling the broker", func(t *testing.T) {
		store := outbox.NewMemoryStore()
		breaker := circuit.New("publish", circuit.WithFailureThreshold(1))
		breaker.RecordFailure()
		mem := broker.NewMemory()
		p := NewPublisher("person", topics, store, WithBroker(mem), WithBreaker(breaker))

		entry, err := p.Enqueue(ctx, personfact.Deleted(id.NewPersonID(), occurred))
		require.NoError(t, err)
		published, err := p.Flush(ctx, entry)
		assert.False(t, published)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnavailable))
		assert.Zero(t, mem.Pending(topics.Deleted))
	})

	t.Run("without a broker entries stay in the outbox", func(t *testing.T) {
		store := outbox.NewMemoryStore()
		p := NewPublisher("person", topics, store)
		assert.False(t, p.Enabled())
		require.NoError(t, p.Publish(ctx, personfact.Deleted(id.NewPersonID(), occurred)))
		pending, _ := store.Count(ctx)
		assert.Equal(t, int64(1), pending)
	})
}

func TestFactHandler(t *testing.T) {
	ctx := context.Background()
	personID := id.NewPersonID()
	body, err := personfact.Encode(personfact.Created(personID, anthony, occurred))
	require.NoError(t, err)
	msg := &broker.Message{
		Topic:   "create-person",
		Value:   body,
		Headers: map[string]string{personfact.HeaderOrigin: "person"},
		Attempt: 1,
	}

	t.Run("applies decoded facts and acks", func(t *testing.T) {
		var got personfact.Fact
		h := NewFactHandler(personfact.KindCreated, func(_ context.Context, f personfact.Fact) (personfact.Outcome, error) {
			got = f
			return personfact.Applied, nil
		}, WithHandlerLogger(quiet()))
		require.NoError(t, h.Handle(ctx, msg))
		assert.Equal(t, personID, got.ID)
		assert.Equal(t, anthony, got.Attributes)
	})

	t.Run("acks malformed payloads without applying", func(t *testing.T) {
		called := false
		h := NewFactHandler(personfact.KindCreated, func(context.Context, personfact.Fact) (personfact.Outcome, error) {
			called = true
			return personfact.Applied, nil
		}, WithHandlerLogger(quiet()))
		require.NoError(t, h.Handle(ctx, &broker.Message{Topic: "create-person", Value: []byte("{")}))
		assert.False(t, called)
	})

	t.Run("acks facts rejected by validation", func(t *testing.T) {
		h := NewFactHandler(personfact.KindCreated, func(context.Context, personfact.Fact) (personfact.Outcome, error) {
			return 0, dErrors.NewField(dErrors.CodeValidation, "title", "must contain letters only")
		}, WithHandlerLogger(quiet()))
		assert.NoError(t, h.Handle(ctx, msg))
	})

	t.Run("returns transient errors for redelivery", func(t *testing.T) {
		boom := errors.New("replica store unavailable")
		h := NewFactHandler(personfact.KindCreated, func(context.Context, personfact.Fact) (personfact.Outcome, error) {
			return 0, boom
		}, WithHandlerLogger(quiet()))
		assert.ErrorIs(t, h.Handle(ctx, msg), boom)
	})

	t.Run("returns context errors for redelivery", func(t *testing.T) {
		h := NewFactHandler(personfact.KindCreated, func(ctx context.Context, _ personfact.Fact) (personfact.Outcome, error) {
			return 0, dErrors.Wrap(context.Canceled, dErrors.CodeValidation, "aborted")
		}, WithHandlerLogger(quiet()))
		assert.ErrorIs(t, h.Handle(ctx, msg), context.Canceled)
	})

	t.Run("skips facts echoed from its own service", func(t *testing.T) {
		called := false
		h := NewFactHandler(personfact.KindCreated, func(context.Context, personfact.Fact) (personfact.Outcome, error) {
			called = true
			return personfact.Applied, nil
		}, IgnoreOrigin("person"), WithHandlerLogger(quiet()))
		require.NoError(t, h.Handle(ctx, msg))
		assert.False(t, called)
	})
}

func TestNewRouter(t *testing.T) {
	topics := personfact.DefaultTopics("address.")
	var hit []string
	mk := func(name string) broker.Handler {
		return broker.HandlerFunc(func(context.Context, *broker.Message) error {
			hit = append(hit, name)
			return nil
		})
	}
	r := NewRouter(topics, Handlers{Created: mk("created"), Updated: mk("updated"), Deleted: mk("deleted")}, quiet())
	for _, topic := range topics.All() {
		require.NoError(t, r.Handle(context.Background(), &broker.Message{Topic: topic}))
	}
	assert.Equal(t, []string{"created", "updated", "deleted"}, hit)
}
