package consumer

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"personsync/internal/address/service"
	"personsync/internal/address/store/replica"
	"personsync/internal/platform/broker"
	"personsync/internal/platform/metrics"
	id "personsync/pkg/domain"
	"personsync/pkg/personfact"
	txcontext "personsync/pkg/platform/tx"
)

func TestConsumer(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	topics := personfact.DefaultTopics("")
	m := metrics.New(prometheus.NewRegistry(), "address")
	store := replica.NewMemory()
	persons := service.NewPersonCommandHandler(store, txcontext.NewShardedRunner(time.Second))
	router := New(persons, topics, "address", m, logger)
	mem := broker.NewMemory()

	publish := func(t *testing.T, fact personfact.Fact, origin string) {
		t.Helper()
		data, err := personfact.Encode(fact)
		require.NoError(t, err)
		topic, err := topics.For(fact.Kind)
		require.NoError(t, err)
		require.NoError(t, mem.Publish(ctx, &broker.Message{
			Topic:   topic,
			Key:     []byte(fact.ID.String()),
			Value:   data,
			Headers: map[string]string{personfact.HeaderOrigin: origin},
		}))
	}

	at := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	attrs := personfact.Attributes{FirstName: "Anthony", LastName: "Piccirilli", Title: "Mr."}

	t.Run("person facts reach the replica in any order", func(t *testing.T) {
		personID := id.NewPersonID()
		renamed := attrs
		renamed.FirstName = "Tony"
		publish(t, personfact.Updated(personID, renamed, at.Add(time.Minute)), "person")
		publish(t, personfact.Created(personID, attrs, at), "person")
		publish(t, personfact.Created(personID, attrs, at), "person")

		acked := mem.DeliverPending(ctx, router.Topics(), router)
		assert.Equal(t, 3, acked)

		p, err := store.Get(ctx, personID)
		require.NoError(t, err)
		assert.Equal(t, "Tony", p.FirstName)
	})

	t.Run("own echoes are skipped", func(t *testing.T) {
		personID := id.NewPersonID()
		publish(t, personfact.Created(personID, attrs, at), "address")

		mem.DeliverPending(ctx, router.Topics(), router)
		ok, err := store.Exists(ctx, personID)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Equal(t, 1.0, testutil.ToFloat64(m.FactsConsumed.WithLabelValues(topics.Created, "echo")))
	})

	t.Run("malformed payloads are acknowledged and counted", func(t *testing.T) {
		require.NoError(t, mem.Publish(ctx, &broker.Message{Topic: topics.Deleted, Value: []byte(`{"id":`)}))

		mem.DeliverPending(ctx, router.Topics(), router)
		assert.Zero(t, mem.Pending(topics.Deleted))
		assert.Equal(t, 1.0, testutil.ToFloat64(m.FactsConsumed.WithLabelValues(topics.Deleted, "malformed")))
	})
}
