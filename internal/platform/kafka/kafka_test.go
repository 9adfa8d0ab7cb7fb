package kafka

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"personsync/internal/platform/broker"
)

func TestRecordConversion(t *testing.T) {
	msg := &broker.Message{
		Topic:   "create-person",
		Key:     []byte("p-1"),
		Value:   []byte(`{"id":"p-1"}`),
		Headers: map[string]string{"origin": "person", "kind": "created"},
	}
	rec := toRecord(msg)
	assert.Equal(t, "create-person", rec.Topic)
	assert.Len(t, rec.Headers, 2)

	back := fromRecord(rec)
	assert.Equal(t, msg.Topic, back.Topic)
	assert.Equal(t, msg.Key, back.Key)
	assert.Equal(t, msg.Headers, back.Headers)
	assert.Equal(t, 1, back.Attempt)

	assert.Nil(t, fromRecord(&kgo.Record{Topic: "t"}).Headers)
}

func TestHandleWithRetry(t *testing.T) {
	b := &Broker{
		cfg:    Config{RetryBackoff: time.Millisecond, MaxRetryBackoff: 2 * time.Millisecond},
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	t.Run("retries until the handler succeeds", func(t *testing.T) {
		var attempts []int
		h := broker.HandlerFunc(func(_ context.Context, msg *broker.Message) error {
			attempts = append(attempts, msg.Attempt)
			if msg.Attempt < 3 {
				return errors.New("transient")
			}
			return nil
		})
		require.NoError(t, b.handleWithRetry(context.Background(), &broker.Message{Topic: "t"}, h))
		assert.Equal(t, []int{1, 2, 3}, attempts)
	})

	t.Run("stops when the context ends", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		h := broker.HandlerFunc(func(context.Context, *broker.Message) error { return errors.New("down") })
		err := b.handleWithRetry(ctx, &broker.Message{Topic: "t"}, h)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func TestNewRequiresBrokers(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}
