// Package outbox implements the transactional outbox: messages are written in
// the same transaction as the state change they describe and handed to the
// broker afterwards, either right after commit or by the Relay.
package outbox

import (
	"context"
	"time"

	"github.com/google/uuid"

	"personsync/internal/platform/broker"
)

// Entry is one message waiting to be published.
type Entry struct {
	ID            uuid.UUID
	AggregateType string
	AggregateID   string
	EventType     string
	Topic         string
	Payload       []byte
	Headers       map[string]string
	CreatedAt     time.Time
	ProcessedAt   *time.Time
	RetryCount    int
	LastError     string
}

// Message converts the entry into the broker message it stands for. The
// aggregate id is the message key.
func (e Entry) Message() *broker.Message {
	return &broker.Message{
		Topic:   e.Topic,
		Key:     []byte(e.AggregateID),
		Value:   e.Payload,
		Headers: e.Headers,
	}
}

// Store persists outbox entries.
type Store interface {
	// Add inserts an entry. Call it with the transaction context of the state
	// change the entry describes.
	Add(ctx context.Context, entry Entry) error

	// Poll returns unprocessed entries, oldest first.
	Poll(ctx context.Context, batchSize int) ([]Entry, error)

	// MarkProcessed records a successful publish.
	MarkProcessed(ctx context.Context, id uuid.UUID) error

	// MarkFailed records a failed publish for a later retry.
	MarkFailed(ctx context.Context, id uuid.UUID, cause error) error

	// Cleanup removes processed entries older than olderThan.
	Cleanup(ctx context.Context, olderThan time.Duration) (int64, error)

	// Count returns the number of unprocessed entries.
	Count(ctx context.Context) (int64, error)
}
