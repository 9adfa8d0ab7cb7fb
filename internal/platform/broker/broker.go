// Package broker defines the transport-neutral message types used between the
// services and the kafka, rabbitmq and in-memory implementations.
//
// Delivery is at least once. A Handler returning nil acknowledges the message;
// returning an error leaves it for redelivery. Handlers that receive a message
// which can never succeed should log it and return nil.
package broker

import (
	"context"
	"errors"
)

// ErrClosed is returned by operations on a closed broker.
var ErrClosed = errors.New("broker closed")

// Message is one record on a topic.
type Message struct {
	Topic   string
	Key     []byte
	Value   []byte
	Headers map[string]string

	// Attempt counts deliveries of this message, starting at 1. Brokers that
	// cannot track redeliveries leave it at 1.
	Attempt int
}

// Header returns a header value or "".
func (m *Message) Header(key string) string {
	if m == nil || m.Headers == nil {
		return ""
	}
	return m.Headers[key]
}

// Handler processes one delivered message.
type Handler interface {
	Handle(ctx context.Context, msg *Message) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, msg *Message) error

func (f HandlerFunc) Handle(ctx context.Context, msg *Message) error { return f(ctx, msg) }

// Publisher hands a message to the broker. It returns once the broker has
// accepted the message.
type Publisher interface {
	Publish(ctx context.Context, msg *Message) error
}

// Subscriber consumes topics until ctx is cancelled.
type Subscriber interface {
	Subscribe(ctx context.Context, topics []string, h Handler) error
}

// Broker is a connected transport.
type Broker interface {
	Publisher
	Subscriber
	Close() error
}
