// Package consumer receives feed payloads from a per-city topic on the message bus
package consumer

import (
	"context"
	"errors"
)

var ErrSubscriptionClosed = errors.New("subscription closed")

// Message is one payload delivered from a topic
type Message interface {
	Payload() []byte
	Ack() error
	Reject() error
}

// Subscription is a blocking receive loop over a single topic
type Subscription interface {
	// Next blocks until a message arrives, ctx is done or the subscription is closed
	Next(ctx context.Context) (Message, error)
	Close() error
}

type Subscriber interface {
	Subscribe(topic string) (Subscription, error)
}

type Publisher interface {
	Publish(topic string, payload []byte) error
}
