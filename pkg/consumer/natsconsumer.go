package consumer

import (
	"context"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

type NatsSubscriber struct {
	Connection *nats.Conn

	// InFlight is the pending message limit, past it the server treats us as a slow consumer
	InFlight int
}

func (n *NatsSubscriber) Subscribe(topic string) (Subscription, error) {
	group := fmt.Sprintf("gtfs-realtime-group-%s", topic)

	log.Info().Str("subject", topic).Str("group", group).Msg("Starting consumer")

	subscription, err := n.Connection.QueueSubscribeSync(topic, group)
	if err != nil {
		return nil, fmt.Errorf("subscribing to %s: %w", topic, err)
	}

	if n.InFlight > 0 {
		if err := subscription.SetPendingLimits(n.InFlight, -1); err != nil {
			subscription.Unsubscribe()
			return nil, fmt.Errorf("limiting %s: %w", topic, err)
		}
	}

	return &natsSubscription{subscription: subscription}, nil
}

type natsSubscription struct {
	subscription *nats.Subscription
}

func (s *natsSubscription) Next(ctx context.Context) (Message, error) {
	msg, err := s.subscription.NextMsgWithContext(ctx)
	if err != nil {
		if errors.Is(err, nats.ErrBadSubscription) || errors.Is(err, nats.ErrConnectionClosed) {
			return nil, ErrSubscriptionClosed
		}
		return nil, err
	}

	return &natsMessage{msg: msg}, nil
}

func (s *natsSubscription) Close() error {
	err := s.subscription.Unsubscribe()
	if errors.Is(err, nats.ErrBadSubscription) || errors.Is(err, nats.ErrConnectionClosed) {
		return nil
	}

	return err
}

// natsMessage has nothing to acknowledge, core NATS delivery is at most once
type natsMessage struct {
	msg *nats.Msg
}

func (m *natsMessage) Payload() []byte {
	return m.msg.Data
}

func (m *natsMessage) Ack() error {
	return nil
}

func (m *natsMessage) Reject() error {
	return nil
}

type NatsPublisher struct {
	Connection *nats.Conn
}

func (n *NatsPublisher) Publish(topic string, payload []byte) error {
	if err := n.Connection.Publish(topic, payload); err != nil {
		return err
	}

	return n.Connection.Flush()
}
