package consumer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/adjust/rmq/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type RedisSubscriber struct {
	Connection rmq.Connection

	// InFlight bounds both the rmq prefetch and the deliveries waiting for the receive loop
	InFlight int

	BatchTimeout time.Duration
}

func (r *RedisSubscriber) Subscribe(topic string) (Subscription, error) {
	log.Info().Str("queue", topic).Msg("Starting consumer")

	queue, err := r.Connection.OpenQueue(topic)
	if err != nil {
		return nil, fmt.Errorf("opening queue %s: %w", topic, err)
	}

	inFlight := r.InFlight
	if inFlight < 1 {
		inFlight = 1
	}
	batchTimeout := r.BatchTimeout
	if batchTimeout == 0 {
		batchTimeout = time.Second
	}

	if err := queue.StartConsuming(int64(inFlight), time.Second); err != nil {
		return nil, fmt.Errorf("consuming queue %s: %w", topic, err)
	}

	subscription := newRedisSubscription(queue, inFlight)

	tag := fmt.Sprintf("%s-%s", topic, uuid.NewString())
	if _, err := queue.AddBatchConsumer(tag, int64(inFlight), batchTimeout, subscription); err != nil {
		<-queue.StopConsuming()
		return nil, fmt.Errorf("adding consumer to queue %s: %w", topic, err)
	}

	return subscription, nil
}

type redisSubscription struct {
	queue rmq.Queue

	deliveries chan rmq.Delivery
	closing    chan struct{}
	closeOnce  sync.Once
}

func newRedisSubscription(queue rmq.Queue, inFlight int) *redisSubscription {
	return &redisSubscription{
		queue:      queue,
		deliveries: make(chan rmq.Delivery, inFlight),
		closing:    make(chan struct{}),
	}
}

// Consume hands each delivery to the receive loop in order, blocking while it is busy.
// Deliveries left over at close stay unacked until the cleaner returns them.
func (s *redisSubscription) Consume(batch rmq.Deliveries) {
	for _, delivery := range batch {
		select {
		case s.deliveries <- delivery:
		case <-s.closing:
			return
		}
	}
}

func (s *redisSubscription) Next(ctx context.Context) (Message, error) {
	select {
	case delivery := <-s.deliveries:
		return &redisMessage{delivery: delivery}, nil
	case <-s.closing:
		return nil, ErrSubscriptionClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *redisSubscription) Close() error {
	s.closeOnce.Do(func() {
		close(s.closing)
		if s.queue != nil {
			<-s.queue.StopConsuming()
		}
	})

	return nil
}

type redisMessage struct {
	delivery rmq.Delivery
}

func (m *redisMessage) Payload() []byte {
	return []byte(m.delivery.Payload())
}

func (m *redisMessage) Ack() error {
	return m.delivery.Ack()
}

func (m *redisMessage) Reject() error {
	return m.delivery.Reject()
}

type RedisPublisher struct {
	Connection rmq.Connection
}

func (r *RedisPublisher) Publish(topic string, payload []byte) error {
	queue, err := r.Connection.OpenQueue(topic)
	if err != nil {
		return err
	}

	return queue.PublishBytes(payload)
}

// StartCleaner returns deliveries held by dead consumers to their queues until ctx is done
func StartCleaner(ctx context.Context, connection rmq.Connection, every time.Duration) {
	cleaner := rmq.NewCleaner(connection)

	log.Info().Msg("Starting queue cleaner process")

	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		returned, err := cleaner.Clean()
		if err != nil {
			log.Error().Err(err).Msg("Failed to clean")
			continue
		}

		if returned != 0 {
			log.Info().Msgf("Cleaned %d records", returned)
		}
	}
}
