package redis_client

import (
	"context"

	"github.com/adjust/rmq/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

type Connection struct {
	Client          *redis.Client
	QueueConnection rmq.Connection
}

func Connect(address string, password string, database int) (*Connection, error) {
	options := &redis.Options{
		Addr: address,
		DB:   database,
	}
	if password != "" {
		options.Password = password
	}

	client := redis.NewClient(options)

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, err
	}

	queueErrors := make(chan error, 10)
	go logQueueErrors(queueErrors)

	queueConnection, err := rmq.OpenConnectionWithRedisClient("positiontracker", client, queueErrors)
	if err != nil {
		return nil, err
	}

	log.Info().Str("address", address).Msg("Connected to Redis")

	return &Connection{
		Client:          client,
		QueueConnection: queueConnection,
	}, nil
}

func (c *Connection) Ping(ctx context.Context) error {
	return c.Client.Ping(ctx).Err()
}

// Close stops all rmq consumers and waits for in progress Consume calls before closing redis
func (c *Connection) Close() error {
	<-c.QueueConnection.StopAllConsuming()

	return c.Client.Close()
}

func logQueueErrors(errors <-chan error) {
	for err := range errors {
		log.Error().Err(err).Msg("rmq connection error")
	}
}
