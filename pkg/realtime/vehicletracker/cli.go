package vehicletracker

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/adjust/rmq/v5"
	"github.com/kr/pretty"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc"
	"github.com/travigo/positiontracker/pkg/config"
	"github.com/travigo/positiontracker/pkg/congestion"
	"github.com/travigo/positiontracker/pkg/consumer"
	"github.com/travigo/positiontracker/pkg/ctdf"
	"github.com/travigo/positiontracker/pkg/database"
	"github.com/travigo/positiontracker/pkg/elastic_client"
	"github.com/travigo/positiontracker/pkg/redis_client"
	"github.com/urfave/cli/v2"
	"golang.org/x/exp/slices"
)

func RegisterCLI() *cli.Command {
	return &cli.Command{
		Name:  "tracker",
		Usage: "Reconciles realtime vehicle positions into per trip position records",
		Subcommands: []*cli.Command{
			{
				Name:  "run",
				Usage: "run a consumer loop for every configured city",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "reset",
						Usage: "delete all stored positions before starting",
					},
				},
				Action: func(c *cli.Context) error {
					cfg, err := config.Load()
					if err != nil {
						return err
					}

					return run(cfg, c.Bool("reset"))
				},
			},
			{
				Name:  "reset",
				Usage: "delete stored positions",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "city",
						Usage: "only delete the positions of this city",
					},
				},
				Action: func(c *cli.Context) error {
					city := ctdf.City(c.String("city"))
					if city != "" && !slices.Contains(ctdf.KnownCities, city) {
						return fmt.Errorf("unknown city %q", city)
					}

					cfg, err := config.Load()
					if err != nil {
						return err
					}

					mongoInstance, err := database.Connect(cfg.MongoConnection, cfg.MongoDatabase)
					if err != nil {
						return err
					}
					defer mongoInstance.Disconnect(context.Background())

					return resetPositions(c.Context, NewMongoPositionStore(mongoInstance), city)
				},
			},
			{
				Name:  "cleaner",
				Usage: "run the queue cleaner for the city queues",
				Action: func(c *cli.Context) error {
					cfg, err := config.Load()
					if err != nil {
						return err
					}

					redisConnection, err := redis_client.Connect(cfg.RedisAddress, cfg.RedisPassword, cfg.RedisDatabase)
					if err != nil {
						return err
					}
					defer redisConnection.Close()

					ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
					defer stop()

					consumer.StartCleaner(ctx, redisConnection.QueueConnection, 5*time.Minute)

					return nil
				},
			},
			{
				Name:  "publish",
				Usage: "publish a payload file onto a city topic",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "city",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "file",
						Required: true,
					},
				},
				Action: func(c *cli.Context) error {
					cfg, err := config.Load()
					if err != nil {
						return err
					}

					cityConfig, err := findCity(cfg, c.String("city"))
					if err != nil {
						return err
					}

					payload, err := os.ReadFile(c.String("file"))
					if err != nil {
						return err
					}

					bus, err := connectTransport(cfg, nil)
					if err != nil {
						return err
					}
					defer bus.Close()

					topic := cityConfig.TopicName(cfg.FeedPrefix)
					if err := bus.Publisher.Publish(topic, payload); err != nil {
						return err
					}

					log.Info().Str("topic", topic).Int("bytes", len(payload)).Msg("Published payload")

					return nil
				},
			},
			{
				Name:  "inspect",
				Usage: "print the stored position record of a trip",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "trip",
						Usage:    "feed trip id",
						Required: true,
					},
				},
				Action: func(c *cli.Context) error {
					cfg, err := config.Load()
					if err != nil {
						return err
					}

					mongoInstance, err := database.Connect(cfg.MongoConnection, cfg.MongoDatabase)
					if err != nil {
						return err
					}
					defer mongoInstance.Disconnect(context.Background())

					resolver := &StoreTripResolver{References: NewMongoReferenceStore(mongoInstance)}

					trip, err := resolver.Resolve(c.Context, c.String("trip"))
					if err != nil {
						return err
					}

					record, err := NewMongoPositionStore(mongoInstance).FindByTrip(c.Context, trip.Trip.ID)
					if err != nil {
						return err
					}

					pretty.Println(trip, record)

					return nil
				},
			},
		},
	}
}

func findCity(cfg *config.Config, name string) (config.CityConfig, error) {
	for _, cityConfig := range cfg.Cities {
		if cityConfig.Name == name {
			return cityConfig, nil
		}
	}

	return config.CityConfig{}, fmt.Errorf("city %q is not configured", name)
}

type positionResetter interface {
	Reset(ctx context.Context, city ctdf.City) (int64, error)
}

func resetPositions(ctx context.Context, store positionResetter, city ctdf.City) error {
	deleted, err := store.Reset(ctx, city)
	if err != nil {
		return fmt.Errorf("resetting positions: %w", err)
	}

	log.Warn().Str("city", string(city)).Int64("deleted", deleted).Msg("Deleted stored vehicle positions")

	return nil
}

type transport struct {
	Subscriber consumer.Subscriber
	Publisher  consumer.Publisher

	redisConnection *redis_client.Connection
	natsConnection  *nats.Conn
}

// connectTransport reuses redisConnection for rmq when given, otherwise it opens and owns one
func connectTransport(cfg *config.Config, redisConnection *redis_client.Connection) (*transport, error) {
	switch cfg.Transport {
	case "nats":
		natsConnection, err := nats.Connect(cfg.NatsURL, nats.Name("positiontracker"))
		if err != nil {
			return nil, fmt.Errorf("connecting to nats: %w", err)
		}

		return &transport{
			Subscriber:     &consumer.NatsSubscriber{Connection: natsConnection, InFlight: cfg.InFlight},
			Publisher:      &consumer.NatsPublisher{Connection: natsConnection},
			natsConnection: natsConnection,
		}, nil
	default:
		t := &transport{}

		if redisConnection == nil {
			var err error
			redisConnection, err = redis_client.Connect(cfg.RedisAddress, cfg.RedisPassword, cfg.RedisDatabase)
			if err != nil {
				return nil, err
			}
			t.redisConnection = redisConnection
		}

		t.Subscriber = &consumer.RedisSubscriber{Connection: redisConnection.QueueConnection, InFlight: cfg.InFlight}
		t.Publisher = &consumer.RedisPublisher{Connection: redisConnection.QueueConnection}

		return t, nil
	}
}

func (t *transport) Close() {
	if t.natsConnection != nil {
		t.natsConnection.Close()
	}
	if t.redisConnection != nil {
		t.redisConnection.Close()
	}
}

func run(cfg *config.Config, reset bool) error {
	mongoInstance, err := database.Connect(cfg.MongoConnection, cfg.MongoDatabase)
	if err != nil {
		return err
	}
	defer mongoInstance.Disconnect(context.Background())

	// The trip cache lives in redis whichever transport carries the feeds
	cacheConnection, err := redis_client.Connect(cfg.RedisAddress, cfg.RedisPassword, cfg.RedisDatabase)
	if err != nil {
		return err
	}
	defer cacheConnection.Close()

	indexer, err := elastic_client.Connect(elastic_client.Config{
		Address:  cfg.ElasticsearchAddress,
		Username: cfg.ElasticsearchUsername,
		Password: cfg.ElasticsearchPassword,
	})
	if err != nil {
		return err
	}
	defer indexer.Close(context.Background())

	bus, err := connectTransport(cfg, cacheConnection)
	if err != nil {
		return err
	}
	defer bus.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store := NewMongoPositionStore(mongoInstance)

	if reset {
		if err := resetPositions(ctx, store, ""); err != nil {
			return err
		}
	}

	services := Services{
		Resolver: NewCachedTripResolver(
			&StoreTripResolver{References: NewMongoReferenceStore(mongoInstance)},
			cacheConnection.Client,
			cfg.TripCacheTTL,
		),
		Store:     store,
		Estimator: congestion.WithTimeout(congestion.NewHTTPEstimator(cfg.CongestionURL), cfg.CongestionTimeout),
	}
	if indexer != nil {
		services.Events = indexer
	}

	consumers, err := NewCityConsumers(cfg, bus.Subscriber, services)
	if err != nil {
		return err
	}

	checks := map[string]consumer.HealthCheck{
		"mongo": mongoInstance.Ping,
		"redis": cacheConnection.Ping,
	}
	var queueConnection rmq.Connection
	if cfg.Transport == "rmq" {
		queueConnection = cacheConnection.QueueConnection
	}
	statsServer := consumer.NewStatsServer(cfg.StatsListen, queueConnection, checks)

	go func() {
		log.Info().Str("listen", cfg.StatsListen).Msg("Stats server listening")
		if err := statsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("Stats server failed")
		}
	}()

	var wg conc.WaitGroup
	for _, cityConsumer := range consumers {
		cityConsumer := cityConsumer
		wg.Go(func() {
			if err := cityConsumer.Run(ctx); err != nil {
				log.Error().Err(err).Str("city", string(cityConsumer.City)).Msg("City consumer failed")
			}
		})
	}

	<-ctx.Done()
	// a second signal hard exits in case shutdown gets stuck
	stop()
	log.Info().Msg("Shutting down")

	wg.Wait()

	for _, cityConsumer := range consumers {
		if err := cityConsumer.Subscription.Close(); err != nil {
			log.Error().Err(err).Str("city", string(cityConsumer.City)).Msg("Failed to close subscription")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return statsServer.Shutdown(shutdownCtx)
}
