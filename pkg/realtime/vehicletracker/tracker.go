package vehicletracker

import (
	"fmt"

	"github.com/travigo/positiontracker/pkg/config"
	"github.com/travigo/positiontracker/pkg/congestion"
	"github.com/travigo/positiontracker/pkg/consumer"
)

// Services are the collaborators shared by every city loop
type Services struct {
	Resolver  TripResolver
	Store     PositionStore
	Estimator congestion.Estimator
	Events    EventIndexer
}

// NewCityConsumers builds one subscribed consumer per configured city. Any configuration
// problem with a city fails the whole set.
func NewCityConsumers(cfg *config.Config, subscriber consumer.Subscriber, services Services) ([]*CityConsumer, error) {
	var consumers []*CityConsumer

	closeSubscriptions := func() {
		for _, cityConsumer := range consumers {
			cityConsumer.Subscription.Close()
		}
	}

	for _, cityConfig := range cfg.Cities {
		city := cityConfig.City()

		dependencies := StrategyDependencies{
			ChangeDetection: ChangeDetectionConfig{
				MinPositionChangeMeters: cfg.MinPositionChangeMeters,
			},
		}
		if services.Estimator != nil {
			dependencies.Estimator = InstrumentEstimator(city, services.Estimator)
		}

		strategy, err := StrategyForCity(city, dependencies)
		if err != nil {
			closeSubscriptions()
			return nil, err
		}

		decoder, err := DecoderForFormat(cityConfig.Format)
		if err != nil {
			closeSubscriptions()
			return nil, fmt.Errorf("city %s: %w", city, err)
		}

		filter, err := NewEventFilter(cityConfig.Filter)
		if err != nil {
			closeSubscriptions()
			return nil, fmt.Errorf("city %s: %w", city, err)
		}

		subscription, err := subscriber.Subscribe(cityConfig.TopicName(cfg.FeedPrefix))
		if err != nil {
			closeSubscriptions()
			return nil, fmt.Errorf("city %s: %w", city, err)
		}

		consumers = append(consumers, &CityConsumer{
			City:                 city,
			Subscription:         subscription,
			Decoder:              decoder,
			Filter:               filter,
			Resolver:             services.Resolver,
			Strategy:             strategy,
			Store:                services.Store,
			Events:               services.Events,
			StoreRetryMaxElapsed: cfg.StoreRetryMaxElapsed,
		})
	}

	return consumers, nil
}
