package vehicletracker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/travigo/positiontracker/pkg/consumer"
	"github.com/travigo/positiontracker/pkg/ctdf"
)

type Outcome string

const (
	OutcomeCreated          Outcome = "created"
	OutcomeUpdated          Outcome = "updated"
	OutcomeMalformed        Outcome = "malformed"
	OutcomeFiltered         Outcome = "filtered"
	OutcomeUnknownTrip      Outcome = "unknown_trip"
	OutcomeEstimatorFailure Outcome = "estimator_failure"
	OutcomeStoreFailure     Outcome = "store_failure"
)

// EventIndexer receives reconciliation events, *elastic_client.Indexer in production
type EventIndexer interface {
	IndexDocument(indexName string, document any)
}

// CityConsumer is the sequential processing loop of one city. Each event is fully
// reconciled before the next one is looked at.
type CityConsumer struct {
	City         ctdf.City
	Subscription consumer.Subscription

	Decoder  Decoder
	Filter   *EventFilter
	Resolver TripResolver
	Strategy CityStrategy
	Store    PositionStore

	Events EventIndexer

	// StoreRetryMaxElapsed bounds how long a failing save is retried, 0 disables retries
	StoreRetryMaxElapsed time.Duration

	Now func() time.Time
}

func (c *CityConsumer) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}

	return time.Now()
}

func (c *CityConsumer) logger() zerolog.Logger {
	return log.With().Str("city", string(c.City)).Logger()
}

// Run receives messages until ctx is cancelled or the subscription closes. A message that
// has started processing is always finished.
func (c *CityConsumer) Run(ctx context.Context) error {
	logger := c.logger()
	logger.Info().Msg("Starting city consumer")

	for {
		msg, err := c.Subscription.Next(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, consumer.ErrSubscriptionClosed) {
				logger.Info().Msg("City consumer stopped")
				return nil
			}

			logger.Error().Err(err).Msg("Failed to receive message")
			continue
		}

		if err := c.ProcessPayload(context.WithoutCancel(ctx), msg.Payload()); err != nil {
			logger.Error().Err(err).Msg("Rejecting undecodable payload")

			if err := msg.Reject(); err != nil {
				logger.Error().Err(err).Msg("Failed to reject message")
			}
			continue
		}

		if err := msg.Ack(); err != nil {
			logger.Error().Err(err).Msg("Failed to ack message")
		}
	}
}

// ProcessPayload decodes a payload and reconciles its events in order. Only a payload
// that can't be decoded at all is an error, individual events are skipped and logged.
func (c *CityConsumer) ProcessPayload(ctx context.Context, payload []byte) error {
	entities, err := c.Decoder.Decode(payload)
	if err != nil {
		payloadFailures.WithLabelValues(string(c.City)).Inc()
		return err
	}

	startTime := time.Now()
	counts := map[Outcome]int{}

	for index, entity := range entities {
		var outcome Outcome
		tripID := ""

		if entity.Err != nil {
			outcome, err = OutcomeMalformed, entity.Err
		} else {
			tripID = entity.Event.TripID
			outcome, err = c.ProcessEvent(ctx, entity.Event)
		}

		counts[outcome]++
		c.recordOutcome(index, tripID, outcome, err)
	}

	logger := c.logger()
	logger.Info().
		Int("length", len(entities)).
		Int("created", counts[OutcomeCreated]).
		Int("updated", counts[OutcomeUpdated]).
		Int("filtered", counts[OutcomeFiltered]).
		Int("malformed", counts[OutcomeMalformed]).
		Int("unknown_trip", counts[OutcomeUnknownTrip]).
		Int("estimator_failure", counts[OutcomeEstimatorFailure]).
		Int("store_failure", counts[OutcomeStoreFailure]).
		Str("time", time.Since(startTime).String()).
		Msg("Processed payload")

	return nil
}

// ProcessEvent reconciles a single validated event into its trip's position record
func (c *CityConsumer) ProcessEvent(ctx context.Context, event *RawVehicleEvent) (Outcome, error) {
	accepted, err := c.Filter.Accept(event)
	if err != nil {
		return OutcomeFiltered, err
	}
	if !accepted {
		return OutcomeFiltered, nil
	}

	trip, err := c.Resolver.Resolve(ctx, event.TripID)
	if errors.Is(err, ErrUnknownTrip) {
		return OutcomeUnknownTrip, err
	} else if err != nil {
		return OutcomeStoreFailure, fmt.Errorf("%w: %w", ErrStoreFailure, err)
	}

	existing, err := c.Store.FindByTrip(ctx, trip.Trip.ID)
	if err != nil {
		return OutcomeStoreFailure, fmt.Errorf("%w: finding position: %w", ErrStoreFailure, err)
	}

	now := c.now()

	var record *ctdf.VehiclePosition
	outcome := OutcomeUpdated

	if existing == nil {
		record = c.Strategy.CreateRecord(event, trip, now)
		outcome = OutcomeCreated
	} else {
		// Update a copy so a failed update leaves nothing half written
		record, err = existing.Clone()
		if err != nil {
			return OutcomeStoreFailure, fmt.Errorf("%w: copying position: %w", ErrStoreFailure, err)
		}

		if err := c.Strategy.UpdateRecord(ctx, event, record, trip, now); err != nil {
			if errors.Is(err, ErrEstimatorFailure) {
				return OutcomeEstimatorFailure, err
			}
			return OutcomeStoreFailure, fmt.Errorf("%w: updating position: %w", ErrStoreFailure, err)
		}
	}

	if err := c.save(ctx, record); err != nil {
		return OutcomeStoreFailure, err
	}

	return outcome, nil
}

func (c *CityConsumer) save(ctx context.Context, record *ctdf.VehiclePosition) error {
	var retry backoff.BackOff = &backoff.StopBackOff{}

	if c.StoreRetryMaxElapsed > 0 {
		exponential := backoff.NewExponentialBackOff()
		exponential.InitialInterval = 100 * time.Millisecond
		exponential.MaxElapsedTime = c.StoreRetryMaxElapsed
		retry = exponential
	}

	err := backoff.RetryNotify(
		func() error {
			return c.Store.Save(ctx, record)
		},
		backoff.WithContext(retry, ctx),
		func(err error, wait time.Duration) {
			logger := c.logger()
			logger.Warn().Err(err).Str("tripref", record.TripRef.Hex()).Str("wait", wait.String()).Msg("Retrying position save")
		},
	)
	if err != nil {
		return fmt.Errorf("%w: saving position: %w", ErrStoreFailure, err)
	}

	return nil
}

func (c *CityConsumer) recordOutcome(index int, tripID string, outcome Outcome, err error) {
	eventOutcomes.WithLabelValues(string(c.City), string(outcome)).Inc()

	logger := c.logger()
	var logEvent *zerolog.Event

	switch outcome {
	case OutcomeCreated, OutcomeUpdated:
		logger.Debug().Str("tripid", tripID).Str("outcome", string(outcome)).Msg("Reconciled vehicle position")
		return
	case OutcomeFiltered:
		if err == nil {
			logger.Debug().Str("tripid", tripID).Msg("Event filtered out")
			return
		}
		logEvent = logger.Error()
	case OutcomeUnknownTrip:
		logEvent = logger.Info()
	case OutcomeMalformed, OutcomeEstimatorFailure:
		logEvent = logger.Warn()
	default:
		logEvent = logger.Error()
	}

	reason := ""
	if err != nil {
		reason = err.Error()
	}

	logEvent.
		Int("index", index).
		Str("tripid", tripID).
		Str("outcome", string(outcome)).
		Str("reason", reason).
		Msg("Skipped vehicle event")

	if c.Events != nil {
		now := c.now()
		c.Events.IndexDocument(reconciliationIndexName(now), &ReconciliationElasticEvent{
			ID:        uuid.NewString(),
			Timestamp: now,
			City:      string(c.City),
			TripID:    tripID,
			Outcome:   outcome,
			Reason:    reason,
		})
	}
}
