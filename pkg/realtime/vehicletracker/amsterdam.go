package vehicletracker

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/travigo/positiontracker/pkg/congestion"
	"github.com/travigo/positiontracker/pkg/ctdf"
)

// AmsterdamStrategy tracks stops and previous positions and refreshes congestion
// whenever the vehicle moved
type AmsterdamStrategy struct {
	Estimator       congestion.Estimator
	ChangeDetection ChangeDetectionConfig
}

func (a *AmsterdamStrategy) City() ctdf.City {
	return ctdf.CityAmsterdam
}

func (a *AmsterdamStrategy) CreateRecord(event *RawVehicleEvent, trip *ResolvedTrip, now time.Time) *ctdf.VehiclePosition {
	record := newRecord(ctdf.CityAmsterdam, event, trip, now)

	record.StopID = event.StopID
	record.CurrentStopSequence = event.CurrentStopSequence
	record.CurrentStatus = event.CurrentStatus

	return record
}

func (a *AmsterdamStrategy) UpdateRecord(ctx context.Context, event *RawVehicleEvent, record *ctdf.VehiclePosition, trip *ResolvedTrip, now time.Time) error {
	observedAt := event.ObservedAt(now)

	changed, reason := a.ChangeDetection.PositionChanged(record.CurrentPosition, event.Position)

	log.Debug().
		Str("city", string(ctdf.CityAmsterdam)).
		Str("tripid", trip.Trip.TripID).
		Bool("changed", changed).
		Str("reason", reason).
		Msg("Position change check")

	if changed {
		result, err := a.Estimator.Estimate(ctx, congestion.Request{
			RouteID:      trip.Route.RouteID,
			TripID:       trip.Trip.TripID,
			StopSequence: event.CurrentStopSequence,
			Positions: []congestion.Observation{
				congestion.NewObservation(record.CurrentPosition, record.Timestamp),
				congestion.NewObservation(event.Position, observedAt),
			},
		})
		if err != nil {
			return fmt.Errorf("%w: %w", ErrEstimatorFailure, err)
		}

		record.Congestion = ctdf.CongestionSnapshot{
			ComputedAt:   now,
			Level:        result.CongestionLevel,
			PreviousStop: result.PreviousStop,
			CurrentStop:  result.CurrentStop,
		}
	}

	previous := record.CurrentPosition
	record.PreviousPosition = &previous
	record.CurrentPosition = event.Position
	record.Timestamp = observedAt
	record.CurrentStopSequence = event.CurrentStopSequence
	record.CurrentStatus = event.CurrentStatus
	record.StopID = event.StopID
	record.ModificationDateTime = now

	return nil
}
