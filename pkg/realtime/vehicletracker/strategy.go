package vehicletracker

import (
	"context"
	"fmt"
	"time"

	"github.com/travigo/positiontracker/pkg/congestion"
	"github.com/travigo/positiontracker/pkg/ctdf"
)

// CityStrategy owns how a city's feed populates and updates position records
type CityStrategy interface {
	City() ctdf.City

	CreateRecord(event *RawVehicleEvent, trip *ResolvedTrip, now time.Time) *ctdf.VehiclePosition

	// UpdateRecord mutates record in place. On error the record must be discarded.
	UpdateRecord(ctx context.Context, event *RawVehicleEvent, record *ctdf.VehiclePosition, trip *ResolvedTrip, now time.Time) error
}

type StrategyDependencies struct {
	Estimator       congestion.Estimator
	ChangeDetection ChangeDetectionConfig
}

func StrategyForCity(city ctdf.City, dependencies StrategyDependencies) (CityStrategy, error) {
	switch city {
	case ctdf.CityAmsterdam:
		if dependencies.Estimator == nil {
			return nil, fmt.Errorf("city %s needs a congestion estimator", city)
		}

		return &AmsterdamStrategy{
			Estimator:       dependencies.Estimator,
			ChangeDetection: dependencies.ChangeDetection,
		}, nil
	case ctdf.CityStockholm:
		return &StockholmStrategy{}, nil
	default:
		return nil, fmt.Errorf("no strategy for city %q", city)
	}
}

// newRecord fills the fields every city populates
func newRecord(city ctdf.City, event *RawVehicleEvent, trip *ResolvedTrip, now time.Time) *ctdf.VehiclePosition {
	return &ctdf.VehiclePosition{
		City:                 city,
		TripRef:              trip.Trip.ID,
		RouteRef:             trip.Route.ID,
		Timestamp:            event.ObservedAt(now),
		CurrentPosition:      event.Position,
		Congestion:           ctdf.DefaultCongestionSnapshot(now),
		CreationDateTime:     now,
		ModificationDateTime: now,
	}
}
