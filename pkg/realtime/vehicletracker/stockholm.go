package vehicletracker

import (
	"context"
	"time"

	"github.com/travigo/positiontracker/pkg/ctdf"
)

// StockholmStrategy only keeps the latest position. The feed has no usable stop fields and
// without a previous position there is nothing to estimate congestion from.
type StockholmStrategy struct{}

func (s *StockholmStrategy) City() ctdf.City {
	return ctdf.CityStockholm
}

func (s *StockholmStrategy) CreateRecord(event *RawVehicleEvent, trip *ResolvedTrip, now time.Time) *ctdf.VehiclePosition {
	return newRecord(ctdf.CityStockholm, event, trip, now)
}

func (s *StockholmStrategy) UpdateRecord(_ context.Context, event *RawVehicleEvent, record *ctdf.VehiclePosition, _ *ResolvedTrip, now time.Time) error {
	record.CurrentPosition = event.Position
	record.Timestamp = event.ObservedAt(now)
	record.ModificationDateTime = now

	return nil
}
