package vehicletracker

import (
	"fmt"

	"github.com/travigo/positiontracker/pkg/ctdf"
)

// ChangeDetectionConfig holds the threshold for treating a new position as movement
type ChangeDetectionConfig struct {
	// Minimum distance in meters before a position counts as changed, 0 compares coordinates exactly
	MinPositionChangeMeters float64
}

// PositionChanged compares latitude to latitude and longitude to longitude, then applies the
// distance threshold if one is configured
func (c ChangeDetectionConfig) PositionChanged(stored ctdf.Position, incoming ctdf.Position) (bool, string) {
	if stored.Equal(incoming) {
		return false, "position_unchanged"
	}

	distance := stored.Distance(incoming)

	if c.MinPositionChangeMeters > 0 && distance < c.MinPositionChangeMeters {
		return false, fmt.Sprintf("below_threshold_%.1fm", distance)
	}

	return true, fmt.Sprintf("position_changed_%.1fm", distance)
}
