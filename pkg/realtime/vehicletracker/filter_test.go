package vehicletracker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/travigo/positiontracker/pkg/ctdf"
)

func TestEventFilter(t *testing.T) {
	filter, err := NewEventFilter(`CurrentStatus in ["IN_TRANSIT_TO", "STOPPED_AT"] && Latitude > 50`)
	require.NoError(t, err)

	tests := []struct {
		name     string
		event    *RawVehicleEvent
		expected bool
	}{
		{
			name:     "in transit",
			event:    &RawVehicleEvent{TripID: "T1", CurrentStatus: "IN_TRANSIT_TO", Position: ctdf.Position{Latitude: 52}},
			expected: true,
		},
		{
			name:     "incoming",
			event:    &RawVehicleEvent{TripID: "T1", CurrentStatus: "INCOMING_AT", Position: ctdf.Position{Latitude: 52}},
			expected: false,
		},
		{
			name:     "too far south",
			event:    &RawVehicleEvent{TripID: "T1", CurrentStatus: "STOPPED_AT", Position: ctdf.Position{Latitude: 48}},
			expected: false,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			accepted, err := filter.Accept(test.event)
			require.NoError(t, err)
			assert.Equal(t, test.expected, accepted)
		})
	}
}

func TestEventFilterTimestamp(t *testing.T) {
	filter, err := NewEventFilter(`Timestamp == 0 || Timestamp > 1000`)
	require.NoError(t, err)

	accepted, err := filter.Accept(&RawVehicleEvent{TripID: "T1"})
	require.NoError(t, err)
	assert.True(t, accepted)

	accepted, err = filter.Accept(&RawVehicleEvent{TripID: "T1", Timestamp: time.Unix(500, 0)})
	require.NoError(t, err)
	assert.False(t, accepted)
}

func TestEmptyFilterAcceptsEverything(t *testing.T) {
	filter, err := NewEventFilter("")
	require.NoError(t, err)
	assert.Nil(t, filter)

	accepted, err := filter.Accept(&RawVehicleEvent{TripID: "T1"})
	require.NoError(t, err)
	assert.True(t, accepted)
}

func TestInvalidFilters(t *testing.T) {
	for _, source := range []string{`CurrentStatus ==`, `Latitude + 1`, `Unknown == "x"`} {
		_, err := NewEventFilter(source)
		assert.Error(t, err, source)
	}
}
