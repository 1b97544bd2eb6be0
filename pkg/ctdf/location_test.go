package ctdf

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPositionDistance(t *testing.T) {
	damRaadhuis := Position{Latitude: 52.3731, Longitude: 4.8922}
	centraal := Position{Latitude: 52.3791, Longitude: 4.9003}

	assert.InDelta(t, 0, damRaadhuis.Distance(damRaadhuis), 0.001)
	assert.InDelta(t, 865, damRaadhuis.Distance(centraal), 5)
	assert.InDelta(t, damRaadhuis.Distance(centraal), centraal.Distance(damRaadhuis), 0.001)
}

func TestPositionEqualAndWithin(t *testing.T) {
	p := Position{Latitude: 52.0, Longitude: 4.9}

	assert.True(t, p.Equal(Position{Latitude: 52.0, Longitude: 4.9}))
	assert.False(t, p.Equal(Position{Latitude: 52.0, Longitude: 52.0}))
	assert.False(t, p.Equal(Position{Latitude: 4.9, Longitude: 4.9}))

	assert.True(t, p.Within(4.8, 51.9, 5.0, 52.1))
	assert.False(t, p.Within(5.0, 51.9, 5.1, 52.1))
}
