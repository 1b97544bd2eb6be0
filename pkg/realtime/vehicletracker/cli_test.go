package vehicletracker

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/travigo/positiontracker/pkg/config"
	"github.com/travigo/positiontracker/pkg/ctdf"
)

type fakeResetter struct {
	city    ctdf.City
	deleted int64
	err     error
}

func (f *fakeResetter) Reset(_ context.Context, city ctdf.City) (int64, error) {
	f.city = city
	return f.deleted, f.err
}

func TestResetPositions(t *testing.T) {
	resetter := &fakeResetter{deleted: 12}
	require.NoError(t, resetPositions(context.Background(), resetter, ctdf.CityStockholm))
	assert.Equal(t, ctdf.CityStockholm, resetter.city)

	resetter = &fakeResetter{err: errors.New("not primary")}
	assert.Error(t, resetPositions(context.Background(), resetter, ""))
}

func TestFindCity(t *testing.T) {
	cfg := &config.Config{Cities: []config.CityConfig{{Name: "amsterdam"}, {Name: "stockholm", Topic: "sl"}}}

	city, err := findCity(cfg, "stockholm")
	require.NoError(t, err)
	assert.Equal(t, "sl", city.TopicName("gtfs-realtime"))

	_, err = findCity(cfg, "rotterdam")
	assert.Error(t, err)
}
