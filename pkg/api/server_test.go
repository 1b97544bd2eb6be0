package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/travigo/positiontracker/pkg/ctdf"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type memoryPositions struct {
	records []*ctdf.VehiclePosition
	err     error
}

func (m *memoryPositions) List(_ context.Context, city ctdf.City) ([]*ctdf.VehiclePosition, error) {
	if m.err != nil {
		return nil, m.err
	}

	var records []*ctdf.VehiclePosition
	for _, record := range m.records {
		if city == "" || record.City == city {
			records = append(records, record)
		}
	}

	return records, nil
}

func (m *memoryPositions) FindByTrip(_ context.Context, tripRef primitive.ObjectID) (*ctdf.VehiclePosition, error) {
	if m.err != nil {
		return nil, m.err
	}

	for _, record := range m.records {
		if record.TripRef == tripRef {
			return record, nil
		}
	}

	return nil, nil
}

func position(city ctdf.City, latitude float64, longitude float64) *ctdf.VehiclePosition {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	return &ctdf.VehiclePosition{
		City:            city,
		TripRef:         primitive.NewObjectID(),
		RouteRef:        primitive.NewObjectID(),
		Timestamp:       now,
		CurrentPosition: ctdf.Position{Latitude: latitude, Longitude: longitude},
		StopID:          "S1",
		Congestion:      ctdf.DefaultCongestionSnapshot(now),
	}
}

func request(t *testing.T, positions *memoryPositions, target string) (int, []byte) {
	t.Helper()

	resp, err := NewApp(positions).Test(httptest.NewRequest(http.MethodGet, target, nil))
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp.StatusCode, body
}

func TestGetTripPosition(t *testing.T) {
	record := position(ctdf.CityAmsterdam, 52.37, 4.89)
	positions := &memoryPositions{records: []*ctdf.VehiclePosition{record}}

	code, body := request(t, positions, "/positions/trip/"+record.TripRef.Hex())
	require.Equal(t, http.StatusOK, code)

	var response map[string]any
	require.NoError(t, json.Unmarshal(body, &response))
	assert.Equal(t, "amsterdam", response["city"])
	assert.Equal(t, record.TripRef.Hex(), response["tripRef"])
	assert.Equal(t, "S1", response["stopId"])
	assert.Nil(t, response["previousPosition"])

	current := response["currentPosition"].(map[string]any)
	assert.Equal(t, 52.37, current["latitude"])
	assert.Equal(t, 4.89, current["longitude"])
}

func TestGetTripPositionNotFound(t *testing.T) {
	code, _ := request(t, &memoryPositions{}, "/positions/trip/"+primitive.NewObjectID().Hex())
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = request(t, &memoryPositions{}, "/positions/trip/not-an-id")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestListPositions(t *testing.T) {
	positions := &memoryPositions{records: []*ctdf.VehiclePosition{
		position(ctdf.CityAmsterdam, 52.37, 4.89),
		position(ctdf.CityAmsterdam, 52.09, 5.12),
		position(ctdf.CityStockholm, 59.33, 18.06),
	}}

	tests := []struct {
		name   string
		target string
		count  int
	}{
		{name: "everything", target: "/positions", count: 3},
		{name: "one city", target: "/positions?city=amsterdam", count: 2},
		{name: "within bounds", target: "/positions?city=amsterdam&bounds=4.7,52.3,5.0,52.5", count: 1},
		{name: "nothing in bounds", target: "/positions?bounds=0,0,1,1", count: 0},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			code, body := request(t, positions, test.target)
			require.Equal(t, http.StatusOK, code)

			var response []map[string]any
			require.NoError(t, json.Unmarshal(body, &response))
			assert.Len(t, response, test.count)

			for _, record := range response {
				assert.NotContains(t, record, "stopId")
			}
		})
	}
}

func TestListPositionsDetailed(t *testing.T) {
	positions := &memoryPositions{records: []*ctdf.VehiclePosition{position(ctdf.CityStockholm, 59.33, 18.06)}}

	code, body := request(t, positions, "/positions?detailed=true")
	require.Equal(t, http.StatusOK, code)

	var response []map[string]any
	require.NoError(t, json.Unmarshal(body, &response))
	require.Len(t, response, 1)
	assert.Equal(t, "S1", response[0]["stopId"])
}

func TestListPositionsBadRequests(t *testing.T) {
	for _, target := range []string{
		"/positions?city=rotterdam",
		"/positions?bounds=1,2,3",
		"/positions?bounds=a,b,c,d",
	} {
		code, _ := request(t, &memoryPositions{}, target)
		assert.Equal(t, http.StatusBadRequest, code, target)
	}
}

func TestListPositionsStoreFailure(t *testing.T) {
	code, _ := request(t, &memoryPositions{err: errors.New("connection refused")}, "/positions")
	assert.Equal(t, http.StatusInternalServerError, code)
}

func TestRequestIDHeader(t *testing.T) {
	resp, err := NewApp(&memoryPositions{}).Test(httptest.NewRequest(http.MethodGet, "/version", nil))
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Header.Get(requestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/version", nil)
	req.Header.Set(requestIDHeader, "abc")
	resp, err = NewApp(&memoryPositions{}).Test(req)
	require.NoError(t, err)
	assert.Equal(t, "abc", resp.Header.Get(requestIDHeader))
}
