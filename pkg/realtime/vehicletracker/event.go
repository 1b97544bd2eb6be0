package vehicletracker

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"github.com/rs/zerolog/log"
	"github.com/travigo/positiontracker/pkg/ctdf"
	"google.golang.org/protobuf/proto"
)

var (
	ErrMalformedEvent   = errors.New("malformed vehicle event")
	ErrUnknownTrip      = errors.New("unknown trip")
	ErrEstimatorFailure = errors.New("congestion estimator failure")
	ErrStoreFailure     = errors.New("position store failure")
)

// RawVehicleEvent is one decoded vehicle position from a feed payload
type RawVehicleEvent struct {
	TripID   string
	Position ctdf.Position

	// Timestamp is zero when the feed didn't send one
	Timestamp time.Time

	StopID              string
	CurrentStopSequence uint32
	CurrentStatus       string
}

// ObservedAt falls back to now for events without a timestamp
func (e *RawVehicleEvent) ObservedAt(now time.Time) time.Time {
	if e.Timestamp.IsZero() {
		return now
	}

	return e.Timestamp
}

// DecodedEntity is either an event or the reason its entity was malformed
type DecodedEntity struct {
	Event *RawVehicleEvent
	Err   error
}

type Decoder interface {
	Decode(payload []byte) ([]DecodedEntity, error)
}

func DecoderForFormat(format string) (Decoder, error) {
	switch format {
	case "", "json":
		return JSONDecoder{}, nil
	case "protobuf":
		return ProtobufDecoder{}, nil
	default:
		return nil, fmt.Errorf("unknown payload format %q", format)
	}
}

func malformed(reason string) error {
	return fmt.Errorf("%w: %s", ErrMalformedEvent, reason)
}

// JSONDecoder reads a JSON array of vehicle position entities. Each element is decoded on
// its own so one bad element doesn't lose the rest of the payload.
type JSONDecoder struct{}

// Optional fields are kept raw and parsed leniently, a bad value only loses that field
type jsonEntity struct {
	Vehicle *struct {
		Trip *struct {
			TripID string `json:"tripId"`
		} `json:"trip"`
		Position *struct {
			Latitude  *float64 `json:"latitude"`
			Longitude *float64 `json:"longitude"`
		} `json:"position"`
		Timestamp           json.RawMessage `json:"timestamp"`
		StopID              json.RawMessage `json:"stopId"`
		CurrentStopSequence json.RawMessage `json:"currentStopSequence"`
		CurrentStatus       json.RawMessage `json:"currentStatus"`
	} `json:"vehicle"`
}

func (JSONDecoder) Decode(payload []byte) ([]DecodedEntity, error) {
	var elements []json.RawMessage
	if err := json.Unmarshal(payload, &elements); err != nil {
		return nil, fmt.Errorf("payload is not a JSON array: %w", err)
	}

	decoded := make([]DecodedEntity, 0, len(elements))
	for _, element := range elements {
		event, err := decodeJSONEntity(element)
		decoded = append(decoded, DecodedEntity{Event: event, Err: err})
	}

	return decoded, nil
}

func decodeJSONEntity(element json.RawMessage) (*RawVehicleEvent, error) {
	var entity jsonEntity
	if err := json.Unmarshal(element, &entity); err != nil {
		return nil, malformed(err.Error())
	}

	vehicle := entity.Vehicle
	switch {
	case vehicle == nil:
		return nil, malformed("missing vehicle")
	case vehicle.Trip == nil:
		return nil, malformed("missing trip")
	case vehicle.Trip.TripID == "":
		return nil, malformed("missing trip id")
	case vehicle.Position == nil:
		return nil, malformed("missing position")
	case vehicle.Position.Latitude == nil || vehicle.Position.Longitude == nil:
		return nil, malformed("incomplete position")
	}

	event := &RawVehicleEvent{
		TripID: vehicle.Trip.TripID,
		Position: ctdf.Position{
			Latitude:  *vehicle.Position.Latitude,
			Longitude: *vehicle.Position.Longitude,
		},
	}

	var err error
	if event.Timestamp, err = parseEpoch(vehicle.Timestamp); err != nil {
		ignoredField(event.TripID, "timestamp", err)
	}
	if event.StopID, err = parseString(vehicle.StopID); err != nil {
		ignoredField(event.TripID, "stopId", err)
	}
	if event.CurrentStopSequence, err = parseStopSequence(vehicle.CurrentStopSequence); err != nil {
		ignoredField(event.TripID, "currentStopSequence", err)
	}
	if event.CurrentStatus, err = parseStopStatus(vehicle.CurrentStatus); err != nil {
		ignoredField(event.TripID, "currentStatus", err)
	}

	return event, nil
}

func ignoredField(tripID string, field string, err error) {
	log.Warn().Err(err).Str("tripid", tripID).Str("field", field).Msg("Ignoring invalid optional field")
}

func isAbsent(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}

// parseEpoch accepts unix seconds as a number or, as protobuf JSON writes uint64, a string
func parseEpoch(raw json.RawMessage) (time.Time, error) {
	if isAbsent(raw) {
		return time.Time{}, nil
	}

	data := bytes.Trim(raw, `"`)
	seconds, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %s", raw)
	}

	return time.Unix(seconds, 0), nil
}

func parseString(raw json.RawMessage) (string, error) {
	if isAbsent(raw) {
		return "", nil
	}

	var value string
	if err := json.Unmarshal(raw, &value); err != nil {
		return "", fmt.Errorf("invalid string %s", raw)
	}

	return value, nil
}

func parseStopSequence(raw json.RawMessage) (uint32, error) {
	if isAbsent(raw) {
		return 0, nil
	}

	var value uint32
	if err := json.Unmarshal(raw, &value); err != nil {
		return 0, fmt.Errorf("invalid stop sequence %s", raw)
	}

	return value, nil
}

// parseStopStatus accepts the enum name or its number
func parseStopStatus(raw json.RawMessage) (string, error) {
	if isAbsent(raw) {
		return "", nil
	}

	var name string
	if err := json.Unmarshal(raw, &name); err == nil {
		return name, nil
	}

	var number int32
	if err := json.Unmarshal(raw, &number); err != nil {
		return "", fmt.Errorf("invalid current status %s", raw)
	}

	name, ok := gtfs.VehiclePosition_VehicleStopStatus_name[number]
	if !ok {
		return "", fmt.Errorf("invalid current status %d", number)
	}

	return name, nil
}

// ProtobufDecoder reads a binary GTFS-RT FeedMessage. Entities that aren't vehicle
// positions (trip updates, alerts) are ignored.
type ProtobufDecoder struct{}

func (ProtobufDecoder) Decode(payload []byte) ([]DecodedEntity, error) {
	feed := &gtfs.FeedMessage{}
	if err := (proto.UnmarshalOptions{AllowPartial: true}).Unmarshal(payload, feed); err != nil {
		return nil, fmt.Errorf("payload is not a GTFS-RT feed: %w", err)
	}

	var decoded []DecodedEntity
	for _, entity := range feed.GetEntity() {
		vehicle := entity.GetVehicle()
		if vehicle == nil {
			continue
		}

		event, err := eventFromVehiclePosition(vehicle)
		decoded = append(decoded, DecodedEntity{Event: event, Err: err})
	}

	return decoded, nil
}

func eventFromVehiclePosition(vehicle *gtfs.VehiclePosition) (*RawVehicleEvent, error) {
	switch {
	case vehicle.GetTrip() == nil:
		return nil, malformed("missing trip")
	case vehicle.GetTrip().GetTripId() == "":
		return nil, malformed("missing trip id")
	case vehicle.GetPosition() == nil:
		return nil, malformed("missing position")
	case vehicle.GetPosition().Latitude == nil || vehicle.GetPosition().Longitude == nil:
		return nil, malformed("incomplete position")
	}

	event := &RawVehicleEvent{
		TripID: vehicle.GetTrip().GetTripId(),
		Position: ctdf.Position{
			Latitude:  float64(vehicle.GetPosition().GetLatitude()),
			Longitude: float64(vehicle.GetPosition().GetLongitude()),
		},
		StopID:              vehicle.GetStopId(),
		CurrentStopSequence: vehicle.GetCurrentStopSequence(),
	}

	if vehicle.Timestamp != nil {
		event.Timestamp = time.Unix(int64(vehicle.GetTimestamp()), 0)
	}
	if vehicle.CurrentStatus != nil {
		event.CurrentStatus = vehicle.GetCurrentStatus().String()
	}

	return event, nil
}
