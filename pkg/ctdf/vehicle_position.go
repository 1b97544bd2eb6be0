package ctdf

import (
	"time"

	"github.com/jinzhu/copier"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const VehiclePositionsCollection = "vehiclepositions"

// VehiclePosition is the latest known position of the vehicle running a trip.
// There is at most one per TripRef.
type VehiclePosition struct {
	City City `groups:"basic" bson:"city" json:"city"`

	TripRef  primitive.ObjectID `groups:"basic" bson:"currentTrip_id" json:"tripRef"`
	RouteRef primitive.ObjectID `groups:"basic" bson:"route" json:"routeRef"`

	Timestamp time.Time `groups:"basic" bson:"timestamp" json:"timestamp"`

	CurrentPosition  Position  `groups:"basic" bson:"current_position" json:"currentPosition"`
	PreviousPosition *Position `groups:"basic" bson:"previous_position" json:"previousPosition"`

	StopID              string `groups:"detailed" bson:"stop_id" json:"stopId"`
	CurrentStopSequence uint32 `groups:"detailed" bson:"current_stop_sequence" json:"currentStopSequence"`
	CurrentStatus       string `groups:"detailed" bson:"current_status" json:"currentStatus"`

	Congestion CongestionSnapshot `groups:"basic" bson:"congestion_level" json:"congestion"`

	CreationDateTime     time.Time `groups:"detailed" bson:"creationdatetime" json:"creationDateTime"`
	ModificationDateTime time.Time `groups:"detailed" bson:"modificationdatetime" json:"modificationDateTime"`
}

// Clone returns a deep copy so an update can be discarded without touching the original
func (v *VehiclePosition) Clone() (*VehiclePosition, error) {
	var clone VehiclePosition

	if err := copier.CopyWithOption(&clone, v, copier.Option{DeepCopy: true}); err != nil {
		return nil, err
	}

	return &clone, nil
}

type CongestionSnapshot struct {
	ComputedAt   time.Time `groups:"basic" bson:"timestamp" json:"computedAt"`
	Level        float64   `groups:"basic" bson:"level" json:"level"`
	PreviousStop *string   `groups:"basic" bson:"previousStop" json:"previousStop"`
	CurrentStop  *string   `groups:"basic" bson:"currentStop" json:"currentStop"`
}

// DefaultCongestionSnapshot is the unknown congestion state of a freshly created record
func DefaultCongestionSnapshot(now time.Time) CongestionSnapshot {
	return CongestionSnapshot{
		ComputedAt: now,
		Level:      0,
	}
}
