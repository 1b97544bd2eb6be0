package vehicletracker

import (
	"context"
	"errors"

	"github.com/travigo/positiontracker/pkg/ctdf"
	"github.com/travigo/positiontracker/pkg/database"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type PositionStore interface {
	// FindByTrip returns nil, nil when the trip has no record yet
	FindByTrip(ctx context.Context, tripRef primitive.ObjectID) (*ctdf.VehiclePosition, error)

	// Save creates or replaces the record for record.TripRef
	Save(ctx context.Context, record *ctdf.VehiclePosition) error
}

type MongoPositionStore struct {
	collection *mongo.Collection
}

func NewMongoPositionStore(instance *database.MongoInstance) *MongoPositionStore {
	return &MongoPositionStore{
		collection: instance.GetCollection(ctdf.VehiclePositionsCollection),
	}
}

func (m *MongoPositionStore) FindByTrip(ctx context.Context, tripRef primitive.ObjectID) (*ctdf.VehiclePosition, error) {
	var record *ctdf.VehiclePosition
	err := m.collection.FindOne(ctx, bson.M{"currentTrip_id": tripRef}).Decode(&record)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}

	return record, err
}

func (m *MongoPositionStore) Save(ctx context.Context, record *ctdf.VehiclePosition) error {
	_, err := m.collection.ReplaceOne(
		ctx,
		bson.M{"currentTrip_id": record.TripRef},
		record,
		options.Replace().SetUpsert(true),
	)

	return err
}

// List returns every record, or only the records of city when one is given
func (m *MongoPositionStore) List(ctx context.Context, city ctdf.City) ([]*ctdf.VehiclePosition, error) {
	cursor, err := m.collection.Find(ctx, cityFilter(city))
	if err != nil {
		return nil, err
	}

	records := []*ctdf.VehiclePosition{}
	if err := cursor.All(ctx, &records); err != nil {
		return nil, err
	}

	return records, nil
}

// Reset deletes every record, or only the records of city when one is given
func (m *MongoPositionStore) Reset(ctx context.Context, city ctdf.City) (int64, error) {
	result, err := m.collection.DeleteMany(ctx, cityFilter(city))
	if err != nil {
		return 0, err
	}

	return result.DeletedCount, nil
}

func cityFilter(city ctdf.City) bson.M {
	if city == "" {
		return bson.M{}
	}

	return bson.M{"city": city}
}
