package database

import (
	"context"
	"fmt"

	"github.com/travigo/positiontracker/pkg/ctdf"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	TripsCollection  = "trips"
	RoutesCollection = "routes"
)

func (m *MongoInstance) createIndexes(ctx context.Context) error {
	if err := m.createPositionIndexes(ctx); err != nil {
		return err
	}

	return m.createReferenceIndexes(ctx)
}

func (m *MongoInstance) createPositionIndexes(ctx context.Context) error {
	positionsCollection := m.GetCollection(ctdf.VehiclePositionsCollection)

	_, err := positionsCollection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "currentTrip_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "city", Value: 1}},
		},
	}, options.CreateIndexes())
	if err != nil {
		return fmt.Errorf("creating %s indexes: %w", ctdf.VehiclePositionsCollection, err)
	}

	return nil
}

func (m *MongoInstance) createReferenceIndexes(ctx context.Context) error {
	tripsCollection := m.GetCollection(TripsCollection)
	if _, err := tripsCollection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "trip_id", Value: 1}},
		},
	}, options.CreateIndexes()); err != nil {
		return fmt.Errorf("creating %s indexes: %w", TripsCollection, err)
	}

	routesCollection := m.GetCollection(RoutesCollection)
	if _, err := routesCollection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "route_id", Value: 1}},
		},
	}, options.CreateIndexes()); err != nil {
		return fmt.Errorf("creating %s indexes: %w", RoutesCollection, err)
	}

	return nil
}
