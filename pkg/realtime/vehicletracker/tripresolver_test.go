package vehicletracker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/travigo/positiontracker/pkg/ctdf"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

type memoryReferences struct {
	trips  map[string]*ctdf.Trip
	routes map[primitive.ObjectID]*ctdf.Route
	err    error
}

func (m *memoryReferences) FindTripByExternalID(_ context.Context, tripID string) (*ctdf.Trip, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.trips[tripID], nil
}

func (m *memoryReferences) FindRouteByID(_ context.Context, id primitive.ObjectID) (*ctdf.Route, error) {
	return m.routes[id], nil
}

func TestStoreTripResolver(t *testing.T) {
	known := testTrip("T1", "R1")
	orphan := testTrip("T2", "R2")

	resolver := &StoreTripResolver{References: &memoryReferences{
		trips: map[string]*ctdf.Trip{
			"T1": known.Trip,
			"T2": orphan.Trip,
		},
		routes: map[primitive.ObjectID]*ctdf.Route{
			known.Route.ID: known.Route,
		},
	}}

	resolved, err := resolver.Resolve(context.Background(), "T1")
	require.NoError(t, err)
	assert.Equal(t, known, resolved)

	_, err = resolver.Resolve(context.Background(), "T9")
	assert.ErrorIs(t, err, ErrUnknownTrip)

	_, err = resolver.Resolve(context.Background(), "T2")
	assert.ErrorIs(t, err, ErrUnknownTrip)
	assert.Contains(t, err.Error(), "unknown route")
}

func TestStoreTripResolverLookupFailure(t *testing.T) {
	resolver := &StoreTripResolver{References: &memoryReferences{err: errors.New("server selection timeout")}}

	_, err := resolver.Resolve(context.Background(), "T1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnknownTrip)
}

func TestCachedTripResolver(t *testing.T) {
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { client.Close() })

	known := testTrip("T1", "R1")
	backing := &fakeResolver{trips: map[string]*ResolvedTrip{"T1": known}}

	resolver := NewCachedTripResolver(backing, client, time.Minute)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		resolved, err := resolver.Resolve(ctx, "T1")
		require.NoError(t, err)
		assert.Equal(t, known.Trip.ID, resolved.Trip.ID)
		assert.Equal(t, known.Route.ID, resolved.Route.ID)
		assert.Equal(t, "R1", resolved.Route.RouteID)
	}
	assert.Equal(t, 1, backing.calls)

	for i := 0; i < 2; i++ {
		_, err := resolver.Resolve(ctx, "T9")
		assert.ErrorIs(t, err, ErrUnknownTrip)
	}
	assert.Equal(t, 2, backing.calls)

	cached, err := client.Get(ctx, tripCacheKey("T9")).Result()
	require.NoError(t, err)
	assert.Equal(t, unresolvedMarker, cached)

	server.FastForward(2 * time.Minute)

	_, err = resolver.Resolve(ctx, "T1")
	require.NoError(t, err)
	assert.Equal(t, 3, backing.calls)
}

func TestCachedTripResolverDoesNotCacheFailures(t *testing.T) {
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { client.Close() })

	backing := &fakeResolver{err: errors.New("connection reset")}
	resolver := NewCachedTripResolver(backing, client, time.Minute)

	_, err := resolver.Resolve(context.Background(), "T1")
	require.Error(t, err)
	assert.False(t, server.Exists(tripCacheKey("T1")))
}

func TestMongoReferenceStore(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("found", func(mt *mtest.T) {
		trip := testTrip("T1", "R1")
		references := &MongoReferenceStore{trips: mt.Coll, routes: mt.Coll}

		namespace := mt.Coll.Database().Name() + "." + mt.Coll.Name()
		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, namespace, mtest.FirstBatch, bson.D{
				{Key: "_id", Value: trip.Trip.ID},
				{Key: "trip_id", Value: "T1"},
				{Key: "route_id", Value: trip.Route.ID},
			}),
			mtest.CreateCursorResponse(0, namespace, mtest.FirstBatch, bson.D{
				{Key: "_id", Value: trip.Route.ID},
				{Key: "route_id", Value: "R1"},
			}),
		)

		resolved, err := (&StoreTripResolver{References: references}).Resolve(context.Background(), "T1")
		require.NoError(mt, err)
		assert.Equal(mt, trip, resolved)
	})

	mt.Run("missing", func(mt *mtest.T) {
		references := &MongoReferenceStore{trips: mt.Coll, routes: mt.Coll}

		namespace := mt.Coll.Database().Name() + "." + mt.Coll.Name()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, namespace, mtest.FirstBatch))

		trip, err := references.FindTripByExternalID(context.Background(), "T9")
		require.NoError(mt, err)
		assert.Nil(mt, trip)
	})
}
