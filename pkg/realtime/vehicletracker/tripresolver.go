package vehicletracker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/eko/gocache/lib/v4/cache"
	"github.com/eko/gocache/lib/v4/store"
	redisstore "github.com/eko/gocache/store/redis/v4"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/travigo/positiontracker/pkg/ctdf"
	"github.com/travigo/positiontracker/pkg/database"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// unresolvedMarker is cached for trips we couldn't resolve so we don't keep looking them up
const unresolvedMarker = "N/A"

type ResolvedTrip struct {
	Trip  *ctdf.Trip  `json:"trip"`
	Route *ctdf.Route `json:"route"`
}

type TripResolver interface {
	// Resolve returns ErrUnknownTrip for trips that aren't in the static schedule
	Resolve(ctx context.Context, externalTripID string) (*ResolvedTrip, error)
}

// ReferenceStore is the read only static schedule. Lookups return nil, nil when nothing matches.
type ReferenceStore interface {
	FindTripByExternalID(ctx context.Context, tripID string) (*ctdf.Trip, error)
	FindRouteByID(ctx context.Context, id primitive.ObjectID) (*ctdf.Route, error)
}

type MongoReferenceStore struct {
	trips  *mongo.Collection
	routes *mongo.Collection
}

func NewMongoReferenceStore(instance *database.MongoInstance) *MongoReferenceStore {
	return &MongoReferenceStore{
		trips:  instance.GetCollection(database.TripsCollection),
		routes: instance.GetCollection(database.RoutesCollection),
	}
}

func (m *MongoReferenceStore) FindTripByExternalID(ctx context.Context, tripID string) (*ctdf.Trip, error) {
	var trip *ctdf.Trip
	err := m.trips.FindOne(ctx, bson.M{"trip_id": tripID}).Decode(&trip)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}

	return trip, err
}

func (m *MongoReferenceStore) FindRouteByID(ctx context.Context, id primitive.ObjectID) (*ctdf.Route, error) {
	var route *ctdf.Route
	err := m.routes.FindOne(ctx, bson.M{"_id": id}).Decode(&route)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}

	return route, err
}

type StoreTripResolver struct {
	References ReferenceStore
}

func (r *StoreTripResolver) Resolve(ctx context.Context, externalTripID string) (*ResolvedTrip, error) {
	trip, err := r.References.FindTripByExternalID(ctx, externalTripID)
	if err != nil {
		return nil, fmt.Errorf("looking up trip %s: %w", externalTripID, err)
	}
	if trip == nil {
		return nil, fmt.Errorf("%w: %s not in the schedule", ErrUnknownTrip, externalTripID)
	}

	route, err := r.References.FindRouteByID(ctx, trip.RouteID)
	if err != nil {
		return nil, fmt.Errorf("looking up route %s: %w", trip.RouteID.Hex(), err)
	}
	if route == nil {
		return nil, fmt.Errorf("%w: unknown route %s for %s", ErrUnknownTrip, trip.RouteID.Hex(), externalTripID)
	}

	return &ResolvedTrip{Trip: trip, Route: route}, nil
}

// CachedTripResolver keeps both resolutions and misses in redis
type CachedTripResolver struct {
	resolver TripResolver
	cache    *cache.Cache[string]
}

func NewCachedTripResolver(resolver TripResolver, client *redis.Client, ttl time.Duration) *CachedTripResolver {
	redisStore := redisstore.NewRedis(client, store.WithExpiration(ttl))

	return &CachedTripResolver{
		resolver: resolver,
		cache:    cache.New[string](redisStore),
	}
}

func tripCacheKey(externalTripID string) string {
	return fmt.Sprintf("trip_resolution:%s", externalTripID)
}

func (c *CachedTripResolver) Resolve(ctx context.Context, externalTripID string) (*ResolvedTrip, error) {
	cacheKey := tripCacheKey(externalTripID)

	cached, _ := c.cache.Get(ctx, cacheKey)

	if cached == unresolvedMarker {
		return nil, fmt.Errorf("%w: %s not in the schedule (cached)", ErrUnknownTrip, externalTripID)
	} else if cached != "" {
		var resolved ResolvedTrip
		if err := json.Unmarshal([]byte(cached), &resolved); err == nil && resolved.Trip != nil && resolved.Route != nil {
			return &resolved, nil
		}

		log.Warn().Str("tripid", externalTripID).Msg("Discarding unreadable cached trip resolution")
	}

	resolved, err := c.resolver.Resolve(ctx, externalTripID)
	if errors.Is(err, ErrUnknownTrip) {
		if cacheErr := c.cache.Set(ctx, cacheKey, unresolvedMarker); cacheErr != nil {
			log.Error().Err(cacheErr).Str("tripid", externalTripID).Msg("Failed to cache unknown trip")
		}
		return nil, err
	} else if err != nil {
		return nil, err
	}

	resolvedJSON, err := json.Marshal(resolved)
	if err != nil {
		return resolved, nil
	}

	if cacheErr := c.cache.Set(ctx, cacheKey, string(resolvedJSON)); cacheErr != nil {
		log.Error().Err(cacheErr).Str("tripid", externalTripID).Msg("Failed to cache trip resolution")
	}

	return resolved, nil
}
