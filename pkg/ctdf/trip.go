package ctdf

import "go.mongodb.org/mongo-driver/bson/primitive"

// Trip is the static schedule record a realtime trip id resolves to.
// Populated by the schedule import, read-only here.
type Trip struct {
	ID      primitive.ObjectID `bson:"_id" json:"id"`
	TripID  string             `bson:"trip_id" json:"tripId"`
	RouteID primitive.ObjectID `bson:"route_id" json:"routeId"`
}

type Route struct {
	ID      primitive.ObjectID `bson:"_id" json:"id"`
	RouteID string             `bson:"route_id" json:"routeId"`
}
