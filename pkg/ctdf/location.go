package ctdf

import "math"

const earthRadiusMetres = 6371000.0

type Position struct {
	Latitude  float64 `groups:"basic" bson:"latitude" json:"latitude"`
	Longitude float64 `groups:"basic" bson:"longitude" json:"longitude"`
}

func (p Position) Equal(other Position) bool {
	return p.Latitude == other.Latitude && p.Longitude == other.Longitude
}

// Distance is the haversine distance in metres
func (p Position) Distance(other Position) float64 {
	lat1 := p.Latitude * math.Pi / 180
	lat2 := other.Latitude * math.Pi / 180
	deltaLat := (other.Latitude - p.Latitude) * math.Pi / 180
	deltaLon := (other.Longitude - p.Longitude) * math.Pi / 180

	a := math.Sin(deltaLat/2)*math.Sin(deltaLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(deltaLon/2)*math.Sin(deltaLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusMetres * c
}

// Within reports whether the position lies inside the bounding box
func (p Position) Within(minLon, minLat, maxLon, maxLat float64) bool {
	return p.Longitude >= minLon && p.Longitude <= maxLon &&
		p.Latitude >= minLat && p.Latitude <= maxLat
}
