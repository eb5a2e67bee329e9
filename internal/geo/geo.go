package geo

import (
	"errors"
	"math"
)

// ErrInvalidCoordinate is returned when a latitude, longitude or radius is
// outside its valid range.
var ErrInvalidCoordinate = errors.New("invalid coordinate")

// earthRadiusMeters is the mean earth radius used by the haversine formula.
const earthRadiusMeters = 6371000

// Coordinate is a WGS84 point in decimal degrees.
type Coordinate struct {
	Lat float64 `json:"latitude"`
	Lon float64 `json:"longitude"`
}

// Valid reports whether the coordinate lies within the WGS84 domain.
func (c Coordinate) Valid() bool {
	return c.Lat >= -90 && c.Lat <= 90 && c.Lon >= -180 && c.Lon <= 180
}

// Result is the outcome of a geofence evaluation.
type Result struct {
	DistanceMeters float64
	Inside         bool
}

// Evaluate computes the great-circle distance between center and point and
// decides whether point falls within radiusMeters of center. It has no side
// effects and never mutates its inputs.
func Evaluate(center, point Coordinate, radiusMeters float64) (Result, error) {
	if !center.Valid() || !point.Valid() || radiusMeters <= 0 {
		return Result{}, ErrInvalidCoordinate
	}
	d := haversine(center, point)
	return Result{DistanceMeters: d, Inside: d <= radiusMeters}, nil
}

// haversine returns the distance between two coordinates in meters.
func haversine(a, b Coordinate) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return earthRadiusMeters * c
}
