// Package geo holds the route geometry used by the analysis pipeline: line
// simplification, great-circle distance and waypoint sampling.
//
// Points are orb.Point values, which store (longitude, latitude).
package geo

import (
	"math"

	"github.com/paulmach/orb"

	"walkability/internal/types"
)

// EarthRadiusMeters is the mean Earth radius used for haversine distances.
const EarthRadiusMeters = 6371000.0

// Haversine returns the great-circle distance between a and b in meters.
func Haversine(a, b orb.Point) float64 {
	lat1 := deg2rad(a.Lat())
	lat2 := deg2rad(b.Lat())
	dLat := lat2 - lat1
	dLng := deg2rad(b.Lon() - a.Lon())

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)

	return 2 * EarthRadiusMeters * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// Length sums the haversine distance along ls.
func Length(ls orb.LineString) float64 {
	var total float64
	for i := 1; i < len(ls); i++ {
		total += Haversine(ls[i-1], ls[i])
	}
	return total
}

// Point converts a coordinate to an orb.Point.
func Point(c types.Coordinate) orb.Point {
	return orb.Point{c.Lng, c.Lat}
}

// LineString builds a line string from coordinates in traversal order.
func LineString(coords []types.Coordinate) orb.LineString {
	ls := make(orb.LineString, len(coords))
	for i, c := range coords {
		ls[i] = Point(c)
	}
	return ls
}

func deg2rad(d float64) float64 {
	return d * math.Pi / 180
}
