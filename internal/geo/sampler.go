package geo

import (
	"github.com/paulmach/orb"

	"walkability/internal/types"
)

// SamplingPolicy picks the waypoint spacing from the route length reported by
// the caller's routing provider.
type SamplingPolicy struct {
	ShortRouteThresholdMeters float64
	ShortRouteInterval        float64
	LongRouteInterval         float64
}

// Interval returns the sampling interval in meters for a route of the given
// length.
func (p SamplingPolicy) Interval(distanceMeters float64) float64 {
	if distanceMeters < p.ShortRouteThresholdMeters {
		return p.ShortRouteInterval
	}
	return p.LongRouteInterval
}

// Sample walks ls and emits a waypoint every time the accumulated haversine
// distance reaches interval. The first point is always seg_001 and the last
// point is always the final waypoint. Coverage fields are left zero.
func Sample(ls orb.LineString, interval float64) []types.Waypoint {
	if len(ls) == 0 {
		return nil
	}

	waypoints := []types.Waypoint{newWaypoint(1, ls[0])}
	lastEmitted := ls[0]

	var acc float64
	for i := 1; i < len(ls); i++ {
		acc += Haversine(ls[i-1], ls[i])
		if acc >= interval {
			waypoints = append(waypoints, newWaypoint(len(waypoints)+1, ls[i]))
			lastEmitted = ls[i]
			acc = 0
		}
	}

	if end := ls[len(ls)-1]; !end.Equal(lastEmitted) {
		waypoints = append(waypoints, newWaypoint(len(waypoints)+1, end))
	}

	return waypoints
}

func newWaypoint(n int, p orb.Point) types.Waypoint {
	return types.Waypoint{
		SegmentID: types.SegmentID(n),
		Lat:       p.Lat(),
		Lng:       p.Lon(),
	}
}
