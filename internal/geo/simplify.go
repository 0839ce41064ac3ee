package geo

import (
	"math"

	"github.com/paulmach/orb"
)

// Simplify reduces ls with the Douglas-Peucker algorithm. Distances are planar
// in the (longitude, latitude) plane, so epsilon is expressed in degrees.
// Endpoints are always kept and the input is never modified.
func Simplify(ls orb.LineString, epsilon float64) orb.LineString {
	if len(ls) <= 2 {
		return ls.Clone()
	}
	return douglasPeucker(ls, epsilon)
}

func douglasPeucker(ls orb.LineString, epsilon float64) orb.LineString {
	if len(ls) <= 2 {
		return ls.Clone()
	}

	first, last := ls[0], ls[len(ls)-1]
	index, maxDist := 0, 0.0
	for i := 1; i < len(ls)-1; i++ {
		if d := perpendicularDistance(ls[i], first, last); d > maxDist {
			index, maxDist = i, d
		}
	}

	if maxDist <= epsilon {
		return orb.LineString{first, last}
	}

	left := douglasPeucker(ls[:index+1], epsilon)
	right := douglasPeucker(ls[index:], epsilon)

	// right[0] is the split point already ending left.
	return append(left[:len(left):len(left)], right[1:]...)
}

// perpendicularDistance is the distance from p to the infinite line through a
// and b. A zero-length chord yields zero.
func perpendicularDistance(p, a, b orb.Point) float64 {
	dx := b[0] - a[0]
	dy := b[1] - a[1]
	magSq := dx*dx + dy*dy
	if magSq == 0 {
		return 0
	}

	u := ((p[0]-a[0])*dx + (p[1]-a[1])*dy) / magSq
	ix := a[0] + u*dx
	iy := a[1] + u*dy

	return math.Hypot(p[0]-ix, p[1]-iy)
}
