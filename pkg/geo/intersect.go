package geo

import (
	"math"

	"github.com/paulmach/orb"
)

// SegmentIntersection returns the point where segment a1-a2 crosses segment
// b1-b2 and its parameter t along a (0 at a1, 1 at a2). Collinear and
// parallel segments report no intersection.
func SegmentIntersection(a1, a2, b1, b2 orb.Point) (orb.Point, float64, bool) {
	dax, day := a2[0]-a1[0], a2[1]-a1[1]
	dbx, dby := b2[0]-b1[0], b2[1]-b1[1]

	denom := dax*dby - day*dbx
	if math.Abs(denom) < 1e-18 {
		return orb.Point{}, 0, false
	}

	ex, ey := b1[0]-a1[0], b1[1]-a1[1]
	t := (ex*dby - ey*dbx) / denom
	u := (ex*day - ey*dax) / denom
	if t < 0 || t > 1 || u < 0 || u > 1 {
		return orb.Point{}, 0, false
	}
	return orb.Point{a1[0] + t*dax, a1[1] + t*day}, t, true
}

// FirstCrossing finds the border crossing of segment a1-a2 closest to a1
// among all rings of the multipolygon.
func FirstCrossing(a1, a2 orb.Point, region orb.MultiPolygon) (orb.Point, bool) {
	best := math.Inf(1)
	var hit orb.Point
	for _, poly := range region {
		for _, ring := range poly {
			for i := 1; i < len(ring); i++ {
				p, t, ok := SegmentIntersection(a1, a2, ring[i-1], ring[i])
				if ok && t < best {
					best, hit = t, p
				}
			}
		}
	}
	return hit, !math.IsInf(best, 1)
}
