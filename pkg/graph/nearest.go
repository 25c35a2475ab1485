package graph

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/pkg/errors"

	"roadgraph/pkg/geo"
)

// ErrPointTooFar is returned when no edge lies within the snap radius.
var ErrPointTooFar = errors.New("point too far from road")

// Snap is a point projected onto the nearest edge.
type Snap struct {
	Ref      EdgeRef
	Segment  int     // index of the shape segment holding the projection
	Ratio    float64 // 0 at the segment start, 1 at its end
	Distance float64 // meters from the query point
	Location geo.Location
}

// Nearest projects p onto the closest forward edge within maxMeters.
// Ties keep the edge the index yields first.
func (g *Graph) Nearest(p orb.Point, maxMeters float64) (Snap, error) {
	dLat := geo.DegreesFor(maxMeters)
	dLon := dLat / math.Max(math.Cos(p.Lat()*math.Pi/180), 1e-6)
	search := orb.Bound{
		Min: orb.Point{p.Lon() - dLon, p.Lat() - dLat},
		Max: orb.Point{p.Lon() + dLon, p.Lat() + dLat},
	}
	edges, err := g.IntersectingEdges(search)
	if err != nil {
		return Snap{}, err
	}

	best := Snap{Distance: math.Inf(1)}
	for ref := range edges {
		shape := g.Edges.Shape(ref)
		for i := 1; i < len(shape); i++ {
			a, b := shape[i-1].Point(), shape[i].Point()
			dist, ratio := geo.ProjectToSegment(p, a, b)
			if dist < best.Distance {
				best = Snap{
					Ref:      ref,
					Segment:  i - 1,
					Ratio:    ratio,
					Distance: dist,
					Location: geo.NewLocation(a.Lat()+ratio*(b.Lat()-a.Lat()), a.Lon()+ratio*(b.Lon()-a.Lon())),
				}
			}
		}
	}
	if best.Distance > maxMeters {
		return Snap{}, ErrPointTooFar
	}
	return best, nil
}
