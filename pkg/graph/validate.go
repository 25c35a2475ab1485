package graph

import (
	"fmt"
	"math"

	"roadgraph/pkg/geo"
)

// Report collects validation findings. Problems make the graph invalid;
// warnings are informational.
type Report struct {
	Problems []string
	Warnings []string
}

func (r Report) Valid() bool { return len(r.Problems) == 0 }

func (r *Report) problem(format string, args ...any) {
	r.Problems = append(r.Problems, fmt.Sprintf(format, args...))
}

func (r *Report) warn(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

type errColumn interface {
	Name() string
	Err() error
}

// Validate checks the stored edges before the graph is saved. With
// requireCountry, edges without a country are reported as warnings.
func (g *Graph) Validate(requireCountry bool) Report {
	var r Report
	e := g.Edges

	if want := int(e.high) - e.removedCount; e.forwardCount != want {
		r.problem("forward edge count %d, stored %d", e.forwardCount, want)
	}
	for ref := range e.Forward() {
		i := ref.Index
		id := e.identifier.Get(i)
		if e.boundsBL.IsNull(i) || e.boundsTR.IsNull(i) {
			r.problem("edge %d: missing bounds", id)
		}
		if e.fromNode.IsNull(i) || e.toNode.IsNull(i) {
			r.problem("edge %d: missing node identifier", id)
		}
		if e.fromVertex.IsNull(i) || e.toVertex.IsNull(i) {
			r.problem("edge %d: missing vertex", id)
		}
		// The stored millimeter length saturates, so check the geometry.
		if m := geo.LengthMeters(e.LineString(ref)); m <= 0 || m > geo.EarthCircumferenceMeters {
			r.problem("edge %d: length %.1fm out of range", id, m)
		} else if e.length.Get(i) == math.MaxUint32 {
			r.warn("edge %d: length %.1fm exceeds the stored range", id, m)
		}
		if requireCountry && Country(e.country.Get(i)) == 0 {
			r.warn("edge %d: no country", id)
		}
	}

	for _, c := range []errColumn{e.identifier, e.boundsBL, e.boundsTR, e.fromVertex, e.toVertex, e.length} {
		if err := c.Err(); err != nil {
			r.problem("column %s: %v", c.Name(), err)
		}
	}

	if g.Committed() {
		r.Warnings = append(r.Warnings, g.Vertices.conn.Validate(g.Vertices.count)...)
		if n, largest := Components(g); n > 1 {
			r.warn("%d disconnected components, largest has %d vertices", n, largest)
		}
	}
	return r
}
