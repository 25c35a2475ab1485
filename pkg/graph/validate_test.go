package graph

import (
	"testing"

	"github.com/paulmach/osm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roadgraph/pkg/geo"
)

func TestValidateEdgeLength(t *testing.T) {
	tests := []struct {
		name     string
		shape    []geo.Location
		problems int
		warnings int
	}{
		{"ordinary", []geo.Location{loc(1.30, 103.80), loc(1.31, 103.80)}, 0, 0},
		{"zero length", []geo.Location{loc(1.30, 103.80), loc(1.30, 103.80)}, 1, 0},
		{"beyond stored range", []geo.Location{loc(0, 0), loc(0, 50)}, 0, 1},
		{"longer than the equator", []geo.Location{loc(0, 0), loc(0, 179), loc(0, 0), loc(0, 179)}, 1, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := New()
			g.AddEdge(road(90, 1, 1, 2, TwoWay, tt.shape...))
			r := g.Validate(false)
			assert.Len(t, r.Problems, tt.problems, r.Problems)
			assert.Len(t, r.Warnings, tt.warnings, r.Warnings)
			assert.Equal(t, tt.problems == 0, r.Valid())
		})
	}
}

func TestValidateAfterFuseHasNoStrayVertex(t *testing.T) {
	g := New(WithMerge(true))
	border := loc(1.5, 103.5)
	cut := osm.NodeID(geo.SyntheticNodeID(border))

	g.AddEdge(fragment(78, 1, 1, cut, OneWay, loc(1.4, 103.5), border))
	g.AddEdge(fragment(78, 2, cut, 3, OneWay, border, loc(1.6, 103.5)))

	res := g.Finalize(false, false)
	assert.Equal(t, 1, res.DroppedVertices)
	assert.Equal(t, 2, res.Vertices)
	_, ok := g.Vertices.ForNode(cut)
	assert.False(t, ok)

	for _, node := range []osm.NodeID{1, 3} {
		v, ok := g.Vertices.ForNode(node)
		require.True(t, ok)
		assert.Equal(t, node, g.Vertices.NodeID(v))
	}
	r := g.Validate(false)
	assert.True(t, r.Valid(), r.Problems)
	assert.Empty(t, r.Warnings)
}
