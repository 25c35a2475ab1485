package ingest

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/osm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roadgraph/pkg/geo"
)

func square(minLon, minLat, maxLon, maxLat float64) orb.MultiPolygon {
	return orb.MultiPolygon{{{
		{minLon, minLat}, {maxLon, minLat}, {maxLon, maxLat}, {minLon, maxLat}, {minLon, minLat},
	}}}
}

func TestCleanCutCrossingTwice(t *testing.T) {
	nodes := []osm.NodeID{1, 2, 3}
	locs := []geo.Location{
		geo.NewLocation(0.5, -0.5),
		geo.NewLocation(0.5, 0.5),
		geo.NewLocation(0.5, 1.5),
	}
	chunks := cleanCut(chunk{nodes: nodes, locs: locs, cutTo: true}, square(0, 0, 1, 1))
	require.Len(t, chunks, 3)

	var inside []chunk
	for _, c := range chunks {
		if c.inside {
			inside = append(inside, c)
		}
	}
	require.Len(t, inside, 1)
	in := inside[0]
	assert.Less(t, int64(in.nodes[0]), int64(0))
	assert.Less(t, int64(in.nodes[len(in.nodes)-1]), int64(0))
	assert.Equal(t, geo.NewLocation(0.5, 0), in.locs[0])
	assert.Equal(t, geo.NewLocation(0.5, 1), in.locs[len(in.locs)-1])

	var order []osm.NodeID
	for _, c := range chunks {
		for _, n := range c.nodes {
			if n > 0 {
				order = append(order, n)
			}
		}
	}
	assert.Equal(t, nodes, order)

	// Neighbouring chunks share their border node.
	assert.Equal(t, chunks[0].nodes[len(chunks[0].nodes)-1], chunks[1].nodes[0])
	assert.Equal(t, chunks[1].nodes[len(chunks[1].nodes)-1], chunks[2].nodes[0])

	assert.False(t, chunks[0].cutFrom)
	assert.False(t, chunks[1].cutTo)
	assert.True(t, chunks[2].cutTo)
}

func TestCleanCutWithoutRegion(t *testing.T) {
	nodes := []osm.NodeID{1, 2}
	locs := []geo.Location{geo.NewLocation(0, 0), geo.NewLocation(5, 5)}
	chunks := cleanCut(chunk{nodes: nodes, locs: locs}, nil)
	require.Len(t, chunks, 1)
	assert.True(t, chunks[0].inside)
	assert.Equal(t, nodes, chunks[0].nodes)
}

func TestSections(t *testing.T) {
	c := chunk{
		nodes: []osm.NodeID{1, 2, 3, 4, 5},
		locs:  make([]geo.Location, 5),
	}
	junctions := map[osm.NodeID]bool{1: true, 3: true, 4: true}
	parts := c.sections(func(n osm.NodeID) bool { return junctions[n] })
	require.Len(t, parts, 3)
	assert.Equal(t, []osm.NodeID{1, 2, 3}, parts[0].nodes)
	assert.Equal(t, []osm.NodeID{3, 4}, parts[1].nodes)
	assert.Equal(t, []osm.NodeID{4, 5}, parts[2].nodes)
}

func TestSectionsKeepCutEnds(t *testing.T) {
	c := chunk{
		nodes:   []osm.NodeID{1, 2, 3},
		locs:    make([]geo.Location, 3),
		cutFrom: true,
		cutTo:   true,
	}
	parts := c.sections(func(n osm.NodeID) bool { return n == 2 })
	require.Len(t, parts, 2)
	assert.True(t, parts[0].cutFrom)
	assert.False(t, parts[0].cutTo)
	assert.False(t, parts[1].cutFrom)
	assert.True(t, parts[1].cutTo)
}

func TestResolveWay(t *testing.T) {
	known := map[osm.NodeID]geo.Location{
		1: geo.NewLocation(1, 103),
		2: geo.NewLocation(1.1, 103),
		3: geo.NewLocation(1.2, 103),
	}
	lookup := func(id osm.NodeID) (geo.Location, bool) {
		l, ok := known[id]
		return l, ok
	}
	wayOf := func(ids ...osm.NodeID) *osm.Way {
		w := &osm.Way{ID: 1}
		for _, id := range ids {
			w.Nodes = append(w.Nodes, osm.WayNode{ID: id})
		}
		return w
	}

	tests := []struct {
		name           string
		way            *osm.Way
		nodes          []osm.NodeID
		cutFrom, cutTo bool
		ok             bool
	}{
		{"complete", wayOf(1, 2, 3), []osm.NodeID{1, 2, 3}, false, false, true},
		{"interior gap", wayOf(1, 9, 3), []osm.NodeID{1, 3}, false, false, true},
		{"leading gap", wayOf(8, 9, 2, 3), []osm.NodeID{2, 3}, true, false, true},
		{"trailing gap", wayOf(1, 2, 9), []osm.NodeID{1, 2}, false, true, true},
		{"both ends missing", wayOf(8, 2, 9), []osm.NodeID{2}, true, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, ok := resolveWay(tt.way, lookup)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.nodes, c.nodes)
			assert.Equal(t, tt.cutFrom, c.cutFrom)
			assert.Equal(t, tt.cutTo, c.cutTo)
		})
	}
}

func TestDedupe(t *testing.T) {
	a, b, c := geo.NewLocation(1, 103), geo.NewLocation(1.1, 103), geo.NewLocation(1.2, 103)
	tests := []struct {
		name  string
		nodes []osm.NodeID
		locs  []geo.Location
		want  []osm.NodeID
	}{
		{"distinct", []osm.NodeID{1, 2, 3}, []geo.Location{a, b, c}, []osm.NodeID{1, 2, 3}},
		{"interior repeat", []osm.NodeID{1, 2, 3, 4}, []geo.Location{a, b, b, c}, []osm.NodeID{1, 2, 4}},
		{"repeated end", []osm.NodeID{1, 2, 3}, []geo.Location{a, b, b}, []osm.NodeID{1, 3}},
		{"single point", []osm.NodeID{1, 2}, []geo.Location{a, a}, []osm.NodeID{1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := chunk{nodes: tt.nodes, locs: tt.locs}.dedupe()
			assert.Equal(t, tt.want, got.nodes)
			assert.Len(t, got.locs, len(tt.want))
		})
	}
}
