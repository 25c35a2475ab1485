package graph

import (
	"testing"

	"github.com/paulmach/osm"
	"github.com/stretchr/testify/assert"
)

func TestStoreTurnRestriction(t *testing.T) {
	g := triangle(t)
	e := g.Edges
	route := []EdgeRef{e.Route(10)[0], e.Route(11)[0]}

	idx, created := e.StoreTurnRestriction(route, osm.Tag{Key: "restriction", Value: "no_right_turn"})
	assert.True(t, created)
	again, created := e.StoreTurnRestriction(route)
	assert.False(t, created)
	assert.Equal(t, idx, again)
	assert.Equal(t, 1, g.Relations.Count())

	r := g.Relations.Get(idx)
	assert.Equal(t, "restriction", r.Tags.Find("type"))
	assert.Equal(t, "no_right_turn", r.Tags.Find("restriction"))
	assert.Equal(t, "from", r.Members[0].Role)
	assert.Equal(t, "to", r.Members[1].Role)
	assert.Equal(t, route, r.Route())
	assert.Equal(t, int64(1), r.ID)

	assert.Equal(t, []uint32{idx}, e.Edge(route[0]).Relations())
	assert.Equal(t, []uint32{idx}, g.Relations.OfWay(11))
	assert.Empty(t, g.Relations.Of(e.Route(12)[0]))

	other, created := e.StoreTurnRestriction([]EdgeRef{route[1], e.Route(12)[0]})
	assert.True(t, created)
	assert.NotEqual(t, idx, other)

	assert.Panics(t, func() { e.StoreTurnRestriction(route[:1]) })
}

func TestRelationAdd(t *testing.T) {
	g := triangle(t)
	ref := g.Edges.Route(12)[0]
	idx := g.Relations.Add(Relation{
		ID:      900,
		Tags:    osm.Tags{{Key: "type", Value: "route"}, {Key: "route_name", Value: "SBS-12"}},
		Members: []Member{{Edge: ref}},
	})

	assert.Equal(t, int64(900), g.Relations.Get(idx).ID)
	assert.Equal(t, int64(901), g.Relations.NextIdentifier())
	assert.Equal(t, []uint32{idx}, g.Relations.Of(ref.Reverse()))
	assert.Panics(t, func() { g.Relations.Add(Relation{Members: []Member{{Edge: EdgeRef{Index: 77}}}}) })
	assert.Panics(t, func() { g.Relations.Get(5) })
}
