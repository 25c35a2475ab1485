package graph

import (
	"path/filepath"
	"slices"
	"testing"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/paulmach/osm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roadgraph/pkg/archive"
)

func TestSaveBeforeFinalize(t *testing.T) {
	g := triangle(t)
	err := g.Save(filepath.Join(t.TempDir(), "g.rg"))
	assert.ErrorIs(t, err, ErrNotCommitted)
}

func TestSaveLoad(t *testing.T) {
	g := triangle(t)
	named := road(14, 1, 3, 4, OneWay, loc(1.31, 103.81), loc(1.315, 103.815), loc(1.32, 103.82))
	named.Names = map[NameType][]string{OfficialName: {"Bukit Timah Road"}, AlternateName: {"BTR"}}
	named.Country = PackCountry("SG")
	named.Toll = true
	g.AddEdge(named)
	e := g.Edges
	restriction, _ := e.StoreTurnRestriction([]EdgeRef{e.Route(11)[0], e.Route(14)[0]})
	g.Finalize(true, false)

	path := filepath.Join(t.TempDir(), "g.rg")
	require.NoError(t, g.Save(path))
	assert.NotEqual(t, uuid.Nil, g.BuildID())

	loaded, err := Load(path)
	require.NoError(t, err)
	defer loaded.Close()

	assert.Equal(t, g.BuildID(), loaded.BuildID())
	assert.Equal(t, g.Stats(), loaded.Stats())
	assert.True(t, loaded.Committed())

	le := loaded.Edges
	for ref := range e.All() {
		got, ok := le.Lookup(e.ID(ref))
		require.True(t, ok)
		assert.Equal(t, ref, got)
		assert.Equal(t, e.Data(ref), le.Data(ref))
		assert.Equal(t, e.FromVertex(ref), le.FromVertex(ref))
	}

	ref := le.Route(14)[0]
	assert.Equal(t, []string{"Bukit Timah Road"}, le.Names(ref, OfficialName))
	assert.Equal(t, "SG", le.Country(ref).String())
	assert.Len(t, le.Shape(ref), 3)

	for v := uint32(1); v <= uint32(g.Vertices.Count()); v++ {
		assert.Equal(t, g.Vertices.Location(v), loaded.Vertices.Location(v))
		assert.Equal(t, slices.Collect(g.Vertices.All(v)), slices.Collect(loaded.Vertices.All(v)))
	}
	v, ok := loaded.Vertices.ForNode(osm.NodeID(4))
	require.True(t, ok)
	assert.Equal(t, loc(1.32, 103.82), loaded.Vertices.Location(v))

	assert.Equal(t, 1, loaded.Relations.Count())
	assert.Equal(t, []uint32{restriction}, loaded.Relations.Of(ref))
	assert.Equal(t, g.Relations.NextIdentifier(), loaded.Relations.NextIdentifier())

	idx, err := loaded.SpatialIndex()
	require.NoError(t, err)
	assert.Equal(t, 4, idx.Len())
	edges, err := loaded.IntersectingEdges(orb.Bound{Min: orb.Point{103.812, 1.312}, Max: orb.Point{103.83, 1.33}})
	require.NoError(t, err)
	assert.Equal(t, []EdgeRef{ref}, slices.Collect(edges))

	assert.True(t, loaded.Validate(false).Valid())
	assert.Panics(t, func() { loaded.AddEdge(named) })
}

func TestSaveLoadWithoutSpatialIndex(t *testing.T) {
	g := triangle(t)
	g.Finalize(false, false)
	path := filepath.Join(t.TempDir(), "g.rg")
	require.NoError(t, g.Save(path))

	r, err := archive.Open(path)
	require.NoError(t, err)
	assert.False(t, r.Has(spatialIndexSection))
	n, ok := r.Scalar(scalarForwardEdgeCount)
	assert.True(t, ok)
	assert.Equal(t, int64(3), n)
	require.NoError(t, r.Close())

	loaded, err := Load(path)
	require.NoError(t, err)
	defer loaded.Close()
	idx, err := loaded.SpatialIndex()
	require.NoError(t, err)
	assert.Equal(t, 3, idx.Len())
}

func TestLoadRejectsForeignArchive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "other.rg")
	w, err := archive.Create(path)
	require.NoError(t, err)
	require.NoError(t, w.Put("something", []byte{1}))
	require.NoError(t, w.Close())

	_, err = Load(path)
	assert.ErrorIs(t, err, ErrNotGraph)
}
