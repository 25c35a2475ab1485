package adjacency

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fwd(i uint32) EdgeRef { return EdgeRef{Index: i, Dir: Forward} }
func rev(i uint32) EdgeRef { return EdgeRef{Index: i, Dir: Reverse} }

func TestEdgeRefPacking(t *testing.T) {
	for _, r := range []EdgeRef{fwd(1), rev(1), fwd(1<<31 - 1), rev(12345)} {
		assert.Equal(t, r, unpack(r.pack()))
	}
	assert.Equal(t, rev(4), fwd(4).Reverse())
	assert.Equal(t, fwd(4), fwd(4).Reverse().Reverse())
	assert.Panics(t, func() { fwd(1 << 31).pack() })
}

func TestTemporaryConnectOneWay(t *testing.T) {
	c := NewConnectivity(4)
	c.TemporaryConnect(1, 1, 2, false)

	assert.True(t, c.TemporaryIsConnected(1, 2))
	assert.False(t, c.TemporaryIsConnected(2, 1))
	assert.Equal(t, []EdgeRef{fwd(1)}, slices.Collect(c.TemporaryEdges(1)))
	assert.Equal(t, []EdgeRef{fwd(1)}, slices.Collect(c.TemporaryEdges(2)))

	c.Commit(2)
	assert.Equal(t, []EdgeRef{fwd(1)}, slices.Collect(c.Out(1)))
	assert.Empty(t, slices.Collect(c.In(1)))
	assert.Equal(t, []EdgeRef{fwd(1)}, slices.Collect(c.In(2)))
	assert.Equal(t, 1, c.OutCount(1))
	assert.Equal(t, 0, c.InCount(1))
}

func TestTemporaryConnectTwoWay(t *testing.T) {
	c := NewConnectivity(4)
	c.TemporaryConnect(1, 1, 2, true)

	assert.True(t, c.TemporaryIsConnected(1, 2))
	assert.True(t, c.TemporaryIsConnected(2, 1))

	c.Commit(2)
	assert.Equal(t, []EdgeRef{fwd(1)}, slices.Collect(c.TwoWay(1)))
	assert.Equal(t, []EdgeRef{rev(1)}, slices.Collect(c.TwoWay(2)))
	assert.Equal(t, []EdgeRef{fwd(1)}, slices.Collect(c.Outgoing(1)))
	assert.Equal(t, []EdgeRef{rev(1)}, slices.Collect(c.Incoming(1)))
	assert.Equal(t, []EdgeRef{rev(1)}, slices.Collect(c.Outgoing(2)))
	assert.Equal(t, []EdgeRef{fwd(1)}, slices.Collect(c.Incoming(2)))
}

func TestTemporaryDisconnect(t *testing.T) {
	c := NewConnectivity(4)
	c.TemporaryConnect(1, 1, 2, false)
	c.TemporaryConnect(2, 2, 3, true)
	c.TemporaryConnect(3, 1, 2, false)

	c.TemporaryDisconnect(1, 1, 2, false)
	assert.Equal(t, []EdgeRef{fwd(3)}, slices.Collect(c.TemporaryEdges(1)))
	assert.True(t, c.TemporaryIsConnected(1, 2), "edge 3 still links them")

	c.TemporaryDisconnect(2, 2, 3, true)
	assert.False(t, c.TemporaryIsConnected(3, 2))
	assert.Equal(t, 0, c.TemporaryDegree(3))

	// Freed nodes are reused and appended at the tail.
	c.TemporaryConnect(4, 1, 3, false)
	assert.Equal(t, []EdgeRef{fwd(3), fwd(4)}, slices.Collect(c.TemporaryEdges(1)))
}

// The "all edges" order is two-way refs each followed by their reverse,
// then in-edges, then out-edges, each group in insertion order.
func TestAllEdgesOrder(t *testing.T) {
	c := NewConnectivity(8)
	c.TemporaryConnect(1, 1, 2, false) // out of 1
	c.TemporaryConnect(2, 3, 1, false) // in of 1
	c.TemporaryConnect(3, 1, 4, true)  // two-way, stored forward at 1
	c.TemporaryConnect(4, 5, 1, true)  // two-way, stored reverse at 1
	c.TemporaryConnect(5, 6, 1, false) // in of 1
	c.TemporaryConnect(6, 1, 7, false) // out of 1

	want := []EdgeRef{
		fwd(3), rev(3),
		rev(4), fwd(4),
		fwd(2), fwd(5),
		fwd(1), fwd(6),
	}
	assert.Equal(t, want, slices.Collect(c.TemporaryEdges(1)))

	c.Commit(7)
	assert.Equal(t, want, slices.Collect(c.All(1)))
	assert.Equal(t, []EdgeRef{fwd(3), rev(4), fwd(1), fwd(6)}, slices.Collect(c.Outgoing(1)))
	assert.Equal(t, []EdgeRef{rev(3), fwd(4), fwd(2), fwd(5)}, slices.Collect(c.Incoming(1)))
	assert.Equal(t, 8, len(want))
	assert.Equal(t, 6, c.Degree(1))
}

func TestAllEdgesStopsEarly(t *testing.T) {
	c := NewConnectivity(2)
	c.TemporaryConnect(1, 1, 2, true)
	c.TemporaryConnect(2, 1, 2, false)
	c.Commit(2)

	var got []EdgeRef
	for r := range c.All(1) {
		got = append(got, r)
		if len(got) == 1 {
			break
		}
	}
	assert.Equal(t, []EdgeRef{fwd(1)}, got)
}

func TestConnectivityValidate(t *testing.T) {
	c := NewConnectivity(4)
	c.TemporaryConnect(1, 1, 2, false)
	c.Commit(3)
	warnings := c.Validate(3)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "vertex 3")
}

func TestConnectivitySaveLoad(t *testing.T) {
	sink := memSections{}
	c := NewConnectivity(4)
	c.TemporaryConnect(1, 1, 2, true)
	c.TemporaryConnect(2, 2, 3, false)
	c.Commit(3)
	require.NoError(t, c.Save(sink))

	loaded := NewConnectivity(0)
	loaded.Attach(sink)
	assert.Equal(t, slices.Collect(c.All(2)), slices.Collect(loaded.All(2)))
	assert.Equal(t, []EdgeRef{rev(1), fwd(2)}, slices.Collect(loaded.Outgoing(2)))
}
