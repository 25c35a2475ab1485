package graph

import (
	"fmt"

	"github.com/paulmach/osm"

	"roadgraph/pkg/adjacency"
)

type (
	EdgeRef   = adjacency.EdgeRef
	Direction = adjacency.Direction
)

const (
	Forward = adjacency.Forward
	Reverse = adjacency.Reverse
)

// Edge identifiers reserve the low sequenceBits for the section number of
// the edge within its source way.
const (
	sequenceBits = 16
	maxSequence  = 1<<sequenceBits - 1
)

// EdgeID is the stable external identifier of a stored edge.
type EdgeID int64

// NewEdgeID combines a way identifier and a 1-based section number.
func NewEdgeID(way osm.WayID, seq int) EdgeID {
	if seq < 1 || seq > maxSequence {
		panic(fmt.Sprintf("edge sequence %d out of range", seq))
	}
	return EdgeID(int64(way)<<sequenceBits | int64(seq))
}

// Way is the source way the edge was sectioned from.
func (id EdgeID) Way() osm.WayID { return osm.WayID(int64(id) >> sequenceBits) }

// Sequence is the section number within the way.
func (id EdgeID) Sequence() int { return int(int64(id) & maxSequence) }

// DirectedEdgeID names a traversal of an edge by identifier.
type DirectedEdgeID struct {
	ID  EdgeID
	Dir Direction
}

func (d DirectedEdgeID) Reverse() DirectedEdgeID {
	return DirectedEdgeID{ID: d.ID, Dir: 1 - d.Dir}
}

// Signed is the external signed form: negative for the reverse traversal.
func (d DirectedEdgeID) Signed() int64 {
	if d.Dir == Reverse {
		return -int64(d.ID)
	}
	return int64(d.ID)
}

// FromSigned parses the external signed form.
func FromSigned(v int64) DirectedEdgeID {
	if v < 0 {
		return DirectedEdgeID{ID: EdgeID(-v), Dir: Reverse}
	}
	return DirectedEdgeID{ID: EdgeID(v), Dir: Forward}
}

func (d DirectedEdgeID) String() string { return fmt.Sprint(d.Signed()) }
