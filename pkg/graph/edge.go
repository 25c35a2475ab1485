package graph

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/osm"

	"roadgraph/pkg/geo"
)

// Edge is a (store, traversal) handle. It holds no attribute state of its
// own; every accessor reads through the store.
type Edge struct {
	store *EdgeStore
	ref   EdgeRef
}

func (e Edge) Ref() EdgeRef          { return e.ref }
func (e Edge) ID() DirectedEdgeID    { return e.store.ID(e.ref) }
func (e Edge) From() uint32          { return e.store.FromVertex(e.ref) }
func (e Edge) To() uint32            { return e.store.ToVertex(e.ref) }
func (e Edge) FromNode() osm.NodeID  { return e.store.FromNode(e.ref) }
func (e Edge) ToNode() osm.NodeID    { return e.store.ToNode(e.ref) }
func (e Edge) Shape() []geo.Location { return e.store.Shape(e.ref) }
func (e Edge) RoadState() RoadState  { return e.store.RoadState(e.ref) }

func (e Edge) LineString() orb.LineString { return e.store.LineString(e.ref) }

// Reversed returns the opposite traversal. It panics for one-way edges.
func (e Edge) Reversed() Edge { return e.store.Edge(e.ref.Reverse()) }

func (e Edge) IsForward() bool { return e.ref.Dir == Forward }

func (e Edge) LengthMeters() float64 { return e.store.LengthMeters(e.ref) }

func (e Edge) Names(t NameType) []string { return e.store.Names(e.ref, t) }

// Relations returns the indexes of relations the edge belongs to.
func (e Edge) Relations() []uint32 { return e.store.g.Relations.Of(e.ref) }

func (e Edge) Data() EdgeData { return e.store.Data(e.ref) }
