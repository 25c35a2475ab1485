package graph

import (
	"slices"

	"github.com/paulmach/orb"
	"github.com/paulmach/osm"

	"roadgraph/pkg/geo"
)

// EdgeData is a fully materialized edge as produced by ingestion and
// accepted by Graph.AddEdge.
type EdgeData struct {
	ID    EdgeID
	Shape []geo.Location

	FromNode, ToNode osm.NodeID
	// FromClipped and ToClipped mark endpoints cut at a border rather than
	// ending at a real intersection.
	FromClipped, ToClipped bool

	RoadState       RoadState
	RoadType        RoadType
	SubType         RoadSubType
	FunctionalClass FunctionalClass
	Surface         Surface
	Bridge          BridgeType
	Lanes           uint8
	HOVLanes        uint8
	SpeedLimit      uint8 // km/h
	FreeFlow        SpeedCategory
	Country         Country

	Closed            bool
	Toll              bool
	UnderConstruction bool

	FromGrade, ToGrade int8

	Names map[NameType][]string
}

// Reverse flips the edge in place: geometry, endpoints and grades.
func (d *EdgeData) Reverse() {
	slices.Reverse(d.Shape)
	d.FromNode, d.ToNode = d.ToNode, d.FromNode
	d.FromClipped, d.ToClipped = d.ToClipped, d.FromClipped
	d.FromGrade, d.ToGrade = d.ToGrade, d.FromGrade
}

func (d *EdgeData) First() geo.Location { return d.Shape[0] }
func (d *EdgeData) Last() geo.Location  { return d.Shape[len(d.Shape)-1] }

// LineString converts the shape to orb geometry.
func (d *EdgeData) LineString() orb.LineString {
	ls := make(orb.LineString, len(d.Shape))
	for i, l := range d.Shape {
		ls[i] = l.Point()
	}
	return ls
}

func (d *EdgeData) clone() EdgeData {
	c := *d
	c.Shape = slices.Clone(d.Shape)
	if d.Names != nil {
		c.Names = make(map[NameType][]string, len(d.Names))
		for k, v := range d.Names {
			c.Names[k] = slices.Clone(v)
		}
	}
	return c
}
