package ingest

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/paulmach/osm"

	"roadgraph/pkg/geo"
)

// chunk is a run of way nodes on one side of the region border. Nodes with
// negative identifiers are synthetic border nodes. cutFrom and cutTo mark
// ends where the input ran out of node data.
type chunk struct {
	nodes  []osm.NodeID
	locs   []geo.Location
	inside bool

	cutFrom, cutTo bool
}

func (c *chunk) add(id osm.NodeID, loc geo.Location) {
	c.nodes = append(c.nodes, id)
	c.locs = append(c.locs, loc)
}

func (c *chunk) distinct() int {
	n := 0
	for i, l := range c.locs {
		if i == 0 || l != c.locs[i-1] {
			n++
		}
	}
	return n
}

// resolveWay looks up the location of every way node. Nodes missing from
// the input are skipped; when they lead or trail the way, that end is cut.
// ok is false when neither end of the way resolves.
func resolveWay(w *osm.Way, lookup func(osm.NodeID) (geo.Location, bool)) (c chunk, ok bool) {
	c.inside = true
	for _, wn := range w.Nodes {
		if loc, found := lookup(wn.ID); found {
			c.add(wn.ID, loc)
		}
	}
	_, first := lookup(w.Nodes[0].ID)
	_, last := lookup(w.Nodes[len(w.Nodes)-1].ID)
	c.cutFrom, c.cutTo = !first, !last
	return c, first || last
}

// cleanCut splits a run where it crosses the region border. A synthetic
// node is placed on the border at each crossing; it ends one chunk and
// starts the next.
func cleanCut(run chunk, region orb.MultiPolygon) []chunk {
	if len(region) == 0 {
		run.inside = true
		return []chunk{run}
	}
	nodes, locs := run.nodes, run.locs
	inside := planar.MultiPolygonContains(region, locs[0].Point())
	cur := chunk{inside: inside, cutFrom: run.cutFrom}
	cur.add(nodes[0], locs[0])
	var chunks []chunk
	for i := 1; i < len(nodes); i++ {
		in := planar.MultiPolygonContains(region, locs[i].Point())
		if in != cur.inside {
			a, b := locs[i-1].Point(), locs[i].Point()
			p, ok := geo.FirstCrossing(a, b, region)
			if !ok {
				p = orb.Point{(a[0] + b[0]) / 2, (a[1] + b[1]) / 2}
			}
			at := geo.FromPoint(p)
			border := osm.NodeID(geo.SyntheticNodeID(at))
			cur.add(border, at)
			chunks = append(chunks, cur)
			cur = chunk{inside: in}
			cur.add(border, at)
		}
		cur.add(nodes[i], locs[i])
	}
	cur.cutTo = run.cutTo
	return append(chunks, cur)
}

// sections splits a chunk at every interior junction node.
func (c *chunk) sections(junction func(osm.NodeID) bool) []chunk {
	var out []chunk
	start := 0
	for i := 1; i < len(c.nodes)-1; i++ {
		if junction(c.nodes[i]) {
			out = append(out, chunk{nodes: c.nodes[start : i+1], locs: c.locs[start : i+1], inside: c.inside})
			start = i
		}
	}
	out = append(out, chunk{nodes: c.nodes[start:], locs: c.locs[start:], inside: c.inside})
	out[0].cutFrom = c.cutFrom
	out[len(out)-1].cutTo = c.cutTo
	return out
}

// dedupe drops consecutive nodes at the location of their predecessor. The
// last node survives in place of an interior duplicate so both end nodes
// are kept.
func (c chunk) dedupe() chunk {
	out := c
	out.nodes = []osm.NodeID{c.nodes[0]}
	out.locs = []geo.Location{c.locs[0]}
	last := len(c.nodes) - 1
	for i := 1; i <= last; i++ {
		k := len(out.locs) - 1
		if c.locs[i] != out.locs[k] {
			out.add(c.nodes[i], c.locs[i])
			continue
		}
		if i == last && k > 0 {
			out.nodes[k] = c.nodes[i]
		}
	}
	return out
}
