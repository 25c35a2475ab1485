package ingest

import (
	"slices"

	"github.com/paulmach/osm"
	"go.uber.org/zap"

	"roadgraph/pkg/graph"
)

func (l *Loader) addRelation(r *osm.Relation) {
	if l.opts.RelationFilter == nil || !l.opts.RelationFilter(r) {
		l.input.Relations.Filtered++
		return
	}
	if r.Tags.Find("type") == "boundary" || r.Tags.Find("boundary") == "administrative" {
		l.input.Relations.Filtered++
		return
	}
	if r.Tags.Find("type") == "restriction" {
		l.addRestriction(r)
		return
	}
	l.addGeneral(r)
}

type restriction struct {
	from, to osm.WayID
	via      osm.NodeID
	viaWays  []osm.WayID
}

func parseRestriction(r *osm.Relation) (restriction, bool) {
	var res restriction
	for _, m := range r.Members {
		switch {
		case m.Role == "from" && m.Type == osm.TypeWay:
			res.from = osm.WayID(m.Ref)
		case m.Role == "to" && m.Type == osm.TypeWay:
			res.to = osm.WayID(m.Ref)
		case m.Role == "via" && m.Type == osm.TypeNode:
			res.via = osm.NodeID(m.Ref)
		case m.Role == "via" && m.Type == osm.TypeWay:
			res.viaWays = append(res.viaWays, osm.WayID(m.Ref))
		}
	}
	ok := res.from != 0 && res.to != 0 && (res.via != 0) != (len(res.viaWays) > 0)
	return res, ok
}

func (l *Loader) addRestriction(r *osm.Relation) {
	res, ok := parseRestriction(r)
	if !ok {
		l.log.Debug("malformed turn restriction", zap.Int64("relation", int64(r.ID)))
		l.input.Relations.Discarded++
		return
	}
	route, ok := l.restrictionRoute(res)
	if !ok {
		l.log.Debug("turn restriction does not match the graph", zap.Int64("relation", int64(r.ID)))
		l.input.Relations.Discarded++
		return
	}
	l.input.Relations.Accepted++

	var tags osm.Tags
	for _, t := range filterTags(r.Tags, l.opts.TagFilter) {
		if t.Key != "type" {
			tags = append(tags, t)
		}
	}
	if _, created := l.g.Edges.StoreTurnRestriction(route, tags...); created {
		l.input.EdgeRelations.Added++
	} else {
		l.input.EdgeRelations.Discarded++
	}
}

// restrictionRoute resolves a restriction to the traversals it forbids:
// the section of the from way entering the via, any via ways end to end,
// and the section of the to way leaving it.
func (l *Loader) restrictionRoute(res restriction) ([]graph.EdgeRef, bool) {
	e := l.g.Edges
	if res.via != 0 {
		from, ok := l.traversal(res.from, func(r graph.EdgeRef) bool { return e.ToNode(r) == res.via })
		if !ok {
			return nil, false
		}
		to, ok := l.traversal(res.to, func(r graph.EdgeRef) bool { return e.FromNode(r) == res.via })
		return []graph.EdgeRef{from, to}, ok
	}

	for _, from := range l.traversals(res.from) {
		route := []graph.EdgeRef{from}
		at, ok := e.ToNode(from), true
		for _, w := range res.viaWays {
			var path []graph.EdgeRef
			if path, at, ok = l.walk(w, at); !ok {
				break
			}
			route = append(route, path...)
		}
		if !ok {
			continue
		}
		if to, ok := l.traversal(res.to, func(r graph.EdgeRef) bool { return e.FromNode(r) == at }); ok {
			return append(route, to), true
		}
	}
	return nil, false
}

// traversals lists the edges of way in every direction they can be driven.
func (l *Loader) traversals(way osm.WayID) []graph.EdgeRef {
	var out []graph.EdgeRef
	for _, ref := range l.g.Edges.Route(way) {
		out = append(out, ref)
		if l.g.Edges.RoadState(ref) == graph.TwoWay {
			out = append(out, ref.Reverse())
		}
	}
	return out
}

func (l *Loader) traversal(way osm.WayID, match func(graph.EdgeRef) bool) (graph.EdgeRef, bool) {
	for _, ref := range l.traversals(way) {
		if match(ref) {
			return ref, true
		}
	}
	return graph.EdgeRef{}, false
}

// walk drives the whole of way starting at node start, in whichever section
// order connects.
func (l *Loader) walk(way osm.WayID, start osm.NodeID) ([]graph.EdgeRef, osm.NodeID, bool) {
	route := l.g.Edges.Route(way)
	if path, end, ok := l.chain(route, start); ok {
		return path, end, true
	}
	slices.Reverse(route)
	return l.chain(route, start)
}

func (l *Loader) chain(refs []graph.EdgeRef, at osm.NodeID) ([]graph.EdgeRef, osm.NodeID, bool) {
	e := l.g.Edges
	path := make([]graph.EdgeRef, 0, len(refs))
	for _, ref := range refs {
		switch {
		case e.FromNode(ref) == at:
		case e.RoadState(ref) == graph.TwoWay && e.ToNode(ref) == at:
			ref = ref.Reverse()
		default:
			return nil, 0, false
		}
		path = append(path, ref)
		at = e.ToNode(ref)
	}
	return path, at, len(path) > 0
}

// addGeneral attaches a relation to every edge of its way members.
func (l *Loader) addGeneral(r *osm.Relation) {
	var members []graph.Member
	for _, m := range r.Members {
		if m.Type != osm.TypeWay {
			continue
		}
		route := l.g.Edges.Route(osm.WayID(m.Ref))
		if len(route) == 0 {
			l.log.Warn("relation references a missing way",
				zap.Int64("relation", int64(r.ID)), zap.Int64("way", m.Ref))
			continue
		}
		for _, ref := range route {
			members = append(members, graph.Member{Edge: ref, Role: m.Role})
		}
	}
	if len(members) == 0 {
		l.input.Relations.Discarded++
		l.input.EdgeRelations.Discarded++
		return
	}
	l.input.Relations.Accepted++

	tags := filterTags(r.Tags, l.opts.TagFilter)
	if network, ref := r.Tags.Find("network"), r.Tags.Find("ref"); network != "" && ref != "" {
		tags = append(slices.Clone(tags), osm.Tag{Key: "route_name", Value: network + "-" + ref})
	}
	l.g.Relations.Add(graph.Relation{ID: int64(r.ID), Tags: tags, Members: members})
	l.input.EdgeRelations.Added++
}
