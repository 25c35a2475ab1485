package graph

import (
	"slices"

	"go.uber.org/zap"

	"roadgraph/pkg/geo"
)

// absorbed is a stored fragment consumed by a fuse. reversed is set when
// it was joined against its own direction.
type absorbed struct {
	index    uint32
	reversed bool
}

// onAdd stores d, first trying to fuse it with buffered fragments when the
// graph merges tiles and d was cut at a tile border. Relations on consumed
// fragments move to the fused edge.
func (s *EdgeStore) onAdd(d EdgeData) EdgeRef {
	if !s.g.merge || !(d.FromClipped || d.ToClipped) {
		return s.store(d)
	}
	var consumed []absorbed
	for d.FromClipped || d.ToClipped {
		fused, a, ok := s.fuse(&d)
		if !ok {
			break
		}
		consumed = append(consumed, a)
		d = fused
	}
	ref := s.store(d)
	if d.FromClipped || d.ToClipped {
		s.buffer(ref.Index, &d)
	}
	for _, a := range consumed {
		s.g.Relations.moveEdge(a.index, ref.Index, a.reversed)
	}
	return ref
}

// fuse joins d with a buffered fragment sharing one of d's clipped
// endpoints and removes that fragment. d itself is never reversed.
func (s *EdgeStore) fuse(d *EdgeData) (EdgeData, absorbed, bool) {
	for _, at := range d.clippedEnds() {
		for _, candidate := range s.dangling[at] {
			n := s.Data(EdgeRef{Index: candidate})
			fused, reversed, ok := join(d, &n, at)
			if !ok {
				continue
			}
			s.remove(candidate)
			s.g.log.Debug("fused clipped fragments",
				zap.Int64("edge", int64(d.ID)),
				zap.Int64("consumed", int64(n.ID)),
				zap.Stringer("at", at))
			return fused, absorbed{index: candidate, reversed: reversed}, true
		}
	}
	return EdgeData{}, absorbed{}, false
}

func (d *EdgeData) clippedEnds() []geo.Location {
	var ends []geo.Location
	if d.FromClipped {
		ends = append(ends, d.First())
	}
	if d.ToClipped {
		ends = append(ends, d.Last())
	}
	return ends
}

// join concatenates two fragments meeting at the clipped location at. The
// fragment that ends at the join comes first; when both start or both end
// there, n is reversed, which is only allowed for two-way roads.
func join(d, n *EdgeData, at geo.Location) (fused EdgeData, reversed, ok bool) {
	if d.RoadState != n.RoadState {
		return EdgeData{}, false, false
	}
	dEnds := d.ToClipped && d.Last() == at
	dStarts := d.FromClipped && d.First() == at
	nEnds := n.ToClipped && n.Last() == at
	nStarts := n.FromClipped && n.First() == at
	twoWay := d.RoadState == TwoWay

	var first, second EdgeData
	switch {
	case dEnds && nStarts:
		first, second = d.clone(), n.clone()
	case nEnds && dStarts:
		first, second = n.clone(), d.clone()
	case twoWay && dEnds && nEnds:
		first, second = d.clone(), n.clone()
		second.Reverse()
		reversed = true
	case twoWay && dStarts && nStarts:
		first, second = n.clone(), d.clone()
		first.Reverse()
		reversed = true
	default:
		return EdgeData{}, false, false
	}

	fused = first
	fused.Shape = append(slices.Clip(first.Shape), second.Shape[1:]...)
	fused.ToNode = second.ToNode
	fused.ToClipped = second.ToClipped
	fused.ToGrade = second.ToGrade
	return fused, reversed, true
}

func (s *EdgeStore) buffer(index uint32, d *EdgeData) {
	for _, at := range d.clippedEnds() {
		s.dangling[at] = append(s.dangling[at], index)
	}
}

// buffered reports whether index waits for a partner at location at.
func (s *EdgeStore) buffered(index uint32, at geo.Location) bool {
	return slices.Contains(s.dangling[at], index)
}

func (s *EdgeStore) unbuffer(index uint32) {
	shape := s.forwardShape(index)
	for _, at := range []geo.Location{shape[0], shape[len(shape)-1]} {
		list, ok := s.dangling[at]
		if !ok {
			continue
		}
		if rest := slices.DeleteFunc(list, func(i uint32) bool { return i == index }); len(rest) > 0 {
			s.dangling[at] = rest
		} else {
			delete(s.dangling, at)
		}
	}
}

// DanglingCount is the number of buffered fragment endpoints.
func (s *EdgeStore) DanglingCount() int {
	var n int
	for _, list := range s.dangling {
		n += len(list)
	}
	return n
}

// discardFragments removes every fragment still waiting for a partner.
func (s *EdgeStore) discardFragments() int {
	var indexes []uint32
	for _, list := range s.dangling {
		indexes = append(indexes, list...)
	}
	slices.Sort(indexes)
	indexes = slices.Compact(indexes)
	for _, index := range indexes {
		s.g.log.Warn("discarding unresolved clean-cut fragment",
			zap.Int64("edge", s.identifier.Get(index)))
		s.Remove(index)
	}
	return len(indexes)
}
