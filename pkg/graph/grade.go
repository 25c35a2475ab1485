package graph

import (
	"cmp"
	"fmt"
	"maps"
	"slices"

	"go.uber.org/zap"
)

// GradeSeparate clones vertex for the given grade level and moves the
// listed edges onto the clone. The clone's location is the original
// perturbed by grade, and the moved edges' endpoint geometry follows it.
// It must run before adjacency is committed.
func (s *VertexStore) GradeSeparate(vertex uint32, grade int8, edges []EdgeRef) uint32 {
	s.check(vertex)
	conn := s.temporaryConnectivity()
	e := s.g.Edges

	clone := s.newVertex(s.NodeID(vertex), s.Location(vertex).Perturb(grade))
	s.grade.Set(clone, grade)

	moved := map[uint32]bool{}
	for _, ref := range edges {
		if moved[ref.Index] {
			continue
		}
		moved[ref.Index] = true
		from, to := e.fromVertex.Get(ref.Index), e.toVertex.Get(ref.Index)
		if from != vertex && to != vertex {
			panic(fmt.Sprintf("edge %d is not attached to vertex %d", ref.Index, vertex))
		}
		twoWay := e.isTwoWay(ref.Index)
		conn.TemporaryDisconnect(ref.Index, from, to, twoWay)
		if from == vertex {
			from = clone
			e.setVertex(ref.Index, true, clone)
		}
		if to == vertex {
			to = clone
			e.setVertex(ref.Index, false, clone)
		}
		conn.TemporaryConnect(ref.Index, from, to, twoWay)
		e.refreshEndpoints(ref.Index)
	}
	return clone
}

// SeparateGrades splits every vertex where more than two edges meet at
// different grades. Edges at the vertex's own grade stay; every other grade
// moves to its own clone. It returns the number of clones created.
func (s *VertexStore) SeparateGrades() int {
	e := s.g.Edges
	var clones int
	for v, n := uint32(1), s.count; v <= n; v++ {
		byGrade := map[int8][]EdgeRef{}
		seen := map[uint32]bool{}
		for ref := range s.conn.TemporaryEdges(v) {
			if seen[ref.Index] {
				continue
			}
			seen[ref.Index] = true
			fwd := EdgeRef{Index: ref.Index}
			if e.fromVertex.Get(ref.Index) == v {
				byGrade[e.FromGrade(fwd)] = append(byGrade[e.FromGrade(fwd)], fwd)
			}
			if e.toVertex.Get(ref.Index) == v && e.fromVertex.Get(ref.Index) != v {
				byGrade[e.ToGrade(fwd)] = append(byGrade[e.ToGrade(fwd)], fwd)
			}
		}
		if len(seen) <= 2 || len(byGrade) < 2 {
			continue
		}
		keep := groundGrade(slices.Collect(maps.Keys(byGrade)))
		for _, g := range slices.Sorted(maps.Keys(byGrade)) {
			if g == keep {
				continue
			}
			clone := s.GradeSeparate(v, g, byGrade[g])
			clones++
			s.g.log.Debug("grade separated vertex",
				zap.Uint32("vertex", v), zap.Uint32("clone", clone), zap.Int8("grade", g))
		}
	}
	return clones
}

// groundGrade picks the grade closest to ground, preferring the lower one
// on ties.
func groundGrade(grades []int8) int8 {
	return slices.MinFunc(grades, func(a, b int8) int {
		if c := cmp.Compare(abs8(a), abs8(b)); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})
}

func abs8(v int8) int16 {
	if v < 0 {
		return -int16(v)
	}
	return int16(v)
}
