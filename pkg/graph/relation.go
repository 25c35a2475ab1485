package graph

import (
	"fmt"
	"slices"
	"sync"

	"github.com/paulmach/osm"
	"github.com/pkg/errors"
)

const relationsSection = "relations"

// Member is one edge of a relation with its role.
type Member struct {
	Edge EdgeRef `cbor:"1,keyasint"`
	Role string  `cbor:"2,keyasint"`
}

// Relation is a tagged group of edges, for example a turn restriction.
type Relation struct {
	ID      int64    `cbor:"1,keyasint"`
	Tags    osm.Tags `cbor:"2,keyasint"`
	Members []Member `cbor:"3,keyasint"`
}

// Route returns the member edges in order.
func (r Relation) Route() []EdgeRef {
	route := make([]EdgeRef, len(r.Members))
	for i, m := range r.Members {
		route[i] = m.Edge
	}
	return route
}

// RelationStore holds relations and the edge and way memberships derived
// from them.
type RelationStore struct {
	g *Graph

	mu        sync.Mutex
	relations []Relation // index 0 unused
	byEdge    map[uint32][]uint32
	byWay     map[osm.WayID][]uint32
	next      int64
	archive   Archive
	loaded    bool
}

func newRelationStore(g *Graph) *RelationStore {
	return &RelationStore{
		g:         g,
		relations: make([]Relation, 1),
		byEdge:    map[uint32][]uint32{},
		byWay:     map[osm.WayID][]uint32{},
		next:      1,
		loaded:    true,
	}
}

func (s *RelationStore) attach(a Archive) {
	s.archive, s.loaded = a, false
	if v, ok := a.Scalar(scalarNextRelationID); ok {
		s.next = v
	}
}

func (s *RelationStore) ensureLoaded() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loaded {
		return
	}
	s.loaded = true
	var stored []Relation
	found, err := s.archive.Value(relationsSection, &stored)
	if err != nil {
		s.g.log.Sugar().Errorf("loading relations: %v", err)
		return
	}
	if !found {
		return
	}
	for _, r := range stored {
		s.index(r)
	}
}

// index appends r and records its memberships. Callers hold mu.
func (s *RelationStore) index(r Relation) uint32 {
	s.relations = append(s.relations, r)
	index := uint32(len(s.relations) - 1)
	for _, m := range r.Members {
		if !slices.Contains(s.byEdge[m.Edge.Index], index) {
			s.byEdge[m.Edge.Index] = append(s.byEdge[m.Edge.Index], index)
		}
		way := EdgeID(s.g.Edges.identifier.Get(m.Edge.Index)).Way()
		if !slices.Contains(s.byWay[way], index) {
			s.byWay[way] = append(s.byWay[way], index)
		}
	}
	return index
}

// Add stores r, assigning an identifier when r.ID is zero, and attaches it
// to every member edge.
func (s *RelationStore) Add(r Relation) uint32 {
	s.ensureLoaded()
	for _, m := range r.Members {
		if !s.g.Edges.Valid(m.Edge) {
			panic(fmt.Sprintf("relation member %v is not a stored edge", m.Edge))
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.ID == 0 {
		r.ID = s.next
	}
	if r.ID >= s.next {
		s.next = r.ID + 1
	}
	return s.index(r)
}

// Get returns the relation at index.
func (s *RelationStore) Get(index uint32) Relation {
	s.ensureLoaded()
	if index == 0 || int(index) >= len(s.relations) {
		panic(fmt.Sprintf("relation index %d out of range", index))
	}
	return s.relations[index]
}

// Of returns the indexes of relations that have ref's edge as a member.
func (s *RelationStore) Of(ref EdgeRef) []uint32 {
	s.ensureLoaded()
	return slices.Clone(s.byEdge[ref.Index])
}

// OfWay returns the indexes of relations touching any edge of way.
func (s *RelationStore) OfWay(way osm.WayID) []uint32 {
	s.ensureLoaded()
	return slices.Clone(s.byWay[way])
}

func (s *RelationStore) Count() int {
	s.ensureLoaded()
	return len(s.relations) - 1
}

// NextIdentifier is the identifier the next unnamed relation receives.
func (s *RelationStore) NextIdentifier() int64 { return s.next }

// moveEdge hands the memberships of a fused fragment to the edge that
// absorbed it. When the fragment was joined reversed, member directions
// flip.
func (s *RelationStore) moveEdge(from, to uint32, reversed bool) {
	s.ensureLoaded()
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ri := range s.byEdge[from] {
		r := &s.relations[ri]
		members := r.Members[:0]
		for _, m := range r.Members {
			if m.Edge.Index == from {
				m.Edge.Index = to
				if reversed {
					m.Edge = m.Edge.Reverse()
				}
			}
			if !slices.Contains(members, m) {
				members = append(members, m)
			}
		}
		r.Members = members
		if !slices.Contains(s.byEdge[to], ri) {
			s.byEdge[to] = append(s.byEdge[to], ri)
		}
		s.unlinkWays(ri, from)
		way := EdgeID(s.g.Edges.identifier.Get(to)).Way()
		if !slices.Contains(s.byWay[way], ri) {
			s.byWay[way] = append(s.byWay[way], ri)
		}
	}
	delete(s.byEdge, from)
}

// dropEdge removes a deleted edge from its relations. A turn restriction
// missing any edge of its route no longer means anything, so it loses all
// members.
func (s *RelationStore) dropEdge(index uint32) {
	s.ensureLoaded()
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ri := range slices.Clone(s.byEdge[index]) {
		r := &s.relations[ri]
		dropped := r.Members
		if r.Tags.Find("type") == "restriction" {
			r.Members = nil
		} else {
			r.Members = slices.DeleteFunc(slices.Clone(r.Members), func(m Member) bool {
				return m.Edge.Index == index
			})
		}
		for _, m := range dropped {
			still := slices.ContainsFunc(r.Members, func(k Member) bool { return k.Edge.Index == m.Edge.Index })
			if !still {
				s.unlinkEdge(ri, m.Edge.Index)
				s.unlinkWays(ri, m.Edge.Index)
			}
		}
	}
	delete(s.byEdge, index)
}

// unlinkEdge removes relation ri from the memberships of edge index.
// Callers hold mu.
func (s *RelationStore) unlinkEdge(ri, index uint32) {
	s.byEdge[index] = slices.DeleteFunc(s.byEdge[index], func(x uint32) bool { return x == ri })
	if len(s.byEdge[index]) == 0 {
		delete(s.byEdge, index)
	}
}

// unlinkWays drops relation ri from the way of edge index unless another
// member still lies on that way. Callers hold mu.
func (s *RelationStore) unlinkWays(ri, index uint32) {
	way := EdgeID(s.g.Edges.identifier.Get(index)).Way()
	for _, m := range s.relations[ri].Members {
		if EdgeID(s.g.Edges.identifier.Get(m.Edge.Index)).Way() == way {
			return
		}
	}
	s.byWay[way] = slices.DeleteFunc(s.byWay[way], func(x uint32) bool { return x == ri })
	if len(s.byWay[way]) == 0 {
		delete(s.byWay, way)
	}
}

// StoreTurnRestriction records a restriction over route unless one with the
// identical route already exists. It returns the relation's index and
// whether it was created.
func (s *RelationStore) StoreTurnRestriction(route []EdgeRef, tags ...osm.Tag) (uint32, bool) {
	if len(route) < 2 {
		panic("turn restriction route needs at least two edges")
	}
	s.ensureLoaded()
	for _, ref := range route {
		for _, ri := range s.byEdge[ref.Index] {
			r := &s.relations[ri]
			if r.Tags.Find("type") == "restriction" && slices.Equal(r.Route(), route) {
				return ri, false
			}
		}
	}
	members := make([]Member, len(route))
	for i, ref := range route {
		role := "via"
		switch i {
		case 0:
			role = "from"
		case len(route) - 1:
			role = "to"
		}
		members[i] = Member{Edge: ref, Role: role}
	}
	rel := Relation{Tags: append(osm.Tags{{Key: "type", Value: "restriction"}}, tags...), Members: members}
	return s.Add(rel), true
}

// StoreTurnRestriction is the edge store's entry point for restrictions.
func (s *EdgeStore) StoreTurnRestriction(route []EdgeRef, tags ...osm.Tag) (uint32, bool) {
	return s.g.Relations.StoreTurnRestriction(route, tags...)
}

func (s *RelationStore) save(w Writer) error {
	s.ensureLoaded()
	w.SetScalar(scalarRelationCount, int64(len(s.relations)-1))
	w.SetScalar(scalarNextRelationID, s.next)
	if len(s.relations) == 1 {
		return nil
	}
	return errors.Wrap(w.PutValue(relationsSection, s.relations[1:]), "save relations")
}
