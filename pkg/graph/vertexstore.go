package graph

import (
	"fmt"
	"iter"
	"maps"
	"math"
	"slices"
	"sync"

	"github.com/paulmach/osm"

	"roadgraph/pkg/adjacency"
	"roadgraph/pkg/column"
	"roadgraph/pkg/geo"
)

// Vertex column names.
const (
	colVertexLocation = "vertexLocation"
	colVertexNode     = "vertexNodeIdentifier"
	colVertexClipped  = "vertexIsClipped"
	colVertexGrade    = "vertexGradeSeparation"
)

type pendingVertex struct {
	node osm.NodeID
	loc  geo.Location
}

// VertexStore owns vertex attributes and adjacency.
type VertexStore struct {
	g *Graph

	location *column.Column[int64]
	node     *column.Column[int64]
	clipped  *column.BitColumn
	grade    *column.Column[int8]
	conn     *adjacency.Connectivity

	columns []persistent

	mu      sync.Mutex
	byNode  map[osm.NodeID]uint32
	pending map[uint32]pendingVertex

	count     uint32
	committed bool
}

func newVertexStore(g *Graph, estimate int) *VertexStore {
	s := &VertexStore{
		g:        g,
		location: column.New[int64](colVertexLocation, int64(geo.Null), estimate),
		node:     column.New[int64](colVertexNode, 0, estimate),
		clipped:  column.NewBits(colVertexClipped, 1, column.Reject, 0, estimate),
		grade:    column.New[int8](colVertexGrade, math.MinInt8, estimate),
		conn:     adjacency.NewConnectivity(estimate),
		pending:  map[uint32]pendingVertex{},
	}
	s.columns = []persistent{s.location, s.node, s.clipped, s.grade}
	return s
}

func (s *VertexStore) allocate() {
	for _, c := range s.columns {
		c.Allocate()
	}
	s.byNode = map[osm.NodeID]uint32{}
}

func (s *VertexStore) attach(a Archive) {
	for _, c := range s.columns {
		c.Attach(a)
	}
	s.conn.Attach(a)
	s.committed = true
	s.conn.FreeTemporaryData()
}

func (s *VertexStore) save(w Writer) error {
	for _, c := range s.columns {
		if err := c.Save(w); err != nil {
			return err
		}
	}
	return s.conn.Save(w)
}

func (s *VertexStore) ensureIndex() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.byNode != nil {
		return
	}
	s.byNode = make(map[osm.NodeID]uint32, s.count)
	for v := uint32(1); v <= s.count; v++ {
		n := osm.NodeID(s.node.Get(v))
		if _, seen := s.byNode[n]; !seen {
			s.byNode[n] = v
		}
	}
}

// TemporaryAddVertexes resolves or creates the vertices at both ends of a
// freshly stored edge and connects the edge between them. from and to are
// the edge's endpoint locations.
func (s *VertexStore) TemporaryAddVertexes(edge uint32, from, to geo.Location) {
	e := s.g.Edges
	vf := s.resolve(osm.NodeID(e.fromNode.Get(edge)), from)
	vt := s.resolve(osm.NodeID(e.toNode.Get(edge)), to)
	e.fromVertex.Set(edge, vf)
	e.toVertex.Set(edge, vt)
	s.temporaryConnectivity().TemporaryConnect(edge, vf, vt, e.isTwoWay(edge))
}

// TemporaryRemove detaches edge from its vertices. The vertices stay.
func (s *VertexStore) TemporaryRemove(edge uint32) {
	e := s.g.Edges
	s.temporaryConnectivity().TemporaryDisconnect(edge, e.fromVertex.Get(edge), e.toVertex.Get(edge), e.isTwoWay(edge))
}

func (s *VertexStore) temporaryConnectivity() *adjacency.Connectivity {
	if s.committed {
		panic("vertex store: adjacency already committed")
	}
	return s.conn
}

func (s *VertexStore) resolve(node osm.NodeID, loc geo.Location) uint32 {
	s.ensureIndex()
	if v, ok := s.byNode[node]; ok {
		return v
	}
	v := s.newVertex(node, loc)
	s.byNode[node] = v
	return v
}

func (s *VertexStore) newVertex(node osm.NodeID, loc geo.Location) uint32 {
	s.count++
	s.pending[s.count] = pendingVertex{node: node, loc: loc}
	return s.count
}

// AddVertexes writes every pending vertex record to the columns. Calling it
// again without new vertices does nothing.
func (s *VertexStore) AddVertexes() int {
	if len(s.pending) == 0 {
		return 0
	}
	for _, v := range slices.Sorted(maps.Keys(s.pending)) {
		p := s.pending[v]
		s.location.Set(v, int64(p.loc))
		s.node.Set(v, int64(p.node))
		s.clipped.SetBool(v, p.node < 0)
		if s.grade.IsNull(v) {
			s.grade.Set(v, 0)
		}
	}
	n := len(s.pending)
	clear(s.pending)
	return n
}

// commit drops vertices left without edges, writes pending vertices and
// compacts adjacency into CSR form. It returns the number of vertices
// dropped.
func (s *VertexStore) commit() int {
	dropped := s.dropOrphans()
	s.AddVertexes()
	s.conn.Commit(s.count)
	s.committed = true
	return dropped
}

// dropOrphans removes vertices no edge touches, such as the join vertex of
// two fused fragments. The highest vertex moves into each freed slot so
// indexes stay dense.
func (s *VertexStore) dropOrphans() int {
	s.ensureIndex()
	conn := s.temporaryConnectivity()
	var dropped int
	for v := uint32(1); v <= s.count; {
		if conn.TemporaryDegree(v) > 0 {
			v++
			continue
		}
		if n := s.NodeID(v); s.byNode[n] == v {
			delete(s.byNode, n)
		}
		last := s.count
		if v != last {
			s.moveVertex(last, v)
		}
		if _, ok := s.pending[last]; !ok {
			s.location.Set(last, int64(geo.Null))
			s.node.Set(last, 0)
		}
		if !s.grade.IsNull(last) {
			s.grade.Set(last, s.grade.Null())
		}
		delete(s.pending, last)
		s.count--
		dropped++
	}
	return dropped
}

// moveVertex renumbers vertex from as to, re-pointing its edges.
func (s *VertexStore) moveVertex(from, to uint32) {
	node := s.NodeID(from)
	s.pending[to] = pendingVertex{node: node, loc: s.Location(from)}
	s.grade.Set(to, s.grade.Get(from))
	if s.byNode[node] == from {
		s.byNode[node] = to
	}

	e := s.g.Edges
	conn := s.conn
	seen := map[uint32]bool{}
	for _, ref := range slices.Collect(conn.TemporaryEdges(from)) {
		if seen[ref.Index] {
			continue
		}
		seen[ref.Index] = true
		vf, vt := e.fromVertex.Get(ref.Index), e.toVertex.Get(ref.Index)
		twoWay := e.isTwoWay(ref.Index)
		conn.TemporaryDisconnect(ref.Index, vf, vt, twoWay)
		if vf == from {
			vf = to
			e.setVertex(ref.Index, true, to)
		}
		if vt == from {
			vt = to
			e.setVertex(ref.Index, false, to)
		}
		conn.TemporaryConnect(ref.Index, vf, vt, twoWay)
	}
}

func (s *VertexStore) Count() int { return int(s.count) }

func (s *VertexStore) check(v uint32) {
	if v == 0 || v > s.count {
		panic(fmt.Sprintf("vertex index %d out of range [1, %d]", v, s.count))
	}
}

// Location of vertex v, including vertices not yet flushed.
func (s *VertexStore) Location(v uint32) geo.Location {
	if p, ok := s.pending[v]; ok {
		return p.loc
	}
	return geo.Location(s.location.Get(v))
}

func (s *VertexStore) NodeID(v uint32) osm.NodeID {
	if p, ok := s.pending[v]; ok {
		return p.node
	}
	return osm.NodeID(s.node.Get(v))
}

// IsClipped reports whether the vertex was created at a clean-cut border.
func (s *VertexStore) IsClipped(v uint32) bool {
	if p, ok := s.pending[v]; ok {
		return p.node < 0
	}
	return s.clipped.GetBool(v)
}

// Grade is the vertex's grade-separation level, 0 at ground.
func (s *VertexStore) Grade(v uint32) int8 {
	g := s.grade.Get(v)
	if g == s.grade.Null() {
		return 0
	}
	return g
}

// ForNode returns the ground vertex created for an OSM node.
func (s *VertexStore) ForNode(node osm.NodeID) (uint32, bool) {
	s.ensureIndex()
	v, ok := s.byNode[node]
	return v, ok
}

// Committed adjacency queries. Out-of-range vertices panic.

func (s *VertexStore) In(v uint32) iter.Seq[EdgeRef] {
	s.check(v)
	return s.conn.In(v)
}

func (s *VertexStore) Out(v uint32) iter.Seq[EdgeRef] {
	s.check(v)
	return s.conn.Out(v)
}

func (s *VertexStore) TwoWay(v uint32) iter.Seq[EdgeRef] {
	s.check(v)
	return s.conn.TwoWay(v)
}

// All yields each two-way edge followed by its reverse, then in-edges, then
// out-edges.
func (s *VertexStore) All(v uint32) iter.Seq[EdgeRef] {
	s.check(v)
	if !s.committed {
		return s.conn.TemporaryEdges(v)
	}
	return s.conn.All(v)
}

func (s *VertexStore) Incoming(v uint32) iter.Seq[EdgeRef] {
	s.check(v)
	return s.conn.Incoming(v)
}

func (s *VertexStore) Outgoing(v uint32) iter.Seq[EdgeRef] {
	s.check(v)
	return s.conn.Outgoing(v)
}

func (s *VertexStore) InCount(v uint32) int {
	s.check(v)
	return s.conn.InCount(v)
}

func (s *VertexStore) OutCount(v uint32) int {
	s.check(v)
	return s.conn.OutCount(v)
}

func (s *VertexStore) TwoWayCount(v uint32) int {
	s.check(v)
	return s.conn.TwoWayCount(v)
}

// IsConnected reports whether an edge leads from a to b before commit.
func (s *VertexStore) IsConnected(a, b uint32) bool {
	s.check(a)
	s.check(b)
	return s.temporaryConnectivity().TemporaryIsConnected(a, b)
}
