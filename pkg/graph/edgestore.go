package graph

import (
	"fmt"
	"iter"
	"math"
	"slices"
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/osm"
	"go.uber.org/zap"

	"roadgraph/pkg/adjacency"
	"roadgraph/pkg/column"
	"roadgraph/pkg/geo"
)

// Edge column names. Archives are read by name, so these must stay stable.
const (
	colIdentifier        = "identifier"
	colRoadShape         = "roadShape"
	colBoundsBottomLeft  = "boundsBottomLeft"
	colBoundsTopRight    = "boundsTopRight"
	colRoadType          = "roadType"
	colRoadSubType       = "roadSubType"
	colFunctionalClass   = "functionalClass"
	colSurface           = "surface"
	colBridgeType        = "bridgeType"
	colLaneCount         = "laneCount"
	colSpeedLimit        = "speedLimit"
	colFreeFlowSpeed     = "freeFlowSpeedCategory"
	colHOVLaneCount      = "hovLaneCount"
	colCountry           = "country"
	colRoadState         = "roadState"
	colClosed            = "isClosed"
	colToll              = "isToll"
	colUnderConstruction = "isUnderConstruction"
	colRemoved           = "removed"
	colFromVertex        = "fromVertex"
	colToVertex          = "toVertex"
	colFromNode          = "fromNodeIdentifier"
	colToNode            = "toNodeIdentifier"
	colFromGrade         = "fromGradeSeparation"
	colToGrade           = "toGradeSeparation"
	colLength            = "lengthMillimeters"
)

type persistent interface {
	Allocate()
	Attach(column.Source)
	Save(column.Sink) error
}

// EdgeStore owns the per-edge columns. Edges are addressed by EdgeRef; only
// the forward traversal is stored.
type EdgeStore struct {
	g *Graph

	identifier      *column.Column[int64]
	shape           *adjacency.ListStore[int64]
	boundsBL        *column.Column[int64]
	boundsTR        *column.Column[int64]
	roadType        *column.Column[uint8]
	roadSubType     *column.Column[uint8]
	surface         *column.Column[uint8]
	speedLimit      *column.Column[uint8]
	country         *column.Column[int32]
	functionalClass *column.BitColumn
	bridgeType      *column.BitColumn
	laneCount       *column.BitColumn
	freeFlow        *column.BitColumn
	hovLanes        *column.BitColumn
	roadState       *column.BitColumn
	closed          *column.BitColumn
	toll            *column.BitColumn
	construction    *column.BitColumn
	removed         *column.BitColumn
	fromVertex      *column.Column[uint32]
	toVertex        *column.Column[uint32]
	fromNode        *column.Column[int64]
	toNode          *column.Column[int64]
	fromGrade       *column.Column[int8]
	toGrade         *column.Column[int8]
	length          *column.Column[uint32]
	names           *nameStore

	columns []persistent

	mu       sync.Mutex
	byID     map[EdgeID]uint32
	byWay    map[osm.WayID][]uint32
	dangling map[geo.Location][]uint32

	high         uint32
	forwardCount int
	edgeCount    int
	removedCount int
}

func newEdgeStore(g *Graph, estimate int) *EdgeStore {
	s := &EdgeStore{
		g:               g,
		identifier:      column.New[int64](colIdentifier, 0, estimate),
		shape:           adjacency.NewListStore[int64](colRoadShape, estimate),
		boundsBL:        column.New[int64](colBoundsBottomLeft, int64(geo.Null), estimate),
		boundsTR:        column.New[int64](colBoundsTopRight, int64(geo.Null), estimate),
		roadType:        column.New[uint8](colRoadType, 0, estimate),
		roadSubType:     column.New[uint8](colRoadSubType, 0, estimate),
		surface:         column.New[uint8](colSurface, 0, estimate),
		speedLimit:      column.New[uint8](colSpeedLimit, 0, estimate),
		country:         column.New[int32](colCountry, 0, estimate),
		functionalClass: column.NewBits(colFunctionalClass, 3, column.Clamp, uint64(NullFunctionalClass), estimate),
		bridgeType:      column.NewBits(colBridgeType, 3, column.Reject, 0, estimate),
		laneCount:       column.NewBits(colLaneCount, 4, column.Clamp, 0, estimate),
		freeFlow:        column.NewBits(colFreeFlowSpeed, 4, column.Clamp, 0, estimate),
		hovLanes:        column.NewBits(colHOVLaneCount, 3, column.Clamp, 0, estimate),
		roadState:       column.NewBits(colRoadState, 2, column.Reject, 0, estimate),
		closed:          column.NewBits(colClosed, 1, column.Reject, 0, estimate),
		toll:            column.NewBits(colToll, 1, column.Reject, 0, estimate),
		construction:    column.NewBits(colUnderConstruction, 1, column.Reject, 0, estimate),
		removed:         column.NewBits(colRemoved, 1, column.Reject, 0, estimate),
		fromVertex:      column.New[uint32](colFromVertex, 0, estimate),
		toVertex:        column.New[uint32](colToVertex, 0, estimate),
		fromNode:        column.New[int64](colFromNode, 0, estimate),
		toNode:          column.New[int64](colToNode, 0, estimate),
		fromGrade:       column.New[int8](colFromGrade, math.MinInt8, estimate),
		toGrade:         column.New[int8](colToGrade, math.MinInt8, estimate),
		length:          column.New[uint32](colLength, 0, estimate),
		names:           newNameStore(estimate),
		dangling:        map[geo.Location][]uint32{},
	}
	s.columns = []persistent{
		s.identifier, s.shape, s.boundsBL, s.boundsTR, s.roadType, s.roadSubType,
		s.surface, s.speedLimit, s.country, s.functionalClass, s.bridgeType,
		s.laneCount, s.freeFlow, s.hovLanes, s.roadState, s.closed, s.toll,
		s.construction, s.removed, s.fromVertex, s.toVertex, s.fromNode,
		s.toNode, s.fromGrade, s.toGrade, s.length,
	}
	return s
}

func (s *EdgeStore) allocate() {
	for _, c := range s.columns {
		c.Allocate()
	}
	s.names.allocate()
	s.byID = map[EdgeID]uint32{}
	s.byWay = map[osm.WayID][]uint32{}
}

func (s *EdgeStore) attach(a Archive) {
	for _, c := range s.columns {
		c.Attach(a)
	}
	s.names.attach(a)
}

func (s *EdgeStore) save(w Writer) error {
	for _, c := range s.columns {
		if err := c.Save(w); err != nil {
			return err
		}
	}
	return s.names.save(w)
}

// ensureIndex rebuilds the identifier and way maps of a loaded store.
func (s *EdgeStore) ensureIndex() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.byID != nil {
		return
	}
	s.byID = make(map[EdgeID]uint32, s.forwardCount)
	s.byWay = make(map[osm.WayID][]uint32)
	for i := uint32(1); i <= s.high; i++ {
		if s.removed.GetBool(i) {
			continue
		}
		id := EdgeID(s.identifier.Get(i))
		s.byID[id] = i
		s.byWay[id.Way()] = append(s.byWay[id.Way()], i)
	}
}

// NextEdgeIdentifier returns the first unused identifier sectioned from way.
func (s *EdgeStore) NextEdgeIdentifier(way osm.WayID) EdgeID {
	s.ensureIndex()
	for seq := 1; seq <= maxSequence; seq++ {
		id := NewEdgeID(way, seq)
		if _, taken := s.byID[id]; !taken {
			return id
		}
	}
	panic(fmt.Sprintf("way %d: edge identifiers exhausted", way))
}

// store assigns a fresh index to d and writes its attributes.
func (s *EdgeStore) store(d EdgeData) EdgeRef {
	if len(d.Shape) < 2 {
		panic(fmt.Sprintf("edge %d: shape needs at least two points", d.ID))
	}
	if d.ID <= 0 {
		panic(fmt.Sprintf("edge identifier %d must be positive", d.ID))
	}
	s.ensureIndex()
	if _, taken := s.byID[d.ID]; taken {
		next := s.NextEdgeIdentifier(d.ID.Way())
		s.g.log.Debug("renumbered colliding edge identifier",
			zap.Int64("identifier", int64(d.ID)), zap.Int64("renumbered", int64(next)))
		d.ID = next
	}

	s.high++
	index := s.high
	s.identifier.Set(index, int64(d.ID))
	if len(d.Shape) > 2 {
		s.shape.AddSlice(index, packShape(d.Shape))
	}
	bl, tr := boundsOf(d.Shape)
	s.boundsBL.Set(index, int64(bl))
	s.boundsTR.Set(index, int64(tr))
	s.length.Set(index, geo.LengthMillimeters(d.LineString()))
	s.fromNode.Set(index, int64(d.FromNode))
	s.toNode.Set(index, int64(d.ToNode))
	s.fromGrade.Set(index, d.FromGrade)
	s.toGrade.Set(index, d.ToGrade)
	s.writeAttributes(index, &d)

	s.byID[d.ID] = index
	s.byWay[d.ID.Way()] = append(s.byWay[d.ID.Way()], index)
	s.forwardCount++
	s.edgeCount++
	if d.RoadState == TwoWay {
		s.edgeCount++
	}

	s.g.Vertices.TemporaryAddVertexes(index, d.First(), d.Last())
	s.g.invalidateSpatialIndex()
	return adjacency.ForwardRef(index)
}

func (s *EdgeStore) writeAttributes(index uint32, d *EdgeData) {
	s.roadType.Set(index, uint8(d.RoadType))
	s.roadSubType.Set(index, uint8(d.SubType))
	s.surface.Set(index, uint8(d.Surface))
	s.speedLimit.Set(index, d.SpeedLimit)
	s.country.Set(index, int32(d.Country))
	fc := d.FunctionalClass
	if fc == 0 {
		fc = NullFunctionalClass
	}
	setBits(s.functionalClass, index, uint64(fc))
	setBits(s.bridgeType, index, uint64(d.Bridge))
	setBits(s.laneCount, index, uint64(d.Lanes))
	setBits(s.freeFlow, index, uint64(d.FreeFlow))
	setBits(s.hovLanes, index, uint64(d.HOVLanes))
	setBits(s.roadState, index, uint64(d.RoadState))
	s.closed.SetBool(index, d.Closed)
	s.toll.SetBool(index, d.Toll)
	s.construction.SetBool(index, d.UnderConstruction)
	for t, names := range d.Names {
		s.names.set(index, t, names)
	}
}

func setBits(c *column.BitColumn, index uint32, v uint64) {
	if err := c.Set(index, v); err != nil {
		panic(err)
	}
}

// AddAll adds every edge accepted by include (nil accepts all) and returns
// the number of traversals added: one per edge plus one per two-way edge.
func (s *EdgeStore) AddAll(edges []EdgeData, include func(*EdgeData) bool) int {
	before := s.edgeCount
	for i := range edges {
		if include != nil && !include(&edges[i]) {
			continue
		}
		s.g.AddEdge(edges[i])
	}
	return s.edgeCount - before
}

// Remove deletes a stored edge and drops it from its relations. Its index
// is never reused.
func (s *EdgeStore) Remove(index uint32) {
	if s.remove(index) {
		s.g.Relations.dropEdge(index)
	}
}

// remove deletes the edge but leaves relation memberships to the caller.
func (s *EdgeStore) remove(index uint32) bool {
	s.checkIndex(index)
	if s.removed.GetBool(index) {
		return false
	}
	s.ensureIndex()
	s.g.Vertices.TemporaryRemove(index)

	id := EdgeID(s.identifier.Get(index))
	delete(s.byID, id)
	if rest := slices.DeleteFunc(s.byWay[id.Way()], func(i uint32) bool { return i == index }); len(rest) > 0 {
		s.byWay[id.Way()] = rest
	} else {
		delete(s.byWay, id.Way())
	}
	s.unbuffer(index)

	s.removed.SetBool(index, true)
	s.forwardCount--
	s.edgeCount--
	if s.isTwoWay(index) {
		s.edgeCount--
	}
	s.removedCount++
	s.g.invalidateSpatialIndex()
	return true
}

func (s *EdgeStore) checkIndex(index uint32) {
	if index == 0 || index > s.high {
		panic(fmt.Sprintf("edge index %d out of range [1, %d]", index, s.high))
	}
}

func (s *EdgeStore) check(ref EdgeRef) {
	s.checkIndex(ref.Index)
	if ref.Dir == Reverse && !s.isTwoWay(ref.Index) {
		panic(fmt.Sprintf("edge %d is one-way and has no reverse", ref.Index))
	}
}

func (s *EdgeStore) isTwoWay(index uint32) bool {
	return RoadState(s.roadState.Get(index)) == TwoWay
}

// Valid reports whether ref names a live traversal.
func (s *EdgeStore) Valid(ref EdgeRef) bool {
	if ref.Index == 0 || ref.Index > s.high || s.removed.GetBool(ref.Index) {
		return false
	}
	return ref.Dir == Forward || s.isTwoWay(ref.Index)
}

// Lookup resolves a directed identifier to a live traversal.
func (s *EdgeStore) Lookup(id DirectedEdgeID) (EdgeRef, bool) {
	s.ensureIndex()
	index, ok := s.byID[id.ID]
	if !ok {
		return EdgeRef{}, false
	}
	ref := EdgeRef{Index: index, Dir: id.Dir}
	return ref, s.Valid(ref)
}

// Contains reports whether id is stored. A reverse identifier is contained
// only when the edge is two-way.
func (s *EdgeStore) Contains(id DirectedEdgeID) bool {
	_, ok := s.Lookup(id)
	return ok
}

// Edge returns the handle for ref. Invalid refs panic.
func (s *EdgeStore) Edge(ref EdgeRef) Edge {
	s.check(ref)
	if s.removed.GetBool(ref.Index) {
		panic(fmt.Sprintf("edge %d was removed", ref.Index))
	}
	return Edge{store: s, ref: ref}
}

// Forward yields every live stored edge.
func (s *EdgeStore) Forward() iter.Seq[EdgeRef] {
	return func(yield func(EdgeRef) bool) {
		for i := uint32(1); i <= s.high; i++ {
			if s.removed.GetBool(i) {
				continue
			}
			if !yield(adjacency.ForwardRef(i)) {
				return
			}
		}
	}
}

// All yields every traversal: each forward edge followed by its reverse
// when the edge is two-way.
func (s *EdgeStore) All() iter.Seq[EdgeRef] {
	return func(yield func(EdgeRef) bool) {
		for ref := range s.Forward() {
			if !yield(ref) {
				return
			}
			if s.isTwoWay(ref.Index) && !yield(ref.Reverse()) {
				return
			}
		}
	}
}

// Route returns the edges sectioned from way, in section order.
func (s *EdgeStore) Route(way osm.WayID) []EdgeRef {
	s.ensureIndex()
	indexes := slices.Clone(s.byWay[way])
	slices.SortFunc(indexes, func(a, b uint32) int {
		return EdgeID(s.identifier.Get(a)).Sequence() - EdgeID(s.identifier.Get(b)).Sequence()
	})
	route := make([]EdgeRef, len(indexes))
	for i, idx := range indexes {
		route[i] = adjacency.ForwardRef(idx)
	}
	return route
}

// Count is the number of traversals: forward edges plus reverses of
// two-way edges.
func (s *EdgeStore) Count() int { return s.edgeCount }

func (s *EdgeStore) ForwardCount() int { return s.forwardCount }

// HighIndex is the largest index ever assigned, removed edges included.
func (s *EdgeStore) HighIndex() uint32 { return s.high }

func (s *EdgeStore) RemovedCount() int { return s.removedCount }

// Per-traversal accessors. Direction-dependent values are swapped for
// reverse refs.

func (s *EdgeStore) ID(ref EdgeRef) DirectedEdgeID {
	s.check(ref)
	return DirectedEdgeID{ID: EdgeID(s.identifier.Get(ref.Index)), Dir: ref.Dir}
}

func (s *EdgeStore) RoadState(ref EdgeRef) RoadState {
	s.checkIndex(ref.Index)
	return RoadState(s.roadState.Get(ref.Index))
}

func (s *EdgeStore) FromVertex(ref EdgeRef) uint32 {
	s.check(ref)
	if ref.Dir == Reverse {
		return s.toVertex.Get(ref.Index)
	}
	return s.fromVertex.Get(ref.Index)
}

func (s *EdgeStore) ToVertex(ref EdgeRef) uint32 {
	s.check(ref)
	if ref.Dir == Reverse {
		return s.fromVertex.Get(ref.Index)
	}
	return s.toVertex.Get(ref.Index)
}

func (s *EdgeStore) FromNode(ref EdgeRef) osm.NodeID {
	s.check(ref)
	if ref.Dir == Reverse {
		return osm.NodeID(s.toNode.Get(ref.Index))
	}
	return osm.NodeID(s.fromNode.Get(ref.Index))
}

func (s *EdgeStore) ToNode(ref EdgeRef) osm.NodeID {
	s.check(ref)
	if ref.Dir == Reverse {
		return osm.NodeID(s.fromNode.Get(ref.Index))
	}
	return osm.NodeID(s.toNode.Get(ref.Index))
}

func (s *EdgeStore) FromGrade(ref EdgeRef) int8 {
	s.check(ref)
	if ref.Dir == Reverse {
		return s.toGrade.Get(ref.Index)
	}
	return s.fromGrade.Get(ref.Index)
}

func (s *EdgeStore) ToGrade(ref EdgeRef) int8 {
	s.check(ref)
	if ref.Dir == Reverse {
		return s.fromGrade.Get(ref.Index)
	}
	return s.toGrade.Get(ref.Index)
}

// Shape returns the traversal's polyline. Edges with exactly two points
// have no stored shape; their endpoints are the vertex locations.
func (s *EdgeStore) Shape(ref EdgeRef) []geo.Location {
	s.check(ref)
	shape := s.forwardShape(ref.Index)
	if ref.Dir == Reverse {
		slices.Reverse(shape)
	}
	return shape
}

func (s *EdgeStore) forwardShape(index uint32) []geo.Location {
	if l := s.shape.List(index); !l.Empty() {
		shape := make([]geo.Location, 0, l.Len())
		for v := range l.All() {
			shape = append(shape, geo.Location(v))
		}
		return shape
	}
	return []geo.Location{
		s.g.Vertices.Location(s.fromVertex.Get(index)),
		s.g.Vertices.Location(s.toVertex.Get(index)),
	}
}

func (s *EdgeStore) LineString(ref EdgeRef) orb.LineString {
	shape := s.Shape(ref)
	ls := make(orb.LineString, len(shape))
	for i, l := range shape {
		ls[i] = l.Point()
	}
	return ls
}

// Bound is the bounding box of the edge.
func (s *EdgeStore) Bound(ref EdgeRef) orb.Bound {
	s.checkIndex(ref.Index)
	return orb.Bound{
		Min: geo.Location(s.boundsBL.Get(ref.Index)).Point(),
		Max: geo.Location(s.boundsTR.Get(ref.Index)).Point(),
	}
}

func (s *EdgeStore) LengthMillimeters(ref EdgeRef) uint32 {
	s.checkIndex(ref.Index)
	return s.length.Get(ref.Index)
}

func (s *EdgeStore) LengthMeters(ref EdgeRef) float64 {
	return float64(s.LengthMillimeters(ref)) / 1000
}

func (s *EdgeStore) RoadType(ref EdgeRef) RoadType {
	return RoadType(s.roadType.Get(ref.Index))
}

func (s *EdgeStore) SubType(ref EdgeRef) RoadSubType {
	return RoadSubType(s.roadSubType.Get(ref.Index))
}

func (s *EdgeStore) FunctionalClass(ref EdgeRef) FunctionalClass {
	return FunctionalClass(s.functionalClass.Get(ref.Index))
}

func (s *EdgeStore) Surface(ref EdgeRef) Surface {
	return Surface(s.surface.Get(ref.Index))
}

func (s *EdgeStore) Bridge(ref EdgeRef) BridgeType {
	return BridgeType(s.bridgeType.Get(ref.Index))
}

func (s *EdgeStore) Lanes(ref EdgeRef) uint8 {
	return uint8(s.laneCount.Get(ref.Index))
}

func (s *EdgeStore) HOVLanes(ref EdgeRef) uint8 {
	return uint8(s.hovLanes.Get(ref.Index))
}

func (s *EdgeStore) SpeedLimit(ref EdgeRef) uint8 {
	return s.speedLimit.Get(ref.Index)
}

func (s *EdgeStore) FreeFlow(ref EdgeRef) SpeedCategory {
	return SpeedCategory(s.freeFlow.Get(ref.Index))
}

func (s *EdgeStore) Country(ref EdgeRef) Country {
	return Country(s.country.Get(ref.Index))
}

func (s *EdgeStore) IsClosed(ref EdgeRef) bool {
	return s.closed.GetBool(ref.Index)
}

func (s *EdgeStore) IsToll(ref EdgeRef) bool {
	return s.toll.GetBool(ref.Index)
}

func (s *EdgeStore) IsUnderConstruction(ref EdgeRef) bool {
	return s.construction.GetBool(ref.Index)
}

// Names returns up to MaxNamesPerType names of type t.
func (s *EdgeStore) Names(ref EdgeRef, t NameType) []string {
	s.checkIndex(ref.Index)
	return s.names.get(ref.Index, t)
}

// Data materializes the traversal as an EdgeData.
func (s *EdgeStore) Data(ref EdgeRef) EdgeData {
	s.check(ref)
	i := ref.Index
	d := EdgeData{
		ID:                EdgeID(s.identifier.Get(i)),
		Shape:             s.forwardShape(i),
		FromNode:          osm.NodeID(s.fromNode.Get(i)),
		ToNode:            osm.NodeID(s.toNode.Get(i)),
		RoadState:         RoadState(s.roadState.Get(i)),
		RoadType:          s.RoadType(ref),
		SubType:           s.SubType(ref),
		FunctionalClass:   s.FunctionalClass(ref),
		Surface:           s.Surface(ref),
		Bridge:            s.Bridge(ref),
		Lanes:             s.Lanes(ref),
		HOVLanes:          s.HOVLanes(ref),
		SpeedLimit:        s.SpeedLimit(ref),
		FreeFlow:          s.FreeFlow(ref),
		Country:           s.Country(ref),
		Closed:            s.IsClosed(ref),
		Toll:              s.IsToll(ref),
		UnderConstruction: s.IsUnderConstruction(ref),
		FromGrade:         s.fromGrade.Get(i),
		ToGrade:           s.toGrade.Get(i),
		Names:             s.names.all(i),
	}
	if d.FunctionalClass == NullFunctionalClass {
		d.FunctionalClass = 0
	}
	d.FromClipped = d.FromNode < 0 || s.buffered(i, d.First())
	d.ToClipped = d.ToNode < 0 || s.buffered(i, d.Last())
	if ref.Dir == Reverse {
		d.Reverse()
	}
	return d
}

// setVertex re-points one end of a stored edge.
func (s *EdgeStore) setVertex(index uint32, atFrom bool, vertex uint32) {
	if atFrom {
		s.fromVertex.Set(index, vertex)
	} else {
		s.toVertex.Set(index, vertex)
	}
}

// refreshEndpoints moves the shape endpoints onto the current vertex
// locations and recomputes the bounds.
func (s *EdgeStore) refreshEndpoints(index uint32) {
	shape := s.forwardShape(index)
	if len(shape) > 2 {
		shape[0] = s.g.Vertices.Location(s.fromVertex.Get(index))
		shape[len(shape)-1] = s.g.Vertices.Location(s.toVertex.Get(index))
		s.shape.AddSlice(index, packShape(shape))
	}
	bl, tr := boundsOf(shape)
	s.boundsBL.Set(index, int64(bl))
	s.boundsTR.Set(index, int64(tr))
	s.g.invalidateSpatialIndex()
}

func packShape(shape []geo.Location) []int64 {
	packed := make([]int64, len(shape))
	for i, l := range shape {
		packed[i] = int64(l)
	}
	return packed
}

// boundsOf returns the bottom-left and top-right corners of shape.
func boundsOf(shape []geo.Location) (bl, tr geo.Location) {
	minLat, minLon := shape[0].LatE7(), shape[0].LonE7()
	maxLat, maxLon := minLat, minLon
	for _, l := range shape[1:] {
		minLat, maxLat = min(minLat, l.LatE7()), max(maxLat, l.LatE7())
		minLon, maxLon = min(minLon, l.LonE7()), max(maxLon, l.LonE7())
	}
	return geo.FromE7(minLat, minLon), geo.FromE7(maxLat, maxLon)
}
