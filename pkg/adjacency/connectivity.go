package adjacency

import (
	"fmt"
	"iter"

	"roadgraph/pkg/column"
)

// CSR section names.
const (
	InEdgesName     = "inEdges"
	OutEdgesName    = "outEdges"
	TwoWayEdgesName = "twoWayEdges"
)

type listKind int

const (
	inKind listKind = iota
	outKind
	twoWayKind
	kindCount
)

// Connectivity tracks the edges attached to each vertex. During ingestion
// edges go into per-vertex linked lists; Commit copies them into three CSR
// stores, after which the linked lists are freed.
//
// A one-way edge is an out-edge of its from vertex and an in-edge of its to
// vertex. A two-way edge is recorded in the two-way list of both endpoints:
// as the forward ref at the from vertex and as the reverse ref at the to
// vertex, so every stored two-way ref leaves the vertex that holds it.
type Connectivity struct {
	in, out, twoWay *ListStore[uint32]

	temp *tempLists
}

// NewConnectivity creates an empty store sized for estimate vertices.
func NewConnectivity(estimate int) *Connectivity {
	return &Connectivity{
		in:     NewListStore[uint32](InEdgesName, estimate),
		out:    NewListStore[uint32](OutEdgesName, estimate),
		twoWay: NewListStore[uint32](TwoWayEdgesName, estimate),
		temp:   newTempLists(estimate),
	}
}

func (c *Connectivity) Attach(src column.Source) {
	c.in.Attach(src)
	c.out.Attach(src)
	c.twoWay.Attach(src)
}

func (c *Connectivity) Save(sink column.Sink) error {
	for _, s := range []*ListStore[uint32]{c.in, c.out, c.twoWay} {
		if err := s.Save(sink); err != nil {
			return err
		}
	}
	return nil
}

func (c *Connectivity) tempLists() *tempLists {
	if c.temp == nil {
		c.temp = newTempLists(0)
	}
	return c.temp
}

// TemporaryConnect attaches edge between from and to.
func (c *Connectivity) TemporaryConnect(edge, from, to uint32, twoWay bool) {
	t := c.tempLists()
	if twoWay {
		t.push(twoWayKind, from, EdgeRef{Index: edge, Dir: Forward}.pack())
		t.push(twoWayKind, to, EdgeRef{Index: edge, Dir: Reverse}.pack())
		return
	}
	t.push(outKind, from, ForwardRef(edge).pack())
	t.push(inKind, to, ForwardRef(edge).pack())
}

// TemporaryDisconnect undoes TemporaryConnect with the same arguments.
func (c *Connectivity) TemporaryDisconnect(edge, from, to uint32, twoWay bool) {
	t := c.tempLists()
	if twoWay {
		t.remove(twoWayKind, from, EdgeRef{Index: edge, Dir: Forward}.pack())
		t.remove(twoWayKind, to, EdgeRef{Index: edge, Dir: Reverse}.pack())
		return
	}
	t.remove(outKind, from, ForwardRef(edge).pack())
	t.remove(inKind, to, ForwardRef(edge).pack())
}

// TemporaryIsConnected reports whether some edge leads from a to b in one hop.
func (c *Connectivity) TemporaryIsConnected(a, b uint32) bool {
	t := c.tempLists()
	outbound := map[uint32]struct{}{}
	for _, k := range []listKind{outKind, twoWayKind} {
		for v := range t.values(k, a) {
			outbound[unpack(v).Index] = struct{}{}
		}
	}
	for _, k := range []listKind{inKind, twoWayKind} {
		for v := range t.values(k, b) {
			if _, ok := outbound[unpack(v).Index]; ok {
				return true
			}
		}
	}
	return false
}

// TemporaryEdges yields the refs attached to vertex in committed order.
func (c *Connectivity) TemporaryEdges(vertex uint32) iter.Seq[EdgeRef] {
	t := c.tempLists()
	return compose(t.values(twoWayKind, vertex), t.values(inKind, vertex), t.values(outKind, vertex))
}

// TemporaryDegree counts the edges attached to vertex before commit.
func (c *Connectivity) TemporaryDegree(vertex uint32) int {
	t := c.tempLists()
	var n int
	for k := listKind(0); k < kindCount; k++ {
		for range t.values(k, vertex) {
			n++
		}
	}
	return n
}

// StoreTemporaryLists copies vertex's linked lists into the CSR stores.
func (c *Connectivity) StoreTemporaryLists(vertex uint32) {
	t := c.tempLists()
	c.in.Allocate()
	c.out.Allocate()
	c.twoWay.Allocate()
	c.in.Add(vertex, t.values(inKind, vertex))
	c.out.Add(vertex, t.values(outKind, vertex))
	c.twoWay.Add(vertex, t.values(twoWayKind, vertex))
}

// Commit stores the lists of vertices 1..count and frees the linked lists.
func (c *Connectivity) Commit(count uint32) {
	for v := uint32(1); v <= count; v++ {
		c.StoreTemporaryLists(v)
	}
	c.FreeTemporaryData()
}

// FreeTemporaryData drops the ingestion linked lists.
func (c *Connectivity) FreeTemporaryData() { c.temp = nil }

// Committed vertex queries.

func (c *Connectivity) In(vertex uint32) iter.Seq[EdgeRef]     { return refs(c.in.List(vertex)) }
func (c *Connectivity) Out(vertex uint32) iter.Seq[EdgeRef]    { return refs(c.out.List(vertex)) }
func (c *Connectivity) TwoWay(vertex uint32) iter.Seq[EdgeRef] { return refs(c.twoWay.List(vertex)) }

func (c *Connectivity) InCount(vertex uint32) int     { return c.in.SizeOf(vertex) }
func (c *Connectivity) OutCount(vertex uint32) int    { return c.out.SizeOf(vertex) }
func (c *Connectivity) TwoWayCount(vertex uint32) int { return c.twoWay.SizeOf(vertex) }

// All yields every traversal touching vertex: each two-way ref followed
// immediately by its reverse, then the in-edges, then the out-edges.
// Consumers rely on this order.
func (c *Connectivity) All(vertex uint32) iter.Seq[EdgeRef] {
	return compose(c.twoWay.List(vertex).All(), c.in.List(vertex).All(), c.out.List(vertex).All())
}

// Incoming yields the traversals ending at vertex.
func (c *Connectivity) Incoming(vertex uint32) iter.Seq[EdgeRef] {
	return func(yield func(EdgeRef) bool) {
		for v := range c.twoWay.List(vertex).All() {
			if !yield(unpack(v).Reverse()) {
				return
			}
		}
		for v := range c.in.List(vertex).All() {
			if !yield(unpack(v)) {
				return
			}
		}
	}
}

// Outgoing yields the traversals starting at vertex.
func (c *Connectivity) Outgoing(vertex uint32) iter.Seq[EdgeRef] {
	return func(yield func(EdgeRef) bool) {
		for v := range c.twoWay.List(vertex).All() {
			if !yield(unpack(v)) {
				return
			}
		}
		for v := range c.out.List(vertex).All() {
			if !yield(unpack(v)) {
				return
			}
		}
	}
}

// Degree is the number of stored refs attached to vertex.
func (c *Connectivity) Degree(vertex uint32) int {
	return c.in.SizeOf(vertex) + c.out.SizeOf(vertex) + c.twoWay.SizeOf(vertex)
}

// Validate returns a warning for every vertex in [1, count] without edges.
func (c *Connectivity) Validate(count uint32) []string {
	var warnings []string
	for v := uint32(1); v <= count; v++ {
		if c.Degree(v) == 0 {
			warnings = append(warnings, fmt.Sprintf("vertex %d has no edges", v))
		}
	}
	return warnings
}

func compose(twoWay, in, out iter.Seq[uint32]) iter.Seq[EdgeRef] {
	return func(yield func(EdgeRef) bool) {
		for v := range twoWay {
			r := unpack(v)
			if !yield(r) || !yield(r.Reverse()) {
				return
			}
		}
		for _, seq := range []iter.Seq[uint32]{in, out} {
			for v := range seq {
				if !yield(unpack(v)) {
					return
				}
			}
		}
	}
}

func refs(l List[uint32]) iter.Seq[EdgeRef] {
	return func(yield func(EdgeRef) bool) {
		for v := range l.All() {
			if !yield(unpack(v)) {
				return
			}
		}
	}
}
