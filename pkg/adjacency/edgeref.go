package adjacency

import "fmt"

// Direction selects which way a stored edge is traversed.
type Direction uint8

const (
	Forward Direction = iota
	Reverse
)

func (d Direction) String() string {
	if d == Reverse {
		return "reverse"
	}
	return "forward"
}

// EdgeRef names a traversal of a stored edge: its element index plus the
// direction. Only forward edges are stored; a Reverse ref is a view.
type EdgeRef struct {
	Index uint32
	Dir   Direction
}

// ForwardRef is the forward traversal of index.
func ForwardRef(index uint32) EdgeRef { return EdgeRef{Index: index} }

// Reverse flips the direction.
func (r EdgeRef) Reverse() EdgeRef {
	return EdgeRef{Index: r.Index, Dir: 1 - r.Dir}
}

func (r EdgeRef) IsForward() bool { return r.Dir == Forward }

func (r EdgeRef) String() string {
	return fmt.Sprintf("%d/%s", r.Index, r.Dir)
}

// pack encodes a ref into one list slot; only connectivity lists use it.
func (r EdgeRef) pack() uint32 {
	if r.Index >= 1<<31 {
		panic(fmt.Sprintf("edge index %d exceeds packed range", r.Index))
	}
	return r.Index<<1 | uint32(r.Dir)
}

func unpack(v uint32) EdgeRef {
	return EdgeRef{Index: v >> 1, Dir: Direction(v & 1)}
}
