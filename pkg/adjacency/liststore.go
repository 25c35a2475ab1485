// Package adjacency stores per-vertex edge lists in compressed sparse row
// form and accumulates them during ingestion.
package adjacency

import (
	"fmt"
	"iter"

	"roadgraph/pkg/column"
)

// Value is the element type of a list store.
type Value interface {
	~uint32 | ~int64
}

// ListStore keeps variable-length lists end to end in one values array with
// parallel offset and length columns indexed by owner. Lists are write-once:
// re-adding an index points it at a fresh copy and the old values stay in
// place unreclaimed.
type ListStore[T Value] struct {
	name    string
	offsets *column.Column[uint32]
	lengths *column.Column[uint32]
	values  *column.Column[T]
}

// NewListStore creates a store persisted as <name>.offsets, <name>.lengths
// and <name>.values.
func NewListStore[T Value](name string, estimate int) *ListStore[T] {
	return &ListStore[T]{
		name:    name,
		offsets: column.New[uint32](name+".offsets", 0, estimate),
		lengths: column.New[uint32](name+".lengths", 0, estimate),
		values:  column.New[T](name+".values", 0, estimate*2),
	}
}

func (s *ListStore[T]) Name() string { return s.name }

func (s *ListStore[T]) Allocate() {
	s.offsets.Allocate()
	s.lengths.Allocate()
	s.values.Allocate()
}

func (s *ListStore[T]) Attach(src column.Source) {
	s.offsets.Attach(src)
	s.lengths.Attach(src)
	s.values.Attach(src)
}

// Add appends the values yielded by seq as the list for index.
func (s *ListStore[T]) Add(index uint32, seq iter.Seq[T]) {
	if index == 0 {
		panic(fmt.Sprintf("list store %q: index 0 is reserved", s.name))
	}
	offset := uint32(s.values.Len())
	var n uint32
	for v := range seq {
		s.values.Set(offset+n, v)
		n++
	}
	s.offsets.Set(index, offset)
	s.lengths.Set(index, n)
}

// AddSlice is Add for an in-memory slice.
func (s *ListStore[T]) AddSlice(index uint32, values []T) {
	s.Add(index, func(yield func(T) bool) {
		for _, v := range values {
			if !yield(v) {
				return
			}
		}
	})
}

// List returns a read-only view of the list stored for index. Unknown
// indexes yield an empty list.
func (s *ListStore[T]) List(index uint32) List[T] {
	n := s.lengths.Get(index)
	if n == 0 {
		return List[T]{}
	}
	off := s.offsets.Get(index)
	return List[T]{values: s.values.Range(off, off+n)}
}

// Size is the number of list slots, the highest index added.
func (s *ListStore[T]) Size() int {
	if n := s.lengths.Len(); n > 0 {
		return n - 1
	}
	return 0
}

// SizeOf is the length of the list at index.
func (s *ListStore[T]) SizeOf(index uint32) int {
	return int(s.lengths.Get(index))
}

// Footprint is the number of stored values including abandoned lists.
func (s *ListStore[T]) Footprint() int { return s.values.Len() }

func (s *ListStore[T]) Save(sink column.Sink) error {
	for _, save := range []func(column.Sink) error{s.offsets.Save, s.lengths.Save, s.values.Save} {
		if err := save(sink); err != nil {
			return err
		}
	}
	return nil
}

// List is an immutable view into a ListStore.
type List[T Value] struct {
	values []T
}

func (l List[T]) Len() int    { return len(l.values) }
func (l List[T]) At(i int) T  { return l.values[i] }
func (l List[T]) Empty() bool { return len(l.values) == 0 }

// All yields the list's values in order.
func (l List[T]) All() iter.Seq[T] {
	return func(yield func(T) bool) {
		for _, v := range l.values {
			if !yield(v) {
				return
			}
		}
	}
}

// Slice copies the list.
func (l List[T]) Slice() []T {
	return append([]T(nil), l.values...)
}
