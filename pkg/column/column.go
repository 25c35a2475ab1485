// Package column implements lazily materialized attribute arrays indexed by
// element index. A column starts Unloaded; reading it loads the named section
// from its Source, writing requires an explicit Allocate.
package column

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
)

// State of a column's backing array.
type State int32

const (
	Unloaded State = iota
	Loaded
	Allocated
)

func (s State) String() string {
	switch s {
	case Unloaded:
		return "unloaded"
	case Loaded:
		return "loaded"
	case Allocated:
		return "allocated"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

var (
	ErrOverflow = errors.New("column: value exceeds bit width")
	ErrCorrupt  = errors.New("column: corrupt section")
)

// Source supplies persisted sections by name.
type Source interface {
	Section(name string) (payload []byte, found bool, err error)
}

// Sink receives sections to persist.
type Sink interface {
	Put(name string, payload []byte) error
}

// Numeric is the set of element types a Column can hold.
type Numeric interface {
	~int8 | ~uint8 | ~int32 | ~uint32 | ~int64
}

// Column is a named array of fixed-size values with a null sentinel.
type Column[T Numeric] struct {
	name     string
	null     T
	estimate int

	mu     sync.Mutex
	state  atomic.Int32
	data   []T
	source Source
	err    error
}

// New returns an unloaded column. estimate sizes the first allocation.
func New[T Numeric](name string, null T, estimate int) *Column[T] {
	return &Column[T]{name: name, null: null, estimate: estimate}
}

func (c *Column[T]) Name() string { return c.name }
func (c *Column[T]) Null() T      { return c.null }

func (c *Column[T]) State() State { return State(c.state.Load()) }

// Attach sets the archive the column loads from on first read.
func (c *Column[T]) Attach(src Source) {
	c.mu.Lock()
	c.source = src
	c.mu.Unlock()
}

// Allocate makes the column writable. Calling it again is a no-op; a loaded
// column keeps its contents.
func (c *Column[T]) Allocate() {
	if c.State() == Allocated {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	switch State(c.state.Load()) {
	case Allocated:
		return
	case Unloaded:
		if ok, _ := c.loadLocked(); !ok {
			c.data = make([]T, 0, max(c.estimate, 1))
		}
	}
	c.state.Store(int32(Allocated))
}

// Load materializes the column from its source if it is not already
// resident and reports whether data is available.
func (c *Column[T]) Load() (bool, error) {
	if c.State() != Unloaded {
		return true, nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.State() != Unloaded {
		return true, nil
	}
	return c.loadLocked()
}

func (c *Column[T]) loadLocked() (bool, error) {
	if c.source == nil {
		return false, nil
	}
	payload, found, err := c.source.Section(c.name)
	if err != nil {
		c.err = errors.Wrapf(err, "load column %q", c.name)
		return false, c.err
	}
	if !found {
		return false, nil
	}
	data, err := decodeSlice[T](payload)
	if err != nil {
		c.err = errors.Wrapf(err, "decode column %q", c.name)
		return false, c.err
	}
	c.data = data
	c.state.Store(int32(Loaded))
	return true, nil
}

// Err returns the first load failure seen by lazy reads.
func (c *Column[T]) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Get returns the value at index, or the null sentinel when the column or
// the index is not populated.
func (c *Column[T]) Get(index uint32) T {
	if c.State() == Unloaded {
		if ok, _ := c.Load(); !ok {
			return c.null
		}
	}
	if int(index) >= len(c.data) {
		return c.null
	}
	return c.data[index]
}

// IsNull reports whether index holds the null sentinel.
func (c *Column[T]) IsNull(index uint32) bool {
	return c.Get(index) == c.null
}

// Set stores value at index, growing the array with nulls as needed.
func (c *Column[T]) Set(index uint32, value T) {
	if c.State() != Allocated {
		panic(fmt.Sprintf("column %q: Set before Allocate", c.name))
	}
	if int(index) >= len(c.data) {
		c.grow(int(index) + 1)
	}
	c.data[index] = value
}

func (c *Column[T]) grow(n int) {
	old := len(c.data)
	if n > cap(c.data) {
		next := make([]T, old, max(n, 2*cap(c.data)))
		copy(next, c.data)
		c.data = next
	}
	c.data = c.data[:n]
	for i := old; i < n; i++ {
		c.data[i] = c.null
	}
}

// Append stores value after the last populated index and returns its index.
func (c *Column[T]) Append(value T) uint32 {
	index := uint32(len(c.data))
	c.Set(index, value)
	return index
}

// Len is the populated length including index 0.
func (c *Column[T]) Len() int {
	if c.State() == Unloaded {
		c.Load()
	}
	return len(c.data)
}

// Range returns data[from:to]. Callers must not modify the result.
func (c *Column[T]) Range(from, to uint32) []T {
	if c.State() == Unloaded {
		c.Load()
	}
	if int(to) > len(c.data) || from > to {
		panic(fmt.Sprintf("column %q: range [%d,%d) out of bounds (len %d)", c.name, from, to, len(c.data)))
	}
	return c.data[from:to:to]
}

// Save writes the column to sink. Columns with no data are skipped.
func (c *Column[T]) Save(sink Sink) error {
	if c.State() == Unloaded {
		if ok, err := c.Load(); !ok {
			return err
		}
	}
	if len(c.data) == 0 {
		return nil
	}
	return errors.Wrapf(sink.Put(c.name, encodeSlice(c.data)), "save column %q", c.name)
}
