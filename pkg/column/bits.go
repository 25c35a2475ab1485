package column

import (
	"encoding/binary"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
)

// Overflow selects what BitColumn.Set does with values wider than the column.
type Overflow int

const (
	Clamp Overflow = iota
	Reject
)

// BitColumn packs unsigned values of a fixed bit width into 64-bit words.
// Fields may straddle a word boundary.
type BitColumn struct {
	name     string
	width    uint
	overflow Overflow
	null     uint64
	estimate int

	mu     sync.Mutex
	state  atomic.Int32
	words  []uint64
	length int
	source Source
	err    error
}

// NewBits returns an unloaded bit column. width must be in [1, 32] and null
// must fit in width bits.
func NewBits(name string, width uint, overflow Overflow, null uint64, estimate int) *BitColumn {
	if width == 0 || width > 32 {
		panic(fmt.Sprintf("column %q: bit width %d out of range", name, width))
	}
	if null > mask(width) {
		panic(fmt.Sprintf("column %q: null pattern %#x wider than %d bits", name, null, width))
	}
	return &BitColumn{name: name, width: width, overflow: overflow, null: null, estimate: estimate}
}

func mask(width uint) uint64 { return 1<<width - 1 }

func (c *BitColumn) Name() string { return c.name }
func (c *BitColumn) Null() uint64 { return c.null }
func (c *BitColumn) State() State { return State(c.state.Load()) }
func (c *BitColumn) Width() uint  { return c.width }
func (c *BitColumn) Attach(src Source) {
	c.mu.Lock()
	c.source = src
	c.mu.Unlock()
}

// Max is the largest storable value that is not the null pattern.
func (c *BitColumn) Max() uint64 {
	m := mask(c.width)
	if c.null == m {
		return m - 1
	}
	return m
}

func (c *BitColumn) Allocate() {
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
			c.words = make([]uint64, 0, max(c.estimate*int(c.width)/64+1, 1))
		}
	}
	c.state.Store(int32(Allocated))
}

func (c *BitColumn) Load() (bool, error) {
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

func (c *BitColumn) loadLocked() (bool, error) {
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
	if len(payload) < 8 {
		c.err = errors.Wrapf(ErrCorrupt, "column %q: short header", c.name)
		return false, c.err
	}
	width := uint(binary.LittleEndian.Uint32(payload[0:4]))
	length := int(binary.LittleEndian.Uint32(payload[4:8]))
	if width != c.width {
		c.err = errors.Wrapf(ErrCorrupt, "column %q: stored width %d, want %d", c.name, width, c.width)
		return false, c.err
	}
	words, err := decodeSlice[int64](payload[8:])
	if err != nil {
		c.err = errors.Wrapf(err, "decode column %q", c.name)
		return false, c.err
	}
	if len(words)*64 < length*int(c.width) {
		c.err = errors.Wrapf(ErrCorrupt, "column %q: %d words cannot hold %d values", c.name, len(words), length)
		return false, c.err
	}
	c.words = make([]uint64, len(words))
	for i, w := range words {
		c.words[i] = uint64(w)
	}
	c.length = length
	c.state.Store(int32(Loaded))
	return true, nil
}

func (c *BitColumn) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Get returns the value at index or the null pattern.
func (c *BitColumn) Get(index uint32) uint64 {
	if c.State() == Unloaded {
		if ok, _ := c.Load(); !ok {
			return c.null
		}
	}
	if int(index) >= c.length {
		return c.null
	}
	return c.field(int(index))
}

func (c *BitColumn) IsNull(index uint32) bool { return c.Get(index) == c.null }

// GetBool reads a one-bit flag; null reads as false.
func (c *BitColumn) GetBool(index uint32) bool {
	v := c.Get(index)
	return v != c.null && v != 0
}

// Set stores value at index. Oversized values are clamped to Max or
// rejected with ErrOverflow, depending on the column's policy.
func (c *BitColumn) Set(index uint32, value uint64) error {
	if c.State() != Allocated {
		panic(fmt.Sprintf("column %q: Set before Allocate", c.name))
	}
	if value > c.Max() && value != c.null {
		if c.overflow == Reject {
			return errors.Wrapf(ErrOverflow, "column %q: %d > %d", c.name, value, c.Max())
		}
		value = c.Max()
	}
	if int(index) >= c.length {
		c.grow(int(index) + 1)
	}
	c.setField(int(index), value)
	return nil
}

// SetBool stores a one-bit flag.
func (c *BitColumn) SetBool(index uint32, v bool) {
	var b uint64
	if v {
		b = 1
	}
	// A one-bit column with a zero null pattern cannot overflow.
	_ = c.Set(index, b)
}

func (c *BitColumn) Len() int {
	if c.State() == Unloaded {
		c.Load()
	}
	return c.length
}

func (c *BitColumn) grow(n int) {
	need := (n*int(c.width) + 63) / 64
	if need > len(c.words) {
		if need > cap(c.words) {
			next := make([]uint64, len(c.words), max(need, 2*cap(c.words)))
			copy(next, c.words)
			c.words = next
		}
		c.words = c.words[:need]
	}
	old := c.length
	c.length = n
	if c.null != 0 {
		for i := old; i < n; i++ {
			c.setField(i, c.null)
		}
	}
}

func (c *BitColumn) field(i int) uint64 {
	bit := i * int(c.width)
	w, off := bit/64, uint(bit%64)
	v := c.words[w] >> off
	if off+c.width > 64 {
		v |= c.words[w+1] << (64 - off)
	}
	return v & mask(c.width)
}

func (c *BitColumn) setField(i int, v uint64) {
	bit := i * int(c.width)
	w, off := bit/64, uint(bit%64)
	m := mask(c.width)
	c.words[w] = c.words[w]&^(m<<off) | v<<off
	if off+c.width > 64 {
		spill := off + c.width - 64
		hi := mask(spill)
		c.words[w+1] = c.words[w+1]&^hi | v>>(c.width-spill)
	}
}

// Save writes width, length and the packed words.
func (c *BitColumn) Save(sink Sink) error {
	if c.State() == Unloaded {
		if ok, err := c.Load(); !ok {
			return err
		}
	}
	if c.length == 0 {
		return nil
	}
	used := (c.length*int(c.width) + 63) / 64
	buf := make([]byte, 8, 8+used*8)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(c.width))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(c.length))
	words := make([]int64, used)
	for i := range words {
		words[i] = int64(c.words[i])
	}
	buf = append(buf, encodeSlice(words)...)
	return errors.Wrapf(sink.Put(c.name, buf), "save column %q", c.name)
}
