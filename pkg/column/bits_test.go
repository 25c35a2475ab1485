package column

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBitColumnRoundTrip(t *testing.T) {
	for _, width := range []uint{1, 2, 3, 5, 7, 13, 32} {
		c := NewBits("bits", width, Reject, 0, 10)
		c.Allocate()
		maxV := c.Max()
		for i := uint32(0); i < 200; i++ {
			require.NoError(t, c.Set(i, uint64(i)%(maxV+1)))
		}
		for i := uint32(0); i < 200; i++ {
			require.Equal(t, uint64(i)%(maxV+1), c.Get(i), "width %d index %d", width, i)
		}
	}
}

func TestBitColumnOverflow(t *testing.T) {
	clamp := NewBits("laneCount", 4, Clamp, 0, 0)
	clamp.Allocate()
	require.NoError(t, clamp.Set(1, 40))
	assert.Equal(t, uint64(15), clamp.Get(1))

	reject := NewBits("hovLaneCount", 3, Reject, 0, 0)
	reject.Allocate()
	err := reject.Set(1, 8)
	assert.ErrorIs(t, err, ErrOverflow)
	assert.Equal(t, uint64(0), reject.Get(1))
}

func TestBitColumnNullPattern(t *testing.T) {
	c := NewBits("roadState", 2, Clamp, 3, 0)
	assert.Equal(t, uint64(2), c.Max())
	c.Allocate()
	require.NoError(t, c.Set(5, 1))
	assert.Equal(t, uint64(3), c.Get(4), "gaps read as the null pattern")
	assert.True(t, c.IsNull(0))
	assert.Equal(t, uint64(1), c.Get(5))
	require.NoError(t, c.Set(6, 9))
	assert.Equal(t, uint64(2), c.Get(6), "clamped below null")
}

func TestBitColumnFlags(t *testing.T) {
	c := NewBits("isToll", 1, Reject, 0, 0)
	c.Allocate()
	c.SetBool(3, true)
	c.SetBool(4, false)
	assert.True(t, c.GetBool(3))
	assert.False(t, c.GetBool(4))
	assert.False(t, c.GetBool(99))
}

func TestBitColumnSaveLoad(t *testing.T) {
	store := newMemSections()
	c := NewBits("functionalClass", 3, Clamp, 7, 0)
	c.Allocate()
	for i := uint32(1); i < 100; i++ {
		require.NoError(t, c.Set(i, uint64(i%7)))
	}
	require.NoError(t, c.Save(store))

	loaded := NewBits("functionalClass", 3, Clamp, 7, 0)
	loaded.Attach(store)
	assert.Equal(t, 100, loaded.Len())
	for i := uint32(1); i < 100; i++ {
		require.Equal(t, uint64(i%7), loaded.Get(i))
	}
	assert.Equal(t, uint64(7), loaded.Get(0))

	wrong := NewBits("functionalClass", 4, Clamp, 0, 0)
	wrong.Attach(store)
	_, err := wrong.Load()
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestNewBitsValidation(t *testing.T) {
	assert.Panics(t, func() { NewBits("x", 0, Clamp, 0, 0) })
	assert.Panics(t, func() { NewBits("x", 33, Clamp, 0, 0) })
	assert.Panics(t, func() { NewBits("x", 2, Clamp, 4, 0) })
}
