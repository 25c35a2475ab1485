package column

import (
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memSections struct {
	mu    sync.Mutex
	data  map[string][]byte
	reads map[string]int
}

func newMemSections() *memSections {
	return &memSections{data: map[string][]byte{}, reads: map[string]int{}}
}

func (m *memSections) Put(name string, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[name] = append([]byte(nil), payload...)
	return nil
}

func (m *memSections) Section(name string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reads[name]++
	b, ok := m.data[name]
	return b, ok, nil
}

type failingSource struct{}

func (failingSource) Section(string) ([]byte, bool, error) {
	return nil, false, errors.New("disk on fire")
}

func TestColumnStates(t *testing.T) {
	c := New[int32]("speed", -1, 4)
	assert.Equal(t, Unloaded, c.State())
	assert.Equal(t, int32(-1), c.Get(3), "unloaded column reads null")

	ok, err := c.Load()
	require.NoError(t, err)
	assert.False(t, ok, "no source attached")

	c.Allocate()
	assert.Equal(t, Allocated, c.State())
	c.Set(3, 42)
	c.Allocate()
	assert.Equal(t, int32(42), c.Get(3), "second allocate keeps data")
	assert.Equal(t, int32(-1), c.Get(1), "gap filled with null")
	assert.Equal(t, int32(-1), c.Get(100))
	assert.True(t, c.IsNull(2))
	assert.Equal(t, 4, c.Len())
}

func TestColumnSetBeforeAllocatePanics(t *testing.T) {
	c := New[uint8]("roadType", 0, 0)
	assert.Panics(t, func() { c.Set(1, 1) })
}

func TestColumnGrowth(t *testing.T) {
	c := New[int64]("identifier", math.MinInt64, 1)
	c.Allocate()
	for i := uint32(1); i <= 1000; i++ {
		c.Set(i, int64(i)*10)
	}
	for i := uint32(1); i <= 1000; i++ {
		require.Equal(t, int64(i)*10, c.Get(i))
	}
	assert.Equal(t, int64(math.MinInt64), c.Get(0))
	assert.Equal(t, uint32(1001), c.Append(7))
}

func TestColumnSaveLoad(t *testing.T) {
	store := newMemSections()
	c := New[uint32]("lengthMillimeters", 0, 8)
	c.Allocate()
	c.Set(1, 1500)
	c.Set(2, 99)
	require.NoError(t, c.Save(store))

	loaded := New[uint32]("lengthMillimeters", 0, 8)
	loaded.Attach(store)
	assert.Equal(t, uint32(1500), loaded.Get(1), "first read loads lazily")
	assert.Equal(t, Loaded, loaded.State())
	assert.Equal(t, uint32(99), loaded.Get(2))
	assert.Equal(t, 1, store.reads["lengthMillimeters"])

	assert.Panics(t, func() { loaded.Set(3, 1) }, "loaded is read-only until allocated")
	loaded.Allocate()
	loaded.Set(3, 7)
	assert.Equal(t, uint32(1500), loaded.Get(1))
	assert.Equal(t, uint32(7), loaded.Get(3))
}

func TestColumnConcurrentLazyLoad(t *testing.T) {
	store := newMemSections()
	c := New[int32]("fromVertex", 0, 8)
	c.Allocate()
	for i := uint32(1); i < 100; i++ {
		c.Set(i, int32(i))
	}
	require.NoError(t, c.Save(store))

	loaded := New[int32]("fromVertex", 0, 8)
	loaded.Attach(store)
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := uint32(1); i < 100; i++ {
				assert.Equal(t, int32(i), loaded.Get(i))
			}
		}()
	}
	wg.Wait()
}

func TestColumnEmptySaveSkipped(t *testing.T) {
	store := newMemSections()
	c := New[int8]("fromGradeSeparation", math.MinInt8, 0)
	require.NoError(t, c.Save(store))
	c.Allocate()
	require.NoError(t, c.Save(store))
	assert.Empty(t, store.data)
}

func TestColumnLoadError(t *testing.T) {
	c := New[int64]("boundsBottomLeft", 0, 0)
	c.Attach(failingSource{})
	assert.Equal(t, int64(0), c.Get(5))
	assert.Error(t, c.Err())

	store := newMemSections()
	store.data["corrupt"] = []byte{1, 2, 3}
	bad := New[int32]("corrupt", 0, 0)
	bad.Attach(store)
	_, err := bad.Load()
	assert.ErrorIs(t, err, ErrCorrupt)
}
