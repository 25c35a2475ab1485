package ingest

import (
	"sync"

	"github.com/paulmach/osm"

	"roadgraph/pkg/geo"
)

// NodeCache maps node identifiers to locations for the way phase. It is
// frozen once the node phase ends.
type NodeCache struct {
	mu     sync.RWMutex
	locs   map[osm.NodeID]geo.Location
	frozen bool
}

func NewNodeCache() *NodeCache {
	return &NodeCache{locs: map[osm.NodeID]geo.Location{}}
}

// Put records a node location. It reports false once the cache is frozen.
func (c *NodeCache) Put(id osm.NodeID, loc geo.Location) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.frozen {
		return false
	}
	c.locs[id] = loc
	return true
}

func (c *NodeCache) Get(id osm.NodeID) (geo.Location, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	loc, ok := c.locs[id]
	return loc, ok
}

func (c *NodeCache) Freeze() {
	c.mu.Lock()
	c.frozen = true
	c.mu.Unlock()
}

func (c *NodeCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.locs)
}

// Reset empties and unfreezes the cache for the next input.
func (c *NodeCache) Reset() {
	c.mu.Lock()
	clear(c.locs)
	c.frozen = false
	c.mu.Unlock()
}
