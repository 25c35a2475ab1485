package graph

import (
	"cmp"
	"iter"
	"slices"

	"github.com/paulmach/orb"
	"github.com/pkg/errors"
	"github.com/tidwall/rtree"

	"roadgraph/pkg/column"
	"roadgraph/pkg/geo"
)

const spatialIndexSection = "spatialIndex"

// ErrSpatialIndexMissing is returned when a non-empty graph is queried
// spatially before its index exists.
var ErrSpatialIndexMissing = errors.New("spatial index missing")

type spatialEntry struct {
	index  uint32
	bl, tr geo.Location
}

// SpatialIndex is an R-tree over forward edge bounding boxes.
type SpatialIndex struct {
	tree    rtree.RTreeG[uint32]
	entries []spatialEntry
}

// buildSpatialIndex bulk-loads every live forward edge in Hilbert order of
// its bounding box centre.
func buildSpatialIndex(e *EdgeStore) *SpatialIndex {
	entries := make([]spatialEntry, 0, e.ForwardCount())
	for ref := range e.Forward() {
		entries = append(entries, spatialEntry{
			index: ref.Index,
			bl:    geo.Location(e.boundsBL.Get(ref.Index)),
			tr:    geo.Location(e.boundsTR.Get(ref.Index)),
		})
	}
	keys := make(map[uint32]uint64, len(entries))
	for _, en := range entries {
		keys[en.index] = centreKey(en.bl, en.tr)
	}
	slices.SortStableFunc(entries, func(a, b spatialEntry) int {
		return cmp.Compare(keys[a.index], keys[b.index])
	})
	return newSpatialIndex(entries)
}

func newSpatialIndex(entries []spatialEntry) *SpatialIndex {
	idx := &SpatialIndex{entries: entries}
	for _, en := range entries {
		idx.tree.Insert(corner(en.bl), corner(en.tr), en.index)
	}
	return idx
}

func corner(l geo.Location) [2]float64 { return [2]float64{l.Lon(), l.Lat()} }

// Len is the number of indexed edges.
func (idx *SpatialIndex) Len() int { return idx.tree.Len() }

// Intersecting yields the indexes of edges whose bounding box intersects b.
func (idx *SpatialIndex) Intersecting(b orb.Bound) iter.Seq[uint32] {
	return func(yield func(uint32) bool) {
		lo, hi := [2]float64{b.Min.Lon(), b.Min.Lat()}, [2]float64{b.Max.Lon(), b.Max.Lat()}
		idx.tree.Search(lo, hi, func(_, _ [2]float64, index uint32) bool {
			return yield(index)
		})
	}
}

func (idx *SpatialIndex) save(w Writer) error {
	if len(idx.entries) == 0 {
		return nil
	}
	c := column.New[int64](spatialIndexSection, 0, 3*len(idx.entries))
	c.Allocate()
	for _, en := range idx.entries {
		c.Append(int64(en.index))
		c.Append(int64(en.bl))
		c.Append(int64(en.tr))
	}
	return c.Save(w)
}

// loadSpatialIndex reads a persisted entry list. found is false when the
// archive carries no index.
func loadSpatialIndex(a Archive) (*SpatialIndex, bool, error) {
	c := column.New[int64](spatialIndexSection, 0, 0)
	c.Attach(a)
	found, err := c.Load()
	if err != nil || !found {
		return nil, false, err
	}
	raw := c.Range(0, uint32(c.Len()))
	if len(raw)%3 != 0 {
		return nil, false, errors.Wrapf(column.ErrCorrupt, "%s: %d values", spatialIndexSection, len(raw))
	}
	entries := make([]spatialEntry, len(raw)/3)
	for i := range entries {
		entries[i] = spatialEntry{
			index: uint32(raw[3*i]),
			bl:    geo.Location(raw[3*i+1]),
			tr:    geo.Location(raw[3*i+2]),
		}
	}
	return newSpatialIndex(entries), true, nil
}

// centreKey is the Hilbert curve distance of a box centre on the 2^32 grid.
func centreKey(bl, tr geo.Location) uint64 {
	x := uint32((int64(bl.LonE7())+int64(tr.LonE7()))/2 + 1<<31)
	y := uint32((int64(bl.LatE7())+int64(tr.LatE7()))/2 + 1<<31)
	return hilbertKey(x, y)
}

func hilbertKey(x, y uint32) uint64 {
	var d uint64
	for m := uint32(1 << 31); m > 0; m >>= 1 {
		var rx, ry uint32
		if x&m != 0 {
			rx = 1
		}
		if y&m != 0 {
			ry = 1
		}
		d += uint64(m) * uint64(m) * uint64(3*rx^ry)
		// Remap into the first quadrant before descending.
		if ry == 0 {
			if rx == 1 {
				x, y = ^x, ^y
			}
			x, y = y, x
		}
	}
	return d
}
