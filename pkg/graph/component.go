package graph

// UnionFind is a disjoint-set forest with path halving and union by rank.
type UnionFind struct {
	parent []uint32
	rank   []byte
	size   []uint32
}

// NewUnionFind creates a UnionFind for n elements.
func NewUnionFind(n uint32) *UnionFind {
	parent := make([]uint32, n)
	size := make([]uint32, n)
	for i := range n {
		parent[i] = i
		size[i] = 1
	}
	return &UnionFind{
		parent: parent,
		rank:   make([]byte, n),
		size:   size,
	}
}

// Find returns the representative of the set containing x.
func (uf *UnionFind) Find(x uint32) uint32 {
	for uf.parent[x] != x {
		uf.parent[x] = uf.parent[uf.parent[x]]
		x = uf.parent[x]
	}
	return x
}

// Union merges the sets containing x and y. Returns false if already same set.
func (uf *UnionFind) Union(x, y uint32) bool {
	rx := uf.Find(x)
	ry := uf.Find(y)
	if rx == ry {
		return false
	}
	if uf.rank[rx] < uf.rank[ry] {
		rx, ry = ry, rx
	}
	uf.parent[ry] = rx
	uf.size[rx] += uf.size[ry]
	if uf.rank[rx] == uf.rank[ry] {
		uf.rank[rx]++
	}
	return true
}

// Size is the number of elements in x's set.
func (uf *UnionFind) Size(x uint32) uint32 { return uf.size[uf.Find(x)] }

// vertexSets unions the end vertices of every live edge. Edges are treated
// as undirected.
func vertexSets(g *Graph) *UnionFind {
	uf := NewUnionFind(uint32(g.Vertices.Count()) + 1)
	for ref := range g.Edges.Forward() {
		uf.Union(g.Edges.FromVertex(ref), g.Edges.ToVertex(ref))
	}
	return uf
}

// Components counts the weakly connected components that contain at least
// one edge and returns the vertex count of the largest.
func Components(g *Graph) (count, largest int) {
	uf := vertexSets(g)
	roots := map[uint32]struct{}{}
	for ref := range g.Edges.Forward() {
		root := uf.Find(g.Edges.FromVertex(ref))
		if _, seen := roots[root]; seen {
			continue
		}
		roots[root] = struct{}{}
		largest = max(largest, int(uf.size[root]))
	}
	return len(roots), largest
}

// LargestComponent returns the vertices of the largest weakly connected
// component in ascending order.
func LargestComponent(g *Graph) []uint32 {
	n := uint32(g.Vertices.Count())
	if n == 0 || g.Edges.ForwardCount() == 0 {
		return nil
	}
	uf := vertexSets(g)

	var bestRoot, bestSize uint32
	for ref := range g.Edges.Forward() {
		root := uf.Find(g.Edges.FromVertex(ref))
		if uf.size[root] > bestSize {
			bestRoot, bestSize = root, uf.size[root]
		}
	}

	vertices := make([]uint32, 0, bestSize)
	for v := uint32(1); v <= n; v++ {
		if uf.Find(v) == bestRoot {
			vertices = append(vertices, v)
		}
	}
	return vertices
}
