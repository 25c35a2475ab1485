package graph

import (
	"testing"

	"github.com/paulmach/osm"
)

func TestUnionFind(t *testing.T) {
	uf := NewUnionFind(5)

	// Initially all separate.
	for i := range uint32(5) {
		if uf.Find(i) != i {
			t.Errorf("Find(%d) = %d, want %d", i, uf.Find(i), i)
		}
	}

	uf.Union(0, 1)
	if uf.Find(0) != uf.Find(1) {
		t.Error("0 and 1 should be in same set")
	}

	uf.Union(2, 3)
	if uf.Find(2) != uf.Find(3) {
		t.Error("2 and 3 should be in same set")
	}

	if uf.Find(0) == uf.Find(2) {
		t.Error("0 and 2 should be in different sets")
	}

	if !uf.Union(1, 3) {
		t.Error("Union(1, 3) should merge two sets")
	}
	if uf.Union(0, 2) {
		t.Error("Union(0, 2) should report an existing set")
	}
	if uf.Size(3) != 4 {
		t.Errorf("Size(3) = %d, want 4", uf.Size(3))
	}
}

// twoComponents builds a path 10-20-30 and a separate pair 40-50.
func twoComponents() *Graph {
	g := New()
	pt := func(n osm.NodeID) []float64 { return []float64{1 + float64(n)/100, 103 + float64(n)/100} }
	add := func(way osm.WayID, from, to osm.NodeID, state RoadState) {
		a, b := pt(from), pt(to)
		g.AddEdge(road(way, 1, from, to, state, loc(a[0], a[1]), loc(b[0], b[1])))
	}
	add(1, 10, 20, TwoWay)
	add(2, 20, 30, OneWay)
	add(3, 40, 50, TwoWay)
	return g
}

func TestComponents(t *testing.T) {
	g := twoComponents()
	g.Finalize(false, false)

	count, largest := Components(g)
	if count != 2 {
		t.Errorf("Components count = %d, want 2", count)
	}
	if largest != 3 {
		t.Errorf("largest component = %d, want 3", largest)
	}
}

func TestLargestComponent(t *testing.T) {
	g := twoComponents()
	g.Finalize(false, false)

	vertices := LargestComponent(g)
	if len(vertices) != 3 {
		t.Fatalf("LargestComponent has %d vertices, want 3", len(vertices))
	}
	for _, n := range []osm.NodeID{10, 20, 30} {
		v, _ := g.Vertices.ForNode(n)
		found := false
		for _, got := range vertices {
			found = found || got == v
		}
		if !found {
			t.Errorf("vertex of node %d missing from largest component", n)
		}
	}
}

func TestLargestComponentEmptyGraph(t *testing.T) {
	g := New()
	g.Finalize(false, false)
	if vertices := LargestComponent(g); vertices != nil {
		t.Errorf("expected nil for empty graph, got %v", vertices)
	}
	if count, _ := Components(g); count != 0 {
		t.Errorf("Components = %d, want 0", count)
	}
}
