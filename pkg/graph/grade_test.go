package graph

import (
	"testing"

	"github.com/paulmach/osm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeparateGrades(t *testing.T) {
	g := New()
	p := loc(1, 103)
	e1 := g.AddEdge(road(80, 1, 1, 5, TwoWay, loc(0.99, 103), p))
	e2 := g.AddEdge(road(80, 2, 5, 2, TwoWay, p, loc(1.01, 103)))
	over := road(81, 1, 3, 5, OneWay, loc(1, 102.99), p)
	over.ToGrade = 1
	e3 := g.AddEdge(over)
	overOut := road(81, 2, 5, 4, OneWay, p, loc(1, 103.01))
	overOut.FromGrade = 1
	e4 := g.AddEdge(overOut)

	res := g.Finalize(false, true)
	assert.Equal(t, 1, res.GradeClones)
	assert.Equal(t, 6, g.Vertices.Count())

	e := g.Edges
	v, ok := g.Vertices.ForNode(5)
	require.True(t, ok)
	clone := e.ToVertex(e3)
	assert.Equal(t, v, e.ToVertex(e1))
	assert.Equal(t, v, e.FromVertex(e2))
	assert.NotEqual(t, v, clone)
	assert.Equal(t, clone, e.FromVertex(e4))

	assert.Equal(t, p, g.Vertices.Location(v))
	assert.Equal(t, p.Perturb(1), g.Vertices.Location(clone))
	assert.Equal(t, int8(0), g.Vertices.Grade(v))
	assert.Equal(t, int8(1), g.Vertices.Grade(clone))
	assert.Equal(t, osm.NodeID(5), g.Vertices.NodeID(clone))

	shape := e.Shape(e3)
	assert.Equal(t, p.Perturb(1), shape[len(shape)-1])
	assert.Equal(t, p.Perturb(1), e.Shape(e4)[0])

	assert.Equal(t, 2, g.Vertices.TwoWayCount(v))
	assert.Zero(t, g.Vertices.InCount(v)+g.Vertices.OutCount(v))
	assert.Equal(t, 1, g.Vertices.InCount(clone))
	assert.Equal(t, 1, g.Vertices.OutCount(clone))
}

func TestSeparateGradesKeepsLevelsDistinct(t *testing.T) {
	g := New()
	p := loc(1, 103)
	g.AddEdge(road(82, 1, 1, 5, OneWay, loc(0.99, 103), p))
	g.AddEdge(road(82, 2, 5, 2, OneWay, p, loc(1.01, 103)))
	up := road(83, 1, 3, 5, OneWay, loc(1, 102.99), p)
	up.ToGrade = 1
	upRef := g.AddEdge(up)
	down := road(84, 1, 4, 5, OneWay, loc(1, 103.01), p)
	down.ToGrade = -1
	downRef := g.AddEdge(down)

	res := g.Finalize(false, true)
	assert.Equal(t, 2, res.GradeClones)

	v, _ := g.Vertices.ForNode(5)
	vUp, vDown := g.Edges.ToVertex(upRef), g.Edges.ToVertex(downRef)
	locs := map[any]bool{
		g.Vertices.Location(v):     true,
		g.Vertices.Location(vUp):   true,
		g.Vertices.Location(vDown): true,
	}
	assert.Len(t, locs, 3)
	assert.Equal(t, int8(-1), g.Vertices.Grade(vDown))
}

func TestSeparateGradesNeedsThreeEdges(t *testing.T) {
	g := New()
	p := loc(1, 103)
	g.AddEdge(road(85, 1, 1, 5, OneWay, loc(0.99, 103), p))
	ramp := road(85, 2, 5, 2, OneWay, p, loc(1.01, 103))
	ramp.FromGrade = 1
	g.AddEdge(ramp)

	res := g.Finalize(false, true)
	assert.Zero(t, res.GradeClones)
	assert.Equal(t, 3, g.Vertices.Count())
}

func TestGradeSeparateRequiresAttachedEdge(t *testing.T) {
	g := triangle(t)
	r11 := g.Edges.Route(11)[0]
	v1, _ := g.Vertices.ForNode(1)
	assert.Panics(t, func() { g.Vertices.GradeSeparate(v1, 1, []EdgeRef{r11}) })

	g.Finalize(false, false)
	assert.Panics(t, func() { g.Vertices.GradeSeparate(v1, 1, nil) })
}
