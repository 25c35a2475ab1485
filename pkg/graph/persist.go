package graph

import (
	"github.com/pkg/errors"

	"roadgraph/pkg/archive"
	"roadgraph/pkg/column"
)

// Scalar field names.
const (
	scalarEdgeCount        = "edgeCount"
	scalarForwardEdgeCount = "forwardEdgeCount"
	scalarEdgeHighIndex    = "edgeHighIndex"
	scalarVertexCount      = "vertexCount"
	scalarRelationCount    = "relationCount"
	scalarNextRelationID   = "nextRelationIdentifier"
	scalarRemovedEdgeCount = "removedEdgeCount"
)

var (
	ErrNotCommitted = errors.New("graph not finalized")
	ErrNotGraph     = errors.New("archive holds no graph")
)

// Archive is the read side of a persisted graph.
type Archive interface {
	column.Source
	Value(name string, v any) (bool, error)
	Scalar(name string) (int64, bool)
	Has(name string) bool
	Close() error
}

// Writer is the write side of a persisted graph.
type Writer interface {
	column.Sink
	PutValue(name string, v any) error
	SetScalar(name string, v int64)
}

// Save writes the finalized graph to path. The file appears only once it
// is complete.
func (g *Graph) Save(path string) error {
	if !g.Committed() {
		return ErrNotCommitted
	}
	w, err := archive.Create(path)
	if err != nil {
		return err
	}
	if err := g.write(w); err != nil {
		w.Abort()
		return errors.Wrapf(err, "save graph to %s", path)
	}
	if err := w.Close(); err != nil {
		return err
	}
	g.buildID = w.BuildID()
	return nil
}

func (g *Graph) write(w Writer) error {
	e := g.Edges
	w.SetScalar(scalarEdgeCount, int64(e.edgeCount))
	w.SetScalar(scalarForwardEdgeCount, int64(e.forwardCount))
	w.SetScalar(scalarEdgeHighIndex, int64(e.high))
	w.SetScalar(scalarRemovedEdgeCount, int64(e.removedCount))
	w.SetScalar(scalarVertexCount, int64(g.Vertices.count))
	if err := e.save(w); err != nil {
		return err
	}
	if err := g.Vertices.save(w); err != nil {
		return err
	}
	if err := g.Relations.save(w); err != nil {
		return err
	}
	g.spatialMu.Lock()
	idx := g.spatial
	g.spatialMu.Unlock()
	if idx == nil {
		return nil
	}
	return idx.save(w)
}

// Load opens a saved graph. Columns are read from the file on first use,
// so the graph must be closed when no longer needed.
func Load(path string, opts ...Option) (*Graph, error) {
	r, err := archive.Open(path)
	if err != nil {
		return nil, err
	}
	g := newGraph(opts)
	if err := g.attach(r); err != nil {
		r.Close()
		return nil, errors.Wrapf(err, "load graph from %s", path)
	}
	g.buildID = r.BuildID()
	g.log.Sugar().Infof("loaded graph %s: %d edges, %d vertices", g.buildID, g.Edges.Count(), g.Vertices.Count())
	return g, nil
}

func (g *Graph) attach(a Archive) error {
	high, ok := a.Scalar(scalarEdgeHighIndex)
	if !ok {
		return ErrNotGraph
	}
	scalar := func(name string) int {
		v, _ := a.Scalar(name)
		return int(v)
	}
	e := g.Edges
	e.high = uint32(high)
	e.edgeCount = scalar(scalarEdgeCount)
	e.forwardCount = scalar(scalarForwardEdgeCount)
	e.removedCount = scalar(scalarRemovedEdgeCount)
	g.Vertices.count = uint32(scalar(scalarVertexCount))

	e.attach(a)
	g.Vertices.attach(a)
	g.Relations.attach(a)
	g.archive = a
	return nil
}

// Close releases the archive of a loaded graph.
func (g *Graph) Close() error {
	if g.archive == nil {
		return nil
	}
	return g.archive.Close()
}
