package graph

import (
	"iter"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"go.uber.org/zap"
)

// Graph owns the edge, vertex and relation stores. Stores reach each other
// through the graph they were created with.
type Graph struct {
	Edges     *EdgeStore
	Vertices  *VertexStore
	Relations *RelationStore

	log     *zap.Logger
	merge   bool
	archive Archive
	buildID uuid.UUID

	spatialMu sync.Mutex
	spatial   *SpatialIndex
}

type config struct {
	log      *zap.Logger
	merge    bool
	estimate int
}

// Option configures a Graph.
type Option func(*config)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(c *config) { c.log = l }
}

// WithMerge enables fusing of clipped edges from several inputs.
func WithMerge(merge bool) Option {
	return func(c *config) { c.merge = merge }
}

// WithEstimate sizes the first column allocation for n edges.
func WithEstimate(n int) Option {
	return func(c *config) { c.estimate = n }
}

func newGraph(opts []Option) *Graph {
	cfg := config{log: zap.NewNop(), estimate: 1024}
	for _, o := range opts {
		o(&cfg)
	}
	g := &Graph{log: cfg.log, merge: cfg.merge}
	g.Edges = newEdgeStore(g, cfg.estimate)
	g.Vertices = newVertexStore(g, cfg.estimate)
	g.Relations = newRelationStore(g)
	return g
}

// New returns an empty graph ready for ingestion.
func New(opts ...Option) *Graph {
	g := newGraph(opts)
	g.Edges.allocate()
	g.Vertices.allocate()
	return g
}

// Merging reports whether clipped edges are fused.
func (g *Graph) Merging() bool { return g.merge }

// Committed reports whether adjacency has been compacted. A committed graph
// accepts no further edges.
func (g *Graph) Committed() bool { return g.Vertices.committed }

// BuildID identifies the archive the graph was last saved to or loaded from.
func (g *Graph) BuildID() uuid.UUID { return g.buildID }

// AddEdge stores d, fusing it with buffered fragments in merge mode, and
// returns the ref of the edge that now carries d's geometry.
func (g *Graph) AddEdge(d EdgeData) EdgeRef {
	if g.Committed() {
		panic("graph: AddEdge after commit")
	}
	return g.Edges.onAdd(d)
}

// FinalizeResult counts the work done by Finalize.
type FinalizeResult struct {
	DiscardedFragments int
	GradeClones        int
	DroppedVertices    int
	Vertices           int
	Indexed            int
}

// Finalize ends ingestion: unresolved fragments are discarded, grades are
// optionally separated, vertices are flushed, adjacency is committed and
// the spatial index is optionally built.
func (g *Graph) Finalize(spatial, separateGrades bool) FinalizeResult {
	var res FinalizeResult
	if g.merge {
		res.DiscardedFragments = g.Edges.discardFragments()
	}
	if separateGrades {
		res.GradeClones = g.Vertices.SeparateGrades()
	}
	res.DroppedVertices = g.Vertices.commit()
	res.Vertices = g.Vertices.Count()
	if spatial {
		idx := buildSpatialIndex(g.Edges)
		g.spatialMu.Lock()
		g.spatial = idx
		g.spatialMu.Unlock()
		res.Indexed = idx.Len()
	}
	g.log.Info("graph finalized",
		zap.Int("edges", g.Edges.Count()),
		zap.Int("vertices", res.Vertices),
		zap.Int("relations", g.Relations.Count()),
		zap.Int("discardedFragments", res.DiscardedFragments),
		zap.Int("gradeClones", res.GradeClones),
		zap.Int("droppedVertices", res.DroppedVertices))
	return res
}

func (g *Graph) invalidateSpatialIndex() {
	g.spatialMu.Lock()
	g.spatial = nil
	g.spatialMu.Unlock()
}

// SpatialIndex returns the cached index, loading it from the archive or
// building it on first use once the graph is committed. A non-empty graph
// still being ingested has no index.
func (g *Graph) SpatialIndex() (*SpatialIndex, error) {
	g.spatialMu.Lock()
	defer g.spatialMu.Unlock()
	if g.spatial != nil {
		return g.spatial, nil
	}
	if g.archive != nil {
		idx, found, err := loadSpatialIndex(g.archive)
		if err != nil {
			return nil, err
		}
		if found {
			g.spatial = idx
			return idx, nil
		}
	}
	if !g.Committed() {
		if g.Edges.ForwardCount() == 0 {
			return newSpatialIndex(nil), nil
		}
		return nil, ErrSpatialIndexMissing
	}
	g.spatial = buildSpatialIndex(g.Edges)
	return g.spatial, nil
}

// IntersectingEdges yields forward refs of edges whose bounds intersect b.
func (g *Graph) IntersectingEdges(b orb.Bound) (iter.Seq[EdgeRef], error) {
	idx, err := g.SpatialIndex()
	if err != nil {
		return nil, err
	}
	return func(yield func(EdgeRef) bool) {
		for index := range idx.Intersecting(b) {
			ref := EdgeRef{Index: index}
			if !g.Edges.Valid(ref) {
				continue
			}
			if !yield(ref) {
				return
			}
		}
	}, nil
}

// VerticesWithin returns the sorted, deduplicated end vertices of every
// edge intersecting b.
func (g *Graph) VerticesWithin(b orb.Bound) ([]uint32, error) {
	edges, err := g.IntersectingEdges(b)
	if err != nil {
		return nil, err
	}
	seen := map[uint32]struct{}{}
	for ref := range edges {
		seen[g.Edges.FromVertex(ref)] = struct{}{}
		seen[g.Edges.ToVertex(ref)] = struct{}{}
	}
	vertices := make([]uint32, 0, len(seen))
	for v := range seen {
		vertices = append(vertices, v)
	}
	slices.Sort(vertices)
	return vertices, nil
}

// Stats summarizes the graph's sizes.
type Stats struct {
	Edges        int `json:"edges"`
	ForwardEdges int `json:"forward_edges"`
	RemovedEdges int `json:"removed_edges"`
	Vertices     int `json:"vertices"`
	Relations    int `json:"relations"`
}

func (g *Graph) Stats() Stats {
	return Stats{
		Edges:        g.Edges.Count(),
		ForwardEdges: g.Edges.ForwardCount(),
		RemovedEdges: g.Edges.RemovedCount(),
		Vertices:     g.Vertices.Count(),
		Relations:    g.Relations.Count(),
	}
}
