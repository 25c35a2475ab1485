package ingest

import (
	"context"
	"slices"

	"github.com/paulmach/orb"
	"github.com/paulmach/osm"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"roadgraph/pkg/geo"
	"roadgraph/pkg/graph"
)

const (
	queueSize = 1024

	// Connecting roads longer than this are treated as ramps.
	maxConnectingRoadMillimeters = 1_000_000
)

// Place is a named settlement or locality node.
type Place struct {
	Node     osm.NodeID
	Location geo.Location
	Kind     string
	Name     string
}

type pendingWay struct {
	way      *osm.Way
	tags     osm.Tags
	roadType graph.RoadType
	subType  graph.RoadSubType
	state    graph.RoadState
	reversed bool
}

// Loader turns OSM records into a graph. One Loader may load several
// inputs; with merging enabled, edges clipped at the border of one input
// are fused with their continuation in another.
type Loader struct {
	opts Options
	log  *zap.Logger
	g    *graph.Graph

	nodes      *NodeCache
	referenced map[osm.NodeID]struct{}
	ways       []pendingWay
	junctions  map[osm.NodeID]int
	levels     map[osm.NodeID]int8
	places     []Place

	input Stats // current or most recent input
	stats Stats // every input so far
}

// New creates a Loader with an empty graph.
func New(opts ...Option) (*Loader, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.WayFilter == nil {
		return nil, ErrNoWayFilter
	}
	return &Loader{
		opts:      o,
		log:       o.Logger,
		g:         graph.New(graph.WithLogger(o.Logger), graph.WithMerge(o.Merge)),
		nodes:     NewNodeCache(),
		junctions: map[osm.NodeID]int{},
		levels:    map[osm.NodeID]int8{},
	}, nil
}

func (l *Loader) Graph() *graph.Graph { return l.g }
func (l *Loader) Stats() Stats        { return l.stats }
func (l *Loader) Places() []Place     { return l.places }

// LoadFile loads path clipped to the configured region.
func (l *Loader) LoadFile(ctx context.Context, path string) error {
	return l.LoadFileInRegion(ctx, path, l.opts.Region)
}

// LoadFileInRegion loads path clipped to region, which overrides the
// configured one for this input only.
func (l *Loader) LoadFileInRegion(ctx context.Context, path string, region orb.MultiPolygon) error {
	log := l.log.With(zap.String("input", path))
	if l.opts.Prescan {
		if err := l.prescan(ctx, path); err != nil {
			return err
		}
		log.Info("prescan finished", zap.Int("referencedNodes", len(l.referenced)))
	}
	src, err := Open(ctx, path, l.opts.decoders())
	if err != nil {
		return err
	}
	defer src.Close()

	if err := l.Load(ctx, src, region); err != nil {
		return errors.Wrapf(err, "load %s", path)
	}
	log.Info("input loaded",
		zap.Int("ways", l.input.Ways.Accepted),
		zap.Int("edges", l.input.Edges.Added),
		zap.Int("relations", l.input.Relations.Accepted))
	return nil
}

// prescan records the nodes referenced by accepted ways so the node phase
// caches nothing else.
func (l *Loader) prescan(ctx context.Context, path string) error {
	src, err := Open(ctx, path, l.opts.decoders())
	if err != nil {
		return err
	}
	defer src.Close()
	src.skipNodes()

	referenced := map[osm.NodeID]struct{}{}
	err = func() error {
		for src.Scan() {
			switch o := src.Object().(type) {
			case *osm.Way:
				if _, ok := l.acceptWay(o); !ok {
					continue
				}
				for _, n := range o.Nodes {
					referenced[n.ID] = struct{}{}
				}
			case *osm.Relation:
				return errStopProcessing
			}
		}
		return src.Err()
	}()
	if err != nil && !errors.Is(err, errStopProcessing) {
		return errors.Wrapf(err, "prescan %s", path)
	}
	l.referenced = referenced
	return nil
}

type dispatcher struct {
	nodes      chan *osm.Node
	ways       chan *osm.Way
	relations  chan *osm.Relation
	phase      osm.Type
	outOfPhase int
}

var phases = []osm.Type{osm.TypeNode, osm.TypeWay, osm.TypeRelation}

func phaseOf(t osm.Type) int { return slices.Index(phases, t) }

// advance closes the queues of every phase before to.
func (d *dispatcher) advance(to int) {
	for cur := phaseOf(d.phase); cur >= 0 && cur < to; cur++ {
		switch phases[cur] {
		case osm.TypeNode:
			close(d.nodes)
		case osm.TypeWay:
			close(d.ways)
		case osm.TypeRelation:
			close(d.relations)
		}
		if cur+1 < len(phases) {
			d.phase = phases[cur+1]
		} else {
			d.phase = ""
		}
	}
}

// enter moves to the phase of t, reporting false for a late record.
func (d *dispatcher) enter(t osm.Type) bool {
	p := phaseOf(t)
	if d.phase == "" || p < phaseOf(d.phase) {
		d.outOfPhase++
		return false
	}
	d.advance(p)
	return true
}

func send[T any](ctx context.Context, ch chan<- T, v T) error {
	select {
	case ch <- v:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// run reads the scanner and queues each record in its phase. Records of
// an earlier phase arriving late are counted and dropped.
func (d *dispatcher) run(ctx context.Context, sc osm.Scanner) (err error) {
	defer d.advance(len(phases))
	for sc.Scan() {
		switch o := sc.Object().(type) {
		case *osm.Node:
			if d.enter(osm.TypeNode) {
				err = send(ctx, d.nodes, o)
			}
		case *osm.Way:
			if d.enter(osm.TypeWay) {
				err = send(ctx, d.ways, o)
			}
		case *osm.Relation:
			if d.enter(osm.TypeRelation) {
				err = send(ctx, d.relations, o)
			}
		}
		if err != nil {
			return err
		}
	}
	return sc.Err()
}

// Load consumes one scanner. Decoding runs in its own goroutine; all graph
// mutation happens on the calling goroutine in node, way, relation order.
func (l *Loader) Load(ctx context.Context, sc osm.Scanner, region orb.MultiPolygon) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	d := &dispatcher{
		nodes:     make(chan *osm.Node, queueSize),
		ways:      make(chan *osm.Way, queueSize),
		relations: make(chan *osm.Relation, queueSize),
		phase:     osm.TypeNode,
	}
	errc := make(chan error, 1)
	go func() { errc <- d.run(ctx, sc) }()

	l.nodes.Reset()
	l.input = Stats{}
	for n := range d.nodes {
		l.addNode(n)
	}
	l.nodes.Freeze()
	for w := range d.ways {
		l.addWay(w)
	}
	l.flushWays(region)
	for r := range d.relations {
		l.addRelation(r)
	}

	err := <-errc
	l.input.OutOfPhase += d.outOfPhase
	if d.outOfPhase > 0 {
		l.log.Warn("records out of phase", zap.Int("count", d.outOfPhase))
	}
	l.referenced = nil
	l.stats.merge(l.input)
	return err
}

func (l *Loader) addNode(n *osm.Node) {
	loc := geo.NewLocation(n.Lat, n.Lon)
	if !loc.Valid() {
		l.input.Nodes.Discarded++
		return
	}
	if kind := n.Tags.Find("place"); kind != "" {
		l.addPlace(n, kind, loc)
	}
	if l.referenced != nil {
		if _, ok := l.referenced[n.ID]; !ok {
			l.input.Nodes.Filtered++
			return
		}
	}
	l.nodes.Put(n.ID, loc)
	l.input.Nodes.Accepted++
}

func (l *Loader) addPlace(n *osm.Node, kind string, loc geo.Location) {
	name := n.Tags.Find("name")
	if name == "" {
		l.input.Places.Discarded++
		return
	}
	l.places = append(l.places, Place{Node: n.ID, Location: loc, Kind: kind, Name: name})
	l.input.Places.Added++
}

func (l *Loader) filtered(w *osm.Way) bool {
	return !l.opts.WayFilter(w) || denied[w.Tags.Find("highway")]
}

// acceptWay applies the filters and classification shared by the prescan
// and the way phase.
func (l *Loader) acceptWay(w *osm.Way) (pendingWay, bool) {
	if l.filtered(w) {
		return pendingWay{}, false
	}
	return l.classifyWay(w)
}

func (l *Loader) classifyWay(w *osm.Way) (pendingWay, bool) {
	typ, sub, ok := classify(w.Tags.Find("highway"))
	if !ok {
		return pendingWay{}, false
	}
	state, reversed, ok := roadState(w.Tags)
	if !ok || len(w.Nodes) < 2 {
		return pendingWay{}, false
	}
	if isRoundabout(w.Tags) {
		sub = graph.Roundabout
	}
	return pendingWay{
		way:      w,
		tags:     filterTags(w.Tags, l.opts.TagFilter),
		roadType: typ,
		subType:  sub,
		state:    state,
		reversed: reversed,
	}, true
}

func (l *Loader) addWay(w *osm.Way) {
	if l.filtered(w) {
		l.input.Ways.Filtered++
		return
	}
	p, ok := l.classifyWay(w)
	if !ok {
		l.log.Debug("discarded way", zap.Int64("way", int64(w.ID)))
		l.input.Ways.Discarded++
		return
	}
	l.ways = append(l.ways, p)
	level := grade(p.tags)
	for _, n := range w.Nodes {
		l.junctions[n.ID]++
		if prev, seen := l.levels[n.ID]; !seen || nearerGround(level, prev) {
			l.levels[n.ID] = level
		}
	}
}

// flushWays sections the buffered ways at junctions and stores the
// resulting edges.
func (l *Loader) flushWays(region orb.MultiPolygon) {
	junction := func(n osm.NodeID) bool { return l.junctions[n] > 1 }
	for _, p := range l.ways {
		run, ok := resolveWay(p.way, l.nodes.Get)
		if !ok || run.distinct() < 2 {
			l.log.Debug("way lacks resolvable nodes", zap.Int64("way", int64(p.way.ID)))
			l.input.Ways.Discarded++
			continue
		}
		l.input.Ways.Accepted++

		seq := 0
		for _, c := range cleanCut(run, region) {
			if !c.inside {
				l.input.Edges.Discarded++
				continue
			}
			for _, s := range c.sections(junction) {
				s = s.dedupe()
				if len(s.nodes) < 2 {
					l.input.Edges.Discarded++
					continue
				}
				seq++
				l.addEdge(&p, graph.NewEdgeID(p.way.ID, seq), s)
			}
		}
	}
	l.ways = l.ways[:0]
	clear(l.junctions)
	clear(l.levels)
}

// endGrade is the grade of an edge end at node. Ways sharing a real node
// meet there, so the end takes the level of the way nearest the ground.
func (l *Loader) endGrade(node osm.NodeID, level int8) int8 {
	if node > 0 && l.junctions[node] > 1 {
		return l.levels[node]
	}
	return level
}

func (l *Loader) addEdge(p *pendingWay, id graph.EdgeID, s chunk) {
	tags := p.tags
	last := len(s.nodes) - 1
	limit := speedLimit(tags)
	level := grade(tags)
	d := graph.EdgeData{
		ID:                id,
		Shape:             slices.Clone(s.locs),
		FromNode:          s.nodes[0],
		ToNode:            s.nodes[last],
		FromClipped:       s.nodes[0] < 0 || s.cutFrom,
		ToClipped:         s.nodes[last] < 0 || s.cutTo,
		RoadState:         p.state,
		RoadType:          p.roadType,
		SubType:           p.subType,
		FunctionalClass:   functionalClasses[p.roadType],
		Surface:           surface(tags),
		Bridge:            bridge(tags),
		Lanes:             count(tags, "lanes"),
		HOVLanes:          count(tags, "lanes:hov"),
		SpeedLimit:        limit,
		FreeFlow:          freeFlow(p.roadType, limit),
		Closed:            closed(tags),
		Toll:              flag(tags, "toll"),
		UnderConstruction: underConstruction(tags),
		FromGrade:         l.endGrade(s.nodes[0], level),
		ToGrade:           l.endGrade(s.nodes[last], level),
		Names:             names(tags),
	}
	if p.reversed {
		d.Reverse()
	}
	if d.SubType == graph.ConnectingRoad && geo.LengthMillimeters(d.LineString()) > maxConnectingRoadMillimeters {
		d.SubType = graph.Ramp
	}
	if l.opts.RegionInformation && l.opts.CountryLookup != nil {
		if c, ok := l.opts.CountryLookup.Country(d.Shape[len(d.Shape)/2].Point()); ok {
			d.Country = c
		}
	}
	l.g.AddEdge(d)
	l.input.Edges.Added++
}

// Finalize commits the graph and validates it. Warnings are logged; the
// report is returned for the caller to act on problems.
func (l *Loader) Finalize() (graph.FinalizeResult, graph.Report) {
	res := l.g.Finalize(l.opts.BuildSpatialIndex, l.opts.GradeSeparation)
	report := l.g.Validate(l.opts.RegionInformation && l.opts.CountryLookup != nil)
	for _, w := range report.Warnings {
		l.log.Warn("graph validation", zap.String("warning", w))
	}
	for _, p := range report.Problems {
		l.log.Error("graph validation", zap.String("problem", p))
	}
	l.stats.Log(l.log)
	return res, report
}
