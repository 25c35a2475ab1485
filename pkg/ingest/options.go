package ingest

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/osm"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"roadgraph/pkg/graph"
)

var (
	// ErrNoWayFilter is returned when no way filter was configured. There is
	// no default; use AllWays to accept everything.
	ErrNoWayFilter = errors.New("ingest: no way filter configured")
	// ErrUnknownFormat is returned for inputs that are neither PBF nor XML.
	ErrUnknownFormat = errors.New("ingest: unknown input format")

	errStopProcessing = errors.New("stop processing")
)

type (
	WayFilter      func(*osm.Way) bool
	RelationFilter func(*osm.Relation) bool
	TagFilter      func(osm.Tag) bool
)

// CountryLookup resolves the country an edge lies in.
type CountryLookup interface {
	Country(p orb.Point) (graph.Country, bool)
}

// Options configures a Loader.
type Options struct {
	// Region clips ways at its border. Empty means no clipping.
	Region         orb.MultiPolygon
	WayFilter      WayFilter
	RelationFilter RelationFilter
	TagFilter      TagFilter
	// RegionInformation enables the per-edge country lookup.
	RegionInformation bool
	Threads           int
	Parallel          bool
	Merge             bool
	// Prescan reads the ways once before loading so only nodes referenced by
	// accepted ways are cached.
	Prescan           bool
	BuildSpatialIndex bool
	GradeSeparation   bool
	CountryLookup     CountryLookup
	Logger            *zap.Logger
}

type Option func(*Options)

func defaultOptions() Options {
	return Options{
		RegionInformation: true,
		Threads:           2,
		BuildSpatialIndex: true,
		GradeSeparation:   true,
		Logger:            zap.NewNop(),
	}
}

func WithRegion(region orb.MultiPolygon) Option {
	return func(o *Options) { o.Region = region }
}

func WithWayFilter(f WayFilter) Option {
	return func(o *Options) { o.WayFilter = f }
}

func WithRelationFilter(f RelationFilter) Option {
	return func(o *Options) { o.RelationFilter = f }
}

func WithTagFilter(f TagFilter) Option {
	return func(o *Options) { o.TagFilter = f }
}

func WithRegionInformation(on bool) Option {
	return func(o *Options) { o.RegionInformation = on }
}

// WithThreads sets the decoder count used in parallel mode.
func WithThreads(n int) Option {
	return func(o *Options) { o.Threads = max(n, 1) }
}

func WithParallel(on bool) Option {
	return func(o *Options) { o.Parallel = on }
}

// WithMerge fuses edges clipped at the borders of separately loaded inputs.
func WithMerge(on bool) Option {
	return func(o *Options) { o.Merge = on }
}

func WithPrescan(on bool) Option {
	return func(o *Options) { o.Prescan = on }
}

func WithSpatialIndex(on bool) Option {
	return func(o *Options) { o.BuildSpatialIndex = on }
}

func WithGradeSeparation(on bool) Option {
	return func(o *Options) { o.GradeSeparation = on }
}

func WithCountryLookup(c CountryLookup) Option {
	return func(o *Options) { o.CountryLookup = c }
}

func WithLogger(l *zap.Logger) Option {
	return func(o *Options) { o.Logger = l }
}

func (o *Options) decoders() int {
	if !o.Parallel {
		return 1
	}
	return o.Threads
}

// AllWays accepts every way.
func AllWays(*osm.Way) bool { return true }

// DrivableWays accepts highways a car may use.
func DrivableWays(w *osm.Way) bool {
	tags := w.Tags
	hw := tags.Find("highway")
	if hw == "" || denied[hw] {
		return false
	}
	if _, _, ok := classify(hw); !ok {
		return false
	}
	// Area highways are plazas, not roads.
	if tags.Find("area") == "yes" {
		return false
	}
	access := tags.Find("access")
	if access == "no" || access == "private" {
		return false
	}
	return tags.Find("motor_vehicle") != "no"
}

// AllRelations accepts every relation.
func AllRelations(*osm.Relation) bool { return true }

// RoadRelations accepts turn restrictions and road routes.
func RoadRelations(r *osm.Relation) bool {
	switch r.Tags.Find("type") {
	case "restriction":
		return true
	case "route":
		return r.Tags.Find("route") == "road"
	}
	return false
}

// DropTags returns a TagFilter discarding the listed keys.
func DropTags(keys ...string) TagFilter {
	drop := make(map[string]bool, len(keys))
	for _, k := range keys {
		drop[k] = true
	}
	return func(t osm.Tag) bool { return !drop[t.Key] }
}
