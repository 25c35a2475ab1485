package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/paulmach/orb"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"roadgraph/pkg/graph"
	"roadgraph/pkg/ingest"
)

type input struct {
	path   string
	region orb.MultiPolygon
}

func main() {
	os.Exit(preprocess())
}

// preprocess runs the command and returns the exit code once deferred
// cleanup has run.
func preprocess() int {
	inputs := flag.String("input", "", "Comma-separated .osm.pbf or .osm files; append :border.geojson to clip one input")
	output := flag.String("output", "graph.rg", "Output graph archive path")
	region := flag.String("region", "", "GeoJSON polygon every input is clipped to")
	countries := flag.String("countries", "", "GeoJSON country borders with a \"country\" property")
	threads := flag.Int("threads", 2, "PBF decoder count in parallel mode")
	parallel := flag.Bool("parallel", false, "Decode PBF blocks in parallel")
	prescan := flag.Bool("prescan", false, "Read ways first and cache only referenced nodes")
	allWays := flag.Bool("all-ways", false, "Keep every highway, not only drivable ones")
	noRegionInfo := flag.Bool("no-region-info", false, "Skip the per-edge country lookup")
	noSpatial := flag.Bool("no-spatial-index", false, "Do not build the spatial index")
	noGrades := flag.Bool("no-grade-separation", false, "Do not split vertices by grade")
	verbose := flag.Bool("verbose", false, "Development logging at debug level")
	flag.Parse()

	if *inputs == "" {
		fmt.Fprintln(os.Stderr, "Usage: preprocess -input a.osm.pbf[,b.osm.pbf[:border.geojson]] [-output graph.rg] [-region border.geojson]")
		return 1
	}

	log, err := newLogger(*verbose)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		return 1
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, log, config{
		inputs:       *inputs,
		output:       *output,
		region:       *region,
		countries:    *countries,
		threads:      *threads,
		parallel:     *parallel,
		prescan:      *prescan,
		allWays:      *allWays,
		regionInfo:   !*noRegionInfo,
		spatialIndex: !*noSpatial,
		grades:       !*noGrades,
	}); err != nil {
		log.Error("preprocess failed", zap.Error(err))
		return 1
	}
	return 0
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

type config struct {
	inputs, output, region, countries string

	threads                          int
	parallel, prescan, allWays       bool
	regionInfo, spatialIndex, grades bool
}

func run(ctx context.Context, log *zap.Logger, cfg config) error {
	start := time.Now()

	var border orb.MultiPolygon
	if cfg.region != "" {
		var err error
		if border, err = ingest.LoadRegion(cfg.region); err != nil {
			return err
		}
		log.Info("clipping to region", zap.String("region", cfg.region), zap.Int("polygons", len(border)))
	}
	files, err := parseInputs(cfg.inputs, border)
	if err != nil {
		return err
	}

	filter := ingest.WayFilter(ingest.DrivableWays)
	if cfg.allWays {
		filter = ingest.AllWays
	}
	opts := []ingest.Option{
		ingest.WithLogger(log),
		ingest.WithWayFilter(filter),
		ingest.WithRelationFilter(ingest.RoadRelations),
		ingest.WithRegion(border),
		ingest.WithThreads(cfg.threads),
		ingest.WithParallel(cfg.parallel),
		ingest.WithPrescan(cfg.prescan),
		ingest.WithMerge(len(files) > 1),
		ingest.WithRegionInformation(cfg.regionInfo),
		ingest.WithSpatialIndex(cfg.spatialIndex),
		ingest.WithGradeSeparation(cfg.grades),
	}
	if cfg.countries != "" && cfg.regionInfo {
		lookup, err := ingest.LoadCountries(cfg.countries)
		if err != nil {
			return err
		}
		log.Info("country borders loaded", zap.Int("countries", lookup.Len()))
		opts = append(opts, ingest.WithCountryLookup(lookup))
	}

	loader, err := ingest.New(opts...)
	if err != nil {
		return err
	}
	for _, in := range files {
		if err := loader.LoadFileInRegion(ctx, in.path, in.region); err != nil {
			return err
		}
	}

	res, report := loader.Finalize()
	if !report.Valid() {
		return errors.Errorf("graph failed validation with %d problems", len(report.Problems))
	}
	g := loader.Graph()
	components, largest := graph.Components(g)
	log.Info("graph ready",
		zap.Int("vertices", res.Vertices),
		zap.Int("indexed", res.Indexed),
		zap.Int("components", components),
		zap.Int("largestComponent", largest))

	if err := g.Save(cfg.output); err != nil {
		return err
	}
	info, err := os.Stat(cfg.output)
	if err != nil {
		return errors.Wrap(err, "stat output")
	}
	log.Info("done",
		zap.String("output", cfg.output),
		zap.Stringer("build", g.BuildID()),
		zap.Float64("sizeMB", float64(info.Size())/(1024*1024)),
		zap.Duration("elapsed", time.Since(start).Round(time.Second)))
	return nil
}

// parseInputs splits the -input list. An input may carry its own region
// after a colon, which replaces the global one for that file.
func parseInputs(list string, border orb.MultiPolygon) ([]input, error) {
	var files []input
	for _, item := range strings.Split(list, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		in := input{path: item, region: border}
		if path, regionPath, ok := strings.Cut(item, ":"); ok {
			r, err := ingest.LoadRegion(regionPath)
			if err != nil {
				return nil, errors.Wrapf(err, "input %s", path)
			}
			in = input{path: path, region: r}
		}
		files = append(files, in)
	}
	if len(files) == 0 {
		return nil, errors.Errorf("no input files in %q", list)
	}
	return files, nil
}
