package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"roadgraph/pkg/api"
	"roadgraph/pkg/graph"
)

func main() {
	os.Exit(serve())
}

func serve() int {
	graphPath := flag.String("graph", "graph.rg", "Path to a graph archive written by preprocess")
	port := flag.Int("port", 8080, "HTTP port")
	corsOrigin := flag.String("cors-origin", "", "CORS allowed origin (empty = same-origin)")
	verbose := flag.Bool("verbose", false, "Development logging with per-request lines")
	flag.Parse()

	log, err := zap.NewProduction()
	if *verbose {
		log, err = zap.NewDevelopment()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		return 1
	}
	defer log.Sync()

	start := time.Now()
	log.Info("loading graph", zap.String("path", *graphPath))
	g, err := graph.Load(*graphPath, graph.WithLogger(log))
	if err != nil {
		log.Error("failed to load graph", zap.Error(err))
		return 1
	}
	defer g.Close()

	// Build or load the spatial index before accepting requests.
	idx, err := g.SpatialIndex()
	if err != nil {
		log.Error("spatial index unavailable", zap.Error(err))
		return 1
	}
	st := g.Stats()
	log.Info("ready",
		zap.Int("edges", st.Edges),
		zap.Int("vertices", st.Vertices),
		zap.Int("relations", st.Relations),
		zap.Int("indexed", idx.Len()),
		zap.Stringer("build", g.BuildID()),
		zap.Duration("elapsed", time.Since(start).Round(time.Millisecond)))

	cfg := api.DefaultConfig(fmt.Sprintf(":%d", *port))
	cfg.CORSOrigin = *corsOrigin
	srv := api.NewServer(cfg, api.NewHandlers(g, log), log)
	if err := api.ListenAndServe(srv, log); err != nil {
		log.Error("server stopped", zap.Error(err))
		return 1
	}
	return 0
}
