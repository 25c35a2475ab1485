package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	geojson "github.com/paulmach/go.geojson"
	"github.com/paulmach/osm"
	"go.uber.org/zap"

	"roadgraph/pkg/geo"
	"roadgraph/pkg/graph"
)

func edge(way osm.WayID, from, to osm.NodeID, state graph.RoadState, shape ...geo.Location) graph.EdgeData {
	return graph.EdgeData{
		ID:        graph.NewEdgeID(way, 1),
		Shape:     shape,
		FromNode:  from,
		ToNode:    to,
		RoadState: state,
		RoadType:  graph.Residential,
		SubType:   graph.MainRoad,
	}
}

// testGraph has two connected edges near Singapore and one far away.
func testGraph(t *testing.T) *graph.Graph {
	t.Helper()
	g := graph.New()
	main := edge(10, 1, 2, graph.TwoWay, geo.NewLocation(1.30, 103.80), geo.NewLocation(1.31, 103.80))
	main.Names = map[graph.NameType][]string{graph.OfficialName: {"Main Street"}}
	g.AddEdge(main)
	g.AddEdge(edge(11, 2, 3, graph.OneWay, geo.NewLocation(1.31, 103.80), geo.NewLocation(1.31, 103.81)))
	g.AddEdge(edge(50, 4, 5, graph.TwoWay, geo.NewLocation(10, 10), geo.NewLocation(10.01, 10)))
	g.Finalize(true, false)
	return g
}

func serve(t *testing.T, g *graph.Graph, target string) *httptest.ResponseRecorder {
	t.Helper()
	mux := NewMux(DefaultConfig(":0"), NewHandlers(g, zap.NewNop()), zap.NewNop())
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest("GET", target, nil))
	return w
}

func decodeCollection(t *testing.T, w *httptest.ResponseRecorder) *geojson.FeatureCollection {
	t.Helper()
	fc, err := geojson.UnmarshalFeatureCollection(w.Body.Bytes())
	if err != nil {
		t.Fatalf("decode response: %v. body: %s", err, w.Body.String())
	}
	return fc
}

func TestHandleHealth(t *testing.T) {
	w := serve(t, testGraph(t), "/api/v1/health")
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}

	var resp HealthResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Status != "ok" {
		t.Errorf("status = %q, want 'ok'", resp.Status)
	}
}

func TestHandleStats(t *testing.T) {
	w := serve(t, testGraph(t), "/api/v1/stats")
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}

	var resp StatsResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.ForwardEdges != 3 {
		t.Errorf("ForwardEdges = %d, want 3", resp.ForwardEdges)
	}
	if resp.Edges != 5 {
		t.Errorf("Edges = %d, want 5", resp.Edges)
	}
	if resp.Vertices != 5 {
		t.Errorf("Vertices = %d, want 5", resp.Vertices)
	}
}

func TestHandleEdges(t *testing.T) {
	w := serve(t, testGraph(t), "/api/v1/edges?bbox=103.79,1.29,103.82,1.32")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200. body: %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/geo+json" {
		t.Errorf("Content-Type = %q", ct)
	}
	fc := decodeCollection(t, w)
	if len(fc.Features) != 2 {
		t.Fatalf("features = %d, want 2", len(fc.Features))
	}
	names := 0
	for _, f := range fc.Features {
		if !f.Geometry.IsLineString() {
			t.Errorf("geometry type = %s, want LineString", f.Geometry.Type)
		}
		if name, err := f.PropertyString("name"); err == nil && name == "Main Street" {
			names++
		}
	}
	if names != 1 {
		t.Errorf("edges named Main Street = %d, want 1", names)
	}
}

func TestHandleEdges_Limit(t *testing.T) {
	w := serve(t, testGraph(t), "/api/v1/edges?bbox=103.79,1.29,103.82,1.32&limit=1")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if w.Header().Get("X-Truncated") != "true" {
		t.Error("truncated response not flagged")
	}
	if fc := decodeCollection(t, w); len(fc.Features) != 1 {
		t.Errorf("features = %d, want 1", len(fc.Features))
	}
}

func TestHandleEdges_InvalidQuery(t *testing.T) {
	tests := []struct {
		name  string
		query string
	}{
		{"missing bbox", ""},
		{"three values", "?bbox=1,2,3"},
		{"not a number", "?bbox=a,1,2,3"},
		{"inverted", "?bbox=104,1,103,2"},
		{"out of range", "?bbox=100,-95,104,2"},
		{"bad limit", "?bbox=103,1,104,2&limit=0"},
	}
	g := testGraph(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(t, g, "/api/v1/edges"+tt.query)
			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", w.Code)
			}
		})
	}
}

func TestHandleVertices(t *testing.T) {
	w := serve(t, testGraph(t), "/api/v1/vertices?bbox=103.79,1.29,103.82,1.32")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	fc := decodeCollection(t, w)
	if len(fc.Features) != 3 {
		t.Fatalf("features = %d, want 3", len(fc.Features))
	}
	for _, f := range fc.Features {
		if !f.Geometry.IsPoint() {
			t.Errorf("geometry type = %s, want Point", f.Geometry.Type)
		}
	}
}

func TestHandleEdge(t *testing.T) {
	g := testGraph(t)
	id := int64(graph.NewEdgeID(10, 1))

	w := serve(t, g, fmt.Sprintf("/api/v1/edges/%d", -id))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200. body: %s", w.Code, w.Body.String())
	}
	f, err := geojson.UnmarshalFeature(w.Body.Bytes())
	if err != nil {
		t.Fatalf("decode response: %v", err)
	}
	start := f.Geometry.LineString[0]
	if start[0] != 103.80 || start[1] != 1.31 {
		t.Errorf("reverse traversal starts at %v, want [103.8 1.31]", start)
	}

	// One-way edges have no reverse.
	w = serve(t, g, fmt.Sprintf("/api/v1/edges/%d", -int64(graph.NewEdgeID(11, 1))))
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}

	w = serve(t, g, "/api/v1/edges/abc")
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestHandleWay(t *testing.T) {
	g := testGraph(t)
	w := serve(t, g, "/api/v1/ways/11")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if fc := decodeCollection(t, w); len(fc.Features) != 1 {
		t.Errorf("features = %d, want 1", len(fc.Features))
	}

	w = serve(t, g, "/api/v1/ways/999")
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestMiddleware_Recovery(t *testing.T) {
	sem := make(chan struct{}, 1)
	h := withMiddleware(func(http.ResponseWriter, *http.Request) { panic("boom") }, sem, DefaultConfig(":0"), zap.NewNop())
	w := httptest.NewRecorder()
	h(w, httptest.NewRequest("GET", "/", nil))
	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
	if len(sem) != 0 {
		t.Error("semaphore slot not released after panic")
	}
}

func TestMiddleware_ConcurrencyLimit(t *testing.T) {
	sem := make(chan struct{}, 1)
	sem <- struct{}{}
	h := withMiddleware(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }, sem, DefaultConfig(":0"), zap.NewNop())
	w := httptest.NewRecorder()
	h(w, httptest.NewRequest("GET", "/", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}
	if w.Header().Get("Retry-After") != "1" {
		t.Error("missing Retry-After header")
	}
}

func TestHandleNearest(t *testing.T) {
	g := testGraph(t)
	w := serve(t, g, "/api/v1/nearest?lat=1.305&lon=103.7995")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200. body: %s", w.Code, w.Body.String())
	}
	f, err := geojson.UnmarshalFeature(w.Body.Bytes())
	if err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if way, _ := f.PropertyFloat64("way"); way != 10 {
		t.Errorf("way = %v, want 10", way)
	}
	if d, _ := f.PropertyFloat64("distance_m"); d < 50 || d > 60 {
		t.Errorf("distance_m = %f, want ~55.6", d)
	}

	tests := []struct {
		query string
		want  int
	}{
		{"?lat=1.20&lon=103.80", http.StatusNotFound},
		{"?lat=1.20&lon=103.80&radius=20000", http.StatusBadRequest},
		{"?lat=95&lon=103.80", http.StatusBadRequest},
		{"?lon=103.80", http.StatusBadRequest},
		{"?lat=1.3&lon=abc", http.StatusBadRequest},
	}
	for _, tt := range tests {
		if w := serve(t, g, "/api/v1/nearest"+tt.query); w.Code != tt.want {
			t.Errorf("%s: status = %d, want %d", tt.query, w.Code, tt.want)
		}
	}
}
