package api

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	geojson "github.com/paulmach/go.geojson"
	"github.com/paulmach/orb"
	"github.com/paulmach/osm"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"roadgraph/pkg/graph"
)

const (
	defaultLimit = 5000
	maxLimit     = 50000

	defaultSnapRadius = 500.0
	maxSnapRadius     = 5000.0
)

var errTruncated = errors.New("feature limit reached")

// Handlers serves read-only queries against a committed graph.
type Handlers struct {
	g   *graph.Graph
	log *zap.Logger
}

func NewHandlers(g *graph.Graph, log *zap.Logger) *Handlers {
	return &Handlers{g: g, log: log}
}

// HandleHealth handles GET /api/v1/health.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", BuildID: h.buildID()})
}

// HandleStats handles GET /api/v1/stats.
func (h *Handlers) HandleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, StatsResponse{Stats: h.g.Stats(), BuildID: h.buildID()})
}

func (h *Handlers) buildID() string {
	if id := h.g.BuildID(); id != uuid.Nil {
		return id.String()
	}
	return ""
}

// HandleEdges handles GET /api/v1/edges?bbox=minLon,minLat,maxLon,maxLat.
func (h *Handlers) HandleEdges(w http.ResponseWriter, r *http.Request) {
	b, limit, ok := parseQuery(w, r)
	if !ok {
		return
	}
	edges, err := h.g.IntersectingEdges(b)
	if err != nil {
		h.fail(w, err)
		return
	}
	fc := geojson.NewFeatureCollection()
	err = collect(r.Context(), fc, limit, func(yield func(*geojson.Feature) bool) {
		for ref := range edges {
			if !yield(h.edgeFeature(ref)) {
				return
			}
		}
	})
	h.writeCollection(w, fc, err)
}

// HandleVertices handles GET /api/v1/vertices?bbox=minLon,minLat,maxLon,maxLat.
func (h *Handlers) HandleVertices(w http.ResponseWriter, r *http.Request) {
	b, limit, ok := parseQuery(w, r)
	if !ok {
		return
	}
	vertices, err := h.g.VerticesWithin(b)
	if err != nil {
		h.fail(w, err)
		return
	}
	fc := geojson.NewFeatureCollection()
	err = collect(r.Context(), fc, limit, func(yield func(*geojson.Feature) bool) {
		for _, v := range vertices {
			if !yield(h.vertexFeature(v)) {
				return
			}
		}
	})
	h.writeCollection(w, fc, err)
}

// HandleEdge handles GET /api/v1/edges/{id}. Negative identifiers address
// the reverse traversal.
func (h *Handlers) HandleEdge(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id == 0 {
		writeError(w, http.StatusBadRequest, "invalid_id", "id")
		return
	}
	ref, ok := h.g.Edges.Lookup(graph.FromSigned(id))
	if !ok {
		writeError(w, http.StatusNotFound, "edge_not_found", "")
		return
	}
	writeGeoJSON(w, h.edgeFeature(ref))
}

// HandleWay handles GET /api/v1/ways/{id}: every edge sectioned from the
// way, in order.
func (h *Handlers) HandleWay(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid_id", "id")
		return
	}
	route := h.g.Edges.Route(osm.WayID(id))
	if len(route) == 0 {
		writeError(w, http.StatusNotFound, "way_not_found", "")
		return
	}
	fc := geojson.NewFeatureCollection()
	for _, ref := range route {
		fc.AddFeature(h.edgeFeature(ref))
	}
	h.writeCollection(w, fc, nil)
}

// HandleNearest handles GET /api/v1/nearest?lat=&lon=&radius=: the edge
// closest to the point, with the projected location.
func (h *Handlers) HandleNearest(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lat, err := parseCoord(q.Get("lat"), 90)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_lat", "lat")
		return
	}
	lon, err := parseCoord(q.Get("lon"), 180)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_lon", "lon")
		return
	}
	radius := defaultSnapRadius
	if s := q.Get("radius"); s != "" {
		radius, err = strconv.ParseFloat(s, 64)
		if err != nil || !(radius > 0 && radius <= maxSnapRadius) {
			writeError(w, http.StatusBadRequest, "invalid_radius", "radius")
			return
		}
	}

	snap, err := h.g.Nearest(orb.Point{lon, lat}, radius)
	if errors.Is(err, graph.ErrPointTooFar) {
		writeError(w, http.StatusNotFound, "point_too_far", "")
		return
	}
	if err != nil {
		h.fail(w, err)
		return
	}
	f := h.edgeFeature(snap.Ref)
	f.SetProperty("snapped", []float64{snap.Location.Lon(), snap.Location.Lat()})
	f.SetProperty("segment", snap.Segment)
	f.SetProperty("ratio", snap.Ratio)
	f.SetProperty("distance_m", math.Round(snap.Distance*1000)/1000)
	writeGeoJSON(w, f)
}

func (h *Handlers) edgeFeature(ref graph.EdgeRef) *geojson.Feature {
	e := h.g.Edges
	shape := e.Shape(ref)
	coords := make([][]float64, len(shape))
	for i, l := range shape {
		coords[i] = []float64{l.Lon(), l.Lat()}
	}
	f := geojson.NewLineStringFeature(coords)
	f.ID = e.ID(ref).Signed()
	f.SetProperty("way", int64(e.ID(ref).ID.Way()))
	f.SetProperty("from", e.FromVertex(ref))
	f.SetProperty("to", e.ToVertex(ref))
	f.SetProperty("road_state", e.RoadState(ref).String())
	f.SetProperty("road_type", e.RoadType(ref).String())
	f.SetProperty("sub_type", e.SubType(ref).String())
	f.SetProperty("length_m", math.Round(e.LengthMeters(ref)*1000)/1000)
	if v := e.SpeedLimit(ref); v > 0 {
		f.SetProperty("speed_limit", v)
	}
	if c := e.Country(ref); c != 0 {
		f.SetProperty("country", c.String())
	}
	if names := e.Names(ref, graph.OfficialName); len(names) > 0 {
		f.SetProperty("name", strings.Join(names, ";"))
	}
	if names := e.Names(ref, graph.RouteName); len(names) > 0 {
		f.SetProperty("ref", strings.Join(names, ";"))
	}
	if rels := h.g.Relations.Of(ref); len(rels) > 0 {
		ids := make([]int64, len(rels))
		for i, ri := range rels {
			ids[i] = h.g.Relations.Get(ri).ID
		}
		f.SetProperty("relations", ids)
	}
	return f
}

func (h *Handlers) vertexFeature(v uint32) *geojson.Feature {
	vs := h.g.Vertices
	l := vs.Location(v)
	f := geojson.NewPointFeature([]float64{l.Lon(), l.Lat()})
	f.ID = v
	f.SetProperty("node", int64(vs.NodeID(v)))
	f.SetProperty("clipped", vs.IsClipped(v))
	f.SetProperty("grade", vs.Grade(v))
	f.SetProperty("in", vs.InCount(v)+vs.TwoWayCount(v))
	f.SetProperty("out", vs.OutCount(v)+vs.TwoWayCount(v))
	return f
}

// collect adds features until the source ends, the limit is reached or the
// request context expires.
func collect(ctx context.Context, fc *geojson.FeatureCollection, limit int, features func(func(*geojson.Feature) bool)) error {
	var err error
	features(func(f *geojson.Feature) bool {
		if err = ctx.Err(); err != nil {
			return false
		}
		if len(fc.Features) == limit {
			err = errTruncated
			return false
		}
		fc.AddFeature(f)
		return true
	})
	return err
}

func (h *Handlers) writeCollection(w http.ResponseWriter, fc *geojson.FeatureCollection, err error) {
	switch {
	case errors.Is(err, errTruncated):
		w.Header().Set("X-Truncated", "true")
	case err != nil:
		h.fail(w, err)
		return
	}
	writeGeoJSON(w, fc)
}

func (h *Handlers) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, graph.ErrSpatialIndexMissing):
		writeError(w, http.StatusServiceUnavailable, "spatial_index_missing", "")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusServiceUnavailable, "request_timeout", "")
	default:
		h.log.Error("query failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", "")
	}
}

func parseQuery(w http.ResponseWriter, r *http.Request) (orb.Bound, int, bool) {
	b, err := parseBBox(r.URL.Query().Get("bbox"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_bbox", "bbox")
		return orb.Bound{}, 0, false
	}
	limit := defaultLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 || n > maxLimit {
			writeError(w, http.StatusBadRequest, "invalid_limit", "limit")
			return orb.Bound{}, 0, false
		}
		limit = n
	}
	return b, limit, true
}

// parseBBox reads minLon,minLat,maxLon,maxLat.
func parseBBox(s string) (orb.Bound, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return orb.Bound{}, errors.Errorf("bbox needs 4 values, got %d", len(parts))
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return orb.Bound{}, errors.Wrap(err, "bbox")
		}
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return orb.Bound{}, errors.New("bbox values must be finite")
		}
		v[i] = f
	}
	b := orb.Bound{Min: orb.Point{v[0], v[1]}, Max: orb.Point{v[2], v[3]}}
	if b.Min[0] > b.Max[0] || b.Min[1] > b.Max[1] {
		return orb.Bound{}, errors.New("bbox minimum exceeds maximum")
	}
	if b.Min[0] < -180 || b.Max[0] > 180 || b.Min[1] < -90 || b.Max[1] > 90 {
		return orb.Bound{}, errors.New("bbox out of range")
	}
	return b, nil
}

func parseCoord(s string, limit float64) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if !(v >= -limit && v <= limit) {
		return 0, errors.Errorf("%v out of range", v)
	}
	return v, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeGeoJSON(w http.ResponseWriter, v json.Marshaler) {
	data, err := v.MarshalJSON()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "")
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	w.Write(data)
}

func writeError(w http.ResponseWriter, status int, code, field string) {
	writeJSON(w, status, ErrorResponse{Error: code, Field: field})
}
