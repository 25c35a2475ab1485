package api

import "roadgraph/pkg/graph"

// ErrorResponse is the JSON response for errors.
type ErrorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

// StatsResponse is the JSON response for GET /api/v1/stats.
type StatsResponse struct {
	graph.Stats
	BuildID string `json:"build_id,omitempty"`
}

// HealthResponse is the JSON response for GET /api/v1/health.
type HealthResponse struct {
	Status  string `json:"status"`
	BuildID string `json:"build_id,omitempty"`
}
