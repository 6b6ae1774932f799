package api

import (
	"github.com/cxd309/metroline/internal/engine"
	"github.com/cxd309/metroline/internal/store"
)

// CreateSessionRequest is the body of POST /sessions. Unset durations take
// the server defaults. Durations are capped at one day.
type CreateSessionRequest struct {
	RouteID   string `json:"route_id" validate:"required"`
	SegmentMS int64  `json:"segment_ms" validate:"gte=0,lte=86400000"`
	DwellMS   int64  `json:"dwell_ms" validate:"gte=0,lte=86400000"`
}

// RangeRequest is the body of POST /sessions/{id}/range.
type RangeRequest struct {
	From *int `json:"from" validate:"required"`
	To   *int `json:"to" validate:"required"`
}

// SessionResponse wraps a snapshot with its session identity.
type SessionResponse struct {
	ID       string          `json:"id"`
	RouteID  string          `json:"route_id"`
	Snapshot engine.Snapshot `json:"snapshot"`
}

// ListRoutesResponse is the body of GET /routes.
type ListRoutesResponse struct {
	Routes []store.RouteSummary `json:"routes"`
	Count  int                  `json:"count"`
}

// ErrorResponse is the JSON error response structure.
type ErrorResponse struct {
	Error   string         `json:"error"`
	Details map[string]any `json:"details,omitempty"`
}
