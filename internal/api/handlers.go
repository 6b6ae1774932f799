package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/cxd309/metroline/internal/engine"
	"github.com/cxd309/metroline/internal/feed"
	"github.com/cxd309/metroline/internal/route"
	"github.com/cxd309/metroline/internal/store"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

var errBadRequest = errors.New("bad request")

var validate = validator.New()

// RouteCatalog defines the route lookups the handlers need.
type RouteCatalog interface {
	ListRoutes(ctx context.Context) ([]store.RouteSummary, error)
	LoadRoute(ctx context.Context, id string) (*route.Route, error)
}

// Handler handles HTTP requests for routes, sessions and the realtime feed.
type Handler struct {
	sessions *Manager
	routes   RouteCatalog
	log      logrus.FieldLogger
}

// NewHandler creates a Handler.
func NewHandler(sessions *Manager, routes RouteCatalog, log logrus.FieldLogger) *Handler {
	return &Handler{sessions: sessions, routes: routes, log: log}
}

// Health handles GET /health, checking catalog connectivity.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if _, err := h.routes.ListRoutes(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status":    "error",
			"database":  "disconnected",
			"timestamp": time.Now().UTC(),
			"error":     err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"database":  "connected",
		"sessions":  h.sessions.Len(),
		"timestamp": time.Now().UTC(),
	})
}

// ListRoutes handles GET /routes.
func (h *Handler) ListRoutes(w http.ResponseWriter, r *http.Request) {
	routes, err := h.routes.ListRoutes(r.Context())
	if err != nil {
		h.writeError(w, fmt.Errorf("list routes: %w", err))
		return
	}
	writeJSON(w, http.StatusOK, ListRoutesResponse{Routes: routes, Count: len(routes)})
}

// GetRoute handles GET /routes/{routeID}.
func (h *Handler) GetRoute(w http.ResponseWriter, r *http.Request) {
	rt, err := h.routes.LoadRoute(r.Context(), chi.URLParam(r, "routeID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, route.ToData(rt))
}

// CreateSession handles POST /sessions.
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, err)
		return
	}

	rt, err := h.routes.LoadRoute(r.Context(), req.RouteID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	s, snap, err := h.sessions.Create(rt, engine.Config{
		SegmentDuration: time.Duration(req.SegmentMS) * time.Millisecond,
		DwellDuration:   time.Duration(req.DwellMS) * time.Millisecond,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	w.Header().Set("Location", "/sessions/"+s.ID)
	writeJSON(w, http.StatusCreated, SessionResponse{ID: s.ID, RouteID: rt.ID(), Snapshot: snap})
}

// GetSession handles GET /sessions/{sessionID}, advancing the engine to now.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	h.writeSnapshot(w, s, s.Observe(), nil)
}

// StartSession handles POST /sessions/{sessionID}/start.
func (h *Handler) StartSession(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	snap, err := s.Start()
	h.writeSnapshot(w, s, snap, err)
}

// ResetSession handles POST /sessions/{sessionID}/reset.
func (h *Handler) ResetSession(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	h.writeSnapshot(w, s, s.Reset(), nil)
}

// SelectRange handles POST /sessions/{sessionID}/range.
func (h *Handler) SelectRange(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req RangeRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	snap, err := s.SelectRange(*req.From, *req.To)
	h.writeSnapshot(w, s, snap, err)
}

// DeleteSession handles DELETE /sessions/{sessionID}.
func (h *Handler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Delete(chi.URLParam(r, "sessionID")); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// VehiclePositions handles GET /feed/vehicle_positions.pb.
func (h *Handler) VehiclePositions(w http.ResponseWriter, r *http.Request) {
	b, err := feed.Marshal(h.sessions.FeedEntries(), h.sessions.Now())
	if err != nil {
		h.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/x-protobuf")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(b)
}

func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*Session, bool) {
	s, err := h.sessions.Get(chi.URLParam(r, "sessionID"))
	if err != nil {
		h.writeError(w, err)
		return nil, false
	}
	return s, true
}

func (h *Handler) writeSnapshot(w http.ResponseWriter, s *Session, snap engine.Snapshot, err error) {
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SessionResponse{ID: s.ID, RouteID: s.Route().ID(), Snapshot: snap})
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadRequest), errors.Is(err, engine.ErrInvalidSelection), errors.Is(err, engine.ErrInvalidConfig):
		return http.StatusBadRequest
	case errors.Is(err, ErrSessionNotFound), errors.Is(err, store.ErrRouteNotFound):
		return http.StatusNotFound
	case errors.Is(err, engine.ErrEmptyRoute):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.log.WithError(err).Error("request failed")
		writeJSON(w, status, ErrorResponse{Error: "internal error"})
		return
	}
	writeJSON(w, status, ErrorResponse{Error: err.Error()})
}

// decodeBody reads a single JSON object into v and validates it.
func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: decode body: %v", errBadRequest, err)
	}
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
