// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	service "github.com/okian/touchline/internal/app"
	"github.com/okian/touchline/internal/domain/clock"
	"github.com/okian/touchline/internal/domain/ingest"
	"github.com/okian/touchline/pkg/logger"
)

const maxBodyBytes = 1 << 20

// Operator identity headers sent by the entry UI.
const (
	HeaderOperatorID   = "X-Operator-Id"
	HeaderOperatorRole = "X-Operator-Role"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	SessionDependencies
	EventDependencies
	MatchDependencies
	StreamDependencies
}

// Server wires HTTP routes for the business API.
type Server struct {
	opsHandler      *OpsHandler
	sessionsHandler *SessionsHandler
	eventsHandler   *EventsHandler
	matchesHandler  *MatchesHandler
	streamHandler   *StreamHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider) *Server {
	return &Server{
		opsHandler:      NewOpsHandler(statsProvider),
		sessionsHandler: NewSessionsHandler(deps),
		eventsHandler:   NewEventsHandler(deps),
		matchesHandler:  NewMatchesHandler(deps),
		streamHandler:   NewStreamHandler(deps, logger.Get().Named("stream")),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	handle := func(pattern, endpoint string, h http.HandlerFunc) {
		mux.HandleFunc(pattern, MetricsMiddleware(h, endpoint))
	}

	handle("GET /healthz", "healthz", s.opsHandler.HandleMetrics)
	handle("GET /metrics", "metrics", s.opsHandler.HandleMetrics)
	handle("GET /stats", "stats", s.opsHandler.HandleStats)

	handle("POST /sessions", "sessions_start", s.sessionsHandler.HandleStart)
	handle("DELETE /sessions/{sessionId}", "sessions_end", s.sessionsHandler.HandleEnd)
	handle("POST /sessions/{sessionId}/touch", "sessions_touch", s.sessionsHandler.HandleTouch)
	handle("POST /sessions/{sessionId}/force-end", "sessions_force_end", s.sessionsHandler.HandleForceEnd)
	handle("GET /matches/{matchId}/sessions", "sessions_list", s.sessionsHandler.HandleList)
	handle("GET /matches/{matchId}/sessions/stats", "sessions_stats", s.sessionsHandler.HandleStats)
	handle("GET /matches/{matchId}/operators/{operatorId}/session", "sessions_status", s.sessionsHandler.HandleStatus)

	handle("POST /events", "events_submit", s.eventsHandler.HandleSubmit)
	handle("POST /events/validate", "events_validate", s.eventsHandler.HandleValidate)
	handle("GET /suggestions", "suggestions", s.eventsHandler.HandleSuggestions)
	handle("GET /matches/{matchId}/events", "events_list", s.eventsHandler.HandleList)

	handle("POST /matches", "matches_open", s.matchesHandler.HandleOpen)
	handle("GET /matches/{matchId}/state", "matches_state", s.matchesHandler.HandleState)
	handle("GET /matches/{matchId}/clock", "clock_get", s.matchesHandler.HandleClock)
	handle("POST /matches/{matchId}/clock/{action}", "clock_control", s.matchesHandler.HandleClockControl)

	// Streams are long-lived; duration metrics would be meaningless.
	mux.HandleFunc("GET /matches/{matchId}/stream", s.streamHandler.HandleStream)
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeServiceError maps service and domain errors to HTTP responses.
func writeServiceError(w http.ResponseWriter, op string, err error) {
	var rejected *ingest.RejectedError
	switch {
	case errors.As(err, &rejected):
		writeJSON(w, http.StatusUnprocessableEntity, rejected.Result)
	case errors.Is(err, ingest.ErrPersistence):
		writeError(w, http.StatusServiceUnavailable, "persistence_unavailable", WrapKind(op, ErrUnavailable, err))
	case errors.Is(err, service.ErrMatchNotFound):
		writeError(w, http.StatusNotFound, "not_found", WrapKind(op, ErrNotFound, err))
	case errors.Is(err, clock.ErrInvalidTransition), errors.Is(err, clock.ErrClockCompleted):
		writeError(w, http.StatusConflict, "invalid_transition", WrapKind(op, ErrConflict, err))
	case errors.Is(err, clock.ErrInvalidPeriod), errors.Is(err, clock.ErrInvalidDuration),
		errors.Is(err, clock.ErrInvalidInjuryTime), errors.Is(err, service.ErrUnknownClockAction):
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
	default:
		writeError(w, http.StatusInternalServerError, "internal", err)
	}
}

// decodeJSON reads a JSON body into v. An empty body is accepted when
// optional is set.
func decodeJSON(r *http.Request, v any, optional bool) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if optional && errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

func requireParam(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("missing %s", name)
	}
	return nil
}

// queryInt parses an optional non-negative integer query parameter.
func queryInt(r *http.Request, name string) (int64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("invalid %s; must be a non-negative integer", name)
	}
	return v, nil
}
