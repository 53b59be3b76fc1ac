package api

import (
	"context"
	"net/http"

	"github.com/okian/touchline/internal/domain/model"
	"github.com/okian/touchline/internal/domain/types"
)

// MatchDependencies defines the interface for match and clock handling.
type MatchDependencies interface {
	OpenMatch(ctx context.Context, req types.OpenMatchRequest) (model.ClockState, bool)
	Clock(matchID string) (model.ClockState, bool)
	ControlClock(ctx context.Context, matchID string, cmd types.ClockCommand) (model.ClockState, error)
	MatchState(ctx context.Context, matchID string) (types.MatchState, error)
}

// MatchesHandler handles match and clock requests.
type MatchesHandler struct {
	deps MatchDependencies
}

// NewMatchesHandler creates a new matches handler.
func NewMatchesHandler(deps MatchDependencies) *MatchesHandler {
	return &MatchesHandler{deps: deps}
}

type clockRequest struct {
	Minutes int          `json:"minutes"`
	Period  model.Period `json:"period"`
}

// HandleOpen handles POST /matches.
func (h *MatchesHandler) HandleOpen(w http.ResponseWriter, r *http.Request) {
	const op = "api.open_match"
	var req types.OpenMatchRequest
	if err := decodeJSON(r, &req, false); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := requireParam("matchId", req.MatchID); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	st, created := h.deps.OpenMatch(r.Context(), req)
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, st)
}

// HandleState handles GET /matches/{matchId}/state.
func (h *MatchesHandler) HandleState(w http.ResponseWriter, r *http.Request) {
	const op = "api.match_state"
	st, err := h.deps.MatchState(r.Context(), r.PathValue("matchId"))
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// HandleClock handles GET /matches/{matchId}/clock.
func (h *MatchesHandler) HandleClock(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_clock"
	st, ok := h.deps.Clock(r.PathValue("matchId"))
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", NewKind(op, ErrNotFound))
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// HandleClockControl handles POST /matches/{matchId}/clock/{action}.
// injury-time and duration take {"minutes": n}; period takes {"period": p}.
// A rejected transition answers 409 and leaves the clock unchanged.
func (h *MatchesHandler) HandleClockControl(w http.ResponseWriter, r *http.Request) {
	const op = "api.control_clock"
	var req clockRequest
	if err := decodeJSON(r, &req, true); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	cmd := types.ClockCommand{
		Action:  types.ClockAction(r.PathValue("action")),
		Minutes: req.Minutes,
		Period:  req.Period,
	}
	st, err := h.deps.ControlClock(r.Context(), r.PathValue("matchId"), cmd)
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}
