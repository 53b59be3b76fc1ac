package api

import (
	"context"
	"net/http"

	"github.com/okian/touchline/internal/domain/model"
)

// SessionDependencies defines the interface for operator session handling.
type SessionDependencies interface {
	StartSession(ctx context.Context, matchID, operatorID, operatorRole string) (model.EntrySession, bool)
	EndSession(ctx context.Context, sessionID string)
	ForceEndSession(ctx context.Context, sessionID string)
	TouchSession(ctx context.Context, sessionID string, draft *model.EventEntryFormData) (model.EntrySession, bool)
	SessionStatus(matchID, operatorID string) (model.EntrySession, bool)
	ActiveSessions(matchID string) []model.EntrySession
	SessionStats(matchID string) model.SessionStats
}

// SessionsHandler handles session requests.
type SessionsHandler struct {
	deps SessionDependencies
}

// NewSessionsHandler creates a new sessions handler.
func NewSessionsHandler(deps SessionDependencies) *SessionsHandler {
	return &SessionsHandler{deps: deps}
}

type startSessionRequest struct {
	MatchID      string `json:"matchId"`
	OperatorID   string `json:"operatorId"`
	OperatorRole string `json:"operatorRole"`
}

type sessionResponse struct {
	model.EntrySession
	Reused bool `json:"reused"`
}

type inactiveSession struct {
	IsActive bool `json:"isActive"`
}

type touchRequest struct {
	Draft *model.EventEntryFormData `json:"draft,omitempty"`
}

type sessionsResponse struct {
	MatchID  string               `json:"matchId"`
	Sessions []model.EntrySession `json:"sessions"`
}

// HandleStart handles POST /sessions. A new session answers 201, a reused
// one 200.
func (h *SessionsHandler) HandleStart(w http.ResponseWriter, r *http.Request) {
	const op = "api.start_session"
	var req startSessionRequest
	if err := decodeJSON(r, &req, false); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	for _, p := range [][2]string{{"matchId", req.MatchID}, {"operatorId", req.OperatorID}} {
		if err := requireParam(p[0], p[1]); err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
			return
		}
	}
	s, reused := h.deps.StartSession(r.Context(), req.MatchID, req.OperatorID, req.OperatorRole)
	status := http.StatusCreated
	if reused {
		status = http.StatusOK
	}
	writeJSON(w, status, sessionResponse{EntrySession: s, Reused: reused})
}

// HandleEnd handles DELETE /sessions/{sessionId}. Unknown sessions are ignored.
func (h *SessionsHandler) HandleEnd(w http.ResponseWriter, r *http.Request) {
	h.deps.EndSession(r.Context(), r.PathValue("sessionId"))
	w.WriteHeader(http.StatusNoContent)
}

// HandleForceEnd handles POST /sessions/{sessionId}/force-end.
func (h *SessionsHandler) HandleForceEnd(w http.ResponseWriter, r *http.Request) {
	h.deps.ForceEndSession(r.Context(), r.PathValue("sessionId"))
	w.WriteHeader(http.StatusNoContent)
}

// HandleTouch handles POST /sessions/{sessionId}/touch with an optional draft.
func (h *SessionsHandler) HandleTouch(w http.ResponseWriter, r *http.Request) {
	const op = "api.touch_session"
	var req touchRequest
	if err := decodeJSON(r, &req, true); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	s, ok := h.deps.TouchSession(r.Context(), r.PathValue("sessionId"), req.Draft)
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", NewKind(op, ErrNotFound))
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// HandleList handles GET /matches/{matchId}/sessions.
func (h *SessionsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	matchID := r.PathValue("matchId")
	writeJSON(w, http.StatusOK, sessionsResponse{MatchID: matchID, Sessions: h.deps.ActiveSessions(matchID)})
}

// HandleStats handles GET /matches/{matchId}/sessions/stats.
func (h *SessionsHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.deps.SessionStats(r.PathValue("matchId")))
}

// HandleStatus handles GET /matches/{matchId}/operators/{operatorId}/session.
// An operator without an active session gets {"isActive": false}.
func (h *SessionsHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	s, ok := h.deps.SessionStatus(r.PathValue("matchId"), r.PathValue("operatorId"))
	if !ok {
		writeJSON(w, http.StatusOK, inactiveSession{})
		return
	}
	writeJSON(w, http.StatusOK, s)
}
