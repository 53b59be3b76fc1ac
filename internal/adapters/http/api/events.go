package api

import (
	"context"
	"net/http"

	"github.com/okian/touchline/internal/domain/model"
	"github.com/okian/touchline/internal/domain/types"
)

// EventDependencies defines the interface for event processing dependencies.
type EventDependencies interface {
	SubmitEvent(ctx context.Context, f *model.EventEntryFormData, operatorID, operatorRole string) (types.SubmitResult, error)
	ValidateEvent(f *model.EventEntryFormData) model.ValidationResult
	Suggest(matchID string, eventType model.EventType, filled map[string]string) []string
	Events(ctx context.Context, matchID string, after int64, limit int) ([]model.MatchEvent, error)
}

// EventsHandler handles event requests.
type EventsHandler struct {
	deps EventDependencies
}

// NewEventsHandler creates a new events handler.
func NewEventsHandler(deps EventDependencies) *EventsHandler {
	return &EventsHandler{deps: deps}
}

type suggestionsResponse struct {
	EventType   model.EventType `json:"eventType"`
	Suggestions []string        `json:"suggestions"`
}

type eventsResponse struct {
	MatchID string             `json:"matchId"`
	Events  []model.MatchEvent `json:"events"`
}

// HandleSubmit handles POST /events. The operator is identified by the
// X-Operator-Id and X-Operator-Role headers. Accepted events answer 201,
// replayed duplicates 200 and rejected submissions 422 with the
// validation result.
func (h *EventsHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	const op = "api.submit_event"
	operatorID := r.Header.Get(HeaderOperatorID)
	if err := requireParam(HeaderOperatorID, operatorID); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	var form model.EventEntryFormData
	if err := decodeJSON(r, &form, false); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	res, err := h.deps.SubmitEvent(r.Context(), &form, operatorID, r.Header.Get(HeaderOperatorRole))
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	status := http.StatusCreated
	if res.Duplicate {
		status = http.StatusOK
	}
	writeJSON(w, status, res)
}

// HandleValidate handles POST /events/validate. It never mutates state.
func (h *EventsHandler) HandleValidate(w http.ResponseWriter, r *http.Request) {
	const op = "api.validate_event"
	var form model.EventEntryFormData
	if err := decodeJSON(r, &form, false); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	writeJSON(w, http.StatusOK, h.deps.ValidateEvent(&form))
}

// HandleSuggestions handles GET /suggestions?matchId=&eventType=. Any other
// query parameter is treated as an already filled form field.
func (h *EventsHandler) HandleSuggestions(w http.ResponseWriter, r *http.Request) {
	const op = "api.suggestions"
	q := r.URL.Query()
	eventType := model.EventType(q.Get("eventType"))
	if err := requireParam("eventType", string(eventType)); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	filled := make(map[string]string, len(q))
	for k := range q {
		if k != "matchId" && k != "eventType" {
			filled[k] = q.Get(k)
		}
	}
	writeJSON(w, http.StatusOK, suggestionsResponse{
		EventType:   eventType,
		Suggestions: h.deps.Suggest(q.Get("matchId"), eventType, filled),
	})
}

// HandleList handles GET /matches/{matchId}/events?after=&limit=.
func (h *EventsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_events"
	after, err := queryInt(r, "after")
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	matchID := r.PathValue("matchId")
	evs, err := h.deps.Events(r.Context(), matchID, after, int(limit))
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	if evs == nil {
		evs = []model.MatchEvent{}
	}
	writeJSON(w, http.StatusOK, eventsResponse{MatchID: matchID, Events: evs})
}
