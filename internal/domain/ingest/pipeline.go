// Package ingest accepts operator-submitted match events.
//
// A submission is validated, sequenced, persisted, credited to the
// operator's session and announced to observers. Either all of that happens
// or none of it does: a validation or persistence failure leaves the
// sequence counter, score, sessions and idempotency cache untouched.
package ingest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/okian/touchline/internal/domain/dedupe"
	"github.com/okian/touchline/internal/domain/model"
	"github.com/okian/touchline/internal/domain/suggestion"
	"github.com/okian/touchline/internal/domain/types"
	"github.com/okian/touchline/internal/domain/validation"
	"github.com/okian/touchline/pkg/logger"
	"github.com/okian/touchline/pkg/metrics"
)

// EventStore is the persistence collaborator.
type EventStore interface {
	Persist(ctx context.Context, ev model.MatchEvent) error
	LastSequence(ctx context.Context, matchID string) (int64, error)
}

// Sessions credits accepted events to operator sessions.
type Sessions interface {
	RecordEvent(ctx context.Context, matchID, operatorID string) (model.EntrySession, bool)
}

// Clocks reads match clocks.
type Clocks interface {
	State(matchID string) (model.ClockState, bool)
}

// Broadcaster receives state-change notifications. Publish must not block
// on observers.
type Broadcaster interface {
	Publish(ctx context.Context, n model.Notification)
}

type matchState struct {
	mu     sync.Mutex
	loaded bool
	last   int64
	score  model.Scoreline
}

// Pipeline is the event ingestion pipeline.
type Pipeline struct {
	store       EventStore
	sessions    Sessions
	clocks      Clocks
	broadcaster Broadcaster
	deduper     dedupe.Deduper
	validator   *validation.Validator
	suggestions *suggestion.Engine
	tracer      trace.Tracer
	log         logger.Logger
	now         func() time.Time
	newID       func() string

	mu      sync.Mutex
	matches map[string]*matchState
}

// New creates a pipeline over its collaborators.
func New(store EventStore, sessions Sessions, clocks Clocks, broadcaster Broadcaster, opts ...Option) *Pipeline {
	p := &Pipeline{
		store:       store,
		sessions:    sessions,
		clocks:      clocks,
		broadcaster: broadcaster,
		validator:   validation.New(),
		suggestions: suggestion.New(),
		now:         time.Now,
		newID:       uuid.NewString,
		matches:     make(map[string]*matchState),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.log == nil {
		p.log = logger.Get().Named("ingest")
	}
	if p.tracer == nil {
		p.tracer = noop.NewTracerProvider().Tracer("ingest")
	}
	if p.deduper == nil {
		p.deduper = dedupe.NewCacheDeduper(dedupe.WithLogger(p.log))
	}
	return p
}

func (p *Pipeline) match(matchID string) *matchState {
	p.mu.Lock()
	defer p.mu.Unlock()
	ms, ok := p.matches[matchID]
	if !ok {
		ms = &matchState{score: model.Scoreline{}}
		p.matches[matchID] = ms
	}
	return ms
}

// Validate runs the validator and merges in suggestions. It has no side
// effects. A missing minute is stamped from the match clock first, as
// Submit would.
func (p *Pipeline) Validate(f *model.EventEntryFormData) model.ValidationResult {
	if f == nil {
		return p.validator.Validate(nil)
	}
	form, _ := p.stamp(f)
	res := p.validator.Validate(&form)
	seen := make(map[string]struct{}, len(res.Suggestions))
	for _, s := range res.Suggestions {
		seen[s] = struct{}{}
	}
	for _, s := range p.suggestions.Suggest(form.MatchID, form.EventType, suggestion.ContextFromForm(&form)) {
		if _, dup := seen[s]; !dup {
			res.Suggestions = append(res.Suggestions, s)
			seen[s] = struct{}{}
		}
	}
	return res
}

// Suggest returns advisory hints for an event type.
func (p *Pipeline) Suggest(matchID string, eventType model.EventType, filled map[string]string) []string {
	return p.suggestions.Suggest(matchID, eventType, filled)
}

// stamp copies f and fills a missing minute from the match clock.
func (p *Pipeline) stamp(f *model.EventEntryFormData) (model.EventEntryFormData, model.ClockState) {
	form := *f
	st, ok := p.clocks.State(form.MatchID)
	if !ok {
		return form, model.ClockState{}
	}
	if form.Minute == nil {
		form.Minute = model.IntPtr(st.Minute)
	}
	return form, st
}

// Submit ingests one event on behalf of an operator. A rejected submission
// returns a *RejectedError; a store failure returns an error wrapping
// ErrPersistence. A retried submission carrying the same submissionId is
// answered with the original event and Duplicate set.
func (p *Pipeline) Submit(ctx context.Context, f *model.EventEntryFormData, operatorID, operatorRole string) (types.SubmitResult, error) {
	start := p.now()
	metrics.RecordEventSubmitted()

	ctx, span := p.tracer.Start(ctx, "ingest.submit")
	defer span.End()

	var res types.SubmitResult
	if f == nil {
		rej := &RejectedError{Result: p.validator.Validate(nil)}
		metrics.RecordEventRejected("validation")
		span.SetStatus(codes.Error, "invalid")
		return res, rej
	}

	form, clockState := p.stamp(f)
	span.SetAttributes(
		attribute.String("match.id", form.MatchID),
		attribute.String("event.type", string(form.EventType)),
		attribute.String("operator.id", operatorID),
	)

	vr := p.validator.Validate(&form)
	if !vr.IsValid {
		metrics.RecordEventRejected("validation")
		span.SetAttributes(attribute.String("outcome", "rejected"))
		span.SetStatus(codes.Error, "invalid")
		p.log.Debug(ctx, "event rejected",
			logger.String("match_id", form.MatchID),
			logger.String("event_type", string(form.EventType)),
			logger.Any("errors", vr.Errors))
		return res, &RejectedError{Result: vr}
	}
	res.Warnings = vr.Warnings
	metrics.RecordValidationWarnings(len(vr.Warnings))

	ms := p.match(form.MatchID)
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if prev, ok := p.deduper.Lookup(ctx, form.MatchID, form.SubmissionID); ok {
		metrics.RecordEventDuplicate()
		span.SetAttributes(attribute.String("outcome", "duplicate"), attribute.Int64("event.sequence", prev.Sequence))
		p.log.Debug(ctx, "duplicate submission replayed",
			logger.String("match_id", form.MatchID),
			logger.String("submission_id", form.SubmissionID),
			logger.Int64("sequence", prev.Sequence))
		res.Event = prev
		res.Duplicate = true
		return res, nil
	}

	if err := p.load(ctx, form.MatchID, ms); err != nil {
		return res, p.persistenceFailed(ctx, span, form.MatchID, err)
	}

	ev := p.build(&form, clockState, ms.last+1, operatorID, operatorRole)
	if err := p.store.Persist(ctx, ev); err != nil {
		return res, p.persistenceFailed(ctx, span, form.MatchID, err)
	}

	ms.last = ev.Sequence
	scoreChanged := applyScore(ms.score, ev, clockState)
	p.sessions.RecordEvent(ctx, ev.MatchID, operatorID)
	p.deduper.Record(ctx, ev.MatchID, form.SubmissionID, ev)

	// published under the match lock so observers see sequence order
	evCopy := ev
	p.broadcaster.Publish(ctx, model.Notification{
		Kind:     model.NotifyEventAdded,
		MatchID:  ev.MatchID,
		Sequence: ev.Sequence,
		Event:    &evCopy,
		At:       ev.Timestamp,
	})
	if scoreChanged {
		p.broadcaster.Publish(ctx, model.Notification{
			Kind:     model.NotifyScoreUpdated,
			MatchID:  ev.MatchID,
			Sequence: ev.Sequence,
			Score:    ms.score.Clone(),
			At:       ev.Timestamp,
		})
	}

	metrics.RecordEventAccepted(string(ev.Type))
	metrics.UpdateLastSequence(ev.MatchID, ev.Sequence)
	metrics.RecordIngestLatency(float64(p.now().Sub(start).Microseconds()) / 1000)
	span.SetAttributes(attribute.String("outcome", "accepted"), attribute.Int64("event.sequence", ev.Sequence))
	p.log.Debug(ctx, "event accepted",
		logger.String("match_id", ev.MatchID),
		logger.String("event_id", ev.ID),
		logger.String("event_type", string(ev.Type)),
		logger.Int64("sequence", ev.Sequence),
		logger.Int("minute", ev.Minute))

	res.Event = ev
	return res, nil
}

// load fetches the last stored sequence the first time a match is seen.
// Must be called with ms.mu held.
func (p *Pipeline) load(ctx context.Context, matchID string, ms *matchState) error {
	if ms.loaded {
		return nil
	}
	last, err := p.store.LastSequence(ctx, matchID)
	if err != nil {
		return fmt.Errorf("load last sequence: %w", err)
	}
	ms.last = last
	ms.loaded = true
	return nil
}

func (p *Pipeline) persistenceFailed(ctx context.Context, span trace.Span, matchID string, err error) error {
	metrics.RecordEventRejected("persistence")
	metrics.RecordPersistenceError()
	metrics.RecordErrorByComponent("ingest", "persistence")
	span.RecordError(err)
	span.SetStatus(codes.Error, "persistence")
	span.SetAttributes(attribute.String("outcome", "persistence_error"))
	p.log.Error(ctx, "event persistence failed",
		logger.String("match_id", matchID),
		logger.Error(err))
	return fmt.Errorf("%w: %w", ErrPersistence, err)
}

func (p *Pipeline) build(f *model.EventEntryFormData, st model.ClockState, seq int64, operatorID, operatorRole string) model.MatchEvent {
	ev := model.MatchEvent{
		ID:                p.newID(),
		Sequence:          seq,
		MatchID:           f.MatchID,
		Type:              f.EventType,
		Period:            st.CurrentPeriod,
		TeamID:            f.TeamID,
		PlayerID:          f.PlayerID,
		SecondaryPlayerID: f.SecondaryPlayerID,
		Description:       f.Description,
		Details:           model.DetailsFromForm(f),
		OperatorID:        operatorID,
		OperatorRole:      operatorRole,
		Timestamp:         p.now().UTC(),
	}
	if m, ok := f.MinuteValue(); ok {
		ev.Minute = m
	}
	if len(f.Data) > 0 {
		ev.Extensions = make(map[string]string, len(f.Data))
		for k, v := range f.Data {
			ev.Extensions[k] = v
		}
	}
	if f.Timestamp != nil {
		t := f.Timestamp.UTC()
		ev.ClientTimestamp = &t
	}
	return ev
}

// applyScore updates score for scoring events and reports whether it changed.
func applyScore(score model.Scoreline, ev model.MatchEvent, st model.ClockState) bool {
	switch ev.Type {
	case model.EventGoal:
		score[ev.TeamID]++
		return true
	case model.EventOwnGoal:
		score[opponent(ev.TeamID, st)]++
		return true
	default:
		return false
	}
}

func opponent(teamID string, st model.ClockState) string {
	switch {
	case st.HomeTeamID != "" && st.AwayTeamID != "" && teamID == st.HomeTeamID:
		return st.AwayTeamID
	case st.HomeTeamID != "" && st.AwayTeamID != "" && teamID == st.AwayTeamID:
		return st.HomeTeamID
	default:
		return "opponent_of:" + teamID
	}
}

// Score returns a copy of the scoreline of a match.
func (p *Pipeline) Score(matchID string) model.Scoreline {
	ms := p.match(matchID)
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return ms.score.Clone()
}

// LastSequence returns the last committed sequence of a match.
func (p *Pipeline) LastSequence(ctx context.Context, matchID string) (int64, error) {
	ms := p.match(matchID)
	ms.mu.Lock()
	defer ms.mu.Unlock()
	if err := p.load(ctx, matchID, ms); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	return ms.last, nil
}

// Publish sends a non-event notification for a match, stamped with the
// last committed sequence, in order with the match's event notifications.
func (p *Pipeline) Publish(ctx context.Context, n model.Notification) { //nolint:gocritic // hugeParam: value semantics
	ms := p.match(n.MatchID)
	ms.mu.Lock()
	defer ms.mu.Unlock()
	n.Sequence = ms.last
	if n.At.IsZero() {
		n.At = p.now().UTC()
	}
	p.broadcaster.Publish(ctx, n)
}
