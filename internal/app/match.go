package service

import (
	"context"
	"fmt"

	"github.com/okian/touchline/internal/adapters/broadcast"
	"github.com/okian/touchline/internal/domain/model"
	"github.com/okian/touchline/internal/domain/types"
	"github.com/okian/touchline/pkg/logger"
	"github.com/okian/touchline/pkg/metrics"
)

// StartSession opens (or reuses) the entry session of an operator on a match.
func (s *Service) StartSession(ctx context.Context, matchID, operatorID, operatorRole string) (model.EntrySession, bool) {
	sess, reused := s.sessions.Start(ctx, matchID, operatorID, operatorRole)
	s.publishSession(ctx, sess)
	return sess, reused
}

// EndSession ends a session. Unknown or ended sessions are ignored.
func (s *Service) EndSession(ctx context.Context, sessionID string) {
	s.sessions.End(ctx, sessionID)
}

// ForceEndSession ends a session on an administrator's behalf.
func (s *Service) ForceEndSession(ctx context.Context, sessionID string) {
	s.sessions.ForceEnd(ctx, sessionID)
}

// TouchSession records activity and optionally stores a draft form.
func (s *Service) TouchSession(ctx context.Context, sessionID string, draft *model.EventEntryFormData) (model.EntrySession, bool) {
	return s.sessions.Touch(ctx, sessionID, draft)
}

// SessionStatus returns the active session of an operator on a match.
func (s *Service) SessionStatus(matchID, operatorID string) (model.EntrySession, bool) {
	return s.sessions.ForOperator(matchID, operatorID)
}

// ActiveSessions lists the active sessions of a match in start order.
func (s *Service) ActiveSessions(matchID string) []model.EntrySession {
	return s.sessions.ListActive(matchID)
}

// SessionStats summarises the sessions of a match.
func (s *Service) SessionStats(matchID string) model.SessionStats {
	return s.sessions.Stats(matchID)
}

func (s *Service) sessionEnded(ctx context.Context, sess model.EntrySession, _ string) {
	s.publishSession(ctx, sess)
}

func (s *Service) publishSession(ctx context.Context, sess model.EntrySession) {
	s.pipeline.Publish(ctx, model.Notification{
		Kind:    model.NotifySessionChanged,
		MatchID: sess.MatchID,
		Session: &sess,
	})
}

// SubmitEvent ingests one event on behalf of an operator.
func (s *Service) SubmitEvent(ctx context.Context, f *model.EventEntryFormData, operatorID, operatorRole string) (types.SubmitResult, error) {
	return s.pipeline.Submit(ctx, f, operatorID, operatorRole)
}

// ValidateEvent checks a form without side effects.
func (s *Service) ValidateEvent(f *model.EventEntryFormData) model.ValidationResult {
	return s.pipeline.Validate(f)
}

// Suggest returns advisory hints for an event type.
func (s *Service) Suggest(matchID string, eventType model.EventType, filled map[string]string) []string {
	return s.pipeline.Suggest(matchID, eventType, filled)
}

// Events returns persisted events of a match with sequence > after.
func (s *Service) Events(ctx context.Context, matchID string, after int64, limit int) ([]model.MatchEvent, error) {
	evs, err := s.store.ListByMatch(ctx, matchID, after, limit)
	if err != nil {
		return nil, fmt.Errorf("list events of %s: %w", matchID, err)
	}
	return evs, nil
}

// OpenMatch puts a match under live tracking. Opening a tracked match
// returns its current clock and created is false.
func (s *Service) OpenMatch(ctx context.Context, req types.OpenMatchRequest) (model.ClockState, bool) {
	c, created := s.clocks.Open(req.MatchID, req.HomeTeamID, req.AwayTeamID, req.PeriodMinutes)
	st := c.Snapshot()
	if created {
		metrics.UpdateTrackedMatches(s.clocks.Len())
		s.log.Info(ctx, "match opened",
			logger.String("match_id", req.MatchID),
			logger.String("home", req.HomeTeamID),
			logger.String("away", req.AwayTeamID),
			logger.Int("period_minutes", st.PeriodDurationMinutes),
		)
		s.publishClock(ctx, st)
	}
	return st, created
}

// Clock returns the clock of a tracked match.
func (s *Service) Clock(matchID string) (model.ClockState, bool) {
	return s.clocks.State(matchID)
}

// ControlClock applies cmd to the clock of a match, creating the clock with
// defaults if the match is not tracked yet. A rejected command leaves the
// clock unchanged and returns its current state with the error.
func (s *Service) ControlClock(ctx context.Context, matchID string, cmd types.ClockCommand) (model.ClockState, error) {
	c := s.clocks.GetOrCreate(matchID)

	var (
		st  model.ClockState
		err error
	)
	switch cmd.Action {
	case types.ClockStart:
		st, err = c.Start()
	case types.ClockPause:
		st, err = c.Pause()
	case types.ClockResume:
		st, err = c.Resume()
	case types.ClockStop:
		st, err = c.Stop()
	case types.ClockInjuryTime:
		st, err = c.AddInjuryTime(cmd.Minutes)
	case types.ClockEndInjuryTime:
		st, err = c.EndInjuryTime()
	case types.ClockPeriod:
		st, err = c.SkipToPeriod(cmd.Period)
	case types.ClockDuration:
		st, err = c.SetPeriodDuration(cmd.Minutes)
	default:
		return c.Snapshot(), fmt.Errorf("%w: %q", ErrUnknownClockAction, cmd.Action)
	}

	action := string(cmd.Action)
	if err != nil {
		metrics.RecordClockTransition(action, "rejected")
		s.log.Debug(ctx, "clock transition rejected",
			logger.String("match_id", matchID),
			logger.String("action", action),
			logger.String("status", string(st.Status)),
			logger.Error(err),
		)
		return st, err
	}

	metrics.RecordClockTransition(action, "ok")
	metrics.UpdateRunningClocks(s.clocks.Running())
	s.log.Info(ctx, "clock transition",
		logger.String("match_id", matchID),
		logger.String("action", action),
		logger.String("status", string(st.Status)),
		logger.String("period", string(st.CurrentPeriod)),
		logger.Int("minute", st.Minute),
	)
	s.publishClock(ctx, st)
	return st, nil
}

func (s *Service) minuteChanged(ctx context.Context, matchID string) {
	if st, ok := s.clocks.State(matchID); ok {
		s.publishClock(ctx, st)
	}
}

func (s *Service) publishClock(ctx context.Context, st model.ClockState) { //nolint:gocritic // hugeParam: snapshot copy
	s.pipeline.Publish(ctx, model.Notification{
		Kind:    model.NotifyClockChanged,
		MatchID: st.MatchID,
		Clock:   &st,
	})
}

// MatchState returns the observer snapshot of a match. A match is known once
// it is tracked, has events, or has active sessions.
func (s *Service) MatchState(ctx context.Context, matchID string) (types.MatchState, error) {
	st, tracked := s.clocks.State(matchID)
	last, err := s.pipeline.LastSequence(ctx, matchID)
	if err != nil {
		return types.MatchState{}, err
	}
	active := s.sessions.ActiveCount(matchID)
	if !tracked && last == 0 && active == 0 {
		return types.MatchState{}, fmt.Errorf("%w: %s", ErrMatchNotFound, matchID)
	}
	return types.MatchState{
		MatchID:        matchID,
		Clock:          st,
		Score:          s.pipeline.Score(matchID),
		LastSequence:   last,
		ActiveSessions: active,
	}, nil
}

// Subscribe registers an observer of a match. The caller must Close it.
func (s *Service) Subscribe(matchID string) *broadcast.Subscription {
	return s.hub.Subscribe(matchID)
}

// CloseSubscriptions ends every observer subscription so open streams
// return. It is safe to call more than once.
func (s *Service) CloseSubscriptions() {
	s.hub.CloseAll()
}
