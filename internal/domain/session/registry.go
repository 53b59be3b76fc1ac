// Package session tracks operator entry sessions per match.
//
// Sessions are sharded by match. Each shard has its own lock, so activity on
// one match never waits on another, and ListActive/Stats always observe a
// consistent view of a single match. The registry-wide lock only guards
// creating a shard; session ownership and the active total are lock-free.
package session

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/okian/touchline/internal/domain/model"
	"github.com/okian/touchline/pkg/logger"
	"github.com/okian/touchline/pkg/metrics"
)

// DefaultInactivityTimeout is how long a session may stay idle before the
// reaper ends it.
const DefaultInactivityTimeout = 30 * time.Minute

// End reasons reported to metrics and logs.
const (
	reasonEnded  = "ended"
	reasonForced = "forced"
	reasonReaped = "reaped"
)

type shard struct {
	mu       sync.Mutex
	sessions map[string]*model.EntrySession // every session ever opened, by id
	order    []string                       // session ids in start order
	active   map[string]string              // operatorID -> active sessionID
}

func newShard() *shard {
	return &shard{
		sessions: make(map[string]*model.EntrySession),
		active:   make(map[string]string),
	}
}

// Registry is the in-memory session store.
type Registry struct {
	mu     sync.RWMutex
	shards map[string]*shard // matchID -> shard
	owner  sync.Map          // sessionID -> *shard
	active atomic.Int64
	now    func() time.Time
	newID  func() string
	onEnd  func(ctx context.Context, s model.EntrySession, reason string)
	log    logger.Logger
}

// New creates an empty registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		shards: make(map[string]*shard),
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.log == nil {
		r.log = logger.Get().Named("session")
	}
	return r
}

func (r *Registry) shard(matchID string, create bool) *shard {
	r.mu.RLock()
	sh, ok := r.shards[matchID]
	r.mu.RUnlock()
	if ok || !create {
		return sh
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if sh, ok = r.shards[matchID]; !ok {
		sh = newShard()
		r.shards[matchID] = sh
	}
	return sh
}

func (r *Registry) shardOf(sessionID string) (*shard, bool) {
	v, ok := r.owner.Load(sessionID)
	if !ok {
		return nil, false
	}
	return v.(*shard), true
}

// Start opens a session for the operator on the match. If the operator
// already has an active session there, that session is reused: its activity
// is refreshed and its role updated. reused reports which case applied.
func (r *Registry) Start(ctx context.Context, matchID, operatorID, operatorRole string) (s model.EntrySession, reused bool) {
	sh := r.shard(matchID, true)
	now := r.now()

	sh.mu.Lock()
	if id, ok := sh.active[operatorID]; ok {
		cur := sh.sessions[id]
		touch(cur, now)
		cur.OperatorRole = operatorRole
		out := *cur
		sh.mu.Unlock()
		r.log.Debug(ctx, "session reused",
			logger.String("session_id", out.SessionID),
			logger.String("match_id", matchID),
			logger.String("operator_id", operatorID))
		return out, true
	}

	cur := &model.EntrySession{
		SessionID:    r.newID(),
		MatchID:      matchID,
		OperatorID:   operatorID,
		OperatorRole: operatorRole,
		StartTime:    now,
		LastActivity: now,
		IsActive:     true,
	}
	sh.sessions[cur.SessionID] = cur
	sh.order = append(sh.order, cur.SessionID)
	sh.active[operatorID] = cur.SessionID
	r.owner.Store(cur.SessionID, sh)
	active := r.active.Add(1)
	out := *cur
	sh.mu.Unlock()

	metrics.RecordSessionStarted()
	metrics.UpdateActiveSessions(int(active))
	r.log.Info(ctx, "session started",
		logger.String("session_id", out.SessionID),
		logger.String("match_id", matchID),
		logger.String("operator_id", operatorID),
		logger.String("operator_role", operatorRole))
	return out, false
}

// End marks a session inactive. Unknown or already ended sessions are ignored.
func (r *Registry) End(ctx context.Context, sessionID string) {
	r.end(ctx, sessionID, reasonEnded)
}

// ForceEnd is the administrative variant of End. Authorization is the
// caller's concern.
func (r *Registry) ForceEnd(ctx context.Context, sessionID string) {
	r.end(ctx, sessionID, reasonForced)
}

func (r *Registry) end(ctx context.Context, sessionID, reason string) {
	sh, ok := r.shardOf(sessionID)
	if !ok {
		return
	}
	sh.mu.Lock()
	cur, ok := sh.sessions[sessionID]
	if !ok || !cur.IsActive {
		sh.mu.Unlock()
		return
	}
	deactivate(sh, cur, r.now())
	out := *cur
	sh.mu.Unlock()

	r.ended(ctx, out, reason)
}

func deactivate(sh *shard, s *model.EntrySession, now time.Time) {
	s.IsActive = false
	s.Draft = nil
	touch(s, now)
	if sh.active[s.OperatorID] == s.SessionID {
		delete(sh.active, s.OperatorID)
	}
}

func (r *Registry) ended(ctx context.Context, s model.EntrySession, reason string) {
	active := r.active.Add(-1)
	metrics.RecordSessionEnded(reason)
	metrics.UpdateActiveSessions(int(active))
	r.log.Info(ctx, "session ended",
		logger.String("session_id", s.SessionID),
		logger.String("match_id", s.MatchID),
		logger.String("operator_id", s.OperatorID),
		logger.String("reason", reason),
		logger.Int("events_entered", s.EventsEntered))
	if r.onEnd != nil {
		r.onEnd(ctx, s, reason)
	}
}

// Touch refreshes a session's activity and, when draft is non-nil, stores it
// for resuming the entry form later. Unknown or ended sessions are ignored.
func (r *Registry) Touch(_ context.Context, sessionID string, draft *model.EventEntryFormData) (model.EntrySession, bool) {
	sh, ok := r.shardOf(sessionID)
	if !ok {
		return model.EntrySession{}, false
	}
	sh.mu.Lock()
	defer sh.mu.Unlock()
	cur, ok := sh.sessions[sessionID]
	if !ok || !cur.IsActive {
		return model.EntrySession{}, false
	}
	touch(cur, r.now())
	if draft != nil {
		d := *draft
		cur.Draft = &d
	}
	return *cur, true
}

// RecordEvent credits an accepted event to the operator's active session on
// the match. It reports false when the operator has no active session.
func (r *Registry) RecordEvent(_ context.Context, matchID, operatorID string) (model.EntrySession, bool) {
	sh := r.shard(matchID, false)
	if sh == nil {
		return model.EntrySession{}, false
	}
	sh.mu.Lock()
	defer sh.mu.Unlock()
	id, ok := sh.active[operatorID]
	if !ok {
		return model.EntrySession{}, false
	}
	cur := sh.sessions[id]
	cur.EventsEntered++
	cur.Draft = nil
	touch(cur, r.now())
	return *cur, true
}

// ForOperator returns the operator's active session on the match.
func (r *Registry) ForOperator(matchID, operatorID string) (model.EntrySession, bool) {
	sh := r.shard(matchID, false)
	if sh == nil {
		return model.EntrySession{}, false
	}
	sh.mu.Lock()
	defer sh.mu.Unlock()
	id, ok := sh.active[operatorID]
	if !ok {
		return model.EntrySession{}, false
	}
	return *sh.sessions[id], true
}

// TotalActive returns the number of active sessions across all matches.
func (r *Registry) TotalActive() int {
	return int(r.active.Load())
}

// ListActive returns the active sessions of a match in start order.
func (r *Registry) ListActive(matchID string) []model.EntrySession {
	out := []model.EntrySession{}
	sh := r.shard(matchID, false)
	if sh == nil {
		return out
	}
	sh.mu.Lock()
	defer sh.mu.Unlock()
	for _, id := range sh.order {
		if s := sh.sessions[id]; s.IsActive {
			out = append(out, *s)
		}
	}
	return out
}

// ActiveCount returns the number of active sessions on a match.
func (r *Registry) ActiveCount(matchID string) int {
	sh := r.shard(matchID, false)
	if sh == nil {
		return 0
	}
	sh.mu.Lock()
	defer sh.mu.Unlock()
	return len(sh.active)
}

// Stats aggregates every session ever opened for a match.
func (r *Registry) Stats(matchID string) model.SessionStats {
	var st model.SessionStats
	sh := r.shard(matchID, false)
	if sh == nil {
		return st
	}
	sh.mu.Lock()
	defer sh.mu.Unlock()
	st.TotalSessions = len(sh.sessions)
	st.ActiveSessions = len(sh.active)
	for _, s := range sh.sessions {
		st.TotalEvents += s.EventsEntered
	}
	if st.TotalSessions > 0 {
		st.AverageEventsPerSession = float64(st.TotalEvents) / float64(st.TotalSessions)
	}
	return st
}

// ReapInactive ends every active session idle for longer than threshold and
// returns the ended sessions. A non-positive threshold uses the default.
func (r *Registry) ReapInactive(ctx context.Context, now time.Time, threshold time.Duration) []model.EntrySession {
	if threshold <= 0 {
		threshold = DefaultInactivityTimeout
	}
	cutoff := now.Add(-threshold)

	r.mu.RLock()
	shards := make([]*shard, 0, len(r.shards))
	for _, sh := range r.shards {
		shards = append(shards, sh)
	}
	r.mu.RUnlock()

	var reaped []model.EntrySession
	for _, sh := range shards {
		sh.mu.Lock()
		for _, id := range sh.active {
			s := sh.sessions[id]
			if s.LastActivity.Before(cutoff) {
				deactivate(sh, s, now)
				reaped = append(reaped, *s)
			}
		}
		sh.mu.Unlock()
	}

	sort.Slice(reaped, func(i, j int) bool { return reaped[i].StartTime.Before(reaped[j].StartTime) })
	for _, s := range reaped {
		r.ended(ctx, s, reasonReaped)
	}
	return reaped
}

// touch moves LastActivity forward, never backwards.
func touch(s *model.EntrySession, now time.Time) {
	if now.After(s.LastActivity) {
		s.LastActivity = now
	}
}
