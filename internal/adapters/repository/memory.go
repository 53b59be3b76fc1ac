package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/okian/touchline/internal/domain/model"
	"github.com/okian/touchline/pkg/metrics"
)

// MemoryStore keeps events in process memory, one ordered log per match.
type MemoryStore struct {
	mu     sync.RWMutex
	logs   map[string][]model.MatchEvent
	total  int
	closed bool
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{logs: make(map[string][]model.MatchEvent)}
}

// Persist appends ev to its match log, keeping the log sorted by sequence.
func (s *MemoryStore) Persist(ctx context.Context, ev model.MatchEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := checkEvent(ev); err != nil {
		return err
	}
	start := time.Now()
	defer func() {
		metrics.RecordPersistenceLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	log := s.logs[ev.MatchID]
	i := sort.Search(len(log), func(i int) bool { return log[i].Sequence >= ev.Sequence })
	if i < len(log) && log[i].Sequence == ev.Sequence {
		return fmt.Errorf("%w: %s/%d", ErrDuplicateSequence, ev.MatchID, ev.Sequence)
	}
	log = append(log, model.MatchEvent{})
	copy(log[i+1:], log[i:])
	log[i] = ev
	s.logs[ev.MatchID] = log
	s.total++
	return nil
}

// ListByMatch returns events with sequence > after.
func (s *MemoryStore) ListByMatch(ctx context.Context, matchID string, after int64, limit int) ([]model.MatchEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	limit = normalizeLimit(limit)

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}
	log := s.logs[matchID]
	i := sort.Search(len(log), func(i int) bool { return log[i].Sequence > after })
	end := i + limit
	if end > len(log) {
		end = len(log)
	}
	out := make([]model.MatchEvent, end-i)
	copy(out, log[i:end])
	return out, nil
}

// LastSequence returns the highest stored sequence of a match.
func (s *MemoryStore) LastSequence(ctx context.Context, matchID string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, ErrStoreClosed
	}
	log := s.logs[matchID]
	if len(log) == 0 {
		return 0, nil
	}
	return log[len(log)-1].Sequence, nil
}

// Count returns the total number of stored events.
func (s *MemoryStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.total, nil
}

// Close marks the store closed; later calls return ErrStoreClosed.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}
