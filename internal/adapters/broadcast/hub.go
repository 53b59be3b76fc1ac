// Package broadcast fans match notifications out to observers.
//
// Publisher hands notifications to a partitioned dispatcher and returns at
// once; dispatcher workers deliver them to the Hub, which pushes them onto
// per-subscriber buffered channels. An observer that cannot keep up is
// disconnected rather than allowed to stall delivery for everyone else.
package broadcast

import (
	"context"
	"sync"

	"github.com/okian/touchline/internal/domain/model"
	"github.com/okian/touchline/pkg/logger"
	"github.com/okian/touchline/pkg/metrics"
)

const defaultSubscriberBuffer = 256

// Subscription is one observer's feed of a match.
type Subscription struct {
	matchID string
	hub     *Hub

	mu        sync.Mutex
	ch        chan model.Notification
	closed    bool
	lagged    bool
	lastEvent int64
}

// C returns the notification channel. It is closed when the subscription
// ends, either through Close or because the observer fell behind.
func (s *Subscription) C() <-chan model.Notification { return s.ch }

// MatchID returns the subscribed match.
func (s *Subscription) MatchID() string { return s.matchID }

// Lagged reports whether the subscription was dropped for falling behind
// or for missing an event. Such an observer must resynchronize from the
// event log.
func (s *Subscription) Lagged() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lagged
}

// Close ends the subscription. It is safe to call more than once.
func (s *Subscription) Close() {
	s.hub.remove(s)
	s.shut(false)
}

type offerResult int

const (
	offered offerResult = iota
	bufferFull
	sequenceGap
)

// offer attempts a non-blocking send. An event_added notification must
// follow the previous one delivered to this subscriber without a gap;
// otherwise the subscriber has missed events and must resynchronize.
func (s *Subscription) offer(n model.Notification) offerResult { //nolint:gocritic // hugeParam: passed by value for channel semantics
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return offered
	}
	isEvent := n.Kind == model.NotifyEventAdded
	if isEvent && s.lastEvent > 0 && n.Sequence > s.lastEvent+1 {
		return sequenceGap
	}
	select {
	case s.ch <- n:
		if isEvent && n.Sequence > s.lastEvent {
			s.lastEvent = n.Sequence
		}
		return offered
	default:
		return bufferFull
	}
}

func (s *Subscription) shut(lagged bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.lagged = lagged
	close(s.ch)
}

// Hub holds the subscribers of every match.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]map[*Subscription]struct{}
	count  int
	buffer int
	closed bool
	log    logger.Logger
}

// NewHub creates an empty hub.
func NewHub(opts ...HubOption) *Hub {
	h := &Hub{
		subs:   make(map[string]map[*Subscription]struct{}),
		buffer: defaultSubscriberBuffer,
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.log == nil {
		h.log = logger.Get().Named("broadcast")
	}
	return h
}

// Subscribe registers an observer of matchID. After CloseAll the returned
// subscription is already closed.
func (h *Hub) Subscribe(matchID string) *Subscription {
	s := &Subscription{
		matchID: matchID,
		hub:     h,
		ch:      make(chan model.Notification, h.buffer),
	}
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		s.shut(false)
		return s
	}
	set, ok := h.subs[matchID]
	if !ok {
		set = make(map[*Subscription]struct{})
		h.subs[matchID] = set
	}
	set[s] = struct{}{}
	h.count++
	n := h.count
	h.mu.Unlock()

	metrics.UpdateSubscribers(n)
	return s
}

func (h *Hub) remove(s *Subscription) bool {
	h.mu.Lock()
	set, ok := h.subs[s.matchID]
	if !ok {
		h.mu.Unlock()
		return false
	}
	if _, ok := set[s]; !ok {
		h.mu.Unlock()
		return false
	}
	delete(set, s)
	if len(set) == 0 {
		delete(h.subs, s.matchID)
	}
	h.count--
	n := h.count
	h.mu.Unlock()

	metrics.UpdateSubscribers(n)
	return true
}

// Subscribers returns the number of observers of a match.
func (h *Hub) Subscribers(matchID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[matchID])
}

// Count returns the number of observers across all matches.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.count
}

// CloseAll ends every subscription and refuses new ones. Observers see
// their channel close without the lagged flag.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	h.closed = true
	var all []*Subscription
	for _, set := range h.subs {
		for s := range set {
			all = append(all, s)
		}
	}
	h.subs = make(map[string]map[*Subscription]struct{})
	h.count = 0
	h.mu.Unlock()

	for _, s := range all {
		s.shut(false)
	}
	metrics.UpdateSubscribers(0)
}

// Deliver pushes n to every observer of its match without blocking.
func (h *Hub) Deliver(ctx context.Context, n model.Notification) { //nolint:gocritic // hugeParam: passed by value for channel semantics
	h.mu.RLock()
	set := h.subs[n.MatchID]
	targets := make([]*Subscription, 0, len(set))
	for s := range set {
		targets = append(targets, s)
	}
	h.mu.RUnlock()

	for _, s := range targets {
		res := s.offer(n)
		if res == offered {
			continue
		}
		if h.remove(s) {
			s.shut(true)
			metrics.RecordLaggingSubscriber()
			reason := "buffer_full"
			if res == sequenceGap {
				reason = "sequence_gap"
			}
			h.log.Warn(ctx, "subscriber dropped for lagging",
				logger.String("match_id", n.MatchID),
				logger.String("reason", reason),
				logger.Int64("sequence", n.Sequence))
		}
	}
}
