package clock

import (
	"sync"
	"time"

	"github.com/okian/touchline/internal/domain/model"
)

// Registry holds one clock per match. The registry lock only guards the
// map; transitions lock the individual clock, so matches never contend.
type Registry struct {
	mu            sync.RWMutex
	clocks        map[string]*Clock
	periodMinutes int
}

// RegistryOption applies a configuration option to the Registry.
type RegistryOption func(*Registry)

// WithDefaultPeriodMinutes sets the period length of newly created clocks.
func WithDefaultPeriodMinutes(minutes int) RegistryOption {
	return func(r *Registry) {
		if minutes > 0 {
			r.periodMinutes = minutes
		}
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		clocks:        make(map[string]*Clock),
		periodMinutes: model.DefaultPeriodMinutes,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Open puts a match under live tracking. If the match already has a clock
// it is returned unchanged and created is false.
func (r *Registry) Open(matchID, homeTeamID, awayTeamID string, periodMinutes int) (c *Clock, created bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.clocks[matchID]; ok {
		return c, false
	}
	if periodMinutes <= 0 {
		periodMinutes = r.periodMinutes
	}
	c = New(matchID, WithPeriodMinutes(periodMinutes), WithTeams(homeTeamID, awayTeamID))
	r.clocks[matchID] = c
	return c, true
}

// Get returns the clock of a match, if one exists.
func (r *Registry) Get(matchID string) (*Clock, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.clocks[matchID]
	return c, ok
}

// GetOrCreate returns the clock of a match, creating a default one if needed.
func (r *Registry) GetOrCreate(matchID string) *Clock {
	if c, ok := r.Get(matchID); ok {
		return c
	}
	c, _ := r.Open(matchID, "", "", 0)
	return c
}

// Len returns the number of tracked matches.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clocks)
}

// Running returns the number of clocks currently running.
func (r *Registry) Running() int {
	n := 0
	for _, c := range r.all() {
		if c.Snapshot().Status == model.ClockRunning {
			n++
		}
	}
	return n
}

// AdvanceAll advances every running clock by dt and returns the ids of the
// matches whose minute changed.
func (r *Registry) AdvanceAll(dt time.Duration) []string {
	var changed []string
	for _, c := range r.all() {
		if c.Advance(dt) {
			changed = append(changed, c.matchID)
		}
	}
	return changed
}

func (r *Registry) all() []*Clock {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Clock, 0, len(r.clocks))
	for _, c := range r.clocks {
		out = append(out, c)
	}
	return out
}

// State returns the current state of a match clock.
func (r *Registry) State(matchID string) (model.ClockState, bool) {
	c, ok := r.Get(matchID)
	if !ok {
		return model.ClockState{}, false
	}
	return c.Snapshot(), true
}
