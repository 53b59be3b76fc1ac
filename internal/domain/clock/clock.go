// Package clock implements the per-match clock state machine.
//
// The machine never reads wall time. Elapsed time only moves through
// Advance, which an external driver calls with a delta while the clock is
// running, so the same machine can be exercised deterministically in tests.
package clock

import (
	"fmt"
	"sync"
	"time"

	"github.com/okian/touchline/internal/domain/model"
)

const (
	secondsPerMinute = 60
	penaltiesMinute  = 120
)

// Clock is the clock of one match. All methods are safe for concurrent use;
// each transition checks its guard and applies it under one lock.
type Clock struct {
	mu sync.Mutex

	matchID        string
	homeTeamID     string
	awayTeamID     string
	status         model.ClockStatus
	period         model.Period
	elapsed        time.Duration
	injuryMinutes  int
	periodDuration int
}

// New creates a not-started clock in the first half.
func New(matchID string, opts ...Option) *Clock {
	c := &Clock{
		matchID:        matchID,
		status:         model.ClockNotStarted,
		period:         model.PeriodFirstHalf,
		periodDuration: model.DefaultPeriodMinutes,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Option applies a configuration option to a Clock.
type Option func(*Clock)

// WithPeriodMinutes sets the initial period duration.
func WithPeriodMinutes(minutes int) Option {
	return func(c *Clock) {
		if minutes > 0 {
			c.periodDuration = minutes
		}
	}
}

// WithTeams records the two sides of the match.
func WithTeams(home, away string) Option {
	return func(c *Clock) {
		c.homeTeamID = home
		c.awayTeamID = away
	}
}

// Snapshot returns the current state.
func (c *Clock) Snapshot() model.ClockState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Minute returns the match minute derived from the period and elapsed time.
func (c *Clock) Minute() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.minuteLocked()
}

// Start moves a not-started clock to running.
func (c *Clock) Start() (model.ClockState, error) {
	return c.apply(func() error {
		if c.status != model.ClockNotStarted {
			return fmt.Errorf("%w: start from %s", ErrInvalidTransition, c.status)
		}
		c.status = model.ClockRunning
		return nil
	})
}

// Pause stops time advancing. Pausing a paused clock is a no-op.
func (c *Clock) Pause() (model.ClockState, error) {
	return c.apply(func() error {
		switch c.status {
		case model.ClockRunning:
			c.status = model.ClockPaused
		case model.ClockPaused:
		default:
			return fmt.Errorf("%w: pause from %s", ErrInvalidTransition, c.status)
		}
		return nil
	})
}

// Resume restarts a paused clock. Resuming a running clock is a no-op.
func (c *Clock) Resume() (model.ClockState, error) {
	return c.apply(func() error {
		switch c.status {
		case model.ClockPaused:
			c.status = model.ClockRunning
		case model.ClockRunning:
		default:
			return fmt.Errorf("%w: resume from %s", ErrInvalidTransition, c.status)
		}
		return nil
	})
}

// Stop completes the clock. It is terminal; stopping twice is a no-op.
func (c *Clock) Stop() (model.ClockState, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status = model.ClockCompleted
	return c.snapshotLocked(), nil
}

// AddInjuryTime accumulates injury time on a running clock.
func (c *Clock) AddInjuryTime(minutes int) (model.ClockState, error) {
	return c.apply(func() error {
		if minutes <= 0 {
			return fmt.Errorf("%w: %d minutes", ErrInvalidInjuryTime, minutes)
		}
		if c.status != model.ClockRunning {
			return fmt.Errorf("%w: add injury time while %s", ErrInvalidTransition, c.status)
		}
		c.injuryMinutes += minutes
		return nil
	})
}

// EndInjuryTime clears accumulated injury time.
func (c *Clock) EndInjuryTime() (model.ClockState, error) {
	return c.apply(func() error {
		c.injuryMinutes = 0
		return nil
	})
}

// SkipToPeriod moves a stopped-in-play clock forward to period p, resetting
// elapsed and injury time. Only strictly later periods are accepted.
func (c *Clock) SkipToPeriod(p model.Period) (model.ClockState, error) {
	return c.apply(func() error {
		if !p.Valid() {
			return fmt.Errorf("%w: %q", ErrInvalidPeriod, p)
		}
		if c.status == model.ClockRunning {
			return fmt.Errorf("%w: change period while running", ErrInvalidTransition)
		}
		if p.Index() <= c.period.Index() {
			return fmt.Errorf("%w: %s does not follow %s", ErrInvalidTransition, p, c.period)
		}
		c.period = p
		c.elapsed = 0
		c.injuryMinutes = 0
		return nil
	})
}

// SetPeriodDuration changes the period length while the clock is not running.
func (c *Clock) SetPeriodDuration(minutes int) (model.ClockState, error) {
	return c.apply(func() error {
		if minutes <= 0 {
			return fmt.Errorf("%w: %d minutes", ErrInvalidDuration, minutes)
		}
		if c.status == model.ClockRunning {
			return fmt.Errorf("%w: change duration while running", ErrInvalidTransition)
		}
		c.periodDuration = minutes
		return nil
	})
}

// Advance moves elapsed time forward by dt if the clock is running.
// It reports whether the derived match minute changed.
func (c *Clock) Advance(dt time.Duration) bool {
	if dt <= 0 {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status != model.ClockRunning {
		return false
	}
	before := c.minuteLocked()
	c.elapsed += dt
	return c.minuteLocked() != before
}

// apply runs mutate under the lock. Completed clocks reject every mutation,
// and a failed mutate must not have changed any field.
func (c *Clock) apply(mutate func() error) (model.ClockState, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status == model.ClockCompleted {
		return c.snapshotLocked(), ErrClockCompleted
	}
	if err := mutate(); err != nil {
		return c.snapshotLocked(), err
	}
	return c.snapshotLocked(), nil
}

func (c *Clock) snapshotLocked() model.ClockState {
	return model.ClockState{
		MatchID:               c.matchID,
		Status:                c.status,
		CurrentPeriod:         c.period,
		ElapsedSeconds:        int64(c.elapsed / time.Second),
		InjuryTimeMinutes:     c.injuryMinutes,
		PeriodDurationMinutes: c.periodDuration,
		Minute:                c.minuteLocked(),
		HomeTeamID:            c.homeTeamID,
		AwayTeamID:            c.awayTeamID,
	}
}

func (c *Clock) minuteLocked() int {
	played := int(c.elapsed/time.Second) / secondsPerMinute
	var m int
	switch c.period {
	case model.PeriodHalftime:
		m = c.periodDuration
	case model.PeriodSecondHalf:
		m = c.periodDuration + played
	case model.PeriodExtraTime:
		m = 2*c.periodDuration + played
	case model.PeriodPenalties:
		m = penaltiesMinute
	default:
		m = played
	}
	if m > model.MaxMinute {
		m = model.MaxMinute
	}
	return m
}
