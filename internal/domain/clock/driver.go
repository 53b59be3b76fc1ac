package clock

import (
	"context"
	"time"
)

const defaultTickInterval = time.Second

// Driver feeds wall-clock time into a Registry on a fixed tick.
type Driver struct {
	registry *Registry
	interval time.Duration
	now      func() time.Time
	onMinute func(ctx context.Context, matchID string)
	last     time.Time
}

// DriverOption applies a configuration option to the Driver.
type DriverOption func(*Driver)

// WithTickInterval sets how often clocks are advanced.
func WithTickInterval(d time.Duration) DriverOption {
	return func(dr *Driver) {
		if d > 0 {
			dr.interval = d
		}
	}
}

// WithNow overrides the time source.
func WithNow(now func() time.Time) DriverOption {
	return func(dr *Driver) {
		if now != nil {
			dr.now = now
		}
	}
}

// WithMinuteHook is called for every match whose minute changed on a tick.
func WithMinuteHook(fn func(ctx context.Context, matchID string)) DriverOption {
	return func(dr *Driver) {
		dr.onMinute = fn
	}
}

// NewDriver creates a driver for registry.
func NewDriver(registry *Registry, opts ...DriverOption) *Driver {
	d := &Driver{
		registry: registry,
		interval: defaultTickInterval,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Run ticks until ctx is canceled.
func (d *Driver) Run(ctx context.Context) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	d.last = d.now()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.Tick(ctx)
		}
	}
}

// Tick advances all running clocks by the time since the previous tick.
func (d *Driver) Tick(ctx context.Context) {
	now := d.now()
	if d.last.IsZero() {
		d.last = now
		return
	}
	dt := now.Sub(d.last)
	d.last = now
	for _, id := range d.registry.AdvanceAll(dt) {
		if d.onMinute != nil {
			d.onMinute(ctx, id)
		}
	}
}
