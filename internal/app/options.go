package service

import (
	"time"

	"github.com/okian/touchline/internal/adapters/repository"
	"github.com/okian/touchline/pkg/logger"
	"github.com/okian/touchline/pkg/tracing"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

// WithStore sets the event store. The service closes it on Stop.
func WithStore(store repository.EventStore) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithTracing sets the tracer provider used by the ingestion pipeline.
// The service shuts it down on Stop.
func WithTracing(p *tracing.Provider) Option {
	return func(s *Service) {
		if p != nil {
			s.tracing = p
		}
	}
}

// WithSessionTimeout sets the inactivity threshold and how often idle
// sessions are reaped.
func WithSessionTimeout(timeout, interval time.Duration) Option {
	return func(s *Service) {
		if timeout > 0 {
			s.sessionTimeout = timeout
		}
		if interval > 0 {
			s.reapInterval = interval
		}
	}
}

// WithClockTick sets how often running clocks are advanced.
func WithClockTick(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.clockTick = d
		}
	}
}

// WithDefaultPeriodMinutes sets the period length for matches opened without one.
func WithDefaultPeriodMinutes(minutes int) Option {
	return func(s *Service) {
		if minutes > 0 {
			s.periodMinutes = minutes
		}
	}
}

// WithDedupe sets how long submission ids are remembered.
func WithDedupe(ttl, cleanup time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.dedupeTTL = ttl
		}
		if cleanup > 0 {
			s.dedupeCleanup = cleanup
		}
	}
}

// WithDispatch sets the number of notification partitions and their queue size.
func WithDispatch(partitions, queueSize int) Option {
	return func(s *Service) {
		if partitions > 0 {
			s.partitions = partitions
		}
		if queueSize > 0 {
			s.queueSize = queueSize
		}
	}
}

// WithSubscriberBuffer sets the per-observer notification buffer.
func WithSubscriberBuffer(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.subscriberBuffer = n
		}
	}
}

// WithMaxExtensionFields bounds the extension map of submitted events.
func WithMaxExtensionFields(n int) Option {
	return func(s *Service) {
		if n >= 0 {
			s.maxExtensions = n
		}
	}
}

// WithNow overrides the time source for sessions and the reaper.
func WithNow(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}
