package session

import (
	"context"
	"time"

	"github.com/okian/touchline/internal/domain/model"
	"github.com/okian/touchline/pkg/logger"
)

// Option applies a configuration option to the Registry.
type Option func(*Registry)

// WithNow overrides the time source.
func WithNow(now func() time.Time) Option {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

// WithIDGenerator overrides session id generation.
func WithIDGenerator(gen func() string) Option {
	return func(r *Registry) {
		if gen != nil {
			r.newID = gen
		}
	}
}

// WithEndHook is called after a session ends, outside any registry lock.
func WithEndHook(fn func(ctx context.Context, s model.EntrySession, reason string)) Option {
	return func(r *Registry) {
		r.onEnd = fn
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.log = l
		}
	}
}
