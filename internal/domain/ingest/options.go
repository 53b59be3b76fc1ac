package ingest

import (
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/okian/touchline/internal/domain/dedupe"
	"github.com/okian/touchline/internal/domain/suggestion"
	"github.com/okian/touchline/internal/domain/validation"
	"github.com/okian/touchline/pkg/logger"
)

// Option applies a configuration option to the Pipeline.
type Option func(*Pipeline)

// WithDeduper sets the idempotency cache.
func WithDeduper(d dedupe.Deduper) Option {
	return func(p *Pipeline) {
		if d != nil {
			p.deduper = d
		}
	}
}

// WithValidator sets the validator.
func WithValidator(v *validation.Validator) Option {
	return func(p *Pipeline) {
		if v != nil {
			p.validator = v
		}
	}
}

// WithSuggestionEngine sets the suggestion engine.
func WithSuggestionEngine(e *suggestion.Engine) Option {
	return func(p *Pipeline) {
		if e != nil {
			p.suggestions = e
		}
	}
}

// WithTracer sets the tracer used for submission spans.
func WithTracer(t trace.Tracer) Option {
	return func(p *Pipeline) {
		if t != nil {
			p.tracer = t
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.log = l
		}
	}
}

// WithNow overrides the time source.
func WithNow(now func() time.Time) Option {
	return func(p *Pipeline) {
		if now != nil {
			p.now = now
		}
	}
}

// WithIDGenerator overrides event id generation.
func WithIDGenerator(gen func() string) Option {
	return func(p *Pipeline) {
		if gen != nil {
			p.newID = gen
		}
	}
}
