package dedupe

import (
	"time"

	"github.com/okian/touchline/pkg/logger"
)

// Option applies a configuration option to the CacheDeduper.
type Option func(*CacheDeduper)

// WithTTL sets how long a submission is remembered.
func WithTTL(ttl time.Duration) Option {
	return func(d *CacheDeduper) {
		if ttl > 0 {
			d.ttl = ttl
		}
	}
}

// WithCleanupInterval sets how often expired entries are purged.
func WithCleanupInterval(interval time.Duration) Option {
	return func(d *CacheDeduper) {
		if interval > 0 {
			d.cleanupInterval = interval
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(d *CacheDeduper) {
		if l != nil {
			d.log = l
		}
	}
}
