// Package dedupe remembers accepted submissions so client retries are
// answered with the original event instead of creating a second one.
package dedupe

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/okian/touchline/internal/domain/model"
	"github.com/okian/touchline/pkg/logger"
)

const (
	DefaultTTL             = 10 * time.Minute
	DefaultCleanupInterval = 5 * time.Minute
)

// Deduper maps (matchID, submissionID) to the event the submission created.
// Callers serialize Lookup and Record per match; the store itself is safe
// for concurrent use across matches.
type Deduper interface {
	// Lookup returns the event recorded for the submission, if any.
	Lookup(ctx context.Context, matchID, submissionID string) (model.MatchEvent, bool)

	// Record stores ev as the result of the submission until the TTL expires.
	Record(ctx context.Context, matchID, submissionID string, ev model.MatchEvent)

	// Unrecord forgets a submission so it can be retried.
	Unrecord(ctx context.Context, matchID, submissionID string)

	Size() int
}

// CacheDeduper implements Deduper on a TTL cache.
type CacheDeduper struct {
	cache           *gocache.Cache
	ttl             time.Duration
	cleanupInterval time.Duration
	log             logger.Logger
}

// NewCacheDeduper creates a deduper whose entries expire after the configured TTL.
func NewCacheDeduper(opts ...Option) *CacheDeduper {
	d := &CacheDeduper{
		ttl:             DefaultTTL,
		cleanupInterval: DefaultCleanupInterval,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.log == nil {
		d.log = logger.Get().Named("dedupe")
	}
	d.cache = gocache.New(d.ttl, d.cleanupInterval)
	return d
}

func key(matchID, submissionID string) string {
	return matchID + "\x00" + submissionID
}

// Lookup returns the event recorded for the submission, if any.
func (d *CacheDeduper) Lookup(ctx context.Context, matchID, submissionID string) (model.MatchEvent, bool) {
	if submissionID == "" {
		return model.MatchEvent{}, false
	}
	v, found := d.cache.Get(key(matchID, submissionID))
	if !found {
		return model.MatchEvent{}, false
	}
	ev, ok := v.(model.MatchEvent)
	if !ok {
		d.log.Error(ctx, "unexpected value type in dedupe cache",
			logger.String("match_id", matchID),
			logger.String("submission_id", submissionID))
		return model.MatchEvent{}, false
	}
	return ev, true
}

// Record stores ev as the result of the submission.
func (d *CacheDeduper) Record(ctx context.Context, matchID, submissionID string, ev model.MatchEvent) {
	if submissionID == "" {
		return
	}
	d.cache.Set(key(matchID, submissionID), ev, gocache.DefaultExpiration)
	d.log.Debug(ctx, "submission recorded",
		logger.String("match_id", matchID),
		logger.String("submission_id", submissionID),
		logger.Int64("sequence", ev.Sequence))
}

// Unrecord forgets a submission.
func (d *CacheDeduper) Unrecord(_ context.Context, matchID, submissionID string) {
	d.cache.Delete(key(matchID, submissionID))
}

// Size returns the number of cached submissions, expired ones included
// until the next cleanup.
func (d *CacheDeduper) Size() int {
	return d.cache.ItemCount()
}
