// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/okian/touchline/internal/adapters/broadcast"
	"github.com/okian/touchline/internal/adapters/mq/worker"
	"github.com/okian/touchline/internal/adapters/repository"
	"github.com/okian/touchline/internal/domain/clock"
	"github.com/okian/touchline/internal/domain/dedupe"
	"github.com/okian/touchline/internal/domain/ingest"
	"github.com/okian/touchline/internal/domain/model"
	"github.com/okian/touchline/internal/domain/session"
	"github.com/okian/touchline/internal/domain/suggestion"
	"github.com/okian/touchline/internal/domain/validation"
	"github.com/okian/touchline/pkg/logger"
	"github.com/okian/touchline/pkg/metrics"
	"github.com/okian/touchline/pkg/tracing"
)

const (
	defaultSessionTimeout   = 30 * time.Minute
	defaultReapInterval     = time.Minute
	defaultClockTick        = time.Second
	defaultQueueSize        = 10_000
	defaultSubscriberBuffer = 256
	defaultMaxExtensions    = 16
	runtimeMetricsInterval  = 10 * time.Second
	shutdownTimeout         = 10 * time.Second
)

// Service wires the live match components together and owns their
// background loops. It carries no global state; several services can run
// side by side in one process.
type Service struct {
	mu sync.Mutex

	// Core components
	store     repository.EventStore
	sessions  *session.Registry
	clocks    *clock.Registry
	driver    *clock.Driver
	deduper   *dedupe.CacheDeduper
	hub       *broadcast.Hub
	pool      *worker.Pool
	publisher *broadcast.Publisher
	pipeline  *ingest.Pipeline
	tracing   *tracing.Provider

	// Configuration
	sessionTimeout   time.Duration
	reapInterval     time.Duration
	clockTick        time.Duration
	periodMinutes    int
	dedupeTTL        time.Duration
	dedupeCleanup    time.Duration
	partitions       int
	queueSize        int
	subscriberBuffer int
	maxExtensions    int
	now              func() time.Time

	// State
	started bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	log logger.Logger
}

// New constructs a Service. Components are ready for use immediately;
// Start launches the dispatch workers, the clock driver and the reaper.
func New(opts ...Option) *Service {
	s := &Service{
		sessionTimeout:   defaultSessionTimeout,
		reapInterval:     defaultReapInterval,
		clockTick:        defaultClockTick,
		periodMinutes:    model.DefaultPeriodMinutes,
		dedupeTTL:        dedupe.DefaultTTL,
		dedupeCleanup:    dedupe.DefaultCleanupInterval,
		queueSize:        defaultQueueSize,
		subscriberBuffer: defaultSubscriberBuffer,
		maxExtensions:    defaultMaxExtensions,
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logger.Get().Named("service")
	}
	if s.store == nil {
		s.store = repository.NewMemoryStore()
	}
	if s.tracing == nil {
		s.tracing = tracing.Noop()
	}

	s.sessions = session.New(
		session.WithNow(s.now),
		session.WithEndHook(s.sessionEnded),
		session.WithLogger(s.log.Named("session")),
	)
	s.clocks = clock.NewRegistry(clock.WithDefaultPeriodMinutes(s.periodMinutes))
	s.driver = clock.NewDriver(s.clocks,
		clock.WithTickInterval(s.clockTick),
		clock.WithMinuteHook(s.minuteChanged),
	)
	s.deduper = dedupe.NewCacheDeduper(
		dedupe.WithTTL(s.dedupeTTL),
		dedupe.WithCleanupInterval(s.dedupeCleanup),
		dedupe.WithLogger(s.log.Named("dedupe")),
	)
	s.hub = broadcast.NewHub(
		broadcast.WithSubscriberBuffer(s.subscriberBuffer),
		broadcast.WithHubLogger(s.log.Named("broadcast")),
	)
	s.pool = worker.NewPool(s.partitions, s.queueSize, s.hub, worker.WithPoolLogger(s.log.Named("dispatch")))
	s.publisher = broadcast.NewPublisher(s.pool, broadcast.WithPublisherLogger(s.log.Named("publisher")))
	s.pipeline = ingest.New(s.store, s.sessions, s.clocks, s.publisher,
		ingest.WithDeduper(s.deduper),
		ingest.WithValidator(validation.New(validation.WithMaxExtensionFields(s.maxExtensions))),
		ingest.WithSuggestionEngine(suggestion.New()),
		ingest.WithTracer(s.tracing.Tracer()),
		ingest.WithLogger(s.log.Named("ingest")),
	)
	return s
}

// Start launches the background loops. Starting twice is a no-op.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	s.log.Info(ctx, "starting live match service...")

	// Loops outlive the request-scoped ctx; Stop cancels them.
	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel

	// Dispatch workers stop when Stop closes their queues, after draining.
	s.pool.Start(context.WithoutCancel(ctx))
	s.spawn(func() { s.driver.Run(loopCtx) })
	s.spawn(func() { s.reapLoop(loopCtx) })
	s.spawn(func() { s.metricsLoop(loopCtx) })

	s.started = true
	s.log.Info(ctx, "live match service started",
		logger.Int("partitions", s.pool.Partitions()),
		logger.Int("queue_size", s.queueSize),
		logger.Duration("session_timeout", s.sessionTimeout),
		logger.Duration("clock_tick", s.clockTick),
		logger.Bool("tracing", s.tracing.Enabled()),
	)
	return nil
}

func (s *Service) spawn(fn func()) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		fn()
	}()
}

// Stop gracefully shuts down the service. Queued notifications are delivered
// and observer subscriptions closed before the store is closed. A stopped service cannot be started again.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if s.started {
		s.log.Info(ctx, "stopping live match service...")
		s.cancel()
		s.wg.Wait()
	}

	var errs []error
	if err := s.pool.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("dispatch: %w", err))
	}
	s.CloseSubscriptions()
	if err := s.store.Close(); err != nil && !errors.Is(err, repository.ErrStoreClosed) {
		errs = append(errs, fmt.Errorf("store: %w", err))
	}
	if err := s.tracing.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("tracing: %w", err))
	}
	if err := errors.Join(errs...); err != nil {
		s.log.Error(ctx, "shutdown incomplete", logger.Error(err))
		metrics.RecordErrorByComponent("service", "shutdown")
	}

	if s.started {
		s.started = false
		s.log.Info(ctx, "live match service stopped")
	}
}

func (s *Service) reapLoop(ctx context.Context) {
	ticker := time.NewTicker(s.reapInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Reap(ctx)
		}
	}
}

// Reap ends every session idle for longer than the inactivity timeout and
// returns how many were ended.
func (s *Service) Reap(ctx context.Context) int {
	reaped := s.sessions.ReapInactive(ctx, s.now(), s.sessionTimeout)
	if len(reaped) > 0 {
		s.log.Info(ctx, "reaped inactive sessions", logger.Int("count", len(reaped)))
	}
	return len(reaped)
}

func (s *Service) metricsLoop(ctx context.Context) {
	ticker := time.NewTicker(runtimeMetricsInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.updateMetrics()
		}
	}
}

func (s *Service) updateMetrics() {
	metrics.CollectRuntime()
	metrics.UpdateTrackedMatches(s.clocks.Len())
	metrics.UpdateRunningClocks(s.clocks.Running())
	metrics.UpdateSubscribers(s.hub.Count())
	metrics.UpdateActiveSessions(s.sessions.TotalActive())
	metrics.UpdateDedupeEntries(s.deduper.Size())
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]any {
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()

	ctx := context.Background()
	stats := map[string]any{
		"started":        started,
		"partitions":     s.pool.Partitions(),
		"queueSize":      s.queueSize,
		"queueLength":    s.pool.Len(ctx),
		"trackedMatches": s.clocks.Len(),
		"runningClocks":  s.clocks.Running(),
		"subscribers":    s.hub.Count(),
		"activeSessions": s.sessions.TotalActive(),
		"dedupeEntries":  s.deduper.Size(),
	}
	if n, err := s.store.Count(ctx); err == nil {
		stats["storedEvents"] = n
	}
	s.updateMetrics()
	return stats
}
