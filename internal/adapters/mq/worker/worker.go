// Package worker drains notification queues into a delivery sink.
package worker

import (
	"context"
	"fmt"
	"hash/fnv"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/touchline/internal/adapters/mq/queue"
	"github.com/okian/touchline/pkg/logger"
	"github.com/okian/touchline/pkg/metrics"
)

const (
	defaultQueueSize      = 10000
	metricsUpdateInterval = 5 * time.Second
	poolShutdownTimeout   = 30 * time.Second
)

// Message is what workers read off a queue.
type Message = queue.Message

// Sink receives dequeued messages. Deliver must not block on observers.
type Sink interface {
	Deliver(ctx context.Context, m Message)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, m Message)

// Deliver calls f.
func (f SinkFunc) Deliver(ctx context.Context, m Message) { f(ctx, m) } //nolint:gocritic // hugeParam: passed by value for channel semantics

// Source is how workers receive messages.
type Source interface {
	Dequeue(ctx context.Context) <-chan Message
}

// InMemoryWorker moves messages from one Source to a Sink, one at a time.
type InMemoryWorker struct {
	source Source
	sink   Sink
	name   string
	done   chan struct{}
	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(source Source, sink Sink, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		source: source,
		sink:   sink,
		name:   "worker",
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = logger.Get().Named(w.name)
	}
	return w
}

// Run delivers messages until the source is closed and drained or ctx is
// canceled.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)
	for m := range w.source.Dequeue(ctx) {
		w.deliver(ctx, m)
	}
}

// Done is closed once Run has returned.
func (w *InMemoryWorker) Done() <-chan struct{} { return w.done }

func (w *InMemoryWorker) deliver(ctx context.Context, m Message) { //nolint:gocritic // hugeParam: passed by value for channel semantics
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			metrics.RecordWorkerError()
			metrics.RecordErrorByComponent("worker", "panic")
			w.logger.Error(ctx, "delivery panicked",
				logger.String("match_id", m.MatchID),
				logger.String("kind", string(m.Kind)),
				logger.Any("panic", r))
		}
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()
	w.sink.Deliver(ctx, m)
}

// Pool is a partitioned dispatcher: every match hashes to one queue served
// by one worker, so messages of a match are delivered in publish order while
// different matches proceed in parallel.
type Pool struct {
	queues  []*queue.InMemoryQueue
	workers []*InMemoryWorker
	logger  logger.Logger

	startOnce sync.Once
	started   atomic.Bool
	stopOnce  sync.Once
	stop      chan struct{}
}

// NewPool creates a pool with the given number of partitions, each with a
// queue of queueSize messages. partitions < 1 uses runtime.NumCPU().
func NewPool(partitions, queueSize int, sink Sink, opts ...PoolOption) *Pool {
	if partitions < 1 {
		partitions = runtime.NumCPU()
	}
	if queueSize < 1 {
		queueSize = defaultQueueSize
	}
	p := &Pool{
		queues:  make([]*queue.InMemoryQueue, partitions),
		workers: make([]*InMemoryWorker, partitions),
		stop:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = logger.Get().Named("dispatch")
	}
	for i := range p.queues {
		name := "dispatch-" + strconv.Itoa(i)
		p.queues[i] = queue.NewInMemoryQueue(queue.WithCapacity(queueSize), queue.WithName(name))
		p.workers[i] = NewInMemoryWorker(p.queues[i], sink, WithName(name), WithLogger(p.logger.Named(name)))
	}
	metrics.UpdateWorkerCount(partitions)
	metrics.UpdateQueueCapacity(partitions * queueSize)
	return p
}

// Partitions returns the number of partitions.
func (p *Pool) Partitions() int { return len(p.queues) }

// PartitionOf returns the partition a match is routed to.
func (p *Pool) PartitionOf(matchID string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(matchID))
	return int(h.Sum32() % uint32(len(p.queues)))
}

// Dispatch routes m to its match partition without blocking. It returns
// false when the partition queue is full or the pool is shut down.
func (p *Pool) Dispatch(ctx context.Context, m Message) bool { //nolint:gocritic // hugeParam: passed by value for channel semantics
	return p.queues[p.PartitionOf(m.MatchID)].Enqueue(ctx, m)
}

// Len returns the number of queued messages across partitions.
func (p *Pool) Len(ctx context.Context) int {
	n := 0
	for _, q := range p.queues {
		n += q.Len(ctx)
	}
	return n
}

// Start starts all workers. Calling it more than once has no effect.
func (p *Pool) Start(ctx context.Context) {
	p.startOnce.Do(func() {
		p.started.Store(true)
		for _, w := range p.workers {
			go w.Run(ctx)
		}
		go p.reportQueueMetrics(ctx)
	})
}

func (p *Pool) reportQueueMetrics(ctx context.Context) {
	ticker := time.NewTicker(metricsUpdateInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stop:
			return
		case <-ticker.C:
			p.updateMetrics(ctx)
		}
	}
}

func (p *Pool) updateMetrics(ctx context.Context) {
	size, capacity := 0, 0
	for _, q := range p.queues {
		size += q.Len(ctx)
		capacity += q.Capacity()
	}
	metrics.UpdateQueueSize(size)
	if capacity > 0 {
		metrics.UpdateQueueUtilization(float64(size) / float64(capacity))
	}
}

// Shutdown closes every queue and waits for the workers to deliver what was
// already queued, bounded by ctx and an internal timeout.
func (p *Pool) Shutdown(ctx context.Context) error {
	var err error
	p.stopOnce.Do(func() {
		close(p.stop)
		for _, q := range p.queues {
			_ = q.Close()
		}
		if !p.started.Load() {
			return
		}

		shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
		defer cancel()
		for i, w := range p.workers {
			select {
			case <-w.Done():
			case <-shutdownCtx.Done():
				p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("partition", i))
				err = fmt.Errorf("dispatch shutdown: %w", shutdownCtx.Err())
				return
			}
		}
		p.updateMetrics(ctx)
	})
	return err
}
