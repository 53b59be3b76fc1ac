// Package queue provides a bounded, non-blocking notification queue.
package queue

import (
	"context"
	"sync"

	"github.com/okian/touchline/internal/domain/model"
	"github.com/okian/touchline/pkg/metrics"
)

const defaultQueueCapacity = 10000

// Message is the payload flowing through the queue.
type Message = model.Notification

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds a message. It never blocks; false means the queue was
	// full or closed and the message was not enqueued.
	Enqueue(ctx context.Context, m Message) bool

	// Dequeue returns the channel messages are delivered on, in enqueue
	// order. It is closed once the queue is closed and drained.
	Dequeue(ctx context.Context) <-chan Message

	// Len returns the current number of queued messages.
	Len(ctx context.Context) int

	// Close stops accepting messages. Already queued messages stay
	// available to the consumer.
	Close() error

	IsClosed() bool
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	messages chan Message
	capacity int
	name     string

	mu     sync.RWMutex
	closed bool
}

// NewInMemoryQueue creates a new in-memory queue with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{
		capacity: defaultQueueCapacity,
		name:     "queue",
	}
	for _, opt := range opts {
		opt(q)
	}
	q.messages = make(chan Message, q.capacity)
	return q
}

// Capacity returns the maximum number of queued messages.
func (q *InMemoryQueue) Capacity() int { return q.capacity }

// Enqueue adds a message to the queue.
func (q *InMemoryQueue) Enqueue(ctx context.Context, m Message) bool { //nolint:gocritic // hugeParam: passed by value for channel semantics
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent(q.name, "closed")
		return false
	}
	if err := ctx.Err(); err != nil {
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent(q.name, "context_cancelled")
		return false
	}

	select {
	case q.messages <- m:
		metrics.RecordQueueEnqueue()
		return true
	default:
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent(q.name, "queue_full")
		return false
	}
}

// Dequeue returns the receive side of the queue. There must be a single
// consumer per queue for delivery order to hold.
func (q *InMemoryQueue) Dequeue(ctx context.Context) <-chan Message {
	out := make(chan Message)
	go func() {
		defer close(out)
		for m := range q.messages {
			select {
			case out <- m:
				metrics.RecordQueueDequeue()
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Len returns the current number of queued messages.
func (q *InMemoryQueue) Len(_ context.Context) int {
	return len(q.messages)
}

// Close stops accepting messages.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	close(q.messages)
	q.closed = true
	return nil
}

// IsClosed returns true if the queue has been closed.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
