package broadcast

import (
	"context"

	"github.com/okian/touchline/internal/adapters/mq/worker"
	"github.com/okian/touchline/internal/domain/model"
	"github.com/okian/touchline/pkg/logger"
	"github.com/okian/touchline/pkg/metrics"
)

// Dispatcher routes notifications without blocking.
type Dispatcher interface {
	Dispatch(ctx context.Context, m worker.Message) bool
}

// Publisher is the fire-and-forget entry point the core publishes through.
type Publisher struct {
	dispatcher Dispatcher
	log        logger.Logger
}

// NewPublisher creates a publisher over d.
func NewPublisher(d Dispatcher, opts ...PublisherOption) *Publisher {
	p := &Publisher{dispatcher: d}
	for _, opt := range opts {
		opt(p)
	}
	if p.log == nil {
		p.log = logger.Get().Named("publisher")
	}
	return p
}

// Publish hands n to the dispatcher. A full partition drops the
// notification; observers recover through the event log.
func (p *Publisher) Publish(ctx context.Context, n model.Notification) { //nolint:gocritic // hugeParam: passed by value for channel semantics
	if p.dispatcher.Dispatch(ctx, n) {
		metrics.RecordBroadcastPublished()
		return
	}
	metrics.RecordBroadcastDropped()
	p.log.Warn(ctx, "notification dropped",
		logger.String("match_id", n.MatchID),
		logger.String("kind", string(n.Kind)),
		logger.Int64("sequence", n.Sequence))
}
