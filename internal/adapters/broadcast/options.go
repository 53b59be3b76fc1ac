package broadcast

import "github.com/okian/touchline/pkg/logger"

// HubOption applies a configuration option to the Hub.
type HubOption func(*Hub)

// WithSubscriberBuffer sets how many notifications an observer may fall
// behind before it is dropped.
func WithSubscriberBuffer(n int) HubOption {
	return func(h *Hub) {
		if n > 0 {
			h.buffer = n
		}
	}
}

// WithHubLogger sets the hub logger.
func WithHubLogger(l logger.Logger) HubOption {
	return func(h *Hub) {
		if l != nil {
			h.log = l
		}
	}
}

// PublisherOption applies a configuration option to the Publisher.
type PublisherOption func(*Publisher)

// WithPublisherLogger sets the publisher logger.
func WithPublisherLogger(l logger.Logger) PublisherOption {
	return func(p *Publisher) {
		if l != nil {
			p.log = l
		}
	}
}
