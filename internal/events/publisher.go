package events

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	noticesPublished = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dtro_change_notices_published_total",
		Help: "Change notices delivered to the broker",
	})
	noticesDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dtro_change_notices_dropped_total",
		Help: "Change notices dropped because the publish buffer was full",
	})
	noticesFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dtro_change_notices_failed_total",
		Help: "Change notices that failed to deliver",
	})
)

const defaultBufferSize = 1024

// Publisher decouples request handling from broker delivery with a bounded
// buffer. The change feed is best-effort: a full buffer drops the notice
// rather than stalling the write path, and delivery failures are logged and
// counted, not surfaced to the caller.
type Publisher struct {
	producer Producer
	logger   *slog.Logger
	inbox    chan ChangeNotice
}

// PublisherOption configures a Publisher.
type PublisherOption func(*Publisher)

// WithBufferSize overrides the default publish buffer capacity.
func WithBufferSize(size int) PublisherOption {
	return func(p *Publisher) {
		if size > 0 {
			p.inbox = make(chan ChangeNotice, size)
		}
	}
}

// NewPublisher constructs an asynchronous publisher over the producer.
func NewPublisher(producer Producer, logger *slog.Logger, opts ...PublisherOption) (*Publisher, error) {
	if producer == nil {
		return nil, fmt.Errorf("producer is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	p := &Publisher{
		producer: producer,
		logger:   logger,
		inbox:    make(chan ChangeNotice, defaultBufferSize),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p, nil
}

// Enqueue hands a notice to the delivery worker without blocking.
func (p *Publisher) Enqueue(notice ChangeNotice) {
	select {
	case p.inbox <- notice:
	default:
		noticesDropped.Inc()
		p.logger.Warn("change notice dropped, publish buffer full",
			"record_id", notice.RecordID, "event_type", notice.EventType)
	}
}

// Run delivers buffered notices until ctx is cancelled.
func (p *Publisher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case notice := <-p.inbox:
			if err := p.producer.Produce(ctx, notice); err != nil {
				noticesFailed.Inc()
				p.logger.Error("change notice delivery failed",
					"record_id", notice.RecordID, "event_type", notice.EventType, "error", err)
				continue
			}
			noticesPublished.Inc()
		}
	}
}
