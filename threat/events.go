package threat

import (
	"context"
	"fmt"
	"time"

	"iochunt/core"
	"iochunt/metrics"

	"github.com/nats-io/nats.go"
	"github.com/vmihailenco/msgpack/v5"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"
)

// HuntEventType names a hunt lifecycle event
type HuntEventType string

const (
	HuntEventStarted   HuntEventType = "started"
	HuntEventCompleted HuntEventType = "completed"
	HuntEventFailed    HuntEventType = "failed"
)

// HuntEvent is the payload published on hunt state changes
type HuntEvent struct {
	Type           HuntEventType   `msgpack:"type" json:"type"`
	OrgID          string          `msgpack:"org_id" json:"org_id"`
	HuntJobID      string          `msgpack:"hunt_job_id" json:"hunt_job_id"`
	Name           string          `msgpack:"name" json:"name"`
	Status         core.HuntStatus `msgpack:"status" json:"status"`
	TotalEndpoints int             `msgpack:"total_endpoints" json:"total_endpoints"`
	MatchesFound   int             `msgpack:"matches_found" json:"matches_found"`
	Error          string          `msgpack:"error,omitempty" json:"error,omitempty"`
	OccurredAt     time.Time       `msgpack:"occurred_at" json:"occurred_at"`
}

func newHuntEvent(t HuntEventType, job *core.HuntJob) *HuntEvent {
	return &HuntEvent{
		Type:           t,
		OrgID:          job.OrgID,
		HuntJobID:      job.ID,
		Name:           job.Name,
		Status:         job.Status,
		TotalEndpoints: job.TotalEndpoints,
		MatchesFound:   job.MatchesFound,
		Error:          job.Error,
		OccurredAt:     job.UpdatedAt,
	}
}

// EventPublisher announces hunt lifecycle changes
type EventPublisher interface {
	Publish(ctx context.Context, event *HuntEvent) error
}

// NopPublisher drops events
type NopPublisher struct{}

// Publish implements EventPublisher
func (NopPublisher) Publish(ctx context.Context, event *HuntEvent) error { return nil }

var tracePropagator = propagation.TraceContext{}

// NATSPublisher publishes msgpack-encoded hunt events on <prefix>.<type>
type NATSPublisher struct {
	conn   *nats.Conn
	prefix string
	logger *zap.SugaredLogger
}

// NewNATSPublisher connects to NATS
func NewNATSPublisher(url, prefix string, timeout time.Duration, logger *zap.SugaredLogger) (*NATSPublisher, error) {
	conn, err := nats.Connect(url,
		nats.Name("iochunt"),
		nats.Timeout(timeout),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warnw("Disconnected from NATS", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Infow("Reconnected to NATS", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", url, err)
	}

	logger.Infow("NATS publisher initialized", "url", url, "subject_prefix", prefix)
	return &NATSPublisher{conn: conn, prefix: prefix, logger: logger}, nil
}

// Subject returns the subject an event type is published on
func (p *NATSPublisher) Subject(t HuntEventType) string {
	return p.prefix + "." + string(t)
}

// Publish implements EventPublisher. The trace context travels in the message headers.
func (p *NATSPublisher) Publish(ctx context.Context, event *HuntEvent) error {
	data, err := msgpack.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode hunt event: %w", err)
	}

	hdr := nats.Header{}
	tracePropagator.Inject(ctx, propagation.HeaderCarrier(hdr))

	msg := &nats.Msg{Subject: p.Subject(event.Type), Data: data, Header: hdr}
	if err := p.conn.PublishMsg(msg); err != nil {
		return fmt.Errorf("failed to publish hunt event: %w", err)
	}
	return nil
}

// Close drains and closes the connection
func (p *NATSPublisher) Close() error {
	return p.conn.Drain()
}

// DecodeHuntEvent decodes a published event payload
func DecodeHuntEvent(data []byte) (*HuntEvent, error) {
	var event HuntEvent
	if err := msgpack.Unmarshal(data, &event); err != nil {
		return nil, fmt.Errorf("failed to decode hunt event: %w", err)
	}
	return &event, nil
}

// publishEvent never fails the caller; a lost event is logged and counted
func publishEvent(ctx context.Context, pub EventPublisher, logger *zap.SugaredLogger, t HuntEventType, job *core.HuntJob) {
	if pub == nil {
		return
	}
	if err := pub.Publish(ctx, newHuntEvent(t, job)); err != nil {
		metrics.HuntEventPublishFailures.Inc()
		logger.Warnw("Failed to publish hunt event", "hunt_id", job.ID, "event", t, "error", err)
	}
}
