package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"

	"github.com/clipdeck/clipdeck/internal/domain/shared"
	"github.com/clipdeck/clipdeck/internal/infrastructure/metrics"
	"github.com/clipdeck/clipdeck/pkg/circuitbreaker"
	"github.com/clipdeck/clipdeck/pkg/logger"
	"github.com/clipdeck/clipdeck/pkg/retry"
	"github.com/clipdeck/clipdeck/pkg/tracing"
)

// ══════════════════════════════════════════════════════════════════════════════
// NATS PUBLISHER
// Every domain event goes out as one message on <prefix>.<event type>, with
// the trace context and correlation id in the headers.
// ══════════════════════════════════════════════════════════════════════════════

// MsgPublisher is the part of *nats.Conn the publisher needs.
type MsgPublisher interface {
	PublishMsg(m *nats.Msg) error
}

// NATSPublisherConfig contains configuration for NATSPublisher.
type NATSPublisherConfig struct {
	// SubjectPrefix is prepended to the event type. Default: "clipdeck"
	SubjectPrefix string

	// Timeout bounds one publish including retries. Default: 2s
	Timeout time.Duration

	Logger *logger.Logger
}

// NATSPublisher implements shared.EventPublisher on top of NATS core.
type NATSPublisher struct {
	conn    MsgPublisher
	prefix  string
	timeout time.Duration
	retrier *retry.Retrier
	breaker *circuitbreaker.CircuitBreaker
	logger  *logger.Logger
}

// NewNATSPublisher creates a NATSPublisher.
func NewNATSPublisher(conn MsgPublisher, config NATSPublisherConfig) *NATSPublisher {
	if config.SubjectPrefix == "" {
		config.SubjectPrefix = "clipdeck"
	}
	if config.Timeout <= 0 {
		config.Timeout = 2 * time.Second
	}
	if config.Logger == nil {
		config.Logger = logger.Nop()
	}
	log := config.Logger.With(logger.Component("nats_publisher"))

	return &NATSPublisher{
		conn:    conn,
		prefix:  config.SubjectPrefix,
		timeout: config.Timeout,
		retrier: retry.BrokerRetrier(retry.WithRetryIf(func(err error) bool {
			return !circuitbreaker.IsRejected(err)
		})),
		breaker: circuitbreaker.BrokerBreaker(func(name string, from, to circuitbreaker.State) {
			log.Warn("circuit breaker state changed",
				logger.String("breaker", name),
				logger.String("from", from.String()),
				logger.String("to", to.String()),
			)
		}),
		logger: log,
	}
}

// Subject returns the subject an event type is published on.
func (p *NATSPublisher) Subject(t shared.EventType) string {
	return p.prefix + "." + string(t)
}

// Publish implements shared.EventPublisher.
func (p *NATSPublisher) Publish(event shared.Event) error {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()
	return p.PublishContext(ctx, event)
}

// PublishContext publishes event, linking the message to the span in ctx.
func (p *NATSPublisher) PublishContext(ctx context.Context, event shared.Event) error {
	env, err := shared.NewEventEnvelope(event)
	if err != nil {
		return fmt.Errorf("envelope: %w", err)
	}
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	subject := p.Subject(env.Type)
	ctx, span := tracing.Start(ctx, "nats.publish",
		attribute.String("messaging.system", "nats"),
		attribute.String("messaging.destination", subject),
		attribute.String("clipdeck.event.id", env.ID),
	)
	defer span.End()

	msg := &nats.Msg{Subject: subject, Data: data, Header: nats.Header{}}
	msg.Header.Set("Nats-Msg-Id", env.ID)
	if env.CorrelationID != "" {
		msg.Header.Set("X-Correlation-ID", env.CorrelationID)
	}
	tracing.Inject(ctx, propagation.HeaderCarrier(msg.Header))

	err = p.retrier.Do(ctx, func(ctx context.Context) error {
		return p.breaker.Execute(ctx, func(context.Context) error {
			return p.conn.PublishMsg(msg)
		})
	})
	if err != nil {
		span.RecordError(err)
		metrics.EventPublishFailures.WithLabelValues("nats").Inc()
		return shared.WrapError("messaging", "Publish", shared.ErrUnavailable, "event broker unavailable", err)
	}

	metrics.EventsPublished.WithLabelValues(string(env.Type), "nats").Inc()
	p.logger.Debug("event published",
		logger.String("subject", subject),
		logger.String("event_id", env.ID),
	)
	return nil
}
