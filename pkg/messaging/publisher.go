package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stockwise/stockwise-backend/pkg/logger"
)

// publishChannel is the part of *amqp.Channel used to publish
type publishChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// Publisher wraps events in the common envelope and publishes them to one
// exchange, using the event type as routing key.
type Publisher struct {
	channel  publishChannel
	exchange string
	source   string
	logger   *logger.Logger
}

// NewPublisher creates a publisher on exchange. The exchange is expected to
// be part of the declared topology.
func NewPublisher(rmq *RabbitMQ, exchange, source string, log *logger.Logger) *Publisher {
	return newPublisher(rmq.Channel(), exchange, source, log)
}

func newPublisher(ch publishChannel, exchange, source string, log *logger.Logger) *Publisher {
	return &Publisher{
		channel:  ch,
		exchange: exchange,
		source:   source,
		logger:   log.WithComponent("publisher"),
	}
}

// Publish sends data as an event of eventType. Without a correlation id in
// ctx the event starts its own chain and its id becomes the correlation id.
func (p *Publisher) Publish(ctx context.Context, eventType string, data interface{}) error {
	event, err := NewEvent(eventType, p.source, getCorrelationID(ctx), data)
	if err != nil {
		return fmt.Errorf("failed to create event: %w", err)
	}
	if event.CorrelationID == "" {
		event.CorrelationID = event.ID
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	err = p.channel.PublishWithContext(ctx, p.exchange, eventType, false, false, amqp.Publishing{
		ContentType:   "application/json",
		DeliveryMode:  amqp.Persistent,
		MessageId:     event.ID,
		CorrelationId: event.CorrelationID,
		Type:          eventType,
		AppId:         p.source,
		Timestamp:     event.Timestamp,
		Body:          body,
	})
	if err != nil {
		return fmt.Errorf("failed to publish %s to %s: %w", eventType, p.exchange, err)
	}

	p.logger.Debug().
		Str("exchange", p.exchange).
		Str("event_type", eventType).
		Str("event_id", event.ID).
		Str("correlation_id", event.CorrelationID).
		Msg("event published")
	return nil
}

type contextKey string

const correlationIDKey contextKey = "correlation_id"

// WithCorrelationID adds a correlation ID to the context
func WithCorrelationID(ctx context.Context, correlationID string) context.Context {
	return context.WithValue(ctx, correlationIDKey, correlationID)
}

func getCorrelationID(ctx context.Context) string {
	if id, ok := ctx.Value(correlationIDKey).(string); ok {
		return id
	}
	return ""
}
