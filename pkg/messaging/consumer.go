package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stockwise/stockwise-backend/pkg/logger"
)

// DefaultMaxRetries bounds deliveries of a failing event before it is
// dead-lettered
const DefaultMaxRetries = 3

// ErrMalformedEvent marks a payload that will never be processed, so its
// message is dead-lettered without retries
var ErrMalformedEvent = errors.New("malformed event")

// MessageHandler handles one decoded event envelope
type MessageHandler func(ctx context.Context, event *Event) error

// Handle registers fn for eventType with the payload decoded into T
func Handle[T any](c *Consumer, eventType string, fn func(ctx context.Context, event *Event, data T) error) {
	c.RegisterHandler(eventType, func(ctx context.Context, event *Event) error {
		var data T
		if err := event.UnmarshalData(&data); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrMalformedEvent, eventType, err)
		}
		return fn(ctx, event, data)
	})
}

// deliveryChannel is the part of *amqp.Channel used to consume
type deliveryChannel interface {
	ConsumeWithContext(ctx context.Context, queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
}

// Consumer reads one queue of the declared topology and dispatches events by
// type. A failing event is requeued until it has been attempted maxRetries
// times and is then dead-lettered.
type Consumer struct {
	channel    deliveryChannel
	queueName  string
	maxRetries int
	handlers   map[string]MessageHandler
	logger     *logger.Logger

	mu       sync.Mutex
	attempts map[string]int
}

// NewConsumer creates a consumer for queueName. maxRetries <= 0 uses
// DefaultMaxRetries.
func NewConsumer(rmq *RabbitMQ, queueName string, maxRetries int, log *logger.Logger) *Consumer {
	return newConsumer(rmq.Channel(), queueName, maxRetries, log)
}

func newConsumer(ch deliveryChannel, queueName string, maxRetries int, log *logger.Logger) *Consumer {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	return &Consumer{
		channel:    ch,
		queueName:  queueName,
		maxRetries: maxRetries,
		handlers:   make(map[string]MessageHandler),
		attempts:   make(map[string]int),
		logger:     &logger.Logger{Logger: log.WithComponent("consumer").With().Str("queue", queueName).Logger()},
	}
}

// RegisterHandler registers a handler for a specific event type
func (c *Consumer) RegisterHandler(eventType string, handler MessageHandler) {
	c.handlers[eventType] = handler
}

// Start consumes until ctx is cancelled or the channel closes
func (c *Consumer) Start(ctx context.Context) error {
	msgs, err := c.channel.ConsumeWithContext(ctx, c.queueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to consume %s: %w", c.queueName, err)
	}

	c.logger.Info().Int("handlers", len(c.handlers)).Msg("consumer started")

	go func() {
		for {
			select {
			case <-ctx.Done():
				c.logger.Info().Msg("consumer stopped")
				return
			case msg, ok := <-msgs:
				if !ok {
					c.logger.Warn().Msg("delivery channel closed")
					return
				}
				c.handleMessage(ctx, msg)
			}
		}
	}()
	return nil
}

func (c *Consumer) handleMessage(ctx context.Context, msg amqp.Delivery) {
	var event Event
	if err := json.Unmarshal(msg.Body, &event); err != nil {
		c.logger.Error().Err(err).Str("message_id", msg.MessageId).Msg("failed to unmarshal event")
		msg.Reject(false)
		return
	}

	handler, ok := c.handlers[event.Type]
	if !ok {
		c.logger.Debug().Str("event_type", event.Type).Msg("no handler registered for event type")
		msg.Ack(false)
		return
	}

	ctx = WithCorrelationID(ctx, event.CorrelationID)
	log := c.logger.WithCorrelationID(event.CorrelationID)
	log.Debug().
		Str("event_type", event.Type).
		Str("event_id", event.ID).
		Msg("processing event")

	err := handler(ctx, &event)
	if err == nil {
		c.forget(event.ID)
		msg.Ack(false)
		return
	}

	log = log.WithError(err)
	if errors.Is(err, ErrMalformedEvent) {
		c.forget(event.ID)
		log.Warn().Str("event_id", event.ID).Msg("malformed payload, sending to DLQ")
		msg.Reject(false)
		return
	}

	attempt := c.attempt(event.ID, msg)
	if attempt >= c.maxRetries {
		c.forget(event.ID)
		log.Warn().
			Str("event_id", event.ID).
			Int("attempts", attempt).
			Msg("max retries exceeded, sending to DLQ")
		msg.Reject(false)
		return
	}

	log.Error().
		Str("event_type", event.Type).
		Str("event_id", event.ID).
		Int("attempt", attempt).
		Msg("failed to process event, requeueing")
	msg.Nack(false, true)
}

// attempt records a failed delivery of eventID and returns how many attempts
// have failed so far. Deaths recorded by the broker count too.
func (c *Consumer) attempt(eventID string, msg amqp.Delivery) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.attempts[eventID]++
	n := c.attempts[eventID]
	if deaths := deathCount(msg); deaths > n {
		n = deaths
	}
	return n
}

func (c *Consumer) forget(eventID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.attempts, eventID)
}

func deathCount(msg amqp.Delivery) int {
	deaths, ok := msg.Headers["x-death"].([]interface{})
	if !ok {
		return 0
	}
	for _, death := range deaths {
		if d, ok := death.(amqp.Table); ok {
			if count, ok := d["count"].(int64); ok {
				return int(count)
			}
		}
	}
	return 0
}
