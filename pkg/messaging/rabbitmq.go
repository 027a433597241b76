package messaging

import (
	"errors"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stockwise/stockwise-backend/pkg/config"
	"github.com/stockwise/stockwise-backend/pkg/logger"
)

// ErrClosed is returned when the broker connection was closed by Close
var ErrClosed = errors.New("rabbitmq connection closed")

// RabbitMQ owns the broker connection and the single channel shared by the
// service's publisher and consumer.
type RabbitMQ struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	logger  *logger.Logger

	mu       sync.RWMutex
	closed   bool
	topology *Topology
}

// New dials the broker and opens a channel with the configured prefetch
func New(cfg *config.RabbitMQConfig, log *logger.Logger) (*RabbitMQ, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if err := ch.Qos(cfg.PrefetchCount, 0, false); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to set QoS: %w", err)
	}

	log = log.WithComponent("rabbitmq")
	log.Info().Int("prefetch", cfg.PrefetchCount).Msg("connected to RabbitMQ")

	return &RabbitMQ{conn: conn, channel: ch, logger: log}, nil
}

// Declare creates the exchanges, queues and bindings of t. Publishers and
// consumers assume it has run.
func (r *RabbitMQ) Declare(t Topology) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}

	if err := t.declare(r.channel); err != nil {
		return err
	}
	r.topology = &t

	r.logger.Info().
		Strs("exchanges", t.Exchanges).
		Int("queues", len(t.Queues)).
		Str("dlq", t.DeadLetterQueue).
		Msg("topology declared")
	return nil
}

// Channel returns the shared channel
func (r *RabbitMQ) Channel() *amqp.Channel {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.channel
}

// Close closes the channel and the connection
func (r *RabbitMQ) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true

	if err := r.channel.Close(); err != nil {
		r.logger.Warn().Err(err).Msg("failed to close channel")
	}
	if err := r.conn.Close(); err != nil {
		return fmt.Errorf("failed to close connection: %w", err)
	}

	r.logger.Info().Msg("RabbitMQ connection closed")
	return nil
}

// Health reports the connection and channel state and whether the forecast
// topology has been declared on it.
func (r *RabbitMQ) Health() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	status := map[string]string{"status": "up"}
	switch {
	case r.closed || r.conn.IsClosed():
		status["status"] = "down"
		status["error"] = "connection closed"
	case r.channel.IsClosed():
		status["status"] = "down"
		status["error"] = "channel closed"
	case r.topology == nil:
		status["status"] = "degraded"
		status["error"] = "topology not declared"
	}
	return status
}
