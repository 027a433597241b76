package messaging

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// DeadLetterExchange receives messages rejected by any service queue
const DeadLetterExchange = "dlx.events"

// Binding routes messages from an exchange into a queue
type Binding struct {
	Exchange   string
	RoutingKey string
}

// Queue is a durable queue dead-lettered to DeadLetterExchange
type Queue struct {
	Name     string
	Bindings []Binding
}

// Topology is every exchange, queue and binding a service relies on
type Topology struct {
	Exchanges       []string
	DeadLetterQueue string
	Queues          []Queue
}

// RefreshQueue is the queue a service reads refresh-worthy events from
func RefreshQueue(service string) string {
	return service + ".refresh-events"
}

// ForecastTopology declares the forecast exchange for outgoing notifications
// and the refresh queue fed by billing and inventory changes.
func ForecastTopology(service string) Topology {
	return Topology{
		Exchanges: []string{
			ExchangeForecastEvents,
			ExchangeBillingEvents,
			ExchangeInventoryEvents,
		},
		DeadLetterQueue: "dlq." + service,
		Queues: []Queue{{
			Name: RefreshQueue(service),
			Bindings: []Binding{
				{Exchange: ExchangeBillingEvents, RoutingKey: "invoice.#"},
				{Exchange: ExchangeInventoryEvents, RoutingKey: EventStockAdjusted},
			},
		}},
	}
}

// topologyChannel is the part of *amqp.Channel that declares topology
type topologyChannel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error
}

func (t Topology) declare(ch topologyChannel) error {
	exchanges := append([]string{DeadLetterExchange}, t.Exchanges...)
	for _, name := range exchanges {
		if err := ch.ExchangeDeclare(name, "topic", true, false, false, false, nil); err != nil {
			return fmt.Errorf("failed to declare exchange %s: %w", name, err)
		}
	}

	if t.DeadLetterQueue != "" {
		if _, err := ch.QueueDeclare(t.DeadLetterQueue, true, false, false, false, nil); err != nil {
			return fmt.Errorf("failed to declare DLQ %s: %w", t.DeadLetterQueue, err)
		}
		if err := ch.QueueBind(t.DeadLetterQueue, "#", DeadLetterExchange, false, nil); err != nil {
			return fmt.Errorf("failed to bind DLQ %s: %w", t.DeadLetterQueue, err)
		}
	}

	for _, q := range t.Queues {
		args := amqp.Table{"x-dead-letter-exchange": DeadLetterExchange}
		if _, err := ch.QueueDeclare(q.Name, true, false, false, false, args); err != nil {
			return fmt.Errorf("failed to declare queue %s: %w", q.Name, err)
		}
		for _, b := range q.Bindings {
			if err := ch.QueueBind(q.Name, b.RoutingKey, b.Exchange, false, nil); err != nil {
				return fmt.Errorf("failed to bind queue %s to %s/%s: %w", q.Name, b.Exchange, b.RoutingKey, err)
			}
		}
	}
	return nil
}
