package events

import (
	"context"
	"fmt"

	"github.com/stockwise/stockwise-backend/internal/forecast/domain"
	"github.com/stockwise/stockwise-backend/pkg/logger"
	"github.com/stockwise/stockwise-backend/pkg/messaging"
)

// ServiceName is the event source of this service
const ServiceName = "forecast-service"

// EventPublisher is the subset of messaging.Publisher used here
type EventPublisher interface {
	Publish(ctx context.Context, eventType string, data interface{}) error
}

// ForecastEventPublisher publishes forecast-related events
type ForecastEventPublisher struct {
	publisher EventPublisher
	logger    *logger.Logger
}

// NewForecastEventPublisher creates a publisher on the forecast exchange
func NewForecastEventPublisher(rmq *messaging.RabbitMQ, log *logger.Logger) *ForecastEventPublisher {
	publisher := messaging.NewPublisher(rmq, messaging.ExchangeForecastEvents, ServiceName, log)
	return NewForecastEventPublisherWith(publisher, log)
}

// NewForecastEventPublisherWith wraps an existing publisher
func NewForecastEventPublisherWith(publisher EventPublisher, log *logger.Logger) *ForecastEventPublisher {
	return &ForecastEventPublisher{
		publisher: publisher,
		logger:    log.WithComponent("forecast_events"),
	}
}

// PublishNotificationRaised publishes a notification raised event
func (p *ForecastEventPublisher) PublishNotificationRaised(ctx context.Context, n domain.Notification) error {
	if p == nil {
		return nil
	}

	data := messaging.NotificationRaisedEvent{
		NotificationID: n.ID,
		ProductID:      n.ProductID,
		Category:       n.Category,
		Severity:       string(n.Severity),
		Title:          n.Title,
		Message:        n.Message,
		Timestamp:      n.Timestamp,
	}

	if err := p.publisher.Publish(ctx, messaging.EventNotificationRaised, data); err != nil {
		return fmt.Errorf("publish notification %s: %w", n.ID, err)
	}

	p.logger.Debug().
		Str("notification_id", n.ID).
		Str("product_id", n.ProductID).
		Msg("notification raised event published")
	return nil
}
