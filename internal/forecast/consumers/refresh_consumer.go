package consumers

import (
	"context"
	"errors"

	"github.com/stockwise/stockwise-backend/internal/forecast/service"
	"github.com/stockwise/stockwise-backend/pkg/logger"
	"github.com/stockwise/stockwise-backend/pkg/messaging"
)

// Refresher starts a forecast cycle out of schedule
type Refresher interface {
	Trigger() error
}

// RefreshEventConsumer refreshes forecasts when invoices or stock change
type RefreshEventConsumer struct {
	consumer  *messaging.Consumer
	refresher Refresher
	logger    *logger.Logger
}

// NewRefreshEventConsumer reads the service's refresh queue, which the
// forecast topology binds to billing and inventory events.
func NewRefreshEventConsumer(rmq *messaging.RabbitMQ, service string, maxRetries int, refresher Refresher, log *logger.Logger) *RefreshEventConsumer {
	c := newRefreshEventConsumer(refresher, log)
	c.consumer = messaging.NewConsumer(rmq, messaging.RefreshQueue(service), maxRetries, log)
	c.register(c.consumer)
	return c
}

func newRefreshEventConsumer(refresher Refresher, log *logger.Logger) *RefreshEventConsumer {
	return &RefreshEventConsumer{
		refresher: refresher,
		logger:    log.WithComponent("refresh_consumer"),
	}
}

func (c *RefreshEventConsumer) register(consumer *messaging.Consumer) {
	messaging.Handle(consumer, messaging.EventInvoicePaid, c.handleInvoiceEvent)
	messaging.Handle(consumer, messaging.EventInvoiceUpdated, c.handleInvoiceEvent)
	messaging.Handle(consumer, messaging.EventStockAdjusted, c.handleStockAdjusted)
}

// Start starts consuming messages
func (c *RefreshEventConsumer) Start(ctx context.Context) error {
	return c.consumer.Start(ctx)
}

func (c *RefreshEventConsumer) handleInvoiceEvent(_ context.Context, event *messaging.Event, data messaging.InvoiceEvent) error {
	c.logger.Info().
		Str("event_type", event.Type).
		Str("invoice_id", data.InvoiceID).
		Str("status", data.Status).
		Msg("received invoice event")

	return c.refresh()
}

func (c *RefreshEventConsumer) handleStockAdjusted(_ context.Context, _ *messaging.Event, data messaging.StockAdjustedEvent) error {
	c.logger.Info().
		Str("product_id", data.ProductID).
		Int("new_quantity", data.NewQuantity).
		Msg("received stock adjusted event")

	return c.refresh()
}

// refresh never fails the delivery once the scheduler is gone: there is
// nothing left to refresh during shutdown.
func (c *RefreshEventConsumer) refresh() error {
	err := c.refresher.Trigger()
	if errors.Is(err, service.ErrSchedulerStopped) {
		c.logger.Warn().Msg("scheduler stopped, ignoring refresh")
		return nil
	}
	return err
}
