package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stockwise/stockwise-backend/pkg/logger"
)

type recordingAcker struct {
	acks    int
	nacks   int
	rejects int
	requeue bool
}

func (a *recordingAcker) Ack(uint64, bool) error { a.acks++; return nil }

func (a *recordingAcker) Nack(_ uint64, _ bool, requeue bool) error {
	a.nacks++
	a.requeue = requeue
	return nil
}

func (a *recordingAcker) Reject(_ uint64, requeue bool) error {
	a.rejects++
	a.requeue = requeue
	return nil
}

func newTestConsumer() *Consumer {
	return newConsumer(nil, RefreshQueue("forecast-service"), 3, logger.Nop())
}

func delivery(t *testing.T, acker amqp.Acknowledger, eventType string, data interface{}) amqp.Delivery {
	t.Helper()
	event, err := NewEvent(eventType, "billing-service", "corr-1", data)
	require.NoError(t, err)
	body, err := json.Marshal(event)
	require.NoError(t, err)
	return amqp.Delivery{Acknowledger: acker, Body: body}
}

func TestConsumer_DispatchesToHandler(t *testing.T) {
	c := newTestConsumer()
	var got InvoiceEvent
	var correlation string
	c.RegisterHandler(EventInvoicePaid, func(ctx context.Context, event *Event) error {
		correlation = getCorrelationID(ctx)
		return event.UnmarshalData(&got)
	})

	acker := &recordingAcker{}
	c.handleMessage(context.Background(), delivery(t, acker, EventInvoicePaid, InvoiceEvent{InvoiceID: "inv-1", Status: "Paid"}))

	assert.Equal(t, 1, acker.acks)
	assert.Equal(t, "inv-1", got.InvoiceID)
	assert.Equal(t, "corr-1", correlation)
}

func TestConsumer_UnknownEventIsAcked(t *testing.T) {
	c := newTestConsumer()
	acker := &recordingAcker{}

	c.handleMessage(context.Background(), delivery(t, acker, "invoice.voided", InvoiceEvent{}))

	assert.Equal(t, 1, acker.acks)
}

func TestConsumer_MalformedMessageRejected(t *testing.T) {
	c := newTestConsumer()
	acker := &recordingAcker{}

	c.handleMessage(context.Background(), amqp.Delivery{Acknowledger: acker, Body: []byte("{not json")})

	assert.Equal(t, 1, acker.rejects)
	assert.False(t, acker.requeue)
}

func TestConsumer_HandlerFailure(t *testing.T) {
	c := newTestConsumer()
	c.RegisterHandler(EventStockAdjusted, func(context.Context, *Event) error {
		return errors.New("refresh failed")
	})

	t.Run("requeued", func(t *testing.T) {
		acker := &recordingAcker{}
		c.handleMessage(context.Background(), delivery(t, acker, EventStockAdjusted, StockAdjustedEvent{ProductID: "p1"}))

		assert.Equal(t, 1, acker.nacks)
		assert.True(t, acker.requeue)
	})

	t.Run("dead lettered after broker deaths", func(t *testing.T) {
		acker := &recordingAcker{}
		msg := delivery(t, acker, EventStockAdjusted, StockAdjustedEvent{ProductID: "p1"})
		msg.Headers = amqp.Table{"x-death": []interface{}{amqp.Table{"count": int64(3)}}}

		c.handleMessage(context.Background(), msg)

		assert.Equal(t, 1, acker.rejects)
		assert.False(t, acker.requeue)
	})
}

func TestConsumer_RetriesAreBounded(t *testing.T) {
	c := newTestConsumer()
	calls := 0
	c.RegisterHandler(EventInvoicePaid, func(context.Context, *Event) error {
		calls++
		return errors.New("scheduler busy")
	})

	event, err := NewEvent(EventInvoicePaid, "billing-service", "", InvoiceEvent{InvoiceID: "inv-1"})
	require.NoError(t, err)
	body, err := json.Marshal(event)
	require.NoError(t, err)

	acker := &recordingAcker{}
	for i := 0; i < 3; i++ {
		c.handleMessage(context.Background(), amqp.Delivery{Acknowledger: acker, Body: body, Redelivered: i > 0})
	}

	assert.Equal(t, 3, calls)
	assert.Equal(t, 2, acker.nacks)
	assert.Equal(t, 1, acker.rejects)
	assert.False(t, acker.requeue)
	assert.Empty(t, c.attempts)
}

func TestHandle_TypedPayload(t *testing.T) {
	c := newTestConsumer()
	var got StockAdjustedEvent
	var gotType string
	Handle(c, EventStockAdjusted, func(_ context.Context, event *Event, data StockAdjustedEvent) error {
		gotType = event.Type
		got = data
		return nil
	})

	t.Run("decoded", func(t *testing.T) {
		acker := &recordingAcker{}
		c.handleMessage(context.Background(), delivery(t, acker, EventStockAdjusted, StockAdjustedEvent{ProductID: "p1", NewQuantity: 7}))

		assert.Equal(t, 1, acker.acks)
		assert.Equal(t, EventStockAdjusted, gotType)
		assert.Equal(t, "p1", got.ProductID)
		assert.Equal(t, 7, got.NewQuantity)
	})

	t.Run("undecodable payload is dead lettered at once", func(t *testing.T) {
		acker := &recordingAcker{}
		c.handleMessage(context.Background(), delivery(t, acker, EventStockAdjusted, "not an object"))

		assert.Equal(t, 1, acker.rejects)
		assert.Zero(t, acker.nacks)
		assert.False(t, acker.requeue)
	})
}

type fakeDeliveries struct {
	queue string
	msgs  chan amqp.Delivery
}

func (f *fakeDeliveries) ConsumeWithContext(_ context.Context, queue, _ string, _, _, _, _ bool, _ amqp.Table) (<-chan amqp.Delivery, error) {
	f.queue = queue
	return f.msgs, nil
}

func TestConsumer_Start(t *testing.T) {
	ch := &fakeDeliveries{msgs: make(chan amqp.Delivery, 1)}
	c := newConsumer(ch, RefreshQueue("forecast-service"), 0, logger.Nop())
	assert.Equal(t, DefaultMaxRetries, c.maxRetries)

	handled := make(chan string, 1)
	Handle(c, EventInvoicePaid, func(_ context.Context, _ *Event, data InvoiceEvent) error {
		handled <- data.InvoiceID
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, c.Start(ctx))
	assert.Equal(t, "forecast-service.refresh-events", ch.queue)

	ch.msgs <- delivery(t, &recordingAcker{}, EventInvoicePaid, InvoiceEvent{InvoiceID: "inv-9"})
	select {
	case id := <-handled:
		assert.Equal(t, "inv-9", id)
	case <-time.After(2 * time.Second):
		t.Fatal("delivery was not handled")
	}
}

func TestGenerateEventID(t *testing.T) {
	assert.NotEqual(t, GenerateEventID(), GenerateEventID())
}
