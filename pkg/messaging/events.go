package messaging

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types
const (
	// Forecast events
	EventNotificationRaised = "forecast.notification.raised"

	// Billing events
	EventInvoicePaid    = "invoice.paid"
	EventInvoiceUpdated = "invoice.updated"

	// Inventory events
	EventStockAdjusted = "inventory.stock.adjusted"
)

// Exchange names
const (
	ExchangeForecastEvents  = "forecast.events"
	ExchangeBillingEvents   = "billing.events"
	ExchangeInventoryEvents = "inventory.events"
)

// Event is the base event structure
type Event struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	Source        string          `json:"source"`
	Timestamp     time.Time       `json:"timestamp"`
	CorrelationID string          `json:"correlation_id"`
	Data          json.RawMessage `json:"data"`
}

// NewEvent creates a new event with the given type and data
func NewEvent(eventType, source, correlationID string, data interface{}) (*Event, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:            GenerateEventID(),
		Type:          eventType,
		Source:        source,
		Timestamp:     time.Now().UTC(),
		CorrelationID: correlationID,
		Data:          dataBytes,
	}, nil
}

// UnmarshalData unmarshals the event data into the provided struct
func (e *Event) UnmarshalData(v interface{}) error {
	return json.Unmarshal(e.Data, v)
}

// Forecast Events

// NotificationRaisedEvent is published when a notification is created or
// its message changed during a forecast cycle
type NotificationRaisedEvent struct {
	NotificationID string `json:"notification_id"`
	ProductID      string `json:"product_id,omitempty"`
	Category       string `json:"category,omitempty"`
	Severity       string `json:"severity,omitempty"`
	Title          string `json:"title"`
	Message        string `json:"message"`
	Timestamp      int64  `json:"timestamp"`
}

// Billing Events

// InvoiceEvent is published by billing when an invoice is paid or changed
type InvoiceEvent struct {
	InvoiceID string `json:"invoice_id"`
	Status    string `json:"status"`
}

// Inventory Events

// StockAdjustedEvent is published when stock is adjusted
type StockAdjustedEvent struct {
	ProductID   string `json:"product_id"`
	Adjustment  int    `json:"adjustment"`
	NewQuantity int    `json:"new_quantity"`
	Reason      string `json:"reason"`
}

// GenerateEventID generates a unique event ID
func GenerateEventID() string {
	return uuid.New().String()
}
