// Package domain holds the forecast engine's data model. Products and
// invoices are owned by the CRUD backend and only read here; everything else
// is derived per cycle except Notification, which is persisted.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Invoice statuses
const (
	InvoicePaid    = "Paid"
	InvoicePending = "Pending"
	InvoiceOverdue = "Overdue"
)

// Product is an inventory record as exposed by the CRUD backend
type Product struct {
	ID               string          `db:"id" json:"id"`
	Name             string          `db:"name" json:"name"`
	SKU              string          `db:"sku" json:"sku"`
	Category         string          `db:"category" json:"category"`
	Stock            int             `db:"stock" json:"stock"`
	ReorderThreshold int             `db:"reorder_threshold" json:"reorderThreshold"`
	Price            decimal.Decimal `db:"price" json:"price"`
}

// Invoice is a billing document. InvoiceDate is kept raw because the
// backend stores both ISO and slash-formatted dates.
type Invoice struct {
	ID          string        `db:"id" json:"id"`
	Status      string        `db:"status" json:"status"`
	InvoiceDate string        `db:"invoice_date" json:"invoiceDate"`
	Items       []InvoiceItem `db:"-" json:"items"`
}

// InvoiceItem is one line of an invoice
type InvoiceItem struct {
	InvoiceID string          `db:"invoice_id" json:"-"`
	ProductID string          `db:"product_id" json:"productId"`
	Quantity  int             `db:"quantity" json:"quantity"`
	UnitPrice decimal.Decimal `db:"unit_price" json:"unitPrice"`
}

// SalesSample is one sold quantity of a product at a point in time
type SalesSample struct {
	ProductID string          `json:"productId"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Timestamp time.Time       `json:"timestamp"`
}

// UsageProfile is the estimated consumption of one product
type UsageProfile struct {
	ProductID           string  `json:"productId"`
	DailyUsageRate      float64 `json:"dailyUsageRate"`
	WindowDays          int     `json:"windowDays"`
	SampleTotalQuantity int     `json:"sampleTotalQuantity"`
	// FromHistory is false when the heuristic baseline was used
	FromHistory bool `json:"fromHistory"`
}

// Projection is the depletion estimate for one product
type Projection struct {
	DaysRemaining          int       `json:"daysRemaining"`
	ProjectedDepletionDate time.Time `json:"projectedDepletionDate"`
}

// UnknownDaysRemaining marks an indeterminate projection
const UnknownDaysRemaining = 999

// Known reports whether the projection is determinate
func (p Projection) Known() bool {
	return p.DaysRemaining != UnknownDaysRemaining
}

// UsageRow is one line of the usage table of a profile
type UsageRow struct {
	ProductID              string    `json:"productId"`
	Name                   string    `json:"name"`
	SKU                    string    `json:"sku"`
	Stock                  int       `json:"stock"`
	Threshold              int       `json:"threshold"`
	DailyUsageRate         float64   `json:"dailyUsage"`
	WindowDays             int       `json:"windowDays"`
	FromHistory            bool      `json:"fromHistory"`
	DaysRemaining          int       `json:"daysRemaining"`
	ProjectedDepletionDate time.Time `json:"projectedDepletionDate"`
	Severity               Severity  `json:"status"`
}
