package testutil

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stockwise/stockwise-backend/internal/forecast/domain"
)

// FixtureFactory builds products and invoices with unique identifiers
type FixtureFactory struct {
	counter atomic.Int64
}

// NewFixtureFactory creates a new fixture factory
func NewFixtureFactory() *FixtureFactory {
	return &FixtureFactory{}
}

func (f *FixtureFactory) next() int64 {
	return f.counter.Add(1)
}

// Product creates a product with the given stock and reorder threshold
func (f *FixtureFactory) Product(stock, threshold int) domain.Product {
	n := f.next()
	return domain.Product{
		ID:               fmt.Sprintf("prod-%03d", n),
		Name:             fmt.Sprintf("Product %d", n),
		SKU:              fmt.Sprintf("SKU-%03d", n),
		Category:         "General",
		Stock:            stock,
		ReorderThreshold: threshold,
		Price:            decimal.NewFromInt(10),
	}
}

// Item creates an invoice line for product at its list price
func (f *FixtureFactory) Item(product domain.Product, quantity int) domain.InvoiceItem {
	return domain.InvoiceItem{
		ProductID: product.ID,
		Quantity:  quantity,
		UnitPrice: product.Price,
	}
}

// Invoice creates an invoice with an ISO date
func (f *FixtureFactory) Invoice(status string, date time.Time, items ...domain.InvoiceItem) domain.Invoice {
	id := fmt.Sprintf("inv-%03d", f.next())
	for i := range items {
		items[i].InvoiceID = id
	}
	return domain.Invoice{
		ID:          id,
		Status:      status,
		InvoiceDate: date.Format("2006-01-02"),
		Items:       items,
	}
}

// PaidInvoice creates a paid invoice dated daysAgo days before now
func (f *FixtureFactory) PaidInvoice(now time.Time, daysAgo int, items ...domain.InvoiceItem) domain.Invoice {
	return f.Invoice(domain.InvoicePaid, now.AddDate(0, 0, -daysAgo), items...)
}

// FixedNow is a stable reference time for tests
func FixedNow() time.Time {
	return time.Date(2024, time.June, 15, 12, 0, 0, 0, time.UTC)
}
