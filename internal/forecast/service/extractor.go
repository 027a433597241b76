package service

import (
	"strings"
	"time"

	"github.com/stockwise/stockwise-backend/internal/forecast/domain"
)

// invoiceDateLayouts are tried in order. Slash dates are month-first.
var invoiceDateLayouts = []string{
	"2006-01-02",
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999-07",
	"2006-01-02 15:04:05-07",
	"2006-01-02 15:04:05",
	"1/2/2006",
}

// ParseInvoiceDate parses the date formats found in invoice records. Values
// without a zone offset are read in loc, so a bare date is local midnight.
func ParseInvoiceDate(raw string, loc *time.Location) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	if loc == nil {
		loc = time.UTC
	}
	for _, layout := range invoiceDateLayouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// SalesHistoryExtractor turns paid invoices into sales samples
type SalesHistoryExtractor struct {
	lookbackDays int
}

// NewSalesHistoryExtractor creates an extractor. lookbackDays <= 0 keeps the
// full history.
func NewSalesHistoryExtractor(lookbackDays int) *SalesHistoryExtractor {
	return &SalesHistoryExtractor{lookbackDays: lookbackDays}
}

// LookbackDays returns the configured window
func (e *SalesHistoryExtractor) LookbackDays() int {
	return e.lookbackDays
}

// Extract emits one sample per usable line item of every paid invoice
// dated inside the window ending at now.
func (e *SalesHistoryExtractor) Extract(invoices []domain.Invoice, now time.Time) []domain.SalesSample {
	var cutoff time.Time
	if e.lookbackDays > 0 {
		cutoff = now.AddDate(0, 0, -e.lookbackDays)
	}

	samples := make([]domain.SalesSample, 0, len(invoices))
	for _, inv := range invoices {
		if !strings.EqualFold(strings.TrimSpace(inv.Status), domain.InvoicePaid) {
			continue
		}

		ts, ok := ParseInvoiceDate(inv.InvoiceDate, now.Location())
		if !ok || ts.After(now) {
			continue
		}
		if !cutoff.IsZero() && ts.Before(cutoff) {
			continue
		}

		for _, item := range inv.Items {
			if item.ProductID == "" || item.Quantity <= 0 {
				continue
			}
			samples = append(samples, domain.SalesSample{
				ProductID: item.ProductID,
				Quantity:  item.Quantity,
				UnitPrice: item.UnitPrice,
				Timestamp: ts,
			})
		}
	}

	return samples
}

// GroupByProduct indexes samples by product id
func GroupByProduct(samples []domain.SalesSample) map[string][]domain.SalesSample {
	grouped := make(map[string][]domain.SalesSample)
	for _, s := range samples {
		grouped[s.ProductID] = append(grouped[s.ProductID], s)
	}
	return grouped
}
