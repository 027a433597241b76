package repository

import (
	"context"
	"fmt"

	"github.com/stockwise/stockwise-backend/internal/forecast/domain"
	"github.com/stockwise/stockwise-backend/pkg/database"
)

// InvoiceRepository reads invoices from the CRUD database
type InvoiceRepository struct {
	db *database.DB
}

// NewInvoiceRepository creates a new invoice repository
func NewInvoiceRepository(db *database.DB) *InvoiceRepository {
	return &InvoiceRepository{db: db}
}

// ListInvoices returns all invoices with their items. Dates are returned as
// stored text; parsing is left to the extractor.
func (r *InvoiceRepository) ListInvoices(ctx context.Context) ([]domain.Invoice, error) {
	invoiceQuery := `
		SELECT id::text AS id, status, COALESCE(invoice_date::text, '') AS invoice_date
		FROM invoices
		ORDER BY id
	`
	invoices := []domain.Invoice{}
	if err := r.db.SelectContext(ctx, &invoices, invoiceQuery); err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}
	if len(invoices) == 0 {
		return invoices, nil
	}

	itemQuery := `
		SELECT invoice_id::text AS invoice_id, COALESCE(product_id::text, '') AS product_id,
			GREATEST(ROUND(COALESCE(quantity, 0)), 0)::int AS quantity,
			COALESCE(unit_price, 0) AS unit_price
		FROM invoice_items
		ORDER BY invoice_id
	`
	var items []domain.InvoiceItem
	if err := r.db.SelectContext(ctx, &items, itemQuery); err != nil {
		return nil, fmt.Errorf("list invoice items: %w", err)
	}

	byInvoice := make(map[string]int, len(invoices))
	for i, inv := range invoices {
		byInvoice[inv.ID] = i
	}
	for _, item := range items {
		i, ok := byInvoice[item.InvoiceID]
		if !ok {
			continue
		}
		invoices[i].Items = append(invoices[i].Items, item)
	}

	return invoices, nil
}
