package domain

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Field aliases seen in CRUD payloads. The first present alias wins.
var (
	productIDKeys        = []string{"id", "_id", "productId", "product_id"}
	productStockKeys     = []string{"stock", "quantity", "stockQuantity", "stock_quantity", "qty"}
	productThresholdKeys = []string{"reorderThreshold", "reorder_threshold", "reorderLevel", "reorder_level", "minStock", "min_stock", "lowStockThreshold", "threshold"}
	productPriceKeys     = []string{"price", "unitPrice", "unit_price", "sellingPrice"}

	invoiceIDKeys    = []string{"id", "_id", "invoiceId", "invoice_id"}
	invoiceDateKeys  = []string{"invoiceDate", "invoice_date", "date", "issueDate", "issue_date"}
	invoiceItemsKeys = []string{"items", "lineItems", "line_items"}

	itemProductKeys  = []string{"productId", "product_id", "product"}
	itemQuantityKeys = []string{"quantity", "qty"}
	itemPriceKeys    = []string{"unitPrice", "unit_price", "price"}
)

var jsonNull = []byte("null")

// UnmarshalJSON decodes a product leniently. Missing, null or non-numeric
// stock and threshold become 0.
func (p *Product) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}

	*p = Product{
		ID:               rawString(pick(fields, productIDKeys...)),
		Name:             rawString(fields["name"]),
		SKU:              rawString(pick(fields, "sku", "SKU")),
		Category:         rawString(fields["category"]),
		Stock:            rawCount(pick(fields, productStockKeys...)),
		ReorderThreshold: rawCount(pick(fields, productThresholdKeys...)),
		Price:            rawDecimal(pick(fields, productPriceKeys...)),
	}
	return nil
}

// UnmarshalJSON decodes an invoice leniently
func (inv *Invoice) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}

	*inv = Invoice{
		ID:          rawString(pick(fields, invoiceIDKeys...)),
		Status:      rawString(fields["status"]),
		InvoiceDate: rawString(pick(fields, invoiceDateKeys...)),
	}

	items := pick(fields, invoiceItemsKeys...)
	if len(items) == 0 || bytes.Equal(items, jsonNull) {
		return nil
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(items, &raw); err != nil {
		// not an array; treat as an invoice without items
		return nil
	}
	for _, r := range raw {
		var item InvoiceItem
		if err := json.Unmarshal(r, &item); err != nil {
			continue
		}
		item.InvoiceID = inv.ID
		inv.Items = append(inv.Items, item)
	}
	return nil
}

// UnmarshalJSON decodes an invoice line. The product reference may be a
// plain id or an embedded product object.
func (it *InvoiceItem) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}

	ref := pick(fields, itemProductKeys...)
	productID := rawString(ref)
	if productID == "" && len(ref) > 0 && ref[0] == '{' {
		var embedded map[string]json.RawMessage
		if json.Unmarshal(ref, &embedded) == nil {
			productID = rawString(pick(embedded, productIDKeys...))
		}
	}

	*it = InvoiceItem{
		ProductID: productID,
		Quantity:  rawCount(pick(fields, itemQuantityKeys...)),
		UnitPrice: rawDecimal(pick(fields, itemPriceKeys...)),
	}
	return nil
}

func pick(fields map[string]json.RawMessage, keys ...string) json.RawMessage {
	for _, k := range keys {
		if v, ok := fields[k]; ok && len(v) > 0 && !bytes.Equal(v, jsonNull) {
			return v
		}
	}
	return nil
}

// rawString returns a JSON string or number as text, anything else as ""
func rawString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

// rawNumber coerces a JSON number or numeric string; anything else is 0
func rawNumber(raw json.RawMessage) float64 {
	s := rawString(raw)
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// rawCount coerces to a non-negative integer count
func rawCount(raw json.RawMessage) int {
	f := rawNumber(raw)
	if f <= 0 {
		return 0
	}
	if f > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(math.Round(f))
}

func rawDecimal(raw json.RawMessage) decimal.Decimal {
	s := rawString(raw)
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
