package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/stockwise/stockwise-backend/internal/forecast/domain"
	"github.com/stockwise/stockwise-backend/pkg/errors"
	"github.com/stockwise/stockwise-backend/pkg/logger"
	"github.com/stockwise/stockwise-backend/pkg/metrics"
)

const (
	upstreamCrud = "crud"

	maxResponseBytes = 32 << 20
)

// CrudClient reads products and invoices from the CRUD backend's REST API
type CrudClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *logger.Logger
}

// NewCrudClient creates a new CRUD backend client
func NewCrudClient(baseURL string, timeout time.Duration, log *logger.Logger) *CrudClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &CrudClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     log.WithComponent("crud_client"),
	}
}

// ListProducts fetches all products
func (c *CrudClient) ListProducts(ctx context.Context) ([]domain.Product, error) {
	var products []domain.Product
	if err := c.getList(ctx, "/api/products", "products", &products); err != nil {
		return nil, err
	}
	return products, nil
}

// ListInvoices fetches all invoices with their items
func (c *CrudClient) ListInvoices(ctx context.Context) ([]domain.Invoice, error) {
	var invoices []domain.Invoice
	if err := c.getList(ctx, "/api/invoices", "invoices", &invoices); err != nil {
		return nil, err
	}
	return invoices, nil
}

func (c *CrudClient) getList(ctx context.Context, path, collection string, target interface{}) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		metrics.UpstreamRequestDuration.WithLabelValues(upstreamCrud, "error").Observe(time.Since(start).Seconds())
		return errors.Unavailable("crud backend", fmt.Errorf("failed to call crud backend: %w", err))
	}
	defer resp.Body.Close()
	metrics.UpstreamRequestDuration.WithLabelValues(upstreamCrud, strconv.Itoa(resp.StatusCode)).Observe(time.Since(start).Seconds())

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", collection, err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Error().
			Int("status", resp.StatusCode).
			Str("path", path).
			Msg("crud backend request failed")
		return fmt.Errorf("list %s failed with status %d", collection, resp.StatusCode)
	}

	list, err := unwrapList(body, collection)
	if err != nil {
		return fmt.Errorf("failed to decode %s: %w", collection, err)
	}
	if err := json.Unmarshal(list, target); err != nil {
		return fmt.Errorf("failed to decode %s: %w", collection, err)
	}
	return nil
}

// unwrapList accepts a bare array or an object wrapping the array under
// "data", the collection name, or "items". A "data" object is searched the
// same way.
func unwrapList(body []byte, collection string) (json.RawMessage, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, fmt.Errorf("empty response")
	}
	if body[0] == '[' {
		return body, nil
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, err
	}
	for _, key := range []string{"data", collection, "items"} {
		raw := bytes.TrimSpace(envelope[key])
		if len(raw) == 0 {
			continue
		}
		switch raw[0] {
		case '[':
			return raw, nil
		case '{':
			return unwrapList(raw, collection)
		}
	}
	return nil, fmt.Errorf("no %s list in response", collection)
}
