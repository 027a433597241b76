package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/stockwise/stockwise-backend/internal/forecast/domain"
	"github.com/stockwise/stockwise-backend/pkg/errors"
	"github.com/stockwise/stockwise-backend/pkg/logger"
	"github.com/stockwise/stockwise-backend/pkg/metrics"
)

const upstreamForecast = "forecast"

// ForecastClient calls the external demand forecast service
type ForecastClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *logger.Logger
}

// NewForecastClient creates a new forecast service client
func NewForecastClient(baseURL string, timeout time.Duration, log *logger.Logger) *ForecastClient {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &ForecastClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     log.WithComponent("forecast_client"),
	}
}

// Forecast requests a demand forecast for one product
func (c *ForecastClient) Forecast(ctx context.Context, req domain.ForecastRequest) (domain.ForecastSeries, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return domain.ForecastSeries{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/forecast", bytes.NewReader(payload))
	if err != nil {
		return domain.ForecastSeries{}, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	c.logger.Debug().Str("product_id", req.ProductID).Int("months", req.Months).Msg("requesting forecast")

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		metrics.UpstreamRequestDuration.WithLabelValues(upstreamForecast, "error").Observe(time.Since(start).Seconds())
		return domain.ForecastSeries{}, errors.Unavailable("forecast service", fmt.Errorf("failed to call forecast service: %w", err))
	}
	defer resp.Body.Close()
	metrics.UpstreamRequestDuration.WithLabelValues(upstreamForecast, strconv.Itoa(resp.StatusCode)).Observe(time.Since(start).Seconds())

	if resp.StatusCode != http.StatusOK {
		var errResp map[string]interface{}
		json.NewDecoder(resp.Body).Decode(&errResp)
		return domain.ForecastSeries{}, fmt.Errorf("forecast failed with status %d: %v", resp.StatusCode, errResp)
	}

	// the service may answer bare or wrapped in {"success": true, "data": ...}
	var response struct {
		Data *domain.ForecastSeries `json:"data"`
		domain.ForecastSeries
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return domain.ForecastSeries{}, fmt.Errorf("failed to decode response: %w", err)
	}

	series := response.ForecastSeries
	if response.Data != nil {
		series = *response.Data
	}
	if series.ProductID == "" {
		series.ProductID = req.ProductID
	}
	if len(series.Points) == 0 {
		return domain.ForecastSeries{}, fmt.Errorf("forecast service returned no points")
	}
	series.Source = domain.ForecastSourceService
	return series, nil
}
