package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Rollup granularities
type Granularity string

const (
	GranularityDay   Granularity = "day"
	GranularityMonth Granularity = "month"
	GranularityYear  Granularity = "year"
)

// Stock statuses of a rollup bucket
const (
	StatusLowStock = "Low Stock"
	StatusAdequate = "Adequate"
)

// DemandRollup is the aggregated demand of one period bucket
type DemandRollup struct {
	Period         string    `json:"period"`
	PeriodStart    time.Time `json:"periodStart"`
	ProductID      string    `json:"productId,omitempty"`
	TotalDemand    int       `json:"totalDemand"`
	PredictedStock int       `json:"predictedStock"`
	Status         string    `json:"status"`
}

// ProductSales is a best-seller row
type ProductSales struct {
	ProductID string          `json:"productId"`
	Name      string          `json:"name"`
	SKU       string          `json:"sku"`
	Quantity  int             `json:"quantity"`
	Revenue   decimal.Decimal `json:"revenue"`
}

// Forecast sources
const (
	ForecastSourceService   = "service"
	ForecastSourceSimulated = "simulated"
)

// ForecastPoint is the predicted demand of one future period
type ForecastPoint struct {
	Period          string  `json:"period"`
	PredictedDemand float64 `json:"predictedDemand"`
}

// ForecastSeries is a demand forecast for a product, from the forecast
// service or simulated when the service is unreachable
type ForecastSeries struct {
	ProductID  string          `json:"productId"`
	Points     []ForecastPoint `json:"points"`
	Confidence float64         `json:"confidence"`
	Source     string          `json:"source"`
}

// PeriodDemand is the sold quantity of one period
type PeriodDemand struct {
	Period   string `json:"period"`
	Quantity int    `json:"quantity"`
}

// ForecastRequest is sent to the forecast service
type ForecastRequest struct {
	ProductID string         `json:"productId"`
	Months    int            `json:"months"`
	History   []PeriodDemand `json:"history"`
}
