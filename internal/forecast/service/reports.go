package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/stockwise/stockwise-backend/internal/forecast/domain"
)

// ErrNoSnapshot is returned before the first cycle has been committed
var ErrNoSnapshot = errors.New("no forecast cycle has completed yet")

// ReportService answers reporting queries over the latest snapshot's inputs.
// It uses its own history window, independent of the alerting lookback.
type ReportService struct {
	engine     *Engine
	aggregator *DemandAggregator
	forecasts  *ForecastProvider
	extractor  *SalesHistoryExtractor
	now        func() time.Time
}

// NewReportService creates a report service. lookbackDays <= 0 reports over
// the full history.
func NewReportService(engine *Engine, forecasts *ForecastProvider, lookbackDays int) *ReportService {
	return &ReportService{
		engine:     engine,
		aggregator: NewDemandAggregator(),
		forecasts:  forecasts,
		extractor:  NewSalesHistoryExtractor(lookbackDays),
		now:        time.Now,
	}
}

func (r *ReportService) inputs() ([]domain.Product, []domain.SalesSample, error) {
	snap := r.engine.Latest()
	if snap == nil || snap.Failed {
		return nil, nil, ErrNoSnapshot
	}
	return snap.Products(), r.extractor.Extract(snap.Invoices(), r.now()), nil
}

// Rollup aggregates demand per period
func (r *ReportService) Rollup(req RollupRequest) ([]domain.DemandRollup, error) {
	products, samples, err := r.inputs()
	if err != nil {
		return nil, err
	}
	if req.Now.IsZero() {
		req.Now = r.now()
	}
	return r.aggregator.Rollup(samples, products, req)
}

// TopSellers ranks products by quantity sold in [from, to)
func (r *ReportService) TopSellers(from, to time.Time, limit int) ([]domain.ProductSales, error) {
	products, samples, err := r.inputs()
	if err != nil {
		return nil, err
	}
	return r.aggregator.TopSellers(samples, products, from, to, limit), nil
}

// Forecast returns the demand forecast of a product for the next months
func (r *ReportService) Forecast(ctx context.Context, productID string, months int) (domain.ForecastSeries, error) {
	products, samples, err := r.inputs()
	if err != nil {
		return domain.ForecastSeries{}, err
	}

	known := false
	for _, p := range products {
		if p.ID == productID {
			known = true
			break
		}
	}
	if !known {
		return domain.ForecastSeries{}, fmt.Errorf("forecast %s: %w", productID, ErrUnknownProduct)
	}

	return r.forecasts.Forecast(ctx, domain.ForecastRequest{
		ProductID: productID,
		Months:    months,
		History:   MonthlyDemand(samples, productID),
	}), nil
}
