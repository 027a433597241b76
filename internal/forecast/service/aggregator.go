package service

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stockwise/stockwise-backend/internal/forecast/domain"
)

// ErrUnknownProduct is returned when a rollup filters on a product that does
// not exist
var ErrUnknownProduct = errors.New("unknown product")

// DefaultRollupPeriods is the trailing range used when none is requested
const DefaultRollupPeriods = 6

// RollupRequest selects the buckets of a rollup. A positive Year selects
// that calendar year, otherwise the trailing Periods ending at Now.
type RollupRequest struct {
	Granularity domain.Granularity
	Periods     int
	Year        int
	ProductID   string
	Now         time.Time
}

// DemandAggregator rolls sales samples up for reporting
type DemandAggregator struct{}

// NewDemandAggregator creates an aggregator
func NewDemandAggregator() *DemandAggregator {
	return &DemandAggregator{}
}

// Rollup sums demand per bucket. Predicted stock is the current stock minus
// the demand accumulated across the buckets so far, never below zero. Without
// a product filter stock and thresholds are summed over all products.
func (a *DemandAggregator) Rollup(samples []domain.SalesSample, products []domain.Product, req RollupRequest) ([]domain.DemandRollup, error) {
	stock, threshold := 0, 0
	if req.ProductID != "" {
		found := false
		for _, p := range products {
			if p.ID == req.ProductID {
				stock, threshold, found = p.Stock, p.ReorderThreshold, true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("rollup %s: %w", req.ProductID, ErrUnknownProduct)
		}
	} else {
		for _, p := range products {
			stock += p.Stock
			threshold += p.ReorderThreshold
		}
	}

	starts := bucketStarts(req)
	if len(starts) == 0 {
		return []domain.DemandRollup{}, nil
	}
	end := nextBucket(starts[len(starts)-1], req.Granularity)

	totals := make(map[time.Time]int, len(starts))
	for _, s := range samples {
		if req.ProductID != "" && s.ProductID != req.ProductID {
			continue
		}
		ts := s.Timestamp.UTC()
		if ts.Before(starts[0]) || !ts.Before(end) {
			continue
		}
		totals[truncateBucket(ts, req.Granularity)] += s.Quantity
	}

	rollups := make([]domain.DemandRollup, 0, len(starts))
	cumulative := 0
	for _, start := range starts {
		demand := totals[start]
		cumulative += demand

		predicted := stock - cumulative
		if predicted < 0 {
			predicted = 0
		}
		status := domain.StatusAdequate
		if predicted <= threshold {
			status = domain.StatusLowStock
		}

		rollups = append(rollups, domain.DemandRollup{
			Period:         periodLabel(start, req.Granularity),
			PeriodStart:    start,
			ProductID:      req.ProductID,
			TotalDemand:    demand,
			PredictedStock: predicted,
			Status:         status,
		})
	}

	return rollups, nil
}

// TopSellers ranks products by quantity sold in [from, to). Zero bounds are
// open. limit <= 0 returns every product with sales.
func (a *DemandAggregator) TopSellers(samples []domain.SalesSample, products []domain.Product, from, to time.Time, limit int) []domain.ProductSales {
	byID := make(map[string]domain.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	agg := make(map[string]*domain.ProductSales)
	for _, s := range samples {
		if !from.IsZero() && s.Timestamp.Before(from) {
			continue
		}
		if !to.IsZero() && !s.Timestamp.Before(to) {
			continue
		}
		row, ok := agg[s.ProductID]
		if !ok {
			p := byID[s.ProductID]
			row = &domain.ProductSales{ProductID: s.ProductID, Name: p.Name, SKU: p.SKU, Revenue: decimal.Zero}
			agg[s.ProductID] = row
		}
		row.Quantity += s.Quantity
		row.Revenue = row.Revenue.Add(s.UnitPrice.Mul(decimal.NewFromInt(int64(s.Quantity))))
	}

	out := make([]domain.ProductSales, 0, len(agg))
	for _, row := range agg {
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Quantity != out[j].Quantity {
			return out[i].Quantity > out[j].Quantity
		}
		return out[i].ProductID < out[j].ProductID
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// MonthlyDemand sums a product's samples per calendar month, oldest first
func MonthlyDemand(samples []domain.SalesSample, productID string) []domain.PeriodDemand {
	totals := make(map[time.Time]int)
	for _, s := range samples {
		if s.ProductID != productID {
			continue
		}
		totals[truncateBucket(s.Timestamp.UTC(), domain.GranularityMonth)] += s.Quantity
	}

	months := make([]time.Time, 0, len(totals))
	for m := range totals {
		months = append(months, m)
	}
	sort.Slice(months, func(i, j int) bool { return months[i].Before(months[j]) })

	out := make([]domain.PeriodDemand, 0, len(months))
	for _, m := range months {
		out = append(out, domain.PeriodDemand{
			Period:   periodLabel(m, domain.GranularityMonth),
			Quantity: totals[m],
		})
	}
	return out
}

func bucketStarts(req RollupRequest) []time.Time {
	g := req.Granularity
	if req.Year > 0 {
		first := time.Date(req.Year, time.January, 1, 0, 0, 0, 0, time.UTC)
		last := time.Date(req.Year+1, time.January, 1, 0, 0, 0, 0, time.UTC)
		var starts []time.Time
		for t := first; t.Before(last); t = nextBucket(t, g) {
			starts = append(starts, t)
		}
		return starts
	}

	periods := req.Periods
	if periods <= 0 {
		periods = DefaultRollupPeriods
	}
	current := truncateBucket(req.Now.UTC(), g)
	starts := make([]time.Time, periods)
	for i := periods - 1; i >= 0; i-- {
		starts[i] = current
		current = prevBucket(current, g)
	}
	return starts
}

func truncateBucket(t time.Time, g domain.Granularity) time.Time {
	switch g {
	case domain.GranularityYear:
		return time.Date(t.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
	case domain.GranularityMonth:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	default:
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	}
}

func nextBucket(t time.Time, g domain.Granularity) time.Time {
	switch g {
	case domain.GranularityYear:
		return t.AddDate(1, 0, 0)
	case domain.GranularityMonth:
		return t.AddDate(0, 1, 0)
	default:
		return t.AddDate(0, 0, 1)
	}
}

func prevBucket(t time.Time, g domain.Granularity) time.Time {
	switch g {
	case domain.GranularityYear:
		return t.AddDate(-1, 0, 0)
	case domain.GranularityMonth:
		return t.AddDate(0, -1, 0)
	default:
		return t.AddDate(0, 0, -1)
	}
}

func periodLabel(t time.Time, g domain.Granularity) string {
	switch g {
	case domain.GranularityYear:
		return t.Format("2006")
	case domain.GranularityMonth:
		return t.Format("2006-01")
	default:
		return t.Format("2006-01-02")
	}
}
