package service

import (
	"math"

	"github.com/stockwise/stockwise-backend/internal/forecast/domain"
	"github.com/stockwise/stockwise-backend/pkg/config"
)

// Fallbacks for unusable usage parameters
const (
	DefaultUsageFloor    = 0.5
	DefaultWindowDivisor = 14.0
	DefaultLookbackDays  = 90
)

const secondsPerDay = 24 * 60 * 60

// UsageParams tunes the usage heuristic for one call site
type UsageParams struct {
	WindowDivisor float64
	UsageFloor    float64
	LookbackDays  int
}

// UsageParamsFrom converts a configured profile
func UsageParamsFrom(p config.UsageProfile) UsageParams {
	return UsageParams{
		WindowDivisor: p.WindowDivisor,
		UsageFloor:    p.UsageFloor,
		LookbackDays:  p.LookbackDays,
	}
}

func (p UsageParams) normalized() UsageParams {
	if !(p.UsageFloor > 0) || math.IsInf(p.UsageFloor, 0) {
		p.UsageFloor = DefaultUsageFloor
	}
	if !(p.WindowDivisor > 0) || math.IsInf(p.WindowDivisor, 0) {
		p.WindowDivisor = DefaultWindowDivisor
	}
	return p
}

// UsageEstimator computes daily usage rates
type UsageEstimator struct {
	params UsageParams
}

// NewUsageEstimator creates an estimator with the given parameters
func NewUsageEstimator(params UsageParams) *UsageEstimator {
	return &UsageEstimator{params: params.normalized()}
}

// Params returns the effective parameters
func (e *UsageEstimator) Params() UsageParams {
	return e.params
}

// Estimate computes the usage profile of product from its own samples.
// The returned rate is always positive and finite.
func (e *UsageEstimator) Estimate(product domain.Product, samples []domain.SalesSample) domain.UsageProfile {
	profile := domain.UsageProfile{
		ProductID:  product.ID,
		WindowDays: 1,
	}

	if len(samples) == 0 {
		base := math.Max(float64(product.ReorderThreshold), math.Max(float64(product.Stock), 1))
		profile.DailyUsageRate = math.Max(e.params.UsageFloor, base/e.params.WindowDivisor)
		return profile
	}

	first, last := samples[0].Timestamp, samples[0].Timestamp
	total := 0
	for _, s := range samples {
		total += s.Quantity
		if s.Timestamp.Before(first) {
			first = s.Timestamp
		}
		if s.Timestamp.After(last) {
			last = s.Timestamp
		}
	}

	spanDays := math.Round(last.Sub(first).Seconds() / secondsPerDay)
	windowDays := int(math.Max(1, spanDays+1))

	rate := float64(total) / float64(windowDays)
	if !(rate > 0) || math.IsInf(rate, 0) {
		rate = e.params.UsageFloor
	}

	profile.DailyUsageRate = rate
	profile.WindowDays = windowDays
	profile.SampleTotalQuantity = total
	profile.FromHistory = true
	return profile
}

// EstimateAll computes a profile for every product
func (e *UsageEstimator) EstimateAll(products []domain.Product, samples []domain.SalesSample) map[string]domain.UsageProfile {
	grouped := GroupByProduct(samples)
	profiles := make(map[string]domain.UsageProfile, len(products))
	for _, p := range products {
		profiles[p.ID] = e.Estimate(p, grouped[p.ID])
	}
	return profiles
}
