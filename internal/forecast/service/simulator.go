package service

import (
	"context"
	"hash/fnv"
	"math"
	"math/rand"
	"time"

	"github.com/stockwise/stockwise-backend/internal/forecast/domain"
	"github.com/stockwise/stockwise-backend/pkg/logger"
)

// Confidence reported for simulated series
const SimulatedConfidence = 0.35

// defaultSimulatedBase is the monthly demand assumed without history
const defaultSimulatedBase = 10.0

// ForecastClient calls an external forecast service
type ForecastClient interface {
	Forecast(ctx context.Context, req domain.ForecastRequest) (domain.ForecastSeries, error)
}

// Simulator produces a deterministic pseudo-random series per product
type Simulator struct{}

// Simulate returns months points starting at the month after now. The same
// product, history and month always produce the same series.
func (Simulator) Simulate(req domain.ForecastRequest, now time.Time) domain.ForecastSeries {
	h := fnv.New64a()
	_, _ = h.Write([]byte(req.ProductID))
	rng := rand.New(rand.NewSource(int64(h.Sum64())))

	base := defaultSimulatedBase
	if len(req.History) > 0 {
		base = recentMonthlyAverage(req.History, now)
	}

	month := truncateBucket(now.UTC(), domain.GranularityMonth)
	points := make([]domain.ForecastPoint, 0, req.Months)
	for i := 0; i < req.Months; i++ {
		month = nextBucket(month, domain.GranularityMonth)
		demand := base * (0.8 + 0.4*rng.Float64())
		points = append(points, domain.ForecastPoint{
			Period:          periodLabel(month, domain.GranularityMonth),
			PredictedDemand: math.Round(demand*10) / 10,
		})
	}

	return domain.ForecastSeries{
		ProductID:  req.ProductID,
		Points:     points,
		Confidence: SimulatedConfidence,
		Source:     domain.ForecastSourceSimulated,
	}
}

// simulatedBaseMonths is the longest window averaged for the simulated base
const simulatedBaseMonths = 6

// recentMonthlyAverage averages demand over the complete calendar months
// before now, at most simulatedBaseMonths of them and none before the first
// sale. Months without sales count as zero. History confined to the current
// month is averaged over that month alone.
func recentMonthlyAverage(history []domain.PeriodDemand, now time.Time) float64 {
	type point struct {
		month    time.Time
		quantity int
	}
	points := make([]point, 0, len(history))
	var first time.Time
	for _, p := range history {
		m, err := time.Parse("2006-01", p.Period)
		if err != nil {
			continue
		}
		if first.IsZero() || m.Before(first) {
			first = m
		}
		points = append(points, point{m, p.Quantity})
	}
	if len(points) == 0 {
		return defaultSimulatedBase
	}

	end := truncateBucket(now.UTC(), domain.GranularityMonth).AddDate(0, -1, 0)
	start := end.AddDate(0, -(simulatedBaseMonths - 1), 0)
	switch {
	case first.After(end):
		start, end = first, first
	case first.After(start):
		start = first
	}

	total := 0
	for _, p := range points {
		if p.month.Before(start) || p.month.After(end) {
			continue
		}
		total += p.quantity
	}
	months := (end.Year()-start.Year())*12 + int(end.Month()-start.Month()) + 1
	return float64(total) / float64(months)
}

// ForecastProvider serves forecasts from the forecast service and falls back
// to the simulator when it is not configured or fails.
type ForecastProvider struct {
	client    ForecastClient
	simulator Simulator
	logger    *logger.Logger
	now       func() time.Time
}

// NewForecastProvider creates a provider. client may be nil.
func NewForecastProvider(client ForecastClient, log *logger.Logger) *ForecastProvider {
	return &ForecastProvider{
		client: client,
		logger: log.WithComponent("forecast_provider"),
		now:    time.Now,
	}
}

// Forecast returns a series for the request. It never fails.
func (p *ForecastProvider) Forecast(ctx context.Context, req domain.ForecastRequest) domain.ForecastSeries {
	if p.client != nil {
		series, err := p.client.Forecast(ctx, req)
		if err == nil {
			if series.Source == "" {
				series.Source = domain.ForecastSourceService
			}
			return series
		}
		p.logger.Warn().Err(err).Str("product_id", req.ProductID).Msg("forecast service unavailable, using simulated series")
	}
	return p.simulator.Simulate(req, p.now())
}
