package service

import (
	"math"
	"time"

	"github.com/stockwise/stockwise-backend/internal/forecast/domain"
)

// Project estimates when stock runs out at the given daily rate. A
// non-positive or non-finite rate yields the unknown sentinel.
func Project(stock int, dailyUsageRate float64, now time.Time) domain.Projection {
	days := domain.UnknownDaysRemaining
	if dailyUsageRate > 0 && !math.IsInf(dailyUsageRate, 0) {
		days = int(math.Max(1, math.Round(float64(stock)/dailyUsageRate)))
	}

	return domain.Projection{
		DaysRemaining:          days,
		ProjectedDepletionDate: now.AddDate(0, 0, days),
	}
}
