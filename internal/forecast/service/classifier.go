package service

import (
	"sort"
	"time"

	"github.com/stockwise/stockwise-backend/internal/forecast/domain"
)

// warningFactor widens the threshold into the warning tier
const warningFactor = 1.25

// Classify returns the severity of a product. ok is false when the product
// cannot be classified (zero threshold with stock on hand).
func Classify(stock, threshold int) (severity domain.Severity, ok bool) {
	if threshold == 0 && stock > 0 {
		return domain.SeverityNormal, false
	}
	switch {
	case stock <= threshold:
		return domain.SeverityCritical, true
	case float64(stock) <= float64(threshold)*warningFactor:
		return domain.SeverityWarning, true
	default:
		return domain.SeverityNormal, true
	}
}

// AlertClassifier builds the ranked alert list of a cycle
type AlertClassifier struct{}

// NewAlertClassifier creates a classifier
func NewAlertClassifier() *AlertClassifier {
	return &AlertClassifier{}
}

// Classify materializes critical and warning alerts for products and ranks
// them. Products without a usage profile use the unknown projection.
func (c *AlertClassifier) Classify(products []domain.Product, usage map[string]domain.UsageProfile, now time.Time) []domain.Alert {
	alerts := make([]domain.Alert, 0)
	seen := make(map[string]struct{}, len(products))

	for _, p := range products {
		if _, dup := seen[p.ID]; dup {
			continue
		}
		seen[p.ID] = struct{}{}

		severity, ok := Classify(p.Stock, p.ReorderThreshold)
		if !ok || severity == domain.SeverityNormal {
			continue
		}

		rate := usage[p.ID].DailyUsageRate
		projection := Project(p.Stock, rate, now)

		alerts = append(alerts, domain.Alert{
			ID:             "alert-" + p.ID,
			ProductID:      p.ID,
			Name:           p.Name,
			SKU:            p.SKU,
			Stock:          p.Stock,
			Threshold:      p.ReorderThreshold,
			DailyUsageRate: rate,
			DaysRemaining:  projection.DaysRemaining,
			Severity:       severity,
		})
	}

	RankAlerts(alerts)
	return alerts
}

// RankAlerts sorts by severity, then days remaining, then product id
func RankAlerts(alerts []domain.Alert) {
	sort.SliceStable(alerts, func(i, j int) bool {
		a, b := alerts[i], alerts[j]
		if a.Severity.Rank() != b.Severity.Rank() {
			return a.Severity.Rank() < b.Severity.Rank()
		}
		if a.DaysRemaining != b.DaysRemaining {
			return a.DaysRemaining < b.DaysRemaining
		}
		return a.ProductID < b.ProductID
	})
}

// TopPair picks the most urgent critical alert and the most urgent warning
// for a different product from an already ranked list.
func TopPair(ranked []domain.Alert) (critical, warning *domain.Alert) {
	for i := range ranked {
		if ranked[i].Severity == domain.SeverityCritical {
			critical = &ranked[i]
			break
		}
	}
	for i := range ranked {
		if ranked[i].Severity != domain.SeverityWarning {
			continue
		}
		if critical != nil && ranked[i].ProductID == critical.ProductID {
			continue
		}
		warning = &ranked[i]
		break
	}
	return critical, warning
}

// CountBySeverity tallies alerts per tier
func CountBySeverity(alerts []domain.Alert) (critical, warning int) {
	for _, a := range alerts {
		switch a.Severity {
		case domain.SeverityCritical:
			critical++
		case domain.SeverityWarning:
			warning++
		}
	}
	return critical, warning
}
