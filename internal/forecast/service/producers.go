package service

import (
	"fmt"

	"github.com/stockwise/stockwise-backend/internal/forecast/domain"
)

// Notification titles
const (
	TitleLowStock           = "Low Stock Alert"
	TitleCriticalPrediction = "Critical AI Alert"
	TitlePrediction         = "AI Prediction Alert"
)

// NotificationProducer turns ranked alerts into candidate notifications
type NotificationProducer interface {
	Category() string
	Produce(alerts []domain.Alert) []domain.Notification
}

// LowStockProducer emits a notification for every product at or below its
// reorder threshold.
type LowStockProducer struct{}

// Category implements NotificationProducer
func (LowStockProducer) Category() string { return domain.CategoryLowStock }

// Produce implements NotificationProducer
func (LowStockProducer) Produce(alerts []domain.Alert) []domain.Notification {
	var out []domain.Notification
	for _, a := range alerts {
		if a.Severity != domain.SeverityCritical {
			continue
		}
		out = append(out, domain.Notification{
			ID:        "product-" + a.ProductID,
			Title:     TitleLowStock,
			Message:   LowStockMessage(a.Name, a.SKU, a.Stock),
			Severity:  a.Severity,
			ProductID: a.ProductID,
			Category:  domain.CategoryLowStock,
		})
	}
	return out
}

// PredictionProducer emits a notification for alerts projected to run out
// within HorizonDays.
type PredictionProducer struct {
	HorizonDays int
}

// Category implements NotificationProducer
func (PredictionProducer) Category() string { return domain.CategoryPrediction }

// Produce implements NotificationProducer
func (p PredictionProducer) Produce(alerts []domain.Alert) []domain.Notification {
	var out []domain.Notification
	for _, a := range alerts {
		if a.DaysRemaining == domain.UnknownDaysRemaining || a.DaysRemaining > p.HorizonDays {
			continue
		}
		title := TitlePrediction
		if a.Severity == domain.SeverityCritical {
			title = TitleCriticalPrediction
		}
		out = append(out, domain.Notification{
			ID:        "ai-" + a.ProductID,
			Title:     title,
			Message:   PredictionMessage(a.Name, a.DaysRemaining),
			Severity:  a.Severity,
			ProductID: a.ProductID,
			Category:  domain.CategoryPrediction,
		})
	}
	return out
}

// LowStockMessage formats the low-stock notification body
func LowStockMessage(name, sku string, stock int) string {
	return fmt.Sprintf("%s (%s) is low - %d units remaining", name, sku, stock)
}

// PredictionMessage formats the projected-depletion notification body
func PredictionMessage(name string, daysRemaining int) string {
	if daysRemaining <= 1 {
		return fmt.Sprintf("%s predicted to run out in 1 day", name)
	}
	return fmt.Sprintf("%s predicted to run out in %d days", name, daysRemaining)
}
