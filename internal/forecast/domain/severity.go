package domain

// Severity is the urgency tier of an alert
type Severity string

// Severity tiers. Normal is never materialized as an Alert.
const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeverityNormal   Severity = "normal"
)

// Rank orders severities for sorting; lower is more urgent
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 0
	case SeverityWarning:
		return 1
	default:
		return 2
	}
}

// Alert is a product that needs attention this cycle
type Alert struct {
	ID             string   `json:"id"`
	ProductID      string   `json:"productId"`
	Name           string   `json:"name"`
	SKU            string   `json:"sku"`
	Stock          int      `json:"stock"`
	Threshold      int      `json:"threshold"`
	DailyUsageRate float64  `json:"dailyUsage"`
	DaysRemaining  int      `json:"daysRemaining"`
	Severity       Severity `json:"status"`
}
