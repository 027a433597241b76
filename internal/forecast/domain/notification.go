package domain

import "time"

// Notification categories, one per producer
const (
	CategoryLowStock   = "low_stock"
	CategoryPrediction = "prediction"
)

// Notification is an entry of the persisted feed. Timestamp is epoch
// milliseconds, the format the clients already store.
type Notification struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	Message   string   `json:"message"`
	Timestamp int64    `json:"timestamp"`
	Severity  Severity `json:"severity,omitempty"`
	ProductID string   `json:"productId,omitempty"`
	Category  string   `json:"category,omitempty"`
}

// Time returns the notification timestamp as a time.Time
func (n Notification) Time() time.Time {
	return time.UnixMilli(n.Timestamp)
}

// EpochMillis converts t to the stored timestamp format
func EpochMillis(t time.Time) int64 {
	return t.UnixMilli()
}

// NotificationView is a notification with its read-time relative label
type NotificationView struct {
	Notification
	RelativeTime string `json:"relativeTime"`
}
