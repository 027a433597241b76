package service

import (
	"fmt"
	"time"
)

// RelativeTime renders how long ago ts was, as shown in the feed.
// Future timestamps read as "Just now".
func RelativeTime(ts, now time.Time) string {
	elapsed := now.Sub(ts)
	if elapsed < time.Minute {
		return "Just now"
	}
	if elapsed < time.Hour {
		return fmt.Sprintf("%dm ago", int(elapsed/time.Minute))
	}
	if elapsed < 24*time.Hour {
		return fmt.Sprintf("%dh ago", int(elapsed/time.Hour))
	}

	days := int(elapsed / (24 * time.Hour))
	switch {
	case days < 7:
		return fmt.Sprintf("%dd ago", days)
	case days/7 < 4:
		return fmt.Sprintf("%dw ago", days/7)
	case days/30 < 12:
		return fmt.Sprintf("%dmo ago", max(1, days/30))
	default:
		return fmt.Sprintf("%dy ago", max(1, days/365))
	}
}
