// Package metrics declares the service's prometheus collectors
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CyclesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "forecast_cycles_total",
		Help: "Total number of forecast cycles by outcome",
	}, []string{"outcome"})

	CycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "forecast_cycle_duration_seconds",
		Help:    "Duration of forecast cycles",
		Buckets: prometheus.DefBuckets,
	})

	StaleCyclesDiscarded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "forecast_stale_cycles_discarded_total",
		Help: "Cycles whose result was discarded because a newer cycle had started",
	})

	SkippedTicks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "forecast_skipped_ticks_total",
		Help: "Timer ticks ignored because a cycle was in flight",
	})

	TriggersCoalesced = promauto.NewCounter(prometheus.CounterOpts{
		Name: "forecast_triggers_coalesced_total",
		Help: "Refresh triggers merged into an already pending cycle",
	})

	ActiveAlerts = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "forecast_active_alerts",
		Help: "Alerts in the latest committed snapshot by severity",
	}, []string{"severity"})

	NotificationsPersisted = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "forecast_notifications_persisted",
		Help: "Size of the last persisted notification feed",
	})

	NotificationsRaised = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "forecast_notifications_raised_total",
		Help: "Notifications whose timestamp was assigned by a cycle",
	}, []string{"category"})

	StoreErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "forecast_store_errors_total",
		Help: "Notification store failures by operation",
	}, []string{"op"})

	UpstreamRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "forecast_upstream_request_duration_seconds",
		Help:    "Latency of calls to the CRUD backend and forecast service",
		Buckets: prometheus.DefBuckets,
	}, []string{"upstream", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
