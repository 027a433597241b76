package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/stockwise/stockwise-backend/internal/forecast/domain"
	"github.com/stockwise/stockwise-backend/internal/forecast/service"
	"github.com/stockwise/stockwise-backend/pkg/config"
	"github.com/stockwise/stockwise-backend/pkg/errors"
	"github.com/stockwise/stockwise-backend/pkg/httputil"
	"github.com/stockwise/stockwise-backend/pkg/logger"
)

const (
	defaultAlertLimit = 50
	placeholder       = "--"
)

// AlertHandler serves the alert list, the compact summary and usage tables
type AlertHandler struct {
	engine *service.Engine
	cfg    *config.ForecastConfig
	logger *logger.Logger
}

// NewAlertHandler creates a new alert handler
func NewAlertHandler(engine *service.Engine, cfg *config.ForecastConfig, log *logger.Logger) *AlertHandler {
	return &AlertHandler{
		engine: engine,
		cfg:    cfg,
		logger: log,
	}
}

type alertListQuery struct {
	Limit int `validate:"gte=1,lte=500"`
}

// List returns the ranked alerts of the latest cycle
func (h *AlertHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, err := httputil.QueryInt(r.URL.Query(), "limit", defaultAlertLimit)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(alertListQuery{Limit: limit}); err != nil {
		httputil.Error(w, err)
		return
	}

	snap := h.engine.Latest()
	if snap == nil {
		httputil.JSONWithMeta(w, http.StatusOK, []domain.Alert{}, &httputil.Meta{})
		return
	}

	alerts := snap.Alerts
	if alerts == nil {
		alerts = []domain.Alert{}
	}
	total := len(alerts)
	if len(alerts) > limit {
		alerts = alerts[:limit]
	}

	httputil.JSONWithMeta(w, http.StatusOK, alerts, &httputil.Meta{
		Total:       total,
		Returned:    len(alerts),
		Cycle:       snap.Seq,
		GeneratedAt: snap.GeneratedAt.Format(time.RFC3339),
	})
}

// AlertCard is the compact rendering of one alert. Every field is text so
// that a missing alert renders as placeholders.
type AlertCard struct {
	ProductID     string `json:"productId"`
	Name          string `json:"name"`
	SKU           string `json:"sku"`
	Stock         string `json:"stock"`
	DaysRemaining string `json:"daysRemaining"`
	Status        string `json:"status"`
}

// AlertSummary is the dashboard header
type AlertSummary struct {
	Critical      AlertCard `json:"critical"`
	Warning       AlertCard `json:"warning"`
	CriticalCount string    `json:"criticalCount"`
	WarningCount  string    `json:"warningCount"`
	LastUpdated   string    `json:"lastUpdated"`
	Stale         bool      `json:"stale"`
}

func emptyCard() AlertCard {
	return AlertCard{
		ProductID:     placeholder,
		Name:          placeholder,
		SKU:           placeholder,
		Stock:         placeholder,
		DaysRemaining: placeholder,
		Status:        placeholder,
	}
}

func cardOf(a *domain.Alert) AlertCard {
	if a == nil {
		return emptyCard()
	}
	days := placeholder
	if a.DaysRemaining != domain.UnknownDaysRemaining {
		days = strconv.Itoa(a.DaysRemaining)
	}
	return AlertCard{
		ProductID:     a.ProductID,
		Name:          a.Name,
		SKU:           a.SKU,
		Stock:         strconv.Itoa(a.Stock),
		DaysRemaining: days,
		Status:        string(a.Severity),
	}
}

// Summary returns the most urgent critical and warning alerts with counts
func (h *AlertHandler) Summary(w http.ResponseWriter, r *http.Request) {
	snap := h.engine.Latest()
	if snap == nil {
		httputil.JSON(w, http.StatusOK, AlertSummary{
			Critical:      emptyCard(),
			Warning:       emptyCard(),
			CriticalCount: placeholder,
			WarningCount:  placeholder,
			LastUpdated:   placeholder,
		})
		return
	}

	critical, warning := service.TopPair(snap.Alerts)
	httputil.JSON(w, http.StatusOK, AlertSummary{
		Critical:      cardOf(critical),
		Warning:       cardOf(warning),
		CriticalCount: strconv.Itoa(snap.Critical),
		WarningCount:  strconv.Itoa(snap.Warning),
		LastUpdated:   snap.GeneratedAt.Format(time.RFC3339),
		Stale:         snap.Failed,
	})
}

// Usage returns the usage and depletion table under a named profile
func (h *AlertHandler) Usage(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("profile")
	if name == "" {
		name = h.cfg.Alerting.Profile
	}
	profile, ok := h.cfg.Profile(name)
	if !ok {
		httputil.Error(w, errors.Validation(map[string]string{"profile": "unknown profile " + name}))
		return
	}

	rows, ok := h.engine.Usage(service.UsageParamsFrom(profile))
	if !ok {
		httputil.Error(w, errNotReady)
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, rows, &httputil.Meta{
		Total:    len(rows),
		Returned: len(rows),
	})
}
