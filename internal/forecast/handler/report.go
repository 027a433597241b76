package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/stockwise/stockwise-backend/internal/forecast/domain"
	"github.com/stockwise/stockwise-backend/internal/forecast/service"
	"github.com/stockwise/stockwise-backend/pkg/errors"
	"github.com/stockwise/stockwise-backend/pkg/httputil"
	"github.com/stockwise/stockwise-backend/pkg/logger"
)

const (
	dateLayout           = "2006-01-02"
	defaultTopSellers    = 10
	defaultTopSellerDays = 30
	defaultForecastMonth = 6
)

// ReportHandler serves demand rollups, best sellers and forecasts
type ReportHandler struct {
	reports *service.ReportService
	logger  *logger.Logger
	now     func() time.Time
}

// NewReportHandler creates a new report handler
func NewReportHandler(reports *service.ReportService, log *logger.Logger) *ReportHandler {
	return &ReportHandler{
		reports: reports,
		logger:  log,
		now:     time.Now,
	}
}

type rollupQuery struct {
	Granularity string `validate:"oneof=day month year"`
	Periods     int    `validate:"gte=1,lte=366"`
	Year        int    `validate:"omitempty,gte=1970,lte=9999"`
	ProductID   string `validate:"max=128"`
}

// Rollup returns demand per period
func (h *ReportHandler) Rollup(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := rollupQuery{
		Granularity: strings.ToLower(strings.TrimSpace(q.Get("granularity"))),
		ProductID:   strings.TrimSpace(q.Get("product_id")),
	}
	if query.Granularity == "" {
		query.Granularity = string(domain.GranularityMonth)
	}

	var err error
	if query.Periods, err = httputil.QueryInt(q, "periods", service.DefaultRollupPeriods); err != nil {
		httputil.Error(w, err)
		return
	}
	if query.Year, err = httputil.QueryInt(q, "year", 0); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(query); err != nil {
		httputil.Error(w, err)
		return
	}

	rollups, err := h.reports.Rollup(service.RollupRequest{
		Granularity: domain.Granularity(query.Granularity),
		Periods:     query.Periods,
		Year:        query.Year,
		ProductID:   query.ProductID,
		Now:         h.now(),
	})
	if err != nil {
		httputil.Error(w, translate(err))
		return
	}

	httputil.JSON(w, http.StatusOK, rollups)
}

type topSellersQuery struct {
	From  string `validate:"omitempty,datetime=2006-01-02"`
	To    string `validate:"omitempty,datetime=2006-01-02"`
	Limit int    `validate:"gte=1,lte=100"`
}

// TopSellers ranks products by quantity sold. from is inclusive and to is
// inclusive of the whole day; the default range is the trailing 30 days.
func (h *ReportHandler) TopSellers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := topSellersQuery{
		From: strings.TrimSpace(q.Get("from")),
		To:   strings.TrimSpace(q.Get("to")),
	}

	var err error
	if query.Limit, err = httputil.QueryInt(q, "limit", defaultTopSellers); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(query); err != nil {
		httputil.Error(w, err)
		return
	}

	now := h.now().UTC()
	to := now
	if query.To != "" {
		day, _ := time.Parse(dateLayout, query.To)
		to = day.AddDate(0, 0, 1)
	}
	from := to.AddDate(0, 0, -defaultTopSellerDays)
	if query.From != "" {
		from, _ = time.Parse(dateLayout, query.From)
	}
	if !from.Before(to) {
		httputil.Error(w, errors.Validation(map[string]string{"from": "must be before to"}))
		return
	}

	sellers, err := h.reports.TopSellers(from, to, query.Limit)
	if err != nil {
		httputil.Error(w, translate(err))
		return
	}

	httputil.JSON(w, http.StatusOK, sellers)
}

type forecastQuery struct {
	ProductID string `validate:"required,max=128"`
	Months    int    `validate:"gte=1,lte=24"`
}

// Forecast returns the demand forecast of one product
func (h *ReportHandler) Forecast(w http.ResponseWriter, r *http.Request) {
	query := forecastQuery{ProductID: chi.URLParam(r, "productID")}

	var err error
	if query.Months, err = httputil.QueryInt(r.URL.Query(), "months", defaultForecastMonth); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(query); err != nil {
		httputil.Error(w, err)
		return
	}

	series, err := h.reports.Forecast(r.Context(), query.ProductID, query.Months)
	if err != nil {
		httputil.Error(w, translate(err))
		return
	}

	httputil.JSON(w, http.StatusOK, series)
}
