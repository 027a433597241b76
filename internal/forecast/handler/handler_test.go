package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stockwise/stockwise-backend/internal/forecast/domain"
	"github.com/stockwise/stockwise-backend/internal/forecast/handler"
	"github.com/stockwise/stockwise-backend/internal/forecast/repository"
	"github.com/stockwise/stockwise-backend/internal/forecast/service"
	"github.com/stockwise/stockwise-backend/pkg/config"
	"github.com/stockwise/stockwise-backend/pkg/httputil"
	"github.com/stockwise/stockwise-backend/pkg/kvstore"
	"github.com/stockwise/stockwise-backend/pkg/logger"
	"github.com/stockwise/stockwise-backend/pkg/testutil"
)

type stubSource struct {
	products []domain.Product
	invoices []domain.Invoice
}

func (s *stubSource) ListProducts(context.Context) ([]domain.Product, error) {
	return s.products, nil
}

func (s *stubSource) ListInvoices(context.Context) ([]domain.Invoice, error) {
	return s.invoices, nil
}

type stubRefresher struct {
	calls int
	err   error
}

func (s *stubRefresher) Trigger() error {
	s.calls++
	return s.err
}

type apiFixture struct {
	engine    *service.Engine
	refresher *stubRefresher
	router    chi.Router
}

func forecastConfig() *config.ForecastConfig {
	return &config.ForecastConfig{
		Profiles: config.DefaultProfiles(),
		Alerting: config.AlertingSettings{
			Profile:                 config.ProfileDashboard,
			LowStockNotifications:   true,
			PredictionNotifications: true,
			PredictionHorizonDays:   14,
			MaxPerCategory:          50,
		},
	}
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	now := time.Now().UTC()
	source := &stubSource{
		products: []domain.Product{
			{ID: "p1", Name: "Gauze", SKU: "GZ-1", Stock: 5, ReorderThreshold: 10},
			{ID: "p2", Name: "Tape", SKU: "TP-1", Stock: 12, ReorderThreshold: 10},
			{ID: "p3", Name: "Mask", SKU: "MK-1", Stock: 100, ReorderThreshold: 10},
		},
		invoices: []domain.Invoice{
			{ID: "inv-1", Status: domain.InvoicePaid, InvoiceDate: now.AddDate(0, 0, -2).Format("2006-01-02"), Items: []domain.InvoiceItem{
				{ProductID: "p3", Quantity: 7},
				{ProductID: "p1", Quantity: 2},
			}},
		},
	}

	cfg := forecastConfig()
	log := logger.Nop()
	reconciler := service.NewNotificationReconciler(
		repository.NewNotificationRepository(kvstore.NewMemory(), repository.DefaultNotificationKey), log)
	engine := service.NewEngine(source, source, reconciler,
		func() service.AlertingConfig { return service.AlertingConfigFrom(cfg) }, nil, log)
	reports := service.NewReportService(engine, service.NewForecastProvider(nil, log), 0)

	fx := &apiFixture{engine: engine, refresher: &stubRefresher{}}
	r := chi.NewRouter()
	r.Route("/api/v1/forecast", handler.Routes(
		handler.NewAlertHandler(engine, cfg, log),
		handler.NewNotificationHandler(engine, fx.refresher, log),
		handler.NewReportHandler(reports, log),
	))
	fx.router = r
	return fx
}

func (fx *apiFixture) runCycle(t *testing.T) {
	t.Helper()
	_, err := fx.engine.RunCycle(context.Background(), 1)
	require.NoError(t, err)
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string            `json:"code"`
		Details map[string]string `json:"details"`
	} `json:"error"`
	Meta *struct {
		Total    int `json:"total"`
		Returned int `json:"returned"`
	} `json:"meta"`
}

func (fx *apiFixture) do(t *testing.T, method, path string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	rec := httptest.NewRecorder()
	fx.router.ServeHTTP(rec, httptest.NewRequest(method, path, nil))

	var env envelope
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

func TestAlerts_BeforeFirstCycle(t *testing.T) {
	fx := newAPIFixture(t)

	rec, env := fx.do(t, http.MethodGet, "/api/v1/forecast/alerts")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, string(env.Data))

	rec, env = fx.do(t, http.MethodGet, "/api/v1/forecast/alerts/summary")
	assert.Equal(t, http.StatusOK, rec.Code)

	var summary handler.AlertSummary
	require.NoError(t, json.Unmarshal(env.Data, &summary))
	assert.Equal(t, "--", summary.CriticalCount)
	assert.Equal(t, "--", summary.WarningCount)
	assert.Equal(t, "--", summary.Critical.Name)
	assert.Equal(t, "--", summary.Warning.DaysRemaining)
	assert.Equal(t, "--", summary.LastUpdated)
}

func TestAlerts_ListAndLimit(t *testing.T) {
	fx := newAPIFixture(t)
	fx.runCycle(t)

	rec, env := fx.do(t, http.MethodGet, "/api/v1/forecast/alerts")
	require.Equal(t, http.StatusOK, rec.Code)

	var alerts []domain.Alert
	require.NoError(t, json.Unmarshal(env.Data, &alerts))
	require.Len(t, alerts, 2)
	assert.Equal(t, "p1", alerts[0].ProductID)
	assert.Equal(t, domain.SeverityCritical, alerts[0].Severity)
	assert.Equal(t, "p2", alerts[1].ProductID)
	require.NotNil(t, env.Meta)
	assert.Equal(t, 2, env.Meta.Total)

	_, env = fx.do(t, http.MethodGet, "/api/v1/forecast/alerts?limit=1")
	require.NoError(t, json.Unmarshal(env.Data, &alerts))
	assert.Len(t, alerts, 1)
	assert.Equal(t, 2, env.Meta.Total)
	assert.Equal(t, 1, env.Meta.Returned)
}

func TestAlerts_InvalidLimit(t *testing.T) {
	fx := newAPIFixture(t)

	for _, path := range []string{"/api/v1/forecast/alerts?limit=abc", "/api/v1/forecast/alerts?limit=0"} {
		rec, env := fx.do(t, http.MethodGet, path)
		assert.Equal(t, http.StatusBadRequest, rec.Code, path)
		require.NotNil(t, env.Error)
		assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
	}
}

func TestAlerts_Summary(t *testing.T) {
	fx := newAPIFixture(t)
	fx.runCycle(t)

	_, env := fx.do(t, http.MethodGet, "/api/v1/forecast/alerts/summary")

	var summary handler.AlertSummary
	require.NoError(t, json.Unmarshal(env.Data, &summary))
	assert.Equal(t, "p1", summary.Critical.ProductID)
	assert.Equal(t, "5", summary.Critical.Stock)
	assert.Equal(t, "p2", summary.Warning.ProductID)
	assert.Equal(t, "1", summary.CriticalCount)
	assert.Equal(t, "1", summary.WarningCount)
	assert.NotEqual(t, "--", summary.LastUpdated)
	assert.False(t, summary.Stale)
}

func TestUsage(t *testing.T) {
	fx := newAPIFixture(t)

	rec, env := fx.do(t, http.MethodGet, "/api/v1/forecast/usage")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "NOT_READY", env.Error.Code)

	fx.runCycle(t)

	rec, env = fx.do(t, http.MethodGet, "/api/v1/forecast/usage?profile=reports")
	require.Equal(t, http.StatusOK, rec.Code)

	var rows []domain.UsageRow
	require.NoError(t, json.Unmarshal(env.Data, &rows))
	require.Len(t, rows, 3)
	byID := map[string]domain.UsageRow{}
	for _, row := range rows {
		byID[row.ProductID] = row
	}
	// Tape has no history: max(10, 12, 1) / 20
	assert.InDelta(t, 0.6, byID["p2"].DailyUsageRate, 1e-9)
	assert.False(t, byID["p2"].FromHistory)
	assert.True(t, byID["p3"].FromHistory)
	assert.Equal(t, domain.SeverityNormal, byID["p3"].Severity)

	rec, env = fx.do(t, http.MethodGet, "/api/v1/forecast/usage?profile=nope")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, env.Error.Details, "profile")
}

func TestNotifications_ListAndClear(t *testing.T) {
	fx := newAPIFixture(t)
	fx.runCycle(t)

	rec, env := fx.do(t, http.MethodGet, "/api/v1/forecast/notifications")
	require.Equal(t, http.StatusOK, rec.Code)

	var views []domain.NotificationView
	require.NoError(t, json.Unmarshal(env.Data, &views))
	require.NotEmpty(t, views)
	for _, v := range views {
		assert.Equal(t, "Just now", v.RelativeTime)
	}

	rec, _ = fx.do(t, http.MethodDelete, "/api/v1/forecast/notifications")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	_, env = fx.do(t, http.MethodGet, "/api/v1/forecast/notifications")
	assert.JSONEq(t, `[]`, string(env.Data))
}

func TestRefresh(t *testing.T) {
	fx := newAPIFixture(t)

	rec, _ := fx.do(t, http.MethodPost, "/api/v1/forecast/refresh")
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, 1, fx.refresher.calls)

	fx.refresher.err = service.ErrSchedulerStopped
	rec, env := fx.do(t, http.MethodPost, "/api/v1/forecast/refresh")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "SCHEDULER_STOPPED", env.Error.Code)
}

func TestReports_Rollup(t *testing.T) {
	fx := newAPIFixture(t)

	rec, env := fx.do(t, http.MethodGet, "/api/v1/forecast/reports/rollup")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "NOT_READY", env.Error.Code)

	fx.runCycle(t)

	rec, env = fx.do(t, http.MethodGet, "/api/v1/forecast/reports/rollup?granularity=month&periods=3&product_id=p3")
	require.Equal(t, http.StatusOK, rec.Code)

	var rollups []domain.DemandRollup
	require.NoError(t, json.Unmarshal(env.Data, &rollups))
	require.Len(t, rollups, 3)
	total := 0
	for _, r := range rollups {
		total += r.TotalDemand
	}
	assert.Equal(t, 7, total)

	rec, env = fx.do(t, http.MethodGet, "/api/v1/forecast/reports/rollup?granularity=week")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, env.Error.Details, "Granularity")

	rec, env = fx.do(t, http.MethodGet, "/api/v1/forecast/reports/rollup?product_id=ghost")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", env.Error.Code)
}

func TestReports_TopSellers(t *testing.T) {
	fx := newAPIFixture(t)
	fx.runCycle(t)

	rec, env := fx.do(t, http.MethodGet, "/api/v1/forecast/reports/top-sellers?limit=1")
	require.Equal(t, http.StatusOK, rec.Code)

	var sellers []domain.ProductSales
	require.NoError(t, json.Unmarshal(env.Data, &sellers))
	require.Len(t, sellers, 1)
	assert.Equal(t, "p3", sellers[0].ProductID)
	assert.Equal(t, 7, sellers[0].Quantity)

	rec, _ = fx.do(t, http.MethodGet, "/api/v1/forecast/reports/top-sellers?from=2024-13-01")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = fx.do(t, http.MethodGet, "/api/v1/forecast/reports/top-sellers?from=2024-06-10&to=2024-06-01")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReports_Forecast(t *testing.T) {
	fx := newAPIFixture(t)
	fx.runCycle(t)

	rec, env := fx.do(t, http.MethodGet, "/api/v1/forecast/reports/forecast/p1?months=3")
	require.Equal(t, http.StatusOK, rec.Code)

	var series domain.ForecastSeries
	require.NoError(t, json.Unmarshal(env.Data, &series))
	assert.Equal(t, "p1", series.ProductID)
	assert.Equal(t, domain.ForecastSourceSimulated, series.Source)
	assert.Len(t, series.Points, 3)

	rec, _ = fx.do(t, http.MethodGet, "/api/v1/forecast/reports/forecast/p1?months=99")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = fx.do(t, http.MethodGet, "/api/v1/forecast/reports/forecast/ghost")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestReports_QueryValidation(t *testing.T) {
	fx := newAPIFixture(t)
	fx.runCycle(t)

	testutil.RunHTTPTestCases(t, fx.router, []testutil.HTTPTestCase{
		{Name: "periods not a number", Method: http.MethodGet, Path: "/api/v1/forecast/reports/rollup?periods=six", WantStatus: http.StatusBadRequest, WantBodyContains: []string{"must be an integer"}},
		{Name: "too many periods", Method: http.MethodGet, Path: "/api/v1/forecast/reports/rollup?periods=400", WantStatus: http.StatusBadRequest, WantBodyContains: []string{"must be at most 366"}},
		{Name: "year out of range", Method: http.MethodGet, Path: "/api/v1/forecast/reports/rollup?year=1900", WantStatus: http.StatusBadRequest},
		{Name: "calendar year", Method: http.MethodGet, Path: "/api/v1/forecast/reports/rollup?granularity=month&year=2024", WantStatus: http.StatusOK, WantBodyContains: []string{`"period":"2024-01"`, `"period":"2024-12"`}},
		{Name: "daily rollup", Method: http.MethodGet, Path: "/api/v1/forecast/reports/rollup?granularity=day&periods=7", WantStatus: http.StatusOK},
		{Name: "top sellers limit", Method: http.MethodGet, Path: "/api/v1/forecast/reports/top-sellers?limit=0", WantStatus: http.StatusBadRequest},
		{Name: "forecast months", Method: http.MethodGet, Path: "/api/v1/forecast/reports/forecast/p1?months=0", WantStatus: http.StatusBadRequest},
	})
}

func TestAlerts_RequestIDEchoed(t *testing.T) {
	fx := newAPIFixture(t)
	r := chi.NewRouter()
	r.Use(httputil.RequestID)
	r.Mount("/", fx.router)

	rec := testutil.ExecuteRequest(r, testutil.WithRequestID(testutil.NewHTTPRequest(http.MethodGet, "/api/v1/forecast/alerts", nil), "req-42"))
	testutil.AssertStatus(t, rec, http.StatusOK)

	var body map[string]interface{}
	testutil.ParseJSONBody(t, rec, &body)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "req-42", rec.Header().Get("X-Request-ID"))
}
