package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/stockwise/stockwise-backend/internal/forecast/domain"
	"github.com/stockwise/stockwise-backend/pkg/config"
	"github.com/stockwise/stockwise-backend/pkg/logger"
	"github.com/stockwise/stockwise-backend/pkg/metrics"
)

// ProductSource reads products from the CRUD backend
type ProductSource interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
}

// InvoiceSource reads invoices from the CRUD backend
type InvoiceSource interface {
	ListInvoices(ctx context.Context) ([]domain.Invoice, error)
}

// NotificationPublisher announces notifications raised by a cycle
type NotificationPublisher interface {
	PublishNotificationRaised(ctx context.Context, n domain.Notification) error
}

// AlertingConfig is read once at the start of every cycle
type AlertingConfig struct {
	Usage                   UsageParams
	LowStockNotifications   bool
	PredictionNotifications bool
	PredictionHorizonDays   int
	MaxPerCategory          int
}

// AlertingConfigFrom builds the cycle configuration from the forecast config
func AlertingConfigFrom(fc *config.ForecastConfig) AlertingConfig {
	profile, ok := fc.Profile(fc.Alerting.Profile)
	if !ok {
		profile = config.DefaultProfiles()[config.ProfileDashboard]
	}
	return AlertingConfig{
		Usage:                   UsageParamsFrom(profile),
		LowStockNotifications:   fc.Alerting.LowStockNotifications,
		PredictionNotifications: fc.Alerting.PredictionNotifications,
		PredictionHorizonDays:   fc.Alerting.PredictionHorizonDays,
		MaxPerCategory:          fc.Alerting.MaxPerCategory,
	}
}

func (c AlertingConfig) producers() []NotificationProducer {
	var producers []NotificationProducer
	if c.LowStockNotifications {
		producers = append(producers, LowStockProducer{})
	}
	if c.PredictionNotifications {
		producers = append(producers, PredictionProducer{HorizonDays: c.PredictionHorizonDays})
	}
	return producers
}

// Snapshot is the committed result of a cycle
type Snapshot struct {
	Seq           uint64                `json:"seq"`
	GeneratedAt   time.Time             `json:"generatedAt"`
	Alerts        []domain.Alert        `json:"alerts"`
	Critical      int                   `json:"critical"`
	Warning       int                   `json:"warning"`
	Notifications []domain.Notification `json:"notifications"`
	Failed        bool                  `json:"failed"`
	LastError     string                `json:"lastError,omitempty"`

	products []domain.Product
	invoices []domain.Invoice
}

// Products returns the products the cycle was computed from
func (s *Snapshot) Products() []domain.Product { return s.products }

// Invoices returns the invoices the cycle was computed from
func (s *Snapshot) Invoices() []domain.Invoice { return s.invoices }

// CycleResult is a computed but not yet committed cycle
type CycleResult struct {
	Snapshot  *Snapshot
	Reconcile ReconcileResult
}

// Engine runs forecast cycles and holds the latest committed snapshot
type Engine struct {
	products   ProductSource
	invoices   InvoiceSource
	reconciler *NotificationReconciler
	classifier *AlertClassifier
	publisher  NotificationPublisher
	alerting   func() AlertingConfig
	logger     *logger.Logger
	now        func() time.Time

	mu     sync.RWMutex
	latest *Snapshot
}

// NewEngine creates an engine. publisher may be nil.
func NewEngine(
	products ProductSource,
	invoices InvoiceSource,
	reconciler *NotificationReconciler,
	alerting func() AlertingConfig,
	publisher NotificationPublisher,
	log *logger.Logger,
) *Engine {
	return &Engine{
		products:   products,
		invoices:   invoices,
		reconciler: reconciler,
		classifier: NewAlertClassifier(),
		publisher:  publisher,
		alerting:   alerting,
		logger:     log.WithComponent("forecast_engine"),
		now:        time.Now,
	}
}

// SetClock overrides the engine clock
func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
}

// Compute runs a cycle without committing it. On upstream failure the
// returned result is a reset snapshot carrying the persisted notifications.
func (e *Engine) Compute(ctx context.Context, seq uint64) (*CycleResult, error) {
	cfg := e.alerting()
	now := e.now()
	log := e.logger.WithCycle(seq)

	products, invoices, err := e.fetch(ctx)
	if err != nil {
		log.Error().Err(err).Msg("upstream fetch failed, resetting snapshot")
		notifications := e.reconciler.Load(ctx)
		return &CycleResult{
			Snapshot: &Snapshot{
				Seq:           seq,
				GeneratedAt:   now,
				Alerts:        []domain.Alert{},
				Notifications: notifications,
				Failed:        true,
				LastError:     err.Error(),
			},
			Reconcile: ReconcileResult{Notifications: notifications, Unchanged: true},
		}, err
	}

	samples := NewSalesHistoryExtractor(cfg.Usage.LookbackDays).Extract(invoices, now)
	usage := NewUsageEstimator(cfg.Usage).EstimateAll(products, samples)
	alerts := e.classifier.Classify(products, usage, now)
	critical, warning := CountBySeverity(alerts)

	var candidates []domain.Notification
	for _, p := range cfg.producers() {
		candidates = append(candidates, p.Produce(alerts)...)
	}

	existing := e.reconciler.Load(ctx)
	rec := e.reconciler.Merge(existing, candidates, now, cfg.MaxPerCategory)

	log.Debug().
		Int("products", len(products)).
		Int("samples", len(samples)).
		Int("alerts", len(alerts)).
		Int("candidates", len(candidates)).
		Int("raised", len(rec.Raised)).
		Msg("cycle computed")

	return &CycleResult{
		Snapshot: &Snapshot{
			Seq:           seq,
			GeneratedAt:   now,
			Alerts:        alerts,
			Critical:      critical,
			Warning:       warning,
			Notifications: rec.Notifications,
			products:      products,
			invoices:      invoices,
		},
		Reconcile: rec,
	}, nil
}

// Commit publishes a computed cycle as the latest snapshot, persists the
// reconciled feed and announces raised notifications. A result older than the
// current snapshot is rejected.
func (e *Engine) Commit(ctx context.Context, res *CycleResult) bool {
	snap := res.Snapshot

	e.mu.Lock()
	if e.latest != nil && e.latest.Seq > snap.Seq {
		e.mu.Unlock()
		return false
	}
	e.latest = snap
	e.mu.Unlock()

	metrics.ActiveAlerts.WithLabelValues(string(domain.SeverityCritical)).Set(float64(snap.Critical))
	metrics.ActiveAlerts.WithLabelValues(string(domain.SeverityWarning)).Set(float64(snap.Warning))

	if snap.Failed || res.Reconcile.Unchanged {
		return true
	}

	e.reconciler.Save(ctx, res.Reconcile.Notifications)

	for _, n := range res.Reconcile.Raised {
		metrics.NotificationsRaised.WithLabelValues(n.Category).Inc()
		if e.publisher == nil {
			continue
		}
		if err := e.publisher.PublishNotificationRaised(ctx, n); err != nil {
			e.logger.Warn().Err(err).Str("notification_id", n.ID).Msg("failed to publish notification event")
		}
	}
	return true
}

// RunCycle computes and commits a cycle
func (e *Engine) RunCycle(ctx context.Context, seq uint64) (*Snapshot, error) {
	res, err := e.Compute(ctx, seq)
	e.Commit(ctx, res)
	return res.Snapshot, err
}

// Latest returns the last committed snapshot, nil before the first cycle
func (e *Engine) Latest() *Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.latest
}

// Notifications reads the persisted feed
func (e *Engine) Notifications(ctx context.Context) []domain.Notification {
	return e.reconciler.Load(ctx)
}

// ClearNotifications empties the persisted feed and the snapshot's copy
func (e *Engine) ClearNotifications(ctx context.Context) error {
	if err := e.reconciler.Clear(ctx); err != nil {
		return fmt.Errorf("clear notifications: %w", err)
	}

	e.mu.Lock()
	if e.latest != nil {
		cleared := *e.latest
		cleared.Notifications = []domain.Notification{}
		e.latest = &cleared
	}
	e.mu.Unlock()
	return nil
}

// Usage computes the usage table of the latest snapshot's inputs under params
func (e *Engine) Usage(params UsageParams) ([]domain.UsageRow, bool) {
	snap := e.Latest()
	if snap == nil || snap.Failed {
		return nil, false
	}

	now := e.now()
	samples := NewSalesHistoryExtractor(params.LookbackDays).Extract(snap.invoices, now)
	profiles := NewUsageEstimator(params).EstimateAll(snap.products, samples)

	rows := make([]domain.UsageRow, 0, len(snap.products))
	for _, p := range snap.products {
		profile := profiles[p.ID]
		projection := Project(p.Stock, profile.DailyUsageRate, now)
		severity, ok := Classify(p.Stock, p.ReorderThreshold)
		if !ok {
			severity = domain.SeverityNormal
		}
		rows = append(rows, domain.UsageRow{
			ProductID:              p.ID,
			Name:                   p.Name,
			SKU:                    p.SKU,
			Stock:                  p.Stock,
			Threshold:              p.ReorderThreshold,
			DailyUsageRate:         profile.DailyUsageRate,
			WindowDays:             profile.WindowDays,
			FromHistory:            profile.FromHistory,
			DaysRemaining:          projection.DaysRemaining,
			ProjectedDepletionDate: projection.ProjectedDepletionDate,
			Severity:               severity,
		})
	}
	return rows, true
}

func (e *Engine) fetch(ctx context.Context) ([]domain.Product, []domain.Invoice, error) {
	products, err := e.products.ListProducts(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("list products: %w", err)
	}
	invoices, err := e.invoices.ListInvoices(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("list invoices: %w", err)
	}
	return products, invoices, nil
}
