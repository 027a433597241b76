package service

import (
	"context"
	"sort"
	"time"

	"github.com/stockwise/stockwise-backend/internal/forecast/domain"
	"github.com/stockwise/stockwise-backend/pkg/logger"
	"github.com/stockwise/stockwise-backend/pkg/metrics"
)

// NotificationStore persists the notification feed as one document
type NotificationStore interface {
	Load(ctx context.Context) ([]domain.Notification, error)
	Save(ctx context.Context, notifications []domain.Notification) error
	Clear(ctx context.Context) error
}

// ReconcileResult is the outcome of merging a cycle's candidates
type ReconcileResult struct {
	Notifications []domain.Notification
	// Raised holds the notifications whose timestamp was assigned this cycle
	Raised []domain.Notification
	// Unchanged is set when there were no candidates and the existing feed
	// must be kept as is
	Unchanged bool
}

// NotificationReconciler merges computed notifications into the persisted feed
type NotificationReconciler struct {
	store    NotificationStore
	keyFuncs []KeyFunc
	logger   *logger.Logger
}

// NewNotificationReconciler creates a reconciler using the default key strategies
func NewNotificationReconciler(store NotificationStore, log *logger.Logger) *NotificationReconciler {
	return &NotificationReconciler{
		store:    store,
		keyFuncs: DefaultKeyFuncs(),
		logger:   log.WithComponent("notification_reconciler"),
	}
}

// RegisterKeyFunc adds a key strategy with the lowest precedence
func (r *NotificationReconciler) RegisterKeyFunc(fn KeyFunc) {
	r.keyFuncs = append(r.keyFuncs, fn)
}

// Load reads the persisted feed. A failed read yields an empty feed.
func (r *NotificationReconciler) Load(ctx context.Context) []domain.Notification {
	notifications, err := r.store.Load(ctx)
	if err != nil {
		metrics.StoreErrors.WithLabelValues("load").Inc()
		r.logger.Error().Err(err).Msg("failed to load notifications, continuing with empty set")
		return []domain.Notification{}
	}
	if notifications == nil {
		return []domain.Notification{}
	}
	return notifications
}

// Save persists the feed. Failures are logged and reported as false.
func (r *NotificationReconciler) Save(ctx context.Context, notifications []domain.Notification) bool {
	if err := r.store.Save(ctx, notifications); err != nil {
		metrics.StoreErrors.WithLabelValues("save").Inc()
		r.logger.Error().Err(err).Int("count", len(notifications)).Msg("failed to persist notifications")
		return false
	}
	metrics.NotificationsPersisted.Set(float64(len(notifications)))
	return true
}

// Clear removes the persisted feed
func (r *NotificationReconciler) Clear(ctx context.Context) error {
	return r.store.Clear(ctx)
}

// Merge reconciles candidates against existing. A matched notification keeps
// its timestamp only when the message is unchanged. Existing entries that
// match no candidate are dropped, unless there are no candidates at all.
// At most maxPerCategory of the newest entries are kept per category.
func (r *NotificationReconciler) Merge(existing, candidates []domain.Notification, now time.Time, maxPerCategory int) ReconcileResult {
	if len(candidates) == 0 {
		return ReconcileResult{Notifications: existing, Unchanged: true}
	}

	idx := buildIndex(existing, r.keyFuncs)
	nowMillis := domain.EpochMillis(now)

	merged := make([]domain.Notification, 0, len(candidates))
	var raised []domain.Notification
	seen := make(map[string]struct{}, len(candidates))

	for _, c := range candidates {
		if _, dup := seen[c.ID]; dup {
			continue
		}
		seen[c.ID] = struct{}{}

		if i, ok := idx.lookup(c, r.keyFuncs); ok && existing[i].Message == c.Message {
			c.Timestamp = existing[i].Timestamp
		} else {
			c.Timestamp = nowMillis
			raised = append(raised, c)
		}
		merged = append(merged, c)
	}

	merged = capPerCategory(merged, maxPerCategory)
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Timestamp > merged[j].Timestamp
	})

	return ReconcileResult{
		Notifications: merged,
		Raised:        keepSurvivors(raised, merged),
	}
}

// capPerCategory keeps the newest limit entries of each category, preserving
// input order among ties.
func capPerCategory(notifications []domain.Notification, limit int) []domain.Notification {
	if limit <= 0 {
		return notifications
	}

	byCategory := make(map[string][]int)
	for i, n := range notifications {
		byCategory[n.Category] = append(byCategory[n.Category], i)
	}

	keep := make([]bool, len(notifications))
	for _, indexes := range byCategory {
		sort.SliceStable(indexes, func(a, b int) bool {
			return notifications[indexes[a]].Timestamp > notifications[indexes[b]].Timestamp
		})
		for n, i := range indexes {
			keep[i] = n < limit
		}
	}

	out := make([]domain.Notification, 0, len(notifications))
	for i, n := range notifications {
		if keep[i] {
			out = append(out, n)
		}
	}
	return out
}

func keepSurvivors(raised, merged []domain.Notification) []domain.Notification {
	if len(raised) == 0 {
		return nil
	}
	ids := make(map[string]struct{}, len(merged))
	for _, n := range merged {
		ids[n.ID] = struct{}{}
	}
	out := raised[:0]
	for _, n := range raised {
		if _, ok := ids[n.ID]; ok {
			out = append(out, n)
		}
	}
	return out
}

// Views attaches relative-time labels computed against now
func Views(notifications []domain.Notification, now time.Time) []domain.NotificationView {
	views := make([]domain.NotificationView, 0, len(notifications))
	for _, n := range notifications {
		views = append(views, domain.NotificationView{
			Notification: n,
			RelativeTime: RelativeTime(n.Time(), now),
		})
	}
	return views
}
