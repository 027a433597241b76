package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stockwise/stockwise-backend/internal/forecast/domain"
	"github.com/stockwise/stockwise-backend/internal/forecast/repository"
	"github.com/stockwise/stockwise-backend/pkg/kvstore"
	"github.com/stockwise/stockwise-backend/pkg/logger"
	"github.com/stockwise/stockwise-backend/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestReconciler(store kvstore.Store) *NotificationReconciler {
	return NewNotificationReconciler(repository.NewNotificationRepository(store, ""), logger.Nop())
}

func lowStock(pid, message string, ts int64) domain.Notification {
	return domain.Notification{
		ID: "product-" + pid, Title: TitleLowStock, Message: message, Timestamp: ts,
		ProductID: pid, Category: domain.CategoryLowStock, Severity: domain.SeverityCritical,
	}
}

func TestMerge_PreservesTimestampForIdenticalMessage(t *testing.T) {
	r := newTestReconciler(kvstore.NewMemory())
	now := testutil.FixedNow()
	earlier := domain.EpochMillis(now.Add(-3 * time.Hour))

	existing := []domain.Notification{lowStock("p1", "Gauze (GZ-1) is low - 4 units remaining", earlier)}
	candidates := []domain.Notification{lowStock("p1", "Gauze (GZ-1) is low - 4 units remaining", 0)}

	res := r.Merge(existing, candidates, now, 6)

	require.Len(t, res.Notifications, 1)
	assert.Equal(t, earlier, res.Notifications[0].Timestamp)
	assert.Empty(t, res.Raised)
	assert.False(t, res.Unchanged)
}

func TestMerge_RefreshesTimestampWhenMessageChanges(t *testing.T) {
	r := newTestReconciler(kvstore.NewMemory())
	now := testutil.FixedNow()
	earlier := domain.EpochMillis(now.Add(-3 * time.Hour))

	existing := []domain.Notification{lowStock("p1", "Gauze (GZ-1) is low - 4 units remaining", earlier)}
	candidates := []domain.Notification{lowStock("p1", "Gauze (GZ-1) is low - 3 units remaining", 0)}

	res := r.Merge(existing, candidates, now, 6)

	require.Len(t, res.Notifications, 1)
	assert.Equal(t, domain.EpochMillis(now), res.Notifications[0].Timestamp)
	require.Len(t, res.Raised, 1)
	assert.Equal(t, "product-p1", res.Raised[0].ID)
}

func TestMerge_ZeroCandidatesKeepsExisting(t *testing.T) {
	r := newTestReconciler(kvstore.NewMemory())
	existing := []domain.Notification{lowStock("p1", "m", 1), lowStock("p2", "m", 2)}

	res := r.Merge(existing, nil, testutil.FixedNow(), 6)

	assert.True(t, res.Unchanged)
	assert.Equal(t, existing, res.Notifications)
	assert.Empty(t, res.Raised)
}

func TestMerge_DropsUnmatchedExisting(t *testing.T) {
	r := newTestReconciler(kvstore.NewMemory())
	now := testutil.FixedNow()
	existing := []domain.Notification{lowStock("gone", "old", 1)}

	res := r.Merge(existing, []domain.Notification{lowStock("p1", "new", 0)}, now, 6)

	require.Len(t, res.Notifications, 1)
	assert.Equal(t, "product-p1", res.Notifications[0].ID)
}

func TestMerge_MatchesLegacyIdentifiers(t *testing.T) {
	r := newTestReconciler(kvstore.NewMemory())
	now := testutil.FixedNow()
	earlier := domain.EpochMillis(now.Add(-time.Hour))

	// stored by an older client under a different id shape
	existing := []domain.Notification{{
		ID: "1717000000000", Title: TitlePrediction, Message: "Tape predicted to run out in 4 days",
		Timestamp: earlier, ProductID: "p9",
	}}
	candidate := domain.Notification{
		ID: "ai-p9", Title: TitlePrediction, Message: "Tape predicted to run out in 4 days",
		ProductID: "p9", Category: domain.CategoryPrediction,
	}

	res := r.Merge(existing, []domain.Notification{candidate}, now, 6)

	require.Len(t, res.Notifications, 1)
	assert.Equal(t, earlier, res.Notifications[0].Timestamp)
	assert.Equal(t, "ai-p9", res.Notifications[0].ID)
}

func TestMerge_RawIDTakesPrecedenceOverProductKey(t *testing.T) {
	r := newTestReconciler(kvstore.NewMemory())
	now := testutil.FixedNow()
	aiTs := domain.EpochMillis(now.Add(-2 * time.Hour))
	lowTs := domain.EpochMillis(now.Add(-time.Hour))

	// the prediction entry comes first and also owns the product-p1 key shape
	existing := []domain.Notification{
		{ID: "ai-p1", Title: TitleCriticalPrediction, Message: "Gauze predicted to run out in 2 days", Timestamp: aiTs, ProductID: "p1", Category: domain.CategoryPrediction},
		lowStock("p1", "Gauze (GZ-1) is low - 4 units remaining", lowTs),
	}
	candidates := []domain.Notification{
		lowStock("p1", "Gauze (GZ-1) is low - 4 units remaining", 0),
		{ID: "ai-p1", Title: TitleCriticalPrediction, Message: "Gauze predicted to run out in 2 days", ProductID: "p1", Category: domain.CategoryPrediction},
	}

	res := r.Merge(existing, candidates, now, 6)

	require.Len(t, res.Notifications, 2)
	assert.Empty(t, res.Raised)
	for _, n := range res.Notifications {
		if n.ID == "ai-p1" {
			assert.Equal(t, aiTs, n.Timestamp)
		} else {
			assert.Equal(t, lowTs, n.Timestamp)
		}
	}
}

func TestMerge_CapsPerCategoryKeepingNewest(t *testing.T) {
	r := newTestReconciler(kvstore.NewMemory())
	now := testutil.FixedNow()

	var existing, candidates []domain.Notification
	for i := 0; i < 8; i++ {
		pid := fmt.Sprintf("p%d", i)
		msg := fmt.Sprintf("item %d", i)
		// p0..p3 are unchanged and keep old timestamps; p4..p7 are new
		if i < 4 {
			existing = append(existing, lowStock(pid, msg, domain.EpochMillis(now.Add(-time.Duration(i+1)*time.Hour))))
		}
		candidates = append(candidates, lowStock(pid, msg, 0))
	}
	candidates = append(candidates, domain.Notification{
		ID: "ai-p0", Title: TitlePrediction, Message: "x", ProductID: "p0", Category: domain.CategoryPrediction,
	})

	res := r.Merge(existing, candidates, now, 6)

	byCategory := map[string][]string{}
	for _, n := range res.Notifications {
		byCategory[n.Category] = append(byCategory[n.Category], n.ID)
	}
	assert.Len(t, byCategory[domain.CategoryLowStock], 6)
	assert.Len(t, byCategory[domain.CategoryPrediction], 1)
	assert.NotContains(t, byCategory[domain.CategoryLowStock], "product-p2")
	assert.NotContains(t, byCategory[domain.CategoryLowStock], "product-p3")

	for i := 1; i < len(res.Notifications); i++ {
		assert.GreaterOrEqual(t, res.Notifications[i-1].Timestamp, res.Notifications[i].Timestamp)
	}
}

func TestRegisterKeyFunc(t *testing.T) {
	r := newTestReconciler(kvstore.NewMemory())
	now := testutil.FixedNow()
	earlier := domain.EpochMillis(now.Add(-time.Hour))

	bySKU := func(n domain.Notification) []string {
		if n.Category != "restock" {
			return nil
		}
		return []string{"sku-" + n.Message}
	}
	r.RegisterKeyFunc(bySKU)

	existing := []domain.Notification{{ID: "legacy-1", Title: "Restock", Message: "GZ-1", Timestamp: earlier, Category: "restock"}}
	candidate := domain.Notification{ID: "restock-GZ-1", Title: "Restock", Message: "GZ-1", Category: "restock"}

	res := r.Merge(existing, []domain.Notification{candidate}, now, 6)

	require.Len(t, res.Notifications, 1)
	assert.Equal(t, earlier, res.Notifications[0].Timestamp)
}

func TestReconciler_StoreFailuresAreSwallowed(t *testing.T) {
	ctx := context.Background()
	store := kvstore.NewMemory()
	store.FailWith(errors.New("store offline"))
	r := newTestReconciler(store)

	assert.Empty(t, r.Load(ctx))
	assert.False(t, r.Save(ctx, []domain.Notification{lowStock("p1", "m", 1)}))

	store.FailWith(nil)
	assert.True(t, r.Save(ctx, []domain.Notification{lowStock("p1", "m", 1)}))
	assert.Len(t, r.Load(ctx), 1)
}

func TestViews(t *testing.T) {
	now := testutil.FixedNow()
	views := Views([]domain.Notification{
		lowStock("p1", "m", domain.EpochMillis(now.Add(-2*time.Hour))),
		lowStock("p2", "m", domain.EpochMillis(now)),
	}, now)

	require.Len(t, views, 2)
	assert.Equal(t, "2h ago", views[0].RelativeTime)
	assert.Equal(t, "Just now", views[1].RelativeTime)
}

func TestProducers(t *testing.T) {
	alerts := []domain.Alert{
		{ProductID: "p1", Name: "Gauze", SKU: "GZ-1", Stock: 4, Severity: domain.SeverityCritical, DaysRemaining: 1},
		{ProductID: "p2", Name: "Tape", SKU: "TP-1", Stock: 12, Severity: domain.SeverityWarning, DaysRemaining: 9},
		{ProductID: "p3", Name: "Swabs", SKU: "SW-1", Stock: 50, Severity: domain.SeverityWarning, DaysRemaining: 40},
		{ProductID: "p4", Name: "Mask", SKU: "MK-1", Stock: 0, Severity: domain.SeverityCritical, DaysRemaining: domain.UnknownDaysRemaining},
	}

	low := LowStockProducer{}.Produce(alerts)
	require.Len(t, low, 2)
	assert.Equal(t, "product-p1", low[0].ID)
	assert.Equal(t, "Low Stock Alert", low[0].Title)
	assert.Equal(t, "Gauze (GZ-1) is low - 4 units remaining", low[0].Message)

	ai := PredictionProducer{HorizonDays: 14}.Produce(alerts)
	require.Len(t, ai, 2)
	assert.Equal(t, "ai-p1", ai[0].ID)
	assert.Equal(t, "Critical AI Alert", ai[0].Title)
	assert.Equal(t, "Gauze predicted to run out in 1 day", ai[0].Message)
	assert.Equal(t, "AI Prediction Alert", ai[1].Title)
	assert.Equal(t, "Tape predicted to run out in 9 days", ai[1].Message)
}
