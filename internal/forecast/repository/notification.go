package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/stockwise/stockwise-backend/internal/forecast/domain"
	"github.com/stockwise/stockwise-backend/pkg/kvstore"
)

// DefaultNotificationKey is the blob key the feed is stored under
const DefaultNotificationKey = "notifications"

// NotificationRepository stores the notification feed as one JSON array
type NotificationRepository struct {
	store kvstore.Store
	key   string
}

// NewNotificationRepository creates a repository on store under key
func NewNotificationRepository(store kvstore.Store, key string) *NotificationRepository {
	if key == "" {
		key = DefaultNotificationKey
	}
	return &NotificationRepository{store: store, key: key}
}

// Load returns the persisted feed, empty when nothing was stored yet
func (r *NotificationRepository) Load(ctx context.Context) ([]domain.Notification, error) {
	data, err := r.store.Get(ctx, r.key)
	if errors.Is(err, kvstore.ErrNotFound) {
		return []domain.Notification{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load notifications: %w", err)
	}

	var notifications []domain.Notification
	if err := json.Unmarshal(data, &notifications); err != nil {
		return nil, fmt.Errorf("decode notifications: %w", err)
	}
	if notifications == nil {
		notifications = []domain.Notification{}
	}
	return notifications, nil
}

// Save replaces the persisted feed
func (r *NotificationRepository) Save(ctx context.Context, notifications []domain.Notification) error {
	if notifications == nil {
		notifications = []domain.Notification{}
	}
	data, err := json.Marshal(notifications)
	if err != nil {
		return fmt.Errorf("encode notifications: %w", err)
	}
	if err := r.store.Set(ctx, r.key, data); err != nil {
		return fmt.Errorf("save notifications: %w", err)
	}
	return nil
}

// Clear removes the persisted feed
func (r *NotificationRepository) Clear(ctx context.Context) error {
	if err := r.store.Delete(ctx, r.key); err != nil && !errors.Is(err, kvstore.ErrNotFound) {
		return fmt.Errorf("clear notifications: %w", err)
	}
	return nil
}
