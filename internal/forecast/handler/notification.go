package handler

import (
	"net/http"
	"time"

	"github.com/stockwise/stockwise-backend/internal/forecast/service"
	"github.com/stockwise/stockwise-backend/pkg/errors"
	"github.com/stockwise/stockwise-backend/pkg/httputil"
	"github.com/stockwise/stockwise-backend/pkg/logger"
)

// Refresher starts a forecast cycle out of schedule
type Refresher interface {
	Trigger() error
}

// NotificationHandler handles the notification feed and manual refreshes
type NotificationHandler struct {
	engine    *service.Engine
	refresher Refresher
	logger    *logger.Logger
	now       func() time.Time
}

// NewNotificationHandler creates a new notification handler
func NewNotificationHandler(engine *service.Engine, refresher Refresher, log *logger.Logger) *NotificationHandler {
	return &NotificationHandler{
		engine:    engine,
		refresher: refresher,
		logger:    log,
		now:       time.Now,
	}
}

// List returns the persisted feed with relative times computed now
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	notifications := h.engine.Notifications(r.Context())
	views := service.Views(notifications, h.now())

	httputil.JSONWithMeta(w, http.StatusOK, views, &httputil.Meta{
		Total:    len(views),
		Returned: len(views),
	})
}

// Clear empties the feed
func (h *NotificationHandler) Clear(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.ClearNotifications(r.Context()); err != nil {
		h.logger.Error().Err(err).Msg("failed to clear notifications")
		httputil.Error(w, errors.Wrap(err, "STORE_ERROR", "failed to clear notifications", http.StatusInternalServerError))
		return
	}

	h.logger.Info().Msg("notifications cleared")
	httputil.NoContent(w)
}

// Refresh triggers a cycle and returns immediately
func (h *NotificationHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	if err := h.refresher.Trigger(); err != nil {
		httputil.Error(w, translate(err))
		return
	}

	httputil.Accepted(w, map[string]string{"status": "refresh scheduled"})
}
