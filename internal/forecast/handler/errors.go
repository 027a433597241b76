package handler

import (
	"net/http"

	"github.com/stockwise/stockwise-backend/internal/forecast/service"
	"github.com/stockwise/stockwise-backend/pkg/errors"
)

var errNotReady = errors.New("NOT_READY", "no forecast cycle has completed yet", http.StatusServiceUnavailable)

// translate maps service sentinels onto API errors
func translate(err error) error {
	switch {
	case errors.Is(err, service.ErrNoSnapshot):
		return errNotReady
	case errors.Is(err, service.ErrUnknownProduct):
		return errors.NotFound("product")
	case errors.Is(err, service.ErrSchedulerStopped):
		return errors.New("SCHEDULER_STOPPED", "forecast scheduler is not running", http.StatusServiceUnavailable)
	}
	return err
}
