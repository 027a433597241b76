package handler

import "github.com/go-chi/chi/v5"

// Routes mounts the forecast API
func Routes(alerts *AlertHandler, notifications *NotificationHandler, reports *ReportHandler) func(chi.Router) {
	return func(r chi.Router) {
		r.Get("/alerts", alerts.List)
		r.Get("/alerts/summary", alerts.Summary)
		r.Get("/usage", alerts.Usage)

		r.Get("/notifications", notifications.List)
		r.Delete("/notifications", notifications.Clear)
		r.Post("/refresh", notifications.Refresh)

		r.Route("/reports", func(r chi.Router) {
			r.Get("/rollup", reports.Rollup)
			r.Get("/top-sellers", reports.TopSellers)
			r.Get("/forecast/{productID}", reports.Forecast)
		})
	}
}
