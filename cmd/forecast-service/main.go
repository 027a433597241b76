package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/stockwise/stockwise-backend/internal/forecast/client"
	"github.com/stockwise/stockwise-backend/internal/forecast/consumers"
	"github.com/stockwise/stockwise-backend/internal/forecast/events"
	"github.com/stockwise/stockwise-backend/internal/forecast/handler"
	"github.com/stockwise/stockwise-backend/internal/forecast/repository"
	"github.com/stockwise/stockwise-backend/internal/forecast/service"
	"github.com/stockwise/stockwise-backend/pkg/config"
	"github.com/stockwise/stockwise-backend/pkg/database"
	"github.com/stockwise/stockwise-backend/pkg/httputil"
	"github.com/stockwise/stockwise-backend/pkg/kvstore"
	"github.com/stockwise/stockwise-backend/pkg/logger"
	"github.com/stockwise/stockwise-backend/pkg/messaging"
)

const serviceName = "forecast-service"

func main() {
	// Load configuration with validation (fails fast in production if required config is missing)
	cfg, err := config.LoadWithValidation(serviceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(serviceName, cfg.Server.Environment)
	log.Info().
		Str("source", cfg.Source.Mode).
		Str("store", cfg.Notifications.Backend).
		Msg("starting Forecast Service")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	health := map[string]func(context.Context) map[string]string{}

	// Database is needed for the database source and the postgres store
	var db *database.DB
	if cfg.Source.Mode == config.SourceDatabase || cfg.Notifications.Backend == config.StorePostgres {
		db, err = database.New(&cfg.Database, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer db.Close()
		health["database"] = db.Health
	}

	// Product and invoice sources
	var products service.ProductSource
	var invoices service.InvoiceSource
	switch cfg.Source.Mode {
	case config.SourceREST:
		crud := client.NewCrudClient(cfg.Source.BaseURL, cfg.Source.Timeout, log)
		products, invoices = crud, crud
	default:
		products = repository.NewProductRepository(db)
		invoices = repository.NewInvoiceRepository(db)
	}

	// Notification store
	var store kvstore.Store
	switch cfg.Notifications.Backend {
	case config.StoreRedis:
		redisStore, err := kvstore.NewRedisStore(&cfg.Redis, "stockwise")
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer redisStore.Close()
		health["redis"] = redisStore.Health
		store = redisStore
	default:
		if err := db.Migrate(ctx, kvstore.Schema); err != nil {
			log.Fatal().Err(err).Msg("failed to migrate notification store")
		}
		store = kvstore.NewPostgresStore(db)
	}

	// RabbitMQ is optional: without it notifications are not announced and
	// refreshes only come from the ticker and the API
	var rmq *messaging.RabbitMQ
	var publisher service.NotificationPublisher
	if cfg.RabbitMQ.URL != "" {
		rmq, err = messaging.New(&cfg.RabbitMQ, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to RabbitMQ")
		}
		defer rmq.Close()
		health["rabbitmq"] = func(context.Context) map[string]string { return rmq.Health() }

		if err := rmq.Declare(messaging.ForecastTopology(serviceName)); err != nil {
			log.Fatal().Err(err).Msg("failed to declare RabbitMQ topology")
		}
		publisher = events.NewForecastEventPublisher(rmq, log)
	}

	// Engine and scheduler
	reconciler := service.NewNotificationReconciler(
		repository.NewNotificationRepository(store, cfg.Notifications.Key), log)
	engine := service.NewEngine(products, invoices, reconciler,
		func() service.AlertingConfig { return service.AlertingConfigFrom(&cfg.Forecast) },
		publisher, log)
	scheduler := service.NewScheduler(engine, cfg.Forecast.PollInterval, log)

	var forecastClient service.ForecastClient
	if cfg.Forecast.ServiceURL != "" {
		forecastClient = client.NewForecastClient(cfg.Forecast.ServiceURL, cfg.Forecast.ServiceTimeout, log)
	}
	reports := service.NewReportService(engine,
		service.NewForecastProvider(forecastClient, log), cfg.Forecast.ReportingLookbackDays)

	scheduler.Start(ctx)

	if rmq != nil {
		refreshConsumer := consumers.NewRefreshEventConsumer(rmq, serviceName, cfg.RabbitMQ.MaxRetries, scheduler, log)
		if err := refreshConsumer.Start(ctx); err != nil {
			log.Fatal().Err(err).Msg("failed to start refresh event consumer")
		}
	}

	// Handlers
	alertHandler := handler.NewAlertHandler(engine, &cfg.Forecast, log)
	notificationHandler := handler.NewNotificationHandler(engine, scheduler, log)
	reportHandler := handler.NewReportHandler(reports, log)

	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(httputil.RequestID)
	r.Use(httputil.Metrics)
	r.Use(httputil.Logger(log))
	r.Use(httputil.Recoverer(log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		status := map[string]interface{}{
			"status":  "healthy",
			"service": serviceName,
		}
		for name, check := range health {
			status[name] = check(r.Context())
		}
		if snap := engine.Latest(); snap != nil {
			status["last_cycle"] = map[string]interface{}{
				"seq":          snap.Seq,
				"generated_at": snap.GeneratedAt,
				"failed":       snap.Failed,
			}
		}
		httputil.JSON(w, http.StatusOK, status)
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1/forecast", handler.Routes(alertHandler, notificationHandler, reportHandler))

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	// Stop consumers and the scheduler before the stores close
	cancel()
	scheduler.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}
