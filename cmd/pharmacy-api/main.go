package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/medflow/pharmacy-backend/internal/auth/jwt"
	authhandler "github.com/medflow/pharmacy-backend/internal/auth/handler"
	authmw "github.com/medflow/pharmacy-backend/internal/auth/middleware"
	authrepo "github.com/medflow/pharmacy-backend/internal/auth/repository"
	authservice "github.com/medflow/pharmacy-backend/internal/auth/service"
	"github.com/medflow/pharmacy-backend/internal/inventory/cache"
	"github.com/medflow/pharmacy-backend/internal/inventory/consumers"
	"github.com/medflow/pharmacy-backend/internal/inventory/events"
	"github.com/medflow/pharmacy-backend/internal/inventory/forecast"
	"github.com/medflow/pharmacy-backend/internal/inventory/handler"
	"github.com/medflow/pharmacy-backend/internal/inventory/repository"
	"github.com/medflow/pharmacy-backend/internal/inventory/service"
	orderhandler "github.com/medflow/pharmacy-backend/internal/orders/handler"
	orderrepo "github.com/medflow/pharmacy-backend/internal/orders/repository"
	orderservice "github.com/medflow/pharmacy-backend/internal/orders/service"
	"github.com/medflow/pharmacy-backend/pkg/clock"
	"github.com/medflow/pharmacy-backend/pkg/config"
	"github.com/medflow/pharmacy-backend/pkg/database"
	"github.com/medflow/pharmacy-backend/pkg/httputil"
	"github.com/medflow/pharmacy-backend/pkg/logger"
	"github.com/medflow/pharmacy-backend/pkg/messaging"
	"github.com/medflow/pharmacy-backend/pkg/metrics"
)

const serviceName = "pharmacy-api"

func main() {
	// Load configuration with validation (fails fast in production if required config is missing)
	cfg, err := config.LoadWithValidation(serviceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(serviceName, cfg.Server.Environment)
	log.Info().Msg("starting pharmacy API")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := database.New(&cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	// RabbitMQ is optional; without it events are dropped and demand is not recorded from adjustments
	rmq, err := messaging.New(&cfg.RabbitMQ, log)
	switch {
	case stderrors.Is(err, messaging.ErrDisabled):
		log.Warn().Msg("rabbitmq disabled, events will not be published")
	case err != nil:
		log.Fatal().Err(err).Msg("failed to connect to RabbitMQ")
	default:
		defer rmq.Close()
	}

	var (
		inventoryEvents *events.InventoryEventPublisher
		orderEvents     messaging.EventPublisher
	)
	if rmq != nil {
		inventoryEvents, err = events.NewInventoryEventPublisher(rmq, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create inventory event publisher")
		}
		orderPublisher, err := messaging.NewPublisher(rmq, messaging.ExchangeOrderEvents, serviceName, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create order event publisher")
		}
		orderEvents = orderPublisher
	}

	dashboardCache, err := cache.NewDashboardCache(ctx, cfg.Cache)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer dashboardCache.Close()

	m := metrics.New("pharmacy")
	clk := clock.Real{}

	// Repositories
	medicineRepo := repository.NewMedicineRepository(db)
	batchRepo := repository.NewBatchRepository(db)
	demandRepo := repository.NewDemandRepository(db)
	insightRepo := repository.NewInsightRepository(db)
	alertRepo := repository.NewAlertRepository(db)
	userRepo := authrepo.NewUserRepository(db)
	supplierRepo := orderrepo.NewSupplierRepository(db)
	orderRepo := orderrepo.NewOrderRepository(db)

	// Services
	jwtManager := jwt.NewManager(&cfg.JWT, clk)
	authService := authservice.NewAuthService(userRepo, jwtManager, log)
	inventoryService := service.NewInventoryService(medicineRepo, batchRepo, alertRepo, dashboardCache, inventoryEvents, clk, log)
	insightEngine := service.NewInsightEngine(batchRepo, insightRepo, clk, inventoryEvents, m, log)
	alertScanner := service.NewAlertScanner(batchRepo, alertRepo, clk, dashboardCache, inventoryEvents, m, log)
	generator := forecast.NewGenerator(demandRepo, clk, cfg.Forecast.HistoryDays, log)
	orderService := orderservice.NewOrderService(supplierRepo, orderRepo, medicineRepo, insightRepo, orderEvents, clk, log)

	if rmq != nil {
		demandConsumer, err := consumers.NewDemandConsumer(rmq, demandRepo, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create demand consumer")
		}
		if err := demandConsumer.Start(ctx); err != nil {
			log.Fatal().Err(err).Msg("failed to start demand consumer")
		}
	}

	scheduler := service.NewScheduler(insightEngine, alertScanner, batchRepo, cfg.Scheduler.Interval, log)
	scheduler.Start(ctx)
	defer scheduler.Stop()

	// Handlers
	authenticate := authmw.Authenticate(jwtManager, log)
	authHandler := authhandler.NewAuthHandler(authService, log)
	inventoryHandlers := &handler.Handlers{
		Medicines: handler.NewMedicineHandler(inventoryService, log),
		Batches:   handler.NewBatchHandler(inventoryService, log),
		Alerts:    handler.NewAlertHandler(alertScanner, log),
		Insights:  handler.NewInsightHandler(insightEngine, log),
		Forecasts: handler.NewForecastHandler(generator, cfg.Forecast.MaxHorizon, log),
		Dashboard: handler.NewDashboardHandler(inventoryService, log),
	}
	orderHandler := orderhandler.NewOrderHandler(orderService, log)

	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(httputil.RequestID)
	r.Use(httputil.Logger(log))
	r.Use(httputil.Recoverer(log))
	r.Use(m.Middleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		health := map[string]interface{}{
			"status":   "healthy",
			"service":  serviceName,
			"database": db.Health(r.Context()),
		}
		if rmq != nil {
			health["rabbitmq"] = rmq.Health()
		}
		httputil.JSON(w, http.StatusOK, health)
	})
	r.Handle("/metrics", m.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		authHandler.Register(r, authenticate)

		r.Group(func(r chi.Router) {
			r.Use(authenticate)
			r.Use(httputil.RequireOrganization)

			inventoryHandlers.Register(r)
			orderHandler.Register(r)
		})
	})

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

	// Cancel context to stop the consumer and scheduler
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}
