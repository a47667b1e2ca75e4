package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/stemsi/medsurvey/internal/config"
	"github.com/stemsi/medsurvey/internal/database"
	"github.com/stemsi/medsurvey/internal/definition"
	"github.com/stemsi/medsurvey/internal/handler"
	"github.com/stemsi/medsurvey/internal/logger"
	"github.com/stemsi/medsurvey/internal/middleware"
	"github.com/stemsi/medsurvey/internal/repository"
	"github.com/stemsi/medsurvey/internal/router"
	"github.com/stemsi/medsurvey/internal/service"
	"github.com/stemsi/medsurvey/internal/sheets"
	"github.com/stemsi/medsurvey/internal/validator"
	"github.com/stemsi/medsurvey/internal/worker"
	"github.com/stemsi/medsurvey/web"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("log_level", cfg.LogLevel).
		Str("sink", cfg.Sink).
		Msg("Starting Medical Survey server")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Load Survey Definition ────────────────────────────────────────
	def, err := definition.Load(cfg.DefinitionPath, cfg.EndpointURL)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DefinitionPath).Msg("Failed to load survey definition")
	}
	log.Info().
		Str("variant", def.ID).
		Int("questions", len(def.Questions)).
		Int("profile_fields", len(def.Profile)).
		Msg("Survey definition loaded")

	sender, err := sheets.New(cfg.Sink, def.Endpoint, cfg.XLSXPath, cfg.HTTPTimeout, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build submission sink")
	}

	// ─── Connect to Redis ──────────────────────────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	healthChecks := map[string]handler.HealthCheck{
		"redis": func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
	}

	// ─── Connect to PostgreSQL (delivery audit, optional) ──────────────
	var (
		pool         *pgxpool.Pool
		deliveryRepo repository.DeliveryRepository
		deliverySvc  service.DeliveryService
		recorder     service.DeliveryRecorder
	)
	if cfg.AuditEnabled() {
		if err := database.MigrateUp(cfg.DatabaseURL, log); err != nil {
			log.Fatal().Err(err).Msg("Failed to migrate audit database")
		}
		pool, err = database.NewPostgresPool(ctx, cfg, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
		}
		defer pool.Close()

		deliveryRepo = repository.NewDeliveryRepository(pool)
		deliverySvc = service.NewDeliveryService(deliveryRepo)
		recorder = repository.NewDeliveryQueue(rdb)
		healthChecks["postgres"] = pool.Ping
	} else {
		log.Info().Msg("DATABASE_URL not set, delivery audit goes to the log only")
	}

	// ─── Initialize Services ──────────────────────────────────────────
	tokens := service.NewTokenService(cfg.FormSecret, cfg.FormTokenTTL)
	formService := service.NewFormService(
		def,
		repository.NewFormStateRepository(rdb, cfg.FormTTL),
		sender,
		tokens,
		service.NewEventPublisher(rdb),
		recorder,
		cfg.SubmitLockTTL,
		log,
	)

	// ─── Initialize Handlers ──────────────────────────────────────────
	queueLen := func(ctx context.Context) (int64, error) {
		return rdb.LLen(ctx, config.WorkerKey.PersistDeliveriesQueue).Result()
	}
	handlers := &router.Handlers{
		Page:   handler.NewPageHandler(def),
		Form:   handler.NewFormHandler(formService, log),
		WS:     handler.NewWSHandler(rdb, formService, log, cfg.AllowedOrigins),
		System: handler.NewSystemHandler(healthChecks, queueLen, deliverySvc, def.ID, log),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())
	var workers sync.WaitGroup
	if deliveryRepo != nil {
		deliveryWorker := worker.NewDeliveryWorker(deliveryRepo, rdb, log)
		workers.Add(1)
		go func() {
			defer workers.Done()
			deliveryWorker.Start(workerCtx)
		}()
	}

	// ─── Setup Router ──────────────────────────────────────────────────
	page, err := web.Templates()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to parse page templates")
	}
	limiter := middleware.NewRateLimiter(cfg.SubmitRateRPM)
	defer limiter.Stop()

	r := router.SetupRouter(tokens, def.ID, handlers, limiter, page, cfg)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. Stop accepting new HTTP requests. In-flight submissions finish.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Stop background workers and wait for the queue to drain.
	workerCancel()
	workers.Wait()

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
