package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"

	"github.com/pildhora/pildhora-sync/internal/adapter/api"
	"github.com/pildhora/pildhora-sync/internal/adapter/api/middleware"
	"github.com/pildhora/pildhora-sync/internal/adapter/metrics"
	"github.com/pildhora/pildhora-sync/internal/adapter/repository/postgres"
	redisrepo "github.com/pildhora/pildhora-sync/internal/adapter/repository/redis"
	"github.com/pildhora/pildhora-sync/internal/pkg/config"
	"github.com/pildhora/pildhora-sync/internal/pkg/logger"
	"github.com/pildhora/pildhora-sync/internal/usecase"

	_ "github.com/lib/pq"
)

func main() {
	cfg, err := config.LoadServer()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := logger.New(cfg.LogLevel)
	slog.SetDefault(logger)
	logger.Info("starting pildhora remote store service")

	m := metrics.NewServerMetrics()

	// --- Metrics Server ---
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{
		Addr:    cfg.MetricsAddr,
		Handler: metricsMux,
	}
	go func() {
		logger.Info("starting metrics server", "addr", metricsServer.Addr)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server failed", "error", err)
		}
	}()

	// --- Graceful Shutdown Context ---
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Database and Redis Connections ---
	db, err := sql.Open("postgres", cfg.PostgresURL)
	if err != nil {
		logger.Error("failed to open postgres connection", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		logger.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	logger.Info("connected to postgres")

	redisOpts, err := goredis.ParseURL(cfg.RedisAddr)
	if err != nil {
		logger.Error("failed to parse redis url", "error", err)
		os.Exit(1)
	}
	redisClient := goredis.NewClient(redisOpts)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("could not connect to redis, rate limiting will fail open", "error", err)
	}

	// --- Repositories ---
	eventRepo := postgres.NewEventRepository(db, logger)
	medicationRepo := postgres.NewMedicationRepository(db, logger)
	patientRepo := postgres.NewPatientRepository(db, logger)
	deviceKeyRepo := postgres.NewDeviceKeyRepository(db, logger, cfg.DeviceKeyCacheTTL, m)
	rateLimiter := redisrepo.NewRateLimitRepository(redisClient, cfg.EventRateLimit, cfg.EventRateWindow, logger)

	// --- Use Cases and Router ---
	ingestUseCase := usecase.NewIngestEventUseCase(eventRepo, rateLimiter, m, logger)
	router := api.NewRouter(logger, deviceKeyRepo, ingestUseCase, medicationRepo, patientRepo, cfg.MaxEventSize)

	server := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      middleware.Logging(logger)(router),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  15 * time.Second,
	}

	go func() {
		logger.Info("starting ingest server", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("ingest server failed", "error", err)
			stop()
		}
	}()

	// --- Wait for shutdown signal ---
	<-ctx.Done()
	logger.Info("shutting down servers...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("ingest server shutdown failed", "error", err)
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server shutdown failed", "error", err)
	}

	logger.Info("server shut down gracefully")
}
