package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/pildhora/pildhora-sync/internal/adapter/agentapi"
	"github.com/pildhora/pildhora-sync/internal/adapter/api/middleware"
	"github.com/pildhora/pildhora-sync/internal/adapter/metrics"
	"github.com/pildhora/pildhora-sync/internal/adapter/remote"
	"github.com/pildhora/pildhora-sync/internal/adapter/repository/outbox"
	"github.com/pildhora/pildhora-sync/internal/pkg/config"
	"github.com/pildhora/pildhora-sync/internal/pkg/logger"
	"github.com/pildhora/pildhora-sync/internal/usecase"
)

func main() {
	cfg, err := config.LoadAgent()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := logger.New(cfg.LogLevel)
	slog.SetDefault(logger)
	logger.Info("starting pildhora agent")

	m := metrics.NewAgentMetrics()

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

	// --- Local Outbox ---
	queue, err := outbox.NewOutboxRepository(cfg.OutboxDir, cfg.OutboxSegmentSize, cfg.OutboxMaxDiskSize, logger)
	if err != nil {
		logger.Error("failed to open outbox", "error", err)
		os.Exit(1)
	}
	defer queue.Close()

	// --- Remote Store Clients ---
	client := remote.NewClient(cfg.RemoteBaseURL, cfg.DeviceKey, cfg.RemoteTimeout)
	publisher := remote.NewEventPublisher(client, logger)
	directory := remote.NewDirectoryClient(client)
	medicationStore := remote.NewMedicationClient(client)

	// --- Sync Engine ---
	burst := int(cfg.DeliveryRate)
	if burst < 1 {
		burst = 1
	}
	limiter := rate.NewLimiter(rate.Limit(cfg.DeliveryRate), burst)
	engine := usecase.NewSyncEngine(queue, publisher, cfg.SyncInterval, limiter, m, logger)
	go engine.Run(ctx)

	// SIGUSR1 is the device-wake notification: attempt a pass immediately,
	// the same as an app coming to the foreground.
	wake := make(chan os.Signal, 1)
	signal.Notify(wake, syscall.SIGUSR1)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-wake:
				logger.Info("wake signal received, triggering sync pass")
				engine.TriggerNow()
			}
		}
	}()

	// --- Medication Service and Local API ---
	factory := usecase.NewEventFactory(directory, cfg.CaregiverID, logger)
	service := usecase.NewMedicationService(medicationStore, factory, queue, engine, logger)

	router := agentapi.NewRouter(service, queue, engine, logger)
	localServer := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      middleware.Logging(logger)(router),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 0, // the status stream stays open indefinitely
		IdleTimeout:  15 * time.Second,
	}

	go func() {
		logger.Info("starting local API server", "addr", localServer.Addr)
		if err := localServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("local API server failed", "error", err)
			stop()
		}
	}()

	// --- Wait for shutdown signal ---
	<-ctx.Done()
	logger.Info("shutting down agent...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	if err := localServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("local API server shutdown failed", "error", err)
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server shutdown failed", "error", err)
	}

	logger.Info("agent shut down gracefully")
}
