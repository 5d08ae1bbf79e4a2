package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kanakkart/storefront-backend/internal/orders"
	"github.com/kanakkart/storefront-backend/internal/shipping"
	"github.com/kanakkart/storefront-backend/pkg/config"
	"github.com/kanakkart/storefront-backend/pkg/db"
	"github.com/kanakkart/storefront-backend/pkg/logger"
	"github.com/kanakkart/storefront-backend/pkg/metrics"
	"github.com/kanakkart/storefront-backend/pkg/shiprocket"
)

// shipment-sweeper re-dispatches confirmed orders whose courier registration
// failed. It is the safety net behind the synchronous dispatch attempt the
// API makes at confirmation time.
func main() {
	logg := logger.New(logger.Options{ServiceName: "shipment-sweeper"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "shipment-sweeper",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	srClient, err := shiprocket.NewClient(cfg.Shiprocket)
	if err != nil {
		logg.Error(context.Background(), "failed to create shiprocket client", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	jobMetrics := metrics.NewJobMetrics(registry)

	dispatcher, err := shipping.NewDispatcher(
		orders.NewRepository(dbClient.DB()),
		srClient,
		logg,
		jobMetrics,
		shipping.WithSweepLimit(cfg.Sweep.BatchSize),
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create shipment dispatcher", err)
		os.Exit(1)
	}

	if port := os.Getenv("METRICS_PORT"); port != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		go func() {
			if err := http.ListenAndServe(":"+port, mux); err != nil && err != http.ErrServerClosed {
				logg.Error(context.Background(), "metrics server stopped", err)
			}
		}()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-stop
		cancel()
	}()

	interval := cfg.Sweep.Interval
	if interval <= 0 {
		interval = 10 * time.Minute
	}

	runCtx := logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"interval": interval.String(),
		"batch":    cfg.Sweep.BatchSize,
	})
	logg.Info(runCtx, "starting shipment sweeper")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// First pass immediately so a crash-restart does not wait a full
	// interval to resume recovery.
	if err := dispatcher.Sweep(ctx); err != nil {
		logg.Error(runCtx, "shipment sweep failed", err)
	}

	for {
		select {
		case <-ctx.Done():
			logg.Info(runCtx, "shipment sweeper stopped")
			return
		case <-ticker.C:
			if err := dispatcher.Sweep(ctx); err != nil {
				logg.Error(runCtx, "shipment sweep failed", err)
			}
		}
	}
}
