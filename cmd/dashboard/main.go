package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/lendconsole/dashboard/internal/app"
	"github.com/lendconsole/dashboard/internal/dashboard"
	dashboardhttp "github.com/lendconsole/dashboard/internal/dashboard/http"
	"github.com/lendconsole/dashboard/internal/observability"
	"github.com/lendconsole/dashboard/internal/platform/cache"
	"github.com/lendconsole/dashboard/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	redisClient := cache.New(ctx, cfg.RedisAddr, logger)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()

	reports, err := app.NewReportStack(ctx, cfg, redisClient, metrics.Registerer(), logger)
	if err != nil {
		logger.Error("init report source", slog.Any("error", err))
		os.Exit(1)
	}
	defer reports.Close()

	// Bumps published by the worker or dashctl invalidate this instance's cache keys.
	if err := reports.Fetcher.ListenForInvalidation(ctx); err != nil {
		logger.Warn("cache invalidation listener", slog.Any("error", err))
	}

	aggregator := dashboard.NewAggregator(reports.Fetcher, logger)
	widgets := dashboardhttp.NewRegistry(512, 30*time.Minute)
	go widgets.RunSweeper(ctx, time.Minute)
	dashboardHandler := dashboardhttp.NewHandler(logger, aggregator, widgets)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		DashboardHandler: dashboardHandler,
		JobHandler:       jobHandler,
		Metrics:          metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
