package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/lendconsole/dashboard/internal/app"
	"github.com/lendconsole/dashboard/internal/dashboard"
	"github.com/lendconsole/dashboard/internal/platform/cache"
	"github.com/lendconsole/dashboard/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
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

	telemetry := newTelemetry()
	telemetry.serve(ctx, cfg.WorkerMetricsAddr, logger)

	reports, err := app.NewReportStack(ctx, cfg, redisClient, telemetry.registry.Registerer(), logger)
	if err != nil {
		logger.Error("init report source", slog.Any("error", err))
		os.Exit(1)
	}
	defer reports.Close()

	offices, err := cfg.Offices()
	if err != nil {
		logger.Error("warmup offices", slog.Any("error", err))
		os.Exit(1)
	}

	aggregator := dashboard.NewAggregator(reports.Fetcher, logger)
	warmupJob := jobs.NewWarmupJob(aggregator, reports.Fetcher, offices, logger, telemetry.jobs)

	warmupTask, err := jobs.NewWarmupTask(jobs.WarmupPayload{})
	if err != nil {
		logger.Error("build warmup task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskDashboardWarmup, Handler: warmupJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.WarmupCron, Task: warmupTask, Options: []asynq.Option{asynq.Queue(jobs.QueueDefault), asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
