package main

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	jobmetrics "github.com/lendconsole/dashboard/internal/jobs"
	"github.com/lendconsole/dashboard/internal/observability"
)

// telemetry is the worker's metrics registry. Job and report fetch metrics register on
// it so the warmup alerts can see them.
type telemetry struct {
	registry *observability.Metrics
	jobs     *jobmetrics.Metrics
}

func newTelemetry() *telemetry {
	registry := observability.NewMetrics()
	return &telemetry{registry: registry, jobs: jobmetrics.NewMetrics(registry.Registerer())}
}

func (t *telemetry) router() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Method(http.MethodGet, "/metrics", t.registry.Handler())
	return r
}

// serve exposes the registry on addr until ctx ends.
func (t *telemetry) serve(ctx context.Context, addr string, logger *slog.Logger) {
	if addr == "" {
		logger.Info("worker metrics disabled")
		return
	}
	server := &http.Server{
		Addr:              addr,
		Handler:           t.router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("starting worker metrics server", slog.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("worker metrics server", slog.Any("error", err))
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("worker metrics shutdown", slog.Any("error", err))
		}
	}()
}
