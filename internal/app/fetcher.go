package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/lendconsole/dashboard/internal/dashboard"
	"github.com/lendconsole/dashboard/internal/platform/db"
	"github.com/lendconsole/dashboard/internal/report"
)

// ReportStack is the fetch chain shared by the server, the worker and the CLI:
// source, metrics, then the redis cache.
type ReportStack struct {
	Fetcher *report.CachedFetcher
	pool    *pgxpool.Pool
}

// Close releases the database pool when the postgres source is in use.
func (s *ReportStack) Close() {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
}

// NewReportStack builds the configured report source behind metrics and the cache.
// registerer may be nil to skip fetch metrics.
func NewReportStack(ctx context.Context, cfg *Config, redisClient *redis.Client, registerer prometheus.Registerer, logger *slog.Logger) (*ReportStack, error) {
	stack := &ReportStack{}

	var source dashboard.Fetcher
	switch cfg.ReportSource {
	case SourcePostgres:
		pool, err := db.New(ctx, cfg.PGDSN, db.Options{MaxConns: 8, ApplicationName: "dashboard"})
		if err != nil {
			return nil, err
		}
		stack.pool = pool
		source = report.NewPGSource(pool)
	default:
		overrides, err := report.ParseOverrides(cfg.ReportIDs)
		if err != nil {
			return nil, fmt.Errorf("app: report ids: %w", err)
		}
		source = report.NewHTTPClient(report.ClientConfig{
			BaseURL:  cfg.ReportBaseURL,
			Tenant:   cfg.ReportTenant,
			Username: cfg.ReportUsername,
			Password: cfg.ReportPassword,
			Timeout:  cfg.ReportTimeout,
		}, report.NewRegistry(overrides))
	}

	if registerer != nil {
		source = report.NewMetrics(registerer).Instrument(source)
	}
	stack.Fetcher = report.NewCachedFetcher(source, redisClient, cfg.CacheTTL, logger)
	logger.Info("report source ready", slog.String("source", cfg.ReportSource), slog.Duration("cache_ttl", cfg.CacheTTL))
	return stack, nil
}
