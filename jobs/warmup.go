package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/lendconsole/dashboard/internal/dashboard"
	jobmetrics "github.com/lendconsole/dashboard/internal/jobs"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// Invalidator drops cached report results.
type Invalidator interface {
	Bump(ctx context.Context) error
}

// WarmupJob runs every dashboard widget for a set of offices so that the report cache
// is hot before users open the dashboard.
type WarmupJob struct {
	Aggregator  *dashboard.Aggregator
	Invalidator Invalidator
	Offices     []int64
	Logger      *slog.Logger
	Metrics     *jobmetrics.Metrics
}

// NewWarmupJob wires dependencies for the warmup handler.
func NewWarmupJob(agg *dashboard.Aggregator, invalidator Invalidator, offices []int64, logger *slog.Logger, metrics *jobmetrics.Metrics) *WarmupJob {
	return &WarmupJob{Aggregator: agg, Invalidator: invalidator, Offices: offices, Logger: logger, Metrics: metrics}
}

// Handle processes warmup tasks.
func (j *WarmupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Aggregator == nil {
		return errors.New("dashboard warmup: handler not configured")
	}
	var payload WarmupPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("dashboard warmup: decode payload: %w: %w", err, asynq.SkipRetry)
		}
	}
	return j.Run(ctx, payload)
}

// Run performs one warmup pass.
func (j *WarmupJob) Run(ctx context.Context, payload WarmupPayload) (resultErr error) {
	tracker := j.metrics().Track("dashboard_warmup")
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	offices := payload.Offices
	if len(offices) == 0 {
		offices = j.Offices
	}
	logger := j.logger().With(slog.Int("offices", len(offices)))
	if len(offices) == 0 {
		logger.Info("no offices configured for warmup")
		return nil
	}

	if payload.Invalidate && j.Invalidator != nil {
		if err := j.Invalidator.Bump(ctx); err != nil {
			logger.Error("bump report cache", slog.Any("error", err))
			return err
		}
	}

	start := time.Now()
	var trends, pairs int
	for _, office := range offices {
		officeCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		t, p, err := j.warmOffice(officeCtx, office)
		cancel()
		trends += t
		pairs += p
		if err != nil {
			logger.Error("warm office", slog.Int64("office_id", office), slog.Any("error", err))
			j.metrics().AddWarmed("trend", trends)
			j.metrics().AddWarmed("pair", pairs)
			return err
		}
	}
	j.metrics().AddWarmed("trend", trends)
	j.metrics().AddWarmed("pair", pairs)
	logger.Info("completed dashboard warmup", slog.Int("trends", trends), slog.Int("pairs", pairs), slog.Duration("duration", time.Since(start)))
	return nil
}

func (j *WarmupJob) warmOffice(ctx context.Context, office int64) (int, int, error) {
	var trends, pairs int
	for _, g := range dashboard.Granularities {
		if _, err := j.Aggregator.Aggregate(ctx, office, g); err != nil {
			return trends, pairs, err
		}
		trends++
	}
	for _, kind := range dashboard.PairKinds {
		if _, err := j.Aggregator.AggregatePair(ctx, office, kind); err != nil {
			return trends, pairs, err
		}
		pairs++
	}
	return trends, pairs, nil
}

func (j *WarmupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskDashboardWarmup))
	}
	return slog.Default().With(slog.String("job", TaskDashboardWarmup))
}

func (j *WarmupJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
