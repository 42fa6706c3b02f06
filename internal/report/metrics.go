package report

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/lendconsole/dashboard/internal/dashboard"
)

// Metrics exposes Prometheus collectors for report fetches.
type Metrics struct {
	fetches  *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// NewMetrics registers the fetch metrics. A nil registerer uses the default registerer.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		defaultOnce.Do(func() {
			defaultMetrics = buildMetrics(prometheus.DefaultRegisterer)
		})
		return defaultMetrics
	}
	return buildMetrics(registerer)
}

func buildMetrics(registerer prometheus.Registerer) *Metrics {
	fetches := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dashboard_report_fetches_total",
		Help: "Report fetches partitioned by report and outcome.",
	}, []string{"report", "outcome"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dashboard_report_fetch_duration_seconds",
		Help:    "Latency of report fetches.",
		Buckets: prometheus.DefBuckets,
	}, []string{"report"})
	registerer.MustRegister(fetches, duration)
	return &Metrics{fetches: fetches, duration: duration}
}

// Instrument wraps a fetcher so every call is counted and timed.
func (m *Metrics) Instrument(next dashboard.Fetcher) dashboard.Fetcher {
	if m == nil {
		return next
	}
	return &instrumentedFetcher{next: next, metrics: m}
}

type instrumentedFetcher struct {
	next    dashboard.Fetcher
	metrics *Metrics
}

func (f *instrumentedFetcher) Fetch(ctx context.Context, reportName string, officeID int64) (*dashboard.RawResult, error) {
	start := time.Now()
	res, err := f.next.Fetch(ctx, reportName, officeID)
	f.metrics.duration.WithLabelValues(reportName).Observe(time.Since(start).Seconds())
	f.metrics.fetches.WithLabelValues(reportName, outcome(res, err)).Inc()
	return res, err
}

func outcome(res *dashboard.RawResult, err error) string {
	var fetchErr *FetchError
	switch {
	case err == nil && res.IsEmpty():
		return "empty"
	case err == nil:
		return "ok"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	case errors.As(err, &fetchErr):
		return "http_error"
	default:
		return "error"
	}
}
