package jobs

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lendconsole/dashboard/internal/dashboard"
	jobmetrics "github.com/lendconsole/dashboard/internal/jobs"
)

type recordingFetcher struct {
	mu      sync.Mutex
	calls   map[int64][]string
	failFor string
}

func (f *recordingFetcher) Fetch(ctx context.Context, reportName string, officeID int64) (*dashboard.RawResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = map[int64][]string{}
	}
	f.calls[officeID] = append(f.calls[officeID], reportName)
	if reportName == f.failFor {
		return nil, errors.New("backend down")
	}
	return &dashboard.RawResult{}, nil
}

type bumpCounter struct{ n int }

func (b *bumpCounter) Bump(ctx context.Context) error {
	b.n++
	return nil
}

func TestWarmupFetchesEveryWidget(t *testing.T) {
	fetcher := &recordingFetcher{}
	bumps := &bumpCounter{}
	job := NewWarmupJob(dashboard.NewAggregator(fetcher, nil), bumps, []int64{1, 2}, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))

	task, err := NewWarmupTask(WarmupPayload{Invalidate: true})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))

	assert.Equal(t, 1, bumps.n)
	for _, office := range []int64{1, 2} {
		assert.ElementsMatch(t, []string{
			"Client-Trends-By-Day", "Loan-Trends-By-Day",
			"Client-Trends-By-Week", "Loan-Trends-By-Week",
			"Client-Trends-By-Month", "Loan-Trends-By-Month",
			"Demand-Vs-Collection", "Disbursal-Vs-Awaitingdisbursal",
		}, fetcher.calls[office])
	}
}

func TestWarmupPayloadOfficesOverrideDefaults(t *testing.T) {
	fetcher := &recordingFetcher{}
	job := NewWarmupJob(dashboard.NewAggregator(fetcher, nil), nil, []int64{1}, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))

	require.NoError(t, job.Run(context.Background(), WarmupPayload{Offices: []int64{9}}))
	assert.NotContains(t, fetcher.calls, int64(1))
	assert.Len(t, fetcher.calls[9], 8)
}

func TestWarmupStopsOnFetchError(t *testing.T) {
	fetcher := &recordingFetcher{failFor: "Demand-Vs-Collection"}
	job := NewWarmupJob(dashboard.NewAggregator(fetcher, nil), nil, []int64{1, 2}, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))

	err := job.Run(context.Background(), WarmupPayload{})
	require.Error(t, err)
	assert.NotContains(t, fetcher.calls, int64(2))
}

func TestWarmupRejectsMalformedPayload(t *testing.T) {
	job := NewWarmupJob(dashboard.NewAggregator(&recordingFetcher{}, nil), nil, nil, nil, nil)
	err := job.Handle(context.Background(), asynq.NewTask(TaskDashboardWarmup, []byte("{")))
	require.ErrorIs(t, err, asynq.SkipRetry)
}

func TestJobsHealthWithoutInspector(t *testing.T) {
	r := chi.NewRouter()
	r.Route("/jobs", NewHandler(nil, nil).MountRoutes)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"queue":"default","pending":0}`, rec.Body.String())
}
