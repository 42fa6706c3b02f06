package dashboardhttp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lendconsole/dashboard/internal/dashboard"
)

var fixedNow = time.Date(2025, time.March, 15, 10, 30, 0, 0, time.UTC)

type stubFetcher struct {
	mu      sync.Mutex
	results map[string]*dashboard.RawResult
	err     error
	calls   int
}

func (s *stubFetcher) Fetch(ctx context.Context, reportName string, officeID int64) (*dashboard.RawResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.results[reportName], nil
}

func (s *stubFetcher) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func newTestRouter(t *testing.T, fetcher dashboard.Fetcher) (http.Handler, *Handler) {
	t.Helper()
	h := NewHandler(nil, dashboard.NewAggregator(fetcher, nil), NewRegistry(4, time.Minute))
	h.WithNow(func() time.Time { return fixedNow })
	r := chi.NewRouter()
	h.MountRoutes(r)
	return r, h
}

func monthFetcher() *stubFetcher {
	return &stubFetcher{results: map[string]*dashboard.RawResult{
		"Client-Trends-By-Month": {Data: []dashboard.Row{{"_", "_", "March", "6"}, {"_", "_", "January", "2"}}},
		"Loan-Trends-By-Month":   {Data: []dashboard.Row{{"_", "_", "March", "3"}}},
		"Demand-Vs-Collection":   {Data: []dashboard.Row{{1200.0, 300.0}}},
		"Disbursal-Vs-Awaitingdisbursal": {Data: []dashboard.Row{{0.0, 0.0}}},
	}}
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestTrendsJSON(t *testing.T) {
	router, _ := newTestRouter(t, monthFetcher())
	rec := do(t, router, http.MethodGet, "/dashboard/trends?office_id=2&granularity=month", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body struct {
		OfficeID    int64    `json:"office_id"`
		Granularity string   `json:"granularity"`
		Labels      []string `json:"labels"`
		Clients     []int    `json:"clients"`
		Loans       []int    `json:"loans"`
		State       string   `json:"state"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, int64(2), body.OfficeID)
	assert.Equal(t, "Month", body.Granularity)
	assert.Equal(t, "ready", body.State)
	require.Len(t, body.Labels, dashboard.BucketCount)
	assert.Equal(t, "March", body.Labels[11])
	assert.Equal(t, 6, body.Clients[11])
	assert.Equal(t, 2, body.Clients[9])
	assert.Equal(t, 3, body.Loans[11])
}

func TestTrendsEmptyIsFallback(t *testing.T) {
	router, _ := newTestRouter(t, &stubFetcher{})
	rec := do(t, router, http.MethodGet, "/dashboard/trends", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"state":"fallback"`)

	rec = do(t, router, http.MethodGet, "/dashboard/trends.svg", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestTrendsValidation(t *testing.T) {
	router, _ := newTestRouter(t, monthFetcher())
	for _, target := range []string{
		"/dashboard/trends?office_id=abc",
		"/dashboard/trends?office_id=-1",
		"/dashboard/trends?granularity=Year",
	} {
		rec := do(t, router, http.MethodGet, target, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
		assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
	}
}

func TestTrendsBackendFailureIsBadGateway(t *testing.T) {
	router, _ := newTestRouter(t, &stubFetcher{err: errors.New("dial tcp: connection refused")})
	rec := do(t, router, http.MethodGet, "/dashboard/trends", "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.NotContains(t, rec.Body.String(), "connection refused")
}

func TestTrendsSVGAndCSV(t *testing.T) {
	router, _ := newTestRouter(t, monthFetcher())

	rec := do(t, router, http.MethodGet, "/dashboard/trends.svg?granularity=Month", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/svg+xml", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "New Clients")

	rec = do(t, router, http.MethodGet, "/dashboard/trends.csv?granularity=Month&office_id=2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "client-trends-2-month-20250315.csv")
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	require.Len(t, lines, dashboard.BucketCount+1)
	assert.Equal(t, "Month,New Clients,Loans Disbursed", lines[0])
	assert.Equal(t, "March,6,3", lines[12])
}

func TestPairs(t *testing.T) {
	router, _ := newTestRouter(t, monthFetcher())

	rec := do(t, router, http.MethodGet, "/dashboard/pairs/collection?office_id=1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"kind":"collection","office_id":1,"labels":["Pending","Collected"],"values":[1200,300],"fallback":false,"state":"ready"}`, rec.Body.String())

	rec = do(t, router, http.MethodGet, "/dashboard/pairs/disbursal", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"state":"fallback"`)

	rec = do(t, router, http.MethodGet, "/dashboard/pairs/pie", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

type widgetBody struct {
	ID        string      `json:"id"`
	Kind      string      `json:"kind"`
	State     string      `json:"state"`
	Labels    []string    `json:"labels"`
	Series    [][]float64 `json:"series"`
	SVG       string      `json:"svg"`
	Selection struct {
		OfficeID    int64  `json:"office_id"`
		Granularity string `json:"granularity"`
	} `json:"selection"`
}

func decodeWidget(t *testing.T, rec *httptest.ResponseRecorder) widgetBody {
	t.Helper()
	var body widgetBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body
}

func TestWidgetLifecycle(t *testing.T) {
	fetcher := monthFetcher()
	router, h := newTestRouter(t, fetcher)

	rec := do(t, router, http.MethodPost, "/dashboard/widgets", `{"kind":"trend"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decodeWidget(t, rec)
	assert.Equal(t, "idle", created.State)
	assert.Equal(t, int64(1), created.Selection.OfficeID)
	assert.Equal(t, "Day", created.Selection.Granularity)
	assert.Zero(t, fetcher.count(), "initial selection must not fetch")

	path := "/dashboard/widgets/" + created.ID
	rec = do(t, router, http.MethodPatch, path, `{"granularity":"Month"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decodeWidget(t, rec)
	assert.Equal(t, "ready", updated.State)
	assert.Equal(t, 2, fetcher.count())
	require.Len(t, updated.Series, 2)
	assert.Equal(t, 6.0, updated.Series[0][11])
	assert.True(t, strings.HasPrefix(updated.SVG, "<svg"))

	rec = do(t, router, http.MethodGet, path+"/chart.svg", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, router, http.MethodDelete, path, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Zero(t, h.widgets.Len())

	rec = do(t, router, http.MethodGet, path, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPairWidgetFallbackAndRefresh(t *testing.T) {
	fetcher := monthFetcher()
	router, _ := newTestRouter(t, fetcher)

	rec := do(t, router, http.MethodPost, "/dashboard/widgets", `{"kind":"disbursal"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	id := decodeWidget(t, rec).ID

	rec = do(t, router, http.MethodPost, "/dashboard/widgets/"+id+"/refresh", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeWidget(t, rec)
	assert.Equal(t, "fallback", body.State)
	assert.Empty(t, body.SVG)

	rec = do(t, router, http.MethodGet, "/dashboard/widgets/"+id+"/chart.svg", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestWidgetFailureIsBadGateway(t *testing.T) {
	fetcher := &stubFetcher{err: errors.New("timeout")}
	router, _ := newTestRouter(t, fetcher)

	rec := do(t, router, http.MethodPost, "/dashboard/widgets", `{"kind":"collection"}`)
	id := decodeWidget(t, rec).ID
	rec = do(t, router, http.MethodPatch, "/dashboard/widgets/"+id, `{"office_id":4}`)
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	rec = do(t, router, http.MethodGet, "/dashboard/widgets/"+id, "")
	body := decodeWidget(t, rec)
	assert.Equal(t, "failed", body.State)
	assert.Equal(t, int64(4), body.Selection.OfficeID)
}

func TestWidgetValidation(t *testing.T) {
	router, _ := newTestRouter(t, monthFetcher())

	rec := do(t, router, http.MethodPost, "/dashboard/widgets", `{"kind":"gauge"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = do(t, router, http.MethodPost, "/dashboard/widgets", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, router, http.MethodPost, "/dashboard/widgets", `{"kind":"trend"}`)
	id := decodeWidget(t, rec).ID
	rec = do(t, router, http.MethodPatch, "/dashboard/widgets/"+id, `{"granularity":"Quarter"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = do(t, router, http.MethodPatch, "/dashboard/widgets/"+id, `{"office_id":0}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, router, http.MethodGet, "/dashboard/widgets/not-a-uuid", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRegistryLimitAndSweep(t *testing.T) {
	h := NewHandler(nil, dashboard.NewAggregator(&stubFetcher{}, nil), nil)
	reg := NewRegistry(2, time.Minute)

	first := h.newSession(WidgetTrend)
	first.touch(fixedNow)
	require.NoError(t, reg.Add(first, fixedNow))
	second := h.newSession(WidgetCollection)
	second.touch(fixedNow.Add(2 * time.Minute))
	require.NoError(t, reg.Add(second, fixedNow.Add(2*time.Minute)))

	third := h.newSession(WidgetDisbursal)
	third.touch(fixedNow.Add(2 * time.Minute))
	require.NoError(t, reg.Add(third, fixedNow.Add(2*time.Minute)), "idle first session is evicted")
	_, ok := reg.Get(first.ID)
	assert.False(t, ok)

	fourth := h.newSession(WidgetTrend)
	require.ErrorIs(t, reg.Add(fourth, fixedNow.Add(2*time.Minute)), ErrTooManyWidgets)

	assert.Equal(t, 2, reg.Sweep(fixedNow.Add(10*time.Minute)))
	assert.Zero(t, reg.Len())
}
