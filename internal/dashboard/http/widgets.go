package dashboardhttp

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/lendconsole/dashboard/internal/dashboard"
	"github.com/lendconsole/dashboard/internal/dashboard/chart"
	"github.com/lendconsole/dashboard/internal/platform/httpx"
)

// WidgetKind names a widget that can be opened as a session.
type WidgetKind string

const (
	WidgetTrend      WidgetKind = "trend"
	WidgetCollection WidgetKind = "collection"
	WidgetDisbursal  WidgetKind = "disbursal"
)

var errUnknownWidget = errors.New("dashboard: unknown widget kind")

func parseWidgetKind(token string) (WidgetKind, error) {
	switch WidgetKind(token) {
	case WidgetTrend, WidgetCollection, WidgetDisbursal:
		return WidgetKind(token), nil
	}
	return "", errUnknownWidget
}

// ErrTooManyWidgets is returned when the registry is full.
var ErrTooManyWidgets = errors.New("dashboard: too many open widgets")

// Session is one open widget: a controller feeding a chart.
type Session struct {
	ID         string
	Kind       WidgetKind
	Controller *dashboard.Controller
	Chart      *chart.Widget

	mu       sync.Mutex
	lastSeen time.Time
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

func (s *Session) close() {
	s.Controller.Close()
	s.Chart.Destroy()
}

// Registry keeps the open widget sessions of this process.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
	limit    int
	idleTTL  time.Duration
}

// NewRegistry creates a registry. Zero values select defaults.
func NewRegistry(limit int, idleTTL time.Duration) *Registry {
	if limit <= 0 {
		limit = 512
	}
	if idleTTL <= 0 {
		idleTTL = 30 * time.Minute
	}
	return &Registry{sessions: map[string]*Session{}, limit: limit, idleTTL: idleTTL}
}

// Add stores a session, evicting idle ones first when the registry is full.
func (r *Registry) Add(s *Session, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.sessions) >= r.limit {
		r.sweepLocked(now)
	}
	if len(r.sessions) >= r.limit {
		return ErrTooManyWidgets
	}
	r.sessions[s.ID] = s
	return nil
}

// Get returns a live session.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Remove closes and drops a session.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()
	if ok {
		s.close()
	}
	return ok
}

// Sweep closes sessions idle for longer than the TTL and reports how many were dropped.
func (r *Registry) Sweep(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sweepLocked(now)
}

// Len reports the number of open sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

func (r *Registry) sweepLocked(now time.Time) int {
	dropped := 0
	for id, s := range r.sessions {
		if now.Sub(s.idleSince()) > r.idleTTL {
			delete(r.sessions, id)
			s.close()
			dropped++
		}
	}
	return dropped
}

// RunSweeper sweeps idle sessions every interval until ctx ends.
func (r *Registry) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			r.Sweep(now)
		}
	}
}

type createWidgetRequest struct {
	Kind string `json:"kind" validate:"required,widgetkind"`
}

type updateWidgetRequest struct {
	OfficeID    *int64  `json:"office_id" validate:"omitempty,gt=0"`
	Granularity *string `json:"granularity" validate:"omitempty,granularity"`
}

type widgetResponse struct {
	ID        string              `json:"id"`
	Kind      WidgetKind          `json:"kind"`
	State     dashboard.State     `json:"state"`
	Selection dashboard.Selection `json:"selection"`
	Labels    []string            `json:"labels,omitempty"`
	Series    [][]float64         `json:"series,omitempty"`
	SVG       template.HTML       `json:"svg,omitempty"`
}

func (h *Handler) handleCreateWidget(w http.ResponseWriter, r *http.Request) {
	var req createWidgetRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed body")
		return
	}
	if err := h.validate(req); err != nil {
		h.handleValidationFailure(w, err)
		return
	}
	kind, _ := parseWidgetKind(req.Kind)

	session := h.newSession(kind)
	// The default selection is applied programmatically and does not fetch.
	if err := session.Controller.Initialize(r.Context(), dashboard.DefaultSelection); err != nil {
		h.handleServerError(w, "initialize widget", err)
		return
	}
	session.touch(h.now())
	if err := h.widgets.Add(session, h.now()); err != nil {
		session.close()
		httpx.Problem(w, http.StatusServiceUnavailable, "Service Unavailable", err.Error())
		return
	}
	w.Header().Set("Location", "/dashboard/widgets/"+session.ID)
	h.respondWidget(w, http.StatusCreated, session)
}

func (h *Handler) handleUpdateWidget(w http.ResponseWriter, r *http.Request) {
	session, ok := h.lookupWidget(w, r)
	if !ok {
		return
	}
	var req updateWidgetRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed body")
		return
	}
	if err := h.validate(req); err != nil {
		h.handleValidationFailure(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	// Each selector change recomputes on its own, like two separate user picks.
	if req.OfficeID != nil {
		if err := session.Controller.Office().Set(ctx, *req.OfficeID); err != nil {
			h.handleWidgetError(w, err)
			return
		}
	}
	if req.Granularity != nil {
		g, _ := dashboard.ParseGranularity(*req.Granularity)
		if err := session.Controller.Granularity().Set(ctx, g); err != nil {
			h.handleWidgetError(w, err)
			return
		}
	}
	h.respondWidget(w, http.StatusOK, session)
}

func (h *Handler) handleRefreshWidget(w http.ResponseWriter, r *http.Request) {
	session, ok := h.lookupWidget(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	if err := session.Controller.Refresh(ctx); err != nil {
		h.handleWidgetError(w, err)
		return
	}
	h.respondWidget(w, http.StatusOK, session)
}

func (h *Handler) handleGetWidget(w http.ResponseWriter, r *http.Request) {
	session, ok := h.lookupWidget(w, r)
	if !ok {
		return
	}
	h.respondWidget(w, http.StatusOK, session)
}

func (h *Handler) handleWidgetSVG(w http.ResponseWriter, r *http.Request) {
	session, ok := h.lookupWidget(w, r)
	if !ok {
		return
	}
	html, err := session.Chart.Render()
	if err != nil {
		h.handleServerError(w, "render widget", err)
		return
	}
	if html == "" {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	w.Header().Set("Content-Type", "image/svg+xml")
	if _, err := w.Write([]byte(html)); err != nil {
		h.logError("stream widget svg", err)
	}
}

func (h *Handler) handleDeleteWidget(w http.ResponseWriter, r *http.Request) {
	if !h.widgets.Remove(chi.URLParam(r, "id")) {
		httpx.RespondError(w, fmt.Errorf("widget: %w", httpx.ErrNotFound))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) newSession(kind WidgetKind) *Session {
	var (
		sink *chart.Widget
		load dashboard.Loader
	)
	switch kind {
	case WidgetCollection:
		sink = chart.NewWidget(chart.KindBars, "Amount Collected")
		load = dashboard.PairLoader(h.agg, dashboard.PairCollection)
	case WidgetDisbursal:
		sink = chart.NewWidget(chart.KindBars, "Amount Disbursed")
		load = dashboard.PairLoader(h.agg, dashboard.PairDisbursal)
	default:
		sink = chart.NewWidget(chart.KindLine, "Client Trends", trendSeriesNames...)
		load = dashboard.TrendLoader(h.agg)
	}
	id := uuid.NewString()
	return &Session{
		ID:         id,
		Kind:       kind,
		Chart:      sink,
		Controller: dashboard.NewController(load, sink, h.logger.With("widget_id", id)),
	}
}

func (h *Handler) lookupWidget(w http.ResponseWriter, r *http.Request) (*Session, bool) {
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid widget id")
		return nil, false
	}
	session, ok := h.widgets.Get(id)
	if !ok {
		httpx.RespondError(w, fmt.Errorf("widget: %w", httpx.ErrNotFound))
		return nil, false
	}
	session.touch(h.now())
	return session, true
}

func (h *Handler) handleWidgetError(w http.ResponseWriter, err error) {
	if errors.Is(err, dashboard.ErrSuperseded) {
		httpx.Problem(w, http.StatusConflict, "Conflict", "superseded by a newer selection")
		return
	}
	h.handleFetchError(w, "recompute widget", err)
}

func (h *Handler) respondWidget(w http.ResponseWriter, status int, s *Session) {
	resp := widgetResponse{
		ID:        s.ID,
		Kind:      s.Kind,
		State:     s.Controller.State(),
		Selection: s.Controller.Selection(),
	}
	if snap, ok := s.Chart.Snapshot(); ok && !snap.Fallback {
		resp.Labels = snap.Labels
		resp.Series = snap.Series
		html, err := s.Chart.Render()
		if err != nil {
			h.logError("render widget", err)
		}
		resp.SVG = html
	}
	httpx.JSON(w, status, resp)
}
