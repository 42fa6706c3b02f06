package dashboardhttp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/lendconsole/dashboard/internal/dashboard"
	"github.com/lendconsole/dashboard/internal/dashboard/chart"
	"github.com/lendconsole/dashboard/internal/platform/httpx"
)

const requestTimeout = 20 * time.Second

// Series names shown on the trend chart.
var trendSeriesNames = []string{"New Clients", "Loans Disbursed"}

// Handler serves dashboard data, charts and exports.
type Handler struct {
	logger    *slog.Logger
	agg       *dashboard.Aggregator
	widgets   *Registry
	validator *validator.Validate
	csvPool   sync.Pool
	now       func() time.Time
}

// NewHandler constructs the dashboard HTTP handler.
func NewHandler(logger *slog.Logger, agg *dashboard.Aggregator, widgets *Registry) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if widgets == nil {
		widgets = NewRegistry(0, 0)
	}
	h := &Handler{
		logger:    logger,
		agg:       agg,
		widgets:   widgets,
		validator: validator.New(),
		now:       time.Now,
	}
	_ = h.validator.RegisterValidation("granularity", func(fl validator.FieldLevel) bool {
		_, err := dashboard.ParseGranularity(fl.Field().String())
		return err == nil
	})
	_ = h.validator.RegisterValidation("widgetkind", func(fl validator.FieldLevel) bool {
		_, err := parseWidgetKind(fl.Field().String())
		return err == nil
	})
	h.csvPool.New = func() interface{} { return new(bytes.Buffer) }
	return h
}

// WithNow overrides the handler clock for testing.
func (h *Handler) WithNow(fn func() time.Time) {
	if fn != nil {
		h.now = fn
		h.agg.WithNow(fn)
	}
}

type selectionQuery struct {
	OfficeID    int64  `validate:"required,gt=0"`
	Granularity string `validate:"required,granularity"`
}

type trendResponse struct {
	dashboard.Trend
	State dashboard.State `json:"state"`
}

type pairResponse struct {
	dashboard.Pair
	State dashboard.State `json:"state"`
}

func (h *Handler) handleTrends(w http.ResponseWriter, r *http.Request) {
	trend, ok := h.loadTrend(w, r)
	if !ok {
		return
	}
	httpx.JSON(w, http.StatusOK, trendResponse{Trend: trend, State: trendState(trend)})
}

func (h *Handler) handleTrendsSVG(w http.ResponseWriter, r *http.Request) {
	trend, ok := h.loadTrend(w, r)
	if !ok {
		return
	}
	if trend.Empty {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	html, err := chart.Render(chart.KindLine, "Client Trends by "+trend.Granularity.String(), trendSeriesNames, 0, 0,
		trend.Labels, trend.Series())
	if err != nil {
		h.handleServerError(w, "render trend chart", err)
		return
	}
	w.Header().Set("Content-Type", "image/svg+xml")
	if _, err := w.Write([]byte(html)); err != nil {
		h.logError("stream svg", err)
	}
}

func (h *Handler) handleTrendsCSV(w http.ResponseWriter, r *http.Request) {
	trend, ok := h.loadTrend(w, r)
	if !ok {
		return
	}

	buf := h.csvPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer func() {
		buf.Reset()
		h.csvPool.Put(buf)
	}()

	if err := WriteTrendCSV(buf, trend); err != nil {
		h.handleServerError(w, "write trend csv", err)
		return
	}

	filename := fmt.Sprintf("client-trends-%d-%s-%s.csv", trend.OfficeID, strings.ToLower(trend.Granularity.String()), h.now().Format("20060102"))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", filename))
	if _, err := w.Write(buf.Bytes()); err != nil {
		h.logError("stream csv", err)
	}
}

func (h *Handler) handlePair(w http.ResponseWriter, r *http.Request) {
	kind, err := dashboard.ParsePairKind(chi.URLParam(r, "kind"))
	if err != nil {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "unknown pair widget")
		return
	}
	officeID, err := h.parseOffice(r)
	if err != nil {
		h.handleValidationFailure(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	pair, err := h.agg.AggregatePair(ctx, officeID, kind)
	if err != nil {
		h.handleFetchError(w, "load pair", err)
		return
	}
	state := dashboard.StateReady
	if pair.Fallback {
		state = dashboard.StateFallback
	}
	httpx.JSON(w, http.StatusOK, pairResponse{Pair: pair, State: state})
}

func (h *Handler) loadTrend(w http.ResponseWriter, r *http.Request) (dashboard.Trend, bool) {
	sel, err := h.parseSelection(r)
	if err != nil {
		h.handleValidationFailure(w, err)
		return dashboard.Trend{}, false
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	trend, err := h.agg.Aggregate(ctx, sel.OfficeID, sel.Granularity)
	if err != nil {
		h.handleFetchError(w, "load trend", err)
		return dashboard.Trend{}, false
	}
	return trend, true
}

func (h *Handler) parseSelection(r *http.Request) (dashboard.Selection, error) {
	officeID, err := h.parseOffice(r)
	if err != nil {
		return dashboard.Selection{}, err
	}
	token := strings.TrimSpace(r.URL.Query().Get("granularity"))
	if token == "" {
		token = dashboard.DefaultSelection.Granularity.String()
	}
	query := selectionQuery{OfficeID: officeID, Granularity: token}
	if err := h.validate(query); err != nil {
		return dashboard.Selection{}, err
	}
	g, err := dashboard.ParseGranularity(token)
	if err != nil {
		return dashboard.Selection{}, validationError{field: "granularity"}
	}
	return dashboard.Selection{OfficeID: officeID, Granularity: g}, nil
}

func (h *Handler) parseOffice(r *http.Request) (int64, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("office_id"))
	if raw == "" {
		return dashboard.DefaultSelection.OfficeID, nil
	}
	officeID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || officeID <= 0 {
		return 0, validationError{field: "office_id"}
	}
	return officeID, nil
}

func (h *Handler) validate(v any) error {
	if err := h.validator.Struct(v); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			return validationError{field: toSnake(fieldErrs[0].Field())}
		}
		return err
	}
	return nil
}

type validationError struct {
	field string
}

func (e validationError) Error() string {
	return fmt.Sprintf("invalid %s", e.field)
}

func (e validationError) Unwrap() error {
	return httpx.ErrValidation
}

func (h *Handler) handleValidationFailure(w http.ResponseWriter, err error) {
	var vErr validationError
	if errors.As(err, &vErr) {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", vErr.Error())
		return
	}
	h.handleServerError(w, "validate request", err)
}

// handleFetchError hides backend details from the caller.
func (h *Handler) handleFetchError(w http.ResponseWriter, msg string, err error) {
	h.logError(msg, err)
	if errors.Is(err, context.DeadlineExceeded) {
		httpx.RespondError(w, err)
		return
	}
	httpx.RespondError(w, fmt.Errorf("%w: %w", httpx.ErrUpstream, err))
}

func (h *Handler) handleServerError(w http.ResponseWriter, msg string, err error) {
	h.logError(msg, err)
	httpx.RespondError(w, err)
}

func (h *Handler) logError(msg string, err error) {
	h.logger.Error(msg, slog.Any("error", err))
}

func trendState(t dashboard.Trend) dashboard.State {
	if t.Empty {
		return dashboard.StateFallback
	}
	return dashboard.StateReady
}

func toSnake(field string) string {
	switch field {
	case "OfficeID":
		return "office_id"
	case "Granularity":
		return "granularity"
	case "Kind":
		return "kind"
	default:
		return strings.ToLower(field)
	}
}
