package dashboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// State is the lifecycle position of a widget controller.
type State int

const (
	StateIdle State = iota
	StateFetching
	StateReady
	StateFallback
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFetching:
		return "fetching"
	case StateReady:
		return "ready"
	case StateFallback:
		return "fallback"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// MarshalText renders the state name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// ErrSuperseded is returned to a caller whose recompute was overtaken by a newer one.
var ErrSuperseded = errors.New("dashboard: recompute superseded by a newer selection")

// Selection is the combined value of a widget's selectors.
type Selection struct {
	OfficeID    int64       `json:"office_id"`
	Granularity Granularity `json:"granularity"`
}

// DefaultSelection is what a freshly created widget selects programmatically.
var DefaultSelection = Selection{OfficeID: 1, Granularity: Day}

// ChartSink receives chart data. SetData must tolerate repeated identical calls.
type ChartSink interface {
	SetData(labels []string, series ...[]float64)
	ShowFallback()
}

// Frame is the result of one recompute.
type Frame struct {
	Labels   []string
	Series   [][]float64
	Fallback bool
}

// Loader computes a frame for a selection.
type Loader func(ctx context.Context, sel Selection) (Frame, error)

// TrendLoader charts the dual-metric trend. Both sources empty is a fallback.
func TrendLoader(a *Aggregator) Loader {
	return func(ctx context.Context, sel Selection) (Frame, error) {
		trend, err := a.Aggregate(ctx, sel.OfficeID, sel.Granularity)
		if err != nil {
			return Frame{}, err
		}
		return Frame{
			Labels:   trend.Labels,
			Series:   trend.Series(),
			Fallback: trend.Empty,
		}, nil
	}
}

// PairLoader charts a single-metric pair widget; the granularity selector is ignored.
func PairLoader(a *Aggregator, kind PairKind) Loader {
	return func(ctx context.Context, sel Selection) (Frame, error) {
		pair, err := a.AggregatePair(ctx, sel.OfficeID, kind)
		if err != nil {
			return Frame{}, err
		}
		return Frame{Labels: pair.Labels, Series: [][]float64{pair.Values}, Fallback: pair.Fallback}, nil
	}
}

// Controller re-runs a widget's pipeline whenever its office or granularity selector
// changes, and pushes the outcome into the chart sink.
type Controller struct {
	office      *Cell[int64]
	granularity *Cell[Granularity]
	load        Loader
	sink        ChartSink
	logger      *slog.Logger

	mu      sync.Mutex
	state   State
	skip    int
	issued  uint64
	cancel  context.CancelFunc
	lastErr error
}

// NewController subscribes a loader and sink to a fresh pair of selector cells.
func NewController(load Loader, sink ChartSink, logger *slog.Logger) *Controller {
	c := &Controller{
		office:      NewCell(DefaultSelection.OfficeID),
		granularity: NewCell(DefaultSelection.Granularity),
		load:        load,
		sink:        sink,
		logger:      logger,
	}
	c.office.Subscribe(c.onChange)
	c.granularity.Subscribe(c.onChange)
	return c
}

// Office exposes the office selector.
func (c *Controller) Office() *Cell[int64] { return c.office }

// Granularity exposes the granularity selector.
func (c *Controller) Granularity() *Cell[Granularity] { return c.granularity }

// Initialize assigns default selector values programmatically. The assignment is
// delivered as one combined notification that the controller skips, so no fetch runs
// before a real selection.
func (c *Controller) Initialize(ctx context.Context, sel Selection) error {
	c.mu.Lock()
	c.skip = 1
	c.mu.Unlock()

	c.office.store(sel.OfficeID)
	c.granularity.store(sel.Granularity)
	return c.onChange(ctx)
}

// Refresh recomputes the current selection, bypassing any pending skip.
func (c *Controller) Refresh(ctx context.Context) error {
	c.mu.Lock()
	c.skip = 0
	c.mu.Unlock()
	return c.onChange(ctx)
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Err returns the failure behind StateFailed.
func (c *Controller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Selection returns the combined selector values.
func (c *Controller) Selection() Selection {
	return Selection{OfficeID: c.office.Value(), Granularity: c.granularity.Value()}
}

// Close cancels any in-flight recompute.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	// Bump the sequence so a late result is never applied.
	c.issued++
}

func (c *Controller) onChange(ctx context.Context) error {
	c.mu.Lock()
	if c.skip > 0 {
		c.skip--
		c.mu.Unlock()
		return nil
	}
	if c.cancel != nil {
		c.cancel()
	}
	c.issued++
	seq := c.issued
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	c.cancel = cancel
	c.state = StateFetching
	c.mu.Unlock()

	sel := c.Selection()
	frame, err := c.load(runCtx, sel)

	c.mu.Lock()
	defer c.mu.Unlock()
	if seq != c.issued {
		c.log().Debug("discarding stale recompute", slog.Uint64("seq", seq), slog.Uint64("latest", c.issued))
		return ErrSuperseded
	}
	c.cancel = nil
	if err != nil {
		c.state = StateFailed
		c.lastErr = err
		return err
	}
	c.lastErr = nil
	if frame.Fallback {
		c.state = StateFallback
		c.sink.ShowFallback()
		return nil
	}
	c.state = StateReady
	c.sink.SetData(frame.Labels, frame.Series...)
	return nil
}

func (c *Controller) log() *slog.Logger {
	if c.logger != nil {
		return c.logger
	}
	return slog.Default()
}
