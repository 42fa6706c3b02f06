// Package chart holds the in-memory chart state behind a dashboard widget.
package chart

import (
	"html/template"
	"slices"
	"sync"

	"github.com/lendconsole/dashboard/internal/dashboard/svg"
)

// Kind selects how a widget renders.
type Kind int

const (
	// KindLine draws trend series as lines.
	KindLine Kind = iota
	// KindBars draws a pair of values as bars.
	KindBars
)

// State is the data a chart currently displays.
type State struct {
	Labels   []string
	Series   [][]float64
	Fallback bool
	// Revision increases whenever the displayed content changes.
	Revision int
}

// Widget is a ChartSink that keeps one chart state and updates it in place.
type Widget struct {
	kind   Kind
	title  string
	names  []string
	width  int
	height int

	mu     sync.RWMutex
	state  *State
	cached template.HTML
}

// NewWidget creates a widget; names label each series in order.
func NewWidget(kind Kind, title string, names ...string) *Widget {
	return &Widget{kind: kind, title: title, names: names, width: svg.DefaultWidth, height: svg.DefaultHeight}
}

// SetData replaces the displayed data. The state is created on first use and mutated
// afterwards; identical data leaves it untouched.
func (w *Widget) SetData(labels []string, series ...[]float64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state == nil {
		w.state = &State{}
	}
	if !w.state.Fallback && slices.Equal(w.state.Labels, labels) && equalSeries(w.state.Series, series) {
		return
	}
	w.state.Labels = slices.Clone(labels)
	w.state.Series = make([][]float64, len(series))
	for i, s := range series {
		w.state.Series[i] = slices.Clone(s)
	}
	w.state.Fallback = false
	w.state.Revision++
	w.cached = ""
}

// ShowFallback switches the widget to its no-data presentation.
func (w *Widget) ShowFallback() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state == nil {
		w.state = &State{}
	}
	if w.state.Fallback {
		return
	}
	w.state.Fallback = true
	w.state.Revision++
	w.cached = ""
}

// Snapshot returns a copy of the current state and whether one exists yet.
func (w *Widget) Snapshot() (State, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.state == nil {
		return State{}, false
	}
	out := *w.state
	out.Labels = slices.Clone(w.state.Labels)
	out.Series = make([][]float64, len(w.state.Series))
	for i, s := range w.state.Series {
		out.Series[i] = slices.Clone(s)
	}
	return out, true
}

// Destroy drops the chart state.
func (w *Widget) Destroy() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.state = nil
	w.cached = ""
}

// Render returns the SVG for the current state, or "" before the first update and in the
// fallback state.
func (w *Widget) Render() (template.HTML, error) {
	w.mu.RLock()
	if w.state == nil || w.state.Fallback {
		w.mu.RUnlock()
		return "", nil
	}
	if w.cached != "" {
		defer w.mu.RUnlock()
		return w.cached, nil
	}
	state := *w.state
	w.mu.RUnlock()

	html, err := Render(w.kind, w.title, w.names, w.width, w.height, state.Labels, state.Series)
	if err != nil {
		return "", err
	}

	w.mu.Lock()
	if w.state != nil && w.state.Revision == state.Revision {
		w.cached = html
	}
	w.mu.Unlock()
	return html, nil
}

// Render draws labels and series with the renderer for kind.
func Render(kind Kind, title string, names []string, width, height int, labels []string, series [][]float64) (template.HTML, error) {
	named := make([]svg.Series, len(series))
	for i, values := range series {
		named[i] = svg.Series{Values: values}
		if i < len(names) {
			named[i].Name = names[i]
		}
	}
	if kind == KindBars {
		return svg.Bars(width, height, labels, named, svg.BarOpts{Title: title})
	}
	return svg.Line(width, height, labels, named, svg.LineOpts{Title: title, ShowDots: true})
}

func equalSeries(a, b [][]float64) bool {
	return slices.EqualFunc(a, b, func(x, y []float64) bool { return slices.Equal(x, y) })
}
