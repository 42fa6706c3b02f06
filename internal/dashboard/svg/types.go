package svg

// Series is one named line or bar group.
type Series struct {
	Name   string
	Color  string
	Values []float64
}

// LineOpts customises the line chart renderer.
type LineOpts struct {
	Title       string
	Description string
	AxisColor   string
	GridColor   string
	Padding     float64
	ShowDots    bool
	ShowArea    bool
	TickCount   int
}

// BarOpts customises the bar chart renderer.
type BarOpts struct {
	Title       string
	Description string
	AxisColor   string
	GridColor   string
	Padding     float64
	TickCount   int
}

// Defaults for dashboard widgets.
const (
	DefaultWidth   = 720
	DefaultHeight  = 240
	DefaultPadding = 28.0
	DefaultTicks   = 5
)

// Palette colours series that do not set their own.
var Palette = []string{"#2563eb", "#f97316", "#16a34a", "#dc2626", "#7c3aed"}
