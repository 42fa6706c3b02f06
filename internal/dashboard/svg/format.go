package svg

import (
	"fmt"
	"math"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.English)

// FormatTick renders an axis value with grouping and a compact suffix for large values.
func FormatTick(v float64) string {
	abs := math.Abs(v)
	switch {
	case abs >= 1_000_000_000:
		return printer.Sprintf("%.1fB", v/1_000_000_000)
	case abs >= 1_000_000:
		return printer.Sprintf("%.1fM", v/1_000_000)
	case abs >= 10_000:
		return printer.Sprintf("%.1fk", v/1_000)
	default:
		if almostEqual(v, math.Round(v)) {
			return printer.Sprintf("%d", int64(math.Round(v)))
		}
		return printer.Sprintf("%.2f", v)
	}
}

func fallback(value, defaultValue string) string {
	if strings.TrimSpace(value) == "" {
		return defaultValue
	}
	return value
}

func seriesColor(s Series, idx int) string {
	return fallback(s.Color, Palette[idx%len(Palette)])
}

// bounds spans every value across all series, always including zero.
func bounds(series []Series) (float64, float64) {
	minVal, maxVal := 0.0, 0.0
	for _, s := range series {
		for _, v := range s.Values {
			minVal = math.Min(minVal, v)
			maxVal = math.Max(maxVal, v)
		}
	}
	if almostEqual(maxVal, minVal) {
		maxVal = minVal + 1
	}
	return minVal, maxVal
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func makeID(base, suffix string) string {
	cleaned := strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			return r
		}
		return '-'
	}, strings.ToLower(strings.TrimSpace(base)))
	cleaned = strings.Trim(cleaned, "-")
	if cleaned == "" {
		cleaned = "chart"
	}
	return fmt.Sprintf("%s-%s", cleaned, suffix)
}

func validate(labels []string, series []Series) error {
	if len(series) == 0 {
		return fmt.Errorf("svg: at least one series required")
	}
	if len(labels) == 0 {
		return fmt.Errorf("svg: labels required")
	}
	for _, s := range series {
		if len(s.Values) != len(labels) {
			return fmt.Errorf("svg: series %q has %d values for %d labels", s.Name, len(s.Values), len(labels))
		}
	}
	return nil
}

type frame struct {
	width, height   int
	padding         float64
	chartW, chartH  float64
	minVal, maxVal  float64
	scale           float64
	axisColor, grid string
	ticks           int
}

func newFrame(width, height int, padding float64, ticks int, axis, grid string, series []Series) (frame, error) {
	if width <= 0 {
		width = DefaultWidth
	}
	if height <= 0 {
		height = DefaultHeight
	}
	if padding <= 0 {
		padding = DefaultPadding
	}
	if ticks <= 0 {
		ticks = DefaultTicks
	}
	f := frame{
		width:     width,
		height:    height,
		padding:   padding,
		chartW:    float64(width) - 2*padding,
		chartH:    float64(height) - 2*padding,
		axisColor: fallback(axis, "#475569"),
		grid:      fallback(grid, "#cbd5e1"),
		ticks:     ticks,
	}
	if f.chartW <= 0 || f.chartH <= 0 {
		return frame{}, fmt.Errorf("svg: viewport too small")
	}
	f.minVal, f.maxVal = bounds(series)
	f.scale = f.chartH / (f.maxVal - f.minVal)
	return f, nil
}

func (f frame) y(v float64) float64 {
	return f.padding + f.chartH - (v-f.minVal)*f.scale
}

func (f frame) open(b *strings.Builder, title, desc, kind, defTitle, defDesc string) {
	titleID := makeID(title, kind+"-title")
	descID := makeID(title, kind+"-desc")
	fmt.Fprintf(b, "<svg xmlns=\"http://www.w3.org/2000/svg\" viewBox=\"0 0 %d %d\" role=\"img\" aria-labelledby=\"%s %s\">", f.width, f.height, titleID, descID)
	fmt.Fprintf(b, "<title id=\"%s\">%s</title>", titleID, escape(fallback(title, defTitle)))
	fmt.Fprintf(b, "<desc id=\"%s\">%s</desc>", descID, escape(fallback(desc, defDesc)))

	for i := 0; i <= f.ticks; i++ {
		ratio := float64(i) / float64(f.ticks)
		value := f.minVal + (f.maxVal-f.minVal)*ratio
		y := f.padding + f.chartH - ratio*f.chartH
		fmt.Fprintf(b, "<line x1=\"%.2f\" y1=\"%.2f\" x2=\"%.2f\" y2=\"%.2f\" stroke=\"%s\" stroke-width=\"0.5\" stroke-dasharray=\"2,4\" aria-hidden=\"true\"></line>", f.padding, y, f.padding+f.chartW, y, f.grid)
		fmt.Fprintf(b, "<text x=\"%.2f\" y=\"%.2f\" fill=\"%s\" font-size=\"10\" text-anchor=\"end\">%s</text>", f.padding-6, y+4, f.axisColor, escape(FormatTick(value)))
	}

	fmt.Fprintf(b, "<g stroke=\"%s\" aria-label=\"Axes\">", f.axisColor)
	fmt.Fprintf(b, "<line x1=\"%.2f\" y1=\"%.2f\" x2=\"%.2f\" y2=\"%.2f\" stroke-width=\"1\"></line>", f.padding, f.padding, f.padding, f.padding+f.chartH)
	fmt.Fprintf(b, "<line x1=\"%.2f\" y1=\"%.2f\" x2=\"%.2f\" y2=\"%.2f\" stroke-width=\"1\"></line>", f.padding, f.y(0), f.padding+f.chartW, f.y(0))
	b.WriteString("</g>")
}

func (f frame) legend(b *strings.Builder, series []Series) {
	y := math.Max(f.padding-12, 12)
	x := f.padding
	for i, s := range series {
		if strings.TrimSpace(s.Name) == "" {
			continue
		}
		fmt.Fprintf(b, "<rect x=\"%.2f\" y=\"%.2f\" width=\"10\" height=\"10\" fill=\"%s\"></rect>", x, y-8, seriesColor(s, i))
		fmt.Fprintf(b, "<text x=\"%.2f\" y=\"%.2f\" fill=\"%s\" font-size=\"10\" text-anchor=\"start\">%s</text>", x+14, y, f.axisColor, escape(s.Name))
		x += 24 + float64(7*len(s.Name))
	}
}
