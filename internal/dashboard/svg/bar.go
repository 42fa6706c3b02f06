package svg

import (
	"fmt"
	"html/template"
	"math"
	"strings"
)

// Bars renders a grouped bar chart. With a single series every bar takes its own palette
// colour, which is how pair widgets present their two values.
func Bars(width, height int, labels []string, series []Series, opts BarOpts) (template.HTML, error) {
	if err := validate(labels, series); err != nil {
		return "", err
	}
	f, err := newFrame(width, height, opts.Padding, opts.TickCount, opts.AxisColor, opts.GridColor, series)
	if err != nil {
		return "", err
	}

	groupWidth := f.chartW / float64(len(labels))
	barWidth := groupWidth * 0.7 / float64(len(series))
	zeroY := f.y(0)
	bottom := f.padding + f.chartH

	var b strings.Builder
	f.open(&b, opts.Title, opts.Description, "bar", "Bar chart", "Grouped bar comparison")

	for i, label := range labels {
		baseX := f.padding + float64(i)*groupWidth + groupWidth*0.15
		for si, s := range series {
			color := seriesColor(s, si)
			if len(series) == 1 {
				color = fallback(s.Color, Palette[i%len(Palette)])
			}
			y, h := barPosition(s.Values[i], f.scale, zeroY, f.padding, bottom)
			fmt.Fprintf(&b, "<rect x=\"%.2f\" y=\"%.2f\" width=\"%.2f\" height=\"%.2f\" fill=\"%s\" aria-label=\"%s\"></rect>",
				baseX+float64(si)*barWidth, y, barWidth, h, color, escape(strings.TrimSpace(s.Name+" "+label)))
		}
		fmt.Fprintf(&b, "<text x=\"%.2f\" y=\"%.2f\" fill=\"%s\" font-size=\"10\" text-anchor=\"middle\">%s</text>",
			f.padding+float64(i)*groupWidth+groupWidth/2, bottom+14, f.axisColor, escape(label))
	}
	if len(series) > 1 {
		f.legend(&b, series)
	}

	b.WriteString("</svg>")
	return template.HTML(b.String()), nil
}

func barPosition(value, scale, zeroY, top, bottom float64) (float64, float64) {
	height := math.Abs(value * scale)
	if value >= 0 {
		y := zeroY - height
		if y < top {
			height -= top - y
			y = top
		}
		return y, math.Max(height, 0)
	}
	if zeroY+height > bottom {
		height = bottom - zeroY
	}
	return zeroY, math.Max(height, 0)
}
