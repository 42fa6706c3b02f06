package svg

import (
	"fmt"
	"html/template"
	"strings"
)

var escape = template.HTMLEscapeString

// Line renders a line chart with one path per series over a shared label axis.
func Line(width, height int, labels []string, series []Series, opts LineOpts) (template.HTML, error) {
	if err := validate(labels, series); err != nil {
		return "", err
	}
	f, err := newFrame(width, height, opts.Padding, opts.TickCount, opts.AxisColor, opts.GridColor, series)
	if err != nil {
		return "", err
	}

	x := func(i int) float64 {
		if len(labels) == 1 {
			return f.padding + f.chartW/2
		}
		return f.padding + float64(i)*f.chartW/float64(len(labels)-1)
	}

	var b strings.Builder
	f.open(&b, opts.Title, opts.Description, "line", "Line chart", "Trend data")

	for si, s := range series {
		color := seriesColor(s, si)
		var path strings.Builder
		for i, v := range s.Values {
			cmd := " L"
			if i == 0 {
				cmd = "M"
			}
			fmt.Fprintf(&path, "%s%.2f %.2f", cmd, x(i), f.y(v))
		}
		if opts.ShowArea {
			base := f.y(0)
			fmt.Fprintf(&b, "<path d=\"%s L%.2f %.2f L%.2f %.2f Z\" fill=\"%s\" fill-opacity=\"0.12\" stroke=\"none\" aria-hidden=\"true\"></path>",
				path.String(), x(len(s.Values)-1), base, x(0), base, color)
		}
		fmt.Fprintf(&b, "<path d=\"%s\" fill=\"none\" stroke=\"%s\" stroke-width=\"2\" stroke-linejoin=\"round\" stroke-linecap=\"round\" aria-label=\"%s\"></path>",
			path.String(), color, escape(s.Name))
		if opts.ShowDots {
			for i, v := range s.Values {
				fmt.Fprintf(&b, "<circle cx=\"%.2f\" cy=\"%.2f\" r=\"3\" fill=\"%s\"></circle>", x(i), f.y(v), color)
			}
		}
	}

	for i, label := range labels {
		fmt.Fprintf(&b, "<text x=\"%.2f\" y=\"%.2f\" fill=\"%s\" font-size=\"10\" text-anchor=\"middle\">%s</text>", x(i), f.padding+f.chartH+14, f.axisColor, escape(label))
	}
	f.legend(&b, series)

	b.WriteString("</svg>")
	return template.HTML(b.String()), nil
}
