package svg

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLineRendersOnePathPerSeries(t *testing.T) {
	html, err := Line(400, 200, []string{"1/3", "2/3", "3/3"}, []Series{
		{Name: "New Clients", Values: []float64{1, 4, 2}},
		{Name: "Loans Disbursed", Values: []float64{0, 3, 5}},
	}, LineOpts{Title: "Client Trends", ShowDots: true})
	require.NoError(t, err)

	out := string(html)
	assert.True(t, strings.HasPrefix(out, "<svg"))
	assert.Contains(t, out, `aria-label="New Clients"`)
	assert.Contains(t, out, `aria-label="Loans Disbursed"`)
	assert.Equal(t, 6, strings.Count(out, "<circle"))
	assert.Contains(t, out, "client-trends-line-title")
}

func TestLineRejectsMisalignedSeries(t *testing.T) {
	_, err := Line(0, 0, []string{"a", "b"}, []Series{{Name: "x", Values: []float64{1}}}, LineOpts{})
	require.Error(t, err)

	_, err = Line(0, 0, []string{"a"}, nil, LineOpts{})
	require.Error(t, err)
}

func TestLineHandlesAllZeroSeries(t *testing.T) {
	html, err := Line(0, 0, []string{"a", "b"}, []Series{{Values: []float64{0, 0}}}, LineOpts{})
	require.NoError(t, err)
	assert.NotContains(t, string(html), "NaN")
}

func TestBarsColoursSingleSeriesPerBar(t *testing.T) {
	html, err := Bars(320, 200, []string{"Pending", "Collected"}, []Series{{Values: []float64{1200, 300}}}, BarOpts{Title: "Collection"})
	require.NoError(t, err)

	out := string(html)
	assert.Equal(t, 2, strings.Count(out, "<rect"))
	assert.Contains(t, out, Palette[0])
	assert.Contains(t, out, Palette[1])
	assert.Contains(t, out, ">Pending<")
}

func TestBarsGroupsSeries(t *testing.T) {
	html, err := Bars(0, 0, []string{"a", "b"}, []Series{
		{Name: "Clients", Values: []float64{1, 2}},
		{Name: "Loans", Values: []float64{3, -1}},
	}, BarOpts{})
	require.NoError(t, err)
	// four bars plus two legend swatches
	assert.Equal(t, 6, strings.Count(string(html), "<rect"))
}

func TestFormatTick(t *testing.T) {
	assert.Equal(t, "0", FormatTick(0))
	assert.Equal(t, "1,250", FormatTick(1250))
	assert.Equal(t, "12.5k", FormatTick(12_500))
	assert.Equal(t, "2.5M", FormatTick(2_500_000))
	assert.Equal(t, "0.25", FormatTick(0.25))
}
