package dashboard

import "github.com/samber/lo"

// BuildSeries turns one raw report result into a count per label, aligned by index.
// Structurally empty results produce an all-zero series of the same length.
func BuildSeries(raw *RawResult, labels []string, g Granularity) []int {
	if raw.IsEmpty() {
		return make([]int, len(labels))
	}
	return lo.Map(labels, func(label string, _ int) int {
		return MatchCount(label, raw.Data, g)
	})
}

// ToFloats widens a count series for chart sinks.
func ToFloats(series []int) []float64 {
	return lo.Map(series, func(v int, _ int) float64 { return float64(v) })
}
