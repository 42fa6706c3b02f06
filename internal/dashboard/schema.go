package dashboard

// FieldRole names a positional column of a trend report row.
type FieldRole int

const (
	FieldTemporalKey FieldRole = iota
	FieldWeekNumber
	FieldMonthName
	FieldCount
)

// TrendSchema maps each field role to its column offset. Client and loan trend reports
// share the same layout, so there is a single table rather than one per metric.
var TrendSchema = map[FieldRole]int{
	FieldTemporalKey: 0,
	FieldWeekNumber:  1,
	FieldMonthName:   2,
	FieldCount:       3,
}

// keyRole returns the role a granularity matches rows on.
func keyRole(g Granularity) FieldRole {
	switch g {
	case Week:
		return FieldWeekNumber
	case Month:
		return FieldMonthName
	default:
		return FieldTemporalKey
	}
}

// Pair reports carry two values in the first row.
const (
	pairFirstIndex  = 0
	pairSecondIndex = 1
)
