package dashboard

import "strconv"

// MatchCount finds the first row belonging to the bucket label and returns its count.
// Rows that do not match, rows too short to carry the key, and unparsable counts all
// yield 0.
func MatchCount(label string, rows []Row, g Granularity) int {
	keyIdx := TrendSchema[keyRole(g)]
	countIdx := TrendSchema[FieldCount]

	var week int
	var weekOK bool
	if g == Week {
		week, weekOK = leadingInt(label)
		if !weekOK {
			return 0
		}
	}

	for _, row := range rows {
		key, ok := row.field(keyIdx)
		if !ok {
			continue
		}
		if !keyMatches(key, label, week, g) {
			continue
		}
		raw, _ := row.field(countIdx)
		count, ok := fieldInt(raw)
		if !ok || count < 0 {
			return 0
		}
		return count
	}
	return 0
}

func keyMatches(key any, label string, week int, g Granularity) bool {
	switch g {
	case Week:
		n, ok := fieldInt(key)
		return ok && n == week
	case Month:
		return fieldString(key) == label
	default:
		date, ok := fieldDate(key)
		return ok && FormatDayLabel(date) == label
	}
}

// WeekLabel renders a week number the way GenerateLabels does.
func WeekLabel(week int) string {
	return strconv.Itoa(week)
}
