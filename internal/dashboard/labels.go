package dashboard

import (
	"math"
	"slices"
	"strconv"
	"time"
)

// GenerateLabels returns the trailing BucketCount bucket labels for g, oldest first.
//
// Day labels are "d/M" dates ending yesterday, Week labels are week numbers relative to
// January 1st of now's year, and Month labels are English month names ending with the
// current month. Labels are collected newest first and reversed before return.
func GenerateLabels(g Granularity, now time.Time) []string {
	date := civilDate(now)
	labels := make([]string, 0, BucketCount)

	switch g {
	case Week:
		jan1 := time.Date(date.Year(), time.January, 1, 12, 0, 0, 0, date.Location())
		for len(labels) < BucketCount {
			date = date.AddDate(0, 0, -7)
			labels = append(labels, WeekLabel(WeekNumber(date, jan1)))
		}
	case Month:
		date = time.Date(date.Year(), date.Month(), 1, 12, 0, 0, 0, date.Location())
		for len(labels) < BucketCount {
			labels = append(labels, date.Month().String())
			date = date.AddDate(0, -1, 0)
		}
	default:
		for len(labels) < BucketCount {
			date = date.AddDate(0, 0, -1)
			labels = append(labels, FormatDayLabel(date))
		}
	}

	slices.Reverse(labels)
	return labels
}

// WeekNumber computes ceil((days(date - jan1) + weekday(jan1) + 1) / 7).
// Sunday is weekday 0. Dates before jan1 yield zero or negative week numbers.
func WeekNumber(date, jan1 time.Time) int {
	days := daysBetween(jan1, date)
	return int(math.Ceil(float64(days+int(jan1.Weekday())+1) / 7))
}

// FormatDayLabel renders a date as "d/M" without padding or year.
func FormatDayLabel(t time.Time) string {
	return strconv.Itoa(t.Day()) + "/" + strconv.Itoa(int(t.Month()))
}

// civilDate pins t to noon so calendar stepping never crosses a DST edge.
func civilDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 12, 0, 0, 0, t.Location())
}

func daysBetween(from, to time.Time) int {
	a := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	b := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a).Hours() / 24)
}
