package main

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lendconsole/dashboard/internal/dashboard"
	"github.com/lendconsole/dashboard/internal/report"
)

func TestEveryRegisteredReportHasDefinition(t *testing.T) {
	names := report.NewRegistry(nil).Names()
	require.Len(t, reportDefinitions, len(names))
	for _, name := range names {
		sqlText, ok := reportDefinitions[name]
		require.True(t, ok, name)
		assert.Contains(t, sqlText, "${officeId}", name)
	}
}

func TestDefinitionsBindOffice(t *testing.T) {
	for name, sqlText := range reportDefinitions {
		bound := report.BindOffice(sqlText, 42)
		assert.NotContains(t, bound, "${", name)
		assert.Contains(t, bound, "office_id = 42", name)
	}
}

func TestTrendBuckets(t *testing.T) {
	week := reportDefinitions["Loan-Trends-By-Week"]
	assert.Contains(t, week, "(l.disbursedon_date - EXTRACT(DOW FROM l.disbursedon_date)::int) AS d")
	assert.NotContains(t, week, "date_trunc('week'")
	assert.Contains(t, week, "(d - date_trunc('year', CURRENT_DATE)::date)")
	assert.NotContains(t, week, "DOY")

	assert.True(t, strings.HasPrefix(reportDefinitions["Client-Trends-By-Day"], "SELECT d,"))
	assert.Contains(t, reportDefinitions["Client-Trends-By-Day"], "SELECT c.activation_date AS d")
}

// seededWeek mirrors the week column of the seeded SQL: the row date is moved back to its
// Sunday, then counted from January 1st of today's year.
func seededWeek(d, today time.Time) int {
	sunday := d.AddDate(0, 0, -int(d.Weekday()))
	jan1 := time.Date(today.Year(), 1, 1, 0, 0, 0, 0, time.UTC)
	days := int(sunday.Sub(jan1).Hours() / 24)
	return int(math.Ceil(float64(days+int(jan1.Weekday())+1) / 7.0))
}

func TestSeededWeeksMatchDashboardLabels(t *testing.T) {
	today := time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC)
	jan1 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	// Sunday 2025-03-09 opens week 11, not the Monday-based week 10.
	assert.Equal(t, 11, seededWeek(time.Date(2025, 3, 9, 0, 0, 0, 0, time.UTC), today))

	// Every day of the trailing window, including last December, lands on the label the
	// dashboard generates for it.
	for d := today.AddDate(0, 0, -91); !d.After(today); d = d.AddDate(0, 0, 1) {
		assert.Equal(t, dashboard.WeekNumber(d, jan1), seededWeek(d, today), d.Format("2006-01-02"))
	}
	assert.LessOrEqual(t, seededWeek(time.Date(2024, 12, 20, 0, 0, 0, 0, time.UTC), today), 0)
}
