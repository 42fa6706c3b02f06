package main

import "fmt"

// Trend rows are (date, week number, month name, count). Week numbers count Sunday-start
// weeks from January 1st of the current year, so buckets from last year read as zero or
// below, the same numbers the dashboard labels carry.
const trendSQL = `SELECT d,
  CEIL(((d - date_trunc('year', CURRENT_DATE)::date) + EXTRACT(DOW FROM date_trunc('year', CURRENT_DATE)) + 1) / 7.0)::int AS week,
  TO_CHAR(d, 'FMMonth') AS month, COUNT(*) AS count
FROM (%s) s
GROUP BY 1, 2, 3
ORDER BY 1`

func clientTrend(bucket, window string) string {
	inner := fmt.Sprintf(`SELECT %s AS d FROM m_client c
  WHERE c.office_id = ${officeId} AND c.activation_date > CURRENT_DATE - INTERVAL '%s'`,
		fmt.Sprintf(bucket, "c.activation_date"), window)
	return fmt.Sprintf(trendSQL, inner)
}

func loanTrend(bucket, window string) string {
	inner := fmt.Sprintf(`SELECT %s AS d FROM m_loan l JOIN m_client c ON c.id = l.client_id
  WHERE c.office_id = ${officeId} AND l.disbursedon_date > CURRENT_DATE - INTERVAL '%s'`,
		fmt.Sprintf(bucket, "l.disbursedon_date"), window)
	return fmt.Sprintf(trendSQL, inner)
}

const (
	byDay   = "%s"
	byWeek  = "(%[1]s - EXTRACT(DOW FROM %[1]s)::int)"
	byMonth = "date_trunc('month', %s)::date"
)

var reportDefinitions = map[string]string{
	"Client-Trends-By-Day":   clientTrend(byDay, "13 days"),
	"Client-Trends-By-Week":  clientTrend(byWeek, "13 weeks"),
	"Client-Trends-By-Month": clientTrend(byMonth, "12 months"),
	"Loan-Trends-By-Day":     loanTrend(byDay, "13 days"),
	"Loan-Trends-By-Week":    loanTrend(byWeek, "13 weeks"),
	"Loan-Trends-By-Month":   loanTrend(byMonth, "12 months"),

	"Demand-Vs-Collection": `SELECT
  COALESCE(SUM(rs.principal_amount + COALESCE(rs.interest_amount, 0)
      - COALESCE(rs.principal_completed_derived, 0) - COALESCE(rs.interest_completed_derived, 0)), 0) AS "AmountPending",
  COALESCE(SUM(COALESCE(rs.principal_completed_derived, 0) + COALESCE(rs.interest_completed_derived, 0)), 0) AS "AmountCollected"
FROM m_loan_repayment_schedule rs
JOIN m_loan l ON l.id = rs.loan_id
JOIN m_client c ON c.id = l.client_id
WHERE rs.duedate = CURRENT_DATE AND c.office_id = ${officeId}`,

	"Disbursal-Vs-Awaitingdisbursal": `SELECT
  COALESCE(SUM(CASE WHEN l.loan_status_id = 200 THEN l.approved_principal ELSE 0 END), 0) AS "AmountToBeDisbursed",
  COALESCE(SUM(CASE WHEN l.disbursedon_date = CURRENT_DATE THEN l.principal_disbursed_derived ELSE 0 END), 0) AS "AmountDisbursed"
FROM m_loan l
JOIN m_client c ON c.id = l.client_id
WHERE c.office_id = ${officeId}`,
}
