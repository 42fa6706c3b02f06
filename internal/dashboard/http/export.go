package dashboardhttp

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/lendconsole/dashboard/internal/dashboard"
)

// WriteTrendCSV emits one row per bucket with the client and loan counts.
func WriteTrendCSV(w io.Writer, trend dashboard.Trend) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()
	if err := writer.Write([]string{trend.Granularity.String(), "New Clients", "Loans Disbursed"}); err != nil {
		return err
	}
	for i, label := range trend.Labels {
		record := []string{label, "0", "0"}
		if i < len(trend.Clients) {
			record[1] = strconv.Itoa(trend.Clients[i])
		}
		if i < len(trend.Loans) {
			record[2] = strconv.Itoa(trend.Loans[i])
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}
