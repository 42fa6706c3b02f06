package report

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
)

// ErrUnknownReport is returned when a report name has no numeric id.
var ErrUnknownReport = errors.New("report: unknown report")

// defaultIDs are the ids the reporting backend ships the dashboard reports under.
var defaultIDs = map[string]int64{
	"Demand-Vs-Collection":           37,
	"Disbursal-Vs-Awaitingdisbursal": 38,
	"Client-Trends-By-Day":           2000,
	"Client-Trends-By-Week":          2001,
	"Client-Trends-By-Month":         2002,
	"Loan-Trends-By-Day":             2003,
	"Loan-Trends-By-Week":            2004,
	"Loan-Trends-By-Month":           2005,
}

// Registry maps logical report names to backend report ids.
type Registry struct {
	ids map[string]int64
}

// NewRegistry returns the default table with overrides applied.
func NewRegistry(overrides map[string]int64) *Registry {
	ids := maps.Clone(defaultIDs)
	for name, id := range overrides {
		ids[name] = id
	}
	return &Registry{ids: ids}
}

// ParseOverrides reads "Name=id,Name=id" as used by REPORT_IDS.
func ParseOverrides(raw string) (map[string]int64, error) {
	out := map[string]int64{}
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, value, ok := strings.Cut(part, "=")
		if !ok || strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("report: malformed override %q", part)
		}
		id, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("report: invalid id for %q", name)
		}
		out[strings.TrimSpace(name)] = id
	}
	return out, nil
}

// ID resolves a report name.
func (r *Registry) ID(name string) (int64, error) {
	if id, ok := r.ids[name]; ok {
		return id, nil
	}
	return 0, fmt.Errorf("%w: %s", ErrUnknownReport, name)
}

// Names lists the registered reports in sorted order.
func (r *Registry) Names() []string {
	return slices.Sorted(maps.Keys(r.ids))
}
