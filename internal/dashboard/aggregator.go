package dashboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// Fetcher runs a named backend report for an office and returns its raw rows.
type Fetcher interface {
	Fetch(ctx context.Context, reportName string, officeID int64) (*RawResult, error)
}

// Metric identifies one of the two trend sources.
type Metric int

const (
	Clients Metric = iota
	Loans
)

// TrendReport returns the backend report name for a metric at a granularity.
func TrendReport(m Metric, g Granularity) string {
	prefix := "Client-Trends-By-"
	if m == Loans {
		prefix = "Loan-Trends-By-"
	}
	return prefix + g.String()
}

// PairKind identifies a single-metric widget.
type PairKind string

const (
	PairCollection PairKind = "collection"
	PairDisbursal  PairKind = "disbursal"
)

// ErrUnknownPair is returned for an unsupported pair widget.
var ErrUnknownPair = errors.New("dashboard: unknown pair widget")

// PairKinds lists the supported single-metric widgets.
var PairKinds = []PairKind{PairCollection, PairDisbursal}

// ParsePairKind validates a pair widget token.
func ParsePairKind(token string) (PairKind, error) {
	for _, k := range PairKinds {
		if string(k) == token {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownPair, token)
}

// Report returns the backend report feeding the pair.
func (k PairKind) Report() string {
	if k == PairDisbursal {
		return "Disbursal-Vs-Awaitingdisbursal"
	}
	return "Demand-Vs-Collection"
}

// Labels returns the chart labels of the pair values.
func (k PairKind) Labels() []string {
	if k == PairDisbursal {
		return []string{"Pending", "Disbursed"}
	}
	return []string{"Pending", "Collected"}
}

// Trend is the aligned client/loan series for one office and granularity.
type Trend struct {
	OfficeID    int64       `json:"office_id"`
	Granularity Granularity `json:"granularity"`
	Labels      []string    `json:"labels"`
	Clients     []int       `json:"clients"`
	Loans       []int       `json:"loans"`
	// Empty is set when both sources returned no rows at all.
	Empty bool `json:"empty"`
}

// Series returns the client and loan counts as chart series, in that order.
func (t Trend) Series() [][]float64 {
	return [][]float64{ToFloats(t.Clients), ToFloats(t.Loans)}
}

// Pair is the outcome of a single-metric widget.
type Pair struct {
	Kind     PairKind  `json:"kind"`
	OfficeID int64     `json:"office_id"`
	Labels   []string  `json:"labels"`
	Values   []float64 `json:"values"`
	Fallback bool      `json:"fallback"`
}

// Aggregator joins report fetches into chart-ready series.
type Aggregator struct {
	fetcher Fetcher
	logger  *slog.Logger
	now     func() time.Time
}

// NewAggregator wires a Fetcher into an Aggregator.
func NewAggregator(fetcher Fetcher, logger *slog.Logger) *Aggregator {
	return &Aggregator{fetcher: fetcher, logger: logger, now: time.Now}
}

// WithNow overrides the aggregator clock for testing.
func (a *Aggregator) WithNow(fn func() time.Time) {
	if fn != nil {
		a.now = fn
	}
}

// Aggregate fetches the client and loan trend reports concurrently and builds both series
// against one label axis. A failure of either fetch fails the whole aggregation.
func (a *Aggregator) Aggregate(ctx context.Context, officeID int64, g Granularity) (Trend, error) {
	if a == nil || a.fetcher == nil {
		return Trend{}, errors.New("dashboard: fetcher not configured")
	}

	var clients, loans *RawResult
	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		res, err := a.fetch(gctx, TrendReport(Clients, g), officeID)
		clients = res
		return err
	})
	group.Go(func() error {
		res, err := a.fetch(gctx, TrendReport(Loans, g), officeID)
		loans = res
		return err
	})
	if err := group.Wait(); err != nil {
		return Trend{}, err
	}

	labels := GenerateLabels(g, a.now())
	trend := Trend{
		OfficeID:    officeID,
		Granularity: g,
		Labels:      labels,
		Clients:     BuildSeries(clients, labels, g),
		Loans:       BuildSeries(loans, labels, g),
		Empty:       clients.IsEmpty() && loans.IsEmpty(),
	}
	a.log().Debug("trend aggregated",
		slog.Int64("office_id", officeID),
		slog.String("granularity", g.String()),
		slog.Bool("empty", trend.Empty))
	return trend, nil
}

// AggregatePair fetches a single pair report. A missing pair, or one whose values are
// both exactly zero, is reported as Fallback. The zero/zero rule cannot tell a real
// all-zero pair from missing data; callers show the no-data state for both.
func (a *Aggregator) AggregatePair(ctx context.Context, officeID int64, kind PairKind) (Pair, error) {
	if a == nil || a.fetcher == nil {
		return Pair{}, errors.New("dashboard: fetcher not configured")
	}
	res, err := a.fetch(ctx, kind.Report(), officeID)
	if err != nil {
		return Pair{}, err
	}
	pair := Pair{Kind: kind, OfficeID: officeID, Labels: kind.Labels()}
	values, ok := pairValues(res)
	if !ok {
		pair.Fallback = true
		return pair, nil
	}
	pair.Values = values
	pair.Fallback = values[0] == 0 && values[1] == 0
	return pair, nil
}

func pairValues(res *RawResult) ([]float64, bool) {
	if res.IsEmpty() {
		return nil, false
	}
	row := res.Data[0]
	first, okA := row.field(pairFirstIndex)
	second, okB := row.field(pairSecondIndex)
	if !okA || !okB {
		return nil, false
	}
	a, okA := fieldFloat(first)
	b, okB := fieldFloat(second)
	if !okA || !okB {
		return nil, false
	}
	return []float64{a, b}, true
}

func (a *Aggregator) fetch(ctx context.Context, report string, officeID int64) (*RawResult, error) {
	res, err := a.fetcher.Fetch(ctx, report, officeID)
	if err != nil {
		return nil, fmt.Errorf("dashboard: fetch %s: %w", report, err)
	}
	return res, nil
}

func (a *Aggregator) log() *slog.Logger {
	if a.logger != nil {
		return a.logger
	}
	return slog.Default()
}
