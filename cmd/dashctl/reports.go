package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/lendconsole/dashboard/internal/app"
	"github.com/lendconsole/dashboard/internal/dashboard"
	"github.com/lendconsole/dashboard/internal/platform/cache"
)

// runtime holds what report commands share; close releases it.
type runtime struct {
	logger     *slog.Logger
	aggregator *dashboard.Aggregator
	close      func()
}

func openRuntime(ctx context.Context) (*runtime, error) {
	cfg, err := app.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger := app.NewLogger(cfg)
	redisClient := cache.New(ctx, cfg.RedisAddr, logger)
	reports, err := app.NewReportStack(ctx, cfg, redisClient, nil, logger)
	if err != nil {
		_ = redisClient.Close()
		return nil, err
	}
	return &runtime{
		logger:     logger,
		aggregator: dashboard.NewAggregator(reports.Fetcher, logger),
		close: func() {
			reports.Close()
			_ = redisClient.Close()
		},
	}, nil
}

func newTrendsCommand() *cobra.Command {
	var (
		office      int64
		granularity string
		asJSON      bool
	)

	cmd := &cobra.Command{
		Use:   "trends",
		Short: "Print the client and loan trend for an office",
		RunE: func(cmd *cobra.Command, _ []string) error {
			g, err := dashboard.ParseGranularity(granularity)
			if err != nil {
				return err
			}
			rt, err := openRuntime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.close()

			trend, err := rt.aggregator.Aggregate(cmd.Context(), office, g)
			if err != nil {
				return fmt.Errorf("aggregate trends: %w", err)
			}
			if asJSON {
				return writeJSON(os.Stdout, trend)
			}
			return writeTrend(os.Stdout, trend)
		},
	}

	cmd.Flags().Int64VarP(&office, "office", "o", dashboard.DefaultSelection.OfficeID, "office id")
	cmd.Flags().StringVarP(&granularity, "granularity", "g", dashboard.DefaultSelection.Granularity.String(), "Day, Week or Month")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	return cmd
}

func newPairCommand() *cobra.Command {
	var (
		office int64
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "pair <collection|disbursal>",
		Short: "Print a pair widget for an office",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := dashboard.ParsePairKind(args[0])
			if err != nil {
				return err
			}
			rt, err := openRuntime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.close()

			pair, err := rt.aggregator.AggregatePair(cmd.Context(), office, kind)
			if err != nil {
				return fmt.Errorf("aggregate %s: %w", kind, err)
			}
			if asJSON {
				return writeJSON(os.Stdout, pair)
			}
			return writePair(os.Stdout, pair)
		},
	}

	cmd.Flags().Int64VarP(&office, "office", "o", dashboard.DefaultSelection.OfficeID, "office id")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	return cmd
}

func writeTrend(out io.Writer, trend dashboard.Trend) error {
	if trend.Empty {
		_, err := fmt.Fprintln(out, "No data available")
		return err
	}
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "LABEL\tNEW CLIENTS\tLOANS DISBURSED")
	for i, label := range trend.Labels {
		fmt.Fprintf(w, "%s\t%d\t%d\n", label, trend.Clients[i], trend.Loans[i])
	}
	return w.Flush()
}

func writePair(out io.Writer, pair dashboard.Pair) error {
	if pair.Fallback {
		_, err := fmt.Fprintln(out, "No data available")
		return err
	}
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "LABEL\tVALUE")
	for i, label := range pair.Labels {
		fmt.Fprintf(w, "%s\t%s\n", label, strconv.FormatFloat(pair.Values[i], 'f', -1, 64))
	}
	return w.Flush()
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
