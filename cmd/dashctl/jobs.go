package main

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"github.com/lendconsole/dashboard/internal/app"
	"github.com/lendconsole/dashboard/internal/platform/cache"
	"github.com/lendconsole/dashboard/internal/report"
	"github.com/lendconsole/dashboard/jobs"
)

func newWarmupCommand() *cobra.Command {
	var (
		offices    []int64
		invalidate bool
	)

	cmd := &cobra.Command{
		Use:   "warmup",
		Short: "Enqueue a cache warmup",
		Long:  "Enqueue a dashboard:warmup task. Without --office the worker warms its configured offices.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := app.LoadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			client, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
			if err != nil {
				return err
			}
			defer client.Close()

			info, err := client.EnqueueWarmup(cmd.Context(), jobs.WarmupPayload{Offices: offices, Invalidate: invalidate})
			if errors.Is(err, asynq.ErrDuplicateTask) {
				fmt.Println("an identical warmup is already queued")
				return nil
			}
			if err != nil {
				return fmt.Errorf("enqueue warmup: %w", err)
			}
			fmt.Printf("enqueued %s on %s (id %s)\n", info.Type, info.Queue, info.ID)
			return nil
		},
	}

	cmd.Flags().Int64SliceVar(&offices, "office", nil, "office ids to warm (repeatable)")
	cmd.Flags().BoolVar(&invalidate, "invalidate", false, "drop cached results before warming")
	return cmd
}

func newQueueCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "queue",
		Short: "Show background queue state",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := app.LoadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
			defer inspector.Close()

			info, err := inspector.GetQueueInfo(jobs.QueueDefault)
			if err != nil {
				return fmt.Errorf("inspect queue: %w", err)
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "QUEUE\tPENDING\tACTIVE\tSCHEDULED\tRETRY\tFAILED TODAY")
			fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t%d\n", info.Queue, info.Pending, info.Active, info.Scheduled, info.Retry, info.Failed)
			return w.Flush()
		},
	}
}

func newInvalidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "invalidate",
		Short: "Drop every cached report result",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := app.LoadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger := app.NewLogger(cfg)
			redisClient := cache.New(cmd.Context(), cfg.RedisAddr, logger)
			defer redisClient.Close()

			fetcher := report.NewCachedFetcher(nil, redisClient, cfg.CacheTTL, logger)
			if err := fetcher.Bump(cmd.Context()); err != nil {
				return fmt.Errorf("bump cache version: %w", err)
			}
			version, err := fetcher.Version(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("cache version is now %d\n", version)
			return nil
		},
	}
}
