package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newRootCommand().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "dashctl",
		Short:         "Operate the loan console dashboard",
		Long:          "Run dashboard reports from the terminal, manage cache warmup and hash API tokens.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newTrendsCommand())
	root.AddCommand(newPairCommand())
	root.AddCommand(newWarmupCommand())
	root.AddCommand(newQueueCommand())
	root.AddCommand(newInvalidateCommand())
	root.AddCommand(newHashTokenCommand())

	return root
}
