package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"media-catalog/internal/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	root := newRootCmd()
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		logging.Sync()
		os.Exit(1)
	}
	logging.Sync()
}

func newRootCmd() *cobra.Command {
	var verbose bool

	root := &cobra.Command{
		Use:           "catalogctl",
		Short:         "Maintenance tasks for the media catalog",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			if verbose {
				logging.SetLevel(logging.LevelDebug)
			} else if os.Getenv("LOG_LEVEL") == "" {
				logging.SetLevel(logging.LevelWarn)
			}
		},
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log at debug level")

	root.AddCommand(
		newAnalyzeCmd(),
		newDerivativesCmd(),
		newSweepCmd(),
		newIngestCmd(),
		newDeleteCmd(),
		newStatsCmd(),
	)
	return root
}
