package command

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"PaperDigest/internal/config"
)

func newRunCommand() *cobra.Command {
	var (
		testMode   bool
		daemon     bool
		batchSize  int
		maxAgeDays int
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute the digest pipeline once (or on an interval with --daemon)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			applyQueueOverrides(&cfg.Queue, batchSize, maxAgeDays)
			if daemon {
				return application().RunDaemon(ctx)
			}
			return application().RunPipeline(ctx, testMode)
		},
	}

	cmd.Flags().BoolVar(&testMode, "test", false, "process articles but skip notification and archive")
	cmd.Flags().BoolVar(&daemon, "daemon", false, "keep running and re-execute on the configured interval")
	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "articles per batch (overrides queue.batchSize)")
	cmd.Flags().IntVar(&maxAgeDays, "max-age-days", 0, "discard queued articles older than this (overrides queue.maxAgeDays)")
	return cmd
}

// applyQueueOverrides replaces configured queue limits with flag values.
// Zero means the flag was not set and the configuration wins.
func applyQueueOverrides(queueCfg *config.QueueConfig, batchSize, maxAgeDays int) {
	if batchSize > 0 {
		queueCfg.BatchSize = batchSize
	}
	if maxAgeDays > 0 {
		queueCfg.MaxAgeDays = maxAgeDays
	}
}
