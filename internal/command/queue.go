package command

import (
	"fmt"

	"github.com/spf13/cobra"

	"PaperDigest/internal/domain"
)

func newQueueCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "queue",
		Short: "Show the state of the article queue",
		RunE: func(cmd *cobra.Command, _ []string) error {
			stats, err := application().QueueStats()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Queue: %d articles\n", stats.TotalItems)
			for _, p := range []domain.Priority{
				domain.PriorityUrgent, domain.PriorityHigh,
				domain.PriorityNormal, domain.PriorityLow,
			} {
				if count := stats.PriorityBreakdown[p.Name()]; count > 0 {
					fmt.Fprintf(out, "  %s: %d\n", p.Name(), count)
				}
			}
			if stats.OldestItem != "" {
				fmt.Fprintf(out, "  oldest: %s\n", stats.OldestItem)
			}
			if stats.NewestItem != "" {
				fmt.Fprintf(out, "  newest: %s\n", stats.NewestItem)
			}
			return nil
		},
	}
}
