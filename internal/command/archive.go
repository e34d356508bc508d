package command

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

func newArchiveCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Inspect the processed-article archive",
	}
	cmd.AddCommand(newArchiveSearchCommand(), newArchiveStatsCommand())
	return cmd
}

func newArchiveSearchCommand() *cobra.Command {
	var (
		query string
		days  int
	)

	cmd := &cobra.Command{
		Use:   "search",
		Short: "Search archived articles by title or summary text",
		RunE: func(cmd *cobra.Command, _ []string) error {
			articles, err := application().SearchArchive(cmd.Context(), query, days)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(articles) == 0 {
				fmt.Fprintln(out, "No archived articles matched.")
				return nil
			}
			for _, a := range articles {
				fmt.Fprintf(out, "%s  [%s] %s\n", a.ProcessedAt, a.Journal, a.Title)
				if a.Link != "" {
					fmt.Fprintf(out, "    %s\n", a.Link)
				}
			}
			fmt.Fprintf(out, "%d articles\n", len(articles))
			return nil
		},
	}

	cmd.Flags().StringVar(&query, "query", "", "substring to match in title or summary (empty matches all)")
	cmd.Flags().IntVar(&days, "days", 0, "limit to articles processed in the last N days (0 = no limit)")
	return cmd
}

func newArchiveStatsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show archive totals per journal",
		RunE: func(cmd *cobra.Command, _ []string) error {
			total, byJournal, err := application().ArchiveStats(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Archive: %d articles\n", total)

			journals := make([]string, 0, len(byJournal))
			for journal := range byJournal {
				journals = append(journals, journal)
			}
			sort.Strings(journals)
			for _, journal := range journals {
				fmt.Fprintf(out, "  %s: %d\n", journal, byJournal[journal])
			}
			return nil
		},
	}
}
