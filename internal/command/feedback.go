package command

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"PaperDigest/internal/feedback"
)

func newAnalyzeCommand() *cobra.Command {
	var (
		days        int
		minFeedback int
	)

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Analyze recent feedback and print filter recommendations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			result, err := application().Analyze(cmd.Context(), days, minFeedback)
			if err != nil {
				return err
			}
			return printJSON(cmd, result)
		},
	}

	cmd.Flags().IntVar(&days, "days", 30, "analysis window in days")
	cmd.Flags().IntVar(&minFeedback, "min-feedback", 3, "minimum feedback entries required")
	return cmd
}

func newAutoUpdateCommand() *cobra.Command {
	var (
		days          int
		minFeedback   int
		minConfidence int
		dryRun        bool
	)

	cmd := &cobra.Command{
		Use:   "autoupdate",
		Short: "Open a filter-update pull request from feedback analysis",
		RunE: func(cmd *cobra.Command, _ []string) error {
			result, err := application().AutoUpdate(cmd.Context(), feedback.UpdateOptions{
				Days:          days,
				MinFeedback:   minFeedback,
				MinConfidence: minConfidence,
				DryRun:        dryRun,
			})
			if err != nil {
				return err
			}
			if err := printJSON(cmd, result); err != nil {
				return err
			}
			if result.Status == feedback.StatusSuccess && result.PRURL != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "pull request: %s\n", result.PRURL)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&days, "days", 30, "analysis window in days")
	cmd.Flags().IntVar(&minFeedback, "min-feedback", 5, "minimum feedback entries required")
	cmd.Flags().IntVar(&minConfidence, "min-confidence", 6, "minimum confidence score required")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report the update without opening a pull request")
	return cmd
}

func printJSON(cmd *cobra.Command, value any) error {
	out, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}
