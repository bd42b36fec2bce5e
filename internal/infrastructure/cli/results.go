package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/smartreviewer/pkg/domain"
)

var resultsCmd = &cobra.Command{
	Use:   "results",
	Short: "Inspect stored review and evaluation results",
}

var resultsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored reviews, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		services, err := loadServices(cmd.Context())
		if err != nil {
			return err
		}
		defer func() { _ = services.Close() }()

		list, err := services.Reviews.Results(cmd.Context())
		if err != nil {
			return err
		}
		if outputJSON {
			if list == nil {
				list = []domain.ResultSummary{}
			}
			return writeJSON(cmd.OutOrStdout(), list)
		}
		if len(list) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No stored reviews.")
			return nil
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tDOCUMENT\tSTATUS\tSTATE\tFINDINGS\tCOMPLETED")
		for _, s := range list {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n", s.ID, s.DocumentID, s.Status, s.RunState, s.Findings, s.CompletedAt.Format("2006-01-02 15:04"))
		}
		return tw.Flush()
	},
}

var resultsShowCmd = &cobra.Command{
	Use:   "show <review-id>",
	Short: "Show a stored review",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		services, err := loadServices(cmd.Context())
		if err != nil {
			return err
		}
		defer func() { _ = services.Close() }()

		res, err := services.Reviews.Result(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if outputJSON {
			return writeJSON(cmd.OutOrStdout(), res)
		}
		renderResult(cmd.OutOrStdout(), res)
		return nil
	},
}

var resultsEvaluationCmd = &cobra.Command{
	Use:   "evaluation <evaluation-id>",
	Short: "Show a stored evaluation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		services, err := loadServices(cmd.Context())
		if err != nil {
			return err
		}
		defer func() { _ = services.Close() }()

		res, err := services.Reviews.Evaluation(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if outputJSON {
			return writeJSON(cmd.OutOrStdout(), res)
		}
		renderEvaluation(cmd.OutOrStdout(), res)
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{resultsListCmd, resultsShowCmd, resultsEvaluationCmd} {
		addOutputFlag(c)
		resultsCmd.AddCommand(c)
	}
	RootCmd.AddCommand(resultsCmd)
}
