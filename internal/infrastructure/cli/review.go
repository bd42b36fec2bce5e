package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/smartreviewer/internal/infrastructure/config"
	"github.com/felixgeelhaar/smartreviewer/pkg/domain/review"
)

var (
	reviewType           string
	reviewChecks         []string
	reviewParallelism    int
	reviewRunTimeout     time.Duration
	reviewPerItemTimeout time.Duration
	reviewFailOnFail     bool
	reviewQuiet          bool
)

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Run reviews and inspect the check item catalogue",
}

var reviewRunCmd = &cobra.Command{
	Use:   "run <document>",
	Short: "Review a document against its check items",
	Long: `Review a markdown, yaml or json document. Markdown headings become the
numbered section paths the judgment model refers to. Without --checks every
catalogue item for the document type is evaluated.`,
	Example: `  smartreviewer review run docs/payments-design.md --type basic_design
  smartreviewer review run plan.yaml --checks TP-001,TP-004 --json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		services, err := loadServices(cmd.Context())
		if err != nil {
			return err
		}
		defer func() { _ = services.Close() }()

		doc, err := config.LoadDocument(resolvePath(services.Root, args[0]), review.DocumentType(reviewType))
		if err != nil {
			return NewCLIError("cannot load document", "Use a markdown, yaml or json file", err)
		}
		if doc.Type == "" {
			return NewCLIError("document type is unknown", "Pass --type basic_design or --type test_plan", nil)
		}

		opts := services.ReviewOptions()
		if reviewParallelism > 0 {
			opts.Parallelism = reviewParallelism
		}
		if reviewRunTimeout > 0 {
			opts.RunTimeout = reviewRunTimeout
		}
		if reviewPerItemTimeout > 0 {
			opts.PerItemTimeout = reviewPerItemTimeout
		}
		if !outputJSON && !reviewQuiet {
			errOut := cmd.ErrOrStderr()
			opts.OnProgress = func(p review.Progress) {
				fmt.Fprintf(errOut, "[%d/%d] %s %s\n", p.Completed, p.Total, p.CurrentCheck, p.CheckStatus)
			}
		}

		res, err := services.Reviews.Review(cmd.Context(), doc, reviewChecks, opts)
		if res == nil {
			return err
		}
		if err != nil {
			logger.Warn("review finished with error", "review", res.ID, "error", err)
		}

		if outputJSON {
			if err := writeJSON(cmd.OutOrStdout(), res); err != nil {
				return err
			}
		} else {
			renderResult(cmd.OutOrStdout(), res)
		}
		if reviewFailOnFail && res.Status == review.StatusFail {
			return ErrReviewFailed
		}
		return nil
	},
}

var reviewChecksCmd = &cobra.Command{
	Use:   "checks",
	Short: "List the check item catalogue",
	RunE: func(cmd *cobra.Command, args []string) error {
		services, err := loadServices(cmd.Context())
		if err != nil {
			return err
		}
		defer func() { _ = services.Close() }()

		items := services.Catalogue.Filter(review.DocumentType(reviewType), nil)
		if outputJSON {
			if items == nil {
				items = []review.CheckItem{}
			}
			return writeJSON(cmd.OutOrStdout(), items)
		}
		if len(items) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No check items.")
			return nil
		}
		for _, it := range items {
			fmt.Fprintf(cmd.OutOrStdout(), "%-8s %-13s %s\n", it.ID, dimStyle.Render(string(it.DocumentType)), it.Name)
		}
		return nil
	},
}

func init() {
	reviewRunCmd.Flags().StringVarP(&reviewType, "type", "t", "", "Document type (basic_design, test_plan)")
	reviewRunCmd.Flags().StringSliceVarP(&reviewChecks, "checks", "c", nil, "Check item ids to run (default: all for the type)")
	reviewRunCmd.Flags().IntVar(&reviewParallelism, "parallelism", 0, "Check items evaluated concurrently")
	reviewRunCmd.Flags().DurationVar(&reviewRunTimeout, "run-timeout", 0, "Whole-run timeout")
	reviewRunCmd.Flags().DurationVar(&reviewPerItemTimeout, "per-item-timeout", 0, "Per check item timeout")
	reviewRunCmd.Flags().BoolVar(&reviewFailOnFail, "fail-on-fail", false, "Exit with code 3 when the verdict is fail")
	reviewRunCmd.Flags().BoolVarP(&reviewQuiet, "quiet", "q", false, "Do not print progress")
	addOutputFlag(reviewRunCmd)

	reviewChecksCmd.Flags().StringVarP(&reviewType, "type", "t", "", "Only items for this document type")
	addOutputFlag(reviewChecksCmd)

	reviewCmd.AddCommand(reviewRunCmd, reviewChecksCmd)
	RootCmd.AddCommand(reviewCmd)
}
