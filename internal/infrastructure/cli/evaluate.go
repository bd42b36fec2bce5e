package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/smartreviewer/internal/infrastructure/config"
	"github.com/felixgeelhaar/smartreviewer/pkg/application"
	"github.com/felixgeelhaar/smartreviewer/pkg/domain/evaluation"
)

var (
	evalBaseline         string
	evalLatestBaseline   bool
	evalSaveBaseline     bool
	evalRepeat           int
	evalTolerance        float64
	evalParallelism      int
	evalFailOnRegression bool
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate <dataset>",
	Short: "Score the reviewer against a labelled dataset",
	Long: `Run every case of a labelled dataset through the reviewer, compute
precision, recall, F1 and accuracy, and compare them with a baseline.

--baseline takes either a stored baseline id or a path to an exported
evaluation file.`,
	Example: `  smartreviewer evaluate testdata/dataset.yaml --save-baseline
  smartreviewer evaluate testdata/dataset.yaml --latest-baseline --fail-on-regression`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		services, err := loadServices(cmd.Context())
		if err != nil {
			return err
		}
		defer func() { _ = services.Close() }()

		cases, err := config.LoadDataset(resolvePath(services.Root, args[0]), services.Catalogue)
		if err != nil {
			return NewCLIError("cannot load dataset", "Each case needs a document and expected findings", err)
		}

		opts := services.EvalOptions()
		if evalRepeat > 0 {
			opts.RepeatCount = evalRepeat
		}
		if cmd.Flags().Changed("tolerance") {
			opts.Tolerance = evalTolerance
		}
		if evalParallelism > 0 {
			opts.Parallelism = evalParallelism
		}

		req := application.EvaluateRequest{
			UseLatestBaseline: evalLatestBaseline,
			SaveBaseline:      evalSaveBaseline,
			Options:           opts,
		}
		if evalBaseline != "" {
			b, ok, err := loadBaselineFile(resolvePath(services.Root, evalBaseline))
			if err != nil {
				return err
			}
			if ok {
				req.Baseline = b
			} else {
				req.BaselineID = evalBaseline
			}
		}

		res, err := services.Reviews.Evaluate(cmd.Context(), cases, req)
		if res == nil {
			return err
		}
		if err != nil {
			logger.Warn("evaluation not fully stored", "evaluation", res.ID, "error", err)
		}

		if outputJSON {
			if err := writeJSON(cmd.OutOrStdout(), res); err != nil {
				return err
			}
		} else {
			renderEvaluation(cmd.OutOrStdout(), res)
		}
		if evalFailOnRegression && res.Baseline != nil && res.Baseline.Regression {
			return fmt.Errorf("%w: %s", ErrRegression, strings.Join(res.Baseline.Regressed, ", "))
		}
		return nil
	},
}

// loadBaselineFile reports ok=false when path is not a file, so the value
// can be treated as a stored baseline id.
func loadBaselineFile(path string) (*evaluation.Result, bool, error) {
	// #nosec G304 -- path is user-supplied on the command line
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("read baseline: %w", err)
	}
	var res evaluation.Result
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &res)
	default:
		err = json.Unmarshal(data, &res)
	}
	if err != nil {
		return nil, false, fmt.Errorf("parse baseline: %w", err)
	}
	if res.ID == "" {
		res.ID = filepath.Base(path)
	}
	return &res, true, nil
}

func init() {
	evaluateCmd.Flags().StringVar(&evalBaseline, "baseline", "", "Baseline id or evaluation file to compare against")
	evaluateCmd.Flags().BoolVar(&evalLatestBaseline, "latest-baseline", false, "Compare against the most recent stored baseline")
	evaluateCmd.Flags().BoolVar(&evalSaveBaseline, "save-baseline", false, "Store this evaluation as a baseline")
	evaluateCmd.Flags().IntVar(&evalRepeat, "repeat", 0, "Passes over the dataset for the consistency rate")
	evaluateCmd.Flags().Float64Var(&evalTolerance, "tolerance", 0, "Allowed metric drop before a regression is flagged")
	evaluateCmd.Flags().IntVar(&evalParallelism, "parallelism", 0, "Cases evaluated concurrently")
	evaluateCmd.Flags().BoolVar(&evalFailOnRegression, "fail-on-regression", false, "Exit with code 4 on a regression")
	addOutputFlag(evaluateCmd)
	RootCmd.AddCommand(evaluateCmd)
}
