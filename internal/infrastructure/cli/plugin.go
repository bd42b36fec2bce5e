package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/smartreviewer/pkg/plugin/contract"
)

var pluginConfig []string

var pluginCmd = &cobra.Command{
	Use:   "plugin",
	Short: "Work with retrieval backend plugins",
}

var pluginContractCmd = &cobra.Command{
	Use:     "contract <binary>",
	Short:   "Run the retrieval contract suite against a plugin binary",
	Example: `  smartreviewer plugin contract ./bin/smartreviewer-plugin-fixture --config fixture=testdata/evidence.yaml`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := parseKeyValues(pluginConfig)
		if err != nil {
			return err
		}
		res, err := contract.NewContractSuite().RunBinary(cmd.Context(), args[0], cfg)
		if err != nil {
			return NewCLIError("cannot start plugin", "Check that the binary serves the smartreviewer retrieval plugin", err)
		}

		out := cmd.OutOrStdout()
		for _, r := range res.Results {
			mark := passStyle.Render("PASS")
			if !r.Passed {
				mark = failStyle.Render("FAIL")
			}
			fmt.Fprintf(out, "%s %s: %s\n", mark, r.Name, r.Message)
		}
		fmt.Fprintf(out, "\n%d passed, %d failed\n", res.Passed, res.Failed)
		if res.Failed > 0 {
			return fmt.Errorf("%d contract assertions failed", res.Failed)
		}
		return nil
	},
}

func parseKeyValues(pairs []string) (map[string]string, error) {
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("config %q must be key=value", p)
		}
		out[k] = v
	}
	return out, nil
}

func init() {
	pluginContractCmd.Flags().StringArrayVar(&pluginConfig, "config", nil, "Plugin config as key=value (repeatable)")
	pluginCmd.AddCommand(pluginContractCmd)
	RootCmd.AddCommand(pluginCmd)
}
