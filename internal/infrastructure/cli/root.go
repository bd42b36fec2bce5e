package cli

import (
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// EnvLogLevel sets the default for --log-level.
const EnvLogLevel = "SMARTREVIEWER_LOG_LEVEL"

var (
	projectPath string
	logLevel    string
	outputJSON  bool

	levelVar = new(slog.LevelVar)
	logger   = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: levelVar}))
)

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:     "smartreviewer",
	Version: Version,
	Short:   "Review design documents and test plans against check items",
	Long: `SmartReviewer reviews basic design documents and test plans against a
catalogue of check items. For every item it retrieves evidence from vector,
graph and ontology backends, asks a judgment model for findings and
combines the outcomes into one structured result.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		levelVar.Set(parseLevel(logLevel))
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() error {
	return MapError(RootCmd.Execute())
}

func init() {
	defaultLevel := os.Getenv(EnvLogLevel)
	if defaultLevel == "" {
		defaultLevel = "warn"
	}
	RootCmd.PersistentFlags().StringVarP(&projectPath, "project", "p", "", "Workspace directory (default: current directory)")
	RootCmd.PersistentFlags().StringVar(&logLevel, "log-level", defaultLevel, "Log level (debug, info, warn, error)")
	RootCmd.SetVersionTemplate("smartreviewer {{.Version}}\n")
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "error":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}

func addOutputFlag(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&outputJSON, "json", false, "Print JSON instead of a summary")
}
