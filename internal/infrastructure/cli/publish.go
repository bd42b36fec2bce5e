package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/smartreviewer/internal/infrastructure/publish"
)

// DefaultGitHubTokenEnv is read when review.yaml names no token variable.
const DefaultGitHubTokenEnv = "GITHUB_TOKEN"

var (
	publishRepo string
	publishPR   int
)

var publishCmd = &cobra.Command{
	Use:   "publish <review-id>",
	Short: "Post a stored review as a pull request comment",
	Long: `Post a stored review to a GitHub pull request. A later publish of the same
document edits the earlier comment instead of adding another one.`,
	Example: `  GITHUB_TOKEN=... smartreviewer publish 3f2c... --repo acme/docs --pr 42`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		target, err := publish.ParseTarget(publishRepo, publishPR)
		if err != nil {
			return NewCLIError("invalid pull request", "Pass --repo owner/name and --pr <number>", err)
		}

		services, err := loadServices(cmd.Context())
		if err != nil {
			return err
		}
		defer func() { _ = services.Close() }()

		res, err := services.Reviews.Result(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		tokenEnv := services.Config.GitHub.TokenEnv
		if tokenEnv == "" {
			tokenEnv = DefaultGitHubTokenEnv
		}
		token := os.Getenv(tokenEnv)
		if token == "" {
			return NewCLIError("no GitHub token", fmt.Sprintf("Export %s with a token that can comment on %s", tokenEnv, publishRepo), nil)
		}

		publisher, err := publish.NewGitHubPublisher(cmd.Context(), token, services.Config.GitHub.BaseURL)
		if err != nil {
			return err
		}
		link, err := publisher.Publish(cmd.Context(), target, res)
		if err != nil {
			return err
		}
		services.Reviews.Published(cmd.Context(), res.ID, target.String())
		fmt.Fprintf(cmd.OutOrStdout(), "Published review %s to %s\n%s\n", res.ID, target, link)
		return nil
	},
}

func init() {
	publishCmd.Flags().StringVar(&publishRepo, "repo", "", "Repository as owner/name")
	publishCmd.Flags().IntVar(&publishPR, "pr", 0, "Pull request number")
	RootCmd.AddCommand(publishCmd)
}
