package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/smartreviewer/internal/infrastructure/config"
	"github.com/felixgeelhaar/smartreviewer/pkg/storage"
)

var (
	initProvider string
	initModel    string
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create .smartreviewer with a starter config and the default catalogue",
	RunE: func(cmd *cobra.Command, args []string) error {
		root, err := getProjectRoot()
		if err != nil {
			return err
		}
		repo := storage.NewFilesystemRepository(root)
		if err := repo.Initialize(); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		existing, err := config.LoadReviewConfig(root)
		if err != nil {
			return NewCLIError("existing review.yaml is invalid", "Fix or remove .smartreviewer/review.yaml", err)
		}
		if existing == nil {
			cfg := &config.ReviewConfig{
				Parallelism: 5,
				Provider:    config.ProviderConfig{Name: initProvider, Model: initModel},
				Retrieval:   config.RetrievalConfig{Backend: config.BackendFixture},
			}
			if err := config.SaveReviewConfig(root, cfg); err != nil {
				return err
			}
			fmt.Fprintf(out, "Wrote %s/%s\n", storage.WorkspaceDir, storage.ConfigFile)
		}

		written, err := config.WriteDefaultCatalogue(root)
		if err != nil {
			return err
		}
		if written {
			fmt.Fprintf(out, "Wrote %s/%s\n", storage.WorkspaceDir, storage.CatalogueFile)
		}
		fmt.Fprintln(out, "Workspace ready. Try 'smartreviewer review run <document> --type basic_design'.")
		return nil
	},
}

func init() {
	initCmd.Flags().StringVar(&initProvider, "provider", "ollama", "Judgment provider (ollama, openai, anthropic, mock)")
	initCmd.Flags().StringVar(&initModel, "model", "llama3", "Judgment model")
	RootCmd.AddCommand(initCmd)
}
