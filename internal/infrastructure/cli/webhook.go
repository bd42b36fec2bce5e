package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var webhookCmd = &cobra.Command{
	Use:   "webhook",
	Short: "Inspect and replay failed webhook deliveries",
}

var webhookDeadLettersCmd = &cobra.Command{
	Use:   "dead-letters",
	Short: "List webhook deliveries that exhausted their retries",
	RunE: func(cmd *cobra.Command, args []string) error {
		services, err := loadServices(cmd.Context())
		if err != nil {
			return err
		}
		defer func() { _ = services.Close() }()

		entries, err := services.Workspace.DeadLetters.ReadAll()
		if err != nil {
			return err
		}
		if outputJSON {
			return writeJSON(cmd.OutOrStdout(), entries)
		}
		if len(entries) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No dead letters.")
			return nil
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "TIME\tWEBHOOK\tEVENT\tSUBJECT\tATTEMPTS\tERROR")
		for _, dl := range entries {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n", dl.Timestamp.Format("2006-01-02 15:04:05"), dl.WebhookName, dl.EventType, dl.SubjectID, dl.Attempts, dl.Error)
		}
		return tw.Flush()
	},
}

var webhookReplayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Resend dead-lettered deliveries, keeping those that fail again",
	RunE: func(cmd *cobra.Command, args []string) error {
		services, err := loadServices(cmd.Context())
		if err != nil {
			return err
		}
		defer func() { _ = services.Close() }()

		ws := services.Workspace
		delivered, err := ws.DeadLetters.Replay(cmd.Context(), ws.Notifier.Redeliver)
		if err != nil {
			return err
		}
		remaining, err := ws.DeadLetters.ReadAll()
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Delivered %d, %d still failing\n", delivered, len(remaining))
		return nil
	},
}

func init() {
	addOutputFlag(webhookDeadLettersCmd)
	webhookCmd.AddCommand(webhookDeadLettersCmd, webhookReplayCmd)
	RootCmd.AddCommand(webhookCmd)
}
