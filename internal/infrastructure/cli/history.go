package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/smartreviewer/pkg/domain/events"
)

var historySubject string

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show the hash-chained run history",
	RunE: func(cmd *cobra.Command, args []string) error {
		services, err := loadServices(cmd.Context())
		if err != nil {
			return err
		}
		defer func() { _ = services.Close() }()

		h := services.Workspace.History
		var list []*events.Event
		if historySubject != "" {
			list, err = h.LoadBySubject(historySubject)
		} else {
			list, err = h.LoadAll()
		}
		if err != nil {
			return err
		}
		if outputJSON {
			if list == nil {
				list = []*events.Event{}
			}
			return writeJSON(cmd.OutOrStdout(), list)
		}
		if len(list) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No events recorded.")
			return nil
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "TIME\tEVENT\tSUBJECT")
		for _, e := range list {
			fmt.Fprintf(tw, "%s\t%s\t%s %s\n", e.Timestamp.Format("2006-01-02 15:04:05"), e.Type, e.SubjectType, e.SubjectID)
		}
		return tw.Flush()
	},
}

var historyVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check the history hash chain for tampering",
	RunE: func(cmd *cobra.Command, args []string) error {
		services, err := loadServices(cmd.Context())
		if err != nil {
			return err
		}
		defer func() { _ = services.Close() }()

		problems, err := services.Workspace.History.VerifyIntegrity()
		if err != nil {
			return err
		}
		if len(problems) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), passStyle.Render("History chain intact."))
			return nil
		}
		for _, p := range problems {
			fmt.Fprintln(cmd.OutOrStdout(), failStyle.Render(p))
		}
		return NewCLIError("history chain broken", "Restore .smartreviewer/history.jsonl from a backup", nil)
	},
}

func init() {
	historyCmd.Flags().StringVar(&historySubject, "subject", "", "Only events for this review or evaluation id")
	addOutputFlag(historyCmd)
	historyCmd.AddCommand(historyVerifyCmd)
	RootCmd.AddCommand(historyCmd)
}
