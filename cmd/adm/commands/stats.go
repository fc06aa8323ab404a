package commands

import (
	"fmt"
	"text/tabwriter"

	"dailyquiz/internal/di"

	"github.com/spf13/cobra"
)

// StatsCommands returns the per-user question stats commands
func StatsCommands(container di.ServiceContainerInterface) *cobra.Command {
	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Per-user question stats commands",
		Long: `Per-user question stats commands.

Available commands:
  show     - Show the per-question counters recorded for a user
  delete   - Erase every counter recorded for a user`,
	}

	statsCmd.AddCommand(&cobra.Command{
		Use:   "show <userLabel>",
		Short: "Show a user's question stats",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			recorder, err := container.GetStatsRecorder()
			if err != nil {
				return err
			}
			stats, err := recorder.ListForUser(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(stats) == 0 {
				fmt.Fprintf(out, "No stats recorded for %s\n", args[0])
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "QUESTION\tATTEMPTS\tCORRECT\tLAST ATTEMPTED")
			for _, s := range stats {
				fmt.Fprintf(tw, "%s\t%d\t%d\t%s\n", s.QuestionID, s.Attempts, s.Correct, s.LastAttemptedAt.Format("2006-01-02 15:04"))
			}
			return tw.Flush()
		},
	})

	statsCmd.AddCommand(deleteStatsCmd(container))

	return statsCmd
}

func deleteStatsCmd(container di.ServiceContainerInterface) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "delete <userLabel>",
		Short: "Delete a user's question stats",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			label := args[0]
			if !yes {
				ok, err := confirm(cmd.InOrStdin(), cmd.OutOrStdout(), fmt.Sprintf("Delete all stats for %q?", label))
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(cmd.OutOrStdout(), "Aborted")
					return nil
				}
			}

			recorder, err := container.GetStatsRecorder()
			if err != nil {
				return err
			}
			n, err := recorder.DeleteForUser(cmd.Context(), label)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d stat row(s) for %s\n", n, label)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation prompt")

	return cmd
}
