package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var logCmd = &cobra.Command{
	Use:   "log [job-id]",
	Short: "Show the activity log",
	Args:  cobra.MaximumNArgs(1),
	Example: `  applyflow log
  applyflow log 3f2a --limit 20`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := appFrom(cmd)
		if err != nil {
			return err
		}
		limit, _ := cmd.Flags().GetInt("limit")

		jobID := ""
		if len(args) == 1 {
			job, err := findJob(cmd, a.Store, args[0])
			if err != nil {
				return err
			}
			jobID = job.ID
		}

		entries, err := a.Store.ListActivity(cmd.Context(), jobID, limit)
		if err != nil {
			return fmt.Errorf("fetch activity: %w", err)
		}
		if len(entries) == 0 {
			cmd.Println("No activity yet.")
			return nil
		}

		for _, e := range entries {
			cmd.Printf("%s %s %-9s %s\n",
				valueStyle.Render(e.Timestamp.Local().Format("Jan 02 15:04:05")),
				levelLabel(e.Level),
				e.Service,
				e.Message)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(logCmd)

	logCmd.Flags().Int("limit", 50, "Number of most recent entries to show")
}
