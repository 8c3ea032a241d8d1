package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/khrees2412/applyflow/internal/apperr"
)

var matchCmd = &cobra.Command{
	Use:   "match <job-id>",
	Short: "Score a job against your profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := appFrom(cmd)
		if err != nil {
			return err
		}
		profile, err := currentProfile(cmd, a)
		if err != nil {
			return err
		}
		job, err := findJob(cmd, a.Store, args[0])
		if err != nil {
			return err
		}

		cmd.Printf("⏳ Scoring %s at %s...\n", job.Title, job.Company)
		assessment := a.Matcher.Score(cmd.Context(), profile, job)
		assessment.Apply(job)
		if err := a.Store.SaveJob(cmd.Context(), job); err != nil {
			return fmt.Errorf("save match score: %w", err)
		}

		cmd.Println(titleStyle.Render(fmt.Sprintf("Match Score: %d", assessment.Score)))
		if assessment.Fallback {
			cmd.Printf("%s scoring failed (%s), the job was scored 0\n",
				warnStyle.Render("Warning:"), apperr.Kind(assessment.Err))
		}
		printField(cmd, "Reasoning:", assessment.Reasoning)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(matchCmd)
}
