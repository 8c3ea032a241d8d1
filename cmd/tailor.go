package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var tailorCmd = &cobra.Command{
	Use:   "tailor <job-id>",
	Short: "Generate a tailored resume for a job",
	Long: `Select the projects most relevant to the job (at most 3), rewrite their bullets and
write the result as a markdown resume. The job's status is not changed.`,
	Args: cobra.ExactArgs(1),
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

		cmd.Printf("⏳ Tailoring resume for %s at %s...\n", job.Title, job.Company)
		resume, err := a.Tailor.Tailor(cmd.Context(), profile, job)
		if err != nil {
			return err
		}
		if err := a.Store.SaveTailoredResume(cmd.Context(), resume); err != nil {
			return fmt.Errorf("save tailored resume: %w", err)
		}
		path, err := a.Renderer.Render(profile, job, resume)
		if err != nil {
			return fmt.Errorf("render resume: %w", err)
		}

		cmd.Println(titleStyle.Render("Tailored Resume"))
		for _, id := range resume.SelectedProjectIDs {
			title := id
			if p := profile.FindProject(id); p != nil {
				title = p.Title
			}
			cmd.Printf("  • %s\n", title)
			for _, bullet := range resume.RewrittenProjectDescriptions[id] {
				cmd.Printf("    - %s\n", valueStyle.Render(bullet))
			}
		}
		printField(cmd, "Keywords:", strings.Join(resume.ExtractedKeywords, ", "))
		printField(cmd, "Analysis:", resume.MatchAnalysis)
		if len(resume.Repairs) > 0 {
			cmd.Printf("%s %s\n", warnStyle.Render("Repaired:"), strings.Join(resume.Repairs, "; "))
		}
		cmd.Printf("\n✓ Saved to %s\n", path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(tailorCmd)
}
