package cmd

import (
	"errors"
	"fmt"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/khrees2412/applyflow/internal/app"
	"github.com/khrees2412/applyflow/internal/pipeline"
	"github.com/khrees2412/applyflow/pkg/models"
)

const (
	promptSubmitted = "Yes, I submitted it"
	promptNotYet    = "Not yet"
	promptReject    = "Reject this application"
)

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Review prefilled applications",
	Long: `Choose a prefilled application and record your decision. Confirming moves the job
to APPLIED and should only be done after you submitted the form yourself.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := appFrom(cmd)
		if err != nil {
			return err
		}
		jobs, err := a.Store.ListJobs(cmd.Context(), models.StatusPendingReview)
		if err != nil {
			return fmt.Errorf("fetch jobs: %w", err)
		}
		if len(jobs) == 0 {
			cmd.Println("Nothing awaits review.")
			return nil
		}

		items := make([]string, 0, len(jobs))
		for _, job := range jobs {
			items = append(items, fmt.Sprintf("%s %s / %s / %s", job.ID, job.Title, job.Company, job.URL))
		}
		jobPrompt := promptui.Select{
			Label: "Choose an application and press ENTER",
			Items: items,
		}
		i, _, err := jobPrompt.Run()
		if err != nil {
			return err
		}
		job := jobs[i]

		actionPrompt := promptui.Select{
			Label: fmt.Sprintf("Did you submit %s at %s?", job.Title, job.Company),
			Items: []string{promptSubmitted, promptNotYet, promptReject},
		}
		_, action, err := actionPrompt.Run()
		if err != nil {
			return err
		}

		switch action {
		case promptSubmitted:
			return decide(cmd, a, job, func(run *pipeline.Run) error { return a.Automator.Confirm(cmd.Context(), run) })
		case promptReject:
			return decide(cmd, a, job, func(run *pipeline.Run) error { return a.Automator.Reject(cmd.Context(), run, "rejected during review") })
		default:
			cmd.Println("Left for later.")
			return nil
		}
	},
}

var listReviewCmd = &cobra.Command{
	Use:   "list",
	Short: "List applications awaiting review",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := appFrom(cmd)
		if err != nil {
			return err
		}
		jobs, err := a.Store.ListJobs(cmd.Context(), models.StatusPendingReview)
		if err != nil {
			return fmt.Errorf("fetch jobs: %w", err)
		}
		if len(jobs) == 0 {
			cmd.Println("Nothing awaits review.")
			return nil
		}

		cmd.Println(titleStyle.Render("Awaiting Review"))
		for _, job := range jobs {
			cmd.Printf("  • %s at %s %s\n", job.Title, job.Company, scoreLabel(job))
			cmd.Printf("    %s %s | %s\n", labelStyle.Render("ID:"), job.ID, job.URL)
		}
		return nil
	},
}

var confirmReviewCmd = &cobra.Command{
	Use:   "confirm <job-id>",
	Short: "Record that you submitted a prefilled application",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := appFrom(cmd)
		if err != nil {
			return err
		}
		job, err := findJob(cmd, a.Store, args[0])
		if err != nil {
			return err
		}

		if yes, _ := cmd.Flags().GetBool("yes"); !yes {
			confirm := promptui.Prompt{
				Label:     fmt.Sprintf("Mark %s at %s as submitted", job.Title, job.Company),
				IsConfirm: true,
			}
			if _, err := confirm.Run(); err != nil {
				if errors.Is(err, promptui.ErrAbort) {
					cmd.Println("Left for later.")
					return nil
				}
				return err
			}
		}
		return decide(cmd, a, job, func(run *pipeline.Run) error { return a.Automator.Confirm(cmd.Context(), run) })
	},
}

var rejectReviewCmd = &cobra.Command{
	Use:   "reject <job-id>",
	Short: "Reject an application",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := appFrom(cmd)
		if err != nil {
			return err
		}
		job, err := findJob(cmd, a.Store, args[0])
		if err != nil {
			return err
		}
		reason, _ := cmd.Flags().GetString("reason")
		return decide(cmd, a, job, func(run *pipeline.Run) error { return a.Automator.Reject(cmd.Context(), run, reason) })
	},
}

var interviewReviewCmd = &cobra.Command{
	Use:   "interview <job-id>",
	Short: "Record an interview for an applied job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := appFrom(cmd)
		if err != nil {
			return err
		}
		job, err := findJob(cmd, a.Store, args[0])
		if err != nil {
			return err
		}
		return decide(cmd, a, job, func(run *pipeline.Run) error { return a.Automator.MarkInterview(cmd.Context(), run) })
	},
}

func decide(cmd *cobra.Command, a *app.App, job *models.Job, action func(*pipeline.Run) error) error {
	profile, err := currentProfile(cmd, a)
	if err != nil {
		return err
	}
	if err := action(&pipeline.Run{Job: job, Profile: profile}); err != nil {
		return err
	}
	cmd.Printf("✓ %s at %s is now %s\n", job.Title, job.Company, statusLabel(job.Status))
	return nil
}

func init() {
	rootCmd.AddCommand(reviewCmd)
	reviewCmd.AddCommand(listReviewCmd)
	reviewCmd.AddCommand(confirmReviewCmd)
	reviewCmd.AddCommand(rejectReviewCmd)
	reviewCmd.AddCommand(interviewReviewCmd)

	confirmReviewCmd.Flags().BoolP("yes", "y", false, "Do not ask for confirmation")
	rejectReviewCmd.Flags().String("reason", "", "Why the application is rejected")
}
