package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/khrees2412/applyflow/internal/app"
	"github.com/khrees2412/applyflow/internal/apperr"
	"github.com/khrees2412/applyflow/internal/pipeline"
	"github.com/khrees2412/applyflow/internal/ratelimit"
	"github.com/khrees2412/applyflow/internal/render"
	"github.com/khrees2412/applyflow/pkg/models"
)

// batchOrder resumes interrupted jobs before starting queued ones.
var batchOrder = []models.ApplicationStatus{
	models.StatusPrefilling,
	models.StatusTailoring,
	models.StatusAnalyzing,
	models.StatusQueued,
}

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Run jobs through the application pipeline",
	Long: `Analyze, tailor and prefill applications. Every application stops at PENDING_REVIEW;
nothing is submitted until you confirm it with 'applyflow review confirm'.`,
}

var applyRunCmd = &cobra.Command{
	Use:     "run <job-id>",
	Short:   "Prefill the application for one job",
	Args:    cobra.ExactArgs(1),
	Example: `  applyflow apply run 3f2a`,
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

		cmd.Printf("⏳ Processing %s at %s...\n", job.Title, job.Company)
		run, err := loadRun(cmd, a, job, profile)
		if err != nil {
			return err
		}
		err = a.Automator.Process(cmd.Context(), run)
		cmd.Printf("%s %s\n", labelStyle.Render("Status:"), statusLabel(job.Status))
		if err != nil {
			return err
		}
		if job.Status == models.StatusPendingReview {
			cmd.Printf("✓ Prefilled, not submitted. Resume: %s\n", run.ResumePath)
			cmd.Printf("  Confirm once submitted: applyflow review confirm %s\n", job.ID)
		}
		return nil
	},
}

var applyBatchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Process queued and interrupted jobs one at a time",
	Long: `Process every queued job, resuming interrupted ones first. Jobs whose site has no
prefills left this window are skipped; the batch stops if a prefill is deferred.`,
	Example: `  applyflow apply batch --limit 10`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := appFrom(cmd)
		if err != nil {
			return err
		}
		profile, err := currentProfile(cmd, a)
		if err != nil {
			return err
		}
		limit, _ := cmd.Flags().GetInt("limit")

		var jobs []*models.Job
		for _, status := range batchOrder {
			found, err := a.Store.ListJobs(cmd.Context(), status)
			if err != nil {
				return fmt.Errorf("fetch jobs: %w", err)
			}
			jobs = append(jobs, found...)
		}
		if limit > 0 && len(jobs) > limit {
			jobs = jobs[:limit]
		}
		if len(jobs) == 0 {
			cmd.Println("No queued jobs. Add jobs with 'applyflow job ingest <file>'")
			return nil
		}

		cmd.Printf("Found %d jobs to process\n", len(jobs))
		var prefilled, failed, skipped int
		for i, job := range jobs {
			if err := cmd.Context().Err(); err != nil {
				return err
			}

			site := ratelimit.SiteKey(job.URL)
			if site != "" && a.Limiter.Remaining(site) == 0 {
				cmd.Printf("  ⊘ %s at %s: no prefills left for %s this window\n", job.Title, job.Company, site)
				skipped++
				continue
			}

			run, err := loadRun(cmd, a, job, profile)
			if err == nil {
				err = a.Automator.Process(cmd.Context(), run)
			}
			switch {
			case errors.Is(err, apperr.ErrRateLimited):
				cmd.Printf("  ⏸ %s at %s: %v\n", job.Title, job.Company, err)
				cmd.Printf("\nStopped with %d jobs left; run the batch again later\n", len(jobs)-i)
				printBatchSummary(cmd, prefilled, failed, skipped)
				return nil
			case err != nil:
				cmd.Printf("  ✗ %s at %s [%s]: %v\n", job.Title, job.Company, apperr.Kind(err), err)
				failed++
			default:
				cmd.Printf("  ✓ %s at %s %s\n", job.Title, job.Company, statusLabel(job.Status))
				prefilled++
			}
		}

		printBatchSummary(cmd, prefilled, failed, skipped)
		return nil
	},
}

// loadRun restores the tailored resume of a job that already passed tailoring.
func loadRun(cmd *cobra.Command, a *app.App, job *models.Job, profile *models.Profile) (*pipeline.Run, error) {
	run := &pipeline.Run{Job: job, Profile: profile}
	if job.Status != models.StatusPrefilling {
		return run, nil
	}

	resume, err := a.Store.LatestTailoredResume(cmd.Context(), job.ID)
	if errors.Is(err, apperr.ErrNotFound) {
		return run, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load tailored resume: %w", err)
	}
	run.Resume = resume

	if run.ResumePath, err = a.Renderer.Render(profile, job, resume); err != nil {
		return nil, fmt.Errorf("render resume %s: %w", render.FileName(job.ID), err)
	}
	return run, nil
}

func printBatchSummary(cmd *cobra.Command, prefilled, failed, skipped int) {
	cmd.Printf("\n✓ Prefilled %d applications awaiting review\n", prefilled)
	if skipped > 0 {
		cmd.Printf("⊘ Skipped %d jobs (site rate limit)\n", skipped)
	}
	if failed > 0 {
		cmd.Printf("✗ Failed %d jobs (see 'applyflow log')\n", failed)
	}
}

func init() {
	rootCmd.AddCommand(applyCmd)
	applyCmd.AddCommand(applyRunCmd)
	applyCmd.AddCommand(applyBatchCmd)

	applyBatchCmd.Flags().Int("limit", 0, "Process at most this many jobs (0 for all)")
}
