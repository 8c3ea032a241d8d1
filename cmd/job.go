package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/khrees2412/applyflow/internal/app"
	"github.com/khrees2412/applyflow/internal/ingest"
	"github.com/khrees2412/applyflow/pkg/models"
)

var jobCmd = &cobra.Command{
	Use:   "job",
	Short: "Manage job postings",
	Long:  "Add, ingest, list, view, and remove job postings",
}

var addJobCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a job posting",
	Example: `  applyflow job add --url https://jobs.lever.co/acme/123 --title "Software Engineer" \
    --company "Acme Inc" --description "Go, Postgres and Kubernetes"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := appFrom(cmd)
		if err != nil {
			return err
		}

		job := models.Job{}
		job.URL, _ = cmd.Flags().GetString("url")
		job.Title, _ = cmd.Flags().GetString("title")
		job.Company, _ = cmd.Flags().GetString("company")
		job.Location, _ = cmd.Flags().GetString("location")
		job.Description, _ = cmd.Flags().GetString("description")
		job.Source, _ = cmd.Flags().GetString("source")

		if job.Title == "" || job.Description == "" {
			return fmt.Errorf("--title and --description are required")
		}

		result, err := runIngest(cmd, a, ingest.StaticSource{job}, false)
		if err != nil {
			return err
		}
		switch {
		case len(result.Added) == 1:
			added := result.Added[0]
			cmd.Printf("✓ Job added: %s at %s (ID: %s)\n", added.Title, added.Company, added.ID)
		case result.Duplicates > 0:
			cmd.Println("This job has already been added.")
		default:
			cmd.Println("Job was not added; see 'applyflow log' for details.")
		}
		return nil
	},
}

var ingestJobsCmd = &cobra.Command{
	Use:   "ingest <file>",
	Short: "Ingest job postings from a JSON or YAML feed",
	Args:  cobra.ExactArgs(1),
	Example: `  applyflow job ingest jobs.yaml
  applyflow job ingest feed.json --match`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := appFrom(cmd)
		if err != nil {
			return err
		}
		match, _ := cmd.Flags().GetBool("match")

		result, err := runIngest(cmd, a, ingest.FileSource{Path: args[0]}, match)
		if err != nil {
			return err
		}

		cmd.Println(titleStyle.Render("Ingest Summary"))
		cmd.Printf("%s %d\n", labelStyle.Render("Added:"), len(result.Added))
		cmd.Printf("%s %d\n", labelStyle.Render("Duplicates:"), result.Duplicates)
		cmd.Printf("%s %d\n", labelStyle.Render("Invalid:"), result.Invalid)
		for _, job := range result.Added {
			cmd.Printf("  • %s at %s %s\n", job.Title, job.Company, scoreLabel(job))
		}
		return nil
	},
}

var listJobsCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved jobs",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := appFrom(cmd)
		if err != nil {
			return err
		}

		status, err := statusFlag(cmd)
		if err != nil {
			return err
		}
		jobs, err := a.Store.ListJobs(cmd.Context(), status)
		if err != nil {
			return fmt.Errorf("fetch jobs: %w", err)
		}

		if len(jobs) == 0 {
			cmd.Println("No jobs found. Add jobs with 'applyflow job add' or 'applyflow job ingest <file>'")
			return nil
		}

		cmd.Println(titleStyle.Render("Saved Jobs"))
		for i, job := range jobs {
			cmd.Printf("\n%s. %s %s\n", labelStyle.Render(fmt.Sprintf("%d", i+1)), job.Title, statusLabel(job.Status))
			cmd.Printf("   %s %s\n", labelStyle.Render("Company:"), job.Company)
			cmd.Printf("   %s %s\n", labelStyle.Render("ID:"), job.ID)
			if job.MatchScore != nil {
				cmd.Printf("   %s %d\n", labelStyle.Render("Match:"), *job.MatchScore)
			}
			if job.URL != "" {
				cmd.Printf("   %s %s\n", labelStyle.Render("URL:"), job.URL)
			}
		}
		return nil
	},
}

var showJobCmd = &cobra.Command{
	Use:   "show <job-id>",
	Short: "Show details of a specific job",
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

		cmd.Println(titleStyle.Render(job.Title))
		printField(cmd, "Company:", job.Company)
		printField(cmd, "Location:", job.Location)
		printField(cmd, "URL:", job.URL)
		printField(cmd, "Source:", job.Source)
		cmd.Printf("%s %s\n", labelStyle.Render("Status:"), statusLabel(job.Status))
		if job.MatchScore != nil {
			cmd.Printf("%s %d\n", labelStyle.Render("Match Score:"), *job.MatchScore)
			printField(cmd, "Reasoning:", job.MatchReasoning)
		}
		if !job.UpdatedAt.IsZero() {
			cmd.Printf("%s %s\n", labelStyle.Render("Updated:"), job.UpdatedAt.Local().Format("Jan 2, 2006 15:04"))
		}
		if job.Description != "" {
			cmd.Println(labelStyle.Render("\nDescription:"))
			cmd.Println(job.Description)
		}
		return nil
	},
}

var removeJobCmd = &cobra.Command{
	Use:   "remove <job-id>",
	Short: "Remove a job posting",
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

		if err := a.Store.DeleteJob(cmd.Context(), job.ID); err != nil {
			return fmt.Errorf("remove job: %w", err)
		}

		cmd.Printf("✓ Removed job: %s at %s\n", job.Title, job.Company)
		return nil
	},
}

func runIngest(cmd *cobra.Command, a *app.App, src ingest.Source, match bool) (*ingest.Result, error) {
	var profile *models.Profile
	if match {
		var err error
		if profile, err = currentProfile(cmd, a); err != nil {
			return nil, err
		}
	}
	return a.Ingester(profile).Ingest(cmd.Context(), src)
}

func statusFlag(cmd *cobra.Command) (models.ApplicationStatus, error) {
	raw, _ := cmd.Flags().GetString("status")
	if raw == "" {
		return "", nil
	}
	status := models.ApplicationStatus(strings.ToUpper(raw))
	if !status.Valid() {
		return "", fmt.Errorf("invalid status %q: must be one of %v", raw, models.AllStatuses)
	}
	return status, nil
}

func scoreLabel(job *models.Job) string {
	if job.MatchScore == nil {
		return ""
	}
	return valueStyle.Render(fmt.Sprintf("(match %d)", *job.MatchScore))
}

func init() {
	rootCmd.AddCommand(jobCmd)
	jobCmd.AddCommand(addJobCmd)
	jobCmd.AddCommand(ingestJobsCmd)
	jobCmd.AddCommand(listJobsCmd)
	jobCmd.AddCommand(showJobCmd)
	jobCmd.AddCommand(removeJobCmd)

	addJobCmd.Flags().String("url", "", "Application URL")
	addJobCmd.Flags().String("title", "", "Job title")
	addJobCmd.Flags().String("company", "", "Company name")
	addJobCmd.Flags().String("location", "", "Job location")
	addJobCmd.Flags().String("description", "", "Job description (plain text or HTML)")
	addJobCmd.Flags().String("source", "", "Job board (linkedin, greenhouse, lever, ...); derived from the URL when empty")

	ingestJobsCmd.Flags().Bool("match", false, "Score new jobs against your profile before storing them")

	listJobsCmd.Flags().String("status", "", "Filter by status (QUEUED, PENDING_REVIEW, APPLIED, ...)")
}
