package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/khrees2412/applyflow/internal/ratelimit"
	"github.com/khrees2412/applyflow/pkg/models"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "View application counts by status",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := appFrom(cmd)
		if err != nil {
			return err
		}

		counts, err := a.Store.CountByStatus(cmd.Context())
		if err != nil {
			return fmt.Errorf("count jobs: %w", err)
		}
		if counts.Total() == 0 {
			cmd.Println("No jobs yet. Add jobs with 'applyflow job ingest <file>'")
			return nil
		}

		cmd.Println(titleStyle.Render("Your Applications"))
		for _, status := range models.AllStatuses {
			n := counts[status]
			bar := strings.Repeat("█", min(n, 40))
			cmd.Printf("%s %4d %s\n", statusColumn(status), n, valueStyle.Render(bar))
		}
		cmd.Printf("\n%s %d\n", labelStyle.Render("Total Jobs:"), counts.Total())

		cfg := a.Limiter.Config()
		if cfg.Limit > 0 {
			cmd.Printf("%s %d per %s per site (%s)\n", labelStyle.Render("Prefill Limit:"), cfg.Limit, cfg.Window, cfg.Mode)
		}

		if site, _ := cmd.Flags().GetString("site"); site != "" {
			key := ratelimit.SiteKey(site)
			cmd.Printf("%s %d left for %s\n", labelStyle.Render("Budget:"), a.Limiter.Remaining(key), key)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().String("site", "", "Show the remaining prefill budget for a site or job URL")
}
