package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/khrees2412/applyflow/internal/app"
	"github.com/khrees2412/applyflow/internal/apperr"
	"github.com/khrees2412/applyflow/internal/config"
	"github.com/khrees2412/applyflow/internal/database"
	"github.com/khrees2412/applyflow/pkg/models"
)

// skipApp marks commands that only need the config directory.
const skipApp = "skip-app"

// application is the container opened for the running command, closed by Execute.
var application *app.App

var rootCmd = &cobra.Command{
	Use:   "applyflow",
	Short: "Job application pipeline with a human review gate",
	Long: `Applyflow scores job postings against your profile, tailors your resume for each one
and prefills the application form in a browser. It never submits: every application stops
at PENDING_REVIEW until you confirm it with 'applyflow review confirm'.`,
	Version:       "0.2.0",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Annotations[skipApp] != "" {
			return nil
		}

		dir, err := configDir(cmd)
		if err != nil {
			return err
		}

		a, err := app.NewApp(cmd.Context(), dir)
		if err != nil {
			return fmt.Errorf("failed to initialize app: %w", err)
		}
		application = a
		cmd.SetContext(app.WithApp(cmd.Context(), a))
		return nil
	},
}

// Execute runs the root command and returns the process exit code
func Execute(ctx context.Context) int {
	err := rootCmd.ExecuteContext(ctx)

	if application != nil {
		application.Close()
	}

	if err != nil {
		if kind := apperr.Kind(err); kind != "Unknown" {
			fmt.Fprintf(os.Stderr, "%s [%s]: %v\n", errorStyle.Render("Error"), kind, err)
		} else {
			fmt.Fprintf(os.Stderr, "%s: %v\n", errorStyle.Render("Error"), err)
		}
		if errors.Is(err, context.Canceled) {
			return 130
		}
		return 1
	}
	return 0
}

func configDir(cmd *cobra.Command) (string, error) {
	dir, _ := cmd.Flags().GetString("home")
	if dir != "" {
		return dir, nil
	}
	return config.DefaultDir()
}

func appFrom(cmd *cobra.Command) (*app.App, error) {
	a := app.FromContext(cmd.Context())
	if a == nil {
		return nil, fmt.Errorf("application not initialized")
	}
	return a, nil
}

// currentProfile loads the imported profile or explains how to add one.
func currentProfile(cmd *cobra.Command, a *app.App) (*models.Profile, error) {
	profile, err := a.Store.CurrentProfile(cmd.Context())
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, fmt.Errorf("no profile configured, run 'applyflow profile import <file>': %w", err)
	}
	return profile, err
}

func findJob(cmd *cobra.Command, store *database.Store, ref string) (*models.Job, error) {
	job, err := store.FindJob(cmd.Context(), ref)
	if err != nil {
		return nil, fmt.Errorf("fetch job: %w", err)
	}
	return job, nil
}

func init() {
	rootCmd.PersistentFlags().String("home", "", "Data and config directory (default ~/.applyflow)")
}
