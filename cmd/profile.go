package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/khrees2412/applyflow/pkg/models"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage your profile",
	Long:  "Import and view the profile used for matching, tailoring and form prefill",
}

var importProfileCmd = &cobra.Command{
	Use:     "import <file>",
	Short:   "Import a profile from a YAML or JSON file",
	Args:    cobra.ExactArgs(1),
	Example: `  applyflow profile import profile.yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := appFrom(cmd)
		if err != nil {
			return err
		}

		profile, err := loadProfile(args[0])
		if err != nil {
			return err
		}
		if err := a.Store.SaveProfile(cmd.Context(), profile); err != nil {
			return fmt.Errorf("save profile: %w", err)
		}

		cmd.Printf("✓ Profile imported: %s (%d projects, ID: %s)\n", profile.Name, len(profile.Projects), profile.ID)
		return nil
	},
}

var showProfileCmd = &cobra.Command{
	Use:   "show",
	Short: "Display your profile",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := appFrom(cmd)
		if err != nil {
			return err
		}
		profile, err := currentProfile(cmd, a)
		if err != nil {
			return err
		}

		cmd.Println(titleStyle.Render(profile.Name))
		printField(cmd, "Email:", profile.Email)
		printField(cmd, "Phone:", profile.Phone)
		printField(cmd, "Location:", profile.Location)
		printField(cmd, "LinkedIn:", profile.LinkedIn)
		printField(cmd, "GitHub:", profile.GitHub)
		printField(cmd, "Skills:", strings.Join(profile.Skills, ", "))
		if profile.Objective != "" {
			cmd.Println(labelStyle.Render("\nObjective:"))
			cmd.Println(valueStyle.Render(profile.Objective))
		}

		cmd.Println(labelStyle.Render("\nProjects:"))
		for _, p := range profile.Projects {
			cmd.Printf("  • %s %s\n", p.Title, valueStyle.Render("("+p.ID+")"))
			if len(p.TechStack) > 0 {
				cmd.Printf("    %s\n", valueStyle.Render(strings.Join(p.TechStack, ", ")))
			}
		}
		return nil
	},
}

// loadProfile reads a profile file. JSON is parsed by the YAML decoder as well.
func loadProfile(path string) (*models.Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profile: %w", err)
	}

	var profile models.Profile
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("parse profile %s: %w", filepath.Base(path), err)
	}
	if profile.ID == "" {
		profile.ID = uuid.NewString()
	}
	if err := profile.Validate(); err != nil {
		return nil, err
	}
	return &profile, nil
}

func printField(cmd *cobra.Command, label, value string) {
	if value == "" {
		return
	}
	cmd.Printf("%s %s\n", labelStyle.Render(label), value)
}

func init() {
	rootCmd.AddCommand(profileCmd)
	profileCmd.AddCommand(importProfileCmd)
	profileCmd.AddCommand(showProfileCmd)
}
