package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/khrees2412/applyflow/internal/config"
)

var configCmd = &cobra.Command{
	Use:         "config",
	Short:       "Manage configuration",
	Long:        "View and update configuration settings",
	Annotations: map[string]string{skipApp: "true"},
}

var showConfigCmd = &cobra.Command{
	Use:         "show",
	Short:       "Display current configuration",
	Annotations: map[string]string{skipApp: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := configDir(cmd)
		if err != nil {
			return err
		}
		// Load validates the file the same way the pipeline will.
		if _, err := config.Load(dir); err != nil {
			return err
		}

		cmd.Println(titleStyle.Render("Configuration"))
		cmd.Printf("%s %s\n", labelStyle.Render("Config File:"), config.Path(dir))
		for _, key := range config.Keys() {
			value, err := config.Get(dir, key)
			if err != nil {
				return err
			}

			// Show if secrets are configured (but don't show the actual values)
			if config.IsSecret(key) {
				if value != "" {
					value = "✓ Configured"
				} else {
					value = "✗ Not configured"
				}
			}
			cmd.Printf("%s %s\n", labelStyle.Render(key+":"), value)
		}
		return nil
	},
}

var setConfigCmd = &cobra.Command{
	Use:         "set",
	Short:       "Update a configuration value",
	Annotations: map[string]string{skipApp: "true"},
	Example: `  applyflow config set --key gateway.provider --value gemini
  applyflow config set --key gateway.gemini_api_key --value AIza...
  applyflow config set --key automation.backend --value playwright
  applyflow config set --key rate_limit.limit --value 3`,
	RunE: func(cmd *cobra.Command, args []string) error {
		key, _ := cmd.Flags().GetString("key")
		value, _ := cmd.Flags().GetString("value")

		if key == "" || value == "" {
			return fmt.Errorf("both --key and --value are required")
		}

		dir, err := configDir(cmd)
		if err != nil {
			return err
		}
		if err := config.Set(dir, key, value); err != nil {
			return fmt.Errorf("update config: %w", err)
		}

		cmd.Printf("✓ Configuration updated: %s\n", key)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(showConfigCmd)
	configCmd.AddCommand(setConfigCmd)

	// Flags for set command
	setConfigCmd.Flags().String("key", "", "Configuration key")
	setConfigCmd.Flags().String("value", "", "Configuration value")
}
