package commands

import (
	"fmt"
	"os"
	"strconv"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/l3aro/restruct/internal/config"
)

// initCmd represents the init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a restruct configuration interactively",
	Long: `Guides you through setting up restruct step by step and writes the answers
to ./.restruct/config.yaml, or ~/.restruct/config.yaml with --global.`,
	Args:              cobra.NoArgs,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	RunE: func(cmd *cobra.Command, args []string) error {
		global, _ := cmd.Flags().GetBool("global")
		return runInit(cmd, global)
	},
}

func runInit(cmd *cobra.Command, global bool) error {
	c := config.DefaultConfig()
	workers := strconv.Itoa(c.Workers)

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Output format").
				Description("How structured trees are printed by default").
				Options(
					huh.NewOption("Indented text", config.FormatText),
					huh.NewOption("JSON", config.FormatJSON),
					huh.NewOption("YAML", config.FormatYAML),
					huh.NewOption("MessagePack", config.FormatMsgpack),
				).
				Value(&c.OutputFormat),
			huh.NewSelect[string]().
				Title("Log level").
				Options(
					huh.NewOption("Debug", "debug"),
					huh.NewOption("Info", "info"),
					huh.NewOption("Warn", "warn"),
					huh.NewOption("Error", "error"),
				).
				Value(&c.LogLevel),
		),
		huh.NewGroup(
			huh.NewConfirm().
				Title("Result cache").
				Description("Cache structured results by CFG fingerprint?").
				Affirmative("Yes").
				Negative("No").
				Value(&c.CacheEnabled),
			huh.NewInput().
				Title("Batch workers").
				Description("Functions structured concurrently by restruct batch").
				Value(&workers).
				Validate(func(s string) error {
					n, err := strconv.Atoi(s)
					if err != nil || n <= 0 {
						return fmt.Errorf("enter a positive number")
					}
					return nil
				}),
			huh.NewConfirm().
				Title("Verify").
				Description("Check graph invariants after every collapse (slower)").
				Value(&c.Verify),
		),
	)
	if err := form.Run(); err != nil {
		return fmt.Errorf("interactive prompt failed: %w", err)
	}
	c.Workers, _ = strconv.Atoi(workers)

	configPath := config.ProjectConfigFilePath()
	if global {
		configPath = config.GlobalConfigFilePath()
	}

	out := cmd.OutOrStdout()
	if _, err := os.Stat(configPath); err == nil {
		var overwrite bool
		confirm := huh.NewForm(
			huh.NewGroup(
				huh.NewConfirm().
					Title("Config file exists").
					Description(fmt.Sprintf("Overwrite existing config at %s?", configPath)).
					Affirmative("Overwrite").
					Negative("Cancel").
					Value(&overwrite),
			),
		)
		if err := confirm.Run(); err != nil {
			return fmt.Errorf("interactive prompt failed: %w", err)
		}
		if !overwrite {
			fmt.Fprintln(out, "Cancelled.")
			return nil
		}
	}

	if err := c.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	fmt.Fprintln(out, "\n=== Configuration Preview ===")
	fmt.Fprintf(out, "Config path:   %s\n", configPath)
	fmt.Fprintf(out, "Output format: %s\n", c.OutputFormat)
	fmt.Fprintf(out, "Log level:     %s\n", c.LogLevel)
	fmt.Fprintf(out, "Cache:         %t (%s)\n", c.CacheEnabled, c.CacheDir)
	fmt.Fprintf(out, "Workers:       %d\n", c.Workers)
	fmt.Fprintf(out, "Verify:        %t\n", c.Verify)
	fmt.Fprintln(out, "=============================")

	if err := c.Save(configPath); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}
	fmt.Fprintf(out, "Configuration saved to: %s\n", configPath)
	return nil
}

func init() {
	initCmd.Flags().Bool("global", false, "Write the global config instead of the project one")
	RootCmd.AddCommand(initCmd)
}
