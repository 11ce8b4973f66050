// Package commands provides the CLI commands for the restruct tool.
package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/l3aro/restruct/internal/config"
	"github.com/l3aro/restruct/internal/log"
)

var (
	appConfig *config.Config
	logger    *log.DefaultLogger
)

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "restruct",
	Short: "restruct - recover structured control flow from control-flow graphs",
	Long: `restruct turns a control-flow graph into a structured program tree of
sequences, conditionals, loops and switches.

Commands:
  structure   Structure a CFG description (YAML, JSON or msgpack)
  go          Extract a Go function's CFG and structure it
  batch       Structure every function of a Go file or directory concurrently
  cache       Inspect or clear the result cache
  init        Create a configuration file interactively

Use "restruct [command] --help" for more information about a command.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// Cancelling ctx stops long-running commands such as batch --watch.
func Execute(ctx context.Context) error {
	return RootCmd.ExecuteContext(ctx)
}

// setup loads the configuration, applies global flags and builds the logger.
func setup(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")

	var c *config.Config
	var err error
	if configPath != "" {
		c, err = config.LoadFromFile(configPath)
	} else {
		c, err = config.Load()
	}
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if cmd.Flags().Changed("verbose") {
		c.Verbose, _ = cmd.Flags().GetBool("verbose")
	}
	if cmd.Flags().Changed("log-json") {
		c.LogJSON, _ = cmd.Flags().GetBool("log-json")
	}

	appConfig = c
	logger = log.New(log.LoggerConfig{
		Level:      c.Level(),
		JSONOutput: c.LogJSON,
		Stderr:     cmd.ErrOrStderr(),
	})
	return nil
}

func init() {
	RootCmd.PersistentFlags().String("config", "", "Config file path (default: ~/.restruct and ./.restruct)")
	RootCmd.PersistentFlags().BoolP("verbose", "v", false, "Log every region collapse")
	RootCmd.PersistentFlags().Bool("log-json", false, "Write logs as JSON lines")
}
