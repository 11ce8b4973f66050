package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/l3aro/restruct/pkg/cfg"
)

// structureCmd represents the structure command
var structureCmd = &cobra.Command{
	Use:   "structure <description>",
	Short: "Structure a CFG description",
	Long: `Reads a control-flow graph description and prints the structured program
tree recovered from it.

The description format follows the file extension (.yaml, .yml, .json,
.msgpack or .mp). Use "-" to read from stdin together with --input-format.

Examples:
  restruct structure diamond.yaml
  restruct structure loop.json --format json
  cat g.yaml | restruct structure - --input-format yaml --trace`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := readDescription(cmd, args[0])
		if err != nil {
			return err
		}

		formatFlag, _ := cmd.Flags().GetString("format")
		format, err := outputFormat(formatFlag)
		if err != nil {
			return err
		}

		e, err := newEngine(cmd)
		if err != nil {
			return err
		}
		defer func() {
			if err := e.close(); err != nil {
				logger.Warn("saving result cache", "err", err)
			}
		}()

		n, hit, err := e.run(d)
		if err != nil {
			return fmt.Errorf("structuring %s: %w", describe(d, args[0]), err)
		}
		logger.Debug("structured", "name", d.Name, "blocks", len(d.Blocks), "cached", hit)

		return renderNode(cmd.OutOrStdout(), n, format)
	},
}

// readDescription loads a description from path, or from stdin for "-".
func readDescription(cmd *cobra.Command, path string) (*cfg.Description, error) {
	if path != "-" {
		return cfg.Load(path)
	}
	name, _ := cmd.Flags().GetString("input-format")
	f, err := cfg.ParseFormat(name)
	if err != nil {
		return nil, err
	}
	return cfg.Decode(cmd.InOrStdin(), f)
}

func describe(d *cfg.Description, fallback string) string {
	if d.Name != "" {
		return d.Name
	}
	return fallback
}

func init() {
	structureCmd.Flags().StringP("format", "f", "", "Output format: text, json, yaml or msgpack (default from config)")
	structureCmd.Flags().String("input-format", "yaml", "Description format when reading stdin")
	addEngineFlags(structureCmd)
	RootCmd.AddCommand(structureCmd)
}
