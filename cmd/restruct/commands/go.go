package commands

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/l3aro/restruct/internal/config"
	"github.com/l3aro/restruct/pkg/cfg"
)

// goCmd represents the go command
var goCmd = &cobra.Command{
	Use:   "go <file.go> <function>",
	Short: "Extract a Go function's CFG and structure it",
	Long: `Parses a Go source file, builds the control-flow graph of one function and
prints the structured tree recovered from it. Methods are named
Type.Method.

With --cfg the extracted graph is printed instead of being structured.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		filePath, functionName := args[0], args[1]

		if err := checkGoFile(filePath); err != nil {
			return err
		}

		formatFlag, _ := cmd.Flags().GetString("format")
		format, err := outputFormat(formatFlag)
		if err != nil {
			return err
		}

		info, err := cfg.ExtractCFG(filePath, functionName)
		if err != nil {
			if errors.Is(err, cfg.ErrUnsupported) {
				return err
			}
			if strings.Contains(err.Error(), "not found") {
				if names, lerr := cfg.ListFunctions(filePath); lerr == nil && len(names) > 0 {
					return fmt.Errorf("function %q not found in %s (available: %s)", functionName, filePath, strings.Join(names, ", "))
				}
			}
			return fmt.Errorf("extracting CFG: %w", err)
		}

		d, err := info.Description()
		if err != nil {
			return fmt.Errorf("converting CFG: %w", err)
		}

		out := cmd.OutOrStdout()
		if dump, _ := cmd.Flags().GetBool("cfg"); dump {
			if format == config.FormatText {
				printCFGInfo(out, info)
				return nil
			}
			return renderData(out, d, format)
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

		n, _, err := e.run(d)
		if err != nil {
			return fmt.Errorf("structuring %s: %w", functionName, err)
		}
		return renderNode(out, n, format)
	},
}

func checkGoFile(filePath string) error {
	info, err := os.Stat(filePath)
	if err != nil {
		return fmt.Errorf("stat file: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("path is a directory, expected a file: %s", filePath)
	}
	if !strings.HasSuffix(filePath, ".go") {
		return fmt.Errorf("unsupported file type: %s (only .go files supported)", filePath)
	}
	return nil
}

// printCFGInfo prints CFG information in human-readable format.
func printCFGInfo(w io.Writer, info *cfg.CFGInfo) {
	fmt.Fprintf(w, "=== CFG for function: %s ===\n", info.FunctionName)
	fmt.Fprintf(w, "Cyclomatic Complexity: %d\n", info.CyclomaticComplexity)
	fmt.Fprintf(w, "Entry Block: %s\n", info.EntryBlockID)
	fmt.Fprintf(w, "Exit Blocks: %v\n", info.ExitBlockIDs)

	ids := make([]string, 0, len(info.Blocks))
	for id := range info.Blocks {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return info.Blocks[ids[i]].StartLine < info.Blocks[ids[j]].StartLine ||
			(info.Blocks[ids[i]].StartLine == info.Blocks[ids[j]].StartLine && ids[i] < ids[j])
	})

	fmt.Fprintf(w, "\nBlocks (%d):\n", len(info.Blocks))
	for _, id := range ids {
		block := info.Blocks[id]
		fmt.Fprintf(w, "  %s (%s, lines %d-%d)\n", id, block.Type, block.StartLine, block.EndLine)
		for _, stmt := range block.Statements {
			fmt.Fprintf(w, "    %s\n", stmt)
		}
	}

	fmt.Fprintf(w, "\nEdges (%d):\n", len(info.Edges))
	for _, edge := range info.Edges {
		label := string(edge.EdgeType)
		switch {
		case edge.Condition != "":
			label += " " + edge.Condition
		case len(edge.CaseValues) > 0:
			label += " " + strings.Join(edge.CaseValues, ", ")
		}
		fmt.Fprintf(w, "  %s --%s--> %s\n", edge.SourceID, label, edge.TargetID)
	}
}

func init() {
	goCmd.Flags().StringP("format", "f", "", "Output format: text, json, yaml or msgpack (default from config)")
	goCmd.Flags().Bool("cfg", false, "Print the extracted CFG instead of structuring it")
	addEngineFlags(goCmd)
	RootCmd.AddCommand(goCmd)
}
