package commands

import (
	"errors"
	"fmt"
	"os"
	"sync/atomic"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/l3aro/restruct/internal/log"
	"github.com/l3aro/restruct/internal/scanner"
	"github.com/l3aro/restruct/internal/watch"
	"github.com/l3aro/restruct/pkg/ast"
	"github.com/l3aro/restruct/pkg/cfg"
	"github.com/l3aro/restruct/pkg/structure"
)

// batchJob is one function to structure.
type batchJob struct {
	file  string // path passed to the extractor
	name  string // function name within file
	label string
}

// batchResult is the outcome of structuring one function.
type batchResult struct {
	name   string
	node   ast.Node
	blocks int
	cached bool
	err    error
}

func (r batchResult) stuck() bool {
	return errors.Is(r.err, structure.ErrStructuringStuck)
}

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch <file.go|dir>",
	Short: "Structure every function of a Go file or package tree concurrently",
	Long: `Extracts and structures every function and method of a Go file, or of every
Go file under a directory. Directories are scanned recursively, skipping
hidden, vendor and testdata directories, _test.go files and paths listed
in .restructignore files.

Functions are processed by a bounded pool of workers; one line is printed
per function followed by a summary. Use --tree to print each structured
tree in text format, and --watch to re-run whenever a Go file changes.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		root := args[0]

		e, err := newEngine(cmd)
		if err != nil {
			return err
		}
		defer func() {
			if err := e.close(); err != nil {
				logger.Warn("saving result cache", "err", err)
			}
		}()

		if err := runBatch(cmd, e, root); err != nil {
			return err
		}

		if watching, _ := cmd.Flags().GetBool("watch"); watching {
			return watchBatch(cmd, e, root)
		}
		return nil
	},
}

// runBatch structures every function under root once and prints the report.
func runBatch(cmd *cobra.Command, e *engine, root string) error {
	workers, _ := cmd.Flags().GetInt("workers")
	if workers <= 0 {
		workers = appConfig.Workers
	}
	showTree, _ := cmd.Flags().GetBool("tree")

	jobs, err := collectJobs(cmd, root)
	if err != nil {
		return err
	}
	if len(jobs) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "no functions in %s\n", root)
		return nil
	}

	spinner := log.NewProgressSpinner(cmd.ErrOrStderr(), fmt.Sprintf("Structuring %d functions...", len(jobs)))
	spinner.Start()

	results := make([]batchResult, len(jobs))
	var done atomic.Int32

	g, gCtx := errgroup.WithContext(cmd.Context())
	g.SetLimit(workers)
	for i, job := range jobs {
		i, job := i, job
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				results[i] = batchResult{name: job.label, err: err}
				return nil
			}
			results[i] = structureFunction(e, job)
			spinner.Message(fmt.Sprintf("Structured %d/%d functions", done.Add(1), len(jobs)))
			return nil
		})
	}
	_ = g.Wait()
	spinner.Stop()

	printBatch(cmd, results, showTree)
	return nil
}

// watchBatch re-runs the batch whenever a Go file under root changes, until
// the command context is cancelled.
func watchBatch(cmd *cobra.Command, e *engine, root string) error {
	opts := scanner.DefaultOptions()
	w, err := watch.New(root, watch.Options{SkipDir: opts.SkipsDir})
	if err != nil {
		return fmt.Errorf("watching %s: %w", root, err)
	}
	logger.Info("watching for changes", "path", root)

	return w.Run(cmd.Context(), func(paths []string) {
		logger.Debug("files changed", "paths", paths)
		fmt.Fprintf(cmd.OutOrStdout(), "\n%d file(s) changed, re-running\n", len(paths))
		if err := runBatch(cmd, e, root); err != nil {
			logger.Error("batch run failed", "err", err)
		}
		if err := e.close(); err != nil {
			logger.Warn("saving result cache", "err", err)
		}
	})
}

// collectJobs lists the functions of root, a Go file or a directory tree.
// Functions of a directory are labelled with their file.
func collectJobs(cmd *cobra.Command, root string) ([]batchJob, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("stat path: %w", err)
	}
	if !info.IsDir() {
		if err := checkGoFile(root); err != nil {
			return nil, err
		}
	}

	opts := scanner.DefaultOptions()
	opts.IncludeTests, _ = cmd.Flags().GetBool("tests")
	files, err := scanner.New(opts).Scan(root)
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", root, err)
	}

	var jobs []batchJob
	for _, f := range files {
		names, err := cfg.ListFunctions(f.FullPath)
		if err != nil {
			logger.Warn("skipping unparsable file", "file", f.Path, "err", err)
			continue
		}
		for _, name := range names {
			label := name
			if info.IsDir() {
				label = f.Path + ":" + name
			}
			jobs = append(jobs, batchJob{file: f.FullPath, name: name, label: label})
		}
	}
	logger.Debug("batch jobs", "files", len(files), "functions", len(jobs))
	return jobs, nil
}

func structureFunction(e *engine, job batchJob) batchResult {
	r := batchResult{name: job.label}
	info, err := cfg.ExtractCFG(job.file, job.name)
	if err != nil {
		r.err = err
		return r
	}
	d, err := info.Description()
	if err != nil {
		r.err = err
		return r
	}
	r.blocks = len(d.Blocks)
	r.node, r.cached, r.err = e.run(d)
	return r
}

func printBatch(cmd *cobra.Command, results []batchResult, showTree bool) {
	out := cmd.OutOrStdout()
	p := newPainter(out)

	var ok, stuck, failed int
	for _, r := range results {
		switch {
		case r.err == nil:
			ok++
			note := ""
			if r.cached {
				note = " (cached)"
			}
			fmt.Fprintf(out, "%s %s: %d blocks%s\n", p.paint(okStyle, "ok   "), r.name, r.blocks, note)
			if showTree {
				renderText(out, r.node)
			}
		case r.stuck():
			stuck++
			fmt.Fprintf(out, "%s %s: %v\n", p.paint(failStyle, "stuck"), r.name, r.err)
		default:
			failed++
			fmt.Fprintf(out, "%s %s: %v\n", p.paint(failStyle, "fail "), r.name, r.err)
		}
	}
	fmt.Fprintf(out, "structured %d of %d functions (%d stuck, %d failed)\n", ok, len(results), stuck, failed)
}

func init() {
	batchCmd.Flags().IntP("workers", "w", 0, "Number of concurrent workers (default from config)")
	batchCmd.Flags().Bool("tree", false, "Print each structured tree")
	batchCmd.Flags().Bool("tests", false, "Include _test.go files when scanning a directory")
	batchCmd.Flags().Bool("watch", false, "Re-run whenever a Go file changes")
	addEngineFlags(batchCmd)
	RootCmd.AddCommand(batchCmd)
}
