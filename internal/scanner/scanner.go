// Package scanner finds the Go source files under a directory. It respects
// .restructignore files with gitignore-style patterns.
package scanner

import (
	"bufio"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// File is a Go source file found by Scan.
type File struct {
	Path     string // Relative path from root, slash separated
	FullPath string
	Size     int64
}

// Options configures the scanner behavior.
type Options struct {
	SkipHidden     bool     // Skip hidden files and directories (starting with .)
	IncludeTests   bool     // Include _test.go files
	Excludes       []string // Directory names never entered
	IgnoreFileName string   // Name of the ignore file (default: .restructignore)
}

// DefaultOptions returns scanner options with sensible defaults.
func DefaultOptions() Options {
	return Options{
		SkipHidden:     true,
		IgnoreFileName: ".restructignore",
		Excludes: []string{
			".git",
			".hg",
			".svn",
			"vendor",
			"testdata",
			"node_modules",
			"_examples",
		},
	}
}

// Scanner walks a directory tree collecting Go sources.
type Scanner struct {
	opts Options
}

// New creates a new Scanner with the given options.
func New(opts Options) *Scanner {
	if opts.IgnoreFileName == "" {
		opts.IgnoreFileName = ".restructignore"
	}
	return &Scanner{opts: opts}
}

// Scan returns the Go files under root sorted by path. A root that is
// itself a .go file is returned as the only result.
func (s *Scanner) Scan(root string) ([]File, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("getting absolute path: %w", err)
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		if !IsGoSource(absRoot) {
			return nil, fmt.Errorf("not a Go source file: %s", root)
		}
		return []File{{Path: filepath.Base(absRoot), FullPath: absRoot, Size: info.Size()}}, nil
	}

	patterns, err := s.loadIgnorePatterns(absRoot)
	if err != nil {
		return nil, fmt.Errorf("loading ignore patterns: %w", err)
	}

	var files []File
	err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// unreadable entries are skipped, not fatal
			return nil
		}
		rel, err := filepath.Rel(absRoot, path)
		if err != nil || rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if s.opts.SkipHidden && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			if s.opts.SkipsDir(d.Name()) || ignored(rel+"/", patterns) {
				return filepath.SkipDir
			}
			nested, err := s.loadIgnorePatterns(path)
			if err == nil {
				for _, p := range nested {
					patterns = append(patterns, p.under(rel))
				}
			}
			return nil
		}

		if !d.Type().IsRegular() || !IsGoSource(path) || ignored(rel, patterns) {
			return nil
		}
		if !s.opts.IncludeTests && strings.HasSuffix(path, "_test.go") {
			return nil
		}

		fi, err := d.Info()
		if err != nil {
			return nil
		}
		files = append(files, File{Path: rel, FullPath: path, Size: fi.Size()})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking directory: %w", err)
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

// IsGoSource reports whether path names a Go source file.
func IsGoSource(path string) bool {
	return filepath.Ext(path) == ".go"
}

// SkipsDir reports whether a directory with this name is never entered.
func (o Options) SkipsDir(name string) bool {
	if o.SkipHidden && strings.HasPrefix(name, ".") {
		return true
	}
	for _, exclude := range o.Excludes {
		if strings.EqualFold(name, exclude) {
			return true
		}
	}
	return false
}

// loadIgnorePatterns reads the ignore file in dir. A missing file yields no
// patterns.
func (s *Scanner) loadIgnorePatterns(dir string) ([]IgnorePattern, error) {
	file, err := os.Open(filepath.Join(dir, s.opts.IgnoreFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer file.Close()

	var patterns []IgnorePattern
	sc := bufio.NewScanner(file)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, ParseIgnorePattern(line))
	}
	return patterns, sc.Err()
}

// ignored applies patterns in order; a later negation re-includes a path.
func ignored(rel string, patterns []IgnorePattern) bool {
	out := false
	for _, p := range patterns {
		if p.Match(rel) {
			out = !p.negate
		}
	}
	return out
}

// Scan scans root with default options.
func Scan(root string) ([]File, error) {
	return New(DefaultOptions()).Scan(root)
}
