// Package watch reports debounced changes to Go source files using
// fsnotify.
package watch

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the quiet period after the last event before a batch
// of changes is delivered.
const DefaultDebounce = 200 * time.Millisecond

// ChangeHandler receives the absolute paths changed in one debounce window,
// sorted.
type ChangeHandler func(paths []string)

// Watcher watches a Go file, or every directory below a root.
type Watcher struct {
	root     string
	file     string // set when watching a single file
	debounce time.Duration
	skip     func(dir string) bool
	watcher  *fsnotify.Watcher
}

// Options configures a Watcher.
type Options struct {
	Debounce time.Duration
	// SkipDir reports directories that are not watched.
	SkipDir func(name string) bool
}

// New creates a watcher for root, which may be a directory or a .go file.
func New(root string, opts Options) (*Watcher, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, err
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.SkipDir == nil {
		opts.SkipDir = func(name string) bool { return strings.HasPrefix(name, ".") }
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{root: abs, debounce: opts.Debounce, skip: opts.SkipDir, watcher: fw}
	if !info.IsDir() {
		w.file = abs
		w.root = filepath.Dir(abs)
		err = fw.Add(w.root)
	} else {
		err = w.addRecursive(w.root)
	}
	if err != nil {
		fw.Close()
		return nil, err
	}
	return w, nil
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		if path != root && w.skip(d.Name()) {
			return filepath.SkipDir
		}
		return w.watcher.Add(path)
	})
}

func (w *Watcher) relevant(path string) bool {
	if w.file != "" {
		return path == w.file
	}
	return filepath.Ext(path) == ".go"
}

// Run delivers changes to fn until ctx is done, then closes the watcher.
// fn runs on the Run goroutine, so events arriving meanwhile are batched
// into the next call.
func (w *Watcher) Run(ctx context.Context, fn ChangeHandler) error {
	defer w.watcher.Close()

	pending := make(map[string]struct{})
	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if w.file == "" && event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() && !w.skip(info.Name()) {
					_ = w.addRecursive(event.Name)
				}
			}
			if !w.relevant(event.Name) {
				continue
			}
			pending[event.Name] = struct{}{}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			timerC = timer.C

		case <-timerC:
			timerC = nil
			paths := make([]string, 0, len(pending))
			for p := range pending {
				paths = append(paths, p)
			}
			sort.Strings(paths)
			clear(pending)
			fn(paths)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			return err
		}
	}
}
