package commands

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/spf13/cobra"
	"golang.org/x/sync/singleflight"

	"github.com/l3aro/restruct/pkg/ast"
	"github.com/l3aro/restruct/pkg/cache"
	"github.com/l3aro/restruct/pkg/cfg"
	"github.com/l3aro/restruct/pkg/structure"
)

// engine runs the structurer for a command, consulting the result cache
// when it is enabled. It is safe for concurrent use.
type engine struct {
	store  *cache.Store // nil when caching is off
	verify bool

	traceMu sync.Mutex
	trace   io.Writer // nil unless tracing

	// flight merges concurrent misses on one fingerprint, e.g. identical
	// functions in build-tagged copies of a file.
	flight singleflight.Group
}

// newEngine honours the shared --no-cache, --verify and --trace flags.
func newEngine(cmd *cobra.Command) (*engine, error) {
	noCache, _ := cmd.Flags().GetBool("no-cache")
	verify, _ := cmd.Flags().GetBool("verify")
	trace, _ := cmd.Flags().GetBool("trace")

	e := &engine{verify: verify || appConfig.Verify}
	if trace {
		e.trace = cmd.ErrOrStderr()
	}
	if appConfig.CacheEnabled && !noCache && !trace {
		store, err := cache.Open(appConfig.CacheDir, appConfig.CacheMaxEntries)
		if err != nil {
			logger.Warn("result cache unavailable", "dir", appConfig.CacheDir, "err", err)
		} else {
			e.store = store
		}
	}
	return e, nil
}

// run structures d. The second result reports that the node came from the
// cache or from a concurrent run on the same description.
func (e *engine) run(d *cfg.Description) (ast.Node, bool, error) {
	if e.store == nil {
		n, err := e.structure(d)
		return n, false, err
	}

	key, err := d.Fingerprint()
	if err != nil {
		return nil, false, err
	}
	n, ok, err := e.store.Lookup(key)
	if err != nil {
		logger.Warn("dropping unreadable cache entry", "key", key, "err", err)
	}
	if ok {
		logger.Debug("cache hit", "name", d.Name, "key", key[:12])
		return n, true, nil
	}

	v, err, shared := e.flight.Do(key, func() (interface{}, error) {
		n, err := e.structure(d)
		if err != nil {
			return nil, err
		}
		e.store.Put(key, d.Name, n)
		return n, nil
	})
	if err != nil {
		return nil, false, err
	}
	return v.(ast.Node), shared, nil
}

// structure builds the engine graph for d and runs the structurer.
func (e *engine) structure(d *cfg.Description) (ast.Node, error) {
	g, _, err := d.Build()
	if err != nil {
		return nil, err
	}
	opts := []structure.Option{
		structure.WithLogger(logger),
		structure.WithVerify(e.verify),
	}
	if e.trace != nil {
		opts = append(opts, structure.WithObserver(func(c structure.Collapse) {
			e.traceMu.Lock()
			defer e.traceMu.Unlock()
			renderCollapse(e.trace, d.Name, c)
		}))
	}

	n, err := structure.Structure(g, opts...)
	if err != nil {
		var serr *structure.Error
		if errors.As(err, &serr) && serr.Kind == structure.KindStuck {
			logger.Warn("structuring stuck", "name", d.Name, "remaining", serr.Remaining)
			for _, node := range serr.Nodes {
				logger.Debug("unstructured node", "name", d.Name, "node", node)
			}
		}
		return nil, err
	}
	return n, nil
}

// close persists the cache.
func (e *engine) close() error {
	if e.store == nil {
		return nil
	}
	stats := e.store.Stats()
	if lookups := stats.HitCount + stats.MissCount; lookups > 0 {
		logger.Debug("result cache",
			"lookups", lookups,
			"hit_rate", fmt.Sprintf("%.0f%%", e.store.HitRate()*100),
		)
	}
	return e.store.Flush()
}

func addEngineFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("no-cache", false, "Bypass the result cache")
	cmd.Flags().Bool("verify", false, "Check graph invariants after every collapse")
	cmd.Flags().Bool("trace", false, "Print every region collapse to stderr")
}
