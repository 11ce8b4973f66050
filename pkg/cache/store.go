package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/l3aro/restruct/pkg/ast"
)

// Store is a StatsCache backed by a file in a cache directory. It is safe
// for concurrent use.
type Store struct {
	*StatsCache
	path string

	mu    sync.Mutex
	dirty bool
}

// Open loads the store kept in dir. A missing directory or file yields an
// empty store; the file is only created by Flush.
func Open(dir string, maxEntries int) (*Store, error) {
	s := &Store{
		StatsCache: NewStatsCache(Options{MaxSize: maxEntries}),
		path:       filepath.Join(dir, FileName),
	}
	if err := LoadFromFile(s.LRUCache, s.path); err != nil {
		return nil, fmt.Errorf("loading cache %s: %w", s.path, err)
	}
	return s, nil
}

// Path returns the file the store persists to.
func (s *Store) Path() string { return s.path }

// Lookup returns the cached node for a description fingerprint.
func (s *Store) Lookup(key string) (ast.Node, bool, error) {
	r, ok := s.Get(key)
	if !ok {
		return nil, false, nil
	}
	n, err := r.Node()
	if err != nil {
		s.Delete(key)
		return nil, false, fmt.Errorf("decoding cached result %s: %w", key, err)
	}
	return n, true, nil
}

// Put records the structured node computed for a fingerprint.
func (s *Store) Put(key, name string, n ast.Node) {
	s.Set(key, NewResult(name, n))
	s.mu.Lock()
	s.dirty = true
	s.mu.Unlock()
}

// Flush writes the store to disk if it changed since it was opened.
func (s *Store) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.dirty {
		return nil
	}
	if err := PersistToFile(s.LRUCache, s.path); err != nil {
		return err
	}
	s.dirty = false
	return nil
}

// Purge empties the store and removes its file.
func (s *Store) Purge() error {
	s.Clear()
	s.ResetStats()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dirty = false
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing cache file: %w", err)
	}
	return nil
}
