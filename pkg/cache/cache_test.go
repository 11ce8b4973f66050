package cache

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/l3aro/restruct/pkg/ast"
	"github.com/l3aro/restruct/pkg/cond"
)

func result(label string) Result {
	return NewResult(label, ast.NewBlock(label, label+"()"))
}

func sampleNode() ast.Node {
	return ast.NewSeq(
		ast.NewBlock("H", "x := read()"),
		&ast.Loop{
			Type: ast.PreChecked{Cond: cond.NewSimple("x > 0")},
			Body: ast.NewSeq(
				ast.NewBlock("B", "x--"),
				ast.Guard(cond.NewSimple("done"), &ast.Break{}),
			),
		},
		ast.NewBlock("X"),
	)
}

func TestLRUCache_Basic(t *testing.T) {
	c := New(Options{MaxSize: 3})

	c.Set("a", result("A"))
	c.Set("b", result("B"))
	c.Set("c", result("C"))

	assert.Equal(t, 3, c.Len())

	val, found := c.Get("a")
	require.True(t, found)
	assert.Equal(t, "A", val.Name)
	assert.Equal(t, 1, val.Blocks)

	val, found = c.Get("b")
	require.True(t, found)
	assert.Equal(t, "B", val.Name)
}

func TestLRUCache_LRU_Eviction(t *testing.T) {
	var evicted []string
	c := New(Options{MaxSize: 3, OnEvict: func(key string, _ Result) {
		evicted = append(evicted, key)
	}})

	c.Set("a", result("A"))
	c.Set("b", result("B"))
	c.Set("c", result("C"))

	// Access 'a' to make it most recently used
	c.Get("a")

	// Add new item - should evict 'b' (least recently used)
	c.Set("d", result("D"))

	assert.Equal(t, 3, c.Len())
	assert.Equal(t, []string{"b"}, evicted)

	_, found := c.Get("b")
	assert.False(t, found, "b should have been evicted")

	_, found = c.Get("a")
	assert.True(t, found, "a should still be present")

	_, found = c.Get("c")
	assert.True(t, found, "c should still be present")

	_, found = c.Get("d")
	assert.True(t, found, "d should be present")
}

func TestLRUCache_Delete(t *testing.T) {
	c := New(Options{MaxSize: 10})

	c.Set("a", result("A"))
	c.Set("b", result("B"))
	before := c.CurrentBytes()

	c.Delete("a")
	c.Delete("missing")

	assert.Equal(t, 1, c.Len())
	assert.Less(t, c.CurrentBytes(), before)

	_, found := c.Get("a")
	assert.False(t, found)

	val, found := c.Get("b")
	require.True(t, found)
	assert.Equal(t, "B", val.Name)
}

func TestLRUCache_DeleteHeadAndTail(t *testing.T) {
	c := New(Options{MaxSize: 10})
	c.Set("a", result("A"))
	c.Set("b", result("B"))
	c.Set("c", result("C"))

	c.Delete("c") // head
	c.Delete("a") // tail
	c.Set("d", result("D"))

	keys := make([]string, 0)
	for _, e := range c.Entries() {
		keys = append(keys, e.Key)
	}
	assert.Equal(t, []string{"d", "b"}, keys)
}

func TestLRUCache_Clear(t *testing.T) {
	c := New(Options{MaxSize: 10})

	c.Set("a", result("A"))
	c.Set("b", result("B"))

	c.Clear()

	assert.Equal(t, 0, c.Len())
	assert.Equal(t, int64(0), c.CurrentBytes())
}

func TestLRUCache_SaveLoad(t *testing.T) {
	c := New(Options{MaxSize: 10})
	c.Set("key1", NewResult("f", sampleNode()))
	c.Set("key2", result("B"))
	c.Get("key1")

	var buf bytes.Buffer
	require.NoError(t, c.Save(&buf))

	c2 := New(Options{MaxSize: 10})
	require.NoError(t, c2.Load(&buf))

	assert.Equal(t, 2, c2.Len())
	assert.Equal(t, c.CurrentBytes(), c2.CurrentBytes())

	entries := c2.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "key1", entries[0].Key, "recency order survives a round trip")

	val, found := c2.Get("key1")
	require.True(t, found)
	n, err := val.Node()
	require.NoError(t, err)
	assert.Equal(t, ast.Format(sampleNode()), ast.Format(n))
	assert.Equal(t, 3, val.Blocks)
}

func TestLRUCache_LoadAppliesLimits(t *testing.T) {
	c := New(Options{})
	for _, k := range []string{"a", "b", "c"} {
		c.Set(k, result(k))
	}
	var buf bytes.Buffer
	require.NoError(t, c.Save(&buf))

	small := New(Options{MaxSize: 2})
	require.NoError(t, small.Load(&buf))
	assert.Equal(t, 2, small.Len())
	_, found := small.Get("a")
	assert.False(t, found, "oldest entry is dropped")
}

func TestLRUCache_LoadRejectsGarbage(t *testing.T) {
	c := New(Options{})
	err := c.Load(bytes.NewReader([]byte{0xc1}))
	assert.Error(t, err)
}

func TestLRUCache_MaxBytes(t *testing.T) {
	size := int64(estimateSize(result("A")))
	c := New(Options{MaxBytes: 2 * size})

	c.Set("a", result("A"))
	c.Set("b", result("B"))
	c.Set("c", result("C"))

	assert.Equal(t, 2, c.Len())
	assert.LessOrEqual(t, c.CurrentBytes(), 2*size)
}

func TestLRUCache_Update(t *testing.T) {
	c := New(Options{MaxSize: 10})

	c.Set("a", result("A"))
	c.Set("a", result("Z"))

	val, found := c.Get("a")
	require.True(t, found)
	assert.Equal(t, "Z", val.Name)

	assert.Equal(t, 1, c.Len())
}

func TestPersistedFileDoesNotExist(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "nonexistent.cache")

	c := New(Options{MaxSize: 10})

	err := LoadFromFile(c, path)
	require.NoError(t, err, "loading non-existent file should not error")

	assert.Equal(t, 0, c.Len())
}

func TestPersistToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", FileName)

	c := New(Options{MaxSize: 10})
	c.Set("k", result("A"))
	require.NoError(t, PersistToFile(c, path))

	c2 := New(Options{MaxSize: 10})
	require.NoError(t, LoadFromFile(c2, path))
	assert.Equal(t, 1, c2.Len())
}

func TestStatsCache(t *testing.T) {
	sc := NewStatsCache(Options{MaxSize: 10})

	sc.Set("key1", result("A"))
	sc.Get("key1")
	sc.Get("key2")

	stats := sc.Stats()
	assert.Equal(t, int64(1), stats.HitCount)
	assert.Equal(t, int64(1), stats.MissCount)
	assert.Equal(t, 1, stats.Length)

	assert.Equal(t, 0.5, sc.HitRate())

	sc.ResetStats()

	stats = sc.Stats()
	assert.Equal(t, int64(0), stats.HitCount)
	assert.Equal(t, 0.0, sc.HitRate())
}
