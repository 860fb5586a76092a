package indexer

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestIndexer(t *testing.T, root string) *Indexer {
	t.Helper()
	dataDir := t.TempDir()
	ix, err := New(context.Background(), Config{
		CodebaseRoot: root,
		DataDir:      dataDir,
		Dimensions:   32,
	})
	require.NoError(t, err)
	t.Cleanup(func() { ix.Close() })
	return ix
}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestIndexBuildsSearchableIndex(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "auth.go", "func Authenticate(user string) error { return nil }")
	writeFile(t, root, "cache.go", "func Lookup(key string) (string, bool) { return \"\", false }")

	ix := newTestIndexer(t, root)
	status, err := ix.Index(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StageComplete, status.Stage)
	assert.Equal(t, 2, status.IndexedFiles)

	results, err := ix.Search(context.Background(), "authenticate", SearchOptions{Mode: ModeLexical})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "auth.go", results[0].Path)
}

func TestIndexIsIdempotentOnUnchangedFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.go", "package a\nfunc A() {}")

	ix := newTestIndexer(t, root)
	_, err := ix.Index(context.Background())
	require.NoError(t, err)

	status, err := ix.Index(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, status.IndexedFiles)
}

func TestIndexPicksUpNewAndDeletedFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.go", "package a\nfunc A() {}")

	ix := newTestIndexer(t, root)
	_, err := ix.Index(context.Background())
	require.NoError(t, err)

	writeFile(t, root, "b.go", "package a\nfunc B() {}")
	require.NoError(t, os.Remove(filepath.Join(root, "a.go")))

	status, err := ix.Index(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, status.IndexedFiles)

	results, err := ix.Search(context.Background(), "a", SearchOptions{Mode: ModeLexical})
	require.NoError(t, err)
	for _, r := range results {
		assert.NotEqual(t, "a.go", r.Path)
	}
}

func TestHybridSearchReturnsProvenance(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "x.go", "func ComputeChecksum(data []byte) uint32 { return 0 }")

	ix := newTestIndexer(t, root)
	_, err := ix.Index(context.Background())
	require.NoError(t, err)

	results, err := ix.Search(context.Background(), "checksum", SearchOptions{Mode: ModeHybrid})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.NotEmpty(t, results[0].Provenance)
}

func TestSearchCacheServesRepeatedQuery(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "x.go", "func Parse(src string) error { return nil }")

	ix := newTestIndexer(t, root)
	_, err := ix.Index(context.Background())
	require.NoError(t, err)

	first, err := ix.Search(context.Background(), "parse", SearchOptions{Mode: ModeLexical})
	require.NoError(t, err)

	stats := ix.cache.Stats()
	assert.Equal(t, uint64(0), stats.Hits)

	second, err := ix.Search(context.Background(), "parse", SearchOptions{Mode: ModeLexical})
	require.NoError(t, err)
	assert.Equal(t, first, second)

	stats = ix.cache.Stats()
	assert.Equal(t, uint64(1), stats.Hits)
}

func TestStatusReflectsLastRun(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "x.go", "package x")

	ix := newTestIndexer(t, root)
	_, err := ix.Index(context.Background())
	require.NoError(t, err)

	status := ix.Status()
	assert.Equal(t, StageComplete, status.Stage)
	assert.NotEmpty(t, status.RunID)
}

func TestReopenReloadsPersistedIndex(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "x.go", "func Reopened() {}")
	dataDir := t.TempDir()

	ix1, err := New(context.Background(), Config{CodebaseRoot: root, DataDir: dataDir, Dimensions: 32})
	require.NoError(t, err)
	_, err = ix1.Index(context.Background())
	require.NoError(t, err)
	require.NoError(t, ix1.Close())

	ix2, err := New(context.Background(), Config{CodebaseRoot: root, DataDir: dataDir, Dimensions: 32})
	require.NoError(t, err)
	defer ix2.Close()

	results, err := ix2.Search(context.Background(), "reopened", SearchOptions{Mode: ModeLexical})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "x.go", results[0].Path)
}
