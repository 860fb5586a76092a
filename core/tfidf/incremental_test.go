package tfidf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShouldRebuildOnEmptyIndex(t *testing.T) {
	assert.True(t, ShouldRebuild(1, 0, 0))
}

func TestShouldRebuildThresholdBoundary(t *testing.T) {
	assert.False(t, ShouldRebuild(2, 10, 0))
	assert.True(t, ShouldRebuild(3, 10, 0))
}

func TestShouldRebuildCustomThreshold(t *testing.T) {
	assert.False(t, ShouldRebuild(4, 10, 0.5))
	assert.True(t, ShouldRebuild(6, 10, 0.5))
}

func TestApplyIncrementalAddUpdateDelete(t *testing.T) {
	idx := New()
	require.NoError(t, idx.AddDocument("a.go", map[string]int{"foo": 2}))

	changes := []Change{
		{Op: ChangeAdd, Path: "b.go", TF: map[string]int{"foo": 1, "bar": 1}},
		{Op: ChangeUpdate, Path: "a.go", TF: map[string]int{"foo": 1, "baz": 1}},
		{Op: ChangeDelete, Path: "missing.go"},
	}
	ApplyIncremental(idx, changes)

	assert.True(t, idx.Contains("a.go"))
	assert.True(t, idx.Contains("b.go"))
	assert.Equal(t, 2, idx.N())

	_, hasFoo := idx.IDF("foo")
	assert.True(t, hasFoo)
	_, hasBaz := idx.IDF("baz")
	assert.True(t, hasBaz)
}

func TestApplyIncrementalAddOnExistingActsAsUpdate(t *testing.T) {
	idx := New()
	require.NoError(t, idx.AddDocument("a.go", map[string]int{"old": 1}))

	ApplyIncremental(idx, []Change{
		{Op: ChangeAdd, Path: "a.go", TF: map[string]int{"new": 1}},
	})

	assert.Equal(t, 1, idx.N())
	_, hasOld := idx.IDF("old")
	assert.False(t, hasOld)
	_, hasNew := idx.IDF("new")
	assert.True(t, hasNew)
}

// TestIncrementalEquivalesRebuild verifies the core correctness law:
// applying a sequence of incremental deltas must produce search results
// identical to rebuilding from scratch over the same final document set.
func TestIncrementalEquivalesRebuild(t *testing.T) {
	incremental := New()
	require.NoError(t, incremental.AddDocument("auth.ts", map[string]int{"authenticate": 2, "user": 1}))
	require.NoError(t, incremental.AddDocument("db.ts", map[string]int{"connect": 1, "database": 2}))

	ApplyIncremental(incremental, []Change{
		{Op: ChangeUpdate, Path: "auth.ts", TF: map[string]int{"authenticate": 3, "login": 1}},
		{Op: ChangeAdd, Path: "cache.ts", TF: map[string]int{"cache": 1, "get": 1}},
		{Op: ChangeDelete, Path: "db.ts"},
	})

	final := map[string]map[string]int{
		"auth.ts":  {"authenticate": 3, "login": 1},
		"cache.ts": {"cache": 1, "get": 1},
	}
	rebuilt := Rebuild(func(yield func(path string, tf map[string]int, preview, language string) bool) {
		for path, tf := range final {
			if !yield(path, tf, "", "") {
				return
			}
		}
	})

	assert.Equal(t, rebuilt.N(), incremental.N())
	for term := range map[string]struct{}{"authenticate": {}, "login": {}, "cache": {}, "get": {}} {
		wantDF := rebuilt.DocumentFrequency(term)
		gotDF := incremental.DocumentFrequency(term)
		assert.Equal(t, wantDF, gotDF, "df mismatch for term %q", term)

		wantIDF, wantOK := rebuilt.IDF(term)
		gotIDF, gotOK := incremental.IDF(term)
		assert.Equal(t, wantOK, gotOK)
		if wantOK {
			assert.InDelta(t, wantIDF, gotIDF, 1e-9)
		}
	}

	query := []string{"authenticate", "login"}
	wantResults := rebuilt.Search(query, 10, 0, nil)
	gotResults := incremental.Search(query, 10, 0, nil)
	require.Len(t, gotResults, len(wantResults))
	for i := range wantResults {
		assert.Equal(t, wantResults[i].Path, gotResults[i].Path)
		assert.InDelta(t, wantResults[i].Score, gotResults[i].Score, 1e-9)
	}
}
