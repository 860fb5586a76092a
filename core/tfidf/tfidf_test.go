package tfidf

import (
	"testing"

	"github.com/SylphxAI/codebase-search/core/analyzer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScenarioALexicalRecall(t *testing.T) {
	idx := New()

	authTF, authLen := analyzer.TermFrequencies(
		"export function authenticateUser(u) { return login(u.credentials); }", "")
	_ = authLen
	require.NoError(t, idx.AddDocument("auth.ts", authTF))

	dbTF, _ := analyzer.TermFrequencies("export function connectDatabase() {}", "")
	require.NoError(t, idx.AddDocument("db.ts", dbTF))

	query := analyzer.Terms("authenticate user", "")
	results := idx.Search(query, 5, 0, nil)
	require.NotEmpty(t, results)
	assert.Equal(t, "auth.ts", results[0].Path)
	assert.Contains(t, results[0].MatchedTerms, "authenticate")
	assert.Contains(t, results[0].MatchedTerms, "user")

	var dbScore float64
	for _, r := range results {
		if r.Path == "db.ts" {
			dbScore = r.Score
		}
	}
	assert.Greater(t, results[0].Score, dbScore)
}

func TestAddDuplicateRejected(t *testing.T) {
	idx := New()
	require.NoError(t, idx.AddDocument("a.go", map[string]int{"foo": 1}))
	err := idx.AddDocument("a.go", map[string]int{"foo": 1})
	require.Error(t, err)
}

func TestRemoveDocumentPurgesTerm(t *testing.T) {
	idx := New()
	require.NoError(t, idx.AddDocument("a.go", map[string]int{"unique": 1}))
	assert.Equal(t, 1, idx.DocumentFrequency("unique"))

	idx.RemoveDocument("a.go")
	assert.Equal(t, 0, idx.DocumentFrequency("unique"))
	_, ok := idx.IDF("unique")
	assert.False(t, ok)
}

func TestUpdateDocumentMinimalRecompute(t *testing.T) {
	idx := New()
	require.NoError(t, idx.AddDocument("a.go", map[string]int{"shared": 1, "old": 1}))
	require.NoError(t, idx.AddDocument("b.go", map[string]int{"shared": 1}))

	sharedIDFBefore, _ := idx.IDF("shared")

	idx.UpdateDocument("a.go", map[string]int{"shared": 1, "new": 1})

	_, oldExists := idx.IDF("old")
	assert.False(t, oldExists)

	newIDF, newExists := idx.IDF("new")
	assert.True(t, newExists)
	assert.Greater(t, newIDF, 0.0)

	sharedIDFAfter, _ := idx.IDF("shared")
	assert.Equal(t, sharedIDFBefore, sharedIDFAfter)
}

func TestSearchEmptyQuery(t *testing.T) {
	idx := New()
	require.NoError(t, idx.AddDocument("a.go", map[string]int{"foo": 1}))
	assert.Empty(t, idx.Search(nil, 10, 0, nil))
}

func TestSearchUnknownTerm(t *testing.T) {
	idx := New()
	require.NoError(t, idx.AddDocument("a.go", map[string]int{"foo": 1}))
	assert.Empty(t, idx.Search([]string{"nonexistent"}, 10, 0, nil))
}

func TestSearchEmptyIndex(t *testing.T) {
	idx := New()
	assert.Empty(t, idx.Search([]string{"foo"}, 10, 0, nil))
}

func TestSearchScoresNonNegativeAndOrdered(t *testing.T) {
	idx := New()
	require.NoError(t, idx.AddDocument("a.go", map[string]int{"foo": 3, "bar": 1}))
	require.NoError(t, idx.AddDocument("b.go", map[string]int{"foo": 1}))
	require.NoError(t, idx.AddDocument("c.go", map[string]int{"bar": 2}))

	results := idx.Search([]string{"foo", "bar"}, 10, 0, nil)
	for i, r := range results {
		assert.GreaterOrEqual(t, r.Score, 0.0)
		if i > 0 {
			assert.LessOrEqual(t, results[i].Score, results[i-1].Score)
		}
	}
}

func TestDFEqualsPostingSize(t *testing.T) {
	idx := New()
	require.NoError(t, idx.AddDocument("a.go", map[string]int{"x": 1}))
	require.NoError(t, idx.AddDocument("b.go", map[string]int{"x": 1}))
	require.NoError(t, idx.AddDocument("c.go", map[string]int{"y": 1}))

	assert.Equal(t, 2, idx.DocumentFrequency("x"))
	assert.Equal(t, 1, idx.DocumentFrequency("y"))
}
