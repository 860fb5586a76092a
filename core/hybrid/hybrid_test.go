package hybrid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeBothEmpty(t *testing.T) {
	assert.Nil(t, Merge(nil, nil, 0.5, 0, 10))
}

func TestMergeLexicalOnlyKeepsLexicalProvenance(t *testing.T) {
	lexical := []Hit{{Path: "a.ts", Score: 2}, {Path: "b.ts", Score: 1}}
	results := Merge(lexical, nil, 0.5, 0, 10)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.Equal(t, ProvenanceLexical, r.Provenance)
	}
}

func TestMergeVectorOnlyKeepsVectorProvenance(t *testing.T) {
	vector := []Hit{{Path: "a.ts", Score: 0.9}}
	results := Merge(nil, vector, 0.5, 0, 10)
	require.Len(t, results, 1)
	assert.Equal(t, ProvenanceVector, results[0].Provenance)
}

func TestMergeOverlapProducesHybridProvenance(t *testing.T) {
	lexical := []Hit{{Path: "a.ts", Score: 1}}
	vector := []Hit{{Path: "a.ts", Score: 1}}
	results := Merge(lexical, vector, 0.5, 0, 10)
	require.Len(t, results, 1)
	assert.Equal(t, ProvenanceHybrid, results[0].Provenance)
	assert.InDelta(t, 1.0, results[0].Score, 1e-6)
}

func TestMergeWeightZeroDegeneratesToLexical(t *testing.T) {
	lexical := []Hit{{Path: "a.ts", Score: 1}}
	vector := []Hit{{Path: "b.ts", Score: 1}}
	results := Merge(lexical, vector, 0, 0, 10)
	require.Len(t, results, 2)

	var aScore, bScore float64
	for _, r := range results {
		switch r.Path {
		case "a.ts":
			aScore = r.Score
		case "b.ts":
			bScore = r.Score
		}
	}
	assert.Greater(t, aScore, bScore)
	assert.Equal(t, 0.0, bScore)
}

func TestMergeWeightOneDegeneratesToVector(t *testing.T) {
	lexical := []Hit{{Path: "a.ts", Score: 1}}
	vector := []Hit{{Path: "b.ts", Score: 1}}
	results := Merge(lexical, vector, 1, 0, 10)

	var aScore, bScore float64
	for _, r := range results {
		switch r.Path {
		case "a.ts":
			aScore = r.Score
		case "b.ts":
			bScore = r.Score
		}
	}
	assert.Equal(t, 0.0, aScore)
	assert.Greater(t, bScore, aScore)
}

func TestMergeRespectsMinScoreAndLimit(t *testing.T) {
	lexical := []Hit{{Path: "a.ts", Score: 10}, {Path: "b.ts", Score: 1}}
	results := Merge(lexical, nil, 0, 0.5, 10)
	require.Len(t, results, 1)
	assert.Equal(t, "a.ts", results[0].Path)

	capped := Merge(lexical, nil, 0, 0, 1)
	require.Len(t, capped, 1)
}

func TestMergeTieBreaksByPath(t *testing.T) {
	lexical := []Hit{{Path: "z.ts", Score: 1}, {Path: "a.ts", Score: 1}}
	results := Merge(lexical, nil, 0, 0, 10)
	require.Len(t, results, 2)
	assert.Equal(t, "a.ts", results[0].Path)
}
