// Package hybrid fuses a lexical stream and a vector stream into a single
// ranked result list (C8). The merge shape — a per-stream score map plus a
// document map, merged and re-sorted — follows an RRFMerger shape
// (core/search/coordinator/rrf.go), but the scoring rule itself is not
// reciprocal-rank fusion: each stream is normalized to [0, 1] by its own
// maximum score and combined by the caller's weight.
package hybrid

import (
	"sort"

	"gonum.org/v1/gonum/floats"
)

// Provenance records which stream(s) contributed to a fused result.
type Provenance string

const (
	ProvenanceLexical Provenance = "lexical"
	ProvenanceVector   Provenance = "vector"
	ProvenanceHybrid   Provenance = "hybrid"
)

// Hit is one scored candidate from a single stream, keyed by path.
type Hit struct {
	Path  string
	Score float64
}

// Result is one fused, ranked hit.
type Result struct {
	Path       string
	Score      float64
	Provenance Provenance
}

// epsilon guards the normalization division when a stream's max score is
// zero (e.g. every hit scored exactly zero).
const epsilon = 1e-9

// Merge fuses lexical and vector hits with weight w applied to the vector
// stream and (1-w) to the lexical stream, after normalizing each stream to
// [0,1] by its own maximum score. w=0 degenerates to pure lexical ranking;
// w=1 to pure vector ranking. minScore filters the fused score; limit caps
// the result count (0 means unlimited).
func Merge(lexical, vector []Hit, w float64, minScore float64, limit int) []Result {
	if len(lexical) == 0 && len(vector) == 0 {
		return nil
	}

	lexMax := maxScore(lexical)
	vecMax := maxScore(vector)

	scores := make(map[string]float64)
	provenance := make(map[string]Provenance)

	for _, h := range lexical {
		norm := h.Score / (lexMax + epsilon)
		scores[h.Path] += (1 - w) * norm
		provenance[h.Path] = ProvenanceLexical
	}
	for _, h := range vector {
		norm := h.Score / (vecMax + epsilon)
		scores[h.Path] += w * norm
		if _, seen := provenance[h.Path]; seen {
			provenance[h.Path] = ProvenanceHybrid
		} else {
			provenance[h.Path] = ProvenanceVector
		}
	}

	results := make([]Result, 0, len(scores))
	for path, score := range scores {
		if score < minScore {
			continue
		}
		results = append(results, Result{Path: path, Score: score, Provenance: provenance[path]})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Path < results[j].Path
	})

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results
}

func maxScore(hits []Hit) float64 {
	if len(hits) == 0 {
		return 0
	}
	scores := make([]float64, len(hits))
	for i, h := range hits {
		scores[i] = h.Score
	}
	return floats.Max(scores)
}
