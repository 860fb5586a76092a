package indexer

import (
	"context"

	"github.com/SylphxAI/codebase-search/core/analyzer"
	"github.com/SylphxAI/codebase-search/core/cache"
	"github.com/SylphxAI/codebase-search/core/hybrid"
	"github.com/SylphxAI/codebase-search/core/tfidf"
	"github.com/SylphxAI/codebase-search/core/vectorstore"
)

// Mode selects which retrieval stream(s) a search draws on.
type Mode string

const (
	ModeLexical Mode = "lexical"
	ModeVector  Mode = "vector"
	ModeHybrid  Mode = "hybrid"
)

// SearchOptions configures one Search call.
type SearchOptions struct {
	Mode     Mode
	Limit    int
	MinScore float64

	// VectorWeight only applies in ModeHybrid: (1-w) lexical, w vector.
	// A nil pointer means "not set" and picks up the default; this is a
	// pointer rather than a bare float64 so that an explicit 0 (pure
	// lexical ranking, per the hybrid boundary law) is distinguishable
	// from an unset field, whose Go zero value is also 0.
	VectorWeight *float64

	Language string // exact-match filter, empty means no filter
}

// DefaultVectorWeight is the weight applied to the vector stream in hybrid
// search when the caller does not set one explicitly.
const DefaultVectorWeight = 0.7

func (o SearchOptions) withDefaults() SearchOptions {
	if o.Mode == "" {
		o.Mode = ModeHybrid
	}
	if o.Limit <= 0 {
		o.Limit = 10
	}
	if o.VectorWeight == nil {
		w := DefaultVectorWeight
		o.VectorWeight = &w
	}
	if o.MinScore == 0 {
		o.MinScore = 0.01
	}
	return o
}

// SearchResult is one ranked hit returned to callers, carrying whatever
// provenance and scoring detail its source stream(s) produced.
type SearchResult struct {
	Path           string
	Score          float64
	Provenance     hybrid.Provenance
	MatchedTerms   []string
	Similarity     float64
	ContentPreview string
	Language       string
}

// Search runs query through the configured mode(s), consulting the result
// cache first and populating it on a miss.
func (ix *Indexer) Search(ctx context.Context, query string, opts SearchOptions) ([]SearchResult, error) {
	opts = opts.withDefaults()

	key := cache.Key{
		Query:        query,
		Mode:         string(opts.Mode),
		Limit:        opts.Limit,
		VectorWeight: *opts.VectorWeight,
		Filters:      map[string]string{"language": opts.Language},
	}
	if cached, ok := ix.cache.Get(key); ok {
		return cached.([]SearchResult), nil
	}

	results, err := ix.search(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	ix.cache.Set(key, results)
	return results, nil
}

func (ix *Indexer) search(ctx context.Context, query string, opts SearchOptions) ([]SearchResult, error) {
	ix.mu.RLock()
	tf := ix.tf
	vec := ix.vec
	ix.mu.RUnlock()

	var langFilterTF tfidf.Filter
	var langFilterVec vectorstore.Filter
	if opts.Language != "" {
		langFilterTF = func(_, language string) bool { return language == opts.Language }
		langFilterVec = func(m vectorstore.Metadata) bool { return m.Language == opts.Language }
	}

	if opts.Mode == ModeLexical {
		terms := analyzer.Terms(query, "")
		hits := tf.Search(terms, opts.Limit, opts.MinScore, langFilterTF)
		return lexicalResults(hits), nil
	}

	if opts.Mode == ModeVector {
		queryVec, err := ix.emb.Embed(ctx, query)
		if err != nil {
			// No embedding, no vector stream: degrade to lexical rather
			// than failing the request outright.
			terms := analyzer.Terms(query, "")
			hits := tf.Search(terms, opts.Limit, opts.MinScore, langFilterTF)
			return lexicalResults(hits), nil
		}
		hits := vec.Search(queryVec, opts.Limit, opts.MinScore, langFilterVec)
		return vectorResults(hits), nil
	}

	w := *opts.VectorWeight

	// w=0 and w=1 delegate outright rather than going through Merge: its
	// max-normalization would rescale scores that need to come back
	// byte-for-byte identical to the single-mode path.
	if w == 0 {
		terms := analyzer.Terms(query, "")
		hits := tf.Search(terms, opts.Limit, opts.MinScore, langFilterTF)
		return lexicalResults(hits), nil
	}
	if w == 1 {
		queryVec, err := ix.emb.Embed(ctx, query)
		if err != nil {
			terms := analyzer.Terms(query, "")
			hits := tf.Search(terms, opts.Limit, opts.MinScore, langFilterTF)
			return lexicalResults(hits), nil
		}
		hits := vec.Search(queryVec, opts.Limit, opts.MinScore, langFilterVec)
		return vectorResults(hits), nil
	}

	terms := analyzer.Terms(query, "")
	lexHits := tf.Search(terms, opts.Limit*2, 0, langFilterTF)

	var vecHybridHits []hybrid.Hit
	queryVec, err := ix.emb.Embed(ctx, query)
	if err == nil {
		vecHits := vec.Search(queryVec, opts.Limit*2, 0, langFilterVec)
		vecHybridHits = toVectorHybridHits(vecHits)
	}
	// A nil vector stream makes Merge's vector term contribute zero
	// regardless of weight, so the fused ranking degrades to pure lexical.

	fused := hybrid.Merge(toHybridHits(lexHits), vecHybridHits, w, opts.MinScore, opts.Limit)
	return hybridResults(fused, tf, terms), nil
}

func toHybridHits(results []tfidf.Result) []hybrid.Hit {
	hits := make([]hybrid.Hit, len(results))
	for i, r := range results {
		hits[i] = hybrid.Hit{Path: r.Path, Score: r.Score}
	}
	return hits
}

func toVectorHybridHits(results []vectorstore.Result) []hybrid.Hit {
	hits := make([]hybrid.Hit, len(results))
	for i, r := range results {
		hits[i] = hybrid.Hit{Path: r.DocID, Score: r.Similarity}
	}
	return hits
}

func lexicalResults(results []tfidf.Result) []SearchResult {
	out := make([]SearchResult, len(results))
	for i, r := range results {
		out[i] = SearchResult{
			Path:           r.Path,
			Score:          r.Score,
			Provenance:     hybrid.ProvenanceLexical,
			MatchedTerms:   r.MatchedTerms,
			ContentPreview: r.ContentPreview,
			Language:       r.Language,
		}
	}
	return out
}

func vectorResults(results []vectorstore.Result) []SearchResult {
	out := make([]SearchResult, len(results))
	for i, r := range results {
		out[i] = SearchResult{
			Path:           r.DocID,
			Score:          r.Similarity,
			Provenance:     hybrid.ProvenanceVector,
			Similarity:     r.Similarity,
			ContentPreview: r.Metadata.ContentPreview,
			Language:       r.Metadata.Language,
		}
	}
	return out
}

// hybridResults enriches fused hits with the preview/language/matched-term
// detail their source streams carried, since hybrid.Merge itself only
// tracks path, score, and provenance.
func hybridResults(fused []hybrid.Result, tf *tfidf.Index, queryTerms []string) []SearchResult {
	out := make([]SearchResult, len(fused))
	for i, r := range fused {
		sr := SearchResult{Path: r.Path, Score: r.Score, Provenance: r.Provenance}
		if docTF, preview, language, ok := tf.TermFrequencies(r.Path); ok {
			sr.ContentPreview = preview
			sr.Language = language
			for _, term := range queryTerms {
				if _, matched := docTF[term]; matched {
					sr.MatchedTerms = append(sr.MatchedTerms, term)
				}
			}
		}
		out[i] = sr
	}
	return out
}
