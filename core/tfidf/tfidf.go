// Package tfidf implements the incremental TF-IDF engine: posting lists, an
// IDF table, and cosine-ranked retrieval over documents identified by path.
// The mutation API (addDocument/removeDocument/updateDocument) is shaped
// after an IndexManagerInterface in
// core/search/indexer/incremental.go, generalized from Bleve-backed
// indexing calls to an explicit postings structure so the engine's
// internals — document frequency, idf recomputation, and scoring — stay
// inspectable and bit-for-bit reproducible from a rebuild.
package tfidf

import (
	"math"
	"sort"
	"sync"

	"gonum.org/v1/gonum/floats"

	"github.com/SylphxAI/codebase-search/core/cserrors"
)

// posting is the inverted entry for one term: an insertion-ordered set of
// document ids with the term-frequency count per document.
type posting struct {
	order []string       // insertion order of document ids
	tf    map[string]int // document id -> term frequency
}

func newPosting() *posting {
	return &posting{tf: make(map[string]int)}
}

func (p *posting) set(docID string, count int) {
	if _, exists := p.tf[docID]; !exists {
		p.order = append(p.order, docID)
	}
	p.tf[docID] = count
}

func (p *posting) remove(docID string) {
	if _, exists := p.tf[docID]; !exists {
		return
	}
	delete(p.tf, docID)
	for i, id := range p.order {
		if id == docID {
			p.order = append(p.order[:i], p.order[i+1:]...)
			break
		}
	}
}

func (p *posting) df() int { return len(p.tf) }

// docEntry is the derived view of one document's tokenized content.
type docEntry struct {
	tf     map[string]int
	length int
	norm   float64
}

// Result is one scored hit from Search.
type Result struct {
	Path          string
	Score         float64
	MatchedTerms  []string
	ContentPreview string
	Language      string
}

// Index is the TF-IDF engine: postings + IDF table + document store.
type Index struct {
	mu       sync.RWMutex
	postings map[string]*posting
	idf      map[string]float64
	docs     map[string]*docEntry
	preview  map[string]string
	language map[string]string
}

// New creates an empty TF-IDF index.
func New() *Index {
	return &Index{
		postings: make(map[string]*posting),
		idf:      make(map[string]float64),
		docs:     make(map[string]*docEntry),
		preview:  make(map[string]string),
		language: make(map[string]string),
	}
}

// N returns the current document count.
func (idx *Index) N() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.docs)
}

// Contains reports whether id is currently indexed.
func (idx *Index) Contains(id string) bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	_, ok := idx.docs[id]
	return ok
}

// AddDocument appends postings for a new document id and increments df.
// Adding a document changes N, so idf is recomputed for every indexed term.
// Returns DuplicateId if id is already indexed.
func (idx *Index) AddDocument(id string, tf map[string]int) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if _, exists := idx.docs[id]; exists {
		return cserrors.New(cserrors.KindDuplicateID, "tfidf.AddDocument", nil).WithPath(id)
	}

	idx.insertLocked(id, tf)
	return nil
}

// RemoveDocument removes id from all postings and decrements df. Removing a
// document changes N, so idf is recomputed for every remaining term. Terms
// whose df reaches zero are
// purged from the IDF table entirely. A no-op (not an error) if id is not
// indexed.
func (idx *Index) RemoveDocument(id string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.removeLocked(id)
}

// UpdateDocument replaces id's term-frequency map, recomputing idf only for
// the terms in the symmetric difference between the old and new tf maps —
// terms unaffected by the update are left untouched, minimizing idf
// recomputation.
func (idx *Index) UpdateDocument(id string, newTF map[string]int) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	old, existed := idx.docs[id]
	if !existed {
		idx.insertLocked(id, newTF)
		return
	}

	affected := symmetricDifferenceTerms(old.tf, newTF)
	idx.removeFromPostingsLocked(id, old.tf)
	idx.setDocumentLocked(id, newTF)
	idx.addToPostingsLocked(id, newTF)
	idx.recomputeIDFLocked(affected)
}

// SetMetadata stores the content preview and language tag associated with
// id, used to populate Result.ContentPreview / Result.Language.
func (idx *Index) SetMetadata(id, preview, language string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if preview != "" {
		idx.preview[id] = preview
	}
	if language != "" {
		idx.language[id] = language
	}
}

func (idx *Index) insertLocked(id string, tf map[string]int) {
	idx.setDocumentLocked(id, tf)
	idx.addToPostingsLocked(id, tf)
	terms := make([]string, 0, len(idx.postings))
	for term := range idx.postings {
		terms = append(terms, term)
	}
	idx.recomputeIDFLocked(terms)
}

func (idx *Index) removeLocked(id string) {
	old, exists := idx.docs[id]
	if !exists {
		return
	}
	idx.removeFromPostingsLocked(id, old.tf)
	delete(idx.docs, id)
	delete(idx.preview, id)
	delete(idx.language, id)

	terms := make([]string, 0, len(idx.postings))
	for term := range idx.postings {
		terms = append(terms, term)
	}
	idx.recomputeIDFLocked(terms)
}

func (idx *Index) setDocumentLocked(id string, tf map[string]int) {
	length := 0
	for _, count := range tf {
		length += count
	}
	idx.docs[id] = &docEntry{tf: tf, length: length}
	idx.docs[id].norm = computeNorm(tf, length)
}

func (idx *Index) addToPostingsLocked(id string, tf map[string]int) {
	for term, count := range tf {
		p, ok := idx.postings[term]
		if !ok {
			p = newPosting()
			idx.postings[term] = p
		}
		p.set(id, count)
	}
}

func (idx *Index) removeFromPostingsLocked(id string, tf map[string]int) {
	for term := range tf {
		p, ok := idx.postings[term]
		if !ok {
			continue
		}
		p.remove(id)
		if p.df() == 0 {
			delete(idx.postings, term)
			delete(idx.idf, term)
		}
	}
}

// recomputeIDFLocked recomputes idf for each given term using the smoothed
// formula idf = ln((N+1)/(df+1)) + 1. A term whose posting no longer exists
// (df == 0) has already been purged by the caller.
func (idx *Index) recomputeIDFLocked(terms []string) {
	n := float64(len(idx.docs))
	for _, term := range terms {
		p, ok := idx.postings[term]
		if !ok {
			delete(idx.idf, term)
			continue
		}
		df := float64(p.df())
		idx.idf[term] = math.Log((n+1)/(df+1)) + 1
	}
}

// computeNorm returns the document's normalization factor: the Euclidean
// norm of its per-term tf/length weights, falling back to 1 for empty
// documents to avoid division by zero during scoring.
func computeNorm(tf map[string]int, length int) float64 {
	if length == 0 {
		return 1
	}
	weights := make([]float64, 0, len(tf))
	for _, count := range tf {
		weights = append(weights, float64(count)/float64(length))
	}
	norm := floats.Norm(weights, 2)
	if norm == 0 {
		return 1
	}
	return norm
}

func symmetricDifferenceTerms(old, new map[string]int) []string {
	seen := make(map[string]struct{}, len(old)+len(new))
	var terms []string
	for term, oldCount := range old {
		newCount, inNew := new[term]
		if !inNew || newCount != oldCount {
			if _, dup := seen[term]; !dup {
				seen[term] = struct{}{}
				terms = append(terms, term)
			}
		}
	}
	for term := range new {
		if _, inOld := old[term]; !inOld {
			if _, dup := seen[term]; !dup {
				seen[term] = struct{}{}
				terms = append(terms, term)
			}
		}
	}
	return terms
}

// Filter predicates narrow a Search by document metadata.
type Filter func(path, language string) bool

// Search scores every candidate document by
// sum_over_matched_terms( (tf(t,d)/len(d)) * idf(t) ) / norm(d), returning
// the top limit results sorted by score descending, ties broken by
// document id ascending. Terms absent from the IDF table contribute zero.
// An empty query yields an empty result.
func (idx *Index) Search(queryTerms []string, limit int, minScore float64, filter Filter) []Result {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if len(queryTerms) == 0 || len(idx.docs) == 0 {
		return nil
	}

	scores := make(map[string]float64)
	matched := make(map[string]map[string]struct{})

	for _, term := range queryTerms {
		idfVal, ok := idx.idf[term]
		if !ok {
			continue
		}
		p, ok := idx.postings[term]
		if !ok {
			continue
		}
		for _, docID := range p.order {
			doc := idx.docs[docID]
			weight := (float64(p.tf[docID]) / float64(doc.length)) * idfVal
			scores[docID] += weight
			if matched[docID] == nil {
				matched[docID] = make(map[string]struct{})
			}
			matched[docID][term] = struct{}{}
		}
	}

	results := make([]Result, 0, len(scores))
	for docID, raw := range scores {
		doc := idx.docs[docID]
		score := raw / doc.norm
		if score < minScore {
			continue
		}
		if filter != nil && !filter(docID, idx.language[docID]) {
			continue
		}
		results = append(results, Result{
			Path:           docID,
			Score:          score,
			MatchedTerms:   sortedKeys(matched[docID]),
			ContentPreview: idx.preview[docID],
			Language:       idx.language[docID],
		})
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

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// DocumentIDs returns every indexed document id, unordered.
func (idx *Index) DocumentIDs() []string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	ids := make([]string, 0, len(idx.docs))
	for id := range idx.docs {
		ids = append(ids, id)
	}
	return ids
}

// TermFrequencies returns a copy of id's term-frequency map, its content
// preview, and its language tag, for persistence.
func (idx *Index) TermFrequencies(id string) (map[string]int, string, string, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	doc, ok := idx.docs[id]
	if !ok {
		return nil, "", "", false
	}
	tf := make(map[string]int, len(doc.tf))
	for term, count := range doc.tf {
		tf[term] = count
	}
	return tf, idx.preview[id], idx.language[id], true
}

// DocumentFrequency exposes df(term) for invariant checks and tests.
func (idx *Index) DocumentFrequency(term string) int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	if p, ok := idx.postings[term]; ok {
		return p.df()
	}
	return 0
}

// IDF exposes idf(term) for invariant checks and tests.
func (idx *Index) IDF(term string) (float64, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	v, ok := idx.idf[term]
	return v, ok
}
