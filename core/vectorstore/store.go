// Package vectorstore wraps an hnsw.Graph with the bookkeeping the graph
// itself deliberately does not provide: document-id <-> slot translation,
// logical deletion, and save/load of a graph-plus-metadata snapshot pair.
//
// Shaped after a vectorgraphdb persistence transaction pattern
// (core/vectorgraphdb/hnsw/persistence.go), adapted from SQL transactions
// to an atomic temp-file-then-rename write of a binary graph file and a
// JSON metadata sidecar.
package vectorstore

import (
	"fmt"
	"sync"
	"unicode"

	"github.com/SylphxAI/codebase-search/core/cserrors"
	"github.com/SylphxAI/codebase-search/core/vectorstore/hnsw"
)

// Metadata is the small snippet of information kept alongside a vector:
// enough to render a result without a second lookup into the TF-IDF
// document store.
type Metadata struct {
	DocID          string `json:"-"`
	Language       string `json:"language"`
	ContentPreview string `json:"contentPreview"`
}

const maxContentPreviewLen = 500

// truncatePreview trims s to maxContentPreviewLen runes at the nearest
// preceding word boundary, so a preview never splits a multi-byte UTF-8
// character and rarely splits a word.
func truncatePreview(s string) string {
	runes := []rune(s)
	if len(runes) <= maxContentPreviewLen {
		return s
	}
	cut := runes[:maxContentPreviewLen]
	if last := lastSpaceRune(cut); last > maxContentPreviewLen/2 {
		cut = cut[:last]
	}
	return string(cut)
}

func lastSpaceRune(runes []rune) int {
	for i := len(runes) - 1; i >= 0; i-- {
		if unicode.IsSpace(runes[i]) {
			return i
		}
	}
	return -1
}

// Result is one ranked hit from Search.
type Result struct {
	DocID      string
	Similarity float64
	Metadata   Metadata
}

// Filter narrows Search results by metadata.
type Filter func(Metadata) bool

// compactionThreshold matches spec's 30% logical-delete trigger.
const compactionThreshold = 0.30

// Store is the C6 vector store: an hnsw.Graph plus slot bookkeeping and a
// logical-delete overlay, since the graph itself supports no physical
// delete.
type Store struct {
	mu sync.RWMutex

	cfg       hnsw.Config
	graph     *hnsw.Graph
	idToSlot  map[string]int
	slotToID  map[int]string
	keyToSlot map[string]int // graph slot-key -> slot, for O(1) Search lookups
	docMeta   map[int]Metadata
	deleted   map[int]struct{}
	nextSlot  int
	capacity  int
}

// Config tunes both the underlying graph and the store's own capacity
// bookkeeping. Dimensions is required and must match the embedding
// provider in use; all other fields fall back to sensible defaults when
// zero.
type Config struct {
	Dimensions    int
	MaxElements   int
	M             int
	EfConstruct   int
	EfSearch      int
}

func (c Config) withDefaults() Config {
	if c.MaxElements == 0 {
		c.MaxElements = 10000
	}
	if c.M == 0 {
		c.M = 16
	}
	if c.EfConstruct == 0 {
		c.EfConstruct = 200
	}
	if c.EfSearch == 0 {
		c.EfSearch = 50
	}
	return c
}

// New creates an empty vector store. dimensions is validated lazily: the
// first Add call fixes it if not already set via cfg.Dimensions.
func New(cfg hnsw.Config) *Store {
	return &Store{
		cfg:       cfg,
		graph:     hnsw.New(cfg),
		idToSlot:  make(map[string]int),
		slotToID:  make(map[int]string),
		keyToSlot: make(map[string]int),
		docMeta:   make(map[int]Metadata),
		deleted:   make(map[int]struct{}),
	}
}

// NewFromConfig builds the store from the C6-level Config, including
// capacity, deferring graph construction to hnsw.New.
func NewFromConfig(cfg Config) *Store {
	cfg = cfg.withDefaults()
	s := New(hnsw.Config{
		M:           cfg.M,
		EfConstruct: cfg.EfConstruct,
		EfSearch:    cfg.EfSearch,
		LevelMult:   1 / 0.6931471805599453,
		Dimension:   cfg.Dimensions,
	})
	s.capacity = cfg.MaxElements
	return s
}

// Len returns the number of live (non-logically-deleted) documents.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.idToSlot)
}

// Contains reports whether doc_id currently has a live slot.
func (s *Store) Contains(docID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	slot, ok := s.idToSlot[docID]
	if !ok {
		return false
	}
	_, dead := s.deleted[slot]
	return !dead
}

// Add allocates a new slot for docID and inserts vector. Rejects a
// duplicate docID with cserrors.KindDuplicateID — callers that want
// replace semantics should call Update instead.
func (s *Store) Add(docID string, vector []float32, meta Metadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.idToSlot[docID]; exists {
		return cserrors.New(cserrors.KindDuplicateID, "vectorstore.Add", nil).WithPath(docID)
	}
	return s.insertLocked(docID, vector, meta)
}

func (s *Store) insertLocked(docID string, vector []float32, meta Metadata) error {
	meta.DocID = docID
	meta.ContentPreview = truncatePreview(meta.ContentPreview)

	slotKey := fmt.Sprintf("%s#%d", docID, s.nextSlot)
	if err := s.graph.Insert(slotKey, vector); err != nil {
		return err
	}

	slot := s.nextSlot
	s.nextSlot++
	s.idToSlot[docID] = slot
	s.slotToID[slot] = docID
	s.keyToSlot[slotKey] = slot
	s.docMeta[slot] = meta
	return nil
}

// Update logically deletes docID's prior slot and inserts a fresh one with
// the new vector and metadata. The old vector remains physically in the
// graph, filtered out of future search results by the delete bitmap.
func (s *Store) Update(docID string, vector []float32, meta Metadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if oldSlot, exists := s.idToSlot[docID]; exists {
		s.deleted[oldSlot] = struct{}{}
		delete(s.idToSlot, docID)
	}
	return s.insertLocked(docID, vector, meta)
}

// Delete logically removes docID. A no-op if docID is not present.
func (s *Store) Delete(docID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	slot, exists := s.idToSlot[docID]
	if !exists {
		return
	}
	s.deleted[slot] = struct{}{}
	delete(s.idToSlot, docID)
}

// NeedsCompaction reports whether the logical-delete ratio has crossed
// spec's 30% threshold, or capacity is exhausted — either condition is the
// orchestrator's cue to call Compact.
func (s *Store) NeedsCompaction() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.capacity > 0 && s.nextSlot >= s.capacity {
		return true
	}
	if s.nextSlot == 0 {
		return false
	}
	return float64(len(s.deleted))/float64(s.nextSlot) > compactionThreshold
}

// Compact builds a fresh Store containing only live vectors, discarding
// every logically-deleted slot and resetting the slot counter. Callers
// should swap their reference to the returned store and persist it over
// the old snapshot file.
func (s *Store) Compact() *Store {
	s.mu.RLock()
	defer s.mu.RUnlock()

	fresh := New(s.cfg)
	fresh.capacity = s.capacity
	for docID, slot := range s.idToSlot {
		if _, dead := s.deleted[slot]; dead {
			continue
		}
		vec, ok := s.graph.Vector(slotKeyFor(docID, slot))
		if !ok {
			continue
		}
		meta := s.docMeta[slot]
		_ = fresh.insertLocked(docID, vec, meta)
	}
	return fresh
}

func slotKeyFor(docID string, slot int) string {
	return fmt.Sprintf("%s#%d", docID, slot)
}

// Search requests 2k neighbors from the graph, drops logically-deleted and
// sub-minScore hits, applies filter, and returns up to k results ordered
// by descending similarity.
func (s *Store) Search(query []float32, k int, minScore float64, filter Filter) []Result {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if k <= 0 {
		return nil
	}
	candidates := s.graph.Search(query, k*2)
	results := make([]Result, 0, k)
	for _, c := range candidates {
		slot, meta, ok := s.slotInfoLocked(c.ID)
		if !ok {
			continue
		}
		if _, dead := s.deleted[slot]; dead {
			continue
		}
		if c.Similarity < minScore {
			continue
		}
		if filter != nil && !filter(meta) {
			continue
		}
		results = append(results, Result{DocID: meta.DocID, Similarity: c.Similarity, Metadata: meta})
		if len(results) >= k {
			break
		}
	}
	return results
}

func (s *Store) slotInfoLocked(slotKey string) (int, Metadata, bool) {
	slot, ok := s.keyToSlot[slotKey]
	if !ok {
		return 0, Metadata{}, false
	}
	return slot, s.docMeta[slot], true
}

// DeletedSlots returns every logically-deleted slot, for mirroring into a
// secondary store (e.g. the persistent store's vector_deleted table)
// alongside the binary snapshot.
func (s *Store) DeletedSlots() []int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]int, 0, len(s.deleted))
	for slot := range s.deleted {
		out = append(out, slot)
	}
	return out
}

// Save writes the graph binary and JSON sidecar into dir.
func (s *Store) Save(dir string) error {
	return s.save(dir)
}

// Load reconstructs a Store from dir, validating that the snapshot's
// dimension matches wantDimension (pass 0 to skip validation).
func Load(dir string, wantDimension int) (*Store, error) {
	return load(dir, wantDimension)
}
