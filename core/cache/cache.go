// Package cache implements the result cache (C9): an LRU+TTL store keyed by
// the full shape of a search request, flushed entirely on any index
// mutation. Shaped after a SearchCache
// (core/search/coordinator/cache.go) — the same key-hashing and
// invalidate/stats shape — but the LRU+TTL storage itself is
// hashicorp/golang-lru/v2's expirable.LRU rather than a hand-rolled
// container/list.
package cache

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"sort"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

// DefaultTTL and DefaultMaxSize are the result cache's default bounds.
const (
	DefaultTTL     = 5 * time.Minute
	DefaultMaxSize = 1000
)

// Key identifies one cached query shape. Mode is "lexical", "vector", or
// "hybrid"; Filters holds any metadata predicate applied. Hash sorts its
// keys, so map iteration order does not change the derived key.
type Key struct {
	Query        string
	Mode         string
	Limit        int
	VectorWeight float64
	Filters      map[string]string
}

// Hash returns a deterministic cache key string for k.
func (k Key) Hash() string {
	h := sha256.New()
	h.Write([]byte(k.Query))
	h.Write([]byte(k.Mode))
	binary.Write(h, binary.LittleEndian, int32(k.Limit))
	binary.Write(h, binary.LittleEndian, k.VectorWeight)

	keys := make([]string, 0, len(k.Filters))
	for fk := range k.Filters {
		keys = append(keys, fk)
	}
	sort.Strings(keys)
	for _, fk := range keys {
		h.Write([]byte(fk))
		h.Write([]byte(k.Filters[fk]))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Stats reports cache hit/miss counters and current occupancy.
type Stats struct {
	Hits    uint64
	Misses  uint64
	Size    int
	MaxSize int
	Version uint64
}

// Cache is the C9 result cache. value is `any` so callers can store
// whatever result shape (hybrid.Result slice, tfidf.Result slice, etc.)
// they search with.
type Cache struct {
	mu      sync.Mutex
	store   *lru.LRU[string, any]
	maxSize int
	hits    uint64
	misses  uint64
	version uint64
}

// New creates a Cache with the given max size and TTL. Zero values fall
// back to DefaultMaxSize / DefaultTTL.
func New(maxSize int, ttl time.Duration) *Cache {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		store:   lru.NewLRU[string, any](maxSize, nil, ttl),
		maxSize: maxSize,
	}
}

// Get returns the cached value for key, if present and unexpired.
func (c *Cache) Get(key Key) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	v, ok := c.store.Get(key.Hash())
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	return v, ok
}

// Set stores value under key.
func (c *Cache) Set(key Key, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store.Add(key.Hash(), value)
}

// Invalidate discards every entry. Called whenever the underlying index
// (lexical or vector) is mutated, since a cached result could otherwise
// outlive the document it was computed from.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store.Purge()
	c.version++
}

// Stats returns the current hit/miss counters and occupancy.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Hits:    c.hits,
		Misses:  c.misses,
		Size:    c.store.Len(),
		MaxSize: c.maxSize,
		Version: c.version,
	}
}
