// Package indexer is the top-level facade (C10): it wires the scanner,
// analyzer, tfidf, vectorstore, embedder, hybrid, cache, watcher, and
// store packages into the index/search/status/close operations the rest
// of the program calls. Shaped after a SearchCoordinator
// (core/search/coordinator/coordinator.go) for the search-time fan-out
// and on its FullReindexer/IncrementalIndexer pair
// (core/search/indexer/reindex.go, incremental.go) for the staged
// indexing pipeline and progress reporting shape.
package indexer

import (
	"time"

	"github.com/SylphxAI/codebase-search/core/store"
	"github.com/SylphxAI/codebase-search/core/vectorstore/hnsw"
)

// EmbeddingConfig selects and configures an embedder.Embedder by name.
type EmbeddingConfig struct {
	Provider string
	Options  map[string]string
}

// Config is the full set of knobs governing one indexer instance: codebase
// root, size/ignore limits, the embedding provider, HNSW tuning, cache
// sizing, watcher debounce, and the incremental-vs-rebuild threshold.
type Config struct {
	CodebaseRoot string
	DataDir      string // holds index.db and the vectors.hnsw snapshot pair

	MaxFileSize int64
	IgnoreExtra []string
	LanguageOf  func(path string) string

	Embedding EmbeddingConfig

	Dimensions  int
	MaxElements int
	M           int
	EfConstruct int
	EfSearch    int

	CacheMaxSize int
	CacheTTL     time.Duration

	DebounceMs       int
	RebuildThreshold float64

	ExcludePatterns []string
}

func (c Config) withDefaults() Config {
	if c.MaxFileSize == 0 {
		c.MaxFileSize = 1 << 20
	}
	if c.Embedding.Provider == "" {
		c.Embedding.Provider = "mock"
	}
	if c.Dimensions == 0 {
		c.Dimensions = 384
	}
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
	if c.CacheMaxSize == 0 {
		c.CacheMaxSize = 1000
	}
	if c.CacheTTL == 0 {
		c.CacheTTL = 5 * time.Minute
	}
	if c.DebounceMs == 0 {
		c.DebounceMs = 500
	}
	if c.RebuildThreshold == 0 {
		c.RebuildThreshold = 0.20
	}
	return c
}

func (c Config) vectorConfig() hnsw.Config {
	cfg := hnsw.DefaultConfig()
	cfg.Dimension = c.Dimensions
	cfg.M = c.M
	cfg.EfConstruct = c.EfConstruct
	cfg.EfSearch = c.EfSearch
	return cfg
}

func (c Config) poolConfig() store.PoolConfig {
	return store.DefaultPoolConfig()
}
