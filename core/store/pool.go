// Package store implements the persistent store (C3): durable SQLite-backed
// storage of FileRecords, postings, the IDF table, the vector store's
// logical-delete bitmap, and a small metadata blob. Shaped after a
// core/database package (manager.go's Pool/PoolConfig shape,
// migration.go's version-gated Migrator), adapted from a generic
// multi-database manager to a single-file store opened once per index
// root.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// PoolConfig tunes the underlying *sql.DB: WAL mode, foreign keys on, a
// small negative cache_size meaning "KiB of page cache" per SQLite's
// PRAGMA semantics.
type PoolConfig struct {
	MaxOpen     int
	MaxIdle     int
	MaxLifetime time.Duration
	BusyTimeout time.Duration
	EnableWAL   bool
	ForeignKeys bool
	CacheSize   int
}

func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxOpen:     10,
		MaxIdle:     5,
		MaxLifetime: time.Hour,
		BusyTimeout: 30 * time.Second,
		EnableWAL:   true,
		ForeignKeys: true,
		CacheSize:   -2000,
	}
}

// Pool wraps a single SQLite *sql.DB with the transaction helpers the rest
// of this package builds on.
type Pool struct {
	db   *sql.DB
	path string
	mu   sync.RWMutex
}

// openPool creates (or attaches to) the SQLite file at path, applying
// cfg's pragmas via the DSN. Unexported: callers go through store.Open,
// which additionally runs migrations.
func openPool(path string, cfg PoolConfig) (*Pool, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("store: create dir: %w", err)
	}

	journalMode := "DELETE"
	if cfg.EnableWAL {
		journalMode = "WAL"
	}
	dsn := fmt.Sprintf("file:%s?_busy_timeout=%d&_journal_mode=%s&_foreign_keys=%d&cache_size=%d",
		path,
		int(cfg.BusyTimeout.Milliseconds()),
		journalMode,
		boolToInt(cfg.ForeignKeys),
		cfg.CacheSize,
	)

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpen)
	db.SetMaxIdleConns(cfg.MaxIdle)
	db.SetConnMaxLifetime(cfg.MaxLifetime)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}

	return &Pool{db: db, path: path}, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func (p *Pool) DB() *sql.DB { return p.db }
func (p *Pool) Path() string { return p.path }

func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.db == nil {
		return nil
	}
	err := p.db.Close()
	p.db = nil
	return err
}

func (p *Pool) Transaction(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (p *Pool) Version() (int, error) {
	var version int
	err := p.db.QueryRow("PRAGMA user_version").Scan(&version)
	return version, err
}

func (p *Pool) SetVersion(version int) error {
	_, err := p.db.Exec(fmt.Sprintf("PRAGMA user_version = %d", version))
	return err
}

// IntegrityCheck runs SQLite's own consistency check. A non-"ok" result
// signals the orchestrator should treat the store as corrupted and trigger
// a full rebuild rather than trusting partially-readable data.
func (p *Pool) IntegrityCheck() error {
	var result string
	if err := p.db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return err
	}
	if result != "ok" {
		return fmt.Errorf("store: integrity check failed: %s", result)
	}
	return nil
}
