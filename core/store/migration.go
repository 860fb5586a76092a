package store

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
)

// Migration is one forward schema step, applied inside its own transaction
// and gated by SQLite's user_version pragma.
type Migration struct {
	Version     int
	Description string
	Up          func(tx *sql.Tx) error
}

// Migrator applies pending migrations in ascending version order.
type Migrator struct {
	pool       *Pool
	migrations []Migration
}

func NewMigrator(pool *Pool, migrations []Migration) *Migrator {
	sorted := make([]Migration, len(migrations))
	copy(sorted, migrations)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Version < sorted[j].Version })
	return &Migrator{pool: pool, migrations: sorted}
}

func (m *Migrator) Migrate(ctx context.Context) error {
	current, err := m.pool.Version()
	if err != nil {
		return fmt.Errorf("store: get version: %w", err)
	}

	for _, migration := range m.migrations {
		if migration.Version <= current {
			continue
		}
		if err := m.apply(ctx, migration); err != nil {
			return fmt.Errorf("store: migration %d (%s): %w", migration.Version, migration.Description, err)
		}
	}
	return nil
}

func (m *Migrator) apply(ctx context.Context, migration Migration) error {
	return m.pool.Transaction(ctx, func(tx *sql.Tx) error {
		if err := migration.Up(tx); err != nil {
			return err
		}
		_, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version))
		return err
	})
}

// schemaMigrations is the store's full migration history. Each version
// adds whatever the next milestone of the domain's schema needed — there
// is only one milestone so far.
var schemaMigrations = []Migration{
	{
		Version:     1,
		Description: "initial schema: file_records, postings, idf, vector_deleted, meta",
		Up: func(tx *sql.Tx) error {
			statements := []string{
				`CREATE TABLE file_records (
					path TEXT PRIMARY KEY,
					abs_path TEXT NOT NULL,
					size INTEGER NOT NULL,
					content_hash TEXT NOT NULL,
					language TEXT,
					content_preview TEXT,
					indexed_at INTEGER NOT NULL
				)`,
				`CREATE TABLE postings (
					term TEXT NOT NULL,
					doc_id TEXT NOT NULL,
					tf INTEGER NOT NULL,
					PRIMARY KEY (term, doc_id)
				)`,
				`CREATE INDEX idx_postings_doc_id ON postings(doc_id)`,
				`CREATE TABLE idf (
					term TEXT PRIMARY KEY,
					value REAL NOT NULL
				)`,
				`CREATE TABLE vector_deleted (
					slot INTEGER PRIMARY KEY
				)`,
				`CREATE TABLE meta (
					key TEXT PRIMARY KEY,
					value TEXT NOT NULL
				)`,
			}
			for _, stmt := range statements {
				if _, err := tx.Exec(stmt); err != nil {
					return err
				}
			}
			return nil
		},
	},
}
