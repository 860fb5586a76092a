package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/SylphxAI/codebase-search/core/scanner"
)

// Store is the persistent-store facade: a migrated connection pool plus
// the two write patterns this domain's data model calls for — a bulk
// transaction for full rebuilds, and small point updates for incremental
// changes — together with the reads the orchestrator needs to reconstruct
// a tfidf.Index and FileRecord set on startup.
type Store struct {
	pool *Pool
}

// Open opens (creating if absent) the SQLite file at path and migrates it
// to the latest schema version.
func Open(ctx context.Context, path string, cfg PoolConfig) (*Store, error) {
	pool, err := openPool(path, cfg)
	if err != nil {
		return nil, err
	}
	if err := NewMigrator(pool, schemaMigrations).Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() error { return s.pool.Close() }

// IntegrityCheck delegates to the pool; a non-nil error signals the
// orchestrator should discard this store and rebuild from scratch.
func (s *Store) IntegrityCheck() error { return s.pool.IntegrityCheck() }

// PostingRow is one (term, doc_id, tf) triple, the unit the bulk and
// point-update paths both operate on.
type PostingRow struct {
	Term  string
	DocID string
	TF    int
}

// FileRow is a scanner.FileRecord plus the content preview computed at
// index time (the scanner itself never reads file content, only stats and
// hashes it, so the preview travels separately).
type FileRow struct {
	scanner.FileRecord
	Preview string
}

// RebuildSnapshot is everything a full rebuild writes in one transaction:
// every FileRecord, every posting, and the complete IDF table. Used by the
// bulk write path's "full rebuild" pattern.
type RebuildSnapshot struct {
	Files    []FileRow
	Postings []PostingRow
	IDF      map[string]float64
}

// SaveRebuild replaces the entire file_records/postings/idf contents with
// snapshot, inside a single transaction: either all of it lands or none of
// it does.
func (s *Store) SaveRebuild(ctx context.Context, snapshot RebuildSnapshot) error {
	return s.pool.Transaction(ctx, func(tx *sql.Tx) error {
		for _, stmt := range []string{"DELETE FROM file_records", "DELETE FROM postings", "DELETE FROM idf"} {
			if _, err := tx.Exec(stmt); err != nil {
				return err
			}
		}

		fileStmt, err := tx.Prepare(`INSERT INTO file_records (path, abs_path, size, content_hash, language, content_preview, indexed_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer fileStmt.Close()
		for _, f := range snapshot.Files {
			if _, err := fileStmt.Exec(f.Path, f.AbsPath, f.Size, f.Hash, f.Language, f.Preview, f.IndexedAt.Unix()); err != nil {
				return fmt.Errorf("insert file_record %s: %w", f.Path, err)
			}
		}

		postingStmt, err := tx.Prepare(`INSERT INTO postings (term, doc_id, tf) VALUES (?, ?, ?)`)
		if err != nil {
			return err
		}
		defer postingStmt.Close()
		for _, p := range snapshot.Postings {
			if _, err := postingStmt.Exec(p.Term, p.DocID, p.TF); err != nil {
				return fmt.Errorf("insert posting %s/%s: %w", p.Term, p.DocID, err)
			}
		}

		idfStmt, err := tx.Prepare(`INSERT INTO idf (term, value) VALUES (?, ?)`)
		if err != nil {
			return err
		}
		defer idfStmt.Close()
		for term, value := range snapshot.IDF {
			if _, err := idfStmt.Exec(term, value); err != nil {
				return fmt.Errorf("insert idf %s: %w", term, err)
			}
		}
		return nil
	})
}

// UpsertFile writes a single FileRecord, replacing its postings and
// refreshing the affected terms' idf values — the point-update path for
// incremental changes, avoiding a full-table rewrite.
func (s *Store) UpsertFile(ctx context.Context, file FileRow, postings []PostingRow, idf map[string]float64) error {
	return s.pool.Transaction(ctx, func(tx *sql.Tx) error {
		_, err := tx.Exec(`INSERT INTO file_records (path, abs_path, size, content_hash, language, content_preview, indexed_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(path) DO UPDATE SET abs_path=excluded.abs_path, size=excluded.size,
				content_hash=excluded.content_hash, language=excluded.language,
				content_preview=excluded.content_preview, indexed_at=excluded.indexed_at`,
			file.Path, file.AbsPath, file.Size, file.Hash, file.Language, file.Preview, file.IndexedAt.Unix())
		if err != nil {
			return fmt.Errorf("upsert file_record %s: %w", file.Path, err)
		}

		if _, err := tx.Exec(`DELETE FROM postings WHERE doc_id = ?`, file.Path); err != nil {
			return err
		}
		postingStmt, err := tx.Prepare(`INSERT INTO postings (term, doc_id, tf) VALUES (?, ?, ?)`)
		if err != nil {
			return err
		}
		defer postingStmt.Close()
		for _, p := range postings {
			if _, err := postingStmt.Exec(p.Term, file.Path, p.TF); err != nil {
				return err
			}
		}

		idfStmt, err := tx.Prepare(`INSERT INTO idf (term, value) VALUES (?, ?)
			ON CONFLICT(term) DO UPDATE SET value=excluded.value`)
		if err != nil {
			return err
		}
		defer idfStmt.Close()
		for term, value := range idf {
			if _, err := idfStmt.Exec(term, value); err != nil {
				return err
			}
		}
		return nil
	})
}

// DeleteFile removes a FileRecord, its postings, and the idf entries of the
// caller-supplied emptiedTerms — the point-update deletion path.
func (s *Store) DeleteFile(ctx context.Context, path string, emptiedTerms []string) error {
	return s.pool.Transaction(ctx, func(tx *sql.Tx) error {
		if _, err := tx.Exec(`DELETE FROM file_records WHERE path = ?`, path); err != nil {
			return err
		}
		if _, err := tx.Exec(`DELETE FROM postings WHERE doc_id = ?`, path); err != nil {
			return err
		}
		if len(emptiedTerms) == 0 {
			return nil
		}
		stmt, err := tx.Prepare(`DELETE FROM idf WHERE term = ?`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, term := range emptiedTerms {
			if _, err := stmt.Exec(term); err != nil {
				return err
			}
		}
		return nil
	})
}

// LoadFiles returns every FileRow, for scanner.Diff comparisons and preview
// reconstruction on startup.
func (s *Store) LoadFiles(ctx context.Context) ([]FileRow, error) {
	rows, err := s.pool.db.QueryContext(ctx, `SELECT path, abs_path, size, content_hash, language, content_preview, indexed_at FROM file_records`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []FileRow
	for rows.Next() {
		var f FileRow
		var indexedAt int64
		if err := rows.Scan(&f.Path, &f.AbsPath, &f.Size, &f.Hash, &f.Language, &f.Preview, &indexedAt); err != nil {
			return nil, err
		}
		f.IndexedAt = unixToTime(indexedAt)
		out = append(out, f)
	}
	return out, rows.Err()
}

// LoadPostings returns every posting row, for reconstructing a tfidf.Index.
func (s *Store) LoadPostings(ctx context.Context) ([]PostingRow, error) {
	rows, err := s.pool.db.QueryContext(ctx, `SELECT term, doc_id, tf FROM postings`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PostingRow
	for rows.Next() {
		var p PostingRow
		if err := rows.Scan(&p.Term, &p.DocID, &p.TF); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// LoadIDF returns the complete IDF table.
func (s *Store) LoadIDF(ctx context.Context) (map[string]float64, error) {
	rows, err := s.pool.db.QueryContext(ctx, `SELECT term, value FROM idf`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]float64)
	for rows.Next() {
		var term string
		var value float64
		if err := rows.Scan(&term, &value); err != nil {
			return nil, err
		}
		out[term] = value
	}
	return out, rows.Err()
}

// MarkVectorDeleted records slots as logically deleted in the
// vector_deleted table. Slots already recorded are ignored, and no row is
// ever removed.
func (s *Store) MarkVectorDeleted(ctx context.Context, slots []int) error {
	if len(slots) == 0 {
		return nil
	}
	return s.pool.Transaction(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(`INSERT OR IGNORE INTO vector_deleted (slot) VALUES (?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, slot := range slots {
			if _, err := stmt.Exec(slot); err != nil {
				return err
			}
		}
		return nil
	})
}

// LoadVectorDeleted returns every logically-deleted slot recorded so far.
func (s *Store) LoadVectorDeleted(ctx context.Context) ([]int, error) {
	rows, err := s.pool.db.QueryContext(ctx, `SELECT slot FROM vector_deleted`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []int
	for rows.Next() {
		var slot int
		if err := rows.Scan(&slot); err != nil {
			return nil, err
		}
		out = append(out, slot)
	}
	return out, rows.Err()
}

// SetMeta and Meta persist small scalar facts (schema version markers,
// embedding dimensions, last full-rebuild time) as a string-keyed blob.
func (s *Store) SetMeta(ctx context.Context, key, value string) error {
	_, err := s.pool.db.ExecContext(ctx, `INSERT INTO meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value=excluded.value`, key, value)
	return err
}

func (s *Store) Meta(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.pool.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

func unixToTime(sec int64) time.Time { return time.Unix(sec, 0).UTC() }
