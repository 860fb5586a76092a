// Package scanner walks a codebase root, applies ignore rules, and detects
// content changes against a previously observed set of FileRecords.
// Shaped after an indexer.Scanner (glob-pattern walk) combined
// with its watcher.ChecksumStore hashing helper, generalized to emit the
// four-way diff streams this domain's file scanner component needs.
package scanner

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// FileRecord is the scanner's view of one observed file. It mirrors the
// data model's FileRecord entity.
type FileRecord struct {
	Path       string // relative to root
	AbsPath    string
	Size       int64
	Hash       string
	Language   string
	IndexedAt  time.Time
}

// Config configures a Scan invocation.
type Config struct {
	Root          string
	MaxFileSize   int64
	IgnoreExtra   []string
	LanguageOf    func(path string) string
}

// DefaultMaxFileSize is the default per-file size ceiling, 1 MiB.
const DefaultMaxFileSize = 1 << 20

// ScanError reports a per-file failure that did not abort the scan.
type ScanError struct {
	Path string
	Err  error
}

func (e *ScanError) Error() string { return e.Path + ": " + e.Err.Error() }

// Diff is the four-way change classification produced by comparing a fresh
// walk against the previously known FileRecord table.
type Diff struct {
	Unchanged []FileRecord
	Changed   []FileRecord
	New       []FileRecord
	Missing   []string // relative paths no longer present
	Errors    []ScanError
}

// Scan walks cfg.Root, applies the composite ignore matcher, computes
// content hashes, and classifies every candidate against known (the
// caller's current FileRecord table, keyed by relative path). Per-file
// errors (permission, unreadable) are collected in Diff.Errors and do not
// abort the scan.
func Scan(ctx context.Context, cfg Config, known map[string]FileRecord) (*Diff, error) {
	maxSize := cfg.MaxFileSize
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}

	matcher, err := NewIgnoreMatcher(cfg.Root, maxSize, cfg.IgnoreExtra)
	if err != nil {
		return nil, err
	}

	diff := &Diff{}
	seen := make(map[string]struct{}, len(known))

	walkErr := filepath.WalkDir(cfg.Root, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			diff.Errors = append(diff.Errors, ScanError{Path: path, Err: err})
			return nil
		}
		if err := matcher.LoadGitignore(filepath.Dir(path)); err != nil {
			diff.Errors = append(diff.Errors, ScanError{Path: path, Err: err})
		}

		if d.IsDir() {
			if path != cfg.Root && matcher.IsDirIgnored(path) {
				return filepath.SkipDir
			}
			return nil
		}

		info, err := d.Info()
		if err != nil {
			diff.Errors = append(diff.Errors, ScanError{Path: path, Err: err})
			return nil
		}
		if matcher.IsFileIgnored(path, info.Size()) {
			return nil
		}

		rel, err := filepath.Rel(cfg.Root, path)
		if err != nil {
			diff.Errors = append(diff.Errors, ScanError{Path: path, Err: err})
			return nil
		}
		seen[rel] = struct{}{}

		hash, err := hashFile(path)
		if err != nil {
			diff.Errors = append(diff.Errors, ScanError{Path: path, Err: err})
			return nil
		}

		language := ""
		if cfg.LanguageOf != nil {
			language = cfg.LanguageOf(path)
		}

		record := FileRecord{
			Path:      rel,
			AbsPath:   path,
			Size:      info.Size(),
			Hash:      hash,
			Language:  language,
			IndexedAt: time.Now(),
		}

		classify(diff, known, record)
		return nil
	})
	if walkErr != nil {
		return diff, walkErr
	}

	for path := range known {
		if _, ok := seen[path]; !ok {
			diff.Missing = append(diff.Missing, path)
		}
	}

	return diff, nil
}

func classify(diff *Diff, known map[string]FileRecord, record FileRecord) {
	prior, existed := known[record.Path]
	switch {
	case !existed:
		diff.New = append(diff.New, record)
	case prior.Hash != record.Hash:
		diff.Changed = append(diff.Changed, record)
	default:
		diff.Unchanged = append(diff.Unchanged, record)
	}
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
