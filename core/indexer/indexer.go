package indexer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/SylphxAI/codebase-search/core/analyzer"
	"github.com/SylphxAI/codebase-search/core/cache"
	"github.com/SylphxAI/codebase-search/core/cserrors"
	"github.com/SylphxAI/codebase-search/core/embedder"
	"github.com/SylphxAI/codebase-search/core/scanner"
	"github.com/SylphxAI/codebase-search/core/store"
	"github.com/SylphxAI/codebase-search/core/tfidf"
	"github.com/SylphxAI/codebase-search/core/vectorstore"
	"github.com/SylphxAI/codebase-search/core/watcher"
)

// ErrAlreadyClosed is returned by any operation on a closed Indexer.
var ErrAlreadyClosed = errors.New("indexer: already closed")

// embedConcurrency bounds how many files readContents reads at once during
// a single index run.
const embedConcurrency = 4

// Indexer is the C10 orchestrator: it owns the tfidf.Index and
// vectorstore.Store in memory, the persistent store.Store on disk, the
// embedder, the result cache, and (once started) the filesystem watcher.
type Indexer struct {
	cfg Config

	emb   embedder.Embedder
	db    *store.Store
	cache *cache.Cache

	mu    sync.RWMutex
	tf    *tfidf.Index
	vec   *vectorstore.Store
	known map[string]scanner.FileRecord

	statusMu sync.RWMutex
	status   Status

	sf singleflight.Group

	watch       *watcher.Watcher
	cancelWatch context.CancelFunc

	closed bool
}

// New opens (or creates) the persistent store at cfg.DataDir, reconstructs
// the in-memory tfidf.Index and vectorstore.Store from it if present, and
// returns a ready-to-use Indexer. Call Index to perform the first full
// scan of a fresh store.
func New(ctx context.Context, cfg Config) (*Indexer, error) {
	cfg = cfg.withDefaults()

	info, err := os.Stat(cfg.CodebaseRoot)
	if err != nil {
		return nil, fmt.Errorf("indexer: codebase root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("indexer: codebase root %q is not a directory", cfg.CodebaseRoot)
	}

	embOptions := cfg.Embedding.Options
	if _, set := embOptions["dimensions"]; !set {
		embOptions = mergeOption(embOptions, "dimensions", strconv.Itoa(cfg.Dimensions))
	}
	emb, err := embedder.New(cfg.Embedding.Provider, embOptions)
	if err != nil {
		return nil, fmt.Errorf("indexer: embedder: %w", err)
	}

	db, err := store.Open(ctx, filepath.Join(cfg.DataDir, "index.db"), cfg.poolConfig())
	if err != nil {
		return nil, fmt.Errorf("indexer: open store: %w", err)
	}

	ix := &Indexer{
		cfg:   cfg,
		emb:   emb,
		db:    db,
		cache: cache.New(cfg.CacheMaxSize, cfg.CacheTTL),
		tf:    tfidf.New(),
		known: make(map[string]scanner.FileRecord),
	}

	if err := ix.loadFromStore(ctx); err != nil {
		db.Close()
		return nil, err
	}

	vec, err := vectorstore.Load(ix.vectorDir(), cfg.Dimensions)
	if err != nil {
		vec = vectorstore.NewFromConfig(vectorstore.Config{
			Dimensions:  cfg.Dimensions,
			MaxElements: cfg.MaxElements,
			M:           cfg.M,
			EfConstruct: cfg.EfConstruct,
			EfSearch:    cfg.EfSearch,
		})
	}
	ix.vec = vec

	return ix, nil
}

func (ix *Indexer) vectorDir() string { return ix.cfg.DataDir }

func mergeOption(options map[string]string, key, value string) map[string]string {
	out := make(map[string]string, len(options)+1)
	for k, v := range options {
		out[k] = v
	}
	out[key] = value
	return out
}

// loadFromStore rebuilds ix.tf and ix.known from whatever the persistent
// store already has on disk. If the store's integrity check fails, the
// caller should discard it and run Index for a fresh full rebuild instead
// of trusting partial data.
func (ix *Indexer) loadFromStore(ctx context.Context) error {
	if err := ix.db.IntegrityCheck(); err != nil {
		return nil // empty/corrupted store: start from an empty index, a full Index call repopulates it
	}

	files, err := ix.db.LoadFiles(ctx)
	if err != nil {
		return fmt.Errorf("indexer: load files: %w", err)
	}
	postings, err := ix.db.LoadPostings(ctx)
	if err != nil {
		return fmt.Errorf("indexer: load postings: %w", err)
	}

	docTF := make(map[string]map[string]int)
	for _, p := range postings {
		tf, ok := docTF[p.DocID]
		if !ok {
			tf = make(map[string]int)
			docTF[p.DocID] = tf
		}
		tf[p.Term] = p.TF
	}

	for _, f := range files {
		ix.known[f.Path] = f.FileRecord
		if tf, ok := docTF[f.Path]; ok {
			_ = ix.tf.AddDocument(f.Path, tf)
			ix.tf.SetMetadata(f.Path, f.Preview, f.Language)
		}
	}
	return nil
}

// setStatus replaces the current status wholesale.
func (ix *Indexer) setStatus(s Status) {
	ix.statusMu.Lock()
	ix.status = s
	ix.statusMu.Unlock()
}

// Status returns a snapshot of the most recent run's progress.
func (ix *Indexer) Status() Status {
	ix.statusMu.RLock()
	defer ix.statusMu.RUnlock()
	return ix.status
}

func (ix *Indexer) updateStatus(fn func(*Status)) {
	ix.statusMu.Lock()
	fn(&ix.status)
	ix.statusMu.Unlock()
}

// Index runs the full pipeline: scan -> tfidf -> vectors -> persist.
// Concurrent calls coalesce onto a single in-flight run via singleflight,
// so overlapping callers share one pipeline run instead of racing.
func (ix *Indexer) Index(ctx context.Context) (Status, error) {
	v, err, _ := ix.sf.Do("index", func() (any, error) {
		return ix.runIndex(ctx)
	})
	if err != nil {
		return Status{}, err
	}
	return v.(Status), nil
}

func (ix *Indexer) runIndex(ctx context.Context) (Status, error) {
	runID := uuid.NewString()
	ix.setStatus(Status{RunID: runID, IsIndexing: true, Stage: StageScanning})

	ix.mu.RLock()
	known := make(map[string]scanner.FileRecord, len(ix.known))
	for k, v := range ix.known {
		known[k] = v
	}
	ix.mu.RUnlock()

	diff, err := scanner.Scan(ctx, scanner.Config{
		Root:        ix.cfg.CodebaseRoot,
		MaxFileSize: ix.cfg.MaxFileSize,
		IgnoreExtra: ix.cfg.IgnoreExtra,
		LanguageOf:  ix.cfg.LanguageOf,
	}, known)
	if err != nil {
		return ix.fail(runID, fmt.Errorf("scan: %w", err))
	}

	if err := checkCancelled(ctx); err != nil {
		return ix.fail(runID, err)
	}

	changed := len(diff.New) + len(diff.Changed) + len(diff.Missing)
	ix.updateStatus(func(s *Status) {
		s.Stage = StageTFIDF
		s.TotalFiles = changed
	})

	rebuild := tfidf.ShouldRebuild(changed, ix.tf.N(), ix.cfg.RebuildThreshold)

	contents, err := ix.readContents(ctx, append(append([]scanner.FileRecord{}, diff.New...), diff.Changed...))
	if err != nil {
		return ix.fail(runID, fmt.Errorf("read files: %w", err))
	}

	if err := checkCancelled(ctx); err != nil {
		return ix.fail(runID, err)
	}

	ix.mu.Lock()
	if rebuild {
		ix.rebuildTFIDFLocked(diff, known, contents)
	} else {
		ix.applyTFIDFDeltaLocked(diff, contents)
	}
	ix.mu.Unlock()

	ix.updateStatus(func(s *Status) { s.Stage = StageVectors })

	var vectorErr error
	vectors, err := ix.embedContents(ctx, contents)
	if err != nil {
		// A provider failure only costs the vector stage: the lexical
		// mutations above are already applied and still get persisted, so
		// lexical search keeps working and the run still completes.
		vectorErr = fmt.Errorf("embed: %w", err)
	} else {
		ix.applyVectorDelta(diff, contents, vectors)

		if ix.vec.NeedsCompaction() {
			ix.mu.Lock()
			ix.vec = ix.vec.Compact()
			ix.mu.Unlock()
		}
	}

	if err := checkCancelled(ctx); err != nil {
		return ix.fail(runID, err)
	}

	ix.mu.Lock()
	for _, f := range diff.New {
		ix.known[f.Path] = f
	}
	for _, f := range diff.Changed {
		ix.known[f.Path] = f
	}
	for _, path := range diff.Missing {
		delete(ix.known, path)
	}
	indexed := len(ix.known)
	ix.mu.Unlock()

	if err := ix.persist(ctx, rebuild, diff, contents); err != nil {
		return ix.fail(runID, fmt.Errorf("persist: %w", err))
	}

	ix.cache.Invalidate()

	final := Status{
		RunID:        runID,
		IsIndexing:   false,
		Stage:        StageComplete,
		Progress:     100,
		TotalFiles:   changed,
		IndexedFiles: indexed,
	}
	if vectorErr != nil {
		final.Error = vectorErr.Error()
	}
	ix.setStatus(final)
	return final, nil
}

// checkCancelled reports ctx's cancellation as a KindCancelled error, the
// form runIndex's stage-boundary checks return so a cancelled run is
// distinguishable from a genuine I/O or provider failure.
func checkCancelled(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return cserrors.New(cserrors.KindCancelled, "indexer.runIndex", err)
	}
	return nil
}

func (ix *Indexer) fail(runID string, err error) (Status, error) {
	s := Status{RunID: runID, IsIndexing: false, Stage: StageError, Error: err.Error()}
	ix.setStatus(s)
	return s, err
}

// fileContent pairs a FileRecord with its text, read once and reused by
// both the tfidf and vector stages.
type fileContent struct {
	record scanner.FileRecord
	text   string
}

func (ix *Indexer) readContents(ctx context.Context, records []scanner.FileRecord) ([]fileContent, error) {
	out := make([]fileContent, len(records))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(embedConcurrency)
	for i, rec := range records {
		i, rec := i, rec
		g.Go(func() error {
			if err := checkCancelled(gctx); err != nil {
				return err
			}
			data, err := os.ReadFile(rec.AbsPath)
			if err != nil {
				return fmt.Errorf("%s: %w", rec.Path, err)
			}
			out[i] = fileContent{record: rec, text: string(data)}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (ix *Indexer) rebuildTFIDFLocked(diff *scanner.Diff, known map[string]scanner.FileRecord, contents []fileContent) {
	byPath := make(map[string]fileContent, len(contents))
	for _, c := range contents {
		byPath[c.record.Path] = c
	}
	missing := make(map[string]struct{}, len(diff.Missing))
	for _, path := range diff.Missing {
		missing[path] = struct{}{}
	}

	oldTF := ix.tf
	fresh := tfidf.Rebuild(func(yield func(path string, tf map[string]int, preview, language string) bool) {
		for path := range known {
			if _, gone := missing[path]; gone {
				continue
			}
			if c, changed := byPath[path]; changed {
				tf, _ := analyzer.TermFrequencies(c.text, c.record.Language)
				if !yield(path, tf, preview(c.text), c.record.Language) {
					return
				}
				continue
			}
			tf, preview, language, ok := oldTF.TermFrequencies(path)
			if !ok {
				continue
			}
			if !yield(path, tf, preview, language) {
				return
			}
		}
		for _, c := range contents {
			if _, already := known[c.record.Path]; already {
				continue
			}
			tf, _ := analyzer.TermFrequencies(c.text, c.record.Language)
			if !yield(c.record.Path, tf, preview(c.text), c.record.Language) {
				return
			}
		}
	})
	ix.tf = fresh
}

func (ix *Indexer) applyTFIDFDeltaLocked(diff *scanner.Diff, contents []fileContent) {
	byPath := make(map[string]fileContent, len(contents))
	for _, c := range contents {
		byPath[c.record.Path] = c
	}

	var changes []tfidf.Change
	for _, f := range diff.New {
		c := byPath[f.Path]
		tf, _ := analyzer.TermFrequencies(c.text, f.Language)
		changes = append(changes, tfidf.Change{Op: tfidf.ChangeAdd, Path: f.Path, TF: tf, Preview: preview(c.text), Language: f.Language})
	}
	for _, f := range diff.Changed {
		c := byPath[f.Path]
		tf, _ := analyzer.TermFrequencies(c.text, f.Language)
		changes = append(changes, tfidf.Change{Op: tfidf.ChangeUpdate, Path: f.Path, TF: tf, Preview: preview(c.text), Language: f.Language})
	}
	for _, path := range diff.Missing {
		changes = append(changes, tfidf.Change{Op: tfidf.ChangeDelete, Path: path})
	}
	tfidf.ApplyIncremental(ix.tf, changes)
}

// preview truncates text to a small snippet for display, independent of
// vectorstore's own truncation of the same value.
// preview trims text to maxLen runes at the nearest preceding word
// boundary, falling back to a hard rune cut if no boundary is found in the
// back half of the window. Rune-based so a multi-byte UTF-8 character is
// never split in two.
func preview(text string) string {
	const maxLen = 280
	runes := []rune(text)
	if len(runes) <= maxLen {
		return text
	}
	cut := runes[:maxLen]
	if last := lastSpaceRune(cut); last > maxLen/2 {
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

func (ix *Indexer) embedContents(ctx context.Context, contents []fileContent) (map[string][]float32, error) {
	if len(contents) == 0 {
		return nil, nil
	}
	texts := make([]string, len(contents))
	for i, c := range contents {
		texts[i] = c.text
	}
	vecs, err := ix.emb.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]float32, len(contents))
	for i, c := range contents {
		out[c.record.Path] = vecs[i]
	}
	return out, nil
}

func (ix *Indexer) applyVectorDelta(diff *scanner.Diff, contents []fileContent, vectors map[string][]float32) {
	byPath := make(map[string]fileContent, len(contents))
	for _, c := range contents {
		byPath[c.record.Path] = c
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	for _, f := range diff.New {
		c := byPath[f.Path]
		meta := vectorstore.Metadata{Language: f.Language, ContentPreview: preview(c.text)}
		if vec, ok := vectors[f.Path]; ok {
			_ = ix.vec.Add(f.Path, vec, meta)
		}
	}
	for _, f := range diff.Changed {
		c := byPath[f.Path]
		meta := vectorstore.Metadata{Language: f.Language, ContentPreview: preview(c.text)}
		if vec, ok := vectors[f.Path]; ok {
			_ = ix.vec.Update(f.Path, vec, meta)
		}
	}
	for _, path := range diff.Missing {
		ix.vec.Delete(path)
	}
}

// persist writes the tfidf mutation to the SQLite store (bulk on rebuild,
// point updates on an incremental run), snapshots the vector graph, and
// adds its logically-deleted slots to the store's vector_deleted table.
func (ix *Indexer) persist(ctx context.Context, rebuilt bool, diff *scanner.Diff, contents []fileContent) error {
	if rebuilt {
		if err := ix.saveFullRebuild(ctx); err != nil {
			return err
		}
	} else {
		if err := ix.savePointUpdates(ctx, diff, contents); err != nil {
			return err
		}
	}

	if err := os.MkdirAll(ix.vectorDir(), 0o755); err != nil {
		return err
	}
	if err := ix.vec.Save(ix.vectorDir()); err != nil {
		return err
	}
	return ix.db.MarkVectorDeleted(ctx, ix.vec.DeletedSlots())
}

func (ix *Indexer) saveFullRebuild(ctx context.Context) error {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	var snapshot store.RebuildSnapshot
	snapshot.IDF = make(map[string]float64)
	for _, id := range ix.tf.DocumentIDs() {
		record, ok := ix.known[id]
		if !ok {
			continue
		}
		tf, preview, _, _ := ix.tf.TermFrequencies(id)
		snapshot.Files = append(snapshot.Files, store.FileRow{FileRecord: record, Preview: preview})
		for term, count := range tf {
			snapshot.Postings = append(snapshot.Postings, store.PostingRow{Term: term, DocID: id, TF: count})
			if v, ok := ix.tf.IDF(term); ok {
				snapshot.IDF[term] = v
			}
		}
	}
	return ix.db.SaveRebuild(ctx, snapshot)
}

func (ix *Indexer) savePointUpdates(ctx context.Context, diff *scanner.Diff, contents []fileContent) error {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	for _, path := range diff.Missing {
		if err := ix.db.DeleteFile(ctx, path, nil); err != nil {
			return err
		}
	}
	for _, f := range append(append([]scanner.FileRecord{}, diff.New...), diff.Changed...) {
		tf, preview, _, ok := ix.tf.TermFrequencies(f.Path)
		if !ok {
			continue
		}
		postings := make([]store.PostingRow, 0, len(tf))
		idf := make(map[string]float64, len(tf))
		for term, count := range tf {
			postings = append(postings, store.PostingRow{Term: term, DocID: f.Path, TF: count})
			if v, ok := ix.tf.IDF(term); ok {
				idf[term] = v
			}
		}
		row := store.FileRow{FileRecord: f, Preview: preview}
		if err := ix.db.UpsertFile(ctx, row, postings, idf); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the watcher (if started) and the underlying store.
func (ix *Indexer) Close() error {
	ix.mu.Lock()
	if ix.closed {
		ix.mu.Unlock()
		return nil
	}
	ix.closed = true
	if ix.cancelWatch != nil {
		ix.cancelWatch()
	}
	if ix.watch != nil {
		ix.watch.Stop()
	}
	ix.mu.Unlock()
	return ix.db.Close()
}
