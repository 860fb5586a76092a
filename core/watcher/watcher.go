// Package watcher provides debounced recursive file system monitoring,
// shaped after a core/search/watcher/fsnotify.go — the same
// fsnotify.Watcher plus gobwas/glob exclude-pattern shape, adapted from a
// per-path single-pending-event debounce to a shared Queue with the
// add/update/delete collapse rules this domain's pending-change model
// needs.
package watcher

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gobwas/glob"
)

// DefaultDebounce is 500ms, chosen to smooth over editor save bursts and
// git checkouts without delaying a single-file edit noticeably.
const DefaultDebounce = 500 * time.Millisecond

var (
	ErrNoPathsConfigured = errors.New("watcher: no paths configured")
	ErrPathNotDirectory  = errors.New("watcher: path is not a directory")
)

// Config configures the watcher.
type Config struct {
	Root            string
	ExcludePatterns []string
	Debounce        time.Duration
}

// Watcher monitors Root recursively and emits debounced, deduplicated
// batches of Change via Flushes.
type Watcher struct {
	root     string
	debounce time.Duration
	excludes []glob.Glob
	fsw      *fsnotify.Watcher

	mu      sync.Mutex
	queue   *Queue
	timer   *time.Timer
	flushCh chan []Change

	stopOnce sync.Once
	stopped  bool
}

// New constructs a Watcher rooted at cfg.Root. It does not start watching
// until Start is called.
func New(cfg Config) (*Watcher, error) {
	if cfg.Root == "" {
		return nil, ErrNoPathsConfigured
	}
	info, err := os.Stat(cfg.Root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, ErrPathNotDirectory
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}

	excludes := make([]glob.Glob, 0, len(cfg.ExcludePatterns))
	for _, pattern := range cfg.ExcludePatterns {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, err
		}
		excludes = append(excludes, g)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &Watcher{
		root:     cfg.Root,
		debounce: cfg.Debounce,
		excludes: excludes,
		fsw:      fsw,
		queue:    NewQueue(),
		flushCh:  make(chan []Change, 1),
	}, nil
}

// Start begins watching and returns a channel that receives one
// deduplicated batch of Change per debounce flush. The channel is closed
// when ctx is cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) (<-chan []Change, error) {
	if err := w.addRecursive(w.root); err != nil {
		close(w.flushCh)
		return nil, err
	}
	go w.run(ctx)
	return w.flushCh, nil
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if w.isExcluded(path) {
			return filepath.SkipDir
		}
		return w.fsw.Add(path)
	})
}

func (w *Watcher) run(ctx context.Context) {
	defer w.cleanup()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case _, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	if w.isExcluded(ev.Name) {
		return
	}

	if ev.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			_ = w.addRecursive(ev.Name)
			return
		}
	}

	rel, err := filepath.Rel(w.root, ev.Name)
	if err != nil {
		rel = ev.Name
	}

	op := classify(ev.Op)

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}
	w.queue.Push(op, rel)
	w.resetTimerLocked()
}

func classify(op fsnotify.Op) Op {
	switch {
	case op.Has(fsnotify.Create):
		return OpAdd
	case op.Has(fsnotify.Remove), op.Has(fsnotify.Rename):
		return OpDelete
	default:
		return OpUpdate
	}
}

func (w *Watcher) resetTimerLocked() {
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.flush)
}

func (w *Watcher) flush() {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	changes := w.queue.Flush()
	w.mu.Unlock()

	if len(changes) == 0 {
		return
	}
	select {
	case w.flushCh <- changes:
	default:
		// The consumer hasn't drained the previous batch yet. Merge this
		// one back into the queue instead of dropping it and retry on the
		// next debounce tick. The older batch is replayed ahead of events
		// queued since, so later events still supersede earlier ones.
		w.mu.Lock()
		if !w.stopped {
			pending := w.queue.Flush()
			for _, c := range changes {
				w.queue.Push(c.Op, c.Path)
			}
			for _, c := range pending {
				w.queue.Push(c.Op, c.Path)
			}
			w.resetTimerLocked()
		}
		w.mu.Unlock()
	}
}

func (w *Watcher) isExcluded(path string) bool {
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		rel = path
	}
	for _, g := range w.excludes {
		if g.Match(rel) || g.Match(filepath.Base(rel)) {
			return true
		}
	}
	return false
}

// Stop halts the watcher and closes its underlying fsnotify handle. Safe
// to call multiple times.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		w.mu.Lock()
		w.stopped = true
		if w.timer != nil {
			w.timer.Stop()
		}
		w.mu.Unlock()
		w.fsw.Close()
	})
}

func (w *Watcher) cleanup() {
	w.mu.Lock()
	if !w.stopped {
		w.stopped = true
		if w.timer != nil {
			w.timer.Stop()
		}
	}
	w.mu.Unlock()
	close(w.flushCh)
}
