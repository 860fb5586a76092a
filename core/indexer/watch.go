package indexer

import (
	"context"
	"time"

	"github.com/SylphxAI/codebase-search/core/watcher"
)

// StartBackgroundIndexing starts the filesystem watcher over cfg.CodebaseRoot
// and, for every debounced batch of changes it emits, triggers Index. The
// returned context cancellation (via Close) stops the watcher.
func (ix *Indexer) StartBackgroundIndexing(ctx context.Context) error {
	ix.mu.Lock()
	if ix.watch != nil {
		ix.mu.Unlock()
		return nil
	}

	w, err := watcher.New(watcher.Config{
		Root:            ix.cfg.CodebaseRoot,
		ExcludePatterns: ix.cfg.ExcludePatterns,
		Debounce:        time.Duration(ix.cfg.DebounceMs) * time.Millisecond,
	})
	if err != nil {
		ix.mu.Unlock()
		return err
	}

	watchCtx, cancel := context.WithCancel(ctx)
	ix.watch = w
	ix.cancelWatch = cancel
	ix.mu.Unlock()

	flushes, err := w.Start(watchCtx)
	if err != nil {
		return err
	}

	go func() {
		for {
			select {
			case <-watchCtx.Done():
				return
			case changes, ok := <-flushes:
				if !ok {
					return
				}
				if len(changes) == 0 {
					continue
				}
				// Index runs in its own goroutine so this loop keeps
				// draining flushes while a run is in progress; singleflight
				// (ix.sf) coalesces any overlapping calls this triggers.
				go func() { _, _ = ix.Index(watchCtx) }()
			}
		}
	}()
	return nil
}
