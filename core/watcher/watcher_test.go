package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsMissingRoot(t *testing.T) {
	_, err := New(Config{Root: "/does/not/exist"})
	require.Error(t, err)
}

func TestNewRejectsFileAsRoot(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "f.ts")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	_, err := New(Config{Root: file})
	require.ErrorIs(t, err, ErrPathNotDirectory)
}

func TestWatcherEmitsDebouncedAddOnNewFile(t *testing.T) {
	dir := t.TempDir()
	w, err := New(Config{Root: dir, Debounce: 30 * time.Millisecond})
	require.NoError(t, err)
	defer w.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	flushes, err := w.Start(ctx)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "new.ts"), []byte("export const x = 1;"), 0o644))

	select {
	case changes := <-flushes:
		require.Len(t, changes, 1)
		assert.Equal(t, "new.ts", changes[0].Path)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for flush")
	}
}

func TestWatcherCoalescesRapidEditsIntoOneFlush(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.ts")
	require.NoError(t, os.WriteFile(path, []byte("v0"), 0o644))

	w, err := New(Config{Root: dir, Debounce: 50 * time.Millisecond})
	require.NoError(t, err)
	defer w.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	flushes, err := w.Start(ctx)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		require.NoError(t, os.WriteFile(path, []byte("v"+string(rune('1'+i))), 0o644))
		time.Sleep(5 * time.Millisecond)
	}

	select {
	case changes := <-flushes:
		require.Len(t, changes, 1)
		assert.Equal(t, "a.ts", changes[0].Path)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for flush")
	}
}
