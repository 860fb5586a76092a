package scanner

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, root, rel, content string) string {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestScanNewAndChanged(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "auth.ts", "export function authenticateUser() {}")
	writeFile(t, root, "db.ts", "export function connectDatabase() {}")

	diff, err := Scan(context.Background(), Config{Root: root}, nil)
	require.NoError(t, err)
	require.Len(t, diff.New, 2)
	require.Empty(t, diff.Changed)
	require.Empty(t, diff.Missing)

	known := make(map[string]FileRecord)
	for _, r := range diff.New {
		known[r.Path] = r
	}

	writeFile(t, root, "auth.ts", "export function authenticateUser(v2) {}")
	diff2, err := Scan(context.Background(), Config{Root: root}, known)
	require.NoError(t, err)
	require.Len(t, diff2.Changed, 1)
	require.Equal(t, "auth.ts", diff2.Changed[0].Path)
	require.Len(t, diff2.Unchanged, 1)
}

func TestScanMissing(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "x.ts", "export const x = 1;")

	diff, err := Scan(context.Background(), Config{Root: root}, nil)
	require.NoError(t, err)
	require.Len(t, diff.New, 1)

	known := map[string]FileRecord{diff.New[0].Path: diff.New[0]}
	require.NoError(t, os.Remove(filepath.Join(root, "x.ts")))

	diff2, err := Scan(context.Background(), Config{Root: root}, known)
	require.NoError(t, err)
	require.Equal(t, []string{"x.ts"}, diff2.Missing)
}

func TestScanRespectsMaxFileSize(t *testing.T) {
	root := t.TempDir()
	big := make([]byte, 2048)
	for i := range big {
		big[i] = 'x'
	}
	writeFile(t, root, "big.ts", string(big))

	diff, err := Scan(context.Background(), Config{Root: root, MaxFileSize: 1024}, nil)
	require.NoError(t, err)
	require.Empty(t, diff.New)

	diff2, err := Scan(context.Background(), Config{Root: root, MaxFileSize: 0}, nil)
	require.NoError(t, err)
	require.Len(t, diff2.New, 1)
}

func TestScanGitignoreChain(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, ".gitignore", "*.log\n")
	writeFile(t, root, "sub/.gitignore", "secret.ts\n")
	writeFile(t, root, "app.log", "noise")
	writeFile(t, root, "sub/secret.ts", "export const s = 1;")
	writeFile(t, root, "sub/keep.ts", "export const k = 1;")

	diff, err := Scan(context.Background(), Config{Root: root}, nil)
	require.NoError(t, err)

	paths := make(map[string]bool)
	for _, r := range diff.New {
		paths[r.Path] = true
	}
	require.False(t, paths["app.log"])
	require.False(t, paths[filepath.Join("sub", "secret.ts")])
	require.True(t, paths[filepath.Join("sub", "keep.ts")])
}

func TestScanIgnoresBuiltinDirs(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "node_modules/pkg/index.ts", "export const p = 1;")
	writeFile(t, root, "src/index.ts", "export const s = 1;")

	diff, err := Scan(context.Background(), Config{Root: root}, nil)
	require.NoError(t, err)

	paths := make(map[string]bool)
	for _, r := range diff.New {
		paths[r.Path] = true
	}
	require.False(t, paths[filepath.Join("node_modules", "pkg", "index.ts")])
	require.True(t, paths[filepath.Join("src", "index.ts")])
}

func TestScanIgnoreExtraPatterns(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "generated/schema.go", "package generated")
	writeFile(t, root, "main.go", "package main")

	diff, err := Scan(context.Background(), Config{
		Root:        root,
		IgnoreExtra: []string{"generated/**"},
	}, nil)
	require.NoError(t, err)

	paths := make(map[string]bool)
	for _, r := range diff.New {
		paths[r.Path] = true
	}
	require.False(t, paths[filepath.Join("generated", "schema.go")])
	require.True(t, paths["main.go"])
}
