package scanner

import (
	"bufio"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gobwas/glob"

	gogitignore "github.com/go-git/go-git/v5/plumbing/format/gitignore"
)

// defaultExcludedDirs are always pruned during a walk, regardless of
// .gitignore content.
var defaultExcludedDirs = map[string]struct{}{
	".git":         {},
	".svn":         {},
	".hg":          {},
	"node_modules": {},
	"vendor":       {},
	"__pycache__":  {},
	".next":        {},
	"dist":         {},
	"build":        {},
	".cache":       {},
	"target":       {},
	"bin":          {},
	"obj":          {},
	".idea":        {},
	".vscode":      {},
}

// binaryExtensions are skipped without reading content.
var binaryExtensions = map[string]struct{}{
	".png": {}, ".jpg": {}, ".jpeg": {}, ".gif": {}, ".bmp": {}, ".ico": {},
	".pdf": {}, ".zip": {}, ".tar": {}, ".gz": {}, ".bz2": {}, ".7z": {},
	".exe": {}, ".dll": {}, ".so": {}, ".dylib": {}, ".a": {}, ".o": {},
	".class": {}, ".jar": {}, ".wasm": {}, ".bin": {}, ".dat": {},
	".mp3": {}, ".mp4": {}, ".mov": {}, ".avi": {}, ".woff": {}, ".woff2": {},
	".ttf": {}, ".eot": {},
}

// IgnoreMatcher composes .gitignore chains (resolved per-directory via
// go-git's gitignore package), built-in VCS/dependency/IDE directory rules,
// binary-extension sniffing, and caller-supplied extra glob patterns into a
// single predicate.
type IgnoreMatcher struct {
	root        string
	maxFileSize int64
	extra       []glob.Glob
	// chains maps a directory (relative to root) to the gitignore patterns
	// that apply to it and every descendant, accumulated top-down.
	chains map[string][]gogitignore.Pattern
}

// NewIgnoreMatcher builds a matcher rooted at root. extraPatterns are glob
// patterns (matched against the path relative to root) supplied via
// configuration (the ignoreExtra option).
func NewIgnoreMatcher(root string, maxFileSize int64, extraPatterns []string) (*IgnoreMatcher, error) {
	compiled := make([]glob.Glob, 0, len(extraPatterns))
	for _, pattern := range extraPatterns {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, err
		}
		compiled = append(compiled, g)
	}

	return &IgnoreMatcher{
		root:        root,
		maxFileSize: maxFileSize,
		extra:       compiled,
		chains:      make(map[string][]gogitignore.Pattern),
	}, nil
}

// LoadGitignore reads a .gitignore file at dir (absolute path, a
// subdirectory of root) and registers its patterns for dir and all of its
// descendants. Called by the walker as it descends into each directory,
// mirroring how git itself resolves nested .gitignore precedence. A
// missing file is not an error.
func (m *IgnoreMatcher) LoadGitignore(dir string) error {
	relDir, err := filepath.Rel(m.root, dir)
	if err != nil {
		relDir = "."
	}
	domain := splitDomain(relDir)

	path := filepath.Join(dir, ".gitignore")
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()

	var patterns []gogitignore.Pattern
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" || strings.HasPrefix(strings.TrimSpace(line), "#") {
			continue
		}
		patterns = append(patterns, gogitignore.ParsePattern(line, domain))
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	m.chains[relDir] = patterns
	return nil
}

func splitDomain(relDir string) []string {
	if relDir == "." || relDir == "" {
		return nil
	}
	return strings.Split(filepath.ToSlash(relDir), "/")
}

// IsDirIgnored reports whether a directory (absolute path under root)
// should be pruned from the walk entirely.
func (m *IgnoreMatcher) IsDirIgnored(absPath string) bool {
	base := filepath.Base(absPath)
	if _, builtin := defaultExcludedDirs[base]; builtin {
		return true
	}
	return m.matchesGitignore(absPath, true)
}

// IsFileIgnored reports whether a file (absolute path under root, with a
// known size) should be excluded from indexing.
func (m *IgnoreMatcher) IsFileIgnored(absPath string, size int64) bool {
	if m.maxFileSize > 0 && size > m.maxFileSize {
		return true
	}
	if _, isBinary := binaryExtensions[strings.ToLower(filepath.Ext(absPath))]; isBinary {
		return true
	}
	if m.matchesExtra(absPath) {
		return true
	}
	if m.matchesGitignore(absPath, false) {
		return true
	}
	return sniffBinary(absPath)
}

// sniffBinary reads up to 512 bytes and excludes the file if a NUL byte is
// found, the same heuristic git itself uses to classify files as binary.
// Read failures are treated as "not binary" — the scanner's caller will
// surface the real I/O error when it tries to read the full content.
func sniffBinary(absPath string) bool {
	f, err := os.Open(absPath)
	if err != nil {
		return false
	}
	defer f.Close()

	buf := make([]byte, 512)
	n, err := f.Read(buf)
	if err != nil && n == 0 {
		return false
	}
	for _, b := range buf[:n] {
		if b == 0 {
			return true
		}
	}
	return false
}

func (m *IgnoreMatcher) matchesExtra(absPath string) bool {
	rel, err := filepath.Rel(m.root, absPath)
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	for _, g := range m.extra {
		if g.Match(rel) || g.Match(filepath.Base(rel)) {
			return true
		}
	}
	return false
}

// matchesGitignore orders the loaded pattern sets from the root down
// (shallower directories first), applying git's "last match wins"
// precedence via gogitignore.NewMatcher over the accumulated pattern set.
func (m *IgnoreMatcher) matchesGitignore(absPath string, isDir bool) bool {
	rel, err := filepath.Rel(m.root, absPath)
	if err != nil {
		return false
	}
	parts := splitDomain(filepath.ToSlash(rel))
	if len(parts) == 0 {
		return false
	}

	dirs := make([]string, 0, len(m.chains))
	for dir := range m.chains {
		dirs = append(dirs, dir)
	}
	sort.Slice(dirs, func(i, j int) bool {
		di, dj := len(splitDomain(dirs[i])), len(splitDomain(dirs[j]))
		if di != dj {
			return di < dj
		}
		return dirs[i] < dirs[j]
	})

	var allPatterns []gogitignore.Pattern
	for _, dir := range dirs {
		allPatterns = append(allPatterns, m.chains[dir]...)
	}
	if len(allPatterns) == 0 {
		return false
	}

	matcher := gogitignore.NewMatcher(allPatterns)
	return matcher.Match(parts, isDir)
}
