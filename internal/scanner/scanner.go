package scanner

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/Kosthi/openace/internal/gitignore"
)

// gitignoreCacheSize bounds the per-directory gitignore matcher cache.
const gitignoreCacheSize = 1000

// Scanner discovers indexable files under a project root.
type Scanner struct {
	gitignoreCache *lru.Cache[string, *gitignore.Matcher]
	cacheMu        sync.RWMutex
}

// New creates a Scanner.
func New() (*Scanner, error) {
	cache, err := lru.New[string, *gitignore.Matcher](gitignoreCacheSize)
	if err != nil {
		return nil, fmt.Errorf("scanner: create gitignore cache: %w", err)
	}
	return &Scanner{gitignoreCache: cache}, nil
}

// Scan walks the project root and streams every indexable file. The
// returned channel is closed once the walk completes.
func (s *Scanner) Scan(ctx context.Context, opts ScanOptions) (<-chan ScanResult, error) {
	rootDir := opts.RootDir
	if rootDir == "" {
		rootDir = "."
	}
	absRoot, err := filepath.Abs(rootDir)
	if err != nil {
		return nil, fmt.Errorf("scanner: resolve root: %w", err)
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, fmt.Errorf("scanner: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("scanner: root is not a directory: %s", absRoot)
	}

	results := make(chan ScanResult, 64)

	globalExcludes, err := loadGlobalExcludes()
	if err != nil {
		globalExcludes = nil // global excludes are best-effort
	}
	infoExcludes := s.loadInfoExcludes(absRoot)

	go func() {
		defer close(results)
		s.walk(ctx, absRoot, opts, globalExcludes, infoExcludes, results)
	}()

	return results, nil
}

func (s *Scanner) walk(ctx context.Context, absRoot string, opts ScanOptions, globalExcludes, infoExcludes *gitignore.Matcher, results chan<- ScanResult) {
	_ = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err != nil {
			return nil
		}

		relPath, relErr := filepath.Rel(absRoot, path)
		if relErr != nil || relPath == "." {
			return nil
		}
		relPath = filepath.ToSlash(relPath)
		name := d.Name()

		if strings.HasPrefix(name, ".") && name != "." {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			if vendorDirDenyList[name] {
				return fs.SkipDir
			}
			if s.isIgnored(relPath, absRoot, globalExcludes, infoExcludes) {
				return fs.SkipDir
			}
			return nil
		}

		if d.Type()&fs.ModeSymlink != 0 {
			return nil
		}
		if isGenerated(name) {
			return nil
		}
		if s.isIgnored(relPath, absRoot, globalExcludes, infoExcludes) {
			return nil
		}

		fi, statErr := d.Info()
		if statErr != nil {
			return nil
		}

		select {
		case results <- ScanResult{Path: relPath, Size: fi.Size()}:
		case <-ctx.Done():
			return ctx.Err()
		}
		return nil
	})
}

// isIgnored reports whether relPath is excluded by any applicable gitignore
// source: the repo's nested .gitignore files, .git/info/exclude, or the
// user's global excludes file.
func (s *Scanner) isIgnored(relPath, absRoot string, globalExcludes, infoExcludes *gitignore.Matcher) bool {
	if globalExcludes != nil && globalExcludes.Match(relPath, false) {
		return true
	}
	if infoExcludes != nil && infoExcludes.Match(relPath, false) {
		return true
	}

	if m := s.getGitignoreMatcher(absRoot, ""); m != nil && m.Match(relPath, false) {
		return true
	}

	dir := filepath.Dir(relPath)
	if dir == "." {
		return false
	}
	var base string
	for _, part := range strings.Split(dir, "/") {
		if base == "" {
			base = part
		} else {
			base = base + "/" + part
		}
		nested := filepath.Join(absRoot, base)
		if m := s.getGitignoreMatcher(nested, base); m != nil && m.Match(relPath, false) {
			return true
		}
	}
	return false
}

func (s *Scanner) getGitignoreMatcher(dir, base string) *gitignore.Matcher {
	s.cacheMu.RLock()
	m, ok := s.gitignoreCache.Get(dir)
	s.cacheMu.RUnlock()
	if ok {
		return m
	}

	path := filepath.Join(dir, ".gitignore")
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	m = gitignore.New()
	if err := m.AddFromFile(path, base); err != nil {
		return nil
	}

	s.cacheMu.Lock()
	s.gitignoreCache.Add(dir, m)
	s.cacheMu.Unlock()
	return m
}

// loadInfoExcludes reads <root>/.git/info/exclude, if present.
func (s *Scanner) loadInfoExcludes(absRoot string) *gitignore.Matcher {
	path := filepath.Join(absRoot, ".git", "info", "exclude")
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	m := gitignore.New()
	if err := m.AddFromFile(path, ""); err != nil {
		return nil
	}
	return m
}

// loadGlobalExcludes reads the user's global git excludes file from
// $XDG_CONFIG_HOME/git/ignore, or ~/.config/git/ignore when XDG_CONFIG_HOME
// is unset. core.excludesFile in ~/.gitconfig is not consulted.
func loadGlobalExcludes() (*gitignore.Matcher, error) {
	path := globalExcludesPath()
	if path == "" {
		return nil, nil
	}
	if _, err := os.Stat(path); err != nil {
		return nil, nil
	}
	m := gitignore.New()
	if err := m.AddFromFile(path, ""); err != nil {
		return nil, err
	}
	return m, nil
}

func globalExcludesPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "git", "ignore")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "git", "ignore")
}

// InvalidateGitignoreCache clears all cached gitignore matchers. Call after
// a .gitignore file changes mid-watch.
func (s *Scanner) InvalidateGitignoreCache() {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.gitignoreCache.Purge()
}

// IsEligiblePath applies the same ignore/vendor/generated/hidden filters the
// scanner uses during a full walk, to a single relative path. The watcher
// uses this for its OS-event filtering: the same filters as the scanner
// except gitignore, which OS watchers can't evaluate cheaply.
func IsEligiblePath(relPath string) bool {
	relPath = filepath.ToSlash(relPath)
	parts := strings.Split(relPath, "/")
	for i, part := range parts {
		if strings.HasPrefix(part, ".") {
			return false
		}
		if vendorDirDenyList[part] && i < len(parts)-1 {
			return false
		}
	}
	base := parts[len(parts)-1]
	return !isGenerated(base)
}

// IsEligibleDir reports whether a directory at relPath should be descended
// into: not hidden, and not on the vendor deny list.
func IsEligibleDir(relPath string) bool {
	relPath = filepath.ToSlash(relPath)
	for _, part := range strings.Split(relPath, "/") {
		if strings.HasPrefix(part, ".") {
			return false
		}
		if vendorDirDenyList[part] {
			return false
		}
	}
	return true
}
