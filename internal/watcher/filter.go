package watcher

import (
	"path/filepath"
	"strings"
)

// matchesAnyGlob reports whether relPath (or its base name) matches any of
// patterns. Patterns ending in "/**" match the named directory and anything
// beneath it, mirroring the indexer's include/exclude glob semantics so the
// watcher and a reindex agree on which files are in scope.
func matchesAnyGlob(relPath string, patterns []string) bool {
	relPath = filepath.ToSlash(relPath)
	base := filepath.Base(relPath)
	for _, pattern := range patterns {
		pattern = filepath.ToSlash(pattern)
		if strings.HasPrefix(pattern, "**/") {
			name := strings.TrimSuffix(strings.TrimPrefix(pattern, "**/"), "/**")
			for _, part := range strings.Split(relPath, "/") {
				if matched, _ := filepath.Match(name, part); matched {
					return true
				}
			}
			continue
		}
		if strings.HasSuffix(pattern, "/**") {
			prefix := strings.TrimSuffix(pattern, "/**")
			if relPath == prefix || strings.HasPrefix(relPath, prefix+"/") {
				return true
			}
			continue
		}
		if matched, _ := filepath.Match(pattern, relPath); matched {
			return true
		}
		if matched, _ := filepath.Match(pattern, base); matched {
			return true
		}
	}
	return false
}

// alwaysIgnoredDirs are skipped regardless of the configured globs: version
// control metadata and the index's own on-disk state are never indexable
// content.
var alwaysIgnoredDirs = []string{".git", ".rifflux"}

func isAlwaysIgnored(relPath string) bool {
	relPath = filepath.ToSlash(relPath)
	for _, dir := range alwaysIgnoredDirs {
		if relPath == dir || strings.HasPrefix(relPath, dir+"/") {
			return true
		}
	}
	return false
}

// shouldEmit decides whether a file-system event for relPath should be
// forwarded: directories are never filtered by IncludeGlobs (only excluded,
// so the walk can still descend into them), files must match IncludeGlobs
// (when set) and must not match ExcludeGlobs.
func shouldEmit(relPath string, isDir bool, opts Options) bool {
	if relPath == "." || relPath == "" {
		return false
	}
	if isAlwaysIgnored(relPath) {
		return false
	}
	if len(opts.ExcludeGlobs) > 0 && matchesAnyGlob(relPath, opts.ExcludeGlobs) {
		return false
	}
	if !isDir && len(opts.IncludeGlobs) > 0 && !matchesAnyGlob(relPath, opts.IncludeGlobs) {
		return false
	}
	return true
}
