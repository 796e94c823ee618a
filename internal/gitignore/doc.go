// Package gitignore matches paths against gitignore pattern syntax, as
// documented at https://git-scm.com/docs/gitignore.
//
// internal/scanner is the only caller: it keeps one Matcher per directory
// that carries a .gitignore, keyed by that directory in an LRU cache. For
// each file, after the built-in and configured exclude patterns, it checks
// the root's Matcher and then the Matcher of every directory on the way down
// to the file; any match excludes the file. Directories themselves are not
// tested against .gitignore: the walk enters them and tests each file inside
// them. A repo's .gitignore
// is treated as an exclude source layered underneath the configured
// exclude globs, not a replacement for them.
//
// Features:
//   - Basic pattern matching (*.log, temp/)
//   - Wildcard patterns (*, ?, **)
//   - Rooted patterns (/build)
//   - Negation patterns (!important.log)
//   - Directory-only patterns (build/)
//   - Nested gitignore file support
//   - Thread-safe matching
//
// Usage:
//
//	m := gitignore.New()
//	m.AddPattern("*.log")
//	m.AddPattern("!important.log")
//	m.AddPattern("/build/")
//
//	if m.Match("error.log", false) {
//	    // File is ignored
//	}
//
// For nested gitignore files:
//
//	m.AddFromFile("/path/to/project/.gitignore", "")
//	m.AddFromFile("/path/to/project/src/.gitignore", "src")
package gitignore
