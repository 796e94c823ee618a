// Package watcher provides real-time file system watching with automatic
// debouncing and include/exclude glob filtering.
//
// Events come from fsnotify, coalesced over a debounce window so a
// save-storm from an editor or a git checkout produces one batch instead of
// one event per touched file. Each path is matched against IncludeGlobs and
// ExcludeGlobs before it reaches a batch, the same glob model the indexer
// and scanner use, so a watched directory and a one-shot scan agree on what
// counts as corpus content.
//
// Usage:
//
//	opts := watcher.DefaultOptions()
//	w, err := watcher.NewHybridWatcher(opts)
//	if err != nil {
//	    return err
//	}
//	defer w.Stop()
//
//	if err := w.Start(ctx, "/path/to/project"); err != nil {
//	    return err
//	}
//
//	for batch := range w.Events() {
//	    for _, event := range batch {
//	        switch event.Operation {
//	        case watcher.OpCreate:
//	            // Handle file creation
//	        case watcher.OpModify:
//	            // Handle file modification
//	        case watcher.OpDelete:
//	            // Handle file deletion
//	        }
//	    }
//	}
package watcher
