package watcher

import (
	"context"
	"time"
)

// Operation represents a file system operation type.
type Operation int

const (
	// OpCreate indicates a new file or directory was created.
	OpCreate Operation = iota
	// OpModify indicates an existing file was modified.
	OpModify
	// OpDelete indicates a file or directory was deleted.
	OpDelete
	// OpRename indicates a file or directory was renamed.
	OpRename
)

// String returns a human-readable representation of the operation.
func (op Operation) String() string {
	switch op {
	case OpCreate:
		return "CREATE"
	case OpModify:
		return "MODIFY"
	case OpDelete:
		return "DELETE"
	case OpRename:
		return "RENAME"
	default:
		return "UNKNOWN"
	}
}

// FileEvent represents a file system event observed by a Watcher.
type FileEvent struct {
	// Path is the path to the file or directory, relative to the watched root.
	Path string

	// OldPath is the previous path for rename events. Empty otherwise.
	OldPath string

	// Operation is the type of file system operation.
	Operation Operation

	// IsDir indicates if the event is for a directory.
	IsDir bool

	// Timestamp is when the event was detected.
	Timestamp time.Time
}

// Watcher watches a directory tree and emits debounced batches of file
// events matching the configured include/exclude globs.
type Watcher interface {
	// Start begins watching the given directory recursively. It blocks
	// running its own event loop until ctx is cancelled or a fatal error
	// occurs; Stop or context cancellation both end it cleanly.
	Start(ctx context.Context, path string) error

	// Stop stops the watcher and releases its resources. Safe to call
	// multiple times.
	Stop() error

	// Events returns the channel of debounced event batches. Closed when
	// the watcher stops.
	Events() <-chan []FileEvent

	// Errors returns the channel of non-fatal watcher errors. Closed when
	// the watcher stops.
	Errors() <-chan error
}

// Options configures watcher behavior.
type Options struct {
	// DebounceWindow is how long to wait after the last event before
	// flushing a coalesced batch. Default: 200ms.
	DebounceWindow time.Duration

	// EventBufferSize is the size of the batch channel buffer.
	// Default: 1000.
	EventBufferSize int

	// IncludeGlobs restricts emitted file events to paths matching at
	// least one of these glob patterns. Empty means no restriction.
	IncludeGlobs []string

	// ExcludeGlobs drops file events matching any of these glob patterns,
	// even when they also match IncludeGlobs.
	ExcludeGlobs []string
}

// DefaultOptions returns the default watcher options.
func DefaultOptions() Options {
	return Options{
		DebounceWindow:  200 * time.Millisecond,
		EventBufferSize: 1000,
	}
}

// Validate validates the options and returns an error if invalid.
func (o Options) Validate() error {
	return nil
}

// WithDefaults returns options with defaults applied for zero values.
func (o Options) WithDefaults() Options {
	defaults := DefaultOptions()
	if o.DebounceWindow == 0 {
		o.DebounceWindow = defaults.DebounceWindow
	}
	if o.EventBufferSize == 0 {
		o.EventBufferSize = defaults.EventBufferSize
	}
	return o
}
