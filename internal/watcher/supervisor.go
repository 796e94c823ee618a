package watcher

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const maxConsecutiveCrashes = 5

// BatchFunc handles one debounced batch of file events, e.g. by submitting
// a reindex job for the paths involved.
type BatchFunc func(batch []FileEvent)

// Supervisor lazily starts a HybridWatcher on the first query after it is
// enabled, and restarts it with exponential backoff whenever its event loop
// exits without the supervisor's context having been cancelled (with or
// without an error), giving up after maxConsecutiveCrashes crashes.
type Supervisor struct {
	path string
	opts Options
	fn   BatchFunc

	mu       sync.Mutex
	started  bool
	stopped  bool
	crashes  int
	state    string // "stopped", "running", "crashed"
	cancel   context.CancelFunc
	watcher  *HybridWatcher
	doneCh   chan struct{}
	newHWFn  func(Options) (*HybridWatcher, error)
	backoff  func(attempt int) time.Duration
}

// NewSupervisor constructs a Supervisor that will watch path and dispatch
// debounced batches to fn. It does not start watching until Ensure is
// called, so an enabled-but-unused watcher costs nothing until the first
// query needs it.
func NewSupervisor(path string, opts Options, fn BatchFunc) *Supervisor {
	return &Supervisor{
		path:    path,
		opts:    opts,
		fn:      fn,
		state:   "stopped",
		newHWFn: NewHybridWatcher,
		backoff: exponentialBackoff,
	}
}

// exponentialBackoff returns 1s, 2s, 4s, 8s, ... for attempt 1, 2, 3, 4, ...
func exponentialBackoff(attempt int) time.Duration {
	return time.Duration(1<<uint(attempt-1)) * time.Second
}

// Ensure starts the underlying watcher on its first call. Subsequent calls
// are no-ops while the watcher is running or has permanently stopped after
// exhausting its crash budget.
func (sv *Supervisor) Ensure(ctx context.Context) error {
	sv.mu.Lock()
	defer sv.mu.Unlock()
	if sv.started {
		return nil
	}
	sv.started = true
	return sv.startLocked(ctx)
}

// State reports the supervisor's current lifecycle state:
// "stopped" (never started or gave up), "running", or "crashed" (mid-backoff).
func (sv *Supervisor) State() string {
	sv.mu.Lock()
	defer sv.mu.Unlock()
	return sv.state
}

// startLocked creates a fresh HybridWatcher and starts it. HybridWatcher.Start
// blocks running its own event loop until its context is cancelled or it
// hits a fatal error, so it is run on its own goroutine; its return value is
// the authoritative signal for whether the watcher stopped deliberately
// (our context was cancelled) or crashed (anything else).
func (sv *Supervisor) startLocked(ctx context.Context) error {
	hw, err := sv.newHWFn(sv.opts)
	if err != nil {
		return err
	}
	runCtx, cancel := context.WithCancel(ctx)
	sv.watcher = hw
	sv.cancel = cancel
	sv.doneCh = make(chan struct{})
	sv.state = "running"

	startErrCh := make(chan error, 1)
	go func() { startErrCh <- hw.Start(runCtx, sv.path) }()
	go sv.pump(runCtx, hw, startErrCh)
	return nil
}

// pump forwards debounced batches to fn and non-fatal watcher errors to the
// log, until the watcher's Start call returns. A deliberately cancelled
// context means the supervisor is stopping; anything else is a crash that
// triggers a backed-off restart.
func (sv *Supervisor) pump(ctx context.Context, hw *HybridWatcher, startErrCh <-chan error) {
	defer close(sv.doneCh)
	for {
		select {
		case batch, ok := <-hw.Events():
			if ok && len(batch) > 0 && sv.fn != nil {
				sv.fn(batch)
			}
		case err, ok := <-hw.Errors():
			if ok && err != nil {
				slog.Warn("watcher_error", slog.String("error", err.Error()))
			}
		case startErr := <-startErrCh:
			if ctx.Err() != nil {
				return // deliberate stop
			}
			sv.onCrash(ctx, startErr)
			return
		}
	}
}

// onCrash records a crash and schedules a backed-off restart, or gives up
// and marks the watcher permanently stopped after five consecutive crashes.
func (sv *Supervisor) onCrash(ctx context.Context, cause error) {
	sv.mu.Lock()
	sv.crashes++
	n := sv.crashes
	sv.state = "crashed"
	stopped := sv.stopped
	sv.mu.Unlock()

	if stopped {
		return
	}

	if n >= maxConsecutiveCrashes {
		slog.Error("watcher_stopped", slog.Int("consecutive_crashes", n), slog.Any("cause", cause))
		sv.mu.Lock()
		sv.state = "stopped"
		sv.mu.Unlock()
		return
	}

	backoff := sv.backoff(n)
	slog.Warn("watcher_restarting", slog.Int("attempt", n), slog.Duration("backoff", backoff), slog.Any("cause", cause))

	select {
	case <-time.After(backoff):
	case <-ctx.Done():
		return
	}

	sv.mu.Lock()
	defer sv.mu.Unlock()
	if sv.stopped {
		return
	}
	if err := sv.startLocked(context.Background()); err != nil {
		slog.Error("watcher_restart_failed", slog.String("error", err.Error()))
		sv.state = "stopped"
	}
}

// Stop permanently stops the watcher and releases its resources.
func (sv *Supervisor) Stop() {
	sv.mu.Lock()
	sv.stopped = true
	cancel := sv.cancel
	hw := sv.watcher
	sv.state = "stopped"
	sv.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if hw != nil {
		_ = hw.Stop()
	}
}
