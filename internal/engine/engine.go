// Package engine wires the store, indexer, search service, background job
// queue, and file watcher into a single construct-once, serve, shutdown
// lifecycle, so cmd/rifflux and internal/mcp share one aggregate rather than
// assembling dependencies by hand.
package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/riffluxdb/rifflux/internal/config"
	"github.com/riffluxdb/rifflux/internal/embed"
	"github.com/riffluxdb/rifflux/internal/errs"
	"github.com/riffluxdb/rifflux/internal/indexer"
	"github.com/riffluxdb/rifflux/internal/jobqueue"
	"github.com/riffluxdb/rifflux/internal/search"
	"github.com/riffluxdb/rifflux/internal/store"
	"github.com/riffluxdb/rifflux/internal/watcher"
)

// Engine owns every long-lived dependency the server and CLI need: the
// store, the embedder, the indexer built on top of them, the search
// service, the background reindex queue, and (when configured) one watcher
// supervisor per watched path. Shutdown guarantees the store's WAL
// checkpoint, the watchers' stop, and the queue's drain run on every exit
// path.
type Engine struct {
	Config        *config.Config
	Store         *store.Store
	Embedder      embed.Embedder
	Indexer       *indexer.Indexer
	SearchService *search.Service
	Queue         *jobqueue.Queue

	watchersMu sync.Mutex
	watchers   []*watcher.Supervisor

	autoReindexMu   sync.Mutex
	lastAutoReindex time.Time
}

// New opens the store at cfg.DBPath, constructs the embedder per
// cfg.EmbeddingBackend, and wires the indexer, search service, and
// background queue on top. File watcher supervisors (if cfg.FileWatcher is
// set) are constructed but not started: all of them start lazily on the
// first Search call.
func New(cfg *config.Config) (*Engine, error) {
	if cfg == nil {
		cfg = config.New()
	}

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, err
	}

	embedder, err := embed.New(embed.Config{
		Backend:    embed.ParseBackend(cfg.EmbeddingBackend),
		Model:      cfg.EmbeddingModel,
		Dim:        cfg.EmbeddingDim,
		ModelDir:   cfg.ModelDir,
		OrtLibPath: cfg.OrtLibPath,
	})
	if err != nil {
		_ = st.Close()
		return nil, errs.Wrap(errs.Internal, "failed to construct embedder", err)
	}

	ix, err := indexer.New(st, embedder)
	if err != nil {
		embedder.Close()
		_ = st.Close()
		return nil, err
	}

	e := &Engine{
		Config:        cfg,
		Store:         st,
		Embedder:      embedder,
		Indexer:       ix,
		SearchService: &search.Service{Store: st, Embedder: embedder},
		Queue:         jobqueue.New(),
	}

	if cfg.FileWatcher {
		watchOpts := watcher.Options{
			DebounceWindow: time.Duration(cfg.FileWatcherDebounceMs) * time.Millisecond,
			IncludeGlobs:   cfg.IncludeGlobs,
			ExcludeGlobs:   cfg.ExcludeGlobs,
		}.WithDefaults()
		for _, path := range cfg.FileWatcherPaths {
			e.watchers = append(e.watchers, watcher.NewSupervisor(path, watchOpts, e.onWatchBatch(path)))
		}
	}

	return e, nil
}

// onWatchBatch returns the Supervisor callback for one watched path: it
// submits a coalesced reindex job for that path to the background queue.
// Submission, not the reindex itself, runs on the watcher's goroutine —
// jobqueue.Queue.Submit only enqueues and returns.
func (e *Engine) onWatchBatch(path string) watcher.BatchFunc {
	return func(batch []watcher.FileEvent) {
		if len(batch) == 0 {
			return
		}
		locations := []string{path}
		_, err := e.Queue.Submit(locations, func(ctx context.Context) error {
			_, err := e.Indexer.Reindex(ctx, locations, indexer.Options{
				PruneMissing: true,
				IncludeGlobs: e.Config.IncludeGlobs,
				ExcludeGlobs: e.Config.ExcludeGlobs,
			})
			return err
		})
		if err != nil {
			slog.Warn("watch_reindex_submit_failed", slog.String("path", path), slog.String("error", err.Error()))
		}
	}
}

// Search ensures any configured watchers are running — lazily, so an
// enabled watcher costs nothing until the first query needs it — triggers a
// rate-limited auto-reindex if configured, and delegates to the search
// service.
func (e *Engine) Search(ctx context.Context, query string, opts search.Options) ([]search.Result, error) {
	e.ensureWatchers(ctx)
	e.maybeAutoReindex(ctx)
	return e.SearchService.Search(ctx, query, opts)
}

// ensureWatchers lazily starts every configured watcher supervisor. Safe to
// call on every search: Supervisor.Ensure is idempotent after the first
// call.
func (e *Engine) ensureWatchers(ctx context.Context) {
	e.watchersMu.Lock()
	defer e.watchersMu.Unlock()
	for _, sv := range e.watchers {
		if err := sv.Ensure(ctx); err != nil {
			slog.Warn("watcher_start_failed", slog.String("error", err.Error()))
		}
	}
}

// maybeAutoReindex submits a background reindex of cfg.AutoReindexPaths if
// auto_reindex_on_search is enabled and at least
// auto_reindex_min_interval_seconds has elapsed since the last submission.
// It never blocks the calling search on the reindex itself; the job runs on
// the background queue's single worker.
func (e *Engine) maybeAutoReindex(ctx context.Context) {
	cfg := e.Config
	if !cfg.AutoReindexOnSearch || len(cfg.AutoReindexPaths) == 0 {
		return
	}

	e.autoReindexMu.Lock()
	elapsed := time.Since(e.lastAutoReindex)
	minInterval := time.Duration(cfg.AutoReindexMinIntervalSecond * float64(time.Second))
	if elapsed < minInterval {
		e.autoReindexMu.Unlock()
		return
	}
	e.lastAutoReindex = time.Now()
	e.autoReindexMu.Unlock()

	locations := cfg.AutoReindexPaths
	_, err := e.Queue.Submit(locations, func(jobCtx context.Context) error {
		_, err := e.Indexer.Reindex(jobCtx, locations, indexer.Options{
			PruneMissing: true,
			IncludeGlobs: cfg.IncludeGlobs,
			ExcludeGlobs: cfg.ExcludeGlobs,
		})
		return err
	})
	if err != nil {
		slog.Warn("auto_reindex_submit_failed", slog.String("error", err.Error()))
	}
}

// Reindex runs a synchronous reindex over locations, bypassing the
// background queue: explicit reindex calls run directly alongside the
// background worker, both under the store's single-writer discipline.
func (e *Engine) Reindex(ctx context.Context, locations []string, opts indexer.Options) (indexer.Result, error) {
	return e.Indexer.Reindex(ctx, locations, opts)
}

// Shutdown stops every watcher supervisor, drains the background queue
// (allowing any running job to finish), releases the embedder, and closes
// the store — checkpointing its WAL and releasing its advisory lock. Every
// step runs regardless of an earlier step's outcome, so a single failure
// never skips the rest of teardown.
func (e *Engine) Shutdown(drainTimeout time.Duration) error {
	e.watchersMu.Lock()
	for _, sv := range e.watchers {
		sv.Stop()
	}
	e.watchersMu.Unlock()

	e.Queue.Shutdown(drainTimeout)
	e.Embedder.Close()
	return e.Store.Close()
}
