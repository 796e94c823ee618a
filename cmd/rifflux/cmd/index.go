package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/riffluxdb/rifflux/internal/config"
	"github.com/riffluxdb/rifflux/internal/engine"
	"github.com/riffluxdb/rifflux/internal/indexer"
	"github.com/riffluxdb/rifflux/internal/output"
	"github.com/riffluxdb/rifflux/internal/ui"
)

func newIndexCmd() *cobra.Command {
	var (
		force   bool
		noTUI   bool
		noPrune bool
	)

	cmd := &cobra.Command{
		Use:   "index [path]",
		Short: "Index a directory for searching",
		Long: `Index a directory of Markdown files to enable hybrid search over its
contents: scans files, chunks them by heading, generates embeddings, and
builds both the FTS5 lexical index and the vector store.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			path := "."
			if len(args) > 0 {
				path = args[0]
			}
			return runIndex(ctx, cmd, path, force, noTUI, !noPrune)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Re-embed and rebuild every file, even unchanged ones")
	cmd.Flags().BoolVar(&noTUI, "no-tui", false, "Disable animated progress, use plain text output")
	cmd.Flags().BoolVar(&noPrune, "no-prune", false, "Do not remove index entries for files that no longer exist")

	return cmd
}

func runIndex(ctx context.Context, cmd *cobra.Command, path string, force, noTUI, prune bool) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}

	root, err := config.FindProjectRoot(absPath)
	if err != nil {
		root = absPath
	}

	cfg, err := config.Load(root)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	e, err := engine.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize engine: %w", err)
	}
	defer func() { _ = e.Shutdown(5 * time.Second) }()

	uiCfg := ui.NewConfig(cmd.OutOrStdout(), ui.WithForcePlain(noTUI), ui.WithProjectDir(root))
	renderer := ui.NewRenderer(uiCfg)
	if err := renderer.Start(ctx); err != nil {
		renderer = ui.NewPlainRenderer(uiCfg)
		_ = renderer.Start(ctx)
	}
	renderer.UpdateProgress(ui.ProgressEvent{Stage: ui.StageScanning, Message: fmt.Sprintf("Indexing %s", absPath)})

	start := time.Now()
	result, err := e.Reindex(ctx, []string{absPath}, indexer.Options{
		Force:        force,
		PruneMissing: prune,
		IncludeGlobs: cfg.IncludeGlobs,
		ExcludeGlobs: cfg.ExcludeGlobs,
		OnProgress: func(stage indexer.Stage, current int, file string) {
			renderer.UpdateProgress(ui.ProgressEvent{
				Stage:       indexerStageToUI(stage),
				Current:     current,
				CurrentFile: file,
			})
		},
	})
	if err != nil {
		_ = renderer.Stop()
		return fmt.Errorf("indexing failed: %w", err)
	}

	renderer.Complete(ui.CompletionStats{
		Files:    result.IndexedFiles,
		Duration: time.Since(start),
		Embedder: ui.EmbedderInfo{
			Backend:    cfg.EmbeddingBackend,
			Model:      e.Embedder.ModelLabel(),
			Dimensions: e.Embedder.Dim(),
		},
	})
	_ = renderer.Stop()

	out := output.New(cmd.OutOrStdout())
	out.Successf("Indexed %d file(s), skipped %d, deleted %d", result.IndexedFiles, result.SkippedFiles, result.DeletedFiles)
	return nil
}

// indexerStageToUI maps the indexer's pipeline stage to its UI counterpart.
// Kept separate from indexer.Stage so internal/indexer never imports the
// presentation package.
func indexerStageToUI(stage indexer.Stage) ui.Stage {
	switch stage {
	case indexer.StageScanning:
		return ui.StageScanning
	case indexer.StageChunking:
		return ui.StageChunking
	case indexer.StageEmbedding:
		return ui.StageEmbedding
	case indexer.StagePersisting:
		return ui.StagePersisting
	default:
		return ui.StageScanning
	}
}
