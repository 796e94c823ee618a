package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/riffluxdb/rifflux/internal/config"
	"github.com/riffluxdb/rifflux/internal/engine"
	"github.com/riffluxdb/rifflux/internal/indexer"
	"github.com/riffluxdb/rifflux/internal/mcp"
)

func newServeCmd() *cobra.Command {
	var autoIndex bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the MCP tool surface over stdio",
		Long: `Start the MCP server, exposing search/reindex/get_chunk/get_file/
index_status tools over stdio JSON-RPC for AI coding assistants.

The stdio transport requires stdout be used exclusively for JSON-RPC
messages: nothing in this command path may write to stdout before or
during Serve. Use --debug for diagnostics, which log to
~/.rifflux/logs/ instead.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, autoIndex)
		},
	}

	cmd.Flags().BoolVar(&autoIndex, "index", true, "Run an initial reindex of the project root (found from the working directory) before serving")

	return cmd
}

func runServe(ctx context.Context, autoIndex bool) error {
	root, err := config.FindProjectRoot(".")
	if err != nil {
		root, _ = os.Getwd()
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

	if autoIndex {
		if _, err := e.Reindex(ctx, []string{root}, indexer.Options{
			PruneMissing: true,
			IncludeGlobs: cfg.IncludeGlobs,
			ExcludeGlobs: cfg.ExcludeGlobs,
		}); err != nil {
			return fmt.Errorf("initial index failed: %w", err)
		}
	}

	server, err := mcp.NewServer(e.Store, e.SearchService, e.Indexer, e.Queue, cfg)
	if err != nil {
		return fmt.Errorf("failed to construct MCP server: %w", err)
	}

	return server.Serve(ctx)
}
