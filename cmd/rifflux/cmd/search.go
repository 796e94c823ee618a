package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/riffluxdb/rifflux/internal/config"
	"github.com/riffluxdb/rifflux/internal/engine"
	"github.com/riffluxdb/rifflux/internal/output"
	"github.com/riffluxdb/rifflux/internal/search"
)

func newSearchCmd() *cobra.Command {
	var (
		topK   int
		mode   string
		format string
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the indexed corpus",
		Long: `Search the indexed Markdown corpus using hybrid lexical + semantic
search, fused by Reciprocal Rank Fusion.

Examples:
  rifflux search "retry backoff policy"
  rifflux search "installation steps" --mode lexical --top-k 5
  rifflux search "configuration" --format json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			return runSearch(cmd.Context(), cmd, query, topK, mode, format)
		},
	}

	cmd.Flags().IntVarP(&topK, "top-k", "n", search.DefaultTopK, "Maximum number of results")
	cmd.Flags().StringVarP(&mode, "mode", "m", string(search.ModeHybrid), "Search mode: lexical, semantic, or hybrid")
	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format: text, json")

	return cmd
}

func runSearch(ctx context.Context, cmd *cobra.Command, query string, topK int, mode, format string) error {
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

	results, err := e.Search(ctx, query, search.Options{TopK: topK, Mode: search.Mode(mode)})
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if format == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}

	out := output.New(cmd.OutOrStdout())
	if len(results) == 0 {
		out.Status("", fmt.Sprintf("No results found for %q", query))
		return nil
	}

	out.Statusf("", "Found %d result(s) for %q:", len(results), query)
	out.Newline()
	for i, r := range results {
		location := r.Path
		if r.HeadingPath != "" {
			location = fmt.Sprintf("%s (%s)", r.Path, r.HeadingPath)
		}
		out.Status("", fmt.Sprintf("%d. %s", i+1, location))
		out.Status("", "   "+firstLine(r.Content))
		sb := r.ScoreBreakdown
		out.ScoreLine(sb.BM25, sb.Cosine, sb.RRF)
		out.Newline()
	}
	return nil
}

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return s[:idx]
	}
	return s
}
