package mcp

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/riffluxdb/rifflux/internal/config"
	"github.com/riffluxdb/rifflux/internal/errs"
	"github.com/riffluxdb/rifflux/internal/indexer"
	"github.com/riffluxdb/rifflux/internal/jobqueue"
	"github.com/riffluxdb/rifflux/internal/search"
	"github.com/riffluxdb/rifflux/internal/store"
	"github.com/riffluxdb/rifflux/internal/validation"
	"github.com/riffluxdb/rifflux/pkg/version"
)

// Server bridges AI clients (Claude Code, Cursor, etc.) to the hybrid
// search engine over stdio JSON-RPC.
type Server struct {
	mcp     *sdk.Server
	store   *store.Store
	search  *search.Service
	indexer *indexer.Indexer
	queue   *jobqueue.Queue
	cfg     *config.Config
	logger  *slog.Logger
}

// NewServer constructs the MCP server and registers its five tools.
func NewServer(st *store.Store, searchSvc *search.Service, ix *indexer.Indexer, queue *jobqueue.Queue, cfg *config.Config) (*Server, error) {
	if st == nil {
		return nil, errs.New(errs.Internal, "store is required")
	}
	if searchSvc == nil {
		return nil, errs.New(errs.Internal, "search service is required")
	}
	if cfg == nil {
		cfg = config.New()
	}

	s := &Server{
		store:   st,
		search:  searchSvc,
		indexer: ix,
		queue:   queue,
		cfg:     cfg,
		logger:  slog.Default(),
	}

	s.mcp = sdk.NewServer(&sdk.Implementation{
		Name:    "rifflux",
		Version: version.Version,
	}, nil)

	s.registerTools()
	return s, nil
}

// registerTools registers the five tools named by the external interface:
// search, reindex, get_chunk, get_file, index_status.
func (s *Server) registerTools() {
	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "search",
		Description: "Hybrid lexical + semantic search over the indexed Markdown corpus.",
	}, s.handleSearch)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "reindex",
		Description: "Scan one or more locations and rebuild the index for changed files.",
	}, s.handleReindex)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "get_chunk",
		Description: "Fetch a single indexed chunk by its chunk_id.",
	}, s.handleGetChunk)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "get_file",
		Description: "Fetch an indexed file's metadata and chunks by path.",
	}, s.handleGetFile)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "index_status",
		Description: "Report index size, embedding configuration, and git fingerprint.",
	}, s.handleIndexStatus)

	s.logger.Debug("mcp tools registered", slog.Int("count", 5))
}

func (s *Server) handleSearch(ctx context.Context, _ *sdk.CallToolRequest, input SearchInput) (
	*sdk.CallToolResult, SearchOutput, error,
) {
	if err := validation.Query(input.Query); err != nil {
		return nil, SearchOutput{}, MapError(err)
	}
	if err := validation.TopK(input.TopK); err != nil {
		return nil, SearchOutput{}, MapError(err)
	}
	if err := validation.Mode(input.Mode); err != nil {
		return nil, SearchOutput{}, MapError(err)
	}

	mode := search.Mode(input.Mode)
	if mode == "" {
		mode = search.ModeHybrid
	}

	results, err := s.search.Search(ctx, input.Query, search.Options{TopK: input.TopK, Mode: mode})
	if err != nil {
		return nil, SearchOutput{}, MapError(err)
	}

	model := ""
	if s.search.Embedder != nil {
		model = s.search.Embedder.ModelLabel()
	}

	out := SearchOutput{
		Query:          input.Query,
		Mode:           string(mode),
		Count:          len(results),
		EmbeddingModel: model,
		Results:        make([]SearchResultOutput, 0, len(results)),
	}
	for _, r := range results {
		out.Results = append(out.Results, SearchResultOutput{
			ChunkID:     r.ChunkID,
			Path:        r.Path,
			HeadingPath: r.HeadingPath,
			ChunkIndex:  r.ChunkIndex,
			Content:     r.Content,
			ScoreBreakdown: ScoreBreakdown{
				BM25:         r.ScoreBreakdown.BM25,
				Cosine:       r.ScoreBreakdown.Cosine,
				RRF:          r.ScoreBreakdown.RRF,
				LexicalRank:  r.ScoreBreakdown.LexicalRank,
				SemanticRank: r.ScoreBreakdown.SemanticRank,
			},
		})
	}
	return nil, out, nil
}

func (s *Server) handleReindex(ctx context.Context, _ *sdk.CallToolRequest, input ReindexInput) (
	*sdk.CallToolResult, ReindexOutput, error,
) {
	if s.indexer == nil {
		return nil, ReindexOutput{}, MapError(errs.New(errs.Internal, "indexer is not available"))
	}

	locations := reindexLocations(input)

	result, err := s.indexer.Reindex(ctx, locations, indexer.Options{
		Force:        input.Force,
		PruneMissing: input.pruneMissing(),
		IncludeGlobs: s.cfg.IncludeGlobs,
		ExcludeGlobs: s.cfg.ExcludeGlobs,
	})
	if err != nil {
		return nil, ReindexOutput{}, MapError(err)
	}

	model := ""
	if s.indexer.Embedder != nil {
		model = s.indexer.Embedder.ModelLabel()
	}

	return nil, ReindexOutput{
		IndexedFiles:     result.IndexedFiles,
		SkippedFiles:     result.SkippedFiles,
		DeletedFiles:     result.DeletedFiles,
		IndexedPaths:     result.IndexedPaths,
		EmbeddingModel:   model,
		EmbeddingBackend: s.cfg.EmbeddingBackend,
		GitFingerprint:   result.GitFingerprint,
	}, nil
}

// reindexLocations resolves the location list per the precedence rule:
// non-empty paths > path > current working directory.
func reindexLocations(input ReindexInput) []string {
	if len(input.Paths) > 0 {
		return input.Paths
	}
	if input.Path != "" {
		return []string{input.Path}
	}
	if wd, err := os.Getwd(); err == nil {
		return []string{wd}
	}
	return []string{"."}
}

func (s *Server) handleGetChunk(ctx context.Context, _ *sdk.CallToolRequest, input GetChunkInput) (
	*sdk.CallToolResult, GetChunkOutput, error,
) {
	if err := validation.ChunkID(input.ChunkID); err != nil {
		return nil, GetChunkOutput{}, MapError(err)
	}
	c, path, err := s.store.GetChunk(ctx, input.ChunkID)
	if err != nil {
		return nil, GetChunkOutput{}, MapError(err)
	}
	return nil, GetChunkOutput{
		ChunkID:     c.ChunkID,
		Path:        path,
		HeadingPath: c.HeadingPath,
		ChunkIndex:  c.ChunkIndex,
		Content:     c.Content,
		TokenCount:  c.TokenCount,
	}, nil
}

func (s *Server) handleGetFile(ctx context.Context, _ *sdk.CallToolRequest, input GetFileInput) (
	*sdk.CallToolResult, GetFileOutput, error,
) {
	if err := validation.Path(input.Path); err != nil {
		return nil, GetFileOutput{}, MapError(err)
	}
	f, err := s.store.GetFile(ctx, input.Path)
	if err != nil {
		return nil, GetFileOutput{}, MapError(err)
	}
	chunks, err := s.store.ChunksForPath(ctx, input.Path)
	if err != nil {
		return nil, GetFileOutput{}, MapError(err)
	}

	out := GetFileOutput{
		Path:       f.Path,
		SHA256:     f.SHA256,
		MtimeNs:    f.MtimeNs,
		SizeBytes:  f.SizeBytes,
		ChunkCount: len(chunks),
		Chunks:     make([]GetChunkOutput, 0, len(chunks)),
	}
	for _, c := range chunks {
		out.Chunks = append(out.Chunks, GetChunkOutput{
			ChunkID:     c.ChunkID,
			Path:        f.Path,
			HeadingPath: c.HeadingPath,
			ChunkIndex:  c.ChunkIndex,
			Content:     c.Content,
			TokenCount:  c.TokenCount,
		})
	}
	return nil, out, nil
}

func (s *Server) handleIndexStatus(ctx context.Context, _ *sdk.CallToolRequest, _ IndexStatusInput) (
	*sdk.CallToolResult, IndexStatusOutput, error,
) {
	stats, err := s.store.Stats(ctx)
	if err != nil {
		return nil, IndexStatusOutput{}, MapError(err)
	}
	meta, err := s.store.AllMetadata(ctx)
	if err != nil {
		return nil, IndexStatusOutput{}, MapError(err)
	}

	return nil, IndexStatusOutput{
		FileCount:        stats.FileCount,
		ChunkCount:       stats.ChunkCount,
		EmbeddingModel:   meta["embedding_model"],
		EmbeddingDim:     meta["embedding_dim"],
		EmbeddingBackend: s.cfg.EmbeddingBackend,
		GitFingerprint:   meta["git_fingerprint"],
		DBPath:           filepath.Clean(s.cfg.DBPath),
	}, nil
}

// Serve starts the server over the stdio JSON-RPC transport.
func (s *Server) Serve(ctx context.Context) error {
	s.logger.Info("starting mcp server", slog.String("transport", "stdio"))
	err := s.mcp.Run(ctx, &sdk.StdioTransport{})
	if err != nil && err != context.Canceled {
		s.logger.Error("mcp server stopped with error", slog.String("error", err.Error()))
		return err
	}
	s.logger.Info("mcp server stopped gracefully")
	return nil
}
