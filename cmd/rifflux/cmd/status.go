package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/riffluxdb/rifflux/internal/config"
	"github.com/riffluxdb/rifflux/internal/output"
	"github.com/riffluxdb/rifflux/internal/store"
)

func newStatusCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show index health and status",
		Long: `Display the number of indexed files and chunks, the embedding
model recorded at index time, and any recorded git fingerprint.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd.Context(), cmd, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

type statusInfo struct {
	ProjectRoot    string `json:"project_root"`
	DBPath         string `json:"db_path"`
	FileCount      int    `json:"file_count"`
	ChunkCount     int    `json:"chunk_count"`
	EmbeddingModel string `json:"embedding_model,omitempty"`
	EmbeddingDim   string `json:"embedding_dim,omitempty"`
	GitFingerprint string `json:"git_fingerprint,omitempty"`
}

func runStatus(ctx context.Context, cmd *cobra.Command, jsonOutput bool) error {
	root, err := config.FindProjectRoot(".")
	if err != nil {
		root, _ = os.Getwd()
	}

	cfg, err := config.Load(root)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if _, err := os.Stat(cfg.DBPath); os.IsNotExist(err) {
		return fmt.Errorf("no index found at %s\nRun 'rifflux index' to create one", cfg.DBPath)
	}

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open index: %w", err)
	}
	defer func() { _ = st.Close() }()

	stats, err := st.Stats(ctx)
	if err != nil {
		return fmt.Errorf("failed to read index stats: %w", err)
	}
	metadata, err := st.AllMetadata(ctx)
	if err != nil {
		return fmt.Errorf("failed to read index metadata: %w", err)
	}

	info := statusInfo{
		ProjectRoot:    root,
		DBPath:         cfg.DBPath,
		FileCount:      stats.FileCount,
		ChunkCount:     stats.ChunkCount,
		EmbeddingModel: metadata["embedding_model"],
		EmbeddingDim:   metadata["embedding_dim"],
		GitFingerprint: metadata["git_fingerprint"],
	}

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	}

	out := output.New(cmd.OutOrStdout())
	out.Statusf("", "Project: %s", info.ProjectRoot)
	out.Statusf("", "Database: %s", info.DBPath)
	out.Statusf("", "Files: %d, Chunks: %d", info.FileCount, info.ChunkCount)
	if info.EmbeddingModel != "" {
		out.Statusf("", "Embedding model: %s (dim %s)", info.EmbeddingModel, info.EmbeddingDim)
	}
	if info.GitFingerprint != "" {
		out.Statusf("", "Git fingerprint: %s", info.GitFingerprint)
	}
	return nil
}
