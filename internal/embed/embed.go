// Package embed provides the pluggable text-to-vector capability: a neural
// ONNX backend with a deterministic hash fallback, selected by a factory
// that downgrades on initialization failure rather than failing closed.
package embed

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Backend names the configured embedding strategy.
type Backend string

const (
	BackendAuto     Backend = "auto"
	BackendOnnxLike Backend = "onnx-like"
	BackendHash     Backend = "hash"
)

// Embedder turns text into fixed-dimension vectors.
type Embedder interface {
	// EmbedDocuments embeds a batch of chunk texts for indexing.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	// EmbedQuery embeds a single query string for search.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	// ModelLabel identifies the backend and model for index_status and
	// force-fit bookkeeping; it reflects any fallback that occurred.
	ModelLabel() string
	// Dim is the vector dimension this embedder was configured to produce,
	// after any force-fit truncate/pad.
	Dim() int
	// Close releases backend resources (ONNX session, tokenizer).
	Close()
}

// Config selects and configures the embedder.
type Config struct {
	Backend    Backend
	Model      string // e.g. "BAAI/bge-small-en-v1.5"
	Dim        int    // configured (force-fit) dimension, default 384
	ModelDir   string // ONNX model directory: model.onnx + tokenizer.json
	OrtLibPath string // path to onnxruntime shared library, "" = system default
}

func (c Config) withDefaults() Config {
	if c.Backend == "" {
		c.Backend = BackendAuto
	}
	if c.Model == "" {
		c.Model = "BAAI/bge-small-en-v1.5"
	}
	if c.Dim <= 0 {
		c.Dim = 384
	}
	return c
}

// New constructs an Embedder per cfg.Backend:
//   - auto: try the neural backend; on init failure, fall back to hash.
//   - onnx-like: try neural; on init failure, fall back to hash and record
//     the downgrade in the model label (same as auto).
//   - hash: always the deterministic backend.
func New(cfg Config) (Embedder, error) {
	cfg = cfg.withDefaults()

	switch cfg.Backend {
	case BackendHash:
		return newHashEmbedder(cfg.Dim, cfg.Model), nil

	case BackendAuto, BackendOnnxLike:
		neural, err := newNeuralEmbedder(cfg)
		if err == nil {
			return neural, nil
		}
		slog.Warn("embedder_fallback_to_hash",
			slog.String("requested_backend", string(cfg.Backend)),
			slog.String("reason", err.Error()))
		return newHashEmbedder(cfg.Dim, cfg.Model), nil

	default:
		return nil, fmt.Errorf("unknown embedding backend %q", cfg.Backend)
	}
}

// forceFit truncates or zero-pads v to exactly dim elements, applied
// identically at index and query time so retrieval never silently degrades
// from an inconsistent dimension policy.
func forceFit(v []float32, dim int) []float32 {
	if len(v) == dim {
		return v
	}
	out := make([]float32, dim)
	copy(out, v)
	return out
}

// ParseBackend maps a configuration string to a Backend, defaulting to auto
// for unrecognized input.
func ParseBackend(s string) Backend {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "onnx-like", "onnx", "neural":
		return BackendOnnxLike
	case "hash", "deterministic", "deterministic-hash":
		return BackendHash
	default:
		return BackendAuto
	}
}
