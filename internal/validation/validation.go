// Package validation holds the input-validation rules applied at the tool
// boundary (internal/mcp) before a request reaches the core: malformed
// queries, out-of-range top_k, and unknown search modes are rejected here
// as errs.InvalidInput rather than surfacing from deep inside the engine.
package validation

import (
	"strings"

	"github.com/riffluxdb/rifflux/internal/errs"
	"github.com/riffluxdb/rifflux/internal/search"
)

// Query rejects an empty or whitespace-only query string.
func Query(q string) error {
	if strings.TrimSpace(q) == "" {
		return errs.New(errs.InvalidInput, "query must not be empty")
	}
	return nil
}

// TopK rejects a top_k outside [search.MinTopK, search.MaxTopK]. A zero
// value is accepted here and left to the caller to default, since the
// tool boundary treats an omitted top_k differently from an explicit
// out-of-range one.
func TopK(topK int) error {
	if topK == 0 {
		return nil
	}
	if topK < search.MinTopK || topK > search.MaxTopK {
		return errs.New(errs.InvalidInput, "top_k must be between 1 and 100")
	}
	return nil
}

// Mode rejects anything other than the three recognized modes, or an empty
// string (left to the caller to default to hybrid).
func Mode(mode string) error {
	if mode == "" {
		return nil
	}
	switch search.Mode(mode) {
	case search.ModeLexical, search.ModeSemantic, search.ModeHybrid:
		return nil
	default:
		return errs.New(errs.InvalidInput, "mode must be lexical, semantic, or hybrid")
	}
}

// ChunkID rejects an empty chunk_id argument.
func ChunkID(id string) error {
	if strings.TrimSpace(id) == "" {
		return errs.New(errs.InvalidInput, "chunk_id must not be empty")
	}
	return nil
}

// Path rejects an empty path argument.
func Path(path string) error {
	if strings.TrimSpace(path) == "" {
		return errs.New(errs.InvalidInput, "path must not be empty")
	}
	return nil
}
