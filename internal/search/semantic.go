package search

import (
	"context"

	"github.com/riffluxdb/rifflux/internal/store"
)

// SemanticCandidates scores every stored embedding against queryVector and
// returns the top limit hits, descending by cosine similarity. A nil or
// empty queryVector (embedder unavailable, or semantic mode requested
// without one) yields an empty list rather than an error — semantic
// candidate generation degrades silently so hybrid mode still returns
// lexical-only results.
func SemanticCandidates(ctx context.Context, st *store.Store, queryVector []float32, limit int) ([]store.SemanticHit, error) {
	if len(queryVector) == 0 {
		return []store.SemanticHit{}, nil
	}
	return st.Semantic(ctx, queryVector, limit)
}

// SemanticChunkIDs extracts the rank-ordered chunk_id list from semantic
// hits, the shape Fuse consumes.
func SemanticChunkIDs(hits []store.SemanticHit) []string {
	ids := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = h.ChunkID
	}
	return ids
}
