package search

import (
	"context"

	"github.com/riffluxdb/rifflux/internal/store"
)

// LexicalCandidates runs a BM25-ranked FTS query and returns chunk_ids in
// rank order (best first) alongside the hits themselves, so the caller can
// both fuse ranks and assemble result rows without a second lookup.
func LexicalCandidates(ctx context.Context, st *store.Store, query string, limit int) ([]store.LexicalHit, error) {
	return st.Lexical(ctx, query, limit)
}

// LexicalChunkIDs extracts the rank-ordered chunk_id list from lexical hits, the
// shape Fuse consumes.
func LexicalChunkIDs(hits []store.LexicalHit) []string {
	ids := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = h.ChunkID
	}
	return ids
}
