package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riffluxdb/rifflux/internal/errs"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func mustReplace(t *testing.T, s *Store, path string, chunks []Chunk, vectors [][]float32) int64 {
	t.Helper()
	id, err := s.ReplaceFileChunks(context.Background(), File{
		Path: path, MtimeNs: 1, SizeBytes: int64(len(path)), SHA256: "deadbeef",
	}, chunks, vectors, "hash-v1")
	require.NoError(t, err)
	return id
}

// TS01: replacing a file's chunks is transactional and FTS mirrors it.
func TestReplaceFileChunks_FTSCoherence(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	chunks := []Chunk{
		{ChunkID: "c0", ChunkIndex: 0, HeadingPath: "A", Content: "alpha beta"},
		{ChunkID: "c1", ChunkIndex: 1, HeadingPath: "B", Content: "gamma delta"},
	}
	mustReplace(t, s, "notes.md", chunks, nil)

	hits, err := s.Lexical(ctx, "alpha", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "c0", hits[0].ChunkID)
	assert.Equal(t, "notes.md", hits[0].Path)
}

// TS02: wholesale chunk replacement removes stale chunks and their FTS rows.
func TestReplaceFileChunks_WholesaleReplace(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	mustReplace(t, s, "notes.md", []Chunk{
		{ChunkID: "c0", ChunkIndex: 0, Content: "first version"},
	}, nil)

	mustReplace(t, s, "notes.md", []Chunk{
		{ChunkID: "c0v2", ChunkIndex: 0, Content: "second version"},
	}, nil)

	hits, err := s.Lexical(ctx, "first", 10)
	require.NoError(t, err)
	assert.Empty(t, hits)

	hits, err = s.Lexical(ctx, "second", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "c0v2", hits[0].ChunkID)
}

// TS03: deleting a file cascades to chunks, FTS rows, and embeddings.
func TestDeleteFile_Cascades(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	vec := []float32{1, 0, 0}
	mustReplace(t, s, "notes.md", []Chunk{
		{ChunkID: "c0", ChunkIndex: 0, Content: "alpha"},
	}, [][]float32{vec})

	require.NoError(t, s.DeleteFile(ctx, "notes.md"))

	_, err := s.GetFile(ctx, "notes.md")
	assert.Equal(t, errs.NotFound, errs.KindOf(err))

	hits, err := s.Lexical(ctx, "alpha", 10)
	require.NoError(t, err)
	assert.Empty(t, hits)

	semHits, err := s.Semantic(ctx, vec, 10)
	require.NoError(t, err)
	assert.Empty(t, semHits)
}

func TestGetChunk_NotFound(t *testing.T) {
	s := newTestStore(t)
	_, _, err := s.GetChunk(context.Background(), "missing")
	assert.Equal(t, errs.NotFound, errs.KindOf(err))
}

func TestLexical_EmptyQuery(t *testing.T) {
	s := newTestStore(t)
	hits, err := s.Lexical(context.Background(), "   ", 10)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestSemantic_NilQueryVector(t *testing.T) {
	s := newTestStore(t)
	hits, err := s.Semantic(context.Background(), nil, 10)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestSemantic_OrdersDescendingByCosine(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	mustReplace(t, s, "a.md", []Chunk{{ChunkID: "near", ChunkIndex: 0, Content: "a"}}, [][]float32{{1, 0}})
	mustReplace(t, s, "b.md", []Chunk{{ChunkID: "far", ChunkIndex: 0, Content: "b"}}, [][]float32{{0, 1}})

	hits, err := s.Semantic(ctx, []float32{1, 0}, 10)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "near", hits[0].ChunkID)
	assert.InDelta(t, 1.0, hits[0].CosineScore, 1e-9)
	assert.InDelta(t, 0.0, hits[1].CosineScore, 1e-9)
}

func TestSemantic_DimensionMismatchDoesNotCrash(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	mustReplace(t, s, "a.md", []Chunk{{ChunkID: "c0", ChunkIndex: 0, Content: "a"}}, [][]float32{{1, 0, 0, 0}})

	hits, err := s.Semantic(ctx, []float32{1, 0}, 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
}

// TS04: touching a file's mtime without a byte change never rewrites chunks.
func TestTouchFile_DoesNotRewriteChunks(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	mustReplace(t, s, "notes.md", []Chunk{{ChunkID: "c0", ChunkIndex: 0, Content: "alpha"}}, nil)
	require.NoError(t, s.TouchFile(ctx, "notes.md", 999, 5))

	f, err := s.GetFile(ctx, "notes.md")
	require.NoError(t, err)
	assert.Equal(t, int64(999), f.MtimeNs)

	chunks, err := s.ChunksForPath(ctx, "notes.md")
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "c0", chunks[0].ChunkID)
}

func TestMetadata_SetAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SetMetadata(ctx, "embedding_model", "hash-v1"))
	v, err := s.GetMetadata(ctx, "embedding_model")
	require.NoError(t, err)
	assert.Equal(t, "hash-v1", v)

	_, err = s.GetMetadata(ctx, "missing_key")
	assert.Equal(t, errs.NotFound, errs.KindOf(err))
}

func TestAllPaths_ReflectsTrackedFiles(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	mustReplace(t, s, "a.md", []Chunk{{ChunkID: "a0", ChunkIndex: 0, Content: "x"}}, nil)
	mustReplace(t, s, "b.md", []Chunk{{ChunkID: "b0", ChunkIndex: 0, Content: "y"}}, nil)

	paths, err := s.AllPaths(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a.md", "b.md"}, paths)
}

func TestEncodeDecodeVector_RoundTrips(t *testing.T) {
	v := []float32{0.1, -0.2, 3.5, 0}
	got := decodeVector(encodeVector(v))
	require.Len(t, got, len(v))
	for i := range v {
		assert.InDelta(t, v[i], got[i], 1e-6)
	}
}
