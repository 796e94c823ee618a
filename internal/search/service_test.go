package search

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riffluxdb/rifflux/internal/embed"
	"github.com/riffluxdb/rifflux/internal/store"
)

func newTestStoreWithChunks(t *testing.T, texts []string) *store.Store {
	t.Helper()
	st, err := store.Open("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	chunks := make([]store.Chunk, len(texts))
	vectors := make([][]float32, len(texts))
	e, err := embed.New(embed.Config{Backend: embed.BackendHash, Dim: 16})
	require.NoError(t, err)
	defer e.Close()

	for i, text := range texts {
		chunks[i] = store.Chunk{
			ChunkID:     "chunk-" + text,
			ChunkIndex:  i,
			HeadingPath: "Doc",
			Content:     text,
			TokenCount:  len(text),
		}
		vec, err := e.EmbedDocuments(context.Background(), []string{text})
		require.NoError(t, err)
		vectors[i] = vec[0]
	}

	_, err = st.ReplaceFileChunks(context.Background(), store.File{
		Path: "doc.md", MtimeNs: 1, SizeBytes: 10, SHA256: "abc",
	}, chunks, vectors, "hash:test")
	require.NoError(t, err)
	return st
}

func TestSearch_S4_SemanticModeWithoutEmbedderYieldsEmpty(t *testing.T) {
	st := newTestStoreWithChunks(t, []string{"alpha beta gamma"})
	svc := &Service{Store: st, Embedder: nil}

	results, err := svc.Search(context.Background(), "alpha", Options{Mode: ModeSemantic, TopK: 10})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearch_ModeIsolation(t *testing.T) {
	st := newTestStoreWithChunks(t, []string{"alpha beta gamma", "delta epsilon zeta"})
	e, err := embed.New(embed.Config{Backend: embed.BackendHash, Dim: 16})
	require.NoError(t, err)
	defer e.Close()
	svc := &Service{Store: st, Embedder: e}

	lexResults, err := svc.Search(context.Background(), "alpha", Options{Mode: ModeLexical, TopK: 10})
	require.NoError(t, err)
	require.NotEmpty(t, lexResults)
	for _, r := range lexResults {
		assert.NotNil(t, r.ScoreBreakdown.BM25)
		assert.Nil(t, r.ScoreBreakdown.Cosine)
		assert.Nil(t, r.ScoreBreakdown.RRF)
	}

	semResults, err := svc.Search(context.Background(), "alpha", Options{Mode: ModeSemantic, TopK: 10})
	require.NoError(t, err)
	require.NotEmpty(t, semResults)
	for _, r := range semResults {
		assert.NotNil(t, r.ScoreBreakdown.Cosine)
		assert.Nil(t, r.ScoreBreakdown.BM25)
		assert.Nil(t, r.ScoreBreakdown.RRF)
	}

	hybridResults, err := svc.Search(context.Background(), "alpha", Options{Mode: ModeHybrid, TopK: 10})
	require.NoError(t, err)
	require.NotEmpty(t, hybridResults)
	for _, r := range hybridResults {
		assert.NotNil(t, r.ScoreBreakdown.RRF)
		assert.Nil(t, r.ScoreBreakdown.BM25)
		assert.Nil(t, r.ScoreBreakdown.Cosine)
	}
}

func TestSearch_TopKBound(t *testing.T) {
	st := newTestStoreWithChunks(t, []string{"one", "two", "three", "four", "five"})
	e, err := embed.New(embed.Config{Backend: embed.BackendHash, Dim: 16})
	require.NoError(t, err)
	defer e.Close()
	svc := &Service{Store: st, Embedder: e}

	results, err := svc.Search(context.Background(), "one two three four five", Options{Mode: ModeHybrid, TopK: 2})
	require.NoError(t, err)
	assert.LessOrEqual(t, len(results), 2)
}

func TestSearch_InvalidTopKRejected(t *testing.T) {
	st := newTestStoreWithChunks(t, []string{"alpha"})
	svc := &Service{Store: st}

	_, err := svc.Search(context.Background(), "alpha", Options{Mode: ModeLexical, TopK: 999})
	require.Error(t, err)
}

func TestSearch_InvalidModeRejected(t *testing.T) {
	st := newTestStoreWithChunks(t, []string{"alpha"})
	svc := &Service{Store: st}

	_, err := svc.Search(context.Background(), "alpha", Options{Mode: "bogus", TopK: 10})
	require.Error(t, err)
}

func TestSearch_EmptyQueryYieldsEmpty(t *testing.T) {
	st := newTestStoreWithChunks(t, []string{"alpha"})
	svc := &Service{Store: st}

	results, err := svc.Search(context.Background(), "   ", Options{Mode: ModeHybrid, TopK: 10})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearch_EmptyCorpusYieldsEmpty(t *testing.T) {
	st, err := store.Open("")
	require.NoError(t, err)
	defer st.Close()
	e, err := embed.New(embed.Config{Backend: embed.BackendHash, Dim: 16})
	require.NoError(t, err)
	defer e.Close()
	svc := &Service{Store: st, Embedder: e}

	results, err := svc.Search(context.Background(), "anything", Options{Mode: ModeHybrid, TopK: 10})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearch_DefaultsAppliedWhenOptionsZeroValue(t *testing.T) {
	st := newTestStoreWithChunks(t, []string{"alpha beta"})
	svc := &Service{Store: st}

	results, err := svc.Search(context.Background(), "alpha", Options{})
	require.NoError(t, err)
	assert.NotNil(t, results)
}
