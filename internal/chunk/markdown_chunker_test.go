package chunk

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sha256hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// S1 — deterministic chunk_id, heading-bounded chunks.
func TestChunk_S1_DeterministicChunkID(t *testing.T) {
	content := "# A\n\nalpha\n\n# B\n\nbeta\n"
	records := Chunk("notes.md", content, Options{MinChunkChars: 1, MaxChunkChars: 1000})

	require.Len(t, records, 2)
	assert.Equal(t, 0, records[0].ChunkIndex)
	assert.Equal(t, "A", records[0].HeadingPath)
	assert.Equal(t, "alpha", records[0].Content)
	assert.Equal(t, sha256hex("notes.md::0"), records[0].ChunkID)

	assert.Equal(t, 1, records[1].ChunkIndex)
	assert.Equal(t, "B", records[1].HeadingPath)
	assert.Equal(t, "beta", records[1].Content)
	assert.Equal(t, sha256hex("notes.md::1"), records[1].ChunkID)
}

// S2 — a fenced code block larger than MaxChunkChars is never split.
func TestChunk_S2_CodeBlockNotSplit(t *testing.T) {
	code := strings.Repeat("x", 2000)
	content := "intro paragraph that is short\n\n```go\n" + code + "\n```\n\nclosing paragraph\n"

	records := Chunk("doc.md", content, Options{MinChunkChars: 1, MaxChunkChars: 1200})
	require.NotEmpty(t, records)

	var codeChunk *Record
	for i := range records {
		if strings.Contains(records[i].Content, code) {
			codeChunk = &records[i]
		}
	}
	require.NotNil(t, codeChunk, "expected a chunk containing the full code block")
	assert.GreaterOrEqual(t, len(codeChunk.Content), 2000)
	assert.Contains(t, codeChunk.Content, "```go")
}

func TestChunk_EmptyContent(t *testing.T) {
	assert.Nil(t, Chunk("empty.md", "   \n\n  ", Options{}))
	assert.Nil(t, Chunk("empty.md", "", Options{}))
}

func TestChunk_NonMarkdownPlainText(t *testing.T) {
	content := strings.Repeat("word ", 500)
	records := Chunk("notes.txt", content, Options{MinChunkChars: 200, MaxChunkChars: 1200})
	require.NotEmpty(t, records)
	for _, r := range records {
		assert.Equal(t, "", r.HeadingPath)
		assert.LessOrEqual(t, len(r.Content), 1201)
	}
}

func TestChunk_DropsEmptySectionsAfterTrim(t *testing.T) {
	content := "# Heading\n\n   \n\n# Another\n\ncontent here\n"
	records := Chunk("doc.md", content, Options{MinChunkChars: 1, MaxChunkChars: 1000})
	for _, r := range records {
		assert.NotEmpty(t, strings.TrimSpace(r.Content))
	}
}

func TestChunk_HeadingPathNesting(t *testing.T) {
	content := "# Top\n\n## Sub\n\nbody text\n"
	records := Chunk("doc.md", content, Options{MinChunkChars: 1, MaxChunkChars: 1000})
	require.Len(t, records, 1)
	assert.Equal(t, "Top > Sub", records[0].HeadingPath)
}

func TestChunk_HeadingPathPopsOnSiblingLevel(t *testing.T) {
	content := "# Top\n\n## Sub\n\nfirst\n\n## Sub2\n\nsecond\n"
	records := Chunk("doc.md", content, Options{MinChunkChars: 1, MaxChunkChars: 1000})
	require.Len(t, records, 2)
	assert.Equal(t, "Top > Sub", records[0].HeadingPath)
	assert.Equal(t, "Top > Sub2", records[1].HeadingPath)
}

func TestChunk_DeeplyNestedHeadingPath(t *testing.T) {
	content := "# L1\n\n## L2\n\n### L3\n\ndeep content\n"
	records := Chunk("deep.md", content, Options{MinChunkChars: 1, MaxChunkChars: 1000})
	require.Len(t, records, 1)
	assert.Equal(t, "L1 > L2 > L3", records[0].HeadingPath)
}

func TestChunk_ShortSectionsMergeUntilMin(t *testing.T) {
	content := "# A\n\nx\n\n# B\n\ny\n\n# C\n\nz\n"
	records := Chunk("doc.md", content, Options{MinChunkChars: 50, MaxChunkChars: 1000})
	require.Len(t, records, 1)
	assert.Equal(t, "C", records[0].HeadingPath)
	assert.Contains(t, records[0].Content, "x")
	assert.Contains(t, records[0].Content, "y")
	assert.Contains(t, records[0].Content, "z")
}

func TestChunk_MaxCharsFlushesWithoutHeading(t *testing.T) {
	content := strings.Repeat("a", 1300) + "\n"
	records := Chunk("doc.md", content, Options{MinChunkChars: 1, MaxChunkChars: 1200})
	require.GreaterOrEqual(t, len(records), 1)
	assert.LessOrEqual(t, len(records[0].Content), 1201)
}

func TestChunk_IndicesAreContiguous(t *testing.T) {
	content := "# A\n\nalpha\n\n# B\n\nbeta\n\n# C\n\ngamma\n"
	records := Chunk("doc.md", content, Options{MinChunkChars: 1, MaxChunkChars: 1000})
	for i, r := range records {
		assert.Equal(t, i, r.ChunkIndex)
	}
}

func TestChunk_FencedBlockLinesStayTogether(t *testing.T) {
	content := "# Data\n\n```\nrow1\nrow2\n```\n\nafter\n"
	records := Chunk("table.md", content, Options{MinChunkChars: 1, MaxChunkChars: 1000})
	found := false
	for _, r := range records {
		if strings.Contains(r.Content, "row1") && strings.Contains(r.Content, "row2") {
			found = true
		}
	}
	assert.True(t, found)
}

func TestChunkID_IsDeterministic(t *testing.T) {
	a := ChunkID("notes.md", 3)
	b := ChunkID("notes.md", 3)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, ChunkID("notes.md", 4))
}

func TestNormalizePath_BackslashesAndDotSegments(t *testing.T) {
	assert.Equal(t, "a/b.md", NormalizePath("a\\b.md"))
	assert.Equal(t, "a/b.md", NormalizePath("./a/b.md"))
}

func TestChunk_UniqueChunkIDsWithinFile(t *testing.T) {
	content := "# S1\n\nalpha\n\n# S2\n\nbeta\n\n# S3\n\ngamma\n"
	records := Chunk("unique.md", content, Options{MinChunkChars: 1, MaxChunkChars: 1000})

	seen := map[string]bool{}
	for _, r := range records {
		assert.False(t, seen[r.ChunkID], "duplicate chunk_id: %s", r.ChunkID)
		seen[r.ChunkID] = true
	}
}
