package mcp

// SearchInput defines the input schema for the search tool.
type SearchInput struct {
	Query string `json:"query" jsonschema:"the search query to execute"`
	TopK  int    `json:"top_k,omitempty" jsonschema:"number of results to return, 1-100, default 10"`
	Mode  string `json:"mode,omitempty" jsonschema:"lexical, semantic, or hybrid, default hybrid"`
}

// SearchOutput defines the output schema for the search tool.
type SearchOutput struct {
	Query          string               `json:"query"`
	Mode           string               `json:"mode"`
	Count          int                  `json:"count"`
	EmbeddingModel string               `json:"embedding_model"`
	Results        []SearchResultOutput `json:"results"`
}

// SearchResultOutput is one assembled hit.
type SearchResultOutput struct {
	ChunkID        string         `json:"chunk_id"`
	Path           string         `json:"path"`
	HeadingPath    string         `json:"heading_path"`
	ChunkIndex     int            `json:"chunk_index"`
	Content        string         `json:"content"`
	ScoreBreakdown ScoreBreakdown `json:"score_breakdown"`
}

// ScoreBreakdown mirrors search.ScoreBreakdown for the wire format. Exactly
// the fields relevant to the result's mode are present; the rest are
// omitted rather than zero-valued, per the mode-isolation rule.
type ScoreBreakdown struct {
	BM25         *float64 `json:"bm25,omitempty"`
	Cosine       *float64 `json:"cosine,omitempty"`
	RRF          *float64 `json:"rrf,omitempty"`
	LexicalRank  *int     `json:"lexical_rank,omitempty"`
	SemanticRank *int     `json:"semantic_rank,omitempty"`
}

// ReindexInput defines the input schema for the reindex tool. Precedence
// for selecting locations: non-empty Paths > Path > current working
// directory.
type ReindexInput struct {
	Path         string   `json:"path,omitempty" jsonschema:"single location to reindex, defaults to the current working directory"`
	Paths        []string `json:"paths,omitempty" jsonschema:"multiple locations to reindex, takes precedence over path"`
	Force        bool     `json:"force,omitempty" jsonschema:"rebuild every file's chunks and embeddings even if unchanged"`
	PruneMissing *bool    `json:"prune_missing,omitempty" jsonschema:"delete stored files not observed during this scan, default true"`
}

// pruneMissing resolves the prune_missing default (true) when the caller
// omits the field.
func (r ReindexInput) pruneMissing() bool {
	if r.PruneMissing == nil {
		return true
	}
	return *r.PruneMissing
}

// ReindexOutput defines the output schema for the reindex tool.
type ReindexOutput struct {
	IndexedFiles     int      `json:"indexed_files"`
	SkippedFiles     int      `json:"skipped_files"`
	DeletedFiles     int      `json:"deleted_files"`
	IndexedPaths     []string `json:"indexed_paths,omitempty"`
	EmbeddingModel   string   `json:"embedding_model"`
	EmbeddingBackend string   `json:"embedding_backend"`
	GitFingerprint   string   `json:"git_fingerprint,omitempty"`
}

// GetChunkInput defines the input schema for the get_chunk tool.
type GetChunkInput struct {
	ChunkID string `json:"chunk_id" jsonschema:"the chunk_id to fetch"`
}

// GetChunkOutput defines the output schema for the get_chunk tool.
type GetChunkOutput struct {
	ChunkID     string `json:"chunk_id"`
	Path        string `json:"path"`
	HeadingPath string `json:"heading_path"`
	ChunkIndex  int    `json:"chunk_index"`
	Content     string `json:"content"`
	TokenCount  int    `json:"token_count"`
}

// GetFileInput defines the input schema for the get_file tool.
type GetFileInput struct {
	Path string `json:"path" jsonschema:"the indexed file path to fetch"`
}

// GetFileOutput defines the output schema for the get_file tool.
type GetFileOutput struct {
	Path       string            `json:"path"`
	SHA256     string            `json:"sha256"`
	MtimeNs    int64             `json:"mtime_ns"`
	SizeBytes  int64             `json:"size_bytes"`
	ChunkCount int               `json:"chunk_count"`
	Chunks     []GetChunkOutput  `json:"chunks"`
}

// IndexStatusInput defines the input schema for the index_status tool (no parameters).
type IndexStatusInput struct{}

// IndexStatusOutput defines the output schema for the index_status tool.
type IndexStatusOutput struct {
	FileCount        int    `json:"file_count"`
	ChunkCount       int    `json:"chunk_count"`
	EmbeddingModel   string `json:"embedding_model"`
	EmbeddingDim     string `json:"embedding_dim"`
	EmbeddingBackend string `json:"embedding_backend"`
	GitFingerprint   string `json:"git_fingerprint,omitempty"`
	DBPath           string `json:"db_path"`
}
