// Package search implements lexical and semantic candidate generation,
// Reciprocal Rank Fusion, and the mode-dispatching search service.
package search

// Mode selects which candidate-generation modalities run.
type Mode string

const (
	ModeLexical  Mode = "lexical"
	ModeSemantic Mode = "semantic"
	ModeHybrid   Mode = "hybrid"
)

const (
	DefaultTopK = 10
	MinTopK     = 1
	MaxTopK     = 100
)

// ScoreBreakdown carries the mode-specific scoring fields for one result.
// Exactly one of BM25/Cosine is set outside hybrid mode; in hybrid mode RRF
// plus both ranks are set and BM25/Cosine are omitted, keeping each mode's
// scoring fields isolated from the others.
type ScoreBreakdown struct {
	BM25         *float64 `json:"bm25,omitempty"`
	Cosine       *float64 `json:"cosine,omitempty"`
	RRF          *float64 `json:"rrf,omitempty"`
	LexicalRank  *int     `json:"lexical_rank,omitempty"`
	SemanticRank *int     `json:"semantic_rank,omitempty"`
}

// Result is one assembled search hit.
type Result struct {
	ChunkID        string
	Path           string
	HeadingPath    string
	ChunkIndex     int
	Content        string
	ScoreBreakdown ScoreBreakdown
}

func ptrFloat(f float64) *float64 { return &f }
func ptrInt(i int) *int           { return &i }
