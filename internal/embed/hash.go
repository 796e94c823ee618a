package embed

import (
	"context"
	"hash/fnv"
	"math"
	"regexp"
	"strings"
)

// hashEmbedder is the deterministic fallback: a stable keyed hash of tokens
// projected into a fixed-dim vector. The same input always yields the same
// vector for a given dim, so the system stays fully functional offline and
// in CI without a model runtime.
type hashEmbedder struct {
	dim   int
	label string
}

func newHashEmbedder(dim int, requestedModel string) *hashEmbedder {
	return &hashEmbedder{dim: dim, label: "hash:" + requestedModel}
}

func (h *hashEmbedder) Close()            {}
func (h *hashEmbedder) ModelLabel() string { return h.label }
func (h *hashEmbedder) Dim() int           { return h.dim }

func (h *hashEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = h.embed(t)
	}
	return out, nil
}

func (h *hashEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return h.embed(text), nil
}

var wordPattern = regexp.MustCompile(`[A-Za-z0-9]+`)

func tokenize(text string) []string {
	return wordPattern.FindAllString(strings.ToLower(text), -1)
}

func trigrams(token string) []string {
	if len(token) < 3 {
		return []string{token}
	}
	out := make([]string, 0, len(token)-2)
	for i := 0; i+3 <= len(token); i++ {
		out = append(out, token[i:i+3])
	}
	return out
}

func hashToIndex(s string, dim int) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return int(h.Sum32() % uint32(dim))
}

// embed accumulates a weighted sum of per-token and per-trigram hash buckets
// into a dim-length vector, then L2-normalizes it. Token weight dominates
// (0.7) over character-trigram weight (0.3), so whole-word matches count
// more than partial overlaps while still tolerating minor spelling drift.
func (h *hashEmbedder) embed(text string) []float32 {
	vec := make([]float32, h.dim)
	tokens := tokenize(text)
	if len(tokens) == 0 {
		return vec
	}

	const tokenWeight = 0.7
	const trigramWeight = 0.3

	for _, tok := range tokens {
		vec[hashToIndex(tok, h.dim)] += tokenWeight
		for _, tg := range trigrams(tok) {
			vec[hashToIndex(tg, h.dim)] += trigramWeight
		}
	}

	var sumSq float64
	for _, x := range vec {
		sumSq += float64(x) * float64(x)
	}
	norm := math.Sqrt(sumSq)
	if norm < 1e-10 {
		return vec
	}
	inv := float32(1.0 / norm)
	for i := range vec {
		vec[i] *= inv
	}
	return vec
}
