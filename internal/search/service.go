package search

import (
	"context"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/riffluxdb/rifflux/internal/embed"
	"github.com/riffluxdb/rifflux/internal/errs"
	"github.com/riffluxdb/rifflux/internal/store"
)

// Options controls one Search call.
type Options struct {
	TopK int
	Mode Mode
}

func (o Options) withDefaults() Options {
	if o.TopK <= 0 {
		o.TopK = DefaultTopK
	}
	if o.Mode == "" {
		o.Mode = ModeHybrid
	}
	return o
}

func (o Options) validate() error {
	if o.TopK < MinTopK || o.TopK > MaxTopK {
		return errs.New(errs.InvalidInput, "top_k out of range [1,100]")
	}
	switch o.Mode {
	case ModeLexical, ModeSemantic, ModeHybrid:
		return nil
	default:
		return errs.New(errs.InvalidInput, "unknown mode: "+string(o.Mode))
	}
}

// Service is the mode-dispatching search facade: candidate generation over
// the store, RRF fusion in hybrid mode, and result assembly.
type Service struct {
	Store    *store.Store
	Embedder embed.Embedder
}

// Search runs query against the configured modalities and returns top_k
// results. It never errors on an empty corpus, an empty query, or an
// unavailable embedder — those conditions degrade to an empty candidate
// list for the affected modality rather than failing the whole call.
func (s *Service) Search(ctx context.Context, query string, opts Options) ([]Result, error) {
	opts = opts.withDefaults()
	if err := opts.validate(); err != nil {
		return nil, err
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return []Result{}, nil
	}

	candidateLimit := opts.TopK * 2

	var lexHits []store.LexicalHit
	var semHits []store.SemanticHit

	switch opts.Mode {
	case ModeLexical:
		hits, err := LexicalCandidates(ctx, s.Store, query, candidateLimit)
		if err != nil {
			return nil, err
		}
		lexHits = hits

	case ModeSemantic:
		hits, err := s.semanticCandidates(ctx, query, candidateLimit)
		if err != nil {
			return nil, err
		}
		semHits = hits

	case ModeHybrid:
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			hits, err := LexicalCandidates(gctx, s.Store, query, candidateLimit)
			if err != nil {
				return err
			}
			lexHits = hits
			return nil
		})
		g.Go(func() error {
			hits, err := s.semanticCandidates(gctx, query, candidateLimit)
			if err != nil {
				return err
			}
			semHits = hits
			return nil
		})
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	return assemble(opts, lexHits, semHits), nil
}

// semanticCandidates embeds the query and scores stored vectors. Embedder
// unavailability (nil Embedder, or an EmbedderUnavailable-kind failure
// mid-embed) degrades to an empty candidate list rather than an error.
func (s *Service) semanticCandidates(ctx context.Context, query string, limit int) ([]store.SemanticHit, error) {
	if s.Embedder == nil {
		return []store.SemanticHit{}, nil
	}
	vec, err := s.Embedder.EmbedQuery(ctx, query)
	if err != nil {
		if errs.KindOf(err) == errs.EmbedderUnavailable {
			return []store.SemanticHit{}, nil
		}
		return nil, err
	}
	return SemanticCandidates(ctx, s.Store, vec, limit)
}

// assemble builds the final Result rows per mode, truncated to top_k. In
// lexical/semantic-only mode the ScoreBreakdown carries only that
// modality's raw score. In hybrid mode it carries the fused RRF score plus
// both ranks (null where a chunk was absent from that list) — raw BM25 and
// cosine values are never mixed into the hybrid breakdown.
func assemble(opts Options, lexHits []store.LexicalHit, semHits []store.SemanticHit) []Result {
	switch opts.Mode {
	case ModeLexical:
		out := make([]Result, 0, len(lexHits))
		for _, h := range lexHits {
			out = append(out, Result{
				ChunkID:        h.ChunkID,
				Path:           h.Path,
				HeadingPath:    h.HeadingPath,
				ChunkIndex:     h.ChunkIndex,
				Content:        h.Content,
				ScoreBreakdown: ScoreBreakdown{BM25: ptrFloat(h.BM25Score)},
			})
		}
		return truncate(out, opts.TopK)

	case ModeSemantic:
		out := make([]Result, 0, len(semHits))
		for _, h := range semHits {
			out = append(out, Result{
				ChunkID:        h.ChunkID,
				Path:           h.Path,
				HeadingPath:    h.HeadingPath,
				ChunkIndex:     h.ChunkIndex,
				Content:        h.Content,
				ScoreBreakdown: ScoreBreakdown{Cosine: ptrFloat(h.CosineScore)},
			})
		}
		return truncate(out, opts.TopK)

	default: // ModeHybrid
		rows := make(map[string]Result, len(lexHits)+len(semHits))
		for _, h := range lexHits {
			rows[h.ChunkID] = Result{
				ChunkID: h.ChunkID, Path: h.Path, HeadingPath: h.HeadingPath,
				ChunkIndex: h.ChunkIndex, Content: h.Content,
			}
		}
		for _, h := range semHits {
			if _, ok := rows[h.ChunkID]; !ok {
				rows[h.ChunkID] = Result{
					ChunkID: h.ChunkID, Path: h.Path, HeadingPath: h.HeadingPath,
					ChunkIndex: h.ChunkIndex, Content: h.Content,
				}
			}
		}

		fused := Fuse(LexicalChunkIDs(lexHits), SemanticChunkIDs(semHits), DefaultRRFConstant)
		out := make([]Result, 0, len(fused))
		for _, f := range fused {
			r, ok := rows[f.ChunkID]
			if !ok {
				continue
			}
			r.ScoreBreakdown = ScoreBreakdown{
				RRF:          ptrFloat(f.Score),
				LexicalRank:  f.LexicalRank,
				SemanticRank: f.SemanticRank,
			}
			out = append(out, r)
		}
		return truncate(out, opts.TopK)
	}
}

func truncate(results []Result, topK int) []Result {
	if len(results) > topK {
		return results[:topK]
	}
	return results
}
