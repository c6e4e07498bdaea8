package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/openuspolitics/billtrace/internal/core/domain"
	"github.com/openuspolitics/billtrace/internal/core/ports/driven"
	"github.com/openuspolitics/billtrace/internal/core/ports/driving"
	"github.com/openuspolitics/billtrace/internal/logger"
)

// Ensure RetrievalService implements the interface.
var _ driving.RetrievalService = (*RetrievalService)(nil)

// hybridScore holds the per-chunk normalised score components.
type hybridScore struct {
	dense   float64
	lexical float64
}

// RetrievalService ranks a bill's chunks against a query by fusing
// dense vector similarity with BM25 keyword scoring.
type RetrievalService struct {
	store        driven.RecordStore
	vectorIndex  driven.VectorIndex
	lexicalIndex driven.LexicalIndex
	embedder     driven.EmbeddingService
	cfg          domain.RetrievalConfig
}

// NewRetrievalService creates a retrieval service.
func NewRetrievalService(
	store driven.RecordStore,
	vectorIndex driven.VectorIndex,
	lexicalIndex driven.LexicalIndex,
	embedder driven.EmbeddingService,
	cfg domain.RetrievalConfig,
) *RetrievalService {
	return &RetrievalService{
		store:        store,
		vectorIndex:  vectorIndex,
		lexicalIndex: lexicalIndex,
		embedder:     embedder,
		cfg:          cfg,
	}
}

// Retrieve returns the top-k chunks of a bill for a query. A bill with
// no indexed chunks yields an empty result, not an error; callers must
// handle the empty-context case.
func (s *RetrievalService) Retrieve(ctx context.Context, billID, query string, k int) ([]domain.ScoredChunk, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		logger.Debug("Empty query for %s, returning no chunks", billID)
		return []domain.ScoredChunk{}, nil
	}
	if k <= 0 {
		k = s.cfg.TopK
	}

	record, err := s.store.GetRecord(ctx, billID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			logger.Debug("No record for %s, returning no chunks", billID)
			return []domain.ScoredChunk{}, nil
		}
		return nil, fmt.Errorf("load record %s: %w", billID, err)
	}
	if len(record.Chunks) == 0 {
		return []domain.ScoredChunk{}, nil
	}

	// Over-fetch both rankings so fusion and dedupe have headroom.
	internalLimit := k * 2

	var vectorHits []driven.VectorHit
	var lexicalHits []driven.LexicalHit
	var vectorErr, lexicalErr error

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		vectorHits, vectorErr = s.denseSearch(ctx, billID, query, internalLimit)
	}()

	go func() {
		defer wg.Done()
		lexicalHits, lexicalErr = s.lexicalIndex.Search(ctx, billID, query, internalLimit)
	}()

	wg.Wait()

	// Degrade to the surviving ranking if one side fails.
	if vectorErr != nil && lexicalErr != nil {
		return nil, fmt.Errorf("hybrid retrieval: dense=%w, lexical=%w", vectorErr, lexicalErr)
	}
	if vectorErr != nil {
		logger.Warn("Dense retrieval failed for %s, using lexical only: %v", billID, vectorErr)
	}
	if lexicalErr != nil {
		logger.Warn("Lexical retrieval failed for %s, using dense only: %v", billID, lexicalErr)
	}

	scores := fuseScores(vectorHits, lexicalHits)
	logger.Debug("Retrieval for %s: %d dense + %d lexical hits, %d fused",
		billID, len(vectorHits), len(lexicalHits), len(scores))

	ranked := s.hydrate(record, scores)
	if s.cfg.DedupeOverlap > 0 {
		ranked = dedupeOverlapping(ranked, s.cfg.DedupeOverlap)
	}

	if len(ranked) > k {
		ranked = ranked[:k]
	}
	return ranked, nil
}

// denseSearch embeds the query and searches the vector index.
func (s *RetrievalService) denseSearch(ctx context.Context, billID, query string, limit int) ([]driven.VectorHit, error) {
	if s.embedder == nil || s.vectorIndex == nil {
		return nil, domain.ErrVectorIndexUnavailable
	}

	vector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	hits, err := s.vectorIndex.Query(ctx, billID, vector, limit)
	if err != nil {
		return nil, fmt.Errorf("vector query: %w", err)
	}
	return hits, nil
}

// fuseScores min-max normalises each ranking to [0, 1]. A chunk
// present in only one ranking gets a zero contribution from the other.
func fuseScores(vectorHits []driven.VectorHit, lexicalHits []driven.LexicalHit) map[string]*hybridScore {
	components := make(map[string]*hybridScore)

	denseMin, denseMax := hitRange(len(vectorHits), func(i int) float64 { return vectorHits[i].Similarity })
	for _, hit := range vectorHits {
		c := component(components, hit.ChunkID)
		c.dense = normalise(hit.Similarity, denseMin, denseMax)
	}

	lexMin, lexMax := hitRange(len(lexicalHits), func(i int) float64 { return lexicalHits[i].Score })
	for _, hit := range lexicalHits {
		c := component(components, hit.ChunkID)
		c.lexical = normalise(hit.Score, lexMin, lexMax)
	}

	return components
}

func component(m map[string]*hybridScore, id string) *hybridScore {
	if c, ok := m[id]; ok {
		return c
	}
	c := &hybridScore{}
	m[id] = c
	return c
}

func hitRange(n int, score func(int) float64) (float64, float64) {
	if n == 0 {
		return 0, 0
	}
	lo, hi := score(0), score(0)
	for i := 1; i < n; i++ {
		v := score(i)
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi
}

// normalise maps a raw score into [0, 1]. A degenerate range (all
// scores equal) maps to 1 so a single strong hit is not zeroed out.
func normalise(v, lo, hi float64) float64 {
	if hi <= lo {
		return 1
	}
	return (v - lo) / (hi - lo)
}

// hydrate resolves scored chunk IDs against the record's chunks,
// applies the configured weights and orders the result by descending
// fused score, then document position.
func (s *RetrievalService) hydrate(record *domain.BillRecord, scores map[string]*hybridScore) []domain.ScoredChunk {
	ranked := make([]domain.ScoredChunk, 0, len(scores))
	for _, chunk := range record.Chunks {
		c, ok := scores[chunk.ID]
		if !ok {
			continue
		}
		ranked = append(ranked, domain.ScoredChunk{
			Chunk:        chunk,
			Score:        s.cfg.DenseWeight*c.dense + s.cfg.LexicalWeight*c.lexical,
			DenseScore:   c.dense,
			LexicalScore: c.lexical,
		})
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].Chunk.StartChar < ranked[j].Chunk.StartChar
	})
	return ranked
}

// dedupeOverlapping drops chunks sharing more than limit characters
// with a higher-scored chunk already kept, so the generator's context
// budget is not spent on near-duplicate text from the chunker's
// overlap.
func dedupeOverlapping(ranked []domain.ScoredChunk, limit int) []domain.ScoredChunk {
	kept := make([]domain.ScoredChunk, 0, len(ranked))
	for _, candidate := range ranked {
		duplicate := false
		for _, existing := range kept {
			if sharedChars(candidate.Chunk, existing.Chunk) > limit {
				duplicate = true
				break
			}
		}
		if !duplicate {
			kept = append(kept, candidate)
		}
	}
	return kept
}

// sharedChars returns the number of characters two chunks' ranges share.
func sharedChars(a, b domain.Chunk) int {
	lo := max(a.StartChar, b.StartChar)
	hi := min(a.EndChar, b.EndChar)
	if hi <= lo {
		return 0
	}
	return hi - lo
}
