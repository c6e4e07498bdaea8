package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/openuspolitics/billtrace/internal/core/domain"
	"github.com/openuspolitics/billtrace/internal/core/ports/driven"
	"github.com/openuspolitics/billtrace/internal/logger"
)

// Ensure VectorIndex implements the interface.
var _ driven.VectorIndex = (*VectorIndex)(nil)

// vectorEntry is one indexed chunk vector with its precomputed norm.
type vectorEntry struct {
	chunkID  string
	position int
	vector   []float32
	norm     float64
}

// vectorGeneration is an immutable snapshot of one document's vectors.
// Rebuild constructs a new generation and swaps the map pointer under
// the write lock; readers holding the old slice are unaffected.
type vectorGeneration struct {
	entries []vectorEntry
}

// VectorIndex provides cosine similarity search over per-document
// chunk embeddings. One embedding model version per index.
type VectorIndex struct {
	mu           sync.RWMutex
	modelVersion string
	generations  map[string]*vectorGeneration
}

// NewVectorIndex creates a vector index pinned to an embedding model
// version. Records from any other version are rejected.
func NewVectorIndex(modelVersion string) *VectorIndex {
	return &VectorIndex{
		modelVersion: modelVersion,
		generations:  make(map[string]*vectorGeneration),
	}
}

// Rebuild atomically replaces all records for a document.
func (idx *VectorIndex) Rebuild(_ context.Context, documentID string, records []domain.EmbeddingRecord) error {
	if documentID == "" {
		return fmt.Errorf("rebuild vector index: empty document ID: %w", domain.ErrInvalidInput)
	}

	gen := &vectorGeneration{entries: make([]vectorEntry, 0, len(records))}

	dimension := -1
	for _, rec := range records {
		if rec.ModelVersion != idx.modelVersion {
			return fmt.Errorf("chunk %s embedded with %q, index expects %q: %w",
				rec.ChunkID, rec.ModelVersion, idx.modelVersion, domain.ErrIndexVersionMismatch)
		}
		if dimension < 0 {
			dimension = len(rec.Vector)
		} else if len(rec.Vector) != dimension {
			return fmt.Errorf("chunk %s has dimension %d, expected %d: %w",
				rec.ChunkID, len(rec.Vector), dimension, domain.ErrInvalidInput)
		}

		gen.entries = append(gen.entries, vectorEntry{
			chunkID:  rec.ChunkID,
			position: rec.Position,
			vector:   rec.Vector,
			norm:     norm(rec.Vector),
		})
	}

	idx.mu.Lock()
	idx.generations[documentID] = gen
	idx.mu.Unlock()

	logger.Debug("Vector index rebuilt for %s: %d vectors", documentID, len(gen.entries))
	return nil
}

// Query finds the k nearest chunks to the query vector within one
// document. Ties break on ascending chunk position.
func (idx *VectorIndex) Query(_ context.Context, documentID string, vector []float32, k int) ([]driven.VectorHit, error) {
	if k <= 0 {
		return []driven.VectorHit{}, nil
	}

	idx.mu.RLock()
	gen := idx.generations[documentID]
	idx.mu.RUnlock()

	if gen == nil || len(gen.entries) == 0 {
		return []driven.VectorHit{}, nil
	}

	queryNorm := norm(vector)
	if queryNorm == 0 {
		return []driven.VectorHit{}, nil
	}

	hits := make([]driven.VectorHit, 0, len(gen.entries))
	for _, entry := range gen.entries {
		if len(entry.vector) != len(vector) {
			return nil, fmt.Errorf("query dimension %d does not match index dimension %d: %w",
				len(vector), len(entry.vector), domain.ErrInvalidInput)
		}
		if entry.norm == 0 {
			continue
		}
		hits = append(hits, driven.VectorHit{
			ChunkID:    entry.chunkID,
			Position:   entry.position,
			Similarity: dot(vector, entry.vector) / (queryNorm * entry.norm),
		})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Similarity != hits[j].Similarity {
			return hits[i].Similarity > hits[j].Similarity
		}
		return hits[i].Position < hits[j].Position
	})

	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// Remove drops a document's records from the index.
func (idx *VectorIndex) Remove(_ context.Context, documentID string) error {
	idx.mu.Lock()
	delete(idx.generations, documentID)
	idx.mu.Unlock()
	return nil
}

// Close releases resources.
func (idx *VectorIndex) Close() error {
	idx.mu.Lock()
	idx.generations = make(map[string]*vectorGeneration)
	idx.mu.Unlock()
	return nil
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

func norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}
