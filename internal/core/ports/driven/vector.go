package driven

import (
	"context"

	"github.com/openuspolitics/billtrace/internal/core/domain"
)

// VectorIndex provides per-document semantic similarity search.
//
// A document's records are replaced as a unit: Rebuild swaps in a new
// generation atomically, so concurrent readers never observe a
// half-rebuilt index. One embedding model version per index; mixing
// versions fails with domain.ErrIndexVersionMismatch.
type VectorIndex interface {
	// Rebuild atomically replaces all records for a document.
	Rebuild(ctx context.Context, documentID string, records []domain.EmbeddingRecord) error

	// Query finds the k nearest chunks to the query vector within one
	// document, by cosine similarity. Ties break on ascending chunk
	// position so retrieval is deterministic for identical inputs.
	Query(ctx context.Context, documentID string, vector []float32, k int) ([]VectorHit, error)

	// Remove drops a document's records from the index.
	Remove(ctx context.Context, documentID string) error

	// Close releases resources.
	Close() error
}

// VectorHit represents a similarity search result.
type VectorHit struct {
	// ChunkID is the matched chunk.
	ChunkID string

	// Position is the chunk's ordinal position within its document.
	Position int

	// Similarity is the cosine similarity score (0-1).
	Similarity float64
}
