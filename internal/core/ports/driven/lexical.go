package driven

import (
	"context"

	"github.com/openuspolitics/billtrace/internal/core/domain"
)

// LexicalIndex provides per-document keyword search (BM25).
//
// Legal section headers and identifier tokens ("SEC. 402(a)(3)") are
// semantically diluted in dense embeddings; lexical scoring recovers
// the exact-match precision hybrid retrieval depends on.
type LexicalIndex interface {
	// Rebuild atomically replaces the keyword index for a document.
	Rebuild(ctx context.Context, documentID string, chunks []domain.Chunk) error

	// Search scores the document's chunks against the query and returns
	// up to k hits with non-zero scores, best first.
	Search(ctx context.Context, documentID string, query string, k int) ([]LexicalHit, error)

	// Remove drops a document's index.
	Remove(ctx context.Context, documentID string) error

	// Close releases resources.
	Close() error
}

// LexicalHit represents a keyword search result.
type LexicalHit struct {
	// ChunkID is the matched chunk.
	ChunkID string

	// Position is the chunk's ordinal position within its document.
	Position int

	// Score is the BM25 relevance score.
	Score float64
}
