package driven

import "github.com/openuspolitics/billtrace/internal/core/domain"

// Chunker splits raw document text into ordered, overlapping chunks
// with stable offsets. Deterministic: identical text yields identical
// chunk boundaries and IDs.
type Chunker interface {
	// Chunk splits text into chunks. Empty text yields an empty
	// sequence; malformed text fails with domain.ErrDocumentParse.
	Chunk(documentID, text string) ([]domain.Chunk, error)
}
