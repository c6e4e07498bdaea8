package domain

import "fmt"

// PreambleSection labels chunks that precede the first structural marker.
const PreambleSection = "Preamble"

// Chunk represents a contiguous, offset-addressable slice of a bill's text.
// Chunks are created once per ingestion and never mutated; re-fetching a
// bill with different text supersedes the whole set.
type Chunk struct {
	// ID is deterministic: "<documentID>_chunk_<position>".
	ID string `json:"id"`

	// DocumentID links to the bill this chunk was cut from.
	DocumentID string `json:"document_id"`

	// Text is the chunk content, a verbatim slice of the bill text.
	Text string `json:"text"`

	// Section is the nearest structural heading preceding the chunk,
	// e.g. "SEC. 101", or PreambleSection before the first marker.
	Section string `json:"section"`

	// StartChar and EndChar are byte offsets into the ORIGINAL bill
	// text, not into the chunk-local string.
	StartChar int `json:"start_char"`
	EndChar   int `json:"end_char"`

	// Page is the source page number when the upstream parser knows it.
	Page *int `json:"page,omitempty"`
}

// ChunkID builds the deterministic chunk identifier for a document position.
func ChunkID(documentID string, position int) string {
	return fmt.Sprintf("%s_chunk_%d", documentID, position)
}

// Validate checks the chunk's structural invariants.
func (c Chunk) Validate() error {
	if c.ID == "" || c.DocumentID == "" {
		return fmt.Errorf("%w: chunk missing identifiers", ErrInvalidInput)
	}
	if c.StartChar < 0 || c.EndChar < c.StartChar {
		return fmt.Errorf("%w: chunk %s has invalid offsets [%d,%d)", ErrInvalidInput, c.ID, c.StartChar, c.EndChar)
	}
	if c.EndChar-c.StartChar != len(c.Text) {
		return fmt.Errorf("%w: chunk %s offsets span %d bytes but text is %d",
			ErrInvalidInput, c.ID, c.EndChar-c.StartChar, len(c.Text))
	}
	return nil
}

// EmbeddingRecord is a chunk's vector representation plus back-reference.
// Records for a document are deleted and regenerated together; there is
// no partial update.
type EmbeddingRecord struct {
	// ChunkID links back to the embedded chunk.
	ChunkID string `json:"chunk_id"`

	// DocumentID links to the owning bill.
	DocumentID string `json:"document_id"`

	// Position is the chunk's ordinal position within the document,
	// used for deterministic tie-breaking in retrieval.
	Position int `json:"position"`

	// Vector is the fixed-dimension embedding.
	Vector []float32 `json:"vector"`

	// ModelVersion identifies the embedding model that produced the
	// vector. An index never mixes versions.
	ModelVersion string `json:"model_version"`
}
