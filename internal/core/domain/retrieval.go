package domain

// ScoredChunk is a chunk ranked by hybrid retrieval.
type ScoredChunk struct {
	// Chunk is the retrieved chunk.
	Chunk Chunk `json:"chunk"`

	// Score is the fused relevance score in [0, 1].
	Score float64 `json:"score"`

	// DenseScore is the normalised vector similarity component.
	DenseScore float64 `json:"dense_score"`

	// LexicalScore is the normalised keyword score component.
	LexicalScore float64 `json:"lexical_score"`
}
