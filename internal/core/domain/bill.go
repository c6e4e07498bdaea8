package domain

import "time"

// Bill is the input boundary: an identifier and raw text already fetched
// by an external collaborator. The core never fetches over the network.
type Bill struct {
	// ID is the bill identifier, e.g. "hr1234-118".
	ID string `json:"id"`

	// Number is the human-readable designation, e.g. "H.R. 1234".
	Number string `json:"number"`

	// Title is the bill title.
	Title string `json:"title"`

	// Text is the full raw bill text.
	Text string `json:"text"`
}

// FacetResult is a validated facet as persisted: the generated text plus
// its resolved provenance links. A facet with zero links is still kept;
// absence of provenance is signal, not an error.
type FacetResult struct {
	// Text is the generated prose, empty for ungenerated facets.
	Text string `json:"text"`

	// Ungenerated marks a facet skipped for lack of grounding context.
	Ungenerated bool `json:"ungenerated,omitempty"`

	// SupportingChunkIDs is the grounding set the facet was generated from.
	SupportingChunkIDs []string `json:"supporting_chunk_ids,omitempty"`

	// Rejected counts claim candidates that could not be substantiated.
	Rejected int `json:"rejected,omitempty"`
}

// BillRecord is the aggregate persisted per bill and the sole contract the
// rendering layer depends on. It owns its chunks, analysis and provenance
// exclusively; nothing is shared across documents.
type BillRecord struct {
	// BillID identifies the bill.
	BillID string `json:"bill_id"`

	// Number and Title mirror the input bill metadata.
	Number string `json:"number"`
	Title  string `json:"title"`

	// Topics are classifier-assigned labels, e.g. "healthcare".
	Topics []string `json:"topics,omitempty"`

	// Chunks is the ordered chunk sequence from ingestion.
	Chunks []Chunk `json:"chunks"`

	// EmbeddingModel is the model version the chunks were embedded with.
	EmbeddingModel string `json:"embedding_model,omitempty"`

	// Analysis holds one validated result per facet kind.
	Analysis map[FacetKind]FacetResult `json:"analysis"`

	// Provenance holds every validated link, ordered by facet and by
	// phrase position within the facet text.
	Provenance []ProvenanceLink `json:"provenance"`

	// GeneratedAt is when the analysis pass completed.
	GeneratedAt time.Time `json:"generated_at,omitzero"`

	// ModelUsed names the language model that produced the analysis.
	ModelUsed string `json:"model_used,omitempty"`

	// IngestedAt is when the chunk/embed pass completed.
	IngestedAt time.Time `json:"ingested_at,omitzero"`
}

// Facet returns the persisted result for a facet kind, if present.
func (r *BillRecord) Facet(kind FacetKind) (FacetResult, bool) {
	res, ok := r.Analysis[kind]
	return res, ok
}

// ChunkByID returns the chunk with the given ID, if owned by this record.
func (r *BillRecord) ChunkByID(id string) (Chunk, bool) {
	for _, c := range r.Chunks {
		if c.ID == id {
			return c, true
		}
	}
	return Chunk{}, false
}
