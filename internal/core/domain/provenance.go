package domain

import "fmt"

// ProvenanceLink maps a phrase of generated analysis to the exact span of
// source text that supports it. Links are created only by the provenance
// linker and never edited afterwards; they are the unit of trust in the
// whole system.
type ProvenanceLink struct {
	// Facet names the analysis facet the phrase belongs to.
	Facet FacetKind `json:"facet_kind"`

	// SummaryPhrase is a contiguous substring of the facet text.
	SummaryPhrase string `json:"summary_phrase"`

	// SourceChunkID is the chunk containing the supporting span. It is
	// always one of the chunks retrieved for the originating facet.
	SourceChunkID string `json:"source_chunk_id"`

	// Start and End are byte offsets WITHIN the chunk's text.
	Start int `json:"start"`
	End   int `json:"end"`

	// Exact is true when the phrase was found verbatim in the chunk;
	// false when the span was located by fuzzy repair.
	Exact bool `json:"exact"`
}

// Validate checks the link's structural invariants against its chunk.
func (l ProvenanceLink) Validate(chunk Chunk) error {
	if l.SummaryPhrase == "" {
		return fmt.Errorf("%w: provenance link has empty phrase", ErrInvalidInput)
	}
	if l.SourceChunkID != chunk.ID {
		return fmt.Errorf("%w: link references chunk %s, given %s", ErrInvalidInput, l.SourceChunkID, chunk.ID)
	}
	if l.Start < 0 || l.End <= l.Start || l.End > len(chunk.Text) {
		return fmt.Errorf("%w: link offsets [%d,%d) out of bounds for chunk %s (%d bytes)",
			ErrInvalidInput, l.Start, l.End, chunk.ID, len(chunk.Text))
	}
	return nil
}
