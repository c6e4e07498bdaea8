package domain

import "time"

// FacetKind names one piece of generated analysis.
type FacetKind string

// Facet kinds produced for every analyzed bill.
const (
	// FacetSummary is the plain English summary.
	FacetSummary FacetKind = "plain_english_summary"

	// FacetProvisions lists the bill's key provisions.
	FacetProvisions FacetKind = "key_provisions"

	// FacetPracticalImpact explains effects on ordinary citizens.
	FacetPracticalImpact FacetKind = "practical_impact"

	// FacetFiscalImpact covers appropriations, costs and revenue effects.
	FacetFiscalImpact FacetKind = "fiscal_impact"
)

// AllFacetKinds returns the facet kinds in generation order.
func AllFacetKinds() []FacetKind {
	return []FacetKind{FacetSummary, FacetProvisions, FacetPracticalImpact, FacetFiscalImpact}
}

// IsValid returns true if the facet kind is recognised.
func (k FacetKind) IsValid() bool {
	switch k {
	case FacetSummary, FacetProvisions, FacetPracticalImpact, FacetFiscalImpact:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (k FacetKind) String() string {
	return string(k)
}

// Claim is one model-tagged phrase with the chunk it was drawn from.
// Claims are the generator's self-report and are unverified until the
// provenance linker has processed them.
type Claim struct {
	// Phrase is a contiguous substring of the facet text.
	Phrase string `json:"phrase"`

	// ChunkID is the chunk the model says supports the phrase.
	ChunkID string `json:"chunk_id"`
}

// AnalysisFacet is one generated piece of analysis, pre-validation.
// It is never persisted without having passed through the linker.
type AnalysisFacet struct {
	// Kind names the facet.
	Kind FacetKind `json:"facet_kind"`

	// Text is the generated prose. Empty when Ungenerated is true.
	Text string `json:"text"`

	// SupportingChunkIDs is the set of chunk IDs the generator was
	// grounded on, i.e. the retrieval result for this facet.
	SupportingChunkIDs []string `json:"supporting_chunk_ids"`

	// Claims are the model's self-reported phrase/chunk tags.
	Claims []Claim `json:"claims,omitempty"`

	// Ungenerated marks a facet whose retrieval came back empty.
	// The model is never called without grounding context, so the
	// facet is recorded with no text instead.
	Ungenerated bool `json:"ungenerated,omitempty"`
}

// AnalysisUpdate carries the output of one analyze pass for persistence.
// It replaces a record's analysis, provenance and topics as a unit.
type AnalysisUpdate struct {
	BillID      string
	Analysis    map[FacetKind]FacetResult
	Provenance  []ProvenanceLink
	Topics      []string
	GeneratedAt time.Time
	ModelUsed   string
}

// Retrieved reports whether a chunk ID was part of this facet's
// grounding context.
func (f AnalysisFacet) Retrieved(chunkID string) bool {
	for _, id := range f.SupportingChunkIDs {
		if id == chunkID {
			return true
		}
	}
	return false
}
