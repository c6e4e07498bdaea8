package driving

import (
	"context"
	"time"

	"github.com/openuspolitics/billtrace/internal/core/domain"
)

// PipelineService runs the bill analysis pipeline.
//
// The pipeline splits into a cheap stage (Ingest: chunk, embed, index)
// and an expensive stage (Analyze: retrieve, generate, link), so a bill
// can be re-analysed after a prompt or model change without paying for
// re-embedding.
type PipelineService interface {
	// Ingest chunks a bill's text, embeds the chunks and rebuilds the
	// bill's indexes. Replaces any prior ingestion of the same bill and
	// clears stale analysis output.
	Ingest(ctx context.Context, bill domain.Bill) (*IngestResult, error)

	// Analyze generates grounded analysis facets for an ingested bill
	// and links each claim back to its source chunk. Returns
	// domain.ErrNotFound if the bill was never ingested.
	Analyze(ctx context.Context, billID string) (*AnalyzeResult, error)

	// Process runs Ingest then Analyze for a single bill.
	Process(ctx context.Context, bill domain.Bill) (*ProcessResult, error)

	// ProcessAll runs Process for each bill using a bounded worker
	// pool. Failures are reported per bill; one bad bill never aborts
	// the batch.
	ProcessAll(ctx context.Context, bills []domain.Bill) []ProcessResult
}

// IngestResult summarises an ingestion run.
type IngestResult struct {
	// BillID is the bill that was ingested.
	BillID string

	// ChunkCount is the number of chunks produced.
	ChunkCount int

	// EmbeddingModel is the model version the index was built with.
	EmbeddingModel string

	// Duration is wall-clock time for the run.
	Duration time.Duration
}

// AnalyzeResult summarises an analysis run.
type AnalyzeResult struct {
	// BillID is the bill that was analysed.
	BillID string

	// Facets holds the generated facet results, keyed by kind.
	Facets map[domain.FacetKind]domain.FacetResult

	// Links is the provenance produced across all facets.
	Links []domain.ProvenanceLink

	// LinkedExact counts links resolved by exact substring match.
	LinkedExact int

	// LinkedFuzzy counts links resolved by fuzzy repair.
	LinkedFuzzy int

	// Unlinked counts claims no source position could be found for.
	Unlinked int

	// Topics are the classifier labels, empty when no classifier is
	// configured.
	Topics []string

	// Duration is wall-clock time for the run.
	Duration time.Duration
}

// ProcessResult pairs a bill with the outcome of its full pipeline run.
type ProcessResult struct {
	// BillID is the bill that was processed.
	BillID string

	// Ingest is the ingestion summary, nil if ingestion failed.
	Ingest *IngestResult

	// Analyze is the analysis summary, nil if analysis failed or was
	// never reached.
	Analyze *AnalyzeResult

	// Err is the first error encountered, nil on success.
	Err error
}
