package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/openuspolitics/billtrace/internal/core/domain"
	"github.com/openuspolitics/billtrace/internal/core/ports/driven"
	"github.com/openuspolitics/billtrace/internal/core/ports/driving"
	"github.com/openuspolitics/billtrace/internal/logger"
)

// Ensure PipelineService implements the interface.
var _ driving.PipelineService = (*PipelineService)(nil)

// PipelineService orchestrates the bill analysis pipeline: chunk,
// embed, index (Ingest) and retrieve, generate, link (Analyze).
//
// The stages are deliberately separate. Ingestion is cheap and safe to
// run frequently; analysis burns model tokens and runs deliberately,
// in small batches.
type PipelineService struct {
	chunker      driven.Chunker
	embedder     driven.EmbeddingService
	vectorIndex  driven.VectorIndex
	lexicalIndex driven.LexicalIndex
	store        driven.RecordStore
	llm          driven.LLMService

	retrieval *RetrievalService
	generator *Generator
	linker    *Linker
	cfg       domain.Config

	// Optional collaborators.
	classifier driven.Classifier
	lineage    *LineageTracker
}

// NewPipelineService creates the pipeline service and its internal
// retrieval, generation and linking stages.
func NewPipelineService(
	chunker driven.Chunker,
	embedder driven.EmbeddingService,
	vectorIndex driven.VectorIndex,
	lexicalIndex driven.LexicalIndex,
	store driven.RecordStore,
	llm driven.LLMService,
	cfg domain.Config,
) *PipelineService {
	return &PipelineService{
		chunker:      chunker,
		embedder:     embedder,
		vectorIndex:  vectorIndex,
		lexicalIndex: lexicalIndex,
		store:        store,
		llm:          llm,
		retrieval:    NewRetrievalService(store, vectorIndex, lexicalIndex, embedder, cfg.Retrieval),
		generator:    NewGenerator(llm, cfg.Generation),
		linker:       NewLinker(cfg.Linker),
		cfg:          cfg,
	}
}

// SetClassifier enables topic classification on analyzed bills.
func (s *PipelineService) SetClassifier(classifier driven.Classifier) {
	s.classifier = classifier
}

// SetLineageTracker enables lineage event recording.
func (s *PipelineService) SetLineageTracker(tracker *LineageTracker) {
	s.lineage = tracker
}

// Retrieval exposes the internal retrieval stage for inspection
// commands.
func (s *PipelineService) Retrieval() *RetrievalService {
	return s.retrieval
}

// Ingest chunks, embeds and indexes a bill, replacing any prior
// ingestion. A failure at any step aborts the run without persisting a
// partial record; the last successfully persisted state survives.
func (s *PipelineService) Ingest(ctx context.Context, bill domain.Bill) (*driving.IngestResult, error) {
	if bill.ID == "" {
		return nil, fmt.Errorf("ingest: bill has no ID: %w", domain.ErrInvalidInput)
	}

	logger.Section("Ingest " + bill.ID)
	start := time.Now()

	chunks, err := s.chunker.Chunk(bill.ID, bill.Text)
	if err != nil {
		return nil, fmt.Errorf("chunk %s: %w", bill.ID, err)
	}
	logger.Info("Chunked %s: %d chunks", bill.ID, len(chunks))

	embeddings, err := s.embedChunks(ctx, bill.ID, chunks)
	if err != nil {
		return nil, err
	}

	if err := s.vectorIndex.Rebuild(ctx, bill.ID, embeddings); err != nil {
		return nil, fmt.Errorf("rebuild vector index for %s: %w", bill.ID, err)
	}
	if err := s.lexicalIndex.Rebuild(ctx, bill.ID, chunks); err != nil {
		return nil, fmt.Errorf("rebuild lexical index for %s: %w", bill.ID, err)
	}

	record := &domain.BillRecord{
		BillID:         bill.ID,
		Number:         bill.Number,
		Title:          bill.Title,
		Chunks:         chunks,
		EmbeddingModel: s.embedder.ModelName(),
		IngestedAt:     time.Now().UTC(),
	}
	if err := s.store.SaveIngest(ctx, record, embeddings); err != nil {
		return nil, fmt.Errorf("persist ingest for %s: %w", bill.ID, err)
	}

	s.recordLineage(domain.LineageEvent{
		Type:   domain.LineageProcessing,
		BillID: bill.ID,
		Step:   "ingest",
		Details: map[string]any{
			"chunks":          len(chunks),
			"embedding_model": s.embedder.ModelName(),
		},
	})

	result := &driving.IngestResult{
		BillID:         bill.ID,
		ChunkCount:     len(chunks),
		EmbeddingModel: s.embedder.ModelName(),
		Duration:       time.Since(start),
	}
	logger.Info("Ingested %s in %s", bill.ID, result.Duration.Round(time.Millisecond))
	return result, nil
}

// embedChunks embeds all chunk texts in one batch call.
func (s *PipelineService) embedChunks(ctx context.Context, billID string, chunks []domain.Chunk) ([]domain.EmbeddingRecord, error) {
	if len(chunks) == 0 {
		return []domain.EmbeddingRecord{}, nil
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}

	vectors, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed %d chunks for %s: %w", len(chunks), billID, err)
	}
	if len(vectors) != len(chunks) {
		return nil, fmt.Errorf("embedding service returned %d vectors for %d chunks: %w",
			len(vectors), len(chunks), domain.ErrEmbeddingUnavailable)
	}

	records := make([]domain.EmbeddingRecord, len(chunks))
	for i, chunk := range chunks {
		records[i] = domain.EmbeddingRecord{
			ChunkID:      chunk.ID,
			DocumentID:   billID,
			Position:     i,
			Vector:       vectors[i],
			ModelVersion: s.embedder.ModelName(),
		}
	}
	return records, nil
}

// Analyze generates and links every analysis facet for an ingested
// bill. A facet-local failure fails that facet closed and leaves its
// siblings intact; the analysis is persisted as a unit at the end.
func (s *PipelineService) Analyze(ctx context.Context, billID string) (*driving.AnalyzeResult, error) {
	logger.Section("Analyze " + billID)
	start := time.Now()

	record, err := s.store.GetRecord(ctx, billID)
	if err != nil {
		return nil, fmt.Errorf("load record %s: %w", billID, err)
	}

	// Rebuild the in-process indexes from stored embeddings so analyze
	// works in a fresh process without re-embedding.
	if err := s.restoreIndexes(ctx, record); err != nil {
		return nil, err
	}

	analysis := make(map[domain.FacetKind]domain.FacetResult)
	var links []domain.ProvenanceLink
	var totals LinkStats
	var facetErrs []error

	for _, kind := range domain.AllFacetKinds() {
		facetLinks, facetResult, stats, err := s.analyzeFacet(ctx, record, kind)
		if err != nil {
			logger.Warn("Facet %s failed for %s: %v", kind, billID, err)
			facetErrs = append(facetErrs, err)
			continue
		}

		analysis[kind] = facetResult
		links = append(links, facetLinks...)
		totals.Exact += stats.Exact
		totals.Fuzzy += stats.Fuzzy
		totals.Rejected += stats.Rejected
	}

	if len(analysis) == 0 {
		return nil, fmt.Errorf("analyze %s: all facets failed: %w", billID, facetErrs[0])
	}

	topics := s.classify(record)

	update := domain.AnalysisUpdate{
		BillID:      billID,
		Analysis:    analysis,
		Provenance:  links,
		Topics:      topics,
		GeneratedAt: time.Now().UTC(),
		ModelUsed:   s.llm.ModelName(),
	}
	if err := s.store.SaveAnalysis(ctx, update); err != nil {
		return nil, fmt.Errorf("persist analysis for %s: %w", billID, err)
	}

	s.recordLineage(domain.LineageEvent{
		Type:   domain.LineageAnalysis,
		BillID: billID,
		Model:  s.llm.ModelName(),
		Details: map[string]any{
			"facets":         len(analysis),
			"links_exact":    totals.Exact,
			"links_fuzzy":    totals.Fuzzy,
			"links_rejected": totals.Rejected,
		},
	})

	result := &driving.AnalyzeResult{
		BillID:      billID,
		Facets:      analysis,
		Links:       links,
		LinkedExact: totals.Exact,
		LinkedFuzzy: totals.Fuzzy,
		Unlinked:    totals.Rejected,
		Topics:      topics,
		Duration:    time.Since(start),
	}
	logger.Info("Analyzed %s: %d facets, %d links (%d exact, %d fuzzy, %d rejected) in %s",
		billID, len(analysis), len(links), totals.Exact, totals.Fuzzy, totals.Rejected,
		result.Duration.Round(time.Millisecond))
	return result, nil
}

// analyzeFacet runs retrieve, generate, link for one facet.
func (s *PipelineService) analyzeFacet(
	ctx context.Context, record *domain.BillRecord, kind domain.FacetKind,
) ([]domain.ProvenanceLink, domain.FacetResult, LinkStats, error) {
	scored, err := s.retrieval.Retrieve(ctx, record.BillID, FacetQuery(kind), s.cfg.Retrieval.TopK)
	if err != nil {
		return nil, domain.FacetResult{}, LinkStats{}, fmt.Errorf("retrieve for %s: %w", kind, err)
	}

	facet, err := s.generator.Generate(ctx, kind, record.Title, scored)
	if err != nil {
		return nil, domain.FacetResult{}, LinkStats{}, err
	}

	chunks := make([]domain.Chunk, len(scored))
	for i, sc := range scored {
		chunks[i] = sc.Chunk
	}
	facetLinks, stats := s.linker.Link(facet, chunks)

	result := domain.FacetResult{
		Text:               facet.Text,
		Ungenerated:        facet.Ungenerated,
		SupportingChunkIDs: facet.SupportingChunkIDs,
		Rejected:           stats.Rejected,
	}
	return facetLinks, result, stats, nil
}

// restoreIndexes rebuilds both retrieval indexes from persisted state.
func (s *PipelineService) restoreIndexes(ctx context.Context, record *domain.BillRecord) error {
	embeddings, err := s.store.GetEmbeddings(ctx, record.BillID)
	if err != nil {
		return fmt.Errorf("load embeddings for %s: %w", record.BillID, err)
	}
	if err := s.vectorIndex.Rebuild(ctx, record.BillID, embeddings); err != nil {
		return fmt.Errorf("restore vector index for %s: %w", record.BillID, err)
	}
	if err := s.lexicalIndex.Rebuild(ctx, record.BillID, record.Chunks); err != nil {
		return fmt.Errorf("restore lexical index for %s: %w", record.BillID, err)
	}
	return nil
}

// recordLineage records an event when a tracker is attached.
func (s *PipelineService) recordLineage(event domain.LineageEvent) {
	if s.lineage != nil {
		s.lineage.Record(event)
	}
}

// classify assigns topic labels from the bill's title and text.
func (s *PipelineService) classify(record *domain.BillRecord) []string {
	if s.classifier == nil {
		return nil
	}

	var sb strings.Builder
	sb.WriteString(record.Title)
	for _, chunk := range record.Chunks {
		sb.WriteByte(' ')
		sb.WriteString(chunk.Text)
	}
	return s.classifier.Classify(sb.String())
}

// Process runs Ingest then Analyze for one bill.
func (s *PipelineService) Process(ctx context.Context, bill domain.Bill) (*driving.ProcessResult, error) {
	result := &driving.ProcessResult{BillID: bill.ID}

	ingest, err := s.Ingest(ctx, bill)
	if err != nil {
		result.Err = err
		return result, err
	}
	result.Ingest = ingest

	analyze, err := s.Analyze(ctx, bill.ID)
	if err != nil {
		result.Err = err
		return result, err
	}
	result.Analyze = analyze

	return result, nil
}

// ProcessAll runs Process for each bill with a bounded worker pool.
// Bills are independent; a failure is recorded in that bill's result
// and never aborts the batch.
func (s *PipelineService) ProcessAll(ctx context.Context, bills []domain.Bill) []driving.ProcessResult {
	workers := s.cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	if workers > len(bills) {
		workers = len(bills)
	}

	results := make([]driving.ProcessResult, len(bills))
	jobs := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				res, err := s.Process(ctx, bills[i])
				if err != nil {
					logger.Warn("Pipeline failed for %s: %v", bills[i].ID, err)
				}
				results[i] = *res
			}
		}()
	}

	for i := range bills {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	return results
}
