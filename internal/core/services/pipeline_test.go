package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	index "github.com/openuspolitics/billtrace/internal/adapters/driven/index/memory"
	storage "github.com/openuspolitics/billtrace/internal/adapters/driven/storage/memory"
	"github.com/openuspolitics/billtrace/internal/chunker"
	"github.com/openuspolitics/billtrace/internal/core/domain"
)

// mockClassifier implements driven.Classifier.
type mockClassifier struct {
	topics []string
}

func (m *mockClassifier) Classify(_ string) []string { return m.topics }

const testBillText = `A BILL to improve access to care at rural hospitals.

SEC. 2. GRANT PROGRAM.
The Secretary shall establish a grant program for rural hospitals. There is authorized to be appropriated $50 million for each fiscal year.

SEC. 3. REPORTS.
Not later than 1 year after enactment, the Secretary shall report to Congress on the effectiveness of the program.`

// facetResponse scripts one valid generation response per facet, in
// generation order, each claiming a phrase present in the first chunk.
func facetResponses() []string {
	return []string{
		`{"text": "The bill creates a grant program for rural hospitals.", "claims": [{"phrase": "a grant program for rural hospitals", "chunk_id": "hr-1_chunk_0"}]}`,
		`{"text": "Key provision: the Secretary shall establish a grant program.", "claims": [{"phrase": "the Secretary shall establish a grant program", "chunk_id": "hr-1_chunk_0"}]}`,
		`{"text": "Rural hospitals gain access to new grant funding.", "claims": [{"phrase": "grant funding", "chunk_id": "hr-1_chunk_0"}]}`,
		`{"text": "Authorizes $50 million for each fiscal year.", "claims": [{"phrase": "$50 million for each fiscal year", "chunk_id": "hr-1_chunk_0"}]}`,
	}
}

func newTestPipeline(llm *mockLLM) (*PipelineService, *storage.RecordStore, *LineageTracker) {
	store := storage.NewRecordStore()
	embedder := &mockEmbedder{}
	vecIdx := index.NewVectorIndex(embedder.ModelName())
	lexIdx := index.NewLexicalIndex()

	cfg := domain.DefaultConfig()
	cfg.Generation.RetryBaseDelay = 1 // no real backoff in tests

	svc := NewPipelineService(
		chunker.New(),
		embedder,
		vecIdx,
		lexIdx,
		store,
		llm,
		cfg,
	)

	tracker := NewLineageTracker()
	svc.SetLineageTracker(tracker)
	svc.SetClassifier(&mockClassifier{topics: []string{"healthcare"}})
	return svc, store, tracker
}

func TestPipeline_Ingest(t *testing.T) {
	svc, store, tracker := newTestPipeline(&mockLLM{})
	ctx := context.Background()

	result, err := svc.Ingest(ctx, domain.Bill{
		ID:     "hr-1",
		Number: "H.R. 1",
		Title:  "Rural Hospital Act",
		Text:   testBillText,
	})
	require.NoError(t, err)

	assert.Equal(t, "hr-1", result.BillID)
	assert.Positive(t, result.ChunkCount)
	assert.Equal(t, "mock-embed-v1", result.EmbeddingModel)

	record, err := store.GetRecord(ctx, "hr-1")
	require.NoError(t, err)
	assert.Len(t, record.Chunks, result.ChunkCount)
	assert.Equal(t, "Rural Hospital Act", record.Title)
	assert.False(t, record.IngestedAt.IsZero())

	embeddings, err := store.GetEmbeddings(ctx, "hr-1")
	require.NoError(t, err)
	assert.Len(t, embeddings, result.ChunkCount)

	events := tracker.Events("hr-1")
	require.Len(t, events, 1)
	assert.Equal(t, domain.LineageProcessing, events[0].Type)
}

func TestPipeline_IngestIdempotentChunkIDs(t *testing.T) {
	svc, store, _ := newTestPipeline(&mockLLM{})
	ctx := context.Background()
	bill := domain.Bill{ID: "hr-1", Title: "Rural Hospital Act", Text: testBillText}

	_, err := svc.Ingest(ctx, bill)
	require.NoError(t, err)
	first, err := store.GetRecord(ctx, "hr-1")
	require.NoError(t, err)

	_, err = svc.Ingest(ctx, bill)
	require.NoError(t, err)
	second, err := store.GetRecord(ctx, "hr-1")
	require.NoError(t, err)

	assert.Equal(t, first.Chunks, second.Chunks)
}

func TestPipeline_IngestRejectsMalformedText(t *testing.T) {
	svc, store, _ := newTestPipeline(&mockLLM{})
	ctx := context.Background()

	_, err := svc.Ingest(ctx, domain.Bill{ID: "hr-bad", Text: "prefix \xff\xfe suffix"})
	require.ErrorIs(t, err, domain.ErrDocumentParse)

	// Nothing persisted for the failed document.
	_, err = store.GetRecord(ctx, "hr-bad")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPipeline_AnalyzeWithoutIngest(t *testing.T) {
	svc, _, _ := newTestPipeline(&mockLLM{})

	_, err := svc.Analyze(context.Background(), "never-ingested")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPipeline_Process(t *testing.T) {
	llm := &mockLLM{responses: facetResponses()}
	svc, store, tracker := newTestPipeline(llm)
	ctx := context.Background()

	result, err := svc.Process(ctx, domain.Bill{
		ID:     "hr-1",
		Number: "H.R. 1",
		Title:  "Rural Hospital Act",
		Text:   testBillText,
	})
	require.NoError(t, err)
	require.NotNil(t, result.Ingest)
	require.NotNil(t, result.Analyze)

	record, err := store.GetRecord(ctx, "hr-1")
	require.NoError(t, err)

	// Every facet kind is present in the persisted analysis.
	for _, kind := range domain.AllFacetKinds() {
		res, ok := record.Facet(kind)
		require.True(t, ok, "facet %s missing", kind)
		if !res.Ungenerated {
			assert.NotEmpty(t, res.Text, "facet %s", kind)
			assert.NotEmpty(t, res.SupportingChunkIDs, "facet %s", kind)
		}
	}

	// Provenance soundness: every link points into a chunk the record
	// owns, at valid offsets, and that chunk was retrieved for the
	// originating facet.
	for _, link := range record.Provenance {
		chunk, ok := record.ChunkByID(link.SourceChunkID)
		require.True(t, ok, "link references unknown chunk %s", link.SourceChunkID)
		require.NoError(t, link.Validate(chunk))

		res, ok := record.Facet(link.Facet)
		require.True(t, ok)
		assert.Contains(t, res.SupportingChunkIDs, link.SourceChunkID)
	}

	assert.Equal(t, []string{"healthcare"}, record.Topics)
	assert.Equal(t, "mock-llm", record.ModelUsed)
	assert.False(t, record.GeneratedAt.IsZero())

	// Lineage covers both stages.
	types := make(map[domain.LineageEventType]int)
	for _, event := range tracker.Events("hr-1") {
		types[event.Type]++
	}
	assert.Equal(t, 1, types[domain.LineageProcessing])
	assert.Equal(t, 1, types[domain.LineageAnalysis])
}

func TestPipeline_FacetFailureLeavesSiblingsIntact(t *testing.T) {
	// First facet never parses; the other three succeed.
	responses := []string{"not json", "not json", "not json"}
	responses = append(responses, facetResponses()[1:]...)
	llm := &mockLLM{responses: responses}

	svc, store, _ := newTestPipeline(llm)
	ctx := context.Background()

	_, err := svc.Ingest(ctx, domain.Bill{ID: "hr-1", Title: "Rural Hospital Act", Text: testBillText})
	require.NoError(t, err)

	result, err := svc.Analyze(ctx, "hr-1")
	require.NoError(t, err)
	assert.Len(t, result.Facets, 3)

	record, err := store.GetRecord(ctx, "hr-1")
	require.NoError(t, err)
	_, ok := record.Facet(domain.FacetSummary)
	assert.False(t, ok, "failed facet must not be persisted")
	_, ok = record.Facet(domain.FacetProvisions)
	assert.True(t, ok)
}

func TestPipeline_ProcessAll(t *testing.T) {
	// Scripted responses are shared across bills; order across workers
	// is not deterministic, so use a single worker.
	responses := append(facetResponses(), facetResponses()...)
	for i := range responses {
		// Claims reference per-bill chunk IDs; strip them to keep the
		// script bill-agnostic and rely on sentence fallback.
		responses[i] = `{"text": "The bill creates a grant program for rural hospitals.", "claims": []}`
	}
	llm := &mockLLM{responses: responses}
	svc, store, _ := newTestPipeline(llm)
	svc.cfg.Workers = 1

	bills := []domain.Bill{
		{ID: "hr-1", Title: "Rural Hospital Act", Text: testBillText},
		{ID: "hr-bad", Title: "Broken", Text: "bad \xff text"},
	}

	results := svc.ProcessAll(context.Background(), bills)
	require.Len(t, results, 2)

	assert.Equal(t, "hr-1", results[0].BillID)
	assert.NoError(t, results[0].Err)
	require.NotNil(t, results[0].Analyze)

	assert.Equal(t, "hr-bad", results[1].BillID)
	assert.ErrorIs(t, results[1].Err, domain.ErrDocumentParse)

	// The failing bill never aborts the batch or dirties the store.
	_, err := store.GetRecord(context.Background(), "hr-1")
	assert.NoError(t, err)
	_, err = store.GetRecord(context.Background(), "hr-bad")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
