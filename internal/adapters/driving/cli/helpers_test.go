package cli

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/openuspolitics/billtrace/internal/core/domain"
	"github.com/openuspolitics/billtrace/internal/core/ports/driven"
	"github.com/openuspolitics/billtrace/internal/core/ports/driving"
)

// setupTestServices swaps in mock services and returns a cleanup that
// restores the originals.
func setupTestServices() func() {
	oldPipeline := pipelineService
	oldRetrieval := retrievalService
	oldReport := reportService
	oldLineage := lineageService
	oldCost := costReporter

	pipelineService = &mockPipelineService{}
	retrievalService = &mockRetrievalService{}
	reportService = &mockReportService{}
	lineageService = &mockLineageService{}
	costReporter = &mockCostReporter{}

	return func() {
		pipelineService = oldPipeline
		retrievalService = oldRetrieval
		reportService = oldReport
		lineageService = oldLineage
		costReporter = oldCost
	}
}

type mockPipelineService struct{}

func (m *mockPipelineService) Ingest(_ context.Context, bill domain.Bill) (*driving.IngestResult, error) {
	return &driving.IngestResult{
		BillID:         bill.ID,
		ChunkCount:     3,
		EmbeddingModel: "text-embedding-3-small",
		Duration:       12 * time.Millisecond,
	}, nil
}

func (m *mockPipelineService) Analyze(_ context.Context, billID string) (*driving.AnalyzeResult, error) {
	return &driving.AnalyzeResult{
		BillID: billID,
		Facets: map[domain.FacetKind]domain.FacetResult{
			domain.FacetSummary: {Text: "A mock summary."},
		},
		Links:       []domain.ProvenanceLink{{Facet: domain.FacetSummary, SummaryPhrase: "mock", SourceChunkID: billID + "_chunk_0", End: 4, Exact: true}},
		LinkedExact: 1,
		Topics:      []string{"healthcare"},
		Duration:    34 * time.Millisecond,
	}, nil
}

func (m *mockPipelineService) Process(ctx context.Context, bill domain.Bill) (*driving.ProcessResult, error) {
	ingest, _ := m.Ingest(ctx, bill)
	analyze, _ := m.Analyze(ctx, bill.ID)
	return &driving.ProcessResult{BillID: bill.ID, Ingest: ingest, Analyze: analyze}, nil
}

func (m *mockPipelineService) ProcessAll(ctx context.Context, bills []domain.Bill) []driving.ProcessResult {
	results := make([]driving.ProcessResult, 0, len(bills))
	for _, bill := range bills {
		result, _ := m.Process(ctx, bill)
		results = append(results, *result)
	}
	return results
}

type mockRetrievalService struct{}

func (m *mockRetrievalService) Retrieve(_ context.Context, billID, _ string, _ int) ([]domain.ScoredChunk, error) {
	return []domain.ScoredChunk{
		{
			Chunk: domain.Chunk{
				ID:         billID + "_chunk_0",
				DocumentID: billID,
				Text:       "SEC. 2. GRANTS. The Secretary shall award grants.",
				Section:    "SEC. 2",
				EndChar:    49,
			},
			Score:        0.92,
			DenseScore:   0.88,
			LexicalScore: 1.0,
		},
	}, nil
}

type mockReportService struct{}

func (m *mockReportService) Get(_ context.Context, billID string) (*domain.BillRecord, error) {
	return &domain.BillRecord{
		BillID: billID,
		Number: "H.R. 1",
		Title:  "Mock Act",
		Topics: []string{"healthcare"},
		Chunks: []domain.Chunk{{ID: billID + "_chunk_0", DocumentID: billID, Text: "text", EndChar: 4}},
		Analysis: map[domain.FacetKind]domain.FacetResult{
			domain.FacetSummary:      {Text: "A mock summary."},
			domain.FacetFiscalImpact: {Ungenerated: true},
		},
		Provenance: []domain.ProvenanceLink{
			{Facet: domain.FacetSummary, SummaryPhrase: "mock", SourceChunkID: billID + "_chunk_0", End: 4, Exact: true},
		},
		ModelUsed:      "claude-sonnet-4-20250514",
		EmbeddingModel: "text-embedding-3-small",
	}, nil
}

func (m *mockReportService) List(_ context.Context) ([]string, error) {
	return []string{"hr1-119", "s20-119"}, nil
}

func (m *mockReportService) ExportJSON(ctx context.Context, billID string) ([]byte, error) {
	record, err := m.Get(ctx, billID)
	if err != nil {
		return nil, err
	}
	return json.MarshalIndent(record, "", "  ")
}

type mockLineageService struct{}

func (m *mockLineageService) Events(billID string) []domain.LineageEvent {
	return []domain.LineageEvent{
		{ID: "ev-1", Type: domain.LineageFetch, BillID: billID, Timestamp: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)},
		{ID: "ev-2", Type: domain.LineageProcessing, BillID: billID, Step: "chunking", Timestamp: time.Date(2026, 1, 2, 3, 4, 6, 0, time.UTC)},
	}
}

func (m *mockLineageService) ExportJSON(billID string) ([]byte, error) {
	return json.MarshalIndent(m.Events(billID), "", "  ")
}

type mockCostReporter struct{}

func (m *mockCostReporter) Usage() driven.TokenUsage {
	return driven.TokenUsage{Calls: 4, InputTokens: 12000, OutputTokens: 3000, EstimatedUSD: 0.0810}
}

// mockPipelineError fails every operation.
type mockPipelineError struct{}

func (m *mockPipelineError) Ingest(_ context.Context, _ domain.Bill) (*driving.IngestResult, error) {
	return nil, errors.New("ingest exploded")
}

func (m *mockPipelineError) Analyze(_ context.Context, _ string) (*driving.AnalyzeResult, error) {
	return nil, errors.New("analyze exploded")
}

func (m *mockPipelineError) Process(_ context.Context, bill domain.Bill) (*driving.ProcessResult, error) {
	return nil, errors.New("process exploded")
}

func (m *mockPipelineError) ProcessAll(_ context.Context, bills []domain.Bill) []driving.ProcessResult {
	results := make([]driving.ProcessResult, 0, len(bills))
	for _, bill := range bills {
		results = append(results, driving.ProcessResult{BillID: bill.ID, Err: errors.New("process exploded")})
	}
	return results
}
