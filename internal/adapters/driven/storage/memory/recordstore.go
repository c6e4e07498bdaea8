// Package memory provides in-memory driven adapters for tests and
// ephemeral runs. Nothing here survives process exit.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/openuspolitics/billtrace/internal/core/domain"
	"github.com/openuspolitics/billtrace/internal/core/ports/driven"
)

// Ensure RecordStore implements the interface.
var _ driven.RecordStore = (*RecordStore)(nil)

// RecordStore is an in-memory bill record store.
type RecordStore struct {
	mu         sync.RWMutex
	records    map[string]domain.BillRecord
	embeddings map[string][]domain.EmbeddingRecord
}

// NewRecordStore creates an empty record store.
func NewRecordStore() *RecordStore {
	return &RecordStore{
		records:    make(map[string]domain.BillRecord),
		embeddings: make(map[string][]domain.EmbeddingRecord),
	}
}

// SaveIngest persists a bill's chunks and embeddings, replacing any
// prior ingestion and clearing stale analysis output.
func (s *RecordStore) SaveIngest(_ context.Context, record *domain.BillRecord, embeddings []domain.EmbeddingRecord) error {
	if record == nil || record.BillID == "" {
		return fmt.Errorf("save ingest: record has no bill ID: %w", domain.ErrInvalidInput)
	}

	stored := *record
	// Analysis from a previous ingestion references superseded chunks.
	stored.Analysis = nil
	stored.Provenance = nil
	stored.Topics = nil
	stored.ModelUsed = ""
	stored.GeneratedAt = time.Time{}

	s.mu.Lock()
	s.records[record.BillID] = stored
	s.embeddings[record.BillID] = append([]domain.EmbeddingRecord(nil), embeddings...)
	s.mu.Unlock()
	return nil
}

// SaveAnalysis persists the analysis output for an ingested bill.
func (s *RecordStore) SaveAnalysis(_ context.Context, update domain.AnalysisUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[update.BillID]
	if !ok {
		return fmt.Errorf("save analysis: bill %s not ingested: %w", update.BillID, domain.ErrNotFound)
	}

	record.Analysis = update.Analysis
	record.Provenance = update.Provenance
	record.Topics = update.Topics
	record.GeneratedAt = update.GeneratedAt
	record.ModelUsed = update.ModelUsed
	s.records[update.BillID] = record
	return nil
}

// GetRecord retrieves the full record for a bill.
func (s *RecordStore) GetRecord(_ context.Context, billID string) (*domain.BillRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.records[billID]
	if !ok {
		return nil, fmt.Errorf("bill %s: %w", billID, domain.ErrNotFound)
	}
	out := record
	return &out, nil
}

// GetEmbeddings retrieves a bill's embedding records in chunk order.
func (s *RecordStore) GetEmbeddings(_ context.Context, billID string) ([]domain.EmbeddingRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	embeddings, ok := s.embeddings[billID]
	if !ok {
		return nil, fmt.Errorf("embeddings for bill %s: %w", billID, domain.ErrNotFound)
	}
	return append([]domain.EmbeddingRecord(nil), embeddings...), nil
}

// ListBills returns all ingested bill IDs, sorted.
func (s *RecordStore) ListBills(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.records))
	for id := range s.records {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// DeleteRecord removes a bill and everything owned by it.
func (s *RecordStore) DeleteRecord(_ context.Context, billID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[billID]; !ok {
		return fmt.Errorf("bill %s: %w", billID, domain.ErrNotFound)
	}
	delete(s.records, billID)
	delete(s.embeddings, billID)
	return nil
}

// Close releases resources.
func (s *RecordStore) Close() error {
	return nil
}
