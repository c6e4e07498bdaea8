package driven

import (
	"context"

	"github.com/openuspolitics/billtrace/internal/core/domain"
)

// RecordStore persists bill records. Backed by SQLite.
//
// Both save operations supersede as a unit (delete-then-insert inside a
// transaction) so a failed run leaves the last successfully persisted
// state intact, never a half-updated record.
type RecordStore interface {
	// SaveIngest persists a bill's metadata, its ordered chunks and
	// their embedding records, replacing any prior ingestion. Stale
	// analysis and provenance referencing superseded chunks are
	// cleared in the same transaction.
	SaveIngest(ctx context.Context, record *domain.BillRecord, embeddings []domain.EmbeddingRecord) error

	// SaveAnalysis persists the analysis output for an ingested bill.
	// Returns domain.ErrNotFound if the bill was never ingested.
	SaveAnalysis(ctx context.Context, update domain.AnalysisUpdate) error

	// GetRecord retrieves the full record for a bill.
	GetRecord(ctx context.Context, billID string) (*domain.BillRecord, error)

	// GetEmbeddings retrieves a bill's embedding records, in chunk
	// order, so indexes can be rebuilt without re-embedding.
	GetEmbeddings(ctx context.Context, billID string) ([]domain.EmbeddingRecord, error)

	// ListBills returns all ingested bill IDs, sorted.
	ListBills(ctx context.Context) ([]string, error)

	// DeleteRecord removes a bill and everything owned by it.
	DeleteRecord(ctx context.Context, billID string) error

	// Close releases resources.
	Close() error
}
