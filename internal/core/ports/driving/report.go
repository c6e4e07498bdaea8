package driving

import (
	"context"

	"github.com/openuspolitics/billtrace/internal/core/domain"
)

// ReportService reads persisted analysis output for display and export.
type ReportService interface {
	// Get retrieves the stored record for a bill.
	Get(ctx context.Context, billID string) (*domain.BillRecord, error)

	// List returns all ingested bill IDs, sorted.
	List(ctx context.Context) ([]string, error)

	// ExportJSON renders a bill's record as indented JSON.
	ExportJSON(ctx context.Context, billID string) ([]byte, error)
}

// LineageService exposes the pipeline's processing history.
type LineageService interface {
	// Events returns recorded lineage events for a bill, oldest first.
	// An empty billID returns events for all bills.
	Events(billID string) []domain.LineageEvent

	// ExportJSON renders lineage events as indented JSON.
	ExportJSON(billID string) ([]byte, error)
}
