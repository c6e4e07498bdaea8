package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/openuspolitics/billtrace/internal/core/domain"
	"github.com/openuspolitics/billtrace/internal/core/ports/driven"
	"github.com/openuspolitics/billtrace/internal/core/ports/driving"
)

// Ensure ReportService implements the interface.
var _ driving.ReportService = (*ReportService)(nil)

// ReportService reads persisted analysis output for display and export.
// The exported JSON is the contract the rendering layer consumes.
type ReportService struct {
	store driven.RecordStore
}

// NewReportService creates a report service.
func NewReportService(store driven.RecordStore) *ReportService {
	return &ReportService{store: store}
}

// Get retrieves the stored record for a bill.
func (s *ReportService) Get(ctx context.Context, billID string) (*domain.BillRecord, error) {
	record, err := s.store.GetRecord(ctx, billID)
	if err != nil {
		return nil, fmt.Errorf("get record %s: %w", billID, err)
	}
	return record, nil
}

// List returns all ingested bill IDs, sorted.
func (s *ReportService) List(ctx context.Context) ([]string, error) {
	ids, err := s.store.ListBills(ctx)
	if err != nil {
		return nil, fmt.Errorf("list bills: %w", err)
	}
	return ids, nil
}

// ExportJSON renders a bill's record as indented JSON.
func (s *ReportService) ExportJSON(ctx context.Context, billID string) ([]byte, error) {
	record, err := s.Get(ctx, billID)
	if err != nil {
		return nil, err
	}

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal record %s: %w", billID, err)
	}
	return data, nil
}
