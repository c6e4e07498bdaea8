package services

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/openuspolitics/billtrace/internal/core/domain"
	"github.com/openuspolitics/billtrace/internal/core/ports/driving"
)

// Ensure LineageTracker implements the interface.
var _ driving.LineageService = (*LineageTracker)(nil)

// LineageTracker records what the pipeline did to each bill: which
// steps ran, which model was used, how many chunks fed each stage.
// Safe for concurrent use by the worker pool.
type LineageTracker struct {
	mu     sync.Mutex
	events []domain.LineageEvent
}

// NewLineageTracker creates an empty tracker.
func NewLineageTracker() *LineageTracker {
	return &LineageTracker{}
}

// Record appends an event, filling in ID and timestamp.
func (t *LineageTracker) Record(event domain.LineageEvent) {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	t.mu.Lock()
	t.events = append(t.events, event)
	t.mu.Unlock()
}

// Events returns recorded events for a bill, oldest first. An empty
// billID returns events for all bills.
func (t *LineageTracker) Events(billID string) []domain.LineageEvent {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]domain.LineageEvent, 0, len(t.events))
	for _, event := range t.events {
		if billID == "" || event.BillID == billID {
			out = append(out, event)
		}
	}
	return out
}

// ExportJSON renders lineage events as indented JSON.
func (t *LineageTracker) ExportJSON(billID string) ([]byte, error) {
	events := t.Events(billID)
	data, err := json.MarshalIndent(events, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal lineage events: %w", err)
	}
	return data, nil
}
