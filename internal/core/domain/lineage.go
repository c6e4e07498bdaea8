package domain

import "time"

// LineageEventType classifies pipeline lineage events.
type LineageEventType string

// Lineage event types recorded across a bill's lifecycle.
const (
	LineageFetch      LineageEventType = "fetch"
	LineageProcessing LineageEventType = "processing"
	LineageAnalysis   LineageEventType = "analysis"
	LineageStorage    LineageEventType = "storage"
)

// LineageEvent records one step of a bill's journey through the pipeline:
// where its text came from, how it was processed, which model analyzed it
// and where the result went.
type LineageEvent struct {
	// ID is a unique event identifier.
	ID string `json:"id"`

	// Type classifies the event.
	Type LineageEventType `json:"event_type"`

	// BillID identifies the bill the event belongs to.
	BillID string `json:"bill_id"`

	// Timestamp is when the event occurred, UTC.
	Timestamp time.Time `json:"timestamp"`

	// Step names the processing step for processing events,
	// e.g. "chunking", "embedding".
	Step string `json:"step,omitempty"`

	// Model names the model for analysis events.
	Model string `json:"model,omitempty"`

	// ChunksUsed lists chunk IDs consumed by an analysis event.
	ChunksUsed []string `json:"chunks_used,omitempty"`

	// Details carries step-specific counters and parameters.
	Details map[string]any `json:"details,omitempty"`
}
