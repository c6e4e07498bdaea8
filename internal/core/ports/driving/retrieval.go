package driving

import (
	"context"

	"github.com/openuspolitics/billtrace/internal/core/domain"
)

// RetrievalService exposes hybrid retrieval to external actors, mainly
// for inspecting what the generator would see for a given question.
type RetrievalService interface {
	// Retrieve returns the top-k chunks of a bill for a query, ranked
	// by fused dense and lexical score. An empty query returns an
	// empty result, not an error.
	Retrieve(ctx context.Context, billID, query string, k int) ([]domain.ScoredChunk, error)
}
