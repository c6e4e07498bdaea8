package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openuspolitics/billtrace/internal/core/domain"
)

func lexChunk(id string, text string) domain.Chunk {
	return domain.Chunk{
		ID:         id,
		DocumentID: "hr-1",
		Text:       text,
		Section:    "SEC. 1",
		EndChar:    len(text),
	}
}

func TestLexicalIndex_RanksByRelevance(t *testing.T) {
	idx := NewLexicalIndex()
	ctx := context.Background()

	err := idx.Rebuild(ctx, "hr-1", []domain.Chunk{
		lexChunk("hr-1_chunk_0", "The Secretary shall establish a grant program for rural hospitals."),
		lexChunk("hr-1_chunk_1", "Appropriations under this Act shall remain available until expended."),
		lexChunk("hr-1_chunk_2", "Grant amounts for the grant program shall not exceed $5,000,000 per grant."),
	})
	require.NoError(t, err)

	hits, err := idx.Search(ctx, "hr-1", "grant program", 3)
	require.NoError(t, err)
	require.Len(t, hits, 2)

	// Chunk 2 mentions "grant" three times.
	assert.Equal(t, "hr-1_chunk_2", hits[0].ChunkID)
	assert.Equal(t, "hr-1_chunk_0", hits[1].ChunkID)
	assert.Greater(t, hits[0].Score, hits[1].Score)
}

func TestLexicalIndex_SectionIdentifierTokens(t *testing.T) {
	idx := NewLexicalIndex()
	ctx := context.Background()

	err := idx.Rebuild(ctx, "hr-1", []domain.Chunk{
		lexChunk("hr-1_chunk_0", "SEC. 402(a)(3) of the Social Security Act is amended."),
		lexChunk("hr-1_chunk_1", "The amendments made by this section take effect on enactment."),
	})
	require.NoError(t, err)

	hits, err := idx.Search(ctx, "hr-1", "SEC. 402(a)(3)", 2)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, "hr-1_chunk_0", hits[0].ChunkID)
}

func TestLexicalIndex_NoMatches(t *testing.T) {
	idx := NewLexicalIndex()
	ctx := context.Background()

	err := idx.Rebuild(ctx, "hr-1", []domain.Chunk{
		lexChunk("hr-1_chunk_0", "The Secretary shall submit a report."),
	})
	require.NoError(t, err)

	hits, err := idx.Search(ctx, "hr-1", "cryptocurrency", 5)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestLexicalIndex_EmptyQuery(t *testing.T) {
	idx := NewLexicalIndex()
	ctx := context.Background()

	err := idx.Rebuild(ctx, "hr-1", []domain.Chunk{
		lexChunk("hr-1_chunk_0", "The Secretary shall submit a report."),
	})
	require.NoError(t, err)

	hits, err := idx.Search(ctx, "hr-1", "  ...  ", 5)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestLexicalIndex_UnknownDocument(t *testing.T) {
	idx := NewLexicalIndex()

	hits, err := idx.Search(context.Background(), "missing", "report", 5)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestLexicalIndex_RebuildReplaces(t *testing.T) {
	idx := NewLexicalIndex()
	ctx := context.Background()

	require.NoError(t, idx.Rebuild(ctx, "hr-1", []domain.Chunk{
		lexChunk("hr-1_chunk_0", "The Secretary shall establish a grant program."),
	}))
	require.NoError(t, idx.Rebuild(ctx, "hr-1", []domain.Chunk{
		lexChunk("hr-1_chunk_0", "Appropriations shall remain available until expended."),
	}))

	hits, err := idx.Search(ctx, "hr-1", "grant", 5)
	require.NoError(t, err)
	assert.Empty(t, hits)

	hits, err = idx.Search(ctx, "hr-1", "appropriations", 5)
	require.NoError(t, err)
	require.Len(t, hits, 1)
}

func TestLexicalIndex_LimitsToK(t *testing.T) {
	idx := NewLexicalIndex()
	ctx := context.Background()

	chunks := []domain.Chunk{
		lexChunk("hr-1_chunk_0", "grant funding for hospitals"),
		lexChunk("hr-1_chunk_1", "grant funding for schools"),
		lexChunk("hr-1_chunk_2", "grant funding for highways"),
		lexChunk("hr-1_chunk_3", "grant funding for research"),
	}
	require.NoError(t, idx.Rebuild(ctx, "hr-1", chunks))

	hits, err := idx.Search(ctx, "hr-1", "grant funding", 2)
	require.NoError(t, err)
	assert.Len(t, hits, 2)
	// Equal scores fall back to chunk order.
	assert.Equal(t, "hr-1_chunk_0", hits[0].ChunkID)
	assert.Equal(t, "hr-1_chunk_1", hits[1].ChunkID)
}
