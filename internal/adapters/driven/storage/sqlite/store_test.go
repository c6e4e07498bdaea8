package sqlite

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openuspolitics/billtrace/internal/core/domain"
)

// setupTestStore creates a temporary SQLite store for testing.
func setupTestStore(t *testing.T) (*Store, func()) {
	t.Helper()

	tempDir, err := os.MkdirTemp("", "billtrace-test-*")
	require.NoError(t, err)

	store, err := NewStore(tempDir)
	require.NoError(t, err)
	require.NotNil(t, store)

	cleanup := func() {
		assert.NoError(t, store.Close())
		assert.NoError(t, os.RemoveAll(tempDir))
	}

	return store, cleanup
}

func testRecord(billID string) *domain.BillRecord {
	first := "The Secretary shall establish a grant program for rural hospitals."
	second := "There is authorized to be appropriated $50 million for each fiscal year."
	page := 3
	return &domain.BillRecord{
		BillID: billID,
		Number: "H.R. 1",
		Title:  "Rural Hospital Act",
		Chunks: []domain.Chunk{
			{
				ID:         domain.ChunkID(billID, 0),
				DocumentID: billID,
				Text:       first,
				Section:    domain.PreambleSection,
				StartChar:  0,
				EndChar:    len(first),
			},
			{
				ID:         domain.ChunkID(billID, 1),
				DocumentID: billID,
				Text:       second,
				Section:    "SEC. 2",
				StartChar:  len(first),
				EndChar:    len(first) + len(second),
				Page:       &page,
			},
		},
		EmbeddingModel: "test-model-v1",
		IngestedAt:     time.Now().UTC().Truncate(time.Second),
	}
}

func testEmbeddings(billID string) []domain.EmbeddingRecord {
	return []domain.EmbeddingRecord{
		{
			ChunkID:      domain.ChunkID(billID, 0),
			DocumentID:   billID,
			Position:     0,
			Vector:       []float32{0.1, -0.5, 2.25},
			ModelVersion: "test-model-v1",
		},
		{
			ChunkID:      domain.ChunkID(billID, 1),
			DocumentID:   billID,
			Position:     1,
			Vector:       []float32{1.5, 0.0, -3.75},
			ModelVersion: "test-model-v1",
		},
	}
}

func testAnalysisUpdate(billID string) domain.AnalysisUpdate {
	return domain.AnalysisUpdate{
		BillID: billID,
		Analysis: map[domain.FacetKind]domain.FacetResult{
			domain.FacetSummary: {
				Text:               "The bill creates a grant program.",
				SupportingChunkIDs: []string{domain.ChunkID(billID, 0)},
			},
			domain.FacetFiscalImpact: {
				Text:               "Authorizes $50 million per fiscal year.",
				SupportingChunkIDs: []string{domain.ChunkID(billID, 1)},
				Rejected:           1,
			},
		},
		Provenance: []domain.ProvenanceLink{
			{
				Facet:         domain.FacetSummary,
				SummaryPhrase: "a grant program",
				SourceChunkID: domain.ChunkID(billID, 0),
				Start:         30,
				End:           45,
				Exact:         true,
			},
			{
				Facet:         domain.FacetFiscalImpact,
				SummaryPhrase: "$50 million",
				SourceChunkID: domain.ChunkID(billID, 1),
				Start:         40,
				End:           51,
				Exact:         false,
			},
		},
		Topics:      []string{"healthcare", "appropriations"},
		GeneratedAt: time.Now().UTC().Truncate(time.Second),
		ModelUsed:   "test-llm",
	}
}

func TestNewStore_ErrorHandling(t *testing.T) {
	_, err := NewStore("/invalid\x00path")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "creating data directory")
}

func TestNewStore_Success(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "billtrace-test-*")
	require.NoError(t, err)
	defer os.RemoveAll(tempDir)

	store, err := NewStore(tempDir)
	require.NoError(t, err)
	require.NotNil(t, store)
	defer store.Close()

	dbPath := filepath.Join(tempDir, "bills.db")
	assert.Equal(t, dbPath, store.Path())
	_, err = os.Stat(dbPath)
	assert.NoError(t, err)
}

func TestNewStore_MigrationsIdempotent(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "billtrace-test-*")
	require.NoError(t, err)
	defer os.RemoveAll(tempDir)

	store, err := NewStore(tempDir)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	// Reopening must not rerun applied migrations.
	store, err = NewStore(tempDir)
	require.NoError(t, err)
	assert.NoError(t, store.Close())
}

func TestStore_SaveIngestAndGetRecord(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	record := testRecord("hr-1")
	require.NoError(t, store.SaveIngest(ctx, record, testEmbeddings("hr-1")))

	got, err := store.GetRecord(ctx, "hr-1")
	require.NoError(t, err)

	assert.Equal(t, "hr-1", got.BillID)
	assert.Equal(t, "H.R. 1", got.Number)
	assert.Equal(t, "Rural Hospital Act", got.Title)
	assert.Equal(t, "test-model-v1", got.EmbeddingModel)
	assert.Equal(t, record.Chunks, got.Chunks)
	assert.Empty(t, got.Analysis)
	assert.Empty(t, got.Provenance)
	assert.False(t, got.IngestedAt.IsZero())
}

func TestStore_SaveIngestRejectsEmptyID(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	err := store.SaveIngest(context.Background(), &domain.BillRecord{}, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestStore_GetMissing(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	_, err := store.GetRecord(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = store.GetEmbeddings(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStore_GetEmbeddings(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	embeddings := testEmbeddings("hr-1")
	require.NoError(t, store.SaveIngest(ctx, testRecord("hr-1"), embeddings))

	got, err := store.GetEmbeddings(ctx, "hr-1")
	require.NoError(t, err)
	// Vectors survive the blob round trip bit for bit.
	assert.Equal(t, embeddings, got)
}

func TestStore_SaveAnalysis(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, store.SaveIngest(ctx, testRecord("hr-1"), testEmbeddings("hr-1")))

	update := testAnalysisUpdate("hr-1")
	require.NoError(t, store.SaveAnalysis(ctx, update))

	record, err := store.GetRecord(ctx, "hr-1")
	require.NoError(t, err)

	assert.Equal(t, update.Analysis, record.Analysis)
	assert.Equal(t, update.Provenance, record.Provenance)
	assert.Equal(t, update.Topics, record.Topics)
	assert.Equal(t, "test-llm", record.ModelUsed)
	assert.False(t, record.GeneratedAt.IsZero())
}

func TestStore_SaveAnalysisWithoutIngest(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	err := store.SaveAnalysis(context.Background(), domain.AnalysisUpdate{BillID: "hr-9"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStore_ReingestClearsAnalysis(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, store.SaveIngest(ctx, testRecord("hr-1"), testEmbeddings("hr-1")))
	require.NoError(t, store.SaveAnalysis(ctx, testAnalysisUpdate("hr-1")))

	// Re-ingesting supersedes the chunks; analysis referencing them
	// must not survive.
	require.NoError(t, store.SaveIngest(ctx, testRecord("hr-1"), testEmbeddings("hr-1")))

	record, err := store.GetRecord(ctx, "hr-1")
	require.NoError(t, err)
	assert.Empty(t, record.Analysis)
	assert.Empty(t, record.Provenance)
	assert.Empty(t, record.Topics)
	assert.Empty(t, record.ModelUsed)
	assert.True(t, record.GeneratedAt.IsZero())
}

func TestStore_ListBills(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, store.SaveIngest(ctx, testRecord("s-20"), nil))
	require.NoError(t, store.SaveIngest(ctx, testRecord("hr-1"), nil))

	ids, err := store.ListBills(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"hr-1", "s-20"}, ids)
}

func TestStore_Delete(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, store.SaveIngest(ctx, testRecord("hr-1"), testEmbeddings("hr-1")))
	require.NoError(t, store.DeleteRecord(ctx, "hr-1"))

	_, err := store.GetRecord(ctx, "hr-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = store.GetEmbeddings(ctx, "hr-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	err = store.DeleteRecord(ctx, "hr-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStore_PersistsAcrossReopen(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "billtrace-test-*")
	require.NoError(t, err)
	defer os.RemoveAll(tempDir)
	ctx := context.Background()

	store, err := NewStore(tempDir)
	require.NoError(t, err)
	require.NoError(t, store.SaveIngest(ctx, testRecord("hr-1"), testEmbeddings("hr-1")))
	require.NoError(t, store.Close())

	store, err = NewStore(tempDir)
	require.NoError(t, err)
	defer store.Close()

	record, err := store.GetRecord(ctx, "hr-1")
	require.NoError(t, err)
	assert.Len(t, record.Chunks, 2)
}
