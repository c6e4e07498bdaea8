package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/openuspolitics/billtrace/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/openuspolitics/billtrace/internal/core/domain"
	"github.com/openuspolitics/billtrace/internal/core/ports/driven"
)

// Ensure Store implements the interface.
var _ driven.RecordStore = (*Store)(nil)

// Store is the SQLite-backed bill record store.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore creates a new SQLite store at the specified data directory.
// If dataDir is empty, defaults to ~/.billtrace/data/bills.db.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".billtrace", "data")
	}

	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "bills.db")

	// Open database with WAL mode for better concurrency
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &Store{
		db:   db,
		path: dbPath,
	}

	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// migrate runs all pending migrations.
func (s *Store) migrate(fsys embed.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// Extract version number (e.g., "001_initial.up.sql" -> 1)
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue // Skip files that don't match pattern
		}

		if version <= currentVersion {
			continue // Already applied
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}

		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}

		if _, err := s.db.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}

	return nil
}

// SaveIngest persists a bill's chunks and embeddings in one transaction,
// replacing any prior ingestion. Analysis rows from a previous ingestion
// reference superseded chunks, so the whole aggregate is wiped first.
func (s *Store) SaveIngest(ctx context.Context, record *domain.BillRecord, embeddings []domain.EmbeddingRecord) error {
	if record == nil || record.BillID == "" {
		return fmt.Errorf("save ingest: record has no bill ID: %w", domain.ErrInvalidInput)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	// Cascades to chunks, embeddings, facets and provenance.
	if _, err := tx.ExecContext(ctx, "DELETE FROM bills WHERE bill_id = ?", record.BillID); err != nil {
		return fmt.Errorf("clearing prior record: %w", err)
	}

	ingestedAt := record.IngestedAt
	if ingestedAt.IsZero() {
		ingestedAt = time.Now().UTC()
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO bills (bill_id, number, title, embedding_model, ingested_at)
		VALUES (?, ?, ?, ?, ?)
	`, record.BillID, record.Number, record.Title, record.EmbeddingModel, ingestedAt)
	if err != nil {
		return fmt.Errorf("saving bill: %w", err)
	}

	chunkStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (id, bill_id, position, content, section, start_offset, end_offset, page)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing chunk statement: %w", err)
	}
	defer chunkStmt.Close()

	for i, chunk := range record.Chunks {
		var page sql.NullInt64
		if chunk.Page != nil {
			page = sql.NullInt64{Int64: int64(*chunk.Page), Valid: true}
		}
		if _, err := chunkStmt.ExecContext(ctx, chunk.ID, record.BillID, i,
			chunk.Text, chunk.Section, chunk.StartChar, chunk.EndChar, page); err != nil {
			return fmt.Errorf("saving chunk %s: %w", chunk.ID, err)
		}
	}

	embStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO embeddings (chunk_id, bill_id, position, vector, model_version)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing embedding statement: %w", err)
	}
	defer embStmt.Close()

	for _, emb := range embeddings {
		if _, err := embStmt.ExecContext(ctx, emb.ChunkID, record.BillID, emb.Position,
			float32SliceToBytes(emb.Vector), emb.ModelVersion); err != nil {
			return fmt.Errorf("saving embedding for %s: %w", emb.ChunkID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// SaveAnalysis persists the analysis output for an ingested bill as a
// unit, replacing any prior analysis.
func (s *Store) SaveAnalysis(ctx context.Context, update domain.AnalysisUpdate) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	topicsJSON, err := json.Marshal(update.Topics)
	if err != nil {
		return fmt.Errorf("marshalling topics: %w", err)
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE bills SET topics = ?, model_used = ?, generated_at = ?
		WHERE bill_id = ?
	`, string(topicsJSON), update.ModelUsed, update.GeneratedAt, update.BillID)
	if err != nil {
		return fmt.Errorf("updating bill: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking update: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("save analysis: bill %s not ingested: %w", update.BillID, domain.ErrNotFound)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM facets WHERE bill_id = ?", update.BillID); err != nil {
		return fmt.Errorf("clearing facets: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM provenance WHERE bill_id = ?", update.BillID); err != nil {
		return fmt.Errorf("clearing provenance: %w", err)
	}

	for _, kind := range domain.AllFacetKinds() {
		facet, ok := update.Analysis[kind]
		if !ok {
			continue
		}
		idsJSON, err := json.Marshal(facet.SupportingChunkIDs)
		if err != nil {
			return fmt.Errorf("marshalling supporting chunk IDs: %w", err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO facets (bill_id, facet_kind, content, ungenerated, supporting_chunk_ids, rejected)
			VALUES (?, ?, ?, ?, ?, ?)
		`, update.BillID, string(kind), facet.Text, facet.Ungenerated, string(idsJSON), facet.Rejected)
		if err != nil {
			return fmt.Errorf("saving facet %s: %w", kind, err)
		}
	}

	linkStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO provenance (bill_id, facet_kind, summary_phrase, source_chunk_id, start_offset, end_offset, exact)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing provenance statement: %w", err)
	}
	defer linkStmt.Close()

	for _, link := range update.Provenance {
		if _, err := linkStmt.ExecContext(ctx, update.BillID, string(link.Facet),
			link.SummaryPhrase, link.SourceChunkID, link.Start, link.End, link.Exact); err != nil {
			return fmt.Errorf("saving provenance link: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// GetRecord retrieves the full record for a bill.
func (s *Store) GetRecord(ctx context.Context, billID string) (*domain.BillRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT bill_id, number, title, topics, embedding_model, model_used, ingested_at, generated_at
		FROM bills WHERE bill_id = ?
	`, billID)

	var record domain.BillRecord
	var topicsJSON string
	var ingestedAt, generatedAt sql.NullTime
	if err := row.Scan(&record.BillID, &record.Number, &record.Title, &topicsJSON,
		&record.EmbeddingModel, &record.ModelUsed, &ingestedAt, &generatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("bill %s: %w", billID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("scanning bill: %w", err)
	}

	if err := json.Unmarshal([]byte(topicsJSON), &record.Topics); err != nil {
		return nil, fmt.Errorf("unmarshalling topics: %w", err)
	}
	if ingestedAt.Valid {
		record.IngestedAt = ingestedAt.Time
	}
	if generatedAt.Valid {
		record.GeneratedAt = generatedAt.Time
	}

	chunks, err := s.getChunks(ctx, billID)
	if err != nil {
		return nil, err
	}
	record.Chunks = chunks

	analysis, err := s.getFacets(ctx, billID)
	if err != nil {
		return nil, err
	}
	record.Analysis = analysis

	provenance, err := s.getProvenance(ctx, billID)
	if err != nil {
		return nil, err
	}
	record.Provenance = provenance

	return &record, nil
}

// getChunks retrieves a bill's chunks in position order.
func (s *Store) getChunks(ctx context.Context, billID string) ([]domain.Chunk, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, bill_id, content, section, start_offset, end_offset, page
		FROM chunks WHERE bill_id = ?
		ORDER BY position
	`, billID)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	var chunks []domain.Chunk //nolint:prealloc // size unknown from query
	for rows.Next() {
		var chunk domain.Chunk
		var page sql.NullInt64
		if err := rows.Scan(&chunk.ID, &chunk.DocumentID, &chunk.Text,
			&chunk.Section, &chunk.StartChar, &chunk.EndChar, &page); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		if page.Valid {
			p := int(page.Int64)
			chunk.Page = &p
		}
		chunks = append(chunks, chunk)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunks: %w", err)
	}
	return chunks, nil
}

// getFacets retrieves a bill's analysis facets.
func (s *Store) getFacets(ctx context.Context, billID string) (map[domain.FacetKind]domain.FacetResult, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT facet_kind, content, ungenerated, supporting_chunk_ids, rejected
		FROM facets WHERE bill_id = ?
	`, billID)
	if err != nil {
		return nil, fmt.Errorf("querying facets: %w", err)
	}
	defer rows.Close()

	var analysis map[domain.FacetKind]domain.FacetResult
	for rows.Next() {
		var kind string
		var facet domain.FacetResult
		var idsJSON string
		if err := rows.Scan(&kind, &facet.Text, &facet.Ungenerated, &idsJSON, &facet.Rejected); err != nil {
			return nil, fmt.Errorf("scanning facet: %w", err)
		}
		if err := json.Unmarshal([]byte(idsJSON), &facet.SupportingChunkIDs); err != nil {
			return nil, fmt.Errorf("unmarshalling supporting chunk IDs: %w", err)
		}
		if analysis == nil {
			analysis = make(map[domain.FacetKind]domain.FacetResult)
		}
		analysis[domain.FacetKind(kind)] = facet
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating facets: %w", err)
	}
	return analysis, nil
}

// getProvenance retrieves a bill's provenance links in insertion order.
func (s *Store) getProvenance(ctx context.Context, billID string) ([]domain.ProvenanceLink, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT facet_kind, summary_phrase, source_chunk_id, start_offset, end_offset, exact
		FROM provenance WHERE bill_id = ?
		ORDER BY id
	`, billID)
	if err != nil {
		return nil, fmt.Errorf("querying provenance: %w", err)
	}
	defer rows.Close()

	var links []domain.ProvenanceLink //nolint:prealloc // size unknown from query
	for rows.Next() {
		var link domain.ProvenanceLink
		var kind string
		if err := rows.Scan(&kind, &link.SummaryPhrase, &link.SourceChunkID,
			&link.Start, &link.End, &link.Exact); err != nil {
			return nil, fmt.Errorf("scanning provenance link: %w", err)
		}
		link.Facet = domain.FacetKind(kind)
		links = append(links, link)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating provenance: %w", err)
	}
	return links, nil
}

// GetEmbeddings retrieves a bill's embedding records in chunk order.
func (s *Store) GetEmbeddings(ctx context.Context, billID string) ([]domain.EmbeddingRecord, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM bills WHERE bill_id = ?", billID).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("checking bill: %w", err)
	}
	if exists == 0 {
		return nil, fmt.Errorf("embeddings for bill %s: %w", billID, domain.ErrNotFound)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT chunk_id, bill_id, position, vector, model_version
		FROM embeddings WHERE bill_id = ?
		ORDER BY position
	`, billID)
	if err != nil {
		return nil, fmt.Errorf("querying embeddings: %w", err)
	}
	defer rows.Close()

	var embeddings []domain.EmbeddingRecord //nolint:prealloc // size unknown from query
	for rows.Next() {
		var emb domain.EmbeddingRecord
		var vectorBlob []byte
		if err := rows.Scan(&emb.ChunkID, &emb.DocumentID, &emb.Position,
			&vectorBlob, &emb.ModelVersion); err != nil {
			return nil, fmt.Errorf("scanning embedding: %w", err)
		}
		emb.Vector = bytesToFloat32Slice(vectorBlob)
		embeddings = append(embeddings, emb)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating embeddings: %w", err)
	}
	return embeddings, nil
}

// ListBills returns all ingested bill IDs, sorted.
func (s *Store) ListBills(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT bill_id FROM bills ORDER BY bill_id")
	if err != nil {
		return nil, fmt.Errorf("querying bills: %w", err)
	}
	defer rows.Close()

	var ids []string //nolint:prealloc // size unknown from query
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning bill ID: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating bills: %w", err)
	}
	return ids, nil
}

// DeleteRecord removes a bill and everything owned by it.
func (s *Store) DeleteRecord(ctx context.Context, billID string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM bills WHERE bill_id = ?", billID)
	if err != nil {
		return fmt.Errorf("deleting bill: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking delete: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("bill %s: %w", billID, domain.ErrNotFound)
	}
	return nil
}

// float32SliceToBytes converts a []float32 to a byte slice for storage.
func float32SliceToBytes(floats []float32) []byte {
	if len(floats) == 0 {
		return nil
	}
	buf := make([]byte, len(floats)*4)
	for i, f := range floats {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// bytesToFloat32Slice converts a byte slice back to []float32.
func bytesToFloat32Slice(data []byte) []float32 {
	if len(data) == 0 {
		return nil
	}
	floats := make([]float32, len(data)/4)
	for i := range floats {
		floats[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return floats
}
