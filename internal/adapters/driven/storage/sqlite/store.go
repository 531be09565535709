package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/tabletalk-cli/internal/adapters/driven/storage/similarity"
	"github.com/custodia-labs/tabletalk-cli/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/custodia-labs/tabletalk-cli/internal/core/domain"
	"github.com/custodia-labs/tabletalk-cli/internal/core/ports/driven"
)

// Ensure VectorStore implements the interface.
var _ driven.VectorStore = (*VectorStore)(nil)

// dimensionKey is the store_meta key holding the declared dimension.
const dimensionKey = "embedding_dimensions"

// VectorStore is the SQLite-backed vector store.
type VectorStore struct {
	db         *sql.DB
	path       string
	dimensions int
}

// NewVectorStore opens (or creates) the store at the given data
// directory, declared for the given vector dimension. If dataDir is
// empty, defaults to ~/.tabletalk/data. Opening a store created with a
// different dimension fails with *domain.DimensionMismatchError.
func NewVectorStore(dataDir string, dimensions int) (*VectorStore, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("%w: dimensions must be positive", domain.ErrInvalidInput)
	}

	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".tabletalk", "data")
	}

	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "vectors.db")

	// WAL mode lets query-time readers interleave with ingestion writes
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &VectorStore{
		db:         db,
		path:       dbPath,
		dimensions: dimensions,
	}

	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	if err := s.checkDimensions(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// Close closes the database connection.
func (s *VectorStore) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *VectorStore) Path() string {
	return s.path
}

// Dimensions returns the declared vector dimension.
func (s *VectorStore) Dimensions() int {
	return s.dimensions
}

// Upsert persists records in one transaction per call, replacing any
// record with the same ID.
func (s *VectorStore) Upsert(ctx context.Context, records []domain.EmbeddingRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	for _, record := range records {
		if len(record.Embedding) != s.dimensions {
			return 0, &domain.DimensionMismatchError{Want: s.dimensions, Got: len(record.Embedding)}
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO embeddings (id, source_id, chunk_text, embedding, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			source_id = excluded.source_id,
			chunk_text = excluded.chunk_text,
			embedding = excluded.embedding,
			metadata = excluded.metadata,
			created_at = excluded.created_at
	`)
	if err != nil {
		return 0, fmt.Errorf("preparing upsert: %w", err)
	}
	defer stmt.Close()

	stored := 0
	for _, record := range records {
		metadata, err := json.Marshal(record.Metadata)
		if err != nil {
			return stored, fmt.Errorf("marshalling metadata for %s: %w", record.ID, err)
		}

		createdAt := record.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}

		if _, err := stmt.ExecContext(ctx,
			record.ID,
			record.SourceID,
			record.ChunkText,
			similarity.EncodeVector(record.Embedding),
			string(metadata),
			createdAt.Format(time.RFC3339Nano),
		); err != nil {
			return stored, fmt.Errorf("upserting %s: %w", record.ID, err)
		}
		stored++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing upsert: %w", err)
	}
	return stored, nil
}

// Query scans the collection and returns fragments clearing the
// threshold, best first, ties broken by most recent created_at.
// Out-of-range inputs are corrected silently.
func (s *VectorStore) Query(
	ctx context.Context, vector []float32, threshold float64, maxResults int,
) ([]domain.RetrievedFragment, error) {
	threshold = domain.ClampThreshold(threshold)
	maxResults = domain.ClampMaxResults(maxResults)

	rows, err := s.db.QueryContext(ctx,
		`SELECT chunk_text, embedding, metadata, created_at FROM embeddings`)
	if err != nil {
		return nil, fmt.Errorf("querying embeddings: %w", err)
	}
	defer rows.Close()

	type scored struct {
		fragment   domain.RetrievedFragment
		similarity float64
		createdAt  time.Time
	}

	var hits []scored
	for rows.Next() {
		var (
			chunkText string
			blob      []byte
			metaJSON  string
			createdAt string
		)
		if err := rows.Scan(&chunkText, &blob, &metaJSON, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}

		embedding, err := similarity.DecodeVector(blob)
		if err != nil {
			return nil, fmt.Errorf("decoding embedding: %w", err)
		}

		sim := similarity.Cosine(vector, embedding)
		if sim < threshold {
			continue
		}

		metadata, err := decodeMetadata(metaJSON)
		if err != nil {
			return nil, err
		}

		ts, _ := time.Parse(time.RFC3339Nano, createdAt)

		hits = append(hits, scored{
			fragment: domain.RetrievedFragment{
				ChunkText:  chunkText,
				Similarity: sim,
				Metadata:   metadata,
			},
			similarity: sim,
			createdAt:  ts,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows: %w", err)
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].similarity != hits[j].similarity {
			return hits[i].similarity > hits[j].similarity
		}
		return hits[i].createdAt.After(hits[j].createdAt)
	})

	if len(hits) > maxResults {
		hits = hits[:maxResults]
	}

	fragments := make([]domain.RetrievedFragment, len(hits))
	for i, hit := range hits {
		fragments[i] = hit.fragment
	}
	return fragments, nil
}

// Records returns stored records, optionally filtered by source.
func (s *VectorStore) Records(ctx context.Context, sourceID string) ([]domain.EmbeddingRecord, error) {
	query := `SELECT id, source_id, chunk_text, embedding, metadata, created_at FROM embeddings`
	var args []any
	if sourceID != "" {
		query += ` WHERE source_id = ?`
		args = append(args, sourceID)
	}
	query += ` ORDER BY created_at, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying records: %w", err)
	}
	defer rows.Close()

	var records []domain.EmbeddingRecord
	for rows.Next() {
		var (
			record    domain.EmbeddingRecord
			blob      []byte
			metaJSON  string
			createdAt string
		)
		if err := rows.Scan(&record.ID, &record.SourceID, &record.ChunkText, &blob, &metaJSON, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning record: %w", err)
		}

		if record.Embedding, err = similarity.DecodeVector(blob); err != nil {
			return nil, fmt.Errorf("decoding embedding: %w", err)
		}
		if record.Metadata, err = decodeMetadata(metaJSON); err != nil {
			return nil, err
		}
		record.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)

		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating records: %w", err)
	}
	return records, nil
}

// DeleteSource removes every record for the source.
func (s *VectorStore) DeleteSource(ctx context.Context, sourceID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM embeddings WHERE source_id = ?`, sourceID); err != nil {
		return fmt.Errorf("deleting source %q: %w", sourceID, err)
	}
	return nil
}

// checkDimensions persists the declared dimension on first open and
// verifies it on every subsequent open.
func (s *VectorStore) checkDimensions() error {
	var stored string
	err := s.db.QueryRow(`SELECT value FROM store_meta WHERE key = ?`, dimensionKey).Scan(&stored)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		_, err = s.db.Exec(`INSERT INTO store_meta (key, value) VALUES (?, ?)`,
			dimensionKey, strconv.Itoa(s.dimensions))
		if err != nil {
			return fmt.Errorf("recording dimensions: %w", err)
		}
		return nil

	case err != nil:
		return fmt.Errorf("reading dimensions: %w", err)
	}

	existing, err := strconv.Atoi(stored)
	if err != nil {
		return fmt.Errorf("parsing stored dimensions %q: %w", stored, err)
	}
	if existing != s.dimensions {
		return &domain.DimensionMismatchError{Want: existing, Got: s.dimensions}
	}
	return nil
}

// migrate runs all pending migrations.
func (s *VectorStore) migrate(fsys embed.FS) error {
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
		if strings.HasSuffix(entry.Name(), ".up.sql") {
			upFiles = append(upFiles, entry.Name())
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		version, err := migrationVersion(name)
		if err != nil {
			return err
		}
		if version <= currentVersion {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("applying migration %s: %w", name, err)
		}
		if _, err := s.db.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}
	return nil
}

// migrationVersion extracts the numeric prefix of a migration filename.
func migrationVersion(name string) (int, error) {
	prefix, _, ok := strings.Cut(name, "_")
	if !ok {
		return 0, fmt.Errorf("malformed migration name %q", name)
	}
	version, err := strconv.Atoi(prefix)
	if err != nil {
		return 0, fmt.Errorf("malformed migration version in %q: %w", name, err)
	}
	return version, nil
}

// decodeMetadata parses the metadata JSON column.
func decodeMetadata(metaJSON string) (map[string]any, error) {
	if metaJSON == "" || metaJSON == "null" {
		return nil, nil
	}
	var metadata map[string]any
	if err := json.Unmarshal([]byte(metaJSON), &metadata); err != nil {
		return nil, fmt.Errorf("decoding metadata: %w", err)
	}
	return metadata, nil
}
