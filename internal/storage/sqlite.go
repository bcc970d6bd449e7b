package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when a requested record does not exist
var ErrNotFound = errors.New("record not found")

// querier abstracts *sql.DB and *sql.Tx so the same statement helpers
// serve both direct calls and transactions.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLiteStorage implements Storage backed by SQLite
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens (creating if needed) the database at dbPath and
// applies any pending migrations.
func NewSQLiteStorage(ctx context.Context, dbPath string) (*SQLiteStorage, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, err
	}

	if err := ApplyMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Single writer; SQLite serializes writes anyway and one connection
	// avoids SQLITE_BUSY churn.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		`PRAGMA journal_mode = WAL`,
		`PRAGMA foreign_keys = ON`,
		`PRAGMA busy_timeout = 5000`,
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set pragma: %w", err)
		}
	}

	return db, nil
}

// Close closes the underlying database
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// BeginTx starts a transaction covering the mutating operations
func (s *SQLiteStorage) BeginTx(ctx context.Context) (Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	return &sqliteTx{tx: tx}, nil
}

// sqliteTx adapts *sql.Tx to the Tx interface
type sqliteTx struct {
	tx *sql.Tx
}

func (t *sqliteTx) Commit() error   { return t.tx.Commit() }
func (t *sqliteTx) Rollback() error { return t.tx.Rollback() }

func (t *sqliteTx) UpsertDocument(ctx context.Context, doc *Document) error {
	return upsertDocumentWithQuerier(ctx, t.tx, doc)
}

func (t *sqliteTx) UpsertChunk(ctx context.Context, chunk *Chunk) error {
	return upsertChunkWithQuerier(ctx, t.tx, chunk)
}

func (t *sqliteTx) UpsertEmbedding(ctx context.Context, embedding *Embedding) error {
	return upsertEmbeddingWithQuerier(ctx, t.tx, embedding)
}

func (t *sqliteTx) CreateClusterRun(ctx context.Context, run *ClusterRun) error {
	return createClusterRunWithQuerier(ctx, t.tx, run)
}

func (t *sqliteTx) InsertCentroids(ctx context.Context, runID string, centroids []*Centroid) error {
	return insertCentroidsWithQuerier(ctx, t.tx, runID, centroids)
}

func (t *sqliteTx) UpsertAssignments(ctx context.Context, assignments []*Assignment) error {
	return upsertAssignmentsWithQuerier(ctx, t.tx, assignments)
}

// Document operations

func (s *SQLiteStorage) UpsertDocument(ctx context.Context, doc *Document) error {
	return upsertDocumentWithQuerier(ctx, s.db, doc)
}

func upsertDocumentWithQuerier(ctx context.Context, q querier, doc *Document) error {
	if doc == nil || doc.ID == "" {
		return fmt.Errorf("document id is required")
	}
	frontmatter := doc.Frontmatter
	if frontmatter == "" {
		frontmatter = "{}"
	}
	_, err := q.ExecContext(ctx, `
		INSERT INTO documents (id, frontmatter, content_hash, total_chunks)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			frontmatter = excluded.frontmatter,
			content_hash = excluded.content_hash,
			total_chunks = excluded.total_chunks,
			updated_at = CURRENT_TIMESTAMP`,
		doc.ID, frontmatter, doc.ContentHash[:], doc.TotalChunks)
	if err != nil {
		return fmt.Errorf("upsert document %s: %w", doc.ID, err)
	}
	return nil
}

func (s *SQLiteStorage) GetDocument(ctx context.Context, docID string) (*Document, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, frontmatter, content_hash, total_chunks, created_at, updated_at
		FROM documents WHERE id = ?`, docID)
	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("document %s: %w", docID, ErrNotFound)
	}
	return doc, err
}

func (s *SQLiteStorage) ListDocuments(ctx context.Context) ([]*Document, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, frontmatter, content_hash, total_chunks, created_at, updated_at
		FROM documents ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var docs []*Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func (s *SQLiteStorage) DeleteDocument(ctx context.Context, docID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, docID)
	if err != nil {
		return fmt.Errorf("delete document %s: %w", docID, err)
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return fmt.Errorf("document %s: %w", docID, ErrNotFound)
	}
	return nil
}

// Chunk operations

func (s *SQLiteStorage) UpsertChunk(ctx context.Context, chunk *Chunk) error {
	return upsertChunkWithQuerier(ctx, s.db, chunk)
}

func upsertChunkWithQuerier(ctx context.Context, q querier, chunk *Chunk) error {
	if chunk == nil || chunk.ChunkKey == "" {
		return fmt.Errorf("chunk key is required")
	}
	frontmatter := chunk.Frontmatter
	if frontmatter == "" {
		frontmatter = "{}"
	}
	_, err := q.ExecContext(ctx, `
		INSERT INTO chunks (doc_id, chunk_key, chunk_index, total_chunks, content,
			content_hash, token_count, overlap_start, overlap_end, frontmatter)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(chunk_key) DO UPDATE SET
			chunk_index = excluded.chunk_index,
			total_chunks = excluded.total_chunks,
			content = excluded.content,
			content_hash = excluded.content_hash,
			token_count = excluded.token_count,
			overlap_start = excluded.overlap_start,
			overlap_end = excluded.overlap_end,
			frontmatter = excluded.frontmatter,
			updated_at = CURRENT_TIMESTAMP`,
		chunk.DocID, chunk.ChunkKey, chunk.ChunkIndex, chunk.TotalChunks, chunk.Content,
		chunk.ContentHash[:], chunk.TokenCount, chunk.OverlapStart, chunk.OverlapEnd, frontmatter)
	if err != nil {
		return fmt.Errorf("upsert chunk %s: %w", chunk.ChunkKey, err)
	}

	// Upsert may update an existing row, so LastInsertId is unreliable.
	row := q.QueryRowContext(ctx, `SELECT id FROM chunks WHERE chunk_key = ?`, chunk.ChunkKey)
	if err := row.Scan(&chunk.ID); err != nil {
		return fmt.Errorf("resolve chunk id %s: %w", chunk.ChunkKey, err)
	}
	return nil
}

func (s *SQLiteStorage) GetChunk(ctx context.Context, id int64) (*Chunk, error) {
	row := s.db.QueryRowContext(ctx, chunkSelect+` WHERE id = ?`, id)
	chunk, err := scanChunk(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("chunk %d: %w", id, ErrNotFound)
	}
	return chunk, err
}

func (s *SQLiteStorage) GetChunkByKey(ctx context.Context, chunkKey string) (*Chunk, error) {
	row := s.db.QueryRowContext(ctx, chunkSelect+` WHERE chunk_key = ?`, chunkKey)
	chunk, err := scanChunk(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("chunk %s: %w", chunkKey, ErrNotFound)
	}
	return chunk, err
}

func (s *SQLiteStorage) ListChunksByDocument(ctx context.Context, docID string) ([]*Chunk, error) {
	rows, err := s.db.QueryContext(ctx, chunkSelect+` WHERE doc_id = ? ORDER BY chunk_index`, docID)
	if err != nil {
		return nil, fmt.Errorf("list chunks for %s: %w", docID, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var chunks []*Chunk
	for rows.Next() {
		chunk, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, chunk)
	}
	return chunks, rows.Err()
}

func (s *SQLiteStorage) DeleteChunksByDocument(ctx context.Context, docID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM chunks WHERE doc_id = ?`, docID); err != nil {
		return fmt.Errorf("delete chunks for %s: %w", docID, err)
	}
	return nil
}

const chunkSelect = `
	SELECT id, doc_id, chunk_key, chunk_index, total_chunks, content,
		content_hash, token_count, overlap_start, overlap_end, frontmatter,
		created_at, updated_at
	FROM chunks`

// Embedding operations

func (s *SQLiteStorage) UpsertEmbedding(ctx context.Context, embedding *Embedding) error {
	return upsertEmbeddingWithQuerier(ctx, s.db, embedding)
}

func upsertEmbeddingWithQuerier(ctx context.Context, q querier, embedding *Embedding) error {
	if embedding == nil || embedding.ChunkID == 0 {
		return fmt.Errorf("embedding chunk id is required")
	}
	if len(embedding.Vector) == 0 {
		return fmt.Errorf("embedding vector is empty")
	}
	_, err := q.ExecContext(ctx, `
		INSERT INTO embeddings (chunk_id, vector, dimension, provider, model)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(chunk_id) DO UPDATE SET
			vector = excluded.vector,
			dimension = excluded.dimension,
			provider = excluded.provider,
			model = excluded.model`,
		embedding.ChunkID, serializeVector(embedding.Vector), len(embedding.Vector),
		embedding.Provider, embedding.Model)
	if err != nil {
		return fmt.Errorf("upsert embedding for chunk %d: %w", embedding.ChunkID, err)
	}
	return nil
}

func (s *SQLiteStorage) GetEmbedding(ctx context.Context, chunkID int64) (*Embedding, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT e.chunk_id, c.chunk_key, e.vector, e.dimension, e.provider, e.model, e.created_at
		FROM embeddings e JOIN chunks c ON c.id = e.chunk_id
		WHERE e.chunk_id = ?`, chunkID)
	emb, err := scanEmbedding(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("embedding for chunk %d: %w", chunkID, ErrNotFound)
	}
	return emb, err
}

func (s *SQLiteStorage) ListEmbeddings(ctx context.Context) ([]*Embedding, error) {
	return s.listEmbeddingsWhere(ctx, "", nil)
}

// ListUnassignedEmbeddings returns embeddings whose chunks have no
// assignment for the given run.
func (s *SQLiteStorage) ListUnassignedEmbeddings(ctx context.Context, runID string) ([]*Embedding, error) {
	return s.listEmbeddingsWhere(ctx, `
		WHERE NOT EXISTS (
			SELECT 1 FROM assignments a
			WHERE a.run_id = ? AND a.chunk_id = e.chunk_id
		)`, []any{runID})
}

func (s *SQLiteStorage) listEmbeddingsWhere(ctx context.Context, where string, args []any) ([]*Embedding, error) {
	query := `
		SELECT e.chunk_id, c.chunk_key, e.vector, e.dimension, e.provider, e.model, e.created_at
		FROM embeddings e JOIN chunks c ON c.id = e.chunk_id` + where + `
		ORDER BY e.chunk_id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list embeddings: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var embeddings []*Embedding
	for rows.Next() {
		emb, err := scanEmbedding(rows)
		if err != nil {
			return nil, err
		}
		embeddings = append(embeddings, emb)
	}
	return embeddings, rows.Err()
}

// Cluster artifact operations

func (s *SQLiteStorage) CreateClusterRun(ctx context.Context, run *ClusterRun) error {
	return createClusterRunWithQuerier(ctx, s.db, run)
}

func createClusterRunWithQuerier(ctx context.Context, q querier, run *ClusterRun) error {
	if run == nil || run.ID == "" {
		return fmt.Errorf("run id is required")
	}
	_, err := q.ExecContext(ctx, `
		INSERT INTO cluster_runs (id, algorithm, cluster_count, noise_count,
			silhouette, input_dim, projected_dim, projection)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Algorithm, run.ClusterCount, run.NoiseCount,
		run.Silhouette, run.InputDim, run.ProjectedDim, run.Projection)
	if err != nil {
		return fmt.Errorf("create cluster run %s: %w", run.ID, err)
	}
	return nil
}

func (s *SQLiteStorage) InsertCentroids(ctx context.Context, runID string, centroids []*Centroid) error {
	return insertCentroidsWithQuerier(ctx, s.db, runID, centroids)
}

func insertCentroidsWithQuerier(ctx context.Context, q querier, runID string, centroids []*Centroid) error {
	for _, c := range centroids {
		if _, err := q.ExecContext(ctx, `
			INSERT INTO centroids (run_id, label, vector) VALUES (?, ?, ?)`,
			runID, c.Label, serializeVector64(c.Vector)); err != nil {
			return fmt.Errorf("insert centroid %d for run %s: %w", c.Label, runID, err)
		}
	}
	return nil
}

func (s *SQLiteStorage) UpsertAssignments(ctx context.Context, assignments []*Assignment) error {
	return upsertAssignmentsWithQuerier(ctx, s.db, assignments)
}

func upsertAssignmentsWithQuerier(ctx context.Context, q querier, assignments []*Assignment) error {
	for _, a := range assignments {
		if _, err := q.ExecContext(ctx, `
			INSERT INTO assignments (run_id, chunk_id, cluster)
			VALUES (?, ?, ?)
			ON CONFLICT(run_id, chunk_id) DO UPDATE SET cluster = excluded.cluster`,
			a.RunID, a.ChunkID, a.Cluster); err != nil {
			return fmt.Errorf("upsert assignment for chunk %d: %w", a.ChunkID, err)
		}
	}
	return nil
}

func (s *SQLiteStorage) GetLatestClusterRun(ctx context.Context) (*ClusterRun, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, algorithm, cluster_count, noise_count, silhouette,
			input_dim, projected_dim, projection, created_at
		FROM cluster_runs ORDER BY created_at DESC, rowid DESC LIMIT 1`)
	run, err := scanClusterRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("cluster run: %w", ErrNotFound)
	}
	return run, err
}

func (s *SQLiteStorage) ListCentroids(ctx context.Context, runID string) ([]*Centroid, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, label, vector FROM centroids
		WHERE run_id = ? ORDER BY label`, runID)
	if err != nil {
		return nil, fmt.Errorf("list centroids for run %s: %w", runID, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var centroids []*Centroid
	for rows.Next() {
		var c Centroid
		var blob []byte
		if err := rows.Scan(&c.RunID, &c.Label, &blob); err != nil {
			return nil, fmt.Errorf("scan centroid: %w", err)
		}
		vector, err := deserializeVector64(blob)
		if err != nil {
			return nil, err
		}
		c.Vector = vector
		centroids = append(centroids, &c)
	}
	return centroids, rows.Err()
}

func (s *SQLiteStorage) ListAssignments(ctx context.Context, runID string) ([]*Assignment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT a.run_id, a.chunk_id, c.chunk_key, a.cluster
		FROM assignments a JOIN chunks c ON c.id = a.chunk_id
		WHERE a.run_id = ? ORDER BY a.chunk_id`, runID)
	if err != nil {
		return nil, fmt.Errorf("list assignments for run %s: %w", runID, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var assignments []*Assignment
	for rows.Next() {
		var a Assignment
		if err := rows.Scan(&a.RunID, &a.ChunkID, &a.ChunkKey, &a.Cluster); err != nil {
			return nil, fmt.Errorf("scan assignment: %w", err)
		}
		assignments = append(assignments, &a)
	}
	return assignments, rows.Err()
}

// Status operations

func (s *SQLiteStorage) GetStatus(ctx context.Context) (*CorpusStatus, error) {
	status := &CorpusStatus{}

	counts := []struct {
		query string
		dest  *int
	}{
		{`SELECT COUNT(*) FROM documents`, &status.Documents},
		{`SELECT COUNT(*) FROM chunks`, &status.Chunks},
		{`SELECT COUNT(*) FROM embeddings`, &status.Embeddings},
	}
	for _, c := range counts {
		if err := s.db.QueryRowContext(ctx, c.query).Scan(c.dest); err != nil {
			return nil, fmt.Errorf("corpus status: %w", err)
		}
	}

	run, err := s.GetLatestClusterRun(ctx)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	status.LatestRun = run

	return status, nil
}

// Row scanning helpers

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*Document, error) {
	var doc Document
	var hash []byte
	var created, updated string
	if err := row.Scan(&doc.ID, &doc.Frontmatter, &hash, &doc.TotalChunks, &created, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan document: %w", err)
	}
	copy(doc.ContentHash[:], hash)
	doc.CreatedAt = parseTimestamp(created)
	doc.UpdatedAt = parseTimestamp(updated)
	return &doc, nil
}

func scanChunk(row rowScanner) (*Chunk, error) {
	var chunk Chunk
	var hash []byte
	var created, updated string
	if err := row.Scan(&chunk.ID, &chunk.DocID, &chunk.ChunkKey, &chunk.ChunkIndex,
		&chunk.TotalChunks, &chunk.Content, &hash, &chunk.TokenCount,
		&chunk.OverlapStart, &chunk.OverlapEnd, &chunk.Frontmatter,
		&created, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan chunk: %w", err)
	}
	copy(chunk.ContentHash[:], hash)
	chunk.CreatedAt = parseTimestamp(created)
	chunk.UpdatedAt = parseTimestamp(updated)
	return &chunk, nil
}

func scanEmbedding(row rowScanner) (*Embedding, error) {
	var emb Embedding
	var blob []byte
	var created string
	if err := row.Scan(&emb.ChunkID, &emb.ChunkKey, &blob, &emb.Dimension,
		&emb.Provider, &emb.Model, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan embedding: %w", err)
	}
	vector, err := deserializeVector(blob)
	if err != nil {
		return nil, err
	}
	emb.Vector = vector
	emb.CreatedAt = parseTimestamp(created)
	return &emb, nil
}

func scanClusterRun(row rowScanner) (*ClusterRun, error) {
	var run ClusterRun
	var silhouette sql.NullFloat64
	var created string
	if err := row.Scan(&run.ID, &run.Algorithm, &run.ClusterCount, &run.NoiseCount,
		&silhouette, &run.InputDim, &run.ProjectedDim, &run.Projection, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan cluster run: %w", err)
	}
	if silhouette.Valid {
		v := silhouette.Float64
		run.Silhouette = &v
	}
	run.CreatedAt = parseTimestamp(created)
	return &run, nil
}

// parseTimestamp handles the formats the two drivers emit for DATETIME
// columns populated by CURRENT_TIMESTAMP.
func parseTimestamp(raw string) time.Time {
	layouts := []string{
		"2006-01-02 15:04:05",
		time.RFC3339Nano,
		time.RFC3339,
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t
		}
	}
	return time.Time{}
}
