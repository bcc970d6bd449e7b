package storage

import (
	"context"
	"crypto/sha256"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStorage(t *testing.T) *SQLiteStorage {
	t.Helper()

	s, err := NewSQLiteStorage(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seedDocument(t *testing.T, s *SQLiteStorage, docID string) {
	t.Helper()
	require.NoError(t, s.UpsertDocument(context.Background(), &Document{
		ID:          docID,
		Frontmatter: `{"topic":"testing"}`,
		ContentHash: sha256.Sum256([]byte(docID)),
		TotalChunks: 1,
	}))
}

func seedChunk(t *testing.T, s *SQLiteStorage, docID, chunkKey string, index int) *Chunk {
	t.Helper()
	chunk := &Chunk{
		DocID:       docID,
		ChunkKey:    chunkKey,
		ChunkIndex:  index,
		TotalChunks: 1,
		Content:     "chunk body " + chunkKey,
		ContentHash: sha256.Sum256([]byte(chunkKey)),
		TokenCount:  3,
		Frontmatter: "{}",
	}
	require.NoError(t, s.UpsertChunk(context.Background(), chunk))
	require.Greater(t, chunk.ID, int64(0))
	return chunk
}

func TestDocumentRoundtrip(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	hash := sha256.Sum256([]byte("doc body"))
	require.NoError(t, s.UpsertDocument(ctx, &Document{
		ID:          "doc-1",
		Frontmatter: `{"author":"june"}`,
		ContentHash: hash,
		TotalChunks: 4,
	}))

	got, err := s.GetDocument(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, "doc-1", got.ID)
	assert.Equal(t, `{"author":"june"}`, got.Frontmatter)
	assert.Equal(t, hash, got.ContentHash)
	assert.Equal(t, 4, got.TotalChunks)

	// Upsert replaces in place.
	newHash := sha256.Sum256([]byte("revised"))
	require.NoError(t, s.UpsertDocument(ctx, &Document{ID: "doc-1", ContentHash: newHash, TotalChunks: 2}))

	got, err = s.GetDocument(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, newHash, got.ContentHash)
	assert.Equal(t, 2, got.TotalChunks)

	docs, err := s.ListDocuments(ctx)
	require.NoError(t, err)
	assert.Len(t, docs, 1)

	require.NoError(t, s.DeleteDocument(ctx, "doc-1"))
	_, err = s.GetDocument(ctx, "doc-1")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.DeleteDocument(ctx, "doc-1"), ErrNotFound)
}

func TestChunkRoundtrip(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	seedDocument(t, s, "doc-1")
	chunk := seedChunk(t, s, "doc-1", "doc-1-chunk-000", 0)

	byID, err := s.GetChunk(ctx, chunk.ID)
	require.NoError(t, err)
	assert.Equal(t, chunk.ChunkKey, byID.ChunkKey)
	assert.Equal(t, chunk.Content, byID.Content)
	assert.Equal(t, chunk.ContentHash, byID.ContentHash)

	byKey, err := s.GetChunkByKey(ctx, "doc-1-chunk-000")
	require.NoError(t, err)
	assert.Equal(t, chunk.ID, byKey.ID)

	// Upsert on the same key keeps the row id stable.
	updated := *chunk
	updated.Content = "rewritten"
	require.NoError(t, s.UpsertChunk(ctx, &updated))
	assert.Equal(t, chunk.ID, updated.ID)

	byID, err = s.GetChunk(ctx, chunk.ID)
	require.NoError(t, err)
	assert.Equal(t, "rewritten", byID.Content)

	_, err = s.GetChunk(ctx, 9999)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.GetChunkByKey(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListChunksByDocument(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	seedDocument(t, s, "doc-1")
	seedChunk(t, s, "doc-1", "doc-1-chunk-001", 1)
	seedChunk(t, s, "doc-1", "doc-1-chunk-000", 0)
	seedChunk(t, s, "doc-1", "doc-1-chunk-002", 2)

	chunks, err := s.ListChunksByDocument(ctx, "doc-1")
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	for i, c := range chunks {
		assert.Equal(t, i, c.ChunkIndex, "chunks come back in index order")
	}

	require.NoError(t, s.DeleteChunksByDocument(ctx, "doc-1"))
	chunks, err = s.ListChunksByDocument(ctx, "doc-1")
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestEmbeddingRoundtrip(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	seedDocument(t, s, "doc-1")
	chunk := seedChunk(t, s, "doc-1", "doc-1-chunk-000", 0)

	vector := []float32{0.25, -1.5, 3.75}
	require.NoError(t, s.UpsertEmbedding(ctx, &Embedding{
		ChunkID:  chunk.ID,
		Vector:   vector,
		Provider: "local",
		Model:    "local-hash-v1",
	}))

	got, err := s.GetEmbedding(ctx, chunk.ID)
	require.NoError(t, err)
	assert.Equal(t, vector, got.Vector)
	assert.Equal(t, 3, got.Dimension)
	assert.Equal(t, "doc-1-chunk-000", got.ChunkKey)
	assert.Equal(t, "local", got.Provider)

	all, err := s.ListEmbeddings(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "doc-1-chunk-000", all[0].ChunkKey)

	_, err = s.GetEmbedding(ctx, 9999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestClusterRunArtifacts(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	seedDocument(t, s, "doc-1")
	c0 := seedChunk(t, s, "doc-1", "doc-1-chunk-000", 0)
	c1 := seedChunk(t, s, "doc-1", "doc-1-chunk-001", 1)

	silhouette := 0.42
	run := &ClusterRun{
		ID:           "run-1",
		Algorithm:    "kmeans",
		ClusterCount: 2,
		NoiseCount:   0,
		Silhouette:   &silhouette,
		InputDim:     3,
		ProjectedDim: 2,
		Projection:   []byte{1, 2, 3, 4},
	}

	tx, err := s.BeginTx(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.CreateClusterRun(ctx, run))
	require.NoError(t, tx.InsertCentroids(ctx, run.ID, []*Centroid{
		{RunID: run.ID, Label: 0, Vector: []float64{0.5, 1.5}},
		{RunID: run.ID, Label: 1, Vector: []float64{-2, 4}},
	}))
	require.NoError(t, tx.UpsertAssignments(ctx, []*Assignment{
		{RunID: run.ID, ChunkID: c0.ID, Cluster: "cluster-0"},
		{RunID: run.ID, ChunkID: c1.ID, Cluster: "noise"},
	}))
	require.NoError(t, tx.Commit())

	latest, err := s.GetLatestClusterRun(ctx)
	require.NoError(t, err)
	assert.Equal(t, "run-1", latest.ID)
	require.NotNil(t, latest.Silhouette)
	assert.InDelta(t, 0.42, *latest.Silhouette, 1e-9)
	assert.Equal(t, []byte{1, 2, 3, 4}, latest.Projection)
	assert.Equal(t, 2, latest.ProjectedDim)

	centroids, err := s.ListCentroids(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, centroids, 2)
	assert.Equal(t, 0, centroids[0].Label)
	assert.Equal(t, []float64{0.5, 1.5}, centroids[0].Vector)
	assert.Equal(t, []float64{-2, 4}, centroids[1].Vector)

	assignments, err := s.ListAssignments(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, assignments, 2)
	assert.Equal(t, "doc-1-chunk-000", assignments[0].ChunkKey)
	assert.Equal(t, "cluster-0", assignments[0].Cluster)
	assert.Equal(t, "noise", assignments[1].Cluster)

	// A later run becomes the latest.
	require.NoError(t, s.CreateClusterRun(ctx, &ClusterRun{ID: "run-2", Algorithm: "dbscan", InputDim: 3}))
	latest, err = s.GetLatestClusterRun(ctx)
	require.NoError(t, err)
	assert.Equal(t, "run-2", latest.ID)
	assert.Nil(t, latest.Silhouette)
}

func TestClusterRunRollback(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	tx, err := s.BeginTx(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.CreateClusterRun(ctx, &ClusterRun{ID: "doomed", Algorithm: "kmeans", InputDim: 3}))
	require.NoError(t, tx.Rollback())

	_, err = s.GetLatestClusterRun(ctx)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListUnassignedEmbeddings(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	seedDocument(t, s, "doc-1")
	c0 := seedChunk(t, s, "doc-1", "doc-1-chunk-000", 0)
	c1 := seedChunk(t, s, "doc-1", "doc-1-chunk-001", 1)

	for _, c := range []*Chunk{c0, c1} {
		require.NoError(t, s.UpsertEmbedding(ctx, &Embedding{
			ChunkID: c.ID, Vector: []float32{1, 2, 3}, Provider: "local", Model: "m",
		}))
	}

	require.NoError(t, s.CreateClusterRun(ctx, &ClusterRun{ID: "run-1", Algorithm: "kmeans", InputDim: 3}))
	require.NoError(t, s.UpsertAssignments(ctx, []*Assignment{
		{RunID: "run-1", ChunkID: c0.ID, Cluster: "cluster-0"},
	}))

	pending, err := s.ListUnassignedEmbeddings(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, c1.ID, pending[0].ChunkID)
	assert.Equal(t, "doc-1-chunk-001", pending[0].ChunkKey)
}

func TestSearchVector(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	seedDocument(t, s, "doc-1")
	vectors := map[string][]float32{
		"doc-1-chunk-000": {1, 0, 0},
		"doc-1-chunk-001": {0, 1, 0},
		"doc-1-chunk-002": {0.9, 0.1, 0},
	}

	ids := map[string]int64{}
	i := 0
	for key, vec := range vectors {
		chunk := seedChunk(t, s, "doc-1", key, i)
		i++
		require.NoError(t, s.UpsertEmbedding(ctx, &Embedding{
			ChunkID: chunk.ID, Vector: vec, Provider: "local", Model: "m",
		}))
		ids[key] = chunk.ID
	}

	results, err := s.SearchVector(ctx, []float32{1, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, ids["doc-1-chunk-000"], results[0].ChunkID)
	assert.InDelta(t, 1.0, results[0].SimilarityScore, 1e-6)
	assert.Equal(t, ids["doc-1-chunk-002"], results[1].ChunkID)
	assert.Greater(t, results[0].SimilarityScore, results[1].SimilarityScore)

	_, err = s.SearchVector(ctx, nil, 5)
	assert.Error(t, err)
}

func TestGetStatus(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	status, err := s.GetStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, status.Documents)
	assert.Nil(t, status.LatestRun)

	seedDocument(t, s, "doc-1")
	chunk := seedChunk(t, s, "doc-1", "doc-1-chunk-000", 0)
	require.NoError(t, s.UpsertEmbedding(ctx, &Embedding{
		ChunkID: chunk.ID, Vector: []float32{1}, Provider: "local", Model: "m",
	}))
	require.NoError(t, s.CreateClusterRun(ctx, &ClusterRun{ID: "run-1", Algorithm: "kmeans", InputDim: 1}))

	status, err = s.GetStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, status.Documents)
	assert.Equal(t, 1, status.Chunks)
	assert.Equal(t, 1, status.Embeddings)
	require.NotNil(t, status.LatestRun)
	assert.Equal(t, "run-1", status.LatestRun.ID)
}

func TestDeleteDocumentCascades(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	seedDocument(t, s, "doc-1")
	chunk := seedChunk(t, s, "doc-1", "doc-1-chunk-000", 0)
	require.NoError(t, s.UpsertEmbedding(ctx, &Embedding{
		ChunkID: chunk.ID, Vector: []float32{1, 2}, Provider: "local", Model: "m",
	}))

	require.NoError(t, s.DeleteDocument(ctx, "doc-1"))

	_, err := s.GetChunk(ctx, chunk.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.GetEmbedding(ctx, chunk.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestVectorSerializationRoundtrip(t *testing.T) {
	f32 := []float32{0, -0.5, 1.25, 3.402823e38}
	got, err := deserializeVector(serializeVector(f32))
	require.NoError(t, err)
	assert.Equal(t, f32, got)

	_, err = deserializeVector([]byte{1, 2, 3})
	assert.Error(t, err)

	f64 := []float64{0, -0.5, 1.25}
	got64, err := deserializeVector64(serializeVector64(f64))
	require.NoError(t, err)
	assert.Equal(t, f64, got64)

	_, err = deserializeVector64([]byte{1, 2, 3})
	assert.Error(t, err)
}
