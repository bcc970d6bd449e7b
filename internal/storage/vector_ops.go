package storage

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"sort"
)

// serializeVector converts a float32 slice to a little-endian byte blob
func serializeVector(vector []float32) []byte {
	buf := make([]byte, len(vector)*4)
	for i, v := range vector {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// deserializeVector converts a little-endian byte blob back to float32
func deserializeVector(data []byte) ([]float32, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("invalid vector blob length %d", len(data))
	}
	vector := make([]float32, len(data)/4)
	for i := range vector {
		vector[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return vector, nil
}

// serializeVector64 converts a float64 slice to a little-endian byte blob.
// Centroids keep full precision; embedding vectors stay float32.
func serializeVector64(vector []float64) []byte {
	buf := make([]byte, len(vector)*8)
	for i, v := range vector {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(v))
	}
	return buf
}

// deserializeVector64 converts a little-endian byte blob back to float64
func deserializeVector64(data []byte) ([]float64, error) {
	if len(data)%8 != 0 {
		return nil, fmt.Errorf("invalid centroid blob length %d", len(data))
	}
	vector := make([]float64, len(data)/8)
	for i := range vector {
		vector[i] = math.Float64frombits(binary.LittleEndian.Uint64(data[i*8:]))
	}
	return vector, nil
}

// cosineSimilarity computes cosine similarity between two vectors.
// Returns 0 on dimension mismatch or zero-magnitude input.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// SearchVector finds the chunks most similar to the query vector, best
// first. With the sqlite-vec build the distance is computed in SQL;
// otherwise all stored vectors are scanned in Go.
func (s *SQLiteStorage) SearchVector(ctx context.Context, queryVector []float32, limit int) ([]VectorResult, error) {
	if len(queryVector) == 0 {
		return nil, fmt.Errorf("empty query vector")
	}
	if limit <= 0 {
		limit = 10
	}

	if VectorExtensionAvailable {
		results, err := s.searchVectorSQL(ctx, queryVector, limit)
		if err == nil {
			return results, nil
		}
		// Extension present at build time but not loadable; fall through.
	}

	return s.searchVectorScan(ctx, queryVector, limit)
}

func (s *SQLiteStorage) searchVectorSQL(ctx context.Context, queryVector []float32, limit int) ([]VectorResult, error) {
	blob := serializeVector(queryVector)

	rows, err := s.db.QueryContext(ctx, `
		SELECT chunk_id, 1.0 - vec_distance_cosine(vector, ?) AS similarity
		FROM embeddings
		WHERE dimension = ?
		ORDER BY similarity DESC
		LIMIT ?`, blob, len(queryVector), limit)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var results []VectorResult
	for rows.Next() {
		var r VectorResult
		if err := rows.Scan(&r.ChunkID, &r.SimilarityScore); err != nil {
			return nil, fmt.Errorf("scan search result: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

func (s *SQLiteStorage) searchVectorScan(ctx context.Context, queryVector []float32, limit int) ([]VectorResult, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT chunk_id, vector FROM embeddings WHERE dimension = ?`, len(queryVector))
	if err != nil {
		return nil, fmt.Errorf("load embeddings: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var results []VectorResult
	for rows.Next() {
		var chunkID int64
		var blob []byte
		if err := rows.Scan(&chunkID, &blob); err != nil {
			return nil, fmt.Errorf("scan embedding: %w", err)
		}
		vector, err := deserializeVector(blob)
		if err != nil {
			return nil, err
		}
		results = append(results, VectorResult{
			ChunkID:         chunkID,
			SimilarityScore: cosineSimilarity(queryVector, vector),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].SimilarityScore > results[j].SimilarityScore
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}
