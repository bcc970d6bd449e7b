package cluster

import "math"

// cosineSimilarity computes the cosine similarity between two vectors.
// Zero-norm vectors compare as 0.
func cosineSimilarity(a, b []float32) float64 {
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

// cosineDistance is the angular distance 1 - cosine similarity.
func cosineDistance(a, b []float32) float64 {
	return 1 - cosineSimilarity(a, b)
}

// euclideanSq is the squared straight-line distance in the fitted space.
func euclideanSq(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

// toFloat64 widens an embedding matrix into the fitted-space
// representation used when no projection is configured.
func toFloat64(vectors [][]float32) [][]float64 {
	out := make([][]float64, len(vectors))
	for i, v := range vectors {
		row := make([]float64, len(v))
		for j, x := range v {
			row[j] = float64(x)
		}
		out[i] = row
	}
	return out
}
