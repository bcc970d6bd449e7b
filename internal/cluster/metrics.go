package cluster

import (
	"github.com/mfield/textcorpus-mcp/pkg/types"
)

// silhouetteSampleCap bounds the O(n²) silhouette computation.
const silhouetteSampleCap = 2000

// QualityMetrics summarizes a fitted clustering. Silhouette is nil when
// fewer than two non-noise clusters exist; otherwise it is a
// cohesion/separation score in [-1, 1] computed with angular distance in
// the original, non-reduced embedding space.
type QualityMetrics struct {
	Clusters    int
	NoisePoints int
	Silhouette  *float64
}

// ComputeQualityMetrics reports cluster count, noise count and the cosine
// silhouette score for the most recent fit. It is a state error to call
// this on an engine that has not fitted data in this process.
func (e *Engine) ComputeQualityMetrics() (*QualityMetrics, error) {
	if !e.fitted || len(e.original) == 0 {
		return nil, types.ErrNotFitted
	}

	clusters := map[int]struct{}{}
	noise := 0
	for _, l := range e.labels {
		if l == Noise {
			noise++
			continue
		}
		clusters[l] = struct{}{}
	}

	m := &QualityMetrics{
		Clusters:    len(clusters),
		NoisePoints: noise,
	}

	if len(clusters) >= 2 {
		score := silhouetteScore(e.original, e.labels)
		m.Silhouette = &score
	}

	return m, nil
}

// silhouetteScore computes the mean silhouette over non-noise points using
// cosine distance. Inputs larger than the sample cap are strided down to
// keep the pairwise cost bounded.
func silhouetteScore(vectors [][]float32, labels []int) float64 {
	idx := make([]int, 0, len(vectors))
	for i, l := range labels {
		if l != Noise {
			idx = append(idx, i)
		}
	}

	if len(idx) > silhouetteSampleCap {
		stride := len(idx)/silhouetteSampleCap + 1
		sampled := make([]int, 0, silhouetteSampleCap)
		for i := 0; i < len(idx); i += stride {
			sampled = append(sampled, idx[i])
		}
		idx = sampled
	}

	var total float64
	var counted int

	for _, i := range idx {
		// Mean distance to each cluster among the sampled points
		sums := map[int]float64{}
		counts := map[int]int{}
		for _, j := range idx {
			if i == j {
				continue
			}
			d := cosineDistance(vectors[i], vectors[j])
			sums[labels[j]] += d
			counts[labels[j]]++
		}

		own := labels[i]
		if counts[own] == 0 {
			// Singleton cluster: silhouette contribution is 0
			counted++
			continue
		}

		a := sums[own] / float64(counts[own])
		b := -1.0
		for l, c := range counts {
			if l == own || c == 0 {
				continue
			}
			if mean := sums[l] / float64(c); b < 0 || mean < b {
				b = mean
			}
		}
		if b < 0 {
			counted++
			continue
		}

		max := a
		if b > max {
			max = b
		}
		if max > 0 {
			total += (b - a) / max
		}
		counted++
	}

	if counted == 0 {
		return 0
	}
	return total / float64(counted)
}
