package cluster

import (
	"math"
	"math/rand"
)

const maxKMeansIterations = 100

// kmeans partitions points into k clusters with k-means++ seeding and
// Lloyd iterations. Every point receives a label in [0, k); there is no
// noise label.
func kmeans(points [][]float64, k int, seed int64) []int {
	n := len(points)
	labels := make([]int, n)
	if k <= 1 {
		return labels
	}

	rng := rand.New(rand.NewSource(seed))
	centers := seedCenters(points, k, rng)

	for iter := 0; iter < maxKMeansIterations; iter++ {
		changed := false

		// Assignment step
		for i, p := range points {
			best := nearestCenter(p, centers)
			if labels[i] != best {
				labels[i] = best
				changed = true
			}
		}

		if !changed && iter > 0 {
			break
		}

		// Update step
		centers = recomputeCenters(points, labels, centers, rng)
	}

	return labels
}

// seedCenters picks initial centers with k-means++: the first uniformly,
// the rest weighted by squared distance to the nearest chosen center.
func seedCenters(points [][]float64, k int, rng *rand.Rand) [][]float64 {
	n := len(points)
	centers := make([][]float64, 0, k)
	centers = append(centers, clone(points[rng.Intn(n)]))

	dists := make([]float64, n)
	for len(centers) < k {
		var total float64
		for i, p := range points {
			d := euclideanSq(p, centers[0])
			for _, c := range centers[1:] {
				if dc := euclideanSq(p, c); dc < d {
					d = dc
				}
			}
			dists[i] = d
			total += d
		}

		if total == 0 {
			// All remaining points coincide with a center
			centers = append(centers, clone(points[rng.Intn(n)]))
			continue
		}

		target := rng.Float64() * total
		idx := n - 1
		var acc float64
		for i, d := range dists {
			acc += d
			if acc >= target {
				idx = i
				break
			}
		}
		centers = append(centers, clone(points[idx]))
	}

	return centers
}

// recomputeCenters averages each cluster's members. An emptied cluster is
// re-seeded from the point farthest from its current center assignment.
func recomputeCenters(points [][]float64, labels []int, centers [][]float64, rng *rand.Rand) [][]float64 {
	dim := len(points[0])
	k := len(centers)

	sums := make([][]float64, k)
	counts := make([]int, k)
	for c := range sums {
		sums[c] = make([]float64, dim)
	}

	for i, p := range points {
		l := labels[i]
		for j, x := range p {
			sums[l][j] += x
		}
		counts[l]++
	}

	next := make([][]float64, k)
	for c := range next {
		if counts[c] == 0 {
			next[c] = clone(points[farthestPoint(points, labels, centers)])
			continue
		}
		vec := make([]float64, dim)
		for j := range sums[c] {
			vec[j] = sums[c][j] / float64(counts[c])
		}
		next[c] = vec
	}

	return next
}

// nearestCenter returns the index of the closest center.
func nearestCenter(p []float64, centers [][]float64) int {
	best := 0
	bestDist := math.MaxFloat64
	for c, center := range centers {
		if d := euclideanSq(p, center); d < bestDist {
			bestDist = d
			best = c
		}
	}
	return best
}

// farthestPoint finds the point with the greatest distance to its assigned
// center, used to re-seed emptied clusters.
func farthestPoint(points [][]float64, labels []int, centers [][]float64) int {
	worst := 0
	var worstDist float64
	for i, p := range points {
		if d := euclideanSq(p, centers[labels[i]]); d > worstDist {
			worstDist = d
			worst = i
		}
	}
	return worst
}

func clone(v []float64) []float64 {
	out := make([]float64, len(v))
	copy(out, v)
	return out
}
