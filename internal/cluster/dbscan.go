package cluster

// dbscan labels points by density. Labels are contiguous from 0; points
// outside every cluster receive the Noise label. Eps is compared against
// squared euclidean distance in the fitted space.
func dbscan(points [][]float64, eps float64, minPoints int) []int {
	const unvisited = -2

	n := len(points)
	labels := make([]int, n)
	for i := range labels {
		labels[i] = unvisited
	}

	epsSq := eps * eps
	next := 0

	for i := 0; i < n; i++ {
		if labels[i] != unvisited {
			continue
		}

		neighbors := regionQuery(points, i, epsSq)
		if len(neighbors) < minPoints {
			labels[i] = Noise
			continue
		}

		labels[i] = next
		expandCluster(points, labels, neighbors, next, epsSq, minPoints)
		next++
	}

	return labels
}

// expandCluster grows a cluster from a core point's neighborhood.
func expandCluster(points [][]float64, labels []int, seeds []int, label int, epsSq float64, minPoints int) {
	const unvisited = -2

	for q := 0; q < len(seeds); q++ {
		j := seeds[q]

		if labels[j] == Noise {
			// Border point reachable from a core point
			labels[j] = label
			continue
		}
		if labels[j] != unvisited {
			continue
		}

		labels[j] = label
		neighbors := regionQuery(points, j, epsSq)
		if len(neighbors) >= minPoints {
			seeds = append(seeds, neighbors...)
		}
	}
}

// regionQuery returns the indices of all points within eps of point i,
// including i itself.
func regionQuery(points [][]float64, i int, epsSq float64) []int {
	var neighbors []int
	for j, p := range points {
		if euclideanSq(points[i], p) <= epsSq {
			neighbors = append(neighbors, j)
		}
	}
	return neighbors
}
