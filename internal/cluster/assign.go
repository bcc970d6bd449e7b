package cluster

import (
	"fmt"
	"math"

	"github.com/mfield/textcorpus-mcp/pkg/types"
)

// AssignToExistingClusters labels each new vector by copying the label of
// the angularly closest previously-seen vector. Cost is proportional to
// (new × historical) pairs; use TransformAndAssign when a projection model
// and centroids were retained.
//
// Every returned label is drawn from the labels present in the historical
// data, including Noise when present.
func (e *Engine) AssignToExistingClusters(newVectors, historical [][]float32, historicalLabels []int) ([]int, error) {
	if !e.fitted {
		return nil, types.ErrNotFitted
	}

	if err := validateMatrix(newVectors); err != nil {
		return nil, err
	}
	if err := validateMatrix(historical); err != nil {
		return nil, fmt.Errorf("historical vectors: %w", err)
	}

	if len(historical) != len(historicalLabels) {
		return nil, fmt.Errorf("%w: %d vectors, %d labels",
			types.ErrLengthMismatch, len(historical), len(historicalLabels))
	}

	histDim := len(historical[0])
	if len(newVectors[0]) != histDim {
		return nil, &types.DimensionError{What: "input vector", Expected: histDim, Actual: len(newVectors[0])}
	}

	labels := make([]int, len(newVectors))
	for i, v := range newVectors {
		best := 0
		bestDist := math.MaxFloat64
		for j, h := range historical {
			if d := cosineDistance(v, h); d < bestDist {
				bestDist = d
				best = j
			}
		}
		labels[i] = historicalLabels[best]
	}

	return labels, nil
}

// TransformAndAssign is the preferred incremental path: each new
// full-dimension vector is projected through the already-fitted projection
// model, then labeled by the nearest centroid in the reduced space. Cost
// is proportional to (new × cluster-count), independent of the historical
// corpus size.
//
// The new vectors must match the dimension the projection was fitted on
// and the centroids must match its output dimension; mismatches return a
// DimensionError rather than silently truncating or padding.
func (e *Engine) TransformAndAssign(newVectors [][]float32, centroids []Centroid) ([]int, error) {
	if !e.fitted {
		return nil, types.ErrNotFitted
	}
	if e.projection == nil {
		return nil, types.ErrNoProjection
	}

	if err := validateMatrix(newVectors); err != nil {
		return nil, err
	}
	if len(centroids) == 0 {
		return nil, fmt.Errorf("%w: no centroids supplied", types.ErrEmptyInput)
	}

	if len(newVectors[0]) != e.projection.InputDim {
		return nil, &types.DimensionError{
			What:     "input vector",
			Expected: e.projection.InputDim,
			Actual:   len(newVectors[0]),
		}
	}
	for _, c := range centroids {
		if len(c.Vector) != e.projection.OutputDim {
			return nil, &types.DimensionError{
				What:     fmt.Sprintf("centroid %d", c.Label),
				Expected: e.projection.OutputDim,
				Actual:   len(c.Vector),
			}
		}
	}

	labels := make([]int, len(newVectors))
	for i, v := range newVectors {
		projected, err := e.projection.Transform(v)
		if err != nil {
			return nil, err
		}

		best := centroids[0].Label
		bestDist := math.MaxFloat64
		for _, c := range centroids {
			if d := euclideanSq(projected, c.Vector); d < bestDist {
				bestDist = d
				best = c.Label
			}
		}
		labels[i] = best
	}

	return labels, nil
}
