package cluster

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeQualityMetrics_TwoClusters(t *testing.T) {
	historical, _ := directionGroups()

	e := New(flatConfig(AlgorithmKMeans))
	_, err := e.FitPredict(historical)
	require.NoError(t, err)

	m, err := e.ComputeQualityMetrics()
	require.NoError(t, err)

	assert.Equal(t, 2, m.Clusters)
	assert.Equal(t, 0, m.NoisePoints)

	require.NotNil(t, m.Silhouette)
	assert.GreaterOrEqual(t, *m.Silhouette, -1.0)
	assert.LessOrEqual(t, *m.Silhouette, 1.0)
	assert.Greater(t, *m.Silhouette, 0.0, "well-separated directions should score positive")
}

func TestComputeQualityMetrics_SingleCluster(t *testing.T) {
	cfg := flatConfig(AlgorithmKMeans)
	cfg.K = 1

	e := New(cfg)
	_, err := e.FitPredict(twoGroups())
	require.NoError(t, err)

	m, err := e.ComputeQualityMetrics()
	require.NoError(t, err)

	assert.Equal(t, 1, m.Clusters)
	assert.Nil(t, m.Silhouette, "silhouette needs at least two clusters")
}

func TestComputeQualityMetrics_CountsNoise(t *testing.T) {
	vectors := append(twoGroups(), []float32{50, -50, 50})

	e := New(flatConfig(AlgorithmDBSCAN))
	_, err := e.FitPredict(vectors)
	require.NoError(t, err)

	m, err := e.ComputeQualityMetrics()
	require.NoError(t, err)

	assert.Equal(t, 2, m.Clusters)
	assert.Equal(t, 1, m.NoisePoints)
}

func TestComputeQualityMetrics_RestoredEngineRejected(t *testing.T) {
	e := New(Config{})
	e.Restore(nil, []Centroid{{Label: 0, Vector: []float64{1}}})

	// Restored engines carry no original vectors, so quality metrics
	// cannot be recomputed.
	_, err := e.ComputeQualityMetrics()
	assert.Error(t, err)
}
