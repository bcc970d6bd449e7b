package cluster

import (
	"fmt"
	"math"

	"github.com/mfield/textcorpus-mcp/pkg/types"
)

// Algorithm selects the clustering strategy.
type Algorithm string

const (
	// AlgorithmKMeans partitions every point into one of k clusters.
	AlgorithmKMeans Algorithm = "kmeans"
	// AlgorithmDBSCAN derives the cluster count from density and may
	// label off-topic points as noise.
	AlgorithmDBSCAN Algorithm = "dbscan"
)

// Noise is the label reserved for points outside every cluster.
const Noise = -1

// NoiseName is the literal textual form of the noise label.
const NoiseName = "noise"

// Config controls a clustering fit.
type Config struct {
	Algorithm Algorithm

	// K is the k-means cluster count; 0 derives round(sqrt(N)).
	K int

	// DBSCAN parameters: neighborhood radius (squared-euclidean in the
	// fitted space) and the core-point member threshold.
	Eps       float64
	MinPoints int

	// Projection settings. The projection is fitted once per FitPredict
	// and reused for all later centroid-mode assignments.
	UseProjection  bool
	ProjectionDims int

	// Seed makes k-means initialization reproducible.
	Seed int64
}

// DefaultConfig returns a k-means config with projection enabled.
func DefaultConfig() Config {
	return Config{
		Algorithm:      AlgorithmKMeans,
		Eps:            0.5,
		MinPoints:      3,
		UseProjection:  true,
		ProjectionDims: 64,
		Seed:           1,
	}
}

// Centroid is one cluster's representative vector in the fitted space.
type Centroid struct {
	Label  int
	Vector []float64
}

// Engine fits a clustering model over a batch of embedding vectors.
// It starts Unfitted; FitPredict (or Restore, for persisted artifacts)
// is the only transition to Fitted. Engines are not safe for concurrent
// mutation; fitted artifacts are immutable and safe to read concurrently.
type Engine struct {
	cfg    Config
	fitted bool

	inputDim    int
	original    [][]float32 // full-dimension inputs, kept for metrics
	fittedSpace [][]float64
	labels      []int
	centroids   []Centroid
	projection  *Projection
}

// New returns an unfitted engine for the given config.
func New(cfg Config) *Engine {
	if cfg.Algorithm == "" {
		cfg.Algorithm = AlgorithmKMeans
	}
	if cfg.ProjectionDims <= 0 {
		cfg.ProjectionDims = 64
	}
	return &Engine{cfg: cfg}
}

// FitPredict validates the embedding matrix, fits the configured model and
// returns one label per input row. DBSCAN may return -1 for noise points.
func (e *Engine) FitPredict(vectors [][]float32) ([]int, error) {
	if err := validateMatrix(vectors); err != nil {
		return nil, err
	}

	e.inputDim = len(vectors[0])
	e.original = vectors
	e.projection = nil

	// Reduce compute cost of the clustering step when the corpus is
	// large enough for the projection to be meaningful.
	if e.cfg.UseProjection && e.inputDim > e.cfg.ProjectionDims && len(vectors) > e.cfg.ProjectionDims {
		proj, err := FitProjection(vectors, e.cfg.ProjectionDims)
		if err != nil {
			return nil, fmt.Errorf("failed to fit projection: %w", err)
		}
		e.projection = proj
		e.fittedSpace = proj.TransformAll(vectors)
	} else {
		e.fittedSpace = toFloat64(vectors)
	}

	switch e.cfg.Algorithm {
	case AlgorithmDBSCAN:
		e.labels = dbscan(e.fittedSpace, e.cfg.Eps, e.cfg.MinPoints)
	case AlgorithmKMeans:
		e.labels = kmeans(e.fittedSpace, e.clusterCount(len(vectors)), e.cfg.Seed)
	default:
		return nil, fmt.Errorf("unknown clustering algorithm %q", e.cfg.Algorithm)
	}

	e.centroids = computeCentroids(e.fittedSpace, e.labels)
	e.fitted = true

	out := make([]int, len(e.labels))
	copy(out, e.labels)
	return out, nil
}

// Restore puts the engine into the Fitted state from persisted artifacts
// of an earlier batch fit, so incremental assignment can run in a fresh
// process without retraining. Either argument may be nil when the
// corresponding artifact was not retained.
func (e *Engine) Restore(projection *Projection, centroids []Centroid) {
	e.projection = projection
	e.centroids = centroids
	if projection != nil {
		e.inputDim = projection.InputDim
	}
	e.fitted = true
}

// Labels returns a copy of the fitted labels.
func (e *Engine) Labels() ([]int, error) {
	if !e.fitted {
		return nil, types.ErrNotFitted
	}
	out := make([]int, len(e.labels))
	copy(out, e.labels)
	return out, nil
}

// Centroids returns the per-cluster representative vectors in the fitted
// space, ordered by label.
func (e *Engine) Centroids() ([]Centroid, error) {
	if !e.fitted {
		return nil, types.ErrNotFitted
	}
	return e.centroids, nil
}

// ProjectionModel returns the fitted projection, or nil when none was
// configured or the input was too small to project.
func (e *Engine) ProjectionModel() *Projection {
	return e.projection
}

// GetClusterMembers returns the indices of all fitted inputs carrying the
// given label.
func (e *Engine) GetClusterMembers(label int) ([]int, error) {
	if !e.fitted {
		return nil, types.ErrNotFitted
	}

	var members []int
	for i, l := range e.labels {
		if l == label {
			members = append(members, i)
		}
	}
	return members, nil
}

// clusterCount resolves the k-means cluster count, deriving round(sqrt(N))
// when unset and clamping to [1, N].
func (e *Engine) clusterCount(n int) int {
	k := e.cfg.K
	if k <= 0 {
		k = int(math.Round(math.Sqrt(float64(n))))
	}
	if k < 1 {
		k = 1
	}
	if k > n {
		k = n
	}
	return k
}

// validateMatrix rejects empty or ragged input before any computation.
func validateMatrix(vectors [][]float32) error {
	if len(vectors) == 0 {
		return types.ErrEmptyInput
	}

	dim := len(vectors[0])
	if dim == 0 {
		return fmt.Errorf("%w: zero-dimension rows", types.ErrEmptyInput)
	}

	for i, v := range vectors {
		if len(v) != dim {
			return fmt.Errorf("%w: row %d has dimension %d, want %d",
				types.ErrRaggedMatrix, i, len(v), dim)
		}
	}

	return nil
}

// computeCentroids averages cluster members in the fitted space. Noise
// points contribute no centroid. Centroids come back ordered by label.
func computeCentroids(points [][]float64, labels []int) []Centroid {
	if len(points) == 0 {
		return nil
	}
	dim := len(points[0])

	sums := make(map[int][]float64)
	counts := make(map[int]int)
	maxLabel := -1

	for i, l := range labels {
		if l == Noise {
			continue
		}
		if sums[l] == nil {
			sums[l] = make([]float64, dim)
		}
		for j, x := range points[i] {
			sums[l][j] += x
		}
		counts[l]++
		if l > maxLabel {
			maxLabel = l
		}
	}

	centroids := make([]Centroid, 0, len(sums))
	for label := 0; label <= maxLabel; label++ {
		sum, ok := sums[label]
		if !ok {
			continue
		}
		vec := make([]float64, dim)
		for j := range sum {
			vec[j] = sum[j] / float64(counts[label])
		}
		centroids = append(centroids, Centroid{Label: label, Vector: vec})
	}

	return centroids
}
