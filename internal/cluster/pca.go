package cluster

import (
	"encoding/binary"
	"fmt"
	"math"
	"math/rand"

	"github.com/mfield/textcorpus-mcp/pkg/types"
)

const (
	powerIterations = 50
	projectionSeed  = 7
)

// Projection is a fitted PCA transform mapping full-dimension embedding
// vectors into a reduced space that preserves neighborhood structure.
// It is fitted once by a batch fit and reused, unchanged, for every later
// centroid-mode assignment.
type Projection struct {
	InputDim  int
	OutputDim int
	Mean      []float64
	// Components holds OutputDim orthonormal rows of length InputDim.
	Components [][]float64
}

// FitProjection computes the top outDim principal components of the
// mean-centered input via power iteration with Gram-Schmidt deflation.
// The covariance matrix is never materialized; each iteration multiplies
// through the data, so cost is O(iterations * n * dim) per component.
func FitProjection(vectors [][]float32, outDim int) (*Projection, error) {
	if err := validateMatrix(vectors); err != nil {
		return nil, err
	}

	n := len(vectors)
	dim := len(vectors[0])
	if outDim <= 0 || outDim > dim || outDim > n {
		return nil, fmt.Errorf("projection dims %d out of range for %dx%d input", outDim, n, dim)
	}

	mean := make([]float64, dim)
	for _, v := range vectors {
		for j, x := range v {
			mean[j] += float64(x)
		}
	}
	for j := range mean {
		mean[j] /= float64(n)
	}

	centered := make([][]float64, n)
	for i, v := range vectors {
		row := make([]float64, dim)
		for j, x := range v {
			row[j] = float64(x) - mean[j]
		}
		centered[i] = row
	}

	rng := rand.New(rand.NewSource(projectionSeed))
	components := make([][]float64, 0, outDim)

	for c := 0; c < outDim; c++ {
		v := randomUnit(dim, rng)
		for iter := 0; iter < powerIterations; iter++ {
			orthogonalize(v, components)
			w := covarianceMultiply(centered, v)
			orthogonalize(w, components)
			if norm := normalize(w); norm == 0 {
				// Remaining variance is exhausted; keep a random direction
				w = randomUnit(dim, rng)
				orthogonalize(w, components)
				normalize(w)
			}
			v = w
		}
		components = append(components, v)
	}

	return &Projection{
		InputDim:   dim,
		OutputDim:  outDim,
		Mean:       mean,
		Components: components,
	}, nil
}

// Transform projects one full-dimension vector into the reduced space.
func (p *Projection) Transform(v []float32) ([]float64, error) {
	if len(v) != p.InputDim {
		return nil, &types.DimensionError{What: "input vector", Expected: p.InputDim, Actual: len(v)}
	}

	centered := make([]float64, p.InputDim)
	for j, x := range v {
		centered[j] = float64(x) - p.Mean[j]
	}

	out := make([]float64, p.OutputDim)
	for c, comp := range p.Components {
		var dot float64
		for j, x := range centered {
			dot += x * comp[j]
		}
		out[c] = dot
	}
	return out, nil
}

// TransformAll projects a matrix of vectors already known to match the
// input dimension.
func (p *Projection) TransformAll(vectors [][]float32) [][]float64 {
	out := make([][]float64, len(vectors))
	for i, v := range vectors {
		row, err := p.Transform(v)
		if err != nil {
			// Callers validate dimensions before bulk transforms
			row = make([]float64, p.OutputDim)
		}
		out[i] = row
	}
	return out
}

// MarshalBinary serializes the projection as little-endian: two uint32
// dimensions, the mean vector, then the component rows.
func (p *Projection) MarshalBinary() ([]byte, error) {
	size := 8 + 8*p.InputDim + 8*p.InputDim*p.OutputDim
	buf := make([]byte, size)

	binary.LittleEndian.PutUint32(buf[0:], uint32(p.InputDim))
	binary.LittleEndian.PutUint32(buf[4:], uint32(p.OutputDim))

	off := 8
	for _, m := range p.Mean {
		binary.LittleEndian.PutUint64(buf[off:], math.Float64bits(m))
		off += 8
	}
	for _, comp := range p.Components {
		for _, x := range comp {
			binary.LittleEndian.PutUint64(buf[off:], math.Float64bits(x))
			off += 8
		}
	}

	return buf, nil
}

// UnmarshalBinary restores a projection serialized by MarshalBinary.
func (p *Projection) UnmarshalBinary(data []byte) error {
	if len(data) < 8 {
		return fmt.Errorf("projection blob too short: %d bytes", len(data))
	}

	inDim := int(binary.LittleEndian.Uint32(data[0:]))
	outDim := int(binary.LittleEndian.Uint32(data[4:]))

	want := 8 + 8*inDim + 8*inDim*outDim
	if len(data) != want {
		return fmt.Errorf("projection blob size mismatch: expected %d bytes, got %d", want, len(data))
	}

	mean := make([]float64, inDim)
	off := 8
	for j := range mean {
		mean[j] = math.Float64frombits(binary.LittleEndian.Uint64(data[off:]))
		off += 8
	}

	components := make([][]float64, outDim)
	for c := range components {
		row := make([]float64, inDim)
		for j := range row {
			row[j] = math.Float64frombits(binary.LittleEndian.Uint64(data[off:]))
			off += 8
		}
		components[c] = row
	}

	p.InputDim = inDim
	p.OutputDim = outDim
	p.Mean = mean
	p.Components = components
	return nil
}

// covarianceMultiply computes (1/n) * Xᵀ(Xv) over the centered data
// without forming the covariance matrix.
func covarianceMultiply(centered [][]float64, v []float64) []float64 {
	dim := len(v)
	out := make([]float64, dim)

	for _, row := range centered {
		var dot float64
		for j, x := range row {
			dot += x * v[j]
		}
		for j, x := range row {
			out[j] += dot * x
		}
	}

	n := float64(len(centered))
	for j := range out {
		out[j] /= n
	}
	return out
}

// orthogonalize removes the projections of v onto each basis row in place.
func orthogonalize(v []float64, basis [][]float64) {
	for _, b := range basis {
		var dot float64
		for j, x := range v {
			dot += x * b[j]
		}
		for j := range v {
			v[j] -= dot * b[j]
		}
	}
}

// normalize scales v to unit length in place and returns the prior norm.
func normalize(v []float64) float64 {
	var sum float64
	for _, x := range v {
		sum += x * x
	}
	norm := math.Sqrt(sum)
	if norm == 0 {
		return 0
	}
	for j := range v {
		v[j] /= norm
	}
	return norm
}

// randomUnit returns a unit vector with components drawn from N(0,1).
func randomUnit(dim int, rng *rand.Rand) []float64 {
	v := make([]float64, dim)
	for j := range v {
		v[j] = rng.NormFloat64()
	}
	if normalize(v) == 0 {
		v[0] = 1
	}
	return v
}
