package types

import (
	"errors"
	"fmt"
)

// Domain errors shared by the segmentation and clustering engines
var (
	// Segmentation configuration errors (fatal at construction)
	ErrInvalidConfig = errors.New("invalid chunk configuration")

	// Clustering validation errors (raised before any computation)
	ErrEmptyInput     = errors.New("input matrix cannot be empty")
	ErrRaggedMatrix   = errors.New("input matrix rows must share one dimension")
	ErrLengthMismatch = errors.New("ids and labels must have equal length")

	// Clustering state errors
	ErrNotFitted    = errors.New("clustering engine is not fitted")
	ErrNoProjection = errors.New("no projection model has been fitted")
	ErrUnknownLabel = errors.New("unknown cluster label")
)

// DimensionError reports a vector dimension that disagrees with what a
// fitted model expects. It carries both values so callers can log an
// actionable message instead of silently truncating or padding.
type DimensionError struct {
	What     string // which vector family mismatched, e.g. "input vector"
	Expected int
	Actual   int
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("%s dimension mismatch: expected %d, got %d", e.What, e.Expected, e.Actual)
}

// Is allows errors.Is comparisons against another DimensionError regardless
// of the recorded values.
func (e *DimensionError) Is(target error) bool {
	_, ok := target.(*DimensionError)
	return ok
}
