package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBoundaryType_Priority(t *testing.T) {
	assert.Equal(t, 1, BoundaryHighlight.Priority())
	assert.Equal(t, 2, BoundaryParagraph.Priority())
	assert.Equal(t, 3, BoundarySentence.Priority())
	assert.Equal(t, 3, BoundaryType("anything else").Priority())
}

func TestChunkID(t *testing.T) {
	c := Chunk{ParentDocID: "notes", ChunkIndex: 7}
	assert.Equal(t, "notes-chunk-007", c.ChunkID())

	c.ChunkIndex = 123
	assert.Equal(t, "notes-chunk-123", c.ChunkID())
}

func TestContentHash(t *testing.T) {
	a := Chunk{Content: "same text"}
	b := Chunk{Content: "same text"}
	c := Chunk{Content: "other text"}
	a.ComputeContentHash()
	b.ComputeContentHash()
	c.ComputeContentHash()

	assert.Equal(t, a.ContentHash, b.ContentHash)
	assert.NotEqual(t, a.ContentHash, c.ContentHash)
	assert.Len(t, a.HashString(), 64)
}

func TestChunkValidate(t *testing.T) {
	valid := Chunk{
		Content:     "body",
		ParentDocID: "doc",
		ChunkIndex:  0,
		TotalChunks: 2,
	}
	valid.ComputeContentHash()
	require.NoError(t, valid.Validate())

	cases := []struct {
		name   string
		mutate func(*Chunk)
	}{
		{"missing doc id", func(c *Chunk) { c.ParentDocID = "" }},
		{"zero total", func(c *Chunk) { c.TotalChunks = 0 }},
		{"index out of range", func(c *Chunk) { c.ChunkIndex = 2 }},
		{"negative index", func(c *Chunk) { c.ChunkIndex = -1 }},
		{"negative overlap", func(c *Chunk) { c.OverlapStart = -1 }},
		{"hash not computed", func(c *Chunk) { c.ContentHash = [32]byte{} }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := valid
			tc.mutate(&c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestDimensionError(t *testing.T) {
	err := &DimensionError{What: "input vector", Expected: 384, Actual: 3}
	assert.Equal(t, "input vector dimension mismatch: expected 384, got 3", err.Error())

	wrapped := fmt.Errorf("assignment failed: %w", err)
	assert.ErrorIs(t, wrapped, &DimensionError{})

	var dim *DimensionError
	require.ErrorAs(t, wrapped, &dim)
	assert.Equal(t, 384, dim.Expected)
	assert.Equal(t, 3, dim.Actual)

	assert.False(t, errors.Is(err, ErrNotFitted))
}
