package types

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
)

// BoundaryType classifies a candidate split point in document text.
type BoundaryType string

const (
	BoundaryHighlight BoundaryType = "highlight"
	BoundaryParagraph BoundaryType = "paragraph"
	BoundarySentence  BoundaryType = "sentence"
)

// Priority returns the cut preference for the boundary type.
// Lower values are preferred cuts: highlight=1, paragraph=2, sentence=3.
func (t BoundaryType) Priority() int {
	switch t {
	case BoundaryHighlight:
		return 1
	case BoundaryParagraph:
		return 2
	default:
		return 3
	}
}

// Boundary is a candidate split point in body text. Position is a byte
// offset into the body; a cut at a boundary ends the current chunk at that
// offset. Detectors emit boundaries sorted by Position, ties broken by
// ascending Priority.
type Boundary struct {
	Position int
	Type     BoundaryType
	Priority int
}

// Chunk represents a bounded slice of a document's body text for embedding
// and retrieval.
type Chunk struct {
	// Content is the exact body slice. Overlap context from neighbors is
	// never duplicated into Content, so concatenating a document's chunks
	// in index order reproduces the body text.
	Content     string
	ContentHash [32]byte // SHA-256 of Content, for unchanged-chunk detection
	TokenCount  int

	// Position within the parent document
	ChunkIndex  int
	TotalChunks int
	ParentDocID string

	// Overlap bookkeeping: token counts borrowed from neighbors.
	// OverlapStart is 0 for the first chunk, OverlapEnd 0 for the last.
	OverlapStart int
	OverlapEnd   int

	// Frontmatter holds the parent document's metadata plus the injected
	// doc_id, chunk_id, chunk_index and total_chunks fields.
	Frontmatter map[string]any
}

// ChunkID returns the stable identifier "{doc_id}-chunk-{index:03d}".
func (c *Chunk) ChunkID() string {
	return fmt.Sprintf("%s-chunk-%03d", c.ParentDocID, c.ChunkIndex)
}

// ComputeContentHash computes the SHA-256 hash of the chunk content.
func (c *Chunk) ComputeContentHash() {
	c.ContentHash = sha256.Sum256([]byte(c.Content))
}

// HashString returns the content hash as a hex string for serialization.
func (c *Chunk) HashString() string {
	return hex.EncodeToString(c.ContentHash[:])
}

// Validate performs structural validation of the chunk.
func (c *Chunk) Validate() error {
	if c.ParentDocID == "" {
		return errors.New("parent document ID is required")
	}

	if c.TotalChunks < 1 {
		return errors.New("total chunks must be at least 1")
	}

	if c.ChunkIndex < 0 || c.ChunkIndex >= c.TotalChunks {
		return fmt.Errorf("chunk index %d out of range [0, %d)", c.ChunkIndex, c.TotalChunks)
	}

	if c.OverlapStart < 0 || c.OverlapEnd < 0 {
		return errors.New("overlap token counts cannot be negative")
	}

	// Verify content hash is computed
	var zeroHash [32]byte
	if c.ContentHash == zeroHash && c.Content != "" {
		return errors.New("content hash must be computed")
	}

	return nil
}
