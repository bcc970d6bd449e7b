// Package types provides shared type definitions for the TextCorpus MCP server.
//
// This package defines the domain types used across components: documents,
// boundaries, chunks, and the error taxonomy shared by the segmentation and
// clustering engines.
//
// # Core Types
//
// Boundary represents a candidate split point detected in document text,
// tagged with a type and a priority (lower is a stronger preference):
//
//	boundary := types.Boundary{
//	    Position: 1024,
//	    Type:     types.BoundaryParagraph,
//	    Priority: types.BoundaryParagraph.Priority(),
//	}
//
// Chunk represents a bounded, contiguous slice of a document's body text
// carrying positional and provenance metadata:
//
//	chunk := &types.Chunk{
//	    Content:     body[0:cut],
//	    ChunkIndex:  0,
//	    TotalChunks: 3,
//	    ParentDocID: "book-42",
//	}
//	chunk.ComputeContentHash()
//
// Concatenating Content of a document's chunks in ChunkIndex order
// reproduces the original body text exactly; overlap fields record token
// counts of context borrowed from neighbors and are never duplicated into
// Content.
//
// # Errors
//
// Engine misuse surfaces as sentinel errors (ErrNotFitted, ErrEmptyInput,
// ...) wrapped with detail, or as a DimensionError carrying the expected
// and actual vector dimensions so callers can log an actionable message.
package types
