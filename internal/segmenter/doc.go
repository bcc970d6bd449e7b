// Package segmenter splits long-form text documents into size-bounded,
// overlap-linked chunks suitable for embedding and retrieval.
//
// The split is driven by a priority-ordered boundary scheme: block-quoted
// highlight lines are the strongest preferred cuts, then paragraph breaks,
// then sentence ends. Chunk sizes are measured in tokens against a
// configured budget (min < target < max); when no acceptable boundary
// exists, a hard cut is forced at the max-token budget.
//
// A document may begin with a "---" delimited frontmatter block. Parsed
// metadata is copied into every chunk along with injected provenance
// fields (doc_id, chunk_id, chunk_index, total_chunks). Malformed
// frontmatter is never fatal: the whole input is treated as body text.
package segmenter
