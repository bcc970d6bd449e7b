// Package mcp exposes the corpus workflows as MCP tools over stdio.
//
// The server registers six tools:
//
//   - ingest_document: segment a document into token-budgeted chunks,
//     embed each chunk and persist everything. Unchanged documents
//     (same content hash) are skipped.
//
//   - cluster_corpus: fit a clustering model (k-means or DBSCAN) over
//     every stored embedding and persist the run, centroids and
//     per-chunk assignments atomically. Returns the chunk-to-cluster
//     mapping and quality metrics.
//
//   - assign_new_chunks: label chunks embedded since the latest run
//     without refitting, using the persisted projection and centroids
//     when available and nearest-neighbor matching otherwise.
//
//   - get_cluster_members: list the chunks assigned to one cluster
//     under the latest run.
//
//   - find_similar: embed a query and return the most similar stored
//     chunks with their similarity scores and cluster names.
//
//   - corpus_status: report document, chunk and embedding counts plus
//     the latest cluster run.
//
// All tool errors carry JSON-RPC style codes; long-running workflows
// that collide return a busy error rather than queueing. Logging goes
// to stderr since stdout carries the MCP protocol.
package mcp
