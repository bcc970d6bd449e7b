// Package storage persists the corpus: documents, their chunks, the
// embedding vectors produced for them, and the clustering artifacts
// (runs, centroids, assignments) that incremental assignment reads back.
//
// Two SQLite drivers are supported via build tags. The default pure-Go
// build uses modernc.org/sqlite; the sqlite_vec tag switches to
// github.com/mattn/go-sqlite3 with the sqlite-vec extension for SQL-level
// vector similarity search. Embedding vectors are stored as little-endian
// float32 blobs either way.
//
// Cluster artifacts form an immutable snapshot: a run row, its centroids
// and its assignments are committed in one transaction, and readers only
// ever load the latest complete run, so a re-fit can never expose a
// partially-updated centroid set.
package storage
