// Package pipeline orchestrates the corpus workflows: concurrent document
// ingestion (segment, embed, persist), batch clustering with atomically
// committed artifacts, incremental assignment of chunks embedded after the
// last fit, and similarity search over stored vectors.
//
// Ingestion and clustering are mutually exclusive; a RunLock rejects a
// second concurrent workflow instead of queueing it.
package pipeline
