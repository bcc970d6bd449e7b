// Package embedder is the boundary to the external embedding-vector
// generator. The core engines never call a model; they consume the
// fixed-dimension vectors this package produces.
//
// Providers implement the Embedder interface: an OpenAI-backed HTTP
// provider and a deterministic local provider for offline and test use.
// Results are cached in an LRU keyed by content hash. Transient API
// failures are retried with exponential backoff, gated on a typed error
// kind (rate-limit, server) rather than error-text matching.
package embedder
