package storage

import (
	"context"
	"time"
)

// Writer groups the mutating operations available both directly and
// inside a transaction.
type Writer interface {
	UpsertDocument(ctx context.Context, doc *Document) error
	UpsertChunk(ctx context.Context, chunk *Chunk) error
	UpsertEmbedding(ctx context.Context, embedding *Embedding) error

	// Cluster snapshot operations. A fit commits its run, centroids and
	// assignments inside one transaction so readers never observe a
	// partial snapshot.
	CreateClusterRun(ctx context.Context, run *ClusterRun) error
	InsertCentroids(ctx context.Context, runID string, centroids []*Centroid) error
	UpsertAssignments(ctx context.Context, assignments []*Assignment) error
}

// Storage defines the interface for persisting and querying corpus data
type Storage interface {
	Writer

	// Document operations
	GetDocument(ctx context.Context, docID string) (*Document, error)
	ListDocuments(ctx context.Context) ([]*Document, error)
	DeleteDocument(ctx context.Context, docID string) error

	// Chunk operations
	GetChunk(ctx context.Context, id int64) (*Chunk, error)
	GetChunkByKey(ctx context.Context, chunkKey string) (*Chunk, error)
	ListChunksByDocument(ctx context.Context, docID string) ([]*Chunk, error)
	DeleteChunksByDocument(ctx context.Context, docID string) error

	// Embedding operations
	GetEmbedding(ctx context.Context, chunkID int64) (*Embedding, error)
	ListEmbeddings(ctx context.Context) ([]*Embedding, error)

	// Cluster artifact operations
	GetLatestClusterRun(ctx context.Context) (*ClusterRun, error)
	ListCentroids(ctx context.Context, runID string) ([]*Centroid, error)
	ListAssignments(ctx context.Context, runID string) ([]*Assignment, error)
	ListUnassignedEmbeddings(ctx context.Context, runID string) ([]*Embedding, error)

	// Search operations
	SearchVector(ctx context.Context, queryVector []float32, limit int) ([]VectorResult, error)

	// Status operations
	GetStatus(ctx context.Context) (*CorpusStatus, error)

	// Database operations
	Close() error
	BeginTx(ctx context.Context) (Tx, error)
}

// Tx is a transaction over the mutating operations
type Tx interface {
	Writer
	Commit() error
	Rollback() error
}

// Document represents one ingested source document
type Document struct {
	ID          string // external document identifier
	Frontmatter string // JSON-encoded metadata map
	ContentHash [32]byte
	TotalChunks int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Chunk is the persisted form of a segmented chunk
type Chunk struct {
	ID           int64
	DocID        string
	ChunkKey     string // "{doc_id}-chunk-{index:03d}"
	ChunkIndex   int
	TotalChunks  int
	Content      string
	ContentHash  [32]byte
	TokenCount   int
	OverlapStart int
	OverlapEnd   int
	Frontmatter  string // JSON-encoded provenance map
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Embedding is a stored vector for one chunk. ChunkKey is populated on
// list queries via a join so callers can build id/label mappings without
// a second lookup.
type Embedding struct {
	ChunkID   int64
	ChunkKey  string
	Vector    []float32
	Dimension int
	Provider  string
	Model     string
	CreatedAt time.Time
}

// ClusterRun records one batch clustering fit. Projection is the
// serialized projection model when one was retained; ProjectedDim is 0
// when clustering ran in the original space.
type ClusterRun struct {
	ID           string
	Algorithm    string
	ClusterCount int
	NoiseCount   int
	Silhouette   *float64
	InputDim     int
	ProjectedDim int
	Projection   []byte
	CreatedAt    time.Time
}

// Centroid is one cluster's representative vector for a run, stored in
// the run's fitted space.
type Centroid struct {
	RunID  string
	Label  int
	Vector []float64
}

// Assignment maps one chunk to its textual cluster for a run
type Assignment struct {
	RunID    string
	ChunkID  int64
	ChunkKey string
	Cluster  string // "cluster-{n}" or "noise"
}

// VectorResult represents a chunk found by vector similarity search
type VectorResult struct {
	ChunkID         int64
	SimilarityScore float64
}

// CorpusStatus summarizes the stored corpus
type CorpusStatus struct {
	Documents  int
	Chunks     int
	Embeddings int
	LatestRun  *ClusterRun
}
