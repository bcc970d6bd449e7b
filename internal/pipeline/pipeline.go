package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync/atomic"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/mfield/textcorpus-mcp/internal/cluster"
	"github.com/mfield/textcorpus-mcp/internal/embedder"
	"github.com/mfield/textcorpus-mcp/internal/segmenter"
	"github.com/mfield/textcorpus-mcp/internal/storage"
	"github.com/mfield/textcorpus-mcp/pkg/types"
)

// DefaultWorkers bounds concurrent document ingestion
const DefaultWorkers = 4

// ErrNoClusterRun is returned when incremental assignment runs before any
// batch fit has been persisted.
var ErrNoClusterRun = errors.New("no cluster run exists; run a batch clustering first")

// Pipeline wires the segmenter, embedder and storage into the corpus
// workflows.
type Pipeline struct {
	store    storage.Storage
	embedder embedder.Embedder
	seg      *segmenter.Segmenter
	lock     RunLock
	logger   *log.Logger
	workers  int
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithWorkers sets the ingestion concurrency
func WithWorkers(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.workers = n
		}
	}
}

// WithLogger sets the pipeline logger
func WithLogger(l *log.Logger) Option {
	return func(p *Pipeline) {
		p.logger = l
	}
}

// New creates a pipeline over the given storage, embedder and segmenter
func New(store storage.Storage, emb embedder.Embedder, seg *segmenter.Segmenter, opts ...Option) *Pipeline {
	p := &Pipeline{
		store:    store,
		embedder: emb,
		seg:      seg,
		logger:   log.Default(),
		workers:  DefaultWorkers,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ProcessStats reports the outcome of one ingestion run
type ProcessStats struct {
	DocumentsProcessed int64
	DocumentsSkipped   int64
	ChunksCreated      int64
	EmbeddingsCreated  int64
	Errors             int64
}

// ProcessDocuments ingests documents concurrently: each is segmented,
// embedded and persisted in its own transaction. Documents whose content
// hash matches the stored record are skipped. Per-document failures are
// counted and logged; they do not abort the rest of the batch.
func (p *Pipeline) ProcessDocuments(ctx context.Context, docs []*types.Document) (*ProcessStats, error) {
	if !p.lock.TryAcquire() {
		return nil, ErrBusy
	}
	defer p.lock.Release()

	stats := &ProcessStats{}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)

	for _, doc := range docs {
		doc := doc
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			skipped, chunks, err := p.processDocument(ctx, doc)
			if err != nil {
				atomic.AddInt64(&stats.Errors, 1)
				p.logger.Printf("ingest %s: %v", doc.ID, err)
				return nil
			}
			if skipped {
				atomic.AddInt64(&stats.DocumentsSkipped, 1)
				return nil
			}
			atomic.AddInt64(&stats.DocumentsProcessed, 1)
			atomic.AddInt64(&stats.ChunksCreated, int64(chunks))
			atomic.AddInt64(&stats.EmbeddingsCreated, int64(chunks))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return stats, err
	}
	return stats, nil
}

func (p *Pipeline) processDocument(ctx context.Context, doc *types.Document) (skipped bool, chunkCount int, err error) {
	if doc == nil || doc.ID == "" {
		return false, 0, fmt.Errorf("document id is required")
	}

	contentHash := sha256.Sum256([]byte(doc.Raw))

	existing, err := p.store.GetDocument(ctx, doc.ID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return false, 0, err
	}
	if existing != nil && existing.ContentHash == contentHash {
		return true, 0, nil
	}

	chunks := p.seg.SplitDocument(doc.Raw, doc.ID)

	vectors, err := p.embedChunks(ctx, chunks)
	if err != nil {
		return false, 0, err
	}

	meta, _ := segmenter.ParseFrontmatter(doc.Raw)
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return false, 0, fmt.Errorf("encode document frontmatter: %w", err)
	}

	// Re-ingestion may shrink the chunk count; drop the old rows so stale
	// trailing chunks cannot survive.
	if existing != nil {
		if err := p.store.DeleteChunksByDocument(ctx, doc.ID); err != nil {
			return false, 0, err
		}
	}

	tx, err := p.store.BeginTx(ctx)
	if err != nil {
		return false, 0, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = tx.UpsertDocument(ctx, &storage.Document{
		ID:          doc.ID,
		Frontmatter: string(metaJSON),
		ContentHash: contentHash,
		TotalChunks: len(chunks),
	}); err != nil {
		return false, 0, err
	}

	for i, c := range chunks {
		chunkMeta, merr := json.Marshal(c.Frontmatter)
		if merr != nil {
			err = fmt.Errorf("encode chunk frontmatter: %w", merr)
			return false, 0, err
		}

		rec := &storage.Chunk{
			DocID:        doc.ID,
			ChunkKey:     c.ChunkID(),
			ChunkIndex:   c.ChunkIndex,
			TotalChunks:  c.TotalChunks,
			Content:      c.Content,
			ContentHash:  c.ContentHash,
			TokenCount:   c.TokenCount,
			OverlapStart: c.OverlapStart,
			OverlapEnd:   c.OverlapEnd,
			Frontmatter:  string(chunkMeta),
		}
		if err = tx.UpsertChunk(ctx, rec); err != nil {
			return false, 0, err
		}

		if err = tx.UpsertEmbedding(ctx, &storage.Embedding{
			ChunkID:  rec.ID,
			Vector:   vectors[i].Vector,
			Provider: vectors[i].Provider,
			Model:    vectors[i].Model,
		}); err != nil {
			return false, 0, err
		}
	}

	if err = tx.Commit(); err != nil {
		return false, 0, err
	}
	return false, len(chunks), nil
}

// embedChunks embeds chunk contents in provider-sized batches, preserving
// chunk order.
func (p *Pipeline) embedChunks(ctx context.Context, chunks []*types.Chunk) ([]*embedder.Embedding, error) {
	out := make([]*embedder.Embedding, 0, len(chunks))

	for start := 0; start < len(chunks); start += embedder.MaxBatchSize {
		end := start + embedder.MaxBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}

		texts := make([]string, 0, end-start)
		for _, c := range chunks[start:end] {
			text := c.Content
			if text == "" {
				// Empty documents still produce one chunk; embed a
				// placeholder so the corpus stays searchable.
				text = "\n"
			}
			texts = append(texts, text)
		}

		resp, err := p.embedder.GenerateBatch(ctx, embedder.BatchEmbeddingRequest{Texts: texts})
		if err != nil {
			return nil, fmt.Errorf("embed batch: %w", err)
		}
		if len(resp.Embeddings) != len(texts) {
			return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(resp.Embeddings), len(texts))
		}
		out = append(out, resp.Embeddings...)
	}

	return out, nil
}

// ClusterReport is the result of one batch clustering run
type ClusterReport struct {
	RunID      string
	Algorithm  string
	Metrics    *cluster.QualityMetrics
	Assignment map[string][]string // chunk key -> ["cluster-n"] or ["noise"]
}

// ClusterCorpus fits a clustering model over every stored embedding and
// persists the run, its centroids and its assignments as one atomic
// snapshot.
func (p *Pipeline) ClusterCorpus(ctx context.Context, cfg cluster.Config) (*ClusterReport, error) {
	if !p.lock.TryAcquire() {
		return nil, ErrBusy
	}
	defer p.lock.Release()

	embeddings, err := p.store.ListEmbeddings(ctx)
	if err != nil {
		return nil, err
	}
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("%w: corpus has no embeddings", types.ErrEmptyInput)
	}

	matrix := make([][]float32, len(embeddings))
	keys := make([]string, len(embeddings))
	chunkIDs := make([]int64, len(embeddings))
	for i, e := range embeddings {
		matrix[i] = e.Vector
		keys[i] = e.ChunkKey
		chunkIDs[i] = e.ChunkID
	}

	engine := cluster.New(cfg)
	labels, err := engine.FitPredict(matrix)
	if err != nil {
		return nil, fmt.Errorf("cluster fit: %w", err)
	}

	metrics, err := engine.ComputeQualityMetrics()
	if err != nil {
		return nil, err
	}

	centroids, err := engine.Centroids()
	if err != nil {
		return nil, err
	}

	mapping, err := cluster.CreateClusterMapping(keys, labels)
	if err != nil {
		return nil, err
	}

	algorithm := cfg.Algorithm
	if algorithm == "" {
		algorithm = cluster.AlgorithmKMeans
	}

	run := &storage.ClusterRun{
		ID:           uuid.NewString(),
		Algorithm:    string(algorithm),
		ClusterCount: metrics.Clusters,
		NoiseCount:   metrics.NoisePoints,
		Silhouette:   metrics.Silhouette,
		InputDim:     len(matrix[0]),
	}
	if proj := engine.ProjectionModel(); proj != nil {
		blob, merr := proj.MarshalBinary()
		if merr != nil {
			return nil, fmt.Errorf("serialize projection: %w", merr)
		}
		run.Projection = blob
		run.ProjectedDim = proj.OutputDim
	}

	if err := p.persistRun(ctx, run, centroids, chunkIDs, labels); err != nil {
		return nil, err
	}

	p.logger.Printf("cluster run %s: %d clusters, %d noise points over %d chunks",
		run.ID, metrics.Clusters, metrics.NoisePoints, len(embeddings))

	return &ClusterReport{
		RunID:      run.ID,
		Algorithm:  string(algorithm),
		Metrics:    metrics,
		Assignment: mapping,
	}, nil
}

func (p *Pipeline) persistRun(ctx context.Context, run *storage.ClusterRun, centroids []cluster.Centroid, chunkIDs []int64, labels []int) (err error) {
	tx, err := p.store.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = tx.CreateClusterRun(ctx, run); err != nil {
		return err
	}

	recs := make([]*storage.Centroid, len(centroids))
	for i, c := range centroids {
		recs[i] = &storage.Centroid{RunID: run.ID, Label: c.Label, Vector: c.Vector}
	}
	if err = tx.InsertCentroids(ctx, run.ID, recs); err != nil {
		return err
	}

	assignments := make([]*storage.Assignment, len(chunkIDs))
	for i, id := range chunkIDs {
		assignments[i] = &storage.Assignment{
			RunID:   run.ID,
			ChunkID: id,
			Cluster: cluster.ClusterName(labels[i]),
		}
	}
	if err = tx.UpsertAssignments(ctx, assignments); err != nil {
		return err
	}

	return tx.Commit()
}

// AssignReport is the result of one incremental assignment pass
type AssignReport struct {
	RunID      string
	Assigned   int
	Mode       string // "centroid" or "nearest-neighbor"
	Assignment map[string][]string
}

// Assignment modes
const (
	ModeCentroid        = "centroid"
	ModeNearestNeighbor = "nearest-neighbor"
)

// AssignNewChunks labels every chunk embedded since the latest cluster run
// without refitting. When the run retained a projection model the new
// vectors are projected and matched against stored centroids; otherwise
// each is given the label of its angularly nearest assigned neighbor.
func (p *Pipeline) AssignNewChunks(ctx context.Context) (*AssignReport, error) {
	if !p.lock.TryAcquire() {
		return nil, ErrBusy
	}
	defer p.lock.Release()

	run, err := p.store.GetLatestClusterRun(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrNoClusterRun
		}
		return nil, err
	}

	pending, err := p.store.ListUnassignedEmbeddings(ctx, run.ID)
	if err != nil {
		return nil, err
	}
	if len(pending) == 0 {
		return &AssignReport{RunID: run.ID, Assignment: map[string][]string{}}, nil
	}

	matrix := make([][]float32, len(pending))
	keys := make([]string, len(pending))
	chunkIDs := make([]int64, len(pending))
	for i, e := range pending {
		matrix[i] = e.Vector
		keys[i] = e.ChunkKey
		chunkIDs[i] = e.ChunkID
	}

	var labels []int
	var mode string
	if len(run.Projection) > 0 {
		labels, err = p.assignByCentroids(ctx, run, matrix)
		mode = ModeCentroid
	} else {
		labels, err = p.assignByNeighbors(ctx, run, matrix)
		mode = ModeNearestNeighbor
	}
	if err != nil {
		return nil, err
	}

	assignments := make([]*storage.Assignment, len(labels))
	for i, l := range labels {
		assignments[i] = &storage.Assignment{
			RunID:   run.ID,
			ChunkID: chunkIDs[i],
			Cluster: cluster.ClusterName(l),
		}
	}
	if err := p.store.UpsertAssignments(ctx, assignments); err != nil {
		return nil, err
	}

	mapping, err := cluster.CreateClusterMapping(keys, labels)
	if err != nil {
		return nil, err
	}

	p.logger.Printf("assigned %d new chunks to run %s (%s mode)", len(labels), run.ID, mode)

	return &AssignReport{
		RunID:      run.ID,
		Assigned:   len(labels),
		Mode:       mode,
		Assignment: mapping,
	}, nil
}

func (p *Pipeline) assignByCentroids(ctx context.Context, run *storage.ClusterRun, matrix [][]float32) ([]int, error) {
	proj := &cluster.Projection{}
	if err := proj.UnmarshalBinary(run.Projection); err != nil {
		return nil, fmt.Errorf("restore projection for run %s: %w", run.ID, err)
	}

	recs, err := p.store.ListCentroids(ctx, run.ID)
	if err != nil {
		return nil, err
	}
	centroids := make([]cluster.Centroid, len(recs))
	for i, r := range recs {
		centroids[i] = cluster.Centroid{Label: r.Label, Vector: r.Vector}
	}

	engine := cluster.New(cluster.Config{})
	engine.Restore(proj, centroids)
	return engine.TransformAndAssign(matrix, centroids)
}

func (p *Pipeline) assignByNeighbors(ctx context.Context, run *storage.ClusterRun, matrix [][]float32) ([]int, error) {
	assigned, err := p.store.ListAssignments(ctx, run.ID)
	if err != nil {
		return nil, err
	}
	if len(assigned) == 0 {
		return nil, fmt.Errorf("%w: run %s has no assignments", types.ErrEmptyInput, run.ID)
	}

	labelByChunk := make(map[int64]int, len(assigned))
	for _, a := range assigned {
		label, perr := cluster.ParseClusterName(a.Cluster)
		if perr != nil {
			return nil, fmt.Errorf("run %s: %w", run.ID, perr)
		}
		labelByChunk[a.ChunkID] = label
	}

	all, err := p.store.ListEmbeddings(ctx)
	if err != nil {
		return nil, err
	}

	var historical [][]float32
	var historicalLabels []int
	for _, e := range all {
		if label, ok := labelByChunk[e.ChunkID]; ok {
			historical = append(historical, e.Vector)
			historicalLabels = append(historicalLabels, label)
		}
	}

	engine := cluster.New(cluster.Config{})
	engine.Restore(nil, nil)
	return engine.AssignToExistingClusters(matrix, historical, historicalLabels)
}

// SimilarChunk pairs a stored chunk with its similarity to a query and the
// cluster it belongs to under the latest run, when one exists.
type SimilarChunk struct {
	Chunk      *storage.Chunk
	Similarity float64
	Cluster    string
}

// FindSimilar embeds the query text and returns the most similar stored
// chunks, best first.
func (p *Pipeline) FindSimilar(ctx context.Context, query string, limit int) ([]*SimilarChunk, error) {
	emb, err := p.embedder.GenerateEmbedding(ctx, embedder.EmbeddingRequest{Text: query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	results, err := p.store.SearchVector(ctx, emb.Vector, limit)
	if err != nil {
		return nil, err
	}

	clusterByChunk := map[int64]string{}
	if run, err := p.store.GetLatestClusterRun(ctx); err == nil {
		if assigned, err := p.store.ListAssignments(ctx, run.ID); err == nil {
			for _, a := range assigned {
				clusterByChunk[a.ChunkID] = a.Cluster
			}
		}
	}

	out := make([]*SimilarChunk, 0, len(results))
	for _, r := range results {
		chunk, err := p.store.GetChunk(ctx, r.ChunkID)
		if err != nil {
			return nil, err
		}
		out = append(out, &SimilarChunk{
			Chunk:      chunk,
			Similarity: r.SimilarityScore,
			Cluster:    clusterByChunk[r.ChunkID],
		})
	}
	return out, nil
}
