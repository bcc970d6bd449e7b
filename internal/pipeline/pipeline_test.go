package pipeline

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mfield/textcorpus-mcp/internal/cluster"
	"github.com/mfield/textcorpus-mcp/internal/embedder"
	"github.com/mfield/textcorpus-mcp/internal/segmenter"
	"github.com/mfield/textcorpus-mcp/internal/storage"
	"github.com/mfield/textcorpus-mcp/pkg/types"
)

func newTestPipeline(t *testing.T) (*Pipeline, storage.Storage) {
	t.Helper()

	store, err := storage.NewSQLiteStorage(context.Background(), filepath.Join(t.TempDir(), "corpus.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	emb, err := embedder.NewLocalProvider(nil)
	require.NoError(t, err)

	cfg := segmenter.Config{
		TargetTokens:  20,
		MaxTokens:     40,
		MinTokens:     10,
		OverlapTokens: 2,
		Highlights:    true,
		Paragraphs:    true,
		Sentences:     true,
	}
	seg, err := segmenter.New(cfg)
	require.NoError(t, err)

	return New(store, emb, seg, WithWorkers(2)), store
}

func sampleDocs() []*types.Document {
	long := strings.Repeat("Rivers carve their valleys slowly over many seasons. ", 6)
	return []*types.Document{
		{ID: "rivers", Raw: "---\ntopic: water\n---\n" + long},
		{ID: "stars", Raw: strings.Repeat("Distant stars burn in colors the eye cannot separate. ", 6)},
	}
}

func TestProcessDocuments(t *testing.T) {
	p, store := newTestPipeline(t)
	ctx := context.Background()

	stats, err := p.ProcessDocuments(ctx, sampleDocs())
	require.NoError(t, err)

	assert.Equal(t, int64(2), stats.DocumentsProcessed)
	assert.Equal(t, int64(0), stats.DocumentsSkipped)
	assert.Equal(t, int64(0), stats.Errors)
	assert.Greater(t, stats.ChunksCreated, int64(2))
	assert.Equal(t, stats.ChunksCreated, stats.EmbeddingsCreated)

	chunks, err := store.ListChunksByDocument(ctx, "rivers")
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	doc, err := store.GetDocument(ctx, "rivers")
	require.NoError(t, err)
	assert.Equal(t, len(chunks), doc.TotalChunks)
	assert.Contains(t, doc.Frontmatter, `"topic":"water"`)

	for _, c := range chunks {
		_, err := store.GetEmbedding(ctx, c.ID)
		assert.NoError(t, err, "every chunk gets an embedding")
	}
}

func TestProcessDocuments_SkipsUnchanged(t *testing.T) {
	p, _ := newTestPipeline(t)
	ctx := context.Background()

	_, err := p.ProcessDocuments(ctx, sampleDocs())
	require.NoError(t, err)

	stats, err := p.ProcessDocuments(ctx, sampleDocs())
	require.NoError(t, err)

	assert.Equal(t, int64(0), stats.DocumentsProcessed)
	assert.Equal(t, int64(2), stats.DocumentsSkipped)
	assert.Equal(t, int64(0), stats.ChunksCreated)
}

func TestProcessDocuments_ReingestShrinks(t *testing.T) {
	p, store := newTestPipeline(t)
	ctx := context.Background()

	long := strings.Repeat("Old content that spans several chunks easily here. ", 8)
	_, err := p.ProcessDocuments(ctx, []*types.Document{{ID: "doc", Raw: long}})
	require.NoError(t, err)

	before, err := store.ListChunksByDocument(ctx, "doc")
	require.NoError(t, err)
	require.Greater(t, len(before), 1)

	_, err = p.ProcessDocuments(ctx, []*types.Document{{ID: "doc", Raw: "Tiny now."}})
	require.NoError(t, err)

	after, err := store.ListChunksByDocument(ctx, "doc")
	require.NoError(t, err)
	assert.Len(t, after, 1, "stale chunks must not survive re-ingestion")
}

func TestProcessDocuments_EmptyDocument(t *testing.T) {
	p, store := newTestPipeline(t)
	ctx := context.Background()

	stats, err := p.ProcessDocuments(ctx, []*types.Document{{ID: "blank", Raw: ""}})
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.DocumentsProcessed)
	assert.Equal(t, int64(1), stats.ChunksCreated)

	chunks, err := store.ListChunksByDocument(ctx, "blank")
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "blank-chunk-000", chunks[0].ChunkKey)
}

func TestClusterCorpus(t *testing.T) {
	p, store := newTestPipeline(t)
	ctx := context.Background()

	_, err := p.ProcessDocuments(ctx, sampleDocs())
	require.NoError(t, err)

	cfg := cluster.DefaultConfig()
	cfg.K = 2
	cfg.UseProjection = false

	report, err := p.ClusterCorpus(ctx, cfg)
	require.NoError(t, err)
	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, "kmeans", report.Algorithm)
	require.NotNil(t, report.Metrics)

	embeddings, err := store.ListEmbeddings(ctx)
	require.NoError(t, err)
	require.Len(t, report.Assignment, len(embeddings))

	for key, clusters := range report.Assignment {
		require.Len(t, clusters, 1)
		_, err := cluster.ParseClusterName(clusters[0])
		assert.NoError(t, err, "chunk %s has assignment %q", key, clusters[0])
	}

	run, err := store.GetLatestClusterRun(ctx)
	require.NoError(t, err)
	assert.Equal(t, report.RunID, run.ID)
	assert.Empty(t, run.Projection, "projection disabled for this fit")

	assignments, err := store.ListAssignments(ctx, run.ID)
	require.NoError(t, err)
	assert.Len(t, assignments, len(embeddings))
}

func TestClusterCorpus_EmptyCorpus(t *testing.T) {
	p, _ := newTestPipeline(t)

	_, err := p.ClusterCorpus(context.Background(), cluster.DefaultConfig())
	assert.ErrorIs(t, err, types.ErrEmptyInput)
}

func TestAssignNewChunks_RequiresRun(t *testing.T) {
	p, _ := newTestPipeline(t)

	_, err := p.AssignNewChunks(context.Background())
	assert.ErrorIs(t, err, ErrNoClusterRun)
}

func TestAssignNewChunks_NothingPending(t *testing.T) {
	p, _ := newTestPipeline(t)
	ctx := context.Background()

	_, err := p.ProcessDocuments(ctx, sampleDocs())
	require.NoError(t, err)

	cfg := cluster.DefaultConfig()
	cfg.UseProjection = false
	_, err = p.ClusterCorpus(ctx, cfg)
	require.NoError(t, err)

	report, err := p.AssignNewChunks(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Assigned)
	assert.Empty(t, report.Assignment)
}

func TestAssignNewChunks_NearestNeighborMode(t *testing.T) {
	p, store := newTestPipeline(t)
	ctx := context.Background()

	_, err := p.ProcessDocuments(ctx, sampleDocs())
	require.NoError(t, err)

	cfg := cluster.DefaultConfig()
	cfg.UseProjection = false
	_, err = p.ClusterCorpus(ctx, cfg)
	require.NoError(t, err)

	_, err = p.ProcessDocuments(ctx, []*types.Document{
		{ID: "tides", Raw: strings.Repeat("Tides pull the shoreline back and forth each day. ", 6)},
	})
	require.NoError(t, err)

	report, err := p.AssignNewChunks(ctx)
	require.NoError(t, err)
	assert.Equal(t, ModeNearestNeighbor, report.Mode)
	assert.Greater(t, report.Assigned, 0)

	for key, clusters := range report.Assignment {
		assert.True(t, strings.HasPrefix(key, "tides-chunk-"), "only new chunks get assigned, saw %s", key)
		require.Len(t, clusters, 1)
	}

	// All embeddings are now assigned under the latest run.
	run, err := store.GetLatestClusterRun(ctx)
	require.NoError(t, err)
	pending, err := store.ListUnassignedEmbeddings(ctx, run.ID)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestAssignNewChunks_CentroidMode(t *testing.T) {
	p, store := newTestPipeline(t)
	ctx := context.Background()

	_, err := p.ProcessDocuments(ctx, sampleDocs())
	require.NoError(t, err)

	// Local embeddings are 384-dimensional, so a 2-dim projection always
	// fits and is persisted with the run.
	cfg := cluster.DefaultConfig()
	cfg.K = 2
	cfg.ProjectionDims = 2

	_, err = p.ClusterCorpus(ctx, cfg)
	require.NoError(t, err)

	run, err := store.GetLatestClusterRun(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, run.Projection)
	assert.Equal(t, 2, run.ProjectedDim)

	_, err = p.ProcessDocuments(ctx, []*types.Document{
		{ID: "dunes", Raw: strings.Repeat("Sand dunes drift with the prevailing wind patterns. ", 6)},
	})
	require.NoError(t, err)

	report, err := p.AssignNewChunks(ctx)
	require.NoError(t, err)
	assert.Equal(t, ModeCentroid, report.Mode)
	assert.Greater(t, report.Assigned, 0)

	for _, clusters := range report.Assignment {
		require.Len(t, clusters, 1)
		label, err := cluster.ParseClusterName(clusters[0])
		require.NoError(t, err)
		assert.GreaterOrEqual(t, label, 0, "centroid mode never assigns noise")
	}
}

func TestFindSimilar(t *testing.T) {
	p, _ := newTestPipeline(t)
	ctx := context.Background()

	docs := []*types.Document{
		{ID: "alpha", Raw: "The first document speaks of mountains."},
		{ID: "beta", Raw: "The second document is about oceans."},
	}
	_, err := p.ProcessDocuments(ctx, docs)
	require.NoError(t, err)

	// The local provider maps identical text to identical vectors, so
	// querying with a stored chunk's exact content must rank it first.
	results, err := p.FindSimilar(ctx, "The first document speaks of mountains.", 2)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "alpha-chunk-000", results[0].Chunk.ChunkKey)
	assert.InDelta(t, 1.0, results[0].Similarity, 1e-6)
	assert.Greater(t, results[0].Similarity, results[1].Similarity)
}

func TestFindSimilar_IncludesClusterNames(t *testing.T) {
	p, _ := newTestPipeline(t)
	ctx := context.Background()

	_, err := p.ProcessDocuments(ctx, sampleDocs())
	require.NoError(t, err)

	cfg := cluster.DefaultConfig()
	cfg.UseProjection = false
	_, err = p.ClusterCorpus(ctx, cfg)
	require.NoError(t, err)

	results, err := p.FindSimilar(ctx, "rivers and valleys", 3)
	require.NoError(t, err)
	require.NotEmpty(t, results)

	for _, r := range results {
		require.NotEmpty(t, r.Cluster)
		_, err := cluster.ParseClusterName(r.Cluster)
		assert.NoError(t, err)
	}
}

func TestRunLock(t *testing.T) {
	var l RunLock

	require.True(t, l.TryAcquire())
	assert.True(t, l.IsBusy())
	assert.False(t, l.TryAcquire(), "second acquisition must fail, not block")

	l.Release()
	assert.False(t, l.IsBusy())
	assert.True(t, l.TryAcquire())
}
