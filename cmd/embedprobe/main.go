package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/mfield/textcorpus-mcp/internal/cluster"
	"github.com/mfield/textcorpus-mcp/internal/embedder"
	"github.com/mfield/textcorpus-mcp/internal/pipeline"
	"github.com/mfield/textcorpus-mcp/internal/segmenter"
	"github.com/mfield/textcorpus-mcp/internal/storage"
	"github.com/mfield/textcorpus-mcp/pkg/types"
)

// embedprobe runs the full ingest/cluster/search path against an
// in-memory database with whatever embedding provider the environment
// enables. Useful for verifying provider credentials and the wiring
// without touching a real corpus.
func main() {
	fmt.Println("Probing embedding and clustering integration...")

	ctx := context.Background()

	store, err := storage.NewSQLiteStorage(ctx, ":memory:")
	if err != nil {
		log.Fatalf("Failed to create storage: %v", err)
	}
	defer store.Close()

	emb, err := embedder.NewFromEnv()
	if err != nil {
		log.Fatalf("Failed to create embedder: %v", err)
	}
	defer emb.Close()

	fmt.Printf("  Provider: %s\n", emb.Provider())
	fmt.Printf("  Model: %s\n", emb.Model())
	fmt.Printf("  Dimension: %d\n", emb.Dimension())

	segCfg := segmenter.DefaultConfig()
	segCfg.TargetTokens = 32
	segCfg.MaxTokens = 48
	segCfg.MinTokens = 8
	segCfg.OverlapTokens = 4
	seg, err := segmenter.New(segCfg)
	if err != nil {
		log.Fatalf("Failed to create segmenter: %v", err)
	}

	p := pipeline.New(store, emb, seg)

	docs := []*types.Document{
		{ID: "probe-networks", Raw: "---\ntopic: networking\n---\nPacket switching moves data in small blocks. Each block carries routing headers. Routers forward blocks independently toward the destination.\n\nCircuit switching reserves a dedicated path instead. The path stays allocated for the whole conversation."},
		{ID: "probe-cooking", Raw: "---\ntopic: cooking\n---\nA good stock starts with roasted bones. Simmer them slowly with aromatics. Skim the surface often to keep the liquid clear.\n\nReduce the finished stock to concentrate its flavor. Strain it before storage."},
		{ID: "probe-gardens", Raw: "Perennial beds need little replanting. Mulch them each spring. Divide crowded clumps every few years to keep the plants vigorous."},
	}

	stats, err := p.ProcessDocuments(ctx, docs)
	if err != nil {
		log.Fatalf("Failed to ingest documents: %v", err)
	}

	fmt.Printf("\nIngestion:\n")
	fmt.Printf("  Documents Processed: %d\n", stats.DocumentsProcessed)
	fmt.Printf("  Documents Skipped: %d\n", stats.DocumentsSkipped)
	fmt.Printf("  Chunks Created: %d\n", stats.ChunksCreated)
	fmt.Printf("  Embeddings Created: %d\n", stats.EmbeddingsCreated)
	fmt.Printf("  Errors: %d\n", stats.Errors)

	cfg := cluster.DefaultConfig()
	cfg.K = 3
	cfg.UseProjection = false

	report, err := p.ClusterCorpus(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to cluster corpus: %v", err)
	}

	fmt.Printf("\nClustering:\n")
	fmt.Printf("  Run: %s\n", report.RunID)
	fmt.Printf("  Clusters: %d\n", report.Metrics.Clusters)
	fmt.Printf("  Noise Points: %d\n", report.Metrics.NoisePoints)
	if report.Metrics.Silhouette != nil {
		fmt.Printf("  Silhouette: %.3f\n", *report.Metrics.Silhouette)
	}
	for chunkID, clusters := range report.Assignment {
		fmt.Printf("  %s -> %v\n", chunkID, clusters)
	}

	results, err := p.FindSimilar(ctx, "how do routers move packets", 3)
	if err != nil {
		log.Fatalf("Failed to search: %v", err)
	}

	fmt.Printf("\nSearch:\n")
	for _, r := range results {
		fmt.Printf("  %.3f %s (%s)\n", r.Similarity, r.Chunk.ChunkKey, r.Cluster)
	}

	if stats.Errors == 0 && len(results) > 0 {
		fmt.Println("\nOK: end-to-end path works")
	} else {
		fmt.Println("\nFAILED: probe did not complete cleanly")
		os.Exit(1)
	}
}
