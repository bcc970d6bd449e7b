package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// ingestDocumentTool returns the tool definition for ingest_document
func ingestDocumentTool() mcp.Tool {
	return mcp.Tool{
		Name:        "ingest_document",
		Description: "Segment a document into chunks, embed them and persist everything",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"doc_id": map[string]interface{}{
					"type":        "string",
					"description": "Stable document identifier, used to derive chunk ids",
				},
				"content": map[string]interface{}{
					"type":        "string",
					"description": "Raw document text, optionally starting with YAML frontmatter",
				},
			},
			Required: []string{"doc_id", "content"},
		},
	}
}

// clusterCorpusTool returns the tool definition for cluster_corpus
func clusterCorpusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "cluster_corpus",
		Description: "Cluster every stored chunk embedding and persist the run",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"algorithm": map[string]interface{}{
					"type":        "string",
					"description": "Clustering algorithm",
					"enum":        []string{"kmeans", "dbscan"},
					"default":     "kmeans",
				},
				"k": map[string]interface{}{
					"type":        "integer",
					"description": "k-means cluster count; omit to derive round(sqrt(N))",
					"minimum":     1,
				},
				"eps": map[string]interface{}{
					"type":        "number",
					"description": "DBSCAN neighborhood radius",
					"default":     0.5,
				},
				"min_points": map[string]interface{}{
					"type":        "integer",
					"description": "DBSCAN core point threshold",
					"default":     3,
				},
				"use_projection": map[string]interface{}{
					"type":        "boolean",
					"description": "Reduce dimensionality before clustering when the corpus is large enough",
					"default":     true,
				},
				"projection_dims": map[string]interface{}{
					"type":        "integer",
					"description": "Reduced dimension count",
					"default":     64,
					"minimum":     2,
				},
				"seed": map[string]interface{}{
					"type":        "integer",
					"description": "Seed for reproducible k-means initialization",
					"default":     1,
				},
			},
		},
	}
}

// assignNewChunksTool returns the tool definition for assign_new_chunks
func assignNewChunksTool() mcp.Tool {
	return mcp.Tool{
		Name:        "assign_new_chunks",
		Description: "Assign chunks embedded since the latest cluster run without refitting",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}

// getClusterMembersTool returns the tool definition for get_cluster_members
func getClusterMembersTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_cluster_members",
		Description: "List the chunks assigned to one cluster under the latest run",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"cluster": map[string]interface{}{
					"type":        "string",
					"description": "Cluster name, e.g. 'cluster-0' or 'noise'",
				},
				"include_content": map[string]interface{}{
					"type":        "boolean",
					"description": "Include chunk text in the response",
					"default":     false,
				},
			},
			Required: []string{"cluster"},
		},
	}
}

// findSimilarTool returns the tool definition for find_similar
func findSimilarTool() mcp.Tool {
	return mcp.Tool{
		Name:        "find_similar",
		Description: "Find stored chunks most similar to a query text",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Query text to embed and match against the corpus",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of results to return (1-100)",
					"default":     10,
					"minimum":     1,
					"maximum":     100,
				},
			},
			Required: []string{"query"},
		},
	}
}

// corpusStatusTool returns the tool definition for corpus_status
func corpusStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "corpus_status",
		Description: "Report corpus counts and the latest cluster run",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}
