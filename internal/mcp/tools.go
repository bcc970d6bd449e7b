package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/mfield/textcorpus-mcp/internal/cluster"
	"github.com/mfield/textcorpus-mcp/internal/pipeline"
	"github.com/mfield/textcorpus-mcp/internal/storage"
	"github.com/mfield/textcorpus-mcp/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams  = -32602 // Invalid method parameters
	ErrorCodeInternalError  = -32603 // Internal JSON-RPC error
	ErrorCodeBusy           = -32001 // Another corpus workflow is running
	ErrorCodeNotClustered   = -32002 // No cluster run exists yet
	ErrorCodeEmptyCorpus    = -32003 // Corpus has no embeddings
	ErrorCodeUnknownCluster = -32004 // Cluster name not recognized
)

// handleIngestDocument handles the ingest_document tool invocation
func (s *Server) handleIngestDocument(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	docID, ok := args["doc_id"].(string)
	if !ok || docID == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "doc_id parameter is required", map[string]interface{}{
			"param":  "doc_id",
			"reason": "missing or empty",
		})
	}

	content, ok := args["content"].(string)
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "content parameter is required", map[string]interface{}{
			"param":  "content",
			"reason": "missing",
		})
	}

	stats, err := s.pipeline.ProcessDocuments(ctx, []*types.Document{{ID: docID, Raw: content}})
	if err != nil {
		return nil, workflowError("ingestion failed", err)
	}

	response := map[string]interface{}{
		"doc_id":             docID,
		"processed":          stats.DocumentsProcessed,
		"skipped":            stats.DocumentsSkipped,
		"chunks_created":     stats.ChunksCreated,
		"embeddings_created": stats.EmbeddingsCreated,
		"errors":             stats.Errors,
	}
	if stats.Errors > 0 {
		return nil, newMCPError(ErrorCodeInternalError, "document could not be ingested", response)
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleClusterCorpus handles the cluster_corpus tool invocation
func (s *Server) handleClusterCorpus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := request.Params.Arguments.(map[string]interface{})
	if args == nil {
		args = map[string]interface{}{}
	}

	cfg := cluster.DefaultConfig()

	algorithm := getStringDefault(args, "algorithm", string(cluster.AlgorithmKMeans))
	switch algorithm {
	case string(cluster.AlgorithmKMeans), string(cluster.AlgorithmDBSCAN):
		cfg.Algorithm = cluster.Algorithm(algorithm)
	default:
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid algorithm", map[string]interface{}{
			"param":   "algorithm",
			"value":   algorithm,
			"allowed": []string{string(cluster.AlgorithmKMeans), string(cluster.AlgorithmDBSCAN)},
		})
	}

	cfg.K = getIntDefault(args, "k", 0)
	if eps, ok := args["eps"].(float64); ok && eps > 0 {
		cfg.Eps = eps
	}
	cfg.MinPoints = getIntDefault(args, "min_points", cfg.MinPoints)
	cfg.UseProjection = getBoolDefault(args, "use_projection", true)
	cfg.ProjectionDims = getIntDefault(args, "projection_dims", cfg.ProjectionDims)
	cfg.Seed = int64(getIntDefault(args, "seed", int(cfg.Seed)))

	report, err := s.pipeline.ClusterCorpus(ctx, cfg)
	if err != nil {
		if errors.Is(err, types.ErrEmptyInput) {
			return nil, newMCPError(ErrorCodeEmptyCorpus, "corpus has no embeddings to cluster", nil)
		}
		return nil, workflowError("clustering failed", err)
	}

	response := map[string]interface{}{
		"run_id":       report.RunID,
		"algorithm":    report.Algorithm,
		"clusters":     report.Metrics.Clusters,
		"noise_points": report.Metrics.NoisePoints,
		"assignments":  report.Assignment,
	}
	if report.Metrics.Silhouette != nil {
		response["silhouette"] = *report.Metrics.Silhouette
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleAssignNewChunks handles the assign_new_chunks tool invocation
func (s *Server) handleAssignNewChunks(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	report, err := s.pipeline.AssignNewChunks(ctx)
	if err != nil {
		if errors.Is(err, pipeline.ErrNoClusterRun) {
			return nil, newMCPError(ErrorCodeNotClustered, "no cluster run exists; run cluster_corpus first", nil)
		}
		return nil, workflowError("assignment failed", err)
	}

	response := map[string]interface{}{
		"run_id":      report.RunID,
		"assigned":    report.Assigned,
		"assignments": report.Assignment,
	}
	if report.Mode != "" {
		response["mode"] = report.Mode
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleGetClusterMembers handles the get_cluster_members tool invocation
func (s *Server) handleGetClusterMembers(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	name, ok := args["cluster"].(string)
	if !ok || name == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "cluster parameter is required", map[string]interface{}{
			"param":  "cluster",
			"reason": "missing or empty",
		})
	}
	if _, err := cluster.ParseClusterName(name); err != nil {
		return nil, newMCPError(ErrorCodeUnknownCluster, "unrecognized cluster name", map[string]interface{}{
			"param": "cluster",
			"value": name,
		})
	}
	includeContent := getBoolDefault(args, "include_content", false)

	run, err := s.storage.GetLatestClusterRun(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, newMCPError(ErrorCodeNotClustered, "no cluster run exists; run cluster_corpus first", nil)
		}
		return nil, workflowError("failed to load cluster run", err)
	}

	assignments, err := s.storage.ListAssignments(ctx, run.ID)
	if err != nil {
		return nil, workflowError("failed to load assignments", err)
	}

	members := []interface{}{}
	for _, a := range assignments {
		if a.Cluster != name {
			continue
		}
		member := map[string]interface{}{
			"chunk_id": a.ChunkKey,
		}
		if includeContent {
			chunk, cerr := s.storage.GetChunk(ctx, a.ChunkID)
			if cerr != nil {
				return nil, workflowError("failed to load chunk", cerr)
			}
			member["content"] = chunk.Content
			member["token_count"] = chunk.TokenCount
		}
		members = append(members, member)
	}

	response := map[string]interface{}{
		"run_id":  run.ID,
		"cluster": name,
		"count":   len(members),
		"members": members,
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleFindSimilar handles the find_similar tool invocation
func (s *Server) handleFindSimilar(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	query, ok := args["query"].(string)
	if !ok || query == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "query parameter is required and cannot be empty", map[string]interface{}{
			"param":  "query",
			"reason": "missing or empty",
		})
	}

	limit := getIntDefault(args, "limit", 10)
	if limit < 1 || limit > 100 {
		return nil, newMCPError(ErrorCodeInvalidParams, "limit must be between 1 and 100", map[string]interface{}{
			"param": "limit",
			"value": limit,
		})
	}

	results, err := s.pipeline.FindSimilar(ctx, query, limit)
	if err != nil {
		return nil, workflowError("search failed", err)
	}

	matches := make([]interface{}, 0, len(results))
	for _, r := range results {
		match := map[string]interface{}{
			"chunk_id":   r.Chunk.ChunkKey,
			"doc_id":     r.Chunk.DocID,
			"similarity": r.Similarity,
			"content":    r.Chunk.Content,
		}
		if r.Cluster != "" {
			match["cluster"] = r.Cluster
		}
		matches = append(matches, match)
	}

	response := map[string]interface{}{
		"query":   query,
		"count":   len(matches),
		"results": matches,
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleCorpusStatus handles the corpus_status tool invocation
func (s *Server) handleCorpusStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	status, err := s.storage.GetStatus(ctx)
	if err != nil {
		return nil, workflowError("failed to get status", err)
	}

	response := map[string]interface{}{
		"documents":  status.Documents,
		"chunks":     status.Chunks,
		"embeddings": status.Embeddings,
		"clustered":  status.LatestRun != nil,
	}

	if run := status.LatestRun; run != nil {
		latest := map[string]interface{}{
			"run_id":       run.ID,
			"algorithm":    run.Algorithm,
			"clusters":     run.ClusterCount,
			"noise_points": run.NoiseCount,
			"created_at":   run.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		}
		if run.Silhouette != nil {
			latest["silhouette"] = *run.Silhouette
		}
		if run.ProjectedDim > 0 {
			latest["projected_dim"] = run.ProjectedDim
		}
		response["latest_run"] = latest
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// Helper functions

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// workflowError maps pipeline failures onto MCP error codes
func workflowError(message string, err error) error {
	if errors.Is(err, pipeline.ErrBusy) {
		return newMCPError(ErrorCodeBusy, "another corpus operation is in progress", nil)
	}
	return newMCPError(ErrorCodeInternalError, message, map[string]interface{}{
		"error": err.Error(),
	})
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getBoolDefault extracts a boolean parameter with a default value
func getBoolDefault(args map[string]interface{}, key string, defaultValue bool) bool {
	if val, ok := args[key].(bool); ok {
		return val
	}
	return defaultValue
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

// getStringDefault extracts a string parameter with a default value
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok {
		return val
	}
	return defaultValue
}
