package mcp

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mark3labs/mcp-go/server"

	"github.com/mfield/textcorpus-mcp/internal/embedder"
	"github.com/mfield/textcorpus-mcp/internal/pipeline"
	"github.com/mfield/textcorpus-mcp/internal/segmenter"
	"github.com/mfield/textcorpus-mcp/internal/storage"
)

const (
	// ServerName is the MCP server name
	ServerName = "textcorpus-mcp"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
	// DefaultDBDir is the default location for the database
	DefaultDBDir = "~/.textcorpus"
	// EnvDBPath overrides the database directory
	EnvDBPath = "TEXTCORPUS_DB_PATH"
)

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp      *server.MCPServer
	storage  storage.Storage
	pipeline *pipeline.Pipeline
}

// NewServer creates a new MCP server instance. An empty dbDir falls back
// to TEXTCORPUS_DB_PATH, then to ~/.textcorpus.
func NewServer(ctx context.Context, dbDir string) (*Server, error) {
	if dbDir == "" {
		dbDir = os.Getenv(EnvDBPath)
	}
	if dbDir == "" || dbDir == DefaultDBDir {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		dbDir = filepath.Join(home, ".textcorpus")
	}

	if err := os.MkdirAll(dbDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	store, err := storage.NewSQLiteStorage(ctx, filepath.Join(dbDir, "corpus.db"))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	emb, err := embedder.NewFromEnv()
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}

	segCfg := segmenter.DefaultConfig()
	segCfg.Counter = segmenter.NewTiktokenCounter()
	seg, err := segmenter.New(segCfg)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize segmenter: %w", err)
	}

	mcpServer := server.NewMCPServer(
		ServerName,
		ServerVersion,
	)

	s := &Server{
		mcp:      mcpServer,
		storage:  store,
		pipeline: pipeline.New(store, emb, seg),
	}

	s.registerTools()

	return s, nil
}

// Serve starts the MCP server on stdio and blocks until shutdown
func (s *Server) Serve(ctx context.Context) error {
	defer func() { _ = s.storage.Close() }()
	return server.ServeStdio(s.mcp)
}

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	s.mcp.AddTool(ingestDocumentTool(), s.handleIngestDocument)
	s.mcp.AddTool(clusterCorpusTool(), s.handleClusterCorpus)
	s.mcp.AddTool(assignNewChunksTool(), s.handleAssignNewChunks)
	s.mcp.AddTool(getClusterMembersTool(), s.handleGetClusterMembers)
	s.mcp.AddTool(findSimilarTool(), s.handleFindSimilar)
	s.mcp.AddTool(corpusStatusTool(), s.handleCorpusStatus)
}
