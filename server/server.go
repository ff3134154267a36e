package server

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/uservlrz/client/internal/config"
	"github.com/uservlrz/client/internal/logger"
	"github.com/uservlrz/client/internal/operations"
	"github.com/uservlrz/client/internal/storage"
	"github.com/uservlrz/client/resources"
	"github.com/uservlrz/client/tools"
)

func CreateServer(cfg *config.Config, log logger.Logger) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{Name: "labreport", Version: "v0.1.0"}, nil)

	store, err := initializeStorage(cfg, log)
	if err != nil {
		log.Fatal("Failed to initialize storage: %v", err)
	}

	svc := operations.NewService(cfg, store, log)
	batchResourceHandler := resources.NewBatchResourceHandler(store)

	mcp.AddTool(server, tools.ReportUploadTool(), func(ctx context.Context, req *mcp.CallToolRequest, query tools.ReportUploadQuery) (*mcp.CallToolResult, *tools.ReportUploadResponse, error) {
		return tools.ReportUploadToolHandler(ctx, req, query, svc, log)
	})

	mcp.AddTool(server, tools.ReportSplitTool(), func(ctx context.Context, req *mcp.CallToolRequest, query tools.ReportSplitQuery) (*mcp.CallToolResult, *tools.ReportSplitResponse, error) {
		return tools.ReportSplitToolHandler(ctx, req, query, svc, log)
	})

	mcp.AddTool(server, tools.BatchHistoryTool(), func(ctx context.Context, req *mcp.CallToolRequest, query tools.BatchHistoryQuery) (*mcp.CallToolResult, *tools.BatchHistoryResponse, error) {
		return tools.BatchHistoryToolHandler(ctx, req, query, store, log)
	})

	// Template for a whole batch report
	server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: "batch://{batchId}",
		Name:        "batch-report",
		Description: "Report of an upload or split batch with per-file results, errors and warnings",
		MIMEType:    "application/json",
	}, func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		return batchResourceHandler.ReadResource(ctx, req.Params.URI)
	})

	// Template for individual file result
	server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: "batch://{batchId}/files/{fileIndex}",
		Name:        "batch-file",
		Description: "Result of one file of a batch (0-indexed)",
		MIMEType:    "application/json",
	}, func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		return batchResourceHandler.ReadResource(ctx, req.Params.URI)
	})

	return server
}

// initializeStorage opens the batch history, defaulting to ~/.labreport/history.db
func initializeStorage(cfg *config.Config, log logger.Logger) (storage.Store, error) {
	dbPath := cfg.DatabasePath
	if dbPath == "" {
		dir, err := logger.DataDir()
		if err != nil {
			return nil, err
		}
		dbPath = filepath.Join(dir, "history.db")
	}

	log.Info("Initializing SQLite database at: %s", dbPath)

	store, err := storage.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create SQLite store: %w", err)
	}

	return store, nil
}
