package tools

import (
	"context"
	"errors"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/uservlrz/client/internal/logger"
	"github.com/uservlrz/client/internal/storage"
	"github.com/uservlrz/client/models"
)

type BatchHistoryQuery struct {
	BatchID string `json:"batch_id,omitempty"` // Show one batch instead of the list
	Delete  bool   `json:"delete,omitempty"`   // Remove the batch given by batch_id
}

type BatchHistoryResponse struct {
	Batches []models.BatchInfo  `json:"batches,omitempty"`
	Report  *models.BatchReport `json:"report,omitempty"`
	Deleted bool                `json:"deleted,omitempty"`
}

func BatchHistoryTool() *mcp.Tool {
	inputschema, err := jsonschema.For[BatchHistoryQuery](nil)
	if err != nil {
		panic(err)
	}
	return &mcp.Tool{
		Name:        "batch-history",
		Description: "List previous upload and split batches, newest first. Pass batch_id to get the full report of one batch, or batch_id with delete to remove it from the history.",
		InputSchema: inputschema,
	}
}

func BatchHistoryToolHandler(ctx context.Context, req *mcp.CallToolRequest, query BatchHistoryQuery, store storage.Store, log logger.Logger) (*mcp.CallToolResult, *BatchHistoryResponse, error) {
	log.Info("batch-history tool called")
	if store == nil {
		return nil, nil, errors.New("batch history is disabled")
	}

	switch {
	case query.BatchID == "" && query.Delete:
		return nil, nil, errors.New("batch_id is required to delete a batch")
	case query.Delete:
		if err := store.DeleteReport(ctx, query.BatchID); err != nil {
			return nil, nil, err
		}
		log.Info("Deleted batch %s", query.BatchID)
		return nil, &BatchHistoryResponse{Deleted: true}, nil
	case query.BatchID != "":
		report, err := store.GetReport(ctx, query.BatchID)
		if err != nil {
			return nil, nil, err
		}
		return nil, &BatchHistoryResponse{Report: report}, nil
	}

	batches, err := store.ListReports(ctx)
	if err != nil {
		log.Error("batch-history tool failed: %v", err)
		return nil, nil, err
	}
	return nil, &BatchHistoryResponse{Batches: batches}, nil
}
