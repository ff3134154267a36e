package resources

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/uservlrz/client/internal/storage"
)

const scheme = "batch://"

// BatchResourceHandler serves recorded batch reports as resources
type BatchResourceHandler struct {
	store storage.Store
}

// NewBatchResourceHandler creates a new batch resource handler
func NewBatchResourceHandler(store storage.Store) *BatchResourceHandler {
	return &BatchResourceHandler{store: store}
}

// ListResources returns one resource per recorded batch
func (h *BatchResourceHandler) ListResources(ctx context.Context) ([]*mcp.Resource, error) {
	batches, err := h.store.ListReports(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list batches: %w", err)
	}

	resources := make([]*mcp.Resource, 0, len(batches))
	for _, b := range batches {
		resources = append(resources, &mcp.Resource{
			URI:         scheme + b.BatchID,
			Name:        fmt.Sprintf("%s batch %s", b.Mode, b.StartedAt.Format("2006-01-02 15:04")),
			Description: b.Message,
			MIMEType:    "application/json",
		})
	}
	return resources, nil
}

// ReadResource reads a batch report or one of its file results.
// URIs look like batch://{batchId} or batch://{batchId}/files/{fileIndex}.
func (h *BatchResourceHandler) ReadResource(ctx context.Context, uri string) (*mcp.ReadResourceResult, error) {
	if !strings.HasPrefix(uri, scheme) {
		return nil, fmt.Errorf("invalid URI scheme, expected %s", scheme)
	}

	parts := strings.Split(strings.TrimPrefix(uri, scheme), "/")
	batchID := parts[0]
	if batchID == "" {
		return nil, fmt.Errorf("invalid URI, missing batch ID")
	}

	var value any
	switch {
	case len(parts) == 1:
		report, err := h.store.GetReport(ctx, batchID)
		if err != nil {
			return nil, err
		}
		value = report
	case len(parts) == 3 && parts[1] == "files":
		index, err := strconv.Atoi(parts[2])
		if err != nil {
			return nil, fmt.Errorf("invalid file index: %s", parts[2])
		}
		file, err := h.store.GetFile(ctx, batchID, index)
		if err != nil {
			return nil, err
		}
		value = file
	default:
		return nil, fmt.Errorf("unknown resource: %s", uri)
	}

	content, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode resource: %w", err)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{
			{
				URI:      uri,
				MIMEType: "application/json",
				Text:     string(content),
			},
		},
	}, nil
}
