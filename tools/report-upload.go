package tools

import (
	"context"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/uservlrz/client/internal/logger"
	"github.com/uservlrz/client/internal/operations"
	"github.com/uservlrz/client/internal/storage"
	"github.com/uservlrz/client/models"
)

type ReportUploadQuery struct {
	Files []models.SourceInfo `json:"files"` // Each entry needs one of path, url, zotero_id or raw_data
}

type ReportUploadResponse struct {
	BatchID       string             `json:"batch_id"`
	Status        models.BatchStatus `json:"status"`
	Message       string             `json:"message"`
	PatientName   string             `json:"patient_name,omitempty"`
	Uploads       []models.UploadAck `json:"uploads"`
	ResourcePaths []string           `json:"resource_paths"`
}

func ReportUploadTool() *mcp.Tool {
	inputschema, err := jsonschema.For[ReportUploadQuery](nil)
	if err != nil {
		panic(err)
	}
	return &mcp.Tool{
		Name:        "report-upload",
		Description: "Upload lab report PDFs to the extraction service. Files larger than the single-request limit are sent in chunks. Returns the extracted summaries per file and the batch status (success, partial-success or total-failure).",
		InputSchema: inputschema,
	}
}

func ReportUploadToolHandler(ctx context.Context, req *mcp.CallToolRequest, query ReportUploadQuery, svc *operations.Service, log logger.Logger) (*mcp.CallToolResult, *ReportUploadResponse, error) {
	log.Info("report-upload tool called with %d files", len(query.Files))
	report, err := svc.UploadFiles(ctx, query.Files, nil)
	if err != nil {
		log.Error("report-upload tool failed: %v", err)
		return nil, nil, err
	}

	response := &ReportUploadResponse{
		BatchID:       report.ID,
		Status:        report.Status,
		Message:       report.Message,
		PatientName:   report.PatientName,
		Uploads:       report.Uploads,
		ResourcePaths: storage.CalculateResourcePaths(report.ID, report),
	}
	return summaryResult(report), response, nil
}

// summaryResult reports the batch message, flagging total failures as errors
func summaryResult(report *models.BatchReport) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: report.Message},
		},
		IsError: report.Status == models.StatusTotalFailure,
	}
}
