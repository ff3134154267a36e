package tools

import (
	"context"
	"errors"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/uservlrz/client/internal/logger"
	"github.com/uservlrz/client/internal/operations"
	"github.com/uservlrz/client/internal/storage"
	"github.com/uservlrz/client/models"
)

type ReportSplitQuery struct {
	Files     []models.SourceInfo `json:"files"`
	Parts     int                 `json:"parts"`      // Number of parts per file
	OutputDir string              `json:"output_dir"` // Directory the parts are written to
}

type SplitPartInfo struct {
	SourceFileName string   `json:"source_file_name"`
	Name           string   `json:"name"`
	Path           string   `json:"path,omitempty"`
	PageCount      int      `json:"page_count"`
	LoadStrategy   string   `json:"load_strategy"`
	Warnings       []string `json:"warnings,omitempty"`
}

type ReportSplitResponse struct {
	BatchID       string             `json:"batch_id"`
	Status        models.BatchStatus `json:"status"`
	Message       string             `json:"message"`
	Parts         []SplitPartInfo    `json:"parts"`
	ResourcePaths []string           `json:"resource_paths"`
}

func ReportSplitTool() *mcp.Tool {
	inputschema, err := jsonschema.For[ReportSplitQuery](nil)
	if err != nil {
		panic(err)
	}
	return &mcp.Tool{
		Name:        "report-split",
		Description: "Split lab report PDFs into a number of page ranges and write each part as <name>_parte<k>de<N>.pdf into output_dir. Protected files are opened with a list of common passwords. Pages that cannot be copied are replaced by blank pages and reported as warnings.",
		InputSchema: inputschema,
	}
}

func ReportSplitToolHandler(ctx context.Context, req *mcp.CallToolRequest, query ReportSplitQuery, svc *operations.Service, log logger.Logger) (*mcp.CallToolResult, *ReportSplitResponse, error) {
	log.Info("report-split tool called with %d files into %d parts", len(query.Files), query.Parts)
	if query.OutputDir == "" {
		return nil, nil, errors.New("output_dir is required")
	}

	result, err := svc.SplitFiles(ctx, query.Files, query.Parts, query.OutputDir, nil)
	if err != nil {
		log.Error("report-split tool failed: %v", err)
		return nil, nil, err
	}

	report := result.Report
	parts := make([]SplitPartInfo, len(report.Parts))
	for i, p := range report.Parts {
		parts[i] = SplitPartInfo{
			SourceFileName: p.SourceFileName,
			Name:           p.Name,
			PageCount:      p.PageCount,
			LoadStrategy:   p.LoadStrategy,
			Warnings:       p.Warnings,
		}
		if i < len(result.Written) {
			parts[i].Path = result.Written[i]
		}
	}

	response := &ReportSplitResponse{
		BatchID:       report.ID,
		Status:        report.Status,
		Message:       report.Message,
		Parts:         parts,
		ResourcePaths: storage.CalculateResourcePaths(report.ID, report),
	}
	return summaryResult(report), response, nil
}
