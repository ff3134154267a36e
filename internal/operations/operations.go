package operations

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/uservlrz/client/internal/batch"
	"github.com/uservlrz/client/internal/config"
	"github.com/uservlrz/client/internal/logger"
	"github.com/uservlrz/client/internal/pdf"
	"github.com/uservlrz/client/internal/sources"
	"github.com/uservlrz/client/internal/storage"
	"github.com/uservlrz/client/internal/transport"
	"github.com/uservlrz/client/models"
)

// ErrPartCountNotAllowed is returned for part counts outside the configured set
var ErrPartCountNotAllowed = errors.New("part count not allowed")

// Service bundles everything the CLI and the MCP tools need to run batches
type Service struct {
	Config   *config.Config
	Resolver *sources.Resolver
	Uploader batch.Uploader
	Library  pdf.Library
	// Store is optional; when nil batches are not recorded
	Store storage.Store
	Log   logger.Logger
}

// NewService wires the production collaborators from the configuration
func NewService(cfg *config.Config, store storage.Store, log logger.Logger) *Service {
	return &Service{
		Config:   cfg,
		Resolver: sources.NewResolver(),
		Uploader: transport.NewClient(cfg, log),
		Library:  pdf.NewPdfcpuLibrary(),
		Store:    store,
		Log:      log,
	}
}

// SplitResult is a split batch together with where its parts were written
type SplitResult struct {
	Report  *models.BatchReport
	Written []string
}

// UploadFiles resolves the sources and uploads each file to the extraction
// service, recording the batch when a store is configured.
//
// Parameters:
//   - ctx: Context for cancellation; unstarted files fail when it is cancelled
//   - infos: Where to read each file from (path, URL, Zotero id or raw bytes)
//   - onEvent: Optional per-file progress callback
//
// Returns:
//   - report: The aggregated batch report (also returned on cancellation)
//   - error: Resolution failures, invalid input, or the context error
func (s *Service) UploadFiles(ctx context.Context, infos []models.SourceInfo, onEvent func(batch.Event)) (*models.BatchReport, error) {
	files, err := s.Resolver.ResolveAll(ctx, infos)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve input files: %w", err)
	}

	o := batch.New(s.Uploader, nil, nil, batch.Options{
		Workers: s.Config.Workers,
		OnEvent: onEvent,
	}, s.Log)

	report, runErr := o.Run(ctx, files, models.ModeUpload)
	if report == nil {
		return nil, runErr
	}
	s.record(ctx, report)
	return report, runErr
}

// SplitFiles resolves the sources, splits each PDF into partCount parts and
// writes the parts into outDir. An empty outDir keeps the parts in memory only.
//
// Parameters:
//   - ctx: Context for cancellation
//   - infos: Where to read each file from
//   - partCount: Number of parts per file; must be one of the allowed counts
//   - outDir: Destination directory for the parts, created if missing
//   - onEvent: Optional per-file progress callback
//
// Returns:
//   - result: The batch report and the paths of the written parts
//   - error: Resolution failures, invalid part count, write failures, or the context error
func (s *Service) SplitFiles(ctx context.Context, infos []models.SourceInfo, partCount int, outDir string, onEvent func(batch.Event)) (*SplitResult, error) {
	if !s.Config.AllowsParts(partCount) {
		return nil, fmt.Errorf("%w: %d (allowed: %v)", ErrPartCountNotAllowed, partCount, s.Config.AllowedPartCounts)
	}

	files, err := s.Resolver.ResolveAll(ctx, infos)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve input files: %w", err)
	}

	loader := pdf.NewLoader(s.Library, s.Config.CandidatePasswords, s.Log)
	partitioner := pdf.NewPartitioner(s.Library, s.Log)
	o := batch.New(nil, loader, partitioner, batch.Options{
		Workers:   s.Config.Workers,
		PartCount: partCount,
		OnEvent:   onEvent,
	}, s.Log)

	report, runErr := o.Run(ctx, files, models.ModeSplit)
	if report == nil {
		return nil, runErr
	}

	result := &SplitResult{Report: report}
	if outDir != "" && len(report.Parts) > 0 {
		written, err := WriteParts(outDir, report.Parts)
		result.Written = written
		if err != nil {
			s.record(ctx, report)
			return result, err
		}
	}

	s.record(ctx, report)
	return result, runErr
}

// WriteParts writes each part into dir and returns the written paths
func WriteParts(dir string, parts []models.SplitPart) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	written := make([]string, 0, len(parts))
	for _, p := range parts {
		path := filepath.Join(dir, p.Name)
		if err := os.WriteFile(path, p.Data, 0644); err != nil {
			return written, fmt.Errorf("failed to write %s: %w", p.Name, err)
		}
		written = append(written, path)
	}
	return written, nil
}

// record persists a report, logging instead of failing the batch
func (s *Service) record(ctx context.Context, report *models.BatchReport) {
	if s.Store == nil {
		return
	}
	// a cancelled batch is still worth recording
	if _, err := s.Store.SaveReport(context.WithoutCancel(ctx), report); err != nil {
		s.Log.Warn("Failed to record batch %s: %v", report.ID, err)
	}
}
