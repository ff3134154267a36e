package storage

import (
	"context"
	"errors"

	"github.com/uservlrz/client/models"
)

// ErrNotFound is returned when a batch or file does not exist
var ErrNotFound = errors.New("not found")

// Store defines the interface for recording and retrieving batch runs
type Store interface {
	// SaveReport stores a finished batch and returns its ID. A report
	// without an ID gets one assigned.
	SaveReport(ctx context.Context, report *models.BatchReport) (string, error)

	// GetReport retrieves a batch report by ID. Part bytes are not stored.
	GetReport(ctx context.Context, batchID string) (*models.BatchReport, error)

	// GetFile retrieves the result of one file of a batch (0-indexed)
	GetFile(ctx context.Context, batchID string, fileIndex int) (*models.FileResult, error)

	// ListReports returns all stored batches, newest first
	ListReports(ctx context.Context) ([]models.BatchInfo, error)

	// DeleteReport removes a batch and its file results
	DeleteReport(ctx context.Context, batchID string) error

	// Close closes the database connection
	Close() error
}
