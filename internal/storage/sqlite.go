package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/uservlrz/client/models"
)

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// initSchema creates the database tables if they don't exist
func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS batches (
		id TEXT PRIMARY KEY,
		mode TEXT NOT NULL,
		status TEXT NOT NULL,
		message TEXT,
		succeeded_count INTEGER NOT NULL,
		failed_count INTEGER NOT NULL,
		patient_name TEXT,
		parts TEXT,
		uploads TEXT,
		started_at TEXT NOT NULL,
		finished_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS batch_files (
		batch_id TEXT NOT NULL,
		file_index INTEGER NOT NULL,
		file_name TEXT NOT NULL,
		status TEXT NOT NULL,
		error TEXT,
		warnings TEXT,
		strategy TEXT,
		artifacts INTEGER NOT NULL,
		PRIMARY KEY (batch_id, file_index),
		FOREIGN KEY (batch_id) REFERENCES batches(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_batches_started_at ON batches(started_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// SaveReport stores a batch report and returns its ID
func (s *SQLiteStore) SaveReport(ctx context.Context, report *models.BatchReport) (string, error) {
	if report.ID == "" {
		report.ID = uuid.NewString()
	}

	parts, err := json.Marshal(report.Parts)
	if err != nil {
		return "", fmt.Errorf("failed to marshal parts: %w", err)
	}
	uploads, err := json.Marshal(report.Uploads)
	if err != nil {
		return "", fmt.Errorf("failed to marshal uploads: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO batches (id, mode, status, message, succeeded_count, failed_count,
			patient_name, parts, uploads, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, report.ID, string(report.Mode), string(report.Status), report.Message,
		report.SucceededCount, report.FailedCount, report.PatientName,
		string(parts), string(uploads), formatTime(report.StartedAt), formatTime(report.FinishedAt))
	if err != nil {
		return "", fmt.Errorf("failed to insert batch: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM batch_files WHERE batch_id = ?`, report.ID); err != nil {
		return "", fmt.Errorf("failed to clear file results: %w", err)
	}

	for _, f := range report.Files {
		warnings, err := json.Marshal(f.Warnings)
		if err != nil {
			return "", fmt.Errorf("failed to marshal warnings of file %d: %w", f.Index, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO batch_files (batch_id, file_index, file_name, status, error, warnings, strategy, artifacts)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, report.ID, f.Index, f.FileName, string(f.Status), f.Error, string(warnings), f.Strategy, f.Artifacts)
		if err != nil {
			return "", fmt.Errorf("failed to insert file %d: %w", f.Index, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit transaction: %w", err)
	}

	return report.ID, nil
}

// GetReport retrieves a batch report by ID
func (s *SQLiteStore) GetReport(ctx context.Context, batchID string) (*models.BatchReport, error) {
	var (
		report            models.BatchReport
		mode, status      string
		message, patient  sql.NullString
		parts, uploads    sql.NullString
		started, finished string
	)

	err := s.db.QueryRowContext(ctx, `
		SELECT id, mode, status, message, succeeded_count, failed_count, patient_name,
			parts, uploads, started_at, finished_at
		FROM batches
		WHERE id = ?
	`, batchID).Scan(&report.ID, &mode, &status, &message, &report.SucceededCount, &report.FailedCount,
		&patient, &parts, &uploads, &started, &finished)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("batch %s: %w", batchID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query batch: %w", err)
	}

	report.Mode = models.Mode(mode)
	report.Status = models.BatchStatus(status)
	report.Message = message.String
	report.PatientName = patient.String
	if report.StartedAt, err = parseTime(started); err != nil {
		return nil, err
	}
	if report.FinishedAt, err = parseTime(finished); err != nil {
		return nil, err
	}
	if err := unmarshalColumn(parts, &report.Parts); err != nil {
		return nil, fmt.Errorf("failed to unmarshal parts: %w", err)
	}
	if err := unmarshalColumn(uploads, &report.Uploads); err != nil {
		return nil, fmt.Errorf("failed to unmarshal uploads: %w", err)
	}

	files, err := s.getFiles(ctx, batchID)
	if err != nil {
		return nil, err
	}
	report.Files = files
	report.Errors = make(map[string]string)
	report.Warnings = make(map[string][]string)
	for _, f := range files {
		key := f.FileName
		if _, dup := report.Errors[key]; dup {
			key = fmt.Sprintf("%s#%d", f.FileName, f.Index+1)
		} else if _, dup := report.Warnings[key]; dup {
			key = fmt.Sprintf("%s#%d", f.FileName, f.Index+1)
		}
		if f.Error != "" {
			report.Errors[key] = f.Error
		}
		if len(f.Warnings) > 0 {
			report.Warnings[key] = f.Warnings
		}
	}

	return &report, nil
}

func (s *SQLiteStore) getFiles(ctx context.Context, batchID string) ([]models.FileResult, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT file_index, file_name, status, error, warnings, strategy, artifacts
		FROM batch_files
		WHERE batch_id = ?
		ORDER BY file_index
	`, batchID)
	if err != nil {
		return nil, fmt.Errorf("failed to query files: %w", err)
	}
	defer rows.Close()

	var files []models.FileResult
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		files = append(files, *f)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating files: %w", err)
	}

	return files, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanFile(row scanner) (*models.FileResult, error) {
	var (
		f                         models.FileResult
		status                    string
		errText, warnings, method sql.NullString
	)
	if err := row.Scan(&f.Index, &f.FileName, &status, &errText, &warnings, &method, &f.Artifacts); err != nil {
		return nil, err
	}
	f.Status = models.FileStatus(status)
	f.Error = errText.String
	f.Strategy = method.String
	if err := unmarshalColumn(warnings, &f.Warnings); err != nil {
		return nil, fmt.Errorf("failed to unmarshal warnings: %w", err)
	}
	return &f, nil
}

// GetFile retrieves the result of one file of a batch
func (s *SQLiteStore) GetFile(ctx context.Context, batchID string, fileIndex int) (*models.FileResult, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT file_index, file_name, status, error, warnings, strategy, artifacts
		FROM batch_files
		WHERE batch_id = ? AND file_index = ?
	`, batchID, fileIndex)

	f, err := scanFile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("file %d of batch %s: %w", fileIndex, batchID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query file: %w", err)
	}
	return f, nil
}

// ListReports returns all stored batches, newest first
func (s *SQLiteStore) ListReports(ctx context.Context) ([]models.BatchInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, mode, status, message, succeeded_count, failed_count, started_at
		FROM batches
		ORDER BY started_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query batches: %w", err)
	}
	defer rows.Close()

	var batches []models.BatchInfo
	for rows.Next() {
		var (
			info         models.BatchInfo
			mode, status string
			message      sql.NullString
			started      string
		)
		if err := rows.Scan(&info.BatchID, &mode, &status, &message,
			&info.SucceededCount, &info.FailedCount, &started); err != nil {
			return nil, fmt.Errorf("failed to scan batch: %w", err)
		}
		info.Mode = models.Mode(mode)
		info.Status = models.BatchStatus(status)
		info.Message = message.String
		if info.StartedAt, err = parseTime(started); err != nil {
			return nil, err
		}
		batches = append(batches, info)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating batches: %w", err)
	}

	return batches, nil
}

// DeleteReport removes a batch and its file results
func (s *SQLiteStore) DeleteReport(ctx context.Context, batchID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM batch_files WHERE batch_id = ?`, batchID); err != nil {
		return fmt.Errorf("failed to delete file results: %w", err)
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM batches WHERE id = ?`, batchID)
	if err != nil {
		return fmt.Errorf("failed to delete batch: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("batch %s: %w", batchID, ErrNotFound)
	}

	return tx.Commit()
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return t, nil
}

func unmarshalColumn(col sql.NullString, v any) error {
	if !col.Valid || col.String == "" || col.String == "null" {
		return nil
	}
	return json.Unmarshal([]byte(col.String), v)
}

// Ensure SQLiteStore implements Store interface
var _ Store = (*SQLiteStore)(nil)
