package resources

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/uservlrz/client/internal/storage"
	"github.com/uservlrz/client/models"
)

func newTestHandler(t *testing.T) (*BatchResourceHandler, string) {
	t.Helper()
	store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	id, err := store.SaveReport(context.Background(), &models.BatchReport{
		Mode:           models.ModeUpload,
		Status:         models.StatusSuccess,
		Message:        "all 2 files processed successfully",
		SucceededCount: 2,
		Files: []models.FileResult{
			{Index: 0, FileName: "a.pdf", Status: models.FileSucceeded, Artifacts: 1},
			{Index: 1, FileName: "b.pdf", Status: models.FileSucceeded, Artifacts: 1},
		},
		StartedAt:  time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
		FinishedAt: time.Date(2025, 3, 1, 10, 0, 5, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("SaveReport failed: %v", err)
	}
	return NewBatchResourceHandler(store), id
}

func TestReadResource_Batch(t *testing.T) {
	h, id := newTestHandler(t)

	result, err := h.ReadResource(context.Background(), "batch://"+id)
	if err != nil {
		t.Fatalf("ReadResource failed: %v", err)
	}
	if len(result.Contents) != 1 || result.Contents[0].MIMEType != "application/json" {
		t.Fatalf("unexpected contents %+v", result.Contents)
	}

	var report models.BatchReport
	if err := json.Unmarshal([]byte(result.Contents[0].Text), &report); err != nil {
		t.Fatalf("Failed to decode report: %v", err)
	}
	if report.ID != id || len(report.Files) != 2 {
		t.Errorf("unexpected report %+v", report)
	}
}

func TestReadResource_File(t *testing.T) {
	h, id := newTestHandler(t)

	result, err := h.ReadResource(context.Background(), "batch://"+id+"/files/1")
	if err != nil {
		t.Fatalf("ReadResource failed: %v", err)
	}
	var file models.FileResult
	if err := json.Unmarshal([]byte(result.Contents[0].Text), &file); err != nil {
		t.Fatalf("Failed to decode file: %v", err)
	}
	if file.FileName != "b.pdf" {
		t.Errorf("FileName = %s, want b.pdf", file.FileName)
	}
}

func TestReadResource_Invalid(t *testing.T) {
	h, id := newTestHandler(t)

	uris := []string{
		"pdf://" + id,
		"batch://",
		"batch://" + id + "/files/x",
		"batch://" + id + "/pages",
		"batch://" + id + "/files/9",
		"batch://missing",
	}
	for _, uri := range uris {
		if _, err := h.ReadResource(context.Background(), uri); err == nil {
			t.Errorf("expected error for %s", uri)
		}
	}
}

func TestListResources(t *testing.T) {
	h, id := newTestHandler(t)

	list, err := h.ListResources(context.Background())
	if err != nil {
		t.Fatalf("ListResources failed: %v", err)
	}
	if len(list) != 1 || list[0].URI != "batch://"+id {
		t.Errorf("unexpected resources %+v", list)
	}
	if list[0].Name != "upload batch 2025-03-01 10:00" {
		t.Errorf("Name = %s", list[0].Name)
	}
}
