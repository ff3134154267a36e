package batch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/uservlrz/client/internal/logger"
	"github.com/uservlrz/client/internal/pdf"
	"github.com/uservlrz/client/internal/transport"
	"github.com/uservlrz/client/models"
)

type fakeUploader struct {
	mu    sync.Mutex
	calls []string
	fail  map[string]error
	hook  func(name string)
}

func (u *fakeUploader) Upload(ctx context.Context, file models.InputFile, progress transport.ProgressFunc) (*models.UploadAck, error) {
	u.mu.Lock()
	u.calls = append(u.calls, file.Name)
	u.mu.Unlock()
	if u.hook != nil {
		u.hook(file.Name)
	}

	progress(0)
	if err := u.fail[file.Name]; err != nil {
		return nil, err
	}
	progress(100)
	return &models.UploadAck{
		FileName:    file.Name,
		PatientName: "Paciente " + file.Name,
		Summaries:   []models.Summary{{Content: "ok", FileName: file.Name}},
	}, nil
}

type fakeDoc struct{ pages int }

func (d fakeDoc) PageCount() int { return d.pages }

type fakeOpener struct {
	fail map[string]error
}

// Open reads the page count from the payload suffix after "%PDF-"
func (o *fakeOpener) Open(data []byte) (pdf.LoadAttemptResult, error) {
	if err := o.fail[string(data)]; err != nil {
		return pdf.LoadAttemptResult{}, err
	}
	var pages int
	fmt.Sscanf(strings.TrimPrefix(string(data), "%PDF-"), "%d", &pages)
	return pdf.LoadAttemptResult{Success: true, Strategy: pdf.StrategyDirect, Document: fakeDoc{pages: pages}}, nil
}

type fakeSplitter struct {
	warn map[string]string
}

func (s *fakeSplitter) Split(doc pdf.Document, strategy, name string, parts int) (pdf.Result[[]models.SplitPart], error) {
	var out pdf.Result[[]models.SplitPart]
	if doc.PageCount() < parts {
		return out, &pdf.InsufficientPagesError{Required: parts, Actual: doc.PageCount()}
	}
	for k := 1; k <= parts; k++ {
		out.Value = append(out.Value, models.SplitPart{
			SourceFileName: name,
			Name:           pdf.PartName(name, k, parts),
			PartNumber:     k,
			TotalParts:     parts,
		})
	}
	if w, ok := s.warn[name]; ok {
		out.Warnings = append(out.Warnings, w)
	}
	return out, nil
}

func pdfFile(name string, pages int) models.InputFile {
	return models.InputFile{Name: name, Data: []byte(fmt.Sprintf("%%PDF-%d", pages))}
}

func TestRun_UnsupportedInputIsIsolated(t *testing.T) {
	up := &fakeUploader{}
	o := New(up, nil, nil, Options{}, logger.NewNoOpLogger())

	files := []models.InputFile{
		pdfFile("a.pdf", 1),
		{Name: "notes.txt", Data: []byte("hello")},
		pdfFile("c.pdf", 1),
	}
	report, err := o.Run(context.Background(), files, models.ModeUpload)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if report.SucceededCount != 2 || report.FailedCount != 1 {
		t.Errorf("succeeded=%d failed=%d", report.SucceededCount, report.FailedCount)
	}
	if report.Status != models.StatusPartialSuccess {
		t.Errorf("status = %s", report.Status)
	}
	if !strings.HasPrefix(report.Message, "2 of 3 files processed") || !strings.Contains(report.Message, "notes.txt") {
		t.Errorf("unexpected message %q", report.Message)
	}
	if report.Errors["notes.txt"] != models.ErrUnsupportedInput.Error() {
		t.Errorf("unexpected error map %v", report.Errors)
	}
	if len(up.calls) != 2 {
		t.Errorf("unsupported file must not reach the uploader: %v", up.calls)
	}
	if len(report.Uploads) != 2 || report.Uploads[0].FileName != "a.pdf" || report.Uploads[1].FileName != "c.pdf" {
		t.Errorf("uploads out of order: %+v", report.Uploads)
	}
	if report.PatientName != "Paciente a.pdf" {
		t.Errorf("patient name should come from the first file, got %q", report.PatientName)
	}
	if report.Files[1].Status != models.FileFailed {
		t.Errorf("file 2 status = %s", report.Files[1].Status)
	}
}

func TestRun_Statuses(t *testing.T) {
	boom := errors.New("boom")
	tests := []struct {
		name       string
		fail       map[string]error
		wantStatus models.BatchStatus
		wantPrefix string
	}{
		{"all succeed", nil, models.StatusSuccess, "all 2 files processed successfully"},
		{"one fails", map[string]error{"b.pdf": boom}, models.StatusPartialSuccess, "1 of 2 files processed"},
		{"all fail", map[string]error{"a.pdf": boom, "b.pdf": boom}, models.StatusTotalFailure, "all 2 files failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := New(&fakeUploader{fail: tt.fail}, nil, nil, Options{}, logger.NewNoOpLogger())
			report, err := o.Run(context.Background(), []models.InputFile{pdfFile("a.pdf", 1), pdfFile("b.pdf", 1)}, models.ModeUpload)
			if err != nil {
				t.Fatalf("Run failed: %v", err)
			}
			if report.Status != tt.wantStatus {
				t.Errorf("status = %s, want %s", report.Status, tt.wantStatus)
			}
			if !strings.HasPrefix(report.Message, tt.wantPrefix) {
				t.Errorf("message = %q, want prefix %q", report.Message, tt.wantPrefix)
			}
		})
	}
}

func TestRun_Split(t *testing.T) {
	opener := &fakeOpener{}
	splitter := &fakeSplitter{warn: map[string]string{"b.pdf": "part 1: page 2 could not be copied"}}
	o := New(nil, opener, splitter, Options{PartCount: 2}, logger.NewNoOpLogger())

	files := []models.InputFile{pdfFile("a.pdf", 5), pdfFile("b.pdf", 4), pdfFile("c.pdf", 1)}
	report, err := o.Run(context.Background(), files, models.ModeSplit)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if report.Status != models.StatusPartialSuccess {
		t.Errorf("status = %s", report.Status)
	}
	if len(report.Parts) != 4 {
		t.Fatalf("expected 4 parts, got %d", len(report.Parts))
	}
	wantNames := []string{"a_parte1de2.pdf", "a_parte2de2.pdf", "b_parte1de2.pdf", "b_parte2de2.pdf"}
	for i, n := range wantNames {
		if report.Parts[i].Name != n {
			t.Errorf("part %d = %s, want %s", i, report.Parts[i].Name, n)
		}
	}
	if report.Files[1].Status != models.FileSucceededWithWarnings {
		t.Errorf("b.pdf status = %s", report.Files[1].Status)
	}
	if len(report.Warnings["b.pdf"]) != 1 {
		t.Errorf("unexpected warnings %v", report.Warnings)
	}
	if report.Files[2].Status != models.FileFailed || !strings.Contains(report.Errors["c.pdf"], "cannot split") {
		t.Errorf("c.pdf should fail with insufficient pages: %+v", report.Files[2])
	}
	if !strings.Contains(report.Message, "warnings:") {
		t.Errorf("warnings should be listed: %q", report.Message)
	}
}

func TestRun_ConcurrentKeepsOrder(t *testing.T) {
	var running, peak int32
	up := &fakeUploader{hook: func(string) {
		n := atomic.AddInt32(&running, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		atomic.AddInt32(&running, -1)
	}}
	o := New(up, nil, nil, Options{Workers: 3}, logger.NewNoOpLogger())

	var files []models.InputFile
	for i := range 10 {
		files = append(files, pdfFile(fmt.Sprintf("f%d.pdf", i), 1))
	}
	report, err := o.Run(context.Background(), files, models.ModeUpload)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if atomic.LoadInt32(&peak) > 3 {
		t.Errorf("more than 3 files in flight: %d", peak)
	}
	for i, u := range report.Uploads {
		if u.FileName != fmt.Sprintf("f%d.pdf", i) {
			t.Fatalf("upload %d is %s", i, u.FileName)
		}
	}
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	up := &fakeUploader{hook: func(name string) {
		if name == "a.pdf" {
			cancel()
		}
	}}
	o := New(up, nil, nil, Options{}, logger.NewNoOpLogger())

	report, err := o.Run(ctx, []models.InputFile{pdfFile("a.pdf", 1), pdfFile("b.pdf", 1), pdfFile("c.pdf", 1)}, models.ModeUpload)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if report == nil {
		t.Fatal("report should be returned on cancellation")
	}
	if len(up.calls) != 1 {
		t.Errorf("only the first file should start, got %v", up.calls)
	}
	for _, f := range report.Files[1:] {
		if f.Status != models.FileFailed || f.Error != context.Canceled.Error() {
			t.Errorf("unstarted file %s: %+v", f.FileName, f)
		}
	}
}

func TestRun_Events(t *testing.T) {
	var events []Event
	o := New(&fakeUploader{}, nil, nil, Options{OnEvent: func(e Event) { events = append(events, e) }}, logger.NewNoOpLogger())

	if _, err := o.Run(context.Background(), []models.InputFile{pdfFile("a.pdf", 1)}, models.ModeUpload); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(events) == 0 || events[len(events)-1].Status != models.FileSucceeded || events[len(events)-1].Percent != 100 {
		t.Errorf("unexpected events %+v", events)
	}
	last := -1
	for _, e := range events {
		if e.Percent < last {
			t.Fatalf("progress went backwards: %+v", events)
		}
		last = e.Percent
	}
}

func TestRun_InvalidInput(t *testing.T) {
	o := New(nil, &fakeOpener{}, &fakeSplitter{}, Options{}, logger.NewNoOpLogger())
	if _, err := o.Run(context.Background(), nil, models.ModeSplit); !errors.Is(err, ErrEmptyBatch) {
		t.Errorf("expected ErrEmptyBatch, got %v", err)
	}
	if _, err := o.Run(context.Background(), []models.InputFile{pdfFile("a.pdf", 1)}, models.ModeSplit); err == nil {
		t.Error("expected error for zero part count")
	}
	if _, err := o.Run(context.Background(), []models.InputFile{pdfFile("a.pdf", 1)}, models.ModeUpload); err == nil {
		t.Error("expected error for missing uploader")
	}
}

func TestHint(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Problem
	}{
		{"protected", &pdf.ProtectedError{Cause: pdf.ErrEncrypted}, ProblemDocument},
		{"unsupported", fmt.Errorf("x: %w", models.ErrUnsupportedInput), ProblemDocument},
		{"server error", &transport.Error{FileName: "a.pdf", Chunk: -1, StatusCode: 500, Message: "boom"}, ProblemServer},
		{"bad request", &transport.Error{FileName: "x", Chunk: -1, StatusCode: 400, Message: "bad"}, ProblemOther},
		{"text", errors.New("connection reset"), ProblemServer},
		{"cancelled", context.Canceled, ProblemOther},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Hint(tt.err).Problem; got != tt.want {
				t.Errorf("Hint(%v) = %s, want %s", tt.err, got, tt.want)
			}
		})
	}
}
