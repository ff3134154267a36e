package pdf

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/uservlrz/client/internal/logger"
)

func TestBlankPDF_IsReadable(t *testing.T) {
	n, err := api.PageCount(bytes.NewReader(BlankPDF(placeholderWidth, placeholderHeight)), nil)
	if err != nil {
		t.Fatalf("blank PDF is not readable: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 page, got %d", n)
	}
}

func TestPageSelection(t *testing.T) {
	tests := []struct {
		in   []int
		want string
	}{
		{[]int{0}, "1"},
		{[]int{0, 1, 2}, "1-3"},
		{[]int{0, 2, 3, 7}, "1,3-4,8"},
	}
	for _, tt := range tests {
		if got := pageSelection(tt.in); got != tt.want {
			t.Errorf("pageSelection(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

// mergedBlank builds an n-page document from blank pages
func mergedBlank(t *testing.T, n int) []byte {
	t.Helper()
	readers := make([]io.ReadSeeker, n)
	for i := range readers {
		readers[i] = bytes.NewReader(BlankPDF(placeholderWidth, placeholderHeight))
	}
	var buf bytes.Buffer
	if err := api.MergeRaw(readers, &buf, false, model.NewDefaultConfiguration()); err != nil {
		t.Fatalf("Failed to build %d-page fixture: %v", n, err)
	}
	return buf.Bytes()
}

func encrypted(t *testing.T, data []byte, userPW string) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := api.Encrypt(bytes.NewReader(data), &buf, model.NewAESConfiguration(userPW, "owner", 256)); err != nil {
		t.Fatalf("Failed to encrypt fixture: %v", err)
	}
	return buf.Bytes()
}

func splitAndVerify(t *testing.T, data []byte, parts int, wantStrategy string, wantPages []int) {
	t.Helper()
	lib := NewPdfcpuLibrary()
	loader := NewLoader(lib, testPasswords, logger.NewNoOpLogger())
	partitioner := NewPartitioner(lib, logger.NewNoOpLogger())

	res, err := loader.Open(data)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if res.Strategy != wantStrategy {
		t.Errorf("strategy = %s, want %s", res.Strategy, wantStrategy)
	}

	out, err := partitioner.Split(res.Document, res.Strategy, "laudo.pdf", parts)
	if err != nil {
		t.Fatalf("Split failed: %v", err)
	}
	if len(out.Warnings) != 0 {
		t.Errorf("unexpected warnings %v", out.Warnings)
	}
	if len(out.Value) != len(wantPages) {
		t.Fatalf("got %d parts, want %d", len(out.Value), len(wantPages))
	}
	for i, part := range out.Value {
		n, err := api.PageCount(bytes.NewReader(part.Data), nil)
		if err != nil {
			t.Errorf("%s is not a valid PDF: %v", part.Name, err)
			continue
		}
		if n != part.PageCount || n != wantPages[i] {
			t.Errorf("%s has %d pages, reported %d, want %d", part.Name, n, part.PageCount, wantPages[i])
		}
	}
}

func TestPdfcpuLibrary_Split(t *testing.T) {
	tests := []struct {
		pages int
		parts int
		want  []int
	}{
		{5, 2, []int{3, 2}},
		{5, 3, []int{2, 2, 1}},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d pages into %d", tt.pages, tt.parts), func(t *testing.T) {
			splitAndVerify(t, mergedBlank(t, tt.pages), tt.parts, StrategyDirect, tt.want)
		})
	}
}

func TestPdfcpuLibrary_PasswordProtected(t *testing.T) {
	data := encrypted(t, mergedBlank(t, 5), "1234")
	splitAndVerify(t, data, 2, "password:1234", []int{3, 2})
}

func TestPdfcpuLibrary_UnknownPassword(t *testing.T) {
	data := encrypted(t, mergedBlank(t, 2), "not-in-the-list")
	loader := NewLoader(NewPdfcpuLibrary(), testPasswords, logger.NewNoOpLogger())

	_, err := loader.Open(data)
	var perr *ProtectedError
	if !errors.As(err, &perr) {
		t.Fatalf("expected *ProtectedError, got %v", err)
	}
}

func TestPdfcpuLibrary_Garbage(t *testing.T) {
	loader := NewLoader(NewPdfcpuLibrary(), testPasswords, logger.NewNoOpLogger())

	_, err := loader.Open([]byte("this is not a pdf at all"))
	if err == nil {
		t.Fatal("expected an error for garbage input")
	}
	var perr *ProtectedError
	if errors.As(err, &perr) {
		t.Errorf("structural failure reported as protection: %v", err)
	}
	if !strings.HasPrefix(err.Error(), "failed to open PDF: ") {
		t.Errorf("unexpected error %v", err)
	}
}

func TestPdfcpuLibrary_PlaceholderMerge(t *testing.T) {
	lib := NewPdfcpuLibrary()
	src, err := lib.Load(mergedBlank(t, 3), LoadOptions{})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	dst := lib.NewDocument()
	if err := lib.CopyPages(src, dst, []int{1}); err != nil {
		t.Fatalf("CopyPages failed: %v", err)
	}
	if err := lib.AddBlankPage(dst); err != nil {
		t.Fatalf("AddBlankPage failed: %v", err)
	}
	if err := lib.CopyPages(src, dst, []int{0, 2}); err != nil {
		t.Fatalf("CopyPages failed: %v", err)
	}

	data, err := lib.Save(dst, SaveOptions{})
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	n, err := api.PageCount(bytes.NewReader(data), nil)
	if err != nil {
		t.Fatalf("merged part is not a valid PDF: %v", err)
	}
	if n != 4 || dst.PageCount() != 4 {
		t.Errorf("merged part has %d pages (document reports %d), want 4", n, dst.PageCount())
	}
	if err := lib.CopyPages(src, dst, []int{3}); err == nil {
		t.Error("expected error for page index out of range")
	}
}
