// Package sources turns local paths, URLs and Zotero attachments into input files.
package sources

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"

	"github.com/Epistemic-Technology/zotero/zotero"

	"github.com/uservlrz/client/models"
)

// ErrNoSource is returned when a SourceInfo names nothing to read
var ErrNoSource = errors.New("no data provided")

// Resolver reads input files from their sources
type Resolver struct {
	HTTPClient      *http.Client
	ZoteroAPIKey    string
	ZoteroLibraryID string
}

// NewResolver creates a resolver with Zotero credentials taken from the
// environment (ZOTERO_API_KEY, ZOTERO_LIBRARY_ID).
func NewResolver() *Resolver {
	return &Resolver{
		HTTPClient:      http.DefaultClient,
		ZoteroAPIKey:    os.Getenv("ZOTERO_API_KEY"),
		ZoteroLibraryID: os.Getenv("ZOTERO_LIBRARY_ID"),
	}
}

// Resolve reads the file described by info. Raw data wins over a path, a
// path over a Zotero id, and a Zotero id over a URL.
func (r *Resolver) Resolve(ctx context.Context, info models.SourceInfo) (models.InputFile, error) {
	var (
		data []byte
		name = info.Name
		err  error
	)

	switch {
	case len(info.RawData) > 0:
		data = info.RawData
		if name == "" {
			name = "document.pdf"
		}
	case info.Path != "":
		data, err = os.ReadFile(info.Path)
		if err != nil {
			return models.InputFile{}, fmt.Errorf("read %s: %w", info.Path, err)
		}
		if name == "" {
			name = filepath.Base(info.Path)
		}
	case info.ZoteroID != "":
		data, err = r.FromZotero(ctx, info.ZoteroID)
		if err != nil {
			return models.InputFile{}, fmt.Errorf("fetch Zotero item %s: %w", info.ZoteroID, err)
		}
		if name == "" {
			name = info.ZoteroID + ".pdf"
		}
	case info.URL != "":
		data, err = r.FromURL(ctx, info.URL)
		if err != nil {
			return models.InputFile{}, fmt.Errorf("fetch %s: %w", info.URL, err)
		}
		if name == "" {
			name = nameFromURL(info.URL)
		}
	default:
		return models.InputFile{}, ErrNoSource
	}

	if data == nil {
		return models.InputFile{}, errors.New("no data retrieved")
	}
	return models.InputFile{Name: name, Data: data}, nil
}

// ResolveAll resolves every source, stopping at the first failure
func (r *Resolver) ResolveAll(ctx context.Context, infos []models.SourceInfo) ([]models.InputFile, error) {
	files := make([]models.InputFile, 0, len(infos))
	for _, info := range infos {
		f, err := r.Resolve(ctx, info)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, nil
}

// FromURL downloads a document
func (r *Resolver) FromURL(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	client := r.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}
	return io.ReadAll(resp.Body)
}

// FromZotero downloads an attachment from the configured Zotero library
func (r *Resolver) FromZotero(ctx context.Context, zoteroID string) ([]byte, error) {
	if r.ZoteroAPIKey == "" || r.ZoteroLibraryID == "" {
		return nil, errors.New("ZOTERO_API_KEY and ZOTERO_LIBRARY_ID must be set")
	}
	client := zotero.NewClient(r.ZoteroLibraryID, zotero.LibraryTypeUser, zotero.WithAPIKey(r.ZoteroAPIKey))
	return client.File(ctx, zoteroID)
}

func nameFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "document.pdf"
	}
	base := path.Base(u.Path)
	if base == "." || base == "/" || base == "" {
		return "document.pdf"
	}
	return base
}

// DetectType names the kind of payload by its magic bytes
func DetectType(data []byte) string {
	head := data[:min(len(data), 1024)]
	trimmed := bytes.TrimSpace(head)
	switch {
	case len(data) == 0:
		return "empty"
	case bytes.Contains(head, []byte("%PDF-")):
		return "pdf"
	case bytes.HasPrefix(bytes.ToLower(trimmed), []byte("<!doctype html")),
		bytes.HasPrefix(bytes.ToLower(trimmed), []byte("<html")):
		return "html"
	case len(data) >= 4 && data[0] == 'P' && data[1] == 'K':
		return "zip"
	case bytes.HasPrefix(data, []byte{0xFF, 0xD8, 0xFF}):
		return "jpeg"
	case bytes.HasPrefix(data, []byte("\x89PNG")):
		return "png"
	}
	return "unknown"
}
