// Package receiver is a development server implementing the upload, chunk and
// finalize endpoints the client talks to.
package receiver

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/uservlrz/client/internal/config"
	"github.com/uservlrz/client/internal/logger"
	"github.com/uservlrz/client/internal/pdf"
	"github.com/uservlrz/client/internal/sources"
	"github.com/uservlrz/client/internal/transport"
	"github.com/uservlrz/client/models"
)

const (
	maxFormBytes      = 64 << 20
	defaultSessionTTL = 30 * time.Minute
)

// Extractor produces the response for a fully received document
type Extractor interface {
	Extract(ctx context.Context, fileName string, data []byte) (*models.UploadResponse, error)
}

// PageCountExtractor answers with the page count of the document. It does no
// text extraction.
type PageCountExtractor struct{}

func (PageCountExtractor) Extract(ctx context.Context, fileName string, data []byte) (*models.UploadResponse, error) {
	n, err := pdf.PageCount(data)
	if err != nil {
		if pdf.IsEncryptionError(err) {
			return &models.UploadResponse{
				Summaries:        []models.Summary{{Content: "document is protected", FileName: fileName}},
				ExtractionMethod: transport.MethodFailed,
			}, nil
		}
		return nil, err
	}
	return &models.UploadResponse{
		Summaries:        []models.Summary{{Content: fmt.Sprintf("%d pages received", n), FileName: fileName}},
		ExtractionMethod: transport.MethodDirect,
	}, nil
}

// upload is the reassembly state of one chunked transfer
type upload struct {
	fileName    string
	totalChunks int
	next        int
	buf         bytes.Buffer
	updatedAt   time.Time
}

// Handler serves the upload endpoints
type Handler struct {
	extractor Extractor
	log       logger.Logger
	ttl       time.Duration

	mu       sync.Mutex
	sessions map[string]*upload
	now      func() time.Time
}

// NewHandler constructs a Handler
func NewHandler(extractor Extractor, log logger.Logger) *Handler {
	if extractor == nil {
		extractor = PageCountExtractor{}
	}
	return &Handler{
		extractor: extractor,
		log:       log.Named("receiver"),
		ttl:       defaultSessionTTL,
		sessions:  make(map[string]*upload),
		now:       time.Now,
	}
}

// RegisterRoutes mounts the endpoints at the configured paths
func (h *Handler) RegisterRoutes(router *gin.Engine, api config.APIConfig) {
	router.POST(api.UploadPath, h.uploadFile)
	router.POST(api.ChunkPath, h.uploadChunk)
	router.POST(api.FinalizePath, h.finalize)
}

// NewRouter builds a gin engine with the endpoints mounted
func NewRouter(h *Handler, api config.APIConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	h.RegisterRoutes(router, api)
	return router
}

func (h *Handler) uploadFile(c *gin.Context) {
	file, err := c.FormFile("pdf")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "field pdf is required"})
		return
	}
	data, err := readFormFile(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "could not read uploaded file"})
		return
	}
	h.log.Info("Received %s (%d bytes)", file.Filename, len(data))
	h.respond(c, file.Filename, data)
}

func (h *Handler) uploadChunk(c *gin.Context) {
	if err := c.Request.ParseMultipartForm(maxFormBytes); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid multipart form"})
		return
	}

	uploadID := c.PostForm("uploadId")
	fileName := c.PostForm("fileName")
	index, errIndex := strconv.Atoi(c.PostForm("chunkIndex"))
	total, errTotal := strconv.Atoi(c.PostForm("totalChunks"))
	if uploadID == "" || errIndex != nil || errTotal != nil || total < 1 || index < 0 || index >= total {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid chunk metadata"})
		return
	}

	file, err := c.FormFile("chunk")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "field chunk is required"})
		return
	}
	data, err := readFormFile(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "could not read chunk"})
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	s, ok := h.sessions[uploadID]
	if !ok {
		if index != 0 {
			c.JSON(http.StatusConflict, gin.H{"message": fmt.Sprintf("unknown upload %s", uploadID)})
			return
		}
		h.purgeLocked()
		s = &upload{fileName: fileName, totalChunks: total}
		h.sessions[uploadID] = s
	}

	switch {
	case total != s.totalChunks:
		c.JSON(http.StatusConflict, gin.H{"message": "totalChunks changed during upload"})
		return
	case index < s.next:
		// already stored; a resend after a lost answer
		c.JSON(http.StatusOK, gin.H{"received": index, "next": s.next})
		return
	case index > s.next:
		c.JSON(http.StatusConflict, gin.H{"message": fmt.Sprintf("expected chunk %d, got %d", s.next, index)})
		return
	}

	s.buf.Write(data)
	s.next++
	s.updatedAt = h.now()
	h.log.Debug("Upload %s: chunk %d/%d stored", uploadID, index+1, total)
	c.JSON(http.StatusOK, gin.H{"received": index, "next": s.next})
}

type finalizeRequest struct {
	UploadID string `json:"uploadId"`
}

func (h *Handler) finalize(c *gin.Context) {
	var req finalizeRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.UploadID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "uploadId is required"})
		return
	}

	h.mu.Lock()
	s, ok := h.sessions[req.UploadID]
	var next, total int
	if ok {
		next, total = s.next, s.totalChunks
		if next == total {
			delete(h.sessions, req.UploadID)
		}
	}
	h.mu.Unlock()

	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"message": fmt.Sprintf("unknown upload %s", req.UploadID)})
		return
	}
	if next != total {
		c.JSON(http.StatusConflict, gin.H{"message": fmt.Sprintf("upload incomplete: %d of %d chunks", next, total)})
		return
	}

	h.log.Info("Reassembled %s from %d chunks (%d bytes)", s.fileName, s.totalChunks, s.buf.Len())
	h.respond(c, s.fileName, s.buf.Bytes())
}

func (h *Handler) respond(c *gin.Context, fileName string, data []byte) {
	if !pdf.IsPDF(data) {
		h.log.Warn("Rejected %s: payload looks like %s", fileName, sources.DetectType(data))
		c.JSON(http.StatusUnsupportedMediaType, gin.H{"message": models.ErrUnsupportedInput.Error()})
		return
	}
	resp, err := h.extractor.Extract(c.Request.Context(), fileName, data)
	if err != nil {
		h.log.Error("Extraction of %s failed: %v", fileName, err)
		c.JSON(http.StatusUnprocessableEntity, gin.H{"message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, resp)
}

// SessionCount returns the number of uploads awaiting finalization
func (h *Handler) SessionCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}

// purgeLocked drops abandoned uploads. Callers hold h.mu.
func (h *Handler) purgeLocked() {
	cutoff := h.now().Add(-h.ttl)
	for id, s := range h.sessions {
		if s.updatedAt.Before(cutoff) {
			delete(h.sessions, id)
		}
	}
}

func readFormFile(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}
