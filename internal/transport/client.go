// Package transport sends PDF files to the extraction service, switching to
// sequential chunked transfer for files above the single-shot threshold.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/uservlrz/client/internal/chunk"
	"github.com/uservlrz/client/internal/config"
	"github.com/uservlrz/client/internal/logger"
	"github.com/uservlrz/client/models"
)

const (
	baseRetryDelay = 1 * time.Second
	maxRetryDelay  = 32 * time.Second
	// headroom for multipart framing on top of the payload
	formOverhead = 64 * 1024
)

// ProgressFunc receives a monotonically non-decreasing percentage
type ProgressFunc func(percent int)

// Client uploads files to the extraction service
type Client struct {
	httpClient   *http.Client
	api          config.APIConfig
	chunkSize    int64
	threshold    int64
	maxRetries   int
	retryDelay   time.Duration
	limiter      *rate.Limiter
	newSessionID func() string
	log          logger.Logger
}

// Option customizes a Client
type Option func(*Client)

// WithHTTPClient uses a custom HTTP client. Defaults to one with the configured timeout.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithSessionIDs overrides how upload session ids are generated
func WithSessionIDs(fn func() string) Option {
	return func(c *Client) {
		c.newSessionID = fn
	}
}

// WithRetryDelay sets the base delay of the exponential backoff
func WithRetryDelay(d time.Duration) Option {
	return func(c *Client) {
		c.retryDelay = d
	}
}

// NewClient creates an upload client from the configuration
func NewClient(cfg *config.Config, log logger.Logger, opts ...Option) *Client {
	c := &Client{
		api:          cfg.API,
		chunkSize:    cfg.ChunkSizeBytes,
		threshold:    cfg.SingleShotThresholdBytes,
		maxRetries:   cfg.API.MaxRetries,
		retryDelay:   baseRetryDelay,
		newSessionID: uuid.NewString,
		log:          log.Named("transport"),
	}

	limit := rate.Inf
	burst := int(max(c.threshold, c.chunkSize) + formOverhead)
	if bps := cfg.API.UploadBytesPerSecond; bps > 0 {
		limit = rate.Limit(bps)
		burst = max(burst, int(bps))
	}
	c.limiter = rate.NewLimiter(limit, burst)

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: cfg.API.Timeout.Duration}
	}
	return c
}

// UseChunks reports whether a file of the given size is sent in chunks.
// A file of exactly the threshold size still goes in a single request.
func (c *Client) UseChunks(size int64) bool {
	return size > c.threshold
}

// Upload sends the file and returns the service's acknowledgement
func (c *Client) Upload(ctx context.Context, file models.InputFile, progress ProgressFunc) (*models.UploadAck, error) {
	if progress == nil {
		progress = func(int) {}
	}
	progress(0)

	var (
		resp    *models.UploadResponse
		err     error
		chunked = c.UseChunks(file.Size())
	)
	if chunked {
		resp, err = c.uploadChunked(ctx, file, progress)
	} else {
		resp, err = c.uploadSingle(ctx, file)
	}
	if err != nil {
		return nil, err
	}

	ack, err := toAck(file.Name, resp, chunked)
	if err != nil {
		return nil, err
	}
	progress(100)
	return ack, nil
}

func (c *Client) uploadSingle(ctx context.Context, file models.InputFile) (*models.UploadResponse, error) {
	c.log.Info("Uploading %s (%d bytes) in a single request", file.Name, file.Size())

	body, contentType, err := buildForm(nil, "pdf", file.Name, file.Data)
	if err != nil {
		return nil, &Error{FileName: file.Name, Chunk: -1, Message: err.Error(), Err: err}
	}

	resp, err := c.postForResponse(ctx, c.api.UploadPath, contentType, body)
	if err != nil {
		return nil, wrapError(&Error{FileName: file.Name, Chunk: -1}, err)
	}
	return resp, nil
}

// session is the client side of one server reassembly context
type session struct {
	id          string
	fileName    string
	totalChunks int
	chunkSize   int64
}

func (c *Client) uploadChunked(ctx context.Context, file models.InputFile, progress ProgressFunc) (*models.UploadResponse, error) {
	s := session{
		id:          c.newSessionID(),
		fileName:    file.Name,
		totalChunks: chunk.Count(file.Size(), c.chunkSize),
		chunkSize:   c.chunkSize,
	}
	c.log.Info("Uploading %s (%d bytes) in %d chunks, session %s", file.Name, file.Size(), s.totalChunks, s.id)

	for _, r := range chunk.Split(file.Size(), s.chunkSize) {
		if err := ctx.Err(); err != nil {
			return nil, &Error{FileName: file.Name, Chunk: r.Index, TotalChunks: s.totalChunks, Message: err.Error(), Err: err}
		}
		if err := c.sendChunk(ctx, s, r, chunk.Slice(file.Data, r)); err != nil {
			c.log.Error("Chunk %d/%d of %s failed: %v", r.Index+1, s.totalChunks, file.Name, err)
			return nil, wrapError(&Error{FileName: file.Name, Chunk: r.Index, TotalChunks: s.totalChunks}, err)
		}
		c.log.Debug("Chunk %d/%d of %s accepted", r.Index+1, s.totalChunks, file.Name)
		progress((r.Index + 1) * 90 / s.totalChunks)
	}

	resp, err := c.finalize(ctx, s)
	if err != nil {
		c.log.Error("Finalization of %s failed: %v", file.Name, err)
		return nil, wrapError(&Error{FileName: file.Name, Chunk: -1, TotalChunks: s.totalChunks, Finalize: true}, err)
	}
	return resp, nil
}

func (c *Client) sendChunk(ctx context.Context, s session, r chunk.Range, data []byte) error {
	fields := [][2]string{
		{"chunkIndex", strconv.Itoa(r.Index)},
		{"totalChunks", strconv.Itoa(s.totalChunks)},
		{"uploadId", s.id},
		{"fileName", s.fileName},
	}
	body, contentType, err := buildForm(fields, "chunk", s.fileName, data)
	if err != nil {
		return err
	}

	rsp, err := c.send(ctx, c.api.ChunkPath, contentType, body)
	if err != nil {
		return err
	}
	closeRsp(rsp)
	return nil
}

func (c *Client) finalize(ctx context.Context, s session) (*models.UploadResponse, error) {
	body, err := json.Marshal(map[string]string{"uploadId": s.id})
	if err != nil {
		return nil, err
	}
	return c.postForResponse(ctx, c.api.FinalizePath, "application/json", body)
}

func (c *Client) postForResponse(ctx context.Context, path, contentType string, body []byte) (*models.UploadResponse, error) {
	rsp, err := c.send(ctx, path, contentType, body)
	if err != nil {
		return nil, err
	}
	defer closeRsp(rsp)

	var out models.UploadResponse
	if err := json.NewDecoder(rsp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &out, nil
}

// send posts body to path, retrying 429/503 answers with exponential backoff.
// Non-2xx answers become *statusError.
func (c *Client) send(ctx context.Context, path, contentType string, body []byte) (*http.Response, error) {
	url := strings.TrimRight(c.api.BaseURL, "/") + path

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(float64(c.retryDelay) * math.Pow(2, float64(attempt-1)))
			if delay > maxRetryDelay {
				delay = maxRetryDelay
			}
			c.log.Info("Retry attempt %d/%d for %s after %v delay", attempt, c.maxRetries, path, delay)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		if err := c.limiter.WaitN(ctx, len(body)); err != nil {
			return nil, fmt.Errorf("rate limiter wait failed: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", contentType)
		req.Header.Set("Accept", "application/json")

		rsp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		if rsp.StatusCode >= 200 && rsp.StatusCode < 300 {
			return rsp, nil
		}

		lastErr = readStatusError(rsp)
		if !isRetryableStatus(rsp.StatusCode) {
			return nil, lastErr
		}
		c.log.Warn("Service busy (%d) on attempt %d/%d for %s", rsp.StatusCode, attempt+1, c.maxRetries+1, path)
	}

	return nil, lastErr
}

// readStatusError consumes a non-2xx response, preferring the JSON message field
func readStatusError(rsp *http.Response) error {
	defer closeRsp(rsp)
	message := fmt.Sprintf("HTTP %d %s", rsp.StatusCode, http.StatusText(rsp.StatusCode))

	data, err := io.ReadAll(io.LimitReader(rsp.Body, 64*1024))
	if err == nil && len(data) > 0 {
		var body struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(data, &body) == nil && body.Message != "" {
			message = body.Message
		}
	}
	return &statusError{StatusCode: rsp.StatusCode, Message: message}
}

func wrapError(e *Error, err error) *Error {
	e.Err = err
	e.Message = err.Error()
	var se *statusError
	if errors.As(err, &se) {
		e.StatusCode = se.StatusCode
	}
	return e
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// buildForm encodes the text fields followed by one application/pdf file part
func buildForm(fields [][2]string, fileField, fileName string, data []byte) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for _, f := range fields {
		if err := w.WriteField(f[0], f[1]); err != nil {
			return nil, "", err
		}
	}

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
		quoteEscaper.Replace(fileField), quoteEscaper.Replace(fileName)))
	header.Set("Content-Type", "application/pdf")
	part, err := w.CreatePart(header)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(data); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

func closeRsp(rsp *http.Response) {
	if rsp != nil && rsp.Body != nil {
		_, _ = io.Copy(io.Discard, rsp.Body)
		_ = rsp.Body.Close()
	}
}
