package transport

import (
	"errors"
	"fmt"
)

var (
	// ErrNoResults is returned when the service answers without any summaries
	ErrNoResults = errors.New("could not extract information from the document")
	// ErrExtractionFailed is returned when the service reports it could not process the file
	ErrExtractionFailed = errors.New("the service could not process this PDF, try another format")
)

// Error describes a failed transfer of one file. Chunk is -1 when the failure
// did not happen while sending a chunk.
type Error struct {
	FileName    string
	Chunk       int
	TotalChunks int
	Finalize    bool
	StatusCode  int
	Message     string
	Err         error
}

func (e *Error) Error() string {
	switch {
	case e.Finalize:
		return fmt.Sprintf("%s: finalization failed: %s", e.FileName, e.Message)
	case e.Chunk >= 0:
		return fmt.Sprintf("%s: chunk %d of %d failed: %s", e.FileName, e.Chunk, e.TotalChunks, e.Message)
	default:
		return fmt.Sprintf("%s: upload failed: %s", e.FileName, e.Message)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// statusError is a non-2xx answer from the service
type statusError struct {
	StatusCode int
	Message    string
}

func (e *statusError) Error() string {
	return e.Message
}

func isRetryableStatus(code int) bool {
	return code == 429 || code == 503
}
