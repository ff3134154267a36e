package models

import (
	"errors"
	"time"
)

// ErrUnsupportedInput is reported for files that are not PDF documents. Such
// files are rejected before any network or parse work.
var ErrUnsupportedInput = errors.New("unsupported input: only PDF files are accepted")

// Mode selects what a batch run does with each file
type Mode string

const (
	ModeUpload Mode = "upload"
	ModeSplit  Mode = "split"
)

// InputFile is an immutable named byte blob owned by the caller for the
// duration of a batch run.
type InputFile struct {
	Name string `json:"name"`
	Data []byte `json:"-"`
}

// Size returns the length of the file in bytes
func (f InputFile) Size() int64 {
	return int64(len(f.Data))
}

// Summary is one extracted block of results returned by the extraction service
type Summary struct {
	Content     string `json:"content"`
	FileName    string `json:"file_name,omitempty"`
	PatientName string `json:"patient_name,omitempty"`
}

// UploadResponse is the wire shape returned by both the single-shot upload
// endpoint and the finalize endpoint.
type UploadResponse struct {
	Summaries        []Summary `json:"summaries"`
	PatientName      string    `json:"patientName,omitempty"`
	ExtractionMethod string    `json:"extractionMethod,omitempty"`
	Message          string    `json:"message,omitempty"`
}

// UploadAck is the artifact produced by a successful upload
type UploadAck struct {
	FileName         string    `json:"file_name"`
	PatientName      string    `json:"patient_name,omitempty"`
	ExtractionMethod string    `json:"extraction_method,omitempty"`
	Summaries        []Summary `json:"summaries"`
	Chunked          bool      `json:"chunked"`
	ProcessedAt      time.Time `json:"processed_at"`
	Warnings         []string  `json:"warnings,omitempty"`
}

// SplitPart is one output document of a split operation
type SplitPart struct {
	SourceFileName string   `json:"source_file_name"`
	Name           string   `json:"name"`
	PartNumber     int      `json:"part_number"`
	TotalParts     int      `json:"total_parts"`
	PageCount      int      `json:"page_count"`
	Data           []byte   `json:"-"`
	LoadStrategy   string   `json:"load_strategy"`
	Warnings       []string `json:"warnings,omitempty"`
}

// FileStatus tracks one file through a batch run
type FileStatus string

const (
	FilePending               FileStatus = "pending"
	FileInProgress            FileStatus = "in-progress"
	FileSucceeded             FileStatus = "succeeded"
	FileSucceededWithWarnings FileStatus = "succeeded-with-warnings"
	FileFailed                FileStatus = "failed"
)

// FileResult is the per-file outcome of a batch run
type FileResult struct {
	Index     int        `json:"index"`
	FileName  string     `json:"file_name"`
	Status    FileStatus `json:"status"`
	Error     string     `json:"error,omitempty"`
	Warnings  []string   `json:"warnings,omitempty"`
	Strategy  string     `json:"strategy,omitempty"`
	Artifacts int        `json:"artifacts"`
}

// BatchStatus is the aggregated outcome of a batch run
type BatchStatus string

const (
	StatusSuccess        BatchStatus = "success"
	StatusPartialSuccess BatchStatus = "partial-success"
	StatusTotalFailure   BatchStatus = "total-failure"
)

// BatchReport aggregates the results and diagnostics of a batch run. Files,
// Parts and Uploads preserve input order.
type BatchReport struct {
	ID             string              `json:"id,omitempty"`
	Mode           Mode                `json:"mode"`
	Status         BatchStatus         `json:"status"`
	Message        string              `json:"message"`
	SucceededCount int                 `json:"succeeded_count"`
	FailedCount    int                 `json:"failed_count"`
	Errors         map[string]string   `json:"errors,omitempty"`
	Warnings       map[string][]string `json:"warnings,omitempty"`
	Files          []FileResult        `json:"files"`
	Parts          []SplitPart         `json:"parts,omitempty"`
	Uploads        []UploadAck         `json:"uploads,omitempty"`
	PatientName    string              `json:"patient_name,omitempty"`
	StartedAt      time.Time           `json:"started_at"`
	FinishedAt     time.Time           `json:"finished_at"`
}

// ArtifactCount returns the number of produced artifacts
func (r *BatchReport) ArtifactCount() int {
	return len(r.Parts) + len(r.Uploads)
}

// BatchInfo contains basic information about a stored batch run
type BatchInfo struct {
	BatchID        string      `json:"batch_id"`
	Mode           Mode        `json:"mode"`
	Status         BatchStatus `json:"status"`
	Message        string      `json:"message,omitempty"`
	SucceededCount int         `json:"succeeded_count"`
	FailedCount    int         `json:"failed_count"`
	StartedAt      time.Time   `json:"started_at"`
}

// SourceInfo contains information about where an input file comes from
type SourceInfo struct {
	Path     string `json:"path,omitempty"`
	ZoteroID string `json:"zotero_id,omitempty"`
	URL      string `json:"url,omitempty"`
	Name     string `json:"name,omitempty"`
	RawData  []byte `json:"raw_data,omitempty"`
}
