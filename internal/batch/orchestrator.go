// Package batch runs uploads or splits over a list of files, isolating
// per-file failures and aggregating the outcome into a report.
package batch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/uservlrz/client/internal/logger"
	"github.com/uservlrz/client/internal/pdf"
	"github.com/uservlrz/client/internal/transport"
	"github.com/uservlrz/client/models"
)

// ErrEmptyBatch is returned when Run is given no files
var ErrEmptyBatch = errors.New("no files to process")

// Uploader sends one file to the extraction service
type Uploader interface {
	Upload(ctx context.Context, file models.InputFile, progress transport.ProgressFunc) (*models.UploadAck, error)
}

// Opener opens a PDF payload
type Opener interface {
	Open(data []byte) (pdf.LoadAttemptResult, error)
}

// Splitter partitions an opened document
type Splitter interface {
	Split(doc pdf.Document, strategy, originalName string, partCount int) (pdf.Result[[]models.SplitPart], error)
}

// Event reports progress of one file
type Event struct {
	Index    int
	FileName string
	Status   models.FileStatus
	Percent  int
}

// Options configure an Orchestrator
type Options struct {
	// Workers above 1 process files concurrently
	Workers int
	// PartCount is the number of parts each file is split into
	PartCount int
	// OnEvent is never called concurrently
	OnEvent func(Event)
}

// Orchestrator processes batches of files
type Orchestrator struct {
	uploader Uploader
	opener   Opener
	splitter Splitter
	opts     Options
	log      logger.Logger

	eventMu sync.Mutex
}

// New creates an orchestrator. uploader may be nil when only splitting, and
// opener/splitter may be nil when only uploading.
func New(uploader Uploader, opener Opener, splitter Splitter, opts Options, log logger.Logger) *Orchestrator {
	return &Orchestrator{
		uploader: uploader,
		opener:   opener,
		splitter: splitter,
		opts:     opts,
		log:      log.Named("batch"),
	}
}

// slot is written only by the goroutine processing its file
type slot struct {
	result models.FileResult
	parts  []models.SplitPart
	ack    *models.UploadAck
}

// Run processes files in the given mode. The report is always returned once
// processing started; on cancellation Run also returns ctx.Err().
func (o *Orchestrator) Run(ctx context.Context, files []models.InputFile, mode models.Mode) (*models.BatchReport, error) {
	if len(files) == 0 {
		return nil, ErrEmptyBatch
	}
	if err := o.checkMode(mode); err != nil {
		return nil, err
	}

	report := &models.BatchReport{
		ID:        uuid.NewString(),
		Mode:      mode,
		StartedAt: time.Now(),
	}
	o.log.Info("Starting %s batch %s with %d files", mode, report.ID, len(files))

	slots := make([]slot, len(files))
	var pending []int
	for i, f := range files {
		slots[i].result = models.FileResult{Index: i, FileName: f.Name, Status: models.FilePending}
		if !pdf.IsPDF(f.Data) {
			o.fail(&slots[i], models.ErrUnsupportedInput)
			o.emit(slots[i].result, 0)
			continue
		}
		pending = append(pending, i)
	}

	pool := newWorkerPool(o.opts.Workers)
	pool.forEach(ctx, pending,
		func(ctx context.Context, i int) {
			o.process(ctx, files[i], mode, &slots[i])
		},
		func(i int, err error) {
			o.fail(&slots[i], err)
			o.emit(slots[i].result, 0)
		},
	)

	o.aggregate(report, slots)
	report.FinishedAt = time.Now()
	o.log.Info("Batch %s finished: %s (%d succeeded, %d failed)", report.ID, report.Status, report.SucceededCount, report.FailedCount)

	if err := ctx.Err(); err != nil {
		return report, err
	}
	return report, nil
}

func (o *Orchestrator) checkMode(mode models.Mode) error {
	switch mode {
	case models.ModeUpload:
		if o.uploader == nil {
			return errors.New("upload mode requires an uploader")
		}
	case models.ModeSplit:
		if o.opener == nil || o.splitter == nil {
			return errors.New("split mode requires a loader and a partitioner")
		}
		if o.opts.PartCount < 1 {
			return fmt.Errorf("invalid part count %d", o.opts.PartCount)
		}
	default:
		return fmt.Errorf("unknown mode %q", mode)
	}
	return nil
}

func (o *Orchestrator) process(ctx context.Context, file models.InputFile, mode models.Mode, s *slot) {
	s.result.Status = models.FileInProgress
	o.emit(s.result, 0)

	var err error
	switch mode {
	case models.ModeUpload:
		err = o.upload(ctx, file, s)
	case models.ModeSplit:
		err = o.split(file, s)
	}

	if err != nil {
		o.log.Error("Processing %s failed: %v", file.Name, err)
		o.fail(s, err)
		o.emit(s.result, 0)
		return
	}

	s.result.Status = models.FileSucceeded
	if len(s.result.Warnings) > 0 {
		s.result.Status = models.FileSucceededWithWarnings
	}
	o.emit(s.result, 100)
}

func (o *Orchestrator) upload(ctx context.Context, file models.InputFile, s *slot) error {
	ack, err := o.uploader.Upload(ctx, file, func(p int) {
		o.emit(s.result, p)
	})
	if err != nil {
		return err
	}
	s.ack = ack
	s.result.Artifacts = 1
	s.result.Warnings = append(s.result.Warnings, ack.Warnings...)
	return nil
}

func (o *Orchestrator) split(file models.InputFile, s *slot) error {
	res, err := o.opener.Open(file.Data)
	if err != nil {
		return err
	}
	s.result.Strategy = res.Strategy
	if res.Strategy != pdf.StrategyDirect {
		o.log.Info("%s opened with strategy %s", file.Name, loggableStrategy(res.Strategy))
	}

	out, err := o.splitter.Split(res.Document, res.Strategy, file.Name, o.opts.PartCount)
	s.result.Warnings = append(s.result.Warnings, out.Warnings...)
	if err != nil {
		return err
	}
	s.parts = out.Value
	s.result.Artifacts = len(out.Value)
	return nil
}

func (o *Orchestrator) fail(s *slot, err error) {
	s.result.Status = models.FileFailed
	s.result.Error = err.Error()
}

func (o *Orchestrator) emit(r models.FileResult, percent int) {
	if o.opts.OnEvent == nil {
		return
	}
	o.eventMu.Lock()
	defer o.eventMu.Unlock()
	o.opts.OnEvent(Event{Index: r.Index, FileName: r.FileName, Status: r.Status, Percent: percent})
}

// aggregate assembles the report from the slots in input order
func (o *Orchestrator) aggregate(report *models.BatchReport, slots []slot) {
	report.Errors = make(map[string]string)
	report.Warnings = make(map[string][]string)
	report.Files = make([]models.FileResult, len(slots))

	var failures, warnings []string
	for i, s := range slots {
		report.Files[i] = s.result
		key := reportKey(report, s.result)

		if s.result.Status == models.FileFailed {
			report.FailedCount++
			report.Errors[key] = s.result.Error
			failures = append(failures, fmt.Sprintf("- %s: %s", s.result.FileName, s.result.Error))
		} else {
			report.SucceededCount++
		}
		if len(s.result.Warnings) > 0 {
			report.Warnings[key] = s.result.Warnings
			for _, w := range s.result.Warnings {
				warnings = append(warnings, fmt.Sprintf("- %s: %s", s.result.FileName, w))
			}
		}

		report.Parts = append(report.Parts, s.parts...)
		if s.ack != nil {
			report.Uploads = append(report.Uploads, *s.ack)
			if report.PatientName == "" {
				report.PatientName = s.ack.PatientName
			}
		}
	}

	total := len(slots)
	switch {
	case report.FailedCount == 0:
		report.Status = models.StatusSuccess
		report.Message = fmt.Sprintf("all %d files processed successfully", total)
	case report.ArtifactCount() == 0:
		report.Status = models.StatusTotalFailure
		report.Message = fmt.Sprintf("all %d files failed", total)
	default:
		report.Status = models.StatusPartialSuccess
		report.Message = fmt.Sprintf("%d of %d files processed", report.SucceededCount, total)
	}

	var b strings.Builder
	b.WriteString(report.Message)
	if len(failures) > 0 {
		b.WriteString("\nfailures:\n")
		b.WriteString(strings.Join(failures, "\n"))
	}
	if len(warnings) > 0 {
		b.WriteString("\nwarnings:\n")
		b.WriteString(strings.Join(warnings, "\n"))
	}
	report.Message = b.String()
}

// reportKey is the file name, disambiguated when names repeat
func reportKey(report *models.BatchReport, r models.FileResult) string {
	_, seenErr := report.Errors[r.FileName]
	_, seenWarn := report.Warnings[r.FileName]
	if !seenErr && !seenWarn {
		return r.FileName
	}
	return fmt.Sprintf("%s#%d", r.FileName, r.Index+1)
}

func loggableStrategy(s string) string {
	if strings.HasPrefix(s, "password:") {
		return "password"
	}
	return s
}
