package pdf

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/uservlrz/client/internal/logger"
	"github.com/uservlrz/client/models"
)

// ErrNoParts is returned when not a single part of a document could be produced
var ErrNoParts = errors.New("no part could be produced")

// Result carries a value together with non-fatal warnings
type Result[T any] struct {
	Value    T
	Warnings []string
}

// InsufficientPagesError is returned when a document has fewer pages than requested parts
type InsufficientPagesError struct {
	Required int
	Actual   int
}

func (e *InsufficientPagesError) Error() string {
	return fmt.Sprintf("document has %d pages, cannot split into %d parts", e.Actual, e.Required)
}

// PageRange is a half-open range of 0-based page indices
type PageRange struct {
	Start int
	End   int
}

// Len returns the number of pages in the range
func (r PageRange) Len() int {
	return r.End - r.Start
}

// Indices lists the pages of the range
func (r PageRange) Indices() []int {
	out := make([]int, 0, r.Len())
	for i := r.Start; i < r.End; i++ {
		out = append(out, i)
	}
	return out
}

// PagePlan assigns pages to parts
type PagePlan struct {
	TotalPages   int
	PartCount    int
	// PagesPerPart is the size of the largest range, ceil(TotalPages/PartCount)
	PagesPerPart int
	Ranges       []PageRange
}

// Plan splits totalPages into partCount contiguous non-empty ranges whose
// sizes differ by at most one. Earlier parts take the extra pages.
func Plan(totalPages, partCount int) (PagePlan, error) {
	if partCount < 1 {
		return PagePlan{}, fmt.Errorf("part count must be positive, got %d", partCount)
	}
	if totalPages < partCount {
		return PagePlan{}, &InsufficientPagesError{Required: partCount, Actual: totalPages}
	}

	base, extra := totalPages/partCount, totalPages%partCount
	plan := PagePlan{
		TotalPages:   totalPages,
		PartCount:    partCount,
		PagesPerPart: (totalPages + partCount - 1) / partCount,
		Ranges:       make([]PageRange, partCount),
	}
	start := 0
	for k := range partCount {
		size := base
		if k < extra {
			size++
		}
		plan.Ranges[k] = PageRange{Start: start, End: start + size}
		start += size
	}
	return plan, nil
}

// PartName returns the file name of part k of n
func PartName(originalName string, k, n int) string {
	base := filepath.Base(originalName)
	if ext := filepath.Ext(base); strings.EqualFold(ext, ".pdf") {
		base = strings.TrimSuffix(base, ext)
	}
	return fmt.Sprintf("%s_parte%dde%d.pdf", base, k, n)
}

// Partitioner copies page ranges of a document into separate PDFs
type Partitioner struct {
	lib Library
	log logger.Logger
}

// NewPartitioner creates a partitioner on top of lib
func NewPartitioner(lib Library, log logger.Logger) *Partitioner {
	return &Partitioner{lib: lib, log: log.Named("partitioner")}
}

// Split partitions doc into partCount parts. Failed parts become warnings;
// the call fails only when no part is produced.
func (p *Partitioner) Split(doc Document, strategy, originalName string, partCount int) (Result[[]models.SplitPart], error) {
	var result Result[[]models.SplitPart]

	plan, err := Plan(doc.PageCount(), partCount)
	if err != nil {
		return result, err
	}

	for k, r := range plan.Ranges {
		number := k + 1
		part, err := p.buildPart(doc, r)
		if err != nil {
			p.log.Warn("Part %d of %s failed: %v", number, originalName, err)
			result.Warnings = append(result.Warnings, fmt.Sprintf("part %d could not be created: %v", number, err))
			continue
		}

		sp := part.Value
		sp.SourceFileName = originalName
		sp.Name = PartName(originalName, number, partCount)
		sp.PartNumber = number
		sp.TotalParts = partCount
		sp.LoadStrategy = strategy
		for _, w := range part.Warnings {
			result.Warnings = append(result.Warnings, fmt.Sprintf("part %d: %s", number, w))
		}
		result.Value = append(result.Value, sp)
	}

	if len(result.Value) == 0 {
		return result, fmt.Errorf("%s: %w", originalName, ErrNoParts)
	}
	return result, nil
}

type partBuild = Result[models.SplitPart]

func (p *Partitioner) buildPart(doc Document, r PageRange) (*partBuild, error) {
	part := &partBuild{}

	dst := p.lib.NewDocument()
	if err := p.lib.CopyPages(doc, dst, r.Indices()); err != nil {
		p.log.Debug("Batch copy of pages %d-%d failed, copying page by page: %v", r.Start+1, r.End, err)

		dst = p.lib.NewDocument()
		for _, i := range r.Indices() {
			if err := p.lib.CopyPages(doc, dst, []int{i}); err == nil {
				continue
			}
			if err := p.lib.AddBlankPage(dst); err != nil {
				return nil, fmt.Errorf("add placeholder for page %d: %w", i+1, err)
			}
			part.Warnings = append(part.Warnings, fmt.Sprintf("page %d could not be copied", i+1))
		}
	}

	data, err := p.lib.Save(dst, SaveOptions{UseObjectStreams: false})
	if err != nil {
		return nil, err
	}

	part.Value = models.SplitPart{
		PageCount: dst.PageCount(),
		Data:      data,
		Warnings:  part.Warnings,
	}
	return part, nil
}
