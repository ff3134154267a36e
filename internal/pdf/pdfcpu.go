package pdf

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// pdfcpuDocument is either a loaded source (ctx set) or a target assembled
// from single-document segments that are merged on save.
type pdfcpuDocument struct {
	data     []byte
	ctx      *model.Context
	conf     *model.Configuration
	segments [][]byte
	pages    int
}

func (d *pdfcpuDocument) PageCount() int {
	if d.ctx != nil {
		return d.ctx.PageCount
	}
	return d.pages
}

// PdfcpuLibrary implements Library with github.com/pdfcpu/pdfcpu
type PdfcpuLibrary struct {
	blank []byte
}

// NewPdfcpuLibrary creates the production PDF backend
func NewPdfcpuLibrary() *PdfcpuLibrary {
	return &PdfcpuLibrary{blank: BlankPDF(placeholderWidth, placeholderHeight)}
}

func loadConfiguration(opts LoadOptions) *model.Configuration {
	conf := model.NewDefaultConfiguration()
	if opts.Relaxed || opts.IgnoreEncryption {
		conf.ValidationMode = model.ValidationRelaxed
	}
	if opts.Password != "" {
		conf.UserPW = opts.Password
		conf.OwnerPW = opts.Password
	}
	return conf
}

// Load opens data. Encrypted documents that open are decrypted in memory so
// later copies never need the password again.
func (l *PdfcpuLibrary) Load(data []byte, opts LoadOptions) (Document, error) {
	conf := loadConfiguration(opts)

	ctx, err := l.read(data, conf, opts)
	if err != nil {
		return nil, classify(err)
	}

	if ctx.Encrypt != nil {
		var buf bytes.Buffer
		if err := api.Decrypt(bytes.NewReader(data), &buf, conf); err != nil {
			return nil, classify(err)
		}
		data = buf.Bytes()
		plain := loadConfiguration(LoadOptions{Relaxed: opts.Relaxed, IgnoreEncryption: opts.IgnoreEncryption})
		if ctx, err = l.read(data, plain, opts); err != nil {
			return nil, classify(err)
		}
		conf = plain
	}

	return &pdfcpuDocument{data: data, ctx: ctx, conf: conf}, nil
}

func (l *PdfcpuLibrary) read(data []byte, conf *model.Configuration, opts LoadOptions) (*model.Context, error) {
	if !opts.Relaxed && !opts.IgnoreEncryption {
		return api.ReadValidateAndOptimize(bytes.NewReader(data), conf)
	}

	ctx, err := api.ReadContext(bytes.NewReader(data), conf)
	if err != nil {
		return nil, err
	}
	if !opts.Relaxed {
		if err := api.ValidateContext(ctx); err != nil {
			if IsEncryptionError(err) {
				return nil, err
			}
		}
	}
	// Recovery keeps whatever pdfcpu could read even if optimization fails
	if err := api.OptimizeContext(ctx); err != nil && !opts.Relaxed {
		return nil, err
	}
	return ctx, nil
}

func classify(err error) error {
	if IsEncryptionError(err) && !errors.Is(err, ErrEncrypted) {
		return fmt.Errorf("%w: %v", ErrEncrypted, err)
	}
	return err
}

// NewDocument returns an empty target document
func (l *PdfcpuLibrary) NewDocument() Document {
	return &pdfcpuDocument{}
}

func asPdfcpu(doc Document) (*pdfcpuDocument, error) {
	d, ok := doc.(*pdfcpuDocument)
	if !ok {
		return nil, fmt.Errorf("unsupported document type %T", doc)
	}
	return d, nil
}

// CopyPages appends the given source pages to dst. A single page is extracted
// from the parsed source; a range is trimmed from the source bytes in one pass.
func (l *PdfcpuLibrary) CopyPages(src, dst Document, indices []int) error {
	s, err := asPdfcpu(src)
	if err != nil {
		return err
	}
	d, err := asPdfcpu(dst)
	if err != nil {
		return err
	}
	if s.ctx == nil {
		return errors.New("source document was not loaded")
	}
	if len(indices) == 0 {
		return nil
	}
	for _, i := range indices {
		if i < 0 || i >= s.ctx.PageCount {
			return fmt.Errorf("page index %d out of range [0,%d)", i, s.ctx.PageCount)
		}
	}

	var segment []byte
	if len(indices) == 1 {
		r, err := api.ExtractPage(s.ctx, indices[0]+1)
		if err != nil {
			return fmt.Errorf("extract page %d: %w", indices[0]+1, err)
		}
		if segment, err = io.ReadAll(r); err != nil {
			return err
		}
	} else {
		var buf bytes.Buffer
		if err := api.Trim(bytes.NewReader(s.data), &buf, []string{pageSelection(indices)}, s.conf); err != nil {
			return fmt.Errorf("copy pages %s: %w", pageSelection(indices), err)
		}
		segment = buf.Bytes()
	}

	d.segments = append(d.segments, segment)
	d.pages += len(indices)
	return nil
}

// pageSelection renders 0-based indices as a pdfcpu page selection. Contiguous
// runs collapse to "a-b".
func pageSelection(indices []int) string {
	var b bytes.Buffer
	for i := 0; i < len(indices); {
		j := i
		for j+1 < len(indices) && indices[j+1] == indices[j]+1 {
			j++
		}
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		if i == j {
			fmt.Fprintf(&b, "%d", indices[i]+1)
		} else {
			fmt.Fprintf(&b, "%d-%d", indices[i]+1, indices[j]+1)
		}
		i = j + 1
	}
	return b.String()
}

// AddBlankPage appends an empty A4 page
func (l *PdfcpuLibrary) AddBlankPage(dst Document) error {
	d, err := asPdfcpu(dst)
	if err != nil {
		return err
	}
	d.segments = append(d.segments, l.blank)
	d.pages++
	return nil
}

// Save serializes doc. Target documents are merged from their segments.
func (l *PdfcpuLibrary) Save(doc Document, opts SaveOptions) ([]byte, error) {
	d, err := asPdfcpu(doc)
	if err != nil {
		return nil, err
	}

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	conf.WriteObjectStream = opts.UseObjectStreams
	conf.WriteXRefStream = opts.UseObjectStreams

	segments := d.segments
	if d.ctx != nil {
		segments = [][]byte{d.data}
	}
	if len(segments) == 0 {
		return nil, errors.New("document has no pages")
	}

	var buf bytes.Buffer
	if len(segments) == 1 {
		if err := api.Optimize(bytes.NewReader(segments[0]), &buf, conf); err != nil {
			return nil, fmt.Errorf("write document: %w", err)
		}
		return buf.Bytes(), nil
	}

	readers := make([]io.ReadSeeker, len(segments))
	for i, s := range segments {
		readers[i] = bytes.NewReader(s)
	}
	if err := api.MergeRaw(readers, &buf, false, conf); err != nil {
		return nil, fmt.Errorf("merge pages: %w", err)
	}
	return buf.Bytes(), nil
}

// PageCount returns the number of pages of a PDF without a full load
func PageCount(data []byte) (int, error) {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	n, err := api.PageCount(bytes.NewReader(data), conf)
	if err != nil {
		return 0, classify(err)
	}
	return n, nil
}
