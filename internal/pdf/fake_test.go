package pdf

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// fakeDoc records page provenance: -1 marks a placeholder page
type fakeDoc struct {
	pages []int
}

func (d *fakeDoc) PageCount() int {
	return len(d.pages)
}

// fakeLibrary understands payloads of the form "pages=N;password=P;broken"
type fakeLibrary struct {
	// corrupt pages cannot be copied, individually or in a batch
	corrupt   map[int]bool
	failBatch bool
	loads     []LoadOptions
	saves     []SaveOptions
}

func (l *fakeLibrary) Load(data []byte, opts LoadOptions) (Document, error) {
	l.loads = append(l.loads, opts)

	var pages int
	var password string
	broken := false
	for _, field := range strings.Split(string(data), ";") {
		switch {
		case strings.HasPrefix(field, "pages="):
			fmt.Sscanf(field, "pages=%d", &pages)
		case strings.HasPrefix(field, "password="):
			password = strings.TrimPrefix(field, "password=")
		case field == "broken":
			broken = true
		}
	}

	if broken {
		return nil, errors.New("malformed xref table")
	}
	if password != "" && opts.Password != password {
		return nil, fmt.Errorf("%w: wrong password", ErrEncrypted)
	}

	doc := &fakeDoc{}
	for i := range pages {
		doc.pages = append(doc.pages, i)
	}
	return doc, nil
}

func (l *fakeLibrary) NewDocument() Document {
	return &fakeDoc{}
}

func (l *fakeLibrary) CopyPages(src, dst Document, indices []int) error {
	s, d := src.(*fakeDoc), dst.(*fakeDoc)
	if l.failBatch && len(indices) > 1 {
		return errors.New("batch copy unsupported")
	}
	for _, i := range indices {
		if l.corrupt[i] {
			return fmt.Errorf("page %d: broken content stream", i+1)
		}
	}
	for _, i := range indices {
		d.pages = append(d.pages, s.pages[i])
	}
	return nil
}

func (l *fakeLibrary) AddBlankPage(dst Document) error {
	d := dst.(*fakeDoc)
	d.pages = append(d.pages, -1)
	return nil
}

func (l *fakeLibrary) Save(doc Document, opts SaveOptions) ([]byte, error) {
	l.saves = append(l.saves, opts)
	d := doc.(*fakeDoc)
	return []byte(fmt.Sprint(slices.Clone(d.pages))), nil
}
