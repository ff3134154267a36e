// Package pdf opens possibly damaged or protected PDF documents and splits
// their pages into parts.
package pdf

import (
	"bytes"
	"errors"
	"strings"
)

// ErrEncrypted marks load failures caused by encryption or passwords
var ErrEncrypted = errors.New("document is encrypted")

// LoadOptions are the knobs a load strategy can turn
type LoadOptions struct {
	// IgnoreEncryption skips metadata updates and suppresses invalid-object
	// errors where the library allows it.
	IgnoreEncryption bool
	Password         string
	// Relaxed tolerates structural damage, possibly dropping content.
	Relaxed bool
}

// SaveOptions control serialization of a document
type SaveOptions struct {
	UseObjectStreams bool
}

// Document is an opened or newly created PDF
type Document interface {
	PageCount() int
}

// Library is the PDF backend. Page indices are 0-based.
type Library interface {
	Load(data []byte, opts LoadOptions) (Document, error)
	NewDocument() Document
	CopyPages(src, dst Document, indices []int) error
	AddBlankPage(dst Document) error
	Save(doc Document, opts SaveOptions) ([]byte, error)
}

var encryptionMarkers = []string{"password", "encrypt", "decrypt", "permission"}

// IsEncryptionError reports whether err was caused by document protection
func IsEncryptionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrEncrypted) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, m := range encryptionMarkers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}

// sniffLen is how far into a payload the %PDF marker is searched for
const sniffLen = 1024

// IsPDF reports whether data looks like a PDF document
func IsPDF(data []byte) bool {
	if len(data) > sniffLen {
		data = data[:sniffLen]
	}
	return bytes.Contains(data, []byte("%PDF-"))
}
