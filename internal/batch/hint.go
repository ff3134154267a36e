package batch

import (
	"context"
	"errors"
	"net"
	"strings"

	"github.com/uservlrz/client/internal/pdf"
	"github.com/uservlrz/client/internal/transport"
	"github.com/uservlrz/client/models"
)

// Problem classifies what went wrong with a file
type Problem string

const (
	ProblemDocument Problem = "document"
	ProblemServer   Problem = "server"
	ProblemOther    Problem = "other"
)

// Advice is what to tell the user about a failed file
type Advice struct {
	Problem Problem
	Title   string
	Tips    []string
}

var (
	documentAdvice = Advice{
		Problem: ProblemDocument,
		Title:   "Problem with the PDF document",
		Tips: []string{
			"check that the PDF is not protected or encrypted",
			"save the PDF again with \"Save as\" in a PDF reader",
			"if possible, print the document to a new PDF",
			"convert the PDF to another format and back to PDF",
		},
	}
	serverAdvice = Advice{
		Problem: ProblemServer,
		Title:   "Error communicating with the server",
		Tips: []string{
			"check your internet connection",
			"the server may be temporarily unavailable, try again later",
			"if the problem persists, contact technical support",
		},
	}
	otherAdvice = Advice{
		Problem: ProblemOther,
		Title:   "Processing error",
	}
)

// Hint returns remediation advice for a per-file error
func Hint(err error) Advice {
	if err == nil {
		return otherAdvice
	}

	var (
		protected    *pdf.ProtectedError
		insufficient *pdf.InsufficientPagesError
		terr         *transport.Error
		netErr       net.Error
	)
	switch {
	case errors.As(err, &protected),
		errors.As(err, &insufficient),
		errors.Is(err, pdf.ErrNoParts),
		errors.Is(err, models.ErrUnsupportedInput),
		errors.Is(err, transport.ErrNoResults),
		errors.Is(err, transport.ErrExtractionFailed):
		return documentAdvice
	case errors.Is(err, context.Canceled):
		return otherAdvice
	case errors.As(err, &netErr):
		return serverAdvice
	case errors.As(err, &terr) && (terr.StatusCode >= 500 || terr.StatusCode == 429):
		return serverAdvice
	}

	return HintText(err.Error())
}

// HintText classifies a bare error message by its wording
func HintText(msg string) Advice {
	msg = strings.ToLower(msg)
	switch {
	case strings.Contains(msg, "pdf") || strings.Contains(msg, "document") || strings.Contains(msg, "file"):
		return documentAdvice
	case strings.Contains(msg, "server") || strings.Contains(msg, "500") || strings.Contains(msg, "connection"):
		return serverAdvice
	}
	return otherAdvice
}
