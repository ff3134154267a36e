package pdf

import (
	"fmt"
	"strings"

	"github.com/uservlrz/client/internal/logger"
)

// Strategy names
const (
	StrategyDirect           = "direct"
	StrategyIgnoreEncryption = "ignore-encryption"
	StrategyRecovery         = "recovery"
	passwordPrefix           = "password:"
)

// Strategy is one way of trying to open a document
type Strategy struct {
	Name    string
	Options LoadOptions
}

// DefaultStrategies returns the load strategies from strictest to most
// permissive, with one password attempt per candidate.
func DefaultStrategies(passwords []string) []Strategy {
	strategies := []Strategy{
		{Name: StrategyDirect},
		{Name: StrategyIgnoreEncryption, Options: LoadOptions{IgnoreEncryption: true}},
	}
	for _, pw := range passwords {
		strategies = append(strategies, Strategy{
			Name:    passwordPrefix + pw,
			Options: LoadOptions{Password: pw},
		})
	}
	return append(strategies, Strategy{
		Name:    StrategyRecovery,
		Options: LoadOptions{IgnoreEncryption: true, Relaxed: true},
	})
}

// LoadAttemptResult is the outcome of opening one file
type LoadAttemptResult struct {
	Success  bool
	Strategy string
	Document Document
}

// ProtectedError is returned when every strategy failed on a protected document
type ProtectedError struct {
	// Cause is the error of the first strategy
	Cause   error
	Reasons []string
}

func (e *ProtectedError) Error() string {
	return fmt.Sprintf("PDF is protected or damaged and could not be opened (%v); "+
		"remove the protection and try again, choose fewer parts, or send the file with upload instead",
		e.Cause)
}

func (e *ProtectedError) Unwrap() error {
	return e.Cause
}

// Loader opens PDF payloads by trying its strategies in order
type Loader struct {
	lib        Library
	strategies []Strategy
	log        logger.Logger
}

// NewLoader creates a loader using the default strategies for the given passwords
func NewLoader(lib Library, passwords []string, log logger.Logger) *Loader {
	return NewLoaderWithStrategies(lib, DefaultStrategies(passwords), log)
}

// NewLoaderWithStrategies creates a loader with an explicit strategy list
func NewLoaderWithStrategies(lib Library, strategies []Strategy, log logger.Logger) *Loader {
	return &Loader{lib: lib, strategies: strategies, log: log.Named("loader")}
}

// Strategies returns the ordered strategy list
func (l *Loader) Strategies() []Strategy {
	return l.strategies
}

// Open returns the result of the first strategy that succeeds. Only
// encryption failures move on to the next strategy.
func (l *Loader) Open(data []byte) (LoadAttemptResult, error) {
	var (
		first   error
		reasons []string
	)

	for i, s := range l.strategies {
		doc, err := l.lib.Load(data, s.Options)
		if err == nil {
			if i > 0 {
				l.log.Info("Opened document with strategy %s after %d failed attempts", displayName(s.Name), i)
			}
			return LoadAttemptResult{Success: true, Strategy: s.Name, Document: doc}, nil
		}

		l.log.Debug("Strategy %s failed: %v", displayName(s.Name), err)
		reasons = append(reasons, fmt.Sprintf("%s: %v", displayName(s.Name), err))
		if i == 0 {
			first = err
		}

		if !IsEncryptionError(err) {
			if i == 0 {
				return LoadAttemptResult{Strategy: s.Name}, fmt.Errorf("failed to open PDF: %w", err)
			}
			break
		}
	}

	if first == nil {
		first = fmt.Errorf("no load strategies configured")
	}
	l.log.Warn("All load strategies failed: %s", strings.Join(reasons, "; "))
	return LoadAttemptResult{}, &ProtectedError{Cause: first, Reasons: reasons}
}

// displayName keeps passwords out of logs
func displayName(strategy string) string {
	if pw, ok := strings.CutPrefix(strategy, passwordPrefix); ok {
		if pw == "" {
			return passwordPrefix + "<empty>"
		}
		return passwordPrefix + strings.Repeat("*", len(pw))
	}
	return strategy
}
