package logger

import (
	"bytes"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected Level
	}{
		{"debug", DebugLevel},
		{"INFO", InfoLevel},
		{"warning", WarnLevel},
		{"warn", WarnLevel},
		{"error", ErrorLevel},
		{"fatal", FatalLevel},
		{"bogus", InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := parseLevel(tt.input); got != tt.expected {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestNewLogger_WriterAndLevel(t *testing.T) {
	var buf bytes.Buffer
	log, err := NewLogger(LogConfig{Writer: &buf, Level: "warn"})
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}

	log.Info("hidden %d", 1)
	log.Warn("shown %d", 2)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info message should be filtered at warn level: %q", out)
	}
	if !strings.Contains(out, "[WARN] shown 2") {
		t.Errorf("expected warn message, got %q", out)
	}
}

func TestNamedLogger(t *testing.T) {
	var buf bytes.Buffer
	log, err := NewLogger(LogConfig{Writer: &buf, Level: "debug"})
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}

	named := log.Named("transport").Named("chunk")
	named.Debug("sent %d", 3)

	if !strings.Contains(buf.String(), "[DEBUG] transport.chunk: sent 3") {
		t.Errorf("unexpected output: %q", buf.String())
	}

	// Level changes on the parent apply to named children.
	buf.Reset()
	log.SetLevel(ErrorLevel)
	named.Info("suppressed")
	if buf.Len() != 0 {
		t.Errorf("expected no output after raising level, got %q", buf.String())
	}
}

func TestNewLogger_InvalidOutput(t *testing.T) {
	_, err := NewLogger(LogConfig{Output: "syslog"})
	if err == nil {
		t.Fatal("expected error for invalid output")
	}
}
