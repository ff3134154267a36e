package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
)

// Level represents the logging level
type Level int

const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
	FatalLevel
)

// String returns the string representation of the log level
func (l Level) String() string {
	switch l {
	case DebugLevel:
		return "DEBUG"
	case InfoLevel:
		return "INFO"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	case FatalLevel:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

// Logger is the interface for logging operations
type Logger interface {
	Debug(format string, v ...any)
	Info(format string, v ...any)
	Warn(format string, v ...any)
	Error(format string, v ...any)
	Fatal(format string, v ...any)
	SetLevel(level Level)
	// Named returns a logger that prefixes every message with the component name
	Named(component string) Logger
}

// LogConfig holds configuration for the logger
type LogConfig struct {
	// Output destination: "file", "stderr" or "discard"
	Output string
	// Log level: "debug", "info", "warn", "error", "fatal"
	Level string
	// FilePath for file output (only used when Output is "file")
	FilePath string
	// Writer overrides Output when set
	Writer io.Writer
}

// standardLogger implements the Logger interface using Go's standard log package
type standardLogger struct {
	logger    *log.Logger
	level     *Level
	component string
}

// NewLogger creates a new logger based on the provided configuration
func NewLogger(config LogConfig) (Logger, error) {
	writer := config.Writer
	if writer == nil {
		var err error
		writer, err = openOutput(config)
		if err != nil {
			return nil, err
		}
	}

	levelStr := config.Level
	if levelStr == "" {
		levelStr = os.Getenv("LOG_LEVEL")
	}
	if levelStr == "" {
		levelStr = "info"
	}
	level := parseLevel(levelStr)

	return &standardLogger{
		logger: log.New(writer, "", log.LstdFlags),
		level:  &level,
	}, nil
}

// NewNoOpLogger creates a logger that discards all output (useful for tests)
func NewNoOpLogger() Logger {
	level := FatalLevel
	return &standardLogger{
		logger: log.New(io.Discard, "", 0),
		level:  &level,
	}
}

func openOutput(config LogConfig) (io.Writer, error) {
	output := config.Output
	if output == "" {
		output = os.Getenv("LOG_OUTPUT")
	}
	if output == "" {
		output = detectEnvironment()
	}

	switch output {
	case "stderr":
		return os.Stderr, nil
	case "discard":
		return io.Discard, nil
	case "file":
		filePath := config.FilePath
		if filePath == "" {
			filePath = os.Getenv("LOG_FILE_PATH")
		}
		if filePath == "" {
			dir, err := DataDir()
			if err != nil {
				return nil, err
			}
			filePath = filepath.Join(dir, "labreport.log")
		}
		file, err := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		return file, nil
	default:
		return nil, fmt.Errorf("invalid log output: %s (expected 'file', 'stderr' or 'discard')", output)
	}
}

// DataDir returns ~/.labreport, creating it if needed
func DataDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	dir := filepath.Join(homeDir, ".labreport")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create data directory: %w", err)
	}
	return dir, nil
}

// detectEnvironment determines the appropriate output based on the environment
func detectEnvironment() string {
	if _, err := os.Stat("/.dockerenv"); err == nil {
		return "stderr"
	}
	if os.Getenv("KUBERNETES_SERVICE_HOST") != "" {
		return "stderr"
	}
	return "file"
}

// parseLevel converts a string to a Level
func parseLevel(level string) Level {
	switch strings.ToLower(level) {
	case "debug":
		return DebugLevel
	case "info":
		return InfoLevel
	case "warn", "warning":
		return WarnLevel
	case "error":
		return ErrorLevel
	case "fatal":
		return FatalLevel
	default:
		return InfoLevel
	}
}

// SetLevel sets the minimum log level. Named loggers share the level of their parent.
func (l *standardLogger) SetLevel(level Level) {
	*l.level = level
}

func (l *standardLogger) Named(component string) Logger {
	if l.component != "" {
		component = l.component + "." + component
	}
	return &standardLogger{logger: l.logger, level: l.level, component: component}
}

func (l *standardLogger) Debug(format string, v ...any) {
	if *l.level <= DebugLevel {
		l.log(DebugLevel, format, v...)
	}
}

func (l *standardLogger) Info(format string, v ...any) {
	if *l.level <= InfoLevel {
		l.log(InfoLevel, format, v...)
	}
}

func (l *standardLogger) Warn(format string, v ...any) {
	if *l.level <= WarnLevel {
		l.log(WarnLevel, format, v...)
	}
}

func (l *standardLogger) Error(format string, v ...any) {
	if *l.level <= ErrorLevel {
		l.log(ErrorLevel, format, v...)
	}
}

// Fatal logs a fatal message and exits
func (l *standardLogger) Fatal(format string, v ...any) {
	l.log(FatalLevel, format, v...)
	os.Exit(1)
}

func (l *standardLogger) log(level Level, format string, v ...any) {
	message := fmt.Sprintf(format, v...)
	if l.component != "" {
		l.logger.Printf("[%s] %s: %s", level.String(), l.component, message)
		return
	}
	l.logger.Printf("[%s] %s", level.String(), message)
}
