// Package log provides a structured logging interface for weaksup.
//
// The Logger interface is slog-compatible so callers can plug in any backend;
// the package ships a zerolog implementation (see zerolog.go) that is used by
// default, and an in-memory TestLogger for assertions in tests.
//
// Example usage:
//
//	logger := log.GetLoggerWithName("labelmodel").With(
//	    log.ModelNameKey, "LabelModel",
//	    log.EstimatorIDKey, id,
//	)
//	logger.Info("training started",
//	    log.OperationKey, log.OperationTrain,
//	    log.SamplesKey, 1000,
//	    log.LabelingFunctionsKey, 10,
//	)
package log

import (
	"context"
)

// Logger defines a structured logging interface compatible with Go's log/slog.
//
// Fields are alternating key/value pairs. For Error, an error value passed as
// the first field is attached as the error of the record, together with its
// stack trace when the error carries one.
type Logger interface {
	// Debug logs detailed diagnostic information, such as per-epoch losses.
	Debug(msg string, fields ...any)

	// Info logs general operational information.
	Info(msg string, fields ...any)

	// Warn logs potentially problematic situations that do not stop execution.
	Warn(msg string, fields ...any)

	// Error logs error conditions that should be investigated.
	Error(msg string, fields ...any)

	// With returns a new Logger with the given fields pre-populated.
	With(fields ...any) Logger

	// Enabled reports whether the logger emits log records at the given level.
	Enabled(ctx context.Context, level Level) bool
}

// Level represents a logging level, compatible with slog.Level.
type Level int

// Standard logging levels, values are compatible with slog.Level.
const (
	LevelDebug Level = -4
	LevelInfo  Level = 0
	LevelWarn  Level = 4
	LevelError Level = 8
)

// String returns the string representation of the log level.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// LoggerProvider creates and configures loggers.
type LoggerProvider interface {
	// GetLogger returns the default logger instance.
	GetLogger() Logger

	// GetLoggerWithName returns a logger tagged with a component name.
	GetLoggerWithName(name string) Logger

	// SetLevel sets the minimum log level for all loggers created by this provider.
	SetLevel(level Level)
}
