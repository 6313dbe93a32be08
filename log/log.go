package log

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
)

// Format represents the log output format.
type Format string

const (
	// FormatJSON outputs logs as JSON objects.
	FormatJSON Format = "json"
	// FormatLogfmt outputs logs in logfmt format.
	FormatLogfmt Format = "logfmt"
)

var (
	// ErrInvalidArgument indicates an invalid argument was provided.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrUnknownLogLevel indicates an unrecognized log level string.
	ErrUnknownLogLevel = errors.New("unknown log level")
	// ErrUnknownLogFormat indicates an unrecognized log format string.
	ErrUnknownLogFormat = errors.New("unknown log format")
)

// NewHandlerFromStrings creates a [slog.Handler] from level and format
// strings.
func NewHandlerFromStrings(w io.Writer, level, format string) (slog.Handler, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}

	logFmt, err := ParseFormat(format)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}

	return NewHandler(w, lvl, logFmt), nil
}

// NewHandler creates a [slog.Handler] with the specified level and format.
func NewHandler(w io.Writer, lvl slog.Level, format Format) slog.Handler {
	switch format {
	case FormatJSON:
		return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl})

	case FormatLogfmt:
		return slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})
	}

	return nil
}

// ParseLevel parses a log level string into the corresponding [slog.Level].
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "error":
		return slog.LevelError, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	}

	return 0, ErrUnknownLogLevel
}

// ParseFormat parses a log format string into the corresponding [Format].
func ParseFormat(format string) (Format, error) {
	logFmt := Format(strings.ToLower(format))
	if slices.Contains(AllFormats(), logFmt) {
		return logFmt, nil
	}

	return "", ErrUnknownLogFormat
}

// AllLevelStrings returns the accepted level strings.
func AllLevelStrings() []string {
	return []string{"error", "warn", "info", "debug"}
}

// AllFormats returns the supported formats.
func AllFormats() []Format {
	return []Format{FormatJSON, FormatLogfmt}
}

// AllFormatStrings returns the supported formats as strings.
func AllFormatStrings() []string {
	formats := AllFormats()
	out := make([]string, len(formats))

	for i, f := range formats {
		out[i] = string(f)
	}

	return out
}
