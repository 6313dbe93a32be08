package log_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.jacobcolvin.com/ucl/log"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		input       string
		expected    slog.Level
		expectError bool
	}{
		"error level": {
			input:    "error",
			expected: slog.LevelError,
		},
		"warn level": {
			input:    "warn",
			expected: slog.LevelWarn,
		},
		"warning level": {
			input:    "warning",
			expected: slog.LevelWarn,
		},
		"info level": {
			input:    "info",
			expected: slog.LevelInfo,
		},
		"debug level": {
			input:    "debug",
			expected: slog.LevelDebug,
		},
		"case insensitive": {
			input:    "INFO",
			expected: slog.LevelInfo,
		},
		"unknown level": {
			input:       "verbose",
			expectError: true,
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			lvl, err := log.ParseLevel(tc.input)
			if tc.expectError {
				require.ErrorIs(t, err, log.ErrUnknownLogLevel)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tc.expected, lvl)
		})
	}
}

func TestParseFormat(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		input       string
		expected    log.Format
		expectError bool
	}{
		"json format": {
			input:    "json",
			expected: log.FormatJSON,
		},
		"logfmt format": {
			input:    "logfmt",
			expected: log.FormatLogfmt,
		},
		"case insensitive": {
			input:    "JSON",
			expected: log.FormatJSON,
		},
		"unknown format": {
			input:       "xml",
			expectError: true,
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			got, err := log.ParseFormat(tc.input)
			if tc.expectError {
				require.ErrorIs(t, err, log.ErrUnknownLogFormat)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tc.expected, got)
		})
	}
}

func TestNewHandler(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	handler := log.NewHandler(&buf, slog.LevelInfo, log.FormatJSON)
	require.NotNil(t, handler)

	logger := slog.New(handler)
	logger.Info("test message", slog.String("key", "value"))

	var entry map[string]any

	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "test message", entry["msg"])
	assert.Equal(t, "value", entry["key"])
}

func TestNewHandlerFromStrings(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	_, err := log.NewHandlerFromStrings(&buf, "invalid", "json")
	require.ErrorIs(t, err, log.ErrInvalidArgument)

	_, err = log.NewHandlerFromStrings(&buf, "info", "invalid")
	require.ErrorIs(t, err, log.ErrInvalidArgument)

	handler, err := log.NewHandlerFromStrings(&buf, "debug", "logfmt")
	require.NoError(t, err)

	slog.New(handler).Debug("hello")
	assert.Contains(t, buf.String(), "hello")
}

func TestLevelFiltering(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	logger := slog.New(log.NewHandler(&buf, slog.LevelError, log.FormatLogfmt))
	logger.Info("filtered out")
	assert.Empty(t, buf.String())

	logger.Error("kept")
	assert.Contains(t, buf.String(), "kept")
}
