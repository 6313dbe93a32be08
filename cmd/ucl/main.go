// Package main provides the ucl CLI, which parses UCL configuration,
// optionally validates it against a schema, and re-emits it in one of the
// supported output formats.
package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"go.jacobcolvin.com/ucl"
	"go.jacobcolvin.com/ucl/log"
	"go.jacobcolvin.com/ucl/profiler"
	"go.jacobcolvin.com/ucl/schema"
	"go.jacobcolvin.com/ucl/version"
)

// sysexits-style exit codes.
const (
	exUsage     = 64
	exDataErr   = 65
	exNoInput   = 66
	exOSErr     = 71
	exCantCreat = 73
	exIOErr     = 74
)

// exitError pairs an error with the process exit code it maps to.
type exitError struct {
	err  error
	code int
}

func (e *exitError) Error() string {
	return e.err.Error()
}

func failf(code int, format string, args ...any) error {
	return &exitError{code: code, err: fmt.Errorf(format, args...)}
}

type config struct {
	in     string
	out    string
	schema string
	format string
}

func main() {
	os.Exit(run0())
}

func run0() int {
	cfg := &config{}
	logCfg := log.NewConfig()
	prof := profiler.New()

	rootCmd := &cobra.Command{
		Use:   "ucl [flags]",
		Short: "Parse, validate, and convert UCL configuration",
		Long: `ucl reads a UCL (or JSON) configuration document, optionally validates it
against a JSON-Schema-like schema, and writes it back out as UCL, JSON,
compact JSON, or YAML.`,
		Version:       versionString(),
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(_ *cobra.Command, _ []string) error {
			handler, err := logCfg.NewHandler(os.Stderr)
			if err != nil {
				return failf(exUsage, "%v", err)
			}

			slog.SetDefault(slog.New(handler))

			if err := prof.Start(); err != nil {
				return failf(exOSErr, "%v", err)
			}
			defer stopProfiler(prof)

			return run(cfg)
		},
	}

	flags := rootCmd.Flags()
	flags.StringVarP(&cfg.in, "in", "i", "-",
		"input file path (- for standard input)")
	flags.StringVarP(&cfg.out, "out", "o", "-",
		"output file path (- for standard output)")
	flags.StringVarP(&cfg.schema, "schema", "s", "",
		"schema file for validation (.yaml/.yml parsed as YAML, anything else as UCL)")
	flags.StringVarP(&cfg.format, "format", "f", "ucl",
		"output format, one of: ucl, json, compact_json, yaml")

	logCfg.RegisterFlags(flags)
	prof.RegisterFlags(flags)

	if err := logCfg.RegisterCompletions(rootCmd); err != nil {
		fmt.Fprintf(os.Stderr, "register completions: %v\n", err)
	}

	err := rootCmd.Execute()
	if err == nil {
		return 0
	}

	fmt.Fprintf(os.Stderr, "%v\n", err)

	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}

	return exUsage
}

func stopProfiler(prof *profiler.Profiler) {
	if err := prof.Stop(); err != nil {
		slog.Warn("stopping profiler", slog.Any("error", err))
	}
}

func run(cfg *config) error {
	style, err := emitStyle(cfg.format)
	if err != nil {
		return err
	}

	root, err := parseInput(cfg.in)
	if err != nil {
		return err
	}
	defer root.Unref()

	if cfg.schema != "" {
		if err := validate(cfg.schema, root); err != nil {
			return err
		}
	}

	return emit(cfg.out, root, style)
}

func emitStyle(format string) (ucl.EmitStyle, error) {
	switch format {
	case "ucl":
		return ucl.EmitConfig, nil
	case "json":
		return ucl.EmitJSON, nil
	case "compact_json":
		return ucl.EmitJSONCompact, nil
	case "yaml":
		return ucl.EmitYAML, nil
	}

	return 0, failf(exUsage, "unknown output format: %s", format)
}

func parseInput(path string) (*ucl.Value, error) {
	p := ucl.NewParser()

	if path == "" || path == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, failf(exIOErr, "failed to read standard input: %v", err)
		}

		if err := p.AddChunk(data); err != nil {
			return nil, failf(exDataErr, "failed to parse input: %v", err)
		}
	} else {
		if _, err := os.Stat(path); err != nil {
			return nil, failf(exNoInput, "cannot open input file: %v", err)
		}

		if err := p.AddFile(path); err != nil {
			return nil, failf(exDataErr, "failed to parse input file: %v", err)
		}
	}

	root := p.Object()
	if root == nil {
		return nil, failf(exDataErr, "failed to get root object: empty input")
	}

	slog.Debug("parsed input", slog.String("path", path))

	return root, nil
}

func validate(schemaPath string, root *ucl.Value) error {
	schemaV, err := loadSchema(schemaPath)
	if err != nil {
		return err
	}
	defer schemaV.Unref()

	if err := schema.Validate(schemaV, root); err != nil {
		return failf(exDataErr, "validation failed: %v", err)
	}

	slog.Debug("validation passed", slog.String("schema", schemaPath))

	return nil
}

func loadSchema(path string) (*ucl.Value, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err := os.ReadFile(path) //nolint:gosec // Schema path from CLI flag is expected.
		if err != nil {
			return nil, failf(exNoInput, "cannot open schema file: %v", err)
		}

		v, err := schema.FromYAML(data)
		if err != nil {
			return nil, failf(exDataErr, "failed to parse schema file: %v", err)
		}

		return v, nil
	}

	p := ucl.NewParser()
	if _, err := os.Stat(path); err != nil {
		return nil, failf(exNoInput, "cannot open schema file: %v", err)
	}

	if err := p.AddFile(path); err != nil {
		return nil, failf(exDataErr, "failed to parse schema file: %v", err)
	}

	v := p.Object()
	if v == nil {
		return nil, failf(exDataErr, "failed to parse schema file: empty document")
	}

	return v, nil
}

func emit(outPath string, root *ucl.Value, style ucl.EmitStyle) error {
	out := ucl.Emit(root, style)

	// JSON styles have no trailing newline; add one when writing to a file
	// or when standard output is a terminal.
	if len(out) > 0 && out[len(out)-1] != '\n' {
		appendNL := outPath != "" && outPath != "-"
		if !appendNL {
			appendNL = term.IsTerminal(int(os.Stdout.Fd()))
		}

		if appendNL {
			out = append(out, '\n')
		}
	}

	if outPath == "" || outPath == "-" {
		if _, err := os.Stdout.Write(out); err != nil {
			return failf(exIOErr, "failed to write output: %v", err)
		}

		return nil
	}

	f, err := os.Create(outPath) //nolint:gosec // Output path from CLI flag is expected.
	if err != nil {
		return failf(exCantCreat, "cannot create output file: %v", err)
	}

	if _, err := f.Write(out); err != nil {
		_ = f.Close()

		return failf(exIOErr, "failed to write output: %v", err)
	}

	if err := f.Close(); err != nil {
		return failf(exIOErr, "failed to write output: %v", err)
	}

	return nil
}

func versionString() string {
	v := version.Version
	if v == "" {
		v = "devel"
	}

	return fmt.Sprintf("%s (revision %s, %s)", v, version.Revision, version.GoVersion)
}
