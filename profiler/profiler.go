package profiler

import (
	"fmt"
	"os"
	"runtime/pprof"

	"github.com/spf13/pflag"
)

// Profiler controls the lifecycle of runtime profiling sessions.
//
// Create instances with [New], then call [Profiler.Start] to begin
// profiling and [Profiler.Stop] to write all enabled profiles.
type Profiler struct {
	cpuFile *os.File

	// Output paths (empty = disabled).
	CPUProfile  string
	HeapProfile string
}

// New creates a [Profiler] with all profiles disabled.
// Use [Profiler.RegisterFlags] to add CLI flags, or set paths directly.
func New() *Profiler {
	return &Profiler{}
}

// RegisterFlags adds profiling flags to the given [*pflag.FlagSet].
func (p *Profiler) RegisterFlags(flags *pflag.FlagSet) {
	flags.StringVar(&p.CPUProfile, "cpu-profile", "", "write CPU profile to file")
	flags.StringVar(&p.HeapProfile, "heap-profile", "", "write heap profile to file")
}

// Start begins CPU profiling if enabled. Call [Profiler.Stop] when
// profiling is complete to write snapshot profiles.
func (p *Profiler) Start() error {
	if p.CPUProfile == "" {
		return nil
	}

	f, err := os.Create(p.CPUProfile) //nolint:gosec // Profile path from CLI flag is expected.
	if err != nil {
		return fmt.Errorf("creating CPU profile: %w", err)
	}

	if err := pprof.StartCPUProfile(f); err != nil {
		_ = f.Close()

		return fmt.Errorf("starting CPU profile: %w", err)
	}

	p.cpuFile = f

	return nil
}

// Stop ends CPU profiling and writes the heap profile if enabled.
func (p *Profiler) Stop() error {
	if p.cpuFile != nil {
		pprof.StopCPUProfile()

		if err := p.cpuFile.Close(); err != nil {
			return fmt.Errorf("closing CPU profile: %w", err)
		}

		p.cpuFile = nil
	}

	if p.HeapProfile == "" {
		return nil
	}

	f, err := os.Create(p.HeapProfile) //nolint:gosec // Profile path from CLI flag is expected.
	if err != nil {
		return fmt.Errorf("creating heap profile: %w", err)
	}
	defer f.Close()

	if err := pprof.WriteHeapProfile(f); err != nil {
		return fmt.Errorf("writing heap profile: %w", err)
	}

	return nil
}
