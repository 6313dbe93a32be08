// Package profiler manages runtime profiling for CLI applications.
//
// It wraps [runtime/pprof] with a flag-driven lifecycle: register flags on
// a command, call [Profiler.Start] at startup, and [Profiler.Stop] before
// exit to write the enabled profiles.
package profiler
