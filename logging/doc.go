// Package logging provides a minimal logging interface and adapters for canvasmesh.
//
// The Logger interface defines the standard logging methods (Debug, Info, Warn, Error)
// that the graph kernel and the run engine use for observability. This package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping Go's structured logging
//   - RunLogger with run / object scoped attributes and completion helpers
//   - NoOpLogger for silent operation (testing, minimal setups)
//
// Usage:
//
//	logger := logging.NewSlogLogger(logging.LogLevelInfo, "json", false)
//	run := engine.New(g, func(o *engine.Options) { o.Logger = logger })
//
// The design keeps the interface minimal to avoid vendor lock-in
// while supporting structured logging where available.
package logging
