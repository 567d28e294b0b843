// Package logging provides a minimal logging interface and adapters for toolgate.
//
// The Logger interface defines the standard logging methods (Debug, Info, Warn, Error)
// that the engine, tools and stores use for observability. This package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping Go's structured logging
//   - NoOpLogger for silent operation (testing, minimal setups)
//
// Usage:
//
//	logger := logging.New(logging.Config{Level: logging.LogLevelInfo, Format: "json"})
//	eng := engine.New(store, registry, backend, func(o *engine.Options) { o.Logger = logger })
//
// Log messages are dotted event names ("engine.turn.start") followed by
// key/value attributes.
package logging
