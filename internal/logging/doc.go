// Package logging builds the slog loggers used across shuttle.
//
// Two output formats are supported: a compact console format for
// interactive use and JSON for log shipping. When no format is configured
// the choice follows whether stdout is a terminal. NewFromConfig tees
// output to stdout and the shared log file so multi-worker deployments
// keep a per-host record next to the queue.
package logging
