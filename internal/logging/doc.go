// Package logging assembles the structured slog loggers used across the
// kasikai services.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing, and exposes attribute helpers so ingest and server code emit
// log lines with consistent field names. A no-op logger is provided for
// tests and wiring code that cannot fail.
package logging
