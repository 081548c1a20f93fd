// Package logging assembles structured slog loggers and formatting helpers
// used across the media index services.
//
// It owns the configurable console/JSON handlers, centralizes level and
// output plumbing, and exposes attribute helpers so worker and API code tag
// log lines with consistent keys (component, queue, job_id). The package
// also provides a no-op logger for tests and wiring code that cannot fail.
//
// Prefer these constructors over hand-rolled slog setup to ensure new
// components emit data with the same shape as the rest of the system.
package logging
