// Package tmdbsync runs the TMDB catalog sync pipeline.
//
// A sync run covers one (year, language) pair and is tracked by a sync record
// in the catalog alongside the queued job that executes it. Job identifiers
// are deterministic per pair so re-enqueueing a year replaces rather than
// duplicates. Year ranges are queued newest first with priorities that favor
// recent years, and failed runs are retried with a per-attempt backoff.
package tmdbsync
