// Command mediaindex is the CLI for the media index daemon. It talks to the
// daemon over its HTTP API: queueing TMDB sync runs, subtitle downloads, and
// linguistic processing, and inspecting catalog and queue state.
package main
