// Package subtitles finds, ranks, downloads, and stores subtitles for
// catalog movies via the OpenSubtitles REST API.
//
// Candidates are ranked by a log-scaled download count with a bonus for
// trusted uploaders; AI and machine translations only win when nothing
// human-made exists. Stored payloads are content-addressed with SHA-256 so
// the same subtitle is never persisted twice for a movie and language, and
// each record carries a normalized quality score for API consumers.
package subtitles
