// Package server exposes the daemon's HTTP API: catalog lookups, sync and
// download job submission, subtitle uploads, and linguistic profiles. Routes
// under /api/v1 are guarded by a bearer token when one is configured.
package server
