// Package daemon wires the catalog store, job broker, pipeline services,
// queue workers, and HTTP API into a single long-running process guarded by
// a lock file.
package daemon
