// Package jobs provides the queue broker that moves background work between
// the API/CLI producers and the daemon's queue workers.
//
// Two implementations exist behind the Broker interface: a Redis broker for
// multi-replica deployments (list push/pop with per-job hash records) and an
// embedded SQLite broker for single-node setups and tests. Both guarantee a
// job is delivered to exactly one worker and keep job records queryable for
// status endpoints after completion.
package jobs
