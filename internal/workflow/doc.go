// Package workflow runs the queue workers. Each queue gets a fixed set of
// worker goroutines that dequeue jobs from the broker and dispatch them to
// handlers registered by job type, plus a reclaimer that re-queues jobs
// whose worker disappeared mid-run.
package workflow
