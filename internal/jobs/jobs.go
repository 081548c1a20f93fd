package jobs

import (
	"context"
	"encoding/json"
	"strings"
	"time"
)

// Queue names consumed by the workflow manager.
const (
	QueueTMDBSync  = "tmdb_sync"
	QueueSubtitles = "subtitles"
)

// Queues lists every queue the daemon runs workers for.
func Queues() []string {
	return []string{QueueTMDBSync, QueueSubtitles}
}

// Status identifies the lifecycle state of a job.
type Status string

const (
	StatusQueued   Status = "queued"
	StatusStarted  Status = "started"
	StatusFinished Status = "finished"
	StatusFailed   Status = "failed"
)

// ParseStatus validates a raw status string.
func ParseStatus(value string) (Status, bool) {
	switch Status(strings.ToLower(strings.TrimSpace(value))) {
	case StatusQueued:
		return StatusQueued, true
	case StatusStarted:
		return StatusStarted, true
	case StatusFinished:
		return StatusFinished, true
	case StatusFailed:
		return StatusFailed, true
	default:
		return "", false
	}
}

// Job is a unit of queued work. Payload carries handler-specific JSON.
type Job struct {
	ID             string
	Queue          string
	Type           string
	Payload        json.RawMessage
	Priority       int
	TimeoutSeconds int
	Status         Status
	Error          string
	Meta           map[string]string
	EnqueuedAt     time.Time
	StartedAt      *time.Time
	EndedAt        *time.Time
}

// QueueStats summarizes one queue for status output.
type QueueStats struct {
	Queued  int64
	Started int64
}

// Broker moves jobs between producers and queue workers.
//
// Dequeue blocks up to wait for a job, flips it to started, and returns nil
// when the queue stays empty. Concurrent consumers never receive the same
// job. ReclaimStale re-queues started jobs whose worker disappeared.
type Broker interface {
	Enqueue(ctx context.Context, job *Job) error
	Dequeue(ctx context.Context, queue string, wait time.Duration) (*Job, error)
	Finish(ctx context.Context, id string) error
	Fail(ctx context.Context, id string, message string) error
	Fetch(ctx context.Context, id string) (*Job, error)
	SetMeta(ctx context.Context, id string, meta map[string]string) error
	ReclaimStale(ctx context.Context, queue string, olderThan time.Duration) (int, error)
	Stats(ctx context.Context) (map[string]QueueStats, error)
	Health(ctx context.Context) error
	Close() error
}

// MarshalPayload encodes a handler payload for enqueueing.
func MarshalPayload(v any) (json.RawMessage, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(data), nil
}
