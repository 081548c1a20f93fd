package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	redisQueuePrefix   = "mediaindex:queue:"
	redisJobPrefix     = "mediaindex:job:"
	redisStartedPrefix = "mediaindex:started:"

	// Job records linger for a week after completion so status queries
	// keep working; Redis evicts them afterwards.
	redisJobTTL = 7 * 24 * time.Hour
)

// RedisBroker distributes jobs across worker replicas through Redis lists.
// BRPOP hands each job to exactly one consumer, so scaled-out daemons share
// a queue safely.
type RedisBroker struct {
	client redis.UniversalClient
}

// OpenRedis connects to the broker at the given URL and verifies the
// connection with a ping.
func OpenRedis(ctx context.Context, url string) (*RedisBroker, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &RedisBroker{client: client}, nil
}

// Close releases the Redis connection pool.
func (b *RedisBroker) Close() error {
	if b == nil || b.client == nil {
		return nil
	}
	return b.client.Close()
}

// Enqueue writes the job record and pushes its ID onto the queue list. A job
// whose record is still queued only has its fields refreshed; pushing the ID
// a second time would hand the same record to two BRPOP consumers.
func (b *RedisBroker) Enqueue(ctx context.Context, job *Job) error {
	if job == nil {
		return errors.New("job is nil")
	}
	if job.Queue == "" {
		return errors.New("job queue is empty")
	}
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	job.Status = StatusQueued
	job.EnqueuedAt = time.Now().UTC()

	fields := map[string]any{
		"queue":           job.Queue,
		"type":            job.Type,
		"payload":         string(job.Payload),
		"priority":        job.Priority,
		"timeout_seconds": job.TimeoutSeconds,
		"status":          string(job.Status),
		"error":           "",
		"enqueued_at":     job.EnqueuedAt.Format(time.RFC3339Nano),
	}
	if len(job.Meta) > 0 {
		metaJSON, err := json.Marshal(job.Meta)
		if err != nil {
			return fmt.Errorf("marshal meta: %w", err)
		}
		fields["meta"] = string(metaJSON)
	}

	jobKey := redisJobPrefix + job.ID
	current, err := b.client.HGet(ctx, jobKey, "status").Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("read job status: %w", err)
	}
	alreadyQueued := current == string(StatusQueued)

	pipe := b.client.TxPipeline()
	pipe.HSet(ctx, jobKey, fields)
	pipe.HDel(ctx, jobKey, "started_at", "ended_at")
	pipe.Expire(ctx, jobKey, redisJobTTL)
	if !alreadyQueued {
		pipe.LPush(ctx, redisQueuePrefix+job.Queue, job.ID)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("enqueue job: %w", err)
	}
	return nil
}

// Dequeue pops the next job ID with BRPOP and flips the record to started.
func (b *RedisBroker) Dequeue(ctx context.Context, queue string, wait time.Duration) (*Job, error) {
	result, err := b.client.BRPop(ctx, wait, redisQueuePrefix+queue).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("brpop %s: %w", queue, err)
	}
	if len(result) != 2 {
		return nil, fmt.Errorf("unexpected brpop reply: %v", result)
	}
	id := result[1]

	now := time.Now().UTC()
	pipe := b.client.TxPipeline()
	pipe.HSet(ctx, redisJobPrefix+id, map[string]any{
		"status":     string(StatusStarted),
		"started_at": now.Format(time.RFC3339Nano),
	})
	pipe.SAdd(ctx, redisStartedPrefix+queue, id)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("mark job started: %w", err)
	}

	job, err := b.Fetch(ctx, id)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, fmt.Errorf("job %s vanished after dequeue", id)
	}
	return job, nil
}

// Finish marks a job successfully completed.
func (b *RedisBroker) Finish(ctx context.Context, id string) error {
	return b.end(ctx, id, StatusFinished, "")
}

// Fail marks a job failed with a message.
func (b *RedisBroker) Fail(ctx context.Context, id string, message string) error {
	return b.end(ctx, id, StatusFailed, message)
}

func (b *RedisBroker) end(ctx context.Context, id string, status Status, message string) error {
	queue, err := b.client.HGet(ctx, redisJobPrefix+id, "queue").Result()
	if errors.Is(err, redis.Nil) {
		return fmt.Errorf("job %s not found", id)
	}
	if err != nil {
		return fmt.Errorf("read job queue: %w", err)
	}

	pipe := b.client.TxPipeline()
	pipe.HSet(ctx, redisJobPrefix+id, map[string]any{
		"status":   string(status),
		"error":    message,
		"ended_at": time.Now().UTC().Format(time.RFC3339Nano),
	})
	pipe.SRem(ctx, redisStartedPrefix+queue, id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("finish job: %w", err)
	}
	return nil
}

// Fetch returns a job by ID, or nil when unknown.
func (b *RedisBroker) Fetch(ctx context.Context, id string) (*Job, error) {
	fields, err := b.client.HGetAll(ctx, redisJobPrefix+id).Result()
	if err != nil {
		return nil, fmt.Errorf("fetch job: %w", err)
	}
	if len(fields) == 0 {
		return nil, nil
	}

	job := &Job{
		ID:     id,
		Queue:  fields["queue"],
		Type:   fields["type"],
		Status: Status(fields["status"]),
		Error:  fields["error"],
	}
	if payload := fields["payload"]; payload != "" {
		job.Payload = json.RawMessage(payload)
	}
	if priority, err := strconv.Atoi(fields["priority"]); err == nil {
		job.Priority = priority
	}
	if timeout, err := strconv.Atoi(fields["timeout_seconds"]); err == nil {
		job.TimeoutSeconds = timeout
	}
	if metaJSON := fields["meta"]; metaJSON != "" {
		meta := map[string]string{}
		if err := json.Unmarshal([]byte(metaJSON), &meta); err == nil {
			job.Meta = meta
		}
	}
	if enqueued, err := time.Parse(time.RFC3339Nano, fields["enqueued_at"]); err == nil {
		job.EnqueuedAt = enqueued
	}
	if started, err := time.Parse(time.RFC3339Nano, fields["started_at"]); err == nil {
		job.StartedAt = &started
	}
	if ended, err := time.Parse(time.RFC3339Nano, fields["ended_at"]); err == nil {
		job.EndedAt = &ended
	}
	return job, nil
}

// SetMeta replaces the meta map on a job record.
func (b *RedisBroker) SetMeta(ctx context.Context, id string, meta map[string]string) error {
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("marshal meta: %w", err)
	}
	if err := b.client.HSet(ctx, redisJobPrefix+id, "meta", string(metaJSON)).Err(); err != nil {
		return fmt.Errorf("set meta: %w", err)
	}
	return nil
}

// ReclaimStale re-queues started jobs whose lease expired, covering workers
// that died mid-job.
func (b *RedisBroker) ReclaimStale(ctx context.Context, queue string, olderThan time.Duration) (int, error) {
	ids, err := b.client.SMembers(ctx, redisStartedPrefix+queue).Result()
	if err != nil {
		return 0, fmt.Errorf("list started jobs: %w", err)
	}

	cutoff := time.Now().UTC().Add(-olderThan)
	reclaimed := 0
	for _, id := range ids {
		startedRaw, err := b.client.HGet(ctx, redisJobPrefix+id, "started_at").Result()
		if errors.Is(err, redis.Nil) {
			// Record expired; drop the orphaned set entry.
			_ = b.client.SRem(ctx, redisStartedPrefix+queue, id).Err()
			continue
		}
		if err != nil {
			return reclaimed, fmt.Errorf("read started_at: %w", err)
		}
		started, err := time.Parse(time.RFC3339Nano, startedRaw)
		if err != nil || !started.Before(cutoff) {
			continue
		}

		pipe := b.client.TxPipeline()
		pipe.HSet(ctx, redisJobPrefix+id, "status", string(StatusQueued))
		pipe.HDel(ctx, redisJobPrefix+id, "started_at")
		pipe.SRem(ctx, redisStartedPrefix+queue, id)
		pipe.LPush(ctx, redisQueuePrefix+queue, id)
		if _, err := pipe.Exec(ctx); err != nil {
			return reclaimed, fmt.Errorf("requeue stale job %s: %w", id, err)
		}
		reclaimed++
	}
	return reclaimed, nil
}

// Stats returns queued/started counts per configured queue.
func (b *RedisBroker) Stats(ctx context.Context) (map[string]QueueStats, error) {
	stats := make(map[string]QueueStats, len(Queues()))
	for _, queue := range Queues() {
		queued, err := b.client.LLen(ctx, redisQueuePrefix+queue).Result()
		if err != nil {
			return nil, fmt.Errorf("llen %s: %w", queue, err)
		}
		started, err := b.client.SCard(ctx, redisStartedPrefix+queue).Result()
		if err != nil {
			return nil, fmt.Errorf("scard %s: %w", queue, err)
		}
		stats[queue] = QueueStats{Queued: queued, Started: started}
	}
	return stats, nil
}

// Health pings the Redis server.
func (b *RedisBroker) Health(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := b.client.Ping(pingCtx).Err(); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	return nil
}
