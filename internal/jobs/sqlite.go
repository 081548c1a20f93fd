package jobs

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// SQLiteBroker is the embedded single-node broker used when no Redis URL is
// configured. Claims happen inside immediate transactions so concurrent
// in-process workers never receive the same job.
type SQLiteBroker struct {
	db   *sql.DB
	path string
}

// OpenSQLite initializes or connects to the broker database.
func OpenSQLite(path string) (*SQLiteBroker, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("broker database path is empty")
	}
	db, err := sql.Open("sqlite", filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	broker := &SQLiteBroker{db: db, path: path}
	if err := broker.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return broker, nil
}

// Close closes the underlying database connection.
func (b *SQLiteBroker) Close() error {
	if b == nil || b.db == nil {
		return nil
	}
	return b.db.Close()
}

// Enqueue persists a job in queued state. A missing ID is assigned. An
// existing record with the same ID is reset to queued, so deterministic job
// IDs can be re-enqueued after a failure.
func (b *SQLiteBroker) Enqueue(ctx context.Context, job *Job) error {
	if job == nil {
		return errors.New("job is nil")
	}
	if strings.TrimSpace(job.Queue) == "" {
		return errors.New("job queue is empty")
	}
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	job.Status = StatusQueued
	job.EnqueuedAt = time.Now().UTC()

	metaJSON, err := marshalMeta(job.Meta)
	if err != nil {
		return fmt.Errorf("marshal meta: %w", err)
	}

	_, err = b.db.ExecContext(
		ctx,
		`INSERT INTO jobs (
            id, queue, type, payload, priority, timeout_seconds,
            status, error_message, meta_json, enqueued_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(id) DO UPDATE SET
            queue = excluded.queue,
            type = excluded.type,
            payload = excluded.payload,
            priority = excluded.priority,
            timeout_seconds = excluded.timeout_seconds,
            status = excluded.status,
            error_message = NULL,
            meta_json = excluded.meta_json,
            enqueued_at = excluded.enqueued_at,
            started_at = NULL,
            ended_at = NULL`,
		job.ID,
		job.Queue,
		job.Type,
		nullableString(string(job.Payload)),
		job.Priority,
		job.TimeoutSeconds,
		job.Status,
		nil,
		nullableString(metaJSON),
		job.EnqueuedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("upsert job: %w", err)
	}
	return nil
}

// Dequeue claims the highest-priority queued job, oldest first within a
// priority. It polls until a job appears or wait elapses.
func (b *SQLiteBroker) Dequeue(ctx context.Context, queue string, wait time.Duration) (*Job, error) {
	deadline := time.Now().Add(wait)
	for {
		job, err := b.claim(ctx, queue)
		if err != nil {
			return nil, err
		}
		if job != nil {
			return job, nil
		}
		if wait <= 0 || time.Now().After(deadline) {
			return nil, nil
		}
		timer := time.NewTimer(250 * time.Millisecond)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

func (b *SQLiteBroker) claim(ctx context.Context, queue string) (*Job, error) {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin claim tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(
		ctx,
		`SELECT `+jobColumns+` FROM jobs
         WHERE queue = ? AND status = ?
         ORDER BY priority DESC, enqueued_at
         LIMIT 1`,
		queue,
		StatusQueued,
	)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select queued job: %w", err)
	}

	now := time.Now().UTC()
	res, err := tx.ExecContext(
		ctx,
		`UPDATE jobs SET status = ?, started_at = ? WHERE id = ? AND status = ?`,
		StatusStarted,
		now.Format(time.RFC3339Nano),
		job.ID,
		StatusQueued,
	)
	if err != nil {
		return nil, fmt.Errorf("claim job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		// Lost the race to another worker inside this process.
		return nil, nil
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit claim: %w", err)
	}

	job.Status = StatusStarted
	job.StartedAt = &now
	return job, nil
}

// Finish marks a job successfully completed.
func (b *SQLiteBroker) Finish(ctx context.Context, id string) error {
	return b.end(ctx, id, StatusFinished, "")
}

// Fail marks a job failed with a message.
func (b *SQLiteBroker) Fail(ctx context.Context, id string, message string) error {
	return b.end(ctx, id, StatusFailed, message)
}

func (b *SQLiteBroker) end(ctx context.Context, id string, status Status, message string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := b.db.ExecContext(
		ctx,
		`UPDATE jobs SET status = ?, error_message = ?, ended_at = ? WHERE id = ?`,
		status,
		nullableString(message),
		now,
		id,
	)
	if err != nil {
		return fmt.Errorf("finish job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("job %s not found", id)
	}
	return nil
}

// Fetch returns a job by ID, or nil when unknown.
func (b *SQLiteBroker) Fetch(ctx context.Context, id string) (*Job, error) {
	row := b.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch job: %w", err)
	}
	return job, nil
}

// SetMeta replaces the meta map on a job record.
func (b *SQLiteBroker) SetMeta(ctx context.Context, id string, meta map[string]string) error {
	metaJSON, err := marshalMeta(meta)
	if err != nil {
		return fmt.Errorf("marshal meta: %w", err)
	}
	_, err = b.db.ExecContext(ctx, `UPDATE jobs SET meta_json = ? WHERE id = ?`, nullableString(metaJSON), id)
	if err != nil {
		return fmt.Errorf("set meta: %w", err)
	}
	return nil
}

// ReclaimStale re-queues started jobs whose lease expired.
func (b *SQLiteBroker) ReclaimStale(ctx context.Context, queue string, olderThan time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	res, err := b.db.ExecContext(
		ctx,
		`UPDATE jobs SET status = ?, started_at = NULL
         WHERE queue = ? AND status = ? AND started_at IS NOT NULL AND started_at < ?`,
		StatusQueued,
		queue,
		StatusStarted,
		cutoff.Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("reclaim stale jobs: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return int(affected), nil
}

// Stats returns queued/started counts per queue.
func (b *SQLiteBroker) Stats(ctx context.Context) (map[string]QueueStats, error) {
	rows, err := b.db.QueryContext(ctx, `SELECT queue, status, COUNT(1) FROM jobs GROUP BY queue, status`)
	if err != nil {
		return nil, fmt.Errorf("broker stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[string]QueueStats)
	for rows.Next() {
		var queue, status string
		var count int64
		if err := rows.Scan(&queue, &status, &count); err != nil {
			return nil, err
		}
		entry := stats[queue]
		switch Status(status) {
		case StatusQueued:
			entry.Queued += count
		case StatusStarted:
			entry.Started += count
		}
		stats[queue] = entry
	}
	return stats, rows.Err()
}

// Health pings the broker database.
func (b *SQLiteBroker) Health(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := b.db.PingContext(pingCtx); err != nil {
		return fmt.Errorf("ping broker database: %w", err)
	}
	return nil
}

const jobColumns = "id, queue, type, payload, priority, timeout_seconds, status, error_message, meta_json, enqueued_at, started_at, ended_at"

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		id           string
		queue        string
		jobType      string
		payload      sql.NullString
		priority     int
		timeout      int
		statusStr    string
		errorMessage sql.NullString
		metaJSON     sql.NullString
		enqueuedRaw  sql.NullString
		startedRaw   sql.NullString
		endedRaw     sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&queue,
		&jobType,
		&payload,
		&priority,
		&timeout,
		&statusStr,
		&errorMessage,
		&metaJSON,
		&enqueuedRaw,
		&startedRaw,
		&endedRaw,
	); err != nil {
		return nil, err
	}

	job := &Job{
		ID:             id,
		Queue:          queue,
		Type:           jobType,
		Priority:       priority,
		TimeoutSeconds: timeout,
		Status:         Status(statusStr),
		Error:          errorMessage.String,
	}
	if payload.Valid {
		job.Payload = json.RawMessage(payload.String)
	}
	if metaJSON.Valid && metaJSON.String != "" {
		meta := map[string]string{}
		if err := json.Unmarshal([]byte(metaJSON.String), &meta); err == nil {
			job.Meta = meta
		}
	}
	if enqueued, err := parseTimeString(enqueuedRaw.String); err == nil {
		job.EnqueuedAt = enqueued
	}
	if startedRaw.Valid {
		if started, err := parseTimeString(startedRaw.String); err == nil {
			job.StartedAt = &started
		}
	}
	if endedRaw.Valid {
		if ended, err := parseTimeString(endedRaw.String); err == nil {
			job.EndedAt = &ended
		}
	}
	return job, nil
}

func marshalMeta(meta map[string]string) (string, error) {
	if len(meta) == 0 {
		return "", nil
	}
	data, err := json.Marshal(meta)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	return time.Parse(time.RFC3339Nano, value)
}
