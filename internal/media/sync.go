package media

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const syncColumns = `id, year, language, job_id, priority, status, attempts,
    last_attempt, error_message, movies_processed, movies_failed, created_at, updated_at`

// UpsertSyncRecord creates or refreshes the tracking record for a
// (year, language) sync run and resets it to pending.
func (s *Store) UpsertSyncRecord(ctx context.Context, year int, language, jobID string, priority int) (*SyncRecord, error) {
	id := uuid.NewString()
	row := s.pool.QueryRow(
		ctx,
		`INSERT INTO sync_records (id, year, language, job_id, priority, status)
         VALUES ($1, $2, $3, $4, $5, $6)
         ON CONFLICT (year, language) DO UPDATE SET
            job_id = EXCLUDED.job_id,
            priority = EXCLUDED.priority,
            status = EXCLUDED.status,
            error_message = '',
            updated_at = now()
         RETURNING `+syncColumns,
		id,
		year,
		language,
		jobID,
		priority,
		SyncPending,
	)
	record, err := scanSyncRecord(row)
	if err != nil {
		return nil, fmt.Errorf("upsert sync record %d/%s: %w", year, language, err)
	}
	return record, nil
}

// SyncRecordByJobID returns the record tracking a job, or nil when unknown.
func (s *Store) SyncRecordByJobID(ctx context.Context, jobID string) (*SyncRecord, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+syncColumns+` FROM sync_records WHERE job_id = $1`, jobID)
	record, err := scanSyncRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get sync record by job id: %w", err)
	}
	return record, nil
}

// SyncRecordFor returns the record for a (year, language), or nil when absent.
func (s *Store) SyncRecordFor(ctx context.Context, year int, language string) (*SyncRecord, error) {
	row := s.pool.QueryRow(
		ctx,
		`SELECT `+syncColumns+` FROM sync_records WHERE year = $1 AND language = $2`,
		year,
		language,
	)
	record, err := scanSyncRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get sync record: %w", err)
	}
	return record, nil
}

// MarkSyncStarted flips a record to in-progress and bumps the attempt counter.
func (s *Store) MarkSyncStarted(ctx context.Context, id string) error {
	_, err := s.pool.Exec(
		ctx,
		`UPDATE sync_records
         SET status = $1, attempts = attempts + 1, last_attempt = now(),
             movies_processed = 0, movies_failed = 0, error_message = '', updated_at = now()
         WHERE id = $2`,
		SyncInProgress,
		id,
	)
	if err != nil {
		return fmt.Errorf("mark sync started: %w", err)
	}
	return nil
}

// UpdateSyncProgress stores the running movie counters for an active run.
func (s *Store) UpdateSyncProgress(ctx context.Context, id string, processed, failed int) error {
	_, err := s.pool.Exec(
		ctx,
		`UPDATE sync_records
         SET movies_processed = $1, movies_failed = $2, updated_at = now()
         WHERE id = $3`,
		processed,
		failed,
		id,
	)
	if err != nil {
		return fmt.Errorf("update sync progress: %w", err)
	}
	return nil
}

// CompleteSync marks a run finished with its final counters.
func (s *Store) CompleteSync(ctx context.Context, id string, processed, failed int) error {
	_, err := s.pool.Exec(
		ctx,
		`UPDATE sync_records
         SET status = $1, movies_processed = $2, movies_failed = $3,
             error_message = '', updated_at = now()
         WHERE id = $4`,
		SyncCompleted,
		processed,
		failed,
		id,
	)
	if err != nil {
		return fmt.Errorf("complete sync: %w", err)
	}
	return nil
}

// FailSync marks a run failed with the fatal error.
func (s *Store) FailSync(ctx context.Context, id string, message string) error {
	_, err := s.pool.Exec(
		ctx,
		`UPDATE sync_records
         SET status = $1, error_message = $2, updated_at = now()
         WHERE id = $3`,
		SyncFailed,
		message,
		id,
	)
	if err != nil {
		return fmt.Errorf("fail sync: %w", err)
	}
	return nil
}

// FailedSyncRecords lists failed runs still under the attempt cap, oldest
// attempt first.
func (s *Store) FailedSyncRecords(ctx context.Context, maxAttempts int) ([]*SyncRecord, error) {
	rows, err := s.pool.Query(
		ctx,
		`SELECT `+syncColumns+` FROM sync_records
         WHERE status = $1 AND attempts < $2
         ORDER BY last_attempt NULLS FIRST`,
		SyncFailed,
		maxAttempts,
	)
	if err != nil {
		return nil, fmt.Errorf("list failed sync records: %w", err)
	}
	defer rows.Close()

	var records []*SyncRecord
	for rows.Next() {
		record, err := scanSyncRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// ListSyncRecords returns all sync records, newest year first.
func (s *Store) ListSyncRecords(ctx context.Context) ([]*SyncRecord, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+syncColumns+` FROM sync_records ORDER BY year DESC, language`)
	if err != nil {
		return nil, fmt.Errorf("list sync records: %w", err)
	}
	defer rows.Close()

	var records []*SyncRecord
	for rows.Next() {
		record, err := scanSyncRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

func scanSyncRecord(scanner interface{ Scan(dest ...any) error }) (*SyncRecord, error) {
	var record SyncRecord
	if err := scanner.Scan(
		&record.ID,
		&record.Year,
		&record.Language,
		&record.JobID,
		&record.Priority,
		&record.Status,
		&record.Attempts,
		&record.LastAttempt,
		&record.ErrorMessage,
		&record.MoviesProcessed,
		&record.MoviesFailed,
		&record.CreatedAt,
		&record.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &record, nil
}
