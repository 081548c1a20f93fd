package workflow

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"mediaindex/internal/jobs"
	"mediaindex/internal/logging"
)

// Start begins background processing: workersPerQueue workers per queue plus
// one stale-job reclaimer per queue.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("workflow already running")
	}
	if len(m.handlers) == 0 {
		m.mu.Unlock()
		return errors.New("no job handlers registered")
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true

	queues := jobs.Queues()
	m.wg.Add(len(queues) * (m.workersPerQueue + 1))
	m.mu.Unlock()

	for _, queue := range queues {
		for i := 0; i < m.workersPerQueue; i++ {
			go m.runWorker(runCtx, queue, i)
		}
		go m.runReclaimer(runCtx, queue)
	}
	return nil
}

// Stop terminates background processing and waits for workers to drain.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
}

func (m *Manager) runWorker(ctx context.Context, queue string, index int) {
	defer m.wg.Done()
	logger := m.logger.With(
		logging.String(logging.FieldQueue, queue),
		logging.Int("worker", index))

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		job, err := m.broker.Dequeue(ctx, queue, m.pollInterval)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			m.setLastError(err)
			logger.Error("dequeue failed", logging.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(m.errorRetryInterval):
			}
			continue
		}
		if job == nil {
			continue
		}
		m.processJob(ctx, logger, job)
	}
}

func (m *Manager) processJob(ctx context.Context, logger *slog.Logger, job *jobs.Job) {
	logger = logger.With(
		logging.String(logging.FieldJobID, job.ID),
		logging.String("job_type", job.Type))
	logger.Info("job started")

	handler, err := m.handlerFor(job.Type)
	if err != nil {
		logger.Error("job rejected", logging.Error(err))
		m.failJob(ctx, logger, job, err)
		return
	}

	jobCtx := ctx
	if job.TimeoutSeconds > 0 {
		var cancel context.CancelFunc
		jobCtx, cancel = context.WithTimeout(ctx, time.Duration(job.TimeoutSeconds)*time.Second)
		defer cancel()
	}

	started := time.Now()
	if err := handler(jobCtx, job); err != nil {
		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			// Shutdown mid-job. Leave the job started; the reclaimer
			// re-queues it once the lease expires.
			logger.Info("job interrupted by shutdown")
			return
		}
		m.setLastError(err)
		logger.Error("job failed",
			logging.Error(err),
			logging.Duration("elapsed", time.Since(started)))
		m.failJob(ctx, logger, job, err)
		return
	}

	if err := m.broker.Finish(ctx, job.ID); err != nil {
		m.setLastError(err)
		logger.Error("recording job completion failed", logging.Error(err))
		return
	}
	logger.Info("job finished", logging.Duration("elapsed", time.Since(started)))
}

func (m *Manager) failJob(ctx context.Context, logger *slog.Logger, job *jobs.Job, cause error) {
	if err := m.broker.Fail(ctx, job.ID, cause.Error()); err != nil {
		logger.Error("recording job failure failed", logging.Error(err))
	}
}

func (m *Manager) runReclaimer(ctx context.Context, queue string) {
	defer m.wg.Done()
	if m.reclaimInterval <= 0 || m.leaseTimeout <= 0 {
		return
	}
	ticker := time.NewTicker(m.reclaimInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		reclaimed, err := m.broker.ReclaimStale(ctx, queue, m.leaseTimeout)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			m.logger.Warn("stale job reclaim failed",
				logging.String(logging.FieldQueue, queue),
				logging.Error(err))
			continue
		}
		if reclaimed > 0 {
			m.logger.Info("stale jobs re-queued",
				logging.String(logging.FieldQueue, queue),
				logging.Int("count", reclaimed))
		}
	}
}
