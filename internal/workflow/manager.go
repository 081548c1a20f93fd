package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"mediaindex/internal/config"
	"mediaindex/internal/jobs"
	"mediaindex/internal/logging"
)

// Handler executes one job. Returning an error marks the job failed.
type Handler func(ctx context.Context, job *jobs.Job) error

// Manager runs queue workers against the job broker and dispatches dequeued
// jobs to registered handlers by job type.
type Manager struct {
	broker jobs.Broker
	logger *slog.Logger

	pollInterval       time.Duration
	errorRetryInterval time.Duration
	leaseTimeout       time.Duration
	reclaimInterval    time.Duration
	workersPerQueue    int

	handlers map[string]Handler

	mu      sync.RWMutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	lastErr error
}

// NewManager constructs a workflow manager from the workflow configuration
// section.
func NewManager(cfg *config.Config, broker jobs.Broker, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	workers := cfg.Workflow.WorkersPerQueue
	if workers <= 0 {
		workers = 1
	}
	return &Manager{
		broker:             broker,
		logger:             logger.With(logging.String(logging.FieldComponent, "workflow")),
		pollInterval:       time.Duration(cfg.Workflow.QueuePollInterval) * time.Second,
		errorRetryInterval: time.Duration(cfg.Workflow.ErrorRetryInterval) * time.Second,
		leaseTimeout:       time.Duration(cfg.Workflow.LeaseTimeoutSeconds) * time.Second,
		reclaimInterval:    time.Duration(cfg.Workflow.ReclaimInterval) * time.Second,
		workersPerQueue:    workers,
		handlers:           make(map[string]Handler),
	}
}

// Register binds a handler to a job type. Must be called before Start.
func (m *Manager) Register(jobType string, handler Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[jobType] = handler
}

// Running reports whether workers are active.
func (m *Manager) Running() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.running
}

// LastError returns the most recent worker error, if any.
func (m *Manager) LastError() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastErr
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}

func (m *Manager) handlerFor(jobType string) (Handler, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	handler, ok := m.handlers[jobType]
	if !ok {
		return nil, fmt.Errorf("no handler registered for job type %q", jobType)
	}
	return handler, nil
}
