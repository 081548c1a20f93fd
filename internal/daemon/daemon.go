package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"

	"github.com/gofrs/flock"

	"mediaindex/internal/config"
	"mediaindex/internal/jobs"
	"mediaindex/internal/logging"
	"mediaindex/internal/server"
	"mediaindex/internal/workflow"
)

// Daemon coordinates the queue workers and the HTTP API and enforces
// single-instance execution through a lock file in the log directory.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	broker   jobs.Broker
	workflow *workflow.Manager
	server   *server.Server

	closers []func() error

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running        bool   `json:"running"`
	WorkersRunning bool   `json:"workers_running"`
	LastError      string `json:"last_error,omitempty"`
	APIAddress     string `json:"api_address,omitempty"`
	LockFilePath   string `json:"lock_file"`
}

// New constructs a daemon from initialized dependencies. Use Build to wire
// the full service graph from configuration.
func New(cfg *config.Config, broker jobs.Broker, wf *workflow.Manager, srv *server.Server, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || broker == nil || wf == nil || srv == nil {
		return nil, errors.New("daemon requires config, broker, workflow manager, and server")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	lockPath := filepath.Join(cfg.Paths.LogDir, "mediaindexd.lock")
	return &Daemon{
		cfg:      cfg,
		logger:   logger.With(logging.String(logging.FieldComponent, "daemon")),
		broker:   broker,
		workflow: wf,
		server:   srv,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// Start acquires the daemon lock, launches the queue workers, and binds the
// API listener.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another mediaindex daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.workflow.Start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("start workflow: %w", err)
	}
	if err := d.server.Start(runCtx); err != nil {
		d.workflow.Stop()
		cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("start api server: %w", err)
	}

	d.cancel = cancel
	d.running.Store(true)
	d.logger.Info("daemon started",
		logging.String("lock", d.lockPath),
		logging.String("api", d.server.Addr()))
	return nil
}

// Stop halts background processing, shuts the API down, and releases the
// daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.server.Stop()
	d.workflow.Stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("daemon stopped")
}

// Close stops the daemon and releases every resource Build opened.
func (d *Daemon) Close() error {
	d.Stop()
	var first error
	for _, closeFn := range d.closers {
		if err := closeFn(); err != nil && first == nil {
			first = err
		}
	}
	d.closers = nil
	return first
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) any {
	status := Status{
		Running:        d.running.Load(),
		WorkersRunning: d.workflow.Running(),
		APIAddress:     d.server.Addr(),
		LockFilePath:   d.lockPath,
	}
	if err := d.workflow.LastError(); err != nil {
		status.LastError = err.Error()
	}
	return status
}
