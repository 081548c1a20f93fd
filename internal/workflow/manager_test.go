package workflow

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"mediaindex/internal/config"
	"mediaindex/internal/jobs"
)

func testWorkflowConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Workflow.QueuePollInterval = 1
	cfg.Workflow.ErrorRetryInterval = 1
	cfg.Workflow.LeaseTimeoutSeconds = 60
	cfg.Workflow.ReclaimInterval = 1
	cfg.Workflow.WorkersPerQueue = 1
	return cfg
}

func openTestBroker(t *testing.T) *jobs.SQLiteBroker {
	t.Helper()
	broker, err := jobs.OpenSQLite(filepath.Join(t.TempDir(), "jobs.db"))
	if err != nil {
		t.Fatalf("OpenSQLite returned error: %v", err)
	}
	t.Cleanup(func() { _ = broker.Close() })
	return broker
}

func waitFor(t *testing.T, timeout time.Duration, condition func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestManagerDispatchesJobToRegisteredHandler(t *testing.T) {
	broker := openTestBroker(t)
	manager := NewManager(testWorkflowConfig(), broker, nil)

	handled := make(chan string, 1)
	manager.Register("noop", func(ctx context.Context, job *jobs.Job) error {
		handled <- job.ID
		return nil
	})

	ctx := context.Background()
	job := &jobs.Job{ID: "job-1", Queue: jobs.QueueTMDBSync, Type: "noop"}
	if err := broker.Enqueue(ctx, job); err != nil {
		t.Fatalf("Enqueue returned error: %v", err)
	}

	if err := manager.Start(ctx); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	defer manager.Stop()

	select {
	case id := <-handled:
		if id != "job-1" {
			t.Fatalf("handled wrong job: %q", id)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("handler never invoked")
	}

	waitFor(t, 5*time.Second, func() bool {
		fetched, err := broker.Fetch(ctx, "job-1")
		return err == nil && fetched != nil && fetched.Status == jobs.StatusFinished
	})
}

func TestManagerMarksFailingJobFailed(t *testing.T) {
	broker := openTestBroker(t)
	manager := NewManager(testWorkflowConfig(), broker, nil)
	manager.Register("explode", func(context.Context, *jobs.Job) error {
		return errors.New("boom")
	})

	ctx := context.Background()
	if err := broker.Enqueue(ctx, &jobs.Job{ID: "job-1", Queue: jobs.QueueSubtitles, Type: "explode"}); err != nil {
		t.Fatalf("Enqueue returned error: %v", err)
	}
	if err := manager.Start(ctx); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	defer manager.Stop()

	waitFor(t, 5*time.Second, func() bool {
		fetched, err := broker.Fetch(ctx, "job-1")
		return err == nil && fetched != nil && fetched.Status == jobs.StatusFailed
	})
	fetched, err := broker.Fetch(ctx, "job-1")
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if fetched.Error != "boom" {
		t.Fatalf("failure message not recorded: %q", fetched.Error)
	}
	if manager.LastError() == nil {
		t.Fatal("last error not tracked")
	}
}

func TestManagerFailsJobWithoutHandler(t *testing.T) {
	broker := openTestBroker(t)
	manager := NewManager(testWorkflowConfig(), broker, nil)
	manager.Register("known", func(context.Context, *jobs.Job) error { return nil })

	ctx := context.Background()
	if err := broker.Enqueue(ctx, &jobs.Job{ID: "job-1", Queue: jobs.QueueTMDBSync, Type: "unknown"}); err != nil {
		t.Fatalf("Enqueue returned error: %v", err)
	}
	if err := manager.Start(ctx); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	defer manager.Stop()

	waitFor(t, 5*time.Second, func() bool {
		fetched, err := broker.Fetch(ctx, "job-1")
		return err == nil && fetched != nil && fetched.Status == jobs.StatusFailed
	})
}

func TestManagerStartRequiresHandlers(t *testing.T) {
	manager := NewManager(testWorkflowConfig(), openTestBroker(t), nil)
	if err := manager.Start(context.Background()); err == nil {
		t.Fatal("expected error when no handlers registered")
	}
}

func TestManagerStopIsIdempotent(t *testing.T) {
	manager := NewManager(testWorkflowConfig(), openTestBroker(t), nil)
	manager.Register("noop", func(context.Context, *jobs.Job) error { return nil })
	if err := manager.Start(context.Background()); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	if !manager.Running() {
		t.Fatal("manager should be running")
	}
	manager.Stop()
	manager.Stop()
	if manager.Running() {
		t.Fatal("manager should have stopped")
	}
}
