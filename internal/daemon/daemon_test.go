package daemon

import (
	"context"
	"path/filepath"
	"testing"

	"mediaindex/internal/config"
	"mediaindex/internal/jobs"
	"mediaindex/internal/server"
	"mediaindex/internal/workflow"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.SubtitleDir = filepath.Join(base, "subtitles")
	cfg.Paths.APIBind = "127.0.0.1:0"
	cfg.Workflow.QueuePollInterval = 1
	cfg.Workflow.ErrorRetryInterval = 1
	cfg.Workflow.LeaseTimeoutSeconds = 60
	cfg.Workflow.ReclaimInterval = 1
	cfg.Workflow.WorkersPerQueue = 1
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return &cfg
}

func newTestDaemon(t *testing.T, cfg *config.Config) *Daemon {
	t.Helper()
	broker, err := jobs.OpenSQLite(cfg.BrokerDatabasePath())
	if err != nil {
		t.Fatalf("open broker: %v", err)
	}
	t.Cleanup(func() { _ = broker.Close() })

	wf := workflow.NewManager(cfg, broker, nil)
	wf.Register("noop", func(context.Context, *jobs.Job) error { return nil })

	srv := server.New(server.Options{
		Bind:   cfg.Paths.APIBind,
		Broker: broker,
	})

	d, err := New(cfg, broker, wf, srv, nil)
	if err != nil {
		t.Fatalf("new daemon: %v", err)
	}
	return d
}

func TestStartStopLifecycle(t *testing.T) {
	cfg := testConfig(t)
	d := newTestDaemon(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	status, ok := d.Status(ctx).(Status)
	if !ok {
		t.Fatalf("unexpected status type %T", d.Status(ctx))
	}
	if !status.Running || !status.WorkersRunning {
		t.Fatalf("daemon should be running: %+v", status)
	}
	if status.APIAddress == "" {
		t.Fatal("api address not bound")
	}

	d.Stop()
	status = d.Status(ctx).(Status)
	if status.Running {
		t.Fatal("daemon still reports running after stop")
	}

	// Stop again is a no-op.
	d.Stop()
}

func TestSecondInstanceRejected(t *testing.T) {
	cfg := testConfig(t)
	first := newTestDaemon(t, cfg)
	second := newTestDaemon(t, cfg)

	ctx := context.Background()
	if err := first.Start(ctx); err != nil {
		t.Fatalf("start first: %v", err)
	}
	defer first.Stop()

	if err := second.Start(ctx); err == nil {
		second.Stop()
		t.Fatal("second instance acquired the lock")
	}
}

func TestStartTwiceFails(t *testing.T) {
	cfg := testConfig(t)
	d := newTestDaemon(t, cfg)

	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer d.Stop()

	if err := d.Start(context.Background()); err == nil {
		t.Fatal("second start should fail")
	}
}

func TestNewRequiresDependencies(t *testing.T) {
	cfg := testConfig(t)
	if _, err := New(cfg, nil, nil, nil, nil); err == nil {
		t.Fatal("expected dependency error")
	}
}
