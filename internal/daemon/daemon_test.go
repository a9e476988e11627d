package daemon_test

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"archivist/internal/config"
	"archivist/internal/daemon"
	"archivist/internal/ingest"
	"archivist/internal/logging"
	"archivist/internal/remote"
	"archivist/internal/stage"
	"archivist/internal/store"
	"archivist/internal/testsupport"
	"archivist/internal/workflow"
)

type noopHandler struct{ name string }

func (n *noopHandler) Prepare(context.Context, *store.Asset) error { return nil }
func (n *noopHandler) Execute(context.Context, *store.Asset) error { return nil }
func (n *noopHandler) HealthCheck(context.Context) stage.Health    { return stage.Healthy(n.name) }
func (n *noopHandler) SetLogger(*slog.Logger)                      {}

func newDaemon(t *testing.T, cfg *config.Config) *daemon.Daemon {
	t.Helper()

	st := testsupport.MustOpenStore(t, cfg)
	source, err := remote.NewFS(cfg.Paths.RemoteRoot)
	if err != nil {
		t.Fatal(err)
	}

	manager := workflow.NewManager(cfg, st, logging.NewNop())
	manager.ConfigureStages(workflow.StageSet{
		Enricher:  &noopHandler{name: "enricher"},
		Resolver:  &noopHandler{name: "resolver"},
		Analyzer:  &noopHandler{name: "analyzer"},
		Finalizer: &noopHandler{name: "finalizer"},
	})
	poller := ingest.NewPoller(cfg, st, source, manager, logging.NewNop())

	d, err := daemon.New(cfg, st, logging.NewNop(), manager, poller, nil)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	return d
}

func TestDaemonStartStop(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d := newDaemon(t, cfg)
	ctx := context.Background()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(d.Stop)

	status := d.Status(ctx)
	if !status.Running || !status.Workflow.Running {
		t.Fatalf("daemon should report running: %+v", status)
	}

	d.Stop()
	if d.Status(ctx).Running {
		t.Fatal("daemon should report stopped")
	}
}

func TestDaemonSingleInstance(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	first := newDaemon(t, cfg)
	ctx := context.Background()

	if err := first.Start(ctx); err != nil {
		t.Fatalf("start first: %v", err)
	}
	t.Cleanup(first.Stop)

	second := newDaemon(t, cfg)
	if err := second.Start(ctx); err == nil {
		second.Stop()
		t.Fatal("second instance must be refused while the lock is held")
	}
}

func TestSecondInstanceCannotDisturbLiveWork(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	first := newDaemon(t, cfg)
	if err := first.Start(ctx); err != nil {
		t.Fatalf("start first: %v", err)
	}
	t.Cleanup(first.Stop)

	// An asset mid-stage with a live heartbeat, as a working lane leaves it.
	inflight, err := st.InsertAsset(ctx, &store.Asset{
		OriginalFilename: "busy.jpg",
		MediaKind:        store.MediaImage,
		Status:           store.StatusAnalyzing,
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := st.UpdateHeartbeat(ctx, inflight.ID); err != nil {
		t.Fatal(err)
	}

	// The instance lock lives beside the database, so any process that can
	// reach this store is refused before its startup reset runs.
	second := newDaemon(t, cfg)
	if err := second.Start(ctx); err == nil {
		second.Stop()
		t.Fatal("second instance must be refused while the lock is held")
	}

	current, err := st.GetByID(ctx, inflight.ID)
	if err != nil {
		t.Fatal(err)
	}
	if current.Status != store.StatusAnalyzing {
		t.Fatalf("in-flight asset disturbed by refused instance: %s", current.Status)
	}
	if current.LastHeartbeat == nil {
		t.Fatal("heartbeat cleared by refused instance")
	}
}

func TestDaemonPrunesOldLogsOnStart(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Logging.RetentionDays = 30

	stale := time.Now().AddDate(0, 0, -90)
	oldLog := filepath.Join(cfg.Paths.LogDir, "archivist-2024.log")
	testsupport.WriteFile(t, oldLog, []byte("old"))
	if err := os.Chtimes(oldLog, stale, stale); err != nil {
		t.Fatal(err)
	}

	activeLog := logging.LogFilePath(cfg)
	testsupport.WriteFile(t, activeLog, []byte("active"))
	if err := os.Chtimes(activeLog, stale, stale); err != nil {
		t.Fatal(err)
	}

	d := newDaemon(t, cfg)
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(d.Stop)

	if _, err := os.Stat(oldLog); !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("expired log not pruned: %v", err)
	}
	if _, err := os.Stat(activeLog); err != nil {
		t.Fatalf("active log must survive pruning: %v", err)
	}
}

func TestDaemonResetsStuckAssetsOnStart(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	stuck, err := st.InsertAsset(ctx, &store.Asset{
		OriginalFilename: "stuck.jpg",
		MediaKind:        store.MediaImage,
		Status:           store.StatusEnriching,
	})
	if err != nil {
		t.Fatal(err)
	}

	d := newDaemon(t, cfg)
	if err := d.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(d.Stop)

	// The reset returns the asset to uploaded; the noop stages then walk it
	// to its terminal status.
	deadline := time.Now().Add(10 * time.Second)
	for {
		recovered, err := st.GetByID(ctx, stuck.ID)
		if err != nil {
			t.Fatal(err)
		}
		if recovered.Status == store.StatusNeedsReview {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("stuck asset never recovered, status %s", recovered.Status)
		}
		time.Sleep(20 * time.Millisecond)
	}
}
