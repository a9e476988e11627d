package workflow_test

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"archivist/internal/config"
	"archivist/internal/logging"
	"archivist/internal/stage"
	"archivist/internal/store"
	"archivist/internal/testsupport"
	"archivist/internal/workflow"
)

// stubHandler is a configurable stage.Handler for manager tests.
type stubHandler struct {
	name       string
	prepareErr error
	execErr    error
	execute    func(ctx context.Context, asset *store.Asset) error

	mu    sync.Mutex
	calls int
}

func (s *stubHandler) Prepare(ctx context.Context, asset *store.Asset) error {
	return s.prepareErr
}

func (s *stubHandler) Execute(ctx context.Context, asset *store.Asset) error {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.execErr != nil {
		return s.execErr
	}
	if s.execute != nil {
		return s.execute(ctx, asset)
	}
	return nil
}

func (s *stubHandler) HealthCheck(ctx context.Context) stage.Health {
	return stage.Healthy(s.name)
}

func (s *stubHandler) SetLogger(*slog.Logger) {}

func (s *stubHandler) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func passthroughStages() workflow.StageSet {
	return workflow.StageSet{
		Enricher:  &stubHandler{name: "enricher"},
		Resolver:  &stubHandler{name: "resolver"},
		Analyzer:  &stubHandler{name: "analyzer"},
		Finalizer: &stubHandler{name: "finalizer"},
	}
}

func startManager(t *testing.T, cfg *config.Config, st *store.Store, set workflow.StageSet) *workflow.Manager {
	t.Helper()

	manager := workflow.NewManager(cfg, st, logging.NewNop())
	manager.ConfigureStages(set)
	if err := manager.Start(context.Background()); err != nil {
		t.Fatalf("start manager: %v", err)
	}
	t.Cleanup(manager.Stop)
	return manager
}

func waitForStatus(t *testing.T, st *store.Store, id string, want store.Status) *store.Asset {
	t.Helper()

	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		asset, err := st.GetByID(context.Background(), id)
		if err != nil {
			t.Fatalf("get asset: %v", err)
		}
		if asset.Status == want {
			return asset
		}
		if asset.Status.IsTerminal() && asset.Status != want {
			t.Fatalf("asset settled at %s, wanted %s (errors: %v)", asset.Status, want, asset.ProcessingErrors)
		}
		time.Sleep(20 * time.Millisecond)
	}
	asset, _ := st.GetByID(context.Background(), id)
	t.Fatalf("timed out waiting for status %s, asset at %s", want, asset.Status)
	return nil
}

func insertUploaded(t *testing.T, st *store.Store, filename string) *store.Asset {
	t.Helper()

	asset, err := st.InsertAsset(context.Background(), &store.Asset{
		OriginalFilename: filename,
		MediaKind:        store.MediaImage,
		IsMaster:         true,
	})
	if err != nil {
		t.Fatalf("insert asset: %v", err)
	}
	return asset
}

func newTestConfig(t *testing.T) *config.Config {
	cfg := testsupport.NewConfig(t)
	cfg.Workflow.HeartbeatInterval = 1
	cfg.Workflow.HeartbeatTimeout = 5
	return cfg
}
