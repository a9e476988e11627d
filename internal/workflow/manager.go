package workflow

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"archivist/internal/config"
	"archivist/internal/inference"
	"archivist/internal/store"
)

// Manager coordinates asset processing using registered stage handlers.
type Manager struct {
	cfg          *config.Config
	store        *store.Store
	logger       *slog.Logger
	pollInterval time.Duration

	heartbeat *HeartbeatMonitor

	lanes     map[laneKind]*laneState
	laneOrder []laneKind
	session   *inference.Session

	mu        sync.RWMutex
	running   bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	lastErr   error
	lastAsset *store.Asset
}

// NewManager constructs a new workflow manager.
func NewManager(cfg *config.Config, st *store.Store, logger *slog.Logger) *Manager {
	return &Manager{
		cfg:          cfg,
		store:        st,
		logger:       logger,
		pollInterval: time.Duration(cfg.Worker.PollInterval) * time.Second,
		heartbeat: NewHeartbeatMonitor(
			st,
			logger,
			time.Duration(cfg.Workflow.HeartbeatInterval)*time.Second,
			time.Duration(cfg.Workflow.HeartbeatTimeout)*time.Second,
		),
		lanes: make(map[laneKind]*laneState),
	}
}

// Wake nudges the foreground lane out of its poll sleep. Called by the
// ingest watcher when new files land in the inbox.
func (m *Manager) Wake() {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, lane := range m.lanes {
		lane.wake()
	}
}
