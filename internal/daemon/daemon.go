package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/gofrs/flock"

	"archivist/internal/config"
	"archivist/internal/deps"
	"archivist/internal/ingest"
	"archivist/internal/logging"
	"archivist/internal/store"
	"archivist/internal/workflow"
)

// Daemon coordinates the background services and enforces single-instance
// execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *store.Store
	workflow *workflow.Manager
	poller   *ingest.Poller
	watcher  *ingest.Watcher

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	Workflow     workflow.StatusSummary
	DatabasePath string
	LockFilePath string
}

// New constructs a daemon with initialized dependencies. watcher may be nil
// when the remote root cannot be watched.
func New(cfg *config.Config, st *store.Store, logger *slog.Logger, wf *workflow.Manager, poller *ingest.Poller, watcher *ingest.Watcher) (*Daemon, error) {
	if cfg == nil || st == nil || logger == nil || wf == nil || poller == nil {
		return nil, errors.New("daemon requires config, store, logger, workflow manager, and poller")
	}

	lockPath := filepath.Join(cfg.Paths.CacheDir, "archivistd.lock")
	return &Daemon{
		cfg:      cfg,
		logger:   logger,
		store:    st,
		workflow: wf,
		poller:   poller,
		watcher:  watcher,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// Start acquires the instance lock and launches the poller and workflow.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another archivist daemon instance is already running")
	}

	for _, missing := range deps.MissingRequired(deps.CheckBinaries(deps.ForConfig(d.cfg))) {
		d.logger.Warn("external tool unavailable",
			logging.String("tool", missing.Name),
			logging.String("detail", missing.Detail),
			logging.String(logging.FieldErrorHint, "affected stages will record errors until the tool is installed"),
		)
	}

	logging.CleanupOldLogs(d.logger, d.cfg.Logging.RetentionDays, logging.RetentionTarget{
		Dir:     d.cfg.Paths.LogDir,
		Pattern: "*.log",
		Exclude: []string{logging.LogFilePath(d.cfg)},
	})

	// The instance lock shares the cache directory with the database and
	// the download scratch area, so holding it means no other worker has
	// this store open. Assets stranded mid-stage by the previous run roll
	// back to their stage start before any lane fetches work; in-flight
	// work cannot belong to a live worker here. Workers scaled out over
	// separate caches coordinate through the remote claim rename alone.
	if reset, err := d.store.ResetStuckProcessing(ctx); err != nil {
		_ = d.lock.Unlock()
		return fmt.Errorf("reset stuck processing: %w", err)
	} else if reset > 0 {
		d.logger.Info("reset stuck assets from previous run", logging.Int64("count", reset))
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	if err := d.workflow.Start(runCtx); err != nil {
		cancel()
		d.cancel = nil
		_ = d.lock.Unlock()
		return fmt.Errorf("start workflow: %w", err)
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.poller.Run(runCtx)
	}()

	if d.watcher != nil {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			if err := d.watcher.Run(runCtx); err != nil {
				d.logger.Warn("inbox watcher stopped",
					logging.Error(err),
					logging.String(logging.FieldErrorHint, "polling continues without watch events"),
				)
			}
		}()
	}

	d.running.Store(true)
	d.logger.Info("archivist daemon started", logging.String("lock", d.lockPath))
	return nil
}

// Stop halts background processing and releases the instance lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.workflow.Stop()
	d.wg.Wait()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("archivist daemon stopped")
}

// Close stops the daemon and releases held resources.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Status reports the daemon and workflow state.
func (d *Daemon) Status(ctx context.Context) Status {
	return Status{
		Running:      d.running.Load(),
		Workflow:     d.workflow.Status(ctx),
		DatabasePath: d.cfg.DatabasePath(),
		LockFilePath: d.lockPath,
	}
}
