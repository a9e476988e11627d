package ingest

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"archivist/internal/logging"
)

// Watcher nudges the poller when files land in the inbox, cutting the
// latency between an upload and its first processing to near zero. Polling
// remains the source of truth; missed events only cost one poll interval.
type Watcher struct {
	inboxRoot string
	poller    *Poller
	logger    *slog.Logger
}

// NewWatcher builds a watcher over the INBOX tree of a local remote root.
func NewWatcher(remoteRoot string, poller *Poller, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Watcher{
		inboxRoot: filepath.Join(remoteRoot, "INBOX"),
		poller:    poller,
		logger:    logging.NewComponentLogger(logger, "inbox-watch"),
	}
}

// Run watches the inbox until the context is cancelled. New contributor
// folders are picked up as they appear.
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(w.inboxRoot); err != nil {
		return err
	}
	entries, err := os.ReadDir(w.inboxRoot)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() {
			if err := watcher.Add(filepath.Join(w.inboxRoot, entry.Name())); err != nil {
				w.logger.Warn("failed to watch contributor folder",
					logging.String("path", entry.Name()),
					logging.Error(err),
				)
			}
		}
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := watcher.Add(event.Name); err != nil {
						w.logger.Warn("failed to watch new folder",
							logging.String("path", event.Name),
							logging.Error(err),
						)
					}
					continue
				}
			}
			if event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				w.poller.Notify()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("inbox watch error", logging.Error(err))
		}
	}
}
