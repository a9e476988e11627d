package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"archivist/internal/config"
	"archivist/internal/logging"
	"archivist/internal/remote"
	"archivist/internal/store"
)

// claimConcurrency bounds parallel claim/download work within one cycle.
const claimConcurrency = 4

// Waker is nudged after a cycle that ingested at least one file, so the
// workflow picks up new assets without waiting for its own poll tick.
type Waker interface {
	Wake()
}

// batchContext carries manifest-derived context onto each ingested asset.
type batchContext struct {
	batchID   string
	eventName string
	notes     string
}

// Poller drives the inbox ingestion loop.
type Poller struct {
	cfg    *config.Config
	store  *store.Store
	source remote.Source
	waker  Waker
	logger *slog.Logger
	wakeCh chan struct{}
}

// NewPoller constructs a poller. waker may be nil.
func NewPoller(cfg *config.Config, st *store.Store, source remote.Source, waker Waker, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Poller{
		cfg:    cfg,
		store:  st,
		source: source,
		waker:  waker,
		logger: logging.NewComponentLogger(logger, "ingest"),
		wakeCh: make(chan struct{}, 1),
	}
}

// Notify requests an early poll. Safe to call from any goroutine.
func (p *Poller) Notify() {
	select {
	case p.wakeCh <- struct{}{}:
	default:
	}
}

// Run polls the inbox until the context is cancelled.
func (p *Poller) Run(ctx context.Context) {
	for {
		ingested, err := p.PollOnce(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			p.logger.Error("poll cycle failed",
				logging.Error(err),
				logging.String(logging.FieldEventType, "ingest_poll_failed"),
				logging.String(logging.FieldErrorHint, "check remote archive availability"),
			)
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Duration(p.cfg.Worker.ErrorRetryInterval) * time.Second):
			}
			continue
		}
		if ingested > 0 {
			// More files may be waiting past the batch-size cap.
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-p.wakeCh:
		case <-time.After(time.Duration(p.cfg.Worker.PollInterval) * time.Second):
		}
	}
}

// PollOnce runs a single ingestion cycle and reports how many files were
// claimed and recorded.
func (p *Poller) PollOnce(ctx context.Context) (int, error) {
	batches, err := p.registerManifests(ctx)
	if err != nil {
		return 0, err
	}

	files, err := p.source.ListInbox(ctx)
	if err != nil {
		return 0, fmt.Errorf("list inbox: %w", err)
	}
	if limit := p.cfg.Worker.BatchSize; limit > 0 && len(files) > limit {
		files = files[:limit]
	}
	if len(files) == 0 {
		return 0, nil
	}

	var group errgroup.Group
	group.SetLimit(claimConcurrency)
	results := make([]int, len(files))
	for i, file := range files {
		i, file := i, file
		group.Go(func() error {
			ingested, err := p.ingestFile(ctx, file, batches[batchKey(file.Contributor, file.Name)])
			if err != nil {
				return err
			}
			if ingested {
				results[i] = 1
			}
			return nil
		})
	}
	err = group.Wait()

	total := 0
	for _, n := range results {
		total += n
	}
	if total > 0 && p.waker != nil {
		p.waker.Wake()
	}
	return total, err
}

// registerManifests ensures a batch row per manifest and indexes batch
// context by contributor and filename.
func (p *Poller) registerManifests(ctx context.Context) (map[string]batchContext, error) {
	manifests, err := p.source.ListManifests(ctx)
	if err != nil {
		return nil, fmt.Errorf("list manifests: %w", err)
	}

	index := make(map[string]batchContext)
	for _, manifest := range manifests {
		batch, err := p.store.EnsureBatch(ctx, &store.Batch{
			ID:          manifest.BatchID,
			Contributor: manifest.ContributorToken,
			Decade:      manifest.Decade,
			EventName:   manifest.EventName,
			Notes:       manifest.Notes,
		})
		if err != nil {
			return nil, fmt.Errorf("ensure batch %s: %w", manifest.BatchID, err)
		}
		bctx := batchContext{
			batchID:   batch.ID,
			eventName: manifest.EventName,
			notes:     manifest.Notes,
		}
		for _, mf := range manifest.Files {
			index[batchKey(manifest.ContributorToken, mf.Filename)] = bctx
		}
	}
	return index, nil
}

func (p *Poller) ingestFile(ctx context.Context, file remote.File, bctx batchContext) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	// Re-listing between claim and record must not produce a second asset.
	if existing, err := p.store.FindByRemoteID(ctx, file.ID); err != nil {
		return false, fmt.Errorf("check remote id %s: %w", file.ID, err)
	} else if existing != nil {
		return false, nil
	}

	claimedName := fmt.Sprintf("%s_%s", uuid.NewString()[:8], file.Name)
	claimed, err := p.source.Claim(ctx, file, claimedName)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			p.logger.Debug("file claimed by another worker",
				logging.String("remote_id", file.ID),
			)
			return false, nil
		}
		return false, fmt.Errorf("claim %s: %w", file.ID, err)
	}

	localPath := filepath.Join(p.cfg.DownloadDir(), claimedName)
	if err := p.source.Download(ctx, claimed, localPath); err != nil {
		p.releaseClaim(ctx, claimed, file)
		return false, fmt.Errorf("download %s: %w", file.ID, err)
	}

	asset, err := p.store.InsertAsset(ctx, &store.Asset{
		RemoteFileID:     file.ID,
		RemotePath:       claimed.Path,
		OriginalFilename: file.Name,
		Contributor:      file.Contributor,
		BatchID:          bctx.batchID,
		MediaKind:        KindForFilename(file.Name),
		SizeBytes:        file.SizeBytes,
		LocalPath:        localPath,
		EventName:        bctx.eventName,
		Notes:            bctx.notes,
		IsMaster:         true,
		UploadedAt:       file.ModTime,
	})
	if err != nil {
		p.releaseClaim(ctx, claimed, file)
		return false, fmt.Errorf("record asset %s: %w", file.ID, err)
	}

	if bctx.batchID != "" {
		if err := p.store.BatchFileRecorded(ctx, bctx.batchID, file.SizeBytes); err != nil {
			p.logger.Warn("failed to record batch file",
				logging.Error(err),
				logging.String(logging.FieldBatchID, bctx.batchID),
				logging.String(logging.FieldAssetID, asset.ID),
			)
		}
	}

	p.logger.Info("file ingested",
		logging.String(logging.FieldAssetID, asset.ID),
		logging.String("filename", file.Name),
		logging.String("contributor", file.Contributor),
		logging.String("media_kind", string(asset.MediaKind)),
		logging.Int64("size_bytes", file.SizeBytes),
		logging.String(logging.FieldEventType, "file_ingested"),
	)
	return true, nil
}

// releaseClaim puts a claimed file back in the inbox after a failed ingest.
// Without the rollback the file would sit in PROCESSING with no asset row
// and no cycle would ever pick it up again.
func (p *Poller) releaseClaim(ctx context.Context, claimed, original remote.File) {
	if err := p.source.Release(context.WithoutCancel(ctx), claimed, original); err != nil {
		p.logger.Error("failed to return claimed file to inbox",
			logging.Error(err),
			logging.String("remote_id", original.ID),
			logging.String(logging.FieldEventType, "ingest_release_failed"),
			logging.String(logging.FieldErrorHint, "move the file out of PROCESSING back into the inbox manually"),
		)
		return
	}
	p.logger.Warn("returned claimed file to inbox after failed ingest",
		logging.String("remote_id", original.ID),
	)
}

func batchKey(contributor, filename string) string {
	return strings.ToLower(strings.TrimSpace(contributor)) + "/" + strings.TrimSpace(filename)
}
