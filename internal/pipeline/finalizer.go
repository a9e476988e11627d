package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"archivist/internal/config"
	"archivist/internal/logging"
	"archivist/internal/remote"
	"archivist/internal/router"
	"archivist/internal/services"
	"archivist/internal/sidecar"
	"archivist/internal/stage"
	"archivist/internal/store"
)

// Finalizer closes out an asset: it decides the terminal status, writes
// the sidecar in the required order, mirrors browse artifacts to the
// remote metadata area, and moves the original into its holding folder.
type Finalizer struct {
	cfg    *config.Config
	store  *store.Store
	source remote.Source
	router *router.Router
	writer *sidecar.Writer
	logger *slog.Logger
}

// NewFinalizer constructs the finalization handler. source may be nil for
// local-only one-shot runs; routing is then skipped.
func NewFinalizer(cfg *config.Config, st *store.Store, source remote.Source, logger *slog.Logger) *Finalizer {
	if logger == nil {
		logger = logging.NewNop()
	}
	componentLogger := logging.NewComponentLogger(logger, "finalizer")
	f := &Finalizer{
		cfg:    cfg,
		store:  st,
		source: source,
		writer: sidecar.NewWriter(st, source, cfg.SidecarCacheDir(), componentLogger),
		logger: componentLogger,
	}
	if source != nil {
		f.router = router.New(source, logger)
	}
	return f
}

func (f *Finalizer) SetLogger(logger *slog.Logger) {
	if logger != nil {
		f.logger = logger
	}
}

func (f *Finalizer) Prepare(ctx context.Context, asset *store.Asset) error {
	return nil
}

func (f *Finalizer) Execute(ctx context.Context, asset *store.Asset) error {
	decision := router.Decide(asset)
	asset.Status = decision.Status

	f.uploadArtifacts(ctx, asset)

	faces, err := f.store.FacesForAsset(ctx, asset.ID)
	if err != nil {
		return services.Wrap(services.ErrTransient, "finalizer", "faces", "load detected faces", err)
	}

	doc, err := sidecar.FromAsset(asset, faces)
	if err != nil {
		return err
	}
	if err := f.writer.Write(ctx, doc, asset); err != nil {
		return err
	}

	if f.router != nil && asset.RemotePath != "" {
		file := remote.File{
			ID:          asset.RemoteFileID,
			Name:        asset.OriginalFilename,
			Contributor: asset.Contributor,
			Path:        asset.RemotePath,
		}
		if _, err := f.router.Route(ctx, asset, file); err != nil {
			return services.Wrap(services.ErrTransient, "finalizer", "route", "move original to holding", err)
		}
		if err := f.store.Update(ctx, asset); err != nil {
			return services.Wrap(services.ErrTransient, "finalizer", "persist", "persist routed path", err)
		}
	}

	if asset.BatchID != "" {
		if _, err := f.store.BatchFileProcessed(ctx, asset.BatchID); err != nil {
			f.logger.Warn("batch progress update failed",
				slog.String(logging.FieldAssetID, asset.ID),
				slog.String(logging.FieldBatchID, asset.BatchID),
				slog.Any("error", err),
			)
		}
	}

	f.logger.Info("asset finalized",
		slog.String(logging.FieldAssetID, asset.ID),
		slog.String("status", string(asset.Status)),
		slog.String("folder", string(decision.Folder)),
	)
	return nil
}

func (f *Finalizer) HealthCheck(ctx context.Context) stage.Health {
	if f.source == nil {
		return stage.Healthy("finalizer")
	}
	if _, err := os.Stat(f.cfg.Paths.RemoteRoot); err != nil {
		return stage.Unhealthy("finalizer", fmt.Sprintf("remote root unavailable: %v", err))
	}
	return stage.Healthy("finalizer")
}

// uploadArtifacts mirrors thumbnails, posters, and transcripts to the
// remote metadata area. Mirror failures degrade the remote browse
// experience but never fail the asset; the local cache keeps the truth.
func (f *Finalizer) uploadArtifacts(ctx context.Context, asset *store.Asset) {
	if f.source == nil {
		return
	}
	type artifact struct {
		kind remote.MetadataKind
		path string
	}
	artifacts := []artifact{
		{remote.MetadataThumbnails, asset.ThumbnailPath},
		{remote.MetadataPosters, asset.PosterPath},
	}
	if asset.Transcript != "" {
		artifacts = append(artifacts, artifact{
			remote.MetadataTranscripts,
			filepath.Join(f.cfg.TranscriptCacheDir(), asset.ID+".txt"),
		})
	}
	for _, item := range artifacts {
		if item.path == "" {
			continue
		}
		if _, err := os.Stat(item.path); err != nil {
			continue
		}
		name := asset.ID + filepath.Ext(item.path)
		if err := f.source.PutMetadata(ctx, item.kind, name, item.path); err != nil {
			f.logger.Warn("artifact mirror failed",
				slog.String(logging.FieldAssetID, asset.ID),
				slog.String("kind", string(item.kind)),
				slog.Any("error", err),
			)
		}
	}
}
