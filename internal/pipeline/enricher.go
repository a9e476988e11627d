package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"

	"archivist/internal/config"
	"archivist/internal/identity"
	"archivist/internal/logging"
	"archivist/internal/media/exifdata"
	"archivist/internal/media/ffprobe"
	"archivist/internal/media/preview"
	"archivist/internal/sidecar"
	"archivist/internal/stage"
	"archivist/internal/store"
)

// Enricher runs Phase 1: content identity, capture metadata, and browse
// artifacts. Everything here is CPU-bound and deterministic. Unreadable
// input is recorded on the asset and forwarded straight to finalization;
// it never fails the stage.
type Enricher struct {
	cfg     *config.Config
	store   *store.Store
	preview *preview.Generator
	logger  *slog.Logger
}

// NewEnricher constructs the Phase 1 handler.
func NewEnricher(cfg *config.Config, st *store.Store, logger *slog.Logger) *Enricher {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Enricher{
		cfg:     cfg,
		store:   st,
		preview: preview.NewGenerator(cfg.FFmpegBinary(), cfg.Media.ThumbnailSize, cfg.Media.PosterSeconds),
		logger:  logging.NewComponentLogger(logger, "enricher"),
	}
}

// SetLogger swaps the handler's logger; the manager injects a stage-scoped
// one per asset.
func (e *Enricher) SetLogger(logger *slog.Logger) {
	if logger != nil {
		e.logger = logger
	}
}

func (e *Enricher) Prepare(ctx context.Context, asset *store.Asset) error {
	return nil
}

func (e *Enricher) Execute(ctx context.Context, asset *store.Asset) error {
	if err := stage.RequireLocalFile(asset); err != nil {
		return e.abandon(asset, fmt.Sprintf("enrich: %v", err))
	}

	// The content hash is computed exactly once per asset, on first
	// enrichment. Re-runs keep the original identity.
	if asset.SHA256 == "" {
		sha, err := identity.FileSHA256(asset.LocalPath)
		if err != nil {
			return e.abandon(asset, fmt.Sprintf("enrich: content hash: %v", err))
		}
		asset.SHA256 = sha
	}

	switch asset.MediaKind {
	case store.MediaImage:
		e.enrichImage(asset)
	case store.MediaVideo, store.MediaAudio:
		e.enrichContainer(ctx, asset)
	default:
		return e.abandon(asset, fmt.Sprintf("enrich: unsupported media kind %q", asset.MediaKind))
	}

	asset.EstimatedDecade = exifdata.EstimateDecade(asset.CaptureAt, asset.OriginalFilename)
	return nil
}

func (e *Enricher) HealthCheck(ctx context.Context) stage.Health {
	if _, err := exec.LookPath(e.cfg.FFprobeBinary()); err != nil {
		return stage.Unhealthy("enricher", fmt.Sprintf("ffprobe unavailable: %v", err))
	}
	return stage.Healthy("enricher")
}

// abandon records the failure and jumps the asset to the finalization
// stage, where the router will send it to low confidence.
func (e *Enricher) abandon(asset *store.Asset, message string) error {
	asset.RecordError(message)
	asset.Status = store.StatusAnalyzed
	e.logger.Warn("asset abandoned during enrichment",
		slog.String(logging.FieldAssetID, asset.ID),
		slog.String("reason", message),
	)
	return nil
}

func (e *Enricher) enrichImage(asset *store.Asset) {
	// Fingerprint failure only degrades duplicate detection, it is not an
	// asset error.
	if asset.Phash == "" {
		if phash, err := identity.ImagePhash(asset.LocalPath); err == nil {
			asset.Phash = phash
		} else {
			e.logger.Debug("perceptual fingerprint unavailable",
				slog.String(logging.FieldAssetID, asset.ID),
				slog.Any("error", err),
			)
		}
	}

	meta, err := exifdata.Extract(asset.LocalPath)
	if err == nil {
		asset.CaptureAt = meta.CaptureAt
		asset.Latitude = meta.Latitude
		asset.Longitude = meta.Longitude

		block := sidecar.ExifData{
			CameraMake:   meta.CameraMake,
			CameraModel:  meta.CameraModel,
			DateTaken:    meta.CaptureAt,
			GPSLatitude:  meta.Latitude,
			GPSLongitude: meta.Longitude,
			Orientation:  meta.Orientation,
		}
		if encoded, err := json.Marshal(block); err == nil {
			asset.ExifJSON = string(encoded)
		}
	}

	thumbPath := filepath.Join(e.cfg.ThumbnailCacheDir(), asset.ID+".jpg")
	if err := e.preview.Thumbnail(asset.LocalPath, thumbPath); err != nil {
		asset.RecordError(fmt.Sprintf("enrich: thumbnail: %v", err))
	} else {
		asset.ThumbnailPath = thumbPath
	}
}

func (e *Enricher) enrichContainer(ctx context.Context, asset *store.Asset) {
	result, err := ffprobe.Inspect(ctx, e.cfg.FFprobeBinary(), asset.LocalPath)
	if err != nil {
		asset.RecordError(fmt.Sprintf("enrich: probe: %v", err))
		return
	}

	width, height := result.Dimensions()
	block := sidecar.VideoMetadata{
		DurationSeconds: result.DurationSeconds(),
		Width:           width,
		Height:          height,
		FPS:             result.FrameRate(),
	}
	if stream := result.VideoStream(); stream != nil {
		block.Codec = stream.CodecName
	}
	if encoded, err := json.Marshal(block); err == nil {
		asset.VideoJSON = string(encoded)
	}
	if asset.CaptureAt == nil {
		asset.CaptureAt = result.CreationTime()
	}

	if asset.MediaKind == store.MediaVideo {
		posterPath := filepath.Join(e.cfg.PosterCacheDir(), asset.ID+".jpg")
		if err := e.preview.PosterFrame(ctx, asset.LocalPath, posterPath); err != nil {
			asset.RecordError(fmt.Sprintf("enrich: poster: %v", err))
		} else {
			asset.PosterPath = posterPath
		}
	}
}
