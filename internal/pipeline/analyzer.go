package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"archivist/internal/config"
	"archivist/internal/fileutil"
	"archivist/internal/inference"
	"archivist/internal/logging"
	"archivist/internal/stage"
	"archivist/internal/store"
)

// Analyzer runs Phase 2 through the inference scheduler and persists
// whatever the stages produced. Stage failures are already isolated by the
// scheduler; the analyzer only fails on persistence problems.
type Analyzer struct {
	cfg       *config.Config
	store     *store.Store
	scheduler *inference.Scheduler
	logger    *slog.Logger
}

// NewAnalyzer constructs the Phase 2 handler around scheduler.
func NewAnalyzer(cfg *config.Config, st *store.Store, scheduler *inference.Scheduler, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Analyzer{
		cfg:       cfg,
		store:     st,
		scheduler: scheduler,
		logger:    logging.NewComponentLogger(logger, "analyzer"),
	}
}

func (a *Analyzer) SetLogger(logger *slog.Logger) {
	if logger != nil {
		a.logger = logger
	}
}

func (a *Analyzer) Prepare(ctx context.Context, asset *store.Asset) error {
	return nil
}

func (a *Analyzer) Execute(ctx context.Context, asset *store.Asset) error {
	if err := stage.RequireLocalFile(asset); err != nil {
		asset.RecordError(fmt.Sprintf("analyze: %v", err))
		return nil
	}

	outcomes := a.scheduler.Process(ctx, inference.Request{
		Asset:     asset,
		LocalPath: asset.LocalPath,
	})
	if err := ctx.Err(); err != nil {
		return err
	}

	for _, outcome := range outcomes {
		if outcome.Skipped || outcome.Err != nil {
			continue
		}
		if err := a.persistOutcome(ctx, asset, outcome); err != nil {
			return err
		}
	}
	return nil
}

func (a *Analyzer) persistOutcome(ctx context.Context, asset *store.Asset, outcome inference.StageOutcome) error {
	result := outcome.Result
	switch outcome.Stage {
	case "faces":
		if len(result.Faces) == 0 {
			return nil
		}
		if err := a.store.ReplaceFaces(ctx, asset.ID, result.Faces); err != nil {
			return fmt.Errorf("persist faces: %w", err)
		}
	case "caption":
		asset.Caption = result.Caption
	case "embedding":
		if len(result.EmbeddingVector) == 0 {
			return nil
		}
		id, err := a.store.InsertEmbedding(ctx, &store.Embedding{
			AssetID: asset.ID,
			Model:   result.EmbeddingModel,
			Vector:  result.EmbeddingVector,
		})
		if err != nil {
			return fmt.Errorf("persist embedding: %w", err)
		}
		asset.EmbeddingID = id
	case "transcript":
		if result.Transcript == "" {
			return nil
		}
		asset.Transcript = result.Transcript
		path := filepath.Join(a.cfg.TranscriptCacheDir(), asset.ID+".txt")
		if err := fileutil.WriteFileAtomic(path, []byte(result.Transcript), 0o644); err != nil {
			asset.RecordError(fmt.Sprintf("transcript: cache write: %v", err))
		}
	}
	return nil
}

func (a *Analyzer) HealthCheck(ctx context.Context) stage.Health {
	if !a.cfg.Inference.Enabled {
		return stage.Healthy("analyzer")
	}
	if a.scheduler.Session().State() != inference.StateUnloaded {
		return stage.Unhealthy("analyzer", "model resident outside a stage run")
	}
	return stage.Healthy("analyzer")
}
