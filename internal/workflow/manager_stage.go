package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"archivist/internal/logging"
	"archivist/internal/stage"
	"archivist/internal/store"
)

func (m *Manager) processAsset(ctx context.Context, lane *laneState, laneLogger *slog.Logger, asset *store.Asset) error {
	stg, ok := lane.stageForStatus(asset.Status)
	if !ok {
		if laneLogger == nil {
			laneLogger = m.logger
		}
		if laneLogger == nil {
			laneLogger = logging.NewNop()
		}
		laneLogger.Warn("no stage configured for status", logging.String("status", string(asset.Status)))
		m.waitForAssetOrShutdown(ctx, lane)
		return nil
	}

	requestID := uuid.NewString()
	stageCtx := withStageContext(ctx, lane, stg.name, asset, requestID)
	stageLogger := m.stageLogger(stageCtx, laneLogger, asset)
	if aware, ok := stg.handler.(loggerAware); ok {
		aware.SetLogger(stageLogger)
	}

	if err := m.transitionToProcessing(stageCtx, stg.processingStatus, asset); err != nil {
		stageLogger.Error("failed to transition asset to processing", logging.Error(err))
		m.setLastError(err)
		return err
	}

	return m.executeStage(stageCtx, stageLogger, stg, asset)
}

func (m *Manager) executeStage(ctx context.Context, stageLogger *slog.Logger, stg pipelineStage, asset *store.Asset) error {
	stageStart := time.Now()
	stageLogger.Info(
		"stage started",
		logging.String(logging.FieldEventType, "stage_start"),
		logging.String("processing_status", string(stg.processingStatus)),
		logging.String("filename", asset.OriginalFilename),
		logging.String("media_kind", string(asset.MediaKind)),
	)

	handler := stg.handler
	if handler == nil {
		stageLogger.Warn("missing stage handler", logging.String("stage", stg.name))
		asset.SetFailed(fmt.Sprintf("stage %s missing handler", stg.name))
		if err := m.store.Update(ctx, asset); err != nil {
			stageLogger.Error("failed to persist missing handler failure", logging.Error(err))
		}
		err := errors.New("stage handler unavailable")
		m.setLastError(err)
		return err
	}

	if err := handler.Prepare(ctx, asset); err != nil {
		m.handleStageFailure(ctx, stg.name, asset, err)
		m.setLastError(err)
		return err
	}
	if err := m.store.Update(ctx, asset); err != nil {
		wrapped := fmt.Errorf("persist stage preparation: %w", err)
		stageLogger.Error("failed to persist stage preparation", logging.Error(wrapped))
		m.setLastError(wrapped)
		return wrapped
	}

	execErr := m.executeWithHeartbeat(ctx, handler, asset)
	if execErr != nil {
		if errors.Is(execErr, context.Canceled) {
			stageLogger.Debug("stage interrupted by shutdown")
			return execErr
		}
		m.handleStageFailure(ctx, stg.name, asset, execErr)
		m.setLastError(execErr)
		return execErr
	}

	// Handlers may steer the asset themselves, for example the resolver
	// jumps duplicates straight past inference. Only assets still in the
	// processing status advance along the default edge.
	if asset.Status == stg.processingStatus || asset.Status == "" {
		asset.Status = stg.doneStatus
	}
	asset.LastHeartbeat = nil
	if err := m.store.Update(ctx, asset); err != nil {
		wrapped := fmt.Errorf("persist stage result: %w", err)
		stageLogger.Error("failed to persist stage result", logging.Error(wrapped))
		m.setLastError(wrapped)
		return wrapped
	}
	stageLogger.Info(
		"stage completed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.String("next_status", string(asset.Status)),
		logging.Duration("stage_duration", time.Since(stageStart)),
	)
	m.setLastAsset(asset)
	return nil
}

func (m *Manager) executeWithHeartbeat(ctx context.Context, handler stage.Handler, asset *store.Asset) error {
	hbCtx, hbCancel := context.WithCancel(ctx)
	var hbWG sync.WaitGroup
	hbWG.Add(1)
	go m.heartbeat.StartLoop(hbCtx, &hbWG, asset.ID)

	execErr := handler.Execute(ctx, asset)
	hbCancel()
	hbWG.Wait()
	return execErr
}

func (m *Manager) transitionToProcessing(ctx context.Context, processing store.Status, asset *store.Asset) error {
	if processing == "" {
		return errors.New("processing status must not be empty")
	}

	now := time.Now().UTC()
	asset.Status = processing
	asset.LastHeartbeat = &now
	if err := m.store.Update(ctx, asset); err != nil {
		return fmt.Errorf("persist processing transition: %w", err)
	}
	m.setLastAsset(asset)
	return nil
}
