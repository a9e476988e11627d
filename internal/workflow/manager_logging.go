package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"archivist/internal/logging"
	"archivist/internal/services"
	"archivist/internal/store"
)

func (m *Manager) laneLogger(lane *laneState) *slog.Logger {
	if m.logger == nil {
		return logging.NewNop()
	}
	name := lane.name
	if name == "" {
		name = string(lane.kind)
	}
	return m.logger.With(
		logging.String(logging.FieldComponent, fmt.Sprintf("workflow-%s-runner", name)),
		logging.String(logging.FieldLane, name),
	)
}

func (m *Manager) stageLogger(ctx context.Context, laneLogger *slog.Logger, asset *store.Asset) *slog.Logger {
	base := laneLogger
	if base == nil {
		base = m.logger
	}
	if base == nil {
		base = logging.NewNop()
	}
	if asset != nil {
		base = base.With(logging.String(logging.FieldAssetID, asset.ID))
		if asset.BatchID != "" {
			base = base.With(logging.String(logging.FieldBatchID, asset.BatchID))
		}
	}
	return logging.WithContext(ctx, base)
}

func withStageContext(ctx context.Context, lane *laneState, stageName string, asset *store.Asset, requestID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if asset != nil {
		ctx = services.WithAssetID(ctx, asset.ID)
	}
	if stageName != "" {
		ctx = services.WithStage(ctx, stageName)
	}
	if lane != nil {
		laneLabel := strings.TrimSpace(lane.name)
		if laneLabel == "" {
			laneLabel = string(lane.kind)
		}
		ctx = services.WithLane(ctx, laneLabel)
	}
	if requestID != "" {
		ctx = services.WithRequestID(ctx, requestID)
	}
	return ctx
}
