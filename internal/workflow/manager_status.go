package workflow

import (
	"context"

	"archivist/internal/logging"
	"archivist/internal/stage"
	"archivist/internal/store"
)

// StatusSummary represents lightweight workflow diagnostics.
type StatusSummary struct {
	Running            bool
	LastError          string
	LastAsset          *store.Asset
	QueueStats         map[store.Status]int
	StageHealth        map[string]stage.Health
	PeakModelResidency int
}

// Status returns the latest workflow information.
func (m *Manager) Status(ctx context.Context) StatusSummary {
	m.mu.RLock()
	running := m.running
	lastErr := m.lastErr
	lastAsset := m.lastAsset
	session := m.session
	stageSet := make([]pipelineStage, 0)
	for _, kind := range m.laneOrder {
		lane := m.lanes[kind]
		if lane == nil {
			continue
		}
		stageSet = append(stageSet, lane.stages...)
	}
	m.mu.RUnlock()

	stats, err := m.store.Stats(ctx)
	if err != nil && m.logger != nil {
		m.logger.Warn("failed to read queue stats", logging.Error(err))
	}

	health := make(map[string]stage.Health, len(stageSet))
	for _, stg := range stageSet {
		handler := stg.handler
		if handler == nil {
			continue
		}
		health[stg.name] = handler.HealthCheck(ctx)
	}

	summary := StatusSummary{Running: running, QueueStats: stats, StageHealth: health}
	if lastErr != nil {
		summary.LastError = lastErr.Error()
	}
	if lastAsset != nil {
		cp := *lastAsset
		summary.LastAsset = &cp
	}
	if session != nil {
		summary.PeakModelResidency = session.PeakResidency()
	}
	return summary
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}

func (m *Manager) setLastAsset(asset *store.Asset) {
	m.mu.Lock()
	if asset != nil {
		cp := *asset
		m.lastAsset = &cp
	} else {
		m.lastAsset = nil
	}
	m.mu.Unlock()
}
