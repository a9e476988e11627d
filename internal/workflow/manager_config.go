package workflow

import (
	"archivist/internal/inference"
	"archivist/internal/store"
)

// ConfigureStages registers the concrete stage handlers the workflow will
// run. The foreground lane covers enrichment, duplicate resolution, and
// finalization; the inference lane owns the serial model stages so a slow
// model run never blocks ingestion of the next asset.
func (m *Manager) ConfigureStages(set StageSet) {
	foreground := &laneState{kind: laneForeground, name: "foreground"}
	background := &laneState{kind: laneInference, name: "inference"}

	if set.Enricher != nil {
		foreground.stages = append(foreground.stages, pipelineStage{
			name:             "enricher",
			handler:          set.Enricher,
			startStatus:      store.StatusUploaded,
			processingStatus: store.StatusEnriching,
			doneStatus:       store.StatusEnriched,
		})
	}
	if set.Resolver != nil {
		foreground.stages = append(foreground.stages, pipelineStage{
			name:             "resolver",
			handler:          set.Resolver,
			startStatus:      store.StatusEnriched,
			processingStatus: store.StatusResolving,
			doneStatus:       store.StatusResolved,
		})
	}
	if set.Analyzer != nil {
		background.stages = append(background.stages, pipelineStage{
			name:             "analyzer",
			handler:          set.Analyzer,
			startStatus:      store.StatusResolved,
			processingStatus: store.StatusAnalyzing,
			doneStatus:       store.StatusAnalyzed,
		})
	}
	if set.Finalizer != nil {
		foreground.stages = append(foreground.stages, pipelineStage{
			name:             "finalizer",
			handler:          set.Finalizer,
			startStatus:      store.StatusAnalyzed,
			processingStatus: store.StatusFinalizing,
			doneStatus:       store.StatusNeedsReview,
		})
	}

	lanes := make(map[laneKind]*laneState)
	order := make([]laneKind, 0, 2)

	if len(foreground.stages) > 0 {
		foreground.finalize()
		lanes[foreground.kind] = foreground
		order = append(order, foreground.kind)
	}
	if len(background.stages) > 0 {
		background.finalize()
		lanes[background.kind] = background
		order = append(order, background.kind)
	}

	for _, lane := range lanes {
		lane.runReclaimer = len(lane.processingStatuses) > 0
	}

	m.mu.Lock()
	m.lanes = lanes
	m.laneOrder = order
	m.session = set.InferenceSession
	m.mu.Unlock()
}

// Session reports the inference session registered with the stage set,
// or nil when inference is not configured.
func (m *Manager) Session() *inference.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session
}
