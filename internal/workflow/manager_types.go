package workflow

import (
	"log/slog"

	"archivist/internal/inference"
	"archivist/internal/stage"
	"archivist/internal/store"
)

// StageSet bundles the concrete workflow handlers the manager orchestrates.
type StageSet struct {
	Enricher  stage.Handler
	Resolver  stage.Handler
	Analyzer  stage.Handler
	Finalizer stage.Handler

	// InferenceSession, when set, is surfaced in status summaries so the
	// peak model residency counter is observable from the CLI.
	InferenceSession *inference.Session
}

type pipelineStage struct {
	name             string
	handler          stage.Handler
	startStatus      store.Status
	processingStatus store.Status
	doneStatus       store.Status
}

type laneKind string

const (
	laneForeground laneKind = "foreground"
	laneInference  laneKind = "inference"
)

type laneState struct {
	kind               laneKind
	name               string
	stages             []pipelineStage
	statusOrder        []store.Status
	stageByStart       map[store.Status]pipelineStage
	processingStatuses []store.Status
	logger             *slog.Logger
	runReclaimer       bool
	wakeCh             chan struct{}
}

func (l *laneState) finalize() {
	if l == nil {
		return
	}
	l.wakeCh = make(chan struct{}, 1)
	l.stageByStart = make(map[store.Status]pipelineStage, len(l.stages))
	l.statusOrder = make([]store.Status, 0, len(l.stages))
	seenProcessing := make(map[store.Status]struct{})
	for _, stg := range l.stages {
		l.stageByStart[stg.startStatus] = stg
		l.statusOrder = append(l.statusOrder, stg.startStatus)
		if stg.processingStatus != "" {
			if _, ok := seenProcessing[stg.processingStatus]; !ok {
				l.processingStatuses = append(l.processingStatuses, stg.processingStatus)
				seenProcessing[stg.processingStatus] = struct{}{}
			}
		}
	}
}

func (l *laneState) stageForStatus(status store.Status) (pipelineStage, bool) {
	if l == nil {
		return pipelineStage{}, false
	}
	stg, ok := l.stageByStart[status]
	return stg, ok
}

func (l *laneState) wake() {
	if l == nil || l.wakeCh == nil {
		return
	}
	select {
	case l.wakeCh <- struct{}{}:
	default:
	}
}

// loggerAware lets handlers receive the per-asset stage logger.
type loggerAware interface {
	SetLogger(*slog.Logger)
}
