package main

import (
	"log/slog"

	"archivist/internal/config"
	"archivist/internal/daemon"
	"archivist/internal/inference"
	"archivist/internal/ingest"
	"archivist/internal/pipeline"
	"archivist/internal/remote"
	"archivist/internal/store"
	"archivist/internal/workflow"
)

func buildDaemon(cfg *config.Config, st *store.Store, logger *slog.Logger) (*daemon.Daemon, error) {
	source, err := remote.NewFS(cfg.Paths.RemoteRoot)
	if err != nil {
		return nil, err
	}

	scheduler := inference.NewSchedulerFromConfig(cfg, logger)

	manager := workflow.NewManager(cfg, st, logger)
	manager.ConfigureStages(workflow.StageSet{
		Enricher:         pipeline.NewEnricher(cfg, st, logger),
		Resolver:         pipeline.NewResolver(cfg, st, logger),
		Analyzer:         pipeline.NewAnalyzer(cfg, st, scheduler, logger),
		Finalizer:        pipeline.NewFinalizer(cfg, st, source, logger),
		InferenceSession: scheduler.Session(),
	})

	poller := ingest.NewPoller(cfg, st, source, manager, logger)
	watcher := ingest.NewWatcher(cfg.Paths.RemoteRoot, poller, logger)

	return daemon.New(cfg, st, logger, manager, poller, watcher)
}
