package pipeline

import (
	"context"
	"log/slog"

	"archivist/internal/config"
	"archivist/internal/dedupe"
	"archivist/internal/logging"
	"archivist/internal/services"
	"archivist/internal/stage"
	"archivist/internal/store"
)

// Resolver checks each enriched asset against the archive's masters. A
// detected duplicate skips Phase 2 entirely; inference on a copy would
// only burn accelerator time to produce metadata the master already has.
type Resolver struct {
	store    *store.Store
	resolver *dedupe.Resolver
	logger   *slog.Logger
}

// NewResolver constructs the duplicate resolution handler.
func NewResolver(cfg *config.Config, st *store.Store, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = logging.NewNop()
	}
	componentLogger := logging.NewComponentLogger(logger, "resolver")
	return &Resolver{
		store:    st,
		resolver: dedupe.NewResolver(st, cfg.Duplicates.PhashThreshold, componentLogger),
		logger:   componentLogger,
	}
}

func (r *Resolver) SetLogger(logger *slog.Logger) {
	if logger != nil {
		r.logger = logger
	}
}

func (r *Resolver) Prepare(ctx context.Context, asset *store.Asset) error {
	return nil
}

func (r *Resolver) Execute(ctx context.Context, asset *store.Asset) error {
	match, err := r.resolver.Resolve(ctx, asset)
	if err != nil {
		return services.Wrap(services.ErrTransient, "resolver", "resolve",
			"duplicate lookup failed", err)
	}
	if match == nil {
		return nil
	}

	if err := r.resolver.Apply(ctx, asset, match); err != nil {
		return services.Wrap(services.ErrTransient, "resolver", "record",
			"persist duplicate relationship", err)
	}

	// Duplicates go straight to finalization.
	asset.Status = store.StatusAnalyzed
	return nil
}

func (r *Resolver) HealthCheck(ctx context.Context) stage.Health {
	return stage.Healthy("resolver")
}
