// Package router decides where a finished asset's original lands. The
// decision is a pure function of what processing produced; the only side
// effect is a single move into a holding folder. Originals are never
// deleted, on any path.
package router

import (
	"context"
	"fmt"
	"log/slog"

	"archivist/internal/logging"
	"archivist/internal/remote"
	"archivist/internal/store"
)

// Decision pairs the terminal store status with the holding destination.
type Decision struct {
	Status store.Status
	Folder remote.HoldingFolder
}

// Decide maps an asset's outcome to its terminal location:
//
//   - a detected duplicate goes to PossibleDuplicates for curator
//     confirmation
//   - errors with nothing usable to review go to LowConfidence
//   - everything else goes to NeedsReview, the normal curation queue
func Decide(asset *store.Asset) Decision {
	if asset.DuplicateOf != "" {
		return Decision{Status: store.StatusDuplicate, Folder: remote.HoldingPossibleDuplicates}
	}
	if len(asset.ProcessingErrors) > 0 && !hasUsableOutput(asset) {
		return Decision{Status: store.StatusError, Folder: remote.HoldingLowConfidence}
	}
	return Decision{Status: store.StatusNeedsReview, Folder: remote.HoldingNeedsReview}
}

// hasUsableOutput reports whether processing produced anything a curator
// could review: identity plus at least one derived artifact.
func hasUsableOutput(asset *store.Asset) bool {
	if asset.SHA256 == "" {
		return false
	}
	return asset.Caption != "" ||
		asset.Transcript != "" ||
		asset.EmbeddingID != "" ||
		asset.ThumbnailPath != "" ||
		asset.PosterPath != ""
}

// Router applies decisions against the remote contract.
type Router struct {
	source remote.Source
	logger *slog.Logger
}

// New returns a Router over source.
func New(source remote.Source, logger *slog.Logger) *Router {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Router{
		source: source,
		logger: logging.NewComponentLogger(logger, "router"),
	}
}

// Route decides the asset's destination, moves the remote file there, and
// updates the asset's status and remote path in memory. The caller owns
// persisting the row.
func (r *Router) Route(ctx context.Context, asset *store.Asset, file remote.File) (Decision, error) {
	decision := Decide(asset)

	routed, err := r.source.Route(ctx, file, decision.Folder)
	if err != nil {
		return decision, fmt.Errorf("router: %w", err)
	}

	asset.Status = decision.Status
	asset.RemotePath = routed.Path

	r.logger.Info("asset routed",
		slog.String(logging.FieldAssetID, asset.ID),
		slog.String("folder", string(decision.Folder)),
		slog.String("status", string(decision.Status)),
	)
	return decision, nil
}
