// Package dedupe decides whether a newly enriched asset is a copy of one
// already in the archive. Exact content-hash matches always win; perceptual
// matches apply to images only and are best-effort.
package dedupe

import (
	"context"
	"fmt"
	"log/slog"

	"archivist/internal/identity"
	"archivist/internal/logging"
	"archivist/internal/store"
)

// Match describes a detected duplicate relationship.
type Match struct {
	MasterID string
	Kind     store.SimilarityKind
	Score    float64
	Distance int
}

// Resolver checks assets against the store's existing masters.
type Resolver struct {
	store     *store.Store
	threshold int
	logger    *slog.Logger
}

// NewResolver returns a Resolver using the given perceptual distance
// threshold. Two image fingerprints within threshold bits are considered
// the same photograph.
func NewResolver(st *store.Store, threshold int, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Resolver{
		store:     st,
		threshold: threshold,
		logger:    logging.NewComponentLogger(logger, "dedupe"),
	}
}

// Resolve finds the best duplicate match for asset, or nil when the asset
// is unique. The exact-hash check always runs; the perceptual scan runs
// only for images with a fingerprint and degrades silently when it cannot,
// because duplicate detection must never fail an asset.
func (r *Resolver) Resolve(ctx context.Context, asset *store.Asset) (*Match, error) {
	if match, err := r.resolveExact(ctx, asset); err != nil {
		return nil, err
	} else if match != nil {
		return match, nil
	}

	if asset.MediaKind != store.MediaImage || asset.Phash == "" {
		return nil, nil
	}

	match, err := r.resolvePerceptual(ctx, asset)
	if err != nil {
		r.logger.Warn("perceptual scan degraded to exact-hash only",
			slog.String(logging.FieldAssetID, asset.ID),
			slog.Any("error", err),
		)
		return nil, nil
	}
	return match, nil
}

// Apply records the match: the asset is pointed at the master, demoted from
// master status, and the relationship is stored for curation.
func (r *Resolver) Apply(ctx context.Context, asset *store.Asset, match *Match) error {
	if match == nil {
		return nil
	}
	if match.MasterID == asset.ID {
		return fmt.Errorf("dedupe: asset %s cannot duplicate itself", asset.ID)
	}

	asset.DuplicateOf = match.MasterID
	asset.IsMaster = false
	if err := r.store.RecordDuplicate(ctx, &store.DuplicateRecord{
		MasterID: match.MasterID,
		AssetID:  asset.ID,
		Kind:     match.Kind,
		Score:    match.Score,
	}); err != nil {
		return fmt.Errorf("dedupe: record duplicate: %w", err)
	}

	r.logger.Info("duplicate detected",
		slog.String(logging.FieldAssetID, asset.ID),
		slog.String("master_id", match.MasterID),
		slog.String("kind", string(match.Kind)),
		slog.Int("distance", match.Distance),
	)
	return nil
}

func (r *Resolver) resolveExact(ctx context.Context, asset *store.Asset) (*Match, error) {
	existing, err := r.store.FindBySHA256(ctx, asset.SHA256)
	if err != nil {
		return nil, fmt.Errorf("dedupe: hash lookup: %w", err)
	}
	if existing == nil || existing.ID == asset.ID {
		return nil, nil
	}
	masterID, err := r.masterOf(ctx, existing)
	if err != nil {
		return nil, err
	}
	if masterID == asset.ID {
		return nil, nil
	}
	return &Match{MasterID: masterID, Kind: store.SimilarityHash, Score: 1.0}, nil
}

func (r *Resolver) resolvePerceptual(ctx context.Context, asset *store.Asset) (*Match, error) {
	candidates, err := r.store.ImagePerceptualCandidates(ctx, asset.ID)
	if err != nil {
		return nil, fmt.Errorf("dedupe: candidate scan: %w", err)
	}

	// Candidates arrive oldest first, so on equal distance the earliest
	// created master wins.
	best := -1
	var bestID string
	for _, candidate := range candidates {
		distance, err := identity.HammingDistance(asset.Phash, candidate.Phash)
		if err != nil {
			continue
		}
		if distance > r.threshold {
			continue
		}
		if best == -1 || distance < best {
			best = distance
			bestID = candidate.AssetID
		}
	}
	if best == -1 {
		return nil, nil
	}
	return &Match{
		MasterID: bestID,
		Kind:     store.SimilarityPhash,
		Score:    1.0 - float64(best)/64.0,
		Distance: best,
	}, nil
}

// masterOf follows at most one duplicate hop so new duplicates always point
// at a real master, never at another duplicate.
func (r *Resolver) masterOf(ctx context.Context, existing *store.Asset) (string, error) {
	if existing.IsMaster || existing.DuplicateOf == "" {
		return existing.ID, nil
	}
	master, err := r.store.GetByID(ctx, existing.DuplicateOf)
	if err != nil {
		return "", fmt.Errorf("dedupe: master lookup: %w", err)
	}
	if master == nil {
		return existing.ID, nil
	}
	return master.ID, nil
}
