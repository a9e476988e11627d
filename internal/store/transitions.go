package store

import (
	"context"
	"fmt"
	"time"
)

// ResetStuckProcessing resets assets in processing states back to the start of
// their current stage. Called once on daemon startup before polling begins.
func (s *Store) ResetStuckProcessing(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE assets
         SET status = CASE status
             WHEN ? THEN ?
             WHEN ? THEN ?
             WHEN ? THEN ?
             WHEN ? THEN ?
             ELSE status
         END,
             last_heartbeat = NULL, updated_at = ?
         WHERE status IN (?, ?, ?, ?)`,
		StatusEnriching, StatusUploaded,
		StatusResolving, StatusEnriched,
		StatusAnalyzing, StatusResolved,
		StatusFinalizing, StatusAnalyzed,
		time.Now().UTC().Format(time.RFC3339Nano),
		StatusEnriching,
		StatusResolving,
		StatusAnalyzing,
		StatusFinalizing,
	)
	if err != nil {
		return 0, fmt.Errorf("reset stuck assets: %w", err)
	}
	return res.RowsAffected()
}

// UpdateHeartbeat updates the last heartbeat timestamp for an in-flight asset.
func (s *Store) UpdateHeartbeat(ctx context.Context, id string) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE assets SET last_heartbeat = ?, updated_at = ? WHERE id = ?`,
		now.Format(time.RFC3339Nano),
		now.Format(time.RFC3339Nano),
		id,
	)
	if err != nil {
		return fmt.Errorf("update heartbeat: %w", err)
	}
	return nil
}

// ReclaimStaleProcessing returns assets stuck in processing back to the start
// of their current stage when heartbeats expire.
func (s *Store) ReclaimStaleProcessing(ctx context.Context, cutoff time.Time) (int64, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE assets
        SET status = CASE status
            WHEN ? THEN ?
            WHEN ? THEN ?
            WHEN ? THEN ?
            WHEN ? THEN ?
            ELSE status
        END,
            last_heartbeat = NULL, updated_at = ?
        WHERE status IN (?, ?, ?, ?) AND last_heartbeat IS NOT NULL AND last_heartbeat < ?`,
		StatusEnriching, StatusUploaded,
		StatusResolving, StatusEnriched,
		StatusAnalyzing, StatusResolved,
		StatusFinalizing, StatusAnalyzed,
		now.Format(time.RFC3339Nano),
		StatusEnriching,
		StatusResolving,
		StatusAnalyzing,
		StatusFinalizing,
		cutoff.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("reclaim stale assets: %w", err)
	}
	return res.RowsAffected()
}

// RetryErrored moves errored assets back to uploaded for reprocessing. With no
// ids, every errored asset is retried.
func (s *Store) RetryErrored(ctx context.Context, ids ...string) (int64, error) {
	if len(ids) == 0 {
		res, err := s.db.ExecContext(
			ctx,
			`UPDATE assets
            SET status = ?, last_heartbeat = NULL, updated_at = ?
            WHERE status = ?`,
			StatusUploaded,
			time.Now().UTC().Format(time.RFC3339Nano),
			StatusError,
		)
		if err != nil {
			return 0, fmt.Errorf("retry errored assets: %w", err)
		}
		return res.RowsAffected()
	}

	placeholders := makePlaceholders(len(ids))
	args := make([]any, 0, len(ids)+3)
	args = append(args, StatusUploaded, time.Now().UTC().Format(time.RFC3339Nano), StatusError)
	for _, id := range ids {
		args = append(args, id)
	}
	query := `UPDATE assets
        SET status = ?, last_heartbeat = NULL, updated_at = ?
        WHERE status = ? AND id IN (` + placeholders + `)`
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("retry selected assets: %w", err)
	}
	return res.RowsAffected()
}
