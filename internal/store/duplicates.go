package store

import (
	"context"
	"fmt"
	"time"
)

// RecordDuplicate stores a detected master/duplicate relationship. The same
// ordered pair is recorded at most once; later detections refresh the score.
func (s *Store) RecordDuplicate(ctx context.Context, record *DuplicateRecord) error {
	if record == nil {
		return fmt.Errorf("duplicate record is nil")
	}
	if record.MasterID == record.AssetID {
		return fmt.Errorf("duplicate record is self-referential: %s", record.MasterID)
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO duplicates (master_id, asset_id, kind, score, resolved, created_at)
         VALUES (?, ?, ?, ?, ?, ?)
         ON CONFLICT(master_id, asset_id) DO UPDATE SET kind = excluded.kind, score = excluded.score`,
		record.MasterID,
		record.AssetID,
		string(record.Kind),
		record.Score,
		boolToInt(record.Resolved),
		record.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("record duplicate: %w", err)
	}
	return nil
}

// UnresolvedDuplicates returns duplicate relationships awaiting curation.
func (s *Store) UnresolvedDuplicates(ctx context.Context) ([]DuplicateRecord, error) {
	return s.queryDuplicates(ctx, `SELECT id, master_id, asset_id, kind, score, resolved, created_at
        FROM duplicates WHERE resolved = 0 ORDER BY created_at, id`)
}

// DuplicatesForMaster returns every recorded duplicate of the given master.
func (s *Store) DuplicatesForMaster(ctx context.Context, masterID string) ([]DuplicateRecord, error) {
	return s.queryDuplicates(ctx, `SELECT id, master_id, asset_id, kind, score, resolved, created_at
        FROM duplicates WHERE master_id = ? ORDER BY created_at, id`, masterID)
}

// ResolveDuplicate marks a relationship as reviewed by a curator.
func (s *Store) ResolveDuplicate(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `UPDATE duplicates SET resolved = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("resolve duplicate: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("duplicate record %d not found", id)
	}
	return nil
}

func (s *Store) queryDuplicates(ctx context.Context, query string, args ...any) ([]DuplicateRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query duplicates: %w", err)
	}
	defer rows.Close()

	var records []DuplicateRecord
	for rows.Next() {
		var (
			record     DuplicateRecord
			kind       string
			resolved   int
			createdRaw string
		)
		if err := rows.Scan(&record.ID, &record.MasterID, &record.AssetID, &kind, &record.Score, &resolved, &createdRaw); err != nil {
			return nil, err
		}
		record.Kind = SimilarityKind(kind)
		record.Resolved = resolved != 0
		if created, err := parseTimeString(createdRaw); err == nil {
			record.CreatedAt = created
		}
		records = append(records, record)
	}
	return records, rows.Err()
}
