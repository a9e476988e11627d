package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// EnsureBatch creates the batch row if it does not exist and returns it.
// An empty id creates a fresh batch.
func (s *Store) EnsureBatch(ctx context.Context, batch *Batch) (*Batch, error) {
	if batch == nil {
		return nil, errors.New("batch is nil")
	}
	if strings.TrimSpace(batch.ID) == "" {
		batch.ID = uuid.NewString()
	}
	if batch.CreatedAt.IsZero() {
		batch.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO batches (id, contributor, decade, event_name, notes, total_files, processed_files, total_bytes, created_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT(id) DO NOTHING`,
		batch.ID,
		nullableString(batch.Contributor),
		batch.Decade,
		nullableString(batch.EventName),
		nullableString(batch.Notes),
		batch.TotalFiles,
		batch.ProcessedFiles,
		batch.TotalBytes,
		batch.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("ensure batch: %w", err)
	}
	return s.GetBatch(ctx, batch.ID)
}

// GetBatch fetches a batch by identifier.
func (s *Store) GetBatch(ctx context.Context, id string) (*Batch, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT id, contributor, decade, event_name, notes, total_files, processed_files, total_bytes, created_at, processing_completed
         FROM batches WHERE id = ?`,
		id,
	)
	batch, err := scanBatch(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get batch: %w", err)
	}
	return batch, nil
}

// UpdateBatch persists batch counters and context.
func (s *Store) UpdateBatch(ctx context.Context, batch *Batch) error {
	if batch == nil {
		return errors.New("batch is nil")
	}
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE batches
         SET contributor = ?, decade = ?, event_name = ?, notes = ?,
             total_files = ?, processed_files = ?, total_bytes = ?, processing_completed = ?
         WHERE id = ?`,
		nullableString(batch.Contributor),
		batch.Decade,
		nullableString(batch.EventName),
		nullableString(batch.Notes),
		batch.TotalFiles,
		batch.ProcessedFiles,
		batch.TotalBytes,
		nullableTime(batch.ProcessingCompleted),
		batch.ID,
	)
	if err != nil {
		return fmt.Errorf("update batch: %w", err)
	}
	return nil
}

// BatchFileRecorded increments expected counters when a file joins the batch.
func (s *Store) BatchFileRecorded(ctx context.Context, id string, sizeBytes int64) error {
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE batches SET total_files = total_files + 1, total_bytes = total_bytes + ? WHERE id = ?`,
		sizeBytes,
		id,
	)
	if err != nil {
		return fmt.Errorf("record batch file: %w", err)
	}
	return nil
}

// BatchFileProcessed increments the processed counter and stamps completion
// once every expected file has finished.
func (s *Store) BatchFileProcessed(ctx context.Context, id string) (*Batch, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE batches
         SET processed_files = processed_files + 1,
             processing_completed = CASE
                 WHEN processed_files + 1 >= total_files THEN ?
                 ELSE processing_completed
             END
         WHERE id = ?`,
		now,
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("mark batch file processed: %w", err)
	}
	return s.GetBatch(ctx, id)
}

// ListBatches returns all batches ordered by creation time.
func (s *Store) ListBatches(ctx context.Context) ([]*Batch, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, contributor, decade, event_name, notes, total_files, processed_files, total_bytes, created_at, processing_completed
         FROM batches ORDER BY created_at, id`,
	)
	if err != nil {
		return nil, fmt.Errorf("list batches: %w", err)
	}
	defer rows.Close()

	var batches []*Batch
	for rows.Next() {
		batch, err := scanBatch(rows)
		if err != nil {
			return nil, err
		}
		batches = append(batches, batch)
	}
	return batches, rows.Err()
}

func scanBatch(scanner interface{ Scan(dest ...any) error }) (*Batch, error) {
	var (
		id           string
		contributor  sql.NullString
		decade       sql.NullInt64
		eventName    sql.NullString
		notes        sql.NullString
		totalFiles   sql.NullInt64
		processed    sql.NullInt64
		totalBytes   sql.NullInt64
		createdRaw   sql.NullString
		completedRaw sql.NullString
	)
	if err := scanner.Scan(&id, &contributor, &decade, &eventName, &notes, &totalFiles, &processed, &totalBytes, &createdRaw, &completedRaw); err != nil {
		return nil, err
	}
	batch := &Batch{
		ID:             id,
		Contributor:    contributor.String,
		Decade:         int(decade.Int64),
		EventName:      eventName.String,
		Notes:          notes.String,
		TotalFiles:     int(totalFiles.Int64),
		ProcessedFiles: int(processed.Int64),
		TotalBytes:     totalBytes.Int64,
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		batch.CreatedAt = created
	}
	if completedRaw.Valid {
		if completed, err := parseTimeString(completedRaw.String); err == nil {
			batch.ProcessingCompleted = &completed
		}
	}
	return batch, nil
}
