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

// InsertEmbedding stores a semantic vector for an asset and returns its id.
func (s *Store) InsertEmbedding(ctx context.Context, embedding *Embedding) (string, error) {
	if embedding == nil {
		return "", errors.New("embedding is nil")
	}
	if strings.TrimSpace(embedding.ID) == "" {
		embedding.ID = uuid.NewString()
	}
	if embedding.CreatedAt.IsZero() {
		embedding.CreatedAt = time.Now().UTC()
	}
	vectorJSON, err := marshalVector(embedding.Vector)
	if err != nil {
		return "", fmt.Errorf("marshal embedding vector: %w", err)
	}
	if vectorJSON == "" {
		return "", errors.New("embedding vector is empty")
	}

	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO embeddings (id, asset_id, model, vector, created_at) VALUES (?, ?, ?, ?, ?)`,
		embedding.ID,
		embedding.AssetID,
		nullableString(embedding.Model),
		vectorJSON,
		embedding.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return "", fmt.Errorf("insert embedding: %w", err)
	}
	return embedding.ID, nil
}

// GetEmbedding fetches a stored vector by identifier.
func (s *Store) GetEmbedding(ctx context.Context, id string) (*Embedding, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT id, asset_id, model, vector, created_at FROM embeddings WHERE id = ?`,
		id,
	)
	var (
		embedding  Embedding
		model      sql.NullString
		vectorRaw  string
		createdRaw string
	)
	err := row.Scan(&embedding.ID, &embedding.AssetID, &model, &vectorRaw, &createdRaw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get embedding: %w", err)
	}
	embedding.Model = model.String
	embedding.Vector = unmarshalVector(vectorRaw)
	if created, err := parseTimeString(createdRaw); err == nil {
		embedding.CreatedAt = created
	}
	return &embedding, nil
}
