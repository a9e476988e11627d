package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ReplaceFaces atomically replaces every detected face for an asset.
// Re-running face detection must not accumulate stale rows.
func (s *Store) ReplaceFaces(ctx context.Context, assetID string, faces []Face) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin faces tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM faces WHERE asset_id = ?`, assetID); err != nil {
		return fmt.Errorf("clear faces: %w", err)
	}

	for _, face := range faces {
		embeddingJSON, err := marshalVector(face.Embedding)
		if err != nil {
			return fmt.Errorf("marshal face embedding: %w", err)
		}
		if _, err := tx.ExecContext(
			ctx,
			`INSERT INTO faces (asset_id, x, y, width, height, confidence, embedding, cluster_id, person_name)
             VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			assetID,
			face.X,
			face.Y,
			face.Width,
			face.Height,
			face.Confidence,
			nullableString(embeddingJSON),
			nullableString(face.ClusterID),
			nullableString(face.PersonName),
		); err != nil {
			return fmt.Errorf("insert face: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit faces: %w", err)
	}
	return nil
}

// FacesForAsset returns the detected faces for an asset in insertion order.
func (s *Store) FacesForAsset(ctx context.Context, assetID string) ([]Face, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, asset_id, x, y, width, height, confidence, embedding, cluster_id, person_name
         FROM faces WHERE asset_id = ? ORDER BY id`,
		assetID,
	)
	if err != nil {
		return nil, fmt.Errorf("query faces: %w", err)
	}
	defer rows.Close()

	var faces []Face
	for rows.Next() {
		var (
			face       Face
			embedding  sql.NullString
			clusterID  sql.NullString
			personName sql.NullString
		)
		if err := rows.Scan(&face.ID, &face.AssetID, &face.X, &face.Y, &face.Width, &face.Height, &face.Confidence, &embedding, &clusterID, &personName); err != nil {
			return nil, err
		}
		face.Embedding = unmarshalVector(embedding.String)
		face.ClusterID = clusterID.String
		face.PersonName = personName.String
		faces = append(faces, face)
	}
	return faces, rows.Err()
}

// AssignFaceCluster links a face to a cluster, creating the cluster row when missing.
func (s *Store) AssignFaceCluster(ctx context.Context, faceID int64, clusterID string) error {
	if strings.TrimSpace(clusterID) == "" {
		return errors.New("cluster id is empty")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin cluster tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(
		ctx,
		`INSERT INTO clusters (id, face_count) VALUES (?, 0) ON CONFLICT(id) DO NOTHING`,
		clusterID,
	); err != nil {
		return fmt.Errorf("ensure cluster: %w", err)
	}
	res, err := tx.ExecContext(ctx, `UPDATE faces SET cluster_id = ? WHERE id = ?`, clusterID, faceID)
	if err != nil {
		return fmt.Errorf("assign face cluster: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("face %d not found", faceID)
	}
	if _, err := tx.ExecContext(
		ctx,
		`UPDATE clusters SET face_count = (SELECT COUNT(1) FROM faces WHERE cluster_id = ?) WHERE id = ?`,
		clusterID,
		clusterID,
	); err != nil {
		return fmt.Errorf("refresh cluster count: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit cluster assignment: %w", err)
	}
	return nil
}

// ListClusters returns all clusters ordered by descending size.
func (s *Store) ListClusters(ctx context.Context) ([]Cluster, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, person_name, face_count, confidence, sample_assets FROM clusters ORDER BY face_count DESC, id`,
	)
	if err != nil {
		return nil, fmt.Errorf("list clusters: %w", err)
	}
	defer rows.Close()

	var clusters []Cluster
	for rows.Next() {
		var (
			cluster    Cluster
			personName sql.NullString
			samples    sql.NullString
		)
		if err := rows.Scan(&cluster.ID, &personName, &cluster.FaceCount, &cluster.Confidence, &samples); err != nil {
			return nil, err
		}
		cluster.PersonName = personName.String
		if samples.Valid && samples.String != "" {
			var list []string
			if err := json.Unmarshal([]byte(samples.String), &list); err == nil {
				cluster.SampleAssets = list
			}
		}
		clusters = append(clusters, cluster)
	}
	return clusters, rows.Err()
}

func marshalVector(vector []float64) (string, error) {
	if len(vector) == 0 {
		return "", nil
	}
	data, err := json.Marshal(vector)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func unmarshalVector(raw string) []float64 {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var vector []float64
	if err := json.Unmarshal([]byte(raw), &vector); err != nil {
		return nil
	}
	return vector
}
