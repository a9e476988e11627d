package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"archivist/internal/config"
)

// Store manages archive persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the state database and applies migrations.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := cfg.DatabasePath()
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := store.applyMigrations(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// InsertAsset records a newly claimed file. An empty ID is replaced with a new
// UUID; timestamps default to now.
func (s *Store) InsertAsset(ctx context.Context, asset *Asset) (*Asset, error) {
	if asset == nil {
		return nil, errors.New("asset is nil")
	}
	if strings.TrimSpace(asset.ID) == "" {
		asset.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if asset.CreatedAt.IsZero() {
		asset.CreatedAt = now
	}
	asset.UpdatedAt = now
	if asset.Status == "" {
		asset.Status = StatusUploaded
	}
	if asset.MediaKind == "" {
		asset.MediaKind = MediaUnknown
	}

	errorsJSON, err := asset.ProcessingErrors.marshal()
	if err != nil {
		return nil, fmt.Errorf("marshal processing errors: %w", err)
	}

	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO assets (
            id, sha256, phash, remote_file_id, remote_path, original_filename,
            contributor, batch_id, media_kind, size_bytes, status,
            uploaded_at, capture_at, estimated_decade, duplicate_of, is_master,
            caption, transcript, embedding_id, tags, notes, event_name,
            exif_json, video_json, thumbnail_path, poster_path, local_path,
            latitude, longitude, processing_errors, last_heartbeat,
            created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		asset.ID,
		asset.SHA256,
		nullableString(asset.Phash),
		nullableString(asset.RemoteFileID),
		nullableString(asset.RemotePath),
		asset.OriginalFilename,
		nullableString(asset.Contributor),
		nullableString(asset.BatchID),
		string(asset.MediaKind),
		asset.SizeBytes,
		asset.Status,
		nullableTime(&asset.UploadedAt),
		nullableTime(asset.CaptureAt),
		asset.EstimatedDecade,
		nullableString(asset.DuplicateOf),
		boolToInt(asset.IsMaster),
		nullableString(asset.Caption),
		nullableString(asset.Transcript),
		nullableString(asset.EmbeddingID),
		nullableString(asset.Tags),
		nullableString(asset.Notes),
		nullableString(asset.EventName),
		nullableString(asset.ExifJSON),
		nullableString(asset.VideoJSON),
		nullableString(asset.ThumbnailPath),
		nullableString(asset.PosterPath),
		nullableString(asset.LocalPath),
		nullableFloat(asset.Latitude),
		nullableFloat(asset.Longitude),
		nullableString(errorsJSON),
		nullableTime(asset.LastHeartbeat),
		asset.CreatedAt.Format(time.RFC3339Nano),
		asset.UpdatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("insert asset: %w", err)
	}

	return s.GetByID(ctx, asset.ID)
}

// GetByID fetches an asset by identifier.
func (s *Store) GetByID(ctx context.Context, id string) (*Asset, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+assetColumns+` FROM assets WHERE id = ?`, id)
	asset, err := scanAsset(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get asset: %w", err)
	}
	return asset, nil
}

// FindBySHA256 returns the earliest-created asset with a matching strong hash.
func (s *Store) FindBySHA256(ctx context.Context, sha256 string) (*Asset, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+assetColumns+` FROM assets WHERE sha256 = ? ORDER BY created_at, id LIMIT 1`,
		sha256,
	)
	asset, err := scanAsset(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find by sha256: %w", err)
	}
	return asset, nil
}

// FindByRemoteID returns the first asset matching a remote file identifier.
func (s *Store) FindByRemoteID(ctx context.Context, remoteFileID string) (*Asset, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+assetColumns+` FROM assets WHERE remote_file_id = ? ORDER BY created_at LIMIT 1`,
		remoteFileID,
	)
	asset, err := scanAsset(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find by remote id: %w", err)
	}
	return asset, nil
}

// PerceptualCandidate pairs an asset identifier with its stored fingerprint.
type PerceptualCandidate struct {
	AssetID   string
	Phash     string
	CreatedAt time.Time
}

// ImagePerceptualCandidates returns master image assets carrying a
// fingerprint, excluding the given asset, ordered oldest first. The Hamming
// scan over these candidates happens in process.
func (s *Store) ImagePerceptualCandidates(ctx context.Context, excludeID string) ([]PerceptualCandidate, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, phash, created_at FROM assets
         WHERE media_kind = ? AND phash IS NOT NULL AND is_master = 1 AND id != ?
         ORDER BY created_at, id`,
		string(MediaImage),
		excludeID,
	)
	if err != nil {
		return nil, fmt.Errorf("query perceptual candidates: %w", err)
	}
	defer rows.Close()

	var candidates []PerceptualCandidate
	for rows.Next() {
		var (
			candidate  PerceptualCandidate
			createdRaw sql.NullString
		)
		if err := rows.Scan(&candidate.AssetID, &candidate.Phash, &createdRaw); err != nil {
			return nil, err
		}
		if created, err := parseTimeString(createdRaw.String); err == nil {
			candidate.CreatedAt = created
		}
		candidates = append(candidates, candidate)
	}
	return candidates, rows.Err()
}

// Update persists changes to an existing asset in a single statement.
func (s *Store) Update(ctx context.Context, asset *Asset) error {
	if asset == nil {
		return errors.New("asset is nil")
	}
	asset.UpdatedAt = time.Now().UTC()

	errorsJSON, err := asset.ProcessingErrors.marshal()
	if err != nil {
		return fmt.Errorf("marshal processing errors: %w", err)
	}

	_, err = s.db.ExecContext(
		ctx,
		`UPDATE assets
         SET sha256 = ?, phash = ?, remote_file_id = ?, remote_path = ?,
             original_filename = ?, contributor = ?, batch_id = ?, media_kind = ?,
             size_bytes = ?, status = ?, uploaded_at = ?, capture_at = ?,
             estimated_decade = ?, duplicate_of = ?, is_master = ?, caption = ?,
             transcript = ?, embedding_id = ?, tags = ?, notes = ?, event_name = ?,
             exif_json = ?, video_json = ?, thumbnail_path = ?, poster_path = ?,
             local_path = ?, latitude = ?, longitude = ?, processing_errors = ?,
             last_heartbeat = ?, updated_at = ?
         WHERE id = ?`,
		asset.SHA256,
		nullableString(asset.Phash),
		nullableString(asset.RemoteFileID),
		nullableString(asset.RemotePath),
		asset.OriginalFilename,
		nullableString(asset.Contributor),
		nullableString(asset.BatchID),
		string(asset.MediaKind),
		asset.SizeBytes,
		asset.Status,
		nullableTime(&asset.UploadedAt),
		nullableTime(asset.CaptureAt),
		asset.EstimatedDecade,
		nullableString(asset.DuplicateOf),
		boolToInt(asset.IsMaster),
		nullableString(asset.Caption),
		nullableString(asset.Transcript),
		nullableString(asset.EmbeddingID),
		nullableString(asset.Tags),
		nullableString(asset.Notes),
		nullableString(asset.EventName),
		nullableString(asset.ExifJSON),
		nullableString(asset.VideoJSON),
		nullableString(asset.ThumbnailPath),
		nullableString(asset.PosterPath),
		nullableString(asset.LocalPath),
		nullableFloat(asset.Latitude),
		nullableFloat(asset.Longitude),
		nullableString(errorsJSON),
		nullableTime(asset.LastHeartbeat),
		asset.UpdatedAt.Format(time.RFC3339Nano),
		asset.ID,
	)
	if err != nil {
		return fmt.Errorf("update asset: %w", err)
	}
	return nil
}

// ListByStatus returns assets matching a status ordered by creation time.
func (s *Store) ListByStatus(ctx context.Context, status Status) ([]*Asset, error) {
	return s.List(ctx, status)
}

// List returns assets filtered by status set (or all assets when no status is provided).
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Asset, error) {
	var (
		rows *sql.Rows
		err  error
	)

	baseQuery := `SELECT ` + assetColumns + ` FROM assets`
	orderClause := ` ORDER BY created_at, id`

	if len(statuses) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		placeholders := makePlaceholders(len(statuses))
		args := make([]any, len(statuses))
		for i, status := range statuses {
			args[i] = status
		}
		query := baseQuery + ` WHERE status IN (` + placeholders + `)` + orderClause
		rows, err = s.db.QueryContext(ctx, query, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	defer rows.Close()

	var assets []*Asset
	for rows.Next() {
		asset, err := scanAsset(rows)
		if err != nil {
			return nil, err
		}
		assets = append(assets, asset)
	}
	return assets, rows.Err()
}

// NextForStatuses returns the oldest asset matching any of the provided statuses.
func (s *Store) NextForStatuses(ctx context.Context, statuses ...Status) (*Asset, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	placeholders := makePlaceholders(len(statuses))
	args := make([]any, len(statuses))
	for i, status := range statuses {
		args[i] = status
	}

	query := `SELECT ` + assetColumns + ` FROM assets WHERE status IN (` + placeholders + `) ORDER BY created_at, id LIMIT 1`
	row := s.db.QueryRowContext(ctx, query, args...)
	asset, err := scanAsset(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return asset, nil
}

// Stats returns a count of assets grouped by status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM assets GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("asset stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

// Health aggregates asset state for diagnostic output.
func (s *Store) Health(ctx context.Context) (HealthSummary, error) {
	stats, err := s.Stats(ctx)
	if err != nil {
		return HealthSummary{}, err
	}
	health := HealthSummary{}
	for status, count := range stats {
		health.Total += count
		switch status {
		case StatusUploaded:
			health.Uploaded += count
		case StatusNeedsReview:
			health.Review += count
		case StatusDuplicate:
			health.Duplicate += count
		case StatusError:
			health.Errored += count
		default:
			if _, ok := processingStatuses[status]; ok {
				health.Processing += count
			}
		}
	}
	return health, nil
}

// Remove deletes an asset by identifier.
func (s *Store) Remove(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM assets WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete asset: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// ClearErrored removes only errored assets from the store.
func (s *Store) ClearErrored(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM assets WHERE status = ?`, StatusError)
	if err != nil {
		return 0, fmt.Errorf("clear errored: %w", err)
	}
	return res.RowsAffected()
}

const assetColumns = "id, sha256, phash, remote_file_id, remote_path, original_filename, contributor, batch_id, media_kind, size_bytes, status, uploaded_at, capture_at, estimated_decade, duplicate_of, is_master, caption, transcript, embedding_id, tags, notes, event_name, exif_json, video_json, thumbnail_path, poster_path, local_path, latitude, longitude, processing_errors, last_heartbeat, created_at, updated_at"

func scanAsset(scanner interface{ Scan(dest ...any) error }) (*Asset, error) {
	var (
		id               string
		sha              string
		phash            sql.NullString
		remoteFileID     sql.NullString
		remotePath       sql.NullString
		originalFilename string
		contributor      sql.NullString
		batchID          sql.NullString
		mediaKind        sql.NullString
		sizeBytes        sql.NullInt64
		statusStr        string
		uploadedRaw      sql.NullString
		captureRaw       sql.NullString
		decade           sql.NullInt64
		duplicateOf      sql.NullString
		isMaster         sql.NullInt64
		caption          sql.NullString
		transcript       sql.NullString
		embeddingID      sql.NullString
		tags             sql.NullString
		notes            sql.NullString
		eventName        sql.NullString
		exifJSON         sql.NullString
		videoJSON        sql.NullString
		thumbnailPath    sql.NullString
		posterPath       sql.NullString
		localPath        sql.NullString
		latitude         sql.NullFloat64
		longitude        sql.NullFloat64
		errorsRaw        sql.NullString
		lastHeartbeatRaw sql.NullString
		createdRaw       sql.NullString
		updatedRaw       sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&sha,
		&phash,
		&remoteFileID,
		&remotePath,
		&originalFilename,
		&contributor,
		&batchID,
		&mediaKind,
		&sizeBytes,
		&statusStr,
		&uploadedRaw,
		&captureRaw,
		&decade,
		&duplicateOf,
		&isMaster,
		&caption,
		&transcript,
		&embeddingID,
		&tags,
		&notes,
		&eventName,
		&exifJSON,
		&videoJSON,
		&thumbnailPath,
		&posterPath,
		&localPath,
		&latitude,
		&longitude,
		&errorsRaw,
		&lastHeartbeatRaw,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	asset := &Asset{
		ID:               id,
		SHA256:           sha,
		Phash:            phash.String,
		RemoteFileID:     remoteFileID.String,
		RemotePath:       remotePath.String,
		OriginalFilename: originalFilename,
		Contributor:      contributor.String,
		BatchID:          batchID.String,
		MediaKind:        ParseMediaKind(mediaKind.String),
		SizeBytes:        sizeBytes.Int64,
		Status:           Status(statusStr),
		EstimatedDecade:  int(decade.Int64),
		DuplicateOf:      duplicateOf.String,
		Caption:          caption.String,
		Transcript:       transcript.String,
		EmbeddingID:      embeddingID.String,
		Tags:             tags.String,
		Notes:            notes.String,
		EventName:        eventName.String,
		ExifJSON:         exifJSON.String,
		VideoJSON:        videoJSON.String,
		ThumbnailPath:    thumbnailPath.String,
		PosterPath:       posterPath.String,
		LocalPath:        localPath.String,
		ProcessingErrors: parseProcessingErrors(errorsRaw.String),
	}
	if isMaster.Valid {
		asset.IsMaster = isMaster.Int64 != 0
	}
	if latitude.Valid {
		v := latitude.Float64
		asset.Latitude = &v
	}
	if longitude.Valid {
		v := longitude.Float64
		asset.Longitude = &v
	}

	if uploaded, err := parseTimeString(uploadedRaw.String); err == nil {
		asset.UploadedAt = uploaded
	}
	if captureRaw.Valid {
		if capture, err := parseTimeString(captureRaw.String); err == nil {
			asset.CaptureAt = &capture
		}
	}
	if lastHeartbeatRaw.Valid {
		if heartbeat, err := parseTimeString(lastHeartbeatRaw.String); err == nil {
			asset.LastHeartbeat = &heartbeat
		}
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		asset.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		asset.UpdatedAt = updated
	}
	return asset, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value *time.Time) any {
	if value == nil || value.IsZero() {
		return nil
	}
	v := value.UTC().Format(time.RFC3339Nano)
	return v
}

func nullableFloat(value *float64) any {
	if value == nil {
		return nil
	}
	return *value
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
