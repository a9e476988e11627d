// Package sidecar defines the self-contained JSON record mirrored alongside
// every archived original, and the writer that keeps the local cache, the
// state store, and the remote metadata area in agreement.
package sidecar

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"archivist/internal/services"
	"archivist/internal/store"
)

// Status is the public lifecycle enum exposed in sidecar documents. The
// store's internal stage statuses collapse to "processing" here; curators
// never see which pipeline stage an asset is in.
type Status string

const (
	StatusUploaded    Status = "uploaded"
	StatusProcessing  Status = "processing"
	StatusNeedsReview Status = "needs_review"
	StatusApproved    Status = "approved"
	StatusArchived    Status = "archived"
	StatusDuplicate   Status = "duplicate"
	StatusError       Status = "error"
)

// StatusForAsset maps an internal store status to the public enum.
func StatusForAsset(status store.Status) Status {
	switch status {
	case store.StatusUploaded:
		return StatusUploaded
	case store.StatusNeedsReview:
		return StatusNeedsReview
	case store.StatusApproved:
		return StatusApproved
	case store.StatusArchived:
		return StatusArchived
	case store.StatusDuplicate:
		return StatusDuplicate
	case store.StatusError:
		return StatusError
	default:
		return StatusProcessing
	}
}

// FaceBox is a face bounding box in relative image coordinates.
type FaceBox struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Width      float64 `json:"width"`
	Height     float64 `json:"height"`
	Confidence float64 `json:"confidence"`
}

// DetectedFace is one face detection with its embedding and, once curated,
// the person it belongs to.
type DetectedFace struct {
	Box        FaceBox   `json:"box"`
	Embedding  []float64 `json:"embedding,omitempty"`
	ClusterID  string    `json:"cluster_id,omitempty"`
	PersonName string    `json:"person_name,omitempty"`
}

// ExifData is the structured capture metadata block for images.
type ExifData struct {
	CameraMake   string     `json:"camera_make,omitempty"`
	CameraModel  string     `json:"camera_model,omitempty"`
	DateTaken    *time.Time `json:"date_taken,omitempty"`
	GPSLatitude  *float64   `json:"gps_latitude,omitempty"`
	GPSLongitude *float64   `json:"gps_longitude,omitempty"`
	Orientation  int        `json:"orientation,omitempty"`
	Width        int        `json:"width,omitempty"`
	Height       int        `json:"height,omitempty"`
}

// VideoMetadata is the container metadata block for videos.
type VideoMetadata struct {
	DurationSeconds float64 `json:"duration_seconds"`
	Width           int     `json:"width"`
	Height          int     `json:"height"`
	Codec           string  `json:"codec,omitempty"`
	FPS             float64 `json:"fps,omitempty"`
	Bitrate         int64   `json:"bitrate,omitempty"`
}

// Document is the full sidecar record for one asset.
type Document struct {
	AssetID string `json:"asset_id"`
	SHA256  string `json:"sha256"`
	Phash   string `json:"phash,omitempty"`

	RemoteFileID     string    `json:"drive_file_id,omitempty"`
	OriginalFilename string    `json:"original_filename"`
	Contributor      string    `json:"contributor_token,omitempty"`
	BatchID          string    `json:"batch_id,omitempty"`
	UploadTimestamp  time.Time `json:"upload_timestamp"`

	AssetType     string `json:"asset_type"`
	FileSizeBytes int64  `json:"file_size_bytes"`

	ExifDate      *time.Time `json:"exif_date,omitempty"`
	EstimatedDate *time.Time `json:"estimated_date,omitempty"`
	Decade        int        `json:"decade,omitempty"`

	Exif  *ExifData      `json:"exif_data,omitempty"`
	Video *VideoMetadata `json:"video_metadata,omitempty"`

	Faces       []DetectedFace `json:"faces,omitempty"`
	Caption     string         `json:"caption,omitempty"`
	EmbeddingID string         `json:"clip_embedding_id,omitempty"`
	Transcript  string         `json:"transcript,omitempty"`

	DuplicateOf string `json:"duplicate_of,omitempty"`
	IsMaster    bool   `json:"is_master"`

	Status           Status   `json:"status"`
	ProcessingErrors []string `json:"processing_errors,omitempty"`

	EventName string   `json:"event_name,omitempty"`
	Tags      []string `json:"tags,omitempty"`
	Notes     string   `json:"notes,omitempty"`

	RemotePath    string `json:"drive_path,omitempty"`
	ThumbnailPath string `json:"thumbnail_path,omitempty"`
	PosterPath    string `json:"poster_path,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate enforces the required identity fields. Assets that came through
// the remote contract must also carry their remote file identifier so the
// sidecar can be joined back to the original.
func (d *Document) Validate() error {
	var missing []string
	if strings.TrimSpace(d.AssetID) == "" {
		missing = append(missing, "asset_id")
	}
	if strings.TrimSpace(d.SHA256) == "" {
		missing = append(missing, "sha256")
	}
	if strings.TrimSpace(d.OriginalFilename) == "" {
		missing = append(missing, "original_filename")
	}
	if strings.TrimSpace(d.RemotePath) != "" && strings.TrimSpace(d.RemoteFileID) == "" {
		missing = append(missing, "drive_file_id")
	}
	if len(missing) > 0 {
		return services.Wrap(services.ErrValidation, "sidecar", "validate",
			fmt.Sprintf("missing required fields: %s", strings.Join(missing, ", ")), nil)
	}
	return nil
}

// FromAsset builds the sidecar document for an asset and its stored faces.
// The structured exif and video blocks are recovered from the JSON the
// enrichment stage persisted on the asset row.
func FromAsset(asset *store.Asset, faces []store.Face) (*Document, error) {
	if asset == nil {
		return nil, services.Wrap(services.ErrValidation, "sidecar", "build", "nil asset", nil)
	}

	doc := &Document{
		AssetID:          asset.ID,
		SHA256:           asset.SHA256,
		Phash:            asset.Phash,
		RemoteFileID:     asset.RemoteFileID,
		OriginalFilename: asset.OriginalFilename,
		Contributor:      asset.Contributor,
		BatchID:          asset.BatchID,
		UploadTimestamp:  asset.UploadedAt,
		AssetType:        string(asset.MediaKind),
		FileSizeBytes:    asset.SizeBytes,
		ExifDate:         asset.CaptureAt,
		Decade:           asset.EstimatedDecade,
		Caption:          asset.Caption,
		EmbeddingID:      asset.EmbeddingID,
		Transcript:       asset.Transcript,
		DuplicateOf:      asset.DuplicateOf,
		IsMaster:         asset.IsMaster,
		Status:           StatusForAsset(asset.Status),
		ProcessingErrors: append([]string(nil), asset.ProcessingErrors...),
		EventName:        asset.EventName,
		Tags:             splitTags(asset.Tags),
		Notes:            asset.Notes,
		RemotePath:       asset.RemotePath,
		ThumbnailPath:    asset.ThumbnailPath,
		PosterPath:       asset.PosterPath,
		CreatedAt:        asset.CreatedAt,
		UpdatedAt:        asset.UpdatedAt,
	}

	if asset.CaptureAt != nil {
		doc.EstimatedDate = asset.CaptureAt
	} else {
		uploaded := asset.UploadedAt
		doc.EstimatedDate = &uploaded
	}

	if asset.ExifJSON != "" {
		var block ExifData
		if err := json.Unmarshal([]byte(asset.ExifJSON), &block); err == nil {
			doc.Exif = &block
		}
	}
	if asset.VideoJSON != "" {
		var block VideoMetadata
		if err := json.Unmarshal([]byte(asset.VideoJSON), &block); err == nil {
			doc.Video = &block
		}
	}

	for _, face := range faces {
		doc.Faces = append(doc.Faces, DetectedFace{
			Box: FaceBox{
				X:          face.X,
				Y:          face.Y,
				Width:      face.Width,
				Height:     face.Height,
				Confidence: face.Confidence,
			},
			Embedding:  face.Embedding,
			ClusterID:  face.ClusterID,
			PersonName: face.PersonName,
		})
	}

	return doc, nil
}

// Parse decodes and validates a sidecar document.
func Parse(data []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, services.Wrap(services.ErrValidation, "sidecar", "parse", "malformed sidecar JSON", err)
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

func splitTags(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	tags := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			tags = append(tags, trimmed)
		}
	}
	return tags
}
