package store

import (
	"encoding/json"
	"strings"
	"time"
)

// Status represents the lifecycle of an asset.
type Status string

const (
	StatusUploaded   Status = "uploaded"
	StatusEnriching  Status = "enriching"
	StatusEnriched   Status = "enriched"
	StatusResolving  Status = "resolving"
	StatusResolved   Status = "resolved"
	StatusAnalyzing  Status = "analyzing"
	StatusAnalyzed   Status = "analyzed"
	StatusFinalizing Status = "finalizing"

	// Terminal statuses written by the worker.
	StatusNeedsReview Status = "needs_review"
	StatusDuplicate   Status = "duplicate"
	StatusError       Status = "error"

	// Curator-owned statuses. The worker never sets these.
	StatusApproved Status = "approved"
	StatusArchived Status = "archived"
)

var allStatuses = []Status{
	StatusUploaded,
	StatusEnriching,
	StatusEnriched,
	StatusResolving,
	StatusResolved,
	StatusAnalyzing,
	StatusAnalyzed,
	StatusFinalizing,
	StatusNeedsReview,
	StatusDuplicate,
	StatusError,
	StatusApproved,
	StatusArchived,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

var processingStatuses = map[Status]struct{}{
	StatusEnriching:  {},
	StatusResolving:  {},
	StatusAnalyzing:  {},
	StatusFinalizing: {},
}

type statusTransition struct {
	from Status
	to   Status
}

var stageRollbackTransitions = []statusTransition{
	{from: StatusEnriching, to: StatusUploaded},
	{from: StatusResolving, to: StatusEnriched},
	{from: StatusAnalyzing, to: StatusResolved},
	{from: StatusFinalizing, to: StatusAnalyzed},
}

// MediaKind classifies an asset by its container contents.
type MediaKind string

const (
	MediaImage   MediaKind = "image"
	MediaVideo   MediaKind = "video"
	MediaAudio   MediaKind = "audio"
	MediaUnknown MediaKind = "unknown"
)

// ProcessingErrors is the append-only per-asset error list, stored as JSON.
type ProcessingErrors []string

// Append adds a non-empty error message to the list.
func (p *ProcessingErrors) Append(message string) {
	message = strings.TrimSpace(message)
	if message == "" {
		return
	}
	*p = append(*p, message)
}

func (p ProcessingErrors) marshal() (string, error) {
	if len(p) == 0 {
		return "", nil
	}
	data, err := json.Marshal([]string(p))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func parseProcessingErrors(raw string) ProcessingErrors {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	var list []string
	if err := json.Unmarshal([]byte(raw), &list); err != nil {
		return ProcessingErrors{raw}
	}
	return ProcessingErrors(list)
}

// Asset represents one ingested media file persisted in SQLite.
type Asset struct {
	ID               string
	SHA256           string
	Phash            string // hex, empty when no fingerprint was computed
	RemoteFileID     string
	RemotePath       string
	OriginalFilename string
	Contributor      string
	BatchID          string
	MediaKind        MediaKind
	SizeBytes        int64
	Status           Status

	UploadedAt      time.Time
	CaptureAt       *time.Time
	EstimatedDecade int

	DuplicateOf string
	IsMaster    bool

	Caption       string
	Transcript    string
	EmbeddingID   string
	Tags          string
	Notes         string
	EventName     string
	ExifJSON      string
	VideoJSON     string
	ThumbnailPath string
	PosterPath    string
	LocalPath     string
	Latitude      *float64
	Longitude     *float64

	ProcessingErrors ProcessingErrors
	LastHeartbeat    *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Batch aggregates assets uploaded together by one contributor.
type Batch struct {
	ID                  string
	Contributor         string
	Decade              int
	EventName           string
	Notes               string
	TotalFiles          int
	ProcessedFiles      int
	TotalBytes          int64
	CreatedAt           time.Time
	ProcessingCompleted *time.Time
}

// Face is one detected face within one asset.
type Face struct {
	ID         int64
	AssetID    string
	X          float64
	Y          float64
	Width      float64
	Height     float64
	Confidence float64
	Embedding  []float64
	ClusterID  string
	PersonName string
}

// Cluster groups faces believed to belong to the same person.
type Cluster struct {
	ID           string
	PersonName   string
	FaceCount    int
	Confidence   float64
	SampleAssets []string
}

// SimilarityKind distinguishes exact-hash matches from perceptual ones.
type SimilarityKind string

const (
	SimilarityHash  SimilarityKind = "hash"
	SimilarityPhash SimilarityKind = "phash"
)

// DuplicateRecord is a detected relationship between a master asset and a
// duplicate candidate.
type DuplicateRecord struct {
	ID        int64
	MasterID  string
	AssetID   string
	Kind      SimilarityKind
	Score     float64
	Resolved  bool
	CreatedAt time.Time
}

// Embedding is a semantic vector computed for an asset.
type Embedding struct {
	ID        string
	AssetID   string
	Model     string
	Vector    []float64
	CreatedAt time.Time
}

// HealthSummary describes aggregated asset counts per key lifecycle states.
type HealthSummary struct {
	Total      int
	Uploaded   int
	Processing int
	Review     int
	Duplicate  int
	Errored    int
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// ParseMediaKind converts a string into a MediaKind, defaulting to unknown.
func ParseMediaKind(value string) MediaKind {
	switch MediaKind(strings.ToLower(strings.TrimSpace(value))) {
	case MediaImage:
		return MediaImage
	case MediaVideo:
		return MediaVideo
	case MediaAudio:
		return MediaAudio
	default:
		return MediaUnknown
	}
}

// IsProcessing returns true when the status reflects an in-flight stage.
func (a Asset) IsProcessing() bool {
	_, ok := processingStatuses[a.Status]
	return ok
}

// IsProcessingStatus reports whether a status reflects an in-flight stage.
func IsProcessingStatus(status Status) bool {
	_, ok := processingStatuses[status]
	return ok
}

// IsTerminal reports whether the worker considers the status final.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusNeedsReview, StatusDuplicate, StatusError, StatusApproved, StatusArchived:
		return true
	default:
		return false
	}
}

// RecordError appends a message to the asset's error list.
func (a *Asset) RecordError(message string) {
	a.ProcessingErrors.Append(message)
}

// SetFailed marks the asset errored with the given message and clears its
// heartbeat.
func (a *Asset) SetFailed(message string) {
	a.Status = StatusError
	a.RecordError(message)
	a.LastHeartbeat = nil
}

// ProcessingLane partitions the workflow into CPU-bound foreground stages and
// the strictly serial inference lane.
type ProcessingLane string

const (
	LaneForeground ProcessingLane = "foreground"
	LaneInference  ProcessingLane = "inference"
)

// LaneForAsset maps an asset to its processing lane for observability purposes.
func LaneForAsset(asset *Asset) ProcessingLane {
	if asset == nil {
		return LaneForeground
	}
	switch asset.Status {
	case StatusResolved, StatusAnalyzing:
		return LaneInference
	default:
		return LaneForeground
	}
}
