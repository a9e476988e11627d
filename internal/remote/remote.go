package remote

import (
	"context"
	"time"
)

// File describes one file visible through the remote contract.
type File struct {
	ID          string
	Name        string
	Contributor string
	Path        string
	SizeBytes   int64
	ModTime     time.Time
}

// HoldingFolder names a terminal destination under HOLDING/.
type HoldingFolder string

const (
	HoldingNeedsReview        HoldingFolder = "NeedsReview"
	HoldingPossibleDuplicates HoldingFolder = "PossibleDuplicates"
	HoldingLowConfidence      HoldingFolder = "LowConfidence"
)

// MetadataKind names a subdirectory of the METADATA/ area.
type MetadataKind string

const (
	MetadataSidecars    MetadataKind = "sidecars"
	MetadataThumbnails  MetadataKind = "thumbnails"
	MetadataPosters     MetadataKind = "posters"
	MetadataTranscripts MetadataKind = "transcripts"
)

// ManifestFile is one uploaded file listed in a batch manifest.
type ManifestFile struct {
	RemoteFileID string `json:"drive_file_id"`
	Filename     string `json:"filename"`
	MimeType     string `json:"mime_type"`
}

// Manifest is the batch context document a contributor's upload session
// drops into INBOX/_MANIFESTS.
type Manifest struct {
	BatchID          string         `json:"batch_id"`
	ContributorToken string         `json:"contributor_token"`
	Decade           int            `json:"decade,omitempty"`
	EventName        string         `json:"event_name,omitempty"`
	Notes            string         `json:"notes,omitempty"`
	Files            []ManifestFile `json:"files,omitempty"`
	CreatedAt        time.Time      `json:"created_at,omitempty"`
}

// Source is the remote folder contract. Listing never mutates; Claim is the
// single mutual-exclusion point between workers; Route performs exactly one
// move into a holding folder and never deletes.
type Source interface {
	// ListInbox returns unclaimed files across all contributor folders,
	// oldest first.
	ListInbox(ctx context.Context) ([]File, error)

	// ListManifests returns the parsed batch manifests currently present.
	// A malformed manifest is skipped, not fatal.
	ListManifests(ctx context.Context) ([]Manifest, error)

	// Claim moves file into the processing area under claimedName and
	// returns its new location. A claim that fails because another worker
	// already took the file returns an error wrapping fs.ErrNotExist.
	Claim(ctx context.Context, file File, claimedName string) (File, error)

	// Download copies the claimed file's bytes to localPath.
	Download(ctx context.Context, file File, localPath string) error

	// Release returns a claimed file to its inbox location after a failed
	// ingest so a later cycle can claim it again. claimed is the file as
	// returned by Claim; original is the inbox file the claim started from.
	Release(ctx context.Context, claimed, original File) error

	// Route moves a claimed file into the named holding folder.
	Route(ctx context.Context, file File, folder HoldingFolder) (File, error)

	// PutMetadata uploads localPath into the metadata area under name,
	// replacing any previous version.
	PutMetadata(ctx context.Context, kind MetadataKind, name, localPath string) error
}
