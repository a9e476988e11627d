package sidecar_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"archivist/internal/remote"
	"archivist/internal/sidecar"
	"archivist/internal/store"
	"archivist/internal/testsupport"
)

func TestStatusForAssetCollapsesStageStatuses(t *testing.T) {
	tests := []struct {
		internal store.Status
		want     sidecar.Status
	}{
		{store.StatusUploaded, sidecar.StatusUploaded},
		{store.StatusEnriching, sidecar.StatusProcessing},
		{store.StatusResolving, sidecar.StatusProcessing},
		{store.StatusAnalyzing, sidecar.StatusProcessing},
		{store.StatusFinalizing, sidecar.StatusProcessing},
		{store.StatusNeedsReview, sidecar.StatusNeedsReview},
		{store.StatusDuplicate, sidecar.StatusDuplicate},
		{store.StatusError, sidecar.StatusError},
		{store.StatusApproved, sidecar.StatusApproved},
		{store.StatusArchived, sidecar.StatusArchived},
	}
	for _, tc := range tests {
		if got := sidecar.StatusForAsset(tc.internal); got != tc.want {
			t.Fatalf("StatusForAsset(%s) = %s, want %s", tc.internal, got, tc.want)
		}
	}
}

func TestValidateRequiredFields(t *testing.T) {
	doc := &sidecar.Document{}
	if err := doc.Validate(); err == nil {
		t.Fatal("expected validation failure for empty document")
	}

	doc = &sidecar.Document{
		AssetID:          "a-1",
		SHA256:           "hash",
		OriginalFilename: "photo.jpg",
	}
	if err := doc.Validate(); err != nil {
		t.Fatalf("expected local-only document to validate: %v", err)
	}

	// Remote-sourced documents must carry the remote file identifier.
	doc.RemotePath = "HOLDING/NeedsReview/photo.jpg"
	if err := doc.Validate(); err == nil {
		t.Fatal("expected failure for remote path without file id")
	}
	doc.RemoteFileID = "remote-1"
	if err := doc.Validate(); err != nil {
		t.Fatalf("expected remote document to validate: %v", err)
	}
}

func TestFromAssetBuildsFullDocument(t *testing.T) {
	capture := time.Date(2024, 12, 25, 15, 0, 0, 0, time.UTC)
	exifBlock, _ := json.Marshal(sidecar.ExifData{CameraMake: "Canon", Orientation: 1})
	asset := &store.Asset{
		ID:               "a-1",
		SHA256:           "hash",
		Phash:            "f0f0f0f0f0f0f0f0",
		RemoteFileID:     "remote-1",
		RemotePath:       "PROCESSING/a-1_photo.jpg",
		OriginalFilename: "photo.jpg",
		Contributor:      "grandma_j",
		MediaKind:        store.MediaImage,
		SizeBytes:        2 << 20,
		Status:           store.StatusNeedsReview,
		CaptureAt:        &capture,
		EstimatedDecade:  2020,
		IsMaster:         true,
		Tags:             "christmas, family",
		ExifJSON:         string(exifBlock),
	}
	faces := []store.Face{
		{X: 0.1, Y: 0.2, Width: 0.3, Height: 0.3, Confidence: 0.95, Embedding: []float64{0.5}},
	}

	doc, err := sidecar.FromAsset(asset, faces)
	if err != nil {
		t.Fatalf("FromAsset failed: %v", err)
	}
	if doc.AssetType != "image" || doc.Decade != 2020 {
		t.Fatalf("unexpected document: %#v", doc)
	}
	if doc.Status != sidecar.StatusNeedsReview {
		t.Fatalf("unexpected status %s", doc.Status)
	}
	if doc.Exif == nil || doc.Exif.CameraMake != "Canon" {
		t.Fatalf("exif block not recovered: %#v", doc.Exif)
	}
	if doc.EstimatedDate == nil || !doc.EstimatedDate.Equal(capture) {
		t.Fatalf("estimated date should follow capture: %v", doc.EstimatedDate)
	}
	if len(doc.Faces) != 1 || doc.Faces[0].Box.Confidence != 0.95 {
		t.Fatalf("faces not carried: %#v", doc.Faces)
	}
	if len(doc.Tags) != 2 || doc.Tags[0] != "christmas" {
		t.Fatalf("tags not split: %#v", doc.Tags)
	}
	if err := doc.Validate(); err != nil {
		t.Fatalf("built document should validate: %v", err)
	}
}

func TestFromAssetFallsBackToUploadTime(t *testing.T) {
	uploaded := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	asset := &store.Asset{
		ID:               "a-2",
		SHA256:           "hash",
		OriginalFilename: "scan.jpg",
		MediaKind:        store.MediaImage,
		UploadedAt:       uploaded,
	}
	doc, err := sidecar.FromAsset(asset, nil)
	if err != nil {
		t.Fatal(err)
	}
	if doc.ExifDate != nil {
		t.Fatalf("expected nil exif date: %v", doc.ExifDate)
	}
	if doc.EstimatedDate == nil || !doc.EstimatedDate.Equal(uploaded) {
		t.Fatalf("estimated date should fall back to upload time: %v", doc.EstimatedDate)
	}
}

func TestWriterOrdersLocalStoreRemote(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	source, err := remote.NewFS(cfg.Paths.RemoteRoot)
	if err != nil {
		t.Fatal(err)
	}

	asset := testsupport.NewAsset(t, st, "writer-hash", "photo.jpg")
	asset.Status = store.StatusNeedsReview
	doc, err := sidecar.FromAsset(asset, nil)
	if err != nil {
		t.Fatal(err)
	}

	writer := sidecar.NewWriter(st, source, cfg.SidecarCacheDir(), nil)
	if err := writer.Write(ctx, doc, asset); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	localData, err := os.ReadFile(writer.LocalPath(asset.ID))
	if err != nil {
		t.Fatalf("expected local sidecar: %v", err)
	}
	remoteData, err := os.ReadFile(filepath.Join(cfg.Paths.RemoteRoot, "METADATA", "sidecars", asset.ID+".json"))
	if err != nil {
		t.Fatalf("expected remote mirror: %v", err)
	}
	if string(localData) != string(remoteData) {
		t.Fatal("local and remote sidecars diverge")
	}

	persisted, err := st.GetByID(ctx, asset.ID)
	if err != nil {
		t.Fatal(err)
	}
	if persisted.Status != store.StatusNeedsReview {
		t.Fatalf("store row not persisted, status %s", persisted.Status)
	}

	roundTrip, err := writer.ReadLocal(asset.ID)
	if err != nil {
		t.Fatalf("ReadLocal failed: %v", err)
	}
	if roundTrip.AssetID != asset.ID || roundTrip.Status != sidecar.StatusNeedsReview {
		t.Fatalf("unexpected round trip: %#v", roundTrip)
	}
}

func TestWriterRejectsInvalidDocument(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	writer := sidecar.NewWriter(st, nil, cfg.SidecarCacheDir(), nil)
	err := writer.Write(context.Background(), &sidecar.Document{}, &store.Asset{})
	if err == nil {
		t.Fatal("expected validation error")
	}
	if _, statErr := os.Stat(writer.LocalPath("")); statErr == nil {
		t.Fatal("invalid document must not reach the local cache")
	}
}
