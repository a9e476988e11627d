package store_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"archivist/internal/services"
	"archivist/internal/store"
	"archivist/internal/testsupport"
)

func TestOpenInitializesSchemaAndRoundTrips(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	capture := time.Date(2024, 12, 25, 10, 0, 0, 0, time.UTC)
	asset, err := st.InsertAsset(ctx, &store.Asset{
		SHA256:           "abc123",
		Phash:            "f0f0f0f0f0f0f0f0",
		RemoteFileID:     "remote-1",
		OriginalFilename: "christmas.jpg",
		Contributor:      "grandma_j",
		MediaKind:        store.MediaImage,
		SizeBytes:        2 << 20,
		CaptureAt:        &capture,
		EstimatedDecade:  2020,
		IsMaster:         true,
	})
	if err != nil {
		t.Fatalf("InsertAsset failed: %v", err)
	}
	if asset.ID == "" {
		t.Fatal("expected asset ID to be assigned")
	}
	if asset.Status != store.StatusUploaded {
		t.Fatalf("expected uploaded status, got %s", asset.Status)
	}

	fetched, err := st.GetByID(ctx, asset.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if fetched == nil || fetched.OriginalFilename != "christmas.jpg" {
		t.Fatalf("unexpected fetched asset: %#v", fetched)
	}
	if fetched.CaptureAt == nil || !fetched.CaptureAt.Equal(capture) {
		t.Fatalf("capture timestamp mismatch: %v", fetched.CaptureAt)
	}
	if !fetched.IsMaster {
		t.Fatal("expected master flag to persist")
	}

	byHash, err := st.FindBySHA256(ctx, "abc123")
	if err != nil {
		t.Fatalf("FindBySHA256 failed: %v", err)
	}
	if byHash == nil || byHash.ID != asset.ID {
		t.Fatalf("expected to find inserted asset, got %#v", byHash)
	}

	byRemote, err := st.FindByRemoteID(ctx, "remote-1")
	if err != nil {
		t.Fatalf("FindByRemoteID failed: %v", err)
	}
	if byRemote == nil || byRemote.ID != asset.ID {
		t.Fatalf("expected remote lookup to match, got %#v", byRemote)
	}
}

func TestFindBySHA256PrefersEarliestCreated(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	first, err := st.InsertAsset(ctx, &store.Asset{
		SHA256:           "same-hash",
		OriginalFilename: "a.jpg",
		MediaKind:        store.MediaImage,
		IsMaster:         true,
		CreatedAt:        time.Now().UTC().Add(-time.Hour),
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := st.InsertAsset(ctx, &store.Asset{
		SHA256:           "same-hash",
		OriginalFilename: "b.jpg",
		MediaKind:        store.MediaImage,
	}); err != nil {
		t.Fatal(err)
	}

	found, err := st.FindBySHA256(ctx, "same-hash")
	if err != nil {
		t.Fatal(err)
	}
	if found == nil || found.ID != first.ID {
		t.Fatalf("expected earliest asset %s, got %#v", first.ID, found)
	}
}

func TestUpdatePersistsProcessingErrors(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	asset := testsupport.NewAsset(t, st, "hash-err", "broken.jpg")
	asset.RecordError("caption: model load failed")
	asset.RecordError("transcribe: unsupported input")
	asset.Status = store.StatusAnalyzed
	if err := st.Update(ctx, asset); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	fetched, err := st.GetByID(ctx, asset.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(fetched.ProcessingErrors) != 2 {
		t.Fatalf("expected 2 errors, got %v", fetched.ProcessingErrors)
	}
	if fetched.ProcessingErrors[0] != "caption: model load failed" {
		t.Fatalf("error order not preserved: %v", fetched.ProcessingErrors)
	}
}

func TestImagePerceptualCandidatesFiltering(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	withPhash, err := st.InsertAsset(ctx, &store.Asset{
		SHA256: "h1", OriginalFilename: "a.jpg", MediaKind: store.MediaImage,
		Phash: "aaaa", IsMaster: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := st.InsertAsset(ctx, &store.Asset{
		SHA256: "h2", OriginalFilename: "b.jpg", MediaKind: store.MediaImage,
		IsMaster: true,
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := st.InsertAsset(ctx, &store.Asset{
		SHA256: "h3", OriginalFilename: "c.mp4", MediaKind: store.MediaVideo,
		Phash: "bbbb", IsMaster: true,
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := st.InsertAsset(ctx, &store.Asset{
		SHA256: "h4", OriginalFilename: "d.jpg", MediaKind: store.MediaImage,
		Phash: "cccc", IsMaster: false,
	}); err != nil {
		t.Fatal(err)
	}

	candidates, err := st.ImagePerceptualCandidates(ctx, "some-other-asset")
	if err != nil {
		t.Fatalf("ImagePerceptualCandidates failed: %v", err)
	}
	if len(candidates) != 1 {
		t.Fatalf("expected only the master image with a fingerprint, got %#v", candidates)
	}
	if candidates[0].AssetID != withPhash.ID || candidates[0].Phash != "aaaa" {
		t.Fatalf("unexpected candidate: %#v", candidates[0])
	}

	// The asset being resolved never competes against itself.
	candidates, err = st.ImagePerceptualCandidates(ctx, withPhash.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(candidates) != 0 {
		t.Fatalf("expected self-exclusion, got %#v", candidates)
	}
}

func TestRecordDuplicateInvariants(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	master := testsupport.NewAsset(t, st, "m-hash", "master.jpg")
	dup := testsupport.NewAsset(t, st, "d-hash", "dup.jpg")

	record := &store.DuplicateRecord{
		MasterID: master.ID,
		AssetID:  dup.ID,
		Kind:     store.SimilarityPhash,
		Score:    0.92,
	}
	if err := st.RecordDuplicate(ctx, record); err != nil {
		t.Fatalf("RecordDuplicate failed: %v", err)
	}

	// Same ordered pair refreshes rather than duplicating.
	record.Kind = store.SimilarityHash
	record.Score = 1.0
	if err := st.RecordDuplicate(ctx, record); err != nil {
		t.Fatalf("RecordDuplicate upsert failed: %v", err)
	}

	records, err := st.DuplicatesForMaster(ctx, master.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 {
		t.Fatalf("expected single record for pair, got %d", len(records))
	}
	if records[0].Kind != store.SimilarityHash || records[0].Score != 1.0 {
		t.Fatalf("expected refreshed record, got %#v", records[0])
	}

	if err := st.RecordDuplicate(ctx, &store.DuplicateRecord{MasterID: master.ID, AssetID: master.ID}); err == nil {
		t.Fatal("expected self-referential record to be rejected")
	}

	unresolved, err := st.UnresolvedDuplicates(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(unresolved) != 1 {
		t.Fatalf("expected 1 unresolved record, got %d", len(unresolved))
	}
	if err := st.ResolveDuplicate(ctx, unresolved[0].ID); err != nil {
		t.Fatalf("ResolveDuplicate failed: %v", err)
	}
	unresolved, err = st.UnresolvedDuplicates(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(unresolved) != 0 {
		t.Fatalf("expected no unresolved records, got %d", len(unresolved))
	}
}

func TestBatchLifecycle(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	batch, err := st.EnsureBatch(ctx, &store.Batch{Contributor: "uncle_pete", EventName: "Lake Trip"})
	if err != nil {
		t.Fatalf("EnsureBatch failed: %v", err)
	}
	if batch.ID == "" {
		t.Fatal("expected batch ID to be assigned")
	}

	// Idempotent for the same id.
	again, err := st.EnsureBatch(ctx, &store.Batch{ID: batch.ID, Contributor: "someone_else"})
	if err != nil {
		t.Fatal(err)
	}
	if again.Contributor != "uncle_pete" {
		t.Fatalf("EnsureBatch should not overwrite, got %q", again.Contributor)
	}

	for i := 0; i < 2; i++ {
		if err := st.BatchFileRecorded(ctx, batch.ID, 1024); err != nil {
			t.Fatalf("BatchFileRecorded failed: %v", err)
		}
	}

	updated, err := st.BatchFileProcessed(ctx, batch.ID)
	if err != nil {
		t.Fatalf("BatchFileProcessed failed: %v", err)
	}
	if updated.ProcessedFiles != 1 || updated.ProcessingCompleted != nil {
		t.Fatalf("batch should still be open: %#v", updated)
	}

	updated, err = st.BatchFileProcessed(ctx, batch.ID)
	if err != nil {
		t.Fatal(err)
	}
	if updated.ProcessedFiles != 2 {
		t.Fatalf("expected 2 processed files, got %d", updated.ProcessedFiles)
	}
	if updated.ProcessingCompleted == nil {
		t.Fatal("expected batch closure once processed reaches total")
	}
	if updated.TotalBytes != 2048 {
		t.Fatalf("expected 2048 total bytes, got %d", updated.TotalBytes)
	}
}

func TestReplaceFaces(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	asset := testsupport.NewAsset(t, st, "face-hash", "group.jpg")

	faces := []store.Face{
		{X: 0.1, Y: 0.1, Width: 0.2, Height: 0.2, Confidence: 0.98, Embedding: []float64{0.1, 0.2}},
		{X: 0.5, Y: 0.4, Width: 0.2, Height: 0.25, Confidence: 0.87},
	}
	if err := st.ReplaceFaces(ctx, asset.ID, faces); err != nil {
		t.Fatalf("ReplaceFaces failed: %v", err)
	}

	stored, err := st.FacesForAsset(ctx, asset.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(stored) != 2 {
		t.Fatalf("expected 2 faces, got %d", len(stored))
	}
	if len(stored[0].Embedding) != 2 {
		t.Fatalf("embedding not persisted: %#v", stored[0])
	}

	// A rerun replaces rather than appends.
	if err := st.ReplaceFaces(ctx, asset.ID, faces[:1]); err != nil {
		t.Fatal(err)
	}
	stored, err = st.FacesForAsset(ctx, asset.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(stored) != 1 {
		t.Fatalf("expected faces to be replaced, got %d", len(stored))
	}

	if err := st.AssignFaceCluster(ctx, stored[0].ID, "cluster-1"); err != nil {
		t.Fatalf("AssignFaceCluster failed: %v", err)
	}
	clusters, err := st.ListClusters(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(clusters) != 1 || clusters[0].FaceCount != 1 {
		t.Fatalf("unexpected clusters: %#v", clusters)
	}
}

func TestInsertEmbedding(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	asset := testsupport.NewAsset(t, st, "embed-hash", "photo.jpg")

	id, err := st.InsertEmbedding(ctx, &store.Embedding{
		AssetID: asset.ID,
		Model:   "clip-vit-b32",
		Vector:  []float64{0.1, 0.2, 0.3},
	})
	if err != nil {
		t.Fatalf("InsertEmbedding failed: %v", err)
	}

	stored, err := st.GetEmbedding(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if stored == nil || stored.AssetID != asset.ID || len(stored.Vector) != 3 {
		t.Fatalf("unexpected embedding: %#v", stored)
	}

	if _, err := st.InsertEmbedding(ctx, &store.Embedding{AssetID: asset.ID}); err == nil {
		t.Fatal("expected error for empty vector")
	}
}

func TestResetStuckProcessing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	cases := []struct {
		initial store.Status
		want    store.Status
	}{
		{store.StatusEnriching, store.StatusUploaded},
		{store.StatusResolving, store.StatusEnriched},
		{store.StatusAnalyzing, store.StatusResolved},
		{store.StatusFinalizing, store.StatusAnalyzed},
		{store.StatusNeedsReview, store.StatusNeedsReview},
	}

	ids := make([]string, len(cases))
	for i, tc := range cases {
		asset := testsupport.NewAsset(t, st, fmt.Sprintf("hash-%d", i), fmt.Sprintf("f%d.jpg", i))
		asset.Status = tc.initial
		if err := st.Update(ctx, asset); err != nil {
			t.Fatal(err)
		}
		ids[i] = asset.ID
	}

	affected, err := st.ResetStuckProcessing(ctx)
	if err != nil {
		t.Fatalf("ResetStuckProcessing failed: %v", err)
	}
	if affected != 4 {
		t.Fatalf("expected 4 assets reset, got %d", affected)
	}

	for i, tc := range cases {
		asset, err := st.GetByID(ctx, ids[i])
		if err != nil {
			t.Fatal(err)
		}
		if asset.Status != tc.want {
			t.Fatalf("case %d: got %s want %s", i, asset.Status, tc.want)
		}
	}
}

func TestReclaimStaleProcessing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	stale := testsupport.NewAsset(t, st, "stale-hash", "stale.jpg")
	stale.Status = store.StatusAnalyzing
	past := time.Now().UTC().Add(-time.Hour)
	stale.LastHeartbeat = &past
	if err := st.Update(ctx, stale); err != nil {
		t.Fatal(err)
	}

	fresh := testsupport.NewAsset(t, st, "fresh-hash", "fresh.jpg")
	fresh.Status = store.StatusAnalyzing
	if err := st.Update(ctx, fresh); err != nil {
		t.Fatal(err)
	}
	if err := st.UpdateHeartbeat(ctx, fresh.ID); err != nil {
		t.Fatal(err)
	}

	affected, err := st.ReclaimStaleProcessing(ctx, time.Now().UTC().Add(-time.Minute))
	if err != nil {
		t.Fatalf("ReclaimStaleProcessing failed: %v", err)
	}
	if affected != 1 {
		t.Fatalf("expected 1 asset reclaimed, got %d", affected)
	}

	reclaimed, err := st.GetByID(ctx, stale.ID)
	if err != nil {
		t.Fatal(err)
	}
	if reclaimed.Status != store.StatusResolved {
		t.Fatalf("expected rollback to resolved, got %s", reclaimed.Status)
	}
	if reclaimed.LastHeartbeat != nil {
		t.Fatal("expected heartbeat cleared on reclaim")
	}

	untouched, err := st.GetByID(ctx, fresh.ID)
	if err != nil {
		t.Fatal(err)
	}
	if untouched.Status != store.StatusAnalyzing {
		t.Fatalf("fresh asset should keep processing, got %s", untouched.Status)
	}
}

func TestRetryErrored(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	a := testsupport.NewAsset(t, st, "err-1", "a.jpg")
	a.SetFailed("boom")
	if err := st.Update(ctx, a); err != nil {
		t.Fatal(err)
	}
	b := testsupport.NewAsset(t, st, "err-2", "b.jpg")
	b.SetFailed("bang")
	if err := st.Update(ctx, b); err != nil {
		t.Fatal(err)
	}

	affected, err := st.RetryErrored(ctx, a.ID)
	if err != nil {
		t.Fatalf("RetryErrored failed: %v", err)
	}
	if affected != 1 {
		t.Fatalf("expected 1 asset retried, got %d", affected)
	}

	retried, err := st.GetByID(ctx, a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if retried.Status != store.StatusUploaded {
		t.Fatalf("expected uploaded after retry, got %s", retried.Status)
	}

	affected, err = st.RetryErrored(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if affected != 1 {
		t.Fatalf("expected remaining errored asset retried, got %d", affected)
	}
}

func TestHealthCounts(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	statuses := []store.Status{
		store.StatusUploaded,
		store.StatusEnriching,
		store.StatusNeedsReview,
		store.StatusDuplicate,
		store.StatusError,
	}
	for i, status := range statuses {
		asset := testsupport.NewAsset(t, st, fmt.Sprintf("health-%d", i), fmt.Sprintf("h%d.jpg", i))
		asset.Status = status
		if err := st.Update(ctx, asset); err != nil {
			t.Fatal(err)
		}
	}

	health, err := st.Health(ctx)
	if err != nil {
		t.Fatalf("Health failed: %v", err)
	}
	if health.Total != 5 || health.Uploaded != 1 || health.Processing != 1 ||
		health.Review != 1 || health.Duplicate != 1 || health.Errored != 1 {
		t.Fatalf("unexpected health summary: %#v", health)
	}
}

func TestFailureStatusClassification(t *testing.T) {
	validation := services.Wrap(services.ErrValidation, "enricher", "probe", "unreadable input", errors.New("bad header"))
	if got := store.FailureStatus(validation); got != store.StatusNeedsReview {
		t.Fatalf("validation errors should route to review, got %s", got)
	}

	tool := services.Wrap(services.ErrExternalTool, "analyzer", "caption", "model crashed", errors.New("exit 1"))
	if got := store.FailureStatus(tool); got != store.StatusError {
		t.Fatalf("tool errors should route to error, got %s", got)
	}

	if got := store.FailureStatus(errors.New("plain")); got != store.StatusError {
		t.Fatalf("plain errors should route to error, got %s", got)
	}
}
