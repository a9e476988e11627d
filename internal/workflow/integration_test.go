package workflow_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"archivist/internal/config"
	"archivist/internal/fileutil"
	"archivist/internal/inference"
	"archivist/internal/pipeline"
	"archivist/internal/remote"
	"archivist/internal/store"
	"archivist/internal/testsupport"
	"archivist/internal/workflow"
)

// fixedRunner returns a canned result and satisfies the full model
// contract, standing in for the external model commands.
type fixedRunner struct {
	name   string
	result inference.Result
}

func (f *fixedRunner) Name() string                     { return f.name }
func (f *fixedRunner) Load(ctx context.Context) error   { return nil }
func (f *fixedRunner) Unload(ctx context.Context) error { return nil }
func (f *fixedRunner) Run(ctx context.Context, req inference.Request) (inference.Result, error) {
	return f.result, nil
}

func cannedStages() []inference.Stage {
	return []inference.Stage{
		{
			Name:   "caption",
			Runner: &fixedRunner{name: "caption", result: inference.Result{Caption: "people outdoors"}},
		},
		{
			Name:   "embedding",
			Runner: &fixedRunner{name: "embedding", result: inference.Result{EmbeddingModel: "clip-vit-b32", EmbeddingVector: []float64{0.5, 0.25}}},
		},
		{
			Name:    "transcript",
			Applies: func(asset *store.Asset) bool { return asset.MediaKind == store.MediaVideo },
			Guard:   inference.DurationGuard(8),
			Runner:  &fixedRunner{name: "transcript", result: inference.Result{Transcript: "should never appear for long clips"}},
		},
	}
}

func startFullPipeline(t *testing.T, cfg *config.Config, st *store.Store, source *remote.FS) *workflow.Manager {
	t.Helper()

	scheduler := inference.NewScheduler(inference.NewSession(), cannedStages(), true, time.Minute, nil)
	set := workflow.StageSet{
		Enricher:         pipeline.NewEnricher(cfg, st, nil),
		Resolver:         pipeline.NewResolver(cfg, st, nil),
		Analyzer:         pipeline.NewAnalyzer(cfg, st, scheduler, nil),
		Finalizer:        pipeline.NewFinalizer(cfg, st, source, nil),
		InferenceSession: scheduler.Session(),
	}
	return startManager(t, cfg, st, set)
}

// ingestFixture simulates what the ingest poller does: the remote file is
// claimed into PROCESSING, downloaded to the local scratch directory, and
// recorded with status uploaded.
func ingestFixture(t *testing.T, cfg *config.Config, st *store.Store, source *remote.FS, filename string, kind store.MediaKind, write func(path string)) *store.Asset {
	t.Helper()

	claimedName := "claim_" + filename
	claimedRel := filepath.Join("PROCESSING", claimedName)
	remotePath := filepath.Join(source.Root(), claimedRel)
	write(remotePath)

	localPath := filepath.Join(cfg.DownloadDir(), claimedName)
	if err := fileutil.CopyFile(remotePath, localPath); err != nil {
		t.Fatalf("download fixture: %v", err)
	}

	asset, err := st.InsertAsset(context.Background(), &store.Asset{
		RemoteFileID:     claimedRel,
		RemotePath:       claimedRel,
		OriginalFilename: filename,
		Contributor:      "grandma_j",
		MediaKind:        kind,
		IsMaster:         true,
		LocalPath:        localPath,
	})
	if err != nil {
		t.Fatalf("insert asset: %v", err)
	}
	return asset
}

func TestPipelineProcessesImageEndToEnd(t *testing.T) {
	cfg := newTestConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	source, err := remote.NewFS(cfg.Paths.RemoteRoot)
	if err != nil {
		t.Fatal(err)
	}

	asset := ingestFixture(t, cfg, st, source, "reunion_1987_scan.png", store.MediaImage, func(path string) {
		testsupport.WriteImage(t, path, 800, 600, 3)
	})
	startFullPipeline(t, cfg, st, source)

	final := waitForStatus(t, st, asset.ID, store.StatusNeedsReview)

	if len(final.SHA256) != 64 {
		t.Fatalf("content hash missing: %q", final.SHA256)
	}
	if final.EstimatedDecade != 1980 {
		t.Fatalf("expected decade 1980 from filename, got %d", final.EstimatedDecade)
	}
	if final.Caption != "people outdoors" {
		t.Fatalf("caption missing: %q", final.Caption)
	}
	if final.EmbeddingID == "" {
		t.Fatal("embedding missing")
	}
	if final.Transcript != "" {
		t.Fatalf("images must not be transcribed: %q", final.Transcript)
	}
	if len(final.ProcessingErrors) != 0 {
		t.Fatalf("clean run recorded errors: %v", final.ProcessingErrors)
	}

	sidecarPath := filepath.Join(source.Root(), "METADATA", "sidecars", asset.ID+".json")
	if _, err := os.Stat(sidecarPath); err != nil {
		t.Fatalf("sidecar not mirrored to remote: %v", err)
	}
	routed := filepath.Join(source.Root(), "HOLDING", "NeedsReview", "claim_reunion_1987_scan.png")
	if _, err := os.Stat(routed); err != nil {
		t.Fatalf("original not routed to review: %v", err)
	}
}

func TestPipelineFlagsExactDuplicate(t *testing.T) {
	cfg := newTestConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	source, err := remote.NewFS(cfg.Paths.RemoteRoot)
	if err != nil {
		t.Fatal(err)
	}

	writeSame := func(path string) {
		testsupport.WriteImage(t, path, 400, 300, 7)
	}
	first := ingestFixture(t, cfg, st, source, "original.png", store.MediaImage, writeSame)
	startFullPipeline(t, cfg, st, source)
	waitForStatus(t, st, first.ID, store.StatusNeedsReview)

	second := ingestFixture(t, cfg, st, source, "copy.png", store.MediaImage, writeSame)
	final := waitForStatus(t, st, second.ID, store.StatusDuplicate)

	if final.DuplicateOf != first.ID {
		t.Fatalf("duplicate_of = %q, want %q", final.DuplicateOf, first.ID)
	}
	if final.IsMaster {
		t.Fatal("duplicate must be demoted from master")
	}
	if final.Caption != "" {
		t.Fatalf("duplicates must skip inference, got caption %q", final.Caption)
	}
	routed := filepath.Join(source.Root(), "HOLDING", "PossibleDuplicates", "claim_copy.png")
	if _, err := os.Stat(routed); err != nil {
		t.Fatalf("duplicate not routed: %v", err)
	}
}

func TestPipelineSkipsTranscriptionForLongVideos(t *testing.T) {
	cfg := newTestConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	source, err := remote.NewFS(cfg.Paths.RemoteRoot)
	if err != nil {
		t.Fatal(err)
	}

	// A ten minute clip, already probed. The asset enters at resolved so
	// the inference lane picks it up without needing ffprobe.
	asset, err := st.InsertAsset(context.Background(), &store.Asset{
		SHA256:           "video-hash",
		RemoteFileID:     "remote-video",
		RemotePath:       filepath.Join("PROCESSING", "claim_trip.mp4"),
		OriginalFilename: "trip.mp4",
		MediaKind:        store.MediaVideo,
		IsMaster:         true,
		Status:           store.StatusResolved,
		VideoJSON:        `{"duration_seconds":600,"width":1920,"height":1080}`,
	})
	if err != nil {
		t.Fatal(err)
	}
	localPath := filepath.Join(cfg.DownloadDir(), "claim_trip.mp4")
	testsupport.WriteFile(t, localPath, []byte("mp4-bytes"))
	testsupport.WriteFile(t, filepath.Join(source.Root(), asset.RemotePath), []byte("mp4-bytes"))
	asset.LocalPath = localPath
	if err := st.Update(context.Background(), asset); err != nil {
		t.Fatal(err)
	}

	startFullPipeline(t, cfg, st, source)
	final := waitForStatus(t, st, asset.ID, store.StatusNeedsReview)

	if final.Caption == "" || final.EmbeddingID == "" {
		t.Fatalf("visual stages must still run for long videos: caption=%q embedding=%q", final.Caption, final.EmbeddingID)
	}
	if final.Transcript != "" {
		t.Fatalf("transcription must be skipped past the duration limit, got %q", final.Transcript)
	}
	if len(final.ProcessingErrors) != 0 {
		t.Fatalf("a duration skip is not a failure: %v", final.ProcessingErrors)
	}
}

func TestPipelineRoutesCorruptFilesAndKeepsGoing(t *testing.T) {
	cfg := newTestConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	source, err := remote.NewFS(cfg.Paths.RemoteRoot)
	if err != nil {
		t.Fatal(err)
	}

	corrupt := ingestFixture(t, cfg, st, source, "damaged.jpg", store.MediaImage, func(path string) {
		testsupport.WriteFile(t, path, []byte("not actually a jpeg"))
	})
	healthy := ingestFixture(t, cfg, st, source, "fine.png", store.MediaImage, func(path string) {
		testsupport.WriteImage(t, path, 320, 240, 11)
	})

	startFullPipeline(t, cfg, st, source)

	corruptFinal := waitForStatus(t, st, corrupt.ID, store.StatusNeedsReview)
	if len(corruptFinal.ProcessingErrors) == 0 {
		t.Fatal("corrupt file should carry error entries")
	}

	healthyFinal := waitForStatus(t, st, healthy.ID, store.StatusNeedsReview)
	if len(healthyFinal.ProcessingErrors) != 0 {
		t.Fatalf("healthy file affected by earlier corruption: %v", healthyFinal.ProcessingErrors)
	}
}
