package dedupe_test

import (
	"context"
	"fmt"
	"testing"

	"archivist/internal/dedupe"
	"archivist/internal/store"
	"archivist/internal/testsupport"
)

func insertImage(t *testing.T, st *store.Store, sha256, phash string, master bool) *store.Asset {
	t.Helper()
	asset, err := st.InsertAsset(context.Background(), &store.Asset{
		SHA256:           sha256,
		Phash:            phash,
		OriginalFilename: sha256 + ".jpg",
		MediaKind:        store.MediaImage,
		IsMaster:         master,
	})
	if err != nil {
		t.Fatalf("insert asset: %v", err)
	}
	return asset
}

func TestResolveExactHashWins(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	master := insertImage(t, st, "same-bytes", "0000000000000000", true)
	// A perceptual near-match exists too, but the exact hash takes priority.
	insertImage(t, st, "other-bytes", "0000000000000001", true)
	candidate := insertImage(t, st, "same-bytes", "0000000000000001", true)

	resolver := dedupe.NewResolver(st, 5, nil)
	match, err := resolver.Resolve(ctx, candidate)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if match == nil {
		t.Fatal("expected a match")
	}
	if match.Kind != store.SimilarityHash || match.Score != 1.0 {
		t.Fatalf("expected exact-hash match, got %#v", match)
	}
	if match.MasterID != master.ID {
		t.Fatalf("expected master %s, got %s", master.ID, match.MasterID)
	}
}

func TestResolvePerceptualWithinThreshold(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	near := insertImage(t, st, "hash-a", "0000000000000003", true) // distance 2 from 1
	insertImage(t, st, "hash-b", "00000000000000ff", true)         // distance 7, outside
	candidate := insertImage(t, st, "hash-c", "0000000000000001", true)

	resolver := dedupe.NewResolver(st, 5, nil)
	match, err := resolver.Resolve(ctx, candidate)
	if err != nil {
		t.Fatal(err)
	}
	if match == nil {
		t.Fatal("expected perceptual match")
	}
	if match.Kind != store.SimilarityPhash || match.MasterID != near.ID {
		t.Fatalf("unexpected match: %#v", match)
	}
	if match.Distance != 1 {
		t.Fatalf("expected distance 1, got %d", match.Distance)
	}
	if match.Score <= 0.9 {
		t.Fatalf("unexpected score: %v", match.Score)
	}
}

func TestResolveThresholdMonotonicity(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	// Masters at distances 1, 3, 6, 10 from the probe fingerprint.
	insertImage(t, st, "m1", "0000000000000001", true)
	insertImage(t, st, "m3", "0000000000000007", true)
	insertImage(t, st, "m6", "000000000000003f", true)
	insertImage(t, st, "m10", "00000000000003ff", true)

	counts := make([]int, 0, 4)
	for _, threshold := range []int{0, 2, 5, 12} {
		probe := insertImage(t, st, fmt.Sprintf("probe-%d", threshold), "0000000000000000", true)
		resolver := dedupe.NewResolver(st, threshold, nil)
		match, err := resolver.Resolve(ctx, probe)
		if err != nil {
			t.Fatal(err)
		}
		found := 0
		if match != nil {
			found = 1
		}
		counts = append(counts, found)
		if _, err := st.Remove(ctx, probe.ID); err != nil {
			t.Fatal(err)
		}
	}

	// Raising the threshold never loses a detection.
	for i := 1; i < len(counts); i++ {
		if counts[i] < counts[i-1] {
			t.Fatalf("monotonicity violated: %v", counts)
		}
	}
	if counts[0] != 0 || counts[3] != 1 {
		t.Fatalf("unexpected detection pattern: %v", counts)
	}
}

func TestResolveNonImagesSkipPerceptual(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	insertImage(t, st, "img", "0000000000000000", true)
	video, err := st.InsertAsset(ctx, &store.Asset{
		SHA256:           "video-hash",
		Phash:            "0000000000000000",
		OriginalFilename: "clip.mp4",
		MediaKind:        store.MediaVideo,
		IsMaster:         true,
	})
	if err != nil {
		t.Fatal(err)
	}

	resolver := dedupe.NewResolver(st, 5, nil)
	match, err := resolver.Resolve(ctx, video)
	if err != nil {
		t.Fatal(err)
	}
	if match != nil {
		t.Fatalf("videos must not match image fingerprints: %#v", match)
	}
}

func TestResolveMissingFingerprintDegrades(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	insertImage(t, st, "a", "0000000000000000", true)
	candidate := insertImage(t, st, "b", "", true)

	resolver := dedupe.NewResolver(st, 5, nil)
	match, err := resolver.Resolve(ctx, candidate)
	if err != nil {
		t.Fatal(err)
	}
	if match != nil {
		t.Fatalf("no fingerprint means exact-hash only: %#v", match)
	}
}

func TestApplyPointsAtMasterAndRecords(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	master := insertImage(t, st, "bytes", "0000000000000000", true)
	duplicate := insertImage(t, st, "bytes", "0000000000000000", true)

	resolver := dedupe.NewResolver(st, 5, nil)
	match, err := resolver.Resolve(ctx, duplicate)
	if err != nil {
		t.Fatal(err)
	}
	if err := resolver.Apply(ctx, duplicate, match); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	if duplicate.DuplicateOf != master.ID || duplicate.IsMaster {
		t.Fatalf("asset not demoted: %#v", duplicate)
	}
	records, err := st.DuplicatesForMaster(ctx, master.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 || records[0].Kind != store.SimilarityHash {
		t.Fatalf("unexpected records: %#v", records)
	}
}

func TestResolveFollowsOneHopToMaster(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	older := insertImage(t, st, "bytes", "0000000000000000", true)
	master := insertImage(t, st, "bytes", "0000000000000000", true)

	// Curation re-mastered the pair: the earliest upload is now the duplicate.
	older.IsMaster = false
	older.DuplicateOf = master.ID
	if err := st.Update(ctx, older); err != nil {
		t.Fatal(err)
	}

	// The earliest hash match may itself be a duplicate; the new asset must
	// still end up pointing at the master, never chaining.
	third := insertImage(t, st, "bytes", "0000000000000000", true)
	resolver := dedupe.NewResolver(st, 5, nil)
	match, err := resolver.Resolve(ctx, third)
	if err != nil {
		t.Fatal(err)
	}
	if match == nil || match.MasterID != master.ID {
		t.Fatalf("expected one-hop master %s, got %#v", master.ID, match)
	}
}
