package router_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"archivist/internal/remote"
	"archivist/internal/router"
	"archivist/internal/store"
	"archivist/internal/testsupport"
)

func TestDecide(t *testing.T) {
	tests := []struct {
		name  string
		asset *store.Asset
		want  router.Decision
	}{
		{
			name:  "clean asset goes to review",
			asset: &store.Asset{SHA256: "h", Caption: "a lake"},
			want:  router.Decision{Status: store.StatusNeedsReview, Folder: remote.HoldingNeedsReview},
		},
		{
			name:  "duplicate wins over everything",
			asset: &store.Asset{SHA256: "h", DuplicateOf: "master-1", ProcessingErrors: store.ProcessingErrors{"caption: failed"}},
			want:  router.Decision{Status: store.StatusDuplicate, Folder: remote.HoldingPossibleDuplicates},
		},
		{
			name:  "errors with no usable output go to low confidence",
			asset: &store.Asset{SHA256: "h", ProcessingErrors: store.ProcessingErrors{"enrich: unreadable"}},
			want:  router.Decision{Status: store.StatusError, Folder: remote.HoldingLowConfidence},
		},
		{
			name: "errors with a thumbnail still reach review",
			asset: &store.Asset{
				SHA256:           "h",
				ThumbnailPath:    "/cache/thumbs/a.jpg",
				ProcessingErrors: store.ProcessingErrors{"transcript: model crashed"},
			},
			want: router.Decision{Status: store.StatusNeedsReview, Folder: remote.HoldingNeedsReview},
		},
		{
			name:  "no hash means nothing reviewable",
			asset: &store.Asset{Caption: "orphan", ProcessingErrors: store.ProcessingErrors{"identity: read failed"}},
			want:  router.Decision{Status: store.StatusError, Folder: remote.HoldingLowConfidence},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := router.Decide(tc.asset); got != tc.want {
				t.Fatalf("Decide() = %#v, want %#v", got, tc.want)
			}
		})
	}
}

func TestRouteMovesFileOnce(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	source, err := remote.NewFS(cfg.Paths.RemoteRoot)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	claimedPath := filepath.Join(source.Root(), "PROCESSING", "c1_photo.jpg")
	testsupport.WriteFile(t, claimedPath, []byte("jpeg"))
	file := remote.File{Name: "photo.jpg", Path: filepath.Join("PROCESSING", "c1_photo.jpg")}

	asset := &store.Asset{ID: "a-1", SHA256: "h", Caption: "a lake"}
	r := router.New(source, nil)
	decision, err := r.Route(ctx, asset, file)
	if err != nil {
		t.Fatalf("Route failed: %v", err)
	}
	if decision.Folder != remote.HoldingNeedsReview {
		t.Fatalf("unexpected decision: %#v", decision)
	}
	if asset.Status != store.StatusNeedsReview {
		t.Fatalf("asset status not updated: %s", asset.Status)
	}
	if _, err := os.Stat(filepath.Join(source.Root(), asset.RemotePath)); err != nil {
		t.Fatalf("expected file at %s: %v", asset.RemotePath, err)
	}
	if _, err := os.Stat(claimedPath); err == nil {
		t.Fatal("file should have left PROCESSING")
	}
}
