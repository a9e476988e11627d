package exifdata

import (
	"path/filepath"
	"testing"
	"time"

	"archivist/internal/testsupport"
)

func TestExtractToleratesMissingExif(t *testing.T) {
	dir := t.TempDir()
	photo := filepath.Join(dir, "plain.png")
	testsupport.WriteImage(t, photo, 64, 64, 3)

	meta, err := Extract(photo)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if meta.CaptureAt != nil || meta.CameraMake != "" || meta.Latitude != nil {
		t.Fatalf("expected empty metadata for bare image, got %#v", meta)
	}
}

func TestExtractRejectsMissingFile(t *testing.T) {
	if _, err := Extract(filepath.Join(t.TempDir(), "missing.jpg")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestEstimateDecade(t *testing.T) {
	capture := time.Date(1987, 6, 15, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		captureAt *time.Time
		filename  string
		want      int
	}{
		{"capture timestamp wins", &capture, "IMG_20240101.jpg", 1980},
		{"yyyymmdd filename", nil, "IMG_19850615_001.jpg", 1980},
		{"delimited year", nil, "christmas_1972_slide.png", 1970},
		{"bare year", nil, "reunion2003.jpg", 2000},
		{"implausible year ignored", nil, "scan_1935_a.jpg", 0},
		{"future year ignored", nil, "IMG_2099.jpg", 0},
		{"no signal", nil, "DSC_0042.jpg", 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := EstimateDecade(tc.captureAt, tc.filename)
			if got != tc.want {
				t.Fatalf("EstimateDecade(%v, %q) = %d, want %d", tc.captureAt, tc.filename, got, tc.want)
			}
		})
	}
}
