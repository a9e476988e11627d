package stage

import (
	"errors"
	"path/filepath"
	"testing"

	"archivist/internal/services"
	"archivist/internal/store"
	"archivist/internal/testsupport"
)

func TestRequireLocalFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "photo.jpg")
	testsupport.WriteFile(t, path, []byte("jpeg"))

	if err := RequireLocalFile(&store.Asset{LocalPath: path}); err != nil {
		t.Fatalf("expected existing file to pass: %v", err)
	}

	err := RequireLocalFile(&store.Asset{})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for empty path, got %v", err)
	}

	err = RequireLocalFile(&store.Asset{LocalPath: filepath.Join(dir, "missing.jpg")})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for missing file, got %v", err)
	}
}
