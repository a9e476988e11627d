package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"archivist/internal/config"
	"archivist/internal/fileutil"
	"archivist/internal/store"
)

// IngestLocal records a file already on this machine, bypassing the remote
// inbox. Used by the one-shot CLI path. The source file is copied into the
// scratch directory and left untouched.
func IngestLocal(ctx context.Context, cfg *config.Config, st *store.Store, sourcePath string) (*store.Asset, error) {
	info, err := os.Stat(sourcePath)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", sourcePath, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", sourcePath)
	}

	name := filepath.Base(sourcePath)
	if err := os.MkdirAll(cfg.DownloadDir(), 0o755); err != nil {
		return nil, fmt.Errorf("create scratch directory: %w", err)
	}
	localPath := filepath.Join(cfg.DownloadDir(), fmt.Sprintf("%s_%s", uuid.NewString()[:8], name))
	if err := fileutil.CopyFileVerified(sourcePath, localPath); err != nil {
		return nil, fmt.Errorf("copy into scratch: %w", err)
	}

	asset, err := st.InsertAsset(ctx, &store.Asset{
		OriginalFilename: name,
		MediaKind:        KindForFilename(name),
		SizeBytes:        info.Size(),
		LocalPath:        localPath,
		IsMaster:         true,
		UploadedAt:       info.ModTime().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("record asset: %w", err)
	}
	return asset, nil
}
