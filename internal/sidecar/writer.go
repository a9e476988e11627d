package sidecar

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"

	"archivist/internal/fileutil"
	"archivist/internal/logging"
	"archivist/internal/remote"
	"archivist/internal/services"
	"archivist/internal/store"
)

// Writer persists sidecar documents in the required order: local cache
// first, then the state store row, then the remote mirror. A crash between
// steps leaves the earlier copies authoritative, so replays converge
// instead of diverging.
type Writer struct {
	store    *store.Store
	source   remote.Source
	localDir string
	logger   *slog.Logger
}

// NewWriter returns a Writer that caches documents under localDir and
// mirrors them through source. source may be nil for local-only runs.
func NewWriter(st *store.Store, source remote.Source, localDir string, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Writer{
		store:    st,
		source:   source,
		localDir: localDir,
		logger:   logging.NewComponentLogger(logger, "sidecar"),
	}
}

// LocalPath returns where an asset's sidecar lives in the local cache.
func (w *Writer) LocalPath(assetID string) string {
	return filepath.Join(w.localDir, assetID+".json")
}

// Write validates the document, writes it locally, persists the asset row,
// and mirrors the document to the remote metadata area.
func (w *Writer) Write(ctx context.Context, doc *Document, asset *store.Asset) error {
	if err := doc.Validate(); err != nil {
		return err
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return services.Wrap(services.ErrValidation, "sidecar", "encode", "marshal sidecar", err)
	}

	localPath := w.LocalPath(doc.AssetID)
	if err := fileutil.WriteFileAtomic(localPath, data, 0o644); err != nil {
		return services.Wrap(services.ErrConfiguration, "sidecar", "write_local", "write sidecar cache", err)
	}

	if err := w.store.Update(ctx, asset); err != nil {
		return services.Wrap(services.ErrTransient, "sidecar", "write_store", "persist asset row", err)
	}

	if w.source != nil {
		name := doc.AssetID + ".json"
		if err := w.source.PutMetadata(ctx, remote.MetadataSidecars, name, localPath); err != nil {
			return services.Wrap(services.ErrTransient, "sidecar", "write_remote", "mirror sidecar", err)
		}
	}

	w.logger.Debug("sidecar written",
		slog.String(logging.FieldAssetID, doc.AssetID),
		slog.String("status", string(doc.Status)),
	)
	return nil
}

// ReadLocal loads and validates the cached sidecar for an asset.
func (w *Writer) ReadLocal(assetID string) (*Document, error) {
	data, err := os.ReadFile(w.LocalPath(assetID))
	if err != nil {
		return nil, services.Wrap(services.ErrNotFound, "sidecar", "read_local", "read sidecar cache", err)
	}
	return Parse(data)
}
