package testsupport

import (
	"context"
	"testing"

	"archivist/internal/config"
	"archivist/internal/store"
)

// MustOpenStore opens a store.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})
	return st
}

// NewAsset inserts a minimal asset row for tests using the provided store.
func NewAsset(t testing.TB, st *store.Store, sha256, filename string) *store.Asset {
	t.Helper()

	asset, err := st.InsertAsset(context.Background(), &store.Asset{
		SHA256:           sha256,
		OriginalFilename: filename,
		MediaKind:        store.MediaImage,
		IsMaster:         true,
	})
	if err != nil {
		t.Fatalf("store.InsertAsset: %v", err)
	}
	return asset
}
