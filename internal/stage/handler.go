package stage

import (
	"context"
	"os"
	"strings"

	"archivist/internal/services"
	"archivist/internal/store"
)

// Handler describes the contract the workflow manager needs from each stage.
type Handler interface {
	Prepare(context.Context, *store.Asset) error
	Execute(context.Context, *store.Asset) error
	HealthCheck(context.Context) Health
}

// RequireLocalFile verifies the asset's downloaded copy is still present.
// On failure it returns a services.ErrValidation suitable for stage Execute
// methods.
func RequireLocalFile(asset *store.Asset) error {
	path := strings.TrimSpace(asset.LocalPath)
	if path == "" {
		return services.Wrap(services.ErrValidation, "stage", "local file",
			"asset has no local copy; re-run ingestion", nil)
	}
	if _, err := os.Stat(path); err != nil {
		return services.Wrap(services.ErrValidation, "stage", "local file",
			"local copy missing or unreadable; re-run ingestion", err)
	}
	return nil
}
