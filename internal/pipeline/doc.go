// Package pipeline implements the per-asset stage handlers the workflow
// manager drives: enrichment (Phase 1 metadata), duplicate resolution,
// inference (Phase 2), and finalization (sidecar, artifact upload, terminal
// routing).
package pipeline
