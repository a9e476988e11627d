// Package store persists assets, batches, faces, clusters, and duplicate
// relationships in SQLite and exposes helpers for driving the asset lifecycle.
//
// The Store manages database connections, schema initialization, stats
// queries, heartbeat tracking, stuck-asset recovery, and status transitions.
// Asset rows capture identity (strong hash, perceptual fingerprint), origin,
// derived metadata, inference outputs, and review flags so pipeline stages
// can coordinate without additional state.
//
// Treat this package as the single source of truth for lifecycle semantics;
// when you add new statuses or columns, update schema.sql and bump
// schemaVersion.
package store
