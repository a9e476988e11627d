// Package ingest moves contributor uploads from the remote inbox into the
// local processing pipeline. A poll cycle reads batch manifests, claims
// inbox files by renaming them into the processing area, downloads the
// bytes to the local scratch directory, and records each file as an asset.
// The claim rename is the only mutual exclusion between workers: whoever
// renames first owns the file.
package ingest
