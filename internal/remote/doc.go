// Package remote defines the shared-folder contract the worker operates
// against and provides a filesystem-backed implementation of it.
//
// The layout under the remote root:
//
//	INBOX/<contributor>/          uploads awaiting processing
//	INBOX/_MANIFESTS/             batch manifest JSON documents
//	PROCESSING/                   claimed, in-flight files
//	HOLDING/NeedsReview/          processed, awaiting curation
//	HOLDING/PossibleDuplicates/   processed, flagged as duplicates
//	HOLDING/LowConfidence/        processed with errors or unusable output
//	ARCHIVE/                      curator-only; never written by the worker
//	METADATA/sidecars/            sidecar JSON mirror
//	METADATA/thumbnails/          image thumbnails
//	METADATA/posters/             video poster frames
//	METADATA/transcripts/         transcription text
//
// Claiming is a rename from INBOX into PROCESSING. The rename either fully
// succeeds or observably does not happen, which makes it the only mutual
// exclusion needed between worker instances sharing one root.
package remote
