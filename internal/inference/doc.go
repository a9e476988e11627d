// Package inference runs the accelerator-bound enrichment stages: face
// detection, captioning, embedding, and transcription, in that fixed order.
//
// The accelerator fits one model at a time. Session enforces that: a stage
// acquires a lease, runs, and releases before the next stage loads. Release
// happens on every exit path, including load failures and stage errors, so
// a crash mid-stage never leaves a model resident. A peak-residency counter
// on the session makes the invariant observable in tests.
//
// Each model is an external command whose process lifetime is the model's
// residency window. Stage failures are isolated: the failing stage appends
// one entry to the asset's error list and the remaining stages still run.
package inference
