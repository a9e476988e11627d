// Package workflow coordinates asset processing across two lanes: the
// foreground lane runs the CPU-bound stages (enrichment, duplicate
// resolution, finalization) while the inference lane runs the strictly
// serial model stages. Each lane claims assets by status, drives them
// through the matching stage handler, and persists every transition so a
// crash never loses work.
package workflow
