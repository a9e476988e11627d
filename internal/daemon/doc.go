// Package daemon ties the ingest poller and the workflow manager into one
// long-running process. A file lock enforces a single instance per machine
// so two daemons never compete over the same local cache.
package daemon
