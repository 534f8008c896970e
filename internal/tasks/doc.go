// Package tasks runs long remote operations with real-time progress reporting.
//
// # Walking
//
// [Walker.Walk] flattens a remote directory tree. The root is listed first and
// every subdirectory found is queued for a pool of workers (4 by default, at
// most 10) that share a single rate limiter, so a deep tree never exceeds the
// configured requests per second. Paged listings are followed until the
// reported total is reached.
//
// A directory that fails to list does not abort the walk; it is recorded in
// [WalkResult.Errors]. Only a failure on the root is fatal.
//
// # Exporting
//
// [Walker.Export] walks a tree and writes it with the formatter package
// (JSON, CSV, Markdown or plain text) next to a JSON manifest.
//
// # Progress Reporting
//
// All operations use non-blocking channels for progress updates.
//
// The [ProgressUpdate] struct contains phase, step counters, messages, and optional data for advanced UI rendering.
// Updates use select with default so a slow or absent reader never stalls a walk.
package tasks
