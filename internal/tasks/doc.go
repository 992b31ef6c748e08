// Package tasks runs long library operations with real-time progress reporting.
//
// # Bulk export
//
// [Exporter.Export] writes every playlist in a library to its own file:
//
//   - Playlists are queued to a small worker pool (5 workers by default, at most 10)
//   - Track fetches share one rate limiter so the pool stays under the Web API's limits
//   - A failed playlist is recorded and the export carries on
//   - export_manifest.json summarizes the run in the output directory
//
// # Progress Reporting
//
// Operations send [ProgressUpdate] values on an optional channel. Sends use select with default, so a slow or
// absent reader never stalls the export.
package tasks
