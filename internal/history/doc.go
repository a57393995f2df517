// Package history persists per-run summaries and failure ledgers in a local
// SQLite database so past batch outcomes survive the process.
package history
