// Package report accumulates per-file outcomes from the worker pool and
// produces the end-of-run accounting summary.
package report
