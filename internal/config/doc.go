// Package config loads, normalizes, and validates the TOML configuration
// that drives a batch run. Configuration is loaded once at startup and is
// read-only for the lifetime of the run.
package config
