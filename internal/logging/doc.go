// Package logging wires log/slog with console and JSON handlers plus the
// attribute helpers shared by the pipeline components. The console handler
// renders a compact single-line format; the JSON handler is intended for
// unattended runs whose output is collected elsewhere.
package logging
