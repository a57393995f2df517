// Package encoding holds the per-file encode decision, the external
// transcoder invocation with its single remux-safety retry, and the duration
// validation that gates installation. Argument lists are constructed
// structurally and handed straight to the process spawn; no shell is ever
// involved.
package encoding
