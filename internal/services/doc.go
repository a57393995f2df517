// Package services defines the failure taxonomy shared across the pipeline:
// sentinel markers, context-preserving wrapping, and the stable reason codes
// recorded in the failure ledger. Failures are always classified here, never
// by string matching at the call site.
package services
