// Package pipeline drives the batch conversion: it discovers candidate files
// under the source root, fans them out to a bounded worker pool, and takes
// each file through probe, plan, encode, validate, and install.
package pipeline
