// Package ffprobe wraps the external media inspection tool. A single JSON
// call answers everything the pipeline asks about a file: duration, first
// audio codec, embedded cover presence, and publisher tag. Pure query, no
// mutation.
package ffprobe
