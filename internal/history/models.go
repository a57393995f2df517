package history

import "time"

// Run is one persisted batch run.
type Run struct {
	ID         int64
	StartedAt  time.Time
	FinishedAt time.Time
	DryRun     bool
	Seen       int
	Converted  int
	Skipped    int
	Failed     int
	OldBytes   int64
	NewBytes   int64
}

// Failure is one persisted failure-ledger row.
type Failure struct {
	RunID      int64
	Path       string
	ReasonCode int
	Detail     string
}
