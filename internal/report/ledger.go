package report

import (
	"sort"
	"sync"

	"opusify/internal/services"
)

// Kind tags a per-file outcome.
type Kind int

const (
	// KindSkipped marks a file already at the target codec (or excluded by
	// dry-run); the source was not touched.
	KindSkipped Kind = iota
	// KindConverted marks a committed transcode.
	KindConverted
	// KindFailed marks a file whose pipeline ended in a classified failure.
	KindFailed
)

// Outcome is the unit every worker reports for every file it processed.
type Outcome struct {
	Path     string
	Kind     Kind
	OldBytes int64
	NewBytes int64
	Reason   services.Reason
	Detail   string
}

// Failure is one failure-ledger row.
type Failure struct {
	Path   string
	Reason services.Reason
	Detail string
}

// Ledger aggregates outcomes across all workers. It is the only cross-worker
// shared state; all mutation goes through Record under the lock.
type Ledger struct {
	mu        sync.Mutex
	seen      int
	converted int
	skipped   int
	oldBytes  int64
	newBytes  int64
	failures  []Failure
}

// NewLedger returns an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{}
}

// Record appends one outcome.
func (l *Ledger) Record(o Outcome) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.seen++
	switch o.Kind {
	case KindConverted:
		l.converted++
		l.oldBytes += o.OldBytes
		l.newBytes += o.NewBytes
	case KindSkipped:
		l.skipped++
	case KindFailed:
		l.failures = append(l.failures, Failure{Path: o.Path, Reason: o.Reason, Detail: o.Detail})
	}
}

// Summary is the aggregate view computed at pool drain.
type Summary struct {
	Seen      int
	Converted int
	Skipped   int
	Failed    int
	OldBytes  int64
	NewBytes  int64
	Failures  []Failure
	// ByReason counts failures grouped by reason label.
	ByReason map[string]int
}

// Summary snapshots the ledger. The totals equal the sum of all recorded
// outcomes regardless of the order workers delivered them.
func (l *Ledger) Summary() Summary {
	l.mu.Lock()
	defer l.mu.Unlock()

	failures := make([]Failure, len(l.failures))
	copy(failures, l.failures)
	sort.Slice(failures, func(i, j int) bool { return failures[i].Path < failures[j].Path })

	byReason := make(map[string]int, 4)
	for _, f := range failures {
		byReason[f.Reason.Label]++
	}

	return Summary{
		Seen:      l.seen,
		Converted: l.converted,
		Skipped:   l.skipped,
		Failed:    len(failures),
		OldBytes:  l.oldBytes,
		NewBytes:  l.newBytes,
		Failures:  failures,
		ByReason:  byReason,
	}
}

// BytesSaved returns the aggregate byte difference. Positive means outputs
// are smaller.
func (s Summary) BytesSaved() int64 {
	return s.OldBytes - s.NewBytes
}

// PercentSaved returns the saved share of the original bytes, 0 when nothing
// was converted.
func (s Summary) PercentSaved() float64 {
	if s.OldBytes <= 0 {
		return 0
	}
	return float64(s.BytesSaved()) / float64(s.OldBytes) * 100
}
