package services

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel markers for everything that can go wrong inside a single file's
// pipeline. Every failure recorded in the ledgers maps to exactly one of
// these.
var (
	// ErrUnreadable marks a source whose duration could not be determined.
	ErrUnreadable = errors.New("unreadable source")
	// ErrEncodeFailed marks a transcode that failed on both attempts.
	ErrEncodeFailed = errors.New("encode failed")
	// ErrDurationMismatch marks a candidate output rejected by validation.
	ErrDurationMismatch = errors.New("duration mismatch")
	// ErrInstallFailed marks a mkdir/copy/move/rename failure while installing.
	ErrInstallFailed = errors.New("install failed")
	// ErrStatFailed marks a size query failure on source or output.
	ErrStatFailed = errors.New("stat failed")
)

// Reason is the stable identity of a failure class: a numeric code plus a
// label suitable for grouping and persistence.
type Reason struct {
	Code  int
	Label string
}

func (r Reason) String() string { return r.Label }

var (
	ReasonUnknown          = Reason{Code: 0, Label: "unknown"}
	ReasonUnreadable       = Reason{Code: 1, Label: "unreadable"}
	ReasonEncodeFailed     = Reason{Code: 2, Label: "encode_failed"}
	ReasonDurationMismatch = Reason{Code: 3, Label: "duration_mismatch"}
	ReasonInstallFailed    = Reason{Code: 4, Label: "install_failed"}
	ReasonStatFailed       = Reason{Code: 5, Label: "stat_failed"}
)

// Wrap builds an error message that includes stage context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrEncodeFailed
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Classify maps a pipeline error to its ledger reason.
func Classify(err error) Reason {
	switch {
	case errors.Is(err, ErrUnreadable):
		return ReasonUnreadable
	case errors.Is(err, ErrEncodeFailed):
		return ReasonEncodeFailed
	case errors.Is(err, ErrDurationMismatch):
		return ReasonDurationMismatch
	case errors.Is(err, ErrInstallFailed):
		return ReasonInstallFailed
	case errors.Is(err, ErrStatFailed):
		return ReasonStatFailed
	default:
		return ReasonUnknown
	}
}

// ReasonFromCode restores a Reason from its persisted numeric code.
func ReasonFromCode(code int) Reason {
	for _, r := range []Reason{
		ReasonUnreadable,
		ReasonEncodeFailed,
		ReasonDurationMismatch,
		ReasonInstallFailed,
		ReasonStatFailed,
	} {
		if r.Code == code {
			return r
		}
	}
	return ReasonUnknown
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "pipeline failure"
	}
	return strings.Join(parts, ": ")
}
