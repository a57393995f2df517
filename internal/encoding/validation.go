package encoding

import (
	"fmt"

	"opusify/internal/services"
)

// ValidDuration reports whether a candidate output's duration is close enough
// to the source's to trust the transcode. Duration is the cheapest strong
// correctness signal available without full content comparison.
func ValidDuration(oldSeconds, newSeconds, minRatio float64) bool {
	if oldSeconds <= 0 {
		return false
	}
	return newSeconds/oldSeconds >= minRatio
}

// CheckDuration returns nil when the candidate passes, or a classified
// duration-mismatch error carrying both values for the failure ledger.
func CheckDuration(oldSeconds, newSeconds, minRatio float64) error {
	if ValidDuration(oldSeconds, newSeconds, minRatio) {
		return nil
	}
	return services.Wrap(
		services.ErrDurationMismatch,
		"validator",
		"duration ratio",
		fmt.Sprintf("output %.1fs vs source %.1fs, below %.2f", newSeconds, oldSeconds, minRatio),
		nil,
	)
}
