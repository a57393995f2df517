package encoding

import (
	"errors"
	"strings"
	"testing"

	"opusify/internal/services"
)

func TestValidDuration(t *testing.T) {
	cases := []struct {
		name     string
		old, new float64
		ratio    float64
		want     bool
	}{
		{"exact", 3600, 3600, 0.98, true},
		{"slightly short", 3600, 3599.5, 0.98, true},
		{"at threshold", 1000, 980, 0.98, true},
		{"truncated", 2000, 1000, 0.98, false},
		{"zero source", 0, 100, 0.98, false},
		{"negative source", -1, 100, 0.98, false},
		{"longer output", 1000, 1001, 0.98, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ValidDuration(tc.old, tc.new, tc.ratio); got != tc.want {
				t.Fatalf("ValidDuration(%v, %v, %v) = %v, want %v", tc.old, tc.new, tc.ratio, got, tc.want)
			}
		})
	}
}

func TestCheckDurationRecordsBothValues(t *testing.T) {
	err := CheckDuration(2000, 1000, 0.98)
	if err == nil {
		t.Fatal("expected mismatch error")
	}
	if !errors.Is(err, services.ErrDurationMismatch) {
		t.Fatalf("expected duration mismatch marker, got %v", err)
	}
	msg := err.Error()
	if !strings.Contains(msg, "1000.0s") || !strings.Contains(msg, "2000.0s") {
		t.Fatalf("error %q must carry both durations", msg)
	}

	if err := CheckDuration(3600, 3599.5, 0.98); err != nil {
		t.Fatalf("expected pass, got %v", err)
	}
}
