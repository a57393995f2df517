package encoding

import (
	"strings"

	"opusify/internal/config"
)

// Plan is the immutable per-file encode decision. It is produced once by
// DecidePlan and consumed exactly once by the encoder.
type Plan struct {
	// Channels is the output channel count after policy overrides.
	Channels int
	// IncludeCover maps the source's embedded image into the output as an
	// attached picture.
	IncludeCover bool
	// StrictErrors aborts the encode on the first decoder error.
	StrictErrors bool
	// TimestampRepair adds the remux-safety flags used on the retry after a
	// non-monotonic DTS failure. Never set on a first attempt.
	TimestampRepair bool
}

// PlanInput carries the probed facts the policy decides on.
type PlanInput struct {
	// Filename is the base name of the source file.
	Filename string
	// Extension is the lowercase source extension including the dot.
	Extension string
	// Publisher is the container-level publisher tag, possibly empty.
	Publisher string
	// HasCover reports an embedded image stream in the source.
	HasCover bool
}

// DecidePlan maps a file's probed facts and the global configuration to an
// encode plan. Rule order, first match wins; the stereo overrides apply only
// when the global target is mono:
//
//  1. A filename carrying a dramatized-style marker forces stereo.
//  2. A publisher known for multi-cast productions forces stereo.
//  3. Otherwise the global channel count stands.
//
// Cover carry-over applies only to MP3 sources: MP4-family containers embed
// art via atoms and are never re-muxed through the video path.
func DecidePlan(in PlanInput, cfg *config.Config) Plan {
	plan := Plan{
		Channels:     cfg.Encode.Channels,
		StrictErrors: cfg.Encode.StrictErrors,
	}

	if plan.Channels == 1 {
		switch {
		case matchesAny(in.Filename, cfg.Policy.StereoFilenameMarkers):
			plan.Channels = 2
		case in.Publisher != "" && matchesAny(in.Publisher, cfg.Policy.StereoPublishers):
			plan.Channels = 2
		}
	}

	plan.IncludeCover = in.HasCover && strings.EqualFold(in.Extension, ".mp3")
	return plan
}

func matchesAny(value string, markers []string) bool {
	folded := strings.ToLower(value)
	for _, marker := range markers {
		marker = strings.ToLower(strings.TrimSpace(marker))
		if marker == "" {
			continue
		}
		if strings.Contains(folded, marker) {
			return true
		}
	}
	return false
}
