package ffprobe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
)

// Result represents the parsed output from an ffprobe inspection.
type Result struct {
	Streams []Stream `json:"streams"`
	Format  Format   `json:"format"`
}

// Stream describes a single stream in the media container.
type Stream struct {
	Index       int            `json:"index"`
	CodecName   string         `json:"codec_name"`
	CodecType   string         `json:"codec_type"`
	Duration    string         `json:"duration"`
	BitRate     string         `json:"bit_rate"`
	Channels    int            `json:"channels"`
	SampleRate  string         `json:"sample_rate"`
	Disposition map[string]int `json:"disposition"`
}

// Format captures container-level metadata extracted by ffprobe.
type Format struct {
	Filename   string            `json:"filename"`
	NBStreams  int               `json:"nb_streams"`
	Duration   string            `json:"duration"`
	Size       string            `json:"size"`
	BitRate    string            `json:"bit_rate"`
	FormatName string            `json:"format_name"`
	Tags       map[string]string `json:"tags"`
}

// Inspect executes ffprobe against the provided path and decodes the JSON response.
func Inspect(ctx context.Context, binary string, path string) (Result, error) {
	return run(ctx, binary, path, nil)
}

// InspectAudio runs a cheaper probe restricted to audio streams. It is enough
// to answer the already-at-target-codec question but carries no cover art or
// container tag information.
func InspectAudio(ctx context.Context, binary string, path string) (Result, error) {
	return run(ctx, binary, path, []string{"-select_streams", "a"})
}

func run(ctx context.Context, binary, path string, extra []string) (Result, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffprobe"
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return Result{}, errors.New("ffprobe inspect: empty path")
	}

	args := []string{"-v", "error", "-hide_banner", "-show_format", "-show_streams", "-of", "json"}
	args = append(args, extra...)
	args = append(args, "--", path)

	cmd := exec.CommandContext(ctx, binary, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return Result{}, fmt.Errorf("ffprobe inspect: %w: %s", err, strings.TrimSpace(string(output)))
	}

	var result Result
	if err := json.Unmarshal(output, &result); err != nil {
		return Result{}, fmt.Errorf("ffprobe parse: %w", err)
	}
	return result, nil
}

// DurationSeconds returns the container duration in seconds, falling back to
// the first audio stream's duration, or 0 when unavailable.
func (r Result) DurationSeconds() float64 {
	if d := positiveFloat(r.Format.Duration); d > 0 {
		return d
	}
	for _, stream := range r.Streams {
		if strings.EqualFold(stream.CodecType, "audio") {
			if d := positiveFloat(stream.Duration); d > 0 {
				return d
			}
		}
	}
	return 0
}

// FirstAudioCodec returns the codec name of the first audio stream, or "".
func (r Result) FirstAudioCodec() string {
	for _, stream := range r.Streams {
		if strings.EqualFold(stream.CodecType, "audio") {
			return stream.CodecName
		}
	}
	return ""
}

// HasAttachedPicture reports whether the container carries an embedded image,
// either as an attached-pic disposition or as any video stream (MP3 cover art
// surfaces as a plain video stream).
func (r Result) HasAttachedPicture() bool {
	for _, stream := range r.Streams {
		if !strings.EqualFold(stream.CodecType, "video") {
			continue
		}
		return true
	}
	return false
}

// Publisher returns the container-level publisher tag, or "".
func (r Result) Publisher() string {
	for key, value := range r.Format.Tags {
		if strings.EqualFold(key, "publisher") {
			return strings.TrimSpace(value)
		}
	}
	return ""
}

// SizeBytes returns the reported container size in bytes, or 0 when unavailable.
func (r Result) SizeBytes() int64 {
	size := positiveFloat(r.Format.Size)
	return int64(size)
}

func positiveFloat(value string) float64 {
	cleaned := strings.TrimSpace(value)
	if cleaned == "" {
		return 0
	}
	parsed, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || math.IsNaN(parsed) || parsed < 0 {
		return 0
	}
	return parsed
}
