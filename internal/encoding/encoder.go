package encoding

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"opusify/internal/config"
	"opusify/internal/logging"
	"opusify/internal/services"
)

// nonMonotonicDTS is the stderr signature of a source whose decode timestamps
// go backwards. It is the only failure the remux-safety retry applies to.
const nonMonotonicDTS = "Non-monotonous DTS"

const stderrTailLines = 20

// Encoder invokes the external transcoder against a private temporary output
// path. At most two attempts per file: the second adds timestamp-repair flags
// and only runs when the first failed with the non-monotonic DTS signature.
type Encoder struct {
	cfg    *config.Config
	logger *slog.Logger
}

// NewEncoder constructs the encoder component.
func NewEncoder(cfg *config.Config, logger *slog.Logger) *Encoder {
	return &Encoder{cfg: cfg, logger: logging.NewComponentLogger(logger, "encoder")}
}

// BuildArgs constructs the complete ffmpeg argument list for one attempt.
// Stream selection is audio plus chapters plus top-level metadata, with the
// cover stream copied verbatim when the plan asks for it. The muxer is named
// explicitly because the temporary output path carries no media extension.
func BuildArgs(cfg *config.Config, plan Plan, inputPath, outputPath string) []string {
	args := make([]string, 0, 32)
	args = append(args, "-hide_banner", "-nostdin", "-y", "-loglevel", "error")

	if plan.TimestampRepair {
		args = append(args, "-fflags", "+genpts")
	}
	if plan.StrictErrors {
		args = append(args, "-xerror")
	}

	args = append(args, "-i", inputPath)

	args = append(args, "-map", "0:a:0")
	if plan.IncludeCover {
		args = append(args, "-map", "0:v:0")
	}
	args = append(args, "-map_metadata", "0", "-map_chapters", "0")

	args = append(args,
		"-c:a", "libopus",
		"-b:a", cfg.Encode.Bitrate,
		"-ac", strconv.Itoa(plan.Channels),
		"-vbr", "on",
		"-compression_level", "10",
	)

	if plan.IncludeCover {
		args = append(args, "-c:v", "copy", "-disposition:v:0", "attached_pic")
	}

	if plan.TimestampRepair {
		args = append(args,
			"-af", "aresample=async=1:first_pts=0",
			"-avoid_negative_ts", "make_zero",
		)
	}

	args = append(args, "-movflags", "+faststart+use_metadata_tags")
	args = append(args, "-f", "mp4", outputPath)
	return args
}

// Encode produces exactly one candidate file at tmpPath, or none on failure.
// A failing attempt's partial output is removed before returning, and stderr
// from every attempt is appended to a private log file next to the run logs.
func (e *Encoder) Encode(ctx context.Context, inputPath string, plan Plan, tmpPath string) error {
	stderr, err := e.runOnce(ctx, plan, inputPath, tmpPath)
	if err == nil {
		return nil
	}

	if ctx.Err() != nil {
		return services.Wrap(services.ErrEncodeFailed, "encoder", "run", "interrupted", ctx.Err())
	}

	if !plan.TimestampRepair && strings.Contains(stderr, nonMonotonicDTS) {
		retryPlan := plan
		retryPlan.TimestampRepair = true
		e.logger.Warn("retrying with timestamp repair",
			logging.String(logging.FieldPath, inputPath),
			logging.Int(logging.FieldAttempt, 2),
		)
		stderr, err = e.runOnce(ctx, retryPlan, inputPath, tmpPath)
		if err == nil {
			return nil
		}
	}

	e.logStderrTail(inputPath, stderr)
	return services.Wrap(services.ErrEncodeFailed, "encoder", "run", "transcoder exited non-zero", err)
}

// runOnce executes a single ffmpeg attempt. The partial output is deleted on
// failure so at most one temp file per source exists at any time.
func (e *Encoder) runOnce(ctx context.Context, plan Plan, inputPath, tmpPath string) (string, error) {
	args := BuildArgs(e.cfg, plan, inputPath, tmpPath)

	cmd := exec.CommandContext(ctx, e.cfg.FFmpegBinary(), args...)
	var stderrBuf bytes.Buffer
	cmd.Stderr = &stderrBuf

	err := cmd.Run()
	stderr := stderrBuf.String()
	e.appendStderrLog(inputPath, plan, stderr)
	if err != nil {
		_ = os.Remove(tmpPath)
		return stderr, err
	}
	return stderr, nil
}

// appendStderrLog keeps the transcoder's diagnostics in a per-source log file
// under the log directory, useful after unattended runs.
func (e *Encoder) appendStderrLog(inputPath string, plan Plan, stderr string) {
	if strings.TrimSpace(stderr) == "" {
		return
	}
	dir := filepath.Join(e.cfg.Paths.LogDir, "encode")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return
	}
	logPath := filepath.Join(dir, filepath.Base(inputPath)+".log")
	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return
	}
	defer file.Close()
	attempt := 1
	if plan.TimestampRepair {
		attempt = 2
	}
	fmt.Fprintf(file, "--- attempt %d ---\n%s\n", attempt, strings.TrimSpace(stderr))
}

func (e *Encoder) logStderrTail(inputPath, stderr string) {
	trimmed := strings.TrimSpace(stderr)
	if trimmed == "" {
		return
	}
	lines := strings.Split(trimmed, "\n")
	if len(lines) > stderrTailLines {
		lines = lines[len(lines)-stderrTailLines:]
	}
	e.logger.Error("transcoder diagnostics",
		logging.String(logging.FieldPath, inputPath),
		logging.String("stderr_tail", strings.Join(lines, "\n")),
	)
}
