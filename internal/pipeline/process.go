package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"opusify/internal/config"
	"opusify/internal/encoding"
	"opusify/internal/install"
	"opusify/internal/logging"
	"opusify/internal/media/ffprobe"
	"opusify/internal/report"
	"opusify/internal/services"
)

// Processor runs the probe, plan, encode, validate, and install stages for a
// single source file. One Processor is shared by all workers; the per-worker
// token keeps their temporary paths disjoint.
type Processor struct {
	cfg       *config.Config
	logger    *slog.Logger
	encoder   *encoding.Encoder
	installer *install.Installer
}

// NewProcessor constructs the per-file stage runner.
func NewProcessor(cfg *config.Config, logger *slog.Logger) *Processor {
	return &Processor{
		cfg:       cfg,
		logger:    logging.NewComponentLogger(logger, "pipeline"),
		encoder:   encoding.NewEncoder(cfg, logger),
		installer: install.NewInstaller(cfg, logger),
	}
}

// Process takes one source file through the full pipeline and always returns
// an outcome; errors surface as classified failure outcomes, never panics or
// partial state in the source tree.
func (p *Processor) Process(ctx context.Context, sourcePath, workerToken string) report.Outcome {
	info, err := os.Stat(sourcePath)
	if err != nil {
		return p.failure(sourcePath, services.Wrap(services.ErrStatFailed, "pipeline", "stat source", "", err))
	}
	oldBytes := info.Size()

	probe, skip, err := p.probeSource(ctx, sourcePath)
	if err != nil {
		return p.failure(sourcePath, err)
	}
	if skip {
		p.logger.Debug("already at target codec", logging.String(logging.FieldPath, sourcePath))
		return report.Outcome{Path: sourcePath, Kind: report.KindSkipped, Detail: "already " + p.cfg.Encode.Codec}
	}

	destPath, err := p.destinationPath(sourcePath)
	if err != nil {
		return p.failure(sourcePath, services.Wrap(services.ErrInstallFailed, "pipeline", "resolve destination", "", err))
	}

	// A previous run with disposal "keep" or "rename" leaves the original
	// next to an installed target; treat that pair as done.
	installedPath := withExtension(sourcePath, p.cfg.Encode.Extension)
	if !strings.EqualFold(installedPath, sourcePath) {
		if _, err := os.Lstat(installedPath); err == nil {
			p.logger.Debug("target already installed", logging.String(logging.FieldPath, sourcePath))
			return report.Outcome{Path: sourcePath, Kind: report.KindSkipped, Detail: "target exists"}
		}
	}

	oldSeconds := probe.DurationSeconds()
	if oldSeconds <= 0 {
		return p.failure(sourcePath, services.Wrap(services.ErrUnreadable, "pipeline", "probe source", "no usable duration", nil))
	}

	plan := encoding.DecidePlan(encoding.PlanInput{
		Filename:  filepath.Base(sourcePath),
		Extension: strings.ToLower(filepath.Ext(sourcePath)),
		Publisher: probe.Publisher(),
		HasCover:  probe.HasAttachedPicture(),
	}, p.cfg)

	if p.cfg.Run.DryRun {
		p.logger.Info("would convert",
			logging.String(logging.FieldPath, sourcePath),
			logging.Int("channels", plan.Channels),
			logging.Bool("cover", plan.IncludeCover),
		)
		return report.Outcome{Path: sourcePath, Kind: report.KindSkipped, Detail: "dry run"}
	}

	tempPath := stagedTempPath(destPath, workerToken)
	if err := os.MkdirAll(filepath.Dir(tempPath), 0o755); err != nil {
		return p.failure(sourcePath, services.Wrap(services.ErrEncodeFailed, "pipeline", "create staging directory", "", err))
	}

	if err := p.encoder.Encode(ctx, sourcePath, plan, tempPath); err != nil {
		return p.failure(sourcePath, err)
	}

	candidate, err := ffprobe.Inspect(ctx, p.cfg.FFprobeBinary(), tempPath)
	if err != nil {
		_ = os.Remove(tempPath)
		return p.failure(sourcePath, services.Wrap(services.ErrDurationMismatch, "validator", "probe candidate", "", err))
	}
	if err := encoding.CheckDuration(oldSeconds, candidate.DurationSeconds(), p.cfg.Run.MinDurationRatio); err != nil {
		_ = os.Remove(tempPath)
		return p.failure(sourcePath, err)
	}

	candidateInfo, err := os.Stat(tempPath)
	if err != nil {
		_ = os.Remove(tempPath)
		return p.failure(sourcePath, services.Wrap(services.ErrStatFailed, "pipeline", "stat candidate", "", err))
	}
	newBytes := candidateInfo.Size()

	result, err := p.installer.Install(install.Request{
		SourcePath: sourcePath,
		StagedTemp: tempPath,
		DestPath:   destPath,
	})
	if err != nil {
		_ = os.Remove(tempPath)
		return p.failure(sourcePath, err)
	}

	p.logger.Info("converted",
		logging.String(logging.FieldPath, sourcePath),
		logging.Int64(logging.FieldOldBytes, oldBytes),
		logging.Int64(logging.FieldNewBytes, newBytes),
		logging.Int64("saved_bytes", oldBytes-newBytes),
	)
	return report.Outcome{
		Path:     sourcePath,
		Kind:     report.KindConverted,
		OldBytes: oldBytes,
		NewBytes: newBytes,
		Detail:   result.InstalledPath,
	}
}

// probeSource inspects the source file. Under fast_probe a codec-only probe
// answers the skip question first and the full probe runs only when the file
// needs work, so skipped files cost one cheap inspection.
func (p *Processor) probeSource(ctx context.Context, path string) (ffprobe.Result, bool, error) {
	binary := p.cfg.FFprobeBinary()

	if p.cfg.Scan.FastProbe {
		quick, err := ffprobe.InspectAudio(ctx, binary, path)
		if err != nil {
			return ffprobe.Result{}, false, services.Wrap(services.ErrUnreadable, "pipeline", "probe source", "", err)
		}
		if strings.EqualFold(quick.FirstAudioCodec(), p.cfg.Encode.Codec) {
			return ffprobe.Result{}, true, nil
		}
	}

	full, err := ffprobe.Inspect(ctx, binary, path)
	if err != nil {
		return ffprobe.Result{}, false, services.Wrap(services.ErrUnreadable, "pipeline", "probe source", "", err)
	}
	if strings.EqualFold(full.FirstAudioCodec(), p.cfg.Encode.Codec) {
		return ffprobe.Result{}, true, nil
	}
	return full, false, nil
}

// destinationPath mirrors the source's position under the source root into
// the staging root, with the target extension.
func (p *Processor) destinationPath(sourcePath string) (string, error) {
	rel, err := filepath.Rel(p.cfg.Paths.SourceDir, sourcePath)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("source %q outside source root: %w", sourcePath, err)
	}
	return withExtension(filepath.Join(p.cfg.Paths.StagingDir, rel), p.cfg.Encode.Extension), nil
}

func (p *Processor) failure(path string, err error) report.Outcome {
	reason := services.Classify(err)
	p.logger.Error("file failed",
		logging.String(logging.FieldPath, path),
		logging.String(logging.FieldReason, reason.Label),
		logging.Error(err),
	)
	return report.Outcome{
		Path:   path,
		Kind:   report.KindFailed,
		Reason: reason,
		Detail: err.Error(),
	}
}

// stagedTempPath derives the private encode output path from the destination
// path and the worker token. The dotted prefix and the marker suffix keep
// orphans recognizable for startup cleanup.
func stagedTempPath(destPath, workerToken string) string {
	dir := filepath.Dir(destPath)
	base := filepath.Base(destPath)
	return filepath.Join(dir, "."+base+".opusify-"+workerToken+".part")
}

func withExtension(path, ext string) string {
	current := filepath.Ext(path)
	return strings.TrimSuffix(path, current) + ext
}
