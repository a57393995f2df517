package install

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"opusify/internal/config"
	"opusify/internal/fileutil"
	"opusify/internal/logging"
	"opusify/internal/services"
)

// Request describes one validated candidate ready for installation.
type Request struct {
	// SourcePath is the original file in the source tree.
	SourcePath string
	// StagedTemp is the validated candidate at its private temporary path.
	StagedTemp string
	// DestPath is the final path in the staging mirror.
	DestPath string
}

// Result reports what Install committed.
type Result struct {
	// InstalledPath is the file in the source tree now carrying the new audio.
	InstalledPath string
	// DisposedPath is where the original went under the rename disposal,
	// empty otherwise.
	DisposedPath string
}

// Installer commits validated candidates into the staging mirror and the
// source tree. Entered only after duration validation; no failure path here
// ever modifies the original.
type Installer struct {
	cfg    *config.Config
	logger *slog.Logger
}

// NewInstaller constructs the installer component.
func NewInstaller(cfg *config.Config, logger *slog.Logger) *Installer {
	return &Installer{cfg: cfg, logger: logging.NewComponentLogger(logger, "installer")}
}

// Install runs the two-step commit. First the candidate moves from its
// private temp path into the mirrored destination tree, then it is finalized
// into the source tree: atomically over the original when the extension is
// unchanged, alongside it otherwise.
func (i *Installer) Install(req Request) (Result, error) {
	if err := os.MkdirAll(filepath.Dir(req.DestPath), 0o755); err != nil {
		return Result{}, services.Wrap(services.ErrInstallFailed, "installer", "commit", "create destination directory", err)
	}
	if err := fileutil.MoveFile(req.StagedTemp, req.DestPath); err != nil {
		return Result{}, services.Wrap(services.ErrInstallFailed, "installer", "commit", "move candidate into destination tree", err)
	}

	sourceExt := strings.ToLower(filepath.Ext(req.SourcePath))
	if sourceExt == i.cfg.Encode.Extension {
		return i.replaceOriginal(req)
	}
	return i.installAlongside(req)
}

// replaceOriginal swaps the finalized output over the original through a
// same-directory sibling temp, so any observer of the original path sees
// either the fully-old or fully-new content. The original's ownership, mode,
// and timestamps are reapplied to the replacement.
func (i *Installer) replaceOriginal(req Request) (Result, error) {
	meta, err := CaptureMeta(req.SourcePath)
	if err != nil {
		return Result{}, services.Wrap(services.ErrInstallFailed, "installer", "finalize", "capture original metadata", err)
	}

	sibling := siblingTempPath(req.SourcePath)
	if err := fileutil.CopyFileVerified(req.DestPath, sibling, meta.Mode); err != nil {
		_ = os.Remove(sibling)
		return Result{}, services.Wrap(services.ErrInstallFailed, "installer", "finalize", "stage sibling copy", err)
	}
	i.applyOwnership(meta, sibling)
	if err := os.Rename(sibling, req.SourcePath); err != nil {
		_ = os.Remove(sibling)
		return Result{}, services.Wrap(services.ErrInstallFailed, "installer", "finalize", "swap over original", err)
	}
	if err := meta.ApplyTimes(req.SourcePath); err != nil {
		i.logger.Warn("could not restore timestamps", logging.String(logging.FieldPath, req.SourcePath), logging.Error(err))
	}
	return Result{InstalledPath: req.SourcePath}, nil
}

// installAlongside places the output next to the original under the
// normalized extension and disposes of the original per policy. The original
// is never overwritten and is not touched until the new file is in place.
func (i *Installer) installAlongside(req Request) (Result, error) {
	newPath := withExtension(req.SourcePath, i.cfg.Encode.Extension)
	if _, err := os.Lstat(newPath); err == nil {
		return Result{}, services.Wrap(services.ErrInstallFailed, "installer", "finalize", fmt.Sprintf("destination %q already exists", newPath), nil)
	} else if !errors.Is(err, os.ErrNotExist) {
		return Result{}, services.Wrap(services.ErrInstallFailed, "installer", "finalize", "stat destination", err)
	}

	meta, err := CaptureMeta(req.SourcePath)
	if err != nil {
		return Result{}, services.Wrap(services.ErrInstallFailed, "installer", "finalize", "capture original metadata", err)
	}

	sibling := siblingTempPath(newPath)
	if err := fileutil.CopyFileVerified(req.DestPath, sibling, meta.Mode); err != nil {
		_ = os.Remove(sibling)
		return Result{}, services.Wrap(services.ErrInstallFailed, "installer", "finalize", "stage sibling copy", err)
	}
	i.applyOwnership(meta, sibling)
	if err := os.Rename(sibling, newPath); err != nil {
		_ = os.Remove(sibling)
		return Result{}, services.Wrap(services.ErrInstallFailed, "installer", "finalize", "rename into place", err)
	}

	result := Result{InstalledPath: newPath}
	switch i.cfg.Run.Disposal {
	case config.DisposalKeep:
	case config.DisposalRename:
		renamed := req.SourcePath + ".old"
		if err := os.Rename(req.SourcePath, renamed); err != nil {
			return result, services.Wrap(services.ErrInstallFailed, "installer", "dispose", "rename original", err)
		}
		result.DisposedPath = renamed
	case config.DisposalDelete:
		if err := os.Remove(req.SourcePath); err != nil {
			return result, services.Wrap(services.ErrInstallFailed, "installer", "dispose", "delete original", err)
		}
	}
	return result, nil
}

// applyOwnership restores owner and mode. Running unprivileged makes chown
// fail with EPERM for foreign owners; that is logged, not fatal.
func (i *Installer) applyOwnership(meta FileMeta, path string) {
	err := meta.ApplyOwnership(path)
	if err == nil {
		return
	}
	if errors.Is(err, syscall.EPERM) {
		i.logger.Warn("could not restore ownership", logging.String(logging.FieldPath, path), logging.Error(err))
		return
	}
	i.logger.Warn("ownership restore failed", logging.String(logging.FieldPath, path), logging.Error(err))
}

func siblingTempPath(path string) string {
	dir := filepath.Dir(path)
	base := filepath.Base(path)
	return filepath.Join(dir, "."+base+".opusify-swap")
}

func withExtension(path, ext string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ext
}
