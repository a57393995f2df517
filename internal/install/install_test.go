package install

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"opusify/internal/config"
	"opusify/internal/logging"
	"opusify/internal/services"
)

func installerConfig(t *testing.T, disposal string) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Paths.SourceDir = filepath.Join(t.TempDir(), "library")
	cfg.Paths.StagingDir = filepath.Join(t.TempDir(), "staging")
	cfg.Run.Disposal = disposal
	return &cfg
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestInstallReplacesSameExtensionAtomically(t *testing.T) {
	cfg := installerConfig(t, config.DisposalKeep)
	source := filepath.Join(cfg.Paths.SourceDir, "author", "book.m4b")
	staged := filepath.Join(cfg.Paths.StagingDir, "author", "book.m4b.part")
	dest := filepath.Join(cfg.Paths.StagingDir, "author", "book.m4b")
	writeFile(t, source, "old audio")
	writeFile(t, staged, "new audio")

	oldTime := time.Date(2020, 6, 1, 12, 0, 0, 0, time.UTC)
	if err := os.Chtimes(source, oldTime, oldTime); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	inst := NewInstaller(cfg, logging.NewNop())
	result, err := inst.Install(Request{SourcePath: source, StagedTemp: staged, DestPath: dest})
	if err != nil {
		t.Fatalf("Install: %v", err)
	}
	if result.InstalledPath != source {
		t.Fatalf("unexpected installed path: %q", result.InstalledPath)
	}

	data, err := os.ReadFile(source)
	if err != nil {
		t.Fatalf("read source: %v", err)
	}
	if string(data) != "new audio" {
		t.Fatalf("original not replaced: %q", data)
	}

	info, err := os.Stat(source)
	if err != nil {
		t.Fatalf("stat source: %v", err)
	}
	if !info.ModTime().Equal(oldTime) {
		t.Fatalf("mtime not restored: %v", info.ModTime())
	}

	// Staged output remains in the mirror.
	if _, err := os.Stat(dest); err != nil {
		t.Fatalf("staging mirror missing: %v", err)
	}
	// The temp candidate was consumed.
	if _, err := os.Stat(staged); !os.IsNotExist(err) {
		t.Fatalf("staged temp still present: %v", err)
	}
}

func TestInstallAlongsideDisposalPolicies(t *testing.T) {
	cases := []struct {
		disposal       string
		wantOriginal   bool
		wantRenamedOld bool
	}{
		{config.DisposalKeep, true, false},
		{config.DisposalRename, false, true},
		{config.DisposalDelete, false, false},
	}
	for _, tc := range cases {
		t.Run(tc.disposal, func(t *testing.T) {
			cfg := installerConfig(t, tc.disposal)
			source := filepath.Join(cfg.Paths.SourceDir, "book.mp3")
			staged := filepath.Join(cfg.Paths.StagingDir, "book.m4b.part")
			dest := filepath.Join(cfg.Paths.StagingDir, "book.m4b")
			writeFile(t, source, "mp3 audio")
			writeFile(t, staged, "opus audio")

			inst := NewInstaller(cfg, logging.NewNop())
			result, err := inst.Install(Request{SourcePath: source, StagedTemp: staged, DestPath: dest})
			if err != nil {
				t.Fatalf("Install: %v", err)
			}

			newPath := filepath.Join(cfg.Paths.SourceDir, "book.m4b")
			if result.InstalledPath != newPath {
				t.Fatalf("unexpected installed path: %q", result.InstalledPath)
			}
			data, err := os.ReadFile(newPath)
			if err != nil {
				t.Fatalf("read new file: %v", err)
			}
			if string(data) != "opus audio" {
				t.Fatalf("unexpected new content: %q", data)
			}

			_, err = os.Stat(source)
			if tc.wantOriginal && err != nil {
				t.Fatalf("original should remain: %v", err)
			}
			if !tc.wantOriginal && !os.IsNotExist(err) {
				t.Fatalf("original should be gone, stat err: %v", err)
			}

			_, err = os.Stat(source + ".old")
			if tc.wantRenamedOld && err != nil {
				t.Fatalf("renamed original missing: %v", err)
			}
			if !tc.wantRenamedOld && !os.IsNotExist(err) {
				t.Fatalf("unexpected .old file, stat err: %v", err)
			}
		})
	}
}

func TestInstallAlongsideRefusesExistingDestination(t *testing.T) {
	cfg := installerConfig(t, config.DisposalDelete)
	source := filepath.Join(cfg.Paths.SourceDir, "book.mp3")
	staged := filepath.Join(cfg.Paths.StagingDir, "book.m4b.part")
	existing := filepath.Join(cfg.Paths.SourceDir, "book.m4b")
	writeFile(t, source, "mp3 audio")
	writeFile(t, staged, "opus audio")
	writeFile(t, existing, "already here")

	inst := NewInstaller(cfg, logging.NewNop())
	_, err := inst.Install(Request{SourcePath: source, StagedTemp: staged, DestPath: filepath.Join(cfg.Paths.StagingDir, "book.m4b")})
	if err == nil {
		t.Fatal("expected error for existing destination")
	}
	if !errors.Is(err, services.ErrInstallFailed) {
		t.Fatalf("expected install failure marker, got %v", err)
	}

	// Original and the pre-existing file are untouched.
	for path, want := range map[string]string{source: "mp3 audio", existing: "already here"} {
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("read %s: %v", path, err)
		}
		if string(data) != want {
			t.Fatalf("%s modified: %q", path, data)
		}
	}
}

func TestInstallCommitFailureLeavesOriginalUntouched(t *testing.T) {
	cfg := installerConfig(t, config.DisposalKeep)
	source := filepath.Join(cfg.Paths.SourceDir, "book.m4b")
	writeFile(t, source, "old audio")

	inst := NewInstaller(cfg, logging.NewNop())
	_, err := inst.Install(Request{
		SourcePath: source,
		StagedTemp: filepath.Join(cfg.Paths.StagingDir, "missing.part"),
		DestPath:   filepath.Join(cfg.Paths.StagingDir, "book.m4b"),
	})
	if err == nil {
		t.Fatal("expected commit failure")
	}
	if !errors.Is(err, services.ErrInstallFailed) {
		t.Fatalf("expected install failure marker, got %v", err)
	}

	data, err := os.ReadFile(source)
	if err != nil {
		t.Fatalf("read source: %v", err)
	}
	if string(data) != "old audio" {
		t.Fatalf("original modified: %q", data)
	}
}

func TestCaptureMetaRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "file.m4b")
	writeFile(t, path, "x")
	if err := os.Chmod(path, 0o640); err != nil {
		t.Fatalf("chmod: %v", err)
	}

	meta, err := CaptureMeta(path)
	if err != nil {
		t.Fatalf("CaptureMeta: %v", err)
	}
	if meta.Mode != 0o640 {
		t.Fatalf("unexpected mode: %v", meta.Mode)
	}
	if meta.UID != os.Getuid() {
		t.Fatalf("unexpected uid: %d", meta.UID)
	}

	other := filepath.Join(dir, "other.m4b")
	writeFile(t, other, "y")
	if err := meta.ApplyOwnership(other); err != nil {
		t.Fatalf("ApplyOwnership: %v", err)
	}
	if err := meta.ApplyTimes(other); err != nil {
		t.Fatalf("ApplyTimes: %v", err)
	}
	info, err := os.Stat(other)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode().Perm() != 0o640 {
		t.Fatalf("mode not applied: %v", info.Mode().Perm())
	}
	if !info.ModTime().Equal(meta.ModTime) {
		t.Fatalf("mtime not applied: %v != %v", info.ModTime(), meta.ModTime)
	}
}
