package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"opusify/internal/testsupport"
)

const testProbeScript = `#!/bin/sh
path=""
for a in "$@"; do path="$a"; done
case "$path" in
*.part|*.m4b)
	echo '{"format":{"duration":"60.0"},"streams":[{"codec_type":"audio","codec_name":"opus","duration":"60.0"}]}'
	;;
*)
	echo '{"format":{"duration":"60.0"},"streams":[{"codec_type":"audio","codec_name":"mp3","duration":"60.0"}]}'
	;;
esac
`

const testEncodeScript = `#!/bin/sh
out=""
for a in "$@"; do out="$a"; done
printf 'opus-payload' > "$out"
`

func stubTranscoder(t *testing.T, probeScript, encodeScript string) {
	t.Helper()
	bin := t.TempDir()
	for name, script := range map[string]string{"ffprobe": probeScript, "ffmpeg": encodeScript} {
		if err := os.WriteFile(filepath.Join(bin, name), []byte(script), 0o755); err != nil {
			t.Fatalf("write stub %s: %v", name, err)
		}
	}
	t.Setenv("PATH", bin+string(os.PathListSeparator)+os.Getenv("PATH"))
}

func TestRunCommandConvertsLibrary(t *testing.T) {
	stubTranscoder(t, testProbeScript, testEncodeScript)
	env := setupCLITestEnv(t)
	source := filepath.Join(env.cfg.Paths.SourceDir, "book.mp3")
	testsupport.WriteFile(t, source, 2048)

	out, _, err := runCLI(t, []string{"run"}, env.configPath)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	requireContains(t, out, "Converted")

	installed := filepath.Join(env.cfg.Paths.SourceDir, "book.m4b")
	if _, err := os.Stat(installed); err != nil {
		t.Fatalf("expected installed output at %s: %v", installed, err)
	}
	if _, err := os.Stat(source); err != nil {
		t.Fatalf("original should survive keep disposal: %v", err)
	}
}

func TestRunCommandDryRunWritesNothing(t *testing.T) {
	stubTranscoder(t, testProbeScript, testEncodeScript)
	env := setupCLITestEnv(t)
	testsupport.WriteFile(t, filepath.Join(env.cfg.Paths.SourceDir, "book.mp3"), 1024)

	out, _, err := runCLI(t, []string{"run", "--dry-run"}, env.configPath)
	if err != nil {
		t.Fatalf("run --dry-run: %v", err)
	}
	requireContains(t, out, "Skipped")

	if _, err := os.Stat(filepath.Join(env.cfg.Paths.SourceDir, "book.m4b")); !os.IsNotExist(err) {
		t.Fatalf("dry run produced output: %v", err)
	}
}

func TestRunCommandStrictExitOnFailure(t *testing.T) {
	failingEncode := "#!/bin/sh\necho boom >&2\nexit 1\n"
	stubTranscoder(t, testProbeScript, failingEncode)
	env := setupCLITestEnv(t)
	testsupport.WriteFile(t, filepath.Join(env.cfg.Paths.SourceDir, "bad.mp3"), 1024)

	_, _, err := runCLI(t, []string{"run", "--strict-exit"}, env.configPath)
	if err == nil {
		t.Fatal("expected strict-exit run to fail")
	}
	requireContains(t, err.Error(), "failed")
}

func TestScanCommandListsCandidates(t *testing.T) {
	stubTranscoder(t, testProbeScript, testEncodeScript)
	env := setupCLITestEnv(t)
	testsupport.WriteFile(t, filepath.Join(env.cfg.Paths.SourceDir, "one.mp3"), 512)
	testsupport.WriteFile(t, filepath.Join(env.cfg.Paths.SourceDir, "nested", "two.m4b"), 512)
	testsupport.WriteFile(t, filepath.Join(env.cfg.Paths.SourceDir, "skip.txt"), 512)

	out, _, err := runCLI(t, []string{"scan", "--probe"}, env.configPath)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	requireContains(t, out, "one.mp3")
	requireContains(t, out, "two.m4b")
	requireContains(t, out, "2 candidate files")
	if strings.Contains(out, "skip.txt") {
		t.Fatalf("scan listed non-candidate file:\n%s", out)
	}
}
