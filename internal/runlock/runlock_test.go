package runlock

import (
	"errors"
	"path/filepath"
	"testing"

	"opusify/internal/config"
)

func lockConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Paths.StateDir = t.TempDir()
	return &cfg
}

func TestAcquireAndRelease(t *testing.T) {
	cfg := lockConfig(t)

	lock, err := Acquire(cfg)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if want := filepath.Join(cfg.Paths.StateDir, "opusify.lock"); lock.Path() != want {
		t.Fatalf("path = %q, want %q", lock.Path(), want)
	}
	if err := lock.Unlock(); err != nil {
		t.Fatalf("Unlock: %v", err)
	}

	again, err := Acquire(cfg)
	if err != nil {
		t.Fatalf("Acquire after release: %v", err)
	}
	_ = again.Unlock()
}

func TestSecondAcquireFails(t *testing.T) {
	cfg := lockConfig(t)

	lock, err := Acquire(cfg)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer lock.Unlock()

	if _, err := Acquire(cfg); !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("second acquire err = %v, want ErrAlreadyRunning", err)
	}
}

func TestUnlockNil(t *testing.T) {
	var lock *Lock
	if err := lock.Unlock(); err != nil {
		t.Fatalf("nil Unlock: %v", err)
	}
}
