// Package runlock guards against concurrent batch runs over the same state
// directory with an advisory file lock.
package runlock

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/gofrs/flock"

	"opusify/internal/config"
)

// ErrAlreadyRunning indicates another process holds the run lock.
var ErrAlreadyRunning = errors.New("another run is already in progress")

// Lock is a held advisory lock. Release it with Unlock.
type Lock struct {
	path string
	lock *flock.Flock
}

// Acquire takes the run lock for the configured state directory without
// blocking. Two concurrent runs over the same library would race on installs,
// so the second caller gets ErrAlreadyRunning.
func Acquire(cfg *config.Config) (*Lock, error) {
	path := filepath.Join(cfg.Paths.StateDir, "opusify.lock")
	lock := flock.New(path)

	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire run lock %q: %w", path, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w (lock file %s)", ErrAlreadyRunning, path)
	}
	return &Lock{path: path, lock: lock}, nil
}

// Path returns the lock file location.
func (l *Lock) Path() string {
	return l.path
}

// Unlock releases the lock.
func (l *Lock) Unlock() error {
	if l == nil || l.lock == nil {
		return nil
	}
	return l.lock.Unlock()
}
