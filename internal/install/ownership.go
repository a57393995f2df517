package install

import (
	"fmt"
	"os"
	"time"

	"golang.org/x/sys/unix"
)

// FileMeta captures the ownership, permissions, and timestamps of an original
// so a replacement can present the same metadata to downstream tooling.
type FileMeta struct {
	UID        int
	GID        int
	Mode       os.FileMode
	ModTime    time.Time
	AccessTime time.Time
}

// CaptureMeta reads the metadata of path.
func CaptureMeta(path string) (FileMeta, error) {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return FileMeta{}, fmt.Errorf("stat %q: %w", path, err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return FileMeta{}, fmt.Errorf("stat %q: %w", path, err)
	}
	return FileMeta{
		UID:        int(st.Uid),
		GID:        int(st.Gid),
		Mode:       info.Mode().Perm(),
		ModTime:    info.ModTime(),
		AccessTime: time.Unix(st.Atim.Sec, st.Atim.Nsec),
	}, nil
}

// ApplyOwnership sets owner, group, and mode on path.
func (m FileMeta) ApplyOwnership(path string) error {
	if err := os.Chmod(path, m.Mode); err != nil {
		return fmt.Errorf("chmod %q: %w", path, err)
	}
	if err := os.Chown(path, m.UID, m.GID); err != nil {
		return fmt.Errorf("chown %q: %w", path, err)
	}
	return nil
}

// ApplyTimes restores access and modification times on path.
func (m FileMeta) ApplyTimes(path string) error {
	if err := os.Chtimes(path, m.AccessTime, m.ModTime); err != nil {
		return fmt.Errorf("chtimes %q: %w", path, err)
	}
	return nil
}
