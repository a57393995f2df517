package deps

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// CheckWritable verifies the current process can create files under each
// directory. Installs write into the source tree, so catching a read-only
// mount here beats failing mid-batch.
func CheckWritable(dirs ...string) error {
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := unix.Access(dir, unix.W_OK); err != nil {
			return fmt.Errorf("directory %q is not writable: %w", dir, err)
		}
	}
	return nil
}
