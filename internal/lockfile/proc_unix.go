//go:build !windows

package lockfile

import (
	"errors"
	"os"
	"syscall"
)

// systemAlive checks process liveness by sending signal 0, which probes for
// existence without affecting the target. EPERM means the process exists but
// belongs to another user, so it still counts as alive.
func systemAlive(pid int) bool {
	if pid <= 0 {
		return false
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}

	err = process.Signal(syscall.Signal(0))
	if err == nil {
		return true
	}
	return errors.Is(err, syscall.EPERM)
}
