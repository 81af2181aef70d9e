//go:build windows

package lockfile

import (
	"golang.org/x/sys/windows"
)

// systemAlive checks process liveness via OpenProcess. A handle alone is not
// proof of life: Windows keeps exited processes queryable until the last
// handle closes, so the exit code must still read STILL_ACTIVE.
func systemAlive(pid int) bool {
	if pid <= 0 {
		return false
	}

	handle, err := windows.OpenProcess(windows.PROCESS_QUERY_LIMITED_INFORMATION, false, uint32(pid))
	if err != nil {
		return false
	}
	defer windows.CloseHandle(handle)

	var code uint32
	if err := windows.GetExitCodeProcess(handle, &code); err != nil {
		return false
	}
	return code == windows.STILL_ACTIVE
}
