//go:build linux

package supervisor

import (
	"os"
	"strconv"
	"strings"
	"syscall"
)

// pidAlive reports whether pid identifies a live process, by sending the
// null signal, the portable way to probe process existence without
// actually affecting it.
func pidAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	return syscall.Kill(pid, 0) == nil
}

// listProcessPIDs reads the process table directly from /proc, the
// canonical approach on Linux and the one source of truth the reaper needs
// (no ecosystem package in the pack wraps this usefully).
func listProcessPIDs() []int {
	entries, err := os.ReadDir("/proc")
	if err != nil {
		return nil
	}
	var pids []int
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		pid, err := strconv.Atoi(e.Name())
		if err != nil {
			continue
		}
		pids = append(pids, pid)
	}
	return pids
}

// readCmdline reads /proc/<pid>/cmdline, joining the NUL-separated argv
// into a space-separated string for glob matching.
func readCmdline(pid int) (string, error) {
	data, err := os.ReadFile("/proc/" + strconv.Itoa(pid) + "/cmdline")
	if err != nil {
		return "", err
	}
	parts := strings.Split(strings.Trim(string(data), "\x00"), "\x00")
	return strings.Join(parts, " "), nil
}
