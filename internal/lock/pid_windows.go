//go:build windows

package lock

import "os"

// Alive returns true if a process with the given pid can be found.
// Windows has no signal 0; FindProcess succeeding is the best available probe.
func Alive(pid int) bool {
	if pid <= 0 {
		return false
	}
	p, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	_ = p.Release()
	return true
}
