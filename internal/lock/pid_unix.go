//go:build !windows

package lock

import (
	"errors"
	"syscall"
)

// Alive returns true if a process with the given pid exists (or EPERM).
func Alive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := syscall.Kill(pid, 0)
	return err == nil || errors.Is(err, syscall.EPERM)
}
