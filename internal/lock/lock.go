package lock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ErrAlreadyRunning is returned when the lock file points at a live process.
// Pid identifies the conflicting holder so the operator can inspect it.
type ErrAlreadyRunning struct {
	Pid  int
	Path string
}

func (e *ErrAlreadyRunning) Error() string {
	return fmt.Sprintf("another maintenance session is running (pid %d, lock %s)", e.Pid, e.Path)
}

// FileLock is a pid-based mutual exclusion marker on the local filesystem.
// At most one live holder exists per path; a lock whose recorded pid is not
// a running process is stale and reclaimed by the next Acquire.
type FileLock struct {
	path string
	held bool
}

func New(path string) *FileLock { return &FileLock{path: path} }

func (l *FileLock) Path() string { return l.path }

// Acquire creates the lock file with the current pid. If the file exists and
// its pid is alive, it fails fast with *ErrAlreadyRunning. A stale file is
// removed and acquisition retried once.
func (l *FileLock) Acquire() error {
	for attempt := 0; attempt < 2; attempt++ {
		if err := os.MkdirAll(filepath.Dir(l.path), 0o750); err != nil {
			return fmt.Errorf("create lock dir: %w", err)
		}
		f, err := os.OpenFile(l.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
		if err == nil {
			_, werr := f.WriteString(strconv.Itoa(os.Getpid()) + "\n")
			cerr := f.Close()
			if werr != nil || cerr != nil {
				_ = os.Remove(l.path)
				return fmt.Errorf("write lock file: %w", errors.Join(werr, cerr))
			}
			l.held = true
			return nil
		}
		if !os.IsExist(err) {
			return fmt.Errorf("create lock file: %w", err)
		}
		pid, rerr := ReadHolder(l.path)
		if rerr == nil && Alive(pid) {
			return &ErrAlreadyRunning{Pid: pid, Path: l.path}
		}
		// Stale (dead pid or unreadable content): reclaim and retry.
		if rmErr := os.Remove(l.path); rmErr != nil && !os.IsNotExist(rmErr) {
			return fmt.Errorf("remove stale lock: %w", rmErr)
		}
	}
	return fmt.Errorf("lock %s: could not acquire after stale cleanup", l.path)
}

// Release removes the lock file. Safe to call on an unheld lock.
func (l *FileLock) Release() {
	if !l.held {
		return
	}
	l.held = false
	_ = os.Remove(l.path)
}

// Held reports whether this handle currently owns the lock.
func (l *FileLock) Held() bool { return l.held }

// ReadHolder reads the pid recorded in a lock file.
func ReadHolder(path string) (int, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	pidLine, _, _ := strings.Cut(string(b), "\n")
	pid, err := strconv.Atoi(strings.TrimSpace(pidLine))
	if err != nil {
		return 0, fmt.Errorf("invalid pid in %s: %w", path, err)
	}
	return pid, nil
}
