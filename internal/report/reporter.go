package report

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Reporter accumulates session activity and flushes the whole report to disk
// with one atomic write per mutation. Durability wins over performance: the
// on-disk report reflects every logging call made so far, not only those at
// clean shutdown.
type Reporter struct {
	mu     sync.Mutex
	path   string
	debug  bool
	report StatusReport
}

// NewReporter starts an empty report for sessionID persisted at path.
func NewReporter(path, sessionID string, debug bool) *Reporter {
	now := time.Now()
	return &Reporter{
		path:  path,
		debug: debug,
		report: StatusReport{
			SessionID:  sessionID,
			StartTime:  now,
			LastUpdate: now,
			Sync:       SyncStatus{State: SyncNotARepo},
		},
	}
}

// Load reads a previously persisted StatusReport.
func Load(path string) (StatusReport, error) {
	var rep StatusReport
	b, err := os.ReadFile(path)
	if err != nil {
		return rep, err
	}
	if err := json.Unmarshal(b, &rep); err != nil {
		return rep, fmt.Errorf("parse status file %s: %w", path, err)
	}
	return rep, nil
}

func (r *Reporter) Info(msg string) {
	slog.Info(msg)
	r.appendOperation(LevelInfo, msg)
}

func (r *Reporter) Warn(msg string) {
	slog.Warn(msg)
	r.appendOperation(LevelWarning, msg)
}

// Debug is a no-op unless the reporter was created with debug enabled.
func (r *Reporter) Debug(msg string) {
	if !r.debug {
		return
	}
	slog.Debug(msg)
	r.appendOperation(LevelDebug, msg)
}

// Error appends to the errors sequence.
func (r *Reporter) Error(msg string) {
	slog.Error(msg)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.report.Errors = append(r.report.Errors, ErrorEntry{Message: msg, Timestamp: time.Now()})
	r.persistLocked()
}

// LogChange records a change and emits a human-readable operation line.
func (r *Reporter) LogChange(changeType, description, path string) {
	r.mu.Lock()
	now := time.Now()
	r.report.ChangesMade = append(r.report.ChangesMade, Change{
		Type: changeType, Description: description, Path: path, Timestamp: now,
	})
	r.appendOperationLocked(LevelInfo, fmt.Sprintf("change(%s): %s [%s]", changeType, description, path), now)
	r.persistLocked()
	r.mu.Unlock()
}

// LogPermissionFix records a mode correction and emits an operation line.
func (r *Reporter) LogPermissionFix(target, oldMode, newMode string) {
	r.mu.Lock()
	now := time.Now()
	r.report.PermissionsFixed = append(r.report.PermissionsFixed, PermissionFix{
		Target: target, OldMode: oldMode, NewMode: newMode, Timestamp: now,
	})
	r.appendOperationLocked(LevelInfo, fmt.Sprintf("permissions: %s %s -> %s", target, oldMode, newMode), now)
	r.persistLocked()
	r.mu.Unlock()
}

// LogCommit records a created commit and emits an operation line.
func (r *Reporter) LogCommit(hash, message string, filesChanged int) {
	r.mu.Lock()
	now := time.Now()
	r.report.CommitsCreated = append(r.report.CommitsCreated, Commit{
		Hash: hash, Message: message, FilesChanged: filesChanged, Timestamp: now,
	})
	r.appendOperationLocked(LevelInfo, fmt.Sprintf("commit %s: %s (%d files)", hash, message, filesChanged), now)
	r.persistLocked()
	r.mu.Unlock()
}

// SetSyncStatus overwrites the sync summary (the one non-append field group).
func (r *Reporter) SetSyncStatus(s SyncStatus) {
	r.mu.Lock()
	r.report.Sync = s
	r.report.LastUpdate = time.Now()
	r.persistLocked()
	r.mu.Unlock()
}

// Snapshot returns a deep copy of the current report. Rendering works on
// snapshots so it never mutates reporter state.
func (r *Reporter) Snapshot() StatusReport {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := r.report
	cp.ChangesMade = append([]Change(nil), r.report.ChangesMade...)
	cp.PermissionsFixed = append([]PermissionFix(nil), r.report.PermissionsFixed...)
	cp.CommitsCreated = append([]Commit(nil), r.report.CommitsCreated...)
	cp.Operations = append([]Operation(nil), r.report.Operations...)
	cp.Errors = append([]ErrorEntry(nil), r.report.Errors...)
	return cp
}

func (r *Reporter) appendOperation(level Level, msg string) {
	r.mu.Lock()
	r.appendOperationLocked(level, msg, time.Now())
	r.persistLocked()
	r.mu.Unlock()
}

func (r *Reporter) appendOperationLocked(level Level, msg string, now time.Time) {
	r.report.Operations = append(r.report.Operations, Operation{
		Level: level, Message: msg, Timestamp: now,
	})
	r.report.LastUpdate = now
}

// persistLocked serializes the report and writes it atomically
// (temp file + rename). Callers hold r.mu.
func (r *Reporter) persistLocked() {
	if r.path == "" {
		return
	}
	b, err := json.MarshalIndent(&r.report, "", "  ")
	if err != nil {
		slog.Error("marshal status report", "error", err)
		return
	}
	if err := atomicWrite(r.path, b, 0o600); err != nil {
		slog.Error("persist status report", "path", r.path, "error", err)
	}
}

// atomicWrite writes data to a temp file in the target directory and renames
// it over path so readers never observe a partial file.
func atomicWrite(path string, data []byte, mode os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, mode); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
