package report

import "time"

// Level classifies an operation log entry.
type Level string

const (
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
	LevelDebug   Level = "debug"
)

// SyncState classifies the working tree relative to version control.
type SyncState string

const (
	SyncClean              SyncState = "clean"
	SyncUncommittedChanges SyncState = "uncommitted_changes"
	SyncUnpushedCommits    SyncState = "unpushed_commits"
	SyncNotARepo           SyncState = "not_a_repo"
)

// Change records one modification made during a session.
type Change struct {
	Type        string    `json:"type"`
	Description string    `json:"description"`
	Path        string    `json:"path"`
	Timestamp   time.Time `json:"timestamp"`
}

// PermissionFix records a file mode correction.
type PermissionFix struct {
	Target    string    `json:"target"`
	OldMode   string    `json:"old_mode"`
	NewMode   string    `json:"new_mode"`
	Timestamp time.Time `json:"timestamp"`
}

// Commit records a version-control commit created by the tooling.
type Commit struct {
	Hash         string    `json:"hash"`
	Message      string    `json:"message"`
	FilesChanged int       `json:"files_changed"`
	Timestamp    time.Time `json:"timestamp"`
}

// Operation is one append-only log line of session activity.
type Operation struct {
	Level     Level     `json:"level"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// ErrorEntry is one append-only error record.
type ErrorEntry struct {
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// SyncStatus summarizes the repository state of the managed directory.
type SyncStatus struct {
	State            SyncState `json:"state"`
	UncommittedCount int       `json:"uncommitted_count"`
	UnpushedCount    int       `json:"unpushed_count"`
	LastSync         time.Time `json:"last_sync"`
}

// StatusReport is the full persisted session record. All slices are
// append-only within a session; only LastUpdate and Sync.LastSync are
// ever overwritten.
type StatusReport struct {
	SessionID        string          `json:"session_id"`
	StartTime        time.Time       `json:"start_time"`
	LastUpdate       time.Time       `json:"last_update"`
	ChangesMade      []Change        `json:"changes_made"`
	PermissionsFixed []PermissionFix `json:"permissions_fixed"`
	CommitsCreated   []Commit        `json:"commits_created"`
	Sync             SyncStatus      `json:"sync_status"`
	Operations       []Operation     `json:"operations"`
	Errors           []ErrorEntry    `json:"errors"`
}
