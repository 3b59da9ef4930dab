package client

import (
	"encoding/json"
	"time"
)

// RunRequest asks the daemon to run tasks. Empty means a full run.
type RunRequest struct {
	Tasks []string `json:"tasks,omitempty"`
}

// TaskStatus is the per-task record of a session.
type TaskStatus struct {
	Task       string    `json:"task"`
	Outcome    string    `json:"outcome"`
	ExitCode   int       `json:"exit_code"`
	Detail     string    `json:"detail,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// SessionResult summarizes one maintenance session.
type SessionResult struct {
	SessionID  string       `json:"session_id"`
	Result     string       `json:"result"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
	Tasks      []TaskStatus `json:"tasks"`
}

// Status is the daemon's lock and last-report summary.
type Status struct {
	Running    bool            `json:"running"`
	HolderPid  int             `json:"holder_pid,omitempty"`
	LastReport json.RawMessage `json:"last_report,omitempty"`
}

// ScheduleEntry pairs a cron expression with a task.
type ScheduleEntry struct {
	Cron string `json:"cron"`
	Task string `json:"task"`
}

// CredentialStatus is credential file metadata.
type CredentialStatus struct {
	Path    string    `json:"path"`
	Exists  bool      `json:"exists"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
	Backups []string  `json:"backups"`
}

// ErrorResponse represents an API error response.
type ErrorResponse struct {
	Error string `json:"error"`
}
