package maintenance

import (
	"fmt"
	"os"
	"time"
)

// Outcome is the recorded result of one task attempt.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
	OutcomeSkipped Outcome = "skipped"
)

// Result classifies a whole session. A session is Success only when every
// requested task succeeded (or was skipped in dry-run); any task failure
// downgrades it to PartialSuccess, which still exits cleanly.
type Result string

const (
	Success        Result = "success"
	PartialSuccess Result = "partial_success"
)

// TaskStatus is the per-task record inside a SessionResult.
type TaskStatus struct {
	Task       TaskName  `json:"task"`
	Outcome    Outcome   `json:"outcome"`
	ExitCode   int       `json:"exit_code"`
	Detail     string    `json:"detail,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// SessionResult summarizes one TaskRunner invocation.
type SessionResult struct {
	SessionID  string       `json:"session_id"`
	Result     Result       `json:"result"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
	Tasks      []TaskStatus `json:"tasks"`
}

// Completed returns the task name to outcome mapping.
func (s *SessionResult) Completed() map[TaskName]Outcome {
	m := make(map[TaskName]Outcome, len(s.Tasks))
	for _, t := range s.Tasks {
		m[t.Task] = t.Outcome
	}
	return m
}

// NewSessionID builds a session identifier unique per run: timestamp plus pid.
func NewSessionID(now time.Time) string {
	return fmt.Sprintf("%s-%d", now.Format("20060102T150405"), os.Getpid())
}
