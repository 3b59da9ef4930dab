package history

import (
	"context"
	"time"
)

// EventType defines the kind of maintenance lifecycle event.
type EventType string

const (
	EventSessionStart  EventType = "session_start"
	EventSessionFinish EventType = "session_finish"
	EventTaskResult    EventType = "task_result"
)

// Record carries the session/task fields persisted with every event.
// Task and Outcome are empty for session-level events.
type Record struct {
	SessionID  string    `json:"session_id"`
	Task       string    `json:"task"`
	Outcome    string    `json:"outcome"`
	ExitCode   int       `json:"exit_code"`
	Detail     string    `json:"detail"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Event represents a lifecycle event to be exported to external systems.
type Event struct {
	Type       EventType `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	Record     Record    `json:"record"`
}

// Sink is a destination for history events (audit/statistics systems).
// Implementations must be safe for concurrent use.
type Sink interface {
	Send(ctx context.Context, e Event) error
}
