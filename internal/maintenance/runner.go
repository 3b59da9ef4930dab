package maintenance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/loykin/cloudmaint/internal/env"
	"github.com/loykin/cloudmaint/internal/history"
	"github.com/loykin/cloudmaint/internal/lock"
	"github.com/loykin/cloudmaint/internal/metrics"
	"github.com/loykin/cloudmaint/internal/notify"
	"github.com/loykin/cloudmaint/internal/report"
)

// Mode selects whether task commands are executed or only announced.
type Mode string

const (
	ModeApply  Mode = "apply"
	ModeDryRun Mode = "dry_run"
)

// Options wires a Runner. LockPath and StatusPath are required; everything
// else has a working zero value.
type Options struct {
	LockPath   string
	StatusPath string
	// RepoDir is the version-controlled directory whose sync state is
	// recorded in the report after each session. Empty disables the check.
	RepoDir  string
	Debug    bool
	Mode     Mode
	Specs    map[TaskName]Spec
	Env      *env.Env
	History  history.Sink
	Notifier notify.Notifier
}

// Runner executes named maintenance tasks sequentially under a pid lock.
// Task failures are isolated: a failing task is recorded and the runner
// proceeds to the next one.
type Runner struct {
	opts Options
}

func NewRunner(opts Options) *Runner {
	if opts.Mode == "" {
		opts.Mode = ModeApply
	}
	if opts.Env == nil {
		opts.Env = env.New()
		opts.Env.FromOS()
	}
	return &Runner{opts: opts}
}

// Run executes the requested tasks in canonical order. An empty task list
// means a full run. At most one Run proceeds per machine: a second
// invocation while the lock holder is alive fails fast with
// *lock.ErrAlreadyRunning before any report state is touched.
func (r *Runner) Run(ctx context.Context, tasks []TaskName) (*SessionResult, error) {
	if len(tasks) == 0 {
		tasks = CanonicalOrder
	}
	tasks = canonicalize(tasks)

	lk := lock.New(r.opts.LockPath)
	if err := lk.Acquire(); err != nil {
		var already *lock.ErrAlreadyRunning
		if errors.As(err, &already) {
			metrics.IncLockContention()
		}
		return nil, err
	}
	defer lk.Release()

	start := time.Now()
	sessionID := NewSessionID(start)
	rep := report.NewReporter(r.opts.StatusPath, sessionID, r.opts.Debug)
	rep.Info(fmt.Sprintf("maintenance session %s started (%d tasks)", sessionID, len(tasks)))

	r.sendHistory(ctx, history.Event{
		Type:       history.EventSessionStart,
		OccurredAt: start,
		Record:     history.Record{SessionID: sessionID, StartedAt: start},
	})

	result := &SessionResult{SessionID: sessionID, Result: Success, StartedAt: start}
	for _, task := range tasks {
		if ctx.Err() != nil {
			now := time.Now()
			rep.Warn(fmt.Sprintf("session interrupted, skipping task %s", task))
			result.Tasks = append(result.Tasks, TaskStatus{
				Task: task, Outcome: OutcomeSkipped, StartedAt: now, FinishedAt: now,
			})
			result.Result = PartialSuccess
			continue
		}
		st := r.runTask(ctx, rep, sessionID, task)
		result.Tasks = append(result.Tasks, st)
		if st.Outcome == OutcomeFailure {
			result.Result = PartialSuccess
		}
	}
	result.FinishedAt = time.Now()

	if r.opts.RepoDir != "" {
		rep.SetSyncStatus(report.NewSyncChecker(r.opts.RepoDir).Check())
	}

	rep.Info(fmt.Sprintf("maintenance session %s finished: %s", sessionID, result.Result))
	metrics.ObserveSessionDuration(result.FinishedAt.Sub(start).Seconds())
	metrics.IncSession(string(result.Result))

	r.sendHistory(ctx, history.Event{
		Type:       history.EventSessionFinish,
		OccurredAt: result.FinishedAt,
		Record: history.Record{
			SessionID:  sessionID,
			Outcome:    string(result.Result),
			StartedAt:  start,
			FinishedAt: result.FinishedAt,
		},
	})

	if r.opts.Notifier != nil {
		if err := r.opts.Notifier.Notify(subjectFor(result.Result), notificationBody(result)); err != nil {
			rep.Warn(fmt.Sprintf("notification failed: %v", err))
		}
	}

	return result, nil
}

// runTask executes one task command and converts its exit status into a
// TaskStatus. It never returns an error: task failure is report data.
func (r *Runner) runTask(ctx context.Context, rep *report.Reporter, sessionID string, task TaskName) TaskStatus {
	spec := r.opts.Specs[task]
	spec.Name = task
	st := TaskStatus{Task: task, StartedAt: time.Now()}

	if r.opts.Mode == ModeDryRun {
		rep.Info(fmt.Sprintf("dry-run: would execute task %s: %s", task, spec.Command))
		st.Outcome = OutcomeSkipped
		st.FinishedAt = time.Now()
		return st
	}

	rep.Info(fmt.Sprintf("task %s started", task))
	metrics.IncTaskRun(string(task))

	tctx := ctx
	var cancel context.CancelFunc
	if spec.Timeout > 0 {
		tctx, cancel = context.WithTimeout(ctx, spec.Timeout)
		defer cancel()
	}

	cmd := spec.BuildCommand(tctx)
	cmd.Dir = spec.WorkDir
	cmd.Env = r.opts.Env.Merge(spec.Env)

	outW, errW, err := spec.Log.Writers(string(task))
	if err == nil {
		if outW != nil {
			cmd.Stdout = outW
			defer func() { _ = outW.Close() }()
		}
		if errW != nil {
			cmd.Stderr = errW
			defer func() { _ = errW.Close() }()
		}
	} else {
		slog.Warn("task log writers unavailable", "task", task, "error", err)
	}

	runErr := cmd.Run()
	st.FinishedAt = time.Now()
	metrics.ObserveTaskDuration(string(task), st.FinishedAt.Sub(st.StartedAt).Seconds())

	switch {
	case runErr == nil:
		st.Outcome = OutcomeSuccess
		rep.Info(fmt.Sprintf("task %s completed", task))
	default:
		st.Outcome = OutcomeFailure
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			st.ExitCode = exitErr.ExitCode()
		} else {
			st.ExitCode = -1
		}
		st.Detail = runErr.Error()
		switch {
		case errors.Is(tctx.Err(), context.DeadlineExceeded):
			st.Detail = fmt.Sprintf("timed out after %s", spec.Timeout)
		case errors.Is(tctx.Err(), context.Canceled):
			st.Detail = "interrupted"
		}
		metrics.IncTaskFailure(string(task))
		rep.Error(fmt.Sprintf("task %s failed: %s (exit %d)", task, st.Detail, st.ExitCode))
	}

	r.sendHistory(ctx, history.Event{
		Type:       history.EventTaskResult,
		OccurredAt: st.FinishedAt,
		Record: history.Record{
			SessionID:  sessionID,
			Task:       string(task),
			Outcome:    string(st.Outcome),
			ExitCode:   st.ExitCode,
			Detail:     st.Detail,
			StartedAt:  st.StartedAt,
			FinishedAt: st.FinishedAt,
		},
	})
	return st
}

func (r *Runner) sendHistory(ctx context.Context, e history.Event) {
	if r.opts.History == nil {
		return
	}
	if err := r.opts.History.Send(ctx, e); err != nil {
		slog.Warn("history sink send failed", "type", e.Type, "error", err)
	}
}

// canonicalize deduplicates the requested tasks and orders them by
// CanonicalOrder. Unknown names are dropped (callers validate first).
func canonicalize(tasks []TaskName) []TaskName {
	want := make(map[TaskName]bool, len(tasks))
	for _, t := range tasks {
		want[t] = true
	}
	out := make([]TaskName, 0, len(want))
	for _, t := range CanonicalOrder {
		if want[t] {
			out = append(out, t)
		}
	}
	return out
}

func subjectFor(res Result) string {
	if res == Success {
		return "Maintenance SUCCESS"
	}
	return "Maintenance PARTIAL SUCCESS"
}

func notificationBody(res *SessionResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Session %s finished at %s with result %s.\n\n",
		res.SessionID, res.FinishedAt.Format(time.RFC3339), res.Result)
	for _, t := range res.Tasks {
		fmt.Fprintf(&b, "  %-12s %s", t.Task, t.Outcome)
		if t.Outcome == OutcomeFailure {
			fmt.Fprintf(&b, " (exit %d: %s)", t.ExitCode, t.Detail)
		}
		b.WriteString("\n")
	}
	return b.String()
}
