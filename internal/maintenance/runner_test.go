package maintenance

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/loykin/cloudmaint/internal/history"
	"github.com/loykin/cloudmaint/internal/lock"
	"github.com/loykin/cloudmaint/internal/report"
)

type fakeSink struct {
	mu     sync.Mutex
	events []history.Event
}

func (f *fakeSink) Send(_ context.Context, e history.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, e)
	return nil
}

type fakeNotifier struct {
	subject string
	body    string
}

func (f *fakeNotifier) Notify(subject, body string) error {
	f.subject = subject
	f.body = body
	return nil
}

func testOptions(t *testing.T, specs map[TaskName]Spec) Options {
	t.Helper()
	dir := t.TempDir()
	return Options{
		LockPath:   filepath.Join(dir, "maintenance.lock"),
		StatusPath: filepath.Join(dir, "status.json"),
		Specs:      specs,
	}
}

func TestFullRunAllSucceed(t *testing.T) {
	specs := map[TaskName]Spec{
		TaskSecurity:    {Command: "true"},
		TaskPerformance: {Command: "true"},
		TaskConfig:      {Command: "true"},
		TaskBackup:      {Command: "true"},
	}
	opts := testOptions(t, specs)
	res, err := NewRunner(opts).Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Result != Success {
		t.Fatalf("expected success, got %s", res.Result)
	}
	if len(res.Tasks) != 4 {
		t.Fatalf("expected 4 tasks, got %d", len(res.Tasks))
	}
	for i, want := range CanonicalOrder {
		if res.Tasks[i].Task != want {
			t.Fatalf("task %d: expected %s, got %s", i, want, res.Tasks[i].Task)
		}
		if res.Tasks[i].Outcome != OutcomeSuccess {
			t.Fatalf("task %s: expected success, got %s", want, res.Tasks[i].Outcome)
		}
	}
	// Lock is released after the run.
	if _, err := os.Stat(opts.LockPath); !os.IsNotExist(err) {
		t.Fatalf("expected lock file removed, stat err=%v", err)
	}
}

func TestFailureIsolation(t *testing.T) {
	// Task 2 of 4 fails; 3 and 4 must still run.
	dir := t.TempDir()
	specs := map[TaskName]Spec{
		TaskSecurity:    {Command: "true"},
		TaskPerformance: {Command: "sh -c 'exit 3'"},
		TaskConfig:      {Command: "touch " + filepath.Join(dir, "config.ran")},
		TaskBackup:      {Command: "touch " + filepath.Join(dir, "backup.ran")},
	}
	opts := testOptions(t, specs)
	res, err := NewRunner(opts).Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Result != PartialSuccess {
		t.Fatalf("expected partial_success, got %s", res.Result)
	}
	got := res.Completed()
	if got[TaskPerformance] != OutcomeFailure {
		t.Fatalf("performance: expected failure, got %s", got[TaskPerformance])
	}
	for _, task := range []TaskName{TaskSecurity, TaskConfig, TaskBackup} {
		if got[task] != OutcomeSuccess {
			t.Fatalf("%s: expected success, got %s", task, got[task])
		}
	}
	for _, f := range []string{"config.ran", "backup.ran"} {
		if _, err := os.Stat(filepath.Join(dir, f)); err != nil {
			t.Fatalf("expected %s to exist: %v", f, err)
		}
	}
	for _, st := range res.Tasks {
		if st.Task == TaskPerformance && st.ExitCode != 3 {
			t.Fatalf("expected exit code 3, got %d", st.ExitCode)
		}
	}

	// The failure lands in the errors sequence of the persisted report.
	rep, err := report.Load(opts.StatusPath)
	if err != nil {
		t.Fatalf("load status: %v", err)
	}
	if len(rep.Errors) != 1 {
		t.Fatalf("expected one error entry, got %d", len(rep.Errors))
	}
}

func TestAlreadyRunningFailsFastWithoutReport(t *testing.T) {
	opts := testOptions(t, map[TaskName]Spec{TaskBackup: {Command: "true"}})
	// Simulate a live holder: our own pid.
	if err := os.WriteFile(opts.LockPath, []byte(strconv.Itoa(os.Getpid())+"\n"), 0o600); err != nil {
		t.Fatalf("seed lock: %v", err)
	}

	_, err := NewRunner(opts).Run(context.Background(), []TaskName{TaskBackup})
	var already *lock.ErrAlreadyRunning
	if !errors.As(err, &already) {
		t.Fatalf("expected *lock.ErrAlreadyRunning, got %v", err)
	}
	if already.Pid != os.Getpid() {
		t.Fatalf("expected conflicting pid %d, got %d", os.Getpid(), already.Pid)
	}
	if _, serr := os.Stat(opts.StatusPath); !os.IsNotExist(serr) {
		t.Fatalf("status file must not be touched on lock conflict, stat err=%v", serr)
	}
}

func TestStaleLockIsReclaimedByRun(t *testing.T) {
	opts := testOptions(t, map[TaskName]Spec{TaskConfig: {Command: "true"}})
	if err := os.WriteFile(opts.LockPath, []byte("1073741824\n"), 0o600); err != nil {
		t.Fatalf("seed stale lock: %v", err)
	}
	res, err := NewRunner(opts).Run(context.Background(), []TaskName{TaskConfig})
	if err != nil {
		t.Fatalf("Run after stale lock: %v", err)
	}
	if res.Result != Success {
		t.Fatalf("expected success, got %s", res.Result)
	}
}

func TestDryRunSkipsExecution(t *testing.T) {
	dir := t.TempDir()
	marker := filepath.Join(dir, "would-run")
	opts := testOptions(t, map[TaskName]Spec{TaskSecurity: {Command: "touch " + marker}})
	opts.Mode = ModeDryRun

	res, err := NewRunner(opts).Run(context.Background(), []TaskName{TaskSecurity})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Tasks[0].Outcome != OutcomeSkipped {
		t.Fatalf("expected skipped, got %s", res.Tasks[0].Outcome)
	}
	if res.Result != Success {
		t.Fatalf("dry run result: expected success, got %s", res.Result)
	}
	if _, err := os.Stat(marker); !os.IsNotExist(err) {
		t.Fatalf("dry run must not execute the command")
	}
}

func TestTaskTimeout(t *testing.T) {
	opts := testOptions(t, map[TaskName]Spec{
		TaskBackup: {Command: "sleep 5", Timeout: 100 * time.Millisecond},
	})
	start := time.Now()
	res, err := NewRunner(opts).Run(context.Background(), []TaskName{TaskBackup})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if time.Since(start) > 3*time.Second {
		t.Fatalf("timeout did not bound task runtime")
	}
	st := res.Tasks[0]
	if st.Outcome != OutcomeFailure {
		t.Fatalf("expected failure, got %s", st.Outcome)
	}
	if st.Detail != "timed out after 100ms" {
		t.Fatalf("unexpected detail: %q", st.Detail)
	}
}

func TestRequestedTasksRunInCanonicalOrder(t *testing.T) {
	opts := testOptions(t, map[TaskName]Spec{
		TaskSecurity: {Command: "true"},
		TaskBackup:   {Command: "true"},
	})
	res, err := NewRunner(opts).Run(context.Background(), []TaskName{TaskBackup, TaskSecurity, TaskBackup})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Tasks) != 2 {
		t.Fatalf("expected deduplicated 2 tasks, got %d", len(res.Tasks))
	}
	if res.Tasks[0].Task != TaskSecurity || res.Tasks[1].Task != TaskBackup {
		t.Fatalf("unexpected order: %s, %s", res.Tasks[0].Task, res.Tasks[1].Task)
	}
}

func TestContextCancelKillsTaskAndReleasesLock(t *testing.T) {
	dir := t.TempDir()
	lockPath := filepath.Join(dir, "m.lock")
	r := NewRunner(Options{
		LockPath:   lockPath,
		StatusPath: filepath.Join(dir, "status.json"),
		Specs: map[TaskName]Spec{
			TaskConfig: {Command: "sleep 30"},
			TaskBackup: {Command: "true"},
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(200 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	res, err := r.Run(ctx, []TaskName{TaskConfig, TaskBackup})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 10*time.Second {
		t.Fatalf("cancellation did not stop the running task (took %s)", elapsed)
	}
	if res.Result != PartialSuccess {
		t.Fatalf("result = %s, want %s", res.Result, PartialSuccess)
	}
	if res.Tasks[0].Outcome != OutcomeFailure || res.Tasks[0].Detail != "interrupted" {
		t.Fatalf("interrupted task = %+v", res.Tasks[0])
	}
	if res.Tasks[1].Outcome != OutcomeSkipped {
		t.Fatalf("task after cancellation = %+v, want skipped", res.Tasks[1])
	}
	if _, err := os.Stat(lockPath); !os.IsNotExist(err) {
		t.Fatalf("lock file still present after cancelled run (stat err %v)", err)
	}
}

func TestRepoSyncStatusRecorded(t *testing.T) {
	dir := t.TempDir()
	statusPath := filepath.Join(dir, "status.json")
	r := NewRunner(Options{
		LockPath:   filepath.Join(dir, "m.lock"),
		StatusPath: statusPath,
		RepoDir:    dir, // plain directory, not a repository
		Specs: map[TaskName]Spec{
			TaskConfig: {Command: "true"},
		},
	})
	if _, err := r.Run(context.Background(), []TaskName{TaskConfig}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	rep, err := report.Load(statusPath)
	if err != nil {
		t.Fatalf("load report: %v", err)
	}
	if rep.Sync.State != report.SyncNotARepo {
		t.Fatalf("sync state = %q, want %q", rep.Sync.State, report.SyncNotARepo)
	}
	if rep.Sync.LastSync.IsZero() {
		t.Fatal("expected LastSync to be set")
	}
}

func TestHistoryEventsEmitted(t *testing.T) {
	sink := &fakeSink{}
	opts := testOptions(t, map[TaskName]Spec{TaskConfig: {Command: "true"}})
	opts.History = sink

	res, err := NewRunner(opts).Run(context.Background(), []TaskName{TaskConfig})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(sink.events) != 3 {
		t.Fatalf("expected 3 events (start, task, finish), got %d", len(sink.events))
	}
	if sink.events[0].Type != history.EventSessionStart {
		t.Fatalf("event 0: expected session_start, got %s", sink.events[0].Type)
	}
	if sink.events[1].Type != history.EventTaskResult || sink.events[1].Record.Task != "config" {
		t.Fatalf("event 1: expected config task result, got %+v", sink.events[1])
	}
	if sink.events[2].Type != history.EventSessionFinish || sink.events[2].Record.Outcome != string(Success) {
		t.Fatalf("event 2: expected session_finish success, got %+v", sink.events[2])
	}
	for _, e := range sink.events {
		if e.Record.SessionID != res.SessionID {
			t.Fatalf("event session id %q != %q", e.Record.SessionID, res.SessionID)
		}
	}
}

func TestNotificationOnPartialSuccess(t *testing.T) {
	n := &fakeNotifier{}
	opts := testOptions(t, map[TaskName]Spec{
		TaskSecurity: {Command: "true"},
		TaskConfig:   {Command: "false"},
	})
	opts.Notifier = n

	if _, err := NewRunner(opts).Run(context.Background(), []TaskName{TaskSecurity, TaskConfig}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if n.subject != "Maintenance PARTIAL SUCCESS" {
		t.Fatalf("unexpected subject %q", n.subject)
	}
}

func TestPerTaskEnvReachesCommand(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "marker.txt")
	opts := testOptions(t, map[TaskName]Spec{
		TaskConfig: {
			Command: "sh -c 'printf %s \"$MARKER\" > " + out + "'",
			Env:     []string{"MARKER=hello"},
		},
	})
	if _, err := NewRunner(opts).Run(context.Background(), []TaskName{TaskConfig}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	b, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read marker: %v", err)
	}
	if string(b) != "hello" {
		t.Fatalf("expected env to flow into task, got %q", string(b))
	}
}
