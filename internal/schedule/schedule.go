package schedule

import (
	"bytes"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// ErrSchedulerUnavailable is returned when the OS scheduler (crontab) cannot
// be reached at all. Partial installation before a later failure is reported,
// not rolled back.
var ErrSchedulerUnavailable = errors.New("os scheduler unavailable")

// Entry pairs a cron expression with the task it triggers.
type Entry struct {
	Cron string `json:"cron" mapstructure:"cron"`
	Task string `json:"task" mapstructure:"task"`
}

// Validate checks the cron expression with the standard 5-field parser.
func (e Entry) Validate() error {
	if strings.TrimSpace(e.Task) == "" {
		return errors.New("schedule entry has no task")
	}
	if _, err := cron.ParseStandard(e.Cron); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", e.Cron, err)
	}
	return nil
}

// NextRun returns the entry's next activation after now.
func (e Entry) NextRun(now time.Time) (time.Time, error) {
	sched, err := cron.ParseStandard(e.Cron)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid cron expression %q: %w", e.Cron, err)
	}
	return sched.Next(now), nil
}

// CrontabRunner executes the crontab binary. Injected in tests.
// args are crontab's arguments; stdin is fed when non-empty.
type CrontabRunner func(stdin string, args ...string) (string, error)

func defaultCrontabRunner(stdin string, args ...string) (string, error) {
	cmd := exec.Command("crontab", args...)
	if stdin != "" {
		cmd.Stdin = strings.NewReader(stdin)
	}
	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return out.String(), fmt.Errorf("crontab %s: %s: %w", strings.Join(args, " "), msg, err)
		}
		return out.String(), fmt.Errorf("crontab %s: %w", strings.Join(args, " "), err)
	}
	return out.String(), nil
}

// Manager registers recurring tool invocations with the user's crontab.
// Matching is by exact command string, so entries created by anything else
// are never touched.
type Manager struct {
	// Command is the invocation pattern, e.g. "/usr/local/bin/cloudmaint run".
	// The task name is appended per entry.
	Command string
	Run     CrontabRunner
}

func NewManager(command string) *Manager {
	return &Manager{Command: command, Run: defaultCrontabRunner}
}

func (m *Manager) runner() CrontabRunner {
	if m.Run != nil {
		return m.Run
	}
	return defaultCrontabRunner
}

// CommandFor renders the command portion of a crontab line for task.
func (m *Manager) CommandFor(task string) string {
	return m.Command + " " + task
}

// current returns the existing crontab lines. A missing crontab ("no crontab
// for user") is an empty schedule, not an error.
func (m *Manager) current() ([]string, error) {
	out, err := m.runner()("", "-l")
	if err != nil {
		if strings.Contains(err.Error(), "no crontab for") {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrSchedulerUnavailable, err)
	}
	var lines []string
	for _, ln := range strings.Split(out, "\n") {
		if strings.TrimSpace(ln) == "" {
			continue
		}
		lines = append(lines, ln)
	}
	return lines, nil
}

func (m *Manager) write(lines []string) error {
	content := strings.Join(lines, "\n")
	if content != "" {
		content += "\n"
	}
	if _, err := m.runner()(content, "-"); err != nil {
		return fmt.Errorf("%w: %v", ErrSchedulerUnavailable, err)
	}
	return nil
}

// Install idempotently adds each entry to the crontab. An entry whose command
// portion already appears (exact match) is left alone, never duplicated.
// It returns the number of entries actually added.
func (m *Manager) Install(entries []Entry) (int, error) {
	for _, e := range entries {
		if err := e.Validate(); err != nil {
			return 0, err
		}
	}
	lines, err := m.current()
	if err != nil {
		return 0, err
	}

	present := make(map[string]bool)
	for _, ln := range lines {
		if cmd, ok := commandPortion(ln); ok {
			present[cmd] = true
		}
	}

	added := 0
	for _, e := range entries {
		cmd := m.CommandFor(e.Task)
		if present[cmd] {
			continue
		}
		lines = append(lines, RenderCronLine(e.Cron, cmd))
		present[cmd] = true
		added++
	}
	if added == 0 {
		return 0, nil
	}
	if err := m.write(lines); err != nil {
		return 0, err
	}
	return added, nil
}

// Status lists the registered entries whose command matches this tool's
// invocation pattern.
func (m *Manager) Status() ([]Entry, error) {
	lines, err := m.current()
	if err != nil {
		return nil, err
	}
	var out []Entry
	for _, ln := range lines {
		expr, cmd, ok := splitCronLine(ln)
		if !ok || !strings.HasPrefix(cmd, m.Command+" ") {
			continue
		}
		out = append(out, Entry{Cron: expr, Task: strings.TrimPrefix(cmd, m.Command+" ")})
	}
	return out, nil
}

// Uninstall removes every crontab line matching this tool's invocation
// pattern and returns how many were removed.
func (m *Manager) Uninstall() (int, error) {
	lines, err := m.current()
	if err != nil {
		return 0, err
	}
	kept := lines[:0]
	removed := 0
	for _, ln := range lines {
		if _, cmd, ok := splitCronLine(ln); ok && strings.HasPrefix(cmd, m.Command+" ") {
			removed++
			continue
		}
		kept = append(kept, ln)
	}
	if removed == 0 {
		return 0, nil
	}
	if err := m.write(kept); err != nil {
		return 0, err
	}
	return removed, nil
}

// splitCronLine separates a 5-field cron line into expression and command.
// Comments and malformed lines return ok=false.
func splitCronLine(line string) (expr, cmd string, ok bool) {
	trim := strings.TrimSpace(line)
	if trim == "" || strings.HasPrefix(trim, "#") {
		return "", "", false
	}
	fields := strings.Fields(trim)
	if strings.HasPrefix(fields[0], "@") {
		if len(fields) < 2 {
			return "", "", false
		}
		return fields[0], strings.Join(fields[1:], " "), true
	}
	if len(fields) < 6 {
		return "", "", false
	}
	return strings.Join(fields[:5], " "), strings.Join(fields[5:], " "), true
}

func commandPortion(line string) (string, bool) {
	_, cmd, ok := splitCronLine(line)
	return cmd, ok
}
