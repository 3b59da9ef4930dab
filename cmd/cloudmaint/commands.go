package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/loykin/cloudmaint/internal/config"
	"github.com/loykin/cloudmaint/internal/credential"
	"github.com/loykin/cloudmaint/internal/history"
	"github.com/loykin/cloudmaint/internal/history/factory"
	"github.com/loykin/cloudmaint/internal/lock"
	"github.com/loykin/cloudmaint/internal/logger"
	"github.com/loykin/cloudmaint/internal/maintenance"
	"github.com/loykin/cloudmaint/internal/notify"
	"github.com/loykin/cloudmaint/internal/report"
)

type command struct {
	global *GlobalFlags
}

// loadConfig resolves the effective configuration: the --config file when
// given, ./cloudmaint.toml when present, built-in defaults otherwise.
func (c command) loadConfig() (*config.FileConfig, error) {
	path := c.global.ConfigPath
	if path == "" {
		if _, err := os.Stat("cloudmaint.toml"); err == nil {
			path = "cloudmaint.toml"
		}
	}
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

func (c command) debug(fc *config.FileConfig) bool {
	return c.global.Debug || fc.Debug
}

// buildRunner assembles a maintenance runner from config.
func (c command) buildRunner(fc *config.FileConfig, mode maintenance.Mode) (*maintenance.Runner, error) {
	e, err := fc.Environment()
	if err != nil {
		return nil, err
	}

	// Decrypted credentials are exported to tasks as TF_VAR_* variables.
	// A host without a credential blob runs fine without them.
	if _, statErr := os.Stat(fc.Paths.Credential); statErr == nil {
		store := credential.New(fc.Paths.Credential, nil)
		records, loadErr := store.Load()
		switch {
		case loadErr == nil:
			e.SetCredentials(records)
		case errors.Is(loadErr, credential.ErrNoPassphrase):
			slog.Warn("credential file present but no passphrase set; tasks run without credentials",
				"path", fc.Paths.Credential)
		default:
			return nil, fmt.Errorf("load credentials: %w", loadErr)
		}
	}

	var sink history.Sink
	if fc.History.Enabled && fc.History.DSN != "" {
		sink, err = factory.NewSinkFromDSN(fc.History.DSN)
		if err != nil {
			return nil, fmt.Errorf("history sink: %w", err)
		}
	}

	var notifier notify.Notifier
	if fc.Notify.Enabled {
		m := notify.NewMailer(fc.Notify.From, fc.Notify.To)
		m.Command = fc.Notify.Command
		notifier = m
	}

	return maintenance.NewRunner(maintenance.Options{
		LockPath:   fc.Paths.Lock,
		StatusPath: fc.Paths.Status,
		RepoDir:    fc.Paths.Repo,
		Debug:      c.debug(fc),
		Mode:       mode,
		Specs:      fc.Specs(),
		Env:        e,
		History:    sink,
		Notifier:   notifier,
	}), nil
}

// parseRunArgs maps CLI arguments to a task list. Empty or "full" selects
// every task in canonical order.
func parseRunArgs(args []string) ([]maintenance.TaskName, error) {
	if len(args) == 0 {
		return nil, nil
	}
	var tasks []maintenance.TaskName
	for _, a := range args {
		if strings.EqualFold(a, "full") {
			return nil, nil
		}
		t, err := maintenance.ParseTask(a)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}

// Run executes maintenance tasks and reports the session result.
func (c command) Run(f RunFlags, args []string) error {
	tasks, err := parseRunArgs(args)
	if err != nil {
		return err
	}
	fc, err := c.loadConfig()
	if err != nil {
		return err
	}
	logger.Setup(c.debug(fc))

	mode := maintenance.ModeApply
	if f.DryRun {
		mode = maintenance.ModeDryRun
	}
	runner, err := c.buildRunner(fc, mode)
	if err != nil {
		return err
	}

	// A termination signal cancels the context: the in-flight task command
	// is killed and the lock is released through Run's normal exit path.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	res, err := runner.Run(ctx, tasks)
	if err != nil {
		return err
	}
	printJSON(res)
	// Partial success still exits cleanly; operators learn about failed
	// tasks from the report and notification.
	if res.Result == maintenance.PartialSuccess {
		slog.Warn("session finished with task failures", "session", res.SessionID)
	}
	return nil
}

// Status prints the lock holder (if any) and the last persisted report.
func (c command) Status() error {
	fc, err := c.loadConfig()
	if err != nil {
		return err
	}

	type statusOut struct {
		Running    bool                 `json:"running"`
		HolderPid  int                  `json:"holder_pid,omitempty"`
		LastReport *report.StatusReport `json:"last_report,omitempty"`
	}
	var out statusOut
	if pid, err := lock.ReadHolder(fc.Paths.Lock); err == nil && lock.Alive(pid) {
		out.Running = true
		out.HolderPid = pid
	}
	if rep, err := report.Load(fc.Paths.Status); err == nil {
		out.LastReport = &rep
	}
	printJSON(out)
	return nil
}

// Report renders the persisted status report in the requested format.
func (c command) Report(f ReportFlags) error {
	fc, err := c.loadConfig()
	if err != nil {
		return err
	}
	rep, err := report.Load(fc.Paths.Status)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("no status report at %s (run a maintenance session first)", fc.Paths.Status)
		}
		return err
	}
	out, err := report.Render(rep, report.Format(f.Format))
	if err != nil {
		return err
	}
	fmt.Println(out)

	// Keep a timestamped copy next to the status file for later inspection.
	if fc.Paths.ReportDir != "" {
		ext := "txt"
		if report.Format(f.Format) == report.FormatJSON {
			ext = "json"
		}
		name := fmt.Sprintf("report-%s.%s", time.Now().Format("20060102T150405"), ext)
		if err := os.MkdirAll(fc.Paths.ReportDir, 0o750); err != nil {
			slog.Warn("report dir unavailable", "dir", fc.Paths.ReportDir, "error", err)
		} else if err := os.WriteFile(filepath.Join(fc.Paths.ReportDir, name), []byte(out+"\n"), 0o600); err != nil {
			slog.Warn("report copy not written", "dir", fc.Paths.ReportDir, "error", err)
		}
	}
	return nil
}
